package parser

import (
	"fmt"
	"strings"
)

// Occur says how a clause takes part in a Boolean query.
type Occur int

const (
	Should Occur = iota
	Must
	MustNot
)

func (o Occur) prefix() string {
	switch o {
	case Must:
		return "+"
	case MustNot:
		return "-"
	default:
		return ""
	}
}

// Node is one element of a parsed query.
type Node interface {
	String() string
}

// Term matches documents containing an analysed term in one field.
type Term struct {
	Field string
	Text  string
}

func (t *Term) String() string {
	return fmt.Sprintf("%s:%s", t.Field, t.Text)
}

// PhraseTerm is a term of a phrase with its position relative to the first
// term.
type PhraseTerm struct {
	Text   string
	Offset int
}

// Phrase matches documents where its terms occur at the given relative
// positions in one field.
type Phrase struct {
	Field string
	Terms []PhraseTerm
}

func (p *Phrase) String() string {
	words := make([]string, len(p.Terms))
	for i, t := range p.Terms {
		words[i] = t.Text
	}
	return fmt.Sprintf("%s:%q", p.Field, strings.Join(words, " "))
}

type Clause struct {
	Occur Occur
	Node  Node
}

// Boolean combines clauses. With no Must clause, at least one Should clause
// has to match.
type Boolean struct {
	Clauses []Clause
}

func (b *Boolean) String() string {
	parts := make([]string, len(b.Clauses))
	for i, c := range b.Clauses {
		parts[i] = c.Occur.prefix() + c.Node.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// Query is a parsed search string. Root is nil when nothing searchable was
// left after analysis.
type Query struct {
	Raw  string
	Root Node
}

// Empty reports whether the query can match nothing by construction.
func (q *Query) Empty() bool {
	return q.Root == nil
}

// String renders the canonical form of the query. Two inputs that parse to
// the same tree render identically.
func (q *Query) String() string {
	if q.Root == nil {
		return ""
	}
	return q.Root.String()
}
