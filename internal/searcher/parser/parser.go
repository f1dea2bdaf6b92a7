package parser

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/vecta/pkg/errors"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokPhrase
	tokField
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokNot
	tokPlus
	tokMinus
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) describe() string {
	switch t.kind {
	case tokEOF:
		return "end of query"
	case tokPhrase:
		return fmt.Sprintf("%q", t.text)
	case tokField:
		return t.text + ":"
	default:
		return t.text
	}
}

func parseError(pos int, format string, args ...any) error {
	return apperrors.New(apperrors.ErrQueryParse, "parse", "",
		fmt.Sprintf(format, args...)+fmt.Sprintf(" at offset %d", pos))
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDelimiter(c byte) bool {
	return isSpace(c) || c == '(' || c == ')' || c == '"'
}

func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case isSpace(c):
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == '"':
			end := strings.IndexByte(input[i+1:], '"')
			if end < 0 {
				return nil, parseError(i, "unterminated quote")
			}
			toks = append(toks, token{kind: tokPhrase, text: input[i+1 : i+1+end], pos: i})
			i += end + 2
		case c == '+' || c == '-':
			if i+1 >= len(input) || isSpace(input[i+1]) {
				return nil, parseError(i, "dangling operator %q", string(c))
			}
			kind := tokPlus
			if c == '-' {
				kind = tokMinus
			}
			toks = append(toks, token{kind: kind, text: string(c), pos: i})
			i++
		default:
			start := i
			for i < len(input) && !isDelimiter(input[i]) {
				i++
			}
			word := input[start:i]
			if colon := strings.IndexByte(word, ':'); colon > 0 {
				toks = append(toks, token{kind: tokField, text: word[:colon], pos: start})
				i = start + colon + 1
				if i >= len(input) || isSpace(input[i]) {
					return nil, parseError(start, "field %q has no value", word[:colon])
				}
				continue
			}
			toks = append(toks, wordToken(word, start))
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(input)}), nil
}

func wordToken(word string, pos int) token {
	switch word {
	case "AND", "&&":
		return token{kind: tokAnd, text: word, pos: pos}
	case "OR", "||":
		return token{kind: tokOr, text: word, pos: pos}
	case "NOT":
		return token{kind: tokNot, text: word, pos: pos}
	}
	return token{kind: tokWord, text: word, pos: pos}
}

type parser struct {
	toks      []token
	pos       int
	schema    *schema.Schema
	defaults  []string
	analyzers map[string]*analysis.Analyzer
}

// Parse parses query against the indexed fields of s. Unqualified words
// are searched in every indexed field. Adjacent clauses are OR-ed unless
// joined by AND or marked with + (required) or - / NOT (excluded).
func Parse(query string, s *schema.Schema) (*Query, error) {
	q := &Query{Raw: query}
	if strings.TrimSpace(query) == "" {
		return q, nil
	}
	toks, err := lex(query)
	if err != nil {
		return nil, err
	}
	p := &parser{
		toks:      toks,
		schema:    s,
		defaults:  s.IndexedFields(),
		analyzers: make(map[string]*analysis.Analyzer),
	}
	for _, field := range p.defaults {
		a, err := s.Analyzer(field)
		if err != nil {
			return nil, err
		}
		p.analyzers[field] = a
	}
	clauses, err := p.parseClauses("", false)
	if err != nil {
		return nil, err
	}
	q.Root = combine(clauses)
	return q, nil
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// parseClauses reads clauses up to the end of input, or up to the closing
// parenthesis when nested.
func (p *parser) parseClauses(field string, nested bool) ([]Clause, error) {
	var (
		clauses []Clause
		conj    *token
		parsed  int
	)
	for {
		t := p.peek()
		if t.kind == tokEOF {
			if nested {
				return nil, parseError(t.pos, "unbalanced parenthesis: missing \")\"")
			}
			break
		}
		if t.kind == tokRParen {
			if !nested {
				return nil, parseError(t.pos, "unbalanced parenthesis: unexpected \")\"")
			}
			break
		}
		if t.kind == tokAnd || t.kind == tokOr {
			if parsed == 0 || conj != nil {
				return nil, parseError(t.pos, "dangling operator %q", t.text)
			}
			p.next()
			conj = &t
			continue
		}

		occur, explicit := Should, false
		switch t.kind {
		case tokNot, tokMinus:
			occur, explicit = MustNot, true
			p.next()
		case tokPlus:
			occur, explicit = Must, true
			p.next()
		}
		node, err := p.parseClause(field)
		if err != nil {
			return nil, err
		}
		parsed++

		if conj != nil && conj.kind == tokAnd {
			if n := len(clauses); n > 0 && clauses[n-1].Occur == Should {
				clauses[n-1].Occur = Must
			}
			if !explicit {
				occur = Must
			}
		}
		conj = nil
		if node != nil {
			clauses = append(clauses, Clause{Occur: occur, Node: node})
		}
	}
	if conj != nil {
		return nil, parseError(conj.pos, "dangling operator %q", conj.text)
	}
	return clauses, nil
}

func (p *parser) parseClause(field string) (Node, error) {
	if t := p.peek(); t.kind == tokField {
		p.next()
		if err := p.checkField(t); err != nil {
			return nil, err
		}
		field = t.text
	}
	t := p.next()
	switch t.kind {
	case tokWord, tokPhrase:
		return p.textNode(field, t.text)
	case tokLParen:
		clauses, err := p.parseClauses(field, true)
		if err != nil {
			return nil, err
		}
		p.next()
		return combine(clauses), nil
	case tokEOF:
		return nil, parseError(t.pos, "query ends after an operator")
	default:
		return nil, parseError(t.pos, "unexpected %s", t.describe())
	}
}

func (p *parser) checkField(t token) error {
	f, ok := p.schema.Field(t.text)
	if !ok {
		return parseError(t.pos, "unknown field %q", t.text)
	}
	if !f.Options.Has(schema.Indexed) {
		return parseError(t.pos, "field %q is not indexed", t.text)
	}
	return nil
}

// textNode analyses text for field, or for every default field when field
// is empty. Text that analyses to nothing yields a nil node.
func (p *parser) textNode(field, text string) (Node, error) {
	if field != "" {
		return p.fieldNode(field, text)
	}
	var clauses []Clause
	for _, f := range p.defaults {
		node, err := p.fieldNode(f, text)
		if err != nil {
			return nil, err
		}
		if node != nil {
			clauses = append(clauses, Clause{Occur: Should, Node: node})
		}
	}
	return combine(clauses), nil
}

func (p *parser) fieldNode(field, text string) (Node, error) {
	a, ok := p.analyzers[field]
	if !ok {
		var err error
		if a, err = p.schema.Analyzer(field); err != nil {
			return nil, err
		}
		p.analyzers[field] = a
	}
	tokens := a.Analyze(text)
	switch len(tokens) {
	case 0:
		return nil, nil
	case 1:
		return &Term{Field: field, Text: tokens[0].Term}, nil
	}
	phrase := &Phrase{Field: field, Terms: make([]PhraseTerm, len(tokens))}
	first := tokens[0].Position
	for i, tok := range tokens {
		phrase.Terms[i] = PhraseTerm{Text: tok.Term, Offset: tok.Position - first}
	}
	return phrase, nil
}

// combine folds clauses into a single node. A lone positive clause stands
// for itself.
func combine(clauses []Clause) Node {
	switch {
	case len(clauses) == 0:
		return nil
	case len(clauses) == 1 && clauses[0].Occur != MustNot:
		return clauses[0].Node
	}
	return &Boolean{Clauses: clauses}
}
