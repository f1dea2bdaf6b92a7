package ranker

import (
	"cmp"
	"math"
)

const (
	k1 = 1.2
	b  = 0.75
)

type ScoredDoc struct {
	DocID uint64  `json:"doc_id"`
	Score float64 `json:"score"`
}

// FieldStats are the collection statistics BM25 needs for one field.
type FieldStats struct {
	TotalDocs   int
	AvgFieldLen float64
	DocFreq     int
}

// IDF is the BM25 inverse document frequency, always positive.
func IDF(totalDocs, docFreq int) float64 {
	n := float64(totalDocs)
	df := float64(docFreq)
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// TFNorm saturates a term frequency and normalises it by field length.
func TFNorm(termFreq float64, fieldLen int, avgFieldLen float64) float64 {
	if termFreq == 0 {
		return 0
	}
	lengthRatio := 1.0
	if avgFieldLen > 0 {
		lengthRatio = float64(fieldLen) / avgFieldLen
	}
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}

// Score is the BM25 contribution of one (field, term) match, using idf as
// the term weight.
func Score(idf, termFreq float64, fieldLen int, avgFieldLen float64) float64 {
	return idf * TFNorm(termFreq, fieldLen, avgFieldLen)
}

// BM25 scores a single term match from its field statistics.
func BM25(stats FieldStats, termFreq float64, fieldLen int) float64 {
	return Score(IDF(stats.TotalDocs, stats.DocFreq), termFreq, fieldLen, stats.AvgFieldLen)
}

// Round keeps four decimal places so scores compare stably across runs.
func Round(score float64) float64 {
	return math.Round(score*10000) / 10000
}

// Compare orders documents for display: higher score first, then lower doc
// id, so equal scores list in insertion order.
func Compare(x, y ScoredDoc) int {
	switch {
	case x.Score > y.Score:
		return -1
	case x.Score < y.Score:
		return 1
	}
	return cmp.Compare(x.DocID, y.DocID)
}
