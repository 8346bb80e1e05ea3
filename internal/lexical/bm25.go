package lexical

import (
	"math"

	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driven"
)

// BM25 parameters.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// Ensure BM25 implements the interface.
var _ driven.KeywordScorer = (*BM25)(nil)

// BM25 scores chunks with BM25 normalised into [0,1].
//
// Each query term contributes idf(t) * sat(t), where sat is the usual BM25
// term-frequency saturation divided by (k1+1) so it lies in [0,1). The sum is
// divided by the total idf of the query terms, so a chunk saturating every
// query term approaches 1 and a chunk with none scores 0.
type BM25 struct {
	k1 float64
	b  float64
}

// NewBM25 creates a BM25 scorer with the default parameters.
func NewBM25() *BM25 {
	return &BM25{k1: DefaultK1, b: DefaultB}
}

// Name returns the formula name.
func (s *BM25) Name() string { return "bm25" }

// Terms normalises text into scoring terms.
func (s *BM25) Terms(text string) []string { return Terms(text) }

// Score rates chunk against the distinct query terms.
func (s *BM25) Score(terms []string, chunk *domain.IndexedChunk, stats domain.LexicalStats) float64 {
	if len(terms) == 0 || chunk == nil {
		return 0
	}

	avg := stats.AvgLength
	if avg <= 0 {
		avg = 1
	}
	norm := 1 - s.b + s.b*float64(chunk.Length)/avg

	var total, matched float64
	for _, t := range Distinct(terms) {
		df := 0
		if stats.DocFreq != nil {
			df = stats.DocFreq(t)
		}
		idf := IDF(stats.DocCount, df)
		total += idf

		tf := float64(chunk.TermFreqs[t])
		if tf == 0 {
			continue
		}
		sat := tf * (s.k1 + 1) / (tf + s.k1*norm) / (s.k1 + 1)
		matched += idf * sat
	}
	if total == 0 {
		return 0
	}
	return clamp01(matched / total)
}

// IDF is the BM25+ style non-negative inverse document frequency.
func IDF(docCount, docFreq int) float64 {
	n, df := float64(docCount), float64(docFreq)
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
