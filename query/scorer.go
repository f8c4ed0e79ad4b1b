package query

import "math"

// idf computes the Okapi-style inverse document frequency spec.md §4.6
// specifies: ln(1 + (N - df + 0.5)/(df + 0.5)). Clamped to >= 0 per
// spec.md §8's boundary ("document_frequency > N scores IDF >= 0").
func idf(n, df uint64) float64 {
	v := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
	if v < 0 {
		return 0
	}
	return v
}

// scoreHit computes a MatchTerm leaf's score for one hit. The data model
// carries no corpus-wide average field length, so the classic BM25 length
// normalization ratio (fieldLength/avgFieldLength) is replaced by a direct
// per-document norm as spec.md §4.6 literally describes it: "norm =
// 1/sqrt(field_length) unless b = 0". b therefore toggles length
// normalization on or off; k1 independently controls term-frequency
// saturation.
func scoreHit(scorer Scorer, tf float64, df, n uint64, fieldLength uint32) float64 {
	switch scorer.Kind {
	case ScorerConstant:
		return scorer.C
	case ScorerTF:
		return tf
	case ScorerTFIDF:
		norm := 1.0
		if scorer.B != 0 && fieldLength > 0 {
			norm = 1 / math.Sqrt(float64(fieldLength))
		}
		saturated := (tf * (scorer.K1 + 1)) / (tf + scorer.K1)
		return idf(n, df) * saturated * norm
	default:
		return 0
	}
}
