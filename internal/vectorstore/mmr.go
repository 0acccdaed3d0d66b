package vectorstore

import "math"

// Cosine returns the cosine similarity of a and b, or 0 when either is empty
// or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// MMR picks up to k candidates by maximal marginal relevance:
// lambda*sim(query, d) - (1-lambda)*max sim(d, already picked).
// Candidate scores must already hold sim(query, d). Picks come back in
// selection order.
func MMR(cands []Candidate, k int, lambda float64) []Candidate {
	if k <= 0 || len(cands) == 0 {
		return nil
	}
	if k > len(cands) {
		k = len(cands)
	}

	picked := make([]Candidate, 0, k)
	used := make([]bool, len(cands))
	// maxSim[i] is the highest similarity of candidate i to anything picked so far
	maxSim := make([]float64, len(cands))
	for i := range maxSim {
		maxSim[i] = math.Inf(-1)
	}

	for len(picked) < k {
		best, bestScore := -1, math.Inf(-1)
		for i, c := range cands {
			if used[i] {
				continue
			}
			redundancy := 0.0
			if len(picked) > 0 {
				redundancy = maxSim[i]
			}
			score := lambda*c.Score - (1-lambda)*redundancy
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}
		used[best] = true
		picked = append(picked, cands[best])
		for i, c := range cands {
			if used[i] {
				continue
			}
			if s := Cosine(c.Embedding, cands[best].Embedding); s > maxSim[i] {
				maxSim[i] = s
			}
		}
	}
	return picked
}
