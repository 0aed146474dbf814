package retrieval

import (
	"sort"

	"ai-docqa-be/pkg/store"
)

// rankedPass is one pass's document ranking (already collapsed to one
// hit per document, score-descending) plus its fusion weight.
type rankedPass struct {
	candidates []store.SearchCandidate
	weight     float64
}

// fuseRankings merges pass rankings with Reciprocal Rank Fusion:
// score(d) = Σ_p w_p / (k + rank_p(d)), summed over passes containing
// d, ranks 1-based. Raw cosine scores from different vector populations
// are not comparable; rank position is. Evidence text prefers the chunk
// hit when a document appears in both passes.
func fuseRankings(summaryPass, chunkPass rankedPass, k int) []store.FusedResult {
	byDocument := make(map[string]*store.FusedResult)
	order := make([]string, 0, len(summaryPass.candidates)+len(chunkPass.candidates))

	accumulate := func(pass rankedPass, preferText bool) {
		for rank, c := range pass.candidates {
			contribution := pass.weight / float64(k+rank+1)
			entry, ok := byDocument[c.DocumentID]
			if !ok {
				entry = &store.FusedResult{
					DocumentID: c.DocumentID,
					Text:       c.Text,
					LineStart:  c.LineStart,
					LineEnd:    c.LineEnd,
				}
				byDocument[c.DocumentID] = entry
				order = append(order, c.DocumentID)
			}
			entry.Score += contribution
			entry.Passes = append(entry.Passes, c.OriginPass)
			if preferText {
				entry.Text = c.Text
				entry.LineStart = c.LineStart
				entry.LineEnd = c.LineEnd
			}
		}
	}

	accumulate(summaryPass, false)
	accumulate(chunkPass, true)

	fused := make([]store.FusedResult, 0, len(order))
	for _, id := range order {
		fused = append(fused, *byDocument[id])
	}

	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].DocumentID < fused[j].DocumentID
	})

	return fused
}
