package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"golang.org/x/sync/errgroup"

	"ai-docqa-be/internal/constant"
	"ai-docqa-be/pkg/embedding"
	"ai-docqa-be/pkg/store"
)

// ErrNoEvidence is returned when every pass came back empty or failed.
// It is a routing signal, not a server fault: the coordinator turns it
// into a clarification request.
var ErrNoEvidence = errors.New("retrieval produced no evidence")

// Index is the similarity search surface the engine depends on. Results
// must come back score-descending. A nil documentIDs slice means "all
// of the owner's documents".
type Index interface {
	Search(ctx context.Context, queryEmbedding []float32, vectorType string, documentIDs []string, limit int) ([]store.SearchCandidate, error)
}

type Config struct {
	Stage1K       int     // coarse summary candidates in two_stage
	TopK          int     // final result count
	Threshold     float64 // informational, enforced by the index
	RRFK          int     // rank constant in reciprocal rank fusion
	SummaryWeight float64
	ChunkWeight   float64
}

func DefaultConfig() Config {
	return Config{
		Stage1K:       10,
		TopK:          5,
		Threshold:     0.3,
		RRFK:          60,
		SummaryWeight: 0.4,
		ChunkWeight:   0.6,
	}
}

// Engine runs the configured retrieval strategy against the vector
// index and returns fused, score-descending evidence.
type Engine struct {
	index    Index
	embedder embedding.EmbeddingProvider
	config   Config
	logger   *log.Logger
}

func NewEngine(index Index, embedder embedding.EmbeddingProvider, config Config, logger *log.Logger) *Engine {
	if config.Stage1K <= 0 {
		config.Stage1K = 10
	}
	if config.TopK <= 0 {
		config.TopK = 5
	}
	if config.RRFK <= 0 {
		config.RRFK = 60
	}
	if config.SummaryWeight <= 0 && config.ChunkWeight <= 0 {
		config.SummaryWeight = 0.4
		config.ChunkWeight = 0.6
	}
	return &Engine{
		index:    index,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}
}

// Retrieve embeds the query once and dispatches to the strategy.
// targetDocumentIDs, when non-empty, restricts every pass to those
// documents (used for detail queries over known documents).
func (e *Engine) Retrieve(ctx context.Context, query string, strategy string, targetDocumentIDs []string) ([]store.FusedResult, error) {
	resp, err := e.embedder.Generate(query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}
	queryEmbedding := resp.Embedding.Values

	e.logger.Printf("[RETRIEVAL] strategy=%s topK=%d targets=%d", strategy, e.config.TopK, len(targetDocumentIDs))

	var results []store.FusedResult
	switch strategy {
	case constant.StrategySummaryOnly:
		results, err = e.singlePass(ctx, queryEmbedding, store.VectorTypeSummary, targetDocumentIDs)
	case constant.StrategyChunksOnly:
		results, err = e.singlePass(ctx, queryEmbedding, store.VectorTypeChunk, targetDocumentIDs)
	case constant.StrategyRRFFusion:
		results, err = e.rrfFusion(ctx, queryEmbedding, targetDocumentIDs)
	default:
		// two_stage is the hybrid default for anything unrecognized
		results, err = e.twoStage(ctx, queryEmbedding, targetDocumentIDs)
	}
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNoEvidence
	}
	return results, nil
}

func (e *Engine) singlePass(ctx context.Context, queryEmbedding []float32, vectorType string, documentIDs []string) ([]store.FusedResult, error) {
	// Over-fetch so the per-document collapse still fills TopK when one
	// document dominates the raw hits.
	candidates, err := e.index.Search(ctx, queryEmbedding, vectorType, documentIDs, e.config.TopK*2)
	if err != nil {
		e.logger.Printf("[ERROR] %s pass failed: %v", vectorType, err)
		return nil, ErrNoEvidence
	}
	return e.truncate(resultsFromCandidates(bestPerDocument(candidates))), nil
}

// twoStage narrows the corpus with a coarse summary pass, then refines
// within the surviving documents using chunk vectors. Stage-1 hits are
// the fallback when stage 2 finds nothing, so a nonempty stage 1 never
// yields an empty answer set.
func (e *Engine) twoStage(ctx context.Context, queryEmbedding []float32, documentIDs []string) ([]store.FusedResult, error) {
	stage1, err := e.index.Search(ctx, queryEmbedding, store.VectorTypeSummary, documentIDs, e.config.Stage1K)
	if err != nil {
		e.logger.Printf("[ERROR] two_stage coarse pass failed: %v", err)
		return nil, ErrNoEvidence
	}
	if len(stage1) == 0 {
		return nil, nil
	}

	stage1Docs := make([]string, 0, len(stage1))
	for _, c := range stage1 {
		stage1Docs = append(stage1Docs, c.DocumentID)
	}

	stage2, err := e.index.Search(ctx, queryEmbedding, store.VectorTypeChunk, stage1Docs, e.config.TopK*2)
	if err != nil {
		e.logger.Printf("[ERROR] two_stage fine pass failed, falling back to coarse hits: %v", err)
		stage2 = nil
	}

	if len(stage2) == 0 {
		return e.truncate(resultsFromCandidates(stage1)), nil
	}

	deduped := bestPerDocument(stage2)
	sort.SliceStable(deduped, func(i, j int) bool {
		if deduped[i].Score != deduped[j].Score {
			return deduped[i].Score > deduped[j].Score
		}
		return deduped[i].DocumentID < deduped[j].DocumentID
	})

	return e.truncate(resultsFromCandidates(deduped)), nil
}

// rrfFusion runs summary and chunk passes concurrently and merges the
// per-pass document rankings by reciprocal rank. A pass error counts as
// zero hits from that pass.
func (e *Engine) rrfFusion(ctx context.Context, queryEmbedding []float32, documentIDs []string) ([]store.FusedResult, error) {
	var summaryHits, chunkHits []store.SearchCandidate

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := e.index.Search(gctx, queryEmbedding, store.VectorTypeSummary, documentIDs, e.config.TopK*2)
		if err != nil {
			e.logger.Printf("[ERROR] fusion summary pass failed: %v", err)
			return nil
		}
		summaryHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := e.index.Search(gctx, queryEmbedding, store.VectorTypeChunk, documentIDs, e.config.TopK*2)
		if err != nil {
			e.logger.Printf("[ERROR] fusion chunk pass failed: %v", err)
			return nil
		}
		chunkHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summaryRanking := bestPerDocument(summaryHits)
	chunkRanking := bestPerDocument(chunkHits)

	fused := fuseRankings(
		rankedPass{candidates: summaryRanking, weight: e.config.SummaryWeight},
		rankedPass{candidates: chunkRanking, weight: e.config.ChunkWeight},
		e.config.RRFK,
	)

	return e.truncate(fused), nil
}

func (e *Engine) truncate(results []store.FusedResult) []store.FusedResult {
	if len(results) > e.config.TopK {
		return results[:e.config.TopK]
	}
	return results
}

// bestPerDocument collapses raw hits to the highest-scoring hit per
// document, preserving score-descending order.
func bestPerDocument(candidates []store.SearchCandidate) []store.SearchCandidate {
	seen := make(map[string]bool, len(candidates))
	out := make([]store.SearchCandidate, 0, len(candidates))
	for _, c := range candidates {
		if seen[c.DocumentID] {
			continue
		}
		seen[c.DocumentID] = true
		out = append(out, c)
	}
	return out
}

func candidateToResult(c store.SearchCandidate) store.FusedResult {
	return store.FusedResult{
		DocumentID: c.DocumentID,
		Score:      c.Score,
		Text:       c.Text,
		Passes:     []string{c.OriginPass},
		LineStart:  c.LineStart,
		LineEnd:    c.LineEnd,
	}
}

func resultsFromCandidates(candidates []store.SearchCandidate) []store.FusedResult {
	out := make([]store.FusedResult, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, candidateToResult(c))
	}
	return out
}
