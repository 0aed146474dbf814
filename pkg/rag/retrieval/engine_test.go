package retrieval

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"testing"

	"ai-docqa-be/internal/constant"
	"ai-docqa-be/pkg/embedding"
	"ai-docqa-be/pkg/store"
)

type stubEmbedder struct{}

func (stubEmbedder) Generate(text string, taskType string) (*embedding.EmbeddingResponse, error) {
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: []float32{0.1, 0.2, 0.3}},
	}, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Generate(text string, taskType string) (*embedding.EmbeddingResponse, error) {
	return nil, errors.New("embedding service down")
}

// fakeIndex serves canned hits per vector type and records the document
// filter it received.
type fakeIndex struct {
	summaryHits []store.SearchCandidate
	chunkHits   []store.SearchCandidate
	summaryErr  error
	chunkErr    error

	chunkFilter []string
	chunkLimit  int
}

func (f *fakeIndex) Search(ctx context.Context, queryEmbedding []float32, vectorType string, documentIDs []string, limit int) ([]store.SearchCandidate, error) {
	if vectorType == store.VectorTypeSummary {
		if f.summaryErr != nil {
			return nil, f.summaryErr
		}
		if limit < len(f.summaryHits) {
			return f.summaryHits[:limit], nil
		}
		return f.summaryHits, nil
	}
	f.chunkFilter = documentIDs
	f.chunkLimit = limit
	if f.chunkErr != nil {
		return nil, f.chunkErr
	}
	if limit < len(f.chunkHits) {
		return f.chunkHits[:limit], nil
	}
	return f.chunkHits, nil
}

func summaryHit(docID string, score float64) store.SearchCandidate {
	return store.SearchCandidate{DocumentID: docID, Score: score, Text: "summary of " + docID, OriginPass: store.VectorTypeSummary}
}

func chunkHit(docID string, score float64) store.SearchCandidate {
	return store.SearchCandidate{DocumentID: docID, Score: score, Text: "chunk of " + docID, OriginPass: store.VectorTypeChunk, LineStart: 1, LineEnd: 10}
}

func newTestEngine(index Index) *Engine {
	return NewEngine(index, stubEmbedder{}, DefaultConfig(), log.New(io.Discard, "", 0))
}

func TestTwoStageRestrictsFinePassToCoarseDocuments(t *testing.T) {
	index := &fakeIndex{
		summaryHits: []store.SearchCandidate{summaryHit("d1", 0.9), summaryHit("d2", 0.8)},
		chunkHits:   []store.SearchCandidate{chunkHit("d2", 0.85), chunkHit("d1", 0.7)},
	}
	engine := newTestEngine(index)

	results, err := engine.Retrieve(context.Background(), "lease terms", constant.StrategyTwoStage, nil)
	if err != nil {
		t.Fatalf("Retrieve returned error: %v", err)
	}

	if len(index.chunkFilter) != 2 || index.chunkFilter[0] != "d1" || index.chunkFilter[1] != "d2" {
		t.Errorf("fine pass filter = %v, want [d1 d2]", index.chunkFilter)
	}
	if index.chunkLimit != DefaultConfig().TopK*2 {
		t.Errorf("fine pass limit = %d, want %d", index.chunkLimit, DefaultConfig().TopK*2)
	}
	if results[0].DocumentID != "d2" {
		t.Errorf("top result = %s, want d2 (highest chunk score)", results[0].DocumentID)
	}
}

func TestTwoStageDeduplicatesToBestChunkPerDocument(t *testing.T) {
	index := &fakeIndex{
		summaryHits: []store.SearchCandidate{summaryHit("d1", 0.9)},
		chunkHits: []store.SearchCandidate{
			chunkHit("d1", 0.95),
			chunkHit("d1", 0.80),
			chunkHit("d1", 0.60),
		},
	}
	engine := newTestEngine(index)

	results, err := engine.Retrieve(context.Background(), "anything", constant.StrategyTwoStage, nil)
	if err != nil {
		t.Fatalf("Retrieve returned error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 after per-document dedupe", len(results))
	}
	if results[0].Score != 0.95 {
		t.Errorf("kept score = %v, want the highest chunk score 0.95", results[0].Score)
	}
}

func TestTwoStageFallsBackToCoarseHits(t *testing.T) {
	index := &fakeIndex{
		summaryHits: []store.SearchCandidate{
			summaryHit("d1", 0.9), summaryHit("d2", 0.8), summaryHit("d3", 0.7),
			summaryHit("d4", 0.6), summaryHit("d5", 0.5), summaryHit("d6", 0.4),
		},
		chunkHits: nil,
	}
	engine := newTestEngine(index)

	results, err := engine.Retrieve(context.Background(), "anything", constant.StrategyTwoStage, nil)
	if err != nil {
		t.Fatalf("Retrieve returned error: %v", err)
	}
	if len(results) != DefaultConfig().TopK {
		t.Fatalf("got %d results, want %d coarse fallback hits", len(results), DefaultConfig().TopK)
	}
	for i, r := range results {
		if r.DocumentID != index.summaryHits[i].DocumentID {
			t.Errorf("result[%d] = %s, want %s (coarse order preserved)", i, r.DocumentID, index.summaryHits[i].DocumentID)
		}
	}
}

func TestTwoStageFinePassErrorDegradesToCoarse(t *testing.T) {
	index := &fakeIndex{
		summaryHits: []store.SearchCandidate{summaryHit("d1", 0.9)},
		chunkErr:    errors.New("index timeout"),
	}
	engine := newTestEngine(index)

	results, err := engine.Retrieve(context.Background(), "anything", constant.StrategyTwoStage, nil)
	if err != nil {
		t.Fatalf("Retrieve returned error: %v", err)
	}
	if len(results) != 1 || results[0].DocumentID != "d1" {
		t.Errorf("results = %v, want coarse hit d1", results)
	}
}

func TestTwoStageEmptyCoarseReportsNoEvidence(t *testing.T) {
	engine := newTestEngine(&fakeIndex{})

	_, err := engine.Retrieve(context.Background(), "anything", constant.StrategyTwoStage, nil)
	if !errors.Is(err, ErrNoEvidence) {
		t.Errorf("err = %v, want ErrNoEvidence", err)
	}
}

func TestRRFFusionScores(t *testing.T) {
	// Summary pass ranks [d1 d3 d2], chunk pass ranks [d2 d4].
	// score(d2) = 0.4/(60+3) + 0.6/(60+1) ≈ 0.01619 and d2 wins.
	index := &fakeIndex{
		summaryHits: []store.SearchCandidate{summaryHit("d1", 0.9), summaryHit("d3", 0.8), summaryHit("d2", 0.7)},
		chunkHits:   []store.SearchCandidate{chunkHit("d2", 0.6), chunkHit("d4", 0.5)},
	}
	engine := newTestEngine(index)

	results, err := engine.Retrieve(context.Background(), "anything", constant.StrategyRRFFusion, nil)
	if err != nil {
		t.Fatalf("Retrieve returned error: %v", err)
	}

	if results[0].DocumentID != "d2" {
		t.Fatalf("top result = %s, want d2", results[0].DocumentID)
	}
	want := 0.4/63.0 + 0.6/61.0
	if math.Abs(results[0].Score-want) > 1e-9 {
		t.Errorf("score(d2) = %.6f, want %.6f", results[0].Score, want)
	}
	if len(results[0].Passes) != 2 {
		t.Errorf("d2 passes = %v, want both passes recorded", results[0].Passes)
	}
	// d2 appears in both passes, evidence text must come from the chunk
	if results[0].Text != "chunk of d2" {
		t.Errorf("d2 text = %q, want chunk evidence", results[0].Text)
	}
}

func TestRRFFusionOnePassFailureDegrades(t *testing.T) {
	index := &fakeIndex{
		summaryHits: []store.SearchCandidate{summaryHit("d1", 0.9)},
		chunkErr:    errors.New("index timeout"),
	}
	engine := newTestEngine(index)

	results, err := engine.Retrieve(context.Background(), "anything", constant.StrategyRRFFusion, nil)
	if err != nil {
		t.Fatalf("Retrieve returned error: %v", err)
	}
	if len(results) != 1 || results[0].DocumentID != "d1" {
		t.Errorf("results = %v, want just the summary hit", results)
	}
}

func TestRRFFusionAllPassesFailReportsNoEvidence(t *testing.T) {
	index := &fakeIndex{
		summaryErr: errors.New("down"),
		chunkErr:   errors.New("down"),
	}
	engine := newTestEngine(index)

	_, err := engine.Retrieve(context.Background(), "anything", constant.StrategyRRFFusion, nil)
	if !errors.Is(err, ErrNoEvidence) {
		t.Errorf("err = %v, want ErrNoEvidence", err)
	}
}

func TestSinglePassStrategies(t *testing.T) {
	index := &fakeIndex{
		summaryHits: []store.SearchCandidate{summaryHit("d1", 0.9)},
		chunkHits:   []store.SearchCandidate{chunkHit("d2", 0.8)},
	}
	engine := newTestEngine(index)

	summaryResults, err := engine.Retrieve(context.Background(), "q", constant.StrategySummaryOnly, nil)
	if err != nil {
		t.Fatalf("summary_only error: %v", err)
	}
	if summaryResults[0].DocumentID != "d1" || summaryResults[0].Passes[0] != store.VectorTypeSummary {
		t.Errorf("summary_only results = %v", summaryResults)
	}

	chunkResults, err := engine.Retrieve(context.Background(), "q", constant.StrategyChunksOnly, nil)
	if err != nil {
		t.Fatalf("chunks_only error: %v", err)
	}
	if chunkResults[0].DocumentID != "d2" || chunkResults[0].Passes[0] != store.VectorTypeChunk {
		t.Errorf("chunks_only results = %v", chunkResults)
	}
}

func TestSinglePassCollapsesToBestHitPerDocument(t *testing.T) {
	index := &fakeIndex{
		chunkHits: []store.SearchCandidate{
			chunkHit("d1", 0.9),
			chunkHit("d1", 0.8),
			chunkHit("d2", 0.7),
		},
	}
	engine := newTestEngine(index)

	results, err := engine.Retrieve(context.Background(), "q", constant.StrategyChunksOnly, nil)
	if err != nil {
		t.Fatalf("chunks_only error: %v", err)
	}

	seen := map[string]int{}
	for _, r := range results {
		seen[r.DocumentID]++
	}
	if seen["d1"] != 1 || seen["d2"] != 1 {
		t.Errorf("document counts = %v, want one result per document", seen)
	}
	if results[0].DocumentID != "d1" || results[0].Score != 0.9 {
		t.Errorf("results[0] = %+v, want the best d1 hit kept", results[0])
	}
}

func TestRetrieveFailsWhenEmbeddingFails(t *testing.T) {
	engine := NewEngine(&fakeIndex{}, failingEmbedder{}, DefaultConfig(), log.New(io.Discard, "", 0))

	_, err := engine.Retrieve(context.Background(), "q", constant.StrategyTwoStage, nil)
	if err == nil || errors.Is(err, ErrNoEvidence) {
		t.Errorf("err = %v, want a distinct embedding error", err)
	}
}
