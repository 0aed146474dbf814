package intent

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"ai-docqa-be/internal/constant"
	"ai-docqa-be/pkg/llm"
	"ai-docqa-be/pkg/store"
)

type stubLLM struct {
	response string
	err      error
}

func (s *stubLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return s.response, s.err
}

func (s *stubLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return s.response, s.err
}

func newTestClassifier(provider llm.LLMProvider) *Classifier {
	return NewClassifier(provider, DefaultConfidenceThreshold, log.New(io.Discard, "", 0))
}

func TestClassifyParsesModelVerdict(t *testing.T) {
	provider := &stubLLM{response: `Here you go:
{
  "intent": "DOCUMENT_SEARCH",
  "confidence": 0.92,
  "strategy": "two_stage",
  "requires_documents": true,
  "reasoning": "user wants documents found"
}`}
	classifier := newTestClassifier(provider)

	got := classifier.Classify(context.Background(), "find all my parking tickets", nil, nil)

	if got.Intent != IntentDocumentSearch {
		t.Errorf("intent = %s, want %s", got.Intent, IntentDocumentSearch)
	}
	if got.Confidence != 0.92 {
		t.Errorf("confidence = %v, want 0.92", got.Confidence)
	}
	if got.SuggestedStrategy != constant.StrategyTwoStage {
		t.Errorf("strategy = %s, want %s", got.SuggestedStrategy, constant.StrategyTwoStage)
	}
	if !got.RequiresDocuments {
		t.Error("expected RequiresDocuments to be true")
	}
}

func TestClassifyResolvesTargetDocumentIndexes(t *testing.T) {
	provider := &stubLLM{response: `{
  "intent": "DOCUMENT_DETAIL_QUERY",
  "confidence": 0.9,
  "strategy": "chunks_only",
  "target_documents": [2, 2, 5]
}`}
	classifier := newTestClassifier(provider)
	pool := []store.PoolEntry{
		{DocumentID: "doc-lease", Filename: "lease.pdf", Summary: "Office lease"},
		{DocumentID: "doc-invoice", Filename: "invoice.pdf", Summary: "March invoice"},
	}

	got := classifier.Classify(context.Background(), "what is the total on the invoice?", nil, pool)

	// Indexes are 1-based into the pool listing; duplicates collapse and
	// out-of-range indexes are dropped.
	if len(got.TargetDocumentIDs) != 1 || got.TargetDocumentIDs[0] != "doc-invoice" {
		t.Errorf("TargetDocumentIDs = %v, want [doc-invoice]", got.TargetDocumentIDs)
	}
}

func TestClassifyConfidenceGateOverridesRetrievalIntent(t *testing.T) {
	provider := &stubLLM{response: `{"intent": "COMPLEX_ANALYSIS", "confidence": 0.55, "strategy": "rrf_fusion"}`}
	classifier := newTestClassifier(provider)

	got := classifier.Classify(context.Background(), "compare them somehow", nil, nil)

	if got.Intent != IntentClarificationNeeded {
		t.Errorf("intent = %s, want %s after gate", got.Intent, IntentClarificationNeeded)
	}
	if got.SuggestedStrategy != constant.StrategyClarify {
		t.Errorf("strategy = %s, want %s", got.SuggestedStrategy, constant.StrategyClarify)
	}
	if got.RequiresDocuments {
		t.Error("gated verdict must not require documents")
	}
	if got.ClarificationQuestion == "" {
		t.Error("gated verdict must carry a clarification question")
	}
}

func TestClassifyConfidenceGateSparesSocialIntents(t *testing.T) {
	provider := &stubLLM{response: `{"intent": "GREETING", "confidence": 0.6, "strategy": "direct"}`}
	classifier := newTestClassifier(provider)

	got := classifier.Classify(context.Background(), "hiya", nil, nil)

	if got.Intent != IntentGreeting {
		t.Errorf("intent = %s, want %s (social intents pass the gate)", got.Intent, IntentGreeting)
	}
}

func TestClassifyFallsBackOnProviderError(t *testing.T) {
	provider := &stubLLM{err: errors.New("connection refused")}
	classifier := newTestClassifier(provider)

	got := classifier.Classify(context.Background(), "what invoices mention the office lease?", nil, nil)

	if got == nil {
		t.Fatal("Classify must never return nil")
	}
	// Rule fallback sits at 0.5 confidence, so the gate turns it into
	// a clarification.
	if got.Intent != IntentClarificationNeeded {
		t.Errorf("intent = %s, want %s", got.Intent, IntentClarificationNeeded)
	}
}

func TestClassifyFallsBackOnGarbageOutput(t *testing.T) {
	cases := []struct {
		name     string
		response string
	}{
		{"no json at all", "I think the user wants to search."},
		{"malformed json", `{"intent": "DOCUMENT_SEARCH", "confidence":`},
		{"unknown intent", `{"intent": "BANANA", "confidence": 0.99}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			classifier := newTestClassifier(&stubLLM{response: tc.response})
			got := classifier.Classify(context.Background(), "show my tax documents", nil, nil)
			if got == nil {
				t.Fatal("Classify must never return nil")
			}
			if got.Reasoning == "" || got.Reasoning[:8] != "Fallback" {
				t.Errorf("expected fallback verdict, got reasoning %q", got.Reasoning)
			}
		})
	}
}

func TestFallbackGreetingKeyword(t *testing.T) {
	classifier := newTestClassifier(&stubLLM{err: errors.New("down")})

	got := classifier.Classify(context.Background(), "hello there", nil, nil)

	if got.Intent != IntentGreeting {
		t.Errorf("intent = %s, want %s", got.Intent, IntentGreeting)
	}
	if got.SuggestedStrategy != constant.StrategyDirect {
		t.Errorf("strategy = %s, want %s", got.SuggestedStrategy, constant.StrategyDirect)
	}
}

func TestFallbackBareReferenceWithoutAntecedent(t *testing.T) {
	classifier := newTestClassifier(&stubLLM{err: errors.New("down")})

	got := classifier.Classify(context.Background(), "what about it?", nil, nil)

	if got.Intent != IntentClarificationNeeded {
		t.Errorf("intent = %s, want %s", got.Intent, IntentClarificationNeeded)
	}
	if got.ClarificationQuestion == "" {
		t.Error("clarification verdict must carry a question")
	}
}

func TestFallbackBareReferenceWithPoolIsSearch(t *testing.T) {
	classifier := newTestClassifier(&stubLLM{err: errors.New("down")})
	pool := []store.PoolEntry{{DocumentID: "doc-1", Filename: "lease.pdf", Summary: "Office lease"}}

	got := classifier.Classify(context.Background(), "what about it?", nil, pool)

	// With an antecedent available the referential rule does not fire;
	// the generic fallback lands at 0.5 and the gate asks anyway, but
	// via the override path rather than the referential one.
	if got.Intent != IntentClarificationNeeded {
		t.Errorf("intent = %s, want %s", got.Intent, IntentClarificationNeeded)
	}
	if got.Reasoning != "Fallback: defaulting to document search" {
		t.Errorf("unexpected fallback path: %q", got.Reasoning)
	}
}

func TestClampConfidence(t *testing.T) {
	provider := &stubLLM{response: `{"intent": "DOCUMENT_SEARCH", "confidence": 1.7, "strategy": "two_stage"}`}
	classifier := newTestClassifier(provider)

	got := classifier.Classify(context.Background(), "find my receipts", nil, nil)

	if got.Confidence != 1.0 {
		t.Errorf("confidence = %v, want clamped to 1.0", got.Confidence)
	}
}

func TestRequiresRetrieval(t *testing.T) {
	cases := map[string]bool{
		IntentGreeting:            false,
		IntentChitchat:            false,
		IntentSimpleFactual:       false,
		IntentDocumentSearch:      true,
		IntentComplexAnalysis:     true,
		IntentDocumentDetailQuery: true,
		IntentClarificationNeeded: false,
	}
	for intentName, want := range cases {
		if got := RequiresRetrieval(intentName); got != want {
			t.Errorf("RequiresRetrieval(%s) = %v, want %v", intentName, got, want)
		}
	}
}
