package workflow

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"ai-docqa-be/internal/constant"
	"ai-docqa-be/pkg/llm"
	"ai-docqa-be/pkg/rag/contextpool"
	"ai-docqa-be/pkg/rag/intent"
	"ai-docqa-be/pkg/rag/retrieval"
	"ai-docqa-be/pkg/store"
)

type stubClassifier struct {
	verdict *store.Classification
	calls   int
}

func (s *stubClassifier) Classify(ctx context.Context, question string, chatHistory []llm.Message, pool []store.PoolEntry) *store.Classification {
	s.calls++
	v := *s.verdict
	return &v
}

type stubRetriever struct {
	results  []store.FusedResult
	err      error
	calls    int
	query    string
	strategy string
	targets  []string
}

func (s *stubRetriever) Retrieve(ctx context.Context, query string, strategy string, targetDocumentIDs []string) ([]store.FusedResult, error) {
	s.calls++
	s.query = query
	s.strategy = strategy
	s.targets = targetDocumentIDs
	return s.results, s.err
}

type stubResponder struct {
	directReply   string
	synthReply    string
	synthErr      error
	synthCalls    int
	synthEvidence []store.FusedResult
}

func (s *stubResponder) Direct(ctx context.Context, question string, chatHistory []llm.Message) (string, error) {
	return s.directReply, nil
}

func (s *stubResponder) Synthesize(ctx context.Context, question string, evidence []store.FusedResult, chatHistory []llm.Message) (string, error) {
	s.synthCalls++
	s.synthEvidence = evidence
	if s.synthErr != nil {
		return "", s.synthErr
	}
	return s.synthReply, nil
}

type stubResolver struct {
	metadata map[string]contextpool.CitedDocument
	err      error
}

func (s *stubResolver) Resolve(ctx context.Context, userID string, documentIDs []string) (map[string]contextpool.CitedDocument, error) {
	return s.metadata, s.err
}

type mapAnswerCache struct {
	entries map[string]string
}

func (m *mapAnswerCache) Get(ctx context.Context, key string) (string, bool) {
	v, ok := m.entries[key]
	return v, ok
}

func (m *mapAnswerCache) Set(ctx context.Context, key string, value string) {
	if m.entries == nil {
		m.entries = map[string]string{}
	}
	m.entries[key] = value
}

type deps struct {
	classifier *stubClassifier
	retriever  *stubRetriever
	responder  *stubResponder
	resolver   *stubResolver
	answers    *mapAnswerCache
}

func newTestCoordinator(t *testing.T, d *deps, policy ApprovalPolicy) *Coordinator {
	t.Helper()
	if d.classifier == nil {
		d.classifier = &stubClassifier{verdict: searchVerdict()}
	}
	if d.retriever == nil {
		d.retriever = &stubRetriever{}
	}
	if d.responder == nil {
		d.responder = &stubResponder{directReply: "hi!", synthReply: "grounded answer"}
	}
	if d.resolver == nil {
		d.resolver = &stubResolver{}
	}
	if d.answers == nil {
		d.answers = &mapAnswerCache{}
	}
	poolManager := contextpool.NewManager(contextpool.DefaultConfig(), log.New(io.Discard, "", 0))
	return NewCoordinator(
		d.classifier, d.retriever, d.responder, d.resolver,
		poolManager, d.answers, policy, log.New(io.Discard, "", 0),
	)
}

func searchVerdict() *store.Classification {
	return &store.Classification{
		Intent:            intent.IntentDocumentSearch,
		Confidence:        0.95,
		SuggestedStrategy: constant.StrategyTwoStage,
		RequiresDocuments: true,
		EstimatedCost:     3,
	}
}

func evidenceSet() []store.FusedResult {
	return []store.FusedResult{
		{DocumentID: "d1", Score: 0.9, Text: "parking ticket #1", Passes: []string{store.VectorTypeChunk}},
		{DocumentID: "d2", Score: 0.7, Text: "parking ticket #2", Passes: []string{store.VectorTypeChunk}},
	}
}

func TestGreetingAnswersDirectly(t *testing.T) {
	d := &deps{classifier: &stubClassifier{verdict: &store.Classification{
		Intent: intent.IntentGreeting, Confidence: 0.95, SuggestedStrategy: constant.StrategyDirect,
	}}}
	coordinator := newTestCoordinator(t, d, DefaultApprovalPolicy())
	conv := &store.Conversation{ID: "c1", UserID: "u1"}

	outcome, err := coordinator.Process(context.Background(), conv, Question{Text: "hello"})
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	if outcome.Answer != "hi!" {
		t.Errorf("answer = %q, want direct reply", outcome.Answer)
	}
	if conv.Workflow.CurrentStep != StepCompleted {
		t.Errorf("step = %s, want %s", conv.Workflow.CurrentStep, StepCompleted)
	}
	if d.retriever.calls != 0 {
		t.Error("greeting must not hit the index")
	}
	if len(conv.Turns) != 2 {
		t.Errorf("turn log length = %d, want question + answer", len(conv.Turns))
	}
}

func TestSearchSuspendsForApproval(t *testing.T) {
	d := &deps{}
	coordinator := newTestCoordinator(t, d, DefaultApprovalPolicy())
	conv := &store.Conversation{ID: "c1", UserID: "u1"}

	outcome, err := coordinator.Process(context.Background(), conv, Question{Text: "find all my parking tickets"})
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	if outcome.PendingApproval != constant.ApprovalKindSearch {
		t.Errorf("pending approval = %q, want %q", outcome.PendingApproval, constant.ApprovalKindSearch)
	}
	if conv.Workflow.CurrentStep != StepAwaitingApproval {
		t.Errorf("step = %s, want %s", conv.Workflow.CurrentStep, StepAwaitingApproval)
	}
	if conv.Workflow.PendingQuery != "find all my parking tickets" {
		t.Errorf("pending query = %q", conv.Workflow.PendingQuery)
	}
	if d.retriever.calls != 0 {
		t.Error("retrieval must wait for approval")
	}
}

func TestMismatchedApprovalActionIsIdempotentReprompt(t *testing.T) {
	d := &deps{}
	coordinator := newTestCoordinator(t, d, DefaultApprovalPolicy())
	conv := &store.Conversation{ID: "c1", UserID: "u1"}

	first, err := coordinator.Process(context.Background(), conv, Question{Text: "find my parking tickets"})
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	for i := 0; i < 2; i++ {
		again, err := coordinator.Process(context.Background(), conv, Question{Action: constant.ApprovalKindAnalysis})
		if err != nil {
			t.Fatalf("re-prompt %d error: %v", i, err)
		}
		if again.PendingApproval != first.PendingApproval {
			t.Errorf("re-prompt pending = %q, want %q", again.PendingApproval, first.PendingApproval)
		}
		if again.Classification.Intent != first.Classification.Intent ||
			again.Classification.SuggestedStrategy != first.Classification.SuggestedStrategy {
			t.Error("re-prompt must carry the identical classification and strategy")
		}
	}

	if d.classifier.calls != 1 {
		t.Errorf("classifier called %d times, want 1 (no reclassification)", d.classifier.calls)
	}
	if d.retriever.calls != 0 {
		t.Error("mismatched action must not trigger retrieval")
	}
}

func TestApprovedSearchRetrievesAndSeedsPool(t *testing.T) {
	d := &deps{
		retriever: &stubRetriever{results: evidenceSet()},
		resolver: &stubResolver{metadata: map[string]contextpool.CitedDocument{
			"d1": {DocumentID: "d1", Filename: "ticket1.pdf", Summary: "Parking fine, March"},
			"d2": {DocumentID: "d2", Filename: "ticket2.pdf", Summary: "Parking fine, June"},
		}},
	}
	coordinator := newTestCoordinator(t, d, DefaultApprovalPolicy())
	conv := &store.Conversation{ID: "c1", UserID: "u1"}

	_, err := coordinator.Process(context.Background(), conv, Question{Text: "find all my parking tickets"})
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	outcome, err := coordinator.Process(context.Background(), conv, Question{Action: constant.ApprovalKindSearch})
	if err != nil {
		t.Fatalf("resume error: %v", err)
	}

	if d.retriever.query != "find all my parking tickets" {
		t.Errorf("retrieved query = %q, want the pending query", d.retriever.query)
	}
	if d.retriever.strategy != constant.StrategyTwoStage {
		t.Errorf("strategy = %q, want the classified strategy", d.retriever.strategy)
	}
	if outcome.Answer == "" {
		t.Error("resumed question must produce an answer")
	}
	for i := 1; i < len(outcome.Evidence); i++ {
		if outcome.Evidence[i].Score > outcome.Evidence[i-1].Score {
			t.Error("evidence must stay score-descending")
		}
	}

	if len(conv.Pool) != 2 {
		t.Fatalf("pool size = %d, want one entry per returned document", len(conv.Pool))
	}
	for _, entry := range conv.Pool {
		if entry.Filename == "" {
			t.Errorf("pool entry %s missing resolved metadata", entry.DocumentID)
		}
	}
	if conv.Pool[0].DocumentID != "d1" || conv.Pool[0].Relevance != 0.9 {
		t.Errorf("pool head = %+v, want d1 seeded from score 0.9", conv.Pool[0])
	}
	if conv.Workflow.CurrentStep != StepCompleted {
		t.Errorf("step = %s, want %s", conv.Workflow.CurrentStep, StepCompleted)
	}
	if conv.Workflow.StrategyUsed != constant.StrategyTwoStage {
		t.Errorf("strategyUsed = %q", conv.Workflow.StrategyUsed)
	}
}

func TestAutoApproveAllSkipsTheGate(t *testing.T) {
	d := &deps{retriever: &stubRetriever{results: evidenceSet()}}
	coordinator := newTestCoordinator(t, d, ApprovalPolicy{AutoApproveAll: true})
	conv := &store.Conversation{ID: "c1", UserID: "u1"}

	outcome, err := coordinator.Process(context.Background(), conv, Question{Text: "find my invoices"})
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if outcome.Answer == "" || outcome.PendingApproval != "" {
		t.Errorf("outcome = %+v, want a completed answer with no gate", outcome)
	}
	if d.retriever.calls != 1 {
		t.Errorf("retriever calls = %d, want 1", d.retriever.calls)
	}
}

func TestAutoApproveHighConfidenceRespectsThreshold(t *testing.T) {
	policy := ApprovalPolicy{AutoApproveHighConfidence: true, HighConfidence: 0.9}

	confident := searchVerdict() // 0.95
	d := &deps{classifier: &stubClassifier{verdict: confident}, retriever: &stubRetriever{results: evidenceSet()}}
	coordinator := newTestCoordinator(t, d, policy)
	conv := &store.Conversation{ID: "c1", UserID: "u1"}
	outcome, err := coordinator.Process(context.Background(), conv, Question{Text: "find my invoices"})
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if outcome.PendingApproval != "" {
		t.Error("confidence 0.95 must skip the gate")
	}

	hesitant := searchVerdict()
	hesitant.Confidence = 0.85
	d2 := &deps{classifier: &stubClassifier{verdict: hesitant}}
	coordinator2 := newTestCoordinator(t, d2, policy)
	conv2 := &store.Conversation{ID: "c2", UserID: "u1"}
	outcome2, err := coordinator2.Process(context.Background(), conv2, Question{Text: "find my invoices"})
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if outcome2.PendingApproval == "" {
		t.Error("confidence 0.85 must still require approval")
	}
}

func TestEmptyRetrievalBecomesDerivedClarification(t *testing.T) {
	d := &deps{retriever: &stubRetriever{err: retrieval.ErrNoEvidence}}
	coordinator := newTestCoordinator(t, d, ApprovalPolicy{AutoApproveAll: true})
	conv := &store.Conversation{ID: "c1", UserID: "u1"}

	outcome, err := coordinator.Process(context.Background(), conv, Question{Text: "find my unicorn certificates"})
	if err != nil {
		t.Fatalf("empty retrieval must not be an error, got: %v", err)
	}

	if outcome.PendingClarification == "" {
		t.Fatal("expected a clarification prompt")
	}
	if !strings.Contains(outcome.PendingClarification, "unicorn certificates") {
		t.Errorf("prompt %q must be derived from the failed query", outcome.PendingClarification)
	}
	if conv.Workflow.CurrentStep != StepAwaitingClarification {
		t.Errorf("step = %s, want %s", conv.Workflow.CurrentStep, StepAwaitingClarification)
	}
	// the exchange is logged so the follow-up re-enters with context
	if len(conv.Turns) != 2 {
		t.Errorf("turn log length = %d, want the suspended exchange", len(conv.Turns))
	}
}

func TestClarificationIntentSuspends(t *testing.T) {
	d := &deps{classifier: &stubClassifier{verdict: &store.Classification{
		Intent:                intent.IntentClarificationNeeded,
		Confidence:            0.6,
		SuggestedStrategy:     constant.StrategyClarify,
		ClarificationQuestion: "Which document do you mean?",
	}}}
	coordinator := newTestCoordinator(t, d, DefaultApprovalPolicy())
	conv := &store.Conversation{ID: "c1", UserID: "u1"}

	outcome, err := coordinator.Process(context.Background(), conv, Question{Text: "what about it?"})
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if outcome.PendingClarification != "Which document do you mean?" {
		t.Errorf("pending clarification = %q", outcome.PendingClarification)
	}
	if conv.Workflow.CurrentStep != StepAwaitingClarification {
		t.Errorf("step = %s", conv.Workflow.CurrentStep)
	}
}

func TestClarificationAnswerReentersAsFreshQuestion(t *testing.T) {
	verdict := &store.Classification{
		Intent:                intent.IntentClarificationNeeded,
		Confidence:            0.5,
		SuggestedStrategy:     constant.StrategyClarify,
		ClarificationQuestion: "Which topic?",
	}
	d := &deps{classifier: &stubClassifier{verdict: verdict}, retriever: &stubRetriever{results: evidenceSet()}}
	coordinator := newTestCoordinator(t, d, ApprovalPolicy{AutoApproveAll: true})
	conv := &store.Conversation{ID: "c1", UserID: "u1"}

	if _, err := coordinator.Process(context.Background(), conv, Question{Text: "tell me more"}); err != nil {
		t.Fatalf("Process error: %v", err)
	}

	// user answers, classifier now resolves a real intent
	*verdict = *searchVerdict()
	outcome, err := coordinator.Process(context.Background(), conv, Question{Text: "the parking tickets"})
	if err != nil {
		t.Fatalf("re-entry error: %v", err)
	}

	if outcome.Answer == "" {
		t.Error("re-entered question must run the normal pipeline to completion")
	}
	if d.classifier.calls != 2 {
		t.Errorf("classifier calls = %d, want 2 (ordinary reclassification)", d.classifier.calls)
	}
}

func TestSynthesisFailurePreservesEvidenceForRetry(t *testing.T) {
	responder := &stubResponder{synthErr: errors.New("model overloaded")}
	d := &deps{retriever: &stubRetriever{results: evidenceSet()}, responder: responder}
	coordinator := newTestCoordinator(t, d, ApprovalPolicy{AutoApproveAll: true})
	conv := &store.Conversation{ID: "c1", UserID: "u1"}

	outcome, err := coordinator.Process(context.Background(), conv, Question{Text: "find my parking tickets"})
	if !errors.Is(err, ErrAnswerSynthesis) {
		t.Fatalf("err = %v, want ErrAnswerSynthesis", err)
	}
	if len(outcome.Evidence) != 2 {
		t.Errorf("outcome evidence = %d results, want partial evidence preserved", len(outcome.Evidence))
	}
	if len(conv.Workflow.PendingEvidence) != 2 {
		t.Fatalf("workflow must keep the evidence for retry")
	}

	// retry: synthesizer recovers, retrieval must not run again
	responder.synthErr = nil
	responder.synthReply = "here are your tickets"
	retried, err := coordinator.Process(context.Background(), conv, Question{Text: "find my parking tickets"})
	if err != nil {
		t.Fatalf("retry error: %v", err)
	}
	if retried.Answer != "here are your tickets" {
		t.Errorf("retry answer = %q", retried.Answer)
	}
	if d.retriever.calls != 1 {
		t.Errorf("retriever calls = %d, want 1 (retry skips re-retrieval)", d.retriever.calls)
	}
	if len(conv.Workflow.PendingEvidence) != 0 {
		t.Error("pending evidence must be cleared after a successful retry")
	}
}

func TestSimpleFactualCacheHitAnswersDirectly(t *testing.T) {
	answers := &mapAnswerCache{entries: map[string]string{
		"answer:u1:when does the lease expire": "The lease expires in December 2026.",
	}}
	d := &deps{
		classifier: &stubClassifier{verdict: &store.Classification{
			Intent: intent.IntentSimpleFactual, Confidence: 0.92, SuggestedStrategy: constant.StrategySummaryOnly,
		}},
		answers: answers,
	}
	coordinator := newTestCoordinator(t, d, DefaultApprovalPolicy())
	conv := &store.Conversation{ID: "c1", UserID: "u1"}

	outcome, err := coordinator.Process(context.Background(), conv, Question{Text: "When does  the lease EXPIRE"})
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if outcome.Answer != "The lease expires in December 2026." {
		t.Errorf("answer = %q, want the cached answer", outcome.Answer)
	}
	if d.retriever.calls != 0 {
		t.Error("cache hit must skip retrieval")
	}
}

func TestSimpleFactualCacheMissRetrievesWithoutApproval(t *testing.T) {
	d := &deps{
		classifier: &stubClassifier{verdict: &store.Classification{
			Intent: intent.IntentSimpleFactual, Confidence: 0.85, SuggestedStrategy: constant.StrategySummaryOnly,
		}},
		retriever: &stubRetriever{results: evidenceSet()},
	}
	coordinator := newTestCoordinator(t, d, DefaultApprovalPolicy())
	conv := &store.Conversation{ID: "c1", UserID: "u1"}

	outcome, err := coordinator.Process(context.Background(), conv, Question{Text: "when does the lease expire?"})
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	if outcome.PendingApproval != "" {
		t.Errorf("pending approval = %q, simple lookups must not need consent", outcome.PendingApproval)
	}
	if outcome.Answer != "grounded answer" {
		t.Errorf("answer = %q, want a synthesized answer", outcome.Answer)
	}
	if d.retriever.calls != 1 {
		t.Errorf("retriever calls = %d, want exactly one pass", d.retriever.calls)
	}
	if conv.Workflow.CurrentStep != StepCompleted {
		t.Errorf("step = %s, want %s", conv.Workflow.CurrentStep, StepCompleted)
	}
}

func TestExplicitDocumentsNarrowRetrieval(t *testing.T) {
	d := &deps{retriever: &stubRetriever{results: evidenceSet()}}
	coordinator := newTestCoordinator(t, d, ApprovalPolicy{AutoApproveAll: true})
	conv := &store.Conversation{ID: "c1", UserID: "u1"}

	_, err := coordinator.Process(context.Background(), conv, Question{
		Text:                "summarize the lease",
		ExplicitDocumentIDs: []string{"doc-lease"},
	})
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if len(d.retriever.targets) != 1 || d.retriever.targets[0] != "doc-lease" {
		t.Errorf("retrieval targets = %v, want the explicit documents", d.retriever.targets)
	}
}
