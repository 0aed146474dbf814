package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"ai-docqa-be/internal/constant"
	"ai-docqa-be/pkg/llm"
	"ai-docqa-be/pkg/rag/contextpool"
	"ai-docqa-be/pkg/rag/history"
	"ai-docqa-be/pkg/rag/intent"
	"ai-docqa-be/pkg/rag/retrieval"
	"ai-docqa-be/pkg/store"
)

// Pipeline steps. The current step is persisted in the conversation's
// workflow record, so a suspended question resumes after a restart from
// the conversation id plus the echoed action alone.
const (
	StepReceived              = "RECEIVED"
	StepClassified            = "CLASSIFIED"
	StepDirectAnswer          = "DIRECT_ANSWER"
	StepAwaitingClarification = "AWAITING_CLARIFICATION"
	StepAwaitingApproval      = "AWAITING_APPROVAL"
	StepRetrieving            = "RETRIEVING"
	StepAnswering             = "ANSWERING"
	StepCompleted             = "COMPLETED"
	StepFailed                = "FAILED"
)

// ErrAnswerSynthesis marks a synthesizer boundary failure. The evidence
// that was already retrieved is preserved in the workflow record, so a
// retry answers without re-running retrieval.
var ErrAnswerSynthesis = errors.New("answer synthesis failed")

// Question is one submitted request against a conversation.
type Question struct {
	Text                string
	ConversationID      string
	ExplicitDocumentIDs []string
	Action              string // approval kind echoed to resume a suspended question
}

// Outcome is what a processed question produces: exactly one of Answer,
// PendingApproval or PendingClarification is meaningful, plus the
// classification, evidence and a workflow state snapshot.
type Outcome struct {
	Answer               string
	PendingApproval      string
	PendingClarification string
	Classification       *store.Classification
	Evidence             []store.FusedResult
	State                store.WorkflowRecord
}

// Classifier produces an intent verdict; it never fails.
type Classifier interface {
	Classify(ctx context.Context, question string, chatHistory []llm.Message, pool []store.PoolEntry) *store.Classification
}

// Retriever runs a retrieval strategy and returns fused evidence.
type Retriever interface {
	Retrieve(ctx context.Context, query string, strategy string, targetDocumentIDs []string) ([]store.FusedResult, error)
}

// Responder is the generative boundary: direct conversational replies
// and evidence-grounded answers.
type Responder interface {
	Direct(ctx context.Context, question string, chatHistory []llm.Message) (string, error)
	Synthesize(ctx context.Context, question string, evidence []store.FusedResult, chatHistory []llm.Message) (string, error)
}

// DocumentResolver loads pool-seeding metadata for cited documents.
type DocumentResolver interface {
	Resolve(ctx context.Context, userID string, documentIDs []string) (map[string]contextpool.CitedDocument, error)
}

// AnswerCache is the layered lookup cache for previously synthesized
// simple answers.
type AnswerCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string)
}

// ApprovalPolicy decides when an expensive retrieval needs explicit
// client consent before it runs.
type ApprovalPolicy struct {
	AutoApproveAll            bool
	AutoApproveHighConfidence bool
	HighConfidence            float64 // confidence above which the gate is skipped
}

func DefaultApprovalPolicy() ApprovalPolicy {
	return ApprovalPolicy{HighConfidence: 0.9}
}

// Coordinator drives one question through the pipeline as a pure
// function of (question, classification, retrieval outcome, external
// action), with all durable position held in the conversation itself.
type Coordinator struct {
	classifier    Classifier
	retriever     Retriever
	responder     Responder
	resolver      DocumentResolver
	pool          *contextpool.Manager
	answers       AnswerCache
	policy        ApprovalPolicy
	historyWindow int
	logger        *log.Logger
	observer      func(step string)
}

func NewCoordinator(
	classifier Classifier,
	retriever Retriever,
	responder Responder,
	resolver DocumentResolver,
	pool *contextpool.Manager,
	answers AnswerCache,
	policy ApprovalPolicy,
	logger *log.Logger,
) *Coordinator {
	if policy.HighConfidence <= 0 {
		policy.HighConfidence = 0.9
	}
	return &Coordinator{
		classifier:    classifier,
		retriever:     retriever,
		responder:     responder,
		resolver:      resolver,
		pool:          pool,
		answers:       answers,
		policy:        policy,
		historyWindow: history.DefaultWindow,
		logger:        logger,
	}
}

// SetObserver registers a callback invoked on every step transition,
// used to stream progress to the client while a question is in flight.
func (c *Coordinator) SetObserver(fn func(step string)) {
	c.observer = fn
}

func (c *Coordinator) notify(step string) {
	if c.observer != nil {
		c.observer(step)
	}
}

// Process advances the conversation's workflow with one question. It
// mutates the conversation in place; the caller persists it and
// serializes turns on the same conversation.
func (c *Coordinator) Process(ctx context.Context, conversation *store.Conversation, question Question) (*Outcome, error) {
	wf := &conversation.Workflow

	switch wf.CurrentStep {
	case StepAwaitingApproval:
		return c.resumeFromApproval(ctx, conversation, question)
	case StepAnswering:
		if len(wf.PendingEvidence) > 0 && (question.Text == "" || question.Text == wf.PendingQuery) {
			return c.answer(ctx, conversation, wf.PendingQuery, wf.PendingEvidence)
		}
	}

	// Fresh question. A clarification answer re-enters here as ordinary
	// text; the suspended exchange is already in the turn log, so no
	// special re-classification path is needed.
	return c.startFresh(ctx, conversation, question)
}

func (c *Coordinator) startFresh(ctx context.Context, conversation *store.Conversation, question Question) (*Outcome, error) {
	wf := &conversation.Workflow
	*wf = store.WorkflowRecord{CurrentStep: StepReceived}
	c.notify(StepReceived)

	chatHistory := history.Window(conversation.Turns, c.historyWindow)

	classification := c.classifier.Classify(ctx, question.Text, chatHistory, conversation.Pool)
	if len(question.ExplicitDocumentIDs) > 0 {
		classification.TargetDocumentIDs = question.ExplicitDocumentIDs
	}
	wf.CurrentStep = StepClassified
	wf.Classification = classification
	wf.StrategyUsed = classification.SuggestedStrategy
	wf.APICallsSpent++
	c.notify(StepClassified)

	switch classification.Intent {
	case intent.IntentGreeting, intent.IntentChitchat:
		return c.answerDirect(ctx, conversation, question.Text, chatHistory)

	case intent.IntentClarificationNeeded:
		return c.suspendForClarification(conversation, question.Text, classification.ClarificationQuestion)

	case intent.IntentSimpleFactual:
		if cached, ok := c.lookupAnswer(ctx, conversation.UserID, question.Text); ok {
			c.logger.Printf("[WORKFLOW] Answer cache hit for conversation %s", conversation.ID)
			wf.CurrentStep = StepDirectAnswer
			return c.completeTurn(conversation, question.Text, cached, nil, nil), nil
		}
		return c.gateOrRetrieve(ctx, conversation, question.Text, classification)

	default:
		return c.gateOrRetrieve(ctx, conversation, question.Text, classification)
	}
}

func (c *Coordinator) answerDirect(ctx context.Context, conversation *store.Conversation, text string, chatHistory []llm.Message) (*Outcome, error) {
	wf := &conversation.Workflow
	wf.CurrentStep = StepDirectAnswer
	wf.StrategyUsed = constant.StrategyDirect
	c.notify(StepDirectAnswer)

	reply, err := c.responder.Direct(ctx, text, chatHistory)
	if err != nil {
		return c.fail(conversation, fmt.Errorf("direct response failed: %w", err))
	}
	wf.APICallsSpent++

	return c.completeTurn(conversation, text, reply, nil, nil), nil
}

// gateOrRetrieve applies the approval policy. Only the expensive
// retrieval intents need consent; a simple factual lookup goes straight
// to retrieval. Consent is also skipped when auto-approve-all is
// configured or the verdict is confident enough under
// auto-approve-high-confidence; otherwise the pipeline suspends until
// the client echoes the pending approval kind.
func (c *Coordinator) gateOrRetrieve(ctx context.Context, conversation *store.Conversation, query string, classification *store.Classification) (*Outcome, error) {
	wf := &conversation.Workflow

	skipGate := !intent.RequiresRetrieval(classification.Intent) ||
		c.policy.AutoApproveAll ||
		(c.policy.AutoApproveHighConfidence && classification.Confidence > c.policy.HighConfidence)

	if !skipGate {
		kind := approvalKindFor(classification.Intent)
		wf.CurrentStep = StepAwaitingApproval
		wf.PendingApproval = kind
		wf.PendingQuery = query
		c.notify(StepAwaitingApproval)
		c.logger.Printf("[WORKFLOW] Suspended for %q approval (conversation %s)", kind, conversation.ID)
		return c.pendingApprovalOutcome(conversation), nil
	}

	return c.retrieve(ctx, conversation, query, classification)
}

// resumeFromApproval requires the action to match the pending kind.
// Anything else is an idempotent re-prompt with the stored
// classification; the question is never reclassified.
func (c *Coordinator) resumeFromApproval(ctx context.Context, conversation *store.Conversation, question Question) (*Outcome, error) {
	wf := &conversation.Workflow

	if question.Action != wf.PendingApproval {
		c.logger.Printf("[WORKFLOW] Action %q does not match pending %q, re-prompting", question.Action, wf.PendingApproval)
		return c.pendingApprovalOutcome(conversation), nil
	}

	query := wf.PendingQuery
	classification := wf.Classification
	wf.PendingApproval = ""
	return c.retrieve(ctx, conversation, query, classification)
}

func (c *Coordinator) retrieve(ctx context.Context, conversation *store.Conversation, query string, classification *store.Classification) (*Outcome, error) {
	wf := &conversation.Workflow
	wf.CurrentStep = StepRetrieving
	c.notify(StepRetrieving)

	strategy := classification.SuggestedStrategy
	switch strategy {
	case constant.StrategySummaryOnly, constant.StrategyChunksOnly, constant.StrategyTwoStage, constant.StrategyRRFFusion:
	default:
		strategy = constant.StrategyTwoStage
	}
	wf.StrategyUsed = strategy

	evidence, err := c.retriever.Retrieve(ctx, query, strategy, classification.TargetDocumentIDs)
	wf.APICallsSpent += classification.EstimatedCost
	if err != nil {
		if errors.Is(err, retrieval.ErrNoEvidence) {
			prompt := clarificationForEmptyRetrieval(query)
			return c.suspendForClarification(conversation, query, prompt)
		}
		return c.fail(conversation, fmt.Errorf("retrieval failed: %w", err))
	}

	return c.answer(ctx, conversation, query, evidence)
}

func (c *Coordinator) answer(ctx context.Context, conversation *store.Conversation, query string, evidence []store.FusedResult) (*Outcome, error) {
	wf := &conversation.Workflow
	wf.CurrentStep = StepAnswering
	c.notify(StepAnswering)

	chatHistory := history.Window(conversation.Turns, c.historyWindow)

	text, err := c.responder.Synthesize(ctx, query, evidence, chatHistory)
	if err != nil {
		wf.PendingQuery = query
		wf.PendingEvidence = evidence
		c.logger.Printf("[ERROR] Synthesis failed for conversation %s, evidence preserved: %v", conversation.ID, err)
		return &Outcome{
			Classification: wf.Classification,
			Evidence:       evidence,
			State:          *wf,
		}, fmt.Errorf("%w: %v", ErrAnswerSynthesis, err)
	}
	wf.APICallsSpent++
	wf.PendingEvidence = nil

	cited := c.resolveCitations(ctx, conversation.UserID, evidence)
	outcome := c.completeTurn(conversation, query, text, evidence, cited)

	if wf.Classification != nil && wf.Classification.Intent == intent.IntentSimpleFactual {
		c.storeAnswer(ctx, conversation.UserID, query, text)
	}
	return outcome, nil
}

func (c *Coordinator) suspendForClarification(conversation *store.Conversation, question string, prompt string) (*Outcome, error) {
	wf := &conversation.Workflow
	wf.CurrentStep = StepAwaitingClarification
	wf.PendingPrompt = prompt
	c.notify(StepAwaitingClarification)
	wf.PendingQuery = question

	// The exchange goes into the log now, so the clarification answer
	// re-enters the pipeline with this context as ordinary history.
	c.pool.AppendTurn(conversation, store.RoleUser, question, 0)
	c.pool.AppendTurn(conversation, store.RoleAssistant, prompt, 0)

	return &Outcome{
		PendingClarification: prompt,
		Classification:       wf.Classification,
		State:                *wf,
	}, nil
}

// completeTurn is the single place a turn is committed: both turns
// appended, pool maintenance run exactly once, workflow closed out.
func (c *Coordinator) completeTurn(conversation *store.Conversation, question, answer string, evidence []store.FusedResult, cited []contextpool.CitedDocument) *Outcome {
	wf := &conversation.Workflow

	c.pool.AppendTurn(conversation, store.RoleUser, question, 0)
	c.pool.AppendTurn(conversation, store.RoleAssistant, answer, estimateTokens(answer))
	c.pool.UpdatePool(conversation, cited)

	wf.CurrentStep = StepCompleted
	wf.PendingApproval = ""
	c.notify(StepCompleted)
	wf.PendingQuery = ""
	wf.PendingPrompt = ""

	return &Outcome{
		Answer:         answer,
		Classification: wf.Classification,
		Evidence:       evidence,
		State:          *wf,
	}
}

func (c *Coordinator) fail(conversation *store.Conversation, err error) (*Outcome, error) {
	wf := &conversation.Workflow
	wf.CurrentStep = StepFailed
	c.notify(StepFailed)
	c.logger.Printf("[ERROR] Workflow failed for conversation %s: %v", conversation.ID, err)
	return &Outcome{
		Classification: wf.Classification,
		State:          *wf,
	}, err
}

func (c *Coordinator) pendingApprovalOutcome(conversation *store.Conversation) *Outcome {
	wf := &conversation.Workflow
	return &Outcome{
		PendingApproval: wf.PendingApproval,
		Classification:  wf.Classification,
		State:           *wf,
	}
}

// resolveCitations turns evidence into pool-seeding documents. Metadata
// lookup failures degrade to score-only entries: pool bookkeeping must
// never sink an answered turn.
func (c *Coordinator) resolveCitations(ctx context.Context, userID string, evidence []store.FusedResult) []contextpool.CitedDocument {
	if len(evidence) == 0 {
		return nil
	}

	ids := make([]string, 0, len(evidence))
	for _, ev := range evidence {
		ids = append(ids, ev.DocumentID)
	}

	metadata, err := c.resolver.Resolve(ctx, userID, ids)
	if err != nil {
		c.logger.Printf("[WARN] Citation metadata lookup failed, seeding pool from scores only: %v", err)
		metadata = nil
	}

	cited := make([]contextpool.CitedDocument, 0, len(evidence))
	for _, ev := range evidence {
		doc := contextpool.CitedDocument{DocumentID: ev.DocumentID, Score: ev.Score}
		if meta, ok := metadata[ev.DocumentID]; ok {
			doc.Filename = meta.Filename
			doc.Summary = meta.Summary
			doc.KeyConcepts = meta.KeyConcepts
		}
		cited = append(cited, doc)
	}
	return cited
}

func (c *Coordinator) lookupAnswer(ctx context.Context, userID, question string) (string, bool) {
	if c.answers == nil {
		return "", false
	}
	return c.answers.Get(ctx, answerCacheKey(userID, question))
}

func (c *Coordinator) storeAnswer(ctx context.Context, userID, question, answer string) {
	if c.answers == nil {
		return
	}
	c.answers.Set(ctx, answerCacheKey(userID, question), answer)
}

func answerCacheKey(userID, question string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	return fmt.Sprintf("answer:%s:%s", userID, normalized)
}

func approvalKindFor(intentName string) string {
	switch intentName {
	case intent.IntentComplexAnalysis:
		return constant.ApprovalKindAnalysis
	case intent.IntentDocumentDetailQuery:
		return constant.ApprovalKindDetail
	default:
		return constant.ApprovalKindSearch
	}
}

func clarificationForEmptyRetrieval(query string) string {
	return fmt.Sprintf(
		"I couldn't find anything in your documents matching %q. Could you rephrase it, or tell me which document you have in mind?",
		query,
	)
}

// estimateTokens is a rough 4-chars-per-token heuristic for turn
// bookkeeping.
func estimateTokens(text string) int {
	return len(text) / 4
}
