package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"ai-docqa-be/internal/constant"
	"ai-docqa-be/pkg/llm"
	"ai-docqa-be/pkg/store"
)

// Intent constants
const (
	IntentGreeting            = "GREETING"
	IntentChitchat            = "CHITCHAT"
	IntentSimpleFactual       = "SIMPLE_FACTUAL"
	IntentDocumentSearch      = "DOCUMENT_SEARCH"
	IntentComplexAnalysis     = "COMPLEX_ANALYSIS"
	IntentDocumentDetailQuery = "DOCUMENT_DETAIL_QUERY"
	IntentClarificationNeeded = "CLARIFICATION_NEEDED"
)

// DefaultConfidenceThreshold is the gate below which any retrieval
// intent is rewritten to CLARIFICATION_NEEDED.
const DefaultConfidenceThreshold = 0.8

var knownIntents = map[string]bool{
	IntentGreeting:            true,
	IntentChitchat:            true,
	IntentSimpleFactual:       true,
	IntentDocumentSearch:      true,
	IntentComplexAnalysis:     true,
	IntentDocumentDetailQuery: true,
	IntentClarificationNeeded: true,
}

// RequiresRetrieval reports whether an intent needs the vector index.
func RequiresRetrieval(intentName string) bool {
	switch intentName {
	case IntentDocumentSearch, IntentComplexAnalysis, IntentDocumentDetailQuery:
		return true
	}
	return false
}

// Classifier scores a question's intent with a single LLM call and a
// deterministic rule fallback. Classify never returns an error: any
// internal failure degrades to the rules.
type Classifier struct {
	llmProvider llm.LLMProvider
	threshold   float64
	logger      *log.Logger
}

func NewClassifier(llmProvider llm.LLMProvider, threshold float64, logger *log.Logger) *Classifier {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	return &Classifier{
		llmProvider: llmProvider,
		threshold:   threshold,
		logger:      logger,
	}
}

// Classify analyzes the question against the conversation history and
// the pool of documents already in play.
func (c *Classifier) Classify(
	ctx context.Context,
	question string,
	history []llm.Message,
	pool []store.PoolEntry,
) *store.Classification {

	classification := c.classifyWithModel(ctx, question, history, pool)
	if classification == nil {
		classification = c.fallback(question, history, pool)
	}

	c.applyConfidenceGate(classification)

	c.logger.Printf("[INTENT] %s (confidence: %.2f, strategy: %s)",
		classification.Intent, classification.Confidence, classification.SuggestedStrategy)

	return classification
}

func (c *Classifier) classifyWithModel(
	ctx context.Context,
	question string,
	history []llm.Message,
	pool []store.PoolEntry,
) *store.Classification {

	prompt := c.buildPrompt(question, history, pool)

	response, err := c.llmProvider.Generate(ctx, prompt, llm.WithTemperature(0.0))
	if err != nil {
		c.logger.Printf("[WARN] Intent model call failed, using rule fallback: %v", err)
		return nil
	}

	classification, err := c.parseClassification(response, pool)
	if err != nil {
		c.logger.Printf("[WARN] Intent parsing failed, using rule fallback: %v", err)
		return nil
	}

	return classification
}

func (c *Classifier) buildPrompt(question string, history []llm.Message, pool []store.PoolEntry) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString("You are an intent analyzer for a document question-answering assistant.\n")
	prompt.WriteString("Your ONLY job is to classify what the user wants. You do NOT answer questions.\n")
	prompt.WriteString("</system>\n\n")

	prompt.WriteString("<known_documents>\n")
	if len(pool) == 0 {
		prompt.WriteString("NONE: no documents are in play yet for this conversation.\n")
	} else {
		for i, entry := range pool {
			prompt.WriteString(fmt.Sprintf("  %d. \"%s\" - %s\n", i+1, entry.Filename, truncate(entry.Summary, 120)))
		}
	}
	prompt.WriteString("</known_documents>\n\n")

	if len(history) > 0 {
		prompt.WriteString("<recent_history>\n")
		start := len(history) - 4
		if start < 0 {
			start = 0
		}
		for _, msg := range history[start:] {
			prompt.WriteString(fmt.Sprintf("%s: %s\n", msg.Role, truncate(msg.Content, 200)))
		}
		prompt.WriteString("</recent_history>\n\n")
	}

	prompt.WriteString("<user_question>\n")
	prompt.WriteString(question)
	prompt.WriteString("\n</user_question>\n\n")

	prompt.WriteString("<intent_definitions>\n")
	prompt.WriteString("Choose ONE intent:\n\n")
	prompt.WriteString("GREETING: greeting or farewell, no information need\n")
	prompt.WriteString("CHITCHAT: small talk unrelated to documents\n")
	prompt.WriteString("SIMPLE_FACTUAL: short factual question possibly answerable from documents already in play\n")
	prompt.WriteString("DOCUMENT_SEARCH: user wants documents found on a topic (e.g. 'find my parking tickets')\n")
	prompt.WriteString("COMPLEX_ANALYSIS: answer requires combining or comparing several documents\n")
	prompt.WriteString("DOCUMENT_DETAIL_QUERY: user asks about the contents of a specific known document\n")
	prompt.WriteString("CLARIFICATION_NEEDED: the question is too vague or ambiguous to act on\n")
	prompt.WriteString("</intent_definitions>\n\n")

	prompt.WriteString("<strategy_definitions>\n")
	prompt.WriteString("Suggest ONE retrieval strategy:\n")
	prompt.WriteString("direct: no retrieval needed\n")
	prompt.WriteString("summary_only: match against whole-document summaries\n")
	prompt.WriteString("chunks_only: match against fine-grained passages\n")
	prompt.WriteString("two_stage: narrow by summaries, then refine with passages\n")
	prompt.WriteString("rrf_fusion: run summary and passage searches and fuse the rankings\n")
	prompt.WriteString("</strategy_definitions>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON:\n")
	prompt.WriteString("{\n")
	prompt.WriteString("  \"intent\": \"GREETING|CHITCHAT|SIMPLE_FACTUAL|DOCUMENT_SEARCH|COMPLEX_ANALYSIS|DOCUMENT_DETAIL_QUERY|CLARIFICATION_NEEDED\",\n")
	prompt.WriteString("  \"confidence\": 0.95,\n")
	prompt.WriteString("  \"strategy\": \"direct|summary_only|chunks_only|two_stage|rrf_fusion\",\n")
	prompt.WriteString("  \"requires_documents\": true,\n")
	prompt.WriteString("  \"requires_context\": false,\n")
	prompt.WriteString("  \"target_documents\": [1],\n")
	prompt.WriteString("  \"clarification_question\": \"question to ask if intent is CLARIFICATION_NEEDED, otherwise empty\",\n")
	prompt.WriteString("  \"reasoning\": \"Brief explanation\"\n")
	prompt.WriteString("}\n")
	prompt.WriteString("target_documents are 1-based indexes into <known_documents>.\n")
	prompt.WriteString("</output_format>")

	return prompt.String()
}

// wire format for the loosely-typed model output
type modelClassification struct {
	Intent                string  `json:"intent"`
	Confidence            float64 `json:"confidence"`
	Strategy              string  `json:"strategy"`
	RequiresDocuments     bool    `json:"requires_documents"`
	RequiresContext       bool    `json:"requires_context"`
	TargetDocuments       []int   `json:"target_documents"`
	ClarificationQuestion string  `json:"clarification_question"`
	Reasoning             string  `json:"reasoning"`
}

func (c *Classifier) parseClassification(response string, pool []store.PoolEntry) (*store.Classification, error) {
	jsonContent := extractJSON(response)
	if jsonContent == "" {
		return nil, fmt.Errorf("no JSON found in response")
	}

	var raw modelClassification
	if err := json.Unmarshal([]byte(jsonContent), &raw); err != nil {
		return nil, fmt.Errorf("JSON unmarshal failed: %w", err)
	}

	intentName := strings.ToUpper(strings.TrimSpace(raw.Intent))
	if !knownIntents[intentName] {
		return nil, fmt.Errorf("unknown intent %q", raw.Intent)
	}

	if raw.Confidence < 0 {
		raw.Confidence = 0
	}
	if raw.Confidence > 1 {
		raw.Confidence = 1
	}

	strategy := strings.ToLower(strings.TrimSpace(raw.Strategy))
	if strategy == "" {
		strategy = defaultStrategyFor(intentName)
	}

	return &store.Classification{
		Intent:                intentName,
		Confidence:            raw.Confidence,
		SuggestedStrategy:     strategy,
		RequiresDocuments:     raw.RequiresDocuments || RequiresRetrieval(intentName),
		RequiresContext:       raw.RequiresContext,
		EstimatedCost:         estimatedCostFor(intentName),
		TargetDocumentIDs:     resolveTargetDocuments(raw.TargetDocuments, pool),
		ClarificationQuestion: raw.ClarificationQuestion,
		Reasoning:             raw.Reasoning,
	}, nil
}

// resolveTargetDocuments maps the model's 1-based <known_documents>
// indexes back to pool document ids. Out-of-range indexes are dropped.
func resolveTargetDocuments(indexes []int, pool []store.PoolEntry) []string {
	if len(indexes) == 0 || len(pool) == 0 {
		return nil
	}
	ids := make([]string, 0, len(indexes))
	seen := make(map[string]bool, len(indexes))
	for _, idx := range indexes {
		if idx < 1 || idx > len(pool) {
			continue
		}
		id := pool[idx-1].DocumentID
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}
	return ids
}

// applyConfidenceGate rewrites any low-confidence non-social verdict to
// a clarification turn. This is the exact gate the pipeline relies on
// to keep guesses away from expensive retrieval.
func (c *Classifier) applyConfidenceGate(classification *store.Classification) {
	if classification.Confidence >= c.threshold {
		return
	}
	if classification.Intent == IntentGreeting || classification.Intent == IntentChitchat {
		return
	}
	if classification.Intent != IntentClarificationNeeded {
		c.logger.Printf("[INTENT] Confidence %.2f below %.2f, overriding %s with clarification",
			classification.Confidence, c.threshold, classification.Intent)
	}
	classification.Intent = IntentClarificationNeeded
	classification.SuggestedStrategy = constant.StrategyClarify
	classification.RequiresDocuments = false
	if classification.ClarificationQuestion == "" {
		classification.ClarificationQuestion = "Could you tell me a bit more about what you are looking for?"
	}
}

var greetingKeywords = []string{
	"hi", "hello", "hey", "good morning", "good afternoon", "good evening",
	"thanks", "thank you", "bye", "goodbye",
}

var bareReferences = map[string]bool{
	"it": true, "this": true, "that": true, "these": true, "those": true,
	"they": true, "them": true, "more": true, "again": true, "why": true,
	"and": true, "what": true, "how": true,
}

// fallback is the deterministic rule path used when the model call or
// its output parsing fails.
func (c *Classifier) fallback(question string, history []llm.Message, pool []store.PoolEntry) *store.Classification {
	normalized := strings.ToLower(strings.TrimSpace(question))

	for _, kw := range greetingKeywords {
		if normalized == kw || strings.HasPrefix(normalized, kw+" ") || strings.HasPrefix(normalized, kw+",") {
			return &store.Classification{
				Intent:            IntentGreeting,
				Confidence:        0.9,
				SuggestedStrategy: constant.StrategyDirect,
				EstimatedCost:     estimatedCostFor(IntentGreeting),
				Reasoning:         "Fallback: greeting keyword match",
			}
		}
	}

	// Short referential questions with nothing to refer to cannot be
	// resolved without asking.
	words := strings.Fields(normalized)
	if len(words) <= 3 && len(history) == 0 && len(pool) == 0 {
		referential := len(words) == 0
		for _, w := range words {
			if bareReferences[strings.Trim(w, "?.!,")] {
				referential = true
				break
			}
		}
		if referential {
			return &store.Classification{
				Intent:                IntentClarificationNeeded,
				Confidence:            0.5,
				SuggestedStrategy:     constant.StrategyClarify,
				EstimatedCost:         estimatedCostFor(IntentClarificationNeeded),
				ClarificationQuestion: "I don't have enough context yet. What would you like to know about your documents?",
				Reasoning:             "Fallback: referential question with no antecedent",
			}
		}
	}

	return &store.Classification{
		Intent:            IntentDocumentSearch,
		Confidence:        0.5,
		SuggestedStrategy: defaultStrategyFor(IntentDocumentSearch),
		RequiresDocuments: true,
		EstimatedCost:     estimatedCostFor(IntentDocumentSearch),
		Reasoning:         "Fallback: defaulting to document search",
	}
}

func defaultStrategyFor(intentName string) string {
	switch intentName {
	case IntentGreeting, IntentChitchat:
		return constant.StrategyDirect
	case IntentSimpleFactual:
		return constant.StrategySummaryOnly
	case IntentDocumentDetailQuery:
		return constant.StrategyChunksOnly
	case IntentComplexAnalysis:
		return constant.StrategyRRFFusion
	case IntentClarificationNeeded:
		return constant.StrategyClarify
	default:
		return constant.StrategyTwoStage
	}
}

func estimatedCostFor(intentName string) int {
	switch intentName {
	case IntentGreeting, IntentChitchat, IntentClarificationNeeded:
		return 1 // at most one generation call
	case IntentComplexAnalysis:
		return 4 // embedding + two index passes + generation
	default:
		return 3 // embedding + index search + generation
	}
}

func extractJSON(response string) string {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return ""
	}

	return response[startIdx : endIdx+1]
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
