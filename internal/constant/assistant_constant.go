package constant

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
	ChatMessageRoleSystem    = "system"
)

// Retrieval strategies
const (
	StrategySummaryOnly = "summary_only"
	StrategyChunksOnly  = "chunks_only"
	StrategyTwoStage    = "two_stage"
	StrategyRRFFusion   = "rrf_fusion"
	StrategyDirect      = "direct" // answer without touching the index
	StrategyClarify     = "ask_clarification"
)

// Approval kinds a client must echo to resume a suspended question.
const (
	ApprovalKindSearch   = "search"
	ApprovalKindAnalysis = "analysis"
	ApprovalKindDetail   = "detail"
)
