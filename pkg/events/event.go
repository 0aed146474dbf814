package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "ANSWER_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent helps embed common logic if needed,
// strictly creating valid implementations is preferred though.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Event type codes published by this service.
const (
	TypeDocumentCreated = "DOCUMENT_CREATED"
	TypeDocumentDeleted = "DOCUMENT_DELETED"
	TypeDocumentEmbed   = "DOCUMENT_EMBEDDED"
	TypeAnswerCompleted = "ANSWER_COMPLETED"
)

func NewDocumentCreated(documentID, userID, filename string) BaseEvent {
	return BaseEvent{
		Type: TypeDocumentCreated,
		Data: map[string]interface{}{
			"document_id": documentID,
			"user_id":     userID,
			"filename":    filename,
		},
		OccurredAt: time.Now(),
	}
}

func NewAnswerCompleted(conversationID, userID, strategy string, apiCalls int) BaseEvent {
	return BaseEvent{
		Type: TypeAnswerCompleted,
		Data: map[string]interface{}{
			"conversation_id": conversationID,
			"user_id":         userID,
			"strategy":        strategy,
			"api_calls":       apiCalls,
		},
		OccurredAt: time.Now(),
	}
}
