package memory

import (
	"time"

	"ai-docqa-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

// ConversationStateRepository caches the runtime conversation state
// (turn log, document pool, workflow record) per instance. The durable
// copy lives on the conversation row; this cache only avoids a reload
// on every turn.
type ConversationStateRepository struct {
	cache *cache.Cache
}

func NewConversationStateRepository() *ConversationStateRepository {
	// 1 hour default expiration, expired entries purged every 10 minutes
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &ConversationStateRepository{cache: c}
}

func (r *ConversationStateRepository) Save(state *store.Conversation) {
	r.cache.Set(state.ID, state, cache.DefaultExpiration)
}

func (r *ConversationStateRepository) Get(conversationID string) (*store.Conversation, bool) {
	if x, found := r.cache.Get(conversationID); found {
		return x.(*store.Conversation), true
	}
	return nil, false
}

func (r *ConversationStateRepository) Delete(conversationID string) {
	r.cache.Delete(conversationID)
}
