package core

import (
	"fmt"
	"time"
)

// Role identifies who authored a conversational turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MemoryType classifies what a record holds.
type MemoryType string

const (
	TypeConversation MemoryType = "conversation"
	TypeFact         MemoryType = "fact"
	TypeSummary      MemoryType = "summary"
)

// MemoryRecord is the atomic unit of stored conversational memory.
// Records are immutable once durably written; retries that re-submit the
// same ID are absorbed by the backends rather than duplicated.
//
// Embedding and Metadata are produced by external collaborators (the
// embedding provider and the emotion/metadata tagger) before Store; the
// engine persists both opaquely.
type MemoryRecord struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	BotNamespace string            `json:"bot_namespace"`
	ChannelID    string            `json:"channel_id"`
	Role         Role              `json:"role"`
	Content      string            `json:"content"`
	Embedding    []float32         `json:"embedding,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	Sequence     uint64            `json:"sequence"`
	Type         MemoryType        `json:"memory_type"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Owner returns the key that scopes session state and sequence counters.
func (r MemoryRecord) Owner() OwnerKey {
	return OwnerKey{UserID: r.UserID, BotNamespace: r.BotNamespace}
}

// Channel returns the key that scopes cache entries.
func (r MemoryRecord) Channel() ChannelKey {
	return ChannelKey{OwnerKey: r.Owner(), ChannelID: r.ChannelID}
}

// Before reports whether r was written before other in the exact
// chronological order: timestamp first, sequence breaking ties.
func (r MemoryRecord) Before(other MemoryRecord) bool {
	if !r.Timestamp.Equal(other.Timestamp) {
		return r.Timestamp.Before(other.Timestamp)
	}
	return r.Sequence < other.Sequence
}

// Validate checks the fields a caller must populate before Store.
func (r MemoryRecord) Validate() error {
	switch {
	case r.UserID == "":
		return &ValidationError{Field: "user_id", Reason: "must not be empty"}
	case r.BotNamespace == "":
		return &ValidationError{Field: "bot_namespace", Reason: "must not be empty"}
	case r.Role != RoleUser && r.Role != RoleAssistant:
		return &ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role %q", r.Role)}
	case r.Content == "":
		return &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	return nil
}

// OwnerKey is the (user, bot namespace) tuple that scopes session windows
// and the per-owner sequence counter.
type OwnerKey struct {
	UserID       string
	BotNamespace string
}

func (k OwnerKey) String() string {
	return k.BotNamespace + "/" + k.UserID
}

// ChannelKey extends OwnerKey with the channel, scoping cache entries.
type ChannelKey struct {
	OwnerKey
	ChannelID string
}

func (k ChannelKey) String() string {
	return k.OwnerKey.String() + "/" + k.ChannelID
}
