package core_test

import (
	"testing"
	"time"

	"github.com/recallhq/recall-go-sdk/core"
)

func validRecord() core.MemoryRecord {
	return core.MemoryRecord{
		ID:           "rec-1",
		UserID:       "alice",
		BotNamespace: "support-bot",
		ChannelID:    "general",
		Role:         core.RoleUser,
		Content:      "hello",
		Timestamp:    time.Now(),
		Sequence:     1,
	}
}

func TestValidate(t *testing.T) {
	if err := validRecord().Validate(); err != nil {
		t.Fatalf("Failed to validate record: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*core.MemoryRecord)
	}{
		{"MissingUserID", func(r *core.MemoryRecord) { r.UserID = "" }},
		{"MissingNamespace", func(r *core.MemoryRecord) { r.BotNamespace = "" }},
		{"EmptyContent", func(r *core.MemoryRecord) { r.Content = "" }},
		{"UnknownRole", func(r *core.MemoryRecord) { r.Role = "narrator" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := validRecord()
			tc.mutate(&rec)
			err := rec.Validate()
			if !core.IsValidation(err) {
				t.Fatalf("Expected validation error, got %v", err)
			}
		})
	}
}

func TestBeforeOrdering(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	earlier := validRecord()
	earlier.Timestamp = base
	later := validRecord()
	later.Timestamp = base.Add(time.Second)

	if !earlier.Before(later) {
		t.Error("Expected earlier timestamp to order first")
	}
	if later.Before(earlier) {
		t.Error("Expected later timestamp to order last")
	}

	// Same timestamp: sequence breaks the tie.
	tied := validRecord()
	tied.Timestamp = base
	tied.Sequence = 2
	if !earlier.Before(tied) {
		t.Error("Expected lower sequence to order first on timestamp ties")
	}
}

func TestOwnerKeyString(t *testing.T) {
	key := core.OwnerKey{UserID: "alice", BotNamespace: "support-bot"}
	if got := key.String(); got != "support-bot/alice" {
		t.Errorf("Expected 'support-bot/alice', got %q", got)
	}
}
