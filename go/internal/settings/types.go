package settings

import (
	"context"

	"github.com/mcdev12/pasapalabra/go/internal/storage"
)

// Store defines what the settings app needs from the persistent store
type Store interface {
	Load(ctx context.Context) storage.Envelope
	Save(ctx context.Context, p storage.Partial) error
}

// Update holds the top-level settings fields to replace. Nil fields are kept.
type Update struct {
	TimeLimit *int
	Scoring   *ScoringUpdate
}

// ScoringUpdate holds the point deltas to replace. Nil fields are kept.
type ScoringUpdate struct {
	Correct     *int
	Incorrect   *int
	Pasapalabra *int
}

const (
	msgUpdateSettings = "Error updating configuration"
	msgUpdateScoring  = "Error updating scoring system"
	msgReset          = "Error restoring default configuration"
)
