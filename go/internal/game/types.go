package game

import (
	"context"
	"strings"

	"github.com/mcdev12/pasapalabra/go/internal/models"
	"github.com/mcdev12/pasapalabra/go/internal/storage"
)

// Store defines what the game app needs from the persistent store
type Store interface {
	Load(ctx context.Context) storage.Envelope
	Save(ctx context.Context, p storage.Partial) error
	Delete(ctx context.Context, id string) error
}

// Broadcaster announces changes to the other contexts
type Broadcaster interface {
	EmitLetterChanged(ctx context.Context, gameID, letter string, state models.LetterState) error
	EmitPlayerAdded(ctx context.Context, gameID, player string) error
	EmitGameUpdated(ctx context.Context, gameID string, updates map[string]any) error
	EmitTimerTick(ctx context.Context, gameID string, currentTime int) error
}

// ScoringProvider supplies the point deltas used by CalculateScore
type ScoringProvider interface {
	Scoring() models.Scoring
}

// Update holds the fields UpdateGame merges into a game. Nil fields are kept.
type Update struct {
	Name        *string
	PlayerName  *string
	Status      *models.GameStatus
	TimeLimit   *int
	CurrentTime *int
}

// Fields returns the set fields keyed by their JSON names, as broadcast in
// game_updated events.
func (u Update) Fields() map[string]any {
	fields := make(map[string]any)
	if u.Name != nil {
		fields["name"] = strings.TrimSpace(*u.Name)
	}
	if u.PlayerName != nil {
		fields["playerName"] = strings.TrimSpace(*u.PlayerName)
	}
	if u.Status != nil {
		fields["status"] = string(*u.Status)
	}
	if u.TimeLimit != nil {
		fields["timeLimit"] = *u.TimeLimit
	}
	if u.CurrentTime != nil {
		fields["currentTime"] = *u.CurrentTime
	}
	return fields
}

func (u Update) validate() error {
	var errs []string
	if u.Name != nil {
		errs = append(errs, ValidateGameName(*u.Name)...)
	}
	if u.TimeLimit != nil {
		errs = append(errs, ValidateTimeLimit(*u.TimeLimit)...)
	}
	if u.Status != nil && !u.Status.Valid() {
		errs = append(errs, msgInvalidStatus)
	}
	return validationError(errs)
}

// apply merges u into g. CurrentTime is kept within [0, TimeLimit].
func (u Update) apply(g *models.Game) {
	if u.Name != nil {
		g.Name = strings.TrimSpace(*u.Name)
	}
	if u.PlayerName != nil {
		g.PlayerName = strings.TrimSpace(*u.PlayerName)
	}
	if u.Status != nil {
		g.Status = *u.Status
	}
	if u.TimeLimit != nil {
		g.TimeLimit = *u.TimeLimit
	}
	if u.CurrentTime != nil {
		g.CurrentTime = *u.CurrentTime
	}
	g.CurrentTime = min(max(g.CurrentTime, 0), g.TimeLimit)
}

// StatusUpdate is shorthand for an Update that only sets the status.
func StatusUpdate(s models.GameStatus) Update {
	return Update{Status: &s}
}
