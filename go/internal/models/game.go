package models

import (
	"time"
)

// LetterState defines the outcome recorded for a letter of the rosco.
type LetterState string

const (
	LetterStatePending     LetterState = "pending"
	LetterStateCorrect     LetterState = "correct"
	LetterStateIncorrect   LetterState = "incorrect"
	LetterStatePasapalabra LetterState = "pasapalabra"
)

// Valid reports whether s is one of the known letter states.
func (s LetterState) Valid() bool {
	switch s {
	case LetterStatePending, LetterStateCorrect, LetterStateIncorrect, LetterStatePasapalabra:
		return true
	}
	return false
}

// GameStatus defines the status of a game.
type GameStatus string

const (
	GameStatusPaused   GameStatus = "paused"
	GameStatusActive   GameStatus = "active"
	GameStatusFinished GameStatus = "finished"
)

// Valid reports whether s is one of the known game statuses.
func (s GameStatus) Valid() bool {
	switch s {
	case GameStatusPaused, GameStatusActive, GameStatusFinished:
		return true
	}
	return false
}

// Letter is a single slot of the rosco. Position indexes into Alphabet.
type Letter struct {
	Char     string      `json:"char"`
	State    LetterState `json:"state"`
	Position int         `json:"position"`
}

// Game represents one timed round of the word game.
type Game struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	PlayerName  string     `json:"playerName,omitempty"`
	Status      GameStatus `json:"status"`
	TimeLimit   int        `json:"timeLimit"`   // seconds
	CurrentTime int        `json:"currentTime"` // seconds remaining, 0..TimeLimit
	Alphabet    []Letter   `json:"alphabet"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Clone returns a deep copy so callers can't mutate the alphabet of a stored game.
func (g Game) Clone() Game {
	out := g
	if g.Alphabet != nil {
		out.Alphabet = make([]Letter, len(g.Alphabet))
		copy(out.Alphabet, g.Alphabet)
	}
	return out
}

// LetterIndex returns the index of char in the game's alphabet or -1.
func (g Game) LetterIndex(char string) int {
	for i, l := range g.Alphabet {
		if l.Char == char {
			return i
		}
	}
	return -1
}

// CountByState tallies letters per state.
func (g Game) CountByState() map[LetterState]int {
	counts := make(map[LetterState]int, 4)
	for _, l := range g.Alphabet {
		counts[l.State]++
	}
	return counts
}

// Scoring holds the point delta applied per letter outcome.
type Scoring struct {
	Correct     int `json:"correct" yaml:"correct"`
	Incorrect   int `json:"incorrect" yaml:"incorrect"`
	Pasapalabra int `json:"pasapalabra" yaml:"pasapalabra"`
}

// GameSettings holds process-wide defaults.
type GameSettings struct {
	TimeLimit int     `json:"timeLimit" yaml:"time_limit"`
	Scoring   Scoring `json:"scoring" yaml:"scoring"`
}

const (
	DefaultTimeLimit         = 300
	DefaultCorrectPoints     = 10
	DefaultIncorrectPoints   = -5
	DefaultPasapalabraPoints = 0
	MinTimeLimit             = 60
	MaxTimeLimit             = 3600
	MinNameLength            = 3
	MaxNameLength            = 50
)

// DefaultSettings returns the settings used when nothing is persisted.
func DefaultSettings() GameSettings {
	return GameSettings{
		TimeLimit: DefaultTimeLimit,
		Scoring: Scoring{
			Correct:     DefaultCorrectPoints,
			Incorrect:   DefaultIncorrectPoints,
			Pasapalabra: DefaultPasapalabraPoints,
		},
	}
}
