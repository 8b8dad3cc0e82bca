package game

import (
	"errors"
	"strings"
)

var (
	ErrGameNotFound  = errors.New("game not found")
	ErrInvalidLetter = errors.New("invalid letter")
	ErrPersist       = errors.New("failed to persist games")
)

// Messages recorded in LastError. They are shown to the user as-is.
const (
	msgGameNotFound  = "Game not found"
	msgInvalidLetter = "Invalid letter"
	msgInvalidState  = "Invalid letter state"
	msgInvalidStatus = "Invalid game status"
	msgSave          = "Error saving data"
	msgDelete        = "Error deleting game from storage"
	msgSync          = "Error syncing changes"
)

// ValidationError carries every validation message of a rejected request.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Errors, ", ")
}
