package models

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Alphabet is the fixed 27-letter Spanish rosco. Its order is part of the
// persisted contract since Letter.Position indexes into it.
var Alphabet = [27]string{
	"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L", "M",
	"N", "Ñ", "O", "P", "Q", "R", "S", "T", "U", "V", "W", "X", "Y", "Z",
}

var upper = cases.Upper(language.Spanish)

// NormalizeLetter composes and upper-cases a letter so "ñ", "ñ" and "Ñ" compare equal.
func NormalizeLetter(char string) string {
	return upper.String(norm.NFC.String(strings.TrimSpace(char)))
}

// NewAlphabet returns a fresh rosco with every letter pending.
func NewAlphabet() []Letter {
	letters := make([]Letter, len(Alphabet))
	for i, char := range Alphabet {
		letters[i] = Letter{
			Char:     char,
			State:    LetterStatePending,
			Position: i,
		}
	}
	return letters
}

// LetterPosition returns the index of char in Alphabet, matching case-insensitively, or -1.
func LetterPosition(char string) int {
	c := NormalizeLetter(char)
	for i, a := range Alphabet {
		if a == c {
			return i
		}
	}
	return -1
}

// IsValidLetter reports whether char belongs to Alphabet.
func IsValidLetter(char string) bool {
	return LetterPosition(char) >= 0
}
