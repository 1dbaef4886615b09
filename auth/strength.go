package auth

import (
	"github.com/nbutton23/zxcvbn-go"
)

// Strength summarises a zxcvbn estimate.
type Strength struct {
	// Score runs from 0 (trivially guessable) to 4 (very unguessable).
	Score     int
	Entropy   float64
	CrackTime string
}

// Label returns a one-word description of the score.
func (s Strength) Label() string {
	switch s.Score {
	case 0:
		return "very weak"
	case 1:
		return "weak"
	case 2:
		return "fair"
	case 3:
		return "strong"
	default:
		return "very strong"
	}
}

// EstimateStrength scores pw, penalising matches against userInputs such as
// the account or file name.
func EstimateStrength(pw string, userInputs ...string) Strength {
	m := zxcvbn.PasswordStrength(pw, userInputs)
	return Strength{
		Score:     m.Score,
		Entropy:   m.Entropy,
		CrackTime: m.CrackTimeDisplay,
	}
}
