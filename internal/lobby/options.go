// internal/lobby/options.go
package lobby

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// Option keys understood by the relay. Unknown keys are stored and forwarded
// but otherwise ignored.
const (
	OptionStartingLives    = "starting_lives"
	OptionDeathOnRoundLoss = "death_on_round_loss"
	OptionDifferentSeeds   = "different_seeds"
	OptionStake            = "stake"
)

// ErrInvalidOption is returned when an option value cannot be used.
var ErrInvalidOption = errors.New("invalid lobby option")

const seedAlphabet = "ABCDEFGHIJKLMNPQRSTUVWXYZ123456789"

// NewSeed returns an 8 character run seed.
func NewSeed() string {
	var b strings.Builder
	b.Grow(8)
	for i := 0; i < 8; i++ {
		b.WriteByte(seedAlphabet[rand.IntN(len(seedAlphabet))])
	}
	return b.String()
}

// StartingLives is the override in the options if present, else the mode
// default. Assumes lock is held.
func (l *Lobby) StartingLives() (int, error) {
	n, ok, err := l.intOption(OptionStartingLives)
	if err != nil {
		return 0, err
	}
	if !ok {
		return l.Settings.StartingLives, nil
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: %s must be at least 1, got %d", ErrInvalidOption, OptionStartingLives, n)
	}
	return n, nil
}

// Flag reads a boolean option; absent means false. Assumes lock is held.
func (l *Lobby) Flag(key string) (bool, error) {
	raw, ok := l.options[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidOption, key, raw)
	}
	return v, nil
}

func (l *Lobby) intOption(key string) (int, bool, error) {
	raw, ok := l.options[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidOption, key, raw)
	}
	return n, true, nil
}
