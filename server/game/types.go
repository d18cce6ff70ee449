package game

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownChoice  = errors.New("unknown choice")
	ErrUnknownVariant = errors.New("unknown variant")
)

// Choice is one of the three fixed game options.
type Choice uint8

const (
	Rock Choice = iota
	Paper
	Scissors
)

// All lists the vocabulary in its fixed precedence order.
func All() []Choice { return []Choice{Rock, Paper, Scissors} }

func (c Choice) String() string {
	switch c {
	case Rock:
		return "rock"
	case Paper:
		return "paper"
	case Scissors:
		return "scissors"
	}
	return fmt.Sprintf("choice(%d)", uint8(c))
}

// Valid reports whether c is one of the three named choices.
func (c Choice) Valid() bool { return c <= Scissors }

// Beats reports whether c wins against other.
func (c Choice) Beats(other Choice) bool {
	switch c {
	case Rock:
		return other == Scissors
	case Paper:
		return other == Rock
	case Scissors:
		return other == Paper
	}
	return false
}

// ParseChoice accepts a choice name in any case; "scissor" is taken as Scissors.
func ParseChoice(s string) (Choice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rock":
		return Rock, nil
	case "paper":
		return Paper, nil
	case "scissors", "scissor":
		return Scissors, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownChoice, s)
}

// MarshalText encodes c by name so map keys and JSON read "rock", not 0.
func (c Choice) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownChoice, uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *Choice) UnmarshalText(b []byte) error {
	v, err := ParseChoice(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Variant selects which experiment is run.
type Variant string

const (
	Order Variant = "order"
	Trust Variant = "trust"
)

// ParseVariant maps "order" or "trust" (any case) to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch Variant(strings.ToLower(strings.TrimSpace(s))) {
	case Order:
		return Order, nil
	case Trust:
		return Trust, nil
	}
	return "", fmt.Errorf("%w: %q (want order|trust)", ErrUnknownVariant, s)
}
