package amm

import "fmt"

// Direction selects which side of the pair is being supplied.
type Direction uint8

const (
	DirectionXIn Direction = iota + 1
	DirectionYIn
)

// ParseDirection decodes the wire form used by the CLI and HTTP API.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "x-in":
		return DirectionXIn, nil
	case "y-in":
		return DirectionYIn, nil
	default:
		return 0, fmt.Errorf("direction %q (want x-in or y-in): %w", s, ErrInvalidInput)
	}
}

func (d Direction) String() string {
	switch d {
	case DirectionXIn:
		return "x-in"
	case DirectionYIn:
		return "y-in"
	default:
		return "unknown"
	}
}
