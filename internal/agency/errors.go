package agency

import (
	"errors"
	"fmt"
)

var (
	ErrFieldCount    = errors.New("wrong number of fields")
	ErrInvalidNumber = errors.New("invalid number")
	ErrNegativeValue = errors.New("negative value")
	ErrUnknownType   = errors.New("unknown vehicle type tag")
)

// LineError records why a single fleet line could not be loaded.
type LineError struct {
	Line   int    `json:"line"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}
