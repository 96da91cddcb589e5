package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoService is returned when an action needs a selected service.
	ErrNoService = errors.New("no service selected")
	// ErrNoForm is returned when an action needs a selected form with loaded fields.
	ErrNoForm = errors.New("no form selected")
	// ErrUnknownField is returned by SetField for keys outside the current form.
	ErrUnknownField = errors.New("unknown field")
)

// MissingFieldsError lists required fields left blank.
type MissingFieldsError struct {
	Keys   []string
	Labels []string
}

func (e *MissingFieldsError) Error() string {
	names := e.Labels
	if len(names) == 0 {
		names = e.Keys
	}
	return fmt.Sprintf("please fill in: %s", strings.Join(names, ", "))
}
