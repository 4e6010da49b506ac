package sonfile

import (
	"errors"
	"fmt"
)

// ErrEditNotFound wraps every failure to locate an edit target in the base
// file. Callers match it with errors.Is.
var ErrEditNotFound = errors.New("sonfile: edit target not found")

// ErrOutputExists is returned when the output file already exists and the
// request did not allow overwriting.
var ErrOutputExists = errors.New("sonfile: output file already exists")

// NotFoundError reports a single edit target missing from a base file.
type NotFoundError struct {
	Kind string // "parameter", "general metal", "adaptive sweep", "linear sweep", "em option"
	Name string // target name, empty for sweep edits
	File string
}

func (e *NotFoundError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("sonfile: %s to edit not found in file %s", e.Kind, e.File)
	}
	return fmt.Sprintf("sonfile: %s %q to edit not found in file %s", e.Kind, e.Name, e.File)
}

// Unwrap lets errors.Is(err, ErrEditNotFound) succeed.
func (e *NotFoundError) Unwrap() error {
	return ErrEditNotFound
}
