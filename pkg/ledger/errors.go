package ledger

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// ErrDuplicatePosting reports a (recurring_id, occurrence_date) collision.
// Callers in the generation path treat it as "already generated", not a failure.
var ErrDuplicatePosting = errors.New("occurrence already posted")

// ErrNotFound reports a lookup for a row that does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports input rejected before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validationf builds a ValidationError for a field.
func Validationf(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
