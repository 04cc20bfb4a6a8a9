package crud

import (
	"fmt"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrConstraint = errors.New("constraint violation")
)

// NotFoundError reports a missing row. It matches ErrNotFound.
type NotFoundError struct {
	Table string
	ID    int64 // 0 when looked up by filter
}

func (e *NotFoundError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("%s record not found", e.Table)
	}
	return fmt.Sprintf("%s with id %d not found", e.Table, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConstraintError reports a write rejected by a uniqueness, foreign-key, not-null or check constraint.
// The whole transaction has been rolled back. It matches ErrConstraint.
type ConstraintError struct {
	Table      string
	Kind       string // eg. unique_violation
	Constraint string
	Reason     string
	Err        error
}

func (e *ConstraintError) Error() string { return e.Reason }

func (e *ConstraintError) Unwrap() error { return e.Err }

func (e *ConstraintError) Is(target error) bool { return target == ErrConstraint }

// IsUniqueViolation reports whether err is a unique constraint violation on the named constraint
// (any constraint if name is empty).
func IsUniqueViolation(err error, name string) bool {
	return isViolation(err, "unique_violation", name)
}

// IsForeignKeyViolation reports whether err is a foreign key violation on the named constraint
// (any constraint if name is empty).
func IsForeignKeyViolation(err error, name string) bool {
	return isViolation(err, "foreign_key_violation", name)
}

func isViolation(err error, kind, name string) bool {
	var cErr *ConstraintError
	if !errors.As(err, &cErr) || cErr.Kind != kind {
		return false
	}
	return name == "" || cErr.Constraint == name
}

func classify(err error, op, table string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch kind := pqErr.Code.Name(); kind {
		case "unique_violation", "foreign_key_violation", "not_null_violation", "check_violation":
			if table == "" {
				table = pqErr.Table
			}
			return &ConstraintError{
				Table:      table,
				Kind:       kind,
				Constraint: pqErr.Constraint,
				Reason:     pqErr.Message,
				Err:        err,
			}
		}
	}
	if table == "" {
		return errors.Wrap(err, op)
	}
	return errors.Wrapf(err, "%s %s", op, table)
}
