// Package crud is the generic persistence façade: typed create/read/update/delete over any table,
// one transaction per mutation, every failure returned as an error value.
package crud

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/strmangle"

	"github.com/trezcool/darasa/core"
)

const quote = `"`

type (
	// Entity is a persisted record type. Its fields carry `db` tags naming the table columns
	// and every table has an "id" primary key.
	Entity interface {
		TableName() string
	}

	// Settable is the set of field assignments a Table accepts: only assigned fields are written or filtered on.
	Settable interface {
		Assignments() []Assignment
	}

	Assignment struct {
		Column string
		Value  interface{}
	}
)

// Facade runs Table operations against the database.
type Facade struct {
	db *sqlx.DB
	tx *sqlx.Tx // set on facades bound to a Transaction
}

func New(db *sqlx.DB) *Facade {
	vala.BeginValidation().Validate(vala.IsNotNil(db, "db")).CheckAndPanic()
	return &Facade{db: db}
}

// Transaction runs fn with a Facade bound to a single transaction: Table operations made through it
// commit together when fn returns nil and are all rolled back otherwise.
func (f *Facade) Transaction(ctx context.Context, fn func(tf *Facade) error) error {
	return f.inTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&Facade{db: f.db, tx: tx})
	})
}

// Select runs a custom read query, inside the bound transaction if any.
func (f *Facade) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if err := sqlx.SelectContext(ctx, f.ext(), dest, query, args...); err != nil {
		return classify(err, "selecting from", "")
	}
	return nil
}

func (f *Facade) ext() sqlx.ExtContext {
	if f.tx != nil {
		return f.tx
	}
	return f.db
}

func (f *Facade) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if f.tx != nil {
		return fn(f.tx)
	}

	tx, err := f.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back (%v)", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// Table gives typed access to the rows of E, assigned & filtered through F.
type Table[E Entity, F Settable] struct {
	f *Facade
}

func NewTable[E Entity, F Settable](f *Facade) Table[E, F] {
	return Table[E, F]{f: f}
}

func (t Table[E, F]) Name() string {
	var e E
	return e.TableName()
}

// Create inserts a new row made of the assigned fields and returns it as stored.
func (t Table[E, F]) Create(ctx context.Context, fields F) (*E, error) {
	table := t.Name()
	cols, args := split(fields.Assignments())

	var query string
	if len(cols) == 0 {
		query = fmt.Sprintf(`INSERT INTO %s DEFAULT VALUES RETURNING *`, quoteIdent(table))
	} else {
		query = fmt.Sprintf(
			`INSERT INTO %s (%s) VALUES (%s) RETURNING *`,
			quoteIdent(table),
			quoteJoin(cols),
			strmangle.Placeholders(true, len(cols), 1, 1),
		)
	}

	rec := new(E)
	err := t.f.inTx(ctx, func(tx *sqlx.Tx) error {
		return sqlx.GetContext(ctx, tx, rec, query, args...)
	})
	if err != nil {
		return nil, classify(err, "creating", table)
	}
	return rec, nil
}

// Read returns every row whose columns equal all the assigned fields of filter (all rows if none is assigned).
// A field assigned NULL matches rows where the column IS NULL.
// Rows are ordered by id unless orderings are given.
func (t Table[E, F]) Read(ctx context.Context, filter F, orderings ...core.DBOrdering) ([]E, error) {
	table := t.Name()
	where, args := whereClause(filter.Assignments())
	orderBy, err := t.orderBy(orderings)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT * FROM %s%s ORDER BY %s`, quoteIdent(table), where, orderBy)
	recs := make([]E, 0)
	if err := sqlx.SelectContext(ctx, t.f.ext(), &recs, query, args...); err != nil {
		return nil, classify(err, "reading", table)
	}
	return recs, nil
}

// First returns the first row matching filter, or a *NotFoundError.
func (t Table[E, F]) First(ctx context.Context, filter F) (*E, error) {
	recs, err := t.Read(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, &NotFoundError{Table: t.Name()}
	}
	return &recs[0], nil
}

// Get returns the row with the given primary key, or a *NotFoundError.
func (t Table[E, F]) Get(ctx context.Context, id int64) (*E, error) {
	table := t.Name()
	rec := new(E)
	if err := sqlx.GetContext(ctx, t.f.ext(), rec, selectByID(table), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Table: table, ID: id}
		}
		return nil, classify(err, "reading", table)
	}
	return rec, nil
}

// Count returns the number of rows matching filter.
func (t Table[E, F]) Count(ctx context.Context, filter F) (int64, error) {
	table := t.Name()
	where, args := whereClause(filter.Assignments())

	var n int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, quoteIdent(table), where)
	if err := sqlx.GetContext(ctx, t.f.ext(), &n, query, args...); err != nil {
		return 0, classify(err, "counting", table)
	}
	return n, nil
}

// Update applies the assigned fields to the row with the given primary key and returns it as stored.
// A missing row is reported as a *NotFoundError and nothing is written.
func (t Table[E, F]) Update(ctx context.Context, id int64, fields F) (*E, error) {
	table := t.Name()
	cols, args := split(fields.Assignments())

	rec := new(E)
	err := t.f.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := sqlx.GetContext(ctx, tx, rec, selectByID(table), id); err != nil {
			return err
		}
		if len(cols) == 0 {
			return nil
		}
		query := fmt.Sprintf(
			`UPDATE %s SET %s WHERE "id"=$%d RETURNING *`,
			quoteIdent(table),
			strmangle.SetParamNames(quote, quote, 1, cols),
			len(cols)+1,
		)
		return sqlx.GetContext(ctx, tx, rec, query, append(args, id)...)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Table: table, ID: id}
		}
		return nil, classify(err, "updating", table)
	}
	return rec, nil
}

// Delete removes the row with the given primary key. A missing row is reported as a *NotFoundError.
func (t Table[E, F]) Delete(ctx context.Context, id int64) error {
	table := t.Name()
	query := fmt.Sprintf(`DELETE FROM %s WHERE "id"=$1`, quoteIdent(table))

	err := t.f.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &NotFoundError{Table: table, ID: id}
		}
		return classify(err, "deleting", table)
	}
	return nil
}

func (t Table[E, F]) orderBy(orderings []core.DBOrdering) (string, error) {
	if len(orderings) == 0 {
		return quoteIdent("id") + " ASC", nil
	}

	var e E
	fields := t.f.db.Mapper.TypeMap(reflect.TypeOf(e))
	parts := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		if fields.GetByPath(ord.Field) == nil {
			return "", core.NewFieldValidationError("ordering", errors.Errorf("unknown field %q", ord.Field))
		}
		parts = append(parts, ord.String())
	}
	return strings.Join(parts, ", "), nil
}

func selectByID(table string) string {
	return fmt.Sprintf(`SELECT * FROM %s WHERE "id"=$1`, quoteIdent(table))
}

// whereClause ANDs one equality per assignment; a nil value matches NULL.
func whereClause(assignments []Assignment) (string, []interface{}) {
	if len(assignments) == 0 {
		return "", nil
	}

	conds := make([]string, 0, len(assignments))
	args := make([]interface{}, 0, len(assignments))
	for _, a := range assignments {
		if a.Value == nil {
			conds = append(conds, quoteIdent(a.Column)+" IS NULL")
			continue
		}
		args = append(args, a.Value)
		conds = append(conds, fmt.Sprintf("%s=$%d", quoteIdent(a.Column), len(args)))
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func split(assignments []Assignment) ([]string, []interface{}) {
	cols := make([]string, 0, len(assignments))
	args := make([]interface{}, 0, len(assignments))
	for _, a := range assignments {
		cols = append(cols, a.Column)
		args = append(args, a.Value)
	}
	return cols, args
}

func quoteIdent(s string) string {
	return quote + s + quote
}

func quoteJoin(cols []string) string {
	quoted := make([]string, 0, len(cols))
	for _, c := range cols {
		quoted = append(quoted, quoteIdent(c))
	}
	return strings.Join(quoted, ",")
}
