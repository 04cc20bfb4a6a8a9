package crud

import (
	"database/sql/driver"
	"reflect"
)

type zeroer interface {
	IsZero() bool
}

// Assign collects the assigned fields of a struct of `db`-tagged fields, in declaration order:
//   - null types (null.String, null.Int64, ...) are assigned when valid;
//   - pointers to null types are assigned when non-nil, an invalid value assigning NULL;
//   - any other field is assigned when non-zero.
func Assign(fields interface{}) []Assignment {
	v := reflect.Indirect(reflect.ValueOf(fields))
	t := v.Type()

	assignments := make([]Assignment, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		col := t.Field(i).Tag.Get("db")
		if col == "" || col == "-" {
			continue
		}

		fv := v.Field(i)
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		} else if z, ok := fv.Interface().(zeroer); ok {
			if z.IsZero() {
				continue
			}
		} else if fv.IsZero() {
			continue
		}

		val := fv.Interface()
		if valuer, ok := val.(driver.Valuer); ok {
			dv, err := valuer.Value()
			if err != nil {
				continue
			}
			val = dv
		}
		assignments = append(assignments, Assignment{Column: col, Value: val})
	}
	return assignments
}
