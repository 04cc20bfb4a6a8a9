package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/storage/database/crud"
	"github.com/trezcool/darasa/storage/database/models"
)

type schoolRepository struct {
	schools schoolTable
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *sqlx.DB) school.Repository {
	return &schoolRepository{schools: schoolsOf(crud.New(db))}
}

func unboilSchool(s models.School) school.School {
	return school.School{
		ID:           s.ID,
		Name:         s.Name,
		Location:     s.Location,
		ContactEmail: s.ContactEmail,
		CreatedAt:    s.CreatedAt,
	}
}

func (repo schoolRepository) Create(ctx context.Context, ns school.NewSchool) (school.School, error) {
	sch, err := repo.schools.Create(ctx, models.SchoolFields{
		Name:         null.StringFrom(ns.Name),
		Location:     null.StringFrom(ns.Location),
		ContactEmail: null.StringFrom(ns.ContactEmail),
	})
	if err != nil {
		return school.School{}, errors.Wrap(err, "creating school")
	}
	return unboilSchool(*sch), nil
}

func (repo schoolRepository) List(ctx context.Context) ([]school.School, error) {
	rows, err := repo.schools.Read(ctx, models.SchoolFields{}, core.DBOrdering{Field: "name", Ascending: true})
	if err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	schools := make([]school.School, 0, len(rows))
	for _, s := range rows {
		schools = append(schools, unboilSchool(s))
	}
	return schools, nil
}
