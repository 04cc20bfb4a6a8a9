package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core/school"
)

type schoolRepository struct {
	db *schoolTable
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db.school}
}

func (repo *schoolRepository) Create(_ context.Context, ns school.NewSchool) (school.School, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.pkCount++
	sch := school.School{
		ID:           repo.db.pkCount,
		Name:         ns.Name,
		Location:     ns.Location,
		ContactEmail: ns.ContactEmail,
		CreatedAt:    nowFunc().UTC(),
	}
	repo.db.table[sch.ID] = &sch
	return sch, nil
}

func (repo *schoolRepository) List(_ context.Context) ([]school.School, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	schools := make([]school.School, 0, len(repo.db.table))
	for _, s := range repo.db.table {
		schools = append(schools, *s)
	}
	sort.Slice(schools, func(i, j int) bool { return schools[i].Name < schools[j].Name })
	return schools, nil
}
