package school_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/school"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
)

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	validate, translator := core.NewValidator()
	svc := school.NewService(dummydb.NewSchoolRepository(dummydb.Open()), validate)

	sch, err := svc.Create(ctx, school.NewSchool{
		Name:         "  Coventry University ",
		Location:     "Coventry",
		ContactEmail: "Info@Coventry.ac.uk",
	})
	require.NoError(t, err)
	assert.Equal(t, "Coventry University", sch.Name)
	assert.Equal(t, "info@coventry.ac.uk", sch.ContactEmail)
	assert.NotZero(t, sch.ID)

	_, err = svc.Create(ctx, school.NewSchool{Name: "Nowhere", ContactEmail: "not-an-email"})
	var vErrs validator.ValidationErrors
	require.ErrorAs(t, err, &vErrs)
	errs := core.TranslateErrors(vErrs, translator)
	assert.Contains(t, errs, "location")
	assert.Contains(t, errs, "contact_email")

	schools, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, schools, 1)
}
