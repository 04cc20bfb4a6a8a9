package school

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"

	"github.com/trezcool/darasa/core"
)

type (
	School struct {
		ID           int64     `json:"id"`
		Name         string    `json:"name"`
		Location     string    `json:"location"`
		ContactEmail string    `json:"contact_email"`
		CreatedAt    time.Time `json:"created_at"`
	}

	NewSchool struct {
		Name         string `json:"name" validate:"required,max=250"`
		Location     string `json:"location" validate:"required,max=250"`
		ContactEmail string `json:"contact_email" validate:"required,email,max=250"`
	}

	Repository interface {
		Create(ctx context.Context, ns NewSchool) (School, error)
		List(ctx context.Context) ([]School, error)
	}

	Service interface {
		Create(ctx context.Context, ns NewSchool) (School, error)
		List(ctx context.Context) ([]School, error)
	}

	service struct {
		repo     Repository
		validate *validator.Validate
	}
)

var _ Service = (*service)(nil)

func (ns *NewSchool) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Location = core.CleanString(ns.Location)
	ns.ContactEmail = core.CleanString(ns.ContactEmail, true /* lower */)
	return validate.Struct(ns)
}

func NewService(repo Repository, validate *validator.Validate) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(validate, "validate"),
	).CheckAndPanic()

	return &service{repo: repo, validate: validate}
}

func (svc *service) Create(ctx context.Context, ns NewSchool) (School, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return School{}, err
	}
	return svc.repo.Create(ctx, ns)
}

func (svc *service) List(ctx context.Context) ([]School, error) {
	return svc.repo.List(ctx)
}
