// Package polo manages the regional poles a chave can belong to.
package polo

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/janus/core"
)

var (
	// errors
	ErrNotFound   = errors.New("polo not found")
	ErrPoloExists = errors.New("Polo com este Polo já existe.")
	ErrProtected  = errors.New("Não é possível excluir o polo pois está referenciado(a) por chaves.")
)

const ModelName = "Polo"

type Polo struct {
	ID   int    `json:"id"`
	Polo string `json:"polo"`
}

func (p Polo) String() string { return p.Polo }

// PoloData is the create/update payload.
type PoloData struct {
	Polo string `json:"polo" validate:"required,max=3"`
}

func (pd *PoloData) Validate(validate *validator.Validate) error {
	pd.Polo = core.CleanString(pd.Polo)
	return validate.Struct(pd)
}

type (
	Repository interface {
		CreatePolo(ctx context.Context, p Polo, exec ...core.DBExecutor) (Polo, error)
		QueryPolos(ctx context.Context, search string, exec ...core.DBExecutor) ([]Polo, error)
		GetPoloByID(ctx context.Context, id int, exec ...core.DBExecutor) (Polo, error)
		UpdatePolo(ctx context.Context, p Polo, exec ...core.DBExecutor) (Polo, error)
		DeletePolosByID(ctx context.Context, ids []int, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func uniquenessErr(err error) error {
	if errors.Cause(err) == ErrPoloExists {
		return core.NewFieldError("polo", ErrPoloExists.Error())
	}
	return err
}

func (svc *Service) Create(ctx context.Context, data PoloData) (Polo, error) {
	p, err := svc.repo.CreatePolo(ctx, Polo{Polo: data.Polo})
	return p, uniquenessErr(err)
}

// Query returns the polos ordered by code, optionally filtered by a case-insensitive search.
func (svc *Service) Query(ctx context.Context, search string) ([]Polo, error) {
	return svc.repo.QueryPolos(ctx, core.CleanString(search))
}

func (svc *Service) GetByID(ctx context.Context, id int) (Polo, error) {
	return svc.repo.GetPoloByID(ctx, id)
}

func (svc *Service) Update(ctx context.Context, p Polo, data PoloData) (Polo, error) {
	p.Polo = data.Polo
	p, err := svc.repo.UpdatePolo(ctx, p)
	return p, uniquenessErr(err)
}

func (svc *Service) Delete(ctx context.Context, ids ...int) error {
	_, err := svc.repo.DeletePolosByID(ctx, ids)
	return err
}
