// Package projetista manages the designers chaves are assigned to.
package projetista

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/janus/core"
)

var (
	// errors
	ErrNotFound       = errors.New("projetista not found")
	ErrProtected      = errors.New("Não é possível excluir o projetista pois está referenciado(a) por chaves.")
	ErrInvalidUsuario = errors.New("Selecione uma escolha válida.")
)

const ModelName = "Projetista"

// Projetista is a designer, optionally linked to the user account that owns its chaves.
type Projetista struct {
	ID           int         `json:"id"`
	Nome         string      `json:"projetista"`
	UsuarioID    null.Int    `json:"usuario"`
	UsuarioEmail null.String `json:"usuario_email"` // read only
	Ativo        bool        `json:"ativo"`
}

func (p Projetista) String() string { return p.Nome }

// ProjetistaData is the create/update payload.
type ProjetistaData struct {
	Nome      string   `json:"projetista" validate:"required,max=150"`
	UsuarioID null.Int `json:"usuario"`
	Ativo     *bool    `json:"ativo"`
}

func (pd *ProjetistaData) Validate(validate *validator.Validate) error {
	pd.Nome = core.CleanString(pd.Nome)
	return validate.Struct(pd)
}

type QueryFilter struct {
	Search string `query:"q"`
	Ativo  *bool  `query:"ativo"`
}

type (
	Repository interface {
		CreateProjetista(ctx context.Context, p Projetista, exec ...core.DBExecutor) (Projetista, error)
		// QueryProjetistas orders by name.
		QueryProjetistas(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Projetista, error)
		GetProjetistaByID(ctx context.Context, id int, exec ...core.DBExecutor) (Projetista, error)
		// GetProjetistaByUsuario returns the first projetista linked to the user account.
		GetProjetistaByUsuario(ctx context.Context, userID int, exec ...core.DBExecutor) (Projetista, error)
		UpdateProjetista(ctx context.Context, p Projetista, exec ...core.DBExecutor) (Projetista, error)
		DeleteProjetistasByID(ctx context.Context, ids []int, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func usuarioErr(err error) error {
	if errors.Cause(err) == ErrInvalidUsuario {
		return core.NewFieldError("usuario", ErrInvalidUsuario.Error())
	}
	return err
}

func (svc *Service) Create(ctx context.Context, data ProjetistaData) (Projetista, error) {
	p := Projetista{Nome: data.Nome, UsuarioID: data.UsuarioID, Ativo: true}
	if data.Ativo != nil {
		p.Ativo = *data.Ativo
	}
	p, err := svc.repo.CreateProjetista(ctx, p)
	return p, usuarioErr(err)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Projetista, error) {
	filter.Search = core.CleanString(filter.Search)
	return svc.repo.QueryProjetistas(ctx, filter)
}

// QueryActive returns the projetistas that can receive chaves, ordered by name.
func (svc *Service) QueryActive(ctx context.Context) ([]Projetista, error) {
	ativo := true
	return svc.repo.QueryProjetistas(ctx, QueryFilter{Ativo: &ativo})
}

func (svc *Service) GetByID(ctx context.Context, id int) (Projetista, error) {
	return svc.repo.GetProjetistaByID(ctx, id)
}

func (svc *Service) GetByUsuario(ctx context.Context, userID int) (Projetista, error) {
	return svc.repo.GetProjetistaByUsuario(ctx, userID)
}

func (svc *Service) Update(ctx context.Context, p Projetista, data ProjetistaData) (Projetista, error) {
	p.Nome = data.Nome
	p.UsuarioID = data.UsuarioID
	if data.Ativo != nil {
		p.Ativo = *data.Ativo
	}
	p, err := svc.repo.UpdateProjetista(ctx, p)
	return p, usuarioErr(err)
}

func (svc *Service) Delete(ctx context.Context, ids ...int) error {
	_, err := svc.repo.DeleteProjetistasByID(ctx, ids)
	return err
}
