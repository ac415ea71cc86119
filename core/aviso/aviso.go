// Package aviso manages the notices shown on the menu.
package aviso

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/janus/core"
)

var ErrNotFound = errors.New("aviso not found")

const ModelName = "Aviso"

type Aviso struct {
	ID          int       `json:"id"`
	Titulo      string    `json:"titulo"`
	Mensagem    string    `json:"mensagem"`
	DataCriacao time.Time `json:"data_criacao"` // UTC
	Ordenacao   int       `json:"ordenacao"`
}

func (a Aviso) String() string { return a.Titulo }

type AvisoData struct {
	Titulo    string `json:"titulo" validate:"required,max=200"`
	Mensagem  string `json:"mensagem" validate:"required"`
	Ordenacao int    `json:"ordenacao"`
}

func (ad *AvisoData) Validate(validate *validator.Validate) error {
	ad.Titulo = core.CleanString(ad.Titulo)
	return validate.Struct(ad)
}

type (
	Repository interface {
		CreateAviso(ctx context.Context, a Aviso, exec ...core.DBExecutor) (Aviso, error)
		// QueryAvisos orders by Ordenacao.
		QueryAvisos(ctx context.Context, search string, exec ...core.DBExecutor) ([]Aviso, error)
		GetAvisoByID(ctx context.Context, id int, exec ...core.DBExecutor) (Aviso, error)
		UpdateAviso(ctx context.Context, a Aviso, exec ...core.DBExecutor) (Aviso, error)
		DeleteAvisosByID(ctx context.Context, ids []int, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, data AvisoData) (Aviso, error) {
	return svc.repo.CreateAviso(ctx, Aviso{
		Titulo:      data.Titulo,
		Mensagem:    data.Mensagem,
		Ordenacao:   data.Ordenacao,
		DataCriacao: time.Now().UTC(),
	})
}

func (svc *Service) Query(ctx context.Context, search string) ([]Aviso, error) {
	return svc.repo.QueryAvisos(ctx, core.CleanString(search))
}

func (svc *Service) GetByID(ctx context.Context, id int) (Aviso, error) {
	return svc.repo.GetAvisoByID(ctx, id)
}

func (svc *Service) Update(ctx context.Context, a Aviso, data AvisoData) (Aviso, error) {
	a.Titulo = data.Titulo
	a.Mensagem = data.Mensagem
	a.Ordenacao = data.Ordenacao
	return svc.repo.UpdateAviso(ctx, a)
}

func (svc *Service) Delete(ctx context.Context, ids ...int) error {
	_, err := svc.repo.DeleteAvisosByID(ctx, ids)
	return err
}
