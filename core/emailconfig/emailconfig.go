// Package emailconfig manages the recipients of the chave request notifications.
package emailconfig

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/janus/core"
)

var ErrNotFound = errors.New("destinatário not found")

const ModelName = "Destinatário"

type EmailConfig struct {
	ID    int    `json:"id"`
	Nome  string `json:"nome"`
	Email string `json:"email"`
}

func (ec EmailConfig) String() string { return fmt.Sprintf("%s <%s>", ec.Nome, ec.Email) }

type EmailConfigData struct {
	Nome  string `json:"nome" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email,max=254"`
}

func (ed *EmailConfigData) Validate(validate *validator.Validate) error {
	ed.Nome = core.CleanString(ed.Nome)
	ed.Email = core.CleanString(ed.Email)
	return validate.Struct(ed)
}

type (
	Repository interface {
		CreateEmailConfig(ctx context.Context, ec EmailConfig, exec ...core.DBExecutor) (EmailConfig, error)
		// QueryEmailConfigs orders by Nome.
		QueryEmailConfigs(ctx context.Context, search string, exec ...core.DBExecutor) ([]EmailConfig, error)
		GetEmailConfigByID(ctx context.Context, id int, exec ...core.DBExecutor) (EmailConfig, error)
		UpdateEmailConfig(ctx context.Context, ec EmailConfig, exec ...core.DBExecutor) (EmailConfig, error)
		DeleteEmailConfigsByID(ctx context.Context, ids []int, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, data EmailConfigData) (EmailConfig, error) {
	return svc.repo.CreateEmailConfig(ctx, EmailConfig{Nome: data.Nome, Email: data.Email})
}

func (svc *Service) Query(ctx context.Context, search string) ([]EmailConfig, error) {
	return svc.repo.QueryEmailConfigs(ctx, core.CleanString(search))
}

// Recipients is the distribution list of the chave request notifications: every configured address.
func (svc *Service) Recipients(ctx context.Context) ([]mail.Address, error) {
	configs, err := svc.repo.QueryEmailConfigs(ctx, "")
	if err != nil {
		return nil, err
	}
	addrs := make([]mail.Address, 0, len(configs))
	for _, ec := range configs {
		addrs = append(addrs, mail.Address{Name: ec.Nome, Address: ec.Email})
	}
	return addrs, nil
}

func (svc *Service) GetByID(ctx context.Context, id int) (EmailConfig, error) {
	return svc.repo.GetEmailConfigByID(ctx, id)
}

func (svc *Service) Update(ctx context.Context, ec EmailConfig, data EmailConfigData) (EmailConfig, error) {
	ec.Nome = data.Nome
	ec.Email = data.Email
	return svc.repo.UpdateEmailConfig(ctx, ec)
}

func (svc *Service) Delete(ctx context.Context, ids ...int) error {
	_, err := svc.repo.DeleteEmailConfigsByID(ctx, ids)
	return err
}
