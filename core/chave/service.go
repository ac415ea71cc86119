package chave

import (
	"context"
	"net/mail"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/janus/core"
	"github.com/trezcool/janus/core/polo"
	"github.com/trezcool/janus/core/projetista"
	"github.com/trezcool/janus/core/user"
)

var (
	// errors
	ErrNotFound    = errors.New("chave not found")
	ErrChaveExists = errors.New("Chave com este Número já existe.")
	ErrFixErrors   = errors.New("Por favor, corrija os erros abaixo.")
)

type (
	Repository interface {
		CheckChaveUniqueness(ctx context.Context, code string, excludedIDs []int, exec ...core.DBExecutor) error
		// CreateChave returns ErrChaveExists when the code is taken.
		CreateChave(ctx context.Context, chv Chave, exec ...core.DBExecutor) (Chave, error)
		CountChaves(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) (int, error)
		QueryChaves(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, limit, offset int, exec ...core.DBExecutor) ([]Chave, error)
		GetChaveByID(ctx context.Context, id int, exec ...core.DBExecutor) (Chave, error)
		GetChaveByCode(ctx context.Context, code string, exec ...core.DBExecutor) (Chave, error)
		UpdateChave(ctx context.Context, chv Chave, exec ...core.DBExecutor) (Chave, error)
		// SetProjetista updates every chave of `ids` in a single statement, unknown ids are ignored.
		SetProjetista(ctx context.Context, projetistaID int, ids []int, exec ...core.DBExecutor) (int, error)
		DeleteChavesByID(ctx context.Context, ids []int, exec ...core.DBExecutor) (int, error)
	}

	PoloGetter interface {
		GetByID(ctx context.Context, id int) (polo.Polo, error)
	}

	ProjetistaGetter interface {
		GetByID(ctx context.Context, id int) (projetista.Projetista, error)
		GetByUsuario(ctx context.Context, userID int) (projetista.Projetista, error)
	}

	RecipientLister interface {
		Recipients(ctx context.Context) ([]mail.Address, error)
	}

	Deps struct {
		Repo        Repository
		Polos       PoloGetter
		Projetistas ProjetistaGetter
		Recipients  RecipientLister
		MailSvc     core.EmailService
		Logger      core.Logger
		Files       core.FileStore // optional
		Validate    *validator.Validate
		Translator  ut.Translator
	}

	Options struct {
		PageSize        int
		FrontendBaseURL string
	}

	Service struct {
		repo        Repository
		polos       PoloGetter
		projetistas ProjetistaGetter
		recipients  RecipientLister
		mailSvc     core.EmailService
		logger      core.Logger
		files       core.FileStore
		validate    *validator.Validate
		translator  ut.Translator
		opts        Options
	}
)

func NewService(deps Deps, opts Options) *Service {
	if opts.PageSize <= 0 {
		opts.PageSize = core.DefaultPageSize
	}
	return &Service{
		repo:        deps.Repo,
		polos:       deps.Polos,
		projetistas: deps.Projetistas,
		recipients:  deps.Recipients,
		mailSvc:     deps.MailSvc,
		logger:      deps.Logger,
		files:       deps.Files,
		validate:    deps.Validate,
		translator:  deps.Translator,
		opts:        opts,
	}
}

func (svc *Service) translateFields(vErrs validator.ValidationErrors) []core.FieldError {
	flds := make([]core.FieldError, 0, len(vErrs))
	for _, vErr := range vErrs {
		flds = append(flds, core.FieldError{Field: vErr.Field(), Error: vErr.Translate(svc.translator)})
	}
	return flds
}

func (svc *Service) checkPolo(ctx context.Context, id null.Int) (*core.FieldError, error) {
	if !id.Valid {
		return nil, nil
	}
	if _, err := svc.polos.GetByID(ctx, id.Int); err != nil {
		if errors.Cause(err) == polo.ErrNotFound {
			return &core.FieldError{Field: "polo", Error: invalidChoiceText}, nil
		}
		return nil, errors.Wrap(err, "finding polo")
	}
	return nil, nil
}

func (svc *Service) checkProjetista(ctx context.Context, id null.Int, activeOnly bool) (*core.FieldError, error) {
	if !id.Valid {
		return nil, nil
	}
	p, err := svc.projetistas.GetByID(ctx, id.Int)
	if err != nil {
		if errors.Cause(err) == projetista.ErrNotFound {
			return &core.FieldError{Field: "projetista", Error: invalidChoiceText}, nil
		}
		return nil, errors.Wrap(err, "finding projetista")
	}
	if activeOnly && !p.Ativo {
		return &core.FieldError{Field: "projetista", Error: invalidChoiceText}, nil
	}
	return nil, nil
}

// List returns a page of chaves ordered by id. Users who cannot manage chaves only see their own.
func (svc *Service) List(ctx context.Context, usr user.User, filter QueryFilter, page string) (Page, error) {
	filter.Clean()
	if !usr.CanManageChaves() {
		filter.OwnerID = usr.ID
	}
	return svc.page(ctx, filter, []core.DBOrdering{{Field: "id", Ascending: true}}, page)
}

// AdminList is the admin console listing: free search, projetista filter and custom ordering.
func (svc *Service) AdminList(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page string) (Page, error) {
	filter.Clean()
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "id", Ascending: false}}
	}
	return svc.page(ctx, filter, ordering, page)
}

func (svc *Service) page(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page string) (Page, error) {
	count, err := svc.repo.CountChaves(ctx, filter)
	if err != nil {
		return Page{}, errors.Wrap(err, "counting chaves")
	}
	pagination := core.NewPagination(page, svc.opts.PageSize, count)
	results, err := svc.repo.QueryChaves(ctx, filter, ordering, pagination.Limit(), pagination.Offset())
	if err != nil {
		return Page{}, errors.Wrap(err, "querying chaves")
	}
	if results == nil {
		results = []Chave{}
	}
	return Page{Results: results, Pagination: pagination}, nil
}

// Query returns every chave matching the filter, without pagination.
func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Chave, error) {
	filter.Clean()
	return svc.repo.QueryChaves(ctx, filter, ordering, 0, 0)
}

func (svc *Service) GetByID(ctx context.Context, id int) (Chave, error) {
	return svc.repo.GetChaveByID(ctx, id)
}

// Lookup finds a chave by its exact code; found is false when there is none.
func (svc *Service) Lookup(ctx context.Context, code string) (chv Chave, found bool, err error) {
	code = core.CleanString(code)
	if code == "" {
		return Chave{}, false, nil
	}
	chv, err = svc.repo.GetChaveByCode(ctx, code)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Chave{}, false, nil
		}
		return Chave{}, false, err
	}
	return chv, true, nil
}

// Update applies a validated field-level edit.
func (svc *Service) Update(ctx context.Context, chv Chave, data UpdateChave) (Chave, error) {
	chv.NS = null.StringFrom(data.NS)
	chv.PoloID = null.IntFrom(data.Polo)
	chv.Municipio = null.StringFrom(data.Municipio)
	chv.Coordenada = null.StringFrom(data.Coordenada)
	chv.Poste = null.StringFrom(data.Poste)
	chv.Observacao = null.NewString(data.Observacao, data.Observacao != "")
	chv.DataModificacao = time.Now().UTC()
	return svc.repo.UpdateChave(ctx, chv)
}

func (svc *Service) Create(ctx context.Context, data ChaveData) (Chave, error) {
	now := time.Now().UTC()
	chv := Chave{DataInclusao: now, DataModificacao: now}
	data.apply(&chv)
	chv, err := svc.repo.CreateChave(ctx, chv)
	if errors.Cause(err) == ErrChaveExists {
		return Chave{}, core.NewValidationError(ErrFixErrors, core.FieldError{Field: "chave", Error: ErrChaveExists.Error()})
	}
	return chv, err
}

// AdminUpdate applies a validated full edit.
func (svc *Service) AdminUpdate(ctx context.Context, chv Chave, data ChaveData) (Chave, error) {
	data.apply(&chv)
	chv.DataModificacao = time.Now().UTC()
	chv, err := svc.repo.UpdateChave(ctx, chv)
	if errors.Cause(err) == ErrChaveExists {
		return Chave{}, core.NewValidationError(ErrFixErrors, core.FieldError{Field: "chave", Error: ErrChaveExists.Error()})
	}
	return chv, err
}

func (data ChaveData) apply(chv *Chave) {
	chv.Chave = data.Chave
	chv.ProjetistaID = data.Projetista
	chv.PoloID = data.Polo
	chv.NS = data.NS
	chv.Coordenada = data.Coordenada
	chv.Poste = data.Poste
	chv.Municipio = data.Municipio
	chv.Chamado = data.Chamado
	chv.DataChamado = data.DataChamado
	chv.Observacao = data.Observacao
}

func (svc *Service) Delete(ctx context.Context, ids ...int) error {
	_, err := svc.repo.DeleteChavesByID(ctx, ids)
	return err
}

// AssignProjetista sets the projetista of every chave listed in data; it must be an active one.
func (svc *Service) AssignProjetista(ctx context.Context, data AssignProjetista) (int, error) {
	if err := svc.validate.Struct(data); err != nil {
		if vErrs, ok := err.(validator.ValidationErrors); ok {
			return 0, core.NewValidationError(nil, svc.translateFields(vErrs)...)
		}
		return 0, err
	}
	if fErr, err := svc.checkProjetista(ctx, null.IntFrom(data.Projetista), true); err != nil {
		return 0, err
	} else if fErr != nil {
		return 0, core.NewValidationError(nil, *fErr)
	}

	ids := data.IDs()
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := svc.repo.SetProjetista(ctx, data.Projetista, ids)
	if err != nil {
		return 0, errors.Wrap(err, "assigning projetista")
	}
	return n, nil
}
