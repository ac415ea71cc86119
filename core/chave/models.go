package chave

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/janus/core"
	"github.com/trezcool/janus/core/user"
)

const ModelName = "Chave"

// Chave is a tracked key. Reads carry the display values of its relations.
type Chave struct {
	ID              int         `json:"id"`
	Chave           string      `json:"chave"`
	ProjetistaID    null.Int    `json:"projetista_id"`
	Projetista      null.String `json:"projetista"`
	PoloID          null.Int    `json:"polo_id"`
	Polo            null.String `json:"polo"`
	NS              null.String `json:"ns"`
	Coordenada      null.String `json:"coordenada"`
	Poste           null.String `json:"poste"`
	Municipio       null.String `json:"municipio"`
	Chamado         null.String `json:"chamado"`
	DataChamado     null.Time   `json:"data_chamado"`
	DataInclusao    time.Time   `json:"data_inclusao"`
	DataModificacao time.Time   `json:"data_modificacao"`
	Observacao      null.String `json:"observacao"`

	// account linked to the projetista
	OwnerID null.Int `json:"-"`
}

func (c Chave) String() string { return c.Chave }

// EditableBy tells whether usr may edit the chave: superusers, supervisors and the owner.
func (c Chave) EditableBy(usr user.User) bool {
	return usr.CanManageChaves() || (c.OwnerID.Valid && c.OwnerID.Int == usr.ID)
}

// UpdateChave is the field-level edit of a chave. The code itself is read-only.
type UpdateChave struct {
	NS         string `json:"ns" validate:"required,ns"`
	Polo       int    `json:"polo" validate:"required"`
	Municipio  string `json:"municipio" validate:"required,max=100"`
	Coordenada string `json:"coordenada" validate:"required,max=14,coordenada"`
	Poste      string `json:"poste" validate:"required,max=3"`
	Observacao string `json:"observacao"`
}

func (uc *UpdateChave) Validate(ctx context.Context, svc *Service) error {
	uc.NS = core.CleanString(uc.NS)
	uc.Municipio = core.CleanString(uc.Municipio)
	uc.Coordenada = core.CleanString(uc.Coordenada)
	uc.Poste = core.CleanString(uc.Poste)
	uc.Observacao = strings.TrimSpace(uc.Observacao)

	var flds []core.FieldError
	if err := svc.validate.Struct(uc); err != nil {
		vErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		flds = append(flds, svc.translateFields(vErrs)...)
	}
	if uc.Polo != 0 {
		if fErr, err := svc.checkPolo(ctx, null.IntFrom(uc.Polo)); err != nil {
			return err
		} else if fErr != nil {
			flds = append(flds, *fErr)
		}
	}
	if len(flds) > 0 {
		return core.NewValidationError(ErrFixErrors, flds...)
	}
	return nil
}

// ChaveData is the full payload of the admin console.
type ChaveData struct {
	Chave       string      `json:"chave" validate:"required,max=6"`
	Projetista  null.Int    `json:"projetista"`
	Polo        null.Int    `json:"polo"`
	NS          null.String `json:"ns" validate:"omitempty,ns"`
	Coordenada  null.String `json:"coordenada" validate:"omitempty,max=14,coordenada"`
	Poste       null.String `json:"poste" validate:"omitempty,max=3"`
	Municipio   null.String `json:"municipio" validate:"omitempty,max=100"`
	Chamado     null.String `json:"chamado" validate:"omitempty,max=30"`
	DataChamado null.Time   `json:"data_chamado"`
	Observacao  null.String `json:"observacao"`
}

func cleanNullString(s null.String) null.String {
	if !s.Valid {
		return s
	}
	v := core.CleanString(s.String)
	return null.NewString(v, v != "")
}

func (cd *ChaveData) Validate(ctx context.Context, svc *Service, excludedIDs ...int) error {
	cd.Chave = core.CleanString(cd.Chave)
	cd.NS = cleanNullString(cd.NS)
	cd.Coordenada = cleanNullString(cd.Coordenada)
	cd.Poste = cleanNullString(cd.Poste)
	cd.Municipio = cleanNullString(cd.Municipio)
	cd.Chamado = cleanNullString(cd.Chamado)
	if cd.Observacao.Valid && strings.TrimSpace(cd.Observacao.String) == "" {
		cd.Observacao = null.String{}
	}

	var flds []core.FieldError
	if err := svc.validate.Struct(cd); err != nil {
		vErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		flds = append(flds, svc.translateFields(vErrs)...)
	}
	if cd.Chave != "" {
		if err := svc.repo.CheckChaveUniqueness(ctx, cd.Chave, excludedIDs); err != nil {
			if errors.Cause(err) != ErrChaveExists {
				return err
			}
			flds = append(flds, core.FieldError{Field: "chave", Error: ErrChaveExists.Error()})
		}
	}
	if fErr, err := svc.checkPolo(ctx, cd.Polo); err != nil {
		return err
	} else if fErr != nil {
		flds = append(flds, *fErr)
	}
	if fErr, err := svc.checkProjetista(ctx, cd.Projetista, false); err != nil {
		return err
	} else if fErr != nil {
		flds = append(flds, *fErr)
	}
	if len(flds) > 0 {
		return core.NewValidationError(ErrFixErrors, flds...)
	}
	return nil
}

// AssignProjetista is the bulk assignment form: `ChavesIDs` is a list like "[1, 2,3]".
type AssignProjetista struct {
	Projetista int    `json:"projetista" validate:"required"`
	ChavesIDs  string `json:"chaves_ids"`
}

func (ap *AssignProjetista) IDs() []int { return core.ParseIDList(ap.ChavesIDs) }

// QueryFilter holds both the listing filters (AND) and the admin console search (OR).
type QueryFilter struct {
	NS         string `query:"ns_search"`
	Chave      string `query:"chave_search"`
	Projetista string `query:"projetista_search"`
	SemProjeto bool   `query:"-"` // NS IS NULL

	Search        string `query:"q"`
	SemProjetista bool   `query:"-"` // projetista IS NULL
	ProjetistaID  int    `query:"-"`

	OwnerID int   `query:"-"` // only chaves of the projetista linked to this account
	IDs     []int `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.NS = core.CleanString(qf.NS)
	qf.Chave = core.CleanString(qf.Chave)
	qf.Projetista = core.CleanString(qf.Projetista)
	qf.Search = core.CleanString(qf.Search)
}

// Page is one page of a chave listing.
type Page struct {
	Results []Chave `json:"results"`
	core.Pagination
}

// ImportResult reports an import run: created count and every row message, in order.
type ImportResult struct {
	Created  int            `json:"created"`
	Messages []core.Message `json:"messages"`
}
