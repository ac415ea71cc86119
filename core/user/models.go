package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/janus/core"
)

// Groups
const (
	GroupSupervisor = "supervisor_projetos"
	GroupTecnicos   = "tecnicos"
	GroupTopografia = "topografia"
)

var (
	AllGroups = []string{GroupSupervisor, GroupTecnicos, GroupTopografia}

	Groups = []Group{
		{Name: "Supervisor de Projetos", Value: GroupSupervisor},
		{Name: "Técnicos", Value: GroupTecnicos},
		{Name: "Topografia", Value: GroupTopografia},
	}
)

type Group struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// User is the authentication principal, identified by its email.
type User struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	IsActive     bool      `json:"is_active"`
	IsStaff      bool      `json:"is_staff"`
	IsSuperuser  bool      `json:"is_superuser"`
	Groups       []string  `json:"groups"`
	PasswordHash []byte    `json:"-"`
	DateJoined   time.Time `json:"date_joined"` // UTC
	LastLogin    null.Time `json:"last_login"`  // UTC
}

func (u User) String() string { return u.Email }

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// InGroup reports whether the user belongs to any of the given groups.
func (u User) InGroup(groups ...string) bool {
	for _, g := range u.Groups {
		for _, want := range groups {
			if g == want {
				return true
			}
		}
	}
	return false
}

// Allowed is the access rule of every protected operation: superuser or member of one of the groups.
func (u User) Allowed(groups ...string) bool {
	return u.IsSuperuser || u.InGroup(groups...)
}

func (u User) IsSupervisor() bool { return u.InGroup(GroupSupervisor) }
func (u User) IsTecnico() bool    { return u.InGroup(GroupTecnicos) }
func (u User) IsTopografo() bool  { return u.InGroup(GroupTopografia) }

// CanManageChaves tells whether the user sees every chave, not only their own.
func (u User) CanManageChaves() bool { return u.Allowed(GroupSupervisor) }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Email           string   `json:"email" validate:"required,email,max=254"`
	FirstName       string   `json:"first_name" validate:"max=150"`
	LastName        string   `json:"last_name" validate:"max=150"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	IsStaff         *bool    `json:"is_staff"`
	IsSuperuser     *bool    `json:"is_superuser"`
	Groups          []string `json:"groups" validate:"omitempty,allgroups"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Email           string   `json:"email" validate:"omitempty,email,max=254"`
	FirstName       *string  `json:"first_name" validate:"omitempty,max=150"`
	LastName        *string  `json:"last_name" validate:"omitempty,max=150"`
	IsActive        *bool    `json:"is_active"`
	IsStaff         *bool    `json:"is_staff"`
	IsSuperuser     *bool    `json:"is_superuser"`
	Groups          []string `json:"groups" validate:"omitempty,allgroups"`
	Password        string   `json:"password" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm" validate:"required_with=Password,omitempty,eqfield=Password"`

	// filled by Validate, for the password policy
	name string
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc *Service) error {
	email := core.CleanString(uu.Email, true /* lower */)
	if email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}
	if uu.FirstName != nil {
		*uu.FirstName = core.CleanString(*uu.FirstName)
	}
	if uu.LastName != nil {
		*uu.LastName = core.CleanString(*uu.LastName)
	}
	uu.name = origUsr.FullName()

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, uu.Email, origUsr.ID)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	Search      string `query:"q"`
	Group       string `query:"group"`
	IsActive    *bool  `query:"is_active"`
	IsSuperuser *bool  `query:"is_superuser"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Group = core.CleanString(qf.Group)
}
