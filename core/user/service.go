package user

import (
	"context"
	"net/mail"
	"strconv"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/janus/core"
)

var (
	// errors
	ErrNotFound      = errors.New("user not found")
	ErrEmailExists   = errors.New("Já existe um usuário com este email.")
	ErrEmailRequired = errors.New("O email deve ser informado.")
	ErrProtected     = errors.New("Não é possível excluir o usuário pois está vinculado a um projetista.")
	ErrInvalidReset  = errors.New("O link de redefinição de senha é inválido ou expirou.")
	errSuperuserFlag = errors.New("superuser must have is_staff=true and is_superuser=true")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedIDs []int, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Email, User.FirstName or User.LastName.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		GetUserByID(ctx context.Context, id int, exec ...core.DBExecutor) (User, error)
		GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		SetLastLogin(ctx context.Context, id int, at time.Time, exec ...core.DBExecutor) error
		// DeleteUsersByID returns ErrProtected when a user is still referenced.
		DeleteUsersByID(ctx context.Context, ids []int, exec ...core.DBExecutor) (int, error)
	}

	Options struct {
		DefaultFromEmail mail.Address
		FrontendBaseURL  string
		SecretKey        string
		ResetTimeout     time.Duration
	}

	Service struct {
		repo       Repository
		mailSvc    core.EmailService
		validate   *validator.Validate
		translator ut.Translator
		tokens     tokenGenerator
		opts       Options
	}
)

func NewService(
	repo Repository,
	mailSvc core.EmailService,
	validate *validator.Validate,
	translator ut.Translator,
	opts Options,
) *Service {
	return &Service{
		repo:       repo,
		mailSvc:    mailSvc,
		validate:   validate,
		translator: translator,
		tokens:     newTokenGenerator(opts.SecretKey, opts.ResetTimeout),
		opts:       opts,
	}
}

func (svc *Service) Validator() *validator.Validate { return svc.validate }

func (svc *Service) checkUniqueness(ctx context.Context, email string, excludedIDs ...int) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, excludedIDs); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(nil, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Create stores a new active user. The email is the identity: an empty one is refused.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	email := core.CleanString(nu.Email, true /* lower */)
	if email == "" {
		return User{}, ErrEmailRequired
	}

	usr := User{
		Email:      email,
		FirstName:  nu.FirstName,
		LastName:   nu.LastName,
		IsActive:   true,
		IsStaff:    true,
		Groups:     nu.Groups,
		DateJoined: time.Now().UTC(),
	}
	if nu.IsStaff != nil {
		usr.IsStaff = *nu.IsStaff
	}
	if nu.IsSuperuser != nil {
		usr.IsSuperuser = *nu.IsSuperuser
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

// CreateSuperuser forces IsStaff and IsSuperuser; explicitly passing false for either is an error.
func (svc *Service) CreateSuperuser(ctx context.Context, nu NewUser) (User, error) {
	if (nu.IsStaff != nil && !*nu.IsStaff) || (nu.IsSuperuser != nil && !*nu.IsSuperuser) {
		return User{}, errSuperuserFlag
	}
	yes := true
	nu.IsStaff, nu.IsSuperuser = &yes, &yes
	return svc.Create(ctx, nu)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "email", Ascending: true}}
	}
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

// Authenticate checks the credentials of an active or inactive account; callers decide what inactivity means.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if err := usr.CheckPassword(pwd); err != nil {
		return User{}, ErrNotFound
	}
	return usr, nil
}

func (svc *Service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	if uu.Email != "" {
		usr.Email = uu.Email
	}
	if uu.FirstName != nil {
		usr.FirstName = *uu.FirstName
	}
	if uu.LastName != nil {
		usr.LastName = *uu.LastName
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.IsStaff != nil {
		usr.IsStaff = *uu.IsStaff
	}
	if uu.IsSuperuser != nil {
		usr.IsSuperuser = *uu.IsSuperuser
	}
	if uu.Groups != nil {
		usr.Groups = uu.Groups
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := time.Now().UTC()
	if err := svc.repo.SetLastLogin(ctx, usr.ID, now); err != nil {
		return User{}, err
	}
	usr.LastLogin.SetValid(now)
	return usr, nil
}

// SetPassword applies the password policy, then stores the new hash.
func (svc *Service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := svc.ValidatePassword(pwd, usr); err != nil {
		return User{}, err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.UpdateUser(ctx, usr)
}

// ValidatePassword runs the password policy outside of a struct validation, e.g. for CLI prompts.
func (svc *Service) ValidatePassword(pwd string, usr User) error {
	data := passwordCheck{Password: pwd, name: usr.FullName(), email: usr.Email}
	if err := svc.validate.Struct(data); err != nil {
		return core.TranslateValidationErrors(err, svc.translator, nil)
	}
	return nil
}

func (svc *Service) Delete(ctx context.Context, ids ...int) error {
	_, err := svc.repo.DeleteUsersByID(ctx, ids)
	return err
}

// RequestPasswordReset emails a reset link to the user owning the email, if it is active.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	msg, err := svc.passwordResetMessage(usr)
	if err != nil {
		return err
	}
	svc.mailSvc.SendMessages(msg)
	return nil
}

func (svc *Service) passwordResetMessage(usr User) (*core.EmailMessage, error) {
	token, err := svc.tokens.makeToken(usr)
	if err != nil {
		return nil, errors.Wrap(err, "making password reset token")
	}
	name := usr.FullName()
	if name == "" {
		name = usr.Email
	}
	return &core.EmailMessage{
		To:              []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject:         "Redefinição de senha",
		TemplateName:    "password_reset",
		FrontendBaseURL: svc.opts.FrontendBaseURL,
		TemplateData: map[string]interface{}{
			"name":  name,
			"uid":   EncodeUID(usr),
			"token": token,
		},
	}, nil
}

// ResetPassword checks the uid/token pair of a reset link and sets the new password.
func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) (User, error) {
	id, err := decodeUID(data.UID)
	if err != nil {
		return User{}, core.NewValidationError(ErrInvalidReset)
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, core.NewValidationError(ErrInvalidReset)
		}
		return User{}, err
	}
	if err := svc.tokens.verifyToken(usr, data.Token); err != nil {
		return User{}, core.NewValidationError(ErrInvalidReset)
	}
	return svc.SetPassword(ctx, usr, data.Password)
}

// MakeResetToken is exposed for the admin tooling and tests.
func (svc *Service) MakeResetToken(usr User) (uid, token string, err error) {
	token, err = svc.tokens.makeToken(usr)
	return EncodeUID(usr), token, err
}

func idString(id int) string { return strconv.Itoa(id) }
