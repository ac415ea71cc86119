package echoapi

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/janus/core"
	"github.com/trezcool/janus/core/user"
)

const (
	contextClaimsKey = "claims"
	contextUserKey   = "user"
	bearerPrefix     = "Bearer "
)

var errUsrNotFoundInCtx = errors.New("user object not found in echo.Context")

// Claims represents the authorization claims transmitted via a JWT.
// The token ID (jti) names the server-side session, deleting the session revokes the token.
type Claims struct {
	jwt.RegisteredClaims
	Email       string   `json:"email,omitempty"`
	IsSuperuser bool     `json:"is_superuser,omitempty"`
	Groups      []string `json:"groups,omitempty"`
}

type authenticator struct {
	key      []byte
	issuer   string
	ttl      time.Duration
	sessions core.SessionStore
	users    *user.Service
}

func newAuthenticator(conf *core.Config, sessions core.SessionStore, users *user.Service) *authenticator {
	return &authenticator{
		key:      []byte(conf.SecretKey),
		issuer:   conf.AppName,
		ttl:      conf.Server.JWTExpirationDelta,
		sessions: sessions,
		users:    users,
	}
}

func (a *authenticator) newClaims(usr user.User, sid string) *Claims {
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sid,
			Issuer:    a.issuer,
			Subject:   strconv.Itoa(usr.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
		Email:       usr.Email,
		IsSuperuser: usr.IsSuperuser,
		Groups:      usr.Groups,
	}
}

func (a *authenticator) generateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(a.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (a *authenticator) parseToken(raw string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(
		raw, claims,
		func(*jwt.Token) (interface{}, error) { return a.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// login checks the credentials, opens a session and returns its token.
func (a *authenticator) login(ctx context.Context, email, pwd string) (string, user.User, error) {
	usr, err := a.users.Authenticate(ctx, email, pwd)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return "", user.User{}, core.NewValidationError(errInvalidCredentials)
		}
		return "", user.User{}, errors.Wrap(err, "authenticating")
	}
	if !usr.IsActive {
		return "", user.User{}, errAccountDeactivated
	}

	usr, err = a.users.SetLastLogin(ctx, usr)
	if err != nil {
		return "", user.User{}, errors.Wrap(err, "setting lastLogin")
	}
	sid, err := a.sessions.Create(ctx, usr.ID, a.ttl)
	if err != nil {
		return "", user.User{}, errors.Wrap(err, "creating session")
	}
	token, err := a.generateToken(a.newClaims(usr, sid))
	if err != nil {
		return "", user.User{}, err
	}
	return token, usr, nil
}

func (a *authenticator) logout(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	return errors.Wrap(a.sessions.Delete(ctx.Request().Context(), claims.ID), "deleting session")
}

// middleware requires a valid bearer token backed by a live session and an active account.
func (a *authenticator) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := ctx.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, bearerPrefix) {
				return errMissingToken
			}
			claims, err := a.parseToken(strings.TrimSpace(header[len(bearerPrefix):]))
			if err != nil {
				return errInvalidToken
			}

			reqCtx := ctx.Request().Context()
			ok, err := a.sessions.Exists(reqCtx, claims.ID)
			if err != nil {
				return errors.Wrap(err, "checking session")
			}
			if !ok {
				return errInvalidToken
			}

			id, err := strconv.Atoi(claims.Subject)
			if err != nil {
				return errInvalidToken
			}
			usr, err := a.users.GetByID(reqCtx, id)
			if err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					return errInvalidToken
				}
				return errors.Wrap(err, "finding user by ID")
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}

			ctx.Set(contextClaimsKey, claims)
			ctx.Set(contextUserKey, usr)
			return next(ctx)
		}
	}
}

func getContextClaims(ctx echo.Context) (*Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(*Claims); ok {
		return claims, nil
	}
	return nil, errUnauthorized
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errors.Wrap(errUsrNotFoundInCtx, "getting context user")
}

// sessionID returns the session of the current request.
func sessionID(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}
	return claims.ID, nil
}
