package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/janus/core"
	"github.com/trezcool/janus/core/aviso"
	"github.com/trezcool/janus/core/chave"
	"github.com/trezcool/janus/core/emailconfig"
	"github.com/trezcool/janus/core/polo"
	"github.com/trezcool/janus/core/projetista"
	"github.com/trezcool/janus/core/user"
)

var (
	errMissingToken       = echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed jwt")
	errInvalidToken       = echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired jwt")
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAccountDeactivated = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errHttpForbidden      = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound       = echo.NewHTTPError(http.StatusNotFound, "not found")
	errTooManyRequests    = echo.NewHTTPError(http.StatusTooManyRequests, "Muitas tentativas. Tente novamente mais tarde.")

	errInvalidCredentials = errors.New("Usuário ou senha inválidos")

	notFoundErrors = []error{
		user.ErrNotFound,
		chave.ErrNotFound,
		projetista.ErrNotFound,
		polo.ErrNotFound,
		aviso.ErrNotFound,
		emailconfig.ErrNotFound,
	}
	protectedErrors = []error{
		user.ErrProtected,
		projetista.ErrProtected,
		polo.ErrProtected,
	}
)

type errorResponse struct {
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	ModalShow bool              `json:"modal_show,omitempty"`
}

func isOneOf(err error, targets []error) bool {
	for _, target := range targets {
		if err == target {
			return true
		}
	}
	return false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var resp errorResponse

		origErr := errors.Cause(err)
		switch {
		case isOneOf(origErr, notFoundErrors):
			code = http.StatusNotFound
			resp.Error = errHttpNotFound.Message.(string)
		case isOneOf(origErr, protectedErrors):
			code = http.StatusBadRequest
			resp.Error = origErr.Error()
		default:
			switch e := origErr.(type) {
			case *echo.HTTPError:
				if herr, ok := e.Internal.(*echo.HTTPError); ok {
					e = herr
				}
				code = e.Code
				if msg, ok := e.Message.(string); ok {
					resp.Error = msg
				} else {
					resp.Error = http.StatusText(code)
				}
			case validator.ValidationErrors:
				code = http.StatusBadRequest
				resp.Error = chave.ErrFixErrors.Error()
				resp.Fields = make(map[string]string, len(e))
				for _, vErr := range e {
					resp.Fields[vErr.Field()] = vErr.Translate(translator)
				}
			case *core.ValidationError:
				code = http.StatusBadRequest
				if e.Err != nil {
					resp.Error = e.Err.Error()
				} else {
					resp.Error = chave.ErrFixErrors.Error()
				}
				if len(e.Fields) > 0 {
					resp.Fields = e.FieldMap()
				}
			case *chave.RequestDeniedError:
				code = http.StatusBadRequest
				resp.Error = e.Error()
				resp.ModalShow = true
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				resp.Error = msg

				if usr, uErr := getContextUser(ctx); uErr == nil {
					logger.Error(msg, errors.Wrap(err, msg), usr)
				} else {
					logger.Error(msg, errors.Wrap(err, msg))
				}
				if ctx.Echo().Debug {
					resp.Error = err.Error()
				}

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, resp)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
