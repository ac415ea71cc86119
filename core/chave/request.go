package chave

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/janus/core"
	"github.com/trezcool/janus/core/projetista"
	"github.com/trezcool/janus/core/user"
)

const (
	// a projetista may hold at most this many chaves without NS before asking for more
	maxPendingChaves = 2

	requestSubject  = "Solicitação de Chaves"
	requestTemplate = "solicitacao_chaves"
)

var nowFunc = time.Now // mockable

// RequestDeniedError refuses a request while the projetista still has too many chaves without NS.
type RequestDeniedError struct {
	Pending int
}

func (err RequestDeniedError) Error() string {
	return fmt.Sprintf("Solicitação Negada! Você ainda tem %d Chaves para serem designadas.", err.Pending)
}

func IsRequestDenied(err error) (RequestDeniedError, bool) {
	denied, ok := errors.Cause(err).(*RequestDeniedError)
	if !ok || denied == nil {
		return RequestDeniedError{}, false
	}
	return *denied, true
}

// NoProjetistaError is returned when the account is not linked to any projetista.
func NoProjetistaError(usr user.User) error {
	return core.NewValidationError(errors.Errorf("Nenhum projetista vinculado ao usuário %s.", usr.Email))
}

// RequestChaves notifies the configured recipients that the projetista linked to usr wants new chaves.
// The email is sent synchronously: a delivery failure is returned.
func (svc *Service) RequestChaves(ctx context.Context, usr user.User) error {
	p, err := svc.projetistas.GetByUsuario(ctx, usr.ID)
	if err != nil {
		if errors.Cause(err) == projetista.ErrNotFound {
			return NoProjetistaError(usr)
		}
		return errors.Wrap(err, "finding projetista by usuario")
	}

	pending, err := svc.repo.CountChaves(ctx, QueryFilter{ProjetistaID: p.ID, SemProjeto: true})
	if err != nil {
		return errors.Wrap(err, "counting pending chaves")
	}
	if pending > maxPendingChaves {
		return &RequestDeniedError{Pending: pending}
	}

	recipients, err := svc.recipients.Recipients(ctx)
	if err != nil {
		return errors.Wrap(err, "listing recipients")
	}
	msg := &core.EmailMessage{
		To:              recipients,
		Subject:         requestSubject,
		TemplateName:    requestTemplate,
		FrontendBaseURL: svc.opts.FrontendBaseURL,
		TemplateData: map[string]interface{}{
			"usuario_nome":     p.Nome,
			"data_solicitacao": nowFunc(),
		},
	}
	if err := svc.mailSvc.SendMessage(msg); err != nil {
		return errors.Wrap(err, "sending chave request")
	}
	svc.logger.Info(fmt.Sprintf("chave request sent for %s", p.Nome), map[string]interface{}{"recipients": len(recipients)})
	return nil
}
