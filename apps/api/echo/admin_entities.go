package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/janus/core"
	"github.com/trezcool/janus/core/aviso"
	"github.com/trezcool/janus/core/emailconfig"
	"github.com/trezcool/janus/core/polo"
	"github.com/trezcool/janus/core/projetista"
)

// Projetistas

func (api *adminApi) queryProjetistas(ctx echo.Context) error {
	filter := projetista.QueryFilter{Search: ctx.QueryParam("q"), Ativo: queryBool(ctx, "ativo")}
	projetistas, err := api.projetistas.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying projetistas")
	}
	if projetistas == nil {
		projetistas = []projetista.Projetista{}
	}
	return ctx.JSON(http.StatusOK, projetistas)
}

func (api *adminApi) getProjetista(ctx echo.Context) (projetista.Projetista, error) {
	id, err := paramID(ctx)
	if err != nil {
		return projetista.Projetista{}, err
	}
	p, err := api.projetistas.GetByID(ctx.Request().Context(), id)
	return p, errors.Wrap(err, "finding projetista by ID")
}

func (api *adminApi) createProjetista(ctx echo.Context) error {
	var data projetista.ProjetistaData
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ProjetistaData")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.projetistas.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating projetista")
	}
	return ctx.JSON(http.StatusCreated, flash(p, core.LevelSuccess, core.CreatedMessage(projetista.ModelName, p)))
}

func (api *adminApi) retrieveProjetista(ctx echo.Context) error {
	p, err := api.getProjetista(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *adminApi) updateProjetista(ctx echo.Context) error {
	p, err := api.getProjetista(ctx)
	if err != nil {
		return err
	}
	var data projetista.ProjetistaData
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ProjetistaData")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err = api.projetistas.Update(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "updating projetista")
	}
	return ctx.JSON(http.StatusOK, flash(p, core.LevelSuccess, core.UpdatedMessage(projetista.ModelName, p)))
}

func (api *adminApi) destroyProjetista(ctx echo.Context) error {
	p, err := api.getProjetista(ctx)
	if err != nil {
		return err
	}
	if err := api.projetistas.Delete(ctx.Request().Context(), p.ID); err != nil {
		return errors.Wrap(err, "deleting projetista")
	}
	return ctx.JSON(http.StatusOK, flash(nil, core.LevelSuccess, core.DeletedMessage(projetista.ModelName)))
}

// Polos

func (api *adminApi) queryPolos(ctx echo.Context) error {
	polos, err := api.polos.Query(ctx.Request().Context(), ctx.QueryParam("q"))
	if err != nil {
		return errors.Wrap(err, "querying polos")
	}
	if polos == nil {
		polos = []polo.Polo{}
	}
	return ctx.JSON(http.StatusOK, polos)
}

func (api *adminApi) getPolo(ctx echo.Context) (polo.Polo, error) {
	id, err := paramID(ctx)
	if err != nil {
		return polo.Polo{}, err
	}
	p, err := api.polos.GetByID(ctx.Request().Context(), id)
	return p, errors.Wrap(err, "finding polo by ID")
}

func (api *adminApi) createPolo(ctx echo.Context) error {
	var data polo.PoloData
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PoloData")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.polos.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating polo")
	}
	return ctx.JSON(http.StatusCreated, flash(p, core.LevelSuccess, core.CreatedMessage(polo.ModelName, p)))
}

func (api *adminApi) retrievePolo(ctx echo.Context) error {
	p, err := api.getPolo(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *adminApi) updatePolo(ctx echo.Context) error {
	p, err := api.getPolo(ctx)
	if err != nil {
		return err
	}
	var data polo.PoloData
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PoloData")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err = api.polos.Update(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "updating polo")
	}
	return ctx.JSON(http.StatusOK, flash(p, core.LevelSuccess, core.UpdatedMessage(polo.ModelName, p)))
}

func (api *adminApi) destroyPolo(ctx echo.Context) error {
	p, err := api.getPolo(ctx)
	if err != nil {
		return err
	}
	if err := api.polos.Delete(ctx.Request().Context(), p.ID); err != nil {
		return errors.Wrap(err, "deleting polo")
	}
	return ctx.JSON(http.StatusOK, flash(nil, core.LevelSuccess, core.DeletedMessage(polo.ModelName)))
}

// Avisos

func (api *adminApi) queryAvisos(ctx echo.Context) error {
	avisos, err := api.avisos.Query(ctx.Request().Context(), ctx.QueryParam("q"))
	if err != nil {
		return errors.Wrap(err, "querying avisos")
	}
	if avisos == nil {
		avisos = []aviso.Aviso{}
	}
	return ctx.JSON(http.StatusOK, avisos)
}

func (api *adminApi) getAviso(ctx echo.Context) (aviso.Aviso, error) {
	id, err := paramID(ctx)
	if err != nil {
		return aviso.Aviso{}, err
	}
	a, err := api.avisos.GetByID(ctx.Request().Context(), id)
	return a, errors.Wrap(err, "finding aviso by ID")
}

func (api *adminApi) createAviso(ctx echo.Context) error {
	var data aviso.AvisoData
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AvisoData")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.avisos.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating aviso")
	}
	return ctx.JSON(http.StatusCreated, flash(a, core.LevelSuccess, core.CreatedMessage(aviso.ModelName, a)))
}

func (api *adminApi) retrieveAviso(ctx echo.Context) error {
	a, err := api.getAviso(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *adminApi) updateAviso(ctx echo.Context) error {
	a, err := api.getAviso(ctx)
	if err != nil {
		return err
	}
	var data aviso.AvisoData
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AvisoData")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	a, err = api.avisos.Update(ctx.Request().Context(), a, data)
	if err != nil {
		return errors.Wrap(err, "updating aviso")
	}
	return ctx.JSON(http.StatusOK, flash(a, core.LevelSuccess, core.UpdatedMessage(aviso.ModelName, a)))
}

func (api *adminApi) destroyAviso(ctx echo.Context) error {
	a, err := api.getAviso(ctx)
	if err != nil {
		return err
	}
	if err := api.avisos.Delete(ctx.Request().Context(), a.ID); err != nil {
		return errors.Wrap(err, "deleting aviso")
	}
	return ctx.JSON(http.StatusOK, flash(nil, core.LevelSuccess, core.DeletedMessage(aviso.ModelName)))
}

// Destinatários

func (api *adminApi) queryEmailConfigs(ctx echo.Context) error {
	configs, err := api.emailConfigs.Query(ctx.Request().Context(), ctx.QueryParam("q"))
	if err != nil {
		return errors.Wrap(err, "querying email configs")
	}
	if configs == nil {
		configs = []emailconfig.EmailConfig{}
	}
	return ctx.JSON(http.StatusOK, configs)
}

func (api *adminApi) getEmailConfig(ctx echo.Context) (emailconfig.EmailConfig, error) {
	id, err := paramID(ctx)
	if err != nil {
		return emailconfig.EmailConfig{}, err
	}
	ec, err := api.emailConfigs.GetByID(ctx.Request().Context(), id)
	return ec, errors.Wrap(err, "finding email config by ID")
}

func (api *adminApi) createEmailConfig(ctx echo.Context) error {
	var data emailconfig.EmailConfigData
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailConfigData")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ec, err := api.emailConfigs.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating email config")
	}
	return ctx.JSON(http.StatusCreated, flash(ec, core.LevelSuccess, core.CreatedMessage(emailconfig.ModelName, ec)))
}

func (api *adminApi) retrieveEmailConfig(ctx echo.Context) error {
	ec, err := api.getEmailConfig(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ec)
}

func (api *adminApi) updateEmailConfig(ctx echo.Context) error {
	ec, err := api.getEmailConfig(ctx)
	if err != nil {
		return err
	}
	var data emailconfig.EmailConfigData
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailConfigData")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ec, err = api.emailConfigs.Update(ctx.Request().Context(), ec, data)
	if err != nil {
		return errors.Wrap(err, "updating email config")
	}
	return ctx.JSON(http.StatusOK, flash(ec, core.LevelSuccess, core.UpdatedMessage(emailconfig.ModelName, ec)))
}

func (api *adminApi) destroyEmailConfig(ctx echo.Context) error {
	ec, err := api.getEmailConfig(ctx)
	if err != nil {
		return err
	}
	if err := api.emailConfigs.Delete(ctx.Request().Context(), ec.ID); err != nil {
		return errors.Wrap(err, "deleting email config")
	}
	return ctx.JSON(http.StatusOK, flash(nil, core.LevelSuccess, core.DeletedMessage(emailconfig.ModelName)))
}
