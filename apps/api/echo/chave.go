package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/janus/core"
	"github.com/trezcool/janus/core/chave"
	"github.com/trezcool/janus/core/polo"
	"github.com/trezcool/janus/core/projetista"
	"github.com/trezcool/janus/core/user"
)

const (
	// session key of the chaves selected in the admin console for bulk assignment
	sessionChaveIDs = "chave_ids"

	uploadField = "planilha"
)

type chaveApi struct {
	svc         *chave.Service
	polos       *polo.Service
	projetistas *projetista.Service
	sessions    core.SessionStore
	validate    *validator.Validate
}

func registerChaveAPI(g *echo.Group, authed echo.MiddlewareFunc, deps *Deps) {
	api := chaveApi{
		svc:         deps.ChaveSvc,
		polos:       deps.PoloSvc,
		projetistas: deps.ProjetistaSvc,
		sessions:    deps.Sessions,
		validate:    deps.Validate,
	}

	ag := g.Group("", authed)
	ag.GET("/buscar-chave", api.lookup)
	ag.POST("/solicitar-chaves", api.request)

	cg := ag.Group("/chaves")
	cg.GET("", api.list, groupsMiddleware(user.GroupTecnicos, user.GroupSupervisor))
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update)

	sg := ag.Group("", groupsMiddleware(user.GroupSupervisor))
	sg.GET("/importar-chaves", api.importFormat)
	sg.POST("/importar-chaves", api.importChaves)
	sg.GET("/atribuir-projetista", api.assignForm)
	sg.POST("/atribuir-projetista", api.assign)
}

// Handlers

func (api *chaveApi) list(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	filter := chave.QueryFilter{
		NS:         ctx.QueryParam("ns_search"),
		Chave:      ctx.QueryParam("chave_search"),
		Projetista: ctx.QueryParam("projetista_search"),
		SemProjeto: hasQueryParam(ctx, "sem_projeto"),
	}

	page, err := api.svc.List(ctx.Request().Context(), usr, filter, ctx.QueryParam("page"))
	if err != nil {
		return errors.Wrap(err, "listing chaves")
	}
	return ctx.JSON(http.StatusOK, ChaveListResponse{
		Page:         page,
		IsSuperuser:  usr.IsSuperuser,
		IsSupervisor: usr.IsSupervisor(),
	})
}

// editable loads the `:id` chave, checking that the context user may edit it.
func (api *chaveApi) editable(ctx echo.Context) (chave.Chave, error) {
	usr, err := getContextUser(ctx)
	if err != nil {
		return chave.Chave{}, err
	}
	id, err := paramID(ctx)
	if err != nil {
		return chave.Chave{}, err
	}
	chv, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return chave.Chave{}, errors.Wrap(err, "finding chave by ID")
	}
	if !chv.EditableBy(usr) {
		return chave.Chave{}, errHttpForbidden
	}
	return chv, nil
}

func (api *chaveApi) retrieve(ctx echo.Context) error {
	chv, err := api.editable(ctx)
	if err != nil {
		return err
	}
	polos, err := api.polos.Query(ctx.Request().Context(), "")
	if err != nil {
		return errors.Wrap(err, "querying polos")
	}
	if polos == nil {
		polos = []polo.Polo{}
	}
	return ctx.JSON(http.StatusOK, ChaveFormResponse{Chave: chv, Polos: polos})
}

func (api *chaveApi) update(ctx echo.Context) error {
	chv, err := api.editable(ctx)
	if err != nil {
		return err
	}

	var data chave.UpdateChave
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateChave")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.svc); err != nil {
		return err
	}

	chv, err = api.svc.Update(reqCtx, chv, data)
	if err != nil {
		return errors.Wrap(err, "updating chave")
	}
	return ctx.JSON(http.StatusOK, ChaveUpdateResponse{Success: "Chave atualizada com sucesso!", Chave: chv})
}

func (api *chaveApi) importFormat(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"field": uploadField, "format": chave.ImportFormat})
}

func (api *chaveApi) importChaves(ctx echo.Context) error {
	fh, err := ctx.FormFile(uploadField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return core.NewValidationError(chave.ErrFixErrors, core.FieldError{Field: uploadField, Error: "Este campo é obrigatório."})
		}
		return errors.Wrap(err, "reading upload")
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening upload")
	}
	defer f.Close()

	result, err := api.svc.Import(ctx.Request().Context(), fh.Filename, f)
	if err != nil {
		return errors.Wrap(err, "importing chaves")
	}
	return ctx.JSON(http.StatusOK, result)
}

func (api *chaveApi) assignForm(ctx echo.Context) error {
	sid, err := sessionID(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()

	ids := make([]int, 0)
	if _, err := core.GetSessionJSON(reqCtx, api.sessions, sid, sessionChaveIDs, &ids); err != nil {
		return errors.Wrap(err, "reading selected chaves")
	}
	projetistas, err := api.projetistas.QueryActive(reqCtx)
	if err != nil {
		return errors.Wrap(err, "querying active projetistas")
	}
	if projetistas == nil {
		projetistas = []projetista.Projetista{}
	}
	return ctx.JSON(http.StatusOK, AssignFormResponse{ChavesIDs: ids, Projetistas: projetistas})
}

func (api *chaveApi) assign(ctx echo.Context) error {
	sid, err := sessionID(ctx)
	if err != nil {
		return err
	}
	var data chave.AssignProjetista
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignProjetista")
	}

	reqCtx := ctx.Request().Context()
	n, err := api.svc.AssignProjetista(reqCtx, data)
	if err != nil {
		return err
	}
	if err := api.sessions.Unset(reqCtx, sid, sessionChaveIDs); err != nil {
		return errors.Wrap(err, "clearing selected chaves")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"updated": n})
}

func (api *chaveApi) lookup(ctx echo.Context) error {
	chv, found, err := api.svc.Lookup(ctx.Request().Context(), ctx.QueryParam("query"))
	if err != nil {
		return errors.Wrap(err, "looking up chave")
	}
	resp := LookupResponse{}
	if found {
		resp.Chave = &chv
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *chaveApi) request(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data RequestChavesRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RequestChavesRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	if err := api.svc.RequestChaves(ctx.Request().Context(), usr); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Solicitação enviada com sucesso!"})
}

type (
	ChaveListResponse struct {
		chave.Page
		IsSuperuser  bool `json:"is_superuser"`
		IsSupervisor bool `json:"usuario_no_grupo_supervisor"`
	}

	ChaveFormResponse struct {
		Chave chave.Chave `json:"chave"`
		Polos []polo.Polo `json:"polos"`
	}

	ChaveUpdateResponse struct {
		Success string      `json:"success"`
		Chave   chave.Chave `json:"chave"`
	}

	AssignFormResponse struct {
		ChavesIDs   []int                   `json:"chaves_ids"`
		Projetistas []projetista.Projetista `json:"projetistas"`
	}

	LookupResponse struct {
		Chave *chave.Chave `json:"chave"`
	}

	RequestChavesRequest struct {
		Confirmacao bool `json:"confirmacao" validate:"required"`
	}
)
