package echoapi_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	. "github.com/trezcool/janus/apps/api/echo"
	"github.com/trezcool/janus/core"
	"github.com/trezcool/janus/core/chave"
	"github.com/trezcool/janus/core/polo"
	"github.com/trezcool/janus/core/projetista"
	"github.com/trezcool/janus/core/user"
	"github.com/trezcool/janus/testutil"
)

func Test_adminApi_access(t *testing.T) {
	app := setup(t)
	r := setupRoles(t, app)

	notStaff := testutil.CreateUser(t, app.svcs.Repos.Users, "ns@janus.test", []string{user.GroupSupervisor}, false)
	notStaff.IsStaff = false
	_, err := app.svcs.Repos.Users.UpdateUser(context.Background(), notStaff)
	require.NoError(t, err)
	forbidden := marchallObj(t, errForbidden)

	runHTTPTests(t, app, []httpTest{
		{name: "auth required", path: "/janus/admin/polos", wantCode: http.StatusUnauthorized},
		{name: "tecnico", path: "/janus/admin/polos", token: r.tecTk, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "not staff", path: "/janus/admin/polos", token: app.login(t, notStaff), wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "supervisor", path: "/janus/admin/polos", token: r.superviTk, wantCode: http.StatusOK, wantData: []byte(`[]`)},
		{name: "superuser", path: "/janus/admin/polos", token: r.superTk, wantCode: http.StatusOK, wantData: []byte(`[]`)},
		{name: "usuarios: supervisor", path: "/janus/admin/usuarios", token: r.superviTk, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "usuarios: superuser", path: "/janus/admin/usuarios", token: r.superTk, wantCode: http.StatusOK},
	})
}

func Test_adminApi_polos(t *testing.T) {
	app := setup(t)
	r := setupRoles(t, app)

	rec := app.do(http.MethodPost, "/janus/admin/polos", r.superviTk, marchallObj(t, polo.PoloData{Polo: " P01 "}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Object   polo.Polo      `json:"object"`
		Messages []core.Message `json:"messages"`
	}
	decode(t, rec, &created)
	assert.Equal(t, "P01", created.Object.Polo)
	assert.Equal(t, []core.Message{{Level: core.LevelSuccess, Message: "Polo “P01” criado(a) com sucesso."}}, created.Messages)

	pl := created.Object
	detail := fmt.Sprintf("/janus/admin/polos/%d", pl.ID)
	testutil.CreateChave(t, app.svcs.Repos.Chaves, "C1", testutil.WithPolo(pl))
	other := testutil.CreatePolo(t, app.svcs.Repos.Polos, "P02")

	runHTTPTests(t, app, []httpTest{
		{
			name: "duplicate", method: http.MethodPost, path: "/janus/admin/polos", token: r.superviTk,
			body: marchallObj(t, polo.PoloData{Polo: "P01"}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Por favor, corrija os erros abaixo.", Fields: map[string]string{"polo": polo.ErrPoloExists.Error()}}),
		},
		{
			name: "too long", method: http.MethodPost, path: "/janus/admin/polos", token: r.superviTk,
			body: marchallObj(t, polo.PoloData{Polo: "P001"}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Por favor, corrija os erros abaixo.", Fields: map[string]string{"polo": "Certifique-se de que o valor tenha no máximo 3 caracteres."}}),
		},
		{name: "retrieve", path: detail, token: r.superviTk, wantCode: http.StatusOK, wantData: marchallObj(t, pl)},
		{name: "search", path: "/janus/admin/polos?q=02", token: r.superviTk, wantCode: http.StatusOK, wantData: marchallObj(t, []polo.Polo{other})},
		{
			name: "update", method: http.MethodPut, path: detail, token: r.superviTk, body: marchallObj(t, polo.PoloData{Polo: "P03"}),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, FlashResponse{
				Object:   polo.Polo{ID: pl.ID, Polo: "P03"},
				Messages: []core.Message{{Level: core.LevelSuccess, Message: "Polo “P03” atualizado(a) com sucesso."}},
			}),
		},
		{
			name: "protected", method: http.MethodDelete, path: detail, token: r.superviTk,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: polo.ErrProtected.Error()}),
		},
		{
			name: "delete", method: http.MethodDelete, path: fmt.Sprintf("/janus/admin/polos/%d", other.ID), token: r.superviTk,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, FlashResponse{Messages: []core.Message{{Level: core.LevelSuccess, Message: "Polo excluído(a) com sucesso."}}}),
		},
		{name: "deleted", path: fmt.Sprintf("/janus/admin/polos/%d", other.ID), token: r.superviTk, wantCode: http.StatusNotFound},
	})
}

func Test_adminApi_projetistas(t *testing.T) {
	app := setup(t)
	r := setupRoles(t, app)
	ctx := context.Background()

	rec := app.do(http.MethodPost, "/janus/admin/projetistas", r.superviTk,
		[]byte(fmt.Sprintf(`{"projetista": "Fulano", "usuario": %d}`, r.tecnico.ID)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	p, err := app.svcs.Projetistas.GetByUsuario(ctx, r.tecnico.ID)
	require.NoError(t, err)
	assert.True(t, p.Ativo)
	inativo := testutil.CreateProjetista(t, app.svcs.Repos.Projetistas, "Zé", nil)
	_, err = app.svcs.Projetistas.Update(ctx, inativo, projetista.ProjetistaData{Nome: "Zé", Ativo: new(bool)})
	require.NoError(t, err)

	var listed []projetista.Projetista
	decode(t, app.do(http.MethodGet, "/janus/admin/projetistas?ativo=false", r.superviTk), &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, "Zé", listed[0].Nome)

	testutil.CreateChave(t, app.svcs.Repos.Chaves, "C1", testutil.WithProjetista(p))
	runHTTPTests(t, app, []httpTest{
		{
			name: "unknown usuario", method: http.MethodPost, path: "/janus/admin/projetistas", token: r.superviTk,
			body: []byte(`{"projetista": "Beltrano", "usuario": 9999}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Por favor, corrija os erros abaixo.", Fields: map[string]string{"usuario": "Selecione uma escolha válida."}}),
		},
		{
			name: "protected", method: http.MethodDelete, path: fmt.Sprintf("/janus/admin/projetistas/%d", p.ID), token: r.superviTk,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: projetista.ErrProtected.Error()}),
		},
	})
}

func Test_adminApi_chaves(t *testing.T) {
	app := setup(t)
	r := setupRoles(t, app)
	repos := app.svcs.Repos
	p := testutil.CreateProjetista(t, repos.Projetistas, "Fulano", nil)
	pl := testutil.CreatePolo(t, repos.Polos, "NIT")
	c1 := testutil.CreateChave(t, repos.Chaves, "AA1", testutil.WithProjetista(p), testutil.WithMunicipio("Niterói"))
	c2 := testutil.CreateChave(t, repos.Chaves, "AA2", testutil.WithPolo(pl))

	t.Run("list", func(t *testing.T) {
		tests := []struct {
			path string
			want []string
		}{
			{"/janus/admin/chaves", []string{"AA2", "AA1"}},
			{"/janus/admin/chaves?ordering=chave", []string{"AA1", "AA2"}},
			{"/janus/admin/chaves?q=nit", []string{"AA2", "AA1"}},
			{"/janus/admin/chaves?q=fulano", []string{"AA1"}},
			{"/janus/admin/chaves?projetista=nao_atribuido", []string{"AA2"}},
			{fmt.Sprintf("/janus/admin/chaves?projetista=%d", p.ID), []string{"AA1"}},
		}
		for _, tc := range tests {
			rec := app.do(http.MethodGet, tc.path, r.superviTk)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tc.want, listCodes(t, rec), tc.path)
		}
	})

	t.Run("create", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/janus/admin/chaves", r.superviTk, []byte(`{"chave": "AA1", "ns": "123"}`))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Por favor, corrija os erros abaixo.", Fields: map[string]string{
				"chave": chave.ErrChaveExists.Error(),
				"ns":    "Favor confirmar a NS",
			}}),
		}, rec)

		rec = app.do(http.MethodPost, "/janus/admin/chaves", r.superviTk, []byte(`{"chave": "AA3", "ns": "1234567890"}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var resp struct {
			Object   chave.Chave    `json:"object"`
			Messages []core.Message `json:"messages"`
		}
		decode(t, rec, &resp)
		assert.Equal(t, "AA3", resp.Object.Chave)
		assert.Equal(t, "Chave “AA3” criado(a) com sucesso.", resp.Messages[0].Message)
	})

	t.Run("update keeps own code", func(t *testing.T) {
		body := fmt.Sprintf(`{"chave": "AA1", "projetista": %d, "municipio": "Niterói", "observacao": "ok"}`, p.ID)
		rec := app.do(http.MethodPut, fmt.Sprintf("/janus/admin/chaves/%d", c1.ID), r.superviTk, []byte(body))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		updated, err := repos.Chaves.GetChaveByID(context.Background(), c1.ID)
		require.NoError(t, err)
		assert.Equal(t, "ok", updated.Observacao.String)
		assert.Equal(t, p.ID, updated.ProjetistaID.Int)
	})

	t.Run("export", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/janus/admin/chaves/exportar", r.superviTk, marchallObj(t, IDsRequest{IDs: []int{c2.ID, c1.ID}}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, chave.ExportContentType, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), chave.ExportFilename)

		f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		defer func() { _ = f.Close() }()
		rows, err := f.GetRows("Chaves")
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "Chave", rows[0][0])
		assert.Equal(t, "AA2", rows[1][0])
		assert.Equal(t, "AA1", rows[2][0])
		assert.Equal(t, "Fulano", rows[2][1])
	})

	t.Run("delete", func(t *testing.T) {
		rec := app.do(http.MethodDelete, fmt.Sprintf("/janus/admin/chaves/%d", c2.ID), r.superviTk)
		require.Equal(t, http.StatusOK, rec.Code)
		rec = app.do(http.MethodGet, fmt.Sprintf("/janus/admin/chaves/%d", c2.ID), r.superviTk)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_adminApi_usuarios(t *testing.T) {
	app := setup(t)
	r := setupRoles(t, app)

	rec := app.do(http.MethodPost, "/janus/admin/usuarios", r.superTk, marchallObj(t, user.NewUser{
		Email:           "Novo@Janus.test",
		FirstName:       "Novo",
		Password:        "N0va$enhaForte",
		PasswordConfirm: "N0va$enhaForte",
		Groups:          []string{user.GroupTecnicos},
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Object user.User `json:"object"`
	}
	decode(t, rec, &created)
	assert.Equal(t, "novo@janus.test", created.Object.Email)
	assert.Equal(t, []string{user.GroupTecnicos}, created.Object.Groups)

	runHTTPTests(t, app, []httpTest{
		{
			name: "duplicate email", method: http.MethodPost, path: "/janus/admin/usuarios", token: r.superTk,
			body: marchallObj(t, user.NewUser{Email: "novo@janus.test", Password: "N0va$enhaForte", PasswordConfirm: "N0va$enhaForte"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Por favor, corrija os erros abaixo.", Fields: map[string]string{"email": user.ErrEmailExists.Error()}}),
		},
		{
			name: "bad group", method: http.MethodPut, path: fmt.Sprintf("/janus/admin/usuarios/%d", created.Object.ID), token: r.superTk,
			body: []byte(`{"groups": ["admins"]}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Por favor, corrija os erros abaixo.", Fields: map[string]string{"groups": "Grupo inválido."}}),
		},
		{
			name: "self delete", method: http.MethodDelete, path: fmt.Sprintf("/janus/admin/usuarios/%d", r.superuser.ID), token: r.superTk,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "groups", path: "/janus/admin/usuarios/groups", token: r.superTk, wantCode: http.StatusOK, wantData: marchallObj(t, user.Groups)},
	})

	t.Run("update groups", func(t *testing.T) {
		rec := app.do(http.MethodPut, fmt.Sprintf("/janus/admin/usuarios/%d", created.Object.ID), r.superTk,
			[]byte(`{"groups": ["supervisor_projetos"], "is_active": false}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		usr, err := app.svcs.Users.GetByID(context.Background(), created.Object.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{user.GroupSupervisor}, usr.Groups)
		assert.False(t, usr.IsActive)
	})

	t.Run("delete protected", func(t *testing.T) {
		testutil.CreateProjetista(t, app.svcs.Repos.Projetistas, "Fulano", &r.tecnico)
		rec := app.do(http.MethodDelete, fmt.Sprintf("/janus/admin/usuarios/%d", r.tecnico.ID), r.superTk)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: user.ErrProtected.Error()})}, rec)
	})
}
