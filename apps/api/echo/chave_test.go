package echoapi_test

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	. "github.com/trezcool/janus/apps/api/echo"
	"github.com/trezcool/janus/core"
	"github.com/trezcool/janus/core/chave"
	"github.com/trezcool/janus/core/emailconfig"
	"github.com/trezcool/janus/core/user"
	"github.com/trezcool/janus/testutil"
)

// roles holds one account per access profile, plus a projetista linked to the tecnico.
type roles struct {
	superuser, supervisor, tecnico, other, topografo user.User
	superTk, superviTk, tecTk, otherTk, topoTk      string
}

func setupRoles(t *testing.T, app testApp) roles {
	t.Helper()
	repo := app.svcs.Repos.Users
	r := roles{
		superuser:  testutil.CreateUser(t, repo, "root@janus.test", nil, true),
		supervisor: testutil.CreateUser(t, repo, "sup@janus.test", []string{user.GroupSupervisor}, false),
		tecnico:    testutil.CreateUser(t, repo, "tec@janus.test", []string{user.GroupTecnicos}, false),
		other:      testutil.CreateUser(t, repo, "tec2@janus.test", []string{user.GroupTecnicos}, false),
		topografo:  testutil.CreateUser(t, repo, "topo@janus.test", []string{user.GroupTopografia}, false),
	}
	r.superTk = app.login(t, r.superuser)
	r.superviTk = app.login(t, r.supervisor)
	r.tecTk = app.login(t, r.tecnico)
	r.otherTk = app.login(t, r.other)
	r.topoTk = app.login(t, r.topografo)
	return r
}

func listCodes(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	var resp ChaveListResponse
	decode(t, rec, &resp)
	res := make([]string, 0, len(resp.Results))
	for _, chv := range resp.Results {
		res = append(res, chv.Chave)
	}
	return res
}

func Test_chaveApi_listRoles(t *testing.T) {
	app := setup(t)
	r := setupRoles(t, app)
	repos := app.svcs.Repos
	mine := testutil.CreateProjetista(t, repos.Projetistas, "Fulano", &r.tecnico)
	theirs := testutil.CreateProjetista(t, repos.Projetistas, "Beltrano", &r.other)
	testutil.CreateChave(t, repos.Chaves, "A1", testutil.WithProjetista(mine))
	testutil.CreateChave(t, repos.Chaves, "A2", testutil.WithProjetista(theirs))
	testutil.CreateChave(t, repos.Chaves, "A3")

	tests := []struct {
		name     string
		token    string
		wantCode int
		want     []string
	}{
		{name: "auth required", wantCode: http.StatusUnauthorized},
		{name: "group required", token: r.topoTk, wantCode: http.StatusForbidden},
		{name: "superuser sees all", token: r.superTk, wantCode: http.StatusOK, want: []string{"A1", "A2", "A3"}},
		{name: "supervisor sees all", token: r.superviTk, wantCode: http.StatusOK, want: []string{"A1", "A2", "A3"}},
		{name: "tecnico sees own", token: r.tecTk, wantCode: http.StatusOK, want: []string{"A1"}},
		{name: "other tecnico sees own", token: r.otherTk, wantCode: http.StatusOK, want: []string{"A2"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := app.do(http.MethodGet, "/janus/chaves", tc.token)
			require.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
			if tc.want != nil {
				assert.Equal(t, tc.want, listCodes(t, rec))
			}
		})
	}

	t.Run("role flags", func(t *testing.T) {
		var resp ChaveListResponse
		decode(t, app.do(http.MethodGet, "/janus/chaves", r.superviTk), &resp)
		assert.False(t, resp.IsSuperuser)
		assert.True(t, resp.IsSupervisor)
		assert.Equal(t, 3, resp.Count)
		assert.Equal(t, 1, resp.Pagination.Page)
		assert.Equal(t, 1, resp.NumPages)
	})
}

func Test_chaveApi_listSearch(t *testing.T) {
	app := setup(t)
	r := setupRoles(t, app)
	repos := app.svcs.Repos
	joao := testutil.CreateProjetista(t, repos.Projetistas, "João Silva", nil)
	testutil.CreateChave(t, repos.Chaves, "K1", testutil.WithNS("1234567890"), testutil.WithProjetista(joao))
	testutil.CreateChave(t, repos.Chaves, "K2")
	testutil.CreateChave(t, repos.Chaves, "X3", testutil.WithProjetista(joao))
	for i := 0; i < 22; i++ {
		testutil.CreateChave(t, repos.Chaves, fmt.Sprintf("P%02d", i))
	}

	path := func(params map[string]string) string {
		v := make(url.Values)
		for k, val := range params {
			v.Set(k, val)
		}
		return "/janus/chaves?" + v.Encode()
	}

	tests := []struct {
		name   string
		params map[string]string
		want   []string
	}{
		{name: "ns", params: map[string]string{"ns_search": "456"}, want: []string{"K1"}},
		{name: "chave (case-insensitive)", params: map[string]string{"chave_search": "k"}, want: []string{"K1", "K2"}},
		{name: "projetista", params: map[string]string{"projetista_search": "joão"}, want: []string{"K1", "X3"}},
		{name: "conjunctive", params: map[string]string{"chave_search": "K", "projetista_search": "silva"}, want: []string{"K1"}},
		{name: "sem projeto", params: map[string]string{"sem_projeto": "", "chave_search": "K"}, want: []string{"K2"}},
		{name: "no match", params: map[string]string{"chave_search": "zzz"}, want: []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := app.do(http.MethodGet, path(tc.params), r.superTk)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tc.want, listCodes(t, rec))
		})
	}

	t.Run("pagination", func(t *testing.T) {
		var resp ChaveListResponse
		decode(t, app.do(http.MethodGet, path(map[string]string{"page": "99"}), r.superTk), &resp)
		assert.Equal(t, 25, resp.Count)
		assert.Equal(t, 2, resp.Pagination.Page)
		assert.Equal(t, 2, resp.NumPages)
		assert.Len(t, resp.Results, 5)
		assert.False(t, resp.HasNext)
		assert.True(t, resp.HasPrevious)

		decode(t, app.do(http.MethodGet, path(map[string]string{"page": "abc"}), r.superTk), &resp)
		assert.Equal(t, 1, resp.Pagination.Page)
		assert.Len(t, resp.Results, 20)

		decode(t, app.do(http.MethodGet, path(map[string]string{"page": "0"}), r.superTk), &resp)
		assert.Equal(t, 2, resp.Pagination.Page)
		assert.Len(t, resp.Results, 5)
	})
}

func Test_chaveApi_edit(t *testing.T) {
	app := setup(t)
	r := setupRoles(t, app)
	repos := app.svcs.Repos
	mine := testutil.CreateProjetista(t, repos.Projetistas, "Fulano", &r.tecnico)
	pl := testutil.CreatePolo(t, repos.Polos, "P01")
	chv := testutil.CreateChave(t, repos.Chaves, "E1", testutil.WithProjetista(mine))
	detail := fmt.Sprintf("/janus/chaves/%d", chv.ID)

	valid := marchallObj(t, chave.UpdateChave{
		NS: "1234567890", Polo: pl.ID, Municipio: "Niterói", Coordenada: "123456:1234567", Poste: "12",
	})
	fixErrors := "Por favor, corrija os erros abaixo."

	runHTTPTests(t, app, []httpTest{
		{name: "unknown id", path: "/janus/chaves/9999", token: r.superTk, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{name: "bad id", path: "/janus/chaves/abc", token: r.superTk, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{name: "not the owner", path: detail, token: r.otherTk, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "not the owner (PUT)", method: http.MethodPut, path: detail, body: valid, token: r.otherTk, wantCode: http.StatusForbidden},
		{name: "owner", path: detail, token: r.tecTk, wantCode: http.StatusOK},
		{name: "supervisor", path: detail, token: r.superviTk, wantCode: http.StatusOK},
		{
			name: "field errors", method: http.MethodPut, path: detail, token: r.tecTk,
			body: marchallObj(t, chave.UpdateChave{
				NS: "12345", Polo: 9999, Municipio: "Niterói", Coordenada: "123456-1234567", Poste: "12",
			}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: fixErrors, Fields: map[string]string{
				"ns":         "Favor confirmar a NS",
				"coordenada": "Coordenada incorreta",
				"polo":       "Selecione uma escolha válida.",
			}}),
		},
		{
			name: "required fields", method: http.MethodPut, path: detail, token: r.tecTk, body: []byte(`{"observacao": "x"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: fixErrors, Fields: map[string]string{
				"ns":         "Este campo é obrigatório.",
				"polo":       "Este campo é obrigatório.",
				"municipio":  "Este campo é obrigatório.",
				"coordenada": "Este campo é obrigatório.",
				"poste":      "Este campo é obrigatório.",
			}}),
		},
	})

	unchanged, err := app.svcs.Chaves.GetByID(context.Background(), chv.ID)
	require.NoError(t, err)
	assert.False(t, unchanged.NS.Valid)

	t.Run("owner updates", func(t *testing.T) {
		body := []byte(`{"chave": "HACK", "ns": "1234567890", "polo": ` + fmt.Sprint(pl.ID) +
			`, "municipio": "Niterói", "coordenada": "123456:1234567", "poste": "12", "observacao": "ok"}`)
		rec := app.do(http.MethodPut, detail, r.tecTk, body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp ChaveUpdateResponse
		decode(t, rec, &resp)
		assert.Equal(t, "Chave atualizada com sucesso!", resp.Success)
		assert.Equal(t, "E1", resp.Chave.Chave)
		assert.Equal(t, "1234567890", resp.Chave.NS.String)
		assert.Equal(t, "P01", resp.Chave.Polo.String)
		assert.Equal(t, "ok", resp.Chave.Observacao.String)
	})
}

func newUploadRequest(t *testing.T, path, token, field string, data []byte) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if field != "" {
		part, err := w.CreateFormFile(field, "lote.xlsx")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req, httptest.NewRecorder()
}

func workbook(t *testing.T, rows ...[]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &rows[i]))
	}
	buff, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buff.Bytes()
}

func Test_chaveApi_import(t *testing.T) {
	app := setup(t)
	r := setupRoles(t, app)
	testutil.CreateChave(t, app.svcs.Repos.Chaves, "chave3")

	t.Run("permission", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/janus/importar-chaves", r.tecTk)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = app.do(http.MethodGet, "/janus/importar-chaves", r.superviTk)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/janus/importar-chaves", r.superviTk, "", nil)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{
				Error:  "Por favor, corrija os erros abaixo.",
				Fields: map[string]string{"planilha": "Este campo é obrigatório."},
			}),
		}, rec)
	})

	t.Run("rows", func(t *testing.T) {
		data := workbook(t,
			[]interface{}{"chave1", "2024-01-05 00:00:00", "A"},
			[]interface{}{"chave2", "adasda", "B"},
			[]interface{}{"chave3", "2024-01-05 00:00:00", "C"},
		)
		req, rec := newUploadRequest(t, "/janus/importar-chaves", r.superTk, "planilha", data)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, chave.ImportResult{Created: 1, Messages: []core.Message{
				{Level: core.LevelError, Message: "Formato de data inválido na linha 1"},
				{Level: core.LevelWarning, Message: "A chave chave3 já existe no banco de dados."},
				{Level: core.LevelSuccess, Message: "1 registros foram criados."},
			}}),
		}, rec)

		chv, found, err := app.svcs.Chaves.Lookup(context.Background(), "chave1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "A", chv.Chamado.String)
	})

	t.Run("unreadable file", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/janus/importar-chaves", r.superTk, "planilha", []byte("not a spreadsheet"))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var res chave.ImportResult
		decode(t, rec, &res)
		assert.Zero(t, res.Created)
		require.Len(t, res.Messages, 1)
		assert.Equal(t, core.LevelError, res.Messages[0].Level)
		assert.Contains(t, res.Messages[0].Message, "Erro: ")
	})
}

func Test_chaveApi_assign(t *testing.T) {
	app := setup(t)
	r := setupRoles(t, app)
	repos := app.svcs.Repos
	ativo := testutil.CreateProjetista(t, repos.Projetistas, "Ativo", nil)
	inativo := testutil.CreateProjetista(t, repos.Projetistas, "Inativo", nil)
	inativo.Ativo = false
	_, err := repos.Projetistas.UpdateProjetista(context.Background(), inativo)
	require.NoError(t, err)
	c1 := testutil.CreateChave(t, repos.Chaves, "B1")
	c2 := testutil.CreateChave(t, repos.Chaves, "B2")
	c3 := testutil.CreateChave(t, repos.Chaves, "B3")

	// admin action stores the selection in the session
	rec := app.do(http.MethodPost, "/janus/admin/chaves/atribuir-projetista", r.superviTk, marchallObj(t, IDsRequest{IDs: []int{c1.ID, c2.ID}}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{"redirect": "/janus/atribuir-projetista"}`)}, rec)

	var form AssignFormResponse
	decode(t, app.do(http.MethodGet, "/janus/atribuir-projetista", r.superviTk), &form)
	assert.Equal(t, []int{c1.ID, c2.ID}, form.ChavesIDs)
	require.Len(t, form.Projetistas, 1)
	assert.Equal(t, ativo.ID, form.Projetistas[0].ID)

	// another session does not share the selection
	decode(t, app.do(http.MethodGet, "/janus/atribuir-projetista", r.superTk), &form)
	assert.Empty(t, form.ChavesIDs)

	assign := func(projetistaID int, ids string) []byte {
		return marchallObj(t, chave.AssignProjetista{Projetista: projetistaID, ChavesIDs: ids})
	}
	runHTTPTests(t, app, []httpTest{
		{name: "tecnico forbidden", method: http.MethodPost, path: "/janus/atribuir-projetista", token: r.tecTk, body: assign(ativo.ID, "[1]"), wantCode: http.StatusForbidden},
		{
			name: "inactive projetista", method: http.MethodPost, path: "/janus/atribuir-projetista", token: r.superviTk,
			body: assign(inativo.ID, fmt.Sprintf("[%d]", c1.ID)), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Por favor, corrija os erros abaixo.", Fields: map[string]string{"projetista": "Selecione uma escolha válida."}}),
		},
		{
			name: "assign", method: http.MethodPost, path: "/janus/atribuir-projetista", token: r.superviTk,
			body: assign(ativo.ID, fmt.Sprintf("[%d, x,%d, 9999]", c1.ID, c2.ID)), wantCode: http.StatusOK,
			wantData: []byte(`{"updated": 2}`),
		},
	})

	ctx := context.Background()
	for _, id := range []int{c1.ID, c2.ID} {
		chv, err := app.svcs.Chaves.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, ativo.ID, chv.ProjetistaID.Int)
	}
	untouched, err := app.svcs.Chaves.GetByID(ctx, c3.ID)
	require.NoError(t, err)
	assert.False(t, untouched.ProjetistaID.Valid)

	// the selection is cleared
	decode(t, app.do(http.MethodGet, "/janus/atribuir-projetista", r.superviTk), &form)
	assert.Empty(t, form.ChavesIDs)
}

func Test_chaveApi_lookup(t *testing.T) {
	app := setup(t)
	r := setupRoles(t, app)
	testutil.CreateChave(t, app.svcs.Repos.Chaves, "L1")

	var resp LookupResponse
	decode(t, app.do(http.MethodGet, "/janus/buscar-chave?query=+L1+", r.topoTk), &resp)
	require.NotNil(t, resp.Chave)
	assert.Equal(t, "L1", resp.Chave.Chave)

	runHTTPTests(t, app, []httpTest{
		{name: "no match", path: "/janus/buscar-chave?query=L", token: r.topoTk, wantCode: http.StatusOK, wantData: []byte(`{"chave": null}`)},
		{name: "empty", path: "/janus/buscar-chave", token: r.topoTk, wantCode: http.StatusOK, wantData: []byte(`{"chave": null}`)},
		{name: "auth required", path: "/janus/buscar-chave?query=L1", wantCode: http.StatusUnauthorized},
	})
}

func Test_chaveApi_request(t *testing.T) {
	app := setup(t)
	r := setupRoles(t, app)
	ctx := context.Background()
	repos := app.svcs.Repos
	p := testutil.CreateProjetista(t, repos.Projetistas, "Fulano", &r.tecnico)
	for _, data := range []emailconfig.EmailConfigData{
		{Nome: "Coordenação", Email: "coord@janus.test"},
		{Nome: "Supervisão", Email: "supervisao@janus.test"},
	} {
		_, err := app.svcs.EmailConfigs.Create(ctx, data)
		require.NoError(t, err)
	}
	confirmed := []byte(`{"confirmacao": true}`)

	runHTTPTests(t, app, []httpTest{
		{
			name: "confirmation required", method: http.MethodPost, path: "/janus/solicitar-chaves", token: r.tecTk, body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Por favor, corrija os erros abaixo.", Fields: map[string]string{"confirmacao": "Este campo é obrigatório."}}),
		},
		{
			name: "no projetista", method: http.MethodPost, path: "/janus/solicitar-chaves", token: r.otherTk, body: confirmed,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Nenhum projetista vinculado ao usuário tec2@janus.test."}),
		},
	})
	assert.Empty(t, app.svcs.Mail.SentMessages())

	t.Run("sent", func(t *testing.T) {
		testutil.CreateChave(t, repos.Chaves, "R1", testutil.WithProjetista(p))
		testutil.CreateChave(t, repos.Chaves, "R2", testutil.WithProjetista(p))
		rec := app.do(http.MethodPost, "/janus/solicitar-chaves", r.tecTk, confirmed)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, SuccessResponse{Success: "Solicitação enviada com sucesso!"})}, rec)

		sent := app.svcs.Mail.SentMessages()
		require.Len(t, sent, 1)
		assert.Len(t, sent[0].To, 2)
	})

	r3 := testutil.CreateChave(t, repos.Chaves, "R3", testutil.WithProjetista(p))

	t.Run("denied", func(t *testing.T) {
		app.svcs.Mail.Reset()
		rec := app.do(http.MethodPost, "/janus/solicitar-chaves", r.tecTk, confirmed)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Solicitação Negada! Você ainda tem 3 Chaves para serem designadas.", ModalShow: true}),
		}, rec)
		assert.Empty(t, app.svcs.Mail.SentMessages())
	})

	t.Run("mail failure", func(t *testing.T) {
		require.NoError(t, app.svcs.Chaves.Delete(ctx, r3.ID))
		app.svcs.Mail.Fail(errors.New("smtp down"))
		defer app.svcs.Mail.Reset()

		rec := app.do(http.MethodPost, "/janus/solicitar-chaves", r.tecTk, confirmed)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusInternalServerError,
			wantData: marchallObj(t, httpErr{Error: http.StatusText(http.StatusInternalServerError)}),
		}, rec)
	})
}
