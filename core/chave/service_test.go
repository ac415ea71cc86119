package chave_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/janus/core"
	"github.com/trezcool/janus/core/chave"
	"github.com/trezcool/janus/core/emailconfig"
	"github.com/trezcool/janus/core/user"
	"github.com/trezcool/janus/testutil"
)

type fileStoreMock struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func (fs *fileStoreMock) Upload(_ context.Context, data []byte, filename string) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.err != nil {
		return "", fs.err
	}
	if fs.files == nil {
		fs.files = make(map[string][]byte)
	}
	fs.files[filename] = data
	return "s3://test/" + filename, nil
}

func newWorkbook(t *testing.T, rows ...[]interface{}) *bytes.Buffer {
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
	return buff
}

func codes(chaves []chave.Chave) []string {
	res := make([]string, 0, len(chaves))
	for _, chv := range chaves {
		res = append(res, chv.Chave)
	}
	return res
}

func TestService_Import(t *testing.T) {
	ctx := context.Background()
	files := new(fileStoreMock)
	svcs := testutil.NewServices(t, files)

	wb := newWorkbook(t,
		[]interface{}{"chave1", "2024-01-05 00:00:00", "A"},
		[]interface{}{"chave2", "adasda", "B"},
		[]interface{}{"chave3", "2024-01-05 00:00:00", "C"},
	)
	res, err := svcs.Chaves.Import(ctx, "lote.xlsx", wb)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, []core.Message{
		{Level: core.LevelError, Message: "Formato de data inválido na linha 1"},
		{Level: core.LevelSuccess, Message: "2 registros foram criados."},
	}, res.Messages)

	all, err := svcs.Chaves.Query(ctx, chave.QueryFilter{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"chave1", "chave3"}, codes(all))

	chv := all[0]
	assert.Equal(t, null.StringFrom("A"), chv.Chamado)
	require.True(t, chv.DataChamado.Valid)
	y, m, d := chv.DataChamado.Time.Date()
	assert.Equal(t, []int{2024, 1, 5}, []int{y, int(m), d})
	assert.False(t, chv.NS.Valid)
	assert.False(t, chv.ProjetistaID.Valid)
	assert.False(t, chv.PoloID.Valid)

	require.Len(t, files.files, 1)
	for name := range files.files {
		assert.True(t, strings.HasPrefix(name, "importacoes/"))
		assert.True(t, strings.HasSuffix(name, "-lote.xlsx"))
	}

	t.Run("existing codes are skipped", func(t *testing.T) {
		wb := newWorkbook(t,
			[]interface{}{"chave1", "2024-02-01 10:00:00", "X"},
			[]interface{}{"chave4", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), 123},
			[]interface{}{"", "2024-02-01 10:00:00", "Y"},
		)
		res, err := svcs.Chaves.Import(ctx, "lote2.xlsx", wb)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Created)
		assert.Equal(t, []core.Message{
			{Level: core.LevelWarning, Message: "A chave chave1 já existe no banco de dados."},
			{Level: core.LevelError, Message: "Chave inválida na linha 2"},
			{Level: core.LevelSuccess, Message: "1 registros foram criados."},
		}, res.Messages)

		chv, found, err := svcs.Chaves.Lookup(ctx, "chave1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, null.StringFrom("A"), chv.Chamado) // first write wins

		chv, found, err = svcs.Chaves.Lookup(ctx, "chave4")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, null.StringFrom("123"), chv.Chamado)
		assert.Equal(t, 2024, chv.DataChamado.Time.Year())
	})

	t.Run("unreadable file", func(t *testing.T) {
		res, err := svcs.Chaves.Import(ctx, "lixo.xlsx", strings.NewReader("not a spreadsheet"))
		require.NoError(t, err)
		assert.Zero(t, res.Created)
		require.Len(t, res.Messages, 1)
		assert.Equal(t, core.LevelError, res.Messages[0].Level)
		assert.True(t, strings.HasPrefix(res.Messages[0].Message, "Erro: "))
	})

	t.Run("archive failure is not fatal", func(t *testing.T) {
		files.err = errors.New("s3 down")
		defer func() { files.err = nil }()
		res, err := svcs.Chaves.Import(ctx, "lote3.xlsx", newWorkbook(t, []interface{}{"chave5", "2024-01-05 00:00:00", "Z"}))
		require.NoError(t, err)
		assert.Equal(t, 1, res.Created)
	})
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	svcs := testutil.NewServices(t, nil)
	repos := svcs.Repos

	sup := testutil.CreateUser(t, repos.Users, "sup@janus.com", []string{user.GroupSupervisor}, false)
	tec := testutil.CreateUser(t, repos.Users, "tec@janus.com", []string{user.GroupTecnicos}, false)
	admin := testutil.CreateUser(t, repos.Users, "admin@janus.com", nil, true)
	maria := testutil.CreateProjetista(t, repos.Projetistas, "Maria", &tec)

	testutil.CreateChave(t, repos.Chaves, "CHV01", testutil.WithNS("1234567890"), testutil.WithProjetista(maria))
	testutil.CreateChave(t, repos.Chaves, "CHV02", testutil.WithNS("2345678901"))
	testutil.CreateChave(t, repos.Chaves, "CHV03")

	tests := []struct {
		name   string
		usr    user.User
		filter chave.QueryFilter
		want   []string
	}{
		{name: "supervisor sees all", usr: sup, want: []string{"CHV01", "CHV02", "CHV03"}},
		{name: "superuser sees all", usr: admin, want: []string{"CHV01", "CHV02", "CHV03"}},
		{name: "tecnico sees own", usr: tec, want: []string{"CHV01"}},
		{name: "ns search", usr: sup, filter: chave.QueryFilter{NS: " 1234 "}, want: []string{"CHV01"}},
		{name: "sem projeto", usr: sup, filter: chave.QueryFilter{SemProjeto: true}, want: []string{"CHV03"}},
		{name: "tecnico sem projeto", usr: tec, filter: chave.QueryFilter{SemProjeto: true}, want: []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			page, err := svcs.Chaves.List(ctx, tc.usr, tc.filter, "")
			require.NoError(t, err)
			assert.Equal(t, tc.want, codes(page.Results))
			assert.Equal(t, len(tc.want), page.Count)
		})
	}
}

func TestService_ListPagination(t *testing.T) {
	ctx := context.Background()
	svcs := testutil.NewServices(t, nil)
	sup := testutil.CreateUser(t, svcs.Repos.Users, "sup@janus.com", []string{user.GroupSupervisor}, false)
	for i := 1; i <= 25; i++ {
		testutil.CreateChave(t, svcs.Repos.Chaves, fmt.Sprintf("C%03d", i))
	}

	tests := []struct {
		page      string
		wantPage  int
		wantLen   int
		wantFirst string
	}{
		{page: "", wantPage: 1, wantLen: 20, wantFirst: "C001"},
		{page: "2", wantPage: 2, wantLen: 5, wantFirst: "C021"},
		{page: "abc", wantPage: 1, wantLen: 20, wantFirst: "C001"},
		{page: "99", wantPage: 2, wantLen: 5, wantFirst: "C021"},
	}
	for _, tc := range tests {
		t.Run("page "+tc.page, func(t *testing.T) {
			page, err := svcs.Chaves.List(ctx, sup, chave.QueryFilter{}, tc.page)
			require.NoError(t, err)
			assert.Equal(t, tc.wantPage, page.Page)
			assert.Equal(t, 2, page.NumPages)
			assert.Equal(t, 25, page.Count)
			require.Len(t, page.Results, tc.wantLen)
			assert.Equal(t, tc.wantFirst, page.Results[0].Chave)
		})
	}
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	svcs := testutil.NewServices(t, nil)
	pl := testutil.CreatePolo(t, svcs.Repos.Polos, "CTG")
	chv := testutil.CreateChave(t, svcs.Repos.Chaves, "CHV01")

	tests := []struct {
		name       string
		data       chave.UpdateChave
		wantFields map[string]string
	}{
		{
			name: "bad formats",
			data: chave.UpdateChave{NS: "123", Polo: pl.ID, Municipio: "Recife", Coordenada: "123456:123", Poste: "P1"},
			wantFields: map[string]string{
				"ns":         "Favor confirmar a NS",
				"coordenada": "Coordenada incorreta",
			},
		},
		{
			name:       "unknown polo",
			data:       chave.UpdateChave{NS: "1234567890", Polo: 9999, Municipio: "Recife", Coordenada: "123456:1234567", Poste: "P1"},
			wantFields: map[string]string{"polo": "Selecione uma escolha válida."},
		},
		{
			name: "missing fields",
			data: chave.UpdateChave{NS: "1234567890", Coordenada: "123456:1234567"},
			wantFields: map[string]string{
				"polo":      "Este campo é obrigatório.",
				"municipio": "Este campo é obrigatório.",
				"poste":     "Este campo é obrigatório.",
			},
		},
		{
			name:       "too long",
			data:       chave.UpdateChave{NS: "1234567890", Polo: pl.ID, Municipio: "Recife", Coordenada: "123456:1234567", Poste: "P123"},
			wantFields: map[string]string{"poste": "Certifique-se de que o valor tenha no máximo 3 caracteres."},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.data.Validate(ctx, svcs.Chaves)
			require.Error(t, err)
			vErr, ok := errors.Cause(err).(*core.ValidationError)
			require.True(t, ok)
			assert.Equal(t, chave.ErrFixErrors, vErr.Err)
			assert.Equal(t, tc.wantFields, vErr.FieldMap())

			got, err := svcs.Chaves.GetByID(ctx, chv.ID)
			require.NoError(t, err)
			assert.False(t, got.NS.Valid)
		})
	}

	t.Run("valid", func(t *testing.T) {
		data := chave.UpdateChave{
			NS: " 1234567890 ", Polo: pl.ID, Municipio: "Recife", Coordenada: "123456:1234567", Poste: "P1", Observacao: "  ",
		}
		require.NoError(t, data.Validate(ctx, svcs.Chaves))
		updated, err := svcs.Chaves.Update(ctx, chv, data)
		require.NoError(t, err)
		assert.Equal(t, "CHV01", updated.Chave)
		assert.Equal(t, null.StringFrom("1234567890"), updated.NS)
		assert.Equal(t, null.StringFrom("CTG"), updated.Polo)
		assert.False(t, updated.Observacao.Valid)
		assert.False(t, updated.DataModificacao.Before(chv.DataModificacao))
	})
}

func TestService_CreateUniqueness(t *testing.T) {
	ctx := context.Background()
	svcs := testutil.NewServices(t, nil)

	data := chave.ChaveData{Chave: "CHV01", NS: null.StringFrom("1234567890")}
	require.NoError(t, data.Validate(ctx, svcs.Chaves))
	created, err := svcs.Chaves.Create(ctx, data)
	require.NoError(t, err)

	dup := chave.ChaveData{Chave: "CHV01"}
	err = dup.Validate(ctx, svcs.Chaves)
	require.Error(t, err)
	vErr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"chave": chave.ErrChaveExists.Error()}, vErr.FieldMap())

	// skipping validation still hits the unique constraint
	_, err = svcs.Chaves.Create(ctx, dup)
	assert.True(t, core.IsValidationError(err))

	// the chave itself is excluded when updating
	same := chave.ChaveData{Chave: "CHV01", Coordenada: null.StringFrom("123456:1234567")}
	require.NoError(t, same.Validate(ctx, svcs.Chaves, created.ID))
	updated, err := svcs.Chaves.AdminUpdate(ctx, created, same)
	require.NoError(t, err)
	assert.False(t, updated.NS.Valid)
	assert.Equal(t, null.StringFrom("123456:1234567"), updated.Coordenada)
}

func TestChave_EditableBy(t *testing.T) {
	ctx := context.Background()
	svcs := testutil.NewServices(t, nil)
	repos := svcs.Repos

	owner := testutil.CreateUser(t, repos.Users, "owner@janus.com", []string{user.GroupTecnicos}, false)
	other := testutil.CreateUser(t, repos.Users, "other@janus.com", []string{user.GroupTecnicos}, false)
	sup := testutil.CreateUser(t, repos.Users, "sup@janus.com", []string{user.GroupSupervisor}, false)
	admin := testutil.CreateUser(t, repos.Users, "admin@janus.com", nil, true)
	p := testutil.CreateProjetista(t, repos.Projetistas, "Maria", &owner)
	created := testutil.CreateChave(t, repos.Chaves, "CHV01", testutil.WithProjetista(p))

	chv, err := svcs.Chaves.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, chv.EditableBy(owner))
	assert.True(t, chv.EditableBy(sup))
	assert.True(t, chv.EditableBy(admin))
	assert.False(t, chv.EditableBy(other))
}

func TestService_RequestChaves(t *testing.T) {
	ctx := context.Background()
	svcs := testutil.NewServices(t, nil)
	repos := svcs.Repos

	for _, data := range []emailconfig.EmailConfigData{
		{Nome: "Ana", Email: "ana@janus.com"},
		{Nome: "Bia", Email: "bia@janus.com"},
	} {
		_, err := svcs.EmailConfigs.Create(ctx, data)
		require.NoError(t, err)
	}

	usr := testutil.CreateUser(t, repos.Users, "tec@janus.com", []string{user.GroupTecnicos}, false)
	p := testutil.CreateProjetista(t, repos.Projetistas, "Maria Souza", &usr)
	testutil.CreateChave(t, repos.Chaves, "CHV01", testutil.WithProjetista(p))
	testutil.CreateChave(t, repos.Chaves, "CHV02", testutil.WithProjetista(p))
	testutil.CreateChave(t, repos.Chaves, "CHV03", testutil.WithProjetista(p), testutil.WithNS("1234567890"))

	t.Run("fewer than 3 pending", func(t *testing.T) {
		svcs.Mail.Reset()
		require.NoError(t, svcs.Chaves.RequestChaves(ctx, usr))

		sent := svcs.Mail.SentMessages()
		require.Len(t, sent, 1)
		msg := sent[0]
		assert.Equal(t, "Solicitação de Chaves", msg.Subject)
		assert.Equal(t, []string{"ana@janus.com", "bia@janus.com"}, []string{msg.To[0].Address, msg.To[1].Address})
		assert.Contains(t, msg.HTMLContent, "Maria Souza")
		assert.Contains(t, msg.TextContent, "Maria Souza")
		assert.NotContains(t, msg.TextContent, "<strong>")
	})

	t.Run("3 pending is refused", func(t *testing.T) {
		svcs.Mail.Reset()
		testutil.CreateChave(t, repos.Chaves, "CHV04", testutil.WithProjetista(p))

		err := svcs.Chaves.RequestChaves(ctx, usr)
		require.Error(t, err)
		denied, ok := chave.IsRequestDenied(err)
		require.True(t, ok)
		assert.Equal(t, 3, denied.Pending)
		assert.Equal(t, "Solicitação Negada! Você ainda tem 3 Chaves para serem designadas.", err.Error())
		assert.Empty(t, svcs.Mail.SentMessages())
	})

	t.Run("no projetista", func(t *testing.T) {
		svcs.Mail.Reset()
		lonely := testutil.CreateUser(t, repos.Users, "lonely@janus.com", nil, false)
		err := svcs.Chaves.RequestChaves(ctx, lonely)
		require.Error(t, err)
		assert.True(t, core.IsValidationError(err))
		assert.Equal(t, "Nenhum projetista vinculado ao usuário lonely@janus.com.", err.Error())
		assert.Empty(t, svcs.Mail.SentMessages())
	})

	t.Run("mail failure propagates", func(t *testing.T) {
		svcs.Mail.Reset()
		other := testutil.CreateUser(t, repos.Users, "other@janus.com", nil, false)
		testutil.CreateProjetista(t, repos.Projetistas, "João", &other)
		svcs.Mail.Fail(errors.New("smtp down"))
		defer svcs.Mail.Reset()

		err := svcs.Chaves.RequestChaves(ctx, other)
		require.Error(t, err)
		assert.Equal(t, "smtp down", errors.Cause(err).Error())
	})
}

func TestService_AssignProjetista(t *testing.T) {
	ctx := context.Background()
	svcs := testutil.NewServices(t, nil)
	repos := svcs.Repos

	active := testutil.CreateProjetista(t, repos.Projetistas, "Maria", nil)
	inactive := testutil.CreateProjetista(t, repos.Projetistas, "Ana", nil)
	inactive.Ativo = false
	_, err := repos.Projetistas.UpdateProjetista(ctx, inactive)
	require.NoError(t, err)

	chv1 := testutil.CreateChave(t, repos.Chaves, "CHV01")
	chv2 := testutil.CreateChave(t, repos.Chaves, "CHV02")
	testutil.CreateChave(t, repos.Chaves, "CHV03")

	t.Run("inactive projetista", func(t *testing.T) {
		_, err := svcs.Chaves.AssignProjetista(ctx, chave.AssignProjetista{Projetista: inactive.ID, ChavesIDs: "[1]"})
		require.Error(t, err)
		vErr, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok)
		assert.Equal(t, map[string]string{"projetista": "Selecione uma escolha válida."}, vErr.FieldMap())
	})

	t.Run("missing projetista", func(t *testing.T) {
		_, err := svcs.Chaves.AssignProjetista(ctx, chave.AssignProjetista{ChavesIDs: "[1]"})
		require.Error(t, err)
		vErr, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok)
		assert.Equal(t, map[string]string{"projetista": "Este campo é obrigatório."}, vErr.FieldMap())
	})

	t.Run("batch update", func(t *testing.T) {
		ids := fmt.Sprintf("[%d, x,%d, 9999]", chv1.ID, chv2.ID)
		n, err := svcs.Chaves.AssignProjetista(ctx, chave.AssignProjetista{Projetista: active.ID, ChavesIDs: ids})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		assigned, err := svcs.Chaves.Query(ctx, chave.QueryFilter{ProjetistaID: active.ID}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"CHV01", "CHV02"}, codes(assigned))
	})

	t.Run("no ids", func(t *testing.T) {
		n, err := svcs.Chaves.AssignProjetista(ctx, chave.AssignProjetista{Projetista: active.ID, ChavesIDs: "[]"})
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestService_ExportSelection(t *testing.T) {
	ctx := context.Background()
	svcs := testutil.NewServices(t, nil)
	repos := svcs.Repos

	p := testutil.CreateProjetista(t, repos.Projetistas, "Maria", nil)
	chv1 := testutil.CreateChave(t, repos.Chaves, "CHV01", testutil.WithProjetista(p))
	testutil.CreateChave(t, repos.Chaves, "CHV02")
	chv3 := testutil.CreateChave(t, repos.Chaves, "CHV03", testutil.WithNS("1234567890"))

	var buff bytes.Buffer
	require.NoError(t, svcs.Chaves.ExportSelection(ctx, &buff, []int{chv3.ID, chv1.ID, 9999, chv3.ID}))

	f, err := excelize.OpenReader(&buff)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows("Chaves")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Chave", rows[0][0])
	assert.Equal(t, "CHV03", rows[1][0])
	assert.Equal(t, "1234567890", rows[1][2])
	assert.Equal(t, "CHV01", rows[2][0])
	assert.Equal(t, "Maria", rows[2][1])
	assert.Equal(t, chv1.DataInclusao.Format("2006-01-02 15:04"), rows[2][8])
}
