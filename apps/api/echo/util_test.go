package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/trezcool/janus/apps/api/echo"
	"github.com/trezcool/janus/core/user"
	"github.com/trezcool/janus/services/ratelimit"
	"github.com/trezcool/janus/services/session"
	"github.com/trezcool/janus/testutil"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errInvalidToken = httpErr{Error: "invalid or expired jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}
)

type testApp struct {
	Server
	svcs     testutil.Services
	sessions *session.MemoryStore
}

func setup(t *testing.T, limiter ...*ratelimit.Store) testApp {
	t.Helper()
	svcs := testutil.NewServices(t, nil)
	sessions := session.NewMemoryStore()

	deps := &Deps{
		Conf:           svcs.Conf,
		Logger:         svcs.Logger,
		Sessions:       sessions,
		Validate:       svcs.Validate,
		Translator:     svcs.Translator,
		UserSvc:        svcs.Users,
		ProjetistaSvc:  svcs.Projetistas,
		PoloSvc:        svcs.Polos,
		AvisoSvc:       svcs.Avisos,
		EmailConfigSvc: svcs.EmailConfigs,
		ChaveSvc:       svcs.Chaves,
	}
	if len(limiter) > 0 {
		deps.Limiter = limiter[0]
	}
	return testApp{
		Server:   NewServer("", nil, deps),
		svcs:     svcs,
		sessions: sessions,
	}
}

// login opens a session for usr and returns its token.
func (app testApp) login(t *testing.T, usr user.User) string {
	t.Helper()
	req, rec := newRequest(http.MethodPost, "/janus/login", marchallObj(t, LoginRequest{Username: usr.Email, Password: testutil.Password}))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token
}

// do runs one request and returns its recorder.
func (app testApp) do(method, path, token string, body ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, body...)
	app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	ModalShow bool              `json:"modal_show,omitempty"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app testApp, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := app.do(method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

// decode unmarshals the response body into dest.
func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), rec.Body.String())
}
