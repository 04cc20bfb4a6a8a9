package echoapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/community"
	emailsvc "github.com/trezcool/darasa/services/email"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
	filestore "github.com/trezcool/darasa/storage/files"
	"github.com/trezcool/darasa/tests"
)

var errMissingToken = httpErr{Error: "account not authenticated"}

type testApp struct {
	Server
	conf     *core.Config
	auth     *jwtAuth
	accounts account.Repository
	mailSvc  *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T, configure ...func(conf *core.Config)) testApp {
	t.Helper()

	conf := testutil.NewConfig()
	conf.Storage.UploadDir = t.TempDir()
	conf.Storage.MaxUploadSize = 1 << 10
	for _, fn := range configure {
		fn(conf)
	}
	logger := testutil.NewLogger()

	// set up DB & repos
	db := dummydb.Open()
	accRepo := dummydb.NewAccountRepository(db)
	files, err := filestore.NewLocalStore(conf.Storage)
	require.NoError(t, err)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	validate, translator := core.NewValidator()
	account.InitValidators(validate, translator, conf.Auth.InstitutionDomain)

	srv := NewServer(ServerDeps{
		Conf:         conf,
		Logger:       logger,
		AccountSvc:   account.NewService(accRepo, dummydb.NewPendingStore(db), mailSvc, conf.Auth),
		CommunitySvc: community.NewService(dummydb.NewCommunityRepository(db), files, logger),
		ClassroomSvc: classroom.NewService(dummydb.NewClassroomRepository(db), files, logger),
		Validate:     validate,
		Translator:   translator,
	})
	return testApp{
		Server:   srv,
		conf:     conf,
		auth:     newJWTAuth(conf),
		accounts: accRepo,
		mailSvc:  mailSvc,
	}
}

func (app testApp) getToken(t *testing.T, acc account.Account) string {
	token, err := app.auth.sessionToken(acc)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

// do serves the request and returns the recorded response.
func (app testApp) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
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

func newAuthRequest(method, path, token string, data ...[]byte) *http.Request {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func newRequest(method, path string, data ...[]byte) *http.Request {
	return newAuthRequest(method, path, "", data...)
}

// newMultipartRequest sends fields & an optional file as a multipart form.
func newMultipartRequest(t *testing.T, path, token string, fields map[string]string, fileField, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := w.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj(): %v", err)
	}
	return data
}

func unmarshall(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), rec.Body.String())
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}

func runHTTPTests(t *testing.T, app testApp, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, app.do(req))
		})
	}
}
