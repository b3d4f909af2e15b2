package echoapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/truonghoc/backend/apps/api/echo"
	"github.com/truonghoc/backend/core"
	"github.com/truonghoc/backend/core/grade"
	"github.com/truonghoc/backend/core/improvement"
	"github.com/truonghoc/backend/core/period"
	"github.com/truonghoc/backend/core/subject"
	"github.com/truonghoc/backend/core/user"
	"github.com/truonghoc/backend/services/email"
	"github.com/truonghoc/backend/services/logger"
	"github.com/truonghoc/backend/storage/database/inmem"
	"github.com/truonghoc/backend/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	*echoapi.Server
	conf    *core.Config
	mailer  *emailsvc.ConsoleServiceMock
	usrRepo user.Repository
	subRepo subject.Repository
	perRepo period.Repository
}

func setup(t *testing.T) testApp {
	conf := testutil.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	grade.InitValidators(validate, translator)
	improvement.InitValidators(validate, translator)
	core.ParseEmailTemplates(logger)

	// set up DB & repos
	db := inmemdb.Open()
	app := testApp{
		conf:    conf,
		mailer:  emailsvc.NewConsoleServiceMock(conf, logger),
		usrRepo: inmemdb.NewUserRepository(db),
		subRepo: inmemdb.NewSubjectRepository(db),
		perRepo: inmemdb.NewPeriodRepository(db),
	}

	improvementSvc := improvement.NewService(improvement.ServiceDeps{
		Conf:     conf,
		Logger:   logger,
		Mailer:   app.mailer,
		Repo:     inmemdb.NewImprovementRepository(db),
		Periods:  app.perRepo,
		Subjects: app.subRepo,
		Users:    app.usrRepo,
	})

	// set up server
	app.Server = echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		UserSvc:        user.NewService(app.usrRepo),
		SubjectSvc:     subject.NewService(app.subRepo),
		PeriodSvc:      period.NewService(app.perRepo),
		GradeSvc:       grade.NewService(inmemdb.NewGradeRepository(db), app.perRepo, app.subRepo, app.usrRepo),
		ImprovementSvc: improvementSvc,
		DisableReqLogs: true,
	})
	return app
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

func (app testApp) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func (app testApp) getToken(t *testing.T, usr user.User) string {
	token, err := echoapi.GenerateToken(app.conf, echoapi.GetUserClaims(app.conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app testApp, tests []httpTest) {
	for _, tt := range tests {
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
