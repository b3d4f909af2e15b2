package echoapi_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truonghoc/backend/apps/api/echo"
	"github.com/truonghoc/backend/core/user"
	"github.com/truonghoc/backend/tests"
)

func Test_userApi_login(t *testing.T) {
	app := setup(t)
	testutil.CreateUser(t, app.usrRepo, "Hoa Nguyen", "hoa", "hoa@test.vn", "Lol@C4t!", []string{user.RoleStudent}, true)
	testutil.CreateUser(t, app.usrRepo, "N Dog", "ndog", "ndog@test.vn", "Lol@C4t!", []string{user.RoleStudent}, false)

	reqMsg := "this field is required"
	failed := marchallObj(t, httpErr{Error: "authentication failed"})
	tests := []httpTest{
		{name: "required fields", wantCode: http.StatusBadRequest, wantData: marchallObj(t, echoapi.LoginRequest{Username: reqMsg, Password: reqMsg})},
		{name: "unknown user", body: marchallObj(t, echoapi.LoginRequest{Username: "lol", Password: "lol"}), wantCode: http.StatusBadRequest, wantData: failed},
		{name: "wrong password", body: marchallObj(t, echoapi.LoginRequest{Username: "hoa", Password: "lol"}), wantCode: http.StatusBadRequest, wantData: failed},
		{
			name: "deactivated", body: marchallObj(t, echoapi.LoginRequest{Username: "ndog", Password: "Lol@C4t!"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/login"
	}
	runHTTPTests(t, app, tests)

	for _, uname := range []string{"hoa", " HOA ", "hoa@test.vn"} {
		t.Run("logged in as "+uname, func(t *testing.T) {
			rec := app.do(http.MethodPost, "/v1/users/login", "", marchallObj(t, echoapi.LoginRequest{Username: uname, Password: "Lol@C4t!"}))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var resp echoapi.LoginResponse
			unmarshal(t, rec, &resp)
			assert.NotEmpty(t, resp.Token)

			// the token opens the authed endpoints
			rec = app.do(http.MethodGet, "/v1/subjects", resp.Token)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func Test_userApi_refreshToken(t *testing.T) {
	app := setup(t)
	naughty := testutil.CreateUser(t, app.usrRepo, "N Dog", "ndog", "ndog@test.vn", "", []string{user.RoleStudent}, false)
	student := testutil.CreateUser(t, app.usrRepo, "Hoa Nguyen", "hoa", "hoa@test.vn", "", []string{user.RoleStudent}, true)

	now := time.Now()
	unrefreshable := echoapi.GetUserClaims(app.conf, student, now.Add(-2*app.conf.Server.JWTRefreshExpirationDelta).Unix())
	unrefreshableToken, err := echoapi.GenerateToken(app.conf, unrefreshable)
	require.NoError(t, err)

	expired := echoapi.GetUserClaims(app.conf, student)
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
	expiredToken, err := echoapi.GenerateToken(app.conf, expired)
	require.NoError(t, err)

	otherConf := *app.conf
	otherConf.SecretKey = "not-our-secret"
	forgedToken, err := echoapi.GenerateToken(&otherConf, echoapi.GetUserClaims(app.conf, student))
	require.NoError(t, err)

	hs512Token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, echoapi.GetUserClaims(app.conf, student)).SignedString([]byte(app.conf.SecretKey))
	require.NoError(t, err)

	invalid := marchallObj(t, httpErr{Error: "invalid or expired jwt"})
	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Garbage token", token: "lol", wantCode: http.StatusUnauthorized, wantData: invalid},
		{name: "Expired token", token: expiredToken, wantCode: http.StatusUnauthorized, wantData: invalid},
		{name: "Signed with another key", token: forgedToken, wantCode: http.StatusUnauthorized, wantData: invalid},
		{name: "Signed with another method", token: hs512Token, wantCode: http.StatusUnauthorized, wantData: invalid},
		{name: "Inactive user not allowed", token: app.getToken(t, naughty), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/token-refresh"
	}
	runHTTPTests(t, app, tests)

	t.Run("Not a bearer token", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/token-refresh")
		req.Header.Set("Authorization", "Basic "+app.getToken(t, student))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: invalid}, rec)
	})

	t.Run("Token refreshed", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/users/token-refresh", app.getToken(t, student))
		require.Equal(t, http.StatusOK, rec.Code)
		// cannot guess new token.. just check that it's not empty
		var resp echoapi.LoginResponse
		unmarshal(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
	})
}

func Test_userApi_create(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin", "admin@test.vn", "", []string{user.RoleAdmin}, true)
	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teacher", "teacher@test.vn", "", []string{user.RoleTeacher}, true)
	adminToken := app.getToken(t, admin)

	newUser := func(uname, email string, roles ...string) user.NewUser {
		return user.NewUser{Name: "New " + uname, Username: uname, Email: email, Password: "Xy!9#arT", PasswordConfirm: "Xy!9#arT", Roles: roles}
	}

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Admin required", token: app.getToken(t, teacher), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})},
		{
			name: "username taken", token: adminToken, body: marchallObj(t, newUser("teacher", "")),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"username": "a user with this username already exists"}`),
		},
		{
			name: "role above own", token: adminToken, body: marchallObj(t, newUser("owner01", "", user.RoleAdminOwner)),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"roles": "not enough rights to set these roles"}`),
		},
		{
			name: "invalid role", token: adminToken, body: marchallObj(t, newUser("lolrole", "", "lol")),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"roles": "invalid roles"}`),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users"
	}
	runHTTPTests(t, app, tests)

	t.Run("created", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/users", adminToken, marchallObj(t, newUser("student01", "s01@test.vn", user.RoleStudent)))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var usr user.User
		unmarshal(t, rec, &usr)
		assert.NotEmpty(t, usr.ID)
		assert.Equal(t, "student01", usr.Username)
		assert.True(t, usr.IsActive)
		assert.Equal(t, []string{user.RoleStudent}, usr.Roles)
	})
}

func Test_userApi_retrieve(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin", "admin@test.vn", "", []string{user.RoleAdmin}, true)
	student := testutil.CreateUser(t, app.usrRepo, "Hoa Nguyen", "hoa", "hoa@test.vn", "", []string{user.RoleStudent}, true)
	other := testutil.CreateUser(t, app.usrRepo, "Minh Tran", "minh", "minh@test.vn", "", []string{user.RoleStudent}, true)
	notFound := marchallObj(t, httpErr{Error: "not found"})

	tests := []httpTest{
		{name: "self", path: "/v1/users/" + student.ID, token: app.getToken(t, student)},
		{name: "admin", path: "/v1/users/" + student.ID, token: app.getToken(t, admin)},
		{name: "someone else", path: "/v1/users/" + student.ID, token: app.getToken(t, other), wantCode: http.StatusNotFound, wantData: notFound},
		{name: "unknown", path: "/v1/users/unknown", token: app.getToken(t, admin), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "user not found"})},
	}
	for i := range tests {
		tests[i].method = http.MethodGet
	}
	runHTTPTests(t, app, tests)
}

func Test_userApi_query(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin", "admin@test.vn", "", []string{user.RoleAdmin}, true)
	testutil.CreateUser(t, app.usrRepo, "Teacher", "teacher", "teacher@test.vn", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, app.usrRepo, "Hoa Nguyen", "hoa", "hoa@test.vn", "", []string{user.RoleStudent}, true)
	testutil.CreateUser(t, app.usrRepo, "N Dog", "ndog", "ndog@test.vn", "", []string{user.RoleStudent}, false)
	adminToken := app.getToken(t, admin)

	names := func(path string) []string {
		rec := app.do(http.MethodGet, path, adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var users []user.User
		unmarshal(t, rec, &users)
		res := make([]string, 0, len(users))
		for _, u := range users {
			res = append(res, u.Username)
		}
		return res
	}

	assert.Equal(t, []string{"admin", "hoa", "ndog", "teacher"}, names("/v1/users?ordering=username"))
	assert.Equal(t, []string{"ndog", "hoa"}, names("/v1/users?ordering=-username&role="+user.RoleStudent))
	assert.Equal(t, []string{"hoa"}, names("/v1/users?role="+user.RoleStudent+"&is_active=true"))
	assert.Equal(t, []string{"hoa"}, names("/v1/users?search=NGUY"))
	assert.Empty(t, names("/v1/users?search=lol"))

	rec := app.do(http.MethodGet, "/v1/users?is_active=lol", adminToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(http.MethodGet, "/v1/users", app.getToken(t, student))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
