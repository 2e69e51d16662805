package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/somesha/core/user"
	"github.com/trezcool/somesha/testutil"
)

func Test_userApi_login(t *testing.T) {
	srv, env := setup(t)
	testutil.CreateUser(t, env.UserRepo, "Alice", "alice", "alice@test.cd", user.RoleStudent, true)
	testutil.CreateUser(t, env.UserRepo, "Bob", "bob", "bob@test.cd", user.RoleStudent, false)

	runHTTPTests(t, srv, []httpTest{
		{
			name:     "missing fields",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"username":"this field is required","password":"this field is required"}`),
		},
		{
			name:     "wrong password",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     []byte(`{"username":"alice","password":"nope"}`),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "unknown user",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     []byte(`{"username":"carol","password":"` + testutil.Password + `"}`),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "inactive account",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     []byte(`{"username":"bob","password":"` + testutil.Password + `"}`),
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	t.Run("by email", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/login", []byte(`{"username":"ALICE@test.cd","password":"`+testutil.Password+`"}`))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp LoginResponse
		decode(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)

		req, rec = newAuthRequest(http.MethodGet, "/v1/users/me", resp.Token)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var me user.User
		decode(t, rec, &me)
		assert.Equal(t, "alice", me.Username)
		assert.True(t, me.LastLogin.Valid)
	})
}

func Test_userApi_me(t *testing.T) {
	srv, env := setup(t)
	alice := env.Student(t, "alice")

	runHTTPTests(t, srv, []httpTest{
		{
			name:     "anonymous",
			method:   http.MethodGet,
			path:     "/v1/users/me",
			wantCode: http.StatusUnauthorized,
			wantData: marshalObj(t, errMissingToken),
		},
		{
			name:     "bad token",
			method:   http.MethodGet,
			path:     "/v1/users/me",
			token:    "not-a-jwt",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "authenticated",
			method:   http.MethodGet,
			path:     "/v1/users/me",
			token:    getToken(t, srv, alice),
			wantCode: http.StatusOK,
			wantData: marshalObj(t, alice),
		},
	})
}

func Test_userApi_signup(t *testing.T) {
	srv, env := setup(t)
	env.Student(t, "taken")

	body := func(uname, email, role string) []byte {
		return []byte(`{"name":"New","username":"` + uname + `","email":"` + email + `","password":"` +
			testutil.Password + `","password_confirm":"` + testutil.Password + `","role":"` + role + `"}`)
	}

	runHTTPTests(t, srv, []httpTest{
		{
			name:     "admin role refused",
			method:   http.MethodPost,
			path:     "/v1/users/signup",
			body:     body("newadmin", "newadmin@test.cd", "admin"),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"role":"` + errSignupRole + `"}`),
		},
		{
			name:     "username taken",
			method:   http.MethodPost,
			path:     "/v1/users/signup",
			body:     body("taken", "other@test.cd", "student"),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"username":"a user with this username already exists"}`),
		},
		{
			name:     "invalid role",
			method:   http.MethodPost,
			path:     "/v1/users/signup",
			body:     body("newbie", "newbie@test.cd", "janitor"),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"role":"invalid role"}`),
		},
	})

	t.Run("instructor", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/signup", body("teach", "teach@test.cd", "instructor"))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp SignupResponse
		decode(t, rec, &resp)
		assert.Equal(t, user.RoleInstructor, resp.User.Role)
		assert.True(t, resp.User.IsActive)
		assert.NotEmpty(t, resp.Token)
	})
}

func Test_userApi_admin(t *testing.T) {
	srv, env := setup(t)
	admin := env.Admin(t, "admin")
	alice := env.Student(t, "alice")
	bob := env.Instructor(t, "bobby")

	adminToken := getToken(t, srv, admin)
	aliceToken := getToken(t, srv, alice)

	runHTTPTests(t, srv, []httpTest{
		{
			name:     "student cannot list users",
			method:   http.MethodGet,
			path:     "/v1/users",
			token:    aliceToken,
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "filter by role",
			method:   http.MethodGet,
			path:     "/v1/users?role=instructor",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marshalObj(t, []user.User{bob}),
		},
		{
			name:     "search",
			method:   http.MethodGet,
			path:     "/v1/users?search=ALI",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marshalObj(t, []user.User{alice}),
		},
		{
			name:     "roles",
			method:   http.MethodGet,
			path:     "/v1/users/roles",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marshalObj(t, user.Roles),
		},
		{
			name:     "student sees self",
			method:   http.MethodGet,
			path:     "/v1/users/" + alice.ID,
			token:    aliceToken,
			wantCode: http.StatusOK,
			wantData: marshalObj(t, alice),
		},
		{
			name:     "student cannot see others",
			method:   http.MethodGet,
			path:     "/v1/users/" + bob.ID,
			token:    aliceToken,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "student cannot change own role",
			method:   http.MethodPatch,
			path:     "/v1/users/" + alice.ID,
			token:    aliceToken,
			body:     []byte(`{"role":"admin"}`),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "admin cannot delete self",
			method:   http.MethodDelete,
			path:     "/v1/users/" + admin.ID,
			token:    adminToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "admin cannot bulk delete self",
			method:   http.MethodDelete,
			path:     "/v1/users?id=" + bob.ID + "&id=" + admin.ID,
			token:    adminToken,
			wantCode: http.StatusForbidden,
		},
	})

	t.Run("update bio", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPatch, "/v1/users/"+alice.ID, aliceToken, []byte(`{"bio":"hi"}`))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var usr user.User
		decode(t, rec, &usr)
		assert.Equal(t, "hi", usr.Bio)
		assert.Equal(t, alice.Username, usr.Username)
	})

	t.Run("admin deactivates & deletes", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPatch, "/v1/users/"+bob.ID, adminToken, []byte(`{"is_active":false}`))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		// deactivated users are locked out
		req, rec = newAuthRequest(http.MethodGet, "/v1/users/me", getToken(t, srv, bob))
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		req, rec = newAuthRequest(http.MethodDelete, "/v1/users/"+bob.ID, adminToken)
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		req, rec = newAuthRequest(http.MethodGet, "/v1/users/"+bob.ID, adminToken)
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_userApi_passwordReset(t *testing.T) {
	srv, env := setup(t)
	alice := env.Student(t, "alice")

	for _, email := range []string{alice.Email, "nobody@test.cd"} {
		req, rec := newRequest(http.MethodPost, "/v1/users/password-reset", []byte(`{"email":"`+email+`"}`))
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	sent := env.Mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, alice.Email, sent[0].To[0].Address)

	req, rec := newRequest(http.MethodPost, "/v1/users/password-reset-confirm", []byte(
		`{"uid":"`+user.EncodeUID(alice)+`","token":"bad","password":"`+testutil.Password+`x","password_confirm":"`+testutil.Password+`x"}`,
	))
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
