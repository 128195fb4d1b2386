package echoportal_test

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/perception/apps/portal/echo"
	"github.com/trezcool/perception/core"
	"github.com/trezcool/perception/core/evaluation"
	"github.com/trezcool/perception/core/user"
	"github.com/trezcool/perception/services/logger"
	"github.com/trezcool/perception/tests"
)

const (
	cookieName = "auth-storage"
	csrfToken  = "csrf-test-token"
)

func newTestApp(t *testing.T) (Server, *testutil.Backend) {
	t.Helper()

	api := testutil.NewBackend(t)
	api.AddUser("tina", "tina@test.cd", "teach3r!", user.RoleTeacher)
	api.AddUser("alice", "alice@test.cd", "secret123", user.RoleStudent)

	conf := &core.Config{TestMode: true, AppName: "Perception", SecretKey: "portal-test-secret"}
	conf.API.BaseURL = api.URL
	conf.Session.CookieName = cookieName
	conf.Session.CookieMaxAge = time.Hour

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	app, err := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf),
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	require.NoError(t, err)
	return app, api
}

// browser keeps the cookies set by the app, like a browser would.
type browser struct {
	app     http.Handler
	cookies map[string]*http.Cookie
}

func newBrowser(app http.Handler) *browser {
	return &browser{
		app:     app,
		cookies: map[string]*http.Cookie{"_csrf": {Name: "_csrf", Value: csrfToken}},
	}
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, target, nil))
}

// post submits `form` along with the CSRF token.
func (b *browser) post(target string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	if _, ok := form["_csrf"]; !ok {
		form.Set("_csrf", csrfToken)
	}
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return b.do(req)
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range b.cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	rec := httptest.NewRecorder()
	b.app.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(b.cookies, c.Name)
		} else {
			b.cookies[c.Name] = c
		}
	}
	return rec
}

func (b *browser) login(t *testing.T, username, password string) {
	t.Helper()
	rec := b.post("/login", url.Values{"emailOrUsername": {username}, "password": {password}})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	require.Equal(t, "/dashboard", rec.Header().Get(echo.HeaderLocation))
}

func TestHealthz(t *testing.T) {
	app, _ := newTestApp(t)
	rec := newBrowser(app).get("/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestPublicPages(t *testing.T) {
	app, _ := newTestApp(t)
	b := newBrowser(app)

	for _, target := range []string{"/", "/about", "/login", "/signup"} {
		rec := b.get(target)
		assert.Equal(t, http.StatusOK, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "Perception", target)
	}
	assert.Contains(t, b.get("/signup").Body.String(), `<option value="teacher"`)
}

func TestLogin(t *testing.T) {
	app, api := newTestApp(t)
	b := newBrowser(app)

	t.Run("protected page redirects", func(t *testing.T) {
		rec := b.get("/dashboard")
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))
		assert.Empty(t, api.Calls(), "no session, no request")
	})

	t.Run("invalid form", func(t *testing.T) {
		rec := b.post("/login", url.Values{"emailOrUsername": {"  "}, "password": {""}})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "this field is required")
		assert.Empty(t, api.Calls())
	})

	t.Run("rejected credentials", func(t *testing.T) {
		rec := b.post("/login", url.Values{"emailOrUsername": {"alice"}, "password": {"wrong-one"}})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Incorrect username or password")
		assert.NotContains(t, b.cookies, cookieName)
	})

	t.Run("success", func(t *testing.T) {
		api.ResetCalls()
		b.login(t, "alice@test.cd", "secret123")
		assert.Equal(t, []string{"POST /auth/token", "GET /auth/users/me"}, api.Calls())

		require.Contains(t, b.cookies, cookieName)
		assert.NotContains(t, b.cookies[cookieName].Value, "tok-", "the token is sealed")
		assert.True(t, b.cookies[cookieName].HttpOnly)

		rec := b.get("/dashboard")
		assert.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "Login successful!")
		assert.Contains(t, body, "Available Question Sets")
		assert.Contains(t, body, "alice (student)")

		call, ok := api.LastCall("GET /auth/users/me")
		require.True(t, ok)
		assert.NotEmpty(t, call.Header.Get(echo.HeaderXRequestID))
		assert.Regexp(t, `^Bearer tok-\d+$`, call.Header.Get(echo.HeaderAuthorization))

		// the notice is only shown once
		assert.NotContains(t, b.get("/dashboard").Body.String(), "Login successful!")
	})

	t.Run("login page redirects once logged in", func(t *testing.T) {
		rec := b.get("/login")
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/dashboard", rec.Header().Get(echo.HeaderLocation))
	})

	t.Run("logout", func(t *testing.T) {
		rec := b.post("/logout", nil)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))
		assert.NotContains(t, b.cookies, cookieName)

		rec = b.get("/dashboard")
		assert.Equal(t, http.StatusFound, rec.Code)
	})
}

func TestSession_invalid(t *testing.T) {
	app, api := newTestApp(t)

	t.Run("tampered cookie", func(t *testing.T) {
		b := newBrowser(app)
		b.cookies[cookieName] = &http.Cookie{Name: cookieName, Value: "bm90LWEtc2VhbGVkLWNvb2tpZQ"}
		rec := b.get("/dashboard")
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Empty(t, api.Calls())
	})

	t.Run("revoked token", func(t *testing.T) {
		b := newBrowser(app)
		b.login(t, "alice", "secret123")
		api.RevokeTokens()

		rec := b.get("/dashboard")
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))
		assert.NotContains(t, b.cookies, cookieName, "the session is cleared")
	})
}

func TestCSRF(t *testing.T) {
	app, api := newTestApp(t)
	form := url.Values{"emailOrUsername": {"alice"}, "password": {"secret123"}, "_csrf": {"forged"}}

	b := newBrowser(app)
	delete(b.cookies, "_csrf")
	rec := b.post("/login", form)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	b = newBrowser(app)
	rec = b.post("/login", form)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, api.Calls())
}

func TestLoginWithGoogle(t *testing.T) {
	app, api := newTestApp(t)
	api.AddGoogleCredential("g-cred", "alice")
	b := newBrowser(app)

	t.Run("double submit mismatch", func(t *testing.T) {
		b.cookies["g_csrf_token"] = &http.Cookie{Name: "g_csrf_token", Value: "g1"}
		rec := b.post("/login/google", url.Values{"credential": {"g-cred"}, "g_csrf_token": {"g2"}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, api.Calls())
	})

	t.Run("unknown credential", func(t *testing.T) {
		rec := b.post("/login/google", url.Values{"credential": {"g-other"}, "g_csrf_token": {"g1"}})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Could not validate Google credentials")
	})

	t.Run("success", func(t *testing.T) {
		rec := b.post("/login/google", url.Values{"credential": {"g-cred"}, "g_csrf_token": {"g1"}})
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, http.StatusOK, b.get("/dashboard").Code)
	})
}

func TestSignup(t *testing.T) {
	app, api := newTestApp(t)
	b := newBrowser(app)

	rec := b.post("/signup", url.Values{
		"username": {"bobsmith"}, "email": {"bob@test.cd"}, "password": {"bobsmith1"}, "role": {"student"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "password cannot be similar to your username or email")
	assert.Empty(t, api.Calls())

	rec = b.post("/signup", url.Values{
		"username": {"alice"}, "email": {"alice2@test.cd"}, "password": {"Tr0ub4dor&3"}, "role": {"student"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Username is already taken")

	rec = b.post("/signup", url.Values{
		"username": {"bob"}, "email": {"Bob@Test.cd"}, "password": {"Tr0ub4dor&3"}, "role": {"Student"},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))
	assert.NotContains(t, b.cookies, cookieName, "signing up does not log in")

	rec = b.get("/login")
	assert.Contains(t, rec.Body.String(), "Signup successful! Please login.")
	b.login(t, "bob@test.cd", "Tr0ub4dor&3")
}

func TestStudentDashboard(t *testing.T) {
	app, api := newTestApp(t)
	api.AddQuestionSet("tina", evaluation.QuestionSet{ID: "5", Title: "Cells", Question: "What does the mitochondria do?", ModelAnswer: "Energy."})
	b := newBrowser(app)
	b.login(t, "alice", "secret123")

	rec := b.post("/dashboard/submissions", url.Values{"question_set_id": {"5"}, "answer": {"short"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Cells", "the dashboard is still rendered")

	rec = b.post("/dashboard/submissions", url.Values{"question_set_id": {"5"}, "answer": {"The powerhouse of the cell."}})
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Answer submitted successfully!")
	assert.Contains(t, body, "Pending Teacher Review")
	assert.Contains(t, body, testutil.AIFeedback)

	rec = b.post("/dashboard/question-sets", url.Values{"title": {"Hack"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Access denied.")
}

func TestTeacherDashboard(t *testing.T) {
	app, api := newTestApp(t)
	qs := api.AddQuestionSet("tina", evaluation.QuestionSet{ID: "7", Title: "Cells", Question: "What does the mitochondria do?", ModelAnswer: "Energy."})
	api.AddSubmission("42", qs.ID, "alice", "Energy, mostly.")
	b := newBrowser(app)
	b.login(t, "tina", "teach3r!")

	t.Run("create", func(t *testing.T) {
		rec := b.post("/dashboard/question-sets", url.Values{
			"title":              {"Atoms"},
			"question":           {"What is an atom made of?"},
			"model_answer":       {"Protons, neutrons and electrons."},
			"assigned_usernames": {"alice"},
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "New question set created!")
		assert.Contains(t, rec.Body.String(), "Assigned to alice")
	})

	t.Run("open", func(t *testing.T) {
		api.ResetCalls()
		rec := b.get("/dashboard?set=7")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Submissions for Cells")
		assert.Contains(t, rec.Body.String(), "Energy, mostly.")
		assert.Contains(t, api.Calls(), "GET /api/teacher/question-sets/7/submissions")
	})

	t.Run("invalid score is not sent", func(t *testing.T) {
		api.ResetCalls()
		rec := b.post("/dashboard/submissions/42/finalize", url.Values{"set": {"7"}, "final_score": {"11"}})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), evaluation.ErrInvalidScore.Error())
		assert.NotContains(t, api.Calls(), "PUT /api/teacher/submissions/42/finalize")
		assert.Nil(t, api.FinalScore("42"))
	})

	t.Run("finalize", func(t *testing.T) {
		api.ResetCalls()
		rec := b.post("/dashboard/submissions/42/finalize", url.Values{"set": {"7"}, "final_score": {"7"}})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Score finalized!")
		assert.Contains(t, rec.Body.String(), "7/10")

		call, ok := api.LastCall("PUT /api/teacher/submissions/42/finalize")
		require.True(t, ok)
		assert.JSONEq(t, `{"final_score": 7}`, string(call.Body))
		require.NotNil(t, api.FinalScore("42"))
		assert.Equal(t, 7, *api.FinalScore("42"))
	})

	t.Run("evaluate", func(t *testing.T) {
		rec := b.post("/dashboard/evaluate", url.Values{"model_answer": {"Energy."}, "student_answer": {" "}})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		rec = b.post("/dashboard/evaluate", url.Values{"model_answer": {"Energy."}, "student_answer": {"Power."}})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), testutil.AIFeedback)
	})
}
