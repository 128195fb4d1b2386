package testutil

import (
	"bytes"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/perception/core"
	"github.com/trezcool/perception/core/evaluation"
	"github.com/trezcool/perception/core/user"
)

// Scores given by the fake AI.
const (
	AIScore    = 8
	AIFeedback = "Clear and accurate answer."
)

// Call is a request received by the Backend.
type Call struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

func (c Call) String() string { return c.Method + " " + c.Path }

type account struct {
	user.User
	password string
}

type questionSet struct {
	evaluation.QuestionSet
	creator   string
	assignees []string
}

type submission struct {
	evaluation.Submission
	setID   core.ID
	student string
}

// Backend is an in-memory evaluation backend served over HTTP, for tests.
// Tokens are issued sequentially: tok-1, tok-2, ...
type Backend struct {
	*httptest.Server

	mu        sync.Mutex
	calls     []Call
	accounts  []account
	tokens    map[string]string // token: username
	google    map[string]string // credential: username
	sets      []*questionSet
	subs      []*submission
	lastToken int
	lastID    int
}

// NewBackend starts a Backend, closed when the test ends.
func NewBackend(t testing.TB) *Backend {
	b := &Backend{
		tokens: make(map[string]string),
		google: make(map[string]string),
	}
	b.Server = httptest.NewServer(b.routes())
	t.Cleanup(b.Close)
	return b
}

func (b *Backend) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(b.record)

	auth := e.Group("/auth")
	auth.POST("/token", b.token)
	auth.POST("/google", b.googleToken)
	auth.POST("/signup", b.signup)
	auth.GET("/users/me", b.me, b.authenticated(""))

	student := e.Group("/api/student", b.authenticated(user.RoleStudent))
	student.GET("/question-sets", b.availableSets)
	student.GET("/submissions", b.mySubmissions)
	student.POST("/submissions", b.submit)

	teacher := e.Group("/api/teacher", b.authenticated(user.RoleTeacher))
	teacher.GET("/question-sets", b.createdSets)
	teacher.POST("/question-sets", b.createSet)
	teacher.GET("/question-sets/:id/submissions", b.setSubmissions)
	teacher.PUT("/submissions/:id/finalize", b.finalize)

	e.POST("/api/evaluate", b.evaluate, b.authenticated(user.RoleTeacher))
	return e
}

// Fixtures

// AddUser registers an account; the first one gets ID 1.
func (b *Backend) AddUser(username, email, password, role string) user.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addUser(username, email, password, role)
}

func (b *Backend) addUser(username, email, password, role string) user.User {
	usr := user.User{ID: core.ID(strconv.Itoa(len(b.accounts) + 1)), Username: username, Email: email, Role: role}
	b.accounts = append(b.accounts, account{User: usr, password: password})
	return usr
}

// IssueToken returns a valid token for `username`.
func (b *Backend) IssueToken(username string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issueToken(username)
}

func (b *Backend) issueToken(username string) string {
	b.lastToken++
	token := "tok-" + strconv.Itoa(b.lastToken)
	b.tokens[token] = username
	return token
}

func (b *Backend) RevokeTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = make(map[string]string)
}

// AddGoogleCredential makes `credential` a valid Google login for `username`.
func (b *Backend) AddGoogleCredential(credential, username string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.google[credential] = username
}

// AddQuestionSet creates a question set. A zero qs.ID gets the next free id.
func (b *Backend) AddQuestionSet(creator string, qs evaluation.QuestionSet, assignees ...string) evaluation.QuestionSet {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addQuestionSet(creator, qs, assignees).teacherView()
}

func (b *Backend) addQuestionSet(creator string, qs evaluation.QuestionSet, assignees []string) *questionSet {
	if qs.ID.IsZero() {
		qs.ID = b.nextID()
	}
	set := &questionSet{QuestionSet: qs, creator: creator, assignees: assignees}
	set.Creator = b.findUser(creator).User
	set.AssignedStudents = make([]user.User, 0, len(assignees))
	for _, uname := range assignees {
		set.AssignedStudents = append(set.AssignedStudents, b.findUser(uname).User)
	}
	b.sets = append(b.sets, set)
	return set
}

// AddSubmission records `student`'s answer to set `setID`. A zero id gets the next free id.
func (b *Backend) AddSubmission(id, setID core.ID, student, answer string) evaluation.Submission {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addSubmission(id, setID, student, answer).Submission
}

func (b *Backend) addSubmission(id, setID core.ID, student, answer string) *submission {
	if id.IsZero() {
		id = b.nextID()
	}
	stud := b.findUser(student).User
	sub := &submission{
		Submission: evaluation.Submission{
			ID:            id,
			Student:       &stud,
			StudentAnswer: answer,
			AIScore:       AIScore,
			AIFeedback:    AIFeedback,
		},
		setID:   setID,
		student: student,
	}
	b.subs = append(b.subs, sub)
	return sub
}

// FinalScore returns the final score of a submission, nil if not finalized (or unknown).
func (b *Backend) FinalScore(subID core.ID) *int {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if sub.ID == subID {
			return sub.FinalScore
		}
	}
	return nil
}

func (b *Backend) nextID() core.ID {
	b.lastID++
	return core.ID(strconv.Itoa(b.lastID))
}

func (b *Backend) findUser(usernameOrEmail string) account {
	for _, acc := range b.accounts {
		if acc.Username == usernameOrEmail || acc.Email == usernameOrEmail {
			return acc
		}
	}
	return account{}
}

func (b *Backend) findSet(id core.ID) *questionSet {
	for _, set := range b.sets {
		if set.ID == id {
			return set
		}
	}
	return nil
}

// Calls

// Calls lists the requests received, as "METHOD /path".
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	calls := make([]string, 0, len(b.calls))
	for _, c := range b.calls {
		calls = append(calls, c.String())
	}
	return calls
}

// LastCall returns the last request received for "METHOD /path".
func (b *Backend) LastCall(call string) (Call, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.calls) - 1; i >= 0; i-- {
		if b.calls[i].String() == call {
			return b.calls[i], true
		}
	}
	return Call{}, false
}

func (b *Backend) ResetCalls() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

// Middleware

func (b *Backend) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		body, _ := ioutil.ReadAll(req.Body)
		req.Body = ioutil.NopCloser(bytes.NewReader(body))

		b.mu.Lock()
		b.calls = append(b.calls, Call{Method: req.Method, Path: req.URL.Path, Header: req.Header.Clone(), Body: body})
		b.mu.Unlock()
		return next(c)
	}
}

// authenticated resolves the bearer token into the "user" context key.
// A non-empty role is required from the user.
func (b *Backend) authenticated(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer ")

			b.mu.Lock()
			uname, ok := b.tokens[token]
			acc := b.findUser(uname)
			b.mu.Unlock()

			if !ok || acc.Username == "" {
				c.Response().Header().Set("WWW-Authenticate", "Bearer")
				return detail(c, http.StatusUnauthorized, "Could not validate credentials")
			}
			if role != "" && acc.Role != role {
				return detail(c, http.StatusForbidden, "Access denied.")
			}
			c.Set("user", acc.User)
			return next(c)
		}
	}
}

func currentUser(c echo.Context) user.User {
	usr, _ := c.Get("user").(user.User)
	return usr
}

func detail(c echo.Context, code int, msg string) error {
	return c.JSON(code, echo.Map{"detail": msg})
}

// validationDetail responds like a request validation failure.
func validationDetail(c echo.Context, field, msg string) error {
	return c.JSON(http.StatusUnprocessableEntity, echo.Map{
		"detail": []echo.Map{{"loc": []string{"body", field}, "msg": msg, "type": "value_error"}},
	})
}

// Handlers

func (b *Backend) token(c echo.Context) error {
	uname, pwd := c.FormValue("username"), c.FormValue("password")

	b.mu.Lock()
	defer b.mu.Unlock()
	acc := b.findUser(uname)
	if acc.Username == "" || acc.password != pwd {
		return detail(c, http.StatusUnauthorized, "Incorrect username or password")
	}
	return c.JSON(http.StatusOK, echo.Map{"access_token": b.issueToken(acc.Username), "token_type": "bearer"})
}

func (b *Backend) googleToken(c echo.Context) error {
	var in struct {
		Credential string `json:"credential"`
	}
	if err := c.Bind(&in); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	uname, ok := b.google[in.Credential]
	if !ok {
		return detail(c, http.StatusUnauthorized, "Could not validate Google credentials")
	}
	return c.JSON(http.StatusOK, echo.Map{"access_token": b.issueToken(uname), "token_type": "bearer"})
}

func (b *Backend) signup(c echo.Context) error {
	var nu user.NewUser
	if err := c.Bind(&nu); err != nil {
		return err
	}
	if len(nu.Password) < 8 {
		return validationDetail(c, "password", "String should have at least 8 characters")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, acc := range b.accounts {
		if acc.Email == nu.Email {
			return detail(c, http.StatusBadRequest, "Email already registered")
		}
		if acc.Username == nu.Username {
			return detail(c, http.StatusBadRequest, "Username is already taken")
		}
	}
	return c.JSON(http.StatusCreated, b.addUser(nu.Username, nu.Email, nu.Password, nu.Role))
}

func (b *Backend) me(c echo.Context) error {
	return c.JSON(http.StatusOK, currentUser(c))
}

func (b *Backend) availableSets(c echo.Context) error {
	usr := currentUser(c)

	b.mu.Lock()
	defer b.mu.Unlock()
	sets := make([]evaluation.QuestionSet, 0)
	for _, set := range b.sets {
		if set.isVisibleTo(usr.Username) && !b.hasAnswered(set.ID, usr.Username) {
			sets = append(sets, set.studentView())
		}
	}
	return c.JSON(http.StatusOK, sets)
}

func (b *Backend) mySubmissions(c echo.Context) error {
	usr := currentUser(c)

	b.mu.Lock()
	defer b.mu.Unlock()
	subs := make([]evaluation.Submission, 0)
	for _, sub := range b.subs {
		if sub.student == usr.Username {
			subs = append(subs, b.resultView(sub))
		}
	}
	return c.JSON(http.StatusOK, subs)
}

func (b *Backend) submit(c echo.Context) error {
	usr := currentUser(c)
	var ns evaluation.NewSubmission
	if err := c.Bind(&ns); err != nil {
		return err
	}
	if len(ns.Answer) < 5 {
		return validationDetail(c, "answer", "String should have at least 5 characters")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.findSet(ns.QuestionSetID)
	if set == nil || !set.isVisibleTo(usr.Username) {
		return detail(c, http.StatusNotFound, "Question set not found.")
	}
	if b.hasAnswered(set.ID, usr.Username) {
		return detail(c, http.StatusBadRequest, "You have already submitted an answer for this set.")
	}
	sub := b.addSubmission("", set.ID, usr.Username, ns.Answer)
	return c.JSON(http.StatusCreated, b.resultView(sub))
}

func (b *Backend) createdSets(c echo.Context) error {
	usr := currentUser(c)

	b.mu.Lock()
	defer b.mu.Unlock()
	sets := make([]evaluation.QuestionSet, 0)
	for _, set := range b.sets {
		if set.creator == usr.Username {
			sets = append(sets, set.teacherView())
		}
	}
	return c.JSON(http.StatusOK, sets)
}

func (b *Backend) createSet(c echo.Context) error {
	usr := currentUser(c)
	var nqs evaluation.NewQuestionSet
	if err := c.Bind(&nqs); err != nil {
		return err
	}
	if len(nqs.Title) < 3 {
		return validationDetail(c, "title", "String should have at least 3 characters")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, uname := range nqs.AssignedUsernames {
		if acc := b.findUser(uname); acc.Username == "" || acc.Role != user.RoleStudent {
			return detail(c, http.StatusNotFound, "One or more student usernames not found.")
		}
	}
	set := b.addQuestionSet(usr.Username, evaluation.QuestionSet{
		Title:       nqs.Title,
		Question:    nqs.Question,
		ModelAnswer: nqs.ModelAnswer,
	}, nqs.AssignedUsernames)
	return c.JSON(http.StatusCreated, set.teacherView())
}

func (b *Backend) setSubmissions(c echo.Context) error {
	usr := currentUser(c)
	setID := core.ID(c.Param("id"))

	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.findSet(setID)
	if set == nil || set.creator != usr.Username {
		return detail(c, http.StatusNotFound, "Question set not found or access denied.")
	}
	subs := make([]evaluation.Submission, 0)
	for _, sub := range b.subs {
		if sub.setID == setID {
			subs = append(subs, sub.Submission)
		}
	}
	return c.JSON(http.StatusOK, subs)
}

func (b *Backend) finalize(c echo.Context) error {
	usr := currentUser(c)
	subID := core.ID(c.Param("id"))
	var upd evaluation.ScoreUpdate
	if err := c.Bind(&upd); err != nil {
		return err
	}
	if upd.FinalScore == nil || *upd.FinalScore < evaluation.MinScore || *upd.FinalScore > evaluation.MaxScore {
		return validationDetail(c, "final_score", "Input should be less than or equal to 10")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if sub.ID != subID {
			continue
		}
		if set := b.findSet(sub.setID); set == nil || set.creator != usr.Username {
			return detail(c, http.StatusForbidden, "Access denied.")
		}
		score := *upd.FinalScore
		sub.FinalScore = &score
		return c.JSON(http.StatusOK, sub.Submission)
	}
	return detail(c, http.StatusNotFound, "Submission not found.")
}

func (b *Backend) evaluate(c echo.Context) error {
	var sample evaluation.Sample
	if err := c.Bind(&sample); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, evaluation.Result{Score: AIScore, Feedback: AIFeedback})
}

// Views

func (b *Backend) hasAnswered(setID core.ID, student string) bool {
	for _, sub := range b.subs {
		if sub.setID == setID && sub.student == student {
			return true
		}
	}
	return false
}

func (b *Backend) resultView(sub *submission) evaluation.Submission {
	view := sub.Submission
	view.Student = nil
	if set := b.findSet(sub.setID); set != nil {
		qs := set.studentView()
		view.QuestionSet = &qs
	}
	return view
}

func (qs *questionSet) isVisibleTo(username string) bool {
	if len(qs.assignees) == 0 {
		return true
	}
	for _, uname := range qs.assignees {
		if uname == username {
			return true
		}
	}
	return false
}

func (qs *questionSet) teacherView() evaluation.QuestionSet {
	return qs.QuestionSet
}

func (qs *questionSet) studentView() evaluation.QuestionSet {
	return evaluation.QuestionSet{ID: qs.ID, Title: qs.Title, Question: qs.Question, Creator: qs.Creator}
}
