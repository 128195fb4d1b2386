package main

import (
	"bytes"
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/perception/core"
	"github.com/trezcool/perception/core/dashboard"
	"github.com/trezcool/perception/core/evaluation"
	"github.com/trezcool/perception/core/session"
	"github.com/trezcool/perception/core/user"
	"github.com/trezcool/perception/services/backend"
	"github.com/trezcool/perception/services/logger"
	"github.com/trezcool/perception/storage/tokenstore/boltstore"
	"github.com/trezcool/perception/storage/tokenstore/inmem"
	"github.com/trezcool/perception/tests"
)

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

type promptedPwd string

func setupBackend(t *testing.T) *testutil.Backend {
	api := testutil.NewBackend(t)
	api.AddUser("tina", "tina@test.cd", "teach3r!", user.RoleTeacher)
	api.AddUser("alice", "alice@test.cd", "secret123", user.RoleStudent)
	api.AddUser("bob", "bob@test.cd", "secret456", user.RoleStudent)
	api.AddGoogleCredential("g-cred", "alice")
	return api
}

func newTestCLI(t *testing.T, api *testutil.Backend, storage session.TokenStorage) (*commandLine, *bytes.Buffer) {
	t.Helper()

	conf := &core.Config{TestMode: true}
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	out := new(bytes.Buffer)
	cli, err := newCommandLine(
		backend.WithRequestID(context.Background(), "cli-test"),
		backend.New(api.URL),
		storage,
		validate,
		translator,
		logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf),
		out,
	)
	require.NoError(t, err)
	return cli, out
}

func runTests(t *testing.T, cli *commandLine, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		tt := tt
		args := append([]string{"perception"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			readPasswordFunc = func(fd int) ([]byte, error) {
				if pwd, ok := tt.extra.(promptedPwd); ok {
					return []byte(pwd), nil
				}
				return nil, nil
			}

			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func login(t *testing.T, cli *commandLine, uname, pwd string) {
	t.Helper()
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	require.NoError(t, cli.run([]string{"perception", "login", "-username", uname}))
}

func Test_commandLine_login(t *testing.T) {
	api := setupBackend(t)
	cli, out := newTestCLI(t, api, inmem.New(""))

	runTests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "help flag", args: []string{"login", "-h"}, wantErr: errHelp},
		{name: "no args", args: []string{"login"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"login", "-username", "alice"}, wantErr: errHelp},
		{name: "unknown flag", args: []string{"login", "-user", "alice"}, wantErrStr: "flag provided but not defined: -user"},
		{name: "not logged in", args: []string{"whoami"}, wantErr: errNotLoggedIn},
		{name: "wrong password", args: []string{"login", "-username", "alice"}, extra: promptedPwd("nope"), wantErrStr: "Incorrect username or password"},
		{name: "login with email", args: []string{"login", "-username", "alice@test.cd"}, extra: promptedPwd("secret123")},
		{name: "whoami", args: []string{"whoami"}},
		{name: "logout", args: []string{"logout"}},
		{name: "logged out", args: []string{"whoami"}, wantErr: errNotLoggedIn},
		{name: "google: no credential", args: []string{"login-google"}, wantErr: errHelp},
		{name: "google: unknown credential", args: []string{"login-google", "-credential", "g-lol"}, wantErrStr: "Could not validate Google credentials"},
		{name: "google", args: []string{"login-google", "-credential", "g-cred"}},
	})

	assert.Contains(t, out.String(), "Login successful! Welcome, alice (student).")
	assert.Contains(t, out.String(), "alice <alice@test.cd> (student)")
	assert.Contains(t, out.String(), "Logged out.")

	call, ok := api.LastCall("GET /auth/users/me")
	require.True(t, ok)
	assert.Equal(t, "cli-test", call.Header.Get("X-Request-ID"))
}

func Test_commandLine_signup(t *testing.T) {
	api := setupBackend(t)
	cli, out := newTestCLI(t, api, inmem.New(""))

	runTests(t, cli, []cliTest{
		{name: "no args", args: []string{"signup"}, wantErr: errHelp},
		{
			name:       "password too similar",
			args:       []string{"signup", "-username", "carolina", "-email", "carol@test.cd"},
			extra:      promptedPwd("carolina1"),
			wantErrStr: "password: password cannot be similar to your username or email",
		},
		{
			name:       "username taken",
			args:       []string{"signup", "-username", "alice", "-email", "alice2@test.cd"},
			extra:      promptedPwd("Tr0ub4dor&3"),
			wantErrStr: "Username is already taken",
		},
		{
			name:  "signup",
			args:  []string{"signup", "-username", "carol", "-email", "Carol@Test.cd", "-role", "teacher"},
			extra: promptedPwd("Tr0ub4dor&3"),
		},
		{name: "not logged in after signup", args: []string{"whoami"}, wantErr: errNotLoggedIn},
		{name: "login", args: []string{"login", "-username", "carol@test.cd"}, extra: promptedPwd("Tr0ub4dor&3")},
	})
	assert.Contains(t, out.String(), "Signup successful! Please login as carol.")
	assert.Contains(t, out.String(), "Welcome, carol (teacher).")
}

func Test_commandLine_student(t *testing.T) {
	api := setupBackend(t)
	api.AddQuestionSet("tina", evaluation.QuestionSet{ID: "5", Title: "Cells", Question: "What does the mitochondria do?", ModelAnswer: "Energy."})
	api.AddQuestionSet("tina", evaluation.QuestionSet{ID: "6", Title: "Secret", Question: "Only for bob.", ModelAnswer: "!"}, "bob")

	cli, out := newTestCLI(t, api, inmem.New(""))
	login(t, cli, "alice", "secret123")
	out.Reset()

	require.NoError(t, cli.run([]string{"perception", "sets"}))
	assert.Contains(t, out.String(), "Cells")
	assert.NotContains(t, out.String(), "Secret")

	api.ResetCalls()
	err := cli.run([]string{"perception", "submit", "-set", "5", "-answer", "short"})
	require.Error(t, err)
	assert.True(t, core.IsValidationError(err))
	assert.Empty(t, api.Calls()[1:], "only the session check is sent")

	runTests(t, cli, []cliTest{
		{name: "no set", args: []string{"submit"}, wantErr: errHelp},
		{name: "submit", args: []string{"submit", "-set", "5", "-answer", "It is the powerhouse of the cell."}},
		{name: "submit twice", args: []string{"submit", "-set", "5", "-answer", "Still the powerhouse."}, wantErrStr: "You have already submitted an answer for this set."},
		{name: "unknown set", args: []string{"submit", "-set", "404", "-answer", "Nobody will ever read this."}, wantErrStr: "Question set not found."},
		{name: "teachers only", args: []string{"create-set", "-title", "Hack"}, wantErrStr: "access denied: only available to teachers"},
		{name: "submissions", args: []string{"submissions"}},
	})

	assert.Contains(t, out.String(), dashboard.SubmittedMsg)
	assert.Contains(t, out.String(), testutil.AIFeedback)
	assert.Contains(t, out.String(), "pending")
}

func Test_commandLine_teacher(t *testing.T) {
	api := setupBackend(t)
	qs := api.AddQuestionSet("tina", evaluation.QuestionSet{ID: "7", Title: "Cells", Question: "What does the mitochondria do?", ModelAnswer: "Energy."})
	api.AddSubmission("42", qs.ID, "alice", "Energy, mostly.")

	cli, out := newTestCLI(t, api, inmem.New(""))
	login(t, cli, "tina", "teach3r!")
	out.Reset()

	runTests(t, cli, []cliTest{
		{name: "students only", args: []string{"submit", "-set", "7", "-answer", "Teachers do not answer."}, wantErrStr: "access denied: only available to students"},
		{name: "submissions need a set", args: []string{"submissions"}, wantErrStr: "a question set is required: submissions -set ID"},
		{name: "submissions", args: []string{"submissions", "-set", "7"}},
		{
			name:       "create: invalid",
			args:       []string{"create-set", "-title", "C"},
			wantErrStr: "title: title must be at least 3 characters in length; question: this field is required; model_answer: this field is required",
		},
		{
			name:       "create: unknown assignee",
			args:       []string{"create-set", "-title", "Ghosts", "-question", "Who you gonna call?", "-model-answer", "Ghostbusters, obviously.", "-assign", "casper"},
			wantErrStr: "One or more student usernames not found.",
		},
		{
			name: "create",
			args: []string{"create-set", "-title", "Atoms", "-question", "What is an atom made of?", "-model-answer", "Protons, neutrons and electrons.", "-assign", "alice, bob"},
		},
		{name: "sets", args: []string{"sets"}},
		{name: "finalize: no submission", args: []string{"finalize"}, wantErr: errHelp},
		{name: "finalize: out of range", args: []string{"finalize", "-submission", "42", "-score", "11"}, wantErrStr: evaluation.ErrInvalidScore.Error()},
		{name: "finalize: not a number", args: []string{"finalize", "-submission", "42", "-score", "ten"}, wantErrStr: evaluation.ErrInvalidScore.Error()},
		{name: "finalize: unknown submission", args: []string{"finalize", "-submission", "404", "-score", "5"}, wantErrStr: "Submission not found."},
		{name: "finalize", args: []string{"finalize", "-submission", "42", "-score", "7", "-set", "7"}},
		{name: "evaluate: invalid", args: []string{"evaluate", "-model-answer", "Energy."}, wantErrStr: "student_answer: this field is required"},
		{name: "evaluate", args: []string{"evaluate", "-model-answer", "Energy.", "-answer", "Power."}},
	})

	_, put := api.LastCall("PUT /api/teacher/submissions/42/finalize")
	assert.True(t, put)
	require.NotNil(t, api.FinalScore("42"))
	assert.Equal(t, 7, *api.FinalScore("42"))

	output := out.String()
	assert.Contains(t, output, "Energy, mostly.")
	assert.Contains(t, output, "New question set created!")
	assert.Contains(t, output, "alice, bob")
	assert.Contains(t, output, "Score finalized! 42: 7/10")
	assert.Contains(t, output, "Score: 8/10")
}

func Test_commandLine_persistedSession(t *testing.T) {
	api := setupBackend(t)
	path := filepath.Join(t.TempDir(), "auth.db")

	storage, err := boltstore.Open(path)
	require.NoError(t, err)
	cli, _ := newTestCLI(t, api, storage)
	login(t, cli, "alice", "secret123")
	require.NoError(t, storage.Close())

	// next invocation
	storage, err = boltstore.Open(path)
	require.NoError(t, err)
	defer storage.Close()
	cli, out := newTestCLI(t, api, storage)
	require.NoError(t, cli.run([]string{"perception", "whoami"}))
	assert.Equal(t, "alice <alice@test.cd> (student)\n", out.String())

	// the backend no longer accepts the token: the session is forgotten
	api.RevokeTokens()
	assert.Equal(t, errNotLoggedIn, cli.run([]string{"perception", "whoami"}))
	token, err := storage.Load()
	require.NoError(t, err)
	assert.Empty(t, token)
}
