package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/perception/core"
	"github.com/trezcool/perception/core/session"
	"github.com/trezcool/perception/core/user"
	"github.com/trezcool/perception/services/backend"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp        = errors.New("help provided")
	errNotLoggedIn = errors.New("not logged in: run `perception login -username USERNAME` first")
)

// notice is an action failure as shown to the user. Its cause is kept for logs.
type notice struct {
	msg   string
	cause error
}

func (n *notice) Error() string { return n.msg }

func (n *notice) Cause() error { return n.cause }

func failure(err error, fallback string) error {
	if err == nil {
		return nil
	}
	return &notice{msg: core.UserMessage(err, fallback), cause: err}
}

type commandLine struct {
	ctx        context.Context
	client     *backend.Client
	store      *session.Store
	validate   *validator.Validate
	translator ut.Translator
	logger     core.Logger
	out        io.Writer
}

func newCommandLine(
	ctx context.Context,
	client *backend.Client,
	storage session.TokenStorage,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
	out io.Writer,
) (*commandLine, error) {
	store, err := session.NewStore(client, storage, logger)
	if err != nil {
		return nil, err
	}
	client.SetTokenSource(store)
	return &commandLine{
		ctx:        ctx,
		client:     client,
		store:      store,
		validate:   validate,
		translator: translator,
		logger:     logger,
		out:        out,
	}, nil
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -username USERNAME|EMAIL                 - log in (the password will be prompted)")
	fmt.Fprintln(cli.out, "  login-google -credential CREDENTIAL           - log in with a Google ID token")
	fmt.Fprintln(cli.out, "  signup -username U -email E -role ROLE         - create an account (the password will be prompted)")
	fmt.Fprintln(cli.out, "  logout                                         - forget the session")
	fmt.Fprintln(cli.out, "  whoami                                         - show the logged in user")
	fmt.Fprintln(cli.out, "  sets                                           - list question sets")
	fmt.Fprintln(cli.out, "  submissions [-set ID]                          - list submissions (teachers: of a question set)")
	fmt.Fprintln(cli.out, "  submit -set ID -answer TEXT                    - answer a question set (students)")
	fmt.Fprintln(cli.out, "  create-set -title T -question Q -model-answer A [-assign \"bob, carol\"] - create a question set (teachers)")
	fmt.Fprintln(cli.out, "  finalize -submission ID -score N [-set ID]     - set the final score of a submission (teachers)")
	fmt.Fprintln(cli.out, "  evaluate -model-answer A -answer TEXT          - have the AI score an answer (teachers)")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

// parse parses `args` into `fs`; -h is reported as errHelp.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return errHelp
		}
		return err
	}
	return nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	loginCmd := cli.newFlagSet("login")
	loginUname := loginCmd.String("username", "", "Your username or email. The password will be prompted next.")

	googleCmd := cli.newFlagSet("login-google")
	googleCredential := googleCmd.String("credential", "", "A Google Identity Services ID token.")

	signupCmd := cli.newFlagSet("signup")
	signupUname := signupCmd.String("username", "", "3 to 20 letters, digits or underscores.")
	signupEmail := signupCmd.String("email", "", "Your email address.")
	signupRole := signupCmd.String("role", user.RoleStudent, "student or teacher.")

	submissionsCmd := cli.newFlagSet("submissions")
	submissionsSet := submissionsCmd.String("set", "", "The question set (teachers only).")

	submitCmd := cli.newFlagSet("submit")
	submitSet := submitCmd.String("set", "", "The question set to answer.")
	submitAnswer := submitCmd.String("answer", "", "Your answer (at least 10 characters).")

	createCmd := cli.newFlagSet("create-set")
	createTitle := createCmd.String("title", "", "3 to 100 characters.")
	createQuestion := createCmd.String("question", "", "At least 10 characters.")
	createModel := createCmd.String("model-answer", "", "The answer submissions are scored against.")
	createAssign := createCmd.String("assign", "", "Comma separated student usernames; public if empty.")

	finalizeCmd := cli.newFlagSet("finalize")
	finalizeSub := finalizeCmd.String("submission", "", "The submission to finalize.")
	finalizeScore := finalizeCmd.String("score", "", "An integer between 0 and 10.")
	finalizeSet := finalizeCmd.String("set", "", "List the question set's submissions afterwards.")

	evaluateCmd := cli.newFlagSet("evaluate")
	evaluateModel := evaluateCmd.String("model-answer", "", "The reference answer.")
	evaluateAnswer := evaluateCmd.String("answer", "", "The answer to score.")

	switch args[1] {
	case "login":
		if err := parse(loginCmd, args[2:]); err != nil {
			return err
		}
		if *loginUname == "" {
			loginCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			loginCmd.Usage()
			return errHelp
		}
		return cli.login(*loginUname, pwd)

	case "login-google":
		if err := parse(googleCmd, args[2:]); err != nil {
			return err
		}
		if *googleCredential == "" {
			googleCmd.Usage()
			return errHelp
		}
		return cli.loginWithGoogle(*googleCredential)

	case "signup":
		if err := parse(signupCmd, args[2:]); err != nil {
			return err
		}
		if *signupUname == "" || *signupEmail == "" {
			signupCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		return cli.signup(user.NewUser{Username: *signupUname, Email: *signupEmail, Password: pwd, Role: *signupRole})

	case "logout":
		cli.store.Logout()
		fmt.Fprintln(cli.out, "Logged out.")
		return nil

	case "whoami":
		return cli.whoami()

	case "sets":
		return cli.listSets()

	case "submissions":
		if err := parse(submissionsCmd, args[2:]); err != nil {
			return err
		}
		return cli.listSubmissions(*submissionsSet)

	case "submit":
		if err := parse(submitCmd, args[2:]); err != nil {
			return err
		}
		if *submitSet == "" {
			submitCmd.Usage()
			return errHelp
		}
		return cli.submit(*submitSet, *submitAnswer)

	case "create-set":
		if err := parse(createCmd, args[2:]); err != nil {
			return err
		}
		return cli.createSet(*createTitle, *createQuestion, *createModel, *createAssign)

	case "finalize":
		if err := parse(finalizeCmd, args[2:]); err != nil {
			return err
		}
		if *finalizeSub == "" {
			finalizeCmd.Usage()
			return errHelp
		}
		return cli.finalize(*finalizeSub, *finalizeScore, *finalizeSet)

	case "evaluate":
		if err := parse(evaluateCmd, args[2:]); err != nil {
			return err
		}
		return cli.evaluate(*evaluateModel, *evaluateAnswer)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	return strings.TrimRight(string(pwd), "\r\n"), nil
}

// requireSession validates the stored session, like the portal does before protected pages.
// With `roles`, the user must have one of them.
func (cli *commandLine) requireSession(roles ...string) (user.User, error) {
	err := cli.store.CheckAuth(cli.ctx)
	if session.Decide(cli.store.Snapshot()) != session.Render {
		if err != nil && !backend.IsStatus(err, http.StatusUnauthorized) && errors.Cause(err) != session.ErrTokenExpired {
			return user.User{}, err
		}
		return user.User{}, errNotLoggedIn
	}

	usr, _ := cli.store.User()
	if len(roles) == 0 {
		return usr, nil
	}
	for _, role := range roles {
		if usr.Role == role {
			return usr, nil
		}
	}
	return user.User{}, errors.Errorf("access denied: only available to %ss", strings.Join(roles, "s and "))
}
