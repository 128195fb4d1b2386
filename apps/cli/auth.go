package main

import (
	"fmt"

	"github.com/trezcool/perception/core/session"
	"github.com/trezcool/perception/core/user"
)

func (cli *commandLine) login(uname, pwd string) error {
	creds := user.Credentials{Username: uname, Password: pwd}
	if err := creds.Validate(cli.validate, cli.translator); err != nil {
		return failure(err, session.LoginFailedMsg)
	}
	if err := cli.store.Login(cli.ctx, creds); err != nil {
		return failure(err, session.LoginFailedMsg)
	}
	return cli.welcome()
}

func (cli *commandLine) loginWithGoogle(credential string) error {
	if err := cli.store.LoginWithGoogle(cli.ctx, credential); err != nil {
		return failure(err, session.GoogleLoginFailedMsg)
	}
	return cli.welcome()
}

func (cli *commandLine) welcome() error {
	usr, _ := cli.store.User()
	fmt.Fprintf(cli.out, "Login successful! Welcome, %s (%s).\n", usr.Username, usr.Role)
	return nil
}

func (cli *commandLine) signup(nu user.NewUser) error {
	if err := nu.Validate(cli.validate, cli.translator); err != nil {
		return failure(err, session.SignupFailedMsg)
	}
	usr, err := cli.store.Signup(cli.ctx, nu)
	if err != nil {
		return failure(err, session.SignupFailedMsg)
	}
	fmt.Fprintf(cli.out, "Signup successful! Please login as %s.\n", usr.Username)
	return nil
}

func (cli *commandLine) whoami() error {
	usr, err := cli.requireSession()
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s <%s> (%s)\n", usr.Username, usr.Email, usr.Role)
	return nil
}
