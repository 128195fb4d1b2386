package backend

import (
	"context"
	"net/url"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/perception/core/user"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type googleCredential struct {
	Credential string `json:"credential"`
}

// RequestToken exchanges credentials for a bearer token (POST /auth/token, form-encoded).
func (c *Client) RequestToken(ctx context.Context, creds user.Credentials) (string, error) {
	form := url.Values{
		"username": {creds.Username},
		"password": {creds.Password},
	}
	return c.requestToken(ctx, "/auth/token", form)
}

// GoogleToken exchanges a Google Identity Services credential for a bearer token.
func (c *Client) GoogleToken(ctx context.Context, credential string) (string, error) {
	return c.requestToken(ctx, "/auth/google", googleCredential{Credential: credential})
}

func (c *Client) requestToken(ctx context.Context, path string, body interface{}) (string, error) {
	var tok tokenResponse
	if err := c.do(ctx, rest.Post, path, body, &tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", errors.Errorf("POST %s: no access token in response", path)
	}
	return tok.AccessToken, nil
}

// Me fetches the profile of the authenticated user.
func (c *Client) Me(ctx context.Context) (user.User, error) {
	var usr user.User
	err := c.do(ctx, rest.Get, "/auth/users/me", nil, &usr)
	return usr, err
}

// Signup registers a new account. It does not log in.
func (c *Client) Signup(ctx context.Context, nu user.NewUser) (user.User, error) {
	var usr user.User
	err := c.do(ctx, rest.Post, "/auth/signup", nu, &usr)
	return usr, err
}
