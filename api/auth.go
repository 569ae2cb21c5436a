package api

import (
	"context"
	"fmt"
	"net/http"

	"court-desk/types"
)

type LoginResult struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

// SystemLogin exchanges staff credentials for a bearer token.
func (c *Client) SystemLogin(ctx context.Context, username, password string) (LoginResult, error) {
	body := map[string]string{
		"username": username,
		"password": password,
	}

	var res LoginResult
	if err := c.do(ctx, call{endpoint: "auth.login", method: http.MethodPost, path: "/auth/system-login", body: body}, &res); err != nil {
		return LoginResult{}, err
	}
	if res.Token == "" {
		return LoginResult{}, fmt.Errorf("%w: login payload has no token", ErrMalformedResponse)
	}
	return res, nil
}
