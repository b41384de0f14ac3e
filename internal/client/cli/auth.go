package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/jimzhouzzy/klotski-server/internal/client/client"
	"github.com/jimzhouzzy/klotski-server/internal/common"
)

// getSimpleText, getPassword and getMultiline are indirections used to
// facilitate testing.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
	getMultiline  = GetMultiline
)

// Signup prompts for a username and password and creates the account.
func (a *App) Signup(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}

	err = a.api.Signup(ctx, userName, password)
	switch {
	case err == nil:
		fmt.Fprintln(a.out, "Account created.")
	case errors.Is(err, common.ErrorAlreadyExists):
		fmt.Fprintln(a.out, "That username is taken.")
	case errors.Is(err, common.ErrorInvalidInput):
		fmt.Fprintln(a.out, "Usernames use letters, digits and '_'; both fields take 1 to 20 characters.")
	default:
		fmt.Fprintln(a.out, "Signup failed:", err)
	}
	return err
}

// Login prompts for credentials and keeps the session token on success.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}

	if _, err := a.api.Login(ctx, userName, password); err != nil {
		switch {
		case errors.Is(err, client.ErrUnauthorized):
			fmt.Fprintln(a.out, "Wrong username or password.")
		case errors.Is(err, client.ErrUnavailable):
			fmt.Fprintln(a.out, "Server unavailable.")
		default:
			fmt.Fprintln(a.out, "Login failed:", err)
		}
		return err
	}

	a.userName = userName
	fmt.Fprintf(a.out, "Logged in as %s.\n", userName)
	return nil
}

// Logout forgets the current user. Sessions expire on the server side.
func (a *App) Logout(context.Context) error {
	a.userName = ""
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}
