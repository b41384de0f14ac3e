package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/jimzhouzzy/klotski-server/internal/client/models"
)

type fakeAPI struct {
	signupUser string
	signupPass string
	signupErr  error

	loginUser string
	loginPass string
	loginErr  error
	token     string

	uploaded  *models.GameSave
	uploadErr error

	list    *models.SaveList
	listErr error
}

func (f *fakeAPI) Signup(_ context.Context, u, p string) error {
	f.signupUser, f.signupPass = u, p
	return f.signupErr
}

func (f *fakeAPI) Login(_ context.Context, u, p string) (string, error) {
	f.loginUser, f.loginPass = u, p
	if f.loginErr != nil {
		return "", f.loginErr
	}
	f.token = "tok"
	return f.token, nil
}

func (f *fakeAPI) LoginWithToken(context.Context, string, string) error { return nil }

func (f *fakeAPI) Upload(_ context.Context, s models.GameSave) error {
	f.uploaded = &s
	return f.uploadErr
}

func (f *fakeAPI) Saves(context.Context, string) (*models.SaveList, error) {
	return f.list, f.listErr
}

func (f *fakeAPI) Token() string { return f.token }

func newTestApp(api *fakeAPI, input string) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	return &App{api: api, reader: bufio.NewReader(strings.NewReader(input)), out: &out}, &out
}

func stubInputs(t *testing.T, username, password string) {
	t.Helper()
	origST, origGP := getSimpleText, getPassword
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) { return username, nil }
	getPassword = func(_ io.Writer) (string, error) { return password, nil }
	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
	})
}
