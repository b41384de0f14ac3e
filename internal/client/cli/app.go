// Package cli is an interactive shell for the klotski server: sign up, log
// in, and list or upload saves over the HTTP API.
package cli

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/jimzhouzzy/klotski-server/internal/client/client"
	"github.com/jimzhouzzy/klotski-server/internal/client/config"
)

type App struct {
	config   *config.Config
	api      client.Client
	userName string
	reader   *bufio.Reader
	out      io.Writer
}

func NewApp(c *config.Config) (*App, error) {
	api := client.NewHTTPClient(c.ServerURL, c.Timeout)
	return &App{config: c, api: api, reader: bufio.NewReader(os.Stdin), out: os.Stdout}, nil
}

func (a *App) Run(ctx context.Context) {
	printlnFn("Welcome to the klotski CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) isLoggedIn() bool {
	return a.api.Token() != "" && a.userName != ""
}

func (a *App) getStatus() string {
	if a.userName == "" {
		return "(anonymous)"
	}
	return "(" + a.userName + ")"
}
