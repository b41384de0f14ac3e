package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jimzhouzzy/klotski-server/internal/client/client"
	"github.com/jimzhouzzy/klotski-server/internal/client/models"
	"github.com/jimzhouzzy/klotski-server/internal/common"
)

// now is a test seam for the upload timestamp.
var now = time.Now

// dateLayout matches what the game client writes.
const dateLayout = "2006-01-02T15:04:05"

// List prints the user's saves, newest first, followed by the autosave.
func (a *App) List(ctx context.Context) error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Log in first.")
		return client.ErrNotLoggedIn
	}

	list, err := a.api.Saves(ctx, a.userName)
	if errors.Is(err, common.ErrorNotFound) {
		fmt.Fprintln(a.out, "No saves yet.")
		return nil
	}
	if err != nil {
		fmt.Fprintln(a.out, "Listing saves failed:", err)
		return err
	}

	for i, s := range list.Saves {
		fmt.Fprintf(a.out, "%d. %s\n", i+1, s.Date)
	}
	if list.Autosave != nil {
		fmt.Fprintf(a.out, "autosave: %s\n", list.Autosave.Date)
	}
	return nil
}

// Upload reads a board from the terminal and stores it as a manual save
// stamped with the current time.
func (a *App) Upload(ctx context.Context) error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Log in first.")
		return client.ErrNotLoggedIn
	}

	data, err := getMultiline(a.reader, "Enter save data", a.out)
	if err != nil {
		return err
	}

	save := models.GameSave{
		Username: a.userName,
		Date:     now().Format(dateLayout),
		SaveData: data,
	}
	if err := a.api.Upload(ctx, save); err != nil {
		fmt.Fprintln(a.out, "Upload failed:", err)
		return err
	}

	fmt.Fprintf(a.out, "Saved %s.\n", save.Date)
	return nil
}
