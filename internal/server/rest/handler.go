package rest

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/jimzhouzzy/klotski-server/internal/common"
	"github.com/jimzhouzzy/klotski-server/internal/server/saves"
)

// Plain-text auth responses.
const (
	respSuccess      = "success"
	respFailure      = "failure"
	respInvalidInput = "failure: invalid input"
	respUserExists   = "failure: user already exists"
	respInternal     = "failure: internal error"
)

// maxFormSize bounds login and signup bodies.
const maxFormSize = 64 << 10

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Token    string `json:"token"`
}

type statusResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type savesResponse struct {
	Code     int              `json:"code"`
	Saves    []saves.GameSave `json:"saves"`
	Autosave *saves.GameSave  `json:"autosave,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	c, err := readCredentials(r)
	if err != nil {
		s.logger.Debug(ctx, "bad login body", "error", err)
		s.metrics.AuthAttempt("login", "invalid")
		writeText(w, respInvalidInput)
		return
	}

	if c.Token != "" && c.Password == "" {
		s.tokenLogin(w, r, c)
		return
	}

	session, err := s.users.Login(ctx, c.Username, c.Password)
	switch {
	case err == nil:
		s.metrics.AuthAttempt("login", "success")
		writeText(w, respSuccess+":"+session.Token)
	case errors.Is(err, common.ErrorInvalidInput):
		s.metrics.AuthAttempt("login", "invalid")
		writeText(w, respInvalidInput)
	case errors.Is(err, common.ErrorUnauthorized):
		s.metrics.AuthAttempt("login", "failure")
		s.logger.Info(ctx, "login failed", "username", c.Username)
		writeText(w, respFailure)
	default:
		s.metrics.AuthAttempt("login", "error")
		s.logger.Error(ctx, "login error", "username", c.Username, "error", err)
		writeText(w, respInternal)
	}
}

// tokenLogin answers a login carrying a token instead of a password. A
// username, if given, must match the token's owner.
func (s *Server) tokenLogin(w http.ResponseWriter, r *http.Request, c credentials) {
	ctx := r.Context()

	username, err := s.users.LoginWithToken(ctx, c.Token)
	if err != nil || (c.Username != "" && c.Username != username) {
		s.metrics.AuthAttempt("token_login", "failure")
		s.logger.Info(ctx, "token login failed", "username", c.Username)
		writeText(w, respFailure)
		return
	}

	s.metrics.AuthAttempt("token_login", "success")
	s.logger.Info(ctx, "token login", "username", username)
	writeText(w, respSuccess+":"+c.Token)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	c, err := readCredentials(r)
	if err != nil {
		s.metrics.AuthAttempt("signup", "invalid")
		writeText(w, respInvalidInput)
		return
	}

	err = s.users.Signup(ctx, c.Username, c.Password)
	switch {
	case err == nil:
		s.metrics.AuthAttempt("signup", "success")
		writeText(w, respSuccess)
	case errors.Is(err, common.ErrorInvalidInput):
		s.metrics.AuthAttempt("signup", "invalid")
		writeText(w, respInvalidInput)
	case errors.Is(err, common.ErrorAlreadyExists):
		s.metrics.AuthAttempt("signup", "exists")
		writeText(w, respUserExists)
	default:
		s.metrics.AuthAttempt("signup", "error")
		s.logger.Error(ctx, "signup error", "username", c.Username, "error", err)
		writeText(w, respInternal)
	}
}

func (s *Server) handleUploadSave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := int64(maxFormSize)
	if s.maxSaveSize > 0 {
		limit += 2 * s.maxSaveSize
	}

	var save saves.GameSave
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(&save); err != nil {
		s.logger.Debug(ctx, "bad upload body", "error", err)
		writeJSON(w, http.StatusBadRequest, statusResponse{Code: http.StatusBadRequest, Message: "Invalid save data"})
		return
	}

	err := s.saves.Upload(ctx, &save)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, statusResponse{Code: http.StatusOK, Message: "Save uploaded successfully"})
	case errors.Is(err, common.ErrorInvalidInput):
		writeJSON(w, http.StatusBadRequest, statusResponse{Code: http.StatusBadRequest, Message: "Invalid save data"})
	default:
		writeJSON(w, http.StatusInternalServerError, statusResponse{Code: http.StatusInternalServerError, Message: "Failed to store save"})
	}
}

func (s *Server) handleGetSaves(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := r.URL.Query().Get("username")

	list, listErr := s.saves.List(ctx, username)
	auto, autoErr := s.saves.Autosave(ctx, username)

	if listErr != nil && autoErr != nil {
		if !errors.Is(listErr, common.ErrorNotFound) {
			s.logger.Error(ctx, "list saves failed", "username", username, "error", listErr)
		}
		writeJSON(w, http.StatusNotFound, statusResponse{Code: http.StatusNotFound, Message: "No saves found for user"})
		return
	}

	resp := savesResponse{Code: http.StatusOK, Saves: list}
	if resp.Saves == nil {
		resp.Saves = []saves.GameSave{}
	}
	if autoErr == nil {
		resp.Autosave = &auto
	}
	writeJSON(w, http.StatusOK, resp)
}

// readCredentials accepts a JSON object or a urlencoded form, whatever the
// client declared as content type.
func readCredentials(r *http.Request) (credentials, error) {
	var c credentials

	body, err := io.ReadAll(io.LimitReader(r.Body, maxFormSize+1))
	if err != nil {
		return c, err
	}
	if len(body) > maxFormSize {
		return c, errors.New("body too large")
	}

	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "application/json" {
		err := json.Unmarshal(body, &c)
		return c, err
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return c, err
	}
	c.Username = form.Get("username")
	c.Password = form.Get("password")
	c.Token = form.Get("token")
	return c, nil
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
