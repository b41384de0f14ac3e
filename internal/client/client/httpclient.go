package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jimzhouzzy/klotski-server/internal/client/models"
	"github.com/jimzhouzzy/klotski-server/internal/common"
)

const successPrefix = "success:"

type HTTPClient struct {
	baseURL string
	http    *http.Client
	token   string
}

// NewHTTPClient returns a client for the server at baseURL, e.g.
// "http://127.0.0.1:8001".
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Token is the session token of the last successful login, if any.
func (c *HTTPClient) Token() string {
	return c.token
}

func (c *HTTPClient) Signup(ctx context.Context, username, password string) error {
	body, err := c.postForm(ctx, "/signup", url.Values{"username": {username}, "password": {password}})
	if err != nil {
		return err
	}

	switch body {
	case "success":
		return nil
	case "failure: user already exists":
		return common.ErrorAlreadyExists
	default:
		return mapFailure(body)
	}
}

func (c *HTTPClient) Login(ctx context.Context, username, password string) (string, error) {
	body, err := c.postForm(ctx, "/login", url.Values{"username": {username}, "password": {password}})
	if err != nil {
		return "", err
	}

	token, ok := strings.CutPrefix(body, successPrefix)
	if !ok || token == "" {
		return "", mapFailure(body)
	}

	c.token = token
	return token, nil
}

func (c *HTTPClient) LoginWithToken(ctx context.Context, username, token string) error {
	body, err := c.postForm(ctx, "/login", url.Values{"username": {username}, "token": {token}})
	if err != nil {
		return err
	}

	if !strings.HasPrefix(body, successPrefix) {
		return mapFailure(body)
	}

	c.token = token
	return nil
}

func (c *HTTPClient) Upload(ctx context.Context, save models.GameSave) error {
	data, err := json.Marshal(save)
	if err != nil {
		return err
	}

	code, body, err := c.do(ctx, http.MethodPost, "/gameSave/uploadSave", "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}

	var st models.Status
	_ = json.Unmarshal(body, &st)

	switch code {
	case http.StatusOK:
		return nil
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", common.ErrorInvalidInput, st.Message)
	default:
		return fmt.Errorf("%w: upload failed with status %d: %s", common.ErrorInternal, code, st.Message)
	}
}

func (c *HTTPClient) Saves(ctx context.Context, username string) (*models.SaveList, error) {
	path := "/gameSave/getSaves?" + url.Values{"username": {username}}.Encode()

	code, body, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}

	switch code {
	case http.StatusOK:
		var list models.SaveList
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("%w: decode saves: %v", common.ErrorInternal, err)
		}
		return &list, nil
	case http.StatusNotFound:
		return nil, common.ErrorNotFound
	default:
		return nil, fmt.Errorf("%w: getSaves returned status %d", common.ErrorInternal, code)
	}
}

func (c *HTTPClient) postForm(ctx context.Context, path string, form url.Values) (string, error) {
	code, body, err := c.do(ctx, http.MethodPost, path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	if code != http.StatusOK {
		return "", fmt.Errorf("%w: %s returned status %d", common.ErrorInternal, path, code)
	}
	return string(body), nil
}

func (c *HTTPClient) do(ctx context.Context, method, path, contentType string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, mapTransportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, mapTransportError(err)
	}
	return resp.StatusCode, data, nil
}

// mapFailure turns a plain-text failure answer into a sentinel error.
func mapFailure(body string) error {
	switch body {
	case "failure":
		return ErrUnauthorized
	case "failure: invalid input":
		return common.ErrorInvalidInput
	case "failure: user already exists":
		return common.ErrorAlreadyExists
	default:
		return fmt.Errorf("%w: %s", common.ErrorInternal, body)
	}
}

func mapTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
