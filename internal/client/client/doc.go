// Package client talks to the game server's HTTP API.
//
// # Overview
//
// The Client interface is what the CLI depends on; HTTPClient implements it
// over the plain-text auth endpoints and the JSON save endpoints. After a
// successful Login the session token is kept and can be replayed with
// LoginWithToken.
//
// # Error Handling
//
// Server answers are mapped to sentinel errors matched with errors.Is:
// ErrUnavailable for transport failures, ErrUnauthorized for rejected
// credentials, and the common package errors (ErrorInvalidInput,
// ErrorAlreadyExists, ErrorNotFound) for the remaining failure answers.
package client
