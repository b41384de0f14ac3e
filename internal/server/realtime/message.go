package realtime

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jimzhouzzy/klotski-server/internal/common"
)

// Message types.
const (
	TypeLogin      = "login"
	TypePresence   = "presence"
	TypeBoardState = "boardState"
)

// BoardRows is the number of rows in a board state update.
const BoardRows = 5

const (
	loginPrefix    = "login:"
	presenceMarker = "GetOnlineUsers"
	boardMarker    = "boardState:"
)

// Message is a decoded inbound frame. Type is empty for frames the server
// does not understand. For board updates Lines holds exactly BoardRows rows.
type Message struct {
	Type     string
	Username string
	Secret   string
	Lines    []string
}

type jsonMessage struct {
	Type     string   `json:"type"`
	Username string   `json:"username"`
	Secret   string   `json:"secret"`
	Password string   `json:"password"`
	Token    string   `json:"token"`
	Lines    []string `json:"lines"`
}

// Decode parses a text frame. JSON objects use the "type" field; anything
// else is read as the line protocol:
//
//	login:<username>[:<password or token>]
//	...GetOnlineUsers...
//	<first line>\n...\n<row1>\n...\n<row5>   (containing "boardState:")
//
// A frame carrying both "boardState:" and "GetOnlineUsers" decodes as a board
// update only.
//
// On a malformed frame Decode returns the Message with Type set and an error
// wrapping common.ErrorMalformedMessage.
func Decode(frame string) (Message, error) {
	if strings.HasPrefix(strings.TrimSpace(frame), "{") {
		return decodeJSON(frame)
	}
	return decodeText(frame)
}

func decodeText(frame string) (Message, error) {
	switch {
	case strings.HasPrefix(frame, loginPrefix):
		user, secret, _ := strings.Cut(strings.TrimRight(frame[len(loginPrefix):], "\r\n"), ":")
		return loginMessage(user, secret)

	case strings.Contains(frame, boardMarker):
		lines := splitLines(frame)
		if len(lines) < BoardRows {
			return Message{Type: TypeBoardState}, fmt.Errorf("%w: board state has %d lines", common.ErrorMalformedMessage, len(lines))
		}
		return Message{Type: TypeBoardState, Lines: lines[len(lines)-BoardRows:]}, nil

	case strings.Contains(frame, presenceMarker):
		return Message{Type: TypePresence}, nil
	}

	return Message{}, nil
}

func decodeJSON(frame string) (Message, error) {
	var in jsonMessage
	if err := json.Unmarshal([]byte(frame), &in); err != nil {
		return Message{}, fmt.Errorf("%w: %v", common.ErrorMalformedMessage, err)
	}

	switch in.Type {
	case TypeLogin:
		secret := in.Secret
		if secret == "" {
			secret = in.Password
		}
		if secret == "" {
			secret = in.Token
		}
		return loginMessage(in.Username, secret)

	case TypePresence:
		return Message{Type: TypePresence}, nil

	case TypeBoardState:
		if len(in.Lines) < BoardRows {
			return Message{Type: TypeBoardState}, fmt.Errorf("%w: board state has %d rows", common.ErrorMalformedMessage, len(in.Lines))
		}
		return Message{Type: TypeBoardState, Lines: in.Lines[len(in.Lines)-BoardRows:]}, nil
	}

	return Message{}, nil
}

func loginMessage(username, secret string) (Message, error) {
	m := Message{Type: TypeLogin, Username: username, Secret: secret}
	if username == "" {
		return m, fmt.Errorf("%w: login without username", common.ErrorMalformedMessage)
	}
	return m, nil
}

// splitLines splits on '\n', dropping '\r' line endings and trailing empty
// lines.
func splitLines(s string) []string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// FormatBoardUpdate renders the broadcast text for a board update.
func FormatBoardUpdate(sender string, rows []string) string {
	var b strings.Builder
	b.WriteString("Board state updated:\n")
	b.WriteString(sender)
	b.WriteByte('\n')
	for _, row := range rows {
		b.WriteString(row)
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatPresence renders the reply to a presence query.
func FormatPresence(identities []string) string {
	return "Online users: " + strings.Join(identities, ", ")
}
