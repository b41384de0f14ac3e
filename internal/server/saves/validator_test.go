package saves

import (
	"context"
	"strings"
	"testing"

	"github.com/jimzhouzzy/klotski-server/internal/common"
	"github.com/stretchr/testify/assert"
)

func TestStrictValidator(t *testing.T) {
	v := StrictValidator{MaxSize: 16}

	tests := []struct {
		name string
		save GameSave
		ok   bool
	}{
		{"ok date only", GameSave{Username: "alice", Date: "2025-01-01", SaveData: "x"}, true},
		{"ok local date time", GameSave{Username: "alice", Date: "2025-01-01T10:11:12.123", SaveData: "x"}, true},
		{"ok zoned", GameSave{Username: "alice", Date: "2025-01-01T10:11:12Z", SaveData: "x"}, true},
		{"bad username", GameSave{Username: "al ice", Date: "2025-01-01", SaveData: "x"}, false},
		{"bad date", GameSave{Username: "alice", Date: "yesterday", SaveData: "x"}, false},
		{"empty data", GameSave{Username: "alice", Date: "2025-01-01"}, false},
		{"too big", GameSave{Username: "alice", Date: "2025-01-01", SaveData: strings.Repeat("x", 17)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(context.Background(), &tt.save)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, common.ErrorInvalidInput)
		})
	}
}

func TestNopValidator(t *testing.T) {
	assert.NoError(t, NopValidator{}.Validate(context.Background(), &GameSave{}))
}

func TestOlderThan(t *testing.T) {
	a := &GameSave{Date: "2025-01-01T09:00:00"}
	b := &GameSave{Date: "2025-01-01T10:00:00Z"}
	assert.True(t, olderThan(a, b))
	assert.False(t, olderThan(b, a))

	// unparseable dates fall back to string order
	assert.True(t, olderThan(&GameSave{Date: "a"}, &GameSave{Date: "b"}))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "2025-01-01.json", (&GameSave{Date: "2025-01-01"}).FileName())
	assert.Equal(t, "Autosave-2025-01-01.json", (&GameSave{Date: "2025-01-01", AutoSave: true}).FileName())
}
