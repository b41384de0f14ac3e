package rest

import (
	"path/filepath"
	"testing"

	"github.com/jimzhouzzy/klotski-server/internal/server/config"
	"github.com/jimzhouzzy/klotski-server/internal/workerpool"
)

func testConfig(dir string) *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.CredentialsFile = filepath.Join(dir, "userDatabase.json")
	cfg.SaveRoot = filepath.Join(dir, "gameSaves")
	return cfg
}

func newPool(t *testing.T) *workerpool.Pool {
	t.Helper()
	p := workerpool.New(2)
	t.Cleanup(p.Close)
	return p
}
