package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/umsd/pkg/config"
	"github.com/marmos91/umsd/pkg/server"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := GetRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionShort(t *testing.T) {
	Version = "9.9.9"
	t.Cleanup(func() { Version = "dev" })

	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "9.9.9", strings.TrimSpace(out))
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	_, err = os.Stat(path)
	require.NoError(t, err)

	out, err = execute(t, "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Validation: OK")
	assert.Contains(t, out, "memory-backed")
}

func TestStartPrintsBannerBeforeBootstrap(t *testing.T) {
	Version, Date = "1.2.0", "Oct 19 2026"
	t.Cleanup(func() { Version, Date = "dev", "unknown" })

	cfg := config.GetDefaultConfig()
	cfg.Service.SocketPath = filepath.Join(t.TempDir(), "umsd.sock")
	cfg.Storage.Units = []config.UnitConfig{{
		Type:       config.BackendFile,
		SectorSize: 512,
		File:       &config.FileUnitConfig{Path: filepath.Join(t.TempDir(), "absent.img")},
	}}
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.SaveConfig(cfg, path))

	out, err := execute(t, "start", "--config", path)
	require.Error(t, err)

	var be *server.BootstrapError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, server.StageStorage, be.Stage)
	assert.Contains(t, out, "$IOSVersion: USBS: Oct 19 2026 1.2.0 $")
}
