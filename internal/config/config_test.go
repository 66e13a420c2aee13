package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8697", cfg.BaseURL)
	assert.NotEmpty(t, cfg.VMRestPath)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 5*time.Second, cfg.StartupTimeout)
	assert.Equal(t, 3*time.Second, cfg.ShutdownSettle)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vmworkstation.yaml")
	data := `vmware:
  base_url: http://127.0.0.1:9999
  username: admin
  password: hunter2
  vmrest_exe: /opt/vmware/vmrest
  startup_timeout: 6s
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9999", cfg.BaseURL)
	assert.Equal(t, "admin", cfg.Username)
	assert.Equal(t, "hunter2", cfg.Password)
	assert.Equal(t, "/opt/vmware/vmrest", cfg.VMRestPath)
	assert.Equal(t, 6*time.Second, cfg.StartupTimeout)
	assert.Equal(t, 3*time.Second, cfg.ShutdownSettle)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vmworkstation.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vmware:\n  base_url: http://file:1\n  username: fileuser\n"), 0o600))

	t.Setenv("VMREST_BASE_URL", "http://env:2")
	t.Setenv("VMREST_USERNAME", "envuser")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://env:2", cfg.BaseURL)
	assert.Equal(t, "envuser", cfg.Username)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vmworkstation.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vmware: [not a mapping"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vmworkstation.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vmware:\n  probe_timeout: soon\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vmworkstation.yaml")
	in := Default()
	in.BaseURL = "http://127.0.0.1:8080"
	in.Username = "op"
	in.Password = "pw"
	in.VMRestPath = "/usr/local/bin/vmrest"
	in.StartupTimeout = 4 * time.Second
	require.NoError(t, in.Save(path))

	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, in.BaseURL, out.BaseURL)
	assert.Equal(t, in.Username, out.Username)
	assert.Equal(t, in.VMRestPath, out.VMRestPath)
	assert.Equal(t, 4*time.Second, out.StartupTimeout)
}
