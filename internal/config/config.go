package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultFile is the configuration file looked up in the working
	// directory when no --config flag is given.
	DefaultFile = "vmworkstation.yaml"

	defaultBaseURL = "http://127.0.0.1:8697"

	defaultRequestTimeout = 60 * time.Second
	defaultProbeTimeout   = 5 * time.Second
	defaultStartupTimeout = 5 * time.Second
	defaultShutdownSettle = 3 * time.Second

	windowsVMRestPath = `C:\Program Files (x86)\VMware\VMware Workstation\vmrest.exe`
	posixVMRestPath   = `/mnt/c/Program Files (x86)/VMware/VMware Workstation/vmrest.exe`
)

// Config captures everything the client and the lifecycle manager need.
// It is constructed once in main and passed down; there is no package-level
// mutable state.
type Config struct {
	BaseURL    string
	Username   string
	Password   string
	VMRestPath string

	RequestTimeout time.Duration
	ProbeTimeout   time.Duration
	StartupTimeout time.Duration
	ShutdownSettle time.Duration
}

// file mirrors the on-disk layout: a single "vmware" mapping with the same
// keys the original ini file carried.
type file struct {
	VMware struct {
		BaseURL        string `yaml:"base_url"`
		Username       string `yaml:"username"`
		Password       string `yaml:"password"`
		VMRestExe      string `yaml:"vmrest_exe"`
		RequestTimeout string `yaml:"request_timeout,omitempty"`
		ProbeTimeout   string `yaml:"probe_timeout,omitempty"`
		StartupTimeout string `yaml:"startup_timeout,omitempty"`
		ShutdownSettle string `yaml:"shutdown_settle,omitempty"`
	} `yaml:"vmware"`
}

// Default returns the built-in configuration for the current platform.
func Default() Config {
	return Config{
		BaseURL:        defaultBaseURL,
		VMRestPath:     defaultVMRestPath(),
		RequestTimeout: defaultRequestTimeout,
		ProbeTimeout:   defaultProbeTimeout,
		StartupTimeout: defaultStartupTimeout,
		ShutdownSettle: defaultShutdownSettle,
	}
}

// Load reads the configuration file at path, applying built-in defaults for
// missing keys and VMREST_* environment overrides on top. A missing file is
// not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var f file
		if err := yaml.Unmarshal(data, &f); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		if v := strings.TrimSpace(f.VMware.BaseURL); v != "" {
			cfg.BaseURL = v
		}
		if v := strings.TrimSpace(f.VMware.Username); v != "" {
			cfg.Username = v
		}
		if v := f.VMware.Password; v != "" {
			cfg.Password = v
		}
		if v := strings.TrimSpace(f.VMware.VMRestExe); v != "" {
			cfg.VMRestPath = expandPath(v)
		}
		if err := applyDuration(&cfg.RequestTimeout, f.VMware.RequestTimeout); err != nil {
			return Config{}, fmt.Errorf("config: request_timeout: %w", err)
		}
		if err := applyDuration(&cfg.ProbeTimeout, f.VMware.ProbeTimeout); err != nil {
			return Config{}, fmt.Errorf("config: probe_timeout: %w", err)
		}
		if err := applyDuration(&cfg.StartupTimeout, f.VMware.StartupTimeout); err != nil {
			return Config{}, fmt.Errorf("config: startup_timeout: %w", err)
		}
		if err := applyDuration(&cfg.ShutdownSettle, f.VMware.ShutdownSettle); err != nil {
			return Config{}, fmt.Errorf("config: shutdown_settle: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// fall through to defaults
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg.BaseURL = getenv("VMREST_BASE_URL", cfg.BaseURL)
	cfg.Username = getenv("VMREST_USERNAME", cfg.Username)
	cfg.Password = getenv("VMREST_PASSWORD", cfg.Password)
	cfg.VMRestPath = expandPath(getenv("VMREST_EXE", cfg.VMRestPath))

	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return Config{}, fmt.Errorf("config: invalid base url %q: %w", cfg.BaseURL, err)
	}
	return cfg, nil
}

// Save writes cfg to path in the same layout Load expects.
func (c Config) Save(path string) error {
	var f file
	f.VMware.BaseURL = c.BaseURL
	f.VMware.Username = c.Username
	f.VMware.Password = c.Password
	f.VMware.VMRestExe = c.VMRestPath
	if c.RequestTimeout != defaultRequestTimeout {
		f.VMware.RequestTimeout = c.RequestTimeout.String()
	}
	if c.ProbeTimeout != defaultProbeTimeout {
		f.VMware.ProbeTimeout = c.ProbeTimeout.String()
	}
	if c.StartupTimeout != defaultStartupTimeout {
		f.VMware.StartupTimeout = c.StartupTimeout.String()
	}
	if c.ShutdownSettle != defaultShutdownSettle {
		f.VMware.ShutdownSettle = c.ShutdownSettle.String()
	}

	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func defaultVMRestPath() string {
	if runtime.GOOS == "windows" {
		return windowsVMRestPath
	}
	return posixVMRestPath
}

func applyDuration(dst *time.Duration, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %s", d)
	}
	*dst = d
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func expandPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
