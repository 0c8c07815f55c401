package repo

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/odvcencio/strata/pkg/refs"
)

// FormatVersion is the repository layout version this package writes.
const FormatVersion = 1

// Storage backends selectable in config.
const (
	BackendFS     = "fs"
	BackendSQLite = "sqlite"
)

const defaultRefRetries = 3

// Config stores repository-local settings, persisted as .strata/config.toml.
type Config struct {
	Core    CoreConfig    `toml:"core"`
	Objects ObjectsConfig `toml:"objects"`
	Commit  CommitConfig  `toml:"commit"`
	User    UserConfig    `toml:"user"`
}

type CoreConfig struct {
	FormatVersion int    `toml:"format_version"`
	DefaultBranch string `toml:"default_branch"`
	Backend       string `toml:"backend"`
}

type ObjectsConfig struct {
	Compression      bool `toml:"compression"`
	CompressionLevel int  `toml:"compression_level"`
}

// CommitConfig controls the commit pipeline. RefRetries is the number of
// times a commit is rebuilt after losing a ref compare-and-swap race.
type CommitConfig struct {
	RefRetries int `toml:"ref_retries"`
}

type UserConfig struct {
	Name string `toml:"name"`
}

// DefaultConfig returns the settings a fresh repository starts with.
func DefaultConfig() *Config {
	return &Config{
		Core: CoreConfig{
			FormatVersion: FormatVersion,
			DefaultBranch: "main",
			Backend:       BackendFS,
		},
		Objects: ObjectsConfig{CompressionLevel: 2},
		Commit:  CommitConfig{RefRetries: defaultRefRetries},
	}
}

// Validate rejects settings this version cannot honor.
func (c *Config) Validate() error {
	if c.Core.FormatVersion > FormatVersion {
		return fmt.Errorf("config: format_version %d is newer than supported %d", c.Core.FormatVersion, FormatVersion)
	}
	switch c.Core.Backend {
	case BackendFS, BackendSQLite:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Core.Backend)
	}
	if err := refs.BranchName(c.Core.DefaultBranch).Validate(); err != nil {
		return fmt.Errorf("config: default_branch: %w", err)
	}
	if c.Commit.RefRetries < 0 {
		return fmt.Errorf("config: ref_retries must not be negative")
	}
	return nil
}

// DefaultBranchRef returns the full ref name of the default branch.
func (c *Config) DefaultBranchRef() refs.Name {
	return refs.BranchName(c.Core.DefaultBranch)
}

// LoadConfig reads a TOML config file. Missing files and missing keys fall
// back to DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("read config: unknown keys: %s", strings.Join(keys, ", "))
	}
	if strings.TrimSpace(cfg.Core.DefaultBranch) == "" {
		cfg.Core.DefaultBranch = "main"
	}
	if cfg.Core.Backend == "" {
		cfg.Core.Backend = BackendFS
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save atomically writes cfg as TOML to path.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}
