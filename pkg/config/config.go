// Package config loads the deploy configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jinzhu/configor"
)

// ENVPrefix is the prefix of environment variables overriding file values,
// e.g. SSH_DEPLOY_SERVER_HOST.
const ENVPrefix = "SSH_DEPLOY"

type Config struct {
	Deploy   DeployConfig   `yaml:"deploy" toml:"deploy" json:"deploy"`
	Server   ServerConfig   `yaml:"server" toml:"server" json:"server"`
	Run      RunConfig      `yaml:"run" toml:"run" json:"run"`
	CopyBack CopyBackConfig `yaml:"copy_back" toml:"copy_back" json:"copy_back"`

	path string
}

type DeployConfig struct {
	DestDir      string `yaml:"dest_dir" toml:"dest_dir" json:"dest_dir"`
	SrcDir       string `yaml:"src_dir" toml:"src_dir" json:"src_dir"`
	Exclude      string `yaml:"exclude" toml:"exclude" json:"exclude"`
	ExcludePaths string `yaml:"exclude_paths" toml:"exclude_paths" json:"exclude_paths"`
}

type ServerConfig struct {
	Host       string `yaml:"host" toml:"host" json:"host"`
	Username   string `yaml:"username" toml:"username" json:"username"`
	Port       int    `yaml:"port" toml:"port" json:"port" default:"22"`
	KeyFile    string `yaml:"key_file" toml:"key_file" json:"key_file"`
	KnownHosts string `yaml:"known_hosts" toml:"known_hosts" json:"known_hosts"`
	Timeout    string `yaml:"timeout" toml:"timeout" json:"timeout" default:"30s"`
}

type RunConfig struct {
	Dir      string `yaml:"dir" toml:"dir" json:"dir"`
	Commands string `yaml:"commands" toml:"commands" json:"commands"`
}

type CopyBackConfig struct {
	Files        string `yaml:"files" toml:"files" json:"files"`
	DestDirLocal string `yaml:"dest_dir_local" toml:"dest_dir_local" json:"dest_dir_local"`
}

// Phases selects which optional sections must be complete.
type Phases struct {
	Run      bool
	CopyBack bool
}

// Error is returned for any configuration problem. Missing lists every
// required key that was absent.
type Error struct {
	Path    string
	Missing []string
	Invalid []string
	Err     error
}

func (e *Error) Error() string {
	var parts []string
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required keys: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid values: "+strings.Join(e.Invalid, ", "))
	}
	if e.Path == "" {
		return "config: " + strings.Join(parts, "; ")
	}
	return fmt.Sprintf("config %s: %s", e.Path, strings.Join(parts, "; "))
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Load reads path. The format follows the file extension: .toml, .yaml, .yml
// or .json.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, &Error{Err: errors.New("no config file specified")}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &Error{Path: path, Err: fmt.Errorf("could not read config file: %w", err)}
	}
	if info.IsDir() {
		return nil, &Error{Path: path, Err: errors.New("could not read config file: is a directory")}
	}

	var cfg Config
	loader := configor.New(&configor.Config{ENVPrefix: ENVPrefix, Silent: true})
	if err := loader.Load(&cfg, path); err != nil {
		return nil, &Error{Path: path, Err: fmt.Errorf("parse config file: %w", err)}
	}

	cfg.path = path
	return &cfg, nil
}

// Path is the file the configuration was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Validate checks required keys for the always-on sections and for the
// enabled phases, reporting all problems at once.
func (c *Config) Validate(phases Phases) error {
	var missing, invalid []string

	require := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}

	require("deploy.dest_dir", c.Deploy.DestDir)
	require("deploy.src_dir", c.Deploy.SrcDir)
	require("server.host", c.Server.Host)
	require("server.username", c.Server.Username)

	if phases.Run {
		require("run.dir", c.Run.Dir)
		require("run.commands", c.Run.Commands)
	}
	if phases.CopyBack {
		require("copy_back.files", c.CopyBack.Files)
		require("copy_back.dest_dir_local", c.CopyBack.DestDirLocal)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		invalid = append(invalid, fmt.Sprintf("server.port=%d", c.Server.Port))
	}
	if _, err := c.Server.DialTimeout(); err != nil {
		invalid = append(invalid, fmt.Sprintf("server.timeout=%q", c.Server.Timeout))
	}

	if len(missing) > 0 || len(invalid) > 0 {
		return &Error{Path: c.path, Missing: missing, Invalid: invalid}
	}
	return nil
}

// DialTimeout parses Timeout. An empty value means no explicit timeout.
func (s ServerConfig) DialTimeout() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative timeout %s", d)
	}
	return d, nil
}

func (d DeployConfig) SourceDirs() []string     { return SplitList(d.SrcDir) }
func (d DeployConfig) Exclusions() []string     { return SplitList(d.Exclude) }
func (d DeployConfig) PathExclusions() []string { return SplitList(d.ExcludePaths) }
func (r RunConfig) CommandList() []string       { return SplitList(r.Commands) }
func (c CopyBackConfig) FileList() []string     { return SplitList(c.Files) }

// SplitList splits a comma-separated value, trimming items and dropping
// empty ones.
func SplitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
