// Package config loads the publisher configuration from TOML or YAML.
package config

import (
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/models"
)

const (
	defaultParallel  = 2
	defaultComponent = "main"

	// Signing backends
	BackendGPG    = "gpg"
	BackendNative = "native"

	// Signature checkers
	CheckerTool   = "tool"
	CheckerNative = "native"
)

var (
	defaultAPTArchitectures = []string{"amd64", "arm64", "i386"}
	defaultYumArchitectures = []string{"aarch64", "x86_64", "Source"}
)

// RepositoryConfig describes the published repository.
type RepositoryConfig struct {
	Name        string `toml:"name" yaml:"name"`
	Origin      string `toml:"origin" yaml:"origin"`
	Label       string `toml:"label" yaml:"label"`
	Description string `toml:"description" yaml:"description"`
	URL         string `toml:"url" yaml:"url"`
}

// SigningConfig selects the key and the signing implementation.
type SigningConfig struct {
	KeyID         string   `toml:"key_id" yaml:"key_id"`
	TrustedKeyIDs []string `toml:"trusted_key_ids" yaml:"trusted_key_ids"`

	// Backend signs Release and repomd.xml: "gpg" or "native".
	Backend string `toml:"backend" yaml:"backend"`
	// KeyFile is an armored private key for the native backend.
	KeyFile string `toml:"key_file" yaml:"key_file"`
	// PassphraseEnv names the environment variable holding the key passphrase.
	PassphraseEnv string `toml:"passphrase_env" yaml:"passphrase_env"`
	// PublicKeyFile is an armored keyring used by native checks and verification.
	PublicKeyFile string `toml:"public_key_file" yaml:"public_key_file"`

	// Checker decides whether artifacts are signed: "tool" or "native".
	Checker string `toml:"checker" yaml:"checker"`
}

// Identity returns the signing identity.
func (s *SigningConfig) Identity() models.SigningIdentity {
	return models.SigningIdentity{KeyID: s.KeyID, TrustedKeyIDs: s.TrustedKeyIDs}
}

// Passphrase reads the key passphrase from the configured variable.
func (s *SigningConfig) Passphrase() []byte {
	if s.PassphraseEnv == "" {
		return nil
	}
	return []byte(os.Getenv(s.PassphraseEnv))
}

// APTTarget is one distribution/codename/component triple.
type APTTarget struct {
	Distribution string `toml:"distribution" yaml:"distribution"`
	Codename     string `toml:"codename" yaml:"codename"`
	Component    string `toml:"component" yaml:"component"`
}

// APTConfig lists the APT targets.
type APTConfig struct {
	Architectures []string    `toml:"architectures" yaml:"architectures"`
	Targets       []APTTarget `toml:"targets" yaml:"targets"`
}

// YumTarget is one distribution/version pair.
type YumTarget struct {
	Distribution  string   `toml:"distribution" yaml:"distribution"`
	Version       string   `toml:"version" yaml:"version"`
	Architectures []string `toml:"architectures" yaml:"architectures"`
}

// YumConfig lists the Yum targets.
type YumConfig struct {
	Architectures []string    `toml:"architectures" yaml:"architectures"`
	Targets       []YumTarget `toml:"targets" yaml:"targets"`
}

// MergeConfig optionally replaces the built-in dists merge.
type MergeConfig struct {
	// Command is run as "<command> <base> <new> <merged>".
	Command string `toml:"command" yaml:"command"`
}

// LogConfig represents logging options
type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
	File   string `toml:"file" yaml:"file"`
}

// Config is the top-level configuration.
type Config struct {
	WorkDir  string `toml:"work_dir" yaml:"work_dir"`
	Remote   string `toml:"remote" yaml:"remote"`
	Parallel int    `toml:"parallel" yaml:"parallel"`
	Workers  int    `toml:"workers" yaml:"workers"`

	Repository RepositoryConfig `toml:"repository" yaml:"repository"`
	Signing    SigningConfig    `toml:"signing" yaml:"signing"`
	APT        APTConfig        `toml:"apt" yaml:"apt"`
	Yum        YumConfig        `toml:"yum" yaml:"yum"`
	Merge      MergeConfig      `toml:"merge" yaml:"merge"`
	Log        LogConfig        `toml:"log" yaml:"log"`
}

// New creates Config with default values.
func New() *Config {
	return &Config{
		Parallel: defaultParallel,
		Workers:  runtime.NumCPU(),
		Signing: SigningConfig{
			Backend: BackendGPG,
			Checker: CheckerTool,
		},
		APT: APTConfig{Architectures: defaultAPTArchitectures},
		Yum: YumConfig{Architectures: defaultYumArchitectures},
	}
}

// Load reads path into a Config with defaults applied. Files ending in
// .yaml or .yml are decoded as YAML, everything else as TOML.
func Load(path string) (*Config, error) {
	cfg := New()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read config %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to parse config %s", path)
		}
	default:
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse config %s", path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.Newf("unknown config keys in %s: %v", path, undecoded)
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Repository.Origin == "" {
		c.Repository.Origin = c.Repository.Label
	}
	for i := range c.APT.Targets {
		if c.APT.Targets[i].Component == "" {
			c.APT.Targets[i].Component = defaultComponent
		}
	}
	if c.Signing.Backend == "" {
		c.Signing.Backend = BackendGPG
	}
	if c.Signing.Checker == "" {
		c.Signing.Checker = CheckerTool
	}
}

// Check validates the configuration.
func (c *Config) Check() error {
	if c.WorkDir == "" {
		return errors.New("work_dir is not set")
	}
	if !path.IsAbs(c.WorkDir) {
		return errors.New("work_dir must be an absolute path")
	}
	if c.Remote == "" {
		return errors.New("remote is not set")
	}
	if c.Parallel < 1 {
		return errors.New("parallel must be at least 1")
	}
	if c.Signing.KeyID == "" {
		return errors.New("signing.key_id is not set")
	}

	switch c.Signing.Backend {
	case BackendGPG:
	case BackendNative:
		if c.Signing.KeyFile == "" {
			return errors.New("signing.key_file is required by the native backend")
		}
	default:
		return errors.Newf("unsupported signing backend: %s", c.Signing.Backend)
	}

	switch c.Signing.Checker {
	case CheckerTool:
	case CheckerNative:
		if c.Signing.PublicKeyFile == "" {
			return errors.New("signing.public_key_file is required by the native checker")
		}
	default:
		return errors.Newf("unsupported signature checker: %s", c.Signing.Checker)
	}

	targets := c.Targets()
	if len(targets) == 0 {
		return errors.New("no targets")
	}

	for _, t := range targets {
		if t.Distribution == "" || t.Codename == "" {
			return errors.Newf("target %s: distribution and codename/version are required", t.ID())
		}
		if len(t.Architectures) == 0 {
			return errors.Newf("target %s: no architectures", t.ID())
		}
		if t.Family == models.FamilyAPT && lo.Contains(t.Architectures, "source") {
			return errors.Newf("target %s: \"source\" is implied and must not be listed", t.ID())
		}
		for _, arch := range t.Architectures {
			if arch == "" || strings.ContainsAny(arch, "/ ") {
				return errors.Newf("target %s: invalid architecture %q", t.ID(), arch)
			}
		}
	}

	ids := lo.Map(targets, func(t models.Target, _ int) string { return t.ID() })
	if dup := lo.FindDuplicates(ids); len(dup) > 0 {
		return errors.Newf("duplicate targets: %s", strings.Join(dup, ", "))
	}

	return nil
}

// Targets expands the configuration into publishable targets, APT first.
func (c *Config) Targets() []models.Target {
	var targets []models.Target
	for _, t := range c.APT.Targets {
		targets = append(targets, models.Target{
			Family:        models.FamilyAPT,
			Distribution:  t.Distribution,
			Codename:      t.Codename,
			Component:     t.Component,
			Architectures: c.APT.Architectures,
		})
	}
	for _, t := range c.Yum.Targets {
		archs := t.Architectures
		if len(archs) == 0 {
			archs = c.Yum.Architectures
		}
		targets = append(targets, models.Target{
			Family:        models.FamilyYum,
			Distribution:  t.Distribution,
			Codename:      t.Version,
			Architectures: archs,
		})
	}
	return targets
}

// SelectTargets returns the targets whose ID, family or distribution is
// named in filters. No filters selects everything.
func (c *Config) SelectTargets(filters []string) ([]models.Target, error) {
	targets := c.Targets()
	if len(filters) == 0 {
		return targets, nil
	}

	selected := lo.Filter(targets, func(t models.Target, _ int) bool {
		return lo.Contains(filters, t.ID()) ||
			lo.Contains(filters, string(t.Family)) ||
			lo.Contains(filters, t.Distribution)
	})
	if len(selected) == 0 {
		return nil, errors.Newf("no target matches %s", strings.Join(filters, ", "))
	}
	return selected, nil
}
