package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"lwdecomp/internal/filter"
	"lwdecomp/internal/install"
	"lwdecomp/internal/runstore"
)

const (
	DefaultFileName          = "lwdecomp.yml"
	DefaultModuleExtension   = ".dll"
	DefaultManifestExtension = ".csproj"
	DefaultClientDir         = "Logic_World_Data/Managed"
	DefaultServerDir         = "Server"
	DefaultServerLabel       = "server"
	DefaultClientLabel       = "client"
	DefaultCacheFile         = ".lwdecomp-gamepath"
	DefaultEngineCommand     = "ilspycmd"
	DefaultWorkers           = 1
)

// DefaultSkipPrefixes are the framework and engine assemblies nobody wants
// decompiled.
var DefaultSkipPrefixes = []string{
	"Microsoft.",
	"System.",
	"UnityEngine.",
	"Unity.",
	"mscorlib.",
	"netstandard.",
	"WindowsBase.",
	"Newtonsoft.Json.Unity.",
}

var DefaultEngineArgs = []string{"-o", "{output}", "{module}"}

type Config struct {
	ModuleExtension   string   `yaml:"module_extension"`
	ManifestExtension string   `yaml:"manifest_extension"`
	SkipPrefixes      []string `yaml:"skip_prefixes"`
	Layout            Layout   `yaml:"layout"`
	Output            Output   `yaml:"output"`
	CacheFile         string   `yaml:"cache_file"`
	Engine            Engine   `yaml:"engine"`
	Workers           int      `yaml:"workers"`
	MaxPromptAttempts int      `yaml:"max_prompt_attempts"`
	AuditDB           string   `yaml:"audit_db"`
}

// Layout names the required subfolders relative to the install root.
type Layout struct {
	ClientDir string `yaml:"client_dir"`
	ServerDir string `yaml:"server_dir"`
}

// Output names the per-batch subfolders under the output root.
type Output struct {
	Server string `yaml:"server"`
	Client string `yaml:"client"`
}

type Engine struct {
	Command          string        `yaml:"command"`
	Args             []string      `yaml:"args"`
	ManifestTemplate string        `yaml:"manifest_template"`
	JobTimeout       time.Duration `yaml:"job_timeout"`
}

func Default() Config {
	return Config{
		ModuleExtension:   DefaultModuleExtension,
		ManifestExtension: DefaultManifestExtension,
		SkipPrefixes:      append([]string(nil), DefaultSkipPrefixes...),
		Layout: Layout{
			ClientDir: DefaultClientDir,
			ServerDir: DefaultServerDir,
		},
		Output: Output{
			Server: DefaultServerLabel,
			Client: DefaultClientLabel,
		},
		CacheFile: DefaultCacheFile,
		Engine: Engine{
			Command: DefaultEngineCommand,
			Args:    append([]string(nil), DefaultEngineArgs...),
		},
		Workers: DefaultWorkers,
	}
}

// Load reads path and fills gaps with defaults. A missing file yields
// the defaults.
func Load(path string) (Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var raw Config
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg := Normalize(raw)
	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as YAML, replacing path atomically.
func Save(path string, cfg Config) error {
	cfg = Normalize(cfg)
	if err := Validate(cfg); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := runstore.WriteBytes(path, data); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks the values Normalize cannot repair.
func Validate(cfg Config) error {
	if err := runstore.CheckFolderName(cfg.Output.Server); err != nil {
		return fmt.Errorf("output.server: %w", err)
	}
	if err := runstore.CheckFolderName(cfg.Output.Client); err != nil {
		return fmt.Errorf("output.client: %w", err)
	}
	if strings.EqualFold(cfg.Output.Server, cfg.Output.Client) {
		return fmt.Errorf("output.server and output.client must differ, both are %q", cfg.Output.Server)
	}
	return nil
}

func Normalize(raw Config) Config {
	def := Default()
	norm := raw
	norm.ModuleExtension = normalizeExtension(raw.ModuleExtension, def.ModuleExtension)
	norm.ManifestExtension = normalizeExtension(raw.ManifestExtension, def.ManifestExtension)
	if raw.SkipPrefixes == nil {
		norm.SkipPrefixes = def.SkipPrefixes
	} else {
		// An explicit empty list disables skipping; keep it non-nil so a
		// second Normalize does not restore the defaults.
		norm.SkipPrefixes = append([]string{}, filter.New(raw.SkipPrefixes...).Prefixes()...)
	}
	norm.Layout.ClientDir = firstNonEmpty(raw.Layout.ClientDir, def.Layout.ClientDir)
	norm.Layout.ServerDir = firstNonEmpty(raw.Layout.ServerDir, def.Layout.ServerDir)
	norm.Output.Server = firstNonEmpty(raw.Output.Server, def.Output.Server)
	norm.Output.Client = firstNonEmpty(raw.Output.Client, def.Output.Client)
	norm.CacheFile = firstNonEmpty(raw.CacheFile, def.CacheFile)
	norm.Engine.Command = firstNonEmpty(raw.Engine.Command, def.Engine.Command)
	if len(raw.Engine.Args) == 0 {
		norm.Engine.Args = def.Engine.Args
	}
	if raw.Engine.JobTimeout < 0 {
		norm.Engine.JobTimeout = 0
	}
	if raw.Workers <= 0 {
		norm.Workers = def.Workers
	}
	if raw.MaxPromptAttempts < 0 {
		norm.MaxPromptAttempts = 0
	}
	norm.AuditDB = strings.TrimSpace(raw.AuditDB)
	return norm
}

// DefaultPath is lwdecomp.yml next to the running executable, the same
// directory the install path cache uses. It falls back to the working
// directory.
func DefaultPath() string {
	dir, err := install.ExecutableDir()
	if err != nil {
		return DefaultFileName
	}
	return filepath.Join(dir, DefaultFileName)
}

func normalizeExtension(raw, fallback string) string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return fallback
	}
	if !strings.HasPrefix(v, ".") {
		v = "." + v
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
