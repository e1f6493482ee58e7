// Package config loads minachain settings from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/minachain/pipeline"
	"github.com/jonwraymond/minachain/sandbox"
	"github.com/jonwraymond/minachain/sandbox/wasm"
)

// Environment variables that override file settings.
const (
	EnvPayloadDir = "MINACHAIN_PAYLOAD_DIR"
	EnvWorkDir    = "MINACHAIN_WORK_DIR"
	EnvLogLevel   = "MINACHAIN_LOG_LEVEL"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the top-level configuration.
type Config struct {
	Payloads  PayloadConfig   `yaml:"payloads"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
	Compile   CompileConfig   `yaml:"compile"`
	Assembler AssemblerConfig `yaml:"assembler"`
	Simulator SimulatorConfig `yaml:"simulator"`
	Logging   LoggingConfig   `yaml:"logging"`
	Server    ServerConfig    `yaml:"server"`
}

// PayloadConfig locates the tool payloads and runtime library.
type PayloadConfig struct {
	Dir           string `yaml:"dir"`
	Compiler      string `yaml:"compiler"`
	Assembler     string `yaml:"assembler"`
	Simulator     string `yaml:"simulator"`
	Analyzer      string `yaml:"analyzer"`
	RuntimeHeader string `yaml:"runtime_header"`
	RuntimeSource string `yaml:"runtime_source"`
}

// SandboxConfig configures the sandboxes and the wasm runtime.
type SandboxConfig struct {
	WorkDir     string `yaml:"work_dir"`      // parent of the sandbox stores; empty uses the OS temp dir
	MaxMemoryMB int    `yaml:"max_memory_mb"` // per-module memory limit
	EnableClock bool   `yaml:"enable_clock"`
}

// CompileConfig holds default compiler options.
type CompileConfig struct {
	Optimize       bool `yaml:"optimize"`
	IncludeRuntime bool `yaml:"include_runtime"`
	PreferLibrary  bool `yaml:"prefer_library"`
}

// AssemblerConfig holds default assembler options.
type AssemblerConfig struct {
	RawBinary bool `yaml:"raw_binary"`
}

// SimulatorConfig holds default simulator options.
type SimulatorConfig struct {
	MaxSteps    uint64 `yaml:"max_steps"`
	MemoryBytes uint64 `yaml:"memory_bytes"`
	Trace       bool   `yaml:"trace"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level   string `yaml:"level"`  // debug, info, warn, error
	Format  string `yaml:"format"` // text, json
	Journal bool   `yaml:"journal"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// ValidLogFormats lists the accepted logging formats.
var ValidLogFormats = []string{"text", "json"}

// maxMemoryMB is the wasm32 address space limit.
const maxMemoryMB = 4096

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Payloads: PayloadConfig{
			Dir:           "payloads",
			Compiler:      pipeline.DefaultPayloadName(sandbox.RoleCompiler),
			Assembler:     pipeline.DefaultPayloadName(sandbox.RoleAssembler),
			Simulator:     pipeline.DefaultPayloadName(sandbox.RoleSimulator),
			Analyzer:      pipeline.DefaultPayloadName(sandbox.RoleAnalyzer),
			RuntimeHeader: pipeline.DefaultRuntimeHeader,
			RuntimeSource: pipeline.DefaultRuntimeSource,
		},
		Sandbox: SandboxConfig{
			MaxMemoryMB: wasm.DefaultMaxMemoryBytes >> 20,
		},
		Compile: CompileConfig{
			IncludeRuntime: true,
			PreferLibrary:  true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Name:    "minachain",
			Version: "v0.1.0",
		},
	}
}

// Load reads configuration from a YAML file over the defaults and applies
// environment overrides. A missing file, or an empty path, yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv(EnvPayloadDir); dir != "" {
		c.Payloads.Dir = dir
	}
	if dir := os.Getenv(EnvWorkDir); dir != "" {
		c.Sandbox.WorkDir = dir
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Logging.Level = strings.ToLower(level)
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var problems []string
	if c.Payloads.Dir == "" {
		problems = append(problems, "payloads.dir is required")
	}
	if c.Sandbox.MaxMemoryMB <= 0 || c.Sandbox.MaxMemoryMB > maxMemoryMB {
		problems = append(problems, fmt.Sprintf("sandbox.max_memory_mb must be in 1..%d, got %d", maxMemoryMB, c.Sandbox.MaxMemoryMB))
	}
	if !slices.Contains(ValidLogLevels, c.Logging.Level) {
		problems = append(problems, fmt.Sprintf("logging.level %q is not one of %v", c.Logging.Level, ValidLogLevels))
	}
	if !slices.Contains(ValidLogFormats, c.Logging.Format) {
		problems = append(problems, fmt.Sprintf("logging.format %q is not one of %v", c.Logging.Format, ValidLogFormats))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// OpenOptions returns pipeline options for the configured payloads and
// sandboxes. Output sinks, logger and observer are left to the caller.
func (c *Config) OpenOptions() pipeline.OpenOptions {
	return pipeline.OpenOptions{
		Loader: pipeline.DirLoader(c.Payloads.Dir),
		Payloads: map[sandbox.Role]string{
			sandbox.RoleCompiler:  c.Payloads.Compiler,
			sandbox.RoleAssembler: c.Payloads.Assembler,
			sandbox.RoleSimulator: c.Payloads.Simulator,
			sandbox.RoleAnalyzer:  c.Payloads.Analyzer,
		},
		RuntimeHeader: c.Payloads.RuntimeHeader,
		RuntimeSource: c.Payloads.RuntimeSource,
		WorkDir:       c.Sandbox.WorkDir,
		WASM: wasm.Config{
			MaxMemoryBytes: int64(c.Sandbox.MaxMemoryMB) << 20,
			EnableClock:    c.Sandbox.EnableClock,
		},
	}
}

// CompileOptions returns the default compiler options.
func (c *Config) CompileOptions() pipeline.CompileOptions {
	return pipeline.CompileOptions{
		Optimize:       c.Compile.Optimize,
		IncludeRuntime: pipeline.Bool(c.Compile.IncludeRuntime),
		PreferLibrary:  pipeline.Bool(c.Compile.PreferLibrary),
	}
}

// AssembleOptions returns the default assembler options.
func (c *Config) AssembleOptions() pipeline.AssembleOptions {
	return pipeline.AssembleOptions{RawBinary: c.Assembler.RawBinary}
}

// SimOptions returns the default simulator options.
func (c *Config) SimOptions() pipeline.SimOptions {
	return pipeline.SimOptions{
		Trace:       c.Simulator.Trace,
		MaxSteps:    c.Simulator.MaxSteps,
		MemoryBytes: c.Simulator.MemoryBytes,
	}
}
