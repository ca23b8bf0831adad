package config

import (
	"os"
	"path/filepath"

	"github.com/m4xw311/pilot/errors"
	"gopkg.in/yaml.v3"
)

// FilesystemAccess declares the hard path boundary for mutating tools.
// Protected paths are glob patterns; any write resolving under one of them is
// rejected regardless of the permission decision. AllowedRoots, when
// non-empty, restricts writes to the listed directories.
type FilesystemAccess struct {
	Protected    []string `yaml:"protected"`
	AllowedRoots []string `yaml:"allowed_roots"`
}

// MCPServer describes an external MCP server to spawn and bridge tools from.
type MCPServer struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// Hook configures the external permission hook executable.
type Hook struct {
	Path string `yaml:"path"`
}

// Config is the merged runtime configuration.
type Config struct {
	Provider         string            `yaml:"provider"`
	Model            string            `yaml:"model"`
	ModelAliases     map[string]string `yaml:"model_aliases"`
	// Toolset restricts which tools the model sees. Entries name a tool
	// directly ("Read"), one bridged MCP tool ("files:list_dir"), or every
	// tool of one server ("files:*"). Empty means all registered tools.
	Toolset []string `yaml:"toolset"`
	MaxIterations    int               `yaml:"max_iterations"`
	MaxTokens        int               `yaml:"max_tokens"`
	SkipPermissions  bool              `yaml:"skip_permissions"`
	Hook             Hook              `yaml:"hook"`
	FilesystemAccess FilesystemAccess  `yaml:"filesystem_access"`
	MCPServers       []MCPServer       `yaml:"mcp_servers"`

	// Forwarded to the hook subprocess environment.
	ProjectDir string `yaml:"project_dir"`
	ProjectID  string `yaml:"project_id"`
	TaskID     string `yaml:"task_id"`
}

// Load reads configuration from the user's home directory and the current
// working directory, with the latter taking precedence.
func Load() (*Config, error) {
	cfg := &Config{
		MaxIterations: 50,
		MaxTokens:     4096,
	}

	// The .pilot directory itself is always protected.
	cfg.FilesystemAccess.Protected = append(cfg.FilesystemAccess.Protected, ".pilot", ".pilot/**")

	home, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(home, ".pilot", "config.yaml")
		if _, err := os.Stat(userConfigPath); err == nil {
			if err := loadFromFile(userConfigPath, cfg); err != nil {
				return nil, errors.Wrapf(err, "error loading user config")
			}
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrapf(err, "could not get working directory")
	}
	projectConfigPath := filepath.Join(wd, ".pilot", "config.yaml")
	if _, err := os.Stat(projectConfigPath); err == nil {
		if err := loadFromFile(projectConfigPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading project config")
		}
	}

	if cfg.ProjectDir == "" {
		cfg.ProjectDir = wd
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Unmarshal overwrites fields present in the YAML, which gives a simple
	// merge where project-level config replaces user-level.
	return yaml.Unmarshal(data, cfg)
}

// ResolveModel maps a model alias to a concrete model identifier. Unknown
// names pass through unchanged.
func (c *Config) ResolveModel(name string) string {
	if name == "" {
		name = c.Model
	}
	if concrete, ok := c.ModelAliases[name]; ok {
		return concrete
	}
	return name
}
