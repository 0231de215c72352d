package recipe

import (
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/tasktree-dev/tasktree/internal/logger"
	"github.com/tasktree-dev/tasktree/internal/platform"
)

// layeredConfig is the tier-6 default-runner fallback in the seven-tier
// runner resolution order (spec.md §4.3 step 6): project, then user,
// then machine config files, each optionally naming a default_runner.
// Modelled on the XDG_CONFIG_HOME / ~/.config resolution cmd/mammoth's
// datadir.go uses, since the teacher has no config-file layering of
// its own.
type layeredConfig struct {
	DefaultRunner string `yaml:"default_runner,omitempty"`
}

// LoadLayeredDefaultRunner reads, in priority order, a project-level
// .tasktree.yaml next to the recipe, a user-level config under
// XDG_CONFIG_HOME (or ~/.config) /tasktree/config.yaml, and a
// machine-level /etc/tasktree/config.yaml, returning the first
// default_runner any of them set. A malformed layer is logged as a
// warning and skipped, never fatal, the same tolerance the teacher's
// ParseConfig gives a bad include.
func LoadLayeredDefaultRunner(fs platform.FileSystem, env platform.Environment, recipeDir string, log *logger.Logger) string {
	for _, path := range layeredConfigPaths(env, recipeDir) {
		runner, ok := readLayeredDefaultRunner(fs, path, log)
		if ok {
			return runner
		}
	}
	return ""
}

func layeredConfigPaths(env platform.Environment, recipeDir string) []string {
	paths := []string{filepath.Join(recipeDir, ".tasktree.yaml")}

	if configHome, ok := env.Getenv("XDG_CONFIG_HOME"); ok && configHome != "" {
		paths = append(paths, filepath.Join(configHome, "tasktree", "config.yaml"))
	} else if home, ok := env.Getenv("HOME"); ok && home != "" {
		paths = append(paths, filepath.Join(home, ".config", "tasktree", "config.yaml"))
	}

	paths = append(paths, filepath.Join("/etc", "tasktree", "config.yaml"))
	return paths
}

func readLayeredDefaultRunner(fs platform.FileSystem, path string, log *logger.Logger) (string, bool) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return "", false
	}

	var cfg layeredConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		if log != nil {
			log.WithFields(map[string]any{"path": path, "error": err.Error()}).Warn("skipping malformed config layer")
		}
		return "", false
	}

	if cfg.DefaultRunner == "" {
		return "", false
	}
	return cfg.DefaultRunner, true
}
