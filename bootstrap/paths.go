package bootstrap

import (
	"fmt"
	"path/filepath"
)

// Paths holds the fixed locations pm derives from the user's home directory.
// Everything lives under <home>/.pm; none of the locations are configurable
// beyond the home directory itself.
type Paths struct {
	Home          string
	ConfDir       string
	ConfFile      string
	PluginDir     string
	PluginConfDir string
}

// DerivePaths resolves the pm paths from the environment. PM_HOME overrides
// HOME, so tests and multi-account setups can relocate the whole tree.
func DerivePaths(getenv func(string) string) (Paths, error) {
	home := getenv("PM_HOME")
	if home == "" {
		home = getenv("HOME")
	}
	if home == "" {
		return Paths{}, fmt.Errorf("cannot locate home directory: neither PM_HOME nor HOME is set")
	}

	confDir := filepath.Join(home, ".pm")
	return Paths{
		Home:          home,
		ConfDir:       confDir,
		ConfFile:      filepath.Join(confDir, "pm.conf"),
		PluginDir:     filepath.Join(confDir, "plugins"),
		PluginConfDir: filepath.Join(confDir, "plugins.d"),
	}, nil
}
