package extension

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
)

// Plugin is an external executable found in the plugin directory, exposed as
// a passthrough subcommand. A YAML fragment named <name>.yaml in the plugin
// configuration directory is handed to the plugin through its environment.
type Plugin struct {
	Name     string
	Path     string
	ConfPath string
}

// DiscoverPlugins scans pluginDir for executable files and pairs each with
// its configuration fragment from pluginConfDir, when one exists. A missing
// plugin directory simply means no plugins.
func DiscoverPlugins(pluginDir, pluginConfDir string) ([]Plugin, error) {
	dirents, err := os.ReadDir(pluginDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading plugin directory %s: %w", pluginDir, err)
	}

	var plugins []Plugin
	for _, d := range dirents {
		if d.IsDir() {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		if info.Mode()&0111 == 0 {
			continue
		}

		p := Plugin{
			Name: d.Name(),
			Path: filepath.Join(pluginDir, d.Name()),
		}
		confPath := filepath.Join(pluginConfDir, p.Name+".yaml")
		if _, err := os.Stat(confPath); err == nil {
			p.ConfPath = confPath
		}
		plugins = append(plugins, p)
	}
	return plugins, nil
}

// PluginEnv is the process context handed to every plugin invocation.
type PluginEnv struct {
	Home     string
	ConfFile string
}

// NewPluginCommand wraps a plugin in a passthrough cobra command: all flags
// and arguments go to the plugin untouched, with pm's paths in the
// environment.
func NewPluginCommand(p Plugin, env PluginEnv) *cobra.Command {
	return &cobra.Command{
		Use:                p.Name,
		Short:              fmt.Sprintf("Plugin command (%s)", p.Path),
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := exec.CommandContext(cmd.Context(), p.Path, args...)
			c.Stdin = os.Stdin
			c.Stdout = cmd.OutOrStdout()
			c.Stderr = cmd.ErrOrStderr()
			c.Env = append(os.Environ(),
				"PM_HOME="+env.Home,
				"PM_CONF="+env.ConfFile,
			)
			if p.ConfPath != "" {
				c.Env = append(c.Env, "PM_PLUGIN_CONF="+p.ConfPath)
			}
			if err := c.Run(); err != nil {
				return fmt.Errorf("plugin %s: %w", p.Name, err)
			}
			return nil
		},
	}
}
