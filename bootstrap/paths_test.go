package bootstrap

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestDerivePaths(t *testing.T) {
	paths, err := DerivePaths(envMap(map[string]string{"HOME": "/home/u"}))
	require.NoError(t, err)

	assert.Equal(t, "/home/u", paths.Home)
	assert.Equal(t, filepath.Join("/home/u", ".pm"), paths.ConfDir)
	assert.Equal(t, filepath.Join("/home/u", ".pm", "pm.conf"), paths.ConfFile)
	assert.Equal(t, filepath.Join("/home/u", ".pm", "plugins"), paths.PluginDir)
	assert.Equal(t, filepath.Join("/home/u", ".pm", "plugins.d"), paths.PluginConfDir)
}

func TestDerivePathsPMHomeWins(t *testing.T) {
	paths, err := DerivePaths(envMap(map[string]string{
		"HOME":    "/home/u",
		"PM_HOME": "/srv/pm",
	}))
	require.NoError(t, err)
	assert.Equal(t, "/srv/pm", paths.Home)
	assert.Equal(t, filepath.Join("/srv/pm", ".pm", "pm.conf"), paths.ConfFile)
}

func TestDerivePathsNoHome(t *testing.T) {
	_, err := DerivePaths(envMap(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "home directory")
}

func TestDerivedPathsStayUnderConfDir(t *testing.T) {
	// every derived location is a subpath of <home>/.pm
	paths, err := DerivePaths(envMap(map[string]string{"HOME": "/home/u"}))
	require.NoError(t, err)

	for _, p := range []string{paths.ConfFile, paths.PluginDir, paths.PluginConfDir} {
		rel, err := filepath.Rel(paths.ConfDir, p)
		require.NoError(t, err)
		assert.NotContains(t, rel, "..", "path %s escapes %s", p, paths.ConfDir)
	}
}
