package bootstrap

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pm/config"
)

// recordingExt observes lifecycle order from inside the extension set.
type recordingExt struct {
	name   string
	events *[]string
}

func (r *recordingExt) Name() string { return r.name }

func (r *recordingExt) Setup(context.Context, *config.Config, *zap.SugaredLogger) error {
	*r.events = append(*r.events, "setup:"+r.name)
	return nil
}

func (r *recordingExt) Close(context.Context) error {
	*r.events = append(*r.events, "close:"+r.name)
	return nil
}

// seqHarness wires Main with a recording controller and extension.
type seqHarness struct {
	home   string
	events []string
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func (h *seqHarness) opts() Options {
	return Options{
		Getenv: envMap(map[string]string{"HOME": h.home}),
		Stdout: &h.stdout,
		Stderr: &h.stderr,
	}
}

func (h *seqHarness) controllers(app *App) []*cobra.Command {
	if err := app.Extensions.Register(&recordingExt{name: "probe", events: &h.events}); err != nil {
		panic(err)
	}
	return []*cobra.Command{{
		Use: "probe",
		RunE: func(cmd *cobra.Command, args []string) error {
			h.events = append(h.events, "run")
			app.Output.Say("probe ran")
			return nil
		},
	}}
}

func (h *seqHarness) writeConf(t *testing.T, content string) {
	t.Helper()
	confDir := filepath.Join(h.home, ".pm")
	require.NoError(t, os.MkdirAll(confDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(confDir, "pm.conf"), []byte(content), 0644))
}

func TestMainFullLifecycle(t *testing.T) {
	h := &seqHarness{home: t.TempDir()}
	h.writeConf(t, "deployment: production\n")

	code := Main(context.Background(), []string{"probe"}, h.opts(), h.controllers)
	assert.Equal(t, 0, code)

	assert.Equal(t, []string{"setup:probe", "run", "close:probe"}, h.events)
	assert.Contains(t, h.stdout.String(), "probe ran", "accumulated output is rendered")
}

func TestMainMissingConfigCleanExit(t *testing.T) {
	h := &seqHarness{home: t.TempDir()}

	code := Main(context.Background(), []string{"probe"}, h.opts(), h.controllers)
	assert.Equal(t, 0, code, "a missing config file is not an error")

	assert.NotContains(t, h.events, "run", "no command runs without configuration")
	assert.Contains(t, h.events, "close:probe", "close still runs")
	assert.Empty(t, h.stdout.String(), "nothing is rendered")

	confFile := filepath.Join(h.home, ".pm", "pm.conf")
	assert.Contains(t, h.stderr.String(), confFile, "the warning names the expected path")
}

func TestMainMalformedConfigCleanExit(t *testing.T) {
	h := &seqHarness{home: t.TempDir()}
	h.writeConf(t, "{{{ not yaml")

	code := Main(context.Background(), []string{"probe"}, h.opts(), h.controllers)
	assert.Equal(t, 0, code)
	assert.NotContains(t, h.events, "run")
	assert.Contains(t, h.stderr.String(), filepath.Join(h.home, ".pm", "pm.conf"))
}

func TestMainInvalidConfigValuesCleanExit(t *testing.T) {
	h := &seqHarness{home: t.TempDir()}
	h.writeConf(t, "deployment: staging\n")

	code := Main(context.Background(), []string{"probe"}, h.opts(), h.controllers)
	assert.Equal(t, 0, code)
	assert.NotContains(t, h.events, "run")
}

func TestMainCommandFailureExitNonZero(t *testing.T) {
	h := &seqHarness{home: t.TempDir()}
	h.writeConf(t, "deployment: production\n")

	controllers := func(app *App) []*cobra.Command {
		cmds := h.controllers(app)
		cmds = append(cmds, &cobra.Command{
			Use: "broken",
			RunE: func(*cobra.Command, []string) error {
				return assert.AnError
			},
		})
		return cmds
	}

	code := Main(context.Background(), []string{"broken"}, h.opts(), controllers)
	assert.Equal(t, 1, code)
	assert.Contains(t, h.events, "close:probe", "close runs on the failure path too")
}

func TestMainNoHomeExitNonZero(t *testing.T) {
	var stdout, stderr bytes.Buffer
	opts := Options{Getenv: envMap(nil), Stdout: &stdout, Stderr: &stderr}

	code := Main(context.Background(), nil, opts, func(*App) []*cobra.Command { return nil })
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "home directory")
}

func TestMainDuplicateControllerExitNonZero(t *testing.T) {
	h := &seqHarness{home: t.TempDir()}
	h.writeConf(t, "deployment: production\n")

	controllers := func(app *App) []*cobra.Command {
		return []*cobra.Command{{Use: "project"}, {Use: "project"}}
	}

	code := Main(context.Background(), []string{"project"}, h.opts(), controllers)
	assert.Equal(t, 1, code)
}

func TestMainRenderFormatFlag(t *testing.T) {
	h := &seqHarness{home: t.TempDir()}
	h.writeConf(t, "deployment: production\n")

	code := Main(context.Background(), []string{"probe", "--format", "json"}, h.opts(), h.controllers)
	assert.Equal(t, 0, code)
	assert.Contains(t, h.stdout.String(), `"message": "probe ran"`)
}
