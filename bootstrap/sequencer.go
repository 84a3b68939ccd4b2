package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// ControllerSet produces the controller commands registered for an
// application. It is a parameter rather than an import so the cmd package can
// depend on App without a cycle.
type ControllerSet func(*App) []*cobra.Command

// Main is the complete process lifecycle: construct, register, set up, parse
// configuration, run, render, close. It returns the process exit code; main
// does nothing but os.Exit(Main(...)).
//
// An unusable configuration file is not an error: pm warns with the expected
// path so the operator knows what to create, and exits cleanly without
// running a command.
func Main(ctx context.Context, args []string, opts Options, controllers ControllerSet) int {
	var stderr io.Writer = os.Stderr
	if opts.Stderr != nil {
		stderr = opts.Stderr
	}

	app, err := NewApp(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer app.Close()

	if err := app.RegisterControllers(controllers(app)); err != nil {
		app.Logger.Errorw("controller registration failed", "error", err)
		return 1
	}

	if err := app.Setup(ctx); err != nil {
		app.Logger.Errorw("setup failed", "error", err)
		return 1
	}

	if err := app.LoadConfig(); err != nil {
		app.Logger.Warnw("configuration unusable, nothing to do",
			"path", app.Paths.ConfFile,
			"error", err)
		return 0
	}

	runErr := app.Run(ctx, args)

	if err := app.Render(); err != nil {
		app.Logger.Errorw("rendering output failed", "error", err)
		if runErr == nil {
			runErr = err
		}
	}

	if runErr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", runErr)
		return 1
	}
	return 0
}
