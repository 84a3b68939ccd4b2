package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pm/bootstrap"
	"pm/core"
)

// NewPurgeCmd creates the 'purge' controller: removal of a project's data and
// registry entry. Removal is irreversible, so it is gated behind --force and
// refuses open projects.
func NewPurgeCmd(app *bootstrap.App) *cobra.Command {
	var force, dryRun, keepEntry bool

	cmd := &cobra.Command{
		Use:   "purge <project>",
		Short: "Remove a closed project's data and registry entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			store, err := app.Store(ctx)
			if err != nil {
				return err
			}

			p, err := store.GetProject(ctx, args[0])
			if err != nil {
				return err
			}
			if p.Status == core.ProjectStatusOpen {
				return fmt.Errorf("project %s is still open: close it before purging", p.Name)
			}

			var dataDir string
			if root := app.Config.Project.Root; root != "" {
				candidate := filepath.Join(root, p.Name)
				if _, err := os.Stat(candidate); err == nil {
					dataDir = candidate
				}
			}

			if dryRun {
				msg := fmt.Sprintf("would purge project %s", p.Name)
				if dataDir != "" {
					msg += fmt.Sprintf(" and remove %s", dataDir)
				}
				app.Output.Say("%s", msg)
				return nil
			}

			if !force {
				return fmt.Errorf("purging %s deletes data permanently: re-run with --force", p.Name)
			}

			if dataDir != "" {
				if err := os.RemoveAll(dataDir); err != nil {
					return fmt.Errorf("removing project data %s: %w", dataDir, err)
				}
				app.Logger.Infow("removed project data", "dir", dataDir)
			}

			if !keepEntry {
				if err := store.DeleteProject(ctx, p.Name); err != nil {
					return err
				}
			}

			app.Output.Say("purged project %s", p.Name)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "actually delete; without it purge only explains what it would do")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be removed without touching anything")
	cmd.Flags().BoolVar(&keepEntry, "keep-entry", false, "remove data but keep the registry entry")
	return cmd
}
