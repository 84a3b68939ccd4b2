package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"pm/bootstrap"
	"pm/deliver"
	"pm/runfolder"
)

// NewProductionCmd creates the 'production' controller: the demultiplexed
// production data area.
func NewProductionCmd(app *bootstrap.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "production",
		Short: "Manage the production data area",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List runs in the production area",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(app, "Production runs", app.Config.Production.Root)
		},
	})

	cmd.AddCommand(newProductionTransferCmd(app))
	cmd.AddCommand(newProductionCleanCmd(app))

	return cmd
}

func newProductionTransferCmd(app *bootstrap.App) *cobra.Command {
	var dryRun bool
	var quiet bool

	cmd := &cobra.Command{
		Use:   "transfer <run> <project>",
		Short: "Stage a run's data files into a project directory",
		Long:  "Copy the data files of a production run into the project's data directory, checksumming every file.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			runName, projectName := args[0], args[1]

			root := app.Config.Production.Root
			if root == "" {
				return fmt.Errorf("no production root configured: set production.root in %s", app.Paths.ConfFile)
			}
			if app.Config.Project.Root == "" {
				return fmt.Errorf("no project root configured: set project.root in %s", app.Paths.ConfFile)
			}

			store, err := app.Store(ctx)
			if err != nil {
				return err
			}
			project, err := store.GetProject(ctx, projectName)
			if err != nil {
				return err
			}

			entry, err := runfolder.Find(root, runName)
			if err != nil {
				return err
			}

			sources, err := projectFastqFiles(entry.Path, project.Name)
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				return fmt.Errorf("run %s holds no data files for project %s", runName, project.Name)
			}

			destDir := filepath.Join(app.Config.Project.Root, project.Name, entry.Name)
			stager := &deliver.Stager{Logger: app.Logger, DryRun: dryRun, Progress: !quiet}
			manifest, err := stager.Stage(ctx, project.Name, sources, destDir)
			if err != nil {
				return err
			}

			if dryRun {
				app.Output.Say("would transfer %d files (%d bytes) from %s to %s",
					len(manifest.Files), manifest.TotalSize(), entry.Name, destDir)
				return nil
			}

			app.Output.Say("transferred %d files (%d bytes) to %s",
				len(manifest.Files), manifest.TotalSize(), destDir)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan the transfer without copying")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "no progress bar")
	return cmd
}

func newProductionCleanCmd(app *bootstrap.App) *cobra.Command {
	var force bool
	var days int

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove production runs past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			retention := days
			if retention == 0 {
				retention = app.Config.Production.RetentionDays
			}
			return cleanRuns(app, "production", app.Config.Production.Root, retention, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "actually remove; without it clean only lists candidates")
	cmd.Flags().IntVar(&days, "days", 0, "override the configured retention window")
	return cmd
}

// projectFastqFiles finds the fastq files under a run directory that belong
// to the project, by the <run dir>/<project>/ convention of the
// demultiplexing output.
func projectFastqFiles(runDir, project string) ([]string, error) {
	patterns := []string{
		filepath.Join(runDir, project, "*.fastq"),
		filepath.Join(runDir, project, "*.fastq.gz"),
	}
	var files []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	return files, nil
}
