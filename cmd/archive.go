package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"pm/bootstrap"
	"pm/output"
	"pm/runfolder"
)

// NewArchiveCmd creates the 'archive' controller: the long-term run folder
// archive.
func NewArchiveCmd(app *bootstrap.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Manage the run folder archive",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List archived runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(app, "Archived runs", app.Config.Archive.Root)
		},
	})

	cmd.AddCommand(newArchiveRunInfoCmd(app))
	cmd.AddCommand(newArchiveCleanCmd(app))

	return cmd
}

func newArchiveRunInfoCmd(app *bootstrap.App) *cobra.Command {
	return &cobra.Command{
		Use:   "runinfo <run>",
		Short: "Show the RunInfo descriptor of an archived run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := app.Config.Archive.Root
			if root == "" {
				return fmt.Errorf("no archive root configured: set archive.root in %s", app.Paths.ConfFile)
			}

			entry, err := runfolder.Find(root, args[0])
			if err != nil {
				return err
			}
			if err := entry.LoadRunInfo(); err != nil {
				return err
			}

			info := entry.RunInfo
			fields := []output.Field{
				{Label: "Run", Value: entry.Name},
				{Label: "Run ID", Value: info.ID},
				{Label: "Instrument", Value: info.Instrument},
				{Label: "Flowcell", Value: info.Flowcell},
				{Label: "Date", Value: info.Date},
				{Label: "Reads", Value: fmt.Sprintf("%d", len(info.Reads))},
				{Label: "Lanes", Value: info.FlowcellLayout.LaneCount},
			}
			app.Output.Details("Run "+entry.Name, info, fields...)
			return nil
		},
	}
}

func newArchiveCleanCmd(app *bootstrap.App) *cobra.Command {
	var force bool
	var days int

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove archived runs past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			retention := days
			if retention == 0 {
				retention = app.Config.Archive.RetentionDays
			}
			return cleanRuns(app, "archive", app.Config.Archive.Root, retention, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "actually remove; without it clean only lists candidates")
	cmd.Flags().IntVar(&days, "days", 0, "override the configured retention window")
	return cmd
}
