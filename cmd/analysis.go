package cmd

import (
	"github.com/spf13/cobra"

	"pm/bootstrap"
)

// NewAnalysisCmd creates the 'analysis' controller: the analysis working
// area on the analysis deployment.
func NewAnalysisCmd(app *bootstrap.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analysis",
		Short: "Manage the analysis working area",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List runs in the analysis area",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(app, "Analysis runs", app.Config.Analysis.Root)
		},
	})

	cmd.AddCommand(newAnalysisCleanCmd(app))

	return cmd
}

func newAnalysisCleanCmd(app *bootstrap.App) *cobra.Command {
	var force bool
	var days int

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove analysis runs past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			retention := days
			if retention == 0 {
				retention = app.Config.Analysis.RetentionDays
			}
			return cleanRuns(app, "analysis", app.Config.Analysis.Root, retention, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "actually remove; without it clean only lists candidates")
	cmd.Flags().IntVar(&days, "days", 0, "override the configured retention window")
	return cmd
}
