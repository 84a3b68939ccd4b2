package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"pm/bootstrap"
	"pm/extension"
	"pm/runfolder"
)

// NewBcbioCmd creates the 'bcbio' controller: composing and submitting
// bcbio-nextgen pipeline runs, through the cluster scheduler when distributed
// execution is enabled.
func NewBcbioCmd(app *bootstrap.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bcbio",
		Short: "Run the bcbio-nextgen pipeline",
	}

	cmd.AddCommand(newBcbioRunCmd(app))
	return cmd
}

func newBcbioRunCmd(app *bootstrap.App) *cobra.Command {
	var (
		systemConfig string
		partition    string
		timeLimit    string
		cores        int
		dryRun       bool
	)

	cmd := &cobra.Command{
		Use:   "run <run>",
		Short: "Start bcbio-nextgen for a run in the analysis area",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			root := app.Config.Analysis.Root
			if root == "" {
				root = app.Config.Production.Root
			}
			if root == "" {
				return fmt.Errorf("no analysis or production root configured in %s", app.Paths.ConfFile)
			}

			entry, err := runfolder.Find(root, args[0])
			if err != nil {
				return err
			}

			runConfig := filepath.Join(entry.Path, "run_info.yaml")
			argv := []string{"bcbio_nextgen.py"}
			if systemConfig != "" {
				argv = append(argv, systemConfig)
			}
			argv = append(argv, runConfig)
			if cores > 0 {
				argv = append(argv, "-n", fmt.Sprintf("%d", cores))
			}

			ext, ok := app.Extensions.Get("distributed")
			if !ok {
				return fmt.Errorf("distributed extension is not registered")
			}
			dist := ext.(*extension.Distributed)
			dist.SetDryRun(dryRun)

			job := extension.Job{
				Name:      "bcbio-" + entry.Name,
				Command:   argv,
				WorkDir:   entry.Path,
				Partition: partition,
				Time:      timeLimit,
			}
			if err := dist.Submit(ctx, job); err != nil {
				return err
			}

			if dryRun {
				app.Output.Say("would start bcbio-nextgen for %s", entry.Name)
			} else {
				app.Output.Say("started bcbio-nextgen for %s", entry.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&systemConfig, "system-config", "", "bcbio system configuration file")
	cmd.Flags().StringVar(&partition, "partition", "", "scheduler partition override")
	cmd.Flags().StringVar(&timeLimit, "time", "", "scheduler time limit override")
	cmd.Flags().IntVarP(&cores, "num-cores", "n", 0, "number of cores")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log the command without running it")
	return cmd
}
