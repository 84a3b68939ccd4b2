package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"pm/bootstrap"
	"pm/core"
	"pm/deliver"
	"pm/runfolder"
	"pm/storage"
)

// NewDeliverCmd creates the 'deliver' controller: staging sample data into a
// project's delivery inbox.
func NewDeliverCmd(app *bootstrap.App) *cobra.Command {
	var (
		lane      int
		barcodeID int
		dryRun    bool
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "deliver <run> <project>",
		Short: "Deliver sample data to a project inbox",
		Long: `Stage the data files of a run into the project's delivery inbox, with
MD5 checksums and a delivery manifest. By default all of the project's files
in the run are delivered; --lane and --barcode-id narrow the selection to one
sample.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			runName, projectName := args[0], args[1]

			inbox := app.Config.Delivery.Inbox
			if inbox == "" {
				return fmt.Errorf("no delivery inbox configured: set delivery.inbox in %s", app.Paths.ConfFile)
			}
			root := app.Config.Production.Root
			if root == "" {
				root = app.Config.Analysis.Root
			}
			if root == "" {
				return fmt.Errorf("no production or analysis root configured in %s", app.Paths.ConfFile)
			}

			store, err := app.Store(ctx)
			if err != nil {
				return err
			}
			project, err := store.GetProject(ctx, projectName)
			if err != nil {
				return err
			}
			if project.Status != core.ProjectStatusOpen {
				return fmt.Errorf("project %s is %s: deliveries go to open projects only", project.Name, project.Status)
			}

			entry, err := runfolder.Find(root, runName)
			if err != nil {
				return err
			}

			var sources []string
			if lane > 0 && barcodeID > 0 {
				sample := core.Sample{Project: project.Name, Lane: lane, BarcodeID: barcodeID}
				sources, err = deliver.ResolveSampleFiles(entry.Path, sample, entry.RunID)
			} else {
				sources, err = projectFastqFiles(entry.Path, project.Name)
			}
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				return fmt.Errorf("no data files for project %s in run %s", project.Name, entry.Name)
			}

			destDir := filepath.Join(inbox, project.Name, entry.Name)
			stager := &deliver.Stager{Logger: app.Logger, DryRun: dryRun, Progress: !quiet}
			manifest, err := stager.Stage(ctx, project.Name, sources, destDir)
			if err != nil {
				return err
			}

			if dryRun {
				app.Output.Say("would deliver %d files (%d bytes) to %s",
					len(manifest.Files), manifest.TotalSize(), destDir)
				return nil
			}

			manifestPath, err := deliver.WriteManifest(manifest, destDir)
			if err != nil {
				return err
			}

			rec := &storage.DeliveryRecord{
				ID:          manifest.ID,
				Destination: destDir,
				FileCount:   len(manifest.Files),
			}
			if err := store.RecordDelivery(ctx, project.Name, rec); err != nil {
				return err
			}

			app.Output.Say("delivered %d files (%d bytes) to %s, manifest %s",
				len(manifest.Files), manifest.TotalSize(), destDir, manifestPath)
			return nil
		},
	}

	cmd.Flags().IntVar(&lane, "lane", 0, "deliver one sample: its lane")
	cmd.Flags().IntVar(&barcodeID, "barcode-id", 0, "deliver one sample: its barcode id")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan the delivery without copying")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "no progress bar")
	return cmd
}
