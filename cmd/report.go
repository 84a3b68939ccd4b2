package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pm/bootstrap"
	"pm/core"
	"pm/extension"
	"pm/qc"
	"pm/report"
	"pm/runfolder"
)

// NewReportCmd creates the 'report' controller: delivery report generation
// from the QC metrics of a run.
func NewReportCmd(app *bootstrap.App) *cobra.Command {
	var (
		samplesFile string
		outFile     string
		upload      bool
	)

	cmd := &cobra.Command{
		Use:   "report <run> <project>",
		Short: "Generate a delivery report for a project on a run",
		Long: `Collect the QC metrics of the project's samples on a run and generate a
markdown delivery report. --samples names a YAML file listing the samples
(name, lane, barcode_id, sequence); --upload also stores the collected
metrics in the status database.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			runName, projectName := args[0], args[1]

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

			entry, err := runfolder.Find(root, runName)
			if err != nil {
				return err
			}

			samples, err := loadSamples(samplesFile, project.Name)
			if err != nil {
				return err
			}

			qcExt, ok := app.Extensions.Get("qc")
			if !ok {
				return fmt.Errorf("qc extension is not registered")
			}
			collector, err := qcExt.(*extension.QC).Collector(entry.Path)
			if err != nil {
				return err
			}

			spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
				spinner.WithWriter(cmd.ErrOrStderr()))
			spin.Suffix = " collecting QC metrics..."
			spin.Start()

			var metrics []*qc.SampleRunMetrics
			for _, s := range samples {
				m, err := collector.CollectSample(s, entry.RunID)
				if err != nil {
					spin.Stop()
					return err
				}
				metrics = append(metrics, m)
			}
			flowcell, err := collector.CollectFlowcell(entry.RunID)
			spin.Stop()
			if err != nil {
				return err
			}

			rep := report.Build(project, entry.RunID, metrics)
			md, err := rep.Markdown()
			if err != nil {
				return err
			}

			path := outFile
			if path == "" {
				path = fmt.Sprintf("%s_%s_delivery_report.md", project.Name, entry.Name)
			}
			if err := os.WriteFile(path, []byte(md), 0644); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}

			if upload {
				if err := uploadMetrics(ctx, app, metrics, flowcell); err != nil {
					return err
				}
			}

			app.Output.Details("Delivery report", rep,
				outputField("Project", project.Name),
				outputField("Run", entry.Name),
				outputField("Samples", fmt.Sprintf("%d", len(metrics))),
				outputField("Report", path),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&samplesFile, "samples", "", "YAML file listing the samples to report on")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "report output path")
	cmd.Flags().BoolVar(&upload, "upload", false, "store collected metrics in the status database")
	return cmd
}

// loadSamples reads the sample list and pins every entry to the project.
func loadSamples(path, project string) ([]core.Sample, error) {
	if path == "" {
		return nil, fmt.Errorf("a sample list is required: pass --samples <file>")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sample list: %w", err)
	}

	var samples []core.Sample
	if err := yaml.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("parsing sample list %s: %w", path, err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("sample list %s is empty", filepath.Base(path))
	}
	for i := range samples {
		samples[i].Project = project
	}
	return samples, nil
}

func uploadMetrics(ctx context.Context, app *bootstrap.App, metrics []*qc.SampleRunMetrics, flowcell *qc.FlowcellRunMetrics) error {
	ext, ok := app.Extensions.Get("statusdb")
	if !ok {
		return fmt.Errorf("statusdb extension is not registered")
	}
	client, err := ext.(*extension.StatusDB).Client()
	if err != nil {
		return err
	}

	for _, m := range metrics {
		if err := client.SaveSampleMetrics(ctx, m); err != nil {
			return err
		}
	}
	return client.SaveFlowcellMetrics(ctx, flowcell)
}
