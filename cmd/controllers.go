// Package cmd implements the pm controllers: the subcommand trees registered
// on the root command for each deployment.
package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"pm/bootstrap"
	"pm/config"
	"pm/output"
)

// defaultTimeout bounds every controller operation.
const defaultTimeout = 5 * time.Minute

func outputField(label, value string) output.Field {
	return output.Field{Label: label, Value: value}
}

// Controllers returns the controller set of the app's deployment. Production
// hosts get the data-handling commands (purge, production, report); analysis
// hosts get the analysis commands instead.
func Controllers(app *bootstrap.App) []*cobra.Command {
	if app.Deployment == config.DeploymentAnalysis {
		return []*cobra.Command{
			NewProjectCmd(app),
			NewArchiveCmd(app),
			NewAnalysisCmd(app),
			NewDeliverCmd(app),
			NewBcbioCmd(app),
		}
	}
	return []*cobra.Command{
		NewProjectCmd(app),
		NewPurgeCmd(app),
		NewArchiveCmd(app),
		NewProductionCmd(app),
		NewBcbioCmd(app),
		NewDeliverCmd(app),
		NewReportCmd(app),
	}
}
