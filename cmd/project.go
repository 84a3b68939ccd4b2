package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pm/bootstrap"
	"pm/core"
	"pm/output"
)

// NewProjectCmd creates the 'project' controller: the local project registry.
func NewProjectCmd(app *bootstrap.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage registered projects",
		Long:  "List, inspect, register and close projects in the local project registry.",
	}

	cmd.AddCommand(newProjectListCmd(app))
	cmd.AddCommand(newProjectShowCmd(app))
	cmd.AddCommand(newProjectInitCmd(app))
	cmd.AddCommand(newProjectCloseCmd(app))

	return cmd
}

func newProjectListCmd(app *bootstrap.App) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			store, err := app.Store(ctx)
			if err != nil {
				return err
			}

			status := core.ProjectStatus(statusFilter)
			if statusFilter != "" && !status.IsValid() {
				return fmt.Errorf("invalid status filter %q", statusFilter)
			}

			projects, err := store.ListProjects(ctx, status)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(projects))
			for _, p := range projects {
				rows = append(rows, []string{p.Name, p.PI, p.Status.String(), p.CreatedAt.Format("2006-01-02")})
			}
			app.Output.Table("Projects", []string{"NAME", "PI", "STATUS", "CREATED"}, rows, projects)
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "only list projects with this status (open, closed, aborted)")
	return cmd
}

func newProjectShowCmd(app *bootstrap.App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project>",
		Short: "Show project details and deliveries",
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

			fields := []output.Field{
				{Label: "Name", Value: p.Name},
				{Label: "PI", Value: p.PI},
				{Label: "Status", Value: p.Status.String()},
				{Label: "Created", Value: p.CreatedAt.Format("2006-01-02 15:04")},
			}
			if p.Description != "" {
				fields = append(fields, output.Field{Label: "Description", Value: p.Description})
			}
			if p.ClosedAt != nil {
				fields = append(fields, output.Field{Label: "Closed", Value: p.ClosedAt.Format("2006-01-02 15:04")})
			}
			app.Output.Details("Project "+p.Name, p, fields...)

			deliveries, err := store.ListDeliveries(ctx, p.Name)
			if err != nil {
				return err
			}
			if len(deliveries) > 0 {
				rows := make([][]string, 0, len(deliveries))
				for _, d := range deliveries {
					rows = append(rows, []string{
						d.DeliveredAt.Format("2006-01-02 15:04"),
						d.Destination,
						fmt.Sprintf("%d", d.FileCount),
					})
				}
				app.Output.Table("Deliveries", []string{"DELIVERED", "DESTINATION", "FILES"}, rows, deliveries)
			}
			return nil
		},
	}
}

func newProjectInitCmd(app *bootstrap.App) *cobra.Command {
	var pi, description string

	cmd := &cobra.Command{
		Use:   "init <project>",
		Short: "Register a new project",
		Long:  "Register a project in the local registry and create its data directory under the project root.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			store, err := app.Store(ctx)
			if err != nil {
				return err
			}

			p := &core.Project{Name: args[0], PI: pi, Description: description}
			if err := store.CreateProject(ctx, p); err != nil {
				return err
			}

			if root := app.Config.Project.Root; root != "" {
				dir := filepath.Join(root, p.Name)
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("project registered but data directory failed: %w", err)
				}
				app.Logger.Infow("created project directory", "dir", dir)
			}

			app.Output.Say("registered project %s", p.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&pi, "pi", "", "principal investigator")
	cmd.Flags().StringVar(&description, "description", "", "project description")
	return cmd
}

func newProjectCloseCmd(app *bootstrap.App) *cobra.Command {
	var abort bool

	cmd := &cobra.Command{
		Use:   "close <project>",
		Short: "Close a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			store, err := app.Store(ctx)
			if err != nil {
				return err
			}

			status := core.ProjectStatusClosed
			if abort {
				status = core.ProjectStatusAborted
			}
			if err := store.UpdateStatus(ctx, args[0], status); err != nil {
				return err
			}

			app.Output.Say("project %s is now %s", args[0], status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&abort, "abort", false, "mark the project aborted instead of closed")
	return cmd
}
