package cmd

import (
	"fmt"
	"time"

	"pm/bootstrap"
	"pm/runfolder"
)

// listRuns accumulates a table of the run folders under root.
func listRuns(app *bootstrap.App, title, root string) error {
	if root == "" {
		return fmt.Errorf("no root directory configured for %s: set it in %s", title, app.Paths.ConfFile)
	}

	entries, err := runfolder.List(root)
	if err != nil {
		return err
	}

	now := time.Now()
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.Name,
			e.RunID.Instrument,
			e.RunID.Flowcell,
			fmt.Sprintf("%dd", int(e.Age(now).Hours()/24)),
		})
	}
	app.Output.Table(title, []string{"RUN", "INSTRUMENT", "FLOWCELL", "AGE"}, rows, entries)
	return nil
}

// cleanRuns removes run folders older than the retention window. Without
// --force it only lists the removal candidates.
func cleanRuns(app *bootstrap.App, title, root string, retentionDays int, force bool) error {
	if root == "" {
		return fmt.Errorf("no root directory configured for %s: set it in %s", title, app.Paths.ConfFile)
	}

	entries, err := runfolder.List(root)
	if err != nil {
		return err
	}

	candidates := runfolder.CleanCandidates(entries, retentionDays, time.Now())
	if len(candidates) == 0 {
		app.Output.Say("no runs older than %d days under %s", retentionDays, root)
		return nil
	}

	if !force {
		rows := make([][]string, 0, len(candidates))
		for _, e := range candidates {
			rows = append(rows, []string{e.Name, e.Path})
		}
		app.Output.Table(
			fmt.Sprintf("Runs older than %d days (re-run with --force to remove)", retentionDays),
			[]string{"RUN", "PATH"}, rows, candidates)
		return nil
	}

	removed := 0
	for _, e := range candidates {
		if err := runfolder.Remove(e); err != nil {
			return fmt.Errorf("removing %s: %w", e.Path, err)
		}
		app.Logger.Infow("removed run folder", "run", e.Name, "path", e.Path)
		removed++
	}
	app.Output.Say("removed %d run folders from %s", removed, root)
	return nil
}
