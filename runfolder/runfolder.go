// Package runfolder scans archive, production and analysis roots for
// sequencing run folders and computes retention decisions for them.
package runfolder

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"pm/core"
	"pm/qc"
)

// Entry is one run folder found under a root.
type Entry struct {
	Name    string      `json:"name" yaml:"name"`
	Path    string      `json:"path" yaml:"path"`
	RunID   core.RunID  `json:"run_id" yaml:"run_id"`
	ModTime time.Time   `json:"mod_time" yaml:"mod_time"`
	RunInfo *qc.RunInfo `json:"run_info,omitempty" yaml:"run_info,omitempty"`
}

// Age returns how long ago the run was sequenced, based on the run date
// encoded in the folder name.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.RunID.Date)
}

// List returns the run folders directly under root, sorted by run date then
// name. Entries that merely look like directories but do not parse as run
// folder names are skipped.
func List(root string) ([]*Entry, error) {
	dirents, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading run folder root %s: %w", root, err)
	}

	var entries []*Entry
	for _, d := range dirents {
		if !d.IsDir() || !core.IsRunFolderName(d.Name()) {
			continue
		}
		runID, err := core.ParseRunID(d.Name())
		if err != nil {
			continue
		}
		e := &Entry{
			Name:  d.Name(),
			Path:  filepath.Join(root, d.Name()),
			RunID: runID,
		}
		if info, err := d.Info(); err == nil {
			e.ModTime = info.ModTime()
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].RunID.Date.Equal(entries[j].RunID.Date) {
			return entries[i].RunID.Date.Before(entries[j].RunID.Date)
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

// Find locates a single run folder by name under root.
func Find(root, name string) (*Entry, error) {
	entries, err := List(root)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Name == name {
			return e, nil
		}
	}
	return nil, fmt.Errorf("no run folder %s under %s", name, root)
}

// LoadRunInfo attaches the parsed RunInfo.xml of the run, when present.
func (e *Entry) LoadRunInfo() error {
	f, err := os.Open(filepath.Join(e.Path, "RunInfo.xml"))
	if err != nil {
		return fmt.Errorf("run %s has no readable RunInfo.xml: %w", e.Name, err)
	}
	defer f.Close()

	info, err := qc.ParseRunInfo(f)
	if err != nil {
		return err
	}
	e.RunInfo = info
	return nil
}

// CleanCandidates returns the runs older than retentionDays, oldest first.
func CleanCandidates(entries []*Entry, retentionDays int, now time.Time) []*Entry {
	cutoff := time.Duration(retentionDays) * 24 * time.Hour
	var out []*Entry
	for _, e := range entries {
		if e.Age(now) > cutoff {
			out = append(out, e)
		}
	}
	return out
}

// Remove deletes a run folder from disk. The caller is expected to have
// confirmed the removal; this is irreversible.
func Remove(e *Entry) error {
	if e.Path == "" || e.Path == "/" {
		return fmt.Errorf("refusing to remove suspicious run folder path %q", e.Path)
	}
	return os.RemoveAll(e.Path)
}
