package core

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// runFolderPattern matches Illumina run folder names of the form
// <yymmdd>_<instrument>_<run number>_<flowcell>, e.g.
// 120924_SN0002_0003_AC003CCCXX.
var runFolderPattern = regexp.MustCompile(`^(\d{6})_([A-Za-z0-9]+)_(\d{4})_([AB]?[A-Z0-9]+)$`)

// RunID identifies a single sequencing run by its run folder name.
type RunID struct {
	Date       time.Time `json:"date" yaml:"date"`
	Instrument string    `json:"instrument" yaml:"instrument"`
	Number     int       `json:"number" yaml:"number"`
	Flowcell   string    `json:"flowcell" yaml:"flowcell"`
}

// ParseRunID parses a run folder name into its parts.
func ParseRunID(name string) (RunID, error) {
	m := runFolderPattern.FindStringSubmatch(name)
	if m == nil {
		return RunID{}, fmt.Errorf("invalid run folder name %q: expected <yymmdd>_<instrument>_<run>_<flowcell>", name)
	}
	date, err := time.Parse("060102", m[1])
	if err != nil {
		return RunID{}, fmt.Errorf("invalid date in run folder name %q: %w", name, err)
	}
	number, err := strconv.Atoi(m[3])
	if err != nil {
		return RunID{}, fmt.Errorf("invalid run number in run folder name %q: %w", name, err)
	}
	return RunID{
		Date:       date,
		Instrument: m[2],
		Number:     number,
		Flowcell:   m[4],
	}, nil
}

// IsRunFolderName reports whether name looks like a run folder name.
func IsRunFolderName(name string) bool {
	return runFolderPattern.MatchString(name)
}

// String reassembles the canonical run folder name.
func (r RunID) String() string {
	return fmt.Sprintf("%s_%s_%04d_%s", r.Date.Format("060102"), r.Instrument, r.Number, r.Flowcell)
}

// FlowcellName returns the "<date>_<flowcell>" short name used to key
// flowcell-level metrics documents.
func (r RunID) FlowcellName() string {
	return fmt.Sprintf("%s_%s", r.Date.Format("060102"), r.Flowcell)
}
