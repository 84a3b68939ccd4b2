package core

import (
	"fmt"
	"regexp"
	"time"
)

// ProjectStatus represents the lifecycle status of a project
type ProjectStatus string

const (
	// ProjectStatusOpen indicates a project that is actively receiving data
	ProjectStatusOpen ProjectStatus = "open"
	// ProjectStatusClosed indicates a project whose work is finished
	ProjectStatusClosed ProjectStatus = "closed"
	// ProjectStatusAborted indicates a project that was cancelled before completion
	ProjectStatusAborted ProjectStatus = "aborted"
)

// String returns the string representation
func (s ProjectStatus) String() string {
	return string(s)
}

// IsValid checks if the status is valid
func (s ProjectStatus) IsValid() bool {
	switch s {
	case ProjectStatusOpen, ProjectStatusClosed, ProjectStatusAborted:
		return true
	default:
		return false
	}
}

// projectNamePattern matches project identifiers of the form "X.Surname_yy_nn",
// e.g. "J.Doe_13_01". Plain word names are also accepted for internal projects.
var projectNamePattern = regexp.MustCompile(`^([A-Za-z]\.[A-Za-z]+_\d{2}_\d{2}|[A-Za-z][A-Za-z0-9_-]*)$`)

// Project is a registered scientific project.
type Project struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	PI          string        `json:"pi,omitempty" yaml:"pi,omitempty"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Status      ProjectStatus `json:"status" yaml:"status"`
	CreatedAt   time.Time     `json:"created_at" yaml:"created_at"`
	ClosedAt    *time.Time    `json:"closed_at,omitempty" yaml:"closed_at,omitempty"`
}

// Validate checks that the project is well formed before it is persisted.
func (p *Project) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("project name is required")
	}
	if !projectNamePattern.MatchString(p.Name) {
		return fmt.Errorf("invalid project name %q: expected e.g. J.Doe_13_01", p.Name)
	}
	if p.Status != "" && !p.Status.IsValid() {
		return fmt.Errorf("invalid project status %q", p.Status)
	}
	return nil
}

// Sample is a sample belonging to a project, identified within a lane of a
// flowcell by its barcode.
type Sample struct {
	Name        string `json:"name" yaml:"name"`
	Project     string `json:"project" yaml:"project"`
	Lane        int    `json:"lane" yaml:"lane"`
	BarcodeID   int    `json:"barcode_id" yaml:"barcode_id"`
	BarcodeName string `json:"barcode_name,omitempty" yaml:"barcode_name,omitempty"`
	Sequence    string `json:"sequence,omitempty" yaml:"sequence,omitempty"`
}

// RunName builds the canonical sample run name <lane>_<date>_<flowcell>_<sequence>.
// Samples with no index sequence use "NoIndex".
func (s *Sample) RunName(date, flowcell string) string {
	seq := s.Sequence
	if seq == "" {
		seq = "NoIndex"
	}
	return fmt.Sprintf("%d_%s_%s_%s", s.Lane, date, flowcell, seq)
}
