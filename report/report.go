// Package report assembles sample delivery reports from the QC metrics of a
// run and renders them as markdown. The same structured data backs json and
// yaml output.
package report

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"

	"pm/core"
	"pm/qc"
)

// SampleReport is the delivery summary of one sample run.
type SampleReport struct {
	Name            string `json:"name" yaml:"name"`
	Lane            int    `json:"lane" yaml:"lane"`
	BarcodeName     string `json:"barcode_name,omitempty" yaml:"barcode_name,omitempty"`
	Sequence        string `json:"sequence,omitempty" yaml:"sequence,omitempty"`
	BarcodeCount    *int   `json:"bc_count,omitempty" yaml:"bc_count,omitempty"`
	TotalReads      string `json:"total_reads,omitempty" yaml:"total_reads,omitempty"`
	PctReadsAligned string `json:"pct_reads_aligned,omitempty" yaml:"pct_reads_aligned,omitempty"`
	PctDuplication  string `json:"pct_duplication,omitempty" yaml:"pct_duplication,omitempty"`
}

// Report is a delivery report for one project on one run.
type Report struct {
	ID          string         `json:"id" yaml:"id"`
	Project     string         `json:"project" yaml:"project"`
	PI          string         `json:"pi,omitempty" yaml:"pi,omitempty"`
	Run         string         `json:"run" yaml:"run"`
	GeneratedAt time.Time      `json:"generated_at" yaml:"generated_at"`
	Samples     []SampleReport `json:"samples" yaml:"samples"`
}

// Build assembles a report from collected sample run metrics.
func Build(project *core.Project, run core.RunID, metrics []*qc.SampleRunMetrics) *Report {
	r := &Report{
		ID:          uuid.New().String(),
		Project:     project.Name,
		PI:          project.PI,
		Run:         run.String(),
		GeneratedAt: time.Now().UTC(),
	}

	for _, m := range metrics {
		sr := SampleReport{
			Name:         m.Name,
			Lane:         m.Lane,
			BarcodeName:  m.BarcodeName,
			Sequence:     m.Sequence,
			BarcodeCount: m.BarcodeCount,
		}
		if align, ok := m.Picard[qc.PicardAlign]; ok {
			row := align.Row("PAIR")
			if row == nil {
				row = align.Row("UNPAIRED")
			}
			if row != nil {
				sr.TotalReads = row["TOTAL_READS"]
				sr.PctReadsAligned = row["PCT_PF_READS_ALIGNED"]
			}
		}
		if dup, ok := m.Picard[qc.PicardDup]; ok {
			if row := dup.Row(""); row != nil {
				sr.PctDuplication = row["PERCENT_DUPLICATION"]
			}
		}
		r.Samples = append(r.Samples, sr)
	}

	return r
}

const markdownTemplate = `# Delivery report: {{.Project}}

- Run: {{.Run}}
- Generated: {{.GeneratedAt.Format "2006-01-02 15:04"}} UTC
{{- if .PI}}
- PI: {{.PI}}
{{- end}}

## Samples

| Sample run | Lane | Barcode | Reads | Aligned | Duplication |
|------------|------|---------|-------|---------|-------------|
{{- range .Samples}}
| {{.Name}} | {{.Lane}} | {{or .Sequence "NoIndex"}} | {{counts .BarcodeCount .TotalReads}} | {{or .PctReadsAligned "-"}} | {{or .PctDuplication "-"}} |
{{- end}}
`

var tmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"counts": func(bc *int, total string) string {
		if total != "" {
			return total
		}
		if bc != nil {
			return fmt.Sprintf("%d", *bc)
		}
		return "-"
	},
}).Parse(markdownTemplate))

// Markdown renders the report as a markdown document.
func (r *Report) Markdown() (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, r); err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	return sb.String(), nil
}
