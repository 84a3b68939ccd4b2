package qc

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
)

// PicardKind distinguishes the supported Picard metrics file families.
type PicardKind string

const (
	// PicardAlign is CollectAlignmentSummaryMetrics output
	PicardAlign PicardKind = "align"
	// PicardDup is MarkDuplicates output
	PicardDup PicardKind = "dup"
	// PicardInsert is CollectInsertSizeMetrics output
	PicardInsert PicardKind = "insert"
	// PicardHs is CalculateHsMetrics output
	PicardHs PicardKind = "hs"
)

// picardKindSuffix matches the metrics-file suffix naming the Picard family.
var picardKindSuffix = regexp.MustCompile(`\.(align|dup|insert|hs)_metrics$`)

// PicardKindFromFilename derives the metrics family from a file name, e.g.
// "sample.dup_metrics" -> PicardDup.
func PicardKindFromFilename(name string) (PicardKind, error) {
	m := picardKindSuffix.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return "", fmt.Errorf("not a picard metrics file name: %q", name)
	}
	return PicardKind(m[1]), nil
}

// Histogram is the optional "## HISTOGRAM" block at the end of some Picard
// metrics files: a label row followed by one column of values per label.
type Histogram struct {
	Labels []string            `json:"labels" yaml:"labels"`
	Values map[string][]string `json:"values" yaml:"values"`
}

// PicardMetrics is one parsed Picard metrics file. Rows holds the metrics
// rows keyed by the METRICS header; alignment summaries carry one row per
// category (FIRST_OF_PAIR, SECOND_OF_PAIR, PAIR), the other families a single
// row.
type PicardMetrics struct {
	Command   string              `json:"command" yaml:"command"`
	Header    []string            `json:"header" yaml:"header"`
	Rows      []map[string]string `json:"rows" yaml:"rows"`
	Histogram *Histogram          `json:"histogram,omitempty" yaml:"histogram,omitempty"`
}

// Row returns the metrics row for category, or the first row when the file
// carries no category column.
func (p *PicardMetrics) Row(category string) map[string]string {
	for _, row := range p.Rows {
		if row["CATEGORY"] == category {
			return row
		}
	}
	if category == "" && len(p.Rows) > 0 {
		return p.Rows[0]
	}
	return nil
}

// ParsePicardMetrics parses a Picard metrics file: the command comment line,
// the "## METRICS" section with its tab-separated header and rows, and an
// optional trailing "## HISTOGRAM" block.
func ParsePicardMetrics(r io.Reader) (*PicardMetrics, error) {
	scanner := bufio.NewScanner(r)
	// Histogram-bearing files can be long
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	m := &PicardMetrics{}

	// Command line: first comment naming the picard tool invocation
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "# ") && strings.Contains(line, "picard") {
			m.Command = strings.TrimRight(line, "\n")
			break
		}
	}
	if m.Command == "" {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("no picard command line found")
	}

	// Skip to the METRICS section header
	found := false
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "## METRICS") {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("no METRICS section found")
	}
	if !scanner.Scan() {
		return nil, fmt.Errorf("missing METRICS header row")
	}
	m.Header = strings.Split(strings.TrimRight(scanner.Text(), "\n"), "\t")

	// Metrics rows run until a blank or truncated line
	for scanner.Scan() {
		info := strings.Split(strings.TrimRight(scanner.Text(), "\n"), "\t")
		if len(info) <= 1 {
			break
		}
		row := make(map[string]string, len(m.Header))
		for i, h := range m.Header {
			if i < len(info) {
				row[h] = info[i]
			}
		}
		m.Rows = append(m.Rows, row)
	}
	if len(m.Rows) == 0 {
		return nil, fmt.Errorf("no metrics rows found")
	}

	if hist, err := parseHistogram(scanner); err != nil {
		return nil, err
	} else if hist != nil {
		m.Histogram = hist
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

func parseHistogram(scanner *bufio.Scanner) (*Histogram, error) {
	found := false
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "## HISTOGRAM") {
			found = true
			break
		}
	}
	if !found {
		return nil, nil
	}
	if !scanner.Scan() {
		return nil, fmt.Errorf("missing histogram label row")
	}

	labels := strings.Split(strings.TrimRight(scanner.Text(), "\n"), "\t")
	hist := &Histogram{Labels: labels, Values: make(map[string][]string, len(labels))}
	for scanner.Scan() {
		info := strings.Split(strings.TrimRight(scanner.Text(), "\n"), "\t")
		if len(info) < len(labels) {
			break
		}
		for i, label := range labels {
			hist.Values[label] = append(hist.Values[label], info[i])
		}
	}
	return hist, nil
}

// ExtractPicardMetrics parses a set of metrics files and keys the results by
// family. Later files of the same family overwrite earlier ones.
func ExtractPicardMetrics(open func(path string) (io.ReadCloser, error), paths []string) (map[PicardKind]*PicardMetrics, error) {
	out := make(map[PicardKind]*PicardMetrics)
	for _, path := range paths {
		kind, err := PicardKindFromFilename(path)
		if err != nil {
			return nil, err
		}
		f, err := open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		m, err := ParsePicardMetrics(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		out[kind] = m
	}
	return out, nil
}
