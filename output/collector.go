// Package output implements the output handler: commands accumulate result
// sections while they run, and the bootstrap sequence renders everything once
// at the end in the configured format.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// Format is a render format for accumulated output
type Format string

const (
	// FormatText renders colored human-readable tables and details
	FormatText Format = "text"
	// FormatJSON renders the structured payloads as indented JSON
	FormatJSON Format = "json"
	// FormatYAML renders the structured payloads as YAML
	FormatYAML Format = "yaml"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatJSON, FormatYAML:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q: must be text, json or yaml", s)
	}
}

// Output formatters
var (
	headerColor  = color.New(color.FgBlue, color.Bold)
	warningColor = color.New(color.FgYellow)
)

// Field is a single labelled value in a details section
type Field struct {
	Label string
	Value string
}

// Section is one block of accumulated output. Data carries the structured
// payload used by json/yaml rendering; Headers/Rows and Fields carry the
// text presentation.
type Section struct {
	Title   string     `json:"title,omitempty" yaml:"title,omitempty"`
	Headers []string   `json:"-" yaml:"-"`
	Rows    [][]string `json:"-" yaml:"-"`
	Fields  []Field    `json:"-" yaml:"-"`
	Message string     `json:"message,omitempty" yaml:"message,omitempty"`
	Data    any        `json:"data,omitempty" yaml:"data,omitempty"`
}

// Collector accumulates output sections during a command run. It is owned by
// the single command dispatched for the process lifetime; no locking.
type Collector struct {
	sections []*Section
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Say appends a plain message section.
func (c *Collector) Say(format string, args ...any) {
	c.sections = append(c.sections, &Section{Message: fmt.Sprintf(format, args...)})
}

// Table appends a table section. data is the structured payload backing the
// rows, emitted for json/yaml output.
func (c *Collector) Table(title string, headers []string, rows [][]string, data any) {
	c.sections = append(c.sections, &Section{Title: title, Headers: headers, Rows: rows, Data: data})
}

// Details appends a labelled key/value section.
func (c *Collector) Details(title string, data any, fields ...Field) {
	c.sections = append(c.sections, &Section{Title: title, Fields: fields, Data: data})
}

// Empty reports whether anything has been accumulated.
func (c *Collector) Empty() bool {
	return len(c.sections) == 0
}

// Sections exposes the accumulated sections, for tests.
func (c *Collector) Sections() []*Section {
	return c.sections
}

// Render writes all accumulated sections to w in the requested format.
func (c *Collector) Render(w io.Writer, format Format) error {
	switch format {
	case FormatJSON:
		return c.renderJSON(w)
	case FormatYAML:
		return c.renderYAML(w)
	default:
		c.renderText(w)
		return nil
	}
}

func (c *Collector) structured() any {
	// A single section renders as its own payload, not a one-element list
	if len(c.sections) == 1 {
		return c.sections[0].payload()
	}
	out := make([]any, 0, len(c.sections))
	for _, s := range c.sections {
		out = append(out, s.payload())
	}
	return out
}

func (s *Section) payload() any {
	if s.Data != nil {
		return s.Data
	}
	if s.Message != "" {
		return map[string]string{"message": s.Message}
	}
	fields := make(map[string]string, len(s.Fields))
	for _, f := range s.Fields {
		fields[f.Label] = f.Value
	}
	return fields
}

func (c *Collector) renderJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c.structured())
}

func (c *Collector) renderYAML(w io.Writer) error {
	return yaml.NewEncoder(w).Encode(c.structured())
}

func (c *Collector) renderText(w io.Writer) {
	for i, s := range c.sections {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if s.Message != "" {
			fmt.Fprintln(w, s.Message)
			continue
		}
		if s.Title != "" {
			headerColor.Fprintln(w, s.Title)
			headerColor.Fprintln(w, strings.Repeat("=", sectionWidth(s)))
		}
		switch {
		case len(s.Headers) > 0:
			renderTable(w, s.Headers, s.Rows)
		case len(s.Fields) > 0:
			for _, f := range s.Fields {
				fmt.Fprintf(w, "  %-22s %s\n", f.Label+":", f.Value)
			}
		}
	}
}

func sectionWidth(s *Section) int {
	if len(s.Headers) > 0 {
		widths := columnWidths(s.Headers, s.Rows)
		total := 0
		for _, cw := range widths {
			total += cw + 2
		}
		if total > 2 {
			return total - 2
		}
	}
	return len(s.Title)
}

func renderTable(w io.Writer, headers []string, rows [][]string) {
	if len(rows) == 0 {
		warningColor.Fprintln(w, "nothing to list")
		return
	}
	widths := columnWidths(headers, rows)

	printRow := func(cells []string) {
		parts := make([]string, len(headers))
		for i := range headers {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	printRow(headers)
	total := 0
	for _, cw := range widths {
		total += cw + 2
	}
	fmt.Fprintln(w, strings.Repeat("-", total-2))
	for _, row := range rows {
		printRow(row)
	}
}

func columnWidths(headers []string, rows [][]string) []int {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	return widths
}
