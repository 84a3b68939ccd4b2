// Package qc parses quality-control metrics files produced alongside
// sequencing runs: barcode counts, alignment filter metrics, fastq_screen
// contamination summaries and Picard metrics, plus the RunInfo.xml run
// descriptor.
package qc

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseBarcodeMetrics parses barcode demultiplexing counts: one
// "<barcode>\t<count>" pair per line.
func ParseBarcodeMetrics(r io.Reader) (map[string]int, error) {
	data := make(map[string]int)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\t\r\n")
		if line == "" {
			continue
		}
		vals := strings.Split(line, "\t")
		if len(vals) < 2 {
			return nil, fmt.Errorf("malformed barcode metrics line %q", line)
		}
		count, err := strconv.Atoi(vals[1])
		if err != nil {
			return nil, fmt.Errorf("malformed barcode count in line %q: %w", line, err)
		}
		data[vals[0]] = count
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return data, nil
}

// FilterMetrics summarizes the phix-filtering step.
type FilterMetrics struct {
	Reads          int64 `json:"reads" yaml:"reads"`
	ReadsAligned   int64 `json:"reads_aligned" yaml:"reads_aligned"`
	ReadsFailAlign int64 `json:"reads_fail_align" yaml:"reads_fail_align"`
}

// ParseFilterMetrics parses a .filter_metrics file. The format is three fixed
// lines: total reads (last field), reads aligned and reads failing alignment
// (second-to-last field, the last being a percentage).
func ParseFilterMetrics(r io.Reader) (FilterMetrics, error) {
	var m FilterMetrics
	scanner := bufio.NewScanner(r)

	readLine := func() ([]string, error) {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, err
			}
			return nil, io.ErrUnexpectedEOF
		}
		return strings.Fields(scanner.Text()), nil
	}

	fields, err := readLine()
	if err != nil || len(fields) == 0 {
		return m, fmt.Errorf("malformed filter metrics: missing reads line")
	}
	if m.Reads, err = strconv.ParseInt(fields[len(fields)-1], 10, 64); err != nil {
		return m, fmt.Errorf("malformed filter metrics reads value: %w", err)
	}

	for _, dst := range []*int64{&m.ReadsAligned, &m.ReadsFailAlign} {
		fields, err = readLine()
		if err != nil || len(fields) < 2 {
			return m, fmt.Errorf("malformed filter metrics: truncated file")
		}
		if *dst, err = strconv.ParseInt(fields[len(fields)-2], 10, 64); err != nil {
			return m, fmt.Errorf("malformed filter metrics value: %w", err)
		}
	}

	return m, nil
}

// FastqScreenLibrary is the per-library breakdown reported by fastq_screen.
type FastqScreenLibrary struct {
	Unmapped                float64 `json:"unmapped" yaml:"unmapped"`
	MappedOneLibrary        float64 `json:"mapped_one_library" yaml:"mapped_one_library"`
	MappedMultipleLibraries float64 `json:"mapped_multiple_libraries" yaml:"mapped_multiple_libraries"`
}

// ParseFastqScreenMetrics parses a fastq_screen output file: a header line
// followed by tab-separated per-library percentages.
func ParseFastqScreenMetrics(r io.Reader) (map[string]FastqScreenLibrary, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("empty fastq_screen file")
	}

	data := make(map[string]FastqScreenLibrary)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\t\r\n")
		if line == "" {
			continue
		}
		vals := strings.Split(line, "\t")
		if len(vals) < 4 {
			return nil, fmt.Errorf("malformed fastq_screen line %q", line)
		}
		var lib FastqScreenLibrary
		var err error
		if lib.Unmapped, err = strconv.ParseFloat(vals[1], 64); err != nil {
			return nil, fmt.Errorf("malformed fastq_screen value in line %q: %w", line, err)
		}
		if lib.MappedOneLibrary, err = strconv.ParseFloat(vals[2], 64); err != nil {
			return nil, fmt.Errorf("malformed fastq_screen value in line %q: %w", line, err)
		}
		if lib.MappedMultipleLibraries, err = strconv.ParseFloat(vals[3], 64); err != nil {
			return nil, fmt.Errorf("malformed fastq_screen value in line %q: %w", line, err)
		}
		data[vals[0]] = lib
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return data, nil
}
