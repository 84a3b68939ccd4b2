package qc

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"pm/core"
)

// SampleRunMetrics aggregates the QC metrics of one sample on one lane of a
// run. Zero-valued metric fields mean the corresponding file was absent.
type SampleRunMetrics struct {
	EntityType    string                        `json:"entity_type" yaml:"entity_type"`
	Name          string                        `json:"name" yaml:"name"`
	Project       string                        `json:"sample_prj" yaml:"sample_prj"`
	Lane          int                           `json:"lane" yaml:"lane"`
	Date          string                        `json:"date" yaml:"date"`
	Flowcell      string                        `json:"flowcell" yaml:"flowcell"`
	BarcodeID     int                           `json:"barcode_id" yaml:"barcode_id"`
	BarcodeName   string                        `json:"barcode_name" yaml:"barcode_name"`
	Sequence      string                        `json:"sequence" yaml:"sequence"`
	BarcodeCount  *int                          `json:"bc_count,omitempty" yaml:"bc_count,omitempty"`
	FilterMetrics *FilterMetrics                `json:"filter_metrics,omitempty" yaml:"filter_metrics,omitempty"`
	FastqScreen   map[string]FastqScreenLibrary `json:"fastq_scr,omitempty" yaml:"fastq_scr,omitempty"`
	Picard        map[PicardKind]*PicardMetrics `json:"picard_metrics,omitempty" yaml:"picard_metrics,omitempty"`
}

// LaneMetrics holds the flowcell-level per-lane metrics.
type LaneMetrics struct {
	Lane          int            `json:"lane" yaml:"lane"`
	FilterMetrics *FilterMetrics `json:"filter_metrics,omitempty" yaml:"filter_metrics,omitempty"`
	BarcodeCounts map[string]int `json:"bc_metrics,omitempty" yaml:"bc_metrics,omitempty"`
}

// FlowcellRunMetrics aggregates flowcell-level QC data for one run.
type FlowcellRunMetrics struct {
	EntityType string              `json:"entity_type" yaml:"entity_type"`
	Name       string              `json:"name" yaml:"name"`
	RunInfo    *RunInfo            `json:"run_info,omitempty" yaml:"run_info,omitempty"`
	Lanes      map[int]LaneMetrics `json:"lanes" yaml:"lanes"`
}

// parseCacheSize bounds the per-process cache of parsed metrics files; report
// generation revisits the same flowcell-level files for every sample.
const parseCacheSize = 256

// Collector scans a run directory once and resolves metrics files for
// samples and lanes by name pattern.
type Collector struct {
	dir    string
	files  []string
	cache  *lru.Cache[string, any]
	logger *zap.SugaredLogger
}

// NewCollector walks dir and indexes every regular file below it.
func NewCollector(dir string, logger *zap.SugaredLogger) (*Collector, error) {
	cache, err := lru.New[string, any](parseCacheSize)
	if err != nil {
		return nil, err
	}

	c := &Collector{dir: dir, cache: cache, logger: logger}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			c.files = append(c.files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning run directory %s: %w", dir, err)
	}
	return c, nil
}

// filterFiles returns the indexed files whose run-relative path matches the
// pattern, as absolute paths.
func (c *Collector) filterFiles(pattern *regexp.Regexp) []string {
	var out []string
	for _, f := range c.files {
		if pattern.MatchString(f) {
			out = append(out, filepath.Join(c.dir, f))
		}
	}
	return out
}

func (c *Collector) open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

func cached[T any](c *Collector, path string, parse func(io.Reader) (T, error)) (T, error) {
	if v, ok := c.cache.Get(path); ok {
		return v.(T), nil
	}
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer f.Close()
	v, err := parse(f)
	if err != nil {
		return zero, err
	}
	c.cache.Add(path, v)
	return v, nil
}

// CollectSample gathers all QC metrics for one sample of the run. Missing
// metrics files are logged and skipped, matching how runs look before every
// pipeline step has finished.
func (c *Collector) CollectSample(sample core.Sample, run core.RunID) (*SampleRunMetrics, error) {
	date := run.Date.Format("060102")
	m := &SampleRunMetrics{
		EntityType:  "sample_run_metrics",
		Name:        sample.RunName(date, run.Flowcell),
		Project:     sample.Project,
		Lane:        sample.Lane,
		Date:        date,
		Flowcell:    run.Flowcell,
		BarcodeID:   sample.BarcodeID,
		BarcodeName: sample.BarcodeName,
		Sequence:    sample.Sequence,
	}

	c.collectSampleBarcode(m)
	c.collectSampleFilter(m)
	c.collectSampleFastqScreen(m)
	c.collectSamplePicard(m)

	return m, nil
}

func (c *Collector) collectSampleBarcode(m *SampleRunMetrics) {
	pattern := regexp.MustCompile(fmt.Sprintf(`(^|/)%d_[0-9]+_[0-9A-Za-z]+(_nophix)?[._]bc[._]metrics$`, m.Lane))
	files := c.filterFiles(pattern)
	if len(files) == 0 {
		c.logger.Debugw("no barcode metrics", "sample", m.Name)
		return
	}
	counts, err := cached(c, files[0], ParseBarcodeMetrics)
	if err != nil {
		c.logger.Warnw("unreadable barcode metrics", "sample", m.Name, "file", files[0], "error", err)
		return
	}
	if n, ok := counts[strconv.Itoa(m.BarcodeID)]; ok {
		m.BarcodeCount = &n
	}
}

func (c *Collector) collectSampleFilter(m *SampleRunMetrics) {
	pattern := regexp.MustCompile(fmt.Sprintf(`(^|/)%d_[0-9]+_[0-9A-Za-z]+_%d(_nophix)?\.filter_metrics$`, m.Lane, m.BarcodeID))
	files := c.filterFiles(pattern)
	if len(files) == 0 {
		c.logger.Debugw("no filter metrics", "sample", m.Name)
		return
	}
	fm, err := cached(c, files[0], ParseFilterMetrics)
	if err != nil {
		c.logger.Warnw("unreadable filter metrics", "sample", m.Name, "file", files[0], "error", err)
		return
	}
	m.FilterMetrics = &fm
}

func (c *Collector) collectSampleFastqScreen(m *SampleRunMetrics) {
	pattern := regexp.MustCompile(fmt.Sprintf(`(^|/)%d_[0-9]+_[0-9A-Za-z]+(_nophix)?_%d_[12]_fastq_screen\.txt$`, m.Lane, m.BarcodeID))
	files := c.filterFiles(pattern)
	if len(files) == 0 {
		c.logger.Debugw("no fastq_screen metrics", "sample", m.Name)
		return
	}
	fs, err := cached(c, files[0], ParseFastqScreenMetrics)
	if err != nil {
		c.logger.Warnw("unreadable fastq_screen metrics", "sample", m.Name, "file", files[0], "error", err)
		return
	}
	m.FastqScreen = fs
}

func (c *Collector) collectSamplePicard(m *SampleRunMetrics) {
	pattern := regexp.MustCompile(fmt.Sprintf(
		`(^|/)(%d_[0-9]+_[0-9A-Za-z]+(_nophix)?_%d-.*|%d_[0-9]+_[0-9A-Za-z]+_%d(_nophix)?-.*)\.(align|hs|insert|dup)_metrics$`,
		m.Lane, m.BarcodeID, m.Lane, m.BarcodeID))
	files := c.filterFiles(pattern)
	if len(files) == 0 {
		c.logger.Debugw("no picard metrics", "sample", m.Name)
		return
	}
	metrics, err := ExtractPicardMetrics(c.open, files)
	if err != nil {
		c.logger.Warnw("unreadable picard metrics", "sample", m.Name, "error", err)
		return
	}
	m.Picard = metrics
}

// CollectFlowcell gathers flowcell-level QC data: the RunInfo descriptor and
// per-lane filter and barcode metrics.
func (c *Collector) CollectFlowcell(run core.RunID) (*FlowcellRunMetrics, error) {
	m := &FlowcellRunMetrics{
		EntityType: "flowcell_run_metrics",
		Name:       run.FlowcellName(),
		Lanes:      make(map[int]LaneMetrics),
	}

	runInfoPath := filepath.Join(c.dir, "RunInfo.xml")
	if f, err := os.Open(runInfoPath); err == nil {
		info, perr := ParseRunInfo(f)
		f.Close()
		if perr != nil {
			c.logger.Warnw("unreadable RunInfo.xml", "file", runInfoPath, "error", perr)
		} else {
			m.RunInfo = info
		}
	} else {
		c.logger.Warnw("no RunInfo.xml", "file", runInfoPath)
	}

	laneCount := 8
	if m.RunInfo != nil {
		if n, err := strconv.Atoi(m.RunInfo.FlowcellLayout.LaneCount); err == nil && n > 0 {
			laneCount = n
		}
	}

	for lane := 1; lane <= laneCount; lane++ {
		lm := LaneMetrics{Lane: lane}

		filterPattern := regexp.MustCompile(fmt.Sprintf(`(^|/)%d_[0-9]+_[0-9A-Za-z]+(_nophix)?\.filter_metrics$`, lane))
		if files := c.filterFiles(filterPattern); len(files) > 0 {
			if fm, err := cached(c, files[0], ParseFilterMetrics); err == nil {
				lm.FilterMetrics = &fm
			} else {
				c.logger.Warnw("unreadable filter metrics", "lane", lane, "file", files[0], "error", err)
			}
		}

		bcPattern := regexp.MustCompile(fmt.Sprintf(`(^|/)%d_[0-9]+_[0-9A-Za-z]+(_nophix)?[._]bc[._]metrics$`, lane))
		if files := c.filterFiles(bcPattern); len(files) > 0 {
			if counts, err := cached(c, files[0], ParseBarcodeMetrics); err == nil {
				lm.BarcodeCounts = counts
			} else {
				c.logger.Warnw("unreadable barcode metrics", "lane", lane, "file", files[0], "error", err)
			}
		}

		m.Lanes[lane] = lm
	}

	return m, nil
}
