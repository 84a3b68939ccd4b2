// Package deliver stages sequencing data files into a project's delivery
// inbox, checksumming every file and recording a manifest of what was
// delivered.
package deliver

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"pm/core"
)

// FileRecord is one delivered file in a manifest.
type FileRecord struct {
	Name string `json:"name" yaml:"name"`
	Size int64  `json:"size" yaml:"size"`
	MD5  string `json:"md5" yaml:"md5"`
}

// Manifest records a completed (or planned, for dry runs) delivery.
type Manifest struct {
	ID          string       `json:"id" yaml:"id"`
	Project     string       `json:"project" yaml:"project"`
	Destination string       `json:"destination" yaml:"destination"`
	DryRun      bool         `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	CreatedAt   time.Time    `json:"created_at" yaml:"created_at"`
	Files       []FileRecord `json:"files" yaml:"files"`
}

// TotalSize sums the sizes of all files in the manifest.
func (m *Manifest) TotalSize() int64 {
	var total int64
	for _, f := range m.Files {
		total += f.Size
	}
	return total
}

// ResolveSampleFiles finds the fastq files of a sample inside a run
// directory: <lane>_<date>_<flowcell>_<barcode id>_<read>.fastq, optionally
// gzipped.
func ResolveSampleFiles(runDir string, sample core.Sample, run core.RunID) ([]string, error) {
	pattern := regexp.MustCompile(fmt.Sprintf(`^%d_%s_%s_%d_[12]\.fastq(\.gz)?$`,
		sample.Lane, run.Date.Format("060102"), regexp.QuoteMeta(run.Flowcell), sample.BarcodeID))

	dirents, err := os.ReadDir(runDir)
	if err != nil {
		return nil, fmt.Errorf("reading run directory %s: %w", runDir, err)
	}

	var files []string
	for _, d := range dirents {
		if !d.IsDir() && pattern.MatchString(d.Name()) {
			files = append(files, filepath.Join(runDir, d.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Stager copies source files into a delivery destination.
type Stager struct {
	Logger *zap.SugaredLogger
	// DryRun plans the delivery (sizes, checksums of sources) without
	// writing anything under the destination
	DryRun bool
	// Progress draws a byte progress bar on stderr
	Progress bool
}

// Stage copies sources into destDir and returns the manifest. The
// destination directory is created as needed. Existing files are refused,
// never overwritten.
func (s *Stager) Stage(ctx context.Context, project string, sources []string, destDir string) (*Manifest, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("nothing to deliver")
	}

	manifest := &Manifest{
		ID:          uuid.New().String(),
		Project:     project,
		Destination: destDir,
		DryRun:      s.DryRun,
		CreatedAt:   time.Now().UTC(),
	}

	var total int64
	for _, src := range sources {
		info, err := os.Stat(src)
		if err != nil {
			return nil, fmt.Errorf("source file: %w", err)
		}
		total += info.Size()
	}

	if !s.DryRun {
		if err := os.MkdirAll(destDir, 0755); err != nil {
			return nil, fmt.Errorf("creating delivery destination: %w", err)
		}
	}

	var bar *pb.ProgressBar
	if s.Progress && !s.DryRun {
		// stdout carries rendered command output; the bar goes to stderr
		bar = pb.Full.New(int(total))
		bar.Set(pb.Bytes, true)
		bar.SetWriter(os.Stderr)
		bar.SetTotal(total)
		bar.Start()
		defer bar.Finish()
	}

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := s.stageFile(src, destDir, bar)
		if err != nil {
			return nil, err
		}
		manifest.Files = append(manifest.Files, rec)
		s.Logger.Debugw("staged", "file", rec.Name, "size", rec.Size, "md5", rec.MD5, "dry_run", s.DryRun)
	}

	return manifest, nil
}

func (s *Stager) stageFile(src, destDir string, bar *pb.ProgressBar) (FileRecord, error) {
	name := filepath.Base(src)
	rec := FileRecord{Name: name}

	in, err := os.Open(src)
	if err != nil {
		return rec, fmt.Errorf("opening source %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return rec, err
	}
	rec.Size = info.Size()

	hash := md5.New()
	var reader io.Reader = in
	if bar != nil {
		reader = bar.NewProxyReader(in)
	}

	if s.DryRun {
		if _, err := io.Copy(hash, reader); err != nil {
			return rec, fmt.Errorf("checksumming %s: %w", src, err)
		}
		rec.MD5 = hex.EncodeToString(hash.Sum(nil))
		return rec, nil
	}

	dest := filepath.Join(destDir, name)
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return rec, fmt.Errorf("creating %s: %w", dest, err)
	}

	if _, err := io.Copy(io.MultiWriter(out, hash), reader); err != nil {
		out.Close()
		os.Remove(dest)
		return rec, fmt.Errorf("copying %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return rec, fmt.Errorf("closing %s: %w", dest, err)
	}

	rec.MD5 = hex.EncodeToString(hash.Sum(nil))
	return rec, nil
}

// WriteManifest stores the manifest as YAML next to the delivered files.
func WriteManifest(m *Manifest, destDir string) (string, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", err
	}
	path := filepath.Join(destDir, fmt.Sprintf("delivery-%s.yaml", m.ID))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing manifest: %w", err)
	}
	return path, nil
}
