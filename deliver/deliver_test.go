package deliver

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"pm/core"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestResolveSampleFiles(t *testing.T) {
	runDir := t.TempDir()

	run := core.RunID{
		Date:       time.Date(2013, 5, 2, 0, 0, 0, 0, time.UTC),
		Instrument: "SN0002",
		Number:     3,
		Flowcell:   "AC003CCCXX",
	}
	sample := core.Sample{Name: "P001_101", Project: "J.Doe_13_01", Lane: 1, BarcodeID: 3}

	writeFile(t, runDir, "1_130502_AC003CCCXX_3_1.fastq", "@r1\n")
	writeFile(t, runDir, "1_130502_AC003CCCXX_3_2.fastq.gz", "gz")
	// other barcode, other lane, unrelated file
	writeFile(t, runDir, "1_130502_AC003CCCXX_4_1.fastq", "@r1\n")
	writeFile(t, runDir, "2_130502_AC003CCCXX_3_1.fastq", "@r1\n")
	writeFile(t, runDir, "notes.txt", "x")

	files, err := ResolveSampleFiles(runDir, sample, run)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(runDir, "1_130502_AC003CCCXX_3_1.fastq"), files[0])
	assert.Equal(t, filepath.Join(runDir, "1_130502_AC003CCCXX_3_2.fastq.gz"), files[1])
}

func TestResolveSampleFilesMissingDir(t *testing.T) {
	_, err := ResolveSampleFiles(filepath.Join(t.TempDir(), "nope"), core.Sample{}, core.RunID{})
	assert.Error(t, err)
}

func TestStageCopiesAndChecksums(t *testing.T) {
	srcDir := t.TempDir()
	destDir := filepath.Join(t.TempDir(), "inbox", "J.Doe_13_01")

	a := writeFile(t, srcDir, "a.fastq", "AAAA\n")
	b := writeFile(t, srcDir, "b.fastq", "CCCCCCCC\n")

	s := &Stager{Logger: testLogger()}
	m, err := s.Stage(context.Background(), "J.Doe_13_01", []string{a, b}, destDir)
	require.NoError(t, err)

	require.Len(t, m.Files, 2)
	assert.Equal(t, "J.Doe_13_01", m.Project)
	assert.Equal(t, destDir, m.Destination)
	assert.False(t, m.DryRun)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, int64(14), m.TotalSize())

	wantSum := md5.Sum([]byte("AAAA\n"))
	assert.Equal(t, hex.EncodeToString(wantSum[:]), m.Files[0].MD5)

	// copies landed with identical content
	got, err := os.ReadFile(filepath.Join(destDir, "a.fastq"))
	require.NoError(t, err)
	assert.Equal(t, "AAAA\n", string(got))
}

func TestStageDryRunWritesNothing(t *testing.T) {
	srcDir := t.TempDir()
	destDir := filepath.Join(t.TempDir(), "inbox")

	a := writeFile(t, srcDir, "a.fastq", "AAAA\n")

	s := &Stager{Logger: testLogger(), DryRun: true}
	m, err := s.Stage(context.Background(), "J.Doe_13_01", []string{a}, destDir)
	require.NoError(t, err)

	assert.True(t, m.DryRun)
	require.Len(t, m.Files, 1)
	assert.NotEmpty(t, m.Files[0].MD5, "dry run still checksums sources")

	_, err = os.Stat(destDir)
	assert.True(t, os.IsNotExist(err), "dry run must not create the destination")
}

func TestStageRefusesOverwrite(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	a := writeFile(t, srcDir, "a.fastq", "new\n")
	writeFile(t, destDir, "a.fastq", "already delivered\n")

	s := &Stager{Logger: testLogger()}
	_, err := s.Stage(context.Background(), "J.Doe_13_01", []string{a}, destDir)
	require.Error(t, err)

	got, readErr := os.ReadFile(filepath.Join(destDir, "a.fastq"))
	require.NoError(t, readErr)
	assert.Equal(t, "already delivered\n", string(got))
}

func TestStageEmptySources(t *testing.T) {
	s := &Stager{Logger: testLogger()}
	_, err := s.Stage(context.Background(), "J.Doe_13_01", nil, t.TempDir())
	assert.Error(t, err)
}

func TestStageCancelledContext(t *testing.T) {
	srcDir := t.TempDir()
	a := writeFile(t, srcDir, "a.fastq", "AAAA\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &Stager{Logger: testLogger()}
	_, err := s.Stage(ctx, "J.Doe_13_01", []string{a}, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteManifest(t *testing.T) {
	destDir := t.TempDir()
	m := &Manifest{
		ID:          "d3adb33f",
		Project:     "J.Doe_13_01",
		Destination: destDir,
		CreatedAt:   time.Now().UTC(),
		Files:       []FileRecord{{Name: "a.fastq", Size: 5, MD5: "abc"}},
	}

	path, err := WriteManifest(m, destDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(destDir, "delivery-d3adb33f.yaml"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Manifest
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, m.ID, got.ID)
	require.Len(t, got.Files, 1)
	assert.Equal(t, "a.fastq", got.Files[0].Name)
}
