package runfolder

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildRoot(t *testing.T, names ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name), 0755))
	}
	return root
}

func TestListFiltersAndSorts(t *testing.T) {
	root := buildRoot(t,
		"121015_SN0002_0004_BD003DDDXX",
		"120924_SN0002_0003_AC003CCCXX",
		"not-a-runfolder",
		"tmp",
	)
	// plain files are ignored even with run-folder-like names
	require.NoError(t, os.WriteFile(filepath.Join(root, "121101_SN0002_0005_AC004EEEXX"), nil, 0644))

	entries, err := List(root)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "120924_SN0002_0003_AC003CCCXX", entries[0].Name)
	assert.Equal(t, "121015_SN0002_0004_BD003DDDXX", entries[1].Name)
	assert.Equal(t, filepath.Join(root, entries[0].Name), entries[0].Path)
}

func TestListMissingRoot(t *testing.T) {
	_, err := List(filepath.Join(t.TempDir(), "nosuch"))
	assert.Error(t, err)
}

func TestFind(t *testing.T) {
	root := buildRoot(t, "120924_SN0002_0003_AC003CCCXX")

	e, err := Find(root, "120924_SN0002_0003_AC003CCCXX")
	require.NoError(t, err)
	assert.Equal(t, "AC003CCCXX", e.RunID.Flowcell)

	_, err = Find(root, "120101_SN0001_0001_AA000AAAXX")
	assert.Error(t, err)
}

func TestLoadRunInfo(t *testing.T) {
	root := buildRoot(t, "120924_SN0002_0003_AC003CCCXX")
	runInfo := `<RunInfo><Run Id="120924_SN0002_0003_AC003CCCXX" Number="3">
<Flowcell>AC003CCCXX</Flowcell><Instrument>SN0002</Instrument><Date>120924</Date>
</Run></RunInfo>`
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "120924_SN0002_0003_AC003CCCXX", "RunInfo.xml"),
		[]byte(runInfo), 0644))

	e, err := Find(root, "120924_SN0002_0003_AC003CCCXX")
	require.NoError(t, err)
	require.NoError(t, e.LoadRunInfo())
	assert.Equal(t, "SN0002", e.RunInfo.Instrument)
}

func TestLoadRunInfoMissing(t *testing.T) {
	root := buildRoot(t, "120924_SN0002_0003_AC003CCCXX")
	e, err := Find(root, "120924_SN0002_0003_AC003CCCXX")
	require.NoError(t, err)
	assert.Error(t, e.LoadRunInfo())
}

func TestCleanCandidates(t *testing.T) {
	root := buildRoot(t,
		"120924_SN0002_0003_AC003CCCXX",
		"121015_SN0002_0004_BD003DDDXX",
	)
	entries, err := List(root)
	require.NoError(t, err)

	now := time.Date(2012, 11, 1, 0, 0, 0, 0, time.UTC)

	// 30 day retention: only the September run is old enough
	old := CleanCandidates(entries, 30, now)
	require.Len(t, old, 1)
	assert.Equal(t, "120924_SN0002_0003_AC003CCCXX", old[0].Name)

	// 90 day retention: nothing qualifies
	assert.Empty(t, CleanCandidates(entries, 90, now))
}

func TestRemove(t *testing.T) {
	root := buildRoot(t, "120924_SN0002_0003_AC003CCCXX")
	e, err := Find(root, "120924_SN0002_0003_AC003CCCXX")
	require.NoError(t, err)

	require.NoError(t, Remove(e))
	_, statErr := os.Stat(e.Path)
	assert.True(t, os.IsNotExist(statErr))

	assert.Error(t, Remove(&Entry{Path: ""}))
}
