package report

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lwdecomp/internal/model"
)

func TestDiffIdenticalListsIsEmpty(t *testing.T) {
	text, err := Diff("server", []string{"A.dll", "B.dll"}, []string{"A.dll", "B.dll"})
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestDiffShowsAddedAndRemovedModules(t *testing.T) {
	text, err := Diff("client", []string{"A.dll", "Old.dll"}, []string{"A.dll", "New.dll"})
	require.NoError(t, err)
	assert.Contains(t, text, "--- previous/client")
	assert.Contains(t, text, "+++ current/client")
	assert.Contains(t, text, "-Old.dll\n")
	assert.Contains(t, text, "+New.dll\n")
}

func TestRecordModulesWritesDiffOnlyWhenChanged(t *testing.T) {
	root := t.TempDir()

	path, err := RecordModules(root, "server", []string{"A.dll", "B.dll"})
	require.NoError(t, err)
	assert.Empty(t, path, "first run has nothing to compare against")
	assert.FileExists(t, ModulesPath(root, "server"))

	path, err = RecordModules(root, "server", []string{"A.dll", "B.dll"})
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.NoFileExists(t, DiffPath(root, "server"))

	path, err = RecordModules(root, "server", []string{"A.dll", "C.dll"})
	require.NoError(t, err)
	require.Equal(t, DiffPath(root, "server"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "+C.dll")

	path, err = RecordModules(root, "server", []string{"A.dll", "C.dll"})
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.NoFileExists(t, DiffPath(root, "server"), "stale diff removed once lists match again")
}

func TestSummaryRoundTrip(t *testing.T) {
	root := t.TempDir()
	res := model.NewBatchResult("server", "/game/Server", root+"/server")
	res.Add(model.Success(model.DecompJob{Index: 1, Module: "A.dll"}, 3*time.Millisecond))
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, WriteSummary(Summary{
		RunID:      "run-1",
		GameDir:    "/game",
		OutputRoot: root,
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		Succeeded:  1,
		Batches:    []*model.BatchResult{res},
	}))

	got, err := ReadSummary(root)
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.True(t, started.Equal(got.StartedAt))
	require.Len(t, got.Batches, 1)
	assert.Equal(t, []string{"A.dll"}, got.Batches[0].Modules())
}

func TestWriteSummaryRequiresRoot(t *testing.T) {
	assert.Error(t, WriteSummary(Summary{}))
}
