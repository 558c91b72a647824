package workspace

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwright/gridwright/pkg/entity"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	w := loadedWorkspace(t)
	w.Propose(entity.Clients, &Proposal{
		Changes: map[int]map[string]any{0: {"GroupTag": "s"}},
	})
	w.AcceptAll(entity.Clients)
	require.NoError(t, w.UpdateCell(entity.Workers, 0, "AvailableSlots", "not-json-["))

	path := filepath.Join(t.TempDir(), "state", "workspace.json")
	require.NoError(t, w.Save(path))

	restored := New()
	defer restored.Close()
	require.NoError(t, restored.Load(path))

	// Typed values survive the trip.
	rows := restored.Dataset(entity.Tasks).Rows
	assert.Equal(t, []int{1, 2}, rows[0]["PreferredPhases"])
	assert.Equal(t, 2.0, rows[0]["Duration"])

	// The invalid sentinel survives and still draws its field error.
	assert.True(t, entity.IsInvalid(restored.Dataset(entity.Workers).Rows[0]["AvailableSlots"]))
	errs := restored.Errors()
	require.Contains(t, errs, entity.Workers)
	assert.Contains(t, errs[entity.Workers][0], "AvailableSlots")

	// Confirmed markers survive; pending proposals do not.
	assert.True(t, restored.IsConfirmed(entity.Clients, 0, "GroupTag"))
	assert.Nil(t, restored.Pending(entity.Clients))
}

func TestSnapshot_EncodesNaN(t *testing.T) {
	w := loadedWorkspace(t)
	require.NoError(t, w.UpdateCell(entity.Tasks, 0, "Duration", "lots"))

	path := filepath.Join(t.TempDir(), "workspace.json")
	require.NoError(t, w.Save(path))

	restored := New()
	defer restored.Close()
	require.NoError(t, restored.Load(path))

	d, ok := restored.Dataset(entity.Tasks).Rows[0]["Duration"].(float64)
	require.True(t, ok)
	assert.True(t, math.IsNaN(d))
	assert.Contains(t, restored.Errors()[entity.Tasks][0], "Duration")
}

func TestSnapshot_LoadErrors(t *testing.T) {
	w := New()
	defer w.Close()

	t.Run("missing file", func(t *testing.T) {
		assert.Error(t, w.Load(filepath.Join(t.TempDir(), "nope.json")))
	})

	t.Run("garbage file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{{{"), 0644))
		assert.Error(t, w.Load(path))
	})

	t.Run("wrong version", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "v99.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"version":99}`), 0644))
		assert.Error(t, w.Load(path))
	})
}
