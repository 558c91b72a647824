package workspace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwright/gridwright/pkg/entity"
)

func rawClients() []entity.Row {
	return []entity.Row{
		{"ClientID": "C1", "ClientName": "Acme", "PriorityLevel": "3",
			"RequestedTaskIDs": "T1", "GroupTag": "g", "AttributesJSON": `{"budget":1}`},
		{"ClientID": "C2", "ClientName": "Globex", "PriorityLevel": "2",
			"RequestedTaskIDs": "T1,T2", "GroupTag": "g", "AttributesJSON": "{}"},
	}
}

func rawWorkers() []entity.Row {
	return []entity.Row{
		{"WorkerID": "W1", "WorkerName": "Ada", "Skills": "go,sql",
			"AvailableSlots": "[1,2]", "MaxLoadPerPhase": "2",
			"WorkerGroup": "core", "QualificationLevel": "2"},
	}
}

func rawTasks() []entity.Row {
	return []entity.Row{
		{"TaskID": "T1", "TaskName": "Build", "Category": "eng", "Duration": "2",
			"RequiredSkills": "go", "PreferredPhases": "1-2", "MaxConcurrent": "1"},
		{"TaskID": "T2", "TaskName": "Ship", "Category": "eng", "Duration": "1",
			"RequiredSkills": "sql", "PreferredPhases": "[1]", "MaxConcurrent": "1"},
	}
}

func loadedWorkspace(t *testing.T, opts ...Option) *Workspace {
	t.Helper()
	w := New(opts...)
	t.Cleanup(w.Close)
	require.NoError(t, w.ReplaceDataset(entity.Clients, rawClients()))
	require.NoError(t, w.ReplaceDataset(entity.Workers, rawWorkers()))
	require.NoError(t, w.ReplaceDataset(entity.Tasks, rawTasks()))
	return w
}

func TestReplaceDataset_NormalizesAndValidates(t *testing.T) {
	w := loadedWorkspace(t)

	ds := w.Dataset(entity.Tasks)
	require.NotNil(t, ds)
	assert.Equal(t, []int{1, 2}, ds.Rows[0]["PreferredPhases"])
	assert.Equal(t, entity.Columns(entity.Tasks), ds.Columns)

	// Everything uploaded is internally consistent: no errors at all.
	assert.Empty(t, w.Errors())
	assert.True(t, w.Ready())
}

func TestReplaceDataset_RejectsUnknownKind(t *testing.T) {
	w := New()
	defer w.Close()
	assert.Error(t, w.ReplaceDataset(entity.Kind("projects"), nil))
}

func TestReady_RequiresAllThreeDatasets(t *testing.T) {
	w := New()
	defer w.Close()
	require.NoError(t, w.ReplaceDataset(entity.Clients, rawClients()))
	assert.False(t, w.Ready())
	require.NoError(t, w.ReplaceDataset(entity.Workers, rawWorkers()))
	assert.False(t, w.Ready())
	require.NoError(t, w.ReplaceDataset(entity.Tasks, rawTasks()))
	assert.True(t, w.Ready())

	// An empty dataset is valid but not ready.
	require.NoError(t, w.ReplaceDataset(entity.Tasks, nil))
	assert.False(t, w.Ready())
}

// A worker row with an unparsable AvailableSlots cell shows a field
// error on exactly that field, not a crash, not a blank row.
func TestWorkspace_InvalidCellSurfacesAsFieldError(t *testing.T) {
	w := loadedWorkspace(t)
	require.NoError(t, w.UpdateCell(entity.Workers, 0, "AvailableSlots", "not-json-["))

	errs := w.Errors()
	require.Contains(t, errs, entity.Workers)
	assert.Equal(t, "AvailableSlots could not be parsed as a list",
		errs[entity.Workers][0]["AvailableSlots"])
}

// Two clients sharing an ID both carry the duplicate error.
func TestWorkspace_DuplicateIDsMarkAllRows(t *testing.T) {
	w := loadedWorkspace(t)
	rows := rawClients()
	rows[1]["ClientID"] = "C1"
	require.NoError(t, w.ReplaceDataset(entity.Clients, rows))

	errs := w.Errors()
	require.Contains(t, errs, entity.Clients)
	assert.Equal(t, "Duplicate ClientID found", errs[entity.Clients][0]["ClientID"])
	assert.Equal(t, "Duplicate ClientID found", errs[entity.Clients][1]["ClientID"])
}

// Absence means clean: fixing a row's last error removes the row entry,
// and clearing the entity's last errored row removes the entity key.
func TestWorkspace_ErrorMapAbsenceInvariant(t *testing.T) {
	w := loadedWorkspace(t)
	require.NoError(t, w.UpdateCell(entity.Clients, 0, "PriorityLevel", "9"))

	errs := w.Errors()
	require.Contains(t, errs, entity.Clients)
	require.Contains(t, errs[entity.Clients], 0)

	require.NoError(t, w.UpdateCell(entity.Clients, 0, "PriorityLevel", "4"))
	errs = w.Errors()
	assert.NotContains(t, errs, entity.Clients)
}

func TestUpdateCell_OutOfRange(t *testing.T) {
	w := loadedWorkspace(t)
	assert.Error(t, w.UpdateCell(entity.Clients, 99, "GroupTag", "x"))
	assert.Error(t, w.UpdateCell(entity.Clients, -1, "GroupTag", "x"))
}

// An edit that breaks a cross-entity reference on a *different* entity
// is caught when that entity revalidates; a full pass reconciles both.
func TestWorkspace_CrossEntityAfterEdit(t *testing.T) {
	w := loadedWorkspace(t)
	require.NoError(t, w.UpdateCell(entity.Clients, 1, "RequestedTaskIDs", "T1,T9"))

	errs := w.Errors()
	require.Contains(t, errs, entity.Clients)
	assert.Contains(t, errs[entity.Clients][1]["RequestedTaskIDs"], "T9")
}

func TestPropose_Lifecycle(t *testing.T) {
	w := loadedWorkspace(t)

	w.Propose(entity.Clients, &Proposal{
		Message: "raise priorities",
		Changes: map[int]map[string]any{0: {"PriorityLevel": 5}},
	})
	p := w.Pending(entity.Clients)
	require.NotNil(t, p)
	assert.Equal(t, "raise priorities", p.Message)

	// A later proposal supersedes the earlier one.
	w.Propose(entity.Clients, &Proposal{
		Changes: map[int]map[string]any{1: {"GroupTag": "beta"}},
	})
	p = w.Pending(entity.Clients)
	require.NotNil(t, p)
	assert.NotContains(t, p.Changes, 0)

	// An empty producer response is a no-op that clears pending state.
	w.Propose(entity.Clients, nil)
	assert.Nil(t, w.Pending(entity.Clients))
}

func TestReject_LeavesDatasetAndErrorsAlone(t *testing.T) {
	w := loadedWorkspace(t)
	before := w.Dataset(entity.Clients)

	w.Propose(entity.Clients, &Proposal{
		Changes: map[int]map[string]any{0: {"PriorityLevel": 1}},
	})
	w.Reject(entity.Clients)

	assert.Nil(t, w.Pending(entity.Clients))
	assert.Equal(t, before.Rows[0]["PriorityLevel"], w.Dataset(entity.Clients).Rows[0]["PriorityLevel"])
}

// Scenario F: the user edits an unrelated field while a proposal is in
// flight; acceptance merges into the row's current state, keeping the
// user's edit.
func TestAcceptAll_MergesIntoCurrentRowState(t *testing.T) {
	w := loadedWorkspace(t)

	w.Propose(entity.Clients, &Proposal{
		Changes: map[int]map[string]any{0: {"PriorityLevel": 5}},
	})
	// Independent user edit after the proposal was produced.
	require.NoError(t, w.UpdateCell(entity.Clients, 0, "GroupTag", "edited"))

	applied := w.AcceptAll(entity.Clients)
	assert.Equal(t, 1, applied)

	row := w.Dataset(entity.Clients).Rows[0]
	assert.Equal(t, 5.0, row["PriorityLevel"])
	assert.Equal(t, "edited", row["GroupTag"])
	assert.Nil(t, w.Pending(entity.Clients))
	assert.True(t, w.IsConfirmed(entity.Clients, 0, "PriorityLevel"))
}

func TestAcceptAll_RevalidatesTouchedRows(t *testing.T) {
	w := loadedWorkspace(t)
	require.NoError(t, w.UpdateCell(entity.Clients, 0, "PriorityLevel", "9"))
	require.Contains(t, w.Errors(), entity.Clients)

	w.Propose(entity.Clients, &Proposal{
		Changes: map[int]map[string]any{0: {"PriorityLevel": 3}},
	})
	w.AcceptAll(entity.Clients)
	assert.NotContains(t, w.Errors(), entity.Clients)
}

func TestAcceptAll_SkipsRowsBeyondDataset(t *testing.T) {
	w := loadedWorkspace(t)
	w.Propose(entity.Clients, &Proposal{
		Changes: map[int]map[string]any{
			0:  {"PriorityLevel": 4},
			42: {"PriorityLevel": 1},
		},
	})
	assert.Equal(t, 1, w.AcceptAll(entity.Clients))
}

func TestAcceptCell(t *testing.T) {
	w := loadedWorkspace(t)
	w.Propose(entity.Clients, &Proposal{
		Changes: map[int]map[string]any{
			0: {"PriorityLevel": 5, "GroupTag": "suggested"},
			1: {"GroupTag": "other"},
		},
	})

	require.True(t, w.AcceptCell(entity.Clients, 0, "PriorityLevel"))
	assert.Equal(t, 5.0, w.Dataset(entity.Clients).Rows[0]["PriorityLevel"])
	assert.True(t, w.IsConfirmed(entity.Clients, 0, "PriorityLevel"))

	// Only the accepted pair left the pending set.
	p := w.Pending(entity.Clients)
	require.NotNil(t, p)
	assert.Equal(t, map[string]any{"GroupTag": "suggested"}, p.Changes[0])

	// Accepting the row's last pending field removes the row entry;
	// draining the set entirely clears it.
	require.True(t, w.AcceptCell(entity.Clients, 0, "GroupTag"))
	p = w.Pending(entity.Clients)
	require.NotNil(t, p)
	assert.NotContains(t, p.Changes, 0)
	require.True(t, w.AcceptCell(entity.Clients, 1, "GroupTag"))
	assert.Nil(t, w.Pending(entity.Clients))

	// Unknown pairs are refused.
	assert.False(t, w.AcceptCell(entity.Clients, 1, "GroupTag"))
}

func TestApplyFixes_OnlyTouchesCellsWithActiveErrors(t *testing.T) {
	w := loadedWorkspace(t)
	require.NoError(t, w.UpdateCell(entity.Clients, 0, "PriorityLevel", "nine"))
	require.NoError(t, w.UpdateCell(entity.Clients, 1, "AttributesJSON", "{broken"))

	// The user corrects one of the two cells before the fixes apply.
	require.NoError(t, w.UpdateCell(entity.Clients, 1, "AttributesJSON", `{"ok":true}`))

	applied := w.ApplyFixes(map[entity.Kind]map[int]map[string]any{
		entity.Clients: {
			0: {"PriorityLevel": 3},
			1: {"AttributesJSON": `{"stale":"fix"}`}, // stale: cell is clean now
		},
	})
	assert.Equal(t, 1, applied)

	rows := w.Dataset(entity.Clients).Rows
	assert.Equal(t, 3.0, rows[0]["PriorityLevel"])
	assert.Equal(t, `{"ok":true}`, rows[1]["AttributesJSON"])
	assert.True(t, w.IsConfirmed(entity.Clients, 0, "PriorityLevel"))
	assert.False(t, w.IsConfirmed(entity.Clients, 1, "AttributesJSON"))
	assert.NotContains(t, w.Errors(), entity.Clients)
}

func TestApplyFixes_EmptyMapIsNoOp(t *testing.T) {
	w := loadedWorkspace(t)
	assert.Equal(t, 0, w.ApplyFixes(nil))
	assert.Equal(t, 0, w.ApplyFixes(map[entity.Kind]map[int]map[string]any{}))
}

// A manual edit clears the AI-confirmed marker for that cell: the value
// no longer originates from an accepted suggestion.
func TestManualEditClearsConfirmedMarker(t *testing.T) {
	w := loadedWorkspace(t)
	w.Propose(entity.Clients, &Proposal{
		Changes: map[int]map[string]any{0: {"GroupTag": "suggested"}},
	})
	w.AcceptAll(entity.Clients)
	require.True(t, w.IsConfirmed(entity.Clients, 0, "GroupTag"))

	require.NoError(t, w.UpdateCell(entity.Clients, 0, "GroupTag", "manual"))
	assert.False(t, w.IsConfirmed(entity.Clients, 0, "GroupTag"))
}

func TestDebounce_CoalescesEditsToSameRow(t *testing.T) {
	w := loadedWorkspace(t, WithDebounce(40*time.Millisecond))

	require.NoError(t, w.UpdateCell(entity.Clients, 0, "PriorityLevel", "9"))
	// Error map untouched inside the quiescence window.
	assert.NotContains(t, w.Errors(), entity.Clients)

	// A second edit restarts the window; only the final state validates.
	require.NoError(t, w.UpdateCell(entity.Clients, 0, "PriorityLevel", "4"))

	assert.Eventually(t, func() bool {
		_, present := w.Errors()[entity.Clients]
		return !present && w.Dataset(entity.Clients).Rows[0]["PriorityLevel"] == 4.0
	}, time.Second, 10*time.Millisecond)
}

func TestDebounce_StaleFiringDoesNotTruncateWindow(t *testing.T) {
	w := loadedWorkspace(t, WithDebounce(10*time.Second))
	require.NoError(t, w.UpdateCell(entity.Clients, 0, "PriorityLevel", "9"))

	// A firing from a timer armed before the latest edit carries an
	// older generation and must leave the re-armed window intact.
	key := timerKey{kind: entity.Clients, row: 0}
	w.mu.Lock()
	liveGen := w.timers[key].gen
	w.mu.Unlock()

	w.fireRevalidate(key, liveGen-1)
	assert.NotContains(t, w.Errors(), entity.Clients)
	w.mu.Lock()
	_, armed := w.timers[key]
	w.mu.Unlock()
	assert.True(t, armed)

	// The live generation still fires exactly once.
	w.fireRevalidate(key, liveGen)
	assert.Contains(t, w.Errors(), entity.Clients)
}

func TestDebounce_BulkOperationsValidateImmediately(t *testing.T) {
	w := loadedWorkspace(t, WithDebounce(10*time.Second))

	w.Propose(entity.Clients, &Proposal{
		Changes: map[int]map[string]any{0: {"PriorityLevel": 9}},
	})
	w.AcceptAll(entity.Clients)

	// No waiting: accept-all is one logical action.
	errs := w.Errors()
	require.Contains(t, errs, entity.Clients)
	assert.Contains(t, errs[entity.Clients][0], "PriorityLevel")
}

func TestValidateRowNow_BypassesDebounce(t *testing.T) {
	w := loadedWorkspace(t, WithDebounce(10*time.Second))
	require.NoError(t, w.UpdateCell(entity.Clients, 0, "PriorityLevel", "9"))
	assert.NotContains(t, w.Errors(), entity.Clients)

	w.ValidateRowNow(entity.Clients, 0)
	assert.Contains(t, w.Errors(), entity.Clients)
}

type captureRecorder struct {
	events []ChangeEvent
}

func (c *captureRecorder) Record(ev ChangeEvent) error {
	c.events = append(c.events, ev)
	return nil
}

func TestAuditTrail_RecordsAppliedChanges(t *testing.T) {
	rec := &captureRecorder{}
	w := loadedWorkspace(t, WithRecorder(rec))

	uploads := 0
	for _, ev := range rec.events {
		if ev.Source == SourceUpload {
			uploads++
		}
	}
	assert.Equal(t, 3, uploads)

	require.NoError(t, w.UpdateCell(entity.Clients, 0, "GroupTag", "x"))
	last := rec.events[len(rec.events)-1]
	assert.Equal(t, SourceManual, last.Source)
	assert.Equal(t, entity.Clients, last.Entity)
	assert.Equal(t, "GroupTag", last.Field)
	assert.NotEmpty(t, last.ID)
}

func TestErrors_ReturnsACopy(t *testing.T) {
	w := loadedWorkspace(t)
	require.NoError(t, w.UpdateCell(entity.Clients, 0, "PriorityLevel", "9"))

	errs := w.Errors()
	errs[entity.Clients][0]["PriorityLevel"] = "tampered"

	fresh := w.Errors()
	assert.NotEqual(t, "tampered", fresh[entity.Clients][0]["PriorityLevel"])
}
