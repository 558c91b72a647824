package cmd

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwright/gridwright/pkg/entity"
	"github.com/gridwright/gridwright/pkg/ingest"
)

func writeDataDir(t *testing.T, clientsCSV, workersCSV, tasksCSV string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"clients.csv": clientsCSV,
		"workers.csv": workersCSV,
		"tasks.csv":   tasksCSV,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

const (
	cleanClientsCSV = "ClientID,ClientName,PriorityLevel,RequestedTaskIDs,GroupTag,AttributesJSON\n" +
		"C1,Acme,3,T1,alpha,{}\n"
	cleanWorkersCSV = "WorkerID,WorkerName,Skills,AvailableSlots,MaxLoadPerPhase,WorkerGroup,QualificationLevel\n" +
		"W1,Ada,welding,\"[1,2]\",1,alpha,2\n"
	cleanTasksCSV = "TaskID,TaskName,Category,Duration,RequiredSkills,PreferredPhases,MaxConcurrent\n" +
		"T1,Weld,fab,2,welding,1-2,1\n"
)

func runCommand(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	return rootCmd.Execute()
}

func TestValidateCommand_CleanData(t *testing.T) {
	dir := writeDataDir(t, cleanClientsCSV, cleanWorkersCSV, cleanTasksCSV)
	out := filepath.Join(t.TempDir(), "findings.jsonl")

	err := runCommand(t, "validate", "--data", dir, "--output", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	// Only the summary record for clean data.
	var record struct {
		Type string `json:"type"`
		Data struct {
			Clean    bool `json:"clean"`
			Findings int  `json:"findings"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, "gridwright.summary.v1", record.Type)
	assert.True(t, record.Data.Clean)
	assert.Zero(t, record.Data.Findings)
}

func TestValidateCommand_FindingsSetExitError(t *testing.T) {
	badClients := "ClientID,ClientName,PriorityLevel,RequestedTaskIDs,GroupTag,AttributesJSON\n" +
		"C1,Acme,9,T404,alpha,not-json\n"
	dir := writeDataDir(t, badClients, cleanWorkersCSV, cleanTasksCSV)
	out := filepath.Join(t.TempDir(), "findings.jsonl")

	err := runCommand(t, "validate", "--data", dir, "--output", out)
	require.Error(t, err)

	var coded *exitCodeError
	require.True(t, errors.As(err, &coded))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "gridwright.finding.v1")
	assert.Contains(t, string(data), "PriorityLevel")
}

func TestValidateCommand_EmptyDir(t *testing.T) {
	err := runCommand(t, "validate", "--data", t.TempDir())
	require.Error(t, err)

	var coded *exitCodeError
	require.True(t, errors.As(err, &coded))
}

func TestLoadDatasetsMergesSameKind(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tasks_a.csv"),
		[]byte("TaskID,TaskName,Category,Duration,RequiredSkills,PreferredPhases,MaxConcurrent\nT1,Weld,fab,2,welding,1,1\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tasks_b.csv"),
		[]byte("TaskID,TaskName,Category,Duration,RequiredSkills,PreferredPhases,MaxConcurrent\nT2,Cut,fab,1,cutting,2,1\n"), 0644))

	files, err := ingest.DiscoverFiles(dir, nil)
	require.NoError(t, err)

	rowSets := loadDatasets(files)
	assert.Len(t, rowSets[entity.Tasks], 2)
}
