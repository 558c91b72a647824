package report

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwright/gridwright/pkg/entity"
	"github.com/gridwright/gridwright/pkg/validate"
)

// decodeLines parses every JSONL line in buf.
func decodeLines(t *testing.T, buf *bytes.Buffer) []Record {
	t.Helper()
	var records []Record
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())
	return records
}

func TestJSONLWriter_WriteFinding(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "session-1")

	err := w.WriteFinding(context.Background(), &FindingRecord{
		Entity:   "clients",
		RowIndex: 2,
		Field:    "PriorityLevel",
		Message:  "PriorityLevel must be between 1 and 5",
	})
	require.NoError(t, err)

	records := decodeLines(t, &buf)
	require.Len(t, records, 1)
	assert.Equal(t, TypeFinding, records[0].Type)
	assert.Equal(t, "session-1", records[0].SessionID)
	assert.False(t, records[0].TS.IsZero())

	var f FindingRecord
	require.NoError(t, json.Unmarshal(records[0].Data, &f))
	assert.Equal(t, 2, f.RowIndex)
	assert.Equal(t, "PriorityLevel", f.Field)
}

func TestJSONLWriter_Closed(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "session-1")
	require.NoError(t, w.Close())

	err := w.WriteSummary(context.Background(), &SummaryRecord{})
	assert.True(t, errors.Is(err, ErrWriterClosed))
}

func TestJSONLWriter_CancelledContext(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "session-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, w.WriteFinding(ctx, &FindingRecord{}))
	assert.Zero(t, buf.Len())
}

func TestJSONLWriter_ConcurrentLinesNotInterleaved(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "session-1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = w.WriteFinding(context.Background(), &FindingRecord{RowIndex: i})
		}(i)
	}
	wg.Wait()

	records := decodeLines(t, &buf)
	assert.Len(t, records, 20)
}

func TestWriteErrors_DeterministicOrder(t *testing.T) {
	errs := validate.Errors{}
	errs.Add(entity.Workers, 1, "Skills", "A comma-separated list of skills is required")
	errs.Add(entity.Clients, 3, "PriorityLevel", "PriorityLevel must be between 1 and 5")
	errs.Add(entity.Clients, 0, "ClientID", "Duplicate ClientID found")
	errs.Add(entity.Clients, 0, "AttributesJSON", "Invalid JSON")

	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "session-1")
	require.NoError(t, WriteErrors(context.Background(), w, errs))

	records := decodeLines(t, &buf)
	require.Len(t, records, 4)

	var got []string
	for _, rec := range records {
		var f FindingRecord
		require.NoError(t, json.Unmarshal(rec.Data, &f))
		got = append(got, f.Entity+"/"+f.Field)
	}
	assert.Equal(t, []string{
		"clients/AttributesJSON",
		"clients/ClientID",
		"clients/PriorityLevel",
		"workers/Skills",
	}, got)
}

func TestSummarize(t *testing.T) {
	datasets := map[entity.Kind]*entity.Dataset{
		entity.Clients: entity.NewDataset(entity.Clients, []entity.Row{{}, {}}),
		entity.Tasks:   entity.NewDataset(entity.Tasks, []entity.Row{{}}),
	}
	errs := validate.Errors{}
	errs.Add(entity.Clients, 0, "ClientID", "ClientID is required")

	sum := Summarize(datasets, errs, 250*time.Millisecond)
	assert.Equal(t, 3, sum.RowsValidated)
	assert.Equal(t, 2, sum.RowsByEntity["clients"])
	assert.Equal(t, 1, sum.Findings)
	assert.False(t, sum.Clean)
	assert.Equal(t, "250ms", sum.DurationHuman)

	clean := Summarize(datasets, validate.Errors{}, time.Second)
	assert.True(t, clean.Clean)
}
