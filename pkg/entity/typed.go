package entity

// Strict accessors for canonical values. These assert, they do not coerce:
// coercion is the normalizer's job, and anything that fails an assertion
// here either skipped normalization or failed it.

// String returns v as a string if it is one.
func String(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// Number returns v as a float64 if it is one. Ints are widened so that
// hand-constructed rows behave like normalized ones.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// StringList returns v as a []string if it is one.
func StringList(v any) ([]string, bool) {
	l, ok := v.([]string)
	return l, ok
}

// IntList returns v as a []int if it is one.
func IntList(v any) ([]int, bool) {
	l, ok := v.([]int)
	return l, ok
}

// Client is the typed view of a normalized client row.
type Client struct {
	ClientID         string
	ClientName       string
	PriorityLevel    int
	RequestedTaskIDs []string
	GroupTag         string
	AttributesJSON   string
}

// Worker is the typed view of a normalized worker row.
type Worker struct {
	WorkerID           string
	WorkerName         string
	Skills             []string
	AvailableSlots     []int
	MaxLoadPerPhase    int
	WorkerGroup        string
	QualificationLevel int
}

// Task is the typed view of a normalized task row.
type Task struct {
	TaskID          string
	TaskName        string
	Category        string
	Duration        float64
	RequiredSkills  []string
	PreferredPhases []int
	MaxConcurrent   float64
}

// ClientFromRow decodes a normalized row into a Client. Fields that are
// missing or carry the invalid sentinel decode to zero values; callers
// that need error detail should validate the row first.
func ClientFromRow(r Row) Client {
	var c Client
	c.ClientID, _ = String(r["ClientID"])
	c.ClientName, _ = String(r["ClientName"])
	if n, ok := Number(r["PriorityLevel"]); ok {
		c.PriorityLevel = int(n)
	}
	c.RequestedTaskIDs, _ = StringList(r["RequestedTaskIDs"])
	c.GroupTag, _ = String(r["GroupTag"])
	c.AttributesJSON, _ = String(r["AttributesJSON"])
	return c
}

// WorkerFromRow decodes a normalized row into a Worker.
func WorkerFromRow(r Row) Worker {
	var w Worker
	w.WorkerID, _ = String(r["WorkerID"])
	w.WorkerName, _ = String(r["WorkerName"])
	w.Skills, _ = StringList(r["Skills"])
	w.AvailableSlots, _ = IntList(r["AvailableSlots"])
	if n, ok := Number(r["MaxLoadPerPhase"]); ok {
		w.MaxLoadPerPhase = int(n)
	}
	w.WorkerGroup, _ = String(r["WorkerGroup"])
	if n, ok := Number(r["QualificationLevel"]); ok {
		w.QualificationLevel = int(n)
	}
	return w
}

// TaskFromRow decodes a normalized row into a Task.
func TaskFromRow(r Row) Task {
	var t Task
	t.TaskID, _ = String(r["TaskID"])
	t.TaskName, _ = String(r["TaskName"])
	t.Category, _ = String(r["Category"])
	t.Duration, _ = Number(r["Duration"])
	t.RequiredSkills, _ = StringList(r["RequiredSkills"])
	t.PreferredPhases, _ = IntList(r["PreferredPhases"])
	t.MaxConcurrent, _ = Number(r["MaxConcurrent"])
	return t
}
