package entity

// FieldType is the canonical post-normalization type of a field.
type FieldType int

const (
	// FieldString is a non-empty string.
	FieldString FieldType = iota

	// FieldNumber is a float64; must be finite and within bounds.
	FieldNumber

	// FieldInt is a float64 constrained to an integral value within bounds.
	FieldInt

	// FieldStringList is a non-empty []string with non-empty elements.
	FieldStringList

	// FieldIntList is a non-empty []int with elements >= 1.
	FieldIntList

	// FieldJSON is a string that must parse as JSON. The value is kept as
	// the raw string; only parseability is checked.
	FieldJSON
)

// FieldSpec declares the canonical shape of one field. The spec table is
// the single source of truth for the normalizer, the schema validator,
// and column derivation.
type FieldSpec struct {
	// Name is the canonical column name.
	Name string

	// Type is the canonical post-normalization type.
	Type FieldType

	// Min and Max bound numeric fields (inclusive). Max of 0 means
	// unbounded above.
	Min float64
	Max float64

	// Identity marks the unique-identifier column of the entity.
	Identity bool

	// Range permits "a-b" inclusive range notation for an int-list field.
	Range bool

	// RequiredMessage is the validation message for a missing or empty
	// value. Empty means a generic message is derived from the name.
	RequiredMessage string
}

var clientSpecs = []FieldSpec{
	{Name: "ClientID", Type: FieldString, Identity: true, RequiredMessage: "ClientID is required"},
	{Name: "ClientName", Type: FieldString, RequiredMessage: "ClientName is required"},
	{Name: "PriorityLevel", Type: FieldInt, Min: 1, Max: 5},
	{Name: "RequestedTaskIDs", Type: FieldStringList, RequiredMessage: "At least one TaskID is required"},
	{Name: "GroupTag", Type: FieldString, RequiredMessage: "GroupTag is required"},
	{Name: "AttributesJSON", Type: FieldJSON},
}

var workerSpecs = []FieldSpec{
	{Name: "WorkerID", Type: FieldString, Identity: true},
	{Name: "WorkerName", Type: FieldString},
	{Name: "Skills", Type: FieldStringList, RequiredMessage: "At least one skill is required"},
	{Name: "AvailableSlots", Type: FieldIntList, RequiredMessage: "At least one slot is required"},
	{Name: "MaxLoadPerPhase", Type: FieldInt, Min: 1},
	{Name: "WorkerGroup", Type: FieldString},
	{Name: "QualificationLevel", Type: FieldInt, Min: 1},
}

var taskSpecs = []FieldSpec{
	{Name: "TaskID", Type: FieldString, Identity: true},
	{Name: "TaskName", Type: FieldString},
	{Name: "Category", Type: FieldString},
	{Name: "Duration", Type: FieldNumber, Min: 1},
	{Name: "RequiredSkills", Type: FieldStringList, RequiredMessage: "At least one skill is required"},
	{Name: "PreferredPhases", Type: FieldIntList, Range: true, RequiredMessage: "At least one preferred phase required"},
	{Name: "MaxConcurrent", Type: FieldNumber, Min: 1},
}

// Specs returns the declarative field specs for kind, in column order.
// The returned slice must not be mutated.
func Specs(kind Kind) []FieldSpec {
	switch kind {
	case Clients:
		return clientSpecs
	case Workers:
		return workerSpecs
	case Tasks:
		return taskSpecs
	}
	return nil
}

// Spec returns the spec for a single field of kind, if it exists.
func Spec(kind Kind, field string) (FieldSpec, bool) {
	for _, s := range Specs(kind) {
		if s.Name == field {
			return s, true
		}
	}
	return FieldSpec{}, false
}

// Columns returns the schema-ordered column names for kind.
func Columns(kind Kind) []string {
	specs := Specs(kind)
	cols := make([]string, len(specs))
	for i, s := range specs {
		cols[i] = s.Name
	}
	return cols
}

// IDField returns the identity column name for kind ("ClientID",
// "WorkerID", or "TaskID").
func IDField(kind Kind) string {
	for _, s := range Specs(kind) {
		if s.Identity {
			return s.Name
		}
	}
	return ""
}
