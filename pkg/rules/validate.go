package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/schema"

	schemasassets "github.com/gridwright/gridwright/internal/assets/schemas"
)

// SchemaID is the schema identifier for rulesets.
const SchemaID = "gridwright/v1.0.0/ruleset"

var (
	// ErrSchemaNotFound indicates the embedded schema is missing.
	ErrSchemaNotFound = errors.New("ruleset schema not found")

	// ErrValidationFailed indicates the ruleset failed schema validation.
	ErrValidationFailed = errors.New("ruleset validation failed")
)

// ValidationError is one schema violation, addressed by JSON pointer.
type ValidationError struct {
	// Path points at the offending field (e.g. "/coRun/0/tasks").
	Path string

	// Message describes the violation.
	Message string
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// ValidationErrors collects every violation from one validation pass, so
// a caller can report all of them at once instead of fixing one per
// round trip.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return "validation failed"
	case 1:
		return e[0].Error()
	}
	parts := make([]string, len(e))
	for i, ve := range e {
		parts[i] = ve.Error()
	}
	return fmt.Sprintf("ruleset has %d schema violations: %s", len(e), strings.Join(parts, "; "))
}

// Unwrap lets errors.Is match ErrValidationFailed.
func (e ValidationErrors) Unwrap() error {
	return ErrValidationFailed
}

// Validate checks a parsed ruleset against the JSON schema.
//
// The struct round trip drops unknown fields, so additionalProperties
// violations cannot be seen here. Load paths call ValidateRaw on the
// original bytes instead.
func Validate(r *Ruleset) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to serialize ruleset for validation: %w", err)
	}
	return ValidateRaw(data)
}

// ValidateRaw checks raw JSON bytes against the embedded ruleset schema
// and returns a ValidationErrors carrying every error-severity
// diagnostic. Warning diagnostics do not fail validation.
func ValidateRaw(jsonData []byte) error {
	v, err := rulesetValidator()
	if err != nil {
		return err
	}

	diags, err := v.ValidateJSON(jsonData)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	var errs ValidationErrors
	for _, d := range diags {
		if d.Severity != schema.SeverityError {
			continue
		}
		errs = append(errs, ValidationError{Path: d.Pointer, Message: d.Message})
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// rulesetValidator compiles the embedded schema on first use.
var rulesetValidator = sync.OnceValues(func() (*schema.Validator, error) {
	if len(schemasassets.RulesetSchema) == 0 {
		return nil, fmt.Errorf("%w: embedded ruleset schema is empty", ErrSchemaNotFound)
	}
	v, err := schema.NewValidator(schemasassets.RulesetSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to compile ruleset schema: %w", err)
	}
	return v, nil
})
