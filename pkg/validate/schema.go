package validate

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/gridwright/gridwright/pkg/entity"
)

// ValidateRow checks one normalized row against its entity's declarative
// field rules and returns all field errors in one pass. An empty map
// means the row is clean.
//
// The result depends only on the row's content, never on its position or
// on sibling rows; that isolation is what makes single-row re-validation
// after an edit both correct and cheap.
func ValidateRow(kind entity.Kind, row entity.Row) CellErrors {
	errs := CellErrors{}
	for _, spec := range entity.Specs(kind) {
		if msg := checkField(spec, row[spec.Name]); msg != "" {
			errs[spec.Name] = msg
		}
	}
	return errs
}

func checkField(spec entity.FieldSpec, v any) string {
	switch spec.Type {
	case entity.FieldString:
		return checkString(spec, v)
	case entity.FieldJSON:
		return checkJSONString(spec, v)
	case entity.FieldNumber:
		return checkNumber(spec, v, false)
	case entity.FieldInt:
		return checkNumber(spec, v, true)
	case entity.FieldStringList:
		return checkStringList(spec, v)
	case entity.FieldIntList:
		return checkIntList(spec, v)
	}
	return ""
}

func requiredMessage(spec entity.FieldSpec) string {
	if spec.RequiredMessage != "" {
		return spec.RequiredMessage
	}
	return fmt.Sprintf("%s is required", spec.Name)
}

func checkString(spec entity.FieldSpec, v any) string {
	s, ok := v.(string)
	if !ok {
		if v == nil {
			return requiredMessage(spec)
		}
		return fmt.Sprintf("%s must be a string", spec.Name)
	}
	if s == "" {
		return requiredMessage(spec)
	}
	return ""
}

func checkJSONString(spec entity.FieldSpec, v any) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return requiredMessage(spec)
	}
	if !json.Valid([]byte(s)) {
		return "Invalid JSON"
	}
	return ""
}

func checkNumber(spec entity.FieldSpec, v any, wantInt bool) string {
	n, ok := entity.Number(v)
	if !ok || math.IsNaN(n) {
		return fmt.Sprintf("%s must be a number", spec.Name)
	}
	if wantInt && n != math.Trunc(n) {
		return fmt.Sprintf("%s must be an integer", spec.Name)
	}
	if spec.Max > 0 && (n < spec.Min || n > spec.Max) {
		return fmt.Sprintf("%s must be between %g and %g", spec.Name, spec.Min, spec.Max)
	}
	if n < spec.Min {
		return fmt.Sprintf("%s must be at least %g", spec.Name, spec.Min)
	}
	return ""
}

func checkStringList(spec entity.FieldSpec, v any) string {
	if entity.IsInvalid(v) {
		return fmt.Sprintf("%s could not be parsed as a list", spec.Name)
	}
	l, ok := entity.StringList(v)
	if !ok || len(l) == 0 {
		return requiredMessage(spec)
	}
	for _, s := range l {
		if s == "" {
			return fmt.Sprintf("%s must not contain empty entries", spec.Name)
		}
	}
	return ""
}

func checkIntList(spec entity.FieldSpec, v any) string {
	if entity.IsInvalid(v) {
		return fmt.Sprintf("%s could not be parsed as a list", spec.Name)
	}
	l, ok := entity.IntList(v)
	if !ok || len(l) == 0 {
		return requiredMessage(spec)
	}
	for _, n := range l {
		if n < 1 {
			return fmt.Sprintf("%s entries must be integers >= 1", spec.Name)
		}
	}
	return ""
}
