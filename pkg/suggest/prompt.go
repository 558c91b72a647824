package suggest

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/gridwright/gridwright/pkg/entity"
	"github.com/gridwright/gridwright/pkg/validate"
)

// promptRows renders rows for prompt context. NaN and the Invalid
// sentinel cannot survive json.Marshal, so they go out as the raw text
// the user typed, which is also what the model needs to see to fix them.
func promptRows(rows []entity.Row) []entity.Row {
	out := make([]entity.Row, len(rows))
	for i, row := range rows {
		clean := make(entity.Row, len(row))
		for k, v := range row {
			switch val := v.(type) {
			case entity.Invalid:
				clean[k] = val.Raw
			case float64:
				if math.IsNaN(val) || math.IsInf(val, 0) {
					clean[k] = "NaN"
				} else {
					clean[k] = val
				}
			default:
				clean[k] = v
			}
		}
		out[i] = clean
	}
	return out
}

// modifyPrompt builds the instruction-plus-table prompt for ModifyTable.
func modifyPrompt(kind entity.Kind, instruction string, rows []entity.Row) (string, error) {
	table, err := json.MarshalIndent(promptRows(rows), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize table: %w", err)
	}

	return fmt.Sprintf(`You are a strict spreadsheet assistant.

You are working on data for the %q entity. Your job is to apply the user's modification request carefully without altering the data format.

- DO NOT change numbers to strings (e.g., "123")
- DO NOT alter JSON objects/arrays structure
- DO NOT add extra fields or remove any unrelated data
- DO NOT wrap the response in markdown fences
- DO NOT change any field name

Your response must include:
1. A short user-friendly message summarizing what changed
2. A changes object showing only the modified fields with row index keys
3. If a specific key inside a JSON field needs to change, return the unchanged keys of that object as well

---

User request:
%q

Data:
%s

---

Respond strictly in this format (no markdown):
{
  "message": "Increased budget in 3 rows.",
  "changes": {
    "2": { "AttributesJSON": { "budget": "12000" } },
    "4": { "PriorityLevel": 3 }
  }
}`, kind, instruction, table), nil
}

// erroredRow pairs a row with its validation messages for the fix-all
// prompt context.
type erroredRow struct {
	Original entity.Row          `json:"original"`
	Errors   validate.CellErrors `json:"errors"`
}

// fixAllPrompt builds the bulk-correction prompt. The bool result is
// false when no entity has any errored row, in which case no model call
// is needed.
func fixAllPrompt(datasets map[entity.Kind][]entity.Row, errs validate.Errors) (string, bool, error) {
	dataContext := map[string][]entity.Row{}
	errorContext := map[string]map[string]erroredRow{}

	for kind, rows := range datasets {
		entityErrs := errs[kind]
		if len(entityErrs) == 0 {
			continue
		}

		clean := promptRows(rows)
		errored := map[string]erroredRow{}
		for index, cellErrs := range entityErrs {
			if index < 0 || index >= len(clean) {
				continue
			}
			errored[strconv.Itoa(index)] = erroredRow{
				Original: clean[index],
				Errors:   cellErrs,
			}
		}
		if len(errored) == 0 {
			continue
		}

		dataContext[string(kind)] = clean
		errorContext[string(kind)] = errored
	}

	if len(errorContext) == 0 {
		return "", false, nil
	}

	data, err := json.MarshalIndent(dataContext, "", "  ")
	if err != nil {
		return "", false, fmt.Errorf("failed to serialize data context: %w", err)
	}
	errCtx, err := json.MarshalIndent(errorContext, "", "  ")
	if err != nil {
		return "", false, fmt.Errorf("failed to serialize error context: %w", err)
	}

	return fmt.Sprintf(`You are a strict AI assistant fixing tabular validation errors.

Given:
- "Data": the uploaded table per entity ("clients", "tasks", "workers").
- "Errors": the validation errors mapped to row index and field.
- All values must remain consistent with their expected data types and structures.
- The "AttributesJSON" field (mainly in clients) should contain valid, parsable JSON with commonly expected keys like:
  - location - with a value inferred from the data pattern
  - budget - with a value inferred from the data pattern
  DO NOT include anything other than budget and location in AttributesJSON.
  If AttributesJSON is missing or malformed, fix it by generating a well-formed JSON object with reasonable default keys and values.

Your job is to fix ONLY the erroneous fields while preserving structure.

--- BEGIN CONTEXT ---

Data:
%s

Errors:
%s

--- END CONTEXT ---

Respond ONLY with corrected values in this format:

{
  "clients": {
    "0": {
      "PriorityLevel": 3,
      "AttributesJSON": { "location": "London", "budget": 5000 }
    }
  },
  "tasks": {
    "1": { "RequiredSkills": ["Java", "SQL"] }
  }
}

No markdown, no explanation. Strict JSON only.`, data, errCtx), true, nil
}
