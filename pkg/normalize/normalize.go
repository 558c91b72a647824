// Package normalize coerces raw spreadsheet rows into canonical typed
// values per the entity schemas.
//
// Normalization is a pure function and is idempotent: feeding an already
// normalized row back in yields the same row. It never panics and never
// returns an error for malformed data; a field that cannot be coerced
// becomes either NaN (numeric fields) or the entity.Invalid sentinel
// (list fields), both of which downstream validation rejects with a field
// error. One bad field never disturbs the rest of the row.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/gridwright/gridwright/pkg/entity"
)

// maxRangeSpan bounds "a-b" range expansion. Phase ranges in real data
// span single digits; anything past this is treated as unparsable rather
// than allocated.
const maxRangeSpan = 1000

// Row normalizes a raw record for the given entity kind.
//
// Fields named in the kind's schema are coerced to their canonical types;
// all other fields pass through verbatim. The input row is not mutated.
func Row(kind entity.Kind, raw entity.Row) entity.Row {
	out := raw.Clone()
	if out == nil {
		out = entity.Row{}
	}

	for _, spec := range entity.Specs(kind) {
		v, present := out[spec.Name]
		if !present {
			continue
		}
		switch spec.Type {
		case entity.FieldNumber, entity.FieldInt:
			out[spec.Name] = toNumber(v)
		case entity.FieldStringList:
			out[spec.Name] = toStringList(v)
		case entity.FieldIntList:
			out[spec.Name] = toIntList(v, spec.Range)
		default:
			// Strings and JSON strings pass through; validation decides.
		}
	}
	return out
}

// Dataset normalizes every row of a raw dataset in place-order: the
// result has the same length and row positions as the input.
func Dataset(kind entity.Kind, rows []entity.Row) []entity.Row {
	out := make([]entity.Row, len(rows))
	for i, r := range rows {
		out[i] = Row(kind, r)
	}
	return out
}

// toNumber coerces v to a float64, yielding NaN when v is not numeric.
// NaN is deliberate: a non-numeric cell must fail the range check rather
// than silently become zero.
func toNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	return math.NaN()
}

// toStringList coerces v to a []string. A raw comma-separated string is
// split and each piece trimmed; an existing []string passes through
// unchanged. Empty pieces are kept so validation can report them.
func toStringList(v any) any {
	switch l := v.(type) {
	case []string:
		return l
	case entity.Invalid:
		return l
	case string:
		parts := strings.Split(l, ",")
		out := make([]string, len(parts))
		for i, p := range parts {
			out[i] = strings.TrimSpace(p)
		}
		return out
	case []any:
		// JSON round-trips and producer patches deliver []any.
		out := make([]string, len(l))
		for i, e := range l {
			s, ok := e.(string)
			if !ok {
				return entity.Invalid{Raw: stringify(v)}
			}
			out[i] = strings.TrimSpace(s)
		}
		return out
	}
	return entity.Invalid{Raw: stringify(v)}
}

// toIntList coerces v to a []int.
//
// String input is tried in order: inclusive range notation "a-b" (only
// where the schema permits it), a JSON array literal, then a comma list
// of integers. Any parse failure yields the Invalid sentinel rather than
// an empty slice.
func toIntList(v any, allowRange bool) any {
	switch l := v.(type) {
	case []int:
		return l
	case entity.Invalid:
		return l
	case []any:
		return intsFromAny(l, v)
	case string:
		s := strings.TrimSpace(l)
		if allowRange && strings.Contains(s, "-") {
			return expandRange(s)
		}
		if strings.HasPrefix(s, "[") {
			var arr []any
			if err := json.Unmarshal([]byte(s), &arr); err != nil {
				return entity.Invalid{Raw: l}
			}
			return intsFromAny(arr, l)
		}
		return intsFromComma(s, l)
	}
	return entity.Invalid{Raw: stringify(v)}
}

// expandRange turns "a-b" into the explicit sequence [a, a+1, ..., b].
func expandRange(s string) any {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return entity.Invalid{Raw: s}
	}
	start, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	end, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || end < start || end-start > maxRangeSpan {
		return entity.Invalid{Raw: s}
	}
	out := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, i)
	}
	return out
}

func intsFromComma(s, raw string) any {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return entity.Invalid{Raw: raw}
		}
		out = append(out, n)
	}
	return out
}

// intsFromAny converts a decoded JSON array to []int. Elements may be
// ints, integral floats, or digit strings; anything else poisons the
// whole field.
func intsFromAny(arr []any, orig any) any {
	out := make([]int, 0, len(arr))
	for _, e := range arr {
		switch n := e.(type) {
		case int:
			out = append(out, n)
		case float64:
			if n != math.Trunc(n) {
				return entity.Invalid{Raw: stringify(orig)}
			}
			out = append(out, int(n))
		case json.Number:
			i, err := n.Int64()
			if err != nil {
				return entity.Invalid{Raw: stringify(orig)}
			}
			out = append(out, int(i))
		case string:
			i, err := strconv.Atoi(strings.TrimSpace(n))
			if err != nil {
				return entity.Invalid{Raw: stringify(orig)}
			}
			out = append(out, i)
		default:
			return entity.Invalid{Raw: stringify(orig)}
		}
	}
	return out
}

// stringify renders an unparsable value for the Invalid sentinel's Raw.
func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case entity.Invalid:
		return s.Raw
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
