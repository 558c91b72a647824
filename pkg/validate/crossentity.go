package validate

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gridwright/gridwright/pkg/entity"
)

// phaseDomain is the closed set of scheduling phases a worker slot may
// reference.
var phaseDomain = map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true, 6: true}

// Datasets bundles the three normalized row sets for cross-entity checks.
type Datasets struct {
	Clients []entity.Row
	Workers []entity.Row
	Tasks   []entity.Row
}

// Rows returns the row set for kind.
func (d Datasets) Rows(kind entity.Kind) []entity.Row {
	switch kind {
	case entity.Clients:
		return d.Clients
	case entity.Workers:
		return d.Workers
	case entity.Tasks:
		return d.Tasks
	}
	return nil
}

// refSets holds the lookup sets shared by all cross-entity checks. They
// are rebuilt on every validation pass: dataset replacement invalidates
// any cache trivially, and at spreadsheet scale O(n) set construction is
// cheaper than maintaining incremental indexes correctly.
type refSets struct {
	taskIDs      map[string]bool
	workerSkills map[string]bool
}

func buildRefSets(d Datasets) refSets {
	s := refSets{
		taskIDs:      make(map[string]bool, len(d.Tasks)),
		workerSkills: map[string]bool{},
	}
	for _, t := range d.Tasks {
		if id, ok := entity.String(t["TaskID"]); ok && id != "" {
			s.taskIDs[id] = true
		}
	}
	for _, w := range d.Workers {
		if skills, ok := entity.StringList(w["Skills"]); ok {
			for _, sk := range skills {
				if trimmed := strings.TrimSpace(sk); trimmed != "" {
					s.workerSkills[trimmed] = true
				}
			}
		}
	}
	return s
}

// CrossEntity computes every referential-integrity error that cannot be
// decided by looking at a single row in isolation:
//
//  1. each client's RequestedTaskIDs must resolve to existing TaskIDs;
//  2. each task's RequiredSkills must be covered by at least one worker;
//  3. each worker's AvailableSlots must lie in the phase domain {1..6};
//  4. each worker must have at least MaxLoadPerPhase available slots.
//
// All checks run; none short-circuits another.
func CrossEntity(d Datasets) Errors {
	sets := buildRefSets(d)
	errs := Errors{}
	for _, kind := range entity.Kinds() {
		for index, row := range d.Rows(kind) {
			for field, msg := range crossEntityRow(kind, row, sets) {
				errs.Add(kind, index, field, msg)
			}
		}
	}
	return errs
}

// CrossEntityRow is the single-row variant used for incremental
// re-validation. Its output for a row is identical to that row's slice
// of a full CrossEntity pass over the same datasets; both paths share
// crossEntityRow.
func CrossEntityRow(kind entity.Kind, row entity.Row, d Datasets) CellErrors {
	return crossEntityRow(kind, row, buildRefSets(d))
}

func crossEntityRow(kind entity.Kind, row entity.Row, sets refSets) CellErrors {
	errs := CellErrors{}
	switch kind {
	case entity.Clients:
		checkTaskRefs(row, sets, errs)
	case entity.Tasks:
		checkSkillCoverage(row, sets, errs)
	case entity.Workers:
		checkPhaseDomain(row, errs)
		checkLoad(row, errs)
	}
	return errs
}

// checkTaskRefs reports the first requested task ID that does not exist.
// One missing reference is enough to flag the cell; the message names it.
func checkTaskRefs(row entity.Row, sets refSets, errs CellErrors) {
	requested, ok := entity.StringList(row["RequestedTaskIDs"])
	if !ok {
		// Not a canonical list: the schema validator owns that message.
		return
	}
	for _, id := range requested {
		if !sets.taskIDs[id] {
			errs["RequestedTaskIDs"] = fmt.Sprintf("Task ID %q not found in tasks", id)
			return
		}
	}
}

// checkSkillCoverage reports every required skill no worker provides,
// comma-joined, not just the first.
func checkSkillCoverage(row entity.Row, sets refSets, errs CellErrors) {
	required, ok := entity.StringList(row["RequiredSkills"])
	if !ok {
		return
	}
	var missing []string
	for _, sk := range required {
		if !sets.workerSkills[strings.TrimSpace(sk)] {
			missing = append(missing, sk)
		}
	}
	if len(missing) > 0 {
		errs["RequiredSkills"] = fmt.Sprintf("Skill(s) not covered by any worker: %s", strings.Join(missing, ", "))
	}
}

// checkPhaseDomain reports every slot value outside {1..6}. Applies to
// workers' AvailableSlots only; tasks' PreferredPhases is not checked
// against the domain here.
func checkPhaseDomain(row entity.Row, errs CellErrors) {
	slots, ok := entity.IntList(row["AvailableSlots"])
	if !ok {
		return
	}
	var bad []string
	for _, s := range slots {
		if !phaseDomain[s] {
			bad = append(bad, strconv.Itoa(s))
		}
	}
	if len(bad) > 0 {
		errs["AvailableSlots"] = fmt.Sprintf("Invalid phase(s): %s", strings.Join(bad, ", "))
	}
}

// checkLoad enforces the single inequality len(AvailableSlots) <
// MaxLoadPerPhase. Both the full and single-row paths express exactly
// this check.
func checkLoad(row entity.Row, errs CellErrors) {
	slots, ok := entity.IntList(row["AvailableSlots"])
	if !ok {
		return
	}
	max, ok := entity.Number(row["MaxLoadPerPhase"])
	if !ok || math.IsNaN(max) {
		return
	}
	if float64(len(slots)) < max {
		errs["MaxLoadPerPhase"] = fmt.Sprintf(
			"Worker has %d available slot(s) but MaxLoadPerPhase is %g", len(slots), max)
	}
}
