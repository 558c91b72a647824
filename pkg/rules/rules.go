// Package rules provides loading and validation of gridwright rulesets.
//
// A ruleset is a YAML or JSON file that captures business rules alongside
// the validated spreadsheet data: co-run groups, slot restrictions, load
// limits, phase windows, precedence overrides, and prioritization weights.
//
// Rulesets are validated against a JSON Schema. Gridwright records and
// exports rules for downstream allocators; it never executes them.
//
// Example ruleset (YAML):
//
//	coRun:
//	  - tasks: [T1, T2]
//	slotRestriction:
//	  - group: [sales]
//	    minCommonSlots: 2
//	phaseWindow:
//	  - task: T3
//	    allowedPhases: [1, 2, 3]
//	prioritization:
//	  PriorityLevel: 0.4
//	  RequestedTaskIDs: 0.3
//	  PreferredPhases: 0.2
//	  Fairness: 0.1
package rules

import (
	"fmt"
	"math"
)

// Default prioritization weights, used when a ruleset omits the
// prioritization block.
const (
	DefaultWeightPriorityLevel    = 0.4
	DefaultWeightRequestedTaskIDs = 0.3
	DefaultWeightPreferredPhases  = 0.2
	DefaultWeightFairness         = 0.1
)

// weightSumTolerance absorbs float drift when checking that weights sum
// to 1.0.
const weightSumTolerance = 1e-6

// CoRun declares a set of tasks that must run together.
type CoRun struct {
	// Tasks lists the TaskIDs in the group. At least two are required.
	Tasks []string `json:"tasks" yaml:"tasks"`
}

// SlotRestriction requires a minimum number of common available slots
// across a group of clients or workers.
type SlotRestriction struct {
	// Group lists GroupTag values the restriction applies to.
	Group []string `json:"group" yaml:"group"`

	// MinCommonSlots is the minimum number of shared slots. Must be >= 1.
	MinCommonSlots int `json:"minCommonSlots" yaml:"minCommonSlots"`
}

// LoadLimit caps per-phase slot usage for a worker group.
type LoadLimit struct {
	// Group lists WorkerGroup values the limit applies to.
	Group []string `json:"group" yaml:"group"`

	// MaxSlotsPerPhase is the per-phase cap. Must be >= 1.
	MaxSlotsPerPhase int `json:"maxSlotsPerPhase" yaml:"maxSlotsPerPhase"`
}

// PhaseWindow restricts a task to a set of allowed phases.
type PhaseWindow struct {
	// Task is the TaskID the window applies to.
	Task string `json:"task" yaml:"task"`

	// AllowedPhases lists the phases (1-6) the task may run in.
	AllowedPhases []int `json:"allowedPhases" yaml:"allowedPhases"`
}

// Precedence declares which of two rules wins when they conflict.
type Precedence struct {
	RuleA string `json:"ruleA" yaml:"ruleA"`
	RuleB string `json:"ruleB" yaml:"ruleB"`

	// Priority is "high" (RuleA wins) or "low" (RuleB wins).
	Priority string `json:"priority" yaml:"priority"`
}

// Weights holds the prioritization weights used by downstream allocators.
// Each weight is in [0, 1]; the set conventionally sums to 1.0, but that
// is advisory (see Ruleset.Warnings), not enforced.
type Weights struct {
	PriorityLevel    float64 `json:"PriorityLevel" yaml:"PriorityLevel"`
	RequestedTaskIDs float64 `json:"RequestedTaskIDs" yaml:"RequestedTaskIDs"`
	PreferredPhases  float64 `json:"PreferredPhases" yaml:"PreferredPhases"`
	Fairness         float64 `json:"Fairness" yaml:"Fairness"`
}

// Sum returns the total of the four weights.
func (w Weights) Sum() float64 {
	return w.PriorityLevel + w.RequestedTaskIDs + w.PreferredPhases + w.Fairness
}

// Ruleset represents a validated set of business rules. The zero value
// is a valid, empty ruleset.
type Ruleset struct {
	CoRun           []CoRun           `json:"coRun,omitempty" yaml:"coRun,omitempty"`
	SlotRestriction []SlotRestriction `json:"slotRestriction,omitempty" yaml:"slotRestriction,omitempty"`
	LoadLimit       []LoadLimit       `json:"loadLimit,omitempty" yaml:"loadLimit,omitempty"`
	PhaseWindow     []PhaseWindow     `json:"phaseWindow,omitempty" yaml:"phaseWindow,omitempty"`
	Precedence      []Precedence      `json:"precedence,omitempty" yaml:"precedence,omitempty"`

	// Prioritization is optional; ApplyDefaults fills it when absent.
	Prioritization *Weights `json:"prioritization,omitempty" yaml:"prioritization,omitempty"`
}

// ApplyDefaults fills optional fields with their default values.
func (r *Ruleset) ApplyDefaults() {
	if r.Prioritization == nil {
		r.Prioritization = &Weights{
			PriorityLevel:    DefaultWeightPriorityLevel,
			RequestedTaskIDs: DefaultWeightRequestedTaskIDs,
			PreferredPhases:  DefaultWeightPreferredPhases,
			Fairness:         DefaultWeightFairness,
		}
	}
}

// Warnings returns advisory findings that do not fail validation.
// Currently the only check is prioritization weights not summing to 1.0.
func (r *Ruleset) Warnings() []string {
	var out []string
	if r.Prioritization != nil {
		if sum := r.Prioritization.Sum(); math.Abs(sum-1.0) > weightSumTolerance {
			out = append(out, fmt.Sprintf("prioritization weights sum to %.3f, not 1.0", sum))
		}
	}
	return out
}
