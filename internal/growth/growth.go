// Package growth holds the static growth-stage model and the default
// goal table used by the advisor.
package growth

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed growth.yaml
var growthYAML []byte

// DefaultStageKey is used when a stage label matches no goal table entry.
const DefaultStageKey = "Stage 2 - Advertise"

// DefaultGoal is used when the business area has no entry for the stage.
const DefaultGoal = "Improve this business area"

// Range is an inclusive numeric range. A nil Max is unbounded.
type Range struct {
	Min float64  `yaml:"min" json:"min"`
	Max *float64 `yaml:"max" json:"max,omitempty"`
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && (r.Max == nil || v <= *r.Max)
}

// Stage is one tier of the growth model.
type Stage struct {
	ID        int    `yaml:"id" json:"id"`
	Name      string `yaml:"name" json:"name"`
	Headcount Range  `yaml:"headcount" json:"headcount"`
	Revenue   Range  `yaml:"revenue" json:"revenue"`
}

// Label formats the stage the way goal keys and prompts refer to it.
func (s Stage) Label() string {
	return fmt.Sprintf("Stage %d - %s", s.ID, s.Name)
}

type goalEntry struct {
	Stage string            `yaml:"stage"`
	Areas map[string]string `yaml:"areas"`
}

// Model is the loaded stage and goal tables.
type Model struct {
	stages []Stage
	goals  []goalEntry
}

type document struct {
	Stages []Stage     `yaml:"stages"`
	Goals  []goalEntry `yaml:"goals"`
}

// Load parses a model document.
func Load(data []byte) (*Model, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse growth model: %w", err)
	}
	if len(doc.Stages) == 0 {
		return nil, fmt.Errorf("growth model has no stages")
	}
	for i, s := range doc.Stages {
		if s.ID != i {
			return nil, fmt.Errorf("growth model stage %d out of order (id %d)", i, s.ID)
		}
	}
	return &Model{stages: doc.Stages, goals: doc.Goals}, nil
}

var defaultModel *Model

func init() {
	m, err := Load(growthYAML)
	if err != nil {
		panic(err)
	}
	defaultModel = m
}

// Default returns the built-in model.
func Default() *Model {
	return defaultModel
}

// Stages returns a copy of all stages in order.
func (m *Model) Stages() []Stage {
	out := make([]Stage, len(m.stages))
	copy(out, m.stages)
	return out
}

// Stage returns the stage with the given id.
func (m *Model) Stage(id int) (Stage, bool) {
	if id < 0 || id >= len(m.stages) {
		return Stage{}, false
	}
	return m.stages[id], true
}

// Classify picks the stage for a business. Headcount narrows the candidates;
// when several stages share a headcount band, revenue breaks the tie and the
// first headcount match wins if revenue fits none of them.
func (m *Model) Classify(headcount int, revenue float64) (Stage, bool) {
	var matches []Stage
	for _, s := range m.stages {
		if s.Headcount.Contains(float64(headcount)) {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 0:
		return Stage{}, false
	case 1:
		return matches[0], true
	}
	for _, s := range matches {
		if s.Revenue.Contains(revenue) {
			return s, true
		}
	}
	return matches[0], true
}

// Next returns the stage after s, if any.
func (m *Model) Next(s Stage) (Stage, bool) {
	return m.Stage(s.ID + 1)
}

// Goal returns the default goal for a stage label and business area. The
// stage key is the first table entry whose label contains stage.
func (m *Model) Goal(stage, businessArea string) string {
	var entry *goalEntry
	for i := range m.goals {
		if strings.Contains(m.goals[i].Stage, stage) {
			entry = &m.goals[i]
			break
		}
	}
	if entry == nil {
		for i := range m.goals {
			if m.goals[i].Stage == DefaultStageKey {
				entry = &m.goals[i]
				break
			}
		}
	}
	if entry == nil {
		return DefaultGoal
	}
	if goal, ok := entry.Areas[businessArea]; ok {
		return goal
	}
	return DefaultGoal
}

// BusinessAreas lists the areas known to the goal table, sorted.
func (m *Model) BusinessAreas() []string {
	seen := make(map[string]bool)
	var out []string
	for _, g := range m.goals {
		for area := range g.Areas {
			if !seen[area] {
				seen[area] = true
				out = append(out, area)
			}
		}
	}
	sort.Strings(out)
	return out
}
