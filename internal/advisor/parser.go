package advisor

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"

	"github.com/capitalize-ai/growth-advisor/internal/model"
)

// Kind tags the outcome of Decode.
type Kind int

const (
	// KindStructured means the reply was a JSON plan.
	KindStructured Kind = iota
	// KindNeedsTextFallback means the reply must go through ParseText.
	KindNeedsTextFallback
)

func (k Kind) String() string {
	if k == KindStructured {
		return "structured"
	}
	return "text"
}

// Result is the tagged outcome of Decode. Goal and Steps are set for
// KindStructured, Raw for KindNeedsTextFallback.
type Result struct {
	Kind  Kind
	Goal  string
	Steps []model.ActionStep
	Raw   string
}

// Fallback values used when a reply carries no usable structure.
const (
	DefaultTimeframe  = "TBD"
	FallbackTimeframe = "Immediate"
)

// Decode checks whether the reply is a JSON plan. A reply only counts as
// structured when it is an object with a non-empty steps array; anything
// else is handed back for text parsing.
func Decode(response string) Result {
	fallback := Result{Kind: KindNeedsTextFallback, Raw: response}

	body := stripCodeFence(strings.TrimSpace(response))
	if !strings.HasPrefix(body, "{") {
		return fallback
	}

	var payload struct {
		Goal  string             `json:"goal"`
		Steps []model.ActionStep `json:"steps"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil || len(payload.Steps) == 0 {
		return fallback
	}

	return Result{Kind: KindStructured, Goal: payload.Goal, Steps: payload.Steps}
}

// Parse turns a model reply into advice, trying JSON first and the text
// scanner second. It never fails.
func Parse(response, defaultGoal string) (*model.Advice, Kind) {
	res := Decode(response)
	if res.Kind == KindStructured {
		goal := res.Goal
		if goal == "" {
			goal = defaultGoal
		}
		return &model.Advice{Goal: goal, Steps: res.Steps}, KindStructured
	}
	return ParseText(res.Raw, defaultGoal), KindNeedsTextFallback
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// lineKind classifies one trimmed, non-empty line of a reply.
type lineKind int

const (
	lineText lineKind = iota
	lineGoal
	linePriority
	lineStep     // numbered line with a bold title
	lineNumbered // numbered line without one
	lineDescription
	lineExecution
	lineTimeline
	lineResources
	lineSuccess
)

// scanState is the scanner's position within a step.
type scanState int

const (
	scanningForStep scanState = iota
	inGoal
	inDescription
	inExecution
	inResources
	inSuccess
)

type kindSet map[lineKind]bool

// terminators lists, per capture state, the line kinds that end it. A line
// that ends a capture is then handled as if scanning for a step.
var terminators = map[scanState]kindSet{
	inGoal: {
		lineGoal: true, linePriority: true, lineStep: true, lineNumbered: true,
		lineDescription: true, lineExecution: true, lineTimeline: true,
		lineResources: true, lineSuccess: true,
	},
	// Numbered lines inside a description or execution block are sub-lists
	// of the current step, not new steps.
	inDescription: {
		lineGoal: true, linePriority: true,
		lineExecution: true, lineTimeline: true, lineResources: true, lineSuccess: true,
	},
	inExecution: {
		lineGoal: true, linePriority: true,
		lineTimeline: true, lineResources: true, lineSuccess: true,
	},
	inResources: {
		lineGoal: true, linePriority: true, lineStep: true, lineNumbered: true,
		lineDescription: true, lineExecution: true, lineTimeline: true, lineSuccess: true,
	},
	// Success criteria are skipped, including plain numbered items.
	inSuccess: {
		lineGoal: true, linePriority: true, lineStep: true,
		lineDescription: true, lineExecution: true, lineTimeline: true, lineResources: true,
	},
}

var (
	numberedRe  = regexp.MustCompile(`^\d+\.\s*`)
	boldTitleRe = regexp.MustCompile(`^\d+\.\s*\*\*(.+?)\*\*`)
	urlRe       = regexp.MustCompile(`https?://\S+`)
)

var markers = []struct {
	prefix string
	kind   lineKind
}{
	{"description:", lineDescription},
	{"how to execute:", lineExecution},
	{"timeline:", lineTimeline},
	{"resources & links:", lineResources},
	{"resources and links:", lineResources},
	{"resources:", lineResources},
	{"success criteria:", lineSuccess},
}

// classify returns the kind of line and, for marker lines, the text that
// follows the marker on the same line.
func classify(line string) (lineKind, string) {
	if i := strings.Index(line, "STAGE GOAL:"); i >= 0 {
		return lineGoal, cleanValue(line[i+len("STAGE GOAL:"):])
	}
	if strings.Contains(line, "🎯") {
		return lineGoal, cleanValue(line[strings.Index(line, "🎯")+len("🎯"):])
	}

	switch {
	case strings.Contains(line, "HIGH PRIORITY"):
		return linePriority, string(model.PriorityHigh)
	case strings.Contains(line, "MEDIUM PRIORITY"):
		return linePriority, string(model.PriorityMedium)
	case strings.Contains(line, "LOW PRIORITY"):
		return linePriority, string(model.PriorityLow)
	}

	if m := boldTitleRe.FindStringSubmatch(line); m != nil {
		return lineStep, strings.TrimSpace(m[1])
	}
	if loc := numberedRe.FindStringIndex(line); loc != nil {
		return lineNumbered, cleanValue(line[loc[1]:])
	}

	bare := strings.TrimLeftFunc(strings.ReplaceAll(line, "*", ""), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	lower := strings.ToLower(bare)
	for _, m := range markers {
		if strings.HasPrefix(lower, m.prefix) {
			return m.kind, strings.TrimSpace(bare[len(m.prefix):])
		}
	}

	return lineText, line
}

func cleanValue(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "*", ""))
}

// stepDraft accumulates the parts of one step while scanning.
type stepDraft struct {
	title       string
	priority    model.Priority
	description []string
	execution   []string
	timeframe   string
	resources   []string
	links       []string
}

func (d *stepDraft) build() (model.ActionStep, bool) {
	var parts []string
	if d.title != "" {
		parts = append(parts, "**"+d.title+"**")
	}
	if len(d.description) > 0 {
		parts = append(parts, "Description: "+strings.Join(d.description, " "))
	}
	if len(d.execution) > 0 {
		parts = append(parts, "How to Execute: "+strings.Join(d.execution, " "))
	}
	if d.timeframe != "" {
		parts = append(parts, "Timeline: "+d.timeframe)
	}
	resources := strings.Join(d.resources, "; ")
	if resources != "" {
		parts = append(parts, "Resources: "+resources)
	}
	links := strings.Join(d.links, ", ")
	if links != "" {
		parts = append(parts, "Links: "+links)
	}
	if len(parts) == 0 {
		return model.ActionStep{}, false
	}

	step := model.ActionStep{
		Action:    strings.Join(parts, "\n\n"),
		Priority:  d.priority,
		Timeframe: d.timeframe,
		Resources: resources,
	}
	if step.Timeframe == "" {
		step.Timeframe = DefaultTimeframe
	}
	if step.Resources == "" {
		step.Resources = links
	}
	return step, true
}

// scanner is the line-level state machine behind ParseText.
type scanner struct {
	state    scanState
	priority model.Priority
	goal     string
	current  *stepDraft
	steps    []model.ActionStep
}

func (s *scanner) flush() {
	if s.current == nil {
		return
	}
	if step, ok := s.current.build(); ok {
		s.steps = append(s.steps, step)
	}
	s.current = nil
}

func (s *scanner) feed(line string) {
	kind, value := classify(line)

	if s.state != scanningForStep {
		if !terminators[s.state][kind] {
			s.capture(line)
			return
		}
		s.state = scanningForStep
	}

	switch kind {
	case lineGoal:
		if value != "" {
			s.goal = value
		} else {
			s.state = inGoal
		}
	case linePriority:
		s.priority = model.Priority(value)
	case lineStep, lineNumbered:
		s.flush()
		s.current = &stepDraft{title: value, priority: s.priority}
	case lineDescription:
		s.state = inDescription
		s.capture(value)
	case lineExecution:
		s.state = inExecution
		s.capture(value)
	case lineTimeline:
		if s.current != nil && value != "" {
			s.current.timeframe = value
		}
	case lineResources:
		s.state = inResources
		if s.current != nil && value != "" {
			s.current.addResource(value)
		}
	case lineSuccess:
		if s.current != nil {
			s.state = inSuccess
		}
	}
}

// capture routes a content line to the part selected by the current state.
func (s *scanner) capture(line string) {
	if line == "" {
		return
	}
	switch s.state {
	case inGoal:
		s.goal = cleanValue(line)
		s.state = scanningForStep
	case inDescription:
		if s.current != nil {
			s.current.description = append(s.current.description, line)
		}
	case inExecution:
		if s.current != nil {
			s.current.execution = append(s.current.execution, line)
		}
	case inResources:
		if s.current == nil {
			return
		}
		if item, ok := trimBullet(line); ok {
			s.current.addResource(item)
		}
	}
}

func (d *stepDraft) addResource(item string) {
	d.resources = append(d.resources, item)
	for _, u := range urlRe.FindAllString(item, -1) {
		if u = strings.TrimRight(u, ".,;)"); u != "" {
			d.links = append(d.links, u)
		}
	}
}

func trimBullet(line string) (string, bool) {
	for _, b := range []string{"•", "- ", "* "} {
		if strings.HasPrefix(line, b) {
			return strings.TrimSpace(line[len(b):]), true
		}
	}
	if strings.HasPrefix(line, "-") {
		return strings.TrimSpace(line[1:]), true
	}
	return "", false
}

// ParseText recovers goal and steps from a reply written in the advisor's
// pseudo-markdown template. Unrecognised lines are skipped. If no step is
// found the whole reply becomes a single high-priority step.
func ParseText(response, defaultGoal string) *model.Advice {
	s := &scanner{
		state:    scanningForStep,
		priority: model.PriorityMedium,
		goal:     defaultGoal,
	}

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		s.feed(line)
	}
	s.flush()

	if len(s.steps) == 0 {
		s.steps = []model.ActionStep{{
			Action:    response,
			Priority:  model.PriorityHigh,
			Timeframe: FallbackTimeframe,
		}}
	}

	return &model.Advice{Goal: s.goal, Steps: s.steps}
}
