package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/folio-go-api/internal/models"
)

// StepReview is the pseudo-step guarding final submission: every step must be
// valid and the document must carry at least one artifact.
const StepReview = "review"

// StepFeedback is the pseudo-step showing teacher annotations; always open.
const StepFeedback = "feedback"

// FieldRequirement names one required field of a step. When is optional; a
// field whose predicate evaluates false is skipped entirely.
type FieldRequirement struct {
	ID    string
	Label string
	When  func(doc models.Document) bool
}

// StepDescriptor is the static configuration of one document section.
type StepDescriptor struct {
	ID       string
	Ordinal  int
	Title    string
	Required []FieldRequirement
}

// Navigator evaluates step completeness and gates navigation between steps.
// It is created per editing session and discarded with it; there is no
// process-wide navigation state.
type Navigator struct {
	mu    sync.Mutex
	steps []StepDescriptor
	memo  map[string]bool
	byOrd map[string]int
}

// NewNavigator builds a navigator over the given ordered step set and
// subscribes to the store so field edits invalidate the completeness memo.
func NewNavigator(steps []StepDescriptor, store *DocumentStore) *Navigator {
	ordered := make([]StepDescriptor, len(steps))
	copy(ordered, steps)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Ordinal < ordered[j].Ordinal })

	byOrd := make(map[string]int, len(ordered))
	for i, step := range ordered {
		byOrd[step.ID] = i
	}

	n := &Navigator{
		steps: ordered,
		memo:  map[string]bool{},
		byOrd: byOrd,
	}

	if store != nil {
		store.OnChange(n.invalidate)
	}

	return n
}

// Steps returns the configured step set in order.
func (n *Navigator) Steps() []StepDescriptor {
	out := make([]StepDescriptor, len(n.steps))
	copy(out, n.steps)
	return out
}

func (n *Navigator) invalidate(field string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, step := range n.steps {
		for _, req := range step.Required {
			if req.ID == field {
				delete(n.memo, step.ID)
			}
		}
		// Predicates may read any field, so a predicate-bearing step can
		// flip on edits outside its own required set.
		for _, req := range step.Required {
			if req.When != nil {
				delete(n.memo, step.ID)
				break
			}
		}
	}
}

// CanEnter reports whether navigation to the target step is permitted given
// the current draft. An invalid transition never fails hard: the returned map
// lists missing field id -> label for the caller to surface per-field.
// Attachments are deliberately exempt for ordinary steps so users can draft
// later sections before finishing uploads; only the review step (and final
// submission) enforces the artifact rule.
func (n *Navigator) CanEnter(target string, doc models.Document) (bool, map[string]string) {
	if target == StepFeedback {
		return true, nil
	}

	if target == StepReview {
		missing := n.missingThrough(len(n.steps), doc)
		if !doc.HasArtifacts() {
			missing["attachments"] = "At least one file or external link"
		}
		return len(missing) == 0, nilIfEmpty(missing)
	}

	idx, ok := n.byOrd[target]
	if !ok {
		return false, map[string]string{target: "Unknown step"}
	}

	if idx == 0 {
		return true, nil
	}

	missing := n.missingThrough(idx, doc)
	return len(missing) == 0, nilIfEmpty(missing)
}

// IsComplete reports whether one step's required fields are satisfied,
// memoized until a relevant field changes.
func (n *Navigator) IsComplete(stepID string, doc models.Document) bool {
	n.mu.Lock()
	if complete, ok := n.memo[stepID]; ok {
		n.mu.Unlock()
		return complete
	}
	n.mu.Unlock()

	idx, ok := n.byOrd[stepID]
	if !ok {
		return false
	}

	complete := len(missingFields(n.steps[idx], doc)) == 0

	n.mu.Lock()
	n.memo[stepID] = complete
	n.mu.Unlock()

	return complete
}

// Validate collects every missing required field across all steps, including
// the artifact requirement. The submission lifecycle uses this strict mode.
func (n *Navigator) Validate(doc models.Document) map[string]string {
	missing := n.missingThrough(len(n.steps), doc)
	if !doc.HasArtifacts() {
		missing["attachments"] = "At least one file or external link"
	}
	return missing
}

func (n *Navigator) missingThrough(limit int, doc models.Document) map[string]string {
	missing := map[string]string{}
	for i := 0; i < limit && i < len(n.steps); i++ {
		for id, label := range missingFields(n.steps[i], doc) {
			missing[id] = label
		}
	}
	return missing
}

func missingFields(step StepDescriptor, doc models.Document) map[string]string {
	missing := map[string]string{}
	for _, req := range step.Required {
		if req.When != nil && !req.When(doc) {
			continue
		}
		if !fieldSatisfied(doc, req.ID) {
			missing[req.ID] = req.Label
		}
	}
	return missing
}

// fieldSatisfied applies the per-shape validity rules: strings must be
// non-blank after trimming, booleans merely answered, arrays non-empty.
func fieldSatisfied(doc models.Document, field string) bool {
	if doc.Fields == nil {
		return false
	}

	value, ok := doc.Fields[field]
	if !ok || value == nil {
		return false
	}

	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v) != ""
	case bool:
		return true
	case []interface{}:
		return len(v) > 0
	case []string:
		return len(v) > 0
	default:
		return true
	}
}

func nilIfEmpty(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	return m
}

// DefaultSteps is the built-in portfolio assignment step set.
func DefaultSteps() []StepDescriptor {
	return []StepDescriptor{
		{
			ID:      "overview",
			Ordinal: 1,
			Title:   "Overview",
			Required: []FieldRequirement{
				{ID: "title", Label: "Title"},
				{ID: "work_type", Label: "Type of work"},
				{ID: "subject", Label: "Subject"},
				{ID: "completed_at", Label: "Completion date"},
			},
		},
		{
			ID:      "collaboration",
			Ordinal: 2,
			Title:   "Collaboration",
			Required: []FieldRequirement{
				{ID: "is_team_work", Label: "Individual or team work"},
				{
					ID:    "team_contribution",
					Label: "Your contribution to the team",
					When: func(doc models.Document) bool {
						isTeam, answered := doc.BoolField("is_team_work")
						return answered && isTeam
					},
				},
			},
		},
		{
			ID:      "skills",
			Ordinal: 3,
			Title:   "Skills",
			Required: []FieldRequirement{
				{ID: "skills", Label: "Skills practised"},
			},
		},
		{
			ID:      "reflection",
			Ordinal: 4,
			Title:   "Process & reflection",
			Required: []FieldRequirement{
				{ID: "process_description", Label: "How the work came about"},
				{ID: "reflection", Label: "Reflection"},
			},
		},
	}
}

const stepConfigSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "required": ["id", "ordinal", "title", "required"],
    "additionalProperties": false,
    "properties": {
      "id": {"type": "string", "minLength": 1},
      "ordinal": {"type": "integer", "minimum": 1},
      "title": {"type": "string", "minLength": 1},
      "required": {
        "type": "array",
        "items": {
          "type": "object",
          "required": ["id", "label"],
          "additionalProperties": false,
          "properties": {
            "id": {"type": "string", "minLength": 1},
            "label": {"type": "string", "minLength": 1},
            "when": {
              "type": "object",
              "required": ["field", "equals"],
              "additionalProperties": false,
              "properties": {
                "field": {"type": "string", "minLength": 1},
                "equals": {"type": "boolean"}
              }
            }
          }
        }
      }
    }
  }
}`

type stepConfig struct {
	ID       string `json:"id"`
	Ordinal  int    `json:"ordinal"`
	Title    string `json:"title"`
	Required []struct {
		ID    string `json:"id"`
		Label string `json:"label"`
		When  *struct {
			Field  string `json:"field"`
			Equals bool   `json:"equals"`
		} `json:"when"`
	} `json:"required"`
}

// LoadSteps parses a JSON step configuration, validating it against the
// embedded schema before building descriptors. Conditional requirements are
// declared as {"when": {"field": ..., "equals": ...}} and compiled into
// predicates over the draft snapshot.
func LoadSteps(r io.Reader) ([]StepDescriptor, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read step config: %w", err)
	}

	schema, err := jsonschema.CompileString("steps.schema.json", stepConfigSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to compile step schema: %w", err)
	}

	var generic interface{}
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&generic); err != nil {
		return nil, fmt.Errorf("invalid step config json: %w", err)
	}

	if err := schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("step config rejected by schema: %w", err)
	}

	var configs []stepConfig
	if err := json.Unmarshal(raw, &configs); err != nil {
		return nil, fmt.Errorf("failed to decode step config: %w", err)
	}

	steps := make([]StepDescriptor, 0, len(configs))
	for _, cfg := range configs {
		step := StepDescriptor{ID: cfg.ID, Ordinal: cfg.Ordinal, Title: cfg.Title}
		for _, req := range cfg.Required {
			requirement := FieldRequirement{ID: req.ID, Label: req.Label}
			if req.When != nil {
				field, equals := req.When.Field, req.When.Equals
				requirement.When = func(doc models.Document) bool {
					value, answered := doc.BoolField(field)
					return answered && value == equals
				}
			}
			step.Required = append(step.Required, requirement)
		}
		steps = append(steps, step)
	}

	return steps, nil
}
