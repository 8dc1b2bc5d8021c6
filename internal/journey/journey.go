// Package journey implements journey templates & steps from spec §3, data-
// driven per the REDESIGN FLAG in spec §9: templates load from YAML instead
// of living as hard-coded, duplicated template literals.
//
// Grounded on the teacher's and falcon's gopkg.in/yaml.v3-based declarative
// config loading (the same shape internal/goldenrouter uses for its route
// table).
package journey

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/balizero/agentcore/internal/domain"
	"github.com/balizero/agentcore/pkg/ptr"
)

// stepFile is one step entry in the YAML template file.
type stepFile struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Prerequisites []string `yaml:"prerequisites"`
	RequiredDocs  []string `yaml:"required_docs"`
	EstimatedDays int      `yaml:"estimated_days"`
}

// templateFile is one journey template entry in the YAML file.
type templateFile struct {
	ID    string     `yaml:"id"`
	Name  string     `yaml:"name"`
	Steps []stepFile `yaml:"steps"`
}

type fileFormat struct {
	Journeys []templateFile `yaml:"journeys"`
}

// Catalog is the loaded set of JourneyTemplates, validated to be DAGs over
// step ids, keyed by template id.
type Catalog struct {
	templates map[string]*domain.JourneyTemplate
}

// Load reads a journey-template catalog from a YAML file at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("journey: failed to read %s: %w", path, err)
	}
	return LoadBytes(data)
}

// LoadBytes parses a journey-template catalog from in-memory YAML,
// validating each template's step prerequisites form a DAG over step ids
// within that template (spec §3's data-model invariant).
func LoadBytes(data []byte) (*Catalog, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("journey: failed to parse catalog: %w", err)
	}

	templates := make(map[string]*domain.JourneyTemplate, len(f.Journeys))
	for _, tf := range f.Journeys {
		tmpl := &domain.JourneyTemplate{ID: tf.ID, Name: tf.Name}
		for _, sf := range tf.Steps {
			tmpl.Steps = append(tmpl.Steps, domain.JourneyStep{
				ID:            sf.ID,
				Name:          sf.Name,
				Prerequisites: sf.Prerequisites,
				RequiredDocs:  sf.RequiredDocs,
				EstimatedDays: sf.EstimatedDays,
			})
		}
		if err := validateDAG(tmpl); err != nil {
			return nil, fmt.Errorf("journey: template %q: %w", tmpl.ID, err)
		}
		templates[tmpl.ID] = tmpl
	}
	return &Catalog{templates: templates}, nil
}

// validateDAG rejects a template whose step prerequisites reference an
// unknown step id or form a cycle.
func validateDAG(tmpl *domain.JourneyTemplate) error {
	byID := make(map[string]domain.JourneyStep, len(tmpl.Steps))
	for _, s := range tmpl.Steps {
		byID[s.ID] = s
	}
	for _, s := range tmpl.Steps {
		for _, p := range s.Prerequisites {
			if _, ok := byID[p]; !ok {
				return fmt.Errorf("step %q references unknown prerequisite %q", s.ID, p)
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(tmpl.Steps))
	var visit func(id string) error
	visit = func(id string) error {
		switch color[id] {
		case gray:
			return fmt.Errorf("cycle detected at step %q", id)
		case black:
			return nil
		}
		color[id] = gray
		for _, p := range byID[id].Prerequisites {
			if err := visit(p); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}
	for _, s := range tmpl.Steps {
		if err := visit(s.ID); err != nil {
			return err
		}
	}
	return nil
}

// Get retrieves a loaded template by id.
func (c *Catalog) Get(templateID string) (*domain.JourneyTemplate, bool) {
	t, ok := c.templates[templateID]
	return t, ok
}

// Len reports the number of loaded templates.
func (c *Catalog) Len() int {
	return len(c.templates)
}

// Start creates a new Journey instance for clientID against templateID,
// with every step pending and the estimated completion computed per spec
// §3's invariant: started_at + sum(step.duration_days).
func (c *Catalog) Start(templateID, clientID, journeyID string, startedAt time.Time) (*domain.Journey, error) {
	tmpl, ok := c.Get(templateID)
	if !ok {
		return nil, fmt.Errorf("journey: unknown template %q", templateID)
	}

	steps := make([]domain.StepProgress, 0, len(tmpl.Steps))
	var totalDays int
	for _, s := range tmpl.Steps {
		steps = append(steps, domain.StepProgress{StepID: s.ID, Status: domain.StepPending})
		totalDays += s.EstimatedDays
	}

	return &domain.Journey{
		ID:                  journeyID,
		TemplateID:          templateID,
		ClientID:            clientID,
		StartedAt:           startedAt,
		Steps:               steps,
		EstimatedCompletion: startedAt.AddDate(0, 0, totalDays),
	}, nil
}

// AdvanceStep sets stepID's status on j, enforcing spec §3's prerequisite
// invariant: a step moving to in_progress or completed must have every
// prerequisite already completed-or-skipped. Recomputes ActualCompletion
// as a side effect (set iff every step is completed-or-skipped).
func (c *Catalog) AdvanceStep(j *domain.Journey, stepID string, status domain.JourneyStepStatus, now time.Time) error {
	tmpl, ok := c.Get(j.TemplateID)
	if !ok {
		return fmt.Errorf("journey: unknown template %q", j.TemplateID)
	}

	var step *domain.JourneyStep
	for i := range tmpl.Steps {
		if tmpl.Steps[i].ID == stepID {
			step = &tmpl.Steps[i]
			break
		}
	}
	if step == nil {
		return fmt.Errorf("journey: template %q has no step %q", j.TemplateID, stepID)
	}

	if status == domain.StepInProgress || status == domain.StepCompleted {
		done := doneStatuses(j)
		for _, prereq := range step.Prerequisites {
			if s := done[prereq]; s != domain.StepCompleted && s != domain.StepSkipped {
				return fmt.Errorf("journey: step %q blocked on incomplete prerequisite %q", stepID, prereq)
			}
		}
	}

	found := false
	for i := range j.Steps {
		if j.Steps[i].StepID == stepID {
			j.Steps[i].Status = status
			found = true
			break
		}
	}
	if !found {
		j.Steps = append(j.Steps, domain.StepProgress{StepID: stepID, Status: status})
	}

	recomputeActualCompletion(j, now)
	return nil
}

func doneStatuses(j *domain.Journey) map[string]domain.JourneyStepStatus {
	out := make(map[string]domain.JourneyStepStatus, len(j.Steps))
	for _, sp := range j.Steps {
		out[sp.StepID] = sp.Status
	}
	return out
}

// recomputeActualCompletion implements spec §3's invariant:
// actual_completion is set iff every step is completed-or-skipped.
func recomputeActualCompletion(j *domain.Journey, now time.Time) {
	for _, sp := range j.Steps {
		if sp.Status != domain.StepCompleted && sp.Status != domain.StepSkipped {
			j.ActualCompletion = nil
			return
		}
	}
	if j.ActualCompletion == nil {
		j.ActualCompletion = ptr.Pointer(now)
	}
}
