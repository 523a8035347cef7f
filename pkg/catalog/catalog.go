// Package catalog loads and validates the static question catalog.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/backsoul/spotit/pkg/models"
)

// ErrCatalogFormat is matched by every *CatalogFormatError.
var ErrCatalogFormat = errors.New("catalog format error")

// CatalogFormatError reports a malformed catalog payload. It is fatal to
// starting a test and must be shown as a blocking message.
type CatalogFormatError struct {
	Problems []string
}

func (e *CatalogFormatError) Error() string {
	return fmt.Sprintf("invalid question catalog: %s", strings.Join(e.Problems, "; "))
}

func (e *CatalogFormatError) Is(target error) bool {
	return target == ErrCatalogFormat
}

func formatError(format string, args ...interface{}) *CatalogFormatError {
	return &CatalogFormatError{Problems: []string{fmt.Sprintf(format, args...)}}
}

// Parse decodes a catalog document: either a bare array of questions or an
// object wrapping the array under "questions". The result is validated.
func Parse(data []byte) ([]models.Question, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, formatError("empty document")
	}

	var questions []models.Question
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &questions); err != nil {
			return nil, formatError("decoding question array: %v", err)
		}
	case '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, formatError("decoding catalog object: %v", err)
		}
		raw, ok := wrapper["questions"]
		if !ok {
			return nil, formatError(`expected an object with a "questions" array or an array of questions`)
		}
		if err := json.Unmarshal(raw, &questions); err != nil {
			return nil, formatError(`decoding "questions": %v`, err)
		}
		if questions == nil {
			return nil, formatError(`"questions" must be an array`)
		}
	default:
		return nil, formatError("expected an object with a \"questions\" array or an array of questions")
	}

	if err := Validate(questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// Validate checks the structural invariants of a catalog and reports every
// violation at once.
func Validate(questions []models.Question) error {
	var problems []string
	report := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	seen := make(map[string]bool, len(questions))
	for i, q := range questions {
		ref := q.ID
		if ref == "" {
			ref = fmt.Sprintf("#%d", i)
			report("question %s: missing id", ref)
		} else if seen[q.ID] {
			report("question %s: duplicate id", ref)
		}
		seen[q.ID] = true

		if !q.Phase.Valid() {
			report("question %s: unknown phase %q", ref, q.Phase)
		}
		if !q.Type.Valid() {
			report("question %s: unknown type %q", ref, q.Type)
		}
		if strings.TrimSpace(q.Prompt) == "" {
			report("question %s: empty prompt", ref)
		}
		if q.Level != nil {
			if *q.Level < models.MinLevel || *q.Level > models.MaxLevel {
				report("question %s: level %d out of range", ref, *q.Level)
			}
		}

		switch {
		case q.Type.IsMultipleChoice():
			if len(q.Options) == 0 {
				report("question %s: %s requires options", ref, q.Type)
			}
		case len(q.Options) > 0:
			report("question %s: %s must not carry options", ref, q.Type)
		}

		switch q.Type {
		case models.TypeInformationGuide:
			if len(q.StepByStepGuide) == 0 {
				report("question %s: information_guide requires step_by_step_guide", ref)
			}
		case models.TypeInformationContacts:
			if len(q.EmergencyContacts) == 0 {
				report("question %s: information_contacts requires emergency_contacts", ref)
			}
		case models.TypeDownloadResource:
			if q.DownloadableResource == nil || q.DownloadableResource.URL == "" {
				report("question %s: download_resource requires downloadable_resource.url", ref)
			}
		}

		optionIDs := make(map[string]bool, len(q.Options))
		for _, o := range q.Options {
			if o.ID == "" {
				report("question %s: option without id", ref)
				continue
			}
			if optionIDs[o.ID] {
				report("question %s: duplicate option id %s", ref, o.ID)
			}
			optionIDs[o.ID] = true
			if o.Score != nil && (*o.Score < 0 || *o.Score > 3) {
				report("question %s: option %s score %d out of range 0-3", ref, o.ID, *o.Score)
			}
		}
	}

	if len(problems) > 0 {
		return &CatalogFormatError{Problems: problems}
	}
	return nil
}

// Filter selects the questions of a phase, narrowed to a level when the
// phase is spot and a level is given. Catalog order is preserved.
func Filter(questions []models.Question, phase models.Phase, level *models.Level) []models.Question {
	out := make([]models.Question, 0, len(questions))
	for _, q := range questions {
		if q.Phase != phase {
			continue
		}
		if phase == models.PhaseSpot && level != nil && !q.HasLevel(*level) {
			continue
		}
		out = append(out, q)
	}
	return out
}

// Summarize counts the catalog per phase, level and type.
func Summarize(questions []models.Question) models.CatalogSummary {
	s := models.CatalogSummary{
		Total:   len(questions),
		ByPhase: map[models.Phase]int{},
		ByLevel: map[models.Level]int{},
		ByType:  map[models.QuestionType]int{},
	}
	for _, q := range questions {
		s.ByPhase[q.Phase]++
		s.ByType[q.Type]++
		if q.Level != nil {
			s.ByLevel[*q.Level]++
		}
		if q.MaxScore() > 0 {
			s.Scored++
		}
	}
	return s
}
