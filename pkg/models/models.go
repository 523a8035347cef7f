package models

// Phase identifies one half of the test: "spot" (recognise) or "end" (act).
type Phase string

const (
	PhaseSpot Phase = "spot"
	PhaseEnd  Phase = "end"
)

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	return p == PhaseSpot || p == PhaseEnd
}

// Level is the difficulty tier of a spot question (1-3).
type Level int

const (
	MinLevel Level = 1
	MaxLevel Level = 3
)

// QuestionType determines which payload a Question carries.
type QuestionType string

const (
	TypeMultipleChoiceScore  QuestionType = "multiple_choice_score"
	TypeMultipleChoiceAction QuestionType = "multiple_choice_action"
	TypeInformationGuide     QuestionType = "information_guide"
	TypeInformationContacts  QuestionType = "information_contacts"
	TypeDownloadResource     QuestionType = "download_resource"
)

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	switch t {
	case TypeMultipleChoiceScore, TypeMultipleChoiceAction,
		TypeInformationGuide, TypeInformationContacts, TypeDownloadResource:
		return true
	}
	return false
}

// IsMultipleChoice reports whether questions of this type carry options.
func (t QuestionType) IsMultipleChoice() bool {
	return t == TypeMultipleChoiceScore || t == TypeMultipleChoiceAction
}

// Option is one selectable answer of a multiple-choice question.
type Option struct {
	ID                  string `json:"id"`
	Text                string `json:"text"`
	Score               *int   `json:"score,omitempty"`
	Feedback            string `json:"feedback,omitempty"`
	ConsequenceFeedback string `json:"consequence_feedback,omitempty"`
}

// Points returns the option score, 0 when the option is unscored.
func (o Option) Points() int {
	if o.Score == nil {
		return 0
	}
	return *o.Score
}

// EmergencyContact is a help line listed by information_contacts questions.
type EmergencyContact struct {
	Name    string `json:"name"`
	Details string `json:"details"`
	URL     string `json:"url,omitempty"`
}

// DownloadableResource is the file offered by download_resource questions.
type DownloadableResource struct {
	Text     string `json:"text"`
	URL      string `json:"url"`
	FileName string `json:"fileName,omitempty"`
}

// Question is one catalog entry. Questions are immutable once loaded.
type Question struct {
	ID                   string                `json:"id"`
	Phase                Phase                 `json:"phase"`
	Type                 QuestionType          `json:"type"`
	Prompt               string                `json:"prompt"`
	ImageURL             string                `json:"image_url,omitempty"`
	Level                *Level                `json:"level,omitempty"`
	Options              []Option              `json:"options,omitempty"`
	StepByStepGuide      []string              `json:"step_by_step_guide,omitempty"`
	EmergencyContacts    []EmergencyContact    `json:"emergency_contacts,omitempty"`
	DownloadableResource *DownloadableResource `json:"downloadable_resource,omitempty"`
}

// HasLevel reports whether the question belongs to level l.
func (q Question) HasLevel(l Level) bool {
	return q.Level != nil && *q.Level == l
}

// Option looks up an option by id.
func (q Question) Option(id string) (Option, bool) {
	for _, o := range q.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// MaxScore is the best score any option of q awards; 0 for unscored questions.
func (q Question) MaxScore() int {
	best := 0
	for _, o := range q.Options {
		if p := o.Points(); p > best {
			best = p
		}
	}
	return best
}

// CatalogData is the wrapped form of the catalog file.
type CatalogData struct {
	Questions []Question `json:"questions"`
	Metadata  struct {
		Version     string `json:"version,omitempty"`
		LastUpdated string `json:"lastUpdated,omitempty"`
		Description string `json:"description,omitempty"`
	} `json:"metadata,omitempty"`
}

// CatalogSummary counts the catalog per phase, level and type.
type CatalogSummary struct {
	Total   int                  `json:"totalQuestions"`
	ByPhase map[Phase]int        `json:"byPhase"`
	ByLevel map[Level]int        `json:"byLevel"`
	ByType  map[QuestionType]int `json:"byType"`
	Scored  int                  `json:"scoredQuestions"`
}

// APIResponse is the envelope of every JSON API response.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Warning string      `json:"warning,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// QuestionResponse is the payload of the question endpoints.
type QuestionResponse struct {
	Question  *Question   `json:"question,omitempty"`
	Questions []Question  `json:"questions,omitempty"`
	Count     int         `json:"count,omitempty"`
	Metadata  interface{} `json:"metadata,omitempty"`
}
