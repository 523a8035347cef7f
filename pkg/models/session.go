package models

import "time"

// SessionStatus is the name of the quiz state machine state.
type SessionStatus string

const (
	StatusNotStarted SessionStatus = "not_started"
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
)

// Answer is the recorded choice for one question. Re-answering a question
// replaces its Answer.
type Answer struct {
	QuestionID       string `json:"questionId"`
	SelectedOptionID string `json:"selectedOptionId"`
	Score            int    `json:"score"`
}

// Result is the scoring summary of a completed test. It is always
// recomputed wholesale, never patched.
type Result struct {
	TotalScore       int    `json:"totalScore"`
	MaxScore         int    `json:"maxScore"`
	SpotScore        int    `json:"spotScore"`
	EndScore         int    `json:"endScore"`
	Percentage       int    `json:"percentage"`
	Tier             string `json:"tier"`
	Feedback         string `json:"feedback"`
	ShareableCardURL string `json:"shareableCardUrl,omitempty"`
}

// SessionState is the full view of one quiz session.
type SessionState struct {
	Status               SessionStatus `json:"state"`
	AllQuestions         []Question    `json:"-"`
	Questions            []Question    `json:"questions"`
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	CurrentPhase         *Phase        `json:"currentPhase"`
	CurrentLevel         *Level        `json:"currentLevel"`
	Answers              []Answer      `json:"answers"`
	IsTestStarted        bool          `json:"isTestStarted"`
	IsTestCompleted      bool          `json:"isTestCompleted"`
	Result               *Result       `json:"result"`
	Language             string        `json:"language"`
}

// CurrentQuestion returns the question at the current index, if any.
func (s SessionState) CurrentQuestion() (Question, bool) {
	if s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.CurrentQuestionIndex], true
}

// Snapshot is the persisted subset of a session. The phase, level and
// question ids are stored together with the answers so a restore can
// rebuild the exact subset the answers belong to.
type Snapshot struct {
	Version              int       `json:"version"`
	Answers              []Answer  `json:"answers"`
	CurrentQuestionIndex int       `json:"currentQuestionIndex"`
	IsTestStarted        bool      `json:"isTestStarted"`
	IsTestCompleted      bool      `json:"isTestCompleted"`
	Result               *Result   `json:"result"`
	CurrentPhase         *Phase    `json:"currentPhase"`
	CurrentLevel         *Level    `json:"currentLevel"`
	QuestionIDs          []string  `json:"questionIds"`
	Language             string    `json:"language,omitempty"`
	SavedAt              time.Time `json:"savedAt"`
}

// SessionCreateRequest is the body of POST /api/sessions.
type SessionCreateRequest struct {
	Language string `json:"language"`
}

// StartTestRequest is the body of POST /api/sessions/{id}/start.
type StartTestRequest struct {
	Phase Phase  `json:"phase"`
	Level *Level `json:"level,omitempty"`
}

// AnswerRequest is the body of POST /api/sessions/{id}/answer.
type AnswerRequest struct {
	QuestionID       string `json:"questionId"`
	SelectedOptionID string `json:"selectedOptionId"`
}

// SessionResponse is the payload of the session endpoints.
type SessionResponse struct {
	SessionID string        `json:"sessionId"`
	Session   *SessionState `json:"session,omitempty"`
	Option    *Option       `json:"option,omitempty"`
	// Outcome is "moved" or "completed" after an advance.
	Outcome string `json:"outcome,omitempty"`
	Reload  bool   `json:"reload,omitempty"`
}

// ShareLinks are the prepared share targets of a result.
type ShareLinks struct {
	Text     string `json:"text"`
	WhatsApp string `json:"whatsapp"`
	Facebook string `json:"facebook"`
	Twitter  string `json:"twitter"`
	Email    string `json:"email"`
}

// ResultResponse is the payload of GET /api/sessions/{id}/result.
type ResultResponse struct {
	Result *Result     `json:"result"`
	Share  *ShareLinks `json:"share,omitempty"`
}
