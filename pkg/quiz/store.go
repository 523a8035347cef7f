// Package quiz holds the per-session test state machine, the scoring
// engine and the shareable summary card.
package quiz

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/backsoul/spotit/pkg/catalog"
	"github.com/backsoul/spotit/pkg/models"
)

// SnapshotVersion is the persisted schema version. Bumping it invalidates
// every stored snapshot.
const SnapshotVersion = 2

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrEmptySelection    = errors.New("no questions match the selected phase and level")
	ErrInvalidPhase      = errors.New("invalid phase")
	ErrUnknownQuestion   = errors.New("question is not part of the active test")
	ErrUnknownOption     = errors.New("option does not belong to the question")
	ErrUnanswered        = errors.New("current question has not been answered")
	ErrSnapshotVersion   = errors.New("snapshot schema version mismatch")
	ErrSnapshotStale     = errors.New("snapshot does not match the catalog")
)

// Action names a store operation in the transition table.
type Action string

const (
	ActionStart    Action = "start"
	ActionNext     Action = "next"
	ActionPrevious Action = "previous"
	ActionAnswer   Action = "answer"
	ActionComplete Action = "complete"
	ActionReset    Action = "reset"
)

// transitions lists the actions each state accepts. StartTest and ResetTest
// are accepted everywhere; completing twice recomputes the result.
var transitions = map[models.SessionStatus]map[Action]bool{
	models.StatusNotStarted: {
		ActionStart: true, ActionReset: true,
	},
	models.StatusInProgress: {
		ActionStart: true, ActionNext: true, ActionPrevious: true,
		ActionAnswer: true, ActionComplete: true, ActionReset: true,
	},
	models.StatusCompleted: {
		ActionStart: true, ActionComplete: true, ActionReset: true,
	},
}

// Outcome tells the caller what Advance did.
type Outcome string

const (
	OutcomeMoved     Outcome = "moved"
	OutcomeCompleted Outcome = "completed"
)

// Store is the state container of one quiz session. All methods are safe
// for concurrent use; listeners run after the mutation, outside the lock.
type Store struct {
	mu        sync.Mutex
	state     models.SessionState
	listeners []func(models.SessionState)
}

// NewStore creates a store over the loaded catalog. allQuestions is never
// modified by the store.
func NewStore(allQuestions []models.Question, lang string) *Store {
	if lang == "" {
		lang = DefaultLanguage
	}
	s := &Store{}
	s.state.AllQuestions = allQuestions
	s.state.Language = lang
	s.resetLocked()
	return s
}

// Subscribe registers fn to be called with the new state after every
// successful mutation.
func (s *Store) Subscribe(fn func(models.SessionState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Status returns the current state machine state.
func (s *Store) Status() models.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// View returns a copy of the session state.
func (s *Store) View() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// StartTest activates the questions of phase, narrowed to level for the
// spot phase. An empty selection records the choice, leaves the test not
// started and returns ErrEmptySelection.
func (s *Store) StartTest(phase models.Phase, level *models.Level) error {
	if !phase.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPhase, phase)
	}
	return s.mutate(ActionStart, func() error {
		selected := catalog.Filter(s.state.AllQuestions, phase, level)

		p := phase
		s.state.CurrentPhase = &p
		s.state.CurrentLevel = nil
		if phase == models.PhaseSpot && level != nil {
			l := *level
			s.state.CurrentLevel = &l
		}
		s.state.Questions = selected
		s.state.CurrentQuestionIndex = 0
		s.state.Answers = []models.Answer{}
		s.state.Result = nil
		s.state.IsTestCompleted = false
		s.state.IsTestStarted = len(selected) > 0
		s.state.Status = s.statusLocked()

		if len(selected) == 0 {
			return ErrEmptySelection
		}
		return nil
	})
}

// NextQuestion moves forward one question; at the last question it does
// nothing.
func (s *Store) NextQuestion() error {
	return s.mutate(ActionNext, func() error {
		if s.state.CurrentQuestionIndex < len(s.state.Questions)-1 {
			s.state.CurrentQuestionIndex++
		}
		return nil
	})
}

// PreviousQuestion moves back one question; at the first question it does
// nothing.
func (s *Store) PreviousQuestion() error {
	return s.mutate(ActionPrevious, func() error {
		if s.state.CurrentQuestionIndex > 0 {
			s.state.CurrentQuestionIndex--
		}
		return nil
	})
}

// AnswerQuestion records a, replacing any earlier answer to the same
// question. The position does not change.
func (s *Store) AnswerQuestion(a models.Answer) error {
	return s.mutate(ActionAnswer, func() error {
		s.upsertLocked(a)
		return nil
	})
}

// AnswerOption records the choice of optionID for questionID with the
// option's own score and returns the chosen option.
func (s *Store) AnswerOption(questionID, optionID string) (models.Option, error) {
	var chosen models.Option
	err := s.mutate(ActionAnswer, func() error {
		q, ok := s.activeQuestionLocked(questionID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
		}
		o, ok := q.Option(optionID)
		if !ok {
			return fmt.Errorf("%w: %s/%s", ErrUnknownOption, questionID, optionID)
		}
		chosen = o
		s.upsertLocked(models.Answer{QuestionID: q.ID, SelectedOptionID: o.ID, Score: o.Points()})
		return nil
	})
	return chosen, err
}

// LastQuestionAnswered reports whether the test sits on its last question
// and that question has an answer (or needs none).
func (s *Store) LastQuestionAnswered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statusLocked() != models.StatusInProgress {
		return false
	}
	return s.state.CurrentQuestionIndex == len(s.state.Questions)-1 && s.currentAnsweredLocked()
}

// Advance is the "next" button: it requires the current multiple-choice
// question to be answered, then completes on the last question and moves
// forward otherwise.
func (s *Store) Advance() (Outcome, error) {
	s.mu.Lock()
	status := s.statusLocked()
	if !transitions[status][ActionNext] {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %s from %s", ErrInvalidTransition, ActionNext, status)
	}
	if !s.currentAnsweredLocked() {
		s.mu.Unlock()
		return "", ErrUnanswered
	}
	last := s.state.CurrentQuestionIndex == len(s.state.Questions)-1
	s.mu.Unlock()

	if last {
		if err := s.CompleteTest(); err != nil {
			return "", err
		}
		return OutcomeCompleted, nil
	}
	if err := s.NextQuestion(); err != nil {
		return "", err
	}
	return OutcomeMoved, nil
}

// CompleteTest scores the answers, renders the summary card and marks the
// test completed. Calling it again recomputes the result from scratch.
func (s *Store) CompleteTest() error {
	return s.mutate(ActionComplete, func() error {
		result := CalculateResult(s.state.Answers, s.state.Questions, s.state.Language)
		result.ShareableCardURL = GenerateCard(result, s.state.Language)
		s.state.Result = &result
		s.state.IsTestCompleted = true
		return nil
	})
}

// ResetTest returns every field but the catalog to its initial value.
func (s *Store) ResetTest() error {
	return s.mutate(ActionReset, func() error {
		s.resetLocked()
		return nil
	})
}

// Snapshot captures the persisted subset of the session, including the
// selection that produced the active questions.
func (s *Store) Snapshot() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(s.state.Questions))
	for i, q := range s.state.Questions {
		ids[i] = q.ID
	}
	return models.Snapshot{
		Version:              SnapshotVersion,
		Answers:              append([]models.Answer{}, s.state.Answers...),
		CurrentQuestionIndex: s.state.CurrentQuestionIndex,
		IsTestStarted:        s.state.IsTestStarted,
		IsTestCompleted:      s.state.IsTestCompleted,
		Result:               copyResult(s.state.Result),
		CurrentPhase:         copyPhase(s.state.CurrentPhase),
		CurrentLevel:         copyLevel(s.state.CurrentLevel),
		QuestionIDs:          ids,
		Language:             s.state.Language,
		SavedAt:              time.Now().UTC(),
	}
}

// Restore replaces the session with snap. The active questions are rebuilt
// from the catalog; a snapshot that no longer fits the catalog is rejected
// and the store is left untouched.
func (s *Store) Restore(snap models.Snapshot) error {
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrSnapshotVersion, snap.Version, SnapshotVersion)
	}

	s.mu.Lock()
	byID := make(map[string]models.Question, len(s.state.AllQuestions))
	for _, q := range s.state.AllQuestions {
		byID[q.ID] = q
	}
	questions := make([]models.Question, 0, len(snap.QuestionIDs))
	for _, id := range snap.QuestionIDs {
		q, ok := byID[id]
		if !ok {
			s.mu.Unlock()
			return fmt.Errorf("%w: unknown question %s", ErrSnapshotStale, id)
		}
		questions = append(questions, q)
	}

	switch {
	case snap.IsTestCompleted && snap.Result == nil:
		s.mu.Unlock()
		return fmt.Errorf("%w: completed without result", ErrSnapshotStale)
	case snap.IsTestStarted && !snap.IsTestCompleted &&
		(snap.CurrentQuestionIndex < 0 || snap.CurrentQuestionIndex >= len(questions)):
		s.mu.Unlock()
		return fmt.Errorf("%w: index %d outside %d questions", ErrSnapshotStale, snap.CurrentQuestionIndex, len(questions))
	}

	s.state.Questions = questions
	s.state.CurrentQuestionIndex = snap.CurrentQuestionIndex
	s.state.CurrentPhase = copyPhase(snap.CurrentPhase)
	s.state.CurrentLevel = copyLevel(snap.CurrentLevel)
	s.state.Answers = append([]models.Answer{}, snap.Answers...)
	s.state.IsTestStarted = snap.IsTestStarted
	s.state.IsTestCompleted = snap.IsTestCompleted
	s.state.Result = copyResult(snap.Result)
	if snap.Language != "" {
		s.state.Language = snap.Language
	}
	s.state.Status = s.statusLocked()
	s.mu.Unlock()
	return nil
}

// mutate runs fn under the lock when the transition table allows action and
// notifies listeners afterwards. ErrEmptySelection still notifies: the
// chosen phase and level are part of the state.
func (s *Store) mutate(action Action, fn func() error) error {
	s.mu.Lock()
	status := s.statusLocked()
	if !transitions[status][action] {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, status)
	}
	err := fn()
	if err != nil && !errors.Is(err, ErrEmptySelection) {
		s.mu.Unlock()
		return err
	}
	s.state.Status = s.statusLocked()
	view := s.viewLocked()
	listeners := append([]func(models.SessionState){}, s.listeners...)
	s.mu.Unlock()

	for _, listen := range listeners {
		listen(view)
	}
	return err
}

func (s *Store) statusLocked() models.SessionStatus {
	switch {
	case s.state.IsTestCompleted:
		return models.StatusCompleted
	case s.state.IsTestStarted:
		return models.StatusInProgress
	default:
		return models.StatusNotStarted
	}
}

func (s *Store) resetLocked() {
	s.state.Questions = []models.Question{}
	s.state.CurrentQuestionIndex = 0
	s.state.CurrentPhase = nil
	s.state.CurrentLevel = nil
	s.state.Answers = []models.Answer{}
	s.state.IsTestStarted = false
	s.state.IsTestCompleted = false
	s.state.Result = nil
	s.state.Status = models.StatusNotStarted
}

func (s *Store) upsertLocked(a models.Answer) {
	for i := range s.state.Answers {
		if s.state.Answers[i].QuestionID == a.QuestionID {
			s.state.Answers[i] = a
			return
		}
	}
	s.state.Answers = append(s.state.Answers, a)
}

func (s *Store) activeQuestionLocked(id string) (models.Question, bool) {
	for _, q := range s.state.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return models.Question{}, false
}

func (s *Store) currentAnsweredLocked() bool {
	q, ok := s.state.CurrentQuestion()
	if !ok {
		return false
	}
	if !q.Type.IsMultipleChoice() {
		return true
	}
	for _, a := range s.state.Answers {
		if a.QuestionID == q.ID {
			return true
		}
	}
	return false
}

func (s *Store) viewLocked() models.SessionState {
	v := s.state
	v.Questions = append([]models.Question{}, s.state.Questions...)
	v.Answers = append([]models.Answer{}, s.state.Answers...)
	v.CurrentPhase = copyPhase(s.state.CurrentPhase)
	v.CurrentLevel = copyLevel(s.state.CurrentLevel)
	v.Result = copyResult(s.state.Result)
	return v
}

func copyPhase(p *models.Phase) *models.Phase {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

func copyLevel(l *models.Level) *models.Level {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

func copyResult(r *models.Result) *models.Result {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
