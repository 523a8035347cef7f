package quiz

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backsoul/spotit/pkg/models"
)

func TestNewStoreStartsEmpty(t *testing.T) {
	s := NewStore(scenarioCatalog(), "")
	v := s.View()

	assert.Equal(t, models.StatusNotStarted, v.Status)
	assert.Empty(t, v.Questions)
	assert.Empty(t, v.Answers)
	assert.Nil(t, v.CurrentPhase)
	assert.Nil(t, v.CurrentLevel)
	assert.Nil(t, v.Result)
	assert.Equal(t, DefaultLanguage, v.Language)
	assert.Len(t, v.AllQuestions, 4)
}

func TestStartTestSelectsPhaseAndLevel(t *testing.T) {
	s := NewStore(scenarioCatalog(), "de")

	require.NoError(t, s.StartTest(models.PhaseSpot, level(1)))
	v := s.View()
	assert.Equal(t, models.StatusInProgress, v.Status)
	assert.True(t, v.IsTestStarted)
	assert.Equal(t, 0, v.CurrentQuestionIndex)
	require.Len(t, v.Questions, 1)
	assert.Equal(t, "spot_1", v.Questions[0].ID)
	assert.Equal(t, models.Level(1), *v.CurrentLevel)

	require.NoError(t, s.StartTest(models.PhaseSpot, nil))
	assert.Len(t, s.View().Questions, 2)
	assert.Nil(t, s.View().CurrentLevel)

	require.NoError(t, s.StartTest(models.PhaseEnd, level(2)))
	v = s.View()
	assert.Len(t, v.Questions, 2)
	assert.Equal(t, models.PhaseEnd, *v.CurrentPhase)
	assert.Nil(t, v.CurrentLevel, "level is only recorded for spot")
}

func TestStartTestEmptySelection(t *testing.T) {
	s := NewStore(scenarioCatalog(), "de")

	err := s.StartTest(models.PhaseSpot, level(4))
	require.ErrorIs(t, err, ErrEmptySelection)

	v := s.View()
	assert.False(t, v.IsTestStarted)
	assert.Empty(t, v.Questions)
	assert.Equal(t, models.StatusNotStarted, v.Status)
	require.NotNil(t, v.CurrentPhase)
	assert.Equal(t, models.PhaseSpot, *v.CurrentPhase)
	assert.Equal(t, models.Level(4), *v.CurrentLevel)

	assert.ErrorIs(t, s.NextQuestion(), ErrInvalidTransition)
}

func TestStartTestRejectsUnknownPhase(t *testing.T) {
	s := NewStore(scenarioCatalog(), "de")
	assert.ErrorIs(t, s.StartTest("stop", nil), ErrInvalidPhase)
}

func TestNavigationStaysInBounds(t *testing.T) {
	s := NewStore(scenarioCatalog(), "de")
	require.NoError(t, s.StartTest(models.PhaseEnd, nil))
	n := len(s.View().Questions)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		if rng.Intn(2) == 0 {
			require.NoError(t, s.NextQuestion())
		} else {
			require.NoError(t, s.PreviousQuestion())
		}
		idx := s.View().CurrentQuestionIndex
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, n)
	}

	require.NoError(t, s.PreviousQuestion())
	require.NoError(t, s.PreviousQuestion())
	assert.Equal(t, 0, s.View().CurrentQuestionIndex)
	require.NoError(t, s.NextQuestion())
	require.NoError(t, s.NextQuestion())
	require.NoError(t, s.NextQuestion())
	assert.Equal(t, n-1, s.View().CurrentQuestionIndex)
}

func TestAnswerQuestionUpsertsByQuestion(t *testing.T) {
	s := NewStore(scenarioCatalog(), "de")
	require.NoError(t, s.StartTest(models.PhaseSpot, level(1)))

	require.NoError(t, s.AnswerQuestion(models.Answer{QuestionID: "spot_1", SelectedOptionID: "spot_1_a", Score: 1}))
	require.NoError(t, s.AnswerQuestion(models.Answer{QuestionID: "spot_1", SelectedOptionID: "spot_1_b", Score: 3}))

	v := s.View()
	require.Len(t, v.Answers, 1)
	assert.Equal(t, "spot_1_b", v.Answers[0].SelectedOptionID)
	assert.Equal(t, 3, v.Answers[0].Score)
	assert.Equal(t, 0, v.CurrentQuestionIndex, "answering does not move")
}

func TestAnswerOptionResolvesScore(t *testing.T) {
	s := NewStore(scenarioCatalog(), "de")
	require.NoError(t, s.StartTest(models.PhaseEnd, nil))

	opt, err := s.AnswerOption("end_1", "end_1_b")
	require.NoError(t, err)
	assert.Equal(t, "good", opt.ConsequenceFeedback)
	assert.Equal(t, []models.Answer{{QuestionID: "end_1", SelectedOptionID: "end_1_b", Score: 2}}, s.View().Answers)

	_, err = s.AnswerOption("spot_1", "spot_1_a")
	assert.ErrorIs(t, err, ErrUnknownQuestion)
	_, err = s.AnswerOption("end_1", "nope")
	assert.ErrorIs(t, err, ErrUnknownOption)
}

func TestActionsRequireAStartedTest(t *testing.T) {
	s := NewStore(scenarioCatalog(), "de")

	assert.ErrorIs(t, s.NextQuestion(), ErrInvalidTransition)
	assert.ErrorIs(t, s.PreviousQuestion(), ErrInvalidTransition)
	assert.ErrorIs(t, s.AnswerQuestion(models.Answer{QuestionID: "spot_1"}), ErrInvalidTransition)
	assert.ErrorIs(t, s.CompleteTest(), ErrInvalidTransition)
	_, err := s.Advance()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NoError(t, s.ResetTest())
}

func TestScenarioAFullRun(t *testing.T) {
	s := NewStore(scenarioCatalog()[:3], "en")

	// The spot level 1 question first, then the end question, in one session.
	require.NoError(t, s.StartTest(models.PhaseSpot, level(1)))
	_, err := s.AnswerOption("spot_1", "spot_1_b")
	require.NoError(t, err)
	spot := s.View().Answers

	require.NoError(t, s.StartTest(models.PhaseEnd, nil))
	_, err = s.AnswerOption("end_1", "end_1_b")
	require.NoError(t, err)

	result := CalculateResult(append(spot, s.View().Answers...), []models.Question{scenarioCatalog()[0], scenarioCatalog()[2]}, "en")
	assert.Equal(t, 5, result.TotalScore)
	assert.Equal(t, 5, result.MaxScore)
	assert.Equal(t, 3, result.SpotScore)
	assert.Equal(t, 2, result.EndScore)
	assert.Equal(t, "excellent", result.Tier)
	assert.Equal(t, Tiers[0].Feedback["en"], result.Feedback)
}

func TestAdvanceCompletesOnLastQuestion(t *testing.T) {
	s := NewStore(scenarioCatalog(), "de")
	require.NoError(t, s.StartTest(models.PhaseEnd, nil))

	_, err := s.Advance()
	require.ErrorIs(t, err, ErrUnanswered)

	_, err = s.AnswerOption("end_1", "end_1_b")
	require.NoError(t, err)
	assert.False(t, s.LastQuestionAnswered())

	outcome, err := s.Advance()
	require.NoError(t, err)
	assert.Equal(t, OutcomeMoved, outcome)
	assert.True(t, s.LastQuestionAnswered(), "information pages need no answer")
	assert.Equal(t, models.StatusInProgress, s.Status())

	outcome, err = s.Advance()
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	v := s.View()
	assert.Equal(t, models.StatusCompleted, v.Status)
	require.NotNil(t, v.Result)
	assert.Equal(t, 2, v.Result.TotalScore)
	assert.Equal(t, 2, v.Result.MaxScore)
	assert.Equal(t, 100, v.Result.Percentage)
	assert.Contains(t, v.Result.ShareableCardURL, "data:image/svg+xml;base64,")
}

func TestCompleteTestIsIdempotent(t *testing.T) {
	s := NewStore(scenarioCatalog(), "de")
	require.NoError(t, s.StartTest(models.PhaseSpot, nil))
	_, err := s.AnswerOption("spot_1", "spot_1_a")
	require.NoError(t, err)

	require.NoError(t, s.CompleteTest())
	first := *s.View().Result
	require.NoError(t, s.CompleteTest())
	second := *s.View().Result

	assert.Equal(t, first, second)
	assert.Equal(t, 1, second.TotalScore)
	assert.Equal(t, 5, second.MaxScore)
	assert.True(t, s.View().IsTestCompleted)

	assert.ErrorIs(t, s.AnswerQuestion(models.Answer{QuestionID: "spot_1"}), ErrInvalidTransition)
}

func TestScenarioDResetThenRestart(t *testing.T) {
	s := NewStore(scenarioCatalog(), "de")
	require.NoError(t, s.StartTest(models.PhaseSpot, level(1)))
	_, err := s.AnswerOption("spot_1", "spot_1_b")
	require.NoError(t, err)
	require.NoError(t, s.CompleteTest())

	require.NoError(t, s.ResetTest())
	v := s.View()
	assert.Equal(t, models.StatusNotStarted, v.Status)
	assert.Nil(t, v.CurrentPhase)
	assert.Nil(t, v.Result)
	assert.Len(t, v.AllQuestions, 4, "catalog survives reset")

	require.NoError(t, s.StartTest(models.PhaseSpot, level(1)))
	v = s.View()
	assert.False(t, v.IsTestCompleted)
	assert.Empty(t, v.Answers)
	assert.Equal(t, 0, v.CurrentQuestionIndex)
}

func TestSubscribersSeeEveryMutation(t *testing.T) {
	s := NewStore(scenarioCatalog(), "de")
	var seen []models.SessionStatus
	s.Subscribe(func(v models.SessionState) { seen = append(seen, v.Status) })

	require.ErrorIs(t, s.StartTest(models.PhaseSpot, level(4)), ErrEmptySelection)
	require.NoError(t, s.StartTest(models.PhaseSpot, level(1)))
	require.NoError(t, s.CompleteTest())
	require.ErrorIs(t, s.NextQuestion(), ErrInvalidTransition)
	require.NoError(t, s.ResetTest())

	assert.Equal(t, []models.SessionStatus{
		models.StatusNotStarted,
		models.StatusInProgress,
		models.StatusCompleted,
		models.StatusNotStarted,
	}, seen)
}

func TestViewIsACopy(t *testing.T) {
	s := NewStore(scenarioCatalog(), "de")
	require.NoError(t, s.StartTest(models.PhaseSpot, level(1)))
	require.NoError(t, s.AnswerQuestion(models.Answer{QuestionID: "spot_1", Score: 1}))

	v := s.View()
	v.Answers[0].Score = 99
	*v.CurrentLevel = 3

	assert.Equal(t, 1, s.View().Answers[0].Score)
	assert.Equal(t, models.Level(1), *s.View().CurrentLevel)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := NewStore(scenarioCatalog(), "en")
	require.NoError(t, s.StartTest(models.PhaseEnd, nil))
	_, err := s.AnswerOption("end_1", "end_1_a")
	require.NoError(t, err)
	require.NoError(t, s.NextQuestion())

	snap := s.Snapshot()
	assert.Equal(t, SnapshotVersion, snap.Version)
	assert.Equal(t, []string{"end_1", "end_guide"}, snap.QuestionIDs)

	restored := NewStore(scenarioCatalog(), "")
	require.NoError(t, restored.Restore(snap))

	want, got := s.View(), restored.View()
	assert.Equal(t, want.Answers, got.Answers)
	assert.Equal(t, want.CurrentQuestionIndex, got.CurrentQuestionIndex)
	assert.Equal(t, want.CurrentPhase, got.CurrentPhase)
	assert.Equal(t, want.Questions, got.Questions)
	assert.Equal(t, "en", got.Language)
	assert.Equal(t, models.StatusInProgress, got.Status)
}

func TestRestoreNotStartedSnapshotHasNoSelection(t *testing.T) {
	snap := models.Snapshot{
		Version:              SnapshotVersion,
		Answers:              []models.Answer{{QuestionID: "spot_1", SelectedOptionID: "spot_1_b", Score: 3}},
		CurrentQuestionIndex: 0,
	}
	s := NewStore(scenarioCatalog(), "de")
	require.NoError(t, s.Restore(snap))

	v := s.View()
	assert.Equal(t, snap.Answers, v.Answers)
	assert.Equal(t, 0, v.CurrentQuestionIndex)
	assert.Empty(t, v.Questions)
	assert.Nil(t, v.CurrentPhase)
	assert.Equal(t, models.StatusNotStarted, v.Status)
}

func TestRestoreRejectsStaleSnapshots(t *testing.T) {
	s := NewStore(scenarioCatalog(), "de")
	require.NoError(t, s.StartTest(models.PhaseSpot, level(1)))

	cases := map[string]struct {
		snap models.Snapshot
		want error
	}{
		"old version":    {models.Snapshot{Version: 1}, ErrSnapshotVersion},
		"unknown id":     {models.Snapshot{Version: SnapshotVersion, QuestionIDs: []string{"gone"}}, ErrSnapshotStale},
		"index too big":  {models.Snapshot{Version: SnapshotVersion, IsTestStarted: true, CurrentQuestionIndex: 3, QuestionIDs: []string{"spot_1"}}, ErrSnapshotStale},
		"missing result": {models.Snapshot{Version: SnapshotVersion, IsTestStarted: true, IsTestCompleted: true}, ErrSnapshotStale},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, s.Restore(tc.snap), tc.want)
			assert.Equal(t, models.StatusInProgress, s.Status(), "store untouched")
		})
	}
}
