package quiz

import "github.com/backsoul/spotit/pkg/models"

func score(n int) *int { return &n }

func level(n int) *models.Level {
	l := models.Level(n)
	return &l
}

// scenarioCatalog is one spot level-1 question scored {1,3} and one end
// question scored {0,2}, plus an unscored information page.
func scenarioCatalog() []models.Question {
	return []models.Question{
		{
			ID: "spot_1", Phase: models.PhaseSpot, Type: models.TypeMultipleChoiceScore,
			Level: level(1), Prompt: "Spot prompt",
			Options: []models.Option{
				{ID: "spot_1_a", Text: "low", Score: score(1), Feedback: "low feedback"},
				{ID: "spot_1_b", Text: "high", Score: score(3), Feedback: "high feedback"},
			},
		},
		{
			ID: "spot_2", Phase: models.PhaseSpot, Type: models.TypeMultipleChoiceScore,
			Level: level(2), Prompt: "Level two prompt",
			Options: []models.Option{
				{ID: "spot_2_a", Text: "only", Score: score(2)},
			},
		},
		{
			ID: "end_1", Phase: models.PhaseEnd, Type: models.TypeMultipleChoiceAction,
			Prompt: "End prompt",
			Options: []models.Option{
				{ID: "end_1_a", Text: "wait", Score: score(0), ConsequenceFeedback: "too late"},
				{ID: "end_1_b", Text: "act", Score: score(2), ConsequenceFeedback: "good"},
			},
		},
		{
			ID: "end_guide", Phase: models.PhaseEnd, Type: models.TypeInformationGuide,
			Prompt: "Guide", StepByStepGuide: []string{"one", "two"},
		},
	}
}
