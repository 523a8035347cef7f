package quiz

import (
	"math"

	"github.com/backsoul/spotit/pkg/models"
)

// DefaultLanguage is used when a session does not pick one.
const DefaultLanguage = "de"

// Tier is one feedback band of the result page.
type Tier struct {
	Name       string
	MinPercent int
	Label      map[string]string
	Feedback   map[string]string
}

// Tiers, highest first. The last tier catches everything below 40%.
var Tiers = []Tier{
	{
		Name:       "excellent",
		MinPercent: 80,
		Label:      map[string]string{"de": "Ausgezeichnet", "en": "Excellent"},
		Feedback: map[string]string{
			"de": "Hervorragend! Du hast ein ausgezeichnetes Verständnis dafür, wie man sexualisierte Gewalt im Sport erkennt und verhindert.",
			"en": "Excellent! You have a strong understanding of how to identify and stop sexualised violence in sport.",
		},
	},
	{
		Name:       "good",
		MinPercent: 60,
		Label:      map[string]string{"de": "Gut", "en": "Good"},
		Feedback: map[string]string{
			"de": "Gut gemacht! Du kennst die wichtigsten Warnsignale. Mit etwas mehr Wissen kannst du noch sicherer handeln.",
			"en": "Good awareness! There are still some areas where you can improve your knowledge.",
		},
	},
	{
		Name:       "sufficient",
		MinPercent: 40,
		Label:      map[string]string{"de": "Ausreichend", "en": "Sufficient"},
		Feedback: map[string]string{
			"de": "Du hast grundlegende Kenntnisse. Es gibt noch Bereiche, in denen du Warnsignale früher erkennen könntest.",
			"en": "You have some knowledge, but there's room for significant improvement in recognizing warning signs.",
		},
	},
	{
		Name:       "needs_improvement",
		MinPercent: 0,
		Label:      map[string]string{"de": "Verbesserungsbedarf", "en": "Needs improvement"},
		Feedback: map[string]string{
			"de": "Das ist eine wichtige Lernchance. Nutze unsere Materialien, um die Anzeichen besser zu verstehen.",
			"en": "This is an important learning opportunity. We encourage you to explore our resources to better understand the signs.",
		},
	},
}

// percent is the unrounded percentage. A zero maximum counts as 0%.
func percent(total, max int) float64 {
	if max <= 0 {
		return 0
	}
	return float64(total) / float64(max) * 100
}

// Percentage is the rounded percentage shown on the result page, the card,
// the share texts and the widget completion message.
func Percentage(total, max int) int {
	return int(math.Round(percent(total, max)))
}

// TierFor selects the feedback tier for an unrounded percentage.
func TierFor(p float64) Tier {
	for _, t := range Tiers {
		if p >= float64(t.MinPercent) {
			return t
		}
	}
	return Tiers[len(Tiers)-1]
}

func localized(m map[string]string, lang string) string {
	if s, ok := m[lang]; ok {
		return s
	}
	return m[DefaultLanguage]
}

// LabelFor returns the tier label in lang, falling back to German.
func (t Tier) LabelFor(lang string) string { return localized(t.Label, lang) }

// FeedbackFor returns the tier feedback in lang, falling back to German.
func (t Tier) FeedbackFor(lang string) string { return localized(t.Feedback, lang) }

// MaxScore sums the best option score of every question. Questions without
// scored options contribute nothing.
func MaxScore(questions []models.Question) int {
	max := 0
	for _, q := range questions {
		max += q.MaxScore()
	}
	return max
}

// CalculateResult scores answers against the active questions. It is pure:
// the same input always yields the same Result.
func CalculateResult(answers []models.Answer, questions []models.Question, lang string) models.Result {
	phases := make(map[string]models.Phase, len(questions))
	for _, q := range questions {
		phases[q.ID] = q.Phase
	}

	var r models.Result
	for _, a := range answers {
		r.TotalScore += a.Score
		switch phases[a.QuestionID] {
		case models.PhaseSpot:
			r.SpotScore += a.Score
		case models.PhaseEnd:
			r.EndScore += a.Score
		}
	}
	r.MaxScore = MaxScore(questions)

	p := percent(r.TotalScore, r.MaxScore)
	tier := TierFor(p)
	r.Percentage = Percentage(r.TotalScore, r.MaxScore)
	r.Tier = tier.Name
	r.Feedback = tier.FeedbackFor(lang)
	return r
}
