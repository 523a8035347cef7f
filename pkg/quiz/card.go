package quiz

import (
	"encoding/base64"
	"fmt"
	"html"
	"strings"

	"github.com/backsoul/spotit/pkg/models"
)

const (
	cardWidth      = 1200
	cardHeight     = 630
	cardBackground = "#0A1E3F"
	cardAccent     = "#DD4D22"
)

var cardHeadline = map[string]string{
	"de": "Mein Ergebnis im ERKENNEN. STOPPEN. Test",
	"en": "My result in the SPOT IT. STOP IT. test",
}

var cardPoints = map[string]string{
	"de": "Punkte",
	"en": "points",
}

// RenderCardSVG renders the shareable summary of r as a standalone SVG.
// The output depends only on the scores and lang.
func RenderCardSVG(r models.Result, lang string) []byte {
	pct := Percentage(r.TotalScore, r.MaxScore)
	tier := TierFor(percent(r.TotalScore, r.MaxScore))

	// Progress bar width, clamped for scores above the maximum.
	barMax := 800
	bar := barMax * pct / 100
	if bar > barMax {
		bar = barMax
	}
	if bar < 0 {
		bar = 0
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		cardWidth, cardHeight, cardWidth, cardHeight)
	fmt.Fprintf(&b, `<rect width="100%%" height="100%%" fill="%s"/>`, cardBackground)
	fmt.Fprintf(&b, `<text x="600" y="140" font-family="Inter, Arial, sans-serif" font-size="44" font-weight="700" fill="#FFFFFF" text-anchor="middle">%s</text>`,
		html.EscapeString(localized(cardHeadline, lang)))
	fmt.Fprintf(&b, `<text x="600" y="330" font-family="Inter, Arial, sans-serif" font-size="180" font-weight="800" fill="%s" text-anchor="middle">%d%%</text>`,
		cardAccent, pct)
	fmt.Fprintf(&b, `<text x="600" y="410" font-family="Inter, Arial, sans-serif" font-size="48" font-weight="600" fill="#FFFFFF" text-anchor="middle">%s</text>`,
		html.EscapeString(tier.LabelFor(lang)))
	fmt.Fprintf(&b, `<rect x="200" y="460" width="%d" height="24" rx="12" fill="#1F3A66"/>`, barMax)
	fmt.Fprintf(&b, `<rect x="200" y="460" width="%d" height="24" rx="12" fill="%s"/>`, bar, cardAccent)
	fmt.Fprintf(&b, `<text x="600" y="550" font-family="Inter, Arial, sans-serif" font-size="32" fill="#C8D3E6" text-anchor="middle">%d / %d %s</text>`,
		r.TotalScore, r.MaxScore, html.EscapeString(localized(cardPoints, lang)))
	b.WriteString(`</svg>`)
	return []byte(b.String())
}

// GenerateCard returns the summary card as a self-contained data URI.
func GenerateCard(r models.Result, lang string) string {
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString(RenderCardSVG(r, lang))
}
