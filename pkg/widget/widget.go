// Package widget implements the embed protocol: the config a host page passes
// to the iframe and the completion message the iframe posts back.
package widget

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/backsoul/spotit/pkg/models"
	"github.com/backsoul/spotit/pkg/quiz"
)

var (
	colorPattern    = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|[a-zA-Z]{3,20}|(rgb|rgba|hsl|hsla)\([0-9.,%\s]+\))$`)
	languagePattern = regexp.MustCompile(`^[a-z]{2}$`)
)

// ParseConfig decodes the config query value. The value may arrive URL
// encoded once more than the query layer already decoded. Malformed input
// yields the zero config; values that fail validation are dropped.
func ParseConfig(raw string, logger *zap.Logger) models.WidgetConfig {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.WidgetConfig{}
	}

	var cfg models.WidgetConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		decoded, uerr := url.PathUnescape(raw)
		if uerr != nil || json.Unmarshal([]byte(decoded), &cfg) != nil {
			logger.Warn("failed to parse widget config", zap.String("config", raw), zap.Error(err))
			return models.WidgetConfig{}
		}
	}
	return sanitize(cfg)
}

func sanitize(cfg models.WidgetConfig) models.WidgetConfig {
	if !languagePattern.MatchString(cfg.Language) {
		cfg.Language = ""
	}
	if !colorPattern.MatchString(cfg.PrimaryColor) {
		cfg.PrimaryColor = ""
	}
	if !colorPattern.MatchString(cfg.SecondaryColor) {
		cfg.SecondaryColor = ""
	}
	if cfg.Theme != "light" && cfg.Theme != "dark" {
		cfg.Theme = ""
	}
	return cfg
}

// NewCompletionMessage builds the message posted to the host window.
func NewCompletionMessage(r models.Result) models.CompletionMessage {
	return models.CompletionMessage{
		Type: models.CompletionEventType,
		Result: models.CompletionResult{
			Score:      r.TotalScore,
			MaxScore:   r.MaxScore,
			Percentage: quiz.Percentage(r.TotalScore, r.MaxScore),
			Feedback:   r.Feedback,
		},
	}
}
