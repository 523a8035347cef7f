package widget

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/backsoul/spotit/pkg/models"
)

func TestParseConfig(t *testing.T) {
	raw := `{"language":"en","primaryColor":"#dd4d22","secondaryColor":"rgb(10, 30, 63)","theme":"dark","extra":true}`

	tests := []struct {
		name string
		raw  string
	}{
		{"plain", raw},
		{"encoded once more", url.PathEscape(raw)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ParseConfig(tt.raw, zap.NewNop())
			assert.Equal(t, models.WidgetConfig{
				Language:       "en",
				PrimaryColor:   "#dd4d22",
				SecondaryColor: "rgb(10, 30, 63)",
				Theme:          "dark",
			}, cfg)
		})
	}
}

func TestParseConfigDropsInvalidValues(t *testing.T) {
	cfg := ParseConfig(`{"language":"deutsch","primaryColor":"red;background:url(x)","secondaryColor":"navy","theme":"neon"}`, zap.NewNop())
	assert.Equal(t, models.WidgetConfig{SecondaryColor: "navy"}, cfg)
}

func TestParseConfigMalformed(t *testing.T) {
	assert.Equal(t, models.WidgetConfig{}, ParseConfig("{not json", zap.NewNop()))
	assert.Equal(t, models.WidgetConfig{}, ParseConfig("", zap.NewNop()))
}

func TestNewCompletionMessage(t *testing.T) {
	msg := NewCompletionMessage(models.Result{TotalScore: 3, MaxScore: 8, Feedback: "Gut"})

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"SPOT_IT_STOP_IT_COMPLETE","result":{"score":3,"maxScore":8,"percentage":38,"feedback":"Gut"}}`, string(data))
}

func TestNewCompletionMessageZeroMax(t *testing.T) {
	msg := NewCompletionMessage(models.Result{})
	assert.Equal(t, 0, msg.Result.Percentage)
}

func TestRenderPage(t *testing.T) {
	page, err := RenderPage(PageData{
		Config:    models.WidgetConfig{Language: "en", PrimaryColor: "#dd4d22", Theme: "dark"},
		SessionID: "abc-123",
		AppScript: "/assets/widget.js",
	})
	require.NoError(t, err)

	html := string(page)
	assert.Contains(t, html, `<html lang="en">`)
	assert.Contains(t, html, `--widget-primary: #dd4d22;`)
	assert.NotContains(t, html, `--widget-secondary`)
	assert.Contains(t, html, `<body class="dark">`)
	assert.Contains(t, html, `data-session="abc-123"`)
	assert.Contains(t, html, `var sessionId = "abc-123";`)
	assert.Contains(t, html, `"SPOT_IT_STOP_IT_COMPLETE"`)
	assert.Contains(t, html, `"spotItStopItComplete"`)
	assert.Contains(t, html, `window.parent.postMessage(message, "*")`)
	assert.Contains(t, html, `src="/assets/widget.js"`)
}

func TestRenderPageEscapesSession(t *testing.T) {
	page, err := RenderPage(PageData{SessionID: `"><script>alert(1)</script>`})
	require.NoError(t, err)
	assert.NotContains(t, string(page), `<script>alert(1)</script>`)
	assert.Contains(t, string(page), `<html lang="de">`)
	assert.NotContains(t, string(page), `class="dark"`)
}
