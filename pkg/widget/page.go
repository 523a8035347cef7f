package widget

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/backsoul/spotit/pkg/models"
)

// PageData is everything the bootstrap page needs.
type PageData struct {
	Config    models.WidgetConfig
	SessionID string
	// WebSocketPath is the completion events endpoint, relative to the page.
	WebSocketPath string
	// AppScript is the URL of the quiz front end loaded in the iframe.
	AppScript string
}

var pageTemplate = template.Must(template.New("widget").Parse(`<!DOCTYPE html>
<html lang="{{if .Config.Language}}{{.Config.Language}}{{else}}de{{end}}">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>ERKENNEN. STOPPEN.</title>
<style>
:root {
{{- if .Config.PrimaryColor}}
  --widget-primary: {{.PrimaryColor}};
{{- end}}
{{- if .Config.SecondaryColor}}
  --widget-secondary: {{.SecondaryColor}};
{{- end}}
}
body.dark { background: #0A1E3F; color: #ffffff; }
</style>
</head>
<body{{if eq .Config.Theme "dark"}} class="dark"{{end}}>
<div id="widget-root" class="widget-container" data-session="{{.SessionID}}" data-language="{{.Config.Language}}"></div>
<script>
(function () {
  var sessionId = {{.SessionID}};
  var eventType = {{.EventType}};
  var domEvent = {{.DOMEvent}};
  if (!sessionId) { return; }
  var scheme = window.location.protocol === "https:" ? "wss://" : "ws://";
  var socket = new WebSocket(scheme + window.location.host + {{.WebSocketPath}} + "?session=" + encodeURIComponent(sessionId));
  socket.onmessage = function (event) {
    var message;
    try { message = JSON.parse(event.data); } catch (e) { return; }
    if (!message || message.type !== eventType) { return; }
    if (window.parent !== window) {
      window.parent.postMessage(message, "*");
    }
    window.dispatchEvent(new CustomEvent(domEvent, { detail: message.result }));
  };
})();
</script>
{{- if .AppScript}}
<script type="module" src="{{.AppScript}}"></script>
{{- end}}
</body>
</html>
`))

type pageView struct {
	PageData
	PrimaryColor   template.CSS
	SecondaryColor template.CSS
	EventType      string
	DOMEvent       string
}

// RenderPage renders the iframe bootstrap page. The config must come from
// ParseConfig; colors are written into the stylesheet unescaped.
func RenderPage(data PageData) ([]byte, error) {
	if data.WebSocketPath == "" {
		data.WebSocketPath = "/ws"
	}
	view := pageView{
		PageData:       data,
		PrimaryColor:   template.CSS(data.Config.PrimaryColor),
		SecondaryColor: template.CSS(data.Config.SecondaryColor),
		EventType:      models.CompletionEventType,
		DOMEvent:       models.CompletionDOMEvent,
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("rendering widget page: %w", err)
	}
	return buf.Bytes(), nil
}
