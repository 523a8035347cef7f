package models

// CompletionEventType is the postMessage type a host page listens for.
const CompletionEventType = "SPOT_IT_STOP_IT_COMPLETE"

// CompletionDOMEvent is the name of the same-document CustomEvent.
const CompletionDOMEvent = "spotItStopItComplete"

// CompletionResult is the result part of CompletionMessage.
type CompletionResult struct {
	Score      int    `json:"score"`
	MaxScore   int    `json:"maxScore"`
	Percentage int    `json:"percentage"`
	Feedback   string `json:"feedback"`
}

// CompletionMessage is posted to the host window when an embedded test
// completes. It is the only wire contract a host page can depend on.
type CompletionMessage struct {
	Type   string           `json:"type"`
	Result CompletionResult `json:"result"`
}

// WidgetConfig is the embed configuration passed in the config URL parameter.
type WidgetConfig struct {
	Language       string `json:"language,omitempty"`
	PrimaryColor   string `json:"primaryColor,omitempty"`
	SecondaryColor string `json:"secondaryColor,omitempty"`
	Theme          string `json:"theme,omitempty"`
}

// Chat roles accepted from the client.
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one turn of the chatbot conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string        `json:"message"`
	History []ChatMessage `json:"history"`
}

// ChatResponse is the payload of POST /api/chat.
type ChatResponse struct {
	Reply    ChatMessage `json:"reply"`
	Fallback bool        `json:"fallback,omitempty"`
}
