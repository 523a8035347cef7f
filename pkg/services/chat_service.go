package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/backsoul/spotit/pkg/models"
)

// ErrMissingAPIKey indica que el chatbot no tiene credenciales configuradas
var ErrMissingAPIKey = errors.New("API key is missing")

// ErrEmptyMessage se devuelve cuando el visitante envía un mensaje vacío
var ErrEmptyMessage = errors.New("message must not be empty")

// Completer es la parte del cliente de go-openai que usa el chatbot
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ExternalServiceError envuelve cualquier fallo de la API de chat. Status es
// el código HTTP de la respuesta, o cero si no hubo respuesta.
type ExternalServiceError struct {
	Status int
	Err    error
}

func (e *ExternalServiceError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("chat completion failed: %v", e.Err)
	}
	return fmt.Sprintf("chat completion failed (%d): %v", e.Status, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// ChatOptions configura el ChatService
type ChatOptions struct {
	Model        string
	SystemPrompt string
	HistoryLimit int
	Timeout      time.Duration
}

// ChatService reenvía las preguntas del visitante a la API de chat
type ChatService struct {
	client Completer
	opts   ChatOptions
	logger *zap.Logger
}

// NewOpenAICompleter crea el cliente de go-openai contra baseURL. Con apiKey
// vacía devuelve nil y el chatbot responde siempre con el mensaje de disculpa.
func NewOpenAICompleter(apiKey, baseURL string) Completer {
	if apiKey == "" {
		return nil
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(config)
}

// NewChatService crea una nueva instancia del servicio. client puede ser nil.
func NewChatService(client Completer, opts ChatOptions, logger *zap.Logger) *ChatService {
	return &ChatService{client: client, opts: opts, logger: logger}
}

// Ask envía el historial recortado y el mensaje nuevo, sin reintentos
func (s *ChatService) Ask(ctx context.Context, history []models.ChatMessage, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	if s.client == nil {
		return "", &ExternalServiceError{Err: ErrMissingAPIKey}
	}

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    s.opts.Model,
		Messages: s.buildMessages(history, text),
	})
	if err != nil {
		serr := &ExternalServiceError{Status: statusOf(err), Err: err}
		s.logger.Warn("chat completion failed", zap.Int("status", serr.Status), zap.Duration("duration", time.Since(start)), zap.Error(err))
		return "", serr
	}
	if len(resp.Choices) == 0 {
		return "", &ExternalServiceError{Err: errors.New("response has no choices")}
	}

	s.logger.Debug("chat completion",
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("duration", time.Since(start)))
	return resp.Choices[0].Message.Content, nil
}

// FallbackReply es la respuesta que ve el visitante cuando la API falla
func FallbackReply(err error) string {
	status := "Unbekannter Fehler"
	var serr *ExternalServiceError
	if errors.As(err, &serr) && serr.Status != 0 {
		status = strconv.Itoa(serr.Status)
	}
	return fmt.Sprintf("Entschuldigung, es gab ein Problem bei der Verbindung mit der API (%s). "+
		"Bitte stelle sicher, dass der API-Schlüssel korrekt eingerichtet ist.", status)
}

func (s *ChatService) buildMessages(history []models.ChatMessage, text string) []openai.ChatCompletionMessage {
	if s.opts.HistoryLimit >= 0 && len(history) > s.opts.HistoryLimit {
		history = history[len(history)-s.opts.HistoryLimit:]
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if s.opts.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleSystem, Content: s.opts.SystemPrompt,
		})
	}
	for _, msg := range history {
		role := openai.ChatMessageRoleUser
		if strings.EqualFold(msg.Role, models.ChatRoleAssistant) {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	return append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: text,
	})
}

func statusOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
