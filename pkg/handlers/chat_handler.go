package handlers

import (
	"errors"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/backsoul/spotit/pkg/models"
	"github.com/backsoul/spotit/pkg/services"
)

// ChatHandler maneja el proxy del chatbot
type ChatHandler struct {
	chatService *services.ChatService
	logger      *zap.Logger
}

func NewChatHandler(chatService *services.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chatService: chatService, logger: logger}
}

// Chat maneja POST /api/chat. Los fallos de la API externa se responden con
// el mensaje de disculpa y 200 para que la conversación siga.
func (h *ChatHandler) Chat(ctx *fasthttp.RequestCtx) {
	var request models.ChatRequest
	if !decodeBody(ctx, &request) {
		return
	}

	reply, err := h.chatService.Ask(ctx, request.History, request.Message)
	switch {
	case errors.Is(err, services.ErrEmptyMessage):
		respondWithError(ctx, fasthttp.StatusBadRequest, "El mensaje es requerido")
		return
	case err != nil:
		respondWithSuccess(ctx, models.ChatResponse{
			Reply:    models.ChatMessage{Role: models.ChatRoleAssistant, Content: services.FallbackReply(err)},
			Fallback: true,
		}, "")
		return
	}

	respondWithSuccess(ctx, models.ChatResponse{
		Reply: models.ChatMessage{Role: models.ChatRoleAssistant, Content: reply},
	}, "")
}
