package handlers

import (
	"errors"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/backsoul/spotit/pkg/models"
	"github.com/backsoul/spotit/pkg/quiz"
	"github.com/backsoul/spotit/pkg/services"
)

// SessionHandler maneja las peticiones HTTP para sesiones
type SessionHandler struct {
	sessionService  *services.SessionService
	questionService *services.QuestionService
	publicURL       string
	logger          *zap.Logger
}

// NewSessionHandler crea una nueva instancia del handler de sesiones.
// publicURL se usa en los enlaces para compartir.
func NewSessionHandler(sessionService *services.SessionService, questionService *services.QuestionService, publicURL string, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService:  sessionService,
		questionService: questionService,
		publicURL:       strings.TrimSuffix(publicURL, "/"),
		logger:          logger,
	}
}

// CreateSession maneja POST /api/sessions
func (h *SessionHandler) CreateSession(ctx *fasthttp.RequestCtx) {
	var request models.SessionCreateRequest
	if !decodeBody(ctx, &request) {
		return
	}

	id, state, err := h.sessionService.Create(ctx, request.Language)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}

	respondWithSuccess(ctx, models.SessionResponse{SessionID: id, Session: &state}, "Sesión creada exitosamente")
}

// GetSession maneja GET /api/sessions/{id}
func (h *SessionHandler) GetSession(ctx *fasthttp.RequestCtx) {
	id := sessionID(ctx)
	state, err := h.sessionService.View(ctx, id)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}

	respondWithSuccess(ctx, models.SessionResponse{SessionID: id, Session: &state}, "Sesión obtenida exitosamente")
}

// StartTest maneja POST /api/sessions/{id}/start
func (h *SessionHandler) StartTest(ctx *fasthttp.RequestCtx) {
	var request models.StartTestRequest
	if !decodeBody(ctx, &request) {
		return
	}

	id := sessionID(ctx)
	state, err := h.sessionService.Start(ctx, id, request.Phase, request.Level)
	h.respondWithState(ctx, id, state, err, "Test iniciado")
}

// SubmitAnswer maneja POST /api/sessions/{id}/answer
func (h *SessionHandler) SubmitAnswer(ctx *fasthttp.RequestCtx) {
	var request models.AnswerRequest
	if !decodeBody(ctx, &request) {
		return
	}
	if request.QuestionID == "" || request.SelectedOptionID == "" {
		respondWithError(ctx, fasthttp.StatusBadRequest, "questionId y selectedOptionId son requeridos")
		return
	}

	id := sessionID(ctx)
	state, option, err := h.sessionService.Answer(ctx, id, request.QuestionID, request.SelectedOptionID)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}

	respondWithSuccess(ctx, models.SessionResponse{SessionID: id, Session: &state, Option: &option}, "Respuesta registrada")
}

// NextQuestion maneja POST /api/sessions/{id}/next
func (h *SessionHandler) NextQuestion(ctx *fasthttp.RequestCtx) {
	id := sessionID(ctx)
	state, err := h.sessionService.Next(ctx, id)
	h.respondWithState(ctx, id, state, err, "Siguiente pregunta")
}

// PreviousQuestion maneja POST /api/sessions/{id}/previous
func (h *SessionHandler) PreviousQuestion(ctx *fasthttp.RequestCtx) {
	id := sessionID(ctx)
	state, err := h.sessionService.Previous(ctx, id)
	h.respondWithState(ctx, id, state, err, "Pregunta anterior")
}

// Advance maneja POST /api/sessions/{id}/advance
func (h *SessionHandler) Advance(ctx *fasthttp.RequestCtx) {
	id := sessionID(ctx)
	state, outcome, err := h.sessionService.Advance(ctx, id)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}

	respondWithSuccess(ctx, models.SessionResponse{SessionID: id, Session: &state, Outcome: string(outcome)}, "Avance registrado")
}

// CompleteTest maneja POST /api/sessions/{id}/complete
func (h *SessionHandler) CompleteTest(ctx *fasthttp.RequestCtx) {
	id := sessionID(ctx)
	state, err := h.sessionService.Complete(ctx, id)
	h.respondWithState(ctx, id, state, err, "Test completado")
}

// ResetTest maneja POST /api/sessions/{id}/reset
func (h *SessionHandler) ResetTest(ctx *fasthttp.RequestCtx) {
	id := sessionID(ctx)
	state, err := h.sessionService.Reset(ctx, id)
	h.respondWithState(ctx, id, state, err, "Test reiniciado")
}

// ClearSession maneja DELETE /api/sessions/{id} y POST /api/sessions/{id}/clear
func (h *SessionHandler) ClearSession(ctx *fasthttp.RequestCtx) {
	id := sessionID(ctx)
	if err := h.sessionService.Clear(ctx, id); err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}

	respondWithSuccess(ctx, models.SessionResponse{SessionID: id, Reload: true}, "Progreso eliminado")
}

// GetResult maneja GET /api/sessions/{id}/result
func (h *SessionHandler) GetResult(ctx *fasthttp.RequestCtx) {
	id := sessionID(ctx)
	state, ok := h.completedState(ctx, id)
	if !ok {
		return
	}

	share := quiz.ShareLinks(*state.Result, state.Language, h.publicURL, "")
	respondWithSuccess(ctx, models.ResultResponse{Result: state.Result, Share: &share}, "Resultado obtenido exitosamente")
}

// GetCard maneja GET /api/sessions/{id}/card.svg
func (h *SessionHandler) GetCard(ctx *fasthttp.RequestCtx) {
	id := sessionID(ctx)
	state, ok := h.completedState(ctx, id)
	if !ok {
		return
	}

	ctx.Response.Header.Set("Content-Type", "image/svg+xml")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(quiz.RenderCardSVG(*state.Result, state.Language))
}

// HealthCheck maneja GET /api/health
func (h *SessionHandler) HealthCheck(ctx *fasthttp.RequestCtx) {
	if err := h.questionService.HealthCheck(ctx); err != nil {
		respondWithError(ctx, fasthttp.StatusServiceUnavailable, "Servicio no disponible: "+err.Error())
		return
	}
	if err := h.sessionService.HealthCheck(ctx); err != nil {
		respondWithError(ctx, fasthttp.StatusServiceUnavailable, "Servicio no disponible: "+err.Error())
		return
	}

	respondWithSuccess(ctx, map[string]interface{}{
		"status":         "healthy",
		"storage":        "connected",
		"activeSessions": h.sessionService.ActiveSessions(),
	}, "Servicio funcionando correctamente")
}

// completedState obtiene la sesión y exige que el test esté completado
func (h *SessionHandler) completedState(ctx *fasthttp.RequestCtx, id string) (models.SessionState, bool) {
	state, err := h.sessionService.View(ctx, id)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return models.SessionState{}, false
	}
	if state.Result == nil {
		respondWithError(ctx, fasthttp.StatusConflict, "El test no está completado")
		return models.SessionState{}, false
	}
	return state, true
}

// respondWithState responde con el estado; una selección vacía es una advertencia
func (h *SessionHandler) respondWithState(ctx *fasthttp.RequestCtx, id string, state models.SessionState, err error, message string) {
	resp := models.SessionResponse{SessionID: id, Session: &state}
	switch {
	case errors.Is(err, quiz.ErrEmptySelection):
		respondWithWarning(ctx, resp, err.Error())
	case err != nil:
		respondWithServiceError(ctx, h.logger, err)
	default:
		respondWithSuccess(ctx, resp, message)
	}
}
