package handlers

import (
	"fmt"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/backsoul/spotit/pkg/models"
	"github.com/backsoul/spotit/pkg/services"
)

// QuestionHandler maneja las peticiones HTTP para preguntas
type QuestionHandler struct {
	questionService *services.QuestionService
	logger          *zap.Logger
}

// NewQuestionHandler crea una nueva instancia del handler
func NewQuestionHandler(questionService *services.QuestionService, logger *zap.Logger) *QuestionHandler {
	return &QuestionHandler{
		questionService: questionService,
		logger:          logger,
	}
}

// GetAllQuestions maneja GET /api/questions, con filtro opcional ?phase=&level=
func (h *QuestionHandler) GetAllQuestions(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	phase := models.Phase(args.Peek("phase"))

	var (
		questions []models.Question
		err       error
	)
	if phase == "" {
		questions, err = h.questionService.All(ctx)
	} else {
		if !phase.Valid() {
			respondWithError(ctx, fasthttp.StatusBadRequest, fmt.Sprintf("Fase inválida: %s", phase))
			return
		}
		level, ok := parseLevel(ctx)
		if !ok {
			return
		}
		questions, err = h.questionService.Filter(ctx, phase, level)
	}
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}

	respondWithSuccess(ctx, models.QuestionResponse{
		Questions: questions,
		Count:     len(questions),
	}, "Preguntas obtenidas exitosamente")
}

// GetQuestion maneja GET /api/questions/{id}
func (h *QuestionHandler) GetQuestion(ctx *fasthttp.RequestCtx) {
	id, _ := ctx.UserValue("id").(string)
	question, err := h.questionService.Get(ctx, id)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}

	respondWithSuccess(ctx, models.QuestionResponse{Question: &question}, "Pregunta obtenida exitosamente")
}

// GetQuestionMetadata maneja GET /api/questions/metadata
func (h *QuestionHandler) GetQuestionMetadata(ctx *fasthttp.RequestCtx) {
	summary, err := h.questionService.Metadata(ctx)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}

	respondWithSuccess(ctx, models.QuestionResponse{
		Metadata: summary,
		Count:    summary.Total,
	}, "Metadatos obtenidos exitosamente")
}

// parseLevel lee ?level=; responde 400 si no es un número
func parseLevel(ctx *fasthttp.RequestCtx) (*models.Level, bool) {
	raw := ctx.QueryArgs().Peek("level")
	if len(raw) == 0 {
		return nil, true
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		respondWithError(ctx, fasthttp.StatusBadRequest, fmt.Sprintf("Nivel inválido: %s", raw))
		return nil, false
	}
	level := models.Level(n)
	return &level, true
}
