package handlers

import (
	"encoding/json"
	"errors"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/backsoul/spotit/pkg/catalog"
	"github.com/backsoul/spotit/pkg/models"
	"github.com/backsoul/spotit/pkg/quiz"
	"github.com/backsoul/spotit/pkg/services"
)

// catalogUnavailable es el mensaje bloqueante que ve el visitante
const catalogUnavailable = "Der Fragenkatalog konnte nicht geladen werden. Bitte versuche es später erneut."

// respondWithJSON envía una respuesta JSON
func respondWithJSON(ctx *fasthttp.RequestCtx, statusCode int, response interface{}) {
	ctx.Response.Header.Set("Content-Type", "application/json")
	ctx.SetStatusCode(statusCode)

	jsonData, err := json.Marshal(response)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString(`{"success": false, "error": "Error al serializar respuesta"}`)
		return
	}

	ctx.SetBody(jsonData)
}

// respondWithError envía una respuesta de error
func respondWithError(ctx *fasthttp.RequestCtx, statusCode int, message string) {
	respondWithJSON(ctx, statusCode, models.APIResponse{
		Success: false,
		Error:   message,
	})
}

// respondWithSuccess envía una respuesta exitosa
func respondWithSuccess(ctx *fasthttp.RequestCtx, data interface{}, message string) {
	respondWithJSON(ctx, fasthttp.StatusOK, models.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// respondWithWarning envía una respuesta exitosa con una advertencia no fatal
func respondWithWarning(ctx *fasthttp.RequestCtx, data interface{}, warning string) {
	respondWithJSON(ctx, fasthttp.StatusOK, models.APIResponse{
		Success: true,
		Warning: warning,
		Data:    data,
	})
}

// statusFor traduce los errores del dominio a códigos HTTP
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrQuestionNotFound):
		return fasthttp.StatusNotFound
	case errors.Is(err, quiz.ErrInvalidTransition),
		errors.Is(err, quiz.ErrUnanswered):
		return fasthttp.StatusConflict
	case errors.Is(err, quiz.ErrInvalidPhase),
		errors.Is(err, quiz.ErrUnknownQuestion),
		errors.Is(err, quiz.ErrUnknownOption),
		errors.Is(err, services.ErrEmptyMessage):
		return fasthttp.StatusBadRequest
	case errors.Is(err, catalog.ErrCatalogFormat):
		return fasthttp.StatusServiceUnavailable
	default:
		return fasthttp.StatusInternalServerError
	}
}

// respondWithServiceError responde según el tipo de error; los 5xx se registran
func respondWithServiceError(ctx *fasthttp.RequestCtx, logger *zap.Logger, err error) {
	status := statusFor(err)
	message := err.Error()
	switch {
	case status == fasthttp.StatusServiceUnavailable:
		message = catalogUnavailable
		logger.Error("catalog unavailable", zap.Error(err))
	case status >= fasthttp.StatusInternalServerError:
		message = "Error interno del servidor"
		logger.Error("request failed", zap.ByteString("path", ctx.Path()), zap.Error(err))
	}
	respondWithError(ctx, status, message)
}

// decodeBody decodifica el cuerpo JSON; un cuerpo vacío deja v sin cambios
func decodeBody(ctx *fasthttp.RequestCtx, v interface{}) bool {
	body := ctx.PostBody()
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		respondWithError(ctx, fasthttp.StatusBadRequest, "JSON inválido")
		return false
	}
	return true
}

// sessionID obtiene el id de la sesión que puso el router
func sessionID(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue("id").(string)
	return id
}
