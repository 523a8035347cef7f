package handlers

import (
	"context"
	"errors"

	"github.com/fasthttp/websocket"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/backsoul/spotit/pkg/models"
	"github.com/backsoul/spotit/pkg/services"
	websocketHub "github.com/backsoul/spotit/pkg/websocket"
	"github.com/backsoul/spotit/pkg/widget"
)

// WidgetHandler sirve la página embebible y los eventos de finalización
type WidgetHandler struct {
	sessionService *services.SessionService
	hub            *websocketHub.Hub
	appScript      string
	logger         *zap.Logger
}

// NewWidgetHandler crea el handler; appScript es la URL del front end del test
func NewWidgetHandler(sessionService *services.SessionService, hub *websocketHub.Hub, appScript string, logger *zap.Logger) *WidgetHandler {
	return &WidgetHandler{
		sessionService: sessionService,
		hub:            hub,
		appScript:      appScript,
		logger:         logger,
	}
}

var upgrader = websocket.FastHTTPUpgrader{
	CheckOrigin: func(ctx *fasthttp.RequestCtx) bool {
		return true // El widget se embebe en sitios de terceros
	},
}

// ServeWidget maneja GET /widget?config=&session=. Sin sesión válida se crea
// una nueva con el idioma de la configuración.
func (h *WidgetHandler) ServeWidget(ctx *fasthttp.RequestCtx) {
	cfg := widget.ParseConfig(string(ctx.QueryArgs().Peek("config")), h.logger)

	id := string(ctx.QueryArgs().Peek("session"))
	if id != "" {
		if _, err := h.sessionService.Get(ctx, id); err != nil {
			if !errors.Is(err, services.ErrSessionNotFound) {
				respondWithServiceError(ctx, h.logger, err)
				return
			}
			id = ""
		}
	}
	if id == "" {
		var err error
		if id, _, err = h.sessionService.Create(ctx, cfg.Language); err != nil {
			respondWithServiceError(ctx, h.logger, err)
			return
		}
	}

	page, err := widget.RenderPage(widget.PageData{Config: cfg, SessionID: id, AppScript: h.appScript})
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}

	ctx.Response.Header.Set("Content-Type", "text/html; charset=utf-8")
	ctx.Response.Header.Set("Content-Security-Policy", "frame-ancestors *")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(page)
}

// HandleWebSocket maneja GET /ws?session=
func (h *WidgetHandler) HandleWebSocket(ctx *fasthttp.RequestCtx) {
	id := string(ctx.QueryArgs().Peek("session"))
	if id == "" {
		respondWithError(ctx, fasthttp.StatusBadRequest, "session es requerido")
		return
	}
	if _, err := h.sessionService.Get(ctx, id); err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}

	err := upgrader.Upgrade(ctx, func(ws *websocket.Conn) {
		defer ws.Close()

		h.hub.Register(id, ws)
		defer h.hub.Unregister(ws)

		// Registrada la conexión, ninguna finalización se pierde: si el test
		// ya terminó, el hub le reenvía el resultado
		if state, err := h.sessionService.View(context.Background(), id); err == nil &&
			state.Status == models.StatusCompleted && state.Result != nil {
			h.hub.SendTo(id, ws, widget.NewCompletionMessage(*state.Result))
		}

		// Escuchar mensajes del cliente hasta que cierre
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				h.logger.Debug("websocket closed", zap.String("session_id", id), zap.Error(err))
				break
			}
		}
	})

	if err != nil {
		h.logger.Warn("upgrading to websocket", zap.Error(err))
	}
}
