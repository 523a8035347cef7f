package main

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/backsoul/spotit/pkg/catalog"
	"github.com/backsoul/spotit/pkg/config"
	"github.com/backsoul/spotit/pkg/handlers"
	"github.com/backsoul/spotit/pkg/persistence"
	"github.com/backsoul/spotit/pkg/services"
	"github.com/backsoul/spotit/pkg/websocket"
)

// app agrupa los servicios y handlers que arma la raíz de composición
type app struct {
	cfg    config.Config
	logger *zap.Logger

	questionService *services.QuestionService
	sessionService  *services.SessionService
	hub             *websocket.Hub

	questionHandler *handlers.QuestionHandler
	sessionHandler  *handlers.SessionHandler
	chatHandler     *handlers.ChatHandler
	widgetHandler   *handlers.WidgetHandler
	static          fasthttp.RequestHandler
}

// newApp arma servicios y handlers. completer puede ser nil.
func newApp(cfg config.Config, source catalog.Source, snapshots persistence.SnapshotStore, completer services.Completer, logger *zap.Logger) *app {
	a := &app{cfg: cfg, logger: logger}

	a.hub = websocket.NewHub(logger)
	a.questionService = services.NewQuestionService(source, logger)
	a.sessionService = services.NewSessionService(a.questionService, snapshots, a.hub, logger)
	chatService := services.NewChatService(completer, services.ChatOptions{
		Model:        cfg.Chat.Model,
		SystemPrompt: cfg.Chat.SystemPrompt,
		HistoryLimit: cfg.Chat.HistoryLimit,
		Timeout:      cfg.Chat.Timeout,
	}, logger)

	a.questionHandler = handlers.NewQuestionHandler(a.questionService, logger)
	a.sessionHandler = handlers.NewSessionHandler(a.sessionService, a.questionService, cfg.HTTP.PublicURL, logger)
	a.chatHandler = handlers.NewChatHandler(chatService, logger)
	a.widgetHandler = handlers.NewWidgetHandler(a.sessionService, a.hub, "/assets/widget.js", logger)
	a.static = newStaticHandler(cfg.HTTP.StaticDir)
	return a
}

// loadInitialQuestions carga el catálogo al arrancar. Un catálogo roto no
// detiene el servidor: las peticiones que lo necesitan responden 503.
func (a *app) loadInitialQuestions(ctx context.Context) {
	if err := a.questionService.Load(ctx); err != nil {
		a.logger.Error("loading question catalog", zap.Error(err))
		return
	}
	meta, _ := a.questionService.Metadata(ctx)
	a.logger.Info("question catalog ready", zap.Int("questions", meta.Total), zap.Int("scored", meta.Scored))
}

func (a *app) pruneSessions(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sessionService.PruneIdle(sessionIdleTimeout)
		}
	}
}

// newStaticHandler sirve el front end; las rutas desconocidas reciben
// index.html para que el enrutado del cliente funcione tras recargar.
func newStaticHandler(root string) fasthttp.RequestHandler {
	fs := &fasthttp.FS{
		Root:               root,
		IndexNames:         []string{"index.html"},
		Compress:           true,
		AcceptByteRange:    true,
		GenerateIndexPages: false,
		PathNotFound: func(ctx *fasthttp.RequestCtx) {
			ctx.SendFile(filepath.Join(root, "index.html"))
		},
	}
	return fs.NewRequestHandler()
}

func (a *app) requestHandler(ctx *fasthttp.RequestCtx) {
	start := time.Now()
	path := string(ctx.Path())
	method := string(ctx.Method())

	defer func() {
		a.logger.Debug("request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", ctx.Response.StatusCode()),
			zap.Duration("duration", time.Since(start)))
	}()

	ctx.Response.Header.Set("Server", "SpotIt-FastHTTP/1.0")
	a.setCORSHeaders(ctx)

	// Manejar preflight requests
	if method == fasthttp.MethodOptions {
		ctx.SetStatusCode(fasthttp.StatusNoContent)
		return
	}

	if strings.HasPrefix(path, "/api/") {
		ctx.Response.Header.Set("Cache-Control", "no-cache")
	}

	switch {
	case path == "/api/health" && method == fasthttp.MethodGet:
		a.sessionHandler.HealthCheck(ctx)

	// Preguntas
	case path == "/api/questions" && method == fasthttp.MethodGet:
		a.questionHandler.GetAllQuestions(ctx)
	case path == "/api/questions/metadata" && method == fasthttp.MethodGet:
		a.questionHandler.GetQuestionMetadata(ctx)
	case strings.HasPrefix(path, "/api/questions/") && method == fasthttp.MethodGet:
		parts := strings.Split(path, "/")
		if len(parts) != 4 || parts[3] == "" {
			serve404(ctx)
			return
		}
		ctx.SetUserValue("id", parts[3])
		a.questionHandler.GetQuestion(ctx)

	// Sesiones
	case path == "/api/sessions" && method == fasthttp.MethodPost:
		a.sessionHandler.CreateSession(ctx)
	case strings.HasPrefix(path, "/api/sessions/"):
		a.handleSessionRoutes(ctx, path, method)

	// Chatbot
	case path == "/api/chat" && method == fasthttp.MethodPost:
		a.chatHandler.Chat(ctx)

	// Widget embebible
	case path == "/widget" && method == fasthttp.MethodGet:
		a.widgetHandler.ServeWidget(ctx)
	case path == "/ws":
		a.widgetHandler.HandleWebSocket(ctx)

	case strings.HasPrefix(path, "/api/"):
		serve404(ctx)

	case method == fasthttp.MethodGet || method == fasthttp.MethodHead:
		a.static(ctx)

	default:
		serve404(ctx)
	}
}

// handleSessionRoutes despacha /api/sessions/{id} y /api/sessions/{id}/{acción}
func (a *app) handleSessionRoutes(ctx *fasthttp.RequestCtx, path, method string) {
	parts := strings.Split(path, "/")
	if len(parts) < 4 || len(parts) > 5 || parts[3] == "" {
		serve404(ctx)
		return
	}
	ctx.SetUserValue("id", parts[3])

	if len(parts) == 4 {
		switch method {
		case fasthttp.MethodGet:
			a.sessionHandler.GetSession(ctx)
		case fasthttp.MethodDelete:
			a.sessionHandler.ClearSession(ctx)
		default:
			serve405(ctx)
		}
		return
	}

	action := parts[4]
	if method == fasthttp.MethodGet {
		switch action {
		case "result":
			a.sessionHandler.GetResult(ctx)
		case "card.svg":
			a.sessionHandler.GetCard(ctx)
		default:
			serve404(ctx)
		}
		return
	}
	if method != fasthttp.MethodPost {
		serve405(ctx)
		return
	}

	switch action {
	case "start":
		a.sessionHandler.StartTest(ctx)
	case "answer":
		a.sessionHandler.SubmitAnswer(ctx)
	case "next":
		a.sessionHandler.NextQuestion(ctx)
	case "previous":
		a.sessionHandler.PreviousQuestion(ctx)
	case "advance":
		a.sessionHandler.Advance(ctx)
	case "complete":
		a.sessionHandler.CompleteTest(ctx)
	case "reset":
		a.sessionHandler.ResetTest(ctx)
	case "clear":
		a.sessionHandler.ClearSession(ctx)
	default:
		serve404(ctx)
	}
}

// setCORSHeaders permite cualquier origen con "*" o refleja los orígenes configurados
func (a *app) setCORSHeaders(ctx *fasthttp.RequestCtx) {
	origin := string(ctx.Request.Header.Peek("Origin"))
	for _, allowed := range a.cfg.HTTP.AllowedOrigins {
		if allowed == "*" {
			ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")
			break
		}
		if origin != "" && strings.EqualFold(allowed, origin) {
			ctx.Response.Header.Set("Access-Control-Allow-Origin", origin)
			ctx.Response.Header.Add("Vary", "Origin")
			break
		}
	}
	ctx.Response.Header.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	ctx.Response.Header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

func serve404(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusNotFound)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(`{"success":false,"error":"Ruta no encontrada"}`)
}

func serve405(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(`{"success":false,"error":"Método no permitido"}`)
}
