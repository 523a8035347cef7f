package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/backsoul/spotit/pkg/models"
	"github.com/backsoul/spotit/pkg/persistence"
	"github.com/backsoul/spotit/pkg/quiz"
	"github.com/backsoul/spotit/pkg/widget"
)

// ErrSessionNotFound se devuelve cuando la sesión no está activa ni persistida
var ErrSessionNotFound = errors.New("session not found")

// CompletionPublisher recibe el mensaje del widget cuando una sesión termina
type CompletionPublisher interface {
	Publish(sessionID string, msg models.CompletionMessage)
}

type sessionEntry struct {
	store    *quiz.Store
	lastSeen time.Time

	// op serializa las acciones de la sesión con Clear
	op      sync.Mutex
	cleared bool
}

// SessionService maneja las sesiones de los visitantes
type SessionService struct {
	questions *QuestionService
	snapshots persistence.SnapshotStore
	publisher CompletionPublisher
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
	// cleared guarda cuándo se borró cada sesión para no resucitarla desde
	// un snapshot leído antes del borrado
	cleared map[string]time.Time
}

// NewSessionService crea una nueva instancia del servicio de sesiones.
// publisher puede ser nil.
func NewSessionService(questions *QuestionService, snapshots persistence.SnapshotStore, publisher CompletionPublisher, logger *zap.Logger) *SessionService {
	return &SessionService{
		questions: questions,
		snapshots: snapshots,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		sessions:  map[string]*sessionEntry{},
		cleared:   map[string]time.Time{},
	}
}

// Create abre una sesión nueva en estado not_started
func (s *SessionService) Create(ctx context.Context, lang string) (string, models.SessionState, error) {
	all, err := s.questions.All(ctx)
	if err != nil {
		return "", models.SessionState{}, err
	}

	sessionID := uuid.New().String()
	store := s.newStore(sessionID, all, normalizeLanguage(lang))
	s.register(sessionID, store)
	s.persist(ctx, sessionID, store)

	s.logger.Info("session created", zap.String("session_id", sessionID), zap.String("language", store.View().Language))
	return sessionID, store.View(), nil
}

// Get obtiene la sesión activa o la restaura desde el almacenamiento
func (s *SessionService) Get(ctx context.Context, sessionID string) (*quiz.Store, error) {
	e, err := s.entry(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return e.store, nil
}

func (s *SessionService) entry(ctx context.Context, sessionID string) (*sessionEntry, error) {
	s.mu.Lock()
	if e, ok := s.sessions[sessionID]; ok {
		e.lastSeen = s.now()
		s.mu.Unlock()
		return e, nil
	}
	_, gone := s.cleared[sessionID]
	s.mu.Unlock()
	if gone {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	snap, ok, err := s.snapshots.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", sessionID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	all, err := s.questions.All(ctx)
	if err != nil {
		return nil, err
	}
	store := s.newStore(sessionID, all, snap.Language)
	stale := false
	if err := store.Restore(snap); err != nil {
		// Snapshot viejo: se descarta y la sesión arranca limpia
		s.logger.Warn("discarding stale snapshot", zap.String("session_id", sessionID), zap.Error(err))
		store = s.newStore(sessionID, all, snap.Language)
		stale = true
	} else {
		s.logger.Debug("session restored", zap.String("session_id", sessionID), zap.String("state", string(store.Status())))
	}

	s.mu.Lock()
	// Otra petición pudo restaurarla o borrarla mientras tanto
	if e, ok := s.sessions[sessionID]; ok {
		e.lastSeen = s.now()
		s.mu.Unlock()
		return e, nil
	}
	if _, gone := s.cleared[sessionID]; gone {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	e := &sessionEntry{store: store, lastSeen: s.now()}
	s.sessions[sessionID] = e
	s.mu.Unlock()

	if stale {
		e.op.Lock()
		if !e.cleared {
			s.persist(ctx, sessionID, store)
		}
		e.op.Unlock()
	}
	return e, nil
}

// View obtiene el estado de la sesión para mostrarlo
func (s *SessionService) View(ctx context.Context, sessionID string) (models.SessionState, error) {
	store, err := s.Get(ctx, sessionID)
	if err != nil {
		return models.SessionState{}, err
	}
	return store.View(), nil
}

// Start inicia el test con la fase y el nivel elegidos. Una selección vacía
// devuelve quiz.ErrEmptySelection junto con el estado.
func (s *SessionService) Start(ctx context.Context, sessionID string, phase models.Phase, level *models.Level) (models.SessionState, error) {
	if !phase.Valid() {
		return models.SessionState{}, fmt.Errorf("%w: %q", quiz.ErrInvalidPhase, phase)
	}
	return s.do(ctx, sessionID, func(store *quiz.Store) error {
		return store.StartTest(phase, level)
	})
}

// Answer registra la opción elegida y devuelve la opción para mostrar su feedback
func (s *SessionService) Answer(ctx context.Context, sessionID, questionID, optionID string) (models.SessionState, models.Option, error) {
	var opt models.Option
	state, err := s.do(ctx, sessionID, func(store *quiz.Store) error {
		var err error
		opt, err = store.AnswerOption(questionID, optionID)
		return err
	})
	return state, opt, err
}

// Next avanza una pregunta sin pasar del final
func (s *SessionService) Next(ctx context.Context, sessionID string) (models.SessionState, error) {
	return s.do(ctx, sessionID, (*quiz.Store).NextQuestion)
}

// Previous retrocede una pregunta sin pasar del inicio
func (s *SessionService) Previous(ctx context.Context, sessionID string) (models.SessionState, error) {
	return s.do(ctx, sessionID, (*quiz.Store).PreviousQuestion)
}

// Advance es el botón "siguiente": termina el test en la última pregunta
func (s *SessionService) Advance(ctx context.Context, sessionID string) (models.SessionState, quiz.Outcome, error) {
	var outcome quiz.Outcome
	state, err := s.do(ctx, sessionID, func(store *quiz.Store) error {
		var err error
		outcome, err = store.Advance()
		return err
	})
	return state, outcome, err
}

// Complete calcula el resultado y marca el test como terminado
func (s *SessionService) Complete(ctx context.Context, sessionID string) (models.SessionState, error) {
	return s.do(ctx, sessionID, (*quiz.Store).CompleteTest)
}

// Reset vuelve la sesión al estado inicial
func (s *SessionService) Reset(ctx context.Context, sessionID string) (models.SessionState, error) {
	return s.do(ctx, sessionID, (*quiz.Store).ResetTest)
}

// Clear elimina la sesión activa y su snapshot. Espera a que termine la
// acción en curso de la sesión para que no vuelva a guardarla.
func (s *SessionService) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	e := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.cleared[sessionID] = s.now()
	s.mu.Unlock()

	if e != nil {
		e.op.Lock()
		defer e.op.Unlock()
		e.cleared = true
	}

	if err := s.snapshots.Clear(ctx, sessionID); err != nil {
		return err
	}
	s.logger.Info("session cleared", zap.String("session_id", sessionID))
	return nil
}

// ActiveSessions obtiene el número de sesiones en memoria
func (s *SessionService) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// PruneIdle saca de memoria las sesiones sin actividad desde hace idle. Su
// snapshot sigue guardado y se restauran en la próxima petición.
func (s *SessionService) PruneIdle(idle time.Duration) int {
	cutoff := s.now().Add(-idle)
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for id, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			pruned++
		}
	}
	for id, at := range s.cleared {
		if at.Before(cutoff) {
			delete(s.cleared, id)
		}
	}
	if pruned > 0 {
		s.logger.Debug("idle sessions pruned", zap.Int("count", pruned))
	}
	return pruned
}

// HealthCheck verifica el almacenamiento de snapshots
func (s *SessionService) HealthCheck(ctx context.Context) error {
	if err := s.snapshots.Ping(ctx); err != nil {
		return fmt.Errorf("snapshot store health check failed: %w", err)
	}
	return nil
}

// Métodos privados auxiliares

func (s *SessionService) do(ctx context.Context, sessionID string, fn func(*quiz.Store) error) (models.SessionState, error) {
	e, err := s.entry(ctx, sessionID)
	if err != nil {
		return models.SessionState{}, err
	}
	e.op.Lock()
	defer e.op.Unlock()
	if e.cleared {
		return models.SessionState{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	err = fn(e.store)
	if err != nil && !errors.Is(err, quiz.ErrEmptySelection) {
		return e.store.View(), err
	}
	s.persist(ctx, sessionID, e.store)
	return e.store.View(), err
}

// persist guarda el snapshot; un fallo se registra pero no interrumpe al visitante
func (s *SessionService) persist(ctx context.Context, sessionID string, store *quiz.Store) {
	if err := s.snapshots.Save(ctx, sessionID, store.Snapshot()); err != nil {
		s.logger.Error("saving snapshot", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (s *SessionService) register(sessionID string, store *quiz.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = &sessionEntry{store: store, lastSeen: s.now()}
}

func (s *SessionService) newStore(sessionID string, all []models.Question, lang string) *quiz.Store {
	store := quiz.NewStore(all, lang)
	store.Subscribe(func(state models.SessionState) {
		if state.Status != models.StatusCompleted || state.Result == nil || s.publisher == nil {
			return
		}
		s.publisher.Publish(sessionID, widget.NewCompletionMessage(*state.Result))
		s.logger.Info("test completed",
			zap.String("session_id", sessionID),
			zap.Int("score", state.Result.TotalScore),
			zap.Int("max_score", state.Result.MaxScore),
			zap.String("tier", state.Result.Tier))
	})
	return store
}

func normalizeLanguage(lang string) string {
	switch lang {
	case "de", "en":
		return lang
	default:
		return quiz.DefaultLanguage
	}
}
