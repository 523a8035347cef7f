package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/backsoul/spotit/pkg/catalog"
	"github.com/backsoul/spotit/pkg/models"
)

// ErrQuestionNotFound se devuelve cuando el id no existe en el catálogo
var ErrQuestionNotFound = errors.New("question not found")

// QuestionService maneja la lógica de negocio para las preguntas
type QuestionService struct {
	loader *catalog.Loader
	logger *zap.Logger
}

// NewQuestionService crea una nueva instancia del servicio sobre la fuente del catálogo
func NewQuestionService(source catalog.Source, logger *zap.Logger) *QuestionService {
	return &QuestionService{
		loader: catalog.NewLoader(source, logger),
		logger: logger,
	}
}

// Load carga el catálogo una sola vez; los fallos no se recuerdan
func (s *QuestionService) Load(ctx context.Context) error {
	_, err := s.loader.Load(ctx)
	return err
}

// All obtiene todas las preguntas en el orden del catálogo
func (s *QuestionService) All(ctx context.Context) ([]models.Question, error) {
	return s.loader.Load(ctx)
}

// Filter obtiene las preguntas de una fase, y de un nivel si la fase es spot
func (s *QuestionService) Filter(ctx context.Context, phase models.Phase, level *models.Level) ([]models.Question, error) {
	all, err := s.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Filter(all, phase, level), nil
}

// Get obtiene una pregunta específica por ID
func (s *QuestionService) Get(ctx context.Context, id string) (models.Question, error) {
	all, err := s.loader.Load(ctx)
	if err != nil {
		return models.Question{}, err
	}
	for _, q := range all {
		if q.ID == id {
			return q, nil
		}
	}
	return models.Question{}, fmt.Errorf("%w: %s", ErrQuestionNotFound, id)
}

// Metadata obtiene el resumen del catálogo
func (s *QuestionService) Metadata(ctx context.Context) (models.CatalogSummary, error) {
	all, err := s.loader.Load(ctx)
	if err != nil {
		return models.CatalogSummary{}, err
	}
	return catalog.Summarize(all), nil
}

// HealthCheck verifica que el catálogo se pueda cargar
func (s *QuestionService) HealthCheck(ctx context.Context) error {
	if err := s.Load(ctx); err != nil {
		return fmt.Errorf("catalog health check failed: %w", err)
	}
	return nil
}
