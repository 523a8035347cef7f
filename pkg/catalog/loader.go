package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/backsoul/spotit/pkg/models"
)

//go:embed data/questions.json
var bundled []byte

// Source returns the raw catalog document.
type Source func(ctx context.Context) ([]byte, error)

// Bundled is the catalog compiled into the binary.
func Bundled() Source {
	return func(context.Context) ([]byte, error) {
		return bundled, nil
	}
}

// File reads the catalog from path on every invocation.
func File(path string) Source {
	return func(context.Context) ([]byte, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading catalog %s: %w", path, err)
		}
		return data, nil
	}
}

// Loader loads the catalog exactly once. Failed loads are not remembered.
type Loader struct {
	source Source
	logger *zap.Logger

	mu        sync.Mutex
	questions []models.Question
}

// NewLoader creates a loader over source.
func NewLoader(source Source, logger *zap.Logger) *Loader {
	return &Loader{source: source, logger: logger}
}

// Load returns the catalog, invoking the source only if the catalog has not
// been populated yet.
func (l *Loader) Load(ctx context.Context) ([]models.Question, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.questions) > 0 {
		return l.questions, nil
	}

	data, err := l.source(ctx)
	if err != nil {
		return nil, err
	}
	questions, err := Parse(data)
	if err != nil {
		l.logger.Error("question catalog rejected", zap.Error(err))
		return nil, err
	}
	if len(questions) == 0 {
		return nil, formatError("catalog contains no questions")
	}

	l.questions = questions
	l.logger.Info("question catalog loaded", zap.Int("questions", len(questions)))
	return l.questions, nil
}

// Loaded reports whether the catalog is populated.
func (l *Loader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.questions) > 0
}
