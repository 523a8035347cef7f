package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/backsoul/spotit/pkg/models"
	"github.com/backsoul/spotit/pkg/persistence"
)

// SnapshotStore guarda el progreso de cada sesión como JSON en Redis
type SnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// Options configura la conexión con Redis
type Options struct {
	Addr     string
	Password string
	DB       int
	// TTL de cada snapshot; cero lo conserva sin expiración
	TTL time.Duration
}

// NewSnapshotStore conecta con Redis y verifica la conexión
func NewSnapshotStore(ctx context.Context, opts Options, logger *zap.Logger) (*SnapshotStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", opts.Addr, err)
	}

	logger.Info("connected to redis", zap.String("addr", opts.Addr), zap.Int("db", opts.DB), zap.Duration("ttl", opts.TTL))
	return &SnapshotStore{client: rdb, ttl: opts.TTL, logger: logger}, nil
}

var _ persistence.SnapshotStore = (*SnapshotStore)(nil)

// Save reemplaza el snapshot de la sesión y renueva su TTL
func (r *SnapshotStore) Save(ctx context.Context, sessionID string, snap models.Snapshot) error {
	data, err := persistence.Encode(snap)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, persistence.Key(sessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("saving snapshot %s: %w", sessionID, err)
	}
	return nil
}

// Load obtiene el snapshot; una clave inexistente no es un error
func (r *SnapshotStore) Load(ctx context.Context, sessionID string) (models.Snapshot, bool, error) {
	data, err := r.client.Get(ctx, persistence.Key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Snapshot{}, false, nil
		}
		return models.Snapshot{}, false, fmt.Errorf("loading snapshot %s: %w", sessionID, err)
	}

	snap, ok, err := persistence.Decode(data)
	if err != nil {
		// Un registro corrupto se descarta para que la sesión arranque limpia
		r.logger.Warn("discarding unreadable snapshot", zap.String("session_id", sessionID), zap.Error(err))
		_ = r.client.Del(ctx, persistence.Key(sessionID)).Err()
		return models.Snapshot{}, false, nil
	}
	return snap, ok, nil
}

// Clear elimina el snapshot de la sesión
func (r *SnapshotStore) Clear(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, persistence.Key(sessionID)).Err(); err != nil {
		return fmt.Errorf("clearing snapshot %s: %w", sessionID, err)
	}
	return nil
}

// Ping verifica que Redis esté funcionando
func (r *SnapshotStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close cierra la conexión con Redis
func (r *SnapshotStore) Close() error {
	return r.client.Close()
}
