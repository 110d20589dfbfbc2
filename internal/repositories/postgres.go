package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clipvault/backend/internal/db"
	"github.com/clipvault/backend/internal/models"
)

// PostgresMediaRepository provides PostgreSQL-backed persistence for media assets.
type PostgresMediaRepository struct {
	pool db.Pool
}

// NewPostgresMediaRepository constructs a media repository backed by PostgreSQL.
func NewPostgresMediaRepository(pool db.Pool) *PostgresMediaRepository {
	return &PostgresMediaRepository{pool: pool}
}

// Create stores a new media asset record in a single atomic insert and
// returns the persisted row.
func (r *PostgresMediaRepository) Create(ctx context.Context, asset models.MediaAsset) (models.MediaAsset, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.MediaAsset{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        INSERT INTO media_assets (id, title, description, remote_ref, original_size_bytes, compressed_size_bytes, duration_seconds, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id, title, description, remote_ref, original_size_bytes, compressed_size_bytes, duration_seconds, created_at, updated_at
    `, asset.ID, asset.Title, asset.Description, asset.RemoteRef, asset.OriginalSizeBytes, asset.CompressedSizeBytes, asset.DurationSeconds, asset.CreatedAt, asset.UpdatedAt)

	persisted, err := scanAsset(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.MediaAsset{}, ErrConflict
		}
		return models.MediaAsset{}, fmt.Errorf("insert media asset: %w", err)
	}

	return persisted, nil
}

// ListRecent returns every persisted asset ordered by creation time, most
// recent first.
func (r *PostgresMediaRepository) ListRecent(ctx context.Context) ([]models.MediaAsset, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, title, description, remote_ref, original_size_bytes, compressed_size_bytes, duration_seconds, created_at, updated_at
        FROM media_assets
        ORDER BY created_at DESC
    `)
	if err != nil {
		return nil, fmt.Errorf("query media assets: %w", err)
	}
	defer rows.Close()

	var assets []models.MediaAsset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media asset: %w", err)
		}
		assets = append(assets, asset)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media assets: %w", err)
	}

	return assets, nil
}

func scanAsset(row pgx.Row) (models.MediaAsset, error) {
	var asset models.MediaAsset
	err := row.Scan(
		&asset.ID,
		&asset.Title,
		&asset.Description,
		&asset.RemoteRef,
		&asset.OriginalSizeBytes,
		&asset.CompressedSizeBytes,
		&asset.DurationSeconds,
		&asset.CreatedAt,
		&asset.UpdatedAt,
	)
	if err != nil {
		return models.MediaAsset{}, err
	}

	asset.CreatedAt = asset.CreatedAt.UTC()
	asset.UpdatedAt = asset.UpdatedAt.UTC()
	return asset, nil
}

var _ MediaRepository = (*PostgresMediaRepository)(nil)
