package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stagehandhq/stagehand/internal/db"
	"github.com/stagehandhq/stagehand/internal/media"
)

// PostgresStore keeps drafts in the artist_profiles table with the document
// as a jsonb column. Partial writes use jsonb concatenation so the merge
// happens in the database, atomically per statement.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewPostgresStore(log *slog.Logger, pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		pool: pool,
		log:  log.With(slog.String("service", "draft")),
	}
}

func (s *PostgresStore) CreateDraft(ctx context.Context, profileID, userID string, doc media.Draft) error {
	pgProfile, err := db.ParseUUID(profileID)
	if err != nil {
		return err
	}
	pgUser, err := db.ParseUUID(userID)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO artist_profiles (id, user_id, document) VALUES ($1, $2, $3)`,
		pgProfile, pgUser, raw,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create draft: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReadDraft(ctx context.Context, profileID string) (media.Draft, error) {
	pgID, err := db.ParseUUID(profileID)
	if err != nil {
		return media.Draft{}, err
	}

	var raw []byte
	err = s.pool.QueryRow(ctx,
		`SELECT document FROM artist_profiles WHERE id = $1`, pgID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return media.Draft{}, ErrNotFound
		}
		return media.Draft{}, fmt.Errorf("read draft: %w", err)
	}

	var doc media.Draft
	if err := json.Unmarshal(raw, &doc); err != nil {
		return media.Draft{}, fmt.Errorf("decode draft: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) WriteDraft(ctx context.Context, profileID string, fields Fields) error {
	if len(fields) == 0 {
		return nil
	}
	pgID, err := db.ParseUUID(profileID)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE artist_profiles SET document = document || $2::jsonb, updated_at = now() WHERE id = $1`,
		pgID, raw,
	)
	if err != nil {
		return fmt.Errorf("write draft: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteDraft(ctx context.Context, profileID string) error {
	pgID, err := db.ParseUUID(profileID)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM user_profile_refs WHERE profile_id = $1`, pgID); err != nil {
		return fmt.Errorf("delete profile refs: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM artist_profiles WHERE id = $1`, pgID)
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AttachProfileRef(ctx context.Context, userID, profileID string) error {
	pgUser, err := db.ParseUUID(userID)
	if err != nil {
		return err
	}
	pgProfile, err := db.ParseUUID(profileID)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO user_profile_refs (user_id, profile_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		pgUser, pgProfile,
	)
	if err != nil {
		return fmt.Errorf("attach profile ref: %w", err)
	}
	return nil
}

func (s *PostgresStore) DetachProfileRef(ctx context.Context, userID, profileID string) error {
	pgUser, err := db.ParseUUID(userID)
	if err != nil {
		return err
	}
	pgProfile, err := db.ParseUUID(profileID)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`DELETE FROM user_profile_refs WHERE user_id = $1 AND profile_id = $2`,
		pgUser, pgProfile,
	)
	if err != nil {
		return fmt.Errorf("detach profile ref: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListProfileRefs(ctx context.Context, userID string) ([]string, error) {
	pgUser, err := db.ParseUUID(userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT profile_id FROM user_profile_refs WHERE user_id = $1 ORDER BY created_at`,
		pgUser,
	)
	if err != nil {
		return nil, fmt.Errorf("list profile refs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
