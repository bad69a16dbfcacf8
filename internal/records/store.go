package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"demostudio/internal/config"
)

// Store manages recording persistence backed by SQLite.
type Store struct {
	db *sql.DB
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS recordings (
    id TEXT PRIMARY KEY,
    title TEXT,
    original_video_url TEXT,
    processed_video_url TEXT,
    audio_url TEXT,
    thumbnail_url TEXT,
    duration REAL NOT NULL DEFAULT 0,
    visual_effects_json TEXT,
    subtitles_json TEXT,
    script_segments_json TEXT,
    processing_status TEXT NOT NULL DEFAULT 'pending',
    processing_progress REAL NOT NULL DEFAULT 0,
    error_message TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
`

// Open initializes or connects to the recording database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.QueueDBPath())
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create recordings schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Create inserts a new recording and assigns its identifier.
func (s *Store) Create(ctx context.Context, rec *Recording) (*Recording, error) {
	if rec == nil {
		return nil, errors.New("recording is nil")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ProcessingStatus == "" {
		rec.ProcessingStatus = ProcessingPending
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	effects, subtitles, segments, err := marshalCollections(rec)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO recordings (
            id, title, original_video_url, processed_video_url, audio_url,
            thumbnail_url, duration, visual_effects_json, subtitles_json,
            script_segments_json, processing_status, processing_progress,
            error_message, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		nullableString(rec.Title),
		nullableString(rec.OriginalVideoURL),
		nullableString(rec.ProcessedVideoURL),
		nullableString(rec.AudioURL),
		nullableString(rec.ThumbnailURL),
		rec.Duration,
		nullableString(effects),
		nullableString(subtitles),
		nullableString(segments),
		string(rec.ProcessingStatus),
		rec.ProcessingProgress,
		nullableString(rec.ErrorMessage),
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert recording: %w", err)
	}
	return s.GetByID(ctx, rec.ID)
}

// GetByID fetches a recording by identifier. Returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Recording, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE id = ?`, id)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}
	return rec, nil
}

// List returns all recordings ordered by creation time.
func (s *Store) List(ctx context.Context) ([]*Recording, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordingColumns+` FROM recordings ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	var recs []*Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// SetProcessingState updates only the transform lane's status columns.
func (s *Store) SetProcessingState(ctx context.Context, id string, status ProcessingStatus, progress float64, errorMessage string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE recordings
         SET processing_status = ?, processing_progress = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		string(status),
		progress,
		nullableString(errorMessage),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set processing state: %w", err)
	}
	return nil
}

// AttachDerivedAssets writes the transform lane's derived URLs. Only the
// thumbnail and audio columns are touched so concurrent voice write-backs
// cannot be lost.
func (s *Store) AttachDerivedAssets(ctx context.Context, id, thumbnailURL, audioURL string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE recordings
         SET thumbnail_url = ?, audio_url = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(thumbnailURL),
		nullableString(audioURL),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("attach derived assets: %w", err)
	}
	return nil
}

// UpdateSegments replaces the script segments column (voice lane write-back).
func (s *Store) UpdateSegments(ctx context.Context, id string, segments []ScriptSegment) error {
	encoded, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("marshal segments: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`UPDATE recordings SET script_segments_json = ?, updated_at = ? WHERE id = ?`,
		string(encoded),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update segments: %w", err)
	}
	return nil
}

// Remove deletes a recording by identifier.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete recording: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

const recordingColumns = "id, title, original_video_url, processed_video_url, audio_url, thumbnail_url, duration, visual_effects_json, subtitles_json, script_segments_json, processing_status, processing_progress, error_message, created_at, updated_at"

func scanRecording(scanner interface{ Scan(dest ...any) error }) (*Recording, error) {
	var (
		id           string
		title        sql.NullString
		originalURL  sql.NullString
		processedURL sql.NullString
		audioURL     sql.NullString
		thumbnailURL sql.NullString
		duration     float64
		effectsRaw   sql.NullString
		subtitlesRaw sql.NullString
		segmentsRaw  sql.NullString
		statusStr    string
		progress     float64
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&id,
		&title,
		&originalURL,
		&processedURL,
		&audioURL,
		&thumbnailURL,
		&duration,
		&effectsRaw,
		&subtitlesRaw,
		&segmentsRaw,
		&statusStr,
		&progress,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	rec := &Recording{
		ID:                 id,
		Title:              title.String,
		OriginalVideoURL:   originalURL.String,
		ProcessedVideoURL:  processedURL.String,
		AudioURL:           audioURL.String,
		ThumbnailURL:       thumbnailURL.String,
		Duration:           duration,
		ProcessingStatus:   ProcessingStatus(statusStr),
		ProcessingProgress: progress,
		ErrorMessage:       errorMessage.String,
	}
	if effectsRaw.Valid && effectsRaw.String != "" {
		if err := json.Unmarshal([]byte(effectsRaw.String), &rec.VisualEffects); err != nil {
			return nil, fmt.Errorf("decode visual effects: %w", err)
		}
	}
	if subtitlesRaw.Valid && subtitlesRaw.String != "" {
		if err := json.Unmarshal([]byte(subtitlesRaw.String), &rec.Subtitles); err != nil {
			return nil, fmt.Errorf("decode subtitles: %w", err)
		}
	}
	if segmentsRaw.Valid && segmentsRaw.String != "" {
		if err := json.Unmarshal([]byte(segmentsRaw.String), &rec.ScriptSegments); err != nil {
			return nil, fmt.Errorf("decode script segments: %w", err)
		}
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		rec.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		rec.UpdatedAt = updated
	}
	return rec, nil
}

func marshalCollections(rec *Recording) (effects, subtitles, segments string, err error) {
	if len(rec.VisualEffects) > 0 {
		raw, marshalErr := json.Marshal(rec.VisualEffects)
		if marshalErr != nil {
			return "", "", "", fmt.Errorf("marshal visual effects: %w", marshalErr)
		}
		effects = string(raw)
	}
	if len(rec.Subtitles) > 0 {
		raw, marshalErr := json.Marshal(rec.Subtitles)
		if marshalErr != nil {
			return "", "", "", fmt.Errorf("marshal subtitles: %w", marshalErr)
		}
		subtitles = string(raw)
	}
	if len(rec.ScriptSegments) > 0 {
		raw, marshalErr := json.Marshal(rec.ScriptSegments)
		if marshalErr != nil {
			return "", "", "", fmt.Errorf("marshal script segments: %w", marshalErr)
		}
		segments = string(raw)
	}
	return effects, subtitles, segments, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
