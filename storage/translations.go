package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"markestedt/aityping/orchestrator"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// Translation is a single history record
type Translation struct {
	ID             int64     `json:"id"`
	OriginalText   string    `json:"original_text"`
	TranslatedText string    `json:"translated_text"`
	SourceLang     string    `json:"source_lang"`
	TargetLang     string    `json:"target_lang"`
	Mode           string    `json:"mode"`
	Success        bool      `json:"success"`
	Timestamp      time.Time `json:"timestamp"`
}

// HistoryQuery filters and pages GetHistory. Page is 1-based.
type HistoryQuery struct {
	Page     int
	PageSize int
	Search   string
	Mode     string
}

// HistoryPage is one page of history plus the total matching count
type HistoryPage struct {
	Records []Translation `json:"records"`
	Total   int           `json:"total"`
}

// RecordTranslation saves a history entry and trims history to the limit
func (db *DB) RecordTranslation(ctx context.Context, e orchestrator.Entry) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = db.now()
	}

	query := `
		INSERT INTO translations (
			original_text, translated_text, source_lang, target_lang, mode, success, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.conn.ExecContext(ctx, query,
		e.Original, e.Translated, nullString(e.SourceLang), e.TargetLang, string(e.Mode), e.Success, ts.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save translation: %w", err)
	}

	if _, err := db.CleanupHistory(ctx, db.historyLimit); err != nil {
		slog.Warn("Failed to clean up history", "error", err)
	}
	return nil
}

// likeEscaper makes LIKE wildcards in a search match literally
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// GetHistory returns translations newest first
func (db *DB) GetHistory(ctx context.Context, q HistoryQuery) (*HistoryPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 20
	}

	var conditions []string
	var args []any
	if q.Search != "" {
		pattern := "%" + likeEscaper.Replace(q.Search) + "%"
		conditions = append(conditions, `(original_text LIKE ? ESCAPE '\' OR translated_text LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if q.Mode != "" {
		conditions = append(conditions, "mode = ?")
		args = append(args, q.Mode)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	page := &HistoryPage{Records: []Translation{}}
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM translations "+where, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("failed to count translations: %w", err)
	}

	query := `
		SELECT id, original_text, translated_text, source_lang, target_lang, mode, success, timestamp
		FROM translations ` + where + `
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := db.conn.QueryContext(ctx, query, append(args, q.PageSize, (q.Page-1)*q.PageSize)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query translations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t Translation
		var sourceLang sql.NullString
		var ts int64

		err := rows.Scan(&t.ID, &t.OriginalText, &t.TranslatedText, &sourceLang, &t.TargetLang, &t.Mode, &t.Success, &ts)
		if err != nil {
			return nil, fmt.Errorf("failed to scan translation: %w", err)
		}
		if sourceLang.Valid {
			t.SourceLang = sourceLang.String
		}
		t.Timestamp = time.Unix(ts, 0)

		page.Records = append(page.Records, t)
	}

	return page, rows.Err()
}

// DeleteTranslation deletes a translation by ID
func (db *DB) DeleteTranslation(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM translations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete translation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("translation %d: %w", id, ErrNotFound)
	}

	return nil
}

// ClearHistory deletes every translation
func (db *DB) ClearHistory(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM translations`); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// CleanupHistory keeps the newest limit translations and deletes the rest
func (db *DB) CleanupHistory(ctx context.Context, limit int) (int64, error) {
	if limit <= 0 {
		return 0, nil
	}

	query := `
		DELETE FROM translations
		WHERE id NOT IN (
			SELECT id FROM translations
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		)
	`
	result, err := db.conn.ExecContext(ctx, query, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up history: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if deleted > 0 {
		slog.Debug("Cleaned up old translations", "deleted", deleted)
	}
	return deleted, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
