package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"markestedt/aityping/orchestrator"
)

// Period selects the window of GetPerformanceStats
type Period string

const (
	PeriodHour Period = "hour"
	PeriodDay  Period = "day"
	PeriodWeek Period = "week"
)

// Duration returns the length of the period. Unknown periods count as a day.
func (p Period) Duration() time.Duration {
	switch p {
	case PeriodHour:
		return time.Hour
	case PeriodWeek:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// ErrorCount is the number of failures in one error category
type ErrorCount struct {
	ErrorType string `json:"error_type"`
	Count     int    `json:"count"`
}

// HourlyStats aggregates runs by hour of day (UTC)
type HourlyStats struct {
	Hour          int     `json:"hour"`
	Count         int     `json:"count"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// PerformanceStats summarizes the metrics of a period. Durations only
// consider successful runs.
type PerformanceStats struct {
	Period             Period        `json:"period"`
	Total              int           `json:"total_translations"`
	Successful         int           `json:"successful_translations"`
	Failed             int           `json:"failed_translations"`
	AvgDurationMs      float64       `json:"avg_duration_ms"`
	MinDurationMs      int64         `json:"min_duration_ms"`
	MaxDurationMs      int64         `json:"max_duration_ms"`
	TotalChars         int64         `json:"total_chars_translated"`
	TotalTokens        int64         `json:"total_tokens"`
	AvgTokensPerSecond float64       `json:"avg_tokens_per_second"`
	SelectedCount      int           `json:"selected_mode_count"`
	FullCount          int           `json:"full_mode_count"`
	Errors             []ErrorCount  `json:"error_distribution"`
	Hourly             []HourlyStats `json:"hourly_data"`
}

// SuccessRate returns the share of successful runs, or 0 without runs
func (s *PerformanceStats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Successful) / float64(s.Total)
}

// RecordMetric saves the metric of one run
func (db *DB) RecordMetric(ctx context.Context, m orchestrator.Metric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = db.now()
	}

	var tokens sql.NullInt64
	if m.Tokens != nil {
		tokens = sql.NullInt64{Int64: int64(*m.Tokens), Valid: true}
	}
	var tps sql.NullFloat64
	if m.TokensPerSecond != nil {
		tps = sql.NullFloat64{Float64: *m.TokensPerSecond, Valid: true}
	}

	query := `
		INSERT INTO metrics (
			timestamp, operation_type, duration_ms, success, error_type, char_count, tokens, tokens_per_second
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.conn.ExecContext(ctx, query,
		ts.Unix(), string(m.Mode), m.Duration.Milliseconds(), m.Success,
		nullString(string(m.ErrorCategory)), m.CharCount, tokens, tps,
	)
	if err != nil {
		return fmt.Errorf("failed to save metric: %w", err)
	}
	return nil
}

// GetPerformanceStats aggregates the metrics recorded within period
func (db *DB) GetPerformanceStats(ctx context.Context, period Period) (*PerformanceStats, error) {
	since := db.now().Add(-period.Duration()).Unix()

	query := `
		SELECT
			COUNT(*) as total,
			COALESCE(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END), 0) as successful,
			COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0) as failed,
			COALESCE(AVG(CASE WHEN success = 1 THEN duration_ms END), 0) as avg_duration,
			COALESCE(MIN(CASE WHEN success = 1 THEN duration_ms END), 0) as min_duration,
			COALESCE(MAX(CASE WHEN success = 1 THEN duration_ms END), 0) as max_duration,
			COALESCE(SUM(char_count), 0) as total_chars,
			COALESCE(SUM(tokens), 0) as total_tokens,
			COALESCE(AVG(tokens_per_second), 0) as avg_tps,
			COALESCE(SUM(CASE WHEN operation_type = 'selected' THEN 1 ELSE 0 END), 0) as selected_count,
			COALESCE(SUM(CASE WHEN operation_type = 'full' THEN 1 ELSE 0 END), 0) as full_count
		FROM metrics
		WHERE timestamp > ?
	`

	stats := PerformanceStats{Period: period, Errors: []ErrorCount{}, Hourly: []HourlyStats{}}
	err := db.conn.QueryRowContext(ctx, query, since).Scan(
		&stats.Total,
		&stats.Successful,
		&stats.Failed,
		&stats.AvgDurationMs,
		&stats.MinDurationMs,
		&stats.MaxDurationMs,
		&stats.TotalChars,
		&stats.TotalTokens,
		&stats.AvgTokensPerSecond,
		&stats.SelectedCount,
		&stats.FullCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query performance stats: %w", err)
	}

	if stats.Errors, err = db.errorDistribution(ctx, since); err != nil {
		return nil, err
	}
	if stats.Hourly, err = db.hourlyStats(ctx, since); err != nil {
		return nil, err
	}

	return &stats, nil
}

func (db *DB) errorDistribution(ctx context.Context, since int64) ([]ErrorCount, error) {
	query := `
		SELECT error_type, COUNT(*) as count
		FROM metrics
		WHERE timestamp > ? AND success = 0 AND error_type IS NOT NULL
		GROUP BY error_type
		ORDER BY count DESC, error_type
	`

	rows, err := db.conn.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query error distribution: %w", err)
	}
	defer rows.Close()

	errs := []ErrorCount{}
	for rows.Next() {
		var e ErrorCount
		if err := rows.Scan(&e.ErrorType, &e.Count); err != nil {
			return nil, fmt.Errorf("failed to scan error distribution: %w", err)
		}
		errs = append(errs, e)
	}

	return errs, rows.Err()
}

func (db *DB) hourlyStats(ctx context.Context, since int64) ([]HourlyStats, error) {
	query := `
		SELECT
			CAST(strftime('%H', timestamp, 'unixepoch') AS INTEGER) as hour,
			COUNT(*) as count,
			COALESCE(AVG(CASE WHEN success = 1 THEN duration_ms END), 0) as avg_duration
		FROM metrics
		WHERE timestamp > ?
		GROUP BY hour
		ORDER BY hour
	`

	rows, err := db.conn.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly stats: %w", err)
	}
	defer rows.Close()

	hourly := []HourlyStats{}
	for rows.Next() {
		var h HourlyStats
		if err := rows.Scan(&h.Hour, &h.Count, &h.AvgDurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan hourly stats: %w", err)
		}
		hourly = append(hourly, h)
	}

	return hourly, rows.Err()
}

// CleanupMetrics deletes metrics older than retention
func (db *DB) CleanupMetrics(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := db.now().Add(-retention).Unix()

	result, err := db.conn.ExecContext(ctx, `DELETE FROM metrics WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up metrics: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if deleted > 0 {
		slog.Debug("Cleaned up old metrics", "deleted", deleted)
	}
	return deleted, nil
}
