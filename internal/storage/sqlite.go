package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/acc-projects/callcoach/internal/grading"
)

const (
	CallActive = "active"
	CallEnded  = "ended"
)

// Call is one recorded call session.
type Call struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Status     string     `json:"status"`
	Transcript string     `json:"transcript"`
	AudioPath  string     `json:"audio_path"`
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "callcoach.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS calls (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			status TEXT NOT NULL,
			transcript TEXT NOT NULL DEFAULT '',
			audio_path TEXT NOT NULL DEFAULT ''
		);
	`); err != nil {
		return fmt.Errorf("create calls table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS grades (
			session_id TEXT PRIMARY KEY,
			tone INTEGER NOT NULL,
			on_script INTEGER NOT NULL,
			presentation INTEGER NOT NULL,
			objection_handling INTEGER NOT NULL,
			speaking INTEGER NOT NULL,
			overall INTEGER NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			graded_at TEXT NOT NULL,
			FOREIGN KEY(session_id) REFERENCES calls(id) ON DELETE CASCADE
		);
	`); err != nil {
		return fmt.Errorf("create grades table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_calls_started_at ON calls(started_at)"); err != nil {
		return fmt.Errorf("create calls index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) CreateCall(id string, startedAt time.Time) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("call id is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO calls(id, started_at, status) VALUES(?, ?, ?)`,
		id,
		startedAt.UTC().Format(time.RFC3339Nano),
		CallActive,
	)
	if err != nil {
		return fmt.Errorf("create call %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) EndCall(id string, endedAt time.Time, transcript, audioPath string) error {
	res, err := s.db.Exec(
		`UPDATE calls SET ended_at = ?, status = ?, transcript = ?, audio_path = ? WHERE id = ?`,
		endedAt.UTC().Format(time.RFC3339Nano),
		CallEnded,
		transcript,
		audioPath,
		id,
	)
	if err != nil {
		return fmt.Errorf("end call %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end call rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLiteStore) GetCall(id string) (Call, error) {
	row := s.db.QueryRow(
		`SELECT id, started_at, ended_at, status, transcript, audio_path FROM calls WHERE id = ?`,
		id,
	)

	call, err := scanCall(row.Scan)
	if err != nil {
		return Call{}, fmt.Errorf("query call %s: %w", id, err)
	}
	return call, nil
}

func (s *SQLiteStore) GetCallsByDate(date string) ([]Call, error) {
	rows, err := s.db.Query(
		`SELECT id, started_at, ended_at, status, transcript, audio_path
		 FROM calls
		 WHERE substr(started_at, 1, 10) = ?
		 ORDER BY started_at DESC`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query calls by date %s: %w", date, err)
	}
	defer func() { _ = rows.Close() }()

	calls := make([]Call, 0, 16)
	for rows.Next() {
		call, err := scanCall(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate call rows: %w", err)
	}

	return calls, nil
}

func (s *SQLiteStore) GetDates() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT substr(started_at, 1, 10) AS date FROM calls ORDER BY date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dates rows: %w", err)
	}

	return dates, nil
}

func (s *SQLiteStore) SaveGrade(result grading.Result) error {
	_, err := s.db.Exec(
		`INSERT INTO grades(session_id, tone, on_script, presentation, objection_handling, speaking, overall, notes, graded_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			tone = excluded.tone,
			on_script = excluded.on_script,
			presentation = excluded.presentation,
			objection_handling = excluded.objection_handling,
			speaking = excluded.speaking,
			overall = excluded.overall,
			notes = excluded.notes,
			graded_at = excluded.graded_at`,
		result.SessionID,
		result.Scores.Tone,
		result.Scores.OnScript,
		result.Scores.Presentation,
		result.Scores.ObjectionHandling,
		result.Scores.Speaking,
		result.Scores.Overall,
		result.Notes,
		result.GradedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save grade for session %s: %w", result.SessionID, err)
	}
	return nil
}

func (s *SQLiteStore) GetGrade(sessionID string) (grading.Result, error) {
	row := s.db.QueryRow(
		`SELECT session_id, tone, on_script, presentation, objection_handling, speaking, overall, notes, graded_at
		 FROM grades WHERE session_id = ?`,
		sessionID,
	)

	var result grading.Result
	var gradedAt string
	if err := row.Scan(
		&result.SessionID,
		&result.Scores.Tone,
		&result.Scores.OnScript,
		&result.Scores.Presentation,
		&result.Scores.ObjectionHandling,
		&result.Scores.Speaking,
		&result.Scores.Overall,
		&result.Notes,
		&gradedAt,
	); err != nil {
		return grading.Result{}, fmt.Errorf("query grade for session %s: %w", sessionID, err)
	}

	parsed, err := time.Parse(time.RFC3339Nano, gradedAt)
	if err != nil {
		return grading.Result{}, fmt.Errorf("parse graded_at for session %s: %w", sessionID, err)
	}
	result.GradedAt = parsed

	return result, nil
}

func scanCall(scan func(...any) error) (Call, error) {
	var call Call
	var startedAt string
	var endedAt sql.NullString

	if err := scan(&call.ID, &startedAt, &endedAt, &call.Status, &call.Transcript, &call.AudioPath); err != nil {
		return Call{}, err
	}

	parsedStart, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Call{}, fmt.Errorf("parse started_at: %w", err)
	}
	call.StartedAt = parsedStart

	if endedAt.Valid {
		parsedEnd, err := time.Parse(time.RFC3339Nano, endedAt.String)
		if err != nil {
			return Call{}, fmt.Errorf("parse ended_at: %w", err)
		}
		call.EndedAt = &parsedEnd
	}

	return call, nil
}
