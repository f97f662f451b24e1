package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"tvnotifyd/internal/notify"
	"tvnotifyd/pkg/logx"
)

//go:embed schema.sql
var schemaFS embed.FS

// Config configures the library database.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

// Library is the SQLite TV library. It satisfies notify.Provider.
type Library struct {
	db  *sql.DB
	log logx.Logger
}

var _ notify.Provider = (*Library)(nil)

func Open(cfg Config, log logx.Logger) (*Library, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	l := &Library{db: db, log: log}
	if err := l.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Library) migrate(ctx context.Context) error {
	b, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx, string(b))
	return err
}

func (l *Library) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// ---- notify.Provider ----

// PendingNotifications returns flagged programs joined with their channel,
// ordered by start time so the first due entry in scan order is also the
// chronologically earliest.
func (l *Library) PendingNotifications(ctx context.Context) ([]notify.PendingNotification, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT p.id, p.title, p.description, p.genre, p.start_time, p.end_time,
		        c.id, c.display_name
		 FROM programs p
		 JOIN channels c ON c.id = p.channel_id
		 WHERE p.notify = 1
		 ORDER BY p.start_time ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []notify.PendingNotification
	for rows.Next() {
		var (
			p          notify.PendingNotification
			start, end int64
		)
		if err := rows.Scan(&p.ProgramID, &p.Title, &p.Description, &p.Genre,
			&start, &end, &p.Channel.ID, &p.Channel.Name); err != nil {
			return nil, err
		}
		p.StartTime = time.UnixMilli(start)
		p.EndTime = time.UnixMilli(end)
		p.NotifyPending = true
		out = append(out, p)
	}
	return out, rows.Err()
}

// Persist writes the entry's notify flag back to the programs table.
func (l *Library) Persist(ctx context.Context, p notify.PendingNotification) error {
	flag := 0
	if p.NotifyPending {
		flag = 1
	}
	_, err := l.db.ExecContext(ctx,
		`UPDATE programs SET notify = ? WHERE id = ?`, flag, p.ProgramID)
	return err
}

func (l *Library) RecordingByID(ctx context.Context, id int64) (notify.Recording, bool, error) {
	var (
		rec        notify.Recording
		schedID    sql.NullInt64
		start, end int64
	)
	err := l.db.QueryRowContext(ctx,
		`SELECT r.id, r.schedule_id, r.title, r.start_time, r.end_time,
		        c.id, c.display_name
		 FROM recordings r
		 JOIN channels c ON c.id = r.channel_id
		 WHERE r.id = ?`, id).
		Scan(&rec.ID, &schedID, &rec.Title, &start, &end, &rec.Channel.ID, &rec.Channel.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return notify.Recording{}, false, nil
	}
	if err != nil {
		return notify.Recording{}, false, err
	}
	rec.ScheduleID = schedID.Int64
	rec.StartTime = time.UnixMilli(start)
	rec.EndTime = time.UnixMilli(end)
	return rec, true, nil
}

func (l *Library) ScheduleByID(ctx context.Context, id int64) (notify.Schedule, bool, error) {
	var (
		s          notify.Schedule
		start, end int64
		postMin    int64
	)
	err := l.db.QueryRowContext(ctx,
		`SELECT s.id, s.program_name, s.start_time, s.end_time, s.post_record_min,
		        c.id, c.display_name
		 FROM schedules s
		 JOIN channels c ON c.id = s.channel_id
		 WHERE s.id = ?`, id).
		Scan(&s.ID, &s.ProgramName, &start, &end, &postMin, &s.Channel.ID, &s.Channel.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return notify.Schedule{}, false, nil
	}
	if err != nil {
		return notify.Schedule{}, false, err
	}
	s.StartTime = time.UnixMilli(start)
	s.EndTime = time.UnixMilli(end)
	s.PostRecord = time.Duration(postMin) * time.Minute
	return s, true, nil
}

// ProgramsByTitleWithin returns same-titled programs overlapping
// [start, end), earliest first.
func (l *Library) ProgramsByTitleWithin(ctx context.Context, title string, start, end time.Time) ([]notify.Program, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT p.id, p.title, p.start_time, p.end_time, c.id, c.display_name
		 FROM programs p
		 JOIN channels c ON c.id = p.channel_id
		 WHERE p.title = ? AND p.start_time < ? AND p.end_time > ?
		 ORDER BY p.start_time ASC`,
		title, end.UnixMilli(), start.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []notify.Program
	for rows.Next() {
		var (
			p      notify.Program
			ps, pe int64
		)
		if err := rows.Scan(&p.ID, &p.Title, &ps, &pe, &p.Channel.ID, &p.Channel.Name); err != nil {
			return nil, err
		}
		p.StartTime = time.UnixMilli(ps)
		p.EndTime = time.UnixMilli(pe)
		out = append(out, p)
	}
	return out, rows.Err()
}
