package storage

import (
	"context"
	"time"
)

// Row types for the write side: EPG import and the recorder's bookkeeping
// live outside this daemon, but tests and maintenance tooling go through
// these.

type ProgramRow struct {
	ID          int64
	ChannelID   int64
	Title       string
	Description string
	Genre       string
	StartTime   time.Time
	EndTime     time.Time
	Notify      bool
}

type ScheduleRow struct {
	ID          int64
	ChannelID   int64
	ProgramName string
	StartTime   time.Time
	EndTime     time.Time
	PostRecord  time.Duration
}

type RecordingRow struct {
	ID         int64
	ScheduleID int64 // 0 = no parent schedule
	ChannelID  int64
	Title      string
	StartTime  time.Time
	EndTime    time.Time
}

func (l *Library) UpsertChannel(ctx context.Context, id int64, displayName string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO channels(id, display_name) VALUES(?,?)
		 ON CONFLICT(id) DO UPDATE SET display_name=excluded.display_name`,
		id, displayName)
	return err
}

func (l *Library) UpsertProgram(ctx context.Context, p ProgramRow) error {
	notifyFlag := 0
	if p.Notify {
		notifyFlag = 1
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO programs(id, channel_id, title, description, genre, start_time, end_time, notify)
		 VALUES(?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   channel_id=excluded.channel_id, title=excluded.title,
		   description=excluded.description, genre=excluded.genre,
		   start_time=excluded.start_time, end_time=excluded.end_time,
		   notify=excluded.notify`,
		p.ID, p.ChannelID, p.Title, p.Description, p.Genre,
		p.StartTime.UnixMilli(), p.EndTime.UnixMilli(), notifyFlag)
	return err
}

func (l *Library) UpsertSchedule(ctx context.Context, s ScheduleRow) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO schedules(id, channel_id, program_name, start_time, end_time, post_record_min)
		 VALUES(?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   channel_id=excluded.channel_id, program_name=excluded.program_name,
		   start_time=excluded.start_time, end_time=excluded.end_time,
		   post_record_min=excluded.post_record_min`,
		s.ID, s.ChannelID, s.ProgramName,
		s.StartTime.UnixMilli(), s.EndTime.UnixMilli(), int64(s.PostRecord/time.Minute))
	return err
}

func (l *Library) UpsertRecording(ctx context.Context, r RecordingRow) error {
	var schedID any
	if r.ScheduleID > 0 {
		schedID = r.ScheduleID
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO recordings(id, schedule_id, channel_id, title, start_time, end_time)
		 VALUES(?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   schedule_id=excluded.schedule_id, channel_id=excluded.channel_id,
		   title=excluded.title, start_time=excluded.start_time, end_time=excluded.end_time`,
		r.ID, schedID, r.ChannelID, r.Title, r.StartTime.UnixMilli(), r.EndTime.UnixMilli())
	return err
}
