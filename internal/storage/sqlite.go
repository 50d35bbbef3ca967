package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/signal-analysis/internal/spectrum"
)

// SqliteStore implements Store on a single SQLite database file. Write and
// read connections are opened lazily and independently; the write
// connection initializes the schema and runs in WAL mode.
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a store for the database at dbPath. Connections
// are opened on first use.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if _, err = db.Exec(schemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateSession(ctx context.Context, source string, sampleRate float64, config any) (sessionID int64, err error) {
	var configData sql.NullString

	if config != nil {
		switch v := config.(type) {
		case string:
			configData.Valid = true
			configData.String = v

		case []byte:
			configData.Valid = true
			configData.String = string(v)

		default:
			var p []byte
			if p, err = json.Marshal(config); err != nil {
				err = fmt.Errorf("marshaling config: %w", err)
				return
			}

			configData.Valid = true
			configData.String = string(p)
		}
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, source, sampleRate, configData)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

func (s *SqliteStore) Session(ctx context.Context, id int64) (session *spectrum.Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var sess spectrum.Session
	var config sql.NullString
	if err = stmt.QueryRowContext(ctx, id).Scan(&sess.ID, &sess.StartTime, &sess.Source, &sess.SampleRate, &config); err != nil {
		err = fmt.Errorf("scanning session: %w", err)
		return
	}
	if config.Valid {
		sess.Config = &config.String
	}

	return &sess, nil
}

func (s *SqliteStore) Sessions(ctx context.Context) (sessions []*spectrum.Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess spectrum.Session
		var config sql.NullString
		if err = rows.Scan(&sess.ID, &sess.StartTime, &sess.Source, &sess.SampleRate, &config); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		if config.Valid {
			sess.Config = &config.String
		}
		sessions = append(sessions, &sess)
	}
	err = rows.Err()
	return
}

func (s *SqliteStore) StoreFrame(ctx context.Context, sessionID int64, frame *spectrum.Frame) (err error) {
	if frame == nil {
		return fmt.Errorf("nil frame")
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, insertFrameSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if _, err = stmt.ExecContext(ctx, sessionID, frame.Time, frame.SampleOffset, frame.BinWidth, encodePower(frame.Power)); err != nil {
		return fmt.Errorf("inserting frame: %w", err)
	}
	return nil
}

func (s *SqliteStore) StoreEvent(ctx context.Context, sessionID int64, ev spectrum.Event) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, insertEventSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if _, err = stmt.ExecContext(
		ctx,
		sessionID,
		ev.StartTime,
		ev.EndTime,
		ev.FreqLowHz,
		ev.FreqHighHz,
		ev.CenterFreqHz,
		ev.BandwidthHz,
		ev.PeakSNRdB,
		ev.AvgSNRdB,
		ev.PeakPowerDB,
		ev.DetectionCount,
		ev.Confidence,
		ev.Modulation,
	); err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

func (s *SqliteStore) Events(ctx context.Context, sessionID int64) (events []spectrum.Event, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectEventsSQL, sessionID)
	if err != nil {
		err = fmt.Errorf("querying events: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var ev spectrum.Event
		if err = rows.Scan(
			&ev.StartTime,
			&ev.EndTime,
			&ev.FreqLowHz,
			&ev.FreqHighHz,
			&ev.CenterFreqHz,
			&ev.BandwidthHz,
			&ev.PeakSNRdB,
			&ev.AvgSNRdB,
			&ev.PeakPowerDB,
			&ev.DetectionCount,
			&ev.Confidence,
			&ev.Modulation,
		); err != nil {
			err = fmt.Errorf("scanning event: %w", err)
			return
		}
		ev.Duration = ev.EndTime - ev.StartTime
		events = append(events, ev)
	}
	err = rows.Err()
	return
}

func (s *SqliteStore) ReadFrames(ctx context.Context, sessionID int64) (*FrameIterator, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectFramesSQL, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying frames: %w", err)
	}
	return &FrameIterator{rows: rows}, nil
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		if s.writeDB != nil {
			s.closeErr = s.writeDB.Close()
		}
		if s.readDB != nil {
			if err := s.readDB.Close(); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
	})
	return s.closeErr
}
