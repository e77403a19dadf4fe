package threatguard

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const archiveSchema = `
CREATE TABLE IF NOT EXISTS security_events (
	id             TEXT PRIMARY KEY,
	type           TEXT NOT NULL,
	severity       TEXT NOT NULL,
	timestamp      DATETIME NOT NULL,
	source_address TEXT NOT NULL,
	user_agent     TEXT,
	user_id        TEXT,
	session_id     TEXT,
	details        TEXT,
	resolved       INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_security_events_timestamp ON security_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_security_events_source ON security_events(source_address);
`

// EventArchive writes every recorded event to SQLite so detections survive
// a restart. The in-memory window stays authoritative for queries and
// statistics; the archive is a durable sink only. Opting in goes beyond
// the in-memory baseline on purpose.
type EventArchive struct {
	db *sqlx.DB
}

type archivedEvent struct {
	ID            string    `db:"id"`
	Type          string    `db:"type"`
	Severity      string    `db:"severity"`
	Timestamp     time.Time `db:"timestamp"`
	SourceAddress string    `db:"source_address"`
	UserAgent     string    `db:"user_agent"`
	UserID        string    `db:"user_id"`
	SessionID     string    `db:"session_id"`
	Details       string    `db:"details"`
	Resolved      bool      `db:"resolved"`
}

// OpenEventArchive opens (and if needed initializes) a SQLite archive at
// the given DSN, e.g. "file:threatguard.db" or ":memory:".
func OpenEventArchive(dsn string) (*EventArchive, error) {
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(archiveSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &EventArchive{db: db}, nil
}

// Insert persists one finalized event.
func (a *EventArchive) Insert(event *SecurityEvent) error {
	if event == nil {
		return nil
	}
	details, err := json.Marshal(event.Details)
	if err != nil {
		details = []byte("{}")
	}
	_, err = a.db.NamedExec(`
		INSERT INTO security_events
			(id, type, severity, timestamp, source_address, user_agent, user_id, session_id, details, resolved)
		VALUES
			(:id, :type, :severity, :timestamp, :source_address, :user_agent, :user_id, :session_id, :details, :resolved)`,
		&archivedEvent{
			ID:            event.ID,
			Type:          string(event.Type),
			Severity:      string(event.Severity),
			Timestamp:     event.Timestamp,
			SourceAddress: event.SourceAddress,
			UserAgent:     event.UserAgent,
			UserID:        event.UserID,
			SessionID:     event.SessionID,
			Details:       string(details),
			Resolved:      event.Resolved,
		})
	return err
}

// Recent loads the newest archived events, up to limit.
func (a *EventArchive) Recent(limit int) ([]*SecurityEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []archivedEvent
	if err := a.db.Select(&rows, `
		SELECT id, type, severity, timestamp, source_address, user_agent, user_id, session_id, details, resolved
		FROM security_events ORDER BY timestamp DESC LIMIT ?`, limit); err != nil {
		return nil, err
	}
	events := make([]*SecurityEvent, 0, len(rows))
	for _, row := range rows {
		ev := &SecurityEvent{
			ID:            row.ID,
			Type:          EventType(row.Type),
			Severity:      Severity(row.Severity),
			Timestamp:     row.Timestamp,
			SourceAddress: row.SourceAddress,
			UserAgent:     row.UserAgent,
			UserID:        row.UserID,
			SessionID:     row.SessionID,
			Resolved:      row.Resolved,
		}
		if row.Details != "" {
			_ = json.Unmarshal([]byte(row.Details), &ev.Details)
		}
		events = append(events, ev)
	}
	return events, nil
}

func (a *EventArchive) Close() error {
	return a.db.Close()
}
