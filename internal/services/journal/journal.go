// Package journal persists every stream delivery to a SQLite append-only
// log. It is a plain consumer of the stream: it subscribes like any other
// and never feeds anything back, so there is no replay surface.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/pushbridge/pushbridge/internal/domain/events"
	"github.com/pushbridge/pushbridge/pkg/stream"
)

const schema = `
CREATE TABLE IF NOT EXISTS deliveries (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type  TEXT NOT NULL,
	payload     TEXT NOT NULL,
	occurred_at TEXT NOT NULL,
	recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_deliveries_event_type ON deliveries(event_type);
`

// Journal is a stream consumer that appends deliveries to SQLite.
type Journal struct {
	db         *sql.DB
	stmtInsert *sql.Stmt
	sub        *stream.Subscription[events.Event]
}

// Open creates or opens the journal database at dbPath.
func Open(dbPath string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			log.Warn().Err(err).Str("pragma", pragma).Msg("failed to set pragma")
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	stmt, err := db.Prepare(
		"INSERT INTO deliveries (event_type, payload, occurred_at, recorded_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare insert: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("journal opened")

	return &Journal{db: db, stmtInsert: stmt}, nil
}

// Attach subscribes the journal to the stream. Terminal signals are
// recorded like values so the log shows how the stream ended.
func (j *Journal) Attach(st stream.Stream[events.Event]) {
	j.sub = st.Subscribe(
		j.record,
		func(err error) { j.record(events.NewStreamFailedEvent(err)) },
		func() { j.record(events.NewStreamCompletedEvent()) },
	)
}

// record appends one delivery. A write failure is logged and swallowed: the
// journal must never take the stream down with it.
func (j *Journal) record(e events.Event) {
	payload, err := e.ToJSON()
	if err != nil {
		log.Warn().Err(err).Str("event_type", string(e.Type())).Msg("journal: encode failed")
		return
	}

	_, err = j.stmtInsert.Exec(
		string(e.Type()),
		string(payload),
		e.Timestamp().UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		log.Warn().Err(err).Str("event_type", string(e.Type())).Msg("journal: write failed")
	}
}

// Count returns the number of recorded deliveries.
func (j *Journal) Count() (int64, error) {
	var n int64
	if err := j.db.QueryRow("SELECT COUNT(*) FROM deliveries").Scan(&n); err != nil {
		return 0, fmt.Errorf("count deliveries: %w", err)
	}
	return n, nil
}

// Close cancels the subscription and closes the database.
func (j *Journal) Close() error {
	if j.sub != nil {
		j.sub.Cancel()
	}
	if j.stmtInsert != nil {
		_ = j.stmtInsert.Close()
	}
	return j.db.Close()
}
