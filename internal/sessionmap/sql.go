package sessionmap

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sebas/distgrid/internal/capability"
	"github.com/sebas/distgrid/internal/griderr"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions_map (
	session_ids  TEXT PRIMARY KEY,
	session_uri  TEXT NOT NULL,
	session_caps TEXT
)`

// SQL is the relational reference backend: a single table keyed by
// session id, reachable through database/sql so any driver works against
// the same parameterized statements (mattn/go-sqlite3 by default).
type SQL struct {
	db *sql.DB
}

// OpenSQL opens (creating if necessary) the sessions_map table at dsn using
// driverName, defaulting to "sqlite3".
func OpenSQL(driverName, dsn string) (*SQL, error) {
	if driverName == "" {
		driverName = "sqlite3"
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, griderr.Wrap(griderr.Config, "open session map database", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, griderr.Wrap(griderr.Config, "connect to session map database", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, griderr.Wrap(griderr.Config, "create sessions_map table", err)
	}
	return &SQL{db: db}, nil
}

// Add upserts session, so a replayed registration after a process restart
// is idempotent rather than a duplicate-key error.
func (s *SQL) Add(session Session) (bool, error) {
	caps, err := json.Marshal(session.Capabilities)
	if err != nil {
		return false, griderr.Wrap(griderr.Storage, "encode session capabilities", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO sessions_map (session_ids, session_uri, session_caps) VALUES (?, ?, ?)
		 ON CONFLICT(session_ids) DO UPDATE SET session_uri = excluded.session_uri, session_caps = excluded.session_caps`,
		session.SessionID, session.URI, string(caps),
	)
	if err != nil {
		return false, griderr.Wrap(griderr.Storage, "insert session record", err)
	}
	return true, nil
}

// Get selects the row for id. A null session_caps column decodes to an
// empty Capabilities value. A stored URI that fails to parse, or stored
// capabilities that fail to decode, surface as NoSuchSession with the
// offending string in the message.
func (s *SQL) Get(id string) (Session, error) {
	var uri string
	var caps sql.NullString
	err := s.db.QueryRow(
		`SELECT session_uri, session_caps FROM sessions_map WHERE session_ids = ? LIMIT 1`, id,
	).Scan(&uri, &caps)
	if err == sql.ErrNoRows {
		return Session{}, NoSuchSession(id)
	}
	if err != nil {
		return Session{}, griderr.Wrap(griderr.Storage, "query session record", err)
	}
	if _, err := url.Parse(uri); err != nil {
		return Session{}, NoSuchSession(fmt.Sprintf("%s (malformed uri: %s)", id, uri))
	}

	capabilities := capability.Capabilities{}
	if caps.Valid && caps.String != "" {
		if err := json.Unmarshal([]byte(caps.String), &capabilities); err != nil {
			return Session{}, NoSuchSession(fmt.Sprintf("%s (malformed capabilities: %s)", id, caps.String))
		}
	}

	return Session{SessionID: id, URI: uri, Capabilities: capabilities}, nil
}

// Remove deletes the row for id; absence is not an error.
func (s *SQL) Remove(id string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions_map WHERE session_ids = ?`, id); err != nil {
		return griderr.Wrap(griderr.Storage, "delete session record", err)
	}
	return nil
}

func (s *SQL) IsReady() bool {
	return s.db.Ping() == nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}
