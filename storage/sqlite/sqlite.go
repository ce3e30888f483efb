// Package sqlite implements storage.Storage over database/sql and
// github.com/mattn/go-sqlite3, adapted from the teacher's
// paxos/queries/sqlite-queries.go: same driver, same
// "INSERT ... ON CONFLICT(...) DO UPDATE" upsert idiom, generalized
// from a turn_id-keyed `proposal`/`learnt` schema to a uid-keyed
// `last_granted`/`last_accepted` schema (this port has one proposal
// per Node rather than the teacher's many-turn-IDs-per-node model).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // driver registration, side-effect only

	"github.com/esaraci/paxoscore/message"
	"github.com/esaraci/paxoscore/sid"
)

const schema = `
CREATE TABLE IF NOT EXISTS last_granted (
	uid TEXT PRIMARY KEY,
	sid_integer INTEGER NOT NULL,
	sid_id TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS last_accepted (
	uid TEXT PRIMARY KEY,
	sid_integer INTEGER NOT NULL,
	sid_id TEXT NOT NULL,
	value_json TEXT NOT NULL
);
`

// Storage is a SQLite-backed storage.Storage[V] implementation. V
// must be JSON-marshalable.
type Storage[V any] struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and
// ensures the schema exists, mirroring the teacher's
// PrepareDBConn+InitDatabase pair.
func Open[V any](path string) (*Storage[V], error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // matches the teacher's single-writer assumption
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: init schema: %w", err)
	}
	return &Storage[V]{db: db}, nil
}

func (s *Storage[V]) Close() error {
	return s.db.Close()
}

func (s *Storage[V]) GetLastGrantedSuggestionId(ctx context.Context, uid string) (sid.SID, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT sid_integer, sid_id FROM last_granted WHERE uid = ?`, uid)
	var integer int64
	var id string
	if err := row.Scan(&integer, &id); err != nil {
		if err == sql.ErrNoRows {
			return sid.SID{}, false, nil
		}
		return sid.SID{}, false, fmt.Errorf("sqlite: get last_granted(%s): %w", uid, err)
	}
	return sid.SID{Integer: integer, ID: id}, true, nil
}

func (s *Storage[V]) StoreLastGrantedSuggestionId(ctx context.Context, uid string, newSID sid.SID) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO last_granted (uid, sid_integer, sid_id) VALUES (?, ?, ?)
		 ON CONFLICT(uid) DO UPDATE SET sid_integer = excluded.sid_integer, sid_id = excluded.sid_id`,
		uid, newSID.Integer, newSID.ID)
	if err != nil {
		return fmt.Errorf("sqlite: store last_granted(%s): %w", uid, err)
	}
	return nil
}

func (s *Storage[V]) GetLastAcceptedData(ctx context.Context, uid string) (message.LastAccepted[V], bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT sid_integer, sid_id, value_json FROM last_accepted WHERE uid = ?`, uid)
	var integer int64
	var id, valueJSON string
	if err := row.Scan(&integer, &id, &valueJSON); err != nil {
		if err == sql.ErrNoRows {
			return message.LastAccepted[V]{}, false, nil
		}
		return message.LastAccepted[V]{}, false, fmt.Errorf("sqlite: get last_accepted(%s): %w", uid, err)
	}
	var value V
	if err := json.Unmarshal([]byte(valueJSON), &value); err != nil {
		return message.LastAccepted[V]{}, false, fmt.Errorf("sqlite: decode last_accepted(%s) value: %w", uid, err)
	}
	return message.LastAccepted[V]{SID: sid.SID{Integer: integer, ID: id}, Value: value}, true, nil
}

func (s *Storage[V]) StoreLastAcceptedData(ctx context.Context, uid string, data message.LastAccepted[V]) error {
	valueJSON, err := json.Marshal(data.Value)
	if err != nil {
		return fmt.Errorf("sqlite: encode last_accepted(%s) value: %w", uid, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO last_accepted (uid, sid_integer, sid_id, value_json) VALUES (?, ?, ?, ?)
		 ON CONFLICT(uid) DO UPDATE SET sid_integer = excluded.sid_integer, sid_id = excluded.sid_id, value_json = excluded.value_json`,
		uid, data.SID.Integer, data.SID.ID, string(valueJSON))
	if err != nil {
		return fmt.Errorf("sqlite: store last_accepted(%s): %w", uid, err)
	}
	return nil
}

func (s *Storage[V]) Reset(ctx context.Context, uid string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM last_granted WHERE uid = ?`, uid); err != nil {
		return fmt.Errorf("sqlite: reset last_granted(%s): %w", uid, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM last_accepted WHERE uid = ?`, uid); err != nil {
		return fmt.Errorf("sqlite: reset last_accepted(%s): %w", uid, err)
	}
	return nil
}
