// Package sqlite3 implements content.KV on a SQLite database, an
// alternative to the default bbolt backend for deployments that want
// SQL-based ad hoc querying over stored entries.
package sqlite3

import (
	"context"
	"database/sql"
	stderrs "errors"

	"github.com/bobg/sqlutil"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
	"github.com/pkg/errors"

	"github.com/mwmiller/baobab"
	"github.com/mwmiller/baobab/content"
)

var _ content.KV = &Store{}

// Store is a SQLite-backed content.KV.
type Store struct {
	db *sql.DB
}

// Schema creates the entries table if it does not already exist.
const Schema = `
CREATE TABLE IF NOT EXISTS entries (
  author BLOB NOT NULL,
  log_id INTEGER NOT NULL,
  seqnum INTEGER NOT NULL,
  data BLOB NOT NULL,
  PRIMARY KEY (author, log_id, seqnum)
);
`

// New wraps db as a Store, creating the entries table if needed.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	_, err := db.ExecContext(ctx, Schema)
	return &Store{db: db}, errors.Wrap(err, "creating schema")
}

func (s *Store) Get(ctx context.Context, key content.Key) (baobab.Entry, bool, error) {
	const q = `SELECT data FROM entries WHERE author = $1 AND log_id = $2 AND seqnum = $3`

	var data []byte
	err := s.db.QueryRowContext(ctx, q, key.Author[:], key.LogID, key.Seqnum).Scan(&data)
	if stderrs.Is(err, sql.ErrNoRows) {
		return baobab.Entry{}, false, nil
	}
	if err != nil {
		return baobab.Entry{}, false, errors.Wrap(err, "querying entry")
	}
	e, err := decodeStored(data)
	return e, true, err
}

func (s *Store) Put(ctx context.Context, key content.Key, e baobab.Entry) (bool, error) {
	const insertQ = `INSERT INTO entries (author, log_id, seqnum, data) VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`
	const updateQ = `UPDATE entries SET data = $4 WHERE author = $1 AND log_id = $2 AND seqnum = $3`

	data := encodeStored(e)
	res, err := s.db.ExecContext(ctx, insertQ, key.Author[:], key.LogID, key.Seqnum, data)
	if err != nil {
		return false, errors.Wrap(err, "inserting entry")
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "counting affected rows")
	}
	if aff > 0 {
		return true, nil
	}
	_, err = s.db.ExecContext(ctx, updateQ, key.Author[:], key.LogID, key.Seqnum, data)
	return false, errors.Wrap(err, "replacing entry")
}

func (s *Store) Delete(ctx context.Context, key content.Key) error {
	const q = `DELETE FROM entries WHERE author = $1 AND log_id = $2 AND seqnum = $3`
	_, err := s.db.ExecContext(ctx, q, key.Author[:], key.LogID, key.Seqnum)
	return errors.Wrap(err, "deleting entry")
}

func (s *Store) Range(ctx context.Context, author baobab.Author, logID uint64, from, to uint64, f func(baobab.Entry) error) error {
	const q = `SELECT data FROM entries WHERE author = $1 AND log_id = $2 AND seqnum >= $3 AND seqnum <= $4 ORDER BY seqnum`

	if to == 0 {
		to = ^uint64(0) >> 1 // no upper bound; seqnums never approach this
	}
	return sqlutil.ForQueryRows(ctx, s.db, q, author[:], logID, from, to, func(data []byte) error {
		e, err := decodeStored(data)
		if err != nil {
			return err
		}
		return f(e)
	})
}

func (s *Store) MaxSeqnum(ctx context.Context, author baobab.Author, logID uint64) (uint64, bool, error) {
	const q = `SELECT MAX(seqnum) FROM entries WHERE author = $1 AND log_id = $2`

	var seqnum sql.NullInt64
	err := s.db.QueryRowContext(ctx, q, author[:], logID).Scan(&seqnum)
	if err != nil {
		return 0, false, errors.Wrap(err, "querying max seqnum")
	}
	if !seqnum.Valid {
		return 0, false, nil
	}
	return uint64(seqnum.Int64), true, nil
}

func (s *Store) Logs(ctx context.Context, f func(content.LogRef) error) error {
	const q = `SELECT DISTINCT author, log_id FROM entries ORDER BY author, log_id`

	return sqlutil.ForQueryRows(ctx, s.db, q, func(author []byte, logID int64) error {
		var ref content.LogRef
		copy(ref.Author[:], author)
		ref.LogID = uint64(logID)
		return f(ref)
	})
}

func encodeStored(e baobab.Entry) []byte {
	return baobab.EncodeFull(e)
}

func decodeStored(data []byte) (baobab.Entry, error) {
	e, _, err := baobab.Decode(data)
	return e, err
}

func init() {
	content.Register("sqlite3", func(ctx context.Context, conf map[string]interface{}) (content.KV, error) {
		path, ok := conf["path"].(string)
		if !ok {
			return nil, errors.New(`content/sqlite3: missing "path" parameter`)
		}
		db, err := sql.Open("sqlite3", path)
		if err != nil {
			return nil, errors.Wrap(err, "opening sqlite3 database")
		}
		return New(ctx, db)
	})
}
