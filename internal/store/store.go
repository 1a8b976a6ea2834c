package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("Item not found")

// LocalStore is a persistent key-value store kept in a sqlite database.
type LocalStore struct {
	db *sqlx.DB
}

func NewLocalStore(db *sqlx.DB) *LocalStore {
	return &LocalStore{db: db}
}

// Open connects to the sqlite database at path and makes sure the items table exists.
func Open(path string) (*LocalStore, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("cannot open local storage %s: %w", path, err)
	}
	// sqlite allows a single writer, and each ":memory:" connection is its own database.
	db.SetMaxOpenConns(1)
	ls := NewLocalStore(db)
	if err := ls.Init(); err != nil {
		db.Close()
		return nil, err
	}
	return ls, nil
}

func (ls *LocalStore) Init() error {
	createTableQuery := `
    CREATE TABLE IF NOT EXISTS local_storage (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
  `
	_, err := ls.db.Exec(createTableQuery)
	return err
}

func (ls *LocalStore) Close() error {
	return ls.db.Close()
}

func (ls *LocalStore) GetItem(key string) (string, error) {
	var value string
	err := ls.db.QueryRowx(`SELECT value FROM local_storage WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (ls *LocalStore) SetItem(key, value string) error {
	_, err := ls.db.Exec(`INSERT OR REPLACE INTO local_storage (key, value) VALUES (?, ?)`, key, value)
	return err
}

// SetItems writes all items in one transaction, in key order.
func (ls *LocalStore) SetItems(items map[string]string) error {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tx, err := ls.db.Beginx()
	if err != nil {
		return err
	}
	stmt, err := tx.Preparex(`INSERT OR REPLACE INTO local_storage (key, value) VALUES (?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, k := range keys {
		if _, err := stmt.Exec(k, items[k]); err != nil {
			tx.Rollback()
			return fmt.Errorf("cannot store %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// RemoveItem deletes the given keys. Missing keys are not an error.
func (ls *LocalStore) RemoveItem(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM local_storage WHERE key IN (?)`, keys)
	if err != nil {
		return err
	}
	_, err = ls.db.Exec(ls.db.Rebind(query), args...)
	return err
}

func (ls *LocalStore) Keys() ([]string, error) {
	var keys []string
	err := ls.db.Select(&keys, `SELECT key FROM local_storage ORDER BY key`)
	if err != nil {
		return nil, err
	}
	return keys, nil
}
