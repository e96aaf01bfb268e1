// Package audit keeps a local append-only log of notification delivery
// outcomes in an embedded SQLite database.
package audit

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is one recorded delivery outcome
type Entry struct {
	ID           int64     `json:"id"`
	SubscriberID uint      `json:"subscriber_id"`
	CycleTime    time.Time `json:"cycle_time"`
	Delivered    bool      `json:"delivered"`
	Detail       string    `json:"detail"`
	CreatedAt    time.Time `json:"created_at"`
}

// Log records delivery outcomes. Writes are best-effort: a failed audit
// write is logged and never propagated to the dispatcher.
type Log struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (and creates if needed) the audit database at the given path
func Open(path string) (*Log, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}

	table := `
		CREATE TABLE IF NOT EXISTS delivery_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			subscriber_id INTEGER NOT NULL,
			cycle_time TIMESTAMP NOT NULL,
			delivered BOOLEAN NOT NULL,
			detail TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`
	if _, err := db.Exec(table); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create delivery_log table: %w", err)
	}

	log.Printf("Delivery audit log initialized at %s", path)
	return &Log{db: db}, nil
}

// RecordDelivery appends one delivery outcome
func (l *Log) RecordDelivery(subscriberID uint, cycleTime time.Time, delivered bool, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.Exec(
		"INSERT INTO delivery_log (subscriber_id, cycle_time, delivered, detail) VALUES (?, ?, ?, ?)",
		subscriberID, cycleTime.UTC(), delivered, detail,
	)
	if err != nil {
		log.Printf("Failed to record delivery audit entry: %v", err)
	}
}

// RecentEntries returns the most recent delivery log entries, newest first
func (l *Log) RecentEntries(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query(
		"SELECT id, subscriber_id, cycle_time, delivered, detail, created_at FROM delivery_log ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var detail sql.NullString
		if err := rows.Scan(&e.ID, &e.SubscriberID, &e.CycleTime, &e.Delivered, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan delivery log row: %w", err)
		}
		e.Detail = detail.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the audit database
func (l *Log) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}
