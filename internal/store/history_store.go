package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vrsandeep/pagesum-go/internal/models"
)

const historyColumns = "id, user_id, url, title, body, summary, created_at"

// AddHistory stores a summary. A nil userID records it for the local
// daemon rather than a backend user.
func (s *Store) AddHistory(userID *int64, url, title, body, summary string) (*models.HistoryEntry, error) {
	now := time.Now()
	res, err := s.db.Exec(
		"INSERT INTO history (user_id, url, title, body, summary, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		userID, url, title, body, summary, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add history: %w", err)
	}
	id, _ := res.LastInsertId()
	return &models.HistoryEntry{
		ID:        id,
		UserID:    userID,
		URL:       url,
		Title:     title,
		Body:      body,
		Summary:   summary,
		CreatedAt: now,
	}, nil
}

// RecentHistory returns up to limit entries, newest first.
func (s *Store) RecentHistory(limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.queryHistory("SELECT "+historyColumns+" FROM history ORDER BY created_at DESC, id DESC LIMIT ?", limit)
}

// HistoryForUser returns every entry recorded for userID in insertion order.
func (s *Store) HistoryForUser(userID int64) ([]models.HistoryEntry, error) {
	return s.queryHistory("SELECT "+historyColumns+" FROM history WHERE user_id = ? ORDER BY id ASC", userID)
}

// PruneHistory deletes all but the newest keep entries and returns how many
// rows were removed.
func (s *Store) PruneHistory(keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.Exec(`
		DELETE FROM history
		WHERE id NOT IN (
			SELECT id FROM history ORDER BY created_at DESC, id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) queryHistory(query string, args ...any) ([]models.HistoryEntry, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		var userID sql.NullInt64
		if err := rows.Scan(&e.ID, &userID, &e.URL, &e.Title, &e.Body, &e.Summary, &e.CreatedAt); err != nil {
			return nil, err
		}
		if userID.Valid {
			id := userID.Int64
			e.UserID = &id
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
