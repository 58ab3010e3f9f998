package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"iptv-scout/work/types"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a source id does not exist in the store.
var ErrNotFound = errors.New("source not found")

// SourceRecord is one stored source plus the cached state of its last
// validation. The credential fields mirror types.Source; the rest is
// refreshed on every re-validation.
type SourceRecord struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Kind           string     `json:"kind"`
	URL            string     `json:"url"`
	Username       string     `json:"username,omitempty"`
	Password       string     `json:"password,omitempty"`
	Mac            string     `json:"mac,omitempty"`
	PortalPath     string     `json:"portalPath,omitempty"`
	UserAgent      string     `json:"userAgent,omitempty"`
	Referrer       string     `json:"referrer,omitempty"`
	Active         bool       `json:"active"`
	LastStatus     string     `json:"lastStatus,omitempty"`
	Expiry         string     `json:"expiry,omitempty"`
	MaxConnections int        `json:"maxConnections,omitempty"`
	CountryCode    string     `json:"countryCode,omitempty"`
	ServerInfo     string     `json:"serverInfo,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastChecked    *time.Time `json:"lastChecked,omitempty"`
}

// RecordFromResult builds a storable record from a successful validation.
func RecordFromResult(result *types.ValidationResult, name string) *SourceRecord {
	rec := &SourceRecord{
		Name:   name,
		Kind:   result.Kind.String(),
		Active: true,
	}
	if result.Source != nil {
		rec.URL = result.Source.URL
		rec.Username = result.Source.Username
		rec.Password = result.Source.Password
		rec.Mac = result.Source.Mac
	}
	if result.Account != nil {
		rec.LastStatus = result.Account.Status
		rec.Expiry = result.Account.Expiry
		rec.MaxConnections = result.Account.MaxConns
	}
	if result.Geo != nil {
		rec.CountryCode = result.Geo.Country
	}
	checked := result.CheckedAt
	rec.LastChecked = &checked
	return rec
}

const sourceColumns = `id, name, kind, url, username, password, mac, portal_path,
	       user_agent, referrer, active, last_status, expiry, max_connections,
	       country_code, server_info, created_at, last_checked`

// SaveSource inserts a new source or updates an existing one. A missing
// id means a new record; the generated UUID is written back.
func (db *DB) SaveSource(rec *SourceRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	query := `
		INSERT INTO sources (
			id, name, kind, url, username, password, mac, portal_path,
			user_agent, referrer, active, last_status, expiry, max_connections,
			country_code, server_info, last_checked
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, url, username, mac) DO UPDATE SET
			name = excluded.name,
			password = excluded.password,
			portal_path = excluded.portal_path,
			user_agent = excluded.user_agent,
			referrer = excluded.referrer,
			active = excluded.active,
			last_status = excluded.last_status,
			expiry = excluded.expiry,
			max_connections = excluded.max_connections,
			country_code = excluded.country_code,
			server_info = excluded.server_info,
			last_checked = excluded.last_checked
	`
	_, err := db.Exec(query,
		rec.ID, rec.Name, rec.Kind, rec.URL, rec.Username, rec.Password,
		rec.Mac, rec.PortalPath, rec.UserAgent, rec.Referrer, rec.Active,
		rec.LastStatus, rec.Expiry, rec.MaxConnections, rec.CountryCode,
		rec.ServerInfo, rec.LastChecked,
	)
	if err != nil {
		return fmt.Errorf("failed to save source: %w", err)
	}

	// the conflict branch keeps the original row id
	var storedID string
	if err := db.QueryRow(
		"SELECT id FROM sources WHERE kind = ? AND url = ? AND username = ? AND mac = ?",
		rec.Kind, rec.URL, rec.Username, rec.Mac,
	).Scan(&storedID); err == nil {
		rec.ID = storedID
	}
	return nil
}

// GetSource fetches one source by id.
func (db *DB) GetSource(id string) (*SourceRecord, error) {
	row := db.QueryRow("SELECT "+sourceColumns+" FROM sources WHERE id = ?", id)
	rec, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// LoadSources returns all stored sources, active first, newest first
// within each group.
func (db *DB) LoadSources() ([]*SourceRecord, error) {
	rows, err := db.Query("SELECT " + sourceColumns + " FROM sources ORDER BY active DESC, created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}
	defer rows.Close()

	var sources []*SourceRecord
	for rows.Next() {
		rec, err := scanSource(rows)
		if err != nil {
			continue
		}
		sources = append(sources, rec)
	}
	return sources, rows.Err()
}

// DeleteSource removes a source permanently. Deletion only ever happens
// through an explicit caller request.
func (db *DB) DeleteSource(id string) error {
	res, err := db.Exec("DELETE FROM sources WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateValidationState refreshes the cached validation fields after a
// re-check without touching credentials.
func (db *DB) UpdateValidationState(id, status, expiry, countryCode, serverInfo string, checkedAt time.Time) error {
	res, err := db.Exec(`
		UPDATE sources
		SET last_status = ?, expiry = ?, country_code = ?, server_info = ?, last_checked = ?
		WHERE id = ?
	`, status, expiry, countryCode, serverInfo, checkedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update validation state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*SourceRecord, error) {
	var rec SourceRecord
	var lastChecked sql.NullTime
	err := row.Scan(
		&rec.ID, &rec.Name, &rec.Kind, &rec.URL, &rec.Username, &rec.Password,
		&rec.Mac, &rec.PortalPath, &rec.UserAgent, &rec.Referrer, &rec.Active,
		&rec.LastStatus, &rec.Expiry, &rec.MaxConnections, &rec.CountryCode,
		&rec.ServerInfo, &rec.CreatedAt, &lastChecked,
	)
	if err != nil {
		return nil, err
	}
	if lastChecked.Valid {
		rec.LastChecked = &lastChecked.Time
	}
	return &rec, nil
}
