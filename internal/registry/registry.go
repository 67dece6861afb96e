// Package registry persists the configured server list in SQLite. It is
// the source of the targets rendered by the bulk status endpoint; the
// status core itself never writes here.
package registry

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite" // Driver sqlite

	"github.com/blockhaven/statusd/internal/status"
)

// Server is one configured game server with its display metadata.
type Server struct {
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Name      string         `json:"name"`
	Host      string         `json:"host"`
	Edition   status.Edition `json:"edition"`
	ID        int64          `json:"id"`
	SortOrder int            `json:"sort_order"`
	Port      uint16         `json:"port"`
	Enabled   bool           `json:"enabled"`
}

// Target returns the probeable identity of the server.
func (s Server) Target() status.ServerTarget {
	return status.ServerTarget{Host: s.Host, Port: s.Port, Edition: s.Edition}
}

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

// New initializes a new SQLite connection, sets connection pool parameters, and runs migrations.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// List returns configured servers ordered by sort order then name. With
// onlyEnabled it filters out disabled rows.
func (r *Repository) List(onlyEnabled bool) ([]Server, error) {
	query := `
		SELECT id, name, host, port, edition, sort_order, enabled, created_at, updated_at
		FROM servers
	`
	if onlyEnabled {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY sort_order ASC, name ASC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var servers []Server
	for rows.Next() {
		var s Server
		if err := rows.Scan(
			&s.ID, &s.Name, &s.Host, &s.Port, &s.Edition,
			&s.SortOrder, &s.Enabled, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			continue
		}
		servers = append(servers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return servers, nil
}

// Get retrieves one server by id. Returns nil when not found.
func (r *Repository) Get(id int64) (*Server, error) {
	row := r.db.QueryRow(`
		SELECT id, name, host, port, edition, sort_order, enabled, created_at, updated_at
		FROM servers
		WHERE id = ?
	`, id)

	var s Server
	err := row.Scan(
		&s.ID, &s.Name, &s.Host, &s.Port, &s.Edition,
		&s.SortOrder, &s.Enabled, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}

	return &s, nil
}

// Upsert inserts a server or updates the existing row with the same
// (host, port) identity.
func (r *Repository) Upsert(s Server) error {
	query := `
	INSERT INTO servers (name, host, port, edition, sort_order, enabled, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(host, port) DO UPDATE SET
		name       = excluded.name,
		edition    = excluded.edition,
		sort_order = excluded.sort_order,
		enabled    = excluded.enabled,
		updated_at = excluded.updated_at;
	`

	now := time.Now()
	_, err := r.db.Exec(query,
		s.Name, s.Host, s.Port, s.Edition, s.SortOrder, s.Enabled, now, now,
	)

	return err
}

// Delete removes a server by id.
func (r *Repository) Delete(id int64) error {
	_, err := r.db.Exec(`DELETE FROM servers WHERE id = ?`, id)
	return err
}
