// Package catalog keeps a local SQLite record of every generated episode.
// Durable truth lives in the remote state store; the catalog exists so the
// episodes and reset commands can answer questions without network access.
package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/config"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by an incompatible
// version.
var ErrSchemaMismatch = errors.New("catalog schema version mismatch")

// Episode is one catalog row.
type Episode struct {
	Identifier  string
	Slug        string
	Link        string
	Title       string
	PubUTC      string
	MP3Path     string
	SidecarPath string
	UploadedURL string
	Characters  int
	Generated   bool
	CreatedAt   string
	UpdatedAt   string
}

// Store is the SQLite-backed episode catalog.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to the catalog database, creating it on first use.
func Open(cfg *config.Config) (*Store, error) {
	dbPath := cfg.Paths.CatalogDB
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := ensureDir(dir); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create catalog schema: %w", err)
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read catalog schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to rebuild)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

// Upsert records or refreshes an episode row.
func (s *Store) Upsert(ctx context.Context, ep Episode) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO episodes (identifier, slug, link, title, pub_utc, mp3_path, sidecar_path,
                      uploaded_url, characters, generated, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(identifier) DO UPDATE SET
    slug = excluded.slug,
    link = excluded.link,
    title = excluded.title,
    pub_utc = excluded.pub_utc,
    mp3_path = excluded.mp3_path,
    sidecar_path = excluded.sidecar_path,
    uploaded_url = excluded.uploaded_url,
    characters = excluded.characters,
    generated = excluded.generated,
    updated_at = excluded.updated_at`,
		ep.Identifier, ep.Slug, ep.Link, ep.Title, ep.PubUTC, ep.MP3Path, ep.SidecarPath,
		ep.UploadedURL, ep.Characters, boolInt(ep.Generated), now, now)
	if err != nil {
		return fmt.Errorf("upsert episode %s: %w", ep.Identifier, err)
	}
	return nil
}

// Get returns one episode row, reporting presence separately.
func (s *Store) Get(ctx context.Context, identifier string) (*Episode, bool, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE identifier = ?", identifier)
	ep, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get episode %s: %w", identifier, err)
	}
	return ep, true, nil
}

// List returns a feed's episodes, newest publication first.
func (s *Store) List(ctx context.Context, slug string) ([]Episode, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+" WHERE slug = ? ORDER BY pub_utc DESC", slug)
	if err != nil {
		return nil, fmt.Errorf("list episodes for %s: %w", slug, err)
	}
	defer rows.Close()

	var out []Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		out = append(out, *ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episodes: %w", err)
	}
	return out, nil
}

// Delete removes an episode row. Missing rows are not an error.
func (s *Store) Delete(ctx context.Context, identifier string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM episodes WHERE identifier = ?", identifier); err != nil {
		return fmt.Errorf("delete episode %s: %w", identifier, err)
	}
	return nil
}

const selectColumns = `
SELECT identifier, slug, link, title, pub_utc, mp3_path, sidecar_path,
       uploaded_url, characters, generated, created_at, updated_at
FROM episodes`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEpisode(row rowScanner) (*Episode, error) {
	var ep Episode
	var generated int
	if err := row.Scan(&ep.Identifier, &ep.Slug, &ep.Link, &ep.Title, &ep.PubUTC,
		&ep.MP3Path, &ep.SidecarPath, &ep.UploadedURL, &ep.Characters, &generated,
		&ep.CreatedAt, &ep.UpdatedAt); err != nil {
		return nil, err
	}
	ep.Generated = generated != 0
	return &ep, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create catalog directory: %w", err)
	}
	return nil
}
