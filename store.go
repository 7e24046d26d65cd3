package rocks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("rocks: not found")
	// ErrDuplicateURL is returned when saving a non-draft resource whose URL
	// is already used by another non-draft resource.
	ErrDuplicateURL = errors.New("rocks: url already used by a published resource")
	// ErrInvalidResource is returned for resources missing required fields.
	ErrInvalidResource = errors.New("rocks: invalid resource")
)

// Store wraps a SQLite database and provides CRUD operations for authors,
// resources and the live banner.
type Store struct {
	db *sql.DB
}

// ResourceQuery filters ListResources. Results are always ordered by
// publication date, newest first.
type ResourceQuery struct {
	Tag           string
	AuthorID      string
	Limit         int
	IncludeDrafts bool
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets readers proceed while the admin writes; writers wait on the
	// busy timeout instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS authors (
    id TEXT PRIMARY KEY,
    given_name TEXT NOT NULL,
    family_name TEXT NOT NULL,
    org TEXT NOT NULL DEFAULT '',
    unit TEXT NOT NULL DEFAULT '',
    city TEXT NOT NULL DEFAULT '',
    state TEXT NOT NULL DEFAULT '',
    country TEXT NOT NULL DEFAULT '',
    lat REAL,
    lon REAL,
    google_account TEXT NOT NULL DEFAULT '',
    twitter_account TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL DEFAULT '',
    lanyrd INTEGER NOT NULL DEFAULT 0,
    homepage TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS resources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    url TEXT NOT NULL,
    social_url TEXT NOT NULL DEFAULT '',
    author_id TEXT NOT NULL,
    second_author_id TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT ',',
    browser_support TEXT NOT NULL DEFAULT ',',
    publication_date TEXT NOT NULL,
    update_date TEXT NOT NULL DEFAULT '',
    draft INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS resources_url ON resources (url);
CREATE INDEX IF NOT EXISTS resources_pubdate ON resources (publication_date);
CREATE TABLE IF NOT EXISTS live_data (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    url TEXT NOT NULL DEFAULT '',
    updated TEXT NOT NULL
);
`)
	return err
}

const authorColumns = `id, given_name, family_name, org, unit, city, state, country, lat, lon, google_account, twitter_account, email, lanyrd, homepage`

type scanner interface {
	Scan(dest ...any) error
}

func scanAuthor(row scanner) (Author, error) {
	var a Author
	var lat, lon sql.NullFloat64
	var lanyrd int
	if err := row.Scan(&a.ID, &a.GivenName, &a.FamilyName, &a.Org, &a.Unit, &a.City, &a.State, &a.Country,
		&lat, &lon, &a.GoogleAccount, &a.TwitterAccount, &a.Email, &lanyrd, &a.Homepage); err != nil {
		return Author{}, err
	}
	if lat.Valid && lon.Valid {
		a.Geo = &GeoPoint{Lat: lat.Float64, Lon: lon.Float64}
	}
	a.Lanyrd = lanyrd == 1
	return a, nil
}

// SaveAuthor upserts an author by ID.
func (s *Store) SaveAuthor(ctx context.Context, a Author) error {
	if a.ID == "" {
		a.ID = AuthorID(a.GivenName, a.FamilyName)
	}
	if a.ID == "" {
		return fmt.Errorf("save author: %w", ErrInvalidResource)
	}
	var lat, lon sql.NullFloat64
	if a.Geo != nil {
		lat = sql.NullFloat64{Float64: a.Geo.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: a.Geo.Lon, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO authors (`+authorColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.GivenName, a.FamilyName, a.Org, a.Unit, a.City, a.State, a.Country,
		lat, lon, a.GoogleAccount, a.TwitterAccount, a.Email, boolInt(a.Lanyrd), a.Homepage)
	return err
}

// GetAuthor returns the author with the given ID.
func (s *Store) GetAuthor(ctx context.Context, id string) (Author, error) {
	a, err := scanAuthor(s.db.QueryRowContext(ctx, `SELECT `+authorColumns+` FROM authors WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Author{}, ErrNotFound
	}
	return a, err
}

// ListAuthors returns every author sorted by family name, then given name.
func (s *Store) ListAuthors(ctx context.Context) ([]Author, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+authorColumns+` FROM authors ORDER BY lower(family_name), lower(given_name), id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var authors []Author
	for rows.Next() {
		a, err := scanAuthor(rows)
		if err != nil {
			return nil, err
		}
		authors = append(authors, a)
	}
	return authors, rows.Err()
}

const resourceColumns = `id, title, description, url, social_url, author_id, second_author_id, tags, browser_support, publication_date, update_date, draft`

func scanResource(row scanner) (Resource, error) {
	var r Resource
	var tags, browsers string
	var draft int
	if err := row.Scan(&r.ID, &r.Title, &r.Description, &r.URL, &r.SocialURL, &r.AuthorID, &r.SecondAuthorID,
		&tags, &browsers, &r.PublicationDate, &r.UpdateDate, &draft); err != nil {
		return Resource{}, err
	}
	r.Tags = ParseTags(tags)
	r.BrowserSupport = ParseTags(browsers)
	r.Draft = draft == 1
	return r, nil
}

// SaveResource inserts r when r.ID is zero and updates it otherwise. On
// insert r.ID is set to the new row ID. Tags and browser names are
// normalized to lowercase.
func (s *Store) SaveResource(ctx context.Context, r *Resource) error {
	if strings.TrimSpace(r.Title) == "" || strings.TrimSpace(r.URL) == "" || r.AuthorID == "" {
		return fmt.Errorf("save resource: title, url and author are required: %w", ErrInvalidResource)
	}
	if _, err := time.Parse(dateLayout, r.PublicationDate); err != nil {
		return fmt.Errorf("save resource: publication date %q: %w", r.PublicationDate, ErrInvalidResource)
	}
	if r.SecondAuthorID == r.AuthorID {
		r.SecondAuthorID = ""
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if !r.Draft {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM resources WHERE url = ? AND draft = 0 AND id != ?`, r.URL, r.ID).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("save resource %q: %w", r.URL, ErrDuplicateURL)
		}
	}

	tags := JoinTagString(r.Tags)
	browsers := JoinTagString(r.BrowserSupport)
	if r.ID == 0 {
		res, err := tx.ExecContext(ctx, `INSERT INTO resources (title, description, url, social_url, author_id, second_author_id, tags, browser_support, publication_date, update_date, draft) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.Title, r.Description, r.URL, r.SocialURL, r.AuthorID, r.SecondAuthorID, tags, browsers, r.PublicationDate, r.UpdateDate, boolInt(r.Draft))
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		r.ID = id
	} else {
		res, err := tx.ExecContext(ctx, `UPDATE resources SET title = ?, description = ?, url = ?, social_url = ?, author_id = ?, second_author_id = ?, tags = ?, browser_support = ?, publication_date = ?, update_date = ?, draft = ? WHERE id = ?`,
			r.Title, r.Description, r.URL, r.SocialURL, r.AuthorID, r.SecondAuthorID, tags, browsers, r.PublicationDate, r.UpdateDate, boolInt(r.Draft), r.ID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	r.Tags = ParseTags(tags)
	r.BrowserSupport = ParseTags(browsers)
	return nil
}

// GetResource returns a resource by ID regardless of draft status (for admin).
func (s *Store) GetResource(ctx context.Context, id int64) (Resource, error) {
	r, err := scanResource(s.db.QueryRowContext(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Resource{}, ErrNotFound
	}
	return r, err
}

// FindResourceByURL returns the resource whose URL matches exactly. A
// published match wins over drafts sharing the URL.
func (s *Store) FindResourceByURL(ctx context.Context, url string) (Resource, error) {
	r, err := scanResource(s.db.QueryRowContext(ctx, `SELECT `+resourceColumns+` FROM resources WHERE url = ? ORDER BY draft ASC, id ASC LIMIT 1`, url))
	if errors.Is(err, sql.ErrNoRows) {
		return Resource{}, ErrNotFound
	}
	return r, err
}

// ListResources returns resources ordered by publication date descending.
func (s *Store) ListResources(ctx context.Context, q ResourceQuery) ([]Resource, error) {
	var where []string
	var args []any
	if !q.IncludeDrafts {
		where = append(where, `draft = 0`)
	}
	if q.Tag != "" {
		where = append(where, `instr(tags, ',' || ? || ',') > 0`)
		args = append(args, normalizeTag(q.Tag))
	}
	if q.AuthorID != "" {
		where = append(where, `(author_id = ? OR second_author_id = ?)`)
		args = append(args, q.AuthorID, q.AuthorID)
	}
	query := `SELECT ` + resourceColumns + ` FROM resources`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY publication_date DESC, id DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var resources []Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, r)
	}
	return resources, rows.Err()
}

// ListTags returns a sorted, deduplicated slice of all tags from published resources.
func (s *Store) ListTags(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tags FROM resources WHERE draft = 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var tags string
		if err := rows.Scan(&tags); err != nil {
			return nil, err
		}
		for _, t := range ParseTags(tags) {
			set[t] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	result := make([]string, 0, len(set))
	for t := range set {
		result = append(result, t)
	}
	sort.Strings(result)
	return result, nil
}

// SaveLiveData stores the banner URL stamped with updated.
func (s *Store) SaveLiveData(ctx context.Context, url string, updated time.Time) (LiveData, error) {
	l := LiveData{URL: strings.TrimSpace(url), Updated: updated.UTC()}
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO live_data (id, url, updated) VALUES (1, ?, ?)`,
		l.URL, l.Updated.Format(time.RFC3339Nano))
	return l, err
}

// LatestLiveData returns the banner record, or ErrNotFound if none was saved.
func (s *Store) LatestLiveData(ctx context.Context) (LiveData, error) {
	var l LiveData
	var updated string
	err := s.db.QueryRowContext(ctx, `SELECT url, updated FROM live_data ORDER BY updated DESC LIMIT 1`).Scan(&l.URL, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return LiveData{}, ErrNotFound
	}
	if err != nil {
		return LiveData{}, err
	}
	l.Updated, err = time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return LiveData{}, fmt.Errorf("live data: parse updated %q: %w", updated, err)
	}
	return l, nil
}

// DeleteAll removes every author and resource. The live banner is kept.
func (s *Store) DeleteAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM resources`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM authors`); err != nil {
		return err
	}
	return tx.Commit()
}

// JoinTagString encodes tags as ",a,b," after normalizing them. Storing the
// outer commas lets queries match whole tags with instr.
func JoinTagString(tags []string) string {
	normalized := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = normalizeTag(t); t != "" {
			normalized = append(normalized, t)
		}
	}
	return "," + strings.Join(normalized, ",") + ","
}

func normalizeTag(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
