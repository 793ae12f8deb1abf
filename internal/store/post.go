// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"

	"piskovna/internal/models"
)

// ErrDuplicate is returned when an insert or update violates the unique
// slug index.
var ErrDuplicate = errors.New("store: duplicate post")

// PostgreSQL error codes the post store reacts to.
const (
	pgUniqueViolation = "23505"
	pgUndefinedTable  = "42P01"
	pgUndefinedColumn = "42703"
)

// The blog table is not managed by goose. It is created on first write and
// extended with any column an older deployment lacks, so every statement
// here must be idempotent.
var postSchema = []string{
	`CREATE TABLE IF NOT EXISTS piskovnablog (
		id               BIGSERIAL PRIMARY KEY,
		title            TEXT NOT NULL DEFAULT '',
		slug             TEXT NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`ALTER TABLE piskovnablog ADD COLUMN IF NOT EXISTS description      TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE piskovnablog ADD COLUMN IF NOT EXISTS descriptionhtml1 TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE piskovnablog ADD COLUMN IF NOT EXISTS descriptionhtml2 TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE piskovnablog ADD COLUMN IF NOT EXISTS tags             TEXT NOT NULL DEFAULT '[]'`,
	`ALTER TABLE piskovnablog ADD COLUMN IF NOT EXISTS featured_image   TEXT`,
	`ALTER TABLE piskovnablog ADD COLUMN IF NOT EXISTS gallery_images   TEXT NOT NULL DEFAULT '[]'`,
	`ALTER TABLE piskovnablog ADD COLUMN IF NOT EXISTS date             DATE`,
	`ALTER TABLE piskovnablog ADD COLUMN IF NOT EXISTS author           TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE piskovnablog ADD COLUMN IF NOT EXISTS category         TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE piskovnablog ADD COLUMN IF NOT EXISTS status           TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE piskovnablog ADD COLUMN IF NOT EXISTS show_newsletter  BOOLEAN NOT NULL DEFAULT TRUE`,
	`ALTER TABLE piskovnablog ADD COLUMN IF NOT EXISTS meta_title       TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE piskovnablog ADD COLUMN IF NOT EXISTS meta_keywords    TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE piskovnablog ADD COLUMN IF NOT EXISTS aos_duration     TEXT`,
	`ALTER TABLE piskovnablog ADD COLUMN IF NOT EXISTS view_id          TEXT`,
	`CREATE UNIQUE INDEX IF NOT EXISTS piskovnablog_slug_key ON piskovnablog (slug)`,
}

const postColumns = `id, title, slug, description, descriptionhtml1, descriptionhtml2,
	tags, featured_image, gallery_images, date, author, category, status,
	show_newsletter, meta_title, meta_keywords, aos_duration, view_id, created_at`

// PostStore handles all blog post database operations.
type PostStore struct {
	db *sql.DB

	mu      sync.Mutex
	ensured bool
}

// NewPostStore creates a new PostStore with the given database connection.
func NewPostStore(db *sql.DB) *PostStore {
	return &PostStore{db: db}
}

// EnsureSchema creates or extends the blog table. After the first success
// in this process it is a no-op until a statement reports the table or a
// column missing again.
func (s *PostStore) EnsureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}
	for _, stmt := range postSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure post schema: %w", err)
		}
	}
	s.ensured = true
	return nil
}

func (s *PostStore) forgetSchema() {
	s.mu.Lock()
	s.ensured = false
	s.mu.Unlock()
}

// ParseID reports whether idOrSlug is a numeric post id.
func ParseID(idOrSlug string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(idOrSlug), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// All returns every post, newest first. A missing table means no posts.
func (s *PostStore) All(ctx context.Context) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+postColumns+` FROM piskovnablog ORDER BY id DESC`)
	if err != nil {
		if isPgCode(err, pgUndefinedTable) {
			return []models.Post{}, nil
		}
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()
	return scanPosts(rows)
}

// List returns one page of posts matching f together with the total match
// count. A missing table means no posts.
func (s *PostStore) List(ctx context.Context, f models.PostFilter) (*models.PostPage, error) {
	f = f.Normalize()
	where, args := filterClause(f)

	var total int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM piskovnablog`+where, args...).Scan(&total)
	if err != nil {
		if isPgCode(err, pgUndefinedTable) {
			return &models.PostPage{Items: []models.Post{}}, nil
		}
		return nil, fmt.Errorf("count posts: %w", err)
	}

	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	query := fmt.Sprintf(`SELECT %s FROM piskovnablog%s ORDER BY %s %s, id DESC LIMIT $%d OFFSET $%d`,
		postColumns, where, f.Sort, dir, len(args)+1, len(args)+2)
	args = append(args, f.PerPage, f.Offset())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	items, err := scanPosts(rows)
	if err != nil {
		return nil, err
	}
	return &models.PostPage{Items: items, Total: total}, nil
}

// filterClause builds the WHERE clause for f. Column names come from a
// fixed set, values are always bound.
func filterClause(f models.PostFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if v := strings.TrimSpace(f.Title); v != "" {
		add("title ILIKE $%d", "%"+escapeLike(v)+"%")
	}
	if v := strings.TrimSpace(f.Author); v != "" {
		add("author ILIKE $%d", "%"+escapeLike(v)+"%")
	}
	if v := strings.TrimSpace(f.Category); v != "" {
		add("category = $%d", v)
	}
	if v := strings.TrimSpace(f.Status); v != "" {
		add("status = $%d", v)
	}
	if f.Date != "" {
		if d, err := models.ParseDate(f.Date); err == nil {
			add("date = $%d", d.Time)
		}
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Find retrieves a post by numeric id or by slug. Returns nil if not found,
// including when the table does not exist yet.
func (s *PostStore) Find(ctx context.Context, idOrSlug string) (*models.Post, error) {
	var row *sql.Row
	if id, ok := ParseID(idOrSlug); ok {
		row = s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM piskovnablog WHERE id = $1`, id)
	} else {
		row = s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM piskovnablog WHERE slug = $1`, idOrSlug)
	}

	p, err := scanPost(row)
	if err == sql.ErrNoRows || isPgCode(err, pgUndefinedTable) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find post %q: %w", idOrSlug, err)
	}
	return p, nil
}

// Insert ensures the schema and stores p, filling in its ID and CreatedAt.
func (s *PostStore) Insert(ctx context.Context, p *models.Post) error {
	err := s.insert(ctx, p)
	if isPgCode(err, pgUndefinedTable) || isPgCode(err, pgUndefinedColumn) {
		// The table was dropped or altered behind our back.
		s.forgetSchema()
		err = s.insert(ctx, p)
	}
	return err
}

func (s *PostStore) insert(ctx context.Context, p *models.Post) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	tags, gallery := encodeStringList(p.Tags), encodeStringList(p.GalleryImages)
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO piskovnablog (title, slug, description, descriptionhtml1, descriptionhtml2,
			tags, featured_image, gallery_images, date, author, category, status,
			show_newsletter, meta_title, meta_keywords, aos_duration, view_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at
	`, p.Title, p.Slug, p.Description, p.DescriptionHTML1, p.DescriptionHTML2,
		tags, p.FeaturedImage, gallery, nullDate(p.Date), p.Author, p.Category, p.Status,
		p.ShowNewsletter, p.MetaTitle, p.MetaKeywords, p.AOSDuration, nullString(p.ViewID),
	).Scan(&p.ID, &p.CreatedAt)
	if isPgCode(err, pgUniqueViolation) {
		return fmt.Errorf("insert post %q: %w", p.Slug, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// Update overwrites every mutable column of the post with p.ID.
func (s *PostStore) Update(ctx context.Context, p *models.Post) error {
	tags, gallery := encodeStringList(p.Tags), encodeStringList(p.GalleryImages)
	_, err := s.db.ExecContext(ctx, `
		UPDATE piskovnablog SET
			title = $1, slug = $2, description = $3, descriptionhtml1 = $4, descriptionhtml2 = $5,
			tags = $6, featured_image = $7, gallery_images = $8, date = $9, author = $10,
			category = $11, status = $12, show_newsletter = $13, meta_title = $14,
			meta_keywords = $15, aos_duration = $16, view_id = $17
		WHERE id = $18
	`, p.Title, p.Slug, p.Description, p.DescriptionHTML1, p.DescriptionHTML2,
		tags, p.FeaturedImage, gallery, nullDate(p.Date), p.Author,
		p.Category, p.Status, p.ShowNewsletter, p.MetaTitle,
		p.MetaKeywords, p.AOSDuration, nullString(p.ViewID), p.ID,
	)
	if isPgCode(err, pgUniqueViolation) {
		return fmt.Errorf("update post %d: %w", p.ID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("update post %d: %w", p.ID, err)
	}
	return nil
}

// Delete removes the post with the given id. It reports whether a row
// was deleted.
func (s *PostStore) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM piskovnablog WHERE id = $1`, id)
	if err != nil {
		if isPgCode(err, pgUndefinedTable) {
			return false, nil
		}
		return false, fmt.Errorf("delete post %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete post %d: %w", id, err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (*models.Post, error) {
	var (
		p                   models.Post
		tags, gallery       sql.NullString
		featured, aos, view sql.NullString
		date                sql.NullTime
		newsletter          sql.NullBool
	)
	err := row.Scan(
		&p.ID, &p.Title, &p.Slug, &p.Description, &p.DescriptionHTML1, &p.DescriptionHTML2,
		&tags, &featured, &gallery, &date, &p.Author, &p.Category, &p.Status,
		&newsletter, &p.MetaTitle, &p.MetaKeywords, &aos, &view, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Tags = decodeStringList(tags.String)
	p.GalleryImages = decodeStringList(gallery.String)
	if featured.Valid && featured.String != "" {
		p.FeaturedImage = &featured.String
	}
	if aos.Valid && aos.String != "" {
		p.AOSDuration = &aos.String
	}
	if date.Valid {
		p.Date = models.NewDate(date.Time)
	}
	p.ShowNewsletter = !newsletter.Valid || newsletter.Bool
	p.ViewID = view.String
	return &p, nil
}

func scanPosts(rows *sql.Rows) ([]models.Post, error) {
	posts := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

// decodeStringList reads a JSON-encoded string array. Anything that is not
// an array yields an empty list and non-string elements are skipped.
func decodeStringList(raw string) []string {
	out := []string{}
	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return out
	}
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func encodeStringList(items []string) string {
	if items == nil {
		items = []string{}
	}
	b, _ := json.Marshal(items)
	return string(b)
}

func nullDate(d models.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.Time
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
