// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure. Most handler tests
// run against in-memory fakes; the integration helpers at the bottom are
// skipped when PostgreSQL or Valkey are unavailable.
package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"piskovna/internal/blog"
	"piskovna/internal/blog/blogtest"
	"piskovna/internal/database"
	"piskovna/internal/imagestore"
	"piskovna/internal/middleware"
	"piskovna/internal/models"
	"piskovna/internal/render"
	"piskovna/internal/session"
)

// fakeSessions records session calls instead of talking to Valkey.
type fakeSessions struct {
	mu        sync.Mutex
	created   []*session.Data
	prefs     []models.PostFilter
	destroyed int
	err       error
}

func (f *fakeSessions) Create(_ context.Context, w http.ResponseWriter, data *session.Data) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.created = append(f.created, data)
	http.SetCookie(w, &http.Cookie{Name: session.CookieName, Value: "test-session", Path: "/"})
	return "test-session", nil
}

func (f *fakeSessions) SaveListPrefs(_ context.Context, _ *http.Request, data *session.Data, p models.PostFilter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.PerPage = 0
	data.ListPrefs = p
	f.prefs = append(f.prefs, p)
	return f.err
}

func (f *fakeSessions) Destroy(_ context.Context, _ http.ResponseWriter, _ *http.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed++
	return f.err
}

// fakeUsers holds accounts in memory with bcrypt hashes.
type fakeUsers struct {
	users map[string]*models.User
	err   error
}

func newFakeUsers(t *testing.T, username, password string) *fakeUsers {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return &fakeUsers{users: map[string]*models.User{
		username: {ID: 1, Username: username, PasswordHash: string(hash), DisplayName: "Test User"},
	}}
}

func (f *fakeUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users[username], nil
}

func (f *fakeUsers) CheckPassword(user *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

// fakeResolver serves objects from a map keyed by storage key.
type fakeResolver struct {
	objects map[string]*imagestore.Object
	err     error
}

func (f *fakeResolver) Resolve(_ context.Context, key string) (*imagestore.Object, error) {
	if f.err != nil {
		return nil, f.err
	}
	obj, ok := f.objects[key]
	if !ok {
		return nil, imagestore.ErrNotFound
	}
	return obj, nil
}

// fakePageCache is an in-memory PageCache.
type fakePageCache struct {
	mu    sync.Mutex
	pages map[string][]byte
}

func newFakePageCache() *fakePageCache {
	return &fakePageCache{pages: map[string][]byte{}}
}

func (c *fakePageCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.pages[key]
	return b, ok
}

func (c *fakePageCache) Set(_ context.Context, key string, html []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[key] = html
}

// InvalidatePost matches blog.ChangeFunc.
func (c *fakePageCache) InvalidatePost(_ context.Context, p *models.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pages, p.Slug)
	delete(c.pages, strconv.FormatInt(p.ID, 10))
}

// testEnv holds all dependencies for handler tests.
type testEnv struct {
	Posts    *blogtest.Posts
	Images   *blogtest.Images
	Service  *blog.Service
	Renderer *render.Renderer
	Sessions *fakeSessions
	Users    *fakeUsers
	Cache    *fakePageCache
	Resolver *fakeResolver

	API     *API
	Admin   *Admin
	Auth    *Auth
	Preview *Preview
	Uploads *Uploads
}

// newTestEnv wires every handler group to in-memory fakes.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	renderer, err := render.New(true)
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}

	posts := blogtest.NewPosts()
	images := blogtest.NewImages()
	svc := blog.NewService(posts, images)
	pageCache := newFakePageCache()
	svc.OnChange(pageCache.InvalidatePost)

	sessions := &fakeSessions{}
	users := newFakeUsers(t, "admin", "s3cret-pass")
	resolver := &fakeResolver{objects: map[string]*imagestore.Object{}}

	return &testEnv{
		Posts:    posts,
		Images:   images,
		Service:  svc,
		Renderer: renderer,
		Sessions: sessions,
		Users:    users,
		Cache:    pageCache,
		Resolver: resolver,

		API:     NewAPI(svc),
		Admin:   NewAdmin(renderer, sessions, svc, 5),
		Auth:    NewAuth(renderer, sessions, users),
		Preview: NewPreview(renderer, svc, pageCache),
		Uploads: NewUploads(resolver),
	}
}

// testSession creates a session.Data for testing.
func testSession() *session.Data {
	return &session.Data{
		UserID:      1,
		Username:    "admin",
		DisplayName: "Test User",
	}
}

// ctxWithSession adds session data to a context using the middleware key.
func ctxWithSession(ctx context.Context, data *session.Data) context.Context {
	return context.WithValue(ctx, middleware.SessionKey, data)
}

// withChiURLParam adds a chi URL parameter to a request.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// withChiURLParamAndSession adds both chi URL param and session to a request.
func withChiURLParamAndSession(r *http.Request, key, value string, sess *session.Data) *http.Request {
	r = withChiURLParam(r, key, value)
	return r.WithContext(ctxWithSession(r.Context(), sess))
}

func itoa64(n int64) string { return strconv.FormatInt(n, 10) }

var fixedDay = time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)

// seedPost stores a post directly in the fake repository.
func seedPost(env *testEnv, p models.Post) models.Post {
	if p.Date.IsZero() {
		p.Date = models.NewDate(fixedDay)
	}
	env.Posts.Put(p)
	stored, _ := env.Posts.Find(context.Background(), p.Slug)
	return *stored
}

// --- integration helpers ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test PostgreSQL and runs migrations.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "piskovna")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "piskovna")
	dsn := "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("skipping: cannot open DB: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping: DB not reachable: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// testValkeyClient returns a Redis client for handler tests on DB 15.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr:     envOr("VALKEY_HOST", "localhost") + ":" + envOr("VALKEY_PORT", "6379"),
		Password: os.Getenv("VALKEY_PASSWORD"),
		DB:       15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping: Valkey not reachable: %v", err)
	}

	t.Cleanup(func() {
		// Clean up test session and cache keys.
		for _, pattern := range []string{"session:*", "preview:*"} {
			keys, _ := client.Keys(ctx, pattern).Result()
			if len(keys) > 0 {
				client.Del(ctx, keys...)
			}
		}
		client.Close()
	})

	return client
}
