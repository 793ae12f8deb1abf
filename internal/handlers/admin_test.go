package handlers

import (
	"bytes"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"piskovna/internal/imagestore"
	"piskovna/internal/models"
)

// pngBytes encodes a blank PNG of the given size.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("png: %v", err)
	}
	return buf.Bytes()
}

type formFile struct {
	field, name string
	data        []byte
}

// multipartRequest builds a POST with the given fields and files.
func multipartRequest(t *testing.T, target string, fields map[string][]string, files ...formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, vs := range fields {
		for _, v := range vs {
			mw.WriteField(k, v)
		}
	}
	for _, f := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.name+`"`)
		h.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		part.Write(f.data)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func postFields(title string) map[string][]string {
	return map[string][]string{
		"title":           {title},
		"author":          {"Ana"},
		"date":            {"2024-05-17"},
		"category":        {"Education"},
		"status":          {"Published"},
		"tags":            {"go, cms"},
		"description":     {"<p>Hello</p>"},
		"show_newsletter": {"1"},
	}
}

func TestBlogListFilterSavesPrefs(t *testing.T) {
	env := newTestEnv(t)
	seedPost(env, models.Post{Title: "Ana writes", Slug: "ana", Author: "Ana"})
	seedPost(env, models.Post{Title: "Bo writes", Slug: "bo", Author: "Bo"})

	sess := testSession()
	req := httptest.NewRequest(http.MethodGet, "/admin/blog?author=Ana", nil)
	req = req.WithContext(ctxWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	env.Admin.BlogList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Ana writes") || strings.Contains(body, "Bo writes") {
		t.Error("author filter not applied")
	}
	if len(env.Sessions.prefs) != 1 || env.Sessions.prefs[0].Author != "Ana" {
		t.Errorf("prefs: got %+v", env.Sessions.prefs)
	}
}

func TestBlogListUsesSessionPrefs(t *testing.T) {
	env := newTestEnv(t)
	seedPost(env, models.Post{Title: "Ana writes", Slug: "ana", Author: "Ana"})
	seedPost(env, models.Post{Title: "Bo writes", Slug: "bo", Author: "Bo"})

	sess := testSession()
	sess.ListPrefs = models.PostFilter{Author: "Bo"}
	req := httptest.NewRequest(http.MethodGet, "/admin/blog", nil)
	req = req.WithContext(ctxWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	env.Admin.BlogList(rec, req)

	body := rec.Body.String()
	if strings.Contains(body, "Ana writes") || !strings.Contains(body, "Bo writes") {
		t.Error("remembered filter not applied")
	}
	if len(env.Sessions.prefs) != 0 {
		t.Error("prefs must not be rewritten without a query")
	}

	// Reset clears the remembered filter.
	req = httptest.NewRequest(http.MethodGet, "/admin/blog?reset=1", nil)
	req = req.WithContext(ctxWithSession(req.Context(), sess))
	rec = httptest.NewRecorder()
	env.Admin.BlogList(rec, req)

	if !strings.Contains(rec.Body.String(), "Ana writes") {
		t.Error("reset should show every post")
	}
	if len(env.Sessions.prefs) != 1 || env.Sessions.prefs[0].Author != "" {
		t.Errorf("prefs after reset: %+v", env.Sessions.prefs)
	}
}

func TestBlogListPagination(t *testing.T) {
	env := newTestEnv(t)
	for i := range 7 {
		seedPost(env, models.Post{Title: "Post " + string(rune('A'+i)), Slug: "post-" + string(rune('a'+i))})
	}

	rec := httptest.NewRecorder()
	env.Admin.BlogList(rec, httptest.NewRequest(http.MethodGet, "/admin/blog", nil))

	body := rec.Body.String()
	// Title and Edit both link to the editor.
	if got := strings.Count(body, "/edit\""); got != 2*models.DefaultPerPage {
		t.Errorf("rows: got %d, want %d", got, models.DefaultPerPage)
	}
	if !strings.Contains(body, "page=2") {
		t.Error("next page link missing")
	}
	// Newest first: the last seeded post is on page one, the first is not.
	if !strings.Contains(body, "Post G") || strings.Contains(body, "Post A") {
		t.Error("default order should be newest first")
	}
}

func TestListColumnsToggleDirection(t *testing.T) {
	cols := listColumns(models.PostFilter{Sort: "title", Page: 3}.Normalize())
	for _, c := range cols {
		switch c.Label {
		case "Title":
			if !c.Active || c.Desc || !strings.Contains(c.URL, "dir=desc") {
				t.Errorf("active column: %+v", c)
			}
		default:
			if c.Active || strings.Contains(c.URL, "dir=desc") {
				t.Errorf("inactive column %s: %+v", c.Label, c)
			}
		}
		if !strings.Contains(c.URL, "page=1") {
			t.Errorf("sorting should return to page 1: %s", c.URL)
		}
	}
}

func TestBlogNewDefaults(t *testing.T) {
	env := newTestEnv(t)
	env.Admin.now = func() time.Time { return fixedDay }

	rec := httptest.NewRecorder()
	env.Admin.BlogNew(rec, httptest.NewRequest(http.MethodGet, "/admin/blog/new", nil))

	body := rec.Body.String()
	for _, want := range []string{`data-state="new"`, `value="2024-05-17"`, `action="/admin/blog/new"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body should contain %s", want)
		}
	}
}

func TestBlogCreateWithImages(t *testing.T) {
	env := newTestEnv(t)

	req := multipartRequest(t, "/admin/blog/new", postFields("With images"),
		formFile{"featured_file", "hero.png", pngBytes(t, 160, 90)},
		formFile{"gallery_files", "g1.png", pngBytes(t, 90, 160)},
		formFile{"gallery_files", "g2.png", pngBytes(t, 90, 160)},
	)
	rec := httptest.NewRecorder()
	env.Admin.BlogCreate(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d; body %s", rec.Code, rec.Body.String())
	}
	p, _ := env.Posts.Find(t.Context(), "with-images")
	if p == nil {
		t.Fatal("post not created")
	}
	if env.Images.Saves != 3 {
		t.Errorf("saves: got %d, want 3", env.Images.Saves)
	}
	if p.FeaturedImage == nil || !strings.HasPrefix(*p.FeaturedImage, imagestore.Ref("mainimage/")) {
		t.Errorf("featured: got %v", p.FeaturedImage)
	}
	if len(p.GalleryImages) != 2 || !strings.HasPrefix(p.GalleryImages[0], imagestore.Ref("photogallery/")) {
		t.Errorf("gallery: got %v", p.GalleryImages)
	}
	if !p.ShowNewsletter || len(p.Tags) != 2 {
		t.Errorf("fields not carried: %+v", p)
	}
}

func TestBlogCreateRejectsWrongRatio(t *testing.T) {
	env := newTestEnv(t)

	req := multipartRequest(t, "/admin/blog/new", postFields("Square"),
		formFile{"featured_file", "square.png", pngBytes(t, 100, 100)},
	)
	rec := httptest.NewRecorder()
	env.Admin.BlogCreate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "wrong aspect ratio") {
		t.Error("ratio error not shown")
	}
	if env.Posts.Len() != 0 || env.Images.Saves != 0 {
		t.Error("nothing should be stored when an upload is rejected")
	}
}

func TestBlogCreateValidationKeepsInput(t *testing.T) {
	env := newTestEnv(t)

	fields := postFields("Keep me")
	fields["aos_duration"] = []string{"slow"}
	rec := httptest.NewRecorder()
	env.Admin.BlogCreate(rec, multipartRequest(t, "/admin/blog/new", fields))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "must be a number") || !strings.Contains(body, `value="Keep me"`) {
		t.Error("form should be rendered again with the error and the input")
	}
	if !strings.Contains(body, `data-state="dirty"`) {
		t.Error("failed form should stay dirty")
	}
}

func TestBlogEdit(t *testing.T) {
	env := newTestEnv(t)
	p := seedPost(env, models.Post{Title: "Editable", Slug: "editable"})

	rec := httptest.NewRecorder()
	env.Admin.BlogEdit(rec, withChiURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", itoa64(p.ID)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `value="Editable"`) || !strings.Contains(body, `data-state="loaded"`) {
		t.Error("editor not hydrated from the post")
	}

	rec = httptest.NewRecorder()
	env.Admin.BlogEdit(rec, withChiURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "999"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing post: got %d, want 404", rec.Code)
	}
}

func TestBlogUpdateRemovesFeatured(t *testing.T) {
	env := newTestEnv(t)
	ref := imagestore.Ref("mainimage/view-1/1.png")
	env.Images.Stored[ref] = true
	p := seedPost(env, models.Post{Title: "Has image", Slug: "has-image", FeaturedImage: &ref, ViewID: "view-1"})

	fields := postFields("Has image")
	fields["slug"] = []string{"has-image"}
	fields["featured_image"] = []string{ref}
	fields["remove_featured"] = []string{"1"}
	req := withChiURLParam(multipartRequest(t, "/admin/blog/"+itoa64(p.ID)+"/edit", fields), "id", itoa64(p.ID))
	rec := httptest.NewRecorder()
	env.Admin.BlogUpdate(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d; body %s", rec.Code, rec.Body.String())
	}
	got, _ := env.Posts.Find(t.Context(), itoa64(p.ID))
	if got.FeaturedImage != nil {
		t.Errorf("featured should be cleared, got %q", *got.FeaturedImage)
	}
	if len(env.Images.Deleted) != 1 || env.Images.Deleted[0] != ref {
		t.Errorf("orphan not deleted: %v", env.Images.Deleted)
	}
}

func TestBlogDelete(t *testing.T) {
	tests := []struct {
		name   string
		htmx   bool
		status int
	}{
		{"htmx", true, http.StatusOK},
		{"form", false, http.StatusSeeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			p := seedPost(env, models.Post{Title: "Gone", Slug: "gone", ViewID: "v"})

			req := withChiURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "id", itoa64(p.ID))
			if tt.htmx {
				req.Header.Set("HX-Request", "true")
			}
			rec := httptest.NewRecorder()
			env.Admin.BlogDelete(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status: got %d, want %d", rec.Code, tt.status)
			}
			if env.Posts.Len() != 0 {
				t.Error("post not deleted")
			}
		})
	}

	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.Admin.BlogDelete(rec, withChiURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "id", "42"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing post: got %d, want 404", rec.Code)
	}
}

func TestCookiesbots(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/cookiesbots", nil)
	req = req.WithContext(ctxWithSession(req.Context(), testSession()))
	rec := httptest.NewRecorder()
	env.Admin.Cookiesbots(rec, req)

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Cookiesbots") {
		t.Errorf("got %d", rec.Code)
	}
}
