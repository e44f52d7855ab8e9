package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/evermore-app/evermore/internal/cache"
	"github.com/evermore-app/evermore/internal/config"
	"github.com/evermore-app/evermore/internal/model"
	"github.com/evermore-app/evermore/internal/store"
	"github.com/evermore-app/evermore/internal/util"
)

type stubMemorials struct {
	list   []model.Memorial
	bySlug map[string]*model.Memorial
}

func (s *stubMemorials) Init()                                            {}
func (s *stubMemorials) ReloadMemorials()                                 {}
func (s *stubMemorials) SetReloadNotifier(notifier func(model.MemorialID)) {}

func (s *stubMemorials) GetMemorials() ([]model.Memorial, map[string]*model.Memorial, error) {
	return s.list, s.bySlug, nil
}

func (s *stubMemorials) GetMemorialList() []model.Memorial {
	return s.list
}

func (s *stubMemorials) ReadMemorial(slug string) (*model.Memorial, error) {
	if m, ok := s.bySlug[slug]; ok {
		return m, nil
	}
	return nil, store.ErrNotFound
}

func (s *stubMemorials) PublishDraft(ctx context.Context, draft *model.Draft) (*model.Memorial, error) {
	return nil, errors.New("not supported")
}

type stubGuestbook struct {
	entries []model.GuestbookEntry
}

func (s *stubGuestbook) AddEntry(ctx context.Context, entry *model.GuestbookEntry) error {
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *stubGuestbook) ListEntries(ctx context.Context, memorialID model.MemorialID, includePending bool) ([]model.GuestbookEntry, error) {
	out := make([]model.GuestbookEntry, 0)
	for _, e := range s.entries {
		if e.MemorialID != memorialID {
			continue
		}
		if !includePending && e.Status != model.GuestbookApproved {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *stubGuestbook) SetEntryStatus(ctx context.Context, id model.GuestbookEntryID, status model.GuestbookEntryStatus) error {
	for i := range s.entries {
		if s.entries[i].ID == id {
			s.entries[i].Status = status
			return nil
		}
	}
	return store.ErrNotFound
}

// stubAuth authenticates every request as a fixed user, or nobody when
// the user is empty.
type stubAuth struct {
	user model.UserID
}

func (a *stubAuth) WithHeaderAuthorization() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler { return next }
}

func (a *stubAuth) GetUserIDFromSession(r *http.Request) (model.UserID, error) {
	if a.user == "" {
		return "", errors.New("not signed in")
	}
	return a.user, nil
}

func (a *stubAuth) EnforceUserAndGetID(w http.ResponseWriter, r *http.Request) (model.UserID, error) {
	return a.GetUserIDFromSession(r)
}

func (a *stubAuth) HandleWebhookUser(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func newTestMemorial(slug string, level model.PrivacyLevel) *model.Memorial {
	enabled := true
	return &model.Memorial{
		ID:    model.MemorialID("mem-" + slug),
		Owner: model.UserID("owner-1"),
		Slug:  slug,
		Content: model.Content{
			Identity: model.Identity{FirstName: "Rosa", LastName: "Lindqvist"},
			Obituary: "She is missed.",
			Guestbook: model.Guestbook{
				Enabled:    &enabled,
				Moderation: model.ModerationPost,
			},
			Privacy: model.Privacy{Level: level, AllowIndexing: level == model.PrivacyPublic},
		},
		ContentHash: "hash-" + slug,
	}
}

func setupTestServer(t *testing.T, mems ...*model.Memorial) (*stubMemorials, *stubGuestbook) {
	t.Helper()

	config.AppConfig = &config.Config{}
	config.ApplyDefaults(config.AppConfig)

	stub := &stubMemorials{bySlug: map[string]*model.Memorial{}}
	for _, m := range mems {
		stub.list = append(stub.list, *m)
		stub.bySlug[m.Slug] = m
	}
	gb := &stubGuestbook{}

	memorials = stub
	guestbook = gb
	ownerAuthProvider = &stubAuth{}
	staffAuthProvider = nil

	return stub, gb
}

func TestServeIndexListsOnlyPublicIndexedMemorials(t *testing.T) {
	listed := newTestMemorial("rosa-lindqvist", model.PrivacyPublic)
	unlisted := newTestMemorial("quiet-one", model.PrivacyUnlisted)
	private := newTestMemorial("family-only", model.PrivacyPrivate)
	setupTestServer(t, listed, unlisted, private)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()

	serveIndex(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200 OK, got %d", res.StatusCode)
	}

	body, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(body), "rosa-lindqvist") {
		t.Errorf("Expected body to link the public memorial, got %s", body)
	}
	if strings.Contains(string(body), "quiet-one") || strings.Contains(string(body), "family-only") {
		t.Errorf("Unlisted and private memorials must not be listed, got %s", body)
	}
}

func TestServeMemorialNotFound(t *testing.T) {
	setupTestServer(t)

	req := httptest.NewRequest("GET", "/memorials/nobody", nil)
	req.SetPathValue("slug", "nobody")
	rec := httptest.NewRecorder()

	serveMemorial(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 Not Found, got %d", rec.Code)
	}
}

func TestServeMemorialPrivateHiddenFromStrangers(t *testing.T) {
	m := newTestMemorial("family-only", model.PrivacyPrivate)
	setupTestServer(t, m)

	req := httptest.NewRequest("GET", "/memorials/family-only", nil)
	req.SetPathValue("slug", "family-only")
	rec := httptest.NewRecorder()

	serveMemorial(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a stranger on a private memorial, got %d", rec.Code)
	}
}

func TestServeMemorialPrivateVisibleToOwner(t *testing.T) {
	m := newTestMemorial("family-only", model.PrivacyPrivate)
	setupTestServer(t, m)
	ownerAuthProvider = &stubAuth{user: m.Owner}

	req := httptest.NewRequest("GET", "/memorials/family-only", nil)
	req.SetPathValue("slug", "family-only")
	rec := httptest.NewRecorder()

	serveMemorial(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for the owner, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Rosa") {
		t.Errorf("Expected memorial page body, got %s", rec.Body.String())
	}
}

func TestServeMemorialPasswordFlow(t *testing.T) {
	m := newTestMemorial("with-password", model.PrivacyPassword)
	m.Content.Privacy.Password = "remember"
	setupTestServer(t, m)

	// Without the unlock cookie the page asks for a password.
	req := httptest.NewRequest("GET", "/memorials/with-password", nil)
	req.SetPathValue("slug", "with-password")
	rec := httptest.NewRecorder()
	serveMemorial(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("Expected unlock page, got %d %s", rec.Code, rec.Body.String())
	}

	// A wrong password re-renders the unlock page.
	form := url.Values{"password": {"wrong"}}
	req = httptest.NewRequest("POST", "/memorials/with-password/unlock", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetPathValue("slug", "with-password")
	rec = httptest.NewRecorder()
	serveMemorialUnlock(rec, req)
	if !strings.Contains(rec.Body.String(), "not right") {
		t.Errorf("Expected wrong-password notice, got %s", rec.Body.String())
	}

	// The right password sets the unlock cookie and redirects.
	form = url.Values{"password": {"remember"}}
	req = httptest.NewRequest("POST", "/memorials/with-password/unlock", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetPathValue("slug", "with-password")
	rec = httptest.NewRecorder()
	serveMemorialUnlock(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("Expected redirect after unlock, got %d", rec.Code)
	}

	var unlock *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == unlockCookie("with-password") {
			unlock = c
		}
	}
	if unlock == nil {
		t.Fatal("Expected unlock cookie to be set")
	}

	// With the cookie, the memorial serves.
	req = httptest.NewRequest("GET", "/memorials/with-password", nil)
	req.SetPathValue("slug", "with-password")
	req.AddCookie(unlock)
	rec = httptest.NewRecorder()
	serveMemorial(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Rosa") {
		t.Errorf("Expected memorial page with unlock cookie, got %d", rec.Code)
	}
}

func TestGuestbookSignApprovedImmediatelyWithoutPreModeration(t *testing.T) {
	m := newTestMemorial("rosa-lindqvist", model.PrivacyPublic)
	_, gb := setupTestServer(t, m)

	form := url.Values{"author-name": {"Old Friend"}, "message": {"We sang together."}}
	req := httptest.NewRequest("POST", "/memorials/rosa-lindqvist/guestbook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetPathValue("slug", "rosa-lindqvist")
	rec := httptest.NewRecorder()

	serveGuestbookSign(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(gb.entries) != 1 || gb.entries[0].Status != model.GuestbookApproved {
		t.Fatalf("Expected one approved entry, got %+v", gb.entries)
	}
	if !strings.Contains(rec.Body.String(), "We sang together.") {
		t.Errorf("Expected the new entry in the rendered section, got %s", rec.Body.String())
	}
}

func TestGuestbookSignHeldForPreModeration(t *testing.T) {
	m := newTestMemorial("rosa-lindqvist", model.PrivacyPublic)
	m.Content.Guestbook.Moderation = model.ModerationPre
	_, gb := setupTestServer(t, m)

	form := url.Values{"author-name": {"Old Friend"}, "message": {"We sang together."}}
	req := httptest.NewRequest("POST", "/memorials/rosa-lindqvist/guestbook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetPathValue("slug", "rosa-lindqvist")
	rec := httptest.NewRecorder()

	serveGuestbookSign(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if len(gb.entries) != 1 || gb.entries[0].Status == model.GuestbookApproved {
		t.Fatalf("Expected one pending entry, got %+v", gb.entries)
	}
	if strings.Contains(rec.Body.String(), "We sang together.") {
		t.Errorf("Pending entries must not render publicly, got %s", rec.Body.String())
	}
}

func TestGuestbookSignRejectsDisabledGuestbook(t *testing.T) {
	m := newTestMemorial("rosa-lindqvist", model.PrivacyPublic)
	disabled := false
	m.Content.Guestbook.Enabled = &disabled
	setupTestServer(t, m)

	form := url.Values{"author-name": {"Old Friend"}, "message": {"Hello"}}
	req := httptest.NewRequest("POST", "/memorials/rosa-lindqvist/guestbook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetPathValue("slug", "rosa-lindqvist")
	rec := httptest.NewRecorder()

	serveGuestbookSign(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a disabled guestbook, got %d", rec.Code)
	}
}

func TestGuestbookModerationRequiresStaffAuth(t *testing.T) {
	setupTestServer(t)

	req := httptest.NewRequest("POST", "/api/guestbook/e1/status", strings.NewReader("status=approved"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetPathValue("id", "e1")
	rec := httptest.NewRecorder()

	serveGuestbookModeration(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without staff auth, got %d", rec.Code)
	}
}

func TestSecureHeaders(t *testing.T) {
	handler := secureHeaders(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Header().Get("X-Frame-Options") != "deny" {
		t.Errorf("Expected X-Frame-Options deny, got %q", rec.Header().Get("X-Frame-Options"))
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("Expected nosniff, got %q", rec.Header().Get("X-Content-Type-Options"))
	}
}

func TestCacheItSetsETagForStaticContent(t *testing.T) {
	cache.SetStaticHash("/static/css/style.css", util.ContentHash([]byte("style")))

	handler := cacheIt(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/static/css/style.css", nil))
	if rec.Header().Get(config.HETag) == "" {
		t.Error("Expected ETag for a static asset")
	}
	if !strings.Contains(rec.Header().Get(config.HCacheControl), "max-age") {
		t.Errorf("Expected cacheable response, got %q", rec.Header().Get(config.HCacheControl))
	}

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/wizard", nil))
	if rec.Header().Get(config.HCacheControl) != "no-cache" {
		t.Errorf("Expected no-cache for dynamic paths, got %q", rec.Header().Get(config.HCacheControl))
	}
}

func TestServeThemeToggle(t *testing.T) {
	setupTestServer(t)

	req := httptest.NewRequest("POST", "/theme/toggle", nil)
	rec := httptest.NewRecorder()

	serveThemeToggle(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Error("Expected a theme cookie to be set")
	}
	if rec.Header().Get(config.HHxTrigger) == "" {
		t.Error("Expected Hx-Trigger header announcing the theme change")
	}
}

func TestServeDashboardRedirectsAnonymous(t *testing.T) {
	setupTestServer(t)

	req := httptest.NewRequest("GET", "/dashboard", nil)
	rec := httptest.NewRecorder()

	serveDashboard(rec, req)

	if rec.Code != http.StatusFound {
		t.Errorf("Expected login redirect, got %d", rec.Code)
	}
}
