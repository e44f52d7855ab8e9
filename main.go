package main

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/evermore-app/evermore/internal/auth"
	"github.com/evermore-app/evermore/internal/cache"
	"github.com/evermore-app/evermore/internal/config"
	"github.com/evermore-app/evermore/internal/db"
	"github.com/evermore-app/evermore/internal/logger"
	"github.com/evermore-app/evermore/internal/media"
	"github.com/evermore-app/evermore/internal/model"
	"github.com/evermore-app/evermore/internal/preview"
	"github.com/evermore-app/evermore/internal/render"
	"github.com/evermore-app/evermore/internal/routes"
	"github.com/evermore-app/evermore/internal/session"
	"github.com/evermore-app/evermore/internal/sse"
	"github.com/evermore-app/evermore/internal/store"
	"github.com/evermore-app/evermore/internal/theme"
	"github.com/evermore-app/evermore/internal/util"
	"github.com/evermore-app/evermore/internal/wizard"
)

//go:embed static/* templates/*
var content embed.FS

// Writes beyond this budget per draft come back rate limited; the
// autosave scheduler treats those as soft failures.
const draftSavesPerMinute = 30

var l zerolog.Logger

var database db.DB

var clients = sse.NewSSEClients()

var drafts store.DraftStore
var memorials store.MemorialRepository
var guestbook store.GuestbookStore

var sessions *session.Manager
var wizardHandler *wizard.Handler

var ownerAuthProvider auth.AuthProvider
var staffAuthProvider *auth.Ed25519AuthProvider

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file loaded")
	}

	configPath := os.Getenv("EVERMORE_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	if err := config.LoadConfig(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	l = logger.New(config.AppConfig.Logging.Level)
	setLoggers(l)

	database = newDatabase()
	if err := database.InitDB(); err != nil {
		l.Fatal().Err(err).Msg("Error initializing database")
	}

	drafts = store.NewRateLimitedDraftStore(store.NewDBDraftStore(database), draftSavesPerMinute)
	memorials = store.NewDBMemorialRepository(database)
	guestbook = store.NewDBGuestbookStore(database)

	go memorials.Init()
	memorials.SetReloadNotifier(handleReloadMemorial)

	// The staff provider also serves as the owner provider on self-hosted
	// setups without Clerk; they must share one instance so the login
	// challenge matches the middleware.
	var err error
	staffAuthProvider, err = auth.NewEd25519AuthProvider(
		os.Getenv("ED25519_PUBKEY"),
		"Authorization",
		model.UserID("admin"),
	)
	if err != nil {
		l.Warn().Err(err).Msg("Staff auth disabled")
	}
	ownerAuthProvider = newOwnerAuth()

	debounce := time.Duration(config.AppConfig.Wizard.AutosaveDebounceMs) * time.Millisecond
	sessionTTL := time.Duration(config.AppConfig.Wizard.SessionTTLMinutes) * time.Minute
	sessions = session.NewManager(sessionTTL, func(owner model.UserID) (*wizard.Controller, error) {
		return wizard.NewController(wizard.NewRegistry(), drafts, memorials, owner, debounce)
	})
	go sessions.Sweep()

	mediaStore, mediaDir := newMediaStore()
	wizardHandler = wizard.NewHandler(sessions, clients, mediaStore, ownerAuthProvider, content)

	// Calculate the hash of static content for ETags.
	static, _ := fs.Sub(content, config.StaticLocalDir)
	fs.WalkDir(static, ".", func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			cache.SetStaticHash(config.StaticURLPath+path, util.ContentHash([]byte(path)))
		}
		return nil
	})

	mux := http.NewServeMux()

	mux.HandleFunc(routes.RobotsPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCType, "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("User-agent: *\nDisallow: /wizard\nDisallow: /dashboard"))
	})

	mux.HandleFunc(routes.ThemeOppositeIcon, func(w http.ResponseWriter, r *http.Request) {
		currTheme := r.URL.Query().Get("theme")
		if currTheme == "" {
			http.Error(w, "theme required", http.StatusBadRequest)
			return
		}

		w.Header().Set(config.HCType, config.CTypeHTML)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(theme.GetThemeIcon(currTheme)))
	})

	mux.Handle(config.StaticURLPath, http.StripPrefix(config.StaticURLPath, http.FileServer(http.FS(static))))
	if mediaDir != "" {
		mux.Handle("/media/", http.StripPrefix("/media/", http.FileServer(http.Dir(mediaDir))))
	}

	mux.HandleFunc(routes.RootPath, serveIndex)
	mux.HandleFunc(routes.DashboardPath, serveDashboard)
	mux.HandleFunc("GET "+routes.MemorialPath, serveMemorial)
	mux.HandleFunc("POST "+routes.MemorialUnlockPath, serveMemorialUnlock)
	mux.HandleFunc("POST "+routes.GuestbookPath, serveGuestbookSign)
	mux.HandleFunc("POST "+routes.GuestbookModeration, serveGuestbookModeration)

	mux.HandleFunc(routes.NewMemorial, serveNewMemorial)
	mux.HandleFunc("GET "+routes.WizardPage, wizardHandler.ServeWizard)
	mux.HandleFunc("POST "+routes.WizardResume, wizardHandler.HandleResume)
	mux.HandleFunc("POST "+routes.WizardStartNew, wizardHandler.HandleStartNew)
	mux.HandleFunc("POST "+routes.WizardStep, wizardHandler.HandleGoTo)
	mux.HandleFunc("POST "+routes.WizardUpdate, wizardHandler.HandleUpdate)
	mux.HandleFunc("POST "+routes.WizardSave, wizardHandler.HandleManualSave)
	mux.HandleFunc("POST "+routes.WizardExit, wizardHandler.HandleExit)
	mux.HandleFunc("POST "+routes.WizardExitSave, wizardHandler.HandleExitSave)
	mux.HandleFunc("POST "+routes.WizardExitDiscard, wizardHandler.HandleExitDiscard)
	mux.HandleFunc("POST "+routes.WizardPublish, wizardHandler.HandlePublish)
	mux.HandleFunc("POST "+routes.WizardView, wizardHandler.HandleView)
	mux.HandleFunc("GET "+routes.PartialsPreview, wizardHandler.ServePreview)
	mux.HandleFunc(routes.APIMedia, wizardHandler.HandleMediaUpload)

	mux.HandleFunc("POST "+routes.ThemeToggle, serveThemeToggle)
	mux.HandleFunc(routes.SSEPath, eventsHandler)
	mux.HandleFunc(routes.WebhookUser, ownerAuthProvider.HandleWebhookUser)

	if staffAuthProvider != nil {
		auth.RegisterEd25519AuthRoutes(mux, staffAuthProvider, &content)
	}

	securedMux := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == routes.RobotsPath { // Ignore robots.txt
			mux.ServeHTTP(w, r)
		} else {
			secureHeaders(mux.ServeHTTP)(w, r)
		}
	})

	handler := ownerAuthProvider.WithHeaderAuthorization()(securedMux)

	addr := config.AppConfig.Server.Host + ":" + config.AppConfig.Server.Port
	l.Info().Str("addr", addr).Msg("Evermore listening")
	l.Fatal().Err(http.ListenAndServe(addr, cacheIt(handler.ServeHTTP))).Msg("Server stopped")
}

func setLoggers(l zerolog.Logger) {
	config.SetLogger(l)
	db.SetLogger(l)
	store.SetLogger(l)
	auth.SetLogger(l)
	render.SetLogger(l)
	media.SetLogger(l)
	wizard.SetLogger(l)
	session.SetLogger(l)
}

func newDatabase() db.DB {
	cfg := config.AppConfig.Database
	if cfg.Driver == "postgres" {
		dbURL := os.Getenv("POSTGRES_URL")
		if dbURL == "" {
			dbURL = cfg.URL
		}
		return db.NewPostgres(dbURL)
	}
	return db.NewSQLite(cfg.Path)
}

func newOwnerAuth() auth.AuthProvider {
	if config.AppConfig.Features.Authentication.Type == "clerk" {
		return auth.NewClerkAuthProvider(os.Getenv("CLERK_API"), database)
	}
	if staffAuthProvider == nil {
		l.Fatal().Msg("Ed25519 auth selected but no valid ED25519_PUBKEY")
	}
	return staffAuthProvider
}

// newMediaStore returns the configured store plus the local directory
// to serve, empty when uploads live in S3.
func newMediaStore() (media.Store, string) {
	cfg := config.AppConfig.Media
	if cfg.Store == "s3" {
		s3Store, err := media.NewS3Store(
			os.Getenv("S3_ACCESS_KEY_ID"),
			os.Getenv("S3_SECRET_ACCESS_KEY"),
			cfg.S3.Region,
			cfg.S3.Endpoint,
			cfg.S3.Bucket,
			cfg.S3.PublicBaseURL,
		)
		if err != nil {
			l.Fatal().Err(err).Msg("Error initializing S3 media store")
		}
		return s3Store, ""
	}

	fsStore, err := media.NewFSStore(cfg.LocalDir, "/media/")
	if err != nil {
		l.Fatal().Err(err).Msg("Error initializing media directory")
	}
	return fsStore, cfg.LocalDir
}

func cacheIt(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCacheControl, "no-cache")
		w.Header().Set("Vary", "Cookie")

		// Add etag header to response if it's a static file
		if hash, ok := cache.GetStaticHash(r.URL.Path); ok {
			w.Header().Set(config.HCacheControl, "public, max-age=3600")
			w.Header().Set(config.HETag, hash)
		}

		h(w, r)
	}
}

func secureHeaders(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-XSS-Protection", "1; mode=block")

		h(w, r)
	}
}

func parsePage(page string) (*template.Template, error) {
	return template.ParseFS(content,
		config.TemplatesLocalDir+"/"+config.TemplateLayout,
		config.TemplatesLocalDir+"/"+page,
	)
}

func serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != routes.RootPath {
		http.NotFound(w, r)
		return
	}

	// Only public memorials that opted into listing show up here.
	listed := make([]model.Memorial, 0)
	for _, m := range memorials.GetMemorialList() {
		if m.Content.Privacy.Level == model.PrivacyPublic && m.Content.Privacy.AllowIndexing {
			listed = append(listed, m)
		}
	}

	tmpl, err := parsePage(config.TemplateIndex)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := struct {
		*model.PageData
		Memorials []model.Memorial
	}{
		PageData:  model.NewPageData(r),
		Memorials: listed,
	}

	w.Header().Set(config.HETag, util.ContentHashString(data.Theme))

	if err := tmpl.ExecuteTemplate(w, config.TemplateLayout, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func serveDashboard(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerAuthProvider.GetUserIDFromSession(r)
	if err != nil {
		http.Redirect(w, r, routes.AuthLogin+"?redirect="+url.QueryEscape(r.URL.String()), http.StatusFound)
		return
	}

	unfinished, err := drafts.ListUnfinishedDrafts(r.Context(), owner)
	if err != nil {
		l.Error().Err(err).Str("owner", string(owner)).Msg("Error listing drafts")
		http.Error(w, fmt.Sprintf(config.ErrListDraftsFmt, err), http.StatusInternalServerError)
		return
	}

	published := make([]model.Memorial, 0)
	for _, m := range memorials.GetMemorialList() {
		if m.Owner == owner {
			published = append(published, m)
		}
	}

	tmpl, err := parsePage(config.TemplateDashboard)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := struct {
		*model.PageData
		Drafts    []model.Draft
		Memorials []model.Memorial
		Error     bool
	}{
		PageData:  model.NewPageData(r),
		Drafts:    unfinished,
		Memorials: published,
		Error:     r.URL.Query().Get("error") != "",
	}

	if err := tmpl.ExecuteTemplate(w, config.TemplateLayout, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func serveNewMemorial(w http.ResponseWriter, r *http.Request) {
	// A fresh session makes the wizard run initialization again, which
	// offers to resume an unfinished draft before creating a new one.
	if cookie, err := r.Cookie(config.CookieSession); err == nil {
		sessions.Delete(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:   config.CookieSession,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	w.Header().Add(config.HHxRedirect, routes.WizardPage)
	http.Redirect(w, r, routes.WizardPage, http.StatusFound)
}

type guestbookSection struct {
	Slug      string
	Entries   []model.GuestbookEntry
	Moderated bool
	Thanks    bool
}

func serveMemorial(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	memorial, err := memorials.ReadMemorial(slug)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if !authorizeMemorial(w, r, memorial) {
		return
	}

	// The obituary markdown renders once per content hash; the cache
	// carries it across requests.
	withHTML := *memorial
	withHTML.ObituaryHTML = template.HTML(render.RenderObituaryCached([]byte(memorial.Content.Obituary), memorial.ContentHash))

	guestbookOpen := memorial.Content.Guestbook.Enabled != nil && *memorial.Content.Guestbook.Enabled
	section := guestbookSection{
		Slug:      slug,
		Moderated: memorial.Content.Guestbook.Moderation == model.ModerationPre,
	}
	if guestbookOpen {
		section.Entries, err = guestbook.ListEntries(r.Context(), memorial.ID, false)
		if err != nil {
			l.Error().Err(err).Str("slug", slug).Msg("Error listing guestbook entries")
		}
	}

	tmpl, err := parsePage(config.TemplateMemorial)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := struct {
		*model.PageData
		Page          *preview.Page
		NoIndex       bool
		GuestbookOpen bool
		Guestbook     guestbookSection
	}{
		PageData:      model.NewPageData(r),
		Page:          preview.FromMemorial(&withHTML),
		NoIndex:       memorial.Content.Privacy.Level != model.PrivacyPublic || !memorial.Content.Privacy.AllowIndexing,
		GuestbookOpen: guestbookOpen,
		Guestbook:     section,
	}

	w.Header().Set(config.HETag, util.ContentHashString(memorial.ContentHash+data.Theme))

	if err := tmpl.ExecuteTemplate(w, config.TemplateLayout, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// authorizeMemorial enforces the privacy descriptor: private pages are
// owner-only, password pages want the unlock cookie, and everything
// else serves.
func authorizeMemorial(w http.ResponseWriter, r *http.Request, memorial *model.Memorial) bool {
	switch memorial.Content.Privacy.Level {
	case model.PrivacyPrivate:
		owner, err := ownerAuthProvider.GetUserIDFromSession(r)
		if err != nil || owner != memorial.Owner {
			http.NotFound(w, r)
			return false
		}
		return true
	case model.PrivacyPassword:
		if cookie, err := r.Cookie(unlockCookie(memorial.Slug)); err == nil &&
			cookie.Value == util.ContentHashString(memorial.Content.Privacy.Password) {
			return true
		}
		serveUnlockPage(w, r, memorial.Slug, false)
		return false
	default:
		return true
	}
}

func unlockCookie(slug string) string {
	return "unlock-" + slug
}

func serveUnlockPage(w http.ResponseWriter, r *http.Request, slug string, wrong bool) {
	tmpl, err := parsePage(config.TemplateMemorialUnlock)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := struct {
		*model.PageData
		Slug  string
		Wrong bool
	}{
		PageData: model.NewPageData(r),
		Slug:     slug,
		Wrong:    wrong,
	}

	if err := tmpl.ExecuteTemplate(w, config.TemplateLayout, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func serveMemorialUnlock(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	memorial, err := memorials.ReadMemorial(slug)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if r.FormValue("password") != memorial.Content.Privacy.Password {
		serveUnlockPage(w, r, slug, true)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     unlockCookie(slug),
		Value:    util.ContentHashString(memorial.Content.Privacy.Password),
		Path:     "/memorials/" + slug,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/memorials/"+url.PathEscape(slug), http.StatusSeeOther)
}

func serveGuestbookSign(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	memorial, err := memorials.ReadMemorial(slug)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if memorial.Content.Guestbook.Enabled == nil || !*memorial.Content.Guestbook.Enabled {
		http.NotFound(w, r)
		return
	}
	if !authorizeMemorial(w, r, memorial) {
		return
	}

	entry := &model.GuestbookEntry{
		MemorialID: memorial.ID,
		AuthorName: r.FormValue("author-name"),
		Message:    r.FormValue("message"),
	}
	if entry.AuthorName == "" || entry.Message == "" {
		http.Error(w, "name and message required", http.StatusBadRequest)
		return
	}

	// Pre-moderated guestbooks hold entries until the family approves
	// them; every other mode shows them immediately.
	if memorial.Content.Guestbook.Moderation != model.ModerationPre {
		entry.Status = model.GuestbookApproved
	}

	if err := guestbook.AddEntry(r.Context(), entry); err != nil {
		l.Error().Err(err).Str("slug", slug).Msg("Error saving guestbook entry")
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
		return
	}

	section := guestbookSection{
		Slug:      slug,
		Moderated: memorial.Content.Guestbook.Moderation == model.ModerationPre,
		Thanks:    true,
	}
	section.Entries, _ = guestbook.ListEntries(r.Context(), memorial.ID, false)

	tmpl, err := parsePage(config.TemplateMemorial)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set(config.HCType, config.CTypeHTML)
	if err := tmpl.ExecuteTemplate(w, "guestbook-section", section); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func serveGuestbookModeration(w http.ResponseWriter, r *http.Request) {
	if staffAuthProvider == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if _, err := staffAuthProvider.EnforceUserAndGetID(w, r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	status := model.GuestbookEntryStatus(r.FormValue("status"))
	if status != model.GuestbookApproved && status != model.GuestbookRejected {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}

	id := model.GuestbookEntryID(r.PathValue("id"))
	if err := guestbook.SetEntryStatus(r.Context(), id, status); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func serveThemeToggle(w http.ResponseWriter, r *http.Request) {
	newTheme := theme.Opposite(theme.GetThemeFromRequest(r))
	theme.SetThemeCookie(w, newTheme)

	w.Header().Set(config.HHxTrigger, fmt.Sprintf(`{"themeChanged":{"value":"%s"}}`, newTheme))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(theme.GetThemeIcon(newTheme)))
}

// eventsHandler streams events for the caller's context: wizard
// sessions get "saved" indicator updates, memorial pages get "reload"
// pings when their content changes underneath them.
func eventsHandler(w http.ResponseWriter, r *http.Request) {
	topic, event := "", ""
	if memorialID := r.URL.Query().Get("memorial"); memorialID != "" {
		topic, event = "memorial:"+memorialID, "reload"
	} else if cookie, err := r.Cookie(config.CookieSession); err == nil && cookie.Value != "" {
		topic, event = "session:"+cookie.Value, "saved"
	} else {
		http.Error(w, "no event topic for this request", http.StatusBadRequest)
		return
	}

	w.Header().Set(config.HCType, "text/event-stream")
	w.Header().Set(config.HCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Del("X-Content-Type-Options")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	fmt.Fprintf(w, "event: connected\ndata: SSE connection established\n\n")
	flusher.Flush()

	client := &sse.Client{
		Msg:   make(chan string),
		Topic: topic,
	}

	clients.Add(client)

	l.Debug().Str("topic", topic).Msg("SSE client connected")

	defer func() {
		clients.Delete(client)
		l.Debug().Str("topic", topic).Msg("SSE client disconnected")
	}()

	notify := r.Context().Done()
	for {
		select {
		case msg := <-client.Msg:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, msg)
			flusher.Flush()
		case <-notify:
			return
		}
	}
}

func handleReloadMemorial(id model.MemorialID) {
	go clients.Broadcast("memorial:"+string(id), "reload")
}
