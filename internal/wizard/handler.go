package wizard

import (
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/evermore-app/evermore/internal/auth"
	"github.com/evermore-app/evermore/internal/config"
	"github.com/evermore-app/evermore/internal/media"
	"github.com/evermore-app/evermore/internal/model"
	"github.com/evermore-app/evermore/internal/preview"
	"github.com/evermore-app/evermore/internal/routes"
	"github.com/evermore-app/evermore/internal/sse"
)

const savedAtLayout = "3:04:05 PM"

// SessionManager maps browser session ids to live controllers. The
// session package implements it; declared here so the handler does not
// import its own consumer.
type SessionManager interface {
	GetOrCreate(sessionID string, owner model.UserID) (*Controller, error)
	Get(sessionID string) (*Controller, bool)
	Delete(sessionID string)
}

// Handler translates htmx form posts into controller operations and
// renders the wizard page and its partials.
type Handler struct {
	sessions SessionManager
	clients  *sse.SSEClients
	media    media.Store
	auth     auth.AuthProvider

	fs fs.FS
}

func NewHandler(sessions SessionManager, clients *sse.SSEClients, mediaStore media.Store, authProvider auth.AuthProvider, fsys fs.FS) *Handler {
	return &Handler{
		sessions: sessions,
		clients:  clients,
		media:    mediaStore,
		auth:     authProvider,
		fs:       fsys,
	}
}

type stepView struct {
	Index    int
	Title    string
	Required bool
	Status   StepStatus
}

type wizardView struct {
	*model.PageData

	Draft     model.Draft
	Steps     []stepView
	Current   int
	StepCount int
	StepID    StepID
	Title     string
	Payload   StepPayload

	Preview *preview.Page

	SavedAt    string
	Warning    string
	MobileView View

	ResumeOffer *model.Draft
	ExitChoice  bool
}

// ServeWizard serves the wizard page. First visit in a session runs
// initialization; an open resume offer renders the choice screen until
// the owner settles it.
func (h *Handler) ServeWizard(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	sid := h.sessionID(w, r)

	c, err := h.sessions.GetOrCreate(sid, owner)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	c.SetSavedNotifier(func(at time.Time) {
		h.clients.Broadcast("session:"+sid, at.Format(savedAtLayout))
	})

	if c.State() == SessionIdle {
		existing := model.DraftID(r.URL.Query().Get("draft"))
		if _, err := c.Initialize(r.Context(), existing); err != nil {
			// Load and creation failures are fatal to the session; the
			// owner lands back on the dashboard with a message.
			wizardLogger.Error().Err(err).Str("owner", string(owner)).Msg("Wizard initialization failed")
			h.sessions.Delete(sid)
			h.redirect(w, r, routes.DashboardPath+"?error=wizard")
			return
		}
	}

	h.renderPage(w, r, c)
}

// HandleResume settles the initialization choice in favor of the
// offered draft.
func (h *Handler) HandleResume(w http.ResponseWriter, r *http.Request) {
	c, sid, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := c.Resume(r.Context()); err != nil {
		if errors.Is(err, ErrNoChoicePending) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		wizardLogger.Error().Err(err).Msg("Resume failed")
		h.sessions.Delete(sid)
		h.redirect(w, r, routes.DashboardPath+"?error=wizard")
		return
	}
	h.renderPage(w, r, c)
}

// HandleStartNew settles the initialization choice by creating a fresh
// draft.
func (h *Handler) HandleStartNew(w http.ResponseWriter, r *http.Request) {
	c, sid, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := c.StartNew(r.Context()); err != nil {
		if errors.Is(err, ErrNoChoicePending) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		wizardLogger.Error().Err(err).Msg("Creating draft failed")
		h.sessions.Delete(sid)
		h.redirect(w, r, routes.DashboardPath+"?error=wizard")
		return
	}
	h.renderPage(w, r, c)
}

// HandleGoTo navigates to the step in the path. A refused forward
// navigation re-renders the current step with the warning; a failed
// transition save warns but keeps the new step, matching the
// controller's in-memory-first contract.
func (h *Handler) HandleGoTo(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.controller(w, r)
	if !ok {
		return
	}

	target, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		http.Error(w, "invalid step index", http.StatusBadRequest)
		return
	}

	warning := ""
	if err := c.GoTo(r.Context(), target); err != nil {
		var invalid *StepInvalidError
		var saveFailed *SaveFailedError
		switch {
		case errors.As(err, &invalid):
			warning = "Please finish this step before moving on: " + invalid.Title + "."
		case errors.As(err, &saveFailed):
			warning = "Your progress could not be saved just now. Your work is kept here; try saving again."
		default:
			http.Error(w, config.ErrSessionExpired, http.StatusConflict)
			return
		}
	}

	h.renderPartial(w, r, c, "wizard-panel", warning)
}

// HandleUpdate merges one step's posted fields into the draft and
// returns the refreshed preview pane.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	stepID := StepID(r.Form.Get("step-id"))
	patch, err := ParseStepForm(stepID, r.Form)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := c.UpdateDraft(patch); err != nil {
		http.Error(w, config.ErrSessionExpired, http.StatusConflict)
		return
	}

	h.renderPartial(w, r, c, "wizard-preview", "")
}

// HandleManualSave persists unconditionally and reports the outcome in
// the saved indicator. Failures here are recoverable and say so.
func (h *Handler) HandleManualSave(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.controller(w, r)
	if !ok {
		return
	}
	warning := ""
	if err := c.ManualSave(r.Context()); err != nil {
		wizardLogger.Warn().Err(err).Msg("Manual save failed")
		warning = "Saving failed. Your work is still here; try again in a moment."
	}
	h.renderPartial(w, r, c, "wizard-saved", warning)
}

// HandleExit leaves the wizard. With unsaved changes the owner gets the
// save-or-discard choice; without any, the session tears down and the
// dashboard loads with no network write at all.
func (h *Handler) HandleExit(w http.ResponseWriter, r *http.Request) {
	c, sid, ok := h.controller(w, r)
	if !ok {
		return
	}
	if !c.Exit() {
		h.sessions.Delete(sid)
		h.redirect(w, r, routes.DashboardPath)
		return
	}
	h.renderPartial(w, r, c, "wizard-exit", "")
}

func (h *Handler) HandleExitSave(w http.ResponseWriter, r *http.Request) {
	c, sid, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := c.ExitSave(r.Context()); err != nil {
		wizardLogger.Warn().Err(err).Msg("Exit save failed")
		h.renderPartial(w, r, c, "wizard-exit", "Saving failed. Nothing was discarded; try again or leave without saving.")
		return
	}
	h.sessions.Delete(sid)
	h.redirect(w, r, routes.DashboardPath)
}

func (h *Handler) HandleExitDiscard(w http.ResponseWriter, r *http.Request) {
	_, sid, ok := h.controller(w, r)
	if !ok {
		return
	}
	h.sessions.Delete(sid)
	h.redirect(w, r, routes.DashboardPath)
}

// HandlePublish requests publication. An incomplete draft renders the
// aggregate warning; success redirects to the freshly published page.
func (h *Handler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	c, sid, ok := h.controller(w, r)
	if !ok {
		return
	}

	memorial, err := c.RequestPublish(r.Context())
	if err != nil {
		var blocked *PublishBlockedError
		if errors.As(err, &blocked) {
			h.renderPartial(w, r, c, "wizard-panel", blocked.Error())
			return
		}
		wizardLogger.Error().Err(err).Msg("Publish failed")
		h.renderPartial(w, r, c, "wizard-panel", "Publishing failed. Your memorial is unchanged; please try again.")
		return
	}

	h.sessions.Delete(sid)
	h.redirect(w, r, "/memorials/"+url.PathEscape(memorial.Slug))
}

// HandleView flips the editor/preview pane on small screens.
func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.controller(w, r)
	if !ok {
		return
	}
	c.SetMobileView(View(r.FormValue("view")))
	h.renderPartial(w, r, c, "wizard-panel", "")
}

// ServePreview renders the live preview pane for the current draft.
func (h *Handler) ServePreview(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.controller(w, r)
	if !ok {
		return
	}
	h.renderPartial(w, r, c, "wizard-preview", "")
}

// HandleMediaUpload stores an uploaded image and returns its URL for
// the identity and gallery steps.
func (h *Handler) HandleMediaUpload(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireOwner(w, r); !ok {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(media.MaxUploadBytes); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, media.MaxUploadBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	mediaURL, err := h.media.Save(r.Context(), header.Header.Get(config.HCType), data)
	if err != nil {
		if errors.Is(err, media.ErrUnsupportedType) {
			http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
			return
		}
		wizardLogger.Error().Err(err).Msg("Media upload failed")
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
		return
	}

	w.Header().Set(config.HCType, config.CTypeJSON)
	json.NewEncoder(w).Encode(map[string]string{"url": mediaURL})
}

// controller resolves the live controller for the request's session.
// A missing session means it expired or was never started; the wizard
// page restarts it.
func (h *Handler) controller(w http.ResponseWriter, r *http.Request) (*Controller, string, bool) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return nil, "", false
	}

	cookie, err := r.Cookie(config.CookieSession)
	if err != nil || cookie.Value == "" {
		h.redirect(w, r, routes.WizardPage)
		return nil, "", false
	}

	c, ok := h.sessions.Get(cookie.Value)
	if !ok || c.Owner() != owner {
		h.redirect(w, r, routes.WizardPage)
		return nil, "", false
	}
	return c, cookie.Value, true
}

func (h *Handler) requireOwner(w http.ResponseWriter, r *http.Request) (model.UserID, bool) {
	owner, err := h.auth.GetUserIDFromSession(r)
	if err != nil {
		login := routes.AuthLogin + "?redirect=" + url.QueryEscape(r.URL.String())
		if r.Header.Get(config.HHxRequest) == "" {
			http.Redirect(w, r, login, http.StatusFound)
		} else {
			w.Header().Add(config.HHxRedirect, login)
		}
		return "", false
	}
	return owner, true
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(config.CookieSession); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	sid := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     config.CookieSession,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sid
}

// redirect is htmx-aware: plain requests get a 302, htmx requests get
// an Hx-Redirect header.
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, target string) {
	if r.Header.Get(config.HHxRequest) == "" {
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	w.Header().Add(config.HHxRedirect, target)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) view(r *http.Request, c *Controller, warning string) *wizardView {
	draft := c.Draft()
	registry := c.Registry()

	view := &wizardView{
		PageData: model.NewPageData(r),

		Draft:     draft,
		Current:   draft.Progress.CurrentStep,
		StepCount: registry.Len(),

		Preview: preview.FromDraft(&draft.Content),

		Warning:    warning,
		MobileView: c.MobileView(),
	}

	isWizard := true
	view.IsWizardPage = &isWizard

	for i, def := range registry.Steps() {
		view.Steps = append(view.Steps, stepView{
			Index:    i,
			Title:    def.Title,
			Required: def.Required,
			Status:   StatusOf(draft.Progress, i),
		})
	}

	if step, ok := registry.Step(view.Current); ok {
		view.StepID = step.ID
		view.Title = step.Title
		view.Payload = step.Project(&draft.Content)
	}

	if savedAt, ok := c.LastSavedAt(); ok {
		view.SavedAt = savedAt.Format(savedAtLayout)
	}

	if offer := c.ResumeCandidate(); offer != nil {
		view.ResumeOffer = offer
	}

	return view
}

var templateFuncs = template.FuncMap{
	"add1": func(i int) int { return i + 1 },
	"sub1": func(i int) int { return i - 1 },
}

func (h *Handler) parseTemplates() (*template.Template, error) {
	return template.New(config.TemplateLayout).Funcs(templateFuncs).ParseFS(h.fs,
		config.TemplatesLocalDir+"/"+config.TemplateLayout,
		config.TemplatesLocalDir+"/"+config.TemplateWizard,
	)
}

func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, c *Controller) {
	tmpl, err := h.parseTemplates()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set(config.HCType, config.CTypeHTML)
	if err := tmpl.ExecuteTemplate(w, config.TemplateLayout, h.view(r, c, "")); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) renderPartial(w http.ResponseWriter, r *http.Request, c *Controller, name, warning string) {
	tmpl, err := h.parseTemplates()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set(config.HCType, config.CTypeHTML)
	if err := tmpl.ExecuteTemplate(w, name, h.view(r, c, warning)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
