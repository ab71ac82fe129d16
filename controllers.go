package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// App carries the process-wide services the handlers work with.
type App struct {
	store        *Store
	sessions     *SessionManager
	mailer       Mailer
	log          zerolog.Logger
	uploadFolder string
}

func NewApp(store *Store, sessions *SessionManager, mailer Mailer, logger zerolog.Logger, uploadFolder string) *App {
	return &App{
		store:        store,
		sessions:     sessions,
		mailer:       mailer,
		log:          logger,
		uploadFolder: uploadFolder,
	}
}

// -----------------------------
// Helper functions
// -----------------------------

// eventIDParam parses :id. Anything that is not a positive integer is a 404.
func eventIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// loadEvent fetches the :id event, answering 404 or 500 itself on failure.
func (a *App) loadEvent(c *gin.Context) (*Event, bool) {
	id, ok := eventIDParam(c)
	if !ok {
		a.notFoundPage(c)
		return nil, false
	}
	ev, err := a.store.EventByID(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		a.notFoundPage(c)
		return nil, false
	}
	if err != nil {
		serverError(c, err)
		return nil, false
	}
	return ev, true
}

// mustUser is for handlers behind LoginRequired.
func mustUser(c *gin.Context) *User {
	u, _ := currentUser(c)
	return u
}

func eventPath(id uint) string {
	return fmt.Sprintf("/event/%d", id)
}

// -----------------------------
// Events (public)
// -----------------------------

func (a *App) Home(c *gin.Context) {
	events, err := a.store.ListEvents(c.Request.Context())
	if err != nil {
		serverError(c, err)
		return
	}
	a.render(c, http.StatusOK, "home.html", gin.H{"events": events})
}

func (a *App) EventDetail(c *gin.Context) {
	ev, ok := a.loadEvent(c)
	if !ok {
		return
	}

	registered := false
	if u, ok := currentUser(c); ok {
		var err error
		registered, err = a.store.IsRegistered(c.Request.Context(), u.ID, ev.ID)
		if err != nil {
			serverError(c, err)
			return
		}
	}

	attendees, err := a.store.CountRegistrations(c.Request.Context(), ev.ID)
	if err != nil {
		serverError(c, err)
		return
	}

	a.render(c, http.StatusOK, "event_detail.html", gin.H{
		"event":        ev,
		"isRegistered": registered,
		"attendees":    attendees,
	})
}

// -----------------------------
// Accounts
// -----------------------------

func (a *App) RegisterUser(c *gin.Context) {
	var form RegisterForm
	if c.Request.Method != http.MethodPost {
		a.render(c, http.StatusOK, "register.html", gin.H{"form": form})
		return
	}

	errs := bindForm(c, &form)
	if !errs.OK() {
		a.render(c, http.StatusOK, "register.html", gin.H{"form": form, "errors": errs})
		return
	}

	hash, err := HashPassword(form.Password)
	if err != nil {
		serverError(c, err)
		return
	}

	user := User{Email: form.Email, Name: form.Name, Password: hash}
	if err := a.store.CreateUser(c.Request.Context(), &user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			errs.Add("email", "An account with this email already exists.")
			a.render(c, http.StatusOK, "register.html", gin.H{"form": form, "errors": errs})
			return
		}
		serverError(c, err)
		return
	}

	if err := a.mailer.Send(c.Request.Context(), user.Email, "Welcome to Eventboard",
		fmt.Sprintf("Hi %s, your account has been created.", user.Name)); err != nil {
		a.log.Warn().Err(err).Uint("user_id", user.ID).Msg("welcome mail failed")
	}

	a.sessions.AddFlash(c, "Account created! Please log in.")
	c.Redirect(http.StatusFound, "/login")
}

func (a *App) Login(c *gin.Context) {
	var form LoginForm
	if c.Request.Method != http.MethodPost {
		a.render(c, http.StatusOK, "login.html", gin.H{"form": form})
		return
	}

	errs := bindForm(c, &form)
	if errs.OK() {
		user, err := a.store.UserByEmail(c.Request.Context(), form.Email)
		if err != nil && !errors.Is(err, ErrNotFound) {
			serverError(c, err)
			return
		}
		if VerifyLogin(user, form.Password) {
			if err := a.sessions.Login(c, user); err != nil {
				serverError(c, err)
				return
			}
			c.Redirect(http.StatusFound, "/")
			return
		}
		a.sessions.AddFlash(c, "Wrong email or password.")
	}

	form.Password = ""
	a.render(c, http.StatusOK, "login.html", gin.H{"form": form, "errors": errs})
}

func (a *App) Logout(c *gin.Context) {
	a.sessions.Logout(c)
	c.Redirect(http.StatusFound, "/")
}

// -----------------------------
// Events (owner)
// -----------------------------

func (a *App) CreateEvent(c *gin.Context) {
	var form EventForm
	if c.Request.Method != http.MethodPost {
		a.render(c, http.StatusOK, "create_event.html", gin.H{"form": form})
		return
	}

	errs := bindEventForm(c, &form)
	if !errs.OK() {
		a.render(c, http.StatusOK, "create_event.html", gin.H{"form": form, "errors": errs})
		return
	}

	ev := Event{
		Name:        form.Name,
		Description: form.Description,
		Date:        form.ParsedDate(),
		Location:    form.Location,
		UserID:      mustUser(c).ID,
	}

	if form.Image != nil {
		name, err := saveUpload(c, form.Image, a.uploadFolder)
		if err != nil {
			serverError(c, err)
			return
		}
		if name != "" {
			ev.Image = &name
		}
	}

	if err := a.store.CreateEvent(c.Request.Context(), &ev); err != nil {
		serverError(c, err)
		return
	}

	a.sessions.AddFlash(c, "Event created!")
	c.Redirect(http.StatusFound, "/my-events")
}

func (a *App) MyEvents(c *gin.Context) {
	events, err := a.store.ListEventsByOwner(c.Request.Context(), mustUser(c).ID)
	if err != nil {
		serverError(c, err)
		return
	}
	a.render(c, http.StatusOK, "my_events.html", gin.H{"events": events})
}

func (a *App) EditEvent(c *gin.Context) {
	ev, ok := a.loadEvent(c)
	if !ok {
		return
	}
	if ev.UserID != mustUser(c).ID {
		a.sessions.AddFlash(c, "You are not allowed to edit this event.")
		c.Redirect(http.StatusFound, "/")
		return
	}

	if c.Request.Method != http.MethodPost {
		a.render(c, http.StatusOK, "edit_event.html", gin.H{"form": eventFormFrom(ev), "event": ev})
		return
	}

	var form EventForm
	errs := bindEventForm(c, &form)
	if !errs.OK() {
		a.render(c, http.StatusOK, "edit_event.html", gin.H{"form": form, "event": ev, "errors": errs})
		return
	}

	ev.Name = form.Name
	ev.Description = form.Description
	ev.Date = form.ParsedDate()
	ev.Location = form.Location
	if err := a.store.UpdateEvent(c.Request.Context(), ev); err != nil {
		serverError(c, err)
		return
	}

	a.sessions.AddFlash(c, "Event updated!")
	c.Redirect(http.StatusFound, "/my-events")
}

func (a *App) DeleteEvent(c *gin.Context) {
	ev, ok := a.loadEvent(c)
	if !ok {
		return
	}
	if ev.UserID != mustUser(c).ID {
		a.sessions.AddFlash(c, "You are not allowed to delete this event.")
		c.Redirect(http.StatusFound, "/")
		return
	}

	if err := a.store.DeleteEvent(c.Request.Context(), ev.ID); err != nil {
		serverError(c, err)
		return
	}

	a.sessions.AddFlash(c, "Event deleted.")
	c.Redirect(http.StatusFound, "/my-events")
}

// -----------------------------
// Attendance
// -----------------------------

func (a *App) RegisterForEvent(c *gin.Context) {
	ev, ok := a.loadEvent(c)
	if !ok {
		return
	}

	created, err := a.store.Register(c.Request.Context(), mustUser(c).ID, ev.ID)
	if err != nil {
		serverError(c, err)
		return
	}
	if created {
		a.sessions.AddFlash(c, "You are now registered!")
	}
	c.Redirect(http.StatusFound, eventPath(ev.ID))
}

func (a *App) Unregister(c *gin.Context) {
	id, ok := eventIDParam(c)
	if !ok {
		a.notFoundPage(c)
		return
	}

	removed, err := a.store.Unregister(c.Request.Context(), mustUser(c).ID, id)
	if err != nil {
		serverError(c, err)
		return
	}
	if removed {
		a.sessions.AddFlash(c, "You are now unregistered.")
	}
	c.Redirect(http.StatusFound, eventPath(id))
}
