package mockapp

import (
	_ "embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/acronymia/ui-test-harness/framework"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/launchdarkly/eventsource"
)

const (
	// DefaultTitle is the page title of the real lobby.
	DefaultTitle = "Acronymia"

	// SessionCookie names the cookie that ties a browser to its lobby.
	SessionCookie = "acronymia_session"

	// ServerName is sent in the Server header of every response.
	ServerName = "acronymia-fixture"

	maxRequestBody = 4096
)

//go:embed lobby.html
var lobbyPageSource string

var lobbyPage = template.Must(template.New("lobby").Parse(lobbyPageSource))

// Config holds the behavior options of the fixture.
type Config struct {
	// Title is the page title; empty means DefaultTitle.
	Title string

	// JoinDelay is how long after a join request the player is added to the roster.
	JoinDelay time.Duration

	// DisableStream makes the page never open its event stream, and the stream endpoint refuse
	// connections, so joined players never appear. This is how the real lobby behaves when its
	// live connection fails.
	DisableStream bool

	Logger framework.Logger
}

// App is an HTTP handler implementing a minimal Acronymia lobby: a page where a player picks a
// nickname and joins, and a roster that the server pushes to the page over server-sent events.
//
// Each browser session, identified by a cookie, gets its own lobby, so that tests running in
// separate browser contexts do not see each other's players.
type App struct {
	config  Config
	router  *mux.Router
	streams *eventsource.Server
	logger  framework.Logger

	lobbies map[string]*lobby
	timers  map[*time.Timer]struct{}
	closed  bool
	lock    sync.Mutex

	// streamsClosed guards streams: once the eventsource server is closed, Register and Publish
	// would block forever.
	streamsClosed bool
	streamsLock   sync.RWMutex
}

var errShuttingDown = errors.New("lobby is shutting down")

// New creates the fixture. Call Close to end open streams and pending joins.
func New(config Config) *App {
	if config.Title == "" {
		config.Title = DefaultTitle
	}
	if config.Logger == nil {
		config.Logger = framework.NullLogger()
	}
	a := &App{
		config:  config,
		streams: newStreamServer(config.Logger),
		logger:  config.Logger,
		lobbies: make(map[string]*lobby),
		timers:  make(map[*time.Timer]struct{}),
	}

	r := mux.NewRouter()
	r.Use(a.commonHeaders, a.refuseWhenClosed)
	r.HandleFunc("/", a.serveLobbyPage).Methods("GET")
	r.HandleFunc("/healthz", a.serveHealth).Methods("GET", "HEAD")
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/join", a.serveJoin).Methods("POST")
	api.HandleFunc("/events", a.serveEvents).Methods("GET")
	api.HandleFunc("/players", a.servePlayers).Methods("GET")
	api.HandleFunc("/players/{id}", a.serveKick).Methods("DELETE")
	api.HandleFunc("/reset", a.serveReset).Methods("POST")
	a.router = r

	return a
}

func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Close stops pending joins and ends all event streams.
func (a *App) Close() {
	a.lock.Lock()
	if a.closed {
		a.lock.Unlock()
		return
	}
	a.closed = true
	for t := range a.timers {
		t.Stop()
	}
	a.timers = nil
	a.lock.Unlock()

	a.streamsLock.Lock()
	a.streamsClosed = true
	a.streams.Close()
	a.streamsLock.Unlock()
}

func (a *App) isClosed() bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.closed
}

func (a *App) refuseWhenClosed(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.isClosed() {
			writeError(w, http.StatusServiceUnavailable, errShuttingDown)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *App) commonHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", ServerName)
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (a *App) serveLobbyPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.sessionLobby(r); !ok {
		id := uuid.NewString()
		a.lobbyFor(id)
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
		a.logger.Printf("Started session %s", id)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := lobbyPage.Execute(w, struct {
		Title         string
		StreamEnabled bool
	}{a.config.Title, !a.config.DisableStream})
	if err != nil {
		a.logger.Printf("Error rendering lobby page: %s", err)
	}
}

func (a *App) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (a *App) serveJoin(w http.ResponseWriter, r *http.Request) {
	l, ok := a.sessionLobby(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, errNoSession)
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("request body must be a JSON object with a name"))
		return
	}
	if err := l.reserve(body.Name); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errNicknameTaken) {
			status = http.StatusConflict
		}
		a.logger.Printf("Rejected join of %q in session %s: %s", body.Name, l.id, err)
		writeError(w, status, err)
		return
	}

	if a.config.JoinDelay <= 0 {
		a.completeJoin(l, body.Name)
	} else if !a.schedule(a.config.JoinDelay, func() { a.completeJoin(l, body.Name) }) {
		writeError(w, http.StatusServiceUnavailable, errShuttingDown)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"name": body.Name})
}

func (a *App) completeJoin(l *lobby, name string) {
	p, err := l.join(name)
	if err != nil {
		a.logger.Printf("Join of %q in session %s failed: %s", name, l.id, err)
		return
	}
	a.logger.Printf("Player %q joined session %s as %s", name, l.id, p.ID)
}

func (a *App) serveEvents(w http.ResponseWriter, r *http.Request) {
	if a.config.DisableStream {
		writeError(w, http.StatusServiceUnavailable, errors.New("player stream is disabled"))
		return
	}
	l, ok := a.sessionLobby(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, errNoSession)
		return
	}
	a.streams.Handler(streamChannel(l.id))(w, r)
	a.logger.Printf("End of stream request for session %s", l.id)
}

func (a *App) servePlayers(w http.ResponseWriter, r *http.Request) {
	l, ok := a.sessionLobby(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, errNoSession)
		return
	}
	writeJSON(w, http.StatusOK, l.roster())
}

func (a *App) serveKick(w http.ResponseWriter, r *http.Request) {
	l, ok := a.sessionLobby(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, errNoSession)
		return
	}
	if !l.kick(mux.Vars(r)["id"]) {
		writeError(w, http.StatusNotFound, errors.New("no such player"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) serveReset(w http.ResponseWriter, r *http.Request) {
	l, ok := a.sessionLobby(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, errNoSession)
		return
	}
	l.reset()
	w.WriteHeader(http.StatusNoContent)
}

var errNoSession = errors.New("no session; load the lobby page first")

// sessionLobby finds the lobby of the request's session cookie. A well-formed session ID that is
// not known yet, such as one issued before a restart, gets a new empty lobby.
func (a *App) sessionLobby(r *http.Request) (*lobby, bool) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, false
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return nil, false
	}
	return a.lobbyFor(cookie.Value), true
}

func (a *App) lobbyFor(id string) *lobby {
	a.lock.Lock()
	defer a.lock.Unlock()
	if l, ok := a.lobbies[id]; ok {
		return l
	}
	l := newLobby(id, a.publishRoster)
	a.lobbies[id] = l
	a.streamsLock.RLock()
	if !a.streamsClosed {
		a.streams.Register(streamChannel(id), rosterReplay{l})
	}
	a.streamsLock.RUnlock()
	return l
}

func (a *App) publishRoster(lobbyID string, players []Player) {
	e := rosterEvent{players: players}
	a.streamsLock.RLock()
	defer a.streamsLock.RUnlock()
	if a.streamsClosed {
		a.logger.Printf("Not sending %s event to session %s after shutdown", e.Event(), lobbyID)
		return
	}
	a.logger.Printf("Sending %s event to session %s: %s", e.Event(), lobbyID, e.Data())
	a.streams.Publish([]string{streamChannel(lobbyID)}, e)
}

// schedule runs fn after a delay unless the app is closed first. It returns false if the app is
// already closed.
func (a *App) schedule(delay time.Duration, fn func()) bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.closed {
		return false
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		a.lock.Lock()
		_, pending := a.timers[t]
		delete(a.timers, t)
		a.lock.Unlock()
		if pending {
			fn()
		}
	})
	a.timers[t] = struct{}{}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
