// Package mock provides an in-memory REST API for exercising suites: named
// resource collections with create, read, update and delete endpoints,
// optionally guarded by bearer tokens issued from a login endpoint.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/logging"
	"github.com/google/uuid"
)

const DefaultIDField = "id"

// Server is an in-memory REST API.
type Server struct {
	router  *Router
	port    int
	delay   time.Duration
	idField string
	logger  *logging.Logger

	mu        sync.Mutex
	users     map[string]string
	tokens    map[string]string
	resources map[string]*collection
}

type collection struct {
	order []string
	docs  map[string]map[string]any
}

// Option is a functional option for Server
type Option func(*Server)

func WithPort(port int) Option {
	return func(s *Server) {
		s.port = port
	}
}

// WithDelay adds a delay to all responses
func WithDelay(delay time.Duration) Option {
	return func(s *Server) {
		s.delay = delay
	}
}

// WithIDField names the field holding generated ids, e.g. "pid" or "_id".
func WithIDField(name string) Option {
	return func(s *Server) {
		s.idField = name
	}
}

// WithUser registers credentials for POST /auth/login. Once any user is
// registered, resource endpoints require a bearer token.
func WithUser(username, password string) Option {
	return func(s *Server) {
		s.users[username] = password
	}
}

// WithResource registers a collection served under /<name>.
func WithResource(name string) Option {
	return func(s *Server) {
		s.resources[strings.Trim(name, "/")] = &collection{docs: make(map[string]map[string]any)}
	}
}

func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		router:    NewRouter(),
		port:      3000,
		idField:   DefaultIDField,
		users:     make(map[string]string),
		tokens:    make(map[string]string),
		resources: make(map[string]*collection),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDiscard(s.logger).WithComponent("mock")

	s.router.Handle(http.MethodPost, "/auth/login", s.login)
	names := make([]string, 0, len(s.resources))
	for name := range s.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		base := "/" + name
		s.router.Handle(http.MethodGet, base, s.guard(s.list(name)))
		s.router.Handle(http.MethodPost, base, s.guard(s.create(name)))
		s.router.Handle(http.MethodGet, base+"/{id}", s.guard(s.get(name)))
		s.router.Handle(http.MethodPut, base+"/{id}", s.guard(s.update(name, false)))
		s.router.Handle(http.MethodPatch, base+"/{id}", s.guard(s.update(name, true)))
		s.router.Handle(http.MethodDelete, base+"/{id}", s.guard(s.remove(name)))
	}
	return s
}

// Handler returns the server as an http.Handler, for httptest.NewServer.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleRequest)
}

// Count returns the number of documents in a collection.
func (s *Server) Count(resource string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.resources[resource]; ok {
		return len(c.docs)
	}
	return 0
}

// Routes returns the registered routes in registration order.
func (s *Server) Routes() []*Route {
	return s.router.routes
}

// StartWithContext serves until ctx is cancelled.
func (s *Server) StartWithContext(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("mock server listening", "url", fmt.Sprintf("http://localhost:%d", s.port), "routes", len(s.router.routes))
	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	route, params := s.router.Match(r.Method, r.URL.Path)
	if route == nil {
		if s.router.Allowed(r.URL.Path) {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		} else {
			writeError(w, http.StatusNotFound, "not found")
		}
		s.logger.Debug("no route", "method", r.Method, "path", r.URL.Path)
		return
	}

	route.Handler(w, r, params)
	s.logger.Debug("handled", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
}

func (s *Server) guard(h HandlerFunc) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		s.mu.Lock()
		open := len(s.users) == 0
		_, ok := s.tokens[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
		s.mu.Unlock()
		if !open && !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		h(w, r, params)
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.mu.Lock()
	want, ok := s.users[creds.Username]
	if !ok || want != creds.Password {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token := uuid.NewString()
	s.tokens[token] = creds.Username
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{
		"access_token": token,
		"userId":       creds.Username,
	})
}

func (s *Server) list(name string) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		s.mu.Lock()
		c := s.resources[name]
		out := make([]any, 0, len(c.order))
		for _, id := range c.order {
			out = append(out, c.docs[id])
		}
		s.mu.Unlock()

		if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit >= 0 && limit < len(out) {
			out = out[:limit]
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) create(name string) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		var doc map[string]any
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil || doc == nil {
			writeError(w, http.StatusBadRequest, "body must be a JSON object")
			return
		}

		s.mu.Lock()
		c := s.resources[name]
		id, _ := doc[s.idField].(string)
		if id == "" {
			id = uuid.NewString()
			doc[s.idField] = id
		}
		if _, exists := c.docs[id]; exists {
			s.mu.Unlock()
			writeError(w, http.StatusConflict, "duplicate "+s.idField)
			return
		}
		c.docs[id] = doc
		c.order = append(c.order, id)
		s.mu.Unlock()

		writeJSON(w, http.StatusCreated, doc)
	}
}

func (s *Server) get(name string) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		s.mu.Lock()
		doc, ok := s.resources[name].docs[params["id"]]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func (s *Server) update(name string, merge bool) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		var patch map[string]any
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil || patch == nil {
			writeError(w, http.StatusBadRequest, "body must be a JSON object")
			return
		}

		id := params["id"]
		s.mu.Lock()
		c := s.resources[name]
		doc, ok := c.docs[id]
		if !ok {
			s.mu.Unlock()
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		next := make(map[string]any, len(doc)+len(patch))
		if merge {
			for k, v := range doc {
				next[k] = v
			}
		}
		for k, v := range patch {
			next[k] = v
		}
		next[s.idField] = id
		c.docs[id] = next
		doc = next
		s.mu.Unlock()

		writeJSON(w, http.StatusOK, doc)
	}
}

func (s *Server) remove(name string) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		id := params["id"]
		s.mu.Lock()
		c := s.resources[name]
		_, ok := c.docs[id]
		if ok {
			delete(c.docs, id)
			for i, v := range c.order {
				if v == id {
					c.order = append(c.order[:i], c.order[i+1:]...)
					break
				}
			}
		}
		s.mu.Unlock()

		if !ok {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"statusCode": status, "message": msg})
}
