// Package http exposes a graph and its live machines over a JSON HTTP API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/compiler"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/session"
	"github.com/go-chi/chi/v5"
)

// GraphSource provides the graph being served. *arbor.Engine implements it.
type GraphSource interface {
	Graph() *domain.State
	Validate() []domain.Issue
}

// Server serves the graph and the machines of a session manager.
type Server struct {
	Graph    GraphSource
	Machines *session.Manager
	Streams  *StreamManager

	metrics     http.Handler
	logger      *slog.Logger
	feedStreams bool // Subscribe Streams to each created machine
}

// Option configures the Server.
type Option func(*Server)

// WithMetricsHandler mounts h (typically promhttp) at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithStreamManager relays events from sm instead of a private manager. The
// caller feeds sm, typically by subscribing it to a dispatcher shared by all
// machines, so the server does not subscribe it to the machines it creates.
func WithStreamManager(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewHandler creates a new HTTP handler for the graph and its machines.
func NewHandler(source GraphSource, machines *session.Manager, opts ...Option) http.Handler {
	server := &Server{
		Graph:    source,
		Machines: machines,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}
	if server.Streams == nil {
		server.Streams = NewStreamManager(server.logger)
		server.feedStreams = true
	}

	r := chi.NewRouter()
	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)
	r.Get("/graph", server.GetGraph)
	r.Get("/validate", server.GetValidate)
	r.Get("/events", server.SubscribeEvents)
	if server.metrics != nil {
		r.Handle("/metrics", server.metrics)
	}

	r.Route("/machines", func(r chi.Router) {
		r.Get("/", server.ListMachines)
		r.Post("/", server.CreateMachine)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", server.GetMachine)
			r.Delete("/", server.DisposeMachine)
			r.Get("/graph", server.GetMachineGraph)
			r.Get("/events", server.SubscribeEvents)
			r.Post("/initialize", server.Initialize)
			r.Post("/terminate", server.Terminate)
			r.Post("/apply/{transition}", server.Apply)
			r.Post("/execute/{operation}", server.Execute)
		})
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MachineView is the JSON representation of a machine.
type MachineView struct {
	ID           string        `json:"id"`
	Status       domain.Status `json:"status"`
	State        string        `json:"state"`
	Path         []string      `json:"path"`
	Transitions  []string      `json:"transitions"`
	Operations   []string      `json:"operations"`
	Capabilities []string      `json:"capabilities"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

type createRequest struct {
	ID string `json:"id"`
}

type actionRequest struct {
	Arg any `json:"arg"`
}

func viewOf(m *runtime.Machine) MachineView {
	v := MachineView{
		ID:           m.ID(),
		Status:       m.Status(),
		State:        m.State().Name(),
		Path:         []string{},
		Transitions:  []string{},
		Operations:   []string{},
		Capabilities: []string{},
	}
	for _, s := range m.Path() {
		v.Path = append(v.Path, s.Name())
	}
	// A disposed machine reports its last position and no choices.
	transitions, _ := m.Transitions()
	for _, t := range transitions {
		v.Transitions = append(v.Transitions, t.Name())
	}
	operations, _ := m.Operations()
	for _, o := range operations {
		v.Operations = append(v.Operations, o.Name())
	}
	capabilities, _ := m.Capabilities()
	for _, c := range capabilities {
		v.Capabilities = append(v.Capabilities, c.Name())
	}
	return v
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrMachineNotFound),
		errors.Is(err, domain.ErrUnknownTransition),
		errors.Is(err, domain.ErrUnknownOperation):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrMachineExists),
		errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnresolvedReference):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNullArgument):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "code", code, "err", err)
	}
	s.writeJSON(w, code, ErrorResponse{Error: err.Error()})
}

// decodeBody decodes an optional JSON body into v. An empty body is not an error.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrNullArgument, err)
	}
	return nil
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{
		"app":     "arbor-http",
		"version": strings.TrimSpace(arbor.Version),
		"root":    s.Graph.Graph().Name(),
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// GetGraph handles the GET /graph request. The graph is rendered as a Mermaid
// flowchart unless ?format=xml or ?format=yaml asks for the document itself.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	root := s.Graph.Graph()
	format := r.URL.Query().Get("format")
	switch format {
	case "", "mermaid":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, graph.GenerateMermaid(root, nil))
	case string(compiler.FormatXML), string(compiler.FormatYAML):
		var sb strings.Builder
		if err := compiler.Encode(&sb, root, compiler.Format(format)); err != nil {
			s.writeError(w, r, err)
			return
		}
		if format == string(compiler.FormatXML) {
			w.Header().Set("Content-Type", "application/xml")
		} else {
			w.Header().Set("Content-Type", "application/yaml")
		}
		io.WriteString(w, sb.String())
	default:
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("unknown format %q", format)})
	}
}

// GetValidate handles the GET /validate request.
func (s *Server) GetValidate(w http.ResponseWriter, r *http.Request) {
	issues := s.Graph.Validate()
	if issues == nil {
		issues = []domain.Issue{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"valid":  len(issues) == 0,
		"issues": issues,
	})
}

// ListMachines handles the GET /machines request.
func (s *Server) ListMachines(w http.ResponseWriter, r *http.Request) {
	views := []MachineView{}
	for _, id := range s.Machines.List() {
		m, err := s.Machines.Get(id)
		if err != nil {
			continue // Disposed concurrently
		}
		views = append(views, viewOf(m))
	}
	s.writeJSON(w, http.StatusOK, views)
}

// CreateMachine handles the POST /machines request.
func (s *Server) CreateMachine(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.Machines.Create(r.Context(), body.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.feedStreams {
		m.Subscribe(s.Streams)
	}
	s.writeJSON(w, http.StatusCreated, viewOf(m))
}

// GetMachine handles the GET /machines/{id} request.
func (s *Server) GetMachine(w http.ResponseWriter, r *http.Request) {
	m, err := s.Machines.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, viewOf(m))
}

// DisposeMachine handles the DELETE /machines/{id} request.
func (s *Server) DisposeMachine(w http.ResponseWriter, r *http.Request) {
	if err := s.Machines.Dispose(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetMachineGraph handles the GET /machines/{id}/graph request: the Mermaid
// flowchart with the machine's scope chain highlighted.
func (s *Server) GetMachineGraph(w http.ResponseWriter, r *http.Request) {
	m, err := s.Machines.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, graph.GenerateMermaid(m.Root(), &graph.GraphOverlay{Path: m.Path()}))
}

// drive runs fn under the machine lock and answers with the resulting view.
func (s *Server) drive(w http.ResponseWriter, r *http.Request, fn func(context.Context, *runtime.Machine, any) error) {
	var body actionRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	var view MachineView
	err := s.Machines.WithLock(r.Context(), chi.URLParam(r, "id"), func(ctx context.Context, m *runtime.Machine) error {
		err := fn(ctx, m, body.Arg)
		view = viewOf(m)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// Initialize handles the POST /machines/{id}/initialize request.
func (s *Server) Initialize(w http.ResponseWriter, r *http.Request) {
	s.drive(w, r, func(ctx context.Context, m *runtime.Machine, arg any) error {
		_, err := m.Initialize(ctx, arg)
		return err
	})
}

// Terminate handles the POST /machines/{id}/terminate request.
func (s *Server) Terminate(w http.ResponseWriter, r *http.Request) {
	s.drive(w, r, func(ctx context.Context, m *runtime.Machine, arg any) error {
		_, err := m.Terminate(ctx, arg)
		return err
	})
}

// Apply handles the POST /machines/{id}/apply/{transition} request.
func (s *Server) Apply(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "transition")
	s.drive(w, r, func(ctx context.Context, m *runtime.Machine, arg any) error {
		_, err := m.Apply(ctx, name, arg)
		return err
	})
}

// Execute handles the POST /machines/{id}/execute/{operation} request.
func (s *Server) Execute(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "operation")
	s.drive(w, r, func(ctx context.Context, m *runtime.Machine, arg any) error {
		return m.Execute(ctx, name, arg)
	})
}

// StreamManager fans machine events out to SSE connections.
// It is a ports.Listener: subscribe it to every machine whose events it should relay.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // Machine ID ("" for all) -> Set of Channels
	logger      *slog.Logger
}

var _ ports.Listener = (*StreamManager)(nil)

// NewStreamManager creates an empty StreamManager. logger may be nil.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a stream for machineID, or for every machine when it is empty.
func (sm *StreamManager) Subscribe(machineID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[machineID]; !ok {
		sm.subscribers[machineID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[machineID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[machineID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, machineID)
			}
		}
	}
}

// Broadcast sends msg to the streams of machineID and to the streams of every machine.
func (sm *StreamManager) Broadcast(machineID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for _, key := range []string{machineID, ""} {
		for ch := range sm.subscribers[key] {
			select {
			case ch <- msg:
			default:
				// Drop message if channel is full (slow client)
				sm.logger.Warn("SSE: Client buffer full, dropping message", "machine_id", machineID)
			}
		}
		if machineID == "" {
			break
		}
	}
}

// OnEvent implements ports.Listener.
func (sm *StreamManager) OnEvent(_ context.Context, event domain.StateChangeEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		sm.logger.Error("SSE: event encode failed", "err", err)
		return
	}
	sm.Broadcast(event.MachineID, string(data))
}

// SubscribeEvents handles GET /events and GET /machines/{id}/events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	machineID := chi.URLParam(r, "id")
	if machineID != "" {
		if _, err := s.Machines.Get(machineID); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(machineID)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected", "machine_id", machineID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
