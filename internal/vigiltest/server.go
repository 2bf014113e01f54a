// Package vigiltest runs an in-process stand-in for the Vigil reporter API.
package vigiltest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/MightyToolkit/vigil-reporter/internal/metrics"
)

// Report is one accepted request as seen by the server.
type Report struct {
	ProbeID string
	NodeID  string
	Payload metrics.ReportPayload
}

type Server struct {
	*httptest.Server

	token  string
	status atomic.Int32

	mu      sync.Mutex
	reports []Report
}

// NewServer starts a server that expects token as the basic-auth password
// and answers every authenticated report with 200 until SetStatus is called.
func NewServer(token string) *Server {
	s := &Server{token: token}
	s.status.Store(http.StatusOK)

	r := chi.NewRouter()
	r.Post("/reporter/{probeID}/{nodeID}/", s.handleReport)
	s.Server = httptest.NewServer(r)
	return s
}

func (s *Server) SetStatus(code int) {
	s.status.Store(int32(code))
}

func (s *Server) Reports() []Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Report(nil), s.reports...)
}

func (s *Server) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if _, password, ok := r.BasicAuth(); !ok || password != s.token {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "expected application/json", http.StatusUnsupportedMediaType)
		return
	}

	var payload metrics.ReportPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.reports = append(s.reports, Report{
		ProbeID: chi.URLParam(r, "probeID"),
		NodeID:  chi.URLParam(r, "nodeID"),
		Payload: payload,
	})
	s.mu.Unlock()

	w.WriteHeader(int(s.status.Load()))
}
