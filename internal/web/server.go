package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brensch/campwatch/internal/report"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed assets/*
var assets embed.FS

// Reports exposes the latest completed run. monitor.Monitor satisfies it.
type Reports interface {
	Latest() ([]report.Report, time.Time)
}

type Server struct {
	reports Reports
	addr    string
	tmpl    *template.Template
}

type pageData struct {
	LastRun time.Time
	Reports []report.Report
	Matches int
	Text    string
}

func NewServer(reports Reports, addr string) (*Server, error) {
	htmlBytes, err := assets.ReadFile("assets/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to read HTML file: %w", err)
	}
	tmpl, err := template.New("index").Parse(string(htmlBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &Server{reports: reports, addr: addr, tmpl: tmpl}, nil
}

// Handler returns the routes without binding a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/report.txt", s.handleText)
	mux.HandleFunc("/api/reports", s.handleReportsAPI)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintln(w, "ok")
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		slog.Info("shutting down web server")
		server.Shutdown(context.Background())
	}()

	slog.Info("starting web server", slog.String("addr", s.addr))
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	reports, lastRun := s.reports.Latest()
	var text strings.Builder
	if err := report.WriteText(&text, reports); err != nil {
		slog.Error("failed to render reports", slog.Any("err", err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	data := pageData{LastRun: lastRun, Reports: reports, Text: text.String()}
	for _, rep := range reports {
		if rep.Status == report.StatusMatch {
			data.Matches++
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, data); err != nil {
		slog.Error("failed to execute template", slog.Any("err", err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	reports, _ := s.reports.Latest()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := report.WriteText(w, reports); err != nil {
		slog.Error("failed to write text report", slog.Any("err", err))
	}
}

func (s *Server) handleReportsAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	reports, _ := s.reports.Latest()
	w.Header().Set("Content-Type", "application/json")
	if err := report.WriteJSON(w, reports); err != nil {
		slog.Error("failed to encode reports", slog.Any("err", err))
	}
}
