package web

import (
	"embed"
	"encoding/json"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/render"
)

//go:embed templates/index.html
var templateFiles embed.FS

//go:embed static
var staticFiles embed.FS

// Config is the transport-facing subset of the app config.
type Config struct {
	Title      string
	OutboxSize int
	// AllowedOrigins are websocket origin patterns; empty means same host only.
	AllowedOrigins []string
}

type Server struct {
	room *arena.Room
	cfg  Config
	page *template.Template
}

func NewServer(room *arena.Room, cfg Config) (*Server, error) {
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = 64
	}
	page, err := template.ParseFS(templateFiles, "templates/index.html")
	if err != nil {
		return nil, err
	}
	return &Server{room: room, cfg: cfg, page: page}, nil
}

// Routes builds the HTTP surface.
func (s *Server) Routes() http.Handler {
	static, _ := fs.Sub(staticFiles, "static")

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/", s.handleIndex)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	r.Get("/healthz", s.handleHealthz)
	r.Get("/board.png", s.handleBoard)
	r.Get("/ws", s.handleWS)
	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, map[string]string{"Title": s.cfg.Title}); err != nil {
		obslog.L().Warn("http_index_error", zap.Error(err))
	}
}

type healthResponse struct {
	Status  string `json:"status"`
	Active  bool   `json:"active"`
	Clients int    `json:"clients"`
	Turn    string `json:"turn"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	v, err := s.room.Snapshot(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(healthResponse{Status: "unavailable"})
		return
	}
	_ = json.NewEncoder(w).Encode(healthResponse{Status: "ok", Active: v.Active, Clients: v.Clients, Turn: string(v.Turn)})
}

// handleBoard renders the live position; ?view=b flips it to Black's side.
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	v, err := s.room.Snapshot(r.Context())
	if err != nil {
		http.Error(w, "room unavailable", http.StatusServiceUnavailable)
		return
	}
	img, err := render.PNG(r.Context(), v.FEN, render.Options{
		From:  v.LastFrom,
		To:    v.LastTo,
		Flip:  r.URL.Query().Get("view") == string(arena.Black),
		Title: s.cfg.Title,
	})
	if err != nil {
		obslog.L().Warn("http_board_error", zap.String("fen", v.FEN), zap.Error(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(img)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		obslog.L().Debug("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("remote", r.RemoteAddr),
		)
	})
}
