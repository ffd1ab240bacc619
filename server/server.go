// Package server exposes the check pipeline over a websocket so editors can
// re-run checks and preview pages while content is being written.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/xhad/sitecheck/internal/types"
	"github.com/xhad/sitecheck/pkg/checker"
	"github.com/xhad/sitecheck/pkg/config"
	"github.com/xhad/sitecheck/pkg/logging"
	"github.com/xhad/sitecheck/pkg/render"
)

// Client message types.
const (
	TypeCheck  = "check"
	TypeRender = "render"
)

// Server message types.
const (
	TypeStatus   = "status"
	TypeProgress = "progress"
	TypeReport   = "report"
	TypeResponse = "response"
	TypeError    = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // local editor integration only
	},
}

type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

// PageData accompanies a rendered page.
type PageData struct {
	Path      string `json:"path"`
	Permalink string `json:"permalink"`
	Title     string `json:"title"`
	Flagged   int    `json:"flagged"`
}

type WSServer struct {
	config   *config.Config
	renderer types.Renderer
	log      logrus.FieldLogger

	mu      sync.RWMutex
	last    *checker.Report
	clients map[*conn]struct{}
}

// conn serializes writes; gorilla connections allow one writer at a time.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func NewWSServer(cfg *config.Config, logger logrus.FieldLogger) (*WSServer, error) {
	if cfg == nil {
		return nil, errors.New("server needs a config")
	}
	log := logging.OrDiscard(logger)
	return &WSServer{
		config:   cfg,
		renderer: render.New(cfg.Site, render.Options{Malformed: cfg.Render.Malformed, Logger: log}),
		log:      log,
		clients:  make(map[*conn]struct{}),
	}, nil
}

// Handler returns the server's routes.
func (s *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("/report", s.handleReport)
	return mux
}

// ListenAndServe serves until ctx is cancelled.
func (s *WSServer) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("port", s.config.Server.Port).Info("starting websocket server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// LastReport returns the report of the most recent check, if any.
func (s *WSServer) LastReport() *checker.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *WSServer) handleReport(w http.ResponseWriter, r *http.Request) {
	report := s.LastReport()
	if report == nil {
		http.Error(w, "no check has run yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report.Summary()); err != nil {
		s.log.WithError(err).Error("failed to write report")
	}
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer ws.Close()
	c := &conn{ws: ws}
	s.register(c)
	defer s.unregister(c)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.WithError(err).Debug("websocket read ended")
			}
			cancel()
			return
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			s.sendMessage(c, TypeError, fmt.Sprintf("invalid message: %v", err), nil)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleMessage(ctx, c, msg)
		}()
	}
}

func (s *WSServer) handleMessage(ctx context.Context, c *conn, msg Message) {
	switch msg.Type {
	case TypeCheck:
		if report, ok := s.runCheck(ctx, c); ok {
			s.sendReport(c, report)
		}
	case TypeRender:
		path := strings.TrimSpace(msg.Content)
		if path == "" {
			s.sendMessage(c, TypeError, "render needs a document path", nil)
			return
		}
		report, ok := s.runCheck(ctx, c)
		if !ok {
			return
		}
		docs, err := report.ProcessedFor(path)
		if err != nil {
			s.sendMessage(c, TypeError, fmt.Sprintf("refusing to render %s: %v", path, err), report.Summary())
			return
		}
		page, err := s.renderer.Render(docs[0])
		if err != nil {
			s.sendMessage(c, TypeError, err.Error(), nil)
			return
		}
		s.sendMessage(c, TypeResponse, string(page.HTML), PageData{
			Path:      page.Path,
			Permalink: page.Permalink,
			Title:     page.Title,
			Flagged:   page.Flagged,
		})
	default:
		s.sendMessage(c, TypeError, fmt.Sprintf("unknown message type %q", msg.Type), nil)
	}
}

func (s *WSServer) runCheck(ctx context.Context, c *conn) (*checker.Report, bool) {
	var processed int32
	chk, err := checker.NewWithConfig(checker.CheckerConfig{
		Config: s.config,
		Logger: s.log,
		OnStage: func(stage string) {
			s.sendMessage(c, TypeStatus, fmt.Sprintf("Running %s stage", stage), nil)
		},
		OnProgress: func(item string) {
			n := atomic.AddInt32(&processed, 1)
			s.sendMessage(c, TypeProgress, fmt.Sprintf("Checked %d items", n), nil)
		},
	})
	if err != nil {
		s.sendMessage(c, TypeError, fmt.Sprintf("failed to initialize checker: %v", err), nil)
		return nil, false
	}

	report, err := chk.Run(ctx)
	if err != nil {
		s.sendMessage(c, TypeError, fmt.Sprintf("check failed to run: %v", err), nil)
		return nil, false
	}

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()
	return report, true
}

func (s *WSServer) sendReport(c *conn, report *checker.Report) {
	s.sendMessage(c, TypeReport, reportContent(report), report.Summary())
}

func reportContent(report *checker.Report) string {
	if report.OK() {
		return "ok"
	}
	return fmt.Sprintf("%d problem(s)", len(report.Problems))
}

func (s *WSServer) register(c *conn) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
}

func (s *WSServer) unregister(c *conn) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

// broadcast sends a message to every connected client.
func (s *WSServer) broadcast(msgType, content string, data interface{}) {
	s.mu.RLock()
	clients := make([]*conn, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		s.sendMessage(c, msgType, content, data)
	}
}

// sendMessage writes to c. A nil c drops the message.
func (s *WSServer) sendMessage(c *conn, msgType, content string, data interface{}) {
	if c == nil {
		return
	}
	msg := Message{
		Type:    msgType,
		Content: content,
		Data:    data,
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteJSON(msg); err != nil {
		s.log.WithError(err).Debug("failed to send message")
	}
}
