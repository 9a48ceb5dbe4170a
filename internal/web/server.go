package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/guidoenr/paraeq/internal/audio"
	"github.com/guidoenr/paraeq/internal/control"
	"github.com/guidoenr/paraeq/internal/eq"
	"github.com/guidoenr/paraeq/internal/preset"
	"github.com/guidoenr/paraeq/internal/render"
	"github.com/guidoenr/paraeq/internal/session"
)

const maxUpload = 256 << 20

// Config configures the browser front end.
type Config struct {
	Port       int
	PresetPath string
	Theme      string
	Width      int
	Height     int
	TargetFPS  float64
	Log        *log.Logger
}

// Server exposes a session over HTTP and streams spectrum frames to
// websocket clients while audio plays.
type Server struct {
	cfg     Config
	session *session.Session
	log     *log.Logger

	mu        sync.RWMutex
	clients   map[*websocketClient]bool
	closed    bool
	broadcast chan []byte
	upgrader  websocket.Upgrader

	drawMu   sync.Mutex
	raster   *render.Raster
	spectrum *render.Spectrum
	loop     *render.Loop
}

type websocketClient struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

// FrameMessage is pushed to websocket clients on every frame.
type FrameMessage struct {
	Type     string        `json:"type"`
	State    string        `json:"state"`
	Position float64       `json:"position"`
	Bins     []uint8       `json:"bins"`
	Bands    []eq.Band     `json:"bands"`
	Bass     float64       `json:"bass"`
	Mid      float64       `json:"mid"`
	Treble   float64       `json:"treble"`
	Controls control.State `json:"controls"`
}

// StateMessage is pushed on every playback transition.
type StateMessage struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

// InputRequest is one control event.
type InputRequest struct {
	Name  string       `json:"name"`
	Side  control.Side `json:"side"`
	Value float64      `json:"value"`
}

// NewServer wires a server to s and attaches its frame loop.
func NewServer(s *session.Session, cfg Config) *Server {
	if cfg.Log == nil {
		cfg.Log = log.New(os.Stderr, "[web] ", log.LstdFlags)
	}
	if cfg.Width <= 0 {
		cfg.Width = 1000
	}
	if cfg.Height <= 0 {
		cfg.Height = 400
	}
	if cfg.TargetFPS <= 0 {
		cfg.TargetFPS = 30
	}
	theme := render.Palette(cfg.Theme)
	srv := &Server{
		cfg:       cfg,
		session:   s,
		log:       cfg.Log,
		clients:   make(map[*websocketClient]bool),
		broadcast: make(chan []byte, 256),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		raster:   render.NewRaster(cfg.Width, cfg.Height, theme.Background),
		spectrum: render.NewSpectrum(s.Style(cfg.Theme)),
	}
	srv.loop = render.NewLoop(cfg.TargetFPS, srv.pushFrame)
	s.AttachLoop(srv.loop)
	// the listener runs under the session lock, so it only queues
	s.OnStateChange(func(st session.State) {
		srv.queue(StateMessage{Type: "state", State: st.String()})
	})
	return srv
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	webDir := findWebDir()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join(webDir, "index.html"))
	})
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/palettes", s.handlePalettes)
	mux.HandleFunc("POST /api/bands", s.handleAddBand)
	mux.HandleFunc("PUT /api/bands/{index}", s.handleUpdateBand)
	mux.HandleFunc("DELETE /api/bands/{index}", s.handleDeleteBand)
	mux.HandleFunc("POST /api/input", s.handleInput)
	mux.HandleFunc("POST /api/transport/{action}", s.handleTransport)
	mux.HandleFunc("POST /api/load", s.handleLoad)
	mux.HandleFunc("GET /api/preset", s.handleGetPreset)
	mux.HandleFunc("POST /api/preset", s.handleApplyPreset)
	mux.HandleFunc("POST /api/save", s.handleSave)
	mux.HandleFunc("GET /api/spectrum.png", s.handleSpectrum)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return mux
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.broadcastLoop(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	s.log.Printf("server starting on http://0.0.0.0%s", addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.loop.Stop()
	return nil
}

func findWebDir() string {
	for _, dir := range []string{"web", "../web", "../../web"} {
		if _, err := os.Stat(filepath.Join(dir, "index.html")); err == nil {
			return dir
		}
	}
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		for _, dir := range []string{filepath.Join(exeDir, "web"), filepath.Join(filepath.Dir(exeDir), "web")} {
			if _, err := os.Stat(filepath.Join(dir, "index.html")); err == nil {
				return dir
			}
		}
	}
	return "web"
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handlePalettes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, render.PaletteNames())
}

func (s *Server) handleAddBand(w http.ResponseWriter, r *http.Request) {
	index := s.session.AddBand()
	writeJSON(w, http.StatusCreated, map[string]int{"index": index})
}

func (s *Server) handleUpdateBand(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		http.Error(w, "invalid band index", http.StatusBadRequest)
		return
	}
	var b eq.Band
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		http.Error(w, fmt.Sprintf("invalid band: %v", err), http.StatusBadRequest)
		return
	}
	if err := s.session.UpdateBand(index, b.Frequency, b.Gain, b.Q); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Bands())
}

func (s *Server) handleDeleteBand(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		http.Error(w, "invalid band index", http.StatusBadRequest)
		return
	}
	if err := s.session.DeleteBand(index); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	var req InputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid input: %v", err), http.StatusBadRequest)
		return
	}
	if req.Side == "" {
		req.Side = control.Range
	}
	if req.Side != control.Range && req.Side != control.Number {
		http.Error(w, fmt.Sprintf("unknown side %q", req.Side), http.StatusBadRequest)
		return
	}
	if err := s.session.Input(req.Name, req.Side, req.Value); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot().Controls)
}

func (s *Server) handleTransport(w http.ResponseWriter, r *http.Request) {
	var err error
	switch r.PathValue("action") {
	case "play":
		s.session.Play()
	case "pause":
		s.session.Pause()
	case "toggle":
		s.session.TogglePlay()
	case "stop":
		s.session.Stop()
	case "rewind":
		err = s.session.Rewind()
	case "forward":
		err = s.session.FastForward()
	default:
		http.Error(w, "unknown transport action", http.StatusNotFound)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("missing file: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()
	if err := s.session.LoadReader(file, header.Filename); err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Printf("loaded %s from upload", header.Filename)
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Preset())
}

func (s *Server) handleApplyPreset(w http.ResponseWriter, r *http.Request) {
	var p preset.Preset
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, fmt.Sprintf("invalid preset: %v", err), http.StatusBadRequest)
		return
	}
	s.session.ApplyPreset(p)
	writeJSON(w, http.StatusOK, s.session.Preset())
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	path := s.cfg.PresetPath
	if path == "" {
		path = preset.DefaultPath()
	}
	if err := preset.Save(path, s.session.Preset()); err != nil {
		http.Error(w, fmt.Sprintf("failed to save preset: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved", "path": path})
}

func (s *Server) handleSpectrum(w http.ResponseWriter, r *http.Request) {
	f := s.session.Frame()
	s.drawMu.Lock()
	defer s.drawMu.Unlock()
	s.spectrum.Draw(s.raster, f)
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.raster.EncodePNG(w); err != nil {
		s.log.Printf("encode spectrum: %v", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Printf("websocket upgrade error: %v", err)
		return
	}

	client := s.register(conn)
	if client == nil {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// register queues the current state for conn and only then makes the client
// visible to broadcastLoop, so the state message is always delivered first.
// It returns nil once the broadcast loop has shut down.
func (s *Server) register(conn *websocket.Conn) *websocketClient {
	client := &websocketClient{
		conn:   conn,
		send:   make(chan []byte, 256),
		server: s,
	}
	if data, err := json.Marshal(StateMessage{Type: "state", State: s.session.State().String()}); err == nil {
		client.send <- data
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.clients[client] = true
	return client
}

// pushFrame runs on the render loop.
func (s *Server) pushFrame() {
	f := s.session.Frame()
	snap := s.session.Snapshot()
	feat := s.session.Features()
	s.queue(FrameMessage{
		Type:     "frame",
		State:    snap.State.String(),
		Position: snap.Position,
		Bins:     f.Bins,
		Bands:    f.Bands,
		Bass:     feat.Bass,
		Mid:      feat.Mid,
		Treble:   feat.Treble,
		Controls: snap.Controls,
	})
}

func (s *Server) queue(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Printf("marshal %T: %v", msg, err)
		return
	}
	select {
	case s.broadcast <- data:
	default:
		// drop if channel full
	}
}

func (s *Server) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.closed = true
			for client := range s.clients {
				close(client.send)
				delete(s.clients, client)
			}
			s.mu.Unlock()
			return
		case message := <-s.broadcast:
			s.mu.Lock()
			for client := range s.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(s.clients, client)
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *Server) removeClient(c *websocketClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients[c] {
		delete(s.clients, c)
		close(c.send)
	}
}

// writeError maps domain errors onto status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, eq.ErrOutOfRange):
		status = http.StatusNotFound
	case errors.Is(err, control.ErrUnknownControl):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrTransportDisabled):
		status = http.StatusConflict
	case errors.Is(err, audio.ErrUnsupportedFormat):
		status = http.StatusUnsupportedMediaType
	}
	if status == http.StatusInternalServerError {
		s.log.Printf("request failed: %v", err)
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (c *websocketClient) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var req InputRequest
		if err := c.conn.ReadJSON(&req); err != nil {
			var syntax *json.SyntaxError
			if errors.As(err, &syntax) {
				continue
			}
			break
		}
		if req.Side == "" {
			req.Side = control.Range
		}
		if err := c.server.session.Input(req.Name, req.Side, req.Value); err != nil {
			c.server.log.Printf("websocket input %s: %v", req.Name, err)
		}
	}
}

func (c *websocketClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
