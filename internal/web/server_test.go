package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"log"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/gorilla/websocket"

	"github.com/guidoenr/paraeq/internal/control"
	"github.com/guidoenr/paraeq/internal/eq"
	"github.com/guidoenr/paraeq/internal/session"
)

func newTestServer(t *testing.T, v session.Variant) (*Server, *session.Session, http.Handler) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	s := session.New(session.Config{SampleRate: 8000, FFTSize: 256, Variant: v, Log: logger})
	srv := NewServer(s, Config{
		PresetPath: filepath.Join(t.TempDir(), "preset.json"),
		Width:      200,
		Height:     80,
		Log:        logger,
	})
	return srv, s, srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func wavBytes(t *testing.T, frames int) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	left := frames
	tone := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if left == 0 {
			return 0, false
		}
		n := min(len(samples), left)
		for i := 0; i < n; i++ {
			v := 0.5 * math.Sin(2*math.Pi*440*float64(frames-left+i)/8000)
			samples[i] = [2]float64{v, v}
		}
		left -= n
		return n, true
	})
	if err := wav.Encode(f, tone, beep.Format{SampleRate: 8000, NumChannels: 2, Precision: 2}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	f.Close()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return data
}

func upload(t *testing.T, h http.Handler, name string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	part.Write(data)
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/load", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStateStartsEmpty(t *testing.T) {
	_, _, h := newTestServer(t, session.Full())
	rec := do(t, h, http.MethodGet, "/api/state", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var snap struct {
		State string `json:"state"`
		Bands []eq.Band
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.State != "empty" || len(snap.Bands) != 0 {
		t.Fatalf("snapshot=%+v", snap)
	}
}

func TestBandEndpoints(t *testing.T) {
	_, s, h := newTestServer(t, session.Full())
	if rec := do(t, h, http.MethodPost, "/api/bands", nil); rec.Code != http.StatusCreated {
		t.Fatalf("add status=%d", rec.Code)
	}
	rec := do(t, h, http.MethodPut, "/api/bands/0", eq.Band{Frequency: 500, Gain: 99, Q: 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rec.Code, rec.Body)
	}
	if got := s.Bands()[0]; got != (eq.Band{Frequency: 500, Gain: 40, Q: 2}) {
		t.Fatalf("band=%+v", got)
	}
	if rec := do(t, h, http.MethodDelete, "/api/bands/3", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("delete missing status=%d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/bands/x", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("delete bad index status=%d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/bands/0", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rec.Code)
	}
	if len(s.Bands()) != 0 {
		t.Fatalf("bands=%+v", s.Bands())
	}
}

func TestInputEndpoint(t *testing.T) {
	_, s, h := newTestServer(t, session.Plugin())
	rec := do(t, h, http.MethodPost, "/api/input", InputRequest{Name: control.HighPassName, Side: control.Number, Value: 80})
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	if got := s.Preset().HighPass; got != 80 {
		t.Fatalf("hpf=%f want 80", got)
	}
	rec = do(t, h, http.MethodPost, "/api/input", InputRequest{Name: control.VolumeName, Value: 0.5})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("volume in plugin variant status=%d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/api/input", InputRequest{Name: control.HighPassName, Side: "knob", Value: 1})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad side status=%d", rec.Code)
	}
}

func TestTransportEndpoints(t *testing.T) {
	_, s, h := newTestServer(t, session.Plugin())
	if rec := do(t, h, http.MethodPost, "/api/transport/rewind", nil); rec.Code != http.StatusConflict {
		t.Fatalf("rewind status=%d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/transport/eject", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown action status=%d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/transport/play", nil); rec.Code != http.StatusOK {
		t.Fatalf("play status=%d", rec.Code)
	}
	if s.State() != session.Empty {
		t.Fatalf("play without audio changed state to %s", s.State())
	}
}

func TestLoadAndPlay(t *testing.T) {
	_, s, h := newTestServer(t, session.Full())
	if rec := upload(t, h, "clip.wav", wavBytes(t, 8000)); rec.Code != http.StatusOK {
		t.Fatalf("load status=%d body=%s", rec.Code, rec.Body)
	}
	if s.State() != session.Loaded {
		t.Fatalf("state=%s", s.State())
	}
	do(t, h, http.MethodPost, "/api/transport/play", nil)
	if s.State() != session.Playing {
		t.Fatalf("state=%s", s.State())
	}
	do(t, h, http.MethodPost, "/api/transport/stop", nil)
	if s.State() != session.Empty {
		t.Fatalf("state=%s", s.State())
	}

	if rec := upload(t, h, "notes.txt", []byte("hello")); rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("unsupported upload status=%d", rec.Code)
	}
}

func TestPresetEndpoints(t *testing.T) {
	srv, _, h := newTestServer(t, session.Full())
	body := map[string]any{
		"bands": []eq.Band{{Frequency: 250, Gain: -3, Q: 1}},
		"hpf":   40,
		"lpf":   12000,
	}
	if rec := do(t, h, http.MethodPost, "/api/preset", body); rec.Code != http.StatusOK {
		t.Fatalf("apply status=%d", rec.Code)
	}
	rec := do(t, h, http.MethodPost, "/api/save", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("save status=%d body=%s", rec.Code, rec.Body)
	}
	data, err := os.ReadFile(srv.cfg.PresetPath)
	if err != nil {
		t.Fatalf("read preset: %v", err)
	}
	if !strings.Contains(string(data), `"lpf": 12000`) {
		t.Fatalf("preset file=%s", data)
	}
}

func TestSpectrumPNG(t *testing.T) {
	_, s, h := newTestServer(t, session.Full())
	s.AddBand()
	rec := do(t, h, http.MethodGet, "/api/spectrum.png", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("status=%d type=%s", rec.Code, rec.Header().Get("Content-Type"))
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 80 {
		t.Fatalf("bounds=%v", b)
	}
}

func TestWebSocketStateAndInput(t *testing.T) {
	_, s, h := newTestServer(t, session.Full())
	s.AddBand()
	ts := httptest.NewServer(h)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg StateMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "state" || msg.State != "empty" {
		t.Fatalf("msg=%+v", msg)
	}

	name := control.BandControlName(0, control.Gain)
	if err := conn.WriteJSON(InputRequest{Name: name, Side: control.Range, Value: 6}); err != nil {
		t.Fatalf("write: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for s.Bands()[0].Gain != 6 {
		if time.Now().After(deadline) {
			t.Fatalf("gain=%f want 6", s.Bands()[0].Gain)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRESTBandUpdateMirrorsControls(t *testing.T) {
	_, _, h := newTestServer(t, session.Full())
	do(t, h, http.MethodPost, "/api/bands", nil)
	// number-side input first, so only its twin disagrees until the update
	do(t, h, http.MethodPost, "/api/input", InputRequest{Name: control.BandControlName(0, control.Q), Side: control.Number, Value: 50})

	if rec := do(t, h, http.MethodPut, "/api/bands/0", eq.Band{Frequency: 5000, Gain: -6, Q: 2}); rec.Code != http.StatusOK {
		t.Fatalf("update status=%d", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/api/state", nil)
	var snap struct {
		Controls control.State `json:"controls"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	row := snap.Controls.Bands[0]
	for name, tw := range map[string]control.Twin{"frequency": row.Frequency, "gain": row.Gain, "q": row.Q} {
		if tw.Range != tw.Number {
			t.Fatalf("%s range=%f number=%f", name, tw.Range, tw.Number)
		}
	}
	if row.Frequency.Number != 5000 || row.Gain.Number != -6 || row.Q.Number != 2 {
		t.Fatalf("row=%+v", row)
	}
}

func TestWebSocketStateIsFirstMessage(t *testing.T) {
	srv, _, _ := newTestServer(t, session.Full())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.broadcastLoop(ctx)
		close(done)
	}()

	// a frame already in flight must not overtake the greeting
	srv.queue(FrameMessage{Type: "frame"})
	client := srv.register(nil)
	if client == nil {
		t.Fatal("register returned nil on a running server")
	}
	srv.queue(FrameMessage{Type: "frame"})

	var first struct {
		Type string `json:"type"`
	}
	select {
	case data := <-client.send:
		if err := json.Unmarshal(data, &first); err != nil {
			t.Fatalf("decode: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message queued")
	}
	if first.Type != "state" {
		t.Fatalf("first message type=%q want state", first.Type)
	}

	cancel()
	<-done
	for range client.send {
	}
	if c := srv.register(nil); c != nil {
		t.Fatal("register after shutdown returned a client")
	}
}

func TestIndexKeepsControlsAndOverlaysInStep(t *testing.T) {
	_, _, h := newTestServer(t, session.Full())
	rec := do(t, h, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	page := rec.Body.String()
	for _, want := range []string{
		"number.oninput",
		"number.value = range.value",
		"updateControls(msg.controls)",
		"quadraticCurveTo",
		"i < GRID",
	} {
		if !strings.Contains(page, want) {
			t.Fatalf("index.html lacks %q", want)
		}
	}
	if strings.Contains(page, "number.onchange") {
		t.Fatal("number box still only reports on change")
	}
}
