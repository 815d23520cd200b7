package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lunarsound/longwave/internal/extend"
	"github.com/lunarsound/longwave/internal/jobs"
	"github.com/lunarsound/longwave/internal/observability"
	"github.com/lunarsound/longwave/internal/store"
)

var testMetrics = observability.NewMetrics("httpapi_test")

// instantProcessor completes immediately with secs*rate constant samples.
type instantProcessor struct {
	rate int
}

func (p *instantProcessor) Process(prompt string, secs int, onProgress extend.ProgressFunc) ([]float32, error) {
	if onProgress != nil {
		onProgress(float64(secs), float64(secs))
	}
	return make([]float32, secs*p.rate), nil
}

func newTestServer(t *testing.T) (*httptest.Server, *jobs.Manager, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	manager := jobs.NewManager(&instantProcessor{rate: 100}, st, testMetrics, jobs.Config{
		Plan:       extend.Plan{SegmentDuration: 28, OverlapDuration: 4, CrossfadeDuration: 2.0},
		SampleRate: 100,
		MaxQueue:   4,
		MaxSeconds: 300,
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go manager.Run(ctx)

	srv := httptest.NewServer(New(manager, st, nil).Router())
	t.Cleanup(srv.Close)
	return srv, manager, st
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func waitDone(t *testing.T, m *jobs.Manager, id string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		j, err := m.Get(id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if j.State == jobs.StateDone || j.State == jobs.StateFailed {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never finished")
}

func TestGenerateAndFetchTrack(t *testing.T) {
	srv, manager, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/generate", map[string]any{"prompt": "lofi beat", "seconds": 15})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var job jobs.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.ID == "" || job.Prompt != "lofi beat" {
		t.Fatalf("job = %+v, want populated snapshot", job)
	}

	waitDone(t, manager, job.ID)

	// Job status.
	statusResp, err := http.Get(srv.URL + "/api/jobs/" + job.ID)
	if err != nil {
		t.Fatalf("GET job: %v", err)
	}
	defer statusResp.Body.Close()
	var got jobs.Job
	if err := json.NewDecoder(statusResp.Body).Decode(&got); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if got.State != jobs.StateDone {
		t.Errorf("state = %s, want done", got.State)
	}

	// Track audio download.
	audioResp, err := http.Get(srv.URL + "/api/tracks/" + job.ID + "/audio")
	if err != nil {
		t.Fatalf("GET audio: %v", err)
	}
	defer audioResp.Body.Close()
	if audioResp.StatusCode != http.StatusOK {
		t.Fatalf("audio status = %d, want 200", audioResp.StatusCode)
	}
	if ct := audioResp.Header.Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("Content-Type = %q, want audio/wav", ct)
	}

	// Track listing.
	listResp, err := http.Get(srv.URL + "/api/tracks")
	if err != nil {
		t.Fatalf("GET tracks: %v", err)
	}
	defer listResp.Body.Close()
	var tracks []*store.Track
	if err := json.NewDecoder(listResp.Body).Decode(&tracks); err != nil {
		t.Fatalf("decode tracks: %v", err)
	}
	if len(tracks) != 1 || tracks[0].ID != job.ID {
		t.Errorf("tracks = %+v, want the finished job", tracks)
	}
}

func TestGenerateRejectsBadRequests(t *testing.T) {
	srv, _, _ := newTestServer(t)

	tests := []struct {
		name string
		body any
	}{
		{"empty prompt", map[string]any{"prompt": "", "seconds": 30}},
		{"zero seconds", map[string]any{"prompt": "p", "seconds": 0}},
		{"over limit", map[string]any{"prompt": "p", "seconds": 9999}},
	}
	for _, tt := range tests {
		resp := postJSON(t, srv.URL+"/api/generate", tt.body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tt.name, resp.StatusCode)
		}
	}
}

func TestJobNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/jobs/nope")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("job status = %d, want 404", resp.StatusCode)
	}

	audioResp, err := http.Get(srv.URL + "/api/tracks/nope/audio")
	if err != nil {
		t.Fatalf("GET audio: %v", err)
	}
	audioResp.Body.Close()
	if audioResp.StatusCode != http.StatusNotFound {
		t.Errorf("audio status = %d, want 404", audioResp.StatusCode)
	}
}

func TestJobProgressWebsocket(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/generate", map[string]any{"prompt": "p", "seconds": 10})
	var job jobs.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	resp.Body.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/jobs/" + job.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var last jobs.Update
	for {
		var u jobs.Update
		if err := conn.ReadJSON(&u); err != nil {
			break // server closes after the terminal update
		}
		last = u
	}
	if last.State != jobs.StateDone || last.Progress != 1 {
		t.Errorf("last update = %+v, want done at progress 1", last)
	}
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
