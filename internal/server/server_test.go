package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zoneclock/meeting-sync/internal/handlers"
	"github.com/zoneclock/meeting-sync/internal/locations"
	"github.com/zoneclock/meeting-sync/internal/models"
	"github.com/zoneclock/meeting-sync/internal/registry"
	"github.com/zoneclock/meeting-sync/internal/server"
	"github.com/zoneclock/meeting-sync/internal/ws"
)

type envelope struct {
	Type      string                `json:"type"`
	MeetingID string                `json:"meetingId,omitempty"`
	Meeting   *models.MeetingRecord `json:"meeting,omitempty"`
	Message   string                `json:"message,omitempty"`
}

func newService(t *testing.T) *httptest.Server {
	t.Helper()

	hub := ws.NewHub(ws.Config{})
	reg := registry.New(hub)
	hub.SetSource(reg)
	go hub.Run()
	t.Cleanup(func() { hub.Shutdown(time.Second) })

	h := &handlers.Handlers{
		Registry:     reg,
		Catalog:      locations.NewCatalog(),
		ShareURLBase: "http://zoneclock.test",
	}
	ts := httptest.NewServer(server.NewRouter(h, hub))
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode: %v", err)
	}
	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func patchJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode: %v", err)
	}
	req, err := http.NewRequest(http.MethodPatch, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PATCH %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func dialAndJoin(t *testing.T, httpURL, meetingID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := conn.WriteJSON(envelope{Type: "join", MeetingID: meetingID}); err != nil {
		t.Fatalf("join: %v", err)
	}
	env := readEnvelope(t, conn)
	if env.Type != "meeting-data" {
		t.Fatalf("join response type = %q, want meeting-data", env.Type)
	}
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	return env
}

// TestCollaborativeEditingScenario exercises the full flow: a meeting
// created over REST, two duplex subscribers, a title update from one of
// them, and a privacy change over REST that both subscribers observe.
func TestCollaborativeEditingScenario(t *testing.T) {
	ts := newService(t)

	confirmed := false
	record := models.MeetingRecord{
		ID:    "m1",
		Title: "Planning",
		Participants: []models.Participant{
			{ID: "p1", Name: "Ana", ConfirmedAttendance: &confirmed},
		},
	}
	if resp := postJSON(t, ts.URL+"/api/meetings", record); resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}

	connA := dialAndJoin(t, ts.URL, "m1")
	connB := dialAndJoin(t, ts.URL, "m1")

	// Connection A renames the meeting over the duplex channel.
	record.Title = "Sync"
	if err := connA.WriteJSON(envelope{Type: "update", MeetingID: "m1", Meeting: &record}); err != nil {
		t.Fatalf("update: %v", err)
	}
	for _, conn := range []*websocket.Conn{connA, connB} {
		env := readEnvelope(t, conn)
		if env.Type != "meeting-update" || env.Meeting == nil || env.Meeting.Title != "Sync" {
			t.Fatalf("update envelope = %+v, want meeting-update with title Sync", env)
		}
	}

	// A privacy change over REST reaches both duplex subscribers.
	resp := patchJSON(t, ts.URL+"/api/meetings/m1/privacy", map[string]bool{"hideParticipantNames": true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("privacy patch status = %d", resp.StatusCode)
	}
	for _, conn := range []*websocket.Conn{connA, connB} {
		env := readEnvelope(t, conn)
		if env.Type != "meeting-update" {
			t.Fatalf("privacy broadcast type = %q", env.Type)
		}
		ps := env.Meeting.PrivacySettings
		if ps == nil || !ps.HideParticipantNames {
			t.Errorf("hideParticipantNames not broadcast: %+v", ps)
		}
		if ps != nil && ps.HideParticipantLocations {
			t.Errorf("hideParticipantLocations changed unexpectedly: %+v", ps)
		}
	}

	// Attendance patched over REST is also fanned out.
	resp = patchJSON(t, ts.URL+"/api/meetings/m1/participants/p1/attendance", map[string]bool{"confirmedAttendance": true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("attendance patch status = %d", resp.StatusCode)
	}
	for _, conn := range []*websocket.Conn{connA, connB} {
		env := readEnvelope(t, conn)
		p := env.Meeting.Participants[0]
		if p.ConfirmedAttendance == nil || !*p.ConfirmedAttendance {
			t.Errorf("attendance broadcast = %+v", p)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newService(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/meetings", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing Access-Control-Allow-Origin header")
	}
}

func TestUnknownRoute(t *testing.T) {
	ts := newService(t)

	resp, err := http.Get(ts.URL + "/api/nope")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
