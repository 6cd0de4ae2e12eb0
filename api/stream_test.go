package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"restrobook/pkg/models"
)

type sseEvent struct {
	name, data string
}

// readEvents parses the stream into events until the body ends.
func readEvents(body *bufio.Reader) <-chan sseEvent {
	out := make(chan sseEvent)
	go func() {
		defer close(out)
		var ev sseEvent
		for {
			line, err := body.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\r\n")
			switch {
			case line == "":
				if ev.name != "" {
					out <- ev
				}
				ev = sseEvent{}
			case strings.HasPrefix(line, "event:"):
				ev.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				ev.data += strings.TrimPrefix(line, "data:")
			}
		}
	}()
	return out
}

func nextEvent(t *testing.T, events <-chan sseEvent) sseEvent {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatalf("stream closed")
		}
		return ev
	case <-time.After(3 * time.Second):
		t.Fatalf("no event within 3s")
	}
	return sseEvent{}
}

func openStream(t *testing.T, ctx context.Context, url string, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stream status = %d", resp.StatusCode)
	}
	return resp
}

func TestOrderStreamPushesTransitions(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.engine)
	defer ts.Close()

	order := decode[models.Order](t, srv.device().do(t, http.MethodPost, "/api/tables/4/orders", dinner))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	resp := openStream(t, ctx, ts.URL+"/api/orders/"+order.ID+"/stream")
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %s", ct)
	}
	events := readEvents(bufio.NewReader(resp.Body))

	first := nextEvent(t, events)
	if first.name != "order" || !strings.Contains(first.data, `"status":"live"`) {
		t.Fatalf("first event = %+v", first)
	}

	if _, err := srv.services.Lifecycle().Advance(context.Background(), order.ID, models.StatusLive); err != nil {
		t.Fatal(err)
	}
	second := nextEvent(t, events)
	if second.name != "order" || !strings.Contains(second.data, `"status":"preparing"`) {
		t.Fatalf("second event = %+v", second)
	}

	cancel()
	for range events {
	}
}

func TestTableStreamDropsStaleMarker(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.engine)
	defer ts.Close()

	host := srv.device()
	staff := login(t, srv, models.RoleStaff)
	order := decode[models.Order](t, host.do(t, http.MethodPost, "/api/tables/2/orders", dinner))
	expectStatus(t, staff.do(t, http.MethodPost, "/api/orders/"+order.ID+"/cancel", map[string]bool{"confirm": true}), http.StatusOK)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	resp := openStream(t, ctx, ts.URL+"/api/tables/2/stream", host.cookies["device_id"], host.cookies["table_order_2"])

	var cleared bool
	for _, c := range resp.Cookies() {
		if c.Name == "table_order_2" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("stale marker not cleared, cookies = %v", resp.Cookies())
	}

	events := readEvents(bufio.NewReader(resp.Body))
	ev := nextEvent(t, events)
	if ev.name != "session" || !strings.Contains(ev.data, `"role":"none"`) {
		t.Fatalf("first event = %+v", ev)
	}

	cancel()
	for range events {
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)
	origin := testConfig().PublicURL

	req := httptest.NewRequest(http.MethodOptions, "/api/tables/7/orders", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	w := httptest.NewRecorder()
	srv.engine.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != origin {
		t.Fatalf("allow origin = %q", got)
	}
	if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("credentials not allowed")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/menu", nil)
	req.Header.Set("Origin", "https://evil.test")
	w = httptest.NewRecorder()
	srv.engine.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden || w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("foreign origin: status %d, allow %q", w.Code, w.Header().Get("Access-Control-Allow-Origin"))
	}
}
