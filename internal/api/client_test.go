package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jsmonitor/livesync/internal/errors"
	"github.com/jsmonitor/livesync/pkg/status"
)

func newTestAPI(t *testing.T) (*httptest.Server, *string) {
	t.Helper()
	var lastAuth string

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/servers", func(w http.ResponseWriter, r *http.Request) {
			lastAuth = r.Header.Get("Authorization")
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[
				{"id": 7, "title": "Alpha", "ip": "10.0.0.7", "port": 27015,
				 "status": {"online_status": true, "players_now": 3, "players_max": 20, "current_map": "de_dust2"}},
				{"id": 8, "title": "Beta"}
			]`))
		})
		r.Get("/servers/{id}", func(w http.ResponseWriter, r *http.Request) {
			if chi.URLParam(r, "id") != "7" {
				http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(status.Record{ID: 7, Title: "Alpha"})
		})
	})
	r.Get("/broken/servers", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not": "a list"`))
	})
	r.Get("/empty/servers", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`null`))
	})
	r.Get("/slow/servers", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, &lastAuth
}

func TestListServers(t *testing.T) {
	srv, auth := newTestAPI(t)
	c := NewClient(srv.URL+"/api/v1/", WithAPIKey("k1"))

	servers, err := c.ListServers(context.Background())
	if err != nil {
		t.Fatalf("ListServers: %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("len = %d, want 2", len(servers))
	}
	alpha := servers[0]
	if alpha.ID != 7 || alpha.Title != "Alpha" || alpha.Address() != "10.0.0.7:27015" {
		t.Errorf("alpha = %+v", alpha)
	}
	if alpha.Status == nil || !alpha.Status.Online || alpha.Status.Map != "de_dust2" {
		t.Errorf("alpha status = %+v", alpha.Status)
	}
	if servers[1].Status != nil {
		t.Errorf("beta status = %+v, want nil", servers[1].Status)
	}
	if *auth != "Bearer k1" {
		t.Errorf("Authorization = %q", *auth)
	}
}

func TestListServersNull(t *testing.T) {
	srv, _ := newTestAPI(t)
	servers, err := NewClient(srv.URL + "/empty").ListServers(context.Background())
	if err != nil {
		t.Fatalf("ListServers: %v", err)
	}
	if servers == nil || len(servers) != 0 {
		t.Errorf("servers = %#v, want empty collection", servers)
	}
}

func TestGetServer(t *testing.T) {
	srv, _ := newTestAPI(t)
	c := NewClient(srv.URL + "/api/v1")

	r, err := c.GetServer(context.Background(), 7)
	if err != nil || r.Title != "Alpha" {
		t.Fatalf("GetServer(7) = %+v, %v", r, err)
	}

	_, err = c.GetServer(context.Background(), 9)
	if !errors.HasCode(err, "E401") {
		t.Fatalf("GetServer(9) err = %v, want E401", err)
	}
}

func TestListServersErrors(t *testing.T) {
	srv, _ := newTestAPI(t)

	tests := []struct {
		name string
		base string
		opts []Option
		code string
	}{
		{"invalid json", srv.URL + "/broken", nil, "E401"},
		{"not found", srv.URL + "/nothing", nil, "E401"},
		{"timeout", srv.URL + "/slow", []Option{WithTimeout(50 * time.Millisecond)}, "E400"},
		{"unreachable", "http://127.0.0.1:1", nil, "E400"},
		{"bad url", "://bad", nil, "E400"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.base, tt.opts...).ListServers(context.Background())
			if !errors.HasCode(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestListServersCancelledContext(t *testing.T) {
	srv, _ := newTestAPI(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(srv.URL + "/api/v1").ListServers(ctx)
	if !errors.HasCode(err, "E400") {
		t.Fatalf("err = %v, want E400", err)
	}
}

func TestSnippet(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	if got := snippet(long); len(got) != 203 {
		t.Errorf("len(snippet) = %d, want 203", len(got))
	}
	if got := snippet([]byte("  short \n")); got != "short" {
		t.Errorf("snippet = %q", got)
	}
}
