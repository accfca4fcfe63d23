package codeforces

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return &Client{baseURL: srv.URL, httpClient: srv.Client()}, srv
}

func TestUpcomingContests_FilterSortTruncate(t *testing.T) {
	body := `{"status":"OK","result":[
		{"id":100,"name":"Old Round","phase":"FINISHED","startTimeSeconds":1000,"durationSeconds":7200},
		{"id":103,"name":"Round C","phase":"BEFORE","startTimeSeconds":5000,"durationSeconds":7200},
		{"id":101,"name":"Round A","phase":"BEFORE","startTimeSeconds":3000,"durationSeconds":7200},
		{"id":102,"name":"Round B","phase":"BEFORE","startTimeSeconds":4000,"durationSeconds":7200}
	]}`
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("gym") != "false" {
			t.Errorf("expected gym=false, got query %q", r.URL.RawQuery)
		}
		fmt.Fprint(w, body)
	})
	defer srv.Close()

	contests, err := c.UpcomingContests(context.Background())
	if err != nil {
		t.Fatalf("upcoming: %v", err)
	}
	if len(contests) != 3 {
		t.Fatalf("expected 3 contests, got %d", len(contests))
	}
	for i, want := range []int64{101, 102, 103} {
		if contests[i].ID != want {
			t.Fatalf("position %d: expected id %d, got %d", i, want, contests[i].ID)
		}
	}
}

func TestUpcomingContests_Truncates(t *testing.T) {
	body := `{"status":"OK","result":[`
	for i := 0; i < 15; i++ {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf(`{"id":%d,"name":"Round %d","phase":"BEFORE","startTimeSeconds":%d,"durationSeconds":7200}`, i+1, i+1, 1000+i)
	}
	body += `]}`
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	})
	defer srv.Close()

	contests, err := c.UpcomingContests(context.Background())
	if err != nil {
		t.Fatalf("upcoming: %v", err)
	}
	if len(contests) != maxUpcoming {
		t.Fatalf("expected %d contests, got %d", maxUpcoming, len(contests))
	}
}

func TestUpcomingContests_Errors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"http status": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
		"api status": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":"FAILED","comment":"gym: invalid"}`)
		},
		"bad json": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":"OK","result":`)
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			c, srv := newTestClient(handler)
			defer srv.Close()
			if _, err := c.UpcomingContests(context.Background()); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}
