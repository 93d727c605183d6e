package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"database":"ok","version":"11.0.0"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if err := c.Health(context.Background()); err != nil {
		t.Fatal(err)
	}
	v, err := c.BuildInfo(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v != "11.0.0" {
		t.Fatalf("version = %q", v)
	}
}

func TestPasswordHasBeenChanged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "current" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	changed, err := c.PasswordHasBeenChanged(context.Background(), "admin", "current")
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Fatal("valid credential reported as changed")
	}

	changed, err = c.PasswordHasBeenChanged(context.Background(), "admin", "stale")
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("rejected credential must report changed")
	}
}
