package imagehost

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"restrobook/config"
	"restrobook/pkg/logger"
)

func TestUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.FormValue("upload_preset"); got != "menu_preset" {
			t.Errorf("preset = %q", got)
		}
		f, fh, err := r.FormFile("file")
		if err != nil {
			t.Errorf("file: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if fh.Filename != "naan.jpg" || string(data) != "jpeg-bytes" {
			t.Errorf("got %s = %q", fh.Filename, data)
		}
		w.Write([]byte(`{"secure_url":"https://cdn.example/naan.jpg"}`))
	}))
	defer srv.Close()

	c := New(config.Config{ImageUploadURL: srv.URL, ImageUploadPreset: "menu_preset"}, logger.NewNop())
	url, err := c.Upload(context.Background(), "naan.jpg", strings.NewReader("jpeg-bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "https://cdn.example/naan.jpg" {
		t.Fatalf("url = %s", url)
	}
}

func TestUploadRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Upload preset not found"}}`))
	}))
	defer srv.Close()

	c := New(config.Config{ImageUploadURL: srv.URL}, logger.NewNop())
	_, err := c.Upload(context.Background(), "x.png", strings.NewReader("x"))
	if err == nil || !strings.Contains(err.Error(), "Upload preset not found") {
		t.Fatalf("err = %v", err)
	}
}

func TestUploadNotConfigured(t *testing.T) {
	c := New(config.Config{}, logger.NewNop())
	if _, err := c.Upload(context.Background(), "x.png", strings.NewReader("x")); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v", err)
	}
}
