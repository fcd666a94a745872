package recognize

import (
	"context"
	"errors"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testCrop() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 32, 32))
}

func TestClient_Extract(t *testing.T) {
	var gotContentType string
	var gotBodyLen int

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/extract", func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBodyLen = len(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages": [
			{"sender": "Kim", "original_text": "안녕", "translated_text": "Hi", "side": "other"},
			{"sender": "me", "original_text": "ㅎㅇ", "translated_text": "hey", "side": "self"}
		]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	cands, err := c.Extract(context.Background(), testCrop())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if gotContentType != "image/png" {
		t.Errorf("expected image/png request, got %q", gotContentType)
	}
	if gotBodyLen == 0 {
		t.Error("expected PNG payload in request body")
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(cands))
	}
	if cands[0].Sender != "Kim" || cands[0].TranslatedText != "Hi" {
		t.Errorf("unexpected first candidate: %+v", cands[0])
	}
	if cands[1].Side != "self" {
		t.Errorf("side hint lost: %+v", cands[1])
	}
}

func TestClient_ExtractServiceError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/extract", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error": "no text detected"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.Extract(context.Background(), testCrop())
	if !errors.Is(err, ErrRecognitionFailed) {
		t.Fatalf("expected ErrRecognitionFailed, got %v", err)
	}
}

func TestClient_ExtractBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	if _, err := c.Extract(context.Background(), testCrop()); !errors.Is(err, ErrRecognitionFailed) {
		t.Errorf("expected ErrRecognitionFailed, got %v", err)
	}
}

func TestClient_ServiceDown(t *testing.T) {
	srv := httptest.NewServer(http.NewServeMux())
	srv.Close()

	c := NewClient(srv.URL, nil)
	if _, err := c.Extract(context.Background(), testCrop()); !errors.Is(err, ErrRecognitionFailed) {
		t.Errorf("expected ErrRecognitionFailed, got %v", err)
	}
	if err := c.Probe(context.Background()); err == nil {
		t.Error("expected probe failure against closed service")
	}
}
