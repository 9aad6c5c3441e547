package transcriber

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{Enabled: true, BaseURL: server.URL})
}

func TestTranscribe(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/transcribe" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"text":"I am serious. And don't call me Shirley.","lines":["I am serious.","And don't call me Shirley."],"language":"en"}`))
	})

	transcript, err := client.Transcribe(context.Background(), "clip-7")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if transcript.Empty() || len(transcript.Lines) != 2 {
		t.Fatalf("unexpected transcript: %+v", transcript)
	}
}

func TestSemanticMatches(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embed/match" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["limit"].(float64) != 5 {
			t.Errorf("expected default limit 5, got %v", body["limit"])
		}
		_, _ = w.Write([]byte(`{"matches":[{"title":"Airplane!","year":1980,"tmdb_id":813,"similarity":0.91}]}`))
	})

	matches, err := client.SemanticMatches(context.Background(), "don't call me Shirley", 0)
	if err != nil {
		t.Fatalf("SemanticMatches failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Similarity != 0.91 {
		t.Fatalf("unexpected matches: %+v", matches)
	}
}

func TestSemanticMatchesSkipsEmptyTranscript(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called")
	})
	matches, err := client.SemanticMatches(context.Background(), "   ", 5)
	if err != nil || matches != nil {
		t.Fatalf("expected silent skip, got %v / %v", matches, err)
	}
}

func TestUnconfiguredClientErrors(t *testing.T) {
	client := New(Config{Enabled: false, BaseURL: "http://localhost:1"})
	if _, err := client.Transcribe(context.Background(), "clip-7"); err == nil {
		t.Fatal("expected error from disabled client")
	}
}
