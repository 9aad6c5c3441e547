package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestCatalog(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := New("test-key", server.URL, "en-US")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client
}

func TestSearchMovieSendsFilters(t *testing.T) {
	client := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/movie" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		query := r.URL.Query()
		if query.Get("query") != "Alien" {
			t.Errorf("unexpected query %q", query.Get("query"))
		}
		if query.Get("primary_release_year") != "1979" {
			t.Errorf("unexpected year filter %q", query.Get("primary_release_year"))
		}
		if query.Get("api_key") != "test-key" {
			t.Errorf("missing api key")
		}
		if query.Get("language") != "en-US" {
			t.Errorf("missing language")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"page":1,"results":[{"id":348,"title":"Alien","release_date":"1979-05-25"}],"total_results":1}`))
	})

	resp, err := client.SearchMovie(context.Background(), "Alien", SearchOptions{Year: 1979})
	if err != nil {
		t.Fatalf("SearchMovie failed: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != 348 {
		t.Fatalf("unexpected results: %+v", resp.Results)
	}
	if resp.Results[0].Year() != 1979 {
		t.Fatalf("expected year 1979, got %d", resp.Results[0].Year())
	}
}

func TestSearchMovieRejectsEmptyQuery(t *testing.T) {
	client := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called")
	})
	if _, err := client.SearchMovie(context.Background(), "  ", SearchOptions{}); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestSearchMovieReportsStatus(t *testing.T) {
	client := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	if _, err := client.SearchMovie(context.Background(), "Alien", SearchOptions{}); err == nil {
		t.Fatal("expected error for 429 response")
	}
}

func TestCastNames(t *testing.T) {
	client := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/603/credits" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":603,"cast":[{"id":6384,"name":"Keanu Reeves","order":0},{"id":2975,"name":"Laurence Fishburne","order":1}]}`))
	})

	names, err := client.CastNames(context.Background(), "movie", 603)
	if err != nil {
		t.Fatalf("CastNames failed: %v", err)
	}
	if len(names) != 2 || names[0] != "Keanu Reeves" {
		t.Fatalf("unexpected cast: %v", names)
	}
}

func TestAvailabilityDedupesAcrossGroups(t *testing.T) {
	client := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/603/watch/providers" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":{"US":{"flatrate":[{"provider_name":"Netflix"}],"rent":[{"provider_name":"Netflix"},{"provider_name":"Apple TV"}]}}}`))
	})

	services, err := client.Availability(context.Background(), "movie", 603, "us")
	if err != nil {
		t.Fatalf("Availability failed: %v", err)
	}
	if len(services) != 2 || services[0] != "Netflix" || services[1] != "Apple TV" {
		t.Fatalf("unexpected services: %v", services)
	}
}

func TestSearchPersonPicksMostPopular(t *testing.T) {
	client := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/person" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"id":1,"name":"Tom Hardy","popularity":12.5},{"id":2,"name":"Tom Hardy","popularity":48.0}]}`))
	})

	person, err := client.SearchPerson(context.Background(), "Tom Hardy")
	if err != nil {
		t.Fatalf("SearchPerson failed: %v", err)
	}
	if person == nil || person.ID != 2 {
		t.Fatalf("expected most popular match, got %+v", person)
	}
}

func TestDiscoverByCastJoinsIDs(t *testing.T) {
	client := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/discover/movie" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("with_cast"); got != "6384,2975" {
			t.Errorf("unexpected with_cast %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"id":603,"title":"The Matrix","release_date":"1999-03-30"}]}`))
	})

	resp, err := client.DiscoverByCast(context.Background(), []int64{6384, 2975})
	if err != nil {
		t.Fatalf("DiscoverByCast failed: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].DisplayTitle() != "The Matrix" {
		t.Fatalf("unexpected results: %+v", resp.Results)
	}
}
