package mediastore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "media.db"))
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestCreateIfAbsentAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateIfAbsent(ctx, &MediaRecord{
		Title:    "The Matrix",
		Year:     1999,
		TMDBID:   603,
		Overview: "A hacker discovers reality is simulated.",
	})
	if err != nil {
		t.Fatalf("CreateIfAbsent failed: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned row id")
	}
	if created.MediaType != "movie" {
		t.Fatalf("expected default media type movie, got %q", created.MediaType)
	}

	fetched, err := store.GetByTMDBID(ctx, 603)
	if err != nil {
		t.Fatalf("GetByTMDBID failed: %v", err)
	}
	if fetched == nil || fetched.ID != created.ID {
		t.Fatalf("expected stored record %d, got %+v", created.ID, fetched)
	}
}

func TestCreateIfAbsentConcurrentConvergesOnOneRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const writers = 8
	ids := make([]int64, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			record, err := store.CreateIfAbsent(ctx, &MediaRecord{
				Title:  "Inception",
				Year:   2010,
				TMDBID: 27205,
			})
			if err != nil {
				t.Errorf("writer %d: %v", slot, err)
				return
			}
			ids[slot] = record.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < writers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("writers diverged: ids %v", ids)
		}
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.MediaRecords != 1 {
		t.Fatalf("expected 1 media record, got %d", stats.MediaRecords)
	}
}

func TestResolveMatchOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seed := []MediaRecord{
		{Title: "Blade Runner", Year: 1982, TMDBID: 78},
		{Title: "Blade Runner 2049", Year: 2017, TMDBID: 335984},
		{Title: "Alien: Covenant", Year: 2017, TMDBID: 126889},
	}
	for i := range seed {
		if _, err := store.CreateIfAbsent(ctx, &seed[i]); err != nil {
			t.Fatalf("seed %q: %v", seed[i].Title, err)
		}
	}

	tests := []struct {
		name      string
		title     string
		year      int
		wantTMDB  int64
		wantMiss  bool
	}{
		{name: "exact title and year", title: "Blade Runner", year: 1982, wantTMDB: 78},
		{name: "exact title ignores case and punctuation", title: "blade runner!", year: 1982, wantTMDB: 78},
		{name: "year disambiguates partial overlap", title: "Blade Runner", year: 2017, wantTMDB: 335984},
		{name: "partial match falls back to first", title: "Runner", year: 0, wantTMDB: 78},
		{name: "normalized subtitle strip", title: "Alien", year: 2017, wantTMDB: 126889},
		{name: "unknown title misses", title: "Stalker", year: 1979, wantMiss: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := store.Resolve(ctx, tt.title, tt.year)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if tt.wantMiss {
				if record != nil {
					t.Fatalf("expected miss, got %q", record.Title)
				}
				return
			}
			if record == nil {
				t.Fatalf("expected match for %q", tt.title)
			}
			if record.TMDBID != tt.wantTMDB {
				t.Fatalf("expected tmdb %d, got %d (%q)", tt.wantTMDB, record.TMDBID, record.Title)
			}
		})
	}
}

func TestResolveIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateIfAbsent(ctx, &MediaRecord{Title: "Heat", Year: 1995, TMDBID: 949}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	first, err := store.Resolve(ctx, "Heat", 1995)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := store.Resolve(ctx, "Heat", 1995)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if first == nil || second == nil || first.ID != second.ID {
		t.Fatalf("resolve not idempotent: %+v vs %+v", first, second)
	}
}

func TestArtifactFreshness(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record, err := store.CreateIfAbsent(ctx, &MediaRecord{Title: "Ran", Year: 1985, TMDBID: 11645})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if record.CastFresh(time.Hour) {
		t.Fatal("cast should be stale before first fetch")
	}

	if err := store.UpdateCast(ctx, record.ID, []string{"Tatsuya Nakadai", "Akira Terao"}); err != nil {
		t.Fatalf("UpdateCast failed: %v", err)
	}
	refreshed, err := store.GetByID(ctx, record.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !refreshed.CastFresh(time.Hour) {
		t.Fatal("cast should be fresh after update")
	}
	cast := refreshed.Cast()
	if len(cast) != 2 || cast[0] != "Tatsuya Nakadai" {
		t.Fatalf("unexpected cast: %v", cast)
	}

	if err := store.UpdateCast(ctx, 9999, []string{"nobody"}); err == nil {
		t.Fatal("expected error updating missing record")
	}
}

func TestSimilarAndAvailabilityArtifacts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record, err := store.CreateIfAbsent(ctx, &MediaRecord{Title: "Heat", Year: 1995, TMDBID: 949})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if record.SimilarFresh(time.Hour) || record.AvailabilityFresh(time.Hour) {
		t.Fatal("artifacts should be stale before first fetch")
	}

	if err := store.UpdateSimilar(ctx, record.ID, []string{"Collateral", "Ronin"}); err != nil {
		t.Fatalf("UpdateSimilar failed: %v", err)
	}
	if err := store.UpdateAvailability(ctx, record.ID, []string{"Streamflix"}); err != nil {
		t.Fatalf("UpdateAvailability failed: %v", err)
	}

	refreshed, err := store.GetByID(ctx, record.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if similar := refreshed.SimilarTitles(); len(similar) != 2 || similar[1] != "Ronin" {
		t.Fatalf("unexpected similar titles: %v", similar)
	}
	if availability := refreshed.Availability(); len(availability) != 1 || availability[0] != "Streamflix" {
		t.Fatalf("unexpected availability: %v", availability)
	}
	if !refreshed.SimilarFresh(time.Hour) || !refreshed.AvailabilityFresh(time.Hour) {
		t.Fatal("artifacts should be fresh after update")
	}
	if !refreshed.SimilarFresh(0) {
		t.Fatal("zero TTL keeps a fetched artifact fresh")
	}

	if err := store.UpdateSimilar(ctx, 9999, nil); err == nil {
		t.Fatal("expected error updating missing record")
	}
}

func TestSearchDialogue(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record, err := store.CreateIfAbsent(ctx, &MediaRecord{Title: "Casablanca", Year: 1942, TMDBID: 289})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	lines := []string{
		"Here's looking at you, kid.",
		"We'll always have Paris.",
	}
	if err := store.AddSubtitleLines(ctx, record.ID, lines); err != nil {
		t.Fatalf("AddSubtitleLines failed: %v", err)
	}

	exact, err := store.SearchDialogue(ctx, "Here's looking at you, kid.", 5)
	if err != nil {
		t.Fatalf("SearchDialogue failed: %v", err)
	}
	if len(exact) != 1 || !exact[0].Exact || exact[0].TMDBID != 289 {
		t.Fatalf("unexpected exact matches: %+v", exact)
	}

	partial, err := store.SearchDialogue(ctx, "always have Paris", 5)
	if err != nil {
		t.Fatalf("SearchDialogue partial failed: %v", err)
	}
	if len(partial) != 1 || partial[0].Exact {
		t.Fatalf("unexpected partial matches: %+v", partial)
	}

	none, err := store.SearchDialogue(ctx, "round up the usual suspects", 5)
	if err != nil {
		t.Fatalf("SearchDialogue miss failed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no matches, got %+v", none)
	}
}

func TestRecordAuditAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record, err := store.CreateIfAbsent(ctx, &MediaRecord{Title: "Seven", Year: 1995, TMDBID: 807})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	entry := AuditEntry{
		RequestID:     "req-123",
		MediaRecordID: record.ID,
		Outcome:       "accepted",
		Confidence:    0.87,
		SignalKinds:   []string{"dialogue_text", "visual"},
		Explanation:   "dialogue corpus exact hit",
	}
	if err := store.RecordAudit(ctx, entry); err != nil {
		t.Fatalf("RecordAudit failed: %v", err)
	}

	entries, err := store.RecentAudits(ctx, 10)
	if err != nil {
		t.Fatalf("RecentAudits failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(entries))
	}
	got := entries[0]
	if got.RequestID != "req-123" || got.Outcome != "accepted" {
		t.Fatalf("unexpected audit row: %+v", got)
	}
	if len(got.SignalKinds) != 2 || got.SignalKinds[1] != "visual" {
		t.Fatalf("unexpected signal kinds: %v", got.SignalKinds)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("expected created_at to round-trip")
	}

	if err := store.RecordAudit(ctx, AuditEntry{}); err == nil {
		t.Fatal("expected error for missing request id")
	}
}

func TestKnown(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if store.Known(ctx, "Solaris", 1972, 0) {
		t.Fatal("empty store should not know anything")
	}
	if _, err := store.CreateIfAbsent(ctx, &MediaRecord{Title: "Solaris", Year: 1972, TMDBID: 593}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !store.Known(ctx, "", 0, 593) {
		t.Fatal("expected known by external id")
	}
	if !store.Known(ctx, "Solaris", 1972, 0) {
		t.Fatal("expected known by title")
	}
}
