package store

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
)

type testDoc struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// --- Insert / Get ---

func TestInsertGet_RoundTrip(t *testing.T) {
	s := testStore(t)

	if err := s.Insert(Proposals, "p-1", testDoc{Name: "tighten retries", Score: 7}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	var got testDoc
	version, err := s.Get(Proposals, "p-1", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if version != 1 {
		t.Errorf("version = %d, want 1", version)
	}
	if got.Name != "tighten retries" || got.Score != 7 {
		t.Errorf("Get = %+v, want original document", got)
	}
}

func TestInsert_DuplicateIDRejected(t *testing.T) {
	s := testStore(t)

	if err := s.Insert(Decisions, "adr-1", testDoc{Name: "x"}); err != nil {
		t.Fatalf("first Insert: %v", err)
	}
	err := s.Insert(Decisions, "adr-1", testDoc{Name: "y"})
	if !errors.Is(err, ErrExists) {
		t.Errorf("duplicate Insert error = %v, want ErrExists", err)
	}
}

func TestGet_UnknownIDIsNotFound(t *testing.T) {
	s := testStore(t)

	_, err := s.Get(Pipelines, "missing", &testDoc{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing error = %v, want ErrNotFound", err)
	}
}

func TestCollections_AreIndependentKeyspaces(t *testing.T) {
	s := testStore(t)

	if err := s.Insert(Proposals, "same-id", testDoc{Name: "proposal"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(Decisions, "same-id", testDoc{Name: "decision"}); err != nil {
		t.Fatalf("same id in another collection: %v", err)
	}

	var got testDoc
	if _, err := s.Get(Decisions, "same-id", &got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "decision" {
		t.Errorf("Get from decisions = %q, want decision", got.Name)
	}
}

// --- Update (optimistic versioning) ---

func TestUpdate_IncrementsVersion(t *testing.T) {
	s := testStore(t)

	if err := s.Insert(Pipelines, "pl-1", testDoc{Score: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(Pipelines, "pl-1", 1, testDoc{Score: 2}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	var got testDoc
	version, err := s.Get(Pipelines, "pl-1", &got)
	if err != nil {
		t.Fatal(err)
	}
	if version != 2 {
		t.Errorf("version after update = %d, want 2", version)
	}
	if got.Score != 2 {
		t.Errorf("Score = %d, want 2", got.Score)
	}
}

func TestUpdate_StaleVersionRejected(t *testing.T) {
	s := testStore(t)

	if err := s.Insert(Pipelines, "pl-1", testDoc{Score: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(Pipelines, "pl-1", 1, testDoc{Score: 2}); err != nil {
		t.Fatal(err)
	}

	// Second writer still holds version 1.
	err := s.Update(Pipelines, "pl-1", 1, testDoc{Score: 99})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("stale Update error = %v, want ErrConflict", err)
	}

	var got testDoc
	if _, err := s.Get(Pipelines, "pl-1", &got); err != nil {
		t.Fatal(err)
	}
	if got.Score != 2 {
		t.Errorf("Score after rejected write = %d, want 2", got.Score)
	}
}

func TestUpdate_UnknownIDIsNotFound(t *testing.T) {
	s := testStore(t)

	err := s.Update(Pipelines, "ghost", 1, testDoc{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update missing error = %v, want ErrNotFound", err)
	}
}

// --- List / ListWhere ---

func TestList_OrderedByID(t *testing.T) {
	s := testStore(t)

	for _, id := range []string{"c", "a", "b"} {
		if err := s.Insert(Findings, id, testDoc{Name: id}); err != nil {
			t.Fatal(err)
		}
	}

	docs, err := s.List(Findings)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("List returned %d docs, want 3", len(docs))
	}
	for i, want := range []string{"a", "b", "c"} {
		if docs[i].ID != want {
			t.Errorf("docs[%d].ID = %s, want %s", i, docs[i].ID, want)
		}
	}
}

func TestListWhere_FiltersOnDocumentContent(t *testing.T) {
	s := testStore(t)

	if err := s.Insert(Proposals, "p-1", testDoc{Name: "alpha", Score: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(Proposals, "p-2", testDoc{Name: "beta", Score: 9}); err != nil {
		t.Fatal(err)
	}

	docs, err := s.ListWhere(Proposals, func(raw json.RawMessage) bool {
		var d testDoc
		if err := json.Unmarshal(raw, &d); err != nil {
			return false
		}
		return d.Score > 5
	})
	if err != nil {
		t.Fatalf("ListWhere: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "p-2" {
		t.Errorf("ListWhere = %v, want just p-2", docs)
	}
}

func TestList_EmptyCollection(t *testing.T) {
	s := testStore(t)

	docs, err := s.List(Scorecards)
	if err != nil {
		t.Fatalf("List empty: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("List empty = %d docs, want 0", len(docs))
	}
}

// --- Concurrency smoke ---

func TestConcurrentDistinctKeys(t *testing.T) {
	s := testStore(t)

	var wg sync.WaitGroup
	errCh := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := "doc-" + strings.Repeat("x", n%3) + string(rune('a'+n))
			if err := s.Insert(Findings, id, testDoc{Score: n}); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("concurrent insert: %v", err)
	}

	n, err := s.Count(Findings)
	if err != nil {
		t.Fatal(err)
	}
	if n != 20 {
		t.Errorf("Count = %d, want 20", n)
	}
}
