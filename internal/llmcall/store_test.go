package llmcall

import (
	"fmt"
	"testing"
)

func TestStore_RingOverwritesOldest(t *testing.T) {
	s := NewStore(3)
	for i := 0; i < 5; i++ {
		s.Add(&Call{ID: fmt.Sprintf("c%d", i), PromptKey: "chart", Success: i%2 == 0})
	}

	calls := s.List(QueryFilter{})
	if len(calls) != 3 {
		t.Fatalf("len = %d, want 3", len(calls))
	}
	for i, want := range []string{"c4", "c3", "c2"} {
		if calls[i].ID != want {
			t.Errorf("calls[%d].ID = %s, want %s", i, calls[i].ID, want)
		}
	}
}

func TestStore_Filters(t *testing.T) {
	s := NewStore(10)
	s.Add(&Call{ID: "a", JobID: "j1", PromptKey: "chart", Success: true})
	s.Add(&Call{ID: "b", JobID: "j1", PromptKey: "summary", Success: false})
	s.Add(&Call{ID: "c", JobID: "j2", PromptKey: "chart", Success: true})
	s.Add(nil)

	if got := s.List(QueryFilter{JobID: "j1"}); len(got) != 2 {
		t.Errorf("JobID filter returned %d", len(got))
	}
	failed := false
	if got := s.List(QueryFilter{Success: &failed}); len(got) != 1 || got[0].ID != "b" {
		t.Errorf("Success filter returned %+v", got)
	}
	if got := s.List(QueryFilter{PromptKey: "chart", Limit: 1}); len(got) != 1 || got[0].ID != "c" {
		t.Errorf("Limit returned %+v", got)
	}

	counts := s.CountByPromptKey("j1")
	if counts["chart"] != 1 || counts["summary"] != 1 {
		t.Errorf("CountByPromptKey = %v", counts)
	}
}
