package selection

import (
	"testing"

	"github.com/sebas/distgrid/internal/capability"
)

func chromeStereotype() capability.Stereotype {
	return capability.Stereotype{Capabilities: capability.Capabilities{"browserName": "chrome"}, SlotCount: 1}
}

func edgeStereotype() capability.Stereotype {
	return capability.Stereotype{Capabilities: capability.Capabilities{"browserName": "edge"}, SlotCount: 1}
}

func TestPrefilterEqualBucketsUnchanged(t *testing.T) {
	candidates := []Candidate{
		{ID: "c1", Stereotypes: []capability.Stereotype{chromeStereotype()}},
		{ID: "c2", Stereotypes: []capability.Stereotype{chromeStereotype()}},
		{ID: "e1", Stereotypes: []capability.Stereotype{edgeStereotype()}},
		{ID: "e2", Stereotypes: []capability.Stereotype{edgeStereotype()}},
	}

	got := Prefilter(candidates, "chrome")
	if len(got) != len(candidates) {
		t.Fatalf("expected all %d candidates to survive equal-sized buckets, got %d", len(candidates), len(got))
	}
}

func TestPrefilterExcludesRareBrowser(t *testing.T) {
	candidates := []Candidate{
		{ID: "edge1", Stereotypes: []capability.Stereotype{edgeStereotype()}},
		{ID: "c1", Stereotypes: []capability.Stereotype{chromeStereotype()}},
		{ID: "c2", Stereotypes: []capability.Stereotype{chromeStereotype()}},
		{ID: "c3", Stereotypes: []capability.Stereotype{chromeStereotype()}},
	}

	got := Prefilter(candidates, "chrome")
	for _, c := range got {
		if c.ID == "edge1" {
			t.Fatalf("expected edge1 excluded from a chrome request, got %v", got)
		}
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 chrome candidates, got %d", len(got))
	}
}

func TestPrefilterSelectsRareBrowserForItself(t *testing.T) {
	candidates := []Candidate{
		{ID: "edge1", Stereotypes: []capability.Stereotype{edgeStereotype()}},
		{ID: "c1", Stereotypes: []capability.Stereotype{chromeStereotype()}},
		{ID: "c2", Stereotypes: []capability.Stereotype{chromeStereotype()}},
		{ID: "c3", Stereotypes: []capability.Stereotype{chromeStereotype()}},
	}

	got := Prefilter(candidates, "edge")
	if len(got) != 1 || got[0].ID != "edge1" {
		t.Fatalf("expected only edge1 selected for an edge request, got %v", got)
	}
}

func TestPrefilterIsIdempotent(t *testing.T) {
	candidates := []Candidate{
		{ID: "edge1", Stereotypes: []capability.Stereotype{edgeStereotype()}},
		{ID: "c1", Stereotypes: []capability.Stereotype{chromeStereotype()}},
		{ID: "c2", Stereotypes: []capability.Stereotype{chromeStereotype()}},
	}

	once := Prefilter(candidates, "chrome")
	twice := Prefilter(once, "chrome")

	if len(once) != len(twice) {
		t.Fatalf("prefilter not idempotent: once=%v twice=%v", once, twice)
	}
	ids := make(map[string]bool)
	for _, c := range once {
		ids[c.ID] = true
	}
	for _, c := range twice {
		if !ids[c.ID] {
			t.Fatalf("prefilter not idempotent: twice contains unexpected id %s", c.ID)
		}
	}
}

func TestBestOrdersByLoadThenTimestampThenID(t *testing.T) {
	candidates := []Candidate{
		{ID: "b", Load: 0.5, LastSessionCreatedAt: 10},
		{ID: "a", Load: 0.2, LastSessionCreatedAt: 999},
		{ID: "c", Load: 0.2, LastSessionCreatedAt: 1},
	}

	best, ok := Best(candidates)
	if !ok {
		t.Fatal("expected a winner")
	}
	if best.ID != "c" {
		t.Fatalf("expected c (lowest load, then earliest lastSessionCreatedAt), got %s", best.ID)
	}
}

func TestBestTieBreaksByID(t *testing.T) {
	candidates := []Candidate{
		{ID: "zzz", Load: 0.1, LastSessionCreatedAt: 5},
		{ID: "aaa", Load: 0.1, LastSessionCreatedAt: 5},
	}

	best, ok := Best(candidates)
	if !ok || best.ID != "aaa" {
		t.Fatalf("expected deterministic tie-break on id, got %v", best)
	}
}

func TestBestOnEmptySet(t *testing.T) {
	if _, ok := Best(nil); ok {
		t.Fatal("expected no winner on an empty candidate set")
	}
}
