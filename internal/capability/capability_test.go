package capability

import "testing"

func TestBrowserName(t *testing.T) {
	tests := []struct {
		name string
		caps Capabilities
		want string
	}{
		{"present", Capabilities{"browserName": "chrome"}, "chrome"},
		{"absent", Capabilities{}, ""},
		{"wrong type", Capabilities{"browserName": 42}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.caps.BrowserName(); got != tt.want {
				t.Fatalf("BrowserName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCloneIsIndependent(t *testing.T) {
	original := Capabilities{"browserName": "chrome"}
	clone := original.Clone()
	clone["browserName"] = "firefox"

	if original.BrowserName() != "chrome" {
		t.Fatalf("mutating clone affected original: %v", original)
	}
}

func TestStereotypeMatches(t *testing.T) {
	st := Stereotype{Capabilities: Capabilities{"browserName": "chrome", "platform": "linux"}, SlotCount: 1}

	if !st.Matches(Capabilities{"browserName": "chrome"}) {
		t.Fatal("expected subset match to succeed")
	}
	if st.Matches(Capabilities{"browserName": "edge"}) {
		t.Fatal("expected mismatched browserName to fail")
	}
	if !st.Matches(Capabilities{}) {
		t.Fatal("expected empty request to match any stereotype")
	}
}

func TestStereotypeMatchesNonComparableValues(t *testing.T) {
	st := Stereotype{Capabilities: Capabilities{
		"browserName": "chrome",
		"args":        []any{"--headless"},
	}, SlotCount: 1}

	if !st.Matches(Capabilities{"args": []any{"--headless"}}) {
		t.Fatal("expected deep-equal slice match to succeed without panicking")
	}
	if st.Matches(Capabilities{"args": []any{"--other"}}) {
		// should return false, not panic
		t.Fatal("expected a differing slice not to match")
	}
}
