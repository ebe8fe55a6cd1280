package match

import (
	"strings"
	"testing"
)

func FuzzMatch(f *testing.F) {
	f.Add("Widget", "Widget Pro")
	f.Add("c++ (v2)", "buy C++ (v2) now")
	f.Add("  ", "anything")
	f.Add("[a-z]*", "abc")

	f.Fuzz(func(t *testing.T, product, text string) {
		m := Compile(product)
		if Normalize(product) == "" {
			if m != nil {
				t.Fatal("empty query compiled to a matcher")
			}
			return
		}
		got := m.Match(text)
		// A match always means the normalized query occurs in the text.
		if got && !strings.Contains(Normalize(text), Normalize(product)) {
			t.Fatalf("Match(%q, %q) = true without containment", product, text)
		}
		if Normalize(text) == Normalize(product) && !got {
			t.Fatalf("Match(%q, %q) = false on equal text", product, text)
		}
	})
}
