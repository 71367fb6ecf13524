package domain

import "testing"

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Categorical Imperative", "categorical-imperative"},
		{"  Begriffsschrift  ", "begriffsschrift"},
		{"Hume's Fork", "hume-s-fork"},
		{"a -- b", "a-b"},
		{"Dasein!!!", "dasein"},
		{"Ship of Theseus (paradox)", "ship-of-theseus-paradox"},
		{"---", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := Slugify(c.in); got != c.want {
			t.Fatalf("Slugify(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestValidBranchType(t *testing.T) {
	for _, bt := range BranchTypes() {
		if !ValidBranchType(bt) {
			t.Fatalf("ValidBranchType(%q) = false", bt)
		}
	}
	if ValidBranchType("skeptical") {
		t.Fatalf("ValidBranchType accepted unknown type")
	}
	if ValidBranchType("") {
		t.Fatalf("ValidBranchType accepted empty type")
	}
}
