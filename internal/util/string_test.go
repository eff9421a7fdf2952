package util

import "testing"

func TestFoldDiacritics(t *testing.T) {
	cases := map[string]string{
		"Pokémon Légendes": "Pokemon Legendes",
		"Ōkami":            "Okami",
		"plain":            "plain",
	}
	for in, want := range cases {
		if got := FoldDiacritics(in); got != want {
			t.Fatalf("FoldDiacritics(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Marvel's Spider-Man 2":            "marvels-spider-man-2",
		"Ratchet & Clank: Rift Apart":      "ratchet-and-clank-rift-apart",
		"  F.E.A.R.  ":                     "fear",
		"Pokémon Scarlet / Violet":         "pokemon-scarlet-violet",
		"The Legend of Zelda: BOTW (2017)": "the-legend-of-zelda-botw-2017",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeKey(t *testing.T) {
	if got := NormalizeKey("  Café   Racer "); got != "cafe racer" {
		t.Fatalf("unexpected key %q", got)
	}
}
