package provider

import (
	"testing"
	"time"
)

func TestNewUnknownProvider(t *testing.T) {
	if _, err := New("steam", "", time.Now); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestCriticURLs(t *testing.T) {
	p, err := New("critic", "https://mc.example/", time.Now)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if got := p.SearchURL("Ratchet & Clank"); got != "https://mc.example/search/Ratchet%20&%20Clank/?category=13" {
		t.Fatalf("unexpected search url %q", got)
	}
	if got := p.DetailURL("/game/halo/"); got != "https://mc.example/game/halo/" {
		t.Fatalf("unexpected detail url %q", got)
	}
	if got := p.DirectURL("Marvel's Spider-Man 2"); got != "https://mc.example/game/marvels-spider-man-2/" {
		t.Fatalf("unexpected direct url %q", got)
	}
	if got := p.PlatformURL("elden-ring", "playstation-4"); got != "https://mc.example/game/elden-ring/?platform=playstation-4" {
		t.Fatalf("unexpected platform url %q", got)
	}
	if p.RefreshURL("") != "" {
		t.Fatalf("empty external id must not build a url")
	}
}

func TestCompletionURLs(t *testing.T) {
	p, err := New("completion", "", time.Now)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if got := p.SearchURL("Hades II"); got != "https://howlongtobeat.com/?q=Hades+II" {
		t.Fatalf("unexpected search url %q", got)
	}
	if got := p.RefreshURL("68151"); got != "https://howlongtobeat.com/game/68151" {
		t.Fatalf("unexpected refresh url %q", got)
	}
	if p.PlatformURL("68151", "pc") != "" || p.DirectURL("Hades") != "" {
		t.Fatalf("completion source has no platform or direct urls")
	}
}
