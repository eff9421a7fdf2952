package provider

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kapu/game-metadata-sync-go/internal/constants"
	"github.com/kapu/game-metadata-sync-go/internal/service/extract"
	"github.com/kapu/game-metadata-sync-go/internal/util"
)

// Provider binds a metadata source's URL layout to its page extractor.
type Provider interface {
	Name() string
	SearchURL(query string) string
	DetailURL(link string) string
	// RefreshURL builds the detail URL for a previously resolved external id.
	RefreshURL(externalID string) string
	// PlatformURL returns a platform-specific detail URL, or "" when the
	// source does not split pages by platform.
	PlatformURL(externalID, platformSlug string) string
	// DirectURL guesses a detail URL from the title alone, or "" when the
	// source has no predictable slugs.
	DirectURL(title string) string
	Extractor() extract.Extractor
}

// New returns the provider registered under name. An empty baseURL uses the default.
func New(name, baseURL string, now func() time.Time) (Provider, error) {
	switch name {
	case constants.ProviderNames.Critic:
		if baseURL == "" {
			baseURL = constants.ProviderURLs.CriticBaseURL
		}
		return &Critic{baseURL: strings.TrimRight(baseURL, "/"), extractor: extract.NewMetacritic(now)}, nil
	case constants.ProviderNames.Completion:
		if baseURL == "" {
			baseURL = constants.ProviderURLs.CompletionBaseURL
		}
		return &Completion{baseURL: strings.TrimRight(baseURL, "/"), extractor: extract.NewHLTB()}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

// Names lists the supported providers.
func Names() []string {
	return []string{constants.ProviderNames.Critic, constants.ProviderNames.Completion}
}

// Critic is the ratings source. Its detail pages live at /game/<slug>/.
type Critic struct {
	baseURL   string
	extractor extract.Extractor
}

func (c *Critic) Name() string { return constants.ProviderNames.Critic }

func (c *Critic) SearchURL(query string) string {
	return fmt.Sprintf("%s/search/%s/?category=13", c.baseURL, url.PathEscape(query))
}

func (c *Critic) DetailURL(link string) string {
	return absolute(c.baseURL, link)
}

func (c *Critic) RefreshURL(externalID string) string {
	if externalID == "" {
		return ""
	}
	return fmt.Sprintf("%s/game/%s/", c.baseURL, externalID)
}

func (c *Critic) PlatformURL(externalID, platformSlug string) string {
	if externalID == "" || platformSlug == "" {
		return ""
	}
	return fmt.Sprintf("%s/game/%s/?platform=%s", c.baseURL, externalID, url.QueryEscape(platformSlug))
}

func (c *Critic) DirectURL(title string) string {
	return c.RefreshURL(Slug(title))
}

func (c *Critic) Extractor() extract.Extractor { return c.extractor }

// Completion is the completion-time source. Detail pages are keyed by numeric id.
type Completion struct {
	baseURL   string
	extractor extract.Extractor
}

func (c *Completion) Name() string { return constants.ProviderNames.Completion }

func (c *Completion) SearchURL(query string) string {
	return fmt.Sprintf("%s/?q=%s", c.baseURL, url.QueryEscape(query))
}

func (c *Completion) DetailURL(link string) string {
	return absolute(c.baseURL, link)
}

func (c *Completion) RefreshURL(externalID string) string {
	if externalID == "" {
		return ""
	}
	return fmt.Sprintf("%s/game/%s", c.baseURL, externalID)
}

func (c *Completion) PlatformURL(string, string) string { return "" }

func (c *Completion) DirectURL(string) string { return "" }

func (c *Completion) Extractor() extract.Extractor { return c.extractor }

// Slug renders a title the way the critic source builds its page paths:
// lowercase ASCII words joined by dashes, with possessive apostrophes dropped.
func Slug(title string) string {
	return util.Slugify(title)
}

func absolute(baseURL, link string) string {
	if link == "" {
		return ""
	}
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	if !strings.HasPrefix(link, "/") {
		link = "/" + link
	}
	return baseURL + link
}
