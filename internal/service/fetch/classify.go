package fetch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/kapu/game-metadata-sync-go/internal/domain"
	"github.com/kapu/game-metadata-sync-go/internal/util"
)

// challengePageMaxBytes bounds the body scan. Real listing pages are large and
// may mention "blocked" in ordinary text; interstitials are small.
const challengePageMaxBytes = 16 << 10

var titleTag = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// Markers are lowercase substrings that identify defense pages.
type Markers struct {
	Block     []string
	Captcha   []string
	RateLimit []string
}

func DefaultMarkers() Markers {
	return Markers{
		Block: []string{
			"access denied",
			"you have been blocked",
			"blocked",
			"request unsuccessful",
		},
		Captcha: []string{
			"checking your browser",
			"captcha",
			"are you a robot",
			"verify you are human",
			"just a moment",
		},
		RateLimit: []string{
			"too many requests",
			"rate limit",
		},
	}
}

// Classify maps a fetch result to the shared taxonomy.
func (m Markers) Classify(resp *Response, err error) domain.Classification {
	if err != nil {
		return classifyTransportError(err)
	}
	if resp == nil {
		return domain.ClassNetworkError
	}

	switch status := resp.Status; {
	case status == http.StatusNotFound || status == http.StatusGone:
		return domain.ClassNotFound
	case status == http.StatusTooManyRequests:
		return domain.ClassRateLimited
	case status == http.StatusForbidden:
		if util.ContainsFold(defenseHaystack(resp.Body), m.Captcha...) {
			return domain.ClassCaptchaSuspected
		}
		return domain.ClassBlocked
	case status >= http.StatusInternalServerError:
		return domain.ClassNetworkError
	case status >= http.StatusBadRequest:
		return domain.ClassNotFound
	}

	if len(strings.TrimSpace(string(resp.Body))) == 0 {
		return domain.ClassMalformedContent
	}

	haystack := defenseHaystack(resp.Body)
	switch {
	case util.ContainsFold(haystack, m.Captcha...):
		return domain.ClassCaptchaSuspected
	case util.ContainsFold(haystack, m.RateLimit...):
		return domain.ClassRateLimited
	case util.ContainsFold(haystack, m.Block...):
		return domain.ClassBlocked
	}

	return domain.ClassSuccess
}

func classifyTransportError(err error) domain.Classification {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.ClassTimeout
	}
	return domain.ClassNetworkError
}

// defenseHaystack is the page title plus the whole body for small pages.
func defenseHaystack(body []byte) string {
	var b strings.Builder
	if m := titleTag.FindSubmatch(body); m != nil {
		b.Write(m[1])
		b.WriteByte(' ')
	}
	if len(body) <= challengePageMaxBytes {
		b.Write(body)
	}
	return strings.ToLower(b.String())
}
