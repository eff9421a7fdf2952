package fetch

import (
	"context"
	"time"

	"github.com/kapu/game-metadata-sync-go/internal/domain"
)

// Fetcher retrieves one document. Implementations must honor the per-call
// timeout and return a Response for every HTTP status, reserving errors for
// transport failures.
type Fetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) (*Response, error)
}

type Response struct {
	Status int
	Body   []byte
	URL    string
}

type OpKind string

const (
	OpSearch   OpKind = "search"
	OpDetail   OpKind = "detail"
	OpYear     OpKind = "year"
	OpPlatform OpKind = "platform"
)

// Operation is one logical fetch. The controller may issue several attempts for it.
type Operation struct {
	Kind OpKind
	URL  string
}

// Outcome is the terminal result of an operation. Err is set for every
// non-success class and only carries context for logging.
type Outcome struct {
	Class    domain.Classification
	Response *Response
	Attempts int
	Err      error
}

func (o Outcome) OK() bool {
	return o.Class == domain.ClassSuccess && o.Response != nil
}
