package domain

// Classification is the outcome of a single fetch or resolution step.
type Classification string

const (
	ClassSuccess          Classification = "success"
	ClassNotFound         Classification = "not_found"
	ClassAmbiguous        Classification = "ambiguous"
	ClassRateLimited      Classification = "rate_limited"
	ClassBlocked          Classification = "blocked"
	ClassCaptchaSuspected Classification = "captcha_suspected"
	ClassTimeout          Classification = "timeout"
	ClassNetworkError     Classification = "network_error"
	ClassMalformedContent Classification = "malformed_content"
)

func (c Classification) String() string {
	return string(c)
}

// IsDefense reports whether the provider is actively pushing back on this session.
func (c Classification) IsDefense() bool {
	switch c {
	case ClassRateLimited, ClassBlocked, ClassCaptchaSuspected:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether another attempt of the same operation can succeed.
func (c Classification) IsRetryable() bool {
	switch c {
	case ClassRateLimited, ClassBlocked, ClassCaptchaSuspected, ClassTimeout, ClassNetworkError:
		return true
	default:
		return false
	}
}
