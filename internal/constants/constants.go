package constants

import "time"

var ProviderNames = struct {
	Critic     string
	Completion string
}{
	Critic:     "critic",
	Completion: "completion",
}

var ProviderURLs = struct {
	CriticBaseURL     string
	CompletionBaseURL string
}{
	CriticBaseURL:     "https://www.metacritic.com",
	CompletionBaseURL: "https://howlongtobeat.com",
}

var RetryConfig = struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	Jitter          time.Duration
	AttemptTimeouts []time.Duration
	TimeoutStep     time.Duration
}{
	MaxAttempts:     3,
	BaseDelay:       2 * time.Second,
	Jitter:          time.Second,
	AttemptTimeouts: []time.Duration{20 * time.Second, 30 * time.Second, 45 * time.Second},
	TimeoutStep:     15 * time.Second, // 테이블 이후 시도마다 +15초
}

// DelayRange is an inclusive [Min, Max] window for randomized pauses.
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

// EscalationDelays is the ladder used after rate-limit, block and captcha
// classifications. The level is sticky across operations and resets on success.
var EscalationDelays = []DelayRange{
	{Min: 15 * time.Second, Max: 18 * time.Second},
	{Min: 65 * time.Second, Max: 70 * time.Second},
	{Min: 3 * time.Minute, Max: 4 * time.Minute},
	{Min: 5 * time.Minute, Max: 7 * time.Minute},
}

var PolitenessConfig = struct {
	Delay         DelayRange
	BreakInterval DelayRange
	BreakDuration DelayRange
}{
	Delay:         DelayRange{Min: 3 * time.Second, Max: 7 * time.Second},
	BreakInterval: DelayRange{Min: 8 * time.Minute, Max: 10 * time.Minute}, // 8~10분마다
	BreakDuration: DelayRange{Min: 40 * time.Second, Max: 80 * time.Second}, // 40~80초 휴식
}

var CircuitBreakerConfig = struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}{
	FailureThreshold: 3,                // 연속 차단 3회 시 Circuit OPEN
	ResetTimeout:     30 * time.Minute, // 실행 중 복구 대기 시간
}

var MatchThresholds = struct {
	Strong         float64
	Weak           float64
	Accept         float64
	TiedTop        float64
	YearLookupTopK int
	LengthRatio    float64
	PrefixBoostMin float64
}{
	Strong:         0.8,
	Weak:           0.6,
	Accept:         0.6,
	TiedTop:        0.99,
	YearLookupTopK: 5,
	LengthRatio:    0.7,
	PrefixBoostMin: 0.7,
}

var RecheckWindows = struct {
	Refresh          time.Duration
	Settled          time.Duration
	Unreleased       time.Duration
	NoScore          time.Duration
	NotFoundMaxCheck int
	NotFoundBackoff  []time.Duration
}{
	Refresh:          30 * 24 * time.Hour, // 30일 - 점수 갱신 주기
	Settled:          60 * 24 * time.Hour, // 60일 - 출시 후 점수 고정
	Unreleased:       30 * 24 * time.Hour,
	NoScore:          60 * 24 * time.Hour,
	NotFoundMaxCheck: 3,
	NotFoundBackoff:  []time.Duration{0, 30 * 24 * time.Hour, 60 * 24 * time.Hour},
}

var RunConfig = struct {
	SaveEvery     int
	MaxOperations int
	MaxVariants   int
}{
	SaveEvery:     10,
	MaxOperations: 4000,
	MaxVariants:   10,
}

var StoreConfig = struct {
	RedisKeyPrefix string
	ReadyTimeout   time.Duration
	LockTimeout    time.Duration
}{
	RedisKeyPrefix: "gamesync",
	ReadyTimeout:   5 * time.Second,
	LockTimeout:    10 * time.Second,
}

var HTTPConfig = struct {
	UserAgent      string
	AcceptLanguage string
	MaxBodyBytes   int64
}{
	UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	AcceptLanguage: "en-US,en;q=0.9",
	MaxBodyBytes:   8 << 20,
}
