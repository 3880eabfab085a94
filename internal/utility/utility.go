package utility

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	DateLayout = "2006-01-02"

	loginWindow      = 15 * time.Minute
	loginMaxAttempts = 10
	maxTrackedIPs    = 10000
)

var ipLimiters, _ = lru.New[string, *rate.Limiter](maxTrackedIPs)

// NewIPExtractor decides how c.RealIP() finds the client address. With no
// trusted proxies the TCP peer is used and forwarding headers are ignored.
// Otherwise X-Forwarded-For is honoured only for hops inside trustedCIDRs.
func NewIPExtractor(trustedCIDRs []string) (echo.IPExtractor, error) {
	if len(trustedCIDRs) == 0 {
		return echo.ExtractIPDirect(), nil
	}

	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, cidr := range trustedCIDRs {
		_, ipNet, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy range %q: %w", cidr, err)
		}
		opts = append(opts, echo.TrustIPRange(ipNet))
	}
	return echo.ExtractIPFromXFFHeader(opts...), nil
}

// LoggerFrom returns the request-scoped logger set by the server's logger
// middleware, falling back to the global logger.
func LoggerFrom(c echo.Context) *zerolog.Logger {
	if l, ok := c.Get("logger").(*zerolog.Logger); ok && l != nil {
		return l
	}
	return &log.Logger
}

// CheckIPRateLimit allows loginMaxAttempts per IP, refilling one attempt
// every loginWindow/loginMaxAttempts.
func CheckIPRateLimit(ip string) error {
	limiter, ok := ipLimiters.Get(ip)
	if !ok {
		limiter = rate.NewLimiter(rate.Every(loginWindow/loginMaxAttempts), loginMaxAttempts)
		ipLimiters.Add(ip, limiter)
	}

	if !limiter.Allow() {
		return fmt.Errorf("too many attempts, please try again later")
	}
	return nil
}

// ResetIPRateLimit forgets the attempts recorded for ip.
func ResetIPRateLimit(ip string) {
	ipLimiters.Remove(ip)
}

// AddRandomDelay sleeps 50-100ms so failed logins can't be timed.
func AddRandomDelay() {
	const baseDelay = 50 * time.Millisecond

	jitter, err := rand.Int(rand.Reader, big.NewInt(51))
	if err != nil {
		log.Warn().Err(err).Msg("crypto/rand failed, using base delay")
		time.Sleep(baseDelay)
		return
	}

	time.Sleep(baseDelay + time.Duration(jitter.Int64())*time.Millisecond)
}

// GetPatientCodeFromContext safely retrieves the patient code set by the auth middleware.
func GetPatientCodeFromContext(c echo.Context) (string, error) {
	code, ok := c.Get("patient_code").(string)
	if !ok || code == "" {
		return "", fmt.Errorf("patient code not found in context")
	}
	return code, nil
}

// ParseDate parses a YYYY-MM-DD string into a pgtype.Date.
func ParseDate(s string) (pgtype.Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return pgtype.Date{}, err
	}
	return pgtype.Date{Time: t, Valid: true}, nil
}

// DateOf truncates t to its calendar day in t's location, as a pgtype.Date.
func DateOf(t time.Time) pgtype.Date {
	y, m, d := t.Date()
	return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}

// FormatDate renders a pgtype.Date as YYYY-MM-DD, or "" when NULL.
func FormatDate(d pgtype.Date) string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format(DateLayout)
}

// TextOrNull maps an empty string to SQL NULL.
func TextOrNull(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	return pgtype.Text{String: s, Valid: s != ""}
}

// Float8Ptr returns nil for a NULL value.
func Float8Ptr(f pgtype.Float8) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
