// Package linkcheck resolves and scores submitted proof URLs. Every target,
// including each redirect hop, is vetted against private and loopback address
// ranges before any probe is issued, so an attacker-supplied URL can never
// steer the service at internal infrastructure.
package linkcheck

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"example.com/quest/internal/domain"
	"example.com/quest/internal/observability"
)

// Rejection codes. None of these ever carries a partial score.
const (
	CodeInvalidURL       = "INVALID_URL"
	CodeBlockedHost      = "BLOCKED_HOST"
	CodeBlockedIP        = "BLOCKED_IP"
	CodeDNSFailed        = "DNS_FAILED"
	CodeTooManyRedirects = "TOO_MANY_REDIRECTS"
)

// RejectionError is a coded, fail-closed rejection of a submitted URL.
type RejectionError struct {
	Code   string
	Detail string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

const maxRedirects = 3

// blockedPrefixes covers loopback, RFC1918, link-local, CGNAT, multicast and
// their IPv6 equivalents. Checked against every literal IP and every
// DNS-resolved address.
var blockedPrefixes = func() []netip.Prefix {
	raw := []string{
		"0.0.0.0/8",
		"10.0.0.0/8",
		"100.64.0.0/10",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"172.16.0.0/12",
		"192.0.0.0/24",
		"192.168.0.0/16",
		"198.18.0.0/15",
		"224.0.0.0/4",
		"240.0.0.0/4",
		"::1/128",
		"::/128",
		"fc00::/7",
		"fe80::/10",
		"ff00::/8",
	}
	prefixes := make([]netip.Prefix, 0, len(raw))
	for _, r := range raw {
		prefixes = append(prefixes, netip.MustParsePrefix(r))
	}
	return prefixes
}()

var blockedHostSuffixes = []string{".localhost", ".local", ".internal"}

// Resolver resolves hostnames to addresses. Satisfied by *net.Resolver.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Doer issues the existence probes. Satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Validator performs SSRF-safe resolution and heuristic scoring of URLs.
type Validator struct {
	resolver     Resolver
	client       Doer
	probeTimeout time.Duration
	logger       *zap.Logger
}

// Option customises a Validator.
type Option func(*Validator)

// WithResolver overrides the DNS resolver.
func WithResolver(r Resolver) Option {
	return func(v *Validator) { v.resolver = r }
}

// WithClient overrides the probing HTTP client. The client must not follow
// redirects on its own; the validator re-vets each hop itself.
func WithClient(c Doer) Option {
	return func(v *Validator) { v.client = c }
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(v *Validator) { v.logger = logger }
}

// NewValidator builds a Validator with the given probe timeout.
func NewValidator(probeTimeout time.Duration, opts ...Option) *Validator {
	v := &Validator{
		resolver:     net.DefaultResolver,
		probeTimeout: probeTimeout,
		logger:       zap.NewNop(),
	}
	v.client = &http.Client{
		Timeout: probeTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ScoreLink validates and scores a submitted URL. A RejectionError means the
// URL was refused before or during probing; no partial score is returned.
func (v *Validator) ScoreLink(ctx context.Context, rawURL string) (domain.ScoreResult, error) {
	target, rej := parseTarget(rawURL)
	if rej != nil {
		return reject(rej)
	}

	shortened := false
	var finalProbe probeResult

	for hop := 0; ; hop++ {
		if rej := v.vetTarget(ctx, target); rej != nil {
			return reject(rej)
		}
		if isShortener(target.Hostname()) {
			shortened = true
		}

		probe := v.probe(ctx, target)
		location := probe.redirectLocation()
		if location == "" {
			finalProbe = probe
			finalProbe.redirects = hop
			break
		}
		if hop >= maxRedirects {
			return reject(&RejectionError{Code: CodeTooManyRedirects, Detail: "redirect chain exceeds limit"})
		}
		next, err := target.Parse(location)
		if err != nil {
			return reject(&RejectionError{Code: CodeInvalidURL, Detail: "unparseable redirect location"})
		}
		target = next
	}

	result := score(target, finalProbe, shortened)
	observability.RecordProofScored("link")
	v.logger.Debug("link scored",
		zap.String("final_url", target.String()),
		zap.Int("score", result.Score),
		zap.Int("status", finalProbe.status))
	return result, nil
}

func reject(rej *RejectionError) (domain.ScoreResult, error) {
	observability.RecordLinkRejection(rej.Code)
	return domain.ScoreResult{}, rej
}

func parseTarget(rawURL string) (*url.URL, *RejectionError) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, &RejectionError{Code: CodeInvalidURL, Detail: "unparseable url"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &RejectionError{Code: CodeInvalidURL, Detail: "scheme must be http or https"}
	}
	if u.Hostname() == "" {
		return nil, &RejectionError{Code: CodeInvalidURL, Detail: "missing host"}
	}
	return u, nil
}

// vetTarget rejects hosts that are loopback-style names, literal IPs in a
// blocked range, or names whose DNS resolution includes any blocked address.
// The DNS re-check on every hop defends against rebinding via redirects.
func (v *Validator) vetTarget(ctx context.Context, u *url.URL) *RejectionError {
	host := strings.ToLower(u.Hostname())
	if host == "localhost" {
		return &RejectionError{Code: CodeBlockedHost, Detail: "loopback host"}
	}
	for _, suffix := range blockedHostSuffixes {
		if strings.HasSuffix(host, suffix) {
			return &RejectionError{Code: CodeBlockedHost, Detail: "loopback-style host suffix"}
		}
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if blockedAddr(addr) {
			return &RejectionError{Code: CodeBlockedIP, Detail: "address in blocked range"}
		}
		return nil
	}

	addrs, err := v.resolver.LookupIPAddr(ctx, host)
	if err != nil || len(addrs) == 0 {
		return &RejectionError{Code: CodeDNSFailed, Detail: "host did not resolve"}
	}
	for _, ipAddr := range addrs {
		addr, ok := netip.AddrFromSlice(ipAddr.IP)
		if !ok || blockedAddr(addr) {
			return &RejectionError{Code: CodeBlockedIP, Detail: "resolved address in blocked range"}
		}
	}
	return nil
}

func blockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, prefix := range blockedPrefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

type probeResult struct {
	status        int
	contentType   string
	contentLength int64
	location      string
	redirects     int
}

func (p probeResult) redirectLocation() string {
	switch p.status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return p.location
	}
	return ""
}

// probe issues a lightweight HEAD request. Network failure is not a
// rejection; it surfaces as a missing status in scoring.
func (v *Validator) probe(ctx context.Context, u *url.URL) probeResult {
	ctx, cancel := context.WithTimeout(ctx, v.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.String(), nil)
	if err != nil {
		return probeResult{contentLength: -1}
	}
	req.Header.Set("User-Agent", "quest-proof-validator/1.0")

	start := time.Now()
	resp, err := v.client.Do(req)
	observability.ObserveProbe(time.Since(start))
	if err != nil {
		v.logger.Debug("probe failed", zap.String("url", u.String()), zap.Error(err))
		return probeResult{contentLength: -1}
	}
	defer resp.Body.Close()

	return probeResult{
		status:        resp.StatusCode,
		contentType:   resp.Header.Get("Content-Type"),
		contentLength: resp.ContentLength,
		location:      resp.Header.Get("Location"),
	}
}
