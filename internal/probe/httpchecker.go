package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"strings"
	"sync/atomic"
	"syscall"
	"time"
)

type HTTPChecker struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPChecker builds a HEAD checker whose dial, TLS handshake and total
// request time are all bounded by timeout. Redirects are not followed.
func NewHTTPChecker(timeout time.Duration, insecureTLS bool) *HTTPChecker {
	dialer := &net.Dialer{Timeout: timeout}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: timeout,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: insecureTLS},
		DisableKeepAlives:   true,
	}
	return &HTTPChecker{
		Client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		UserAgent: "subwatch/1.0",
	}
}

func (h *HTTPChecker) Check(ctx context.Context, target string) CheckResult {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return CheckResult{Outcome: OutcomeOther, Message: err.Error()}
	}
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}

	// The client deadline hides dial errors, so track how far the dial got.
	var connected, resolving atomic.Bool
	req = req.WithContext(httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) { resolving.Store(true) },
		DNSDone:  func(httptrace.DNSDoneInfo) { resolving.Store(false) },
		ConnectDone: func(network, addr string, err error) {
			if err == nil {
				connected.Store(true)
			}
		},
		GotConn: func(httptrace.GotConnInfo) { connected.Store(true) },
	}))

	resp, err := h.Client.Do(req)
	latency := time.Since(start).Seconds() * 1000 // ms
	if err != nil {
		outcome := Classify(err)
		if outcome == OutcomeTimeout {
			switch {
			case resolving.Load():
				outcome = OutcomeResolverDown
			case !connected.Load():
				outcome = OutcomeConnection
			}
		}
		return CheckResult{Outcome: outcome, Message: err.Error(), LatencyMS: latency}
	}
	defer resp.Body.Close()

	return CheckResult{
		Outcome:    OutcomeResponded,
		StatusCode: resp.StatusCode,
		Message:    resp.Status,
		LatencyMS:  latency,
	}
}

// Classify maps a transport error onto an Outcome. It only sees the error, so
// a client deadline that fired mid-dial still reads as a timeout here; Check
// corrects that using the connection trace.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeResponded
	}
	if errors.Is(err, syscall.ENETUNREACH) {
		return OutcomeNetworkDown
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		switch {
		case strings.Contains(dnsErr.Err, "network is unreachable"):
			return OutcomeNetworkDown
		case dnsErr.IsNotFound:
			return OutcomeConnection
		case dnsErr.IsTemporary || dnsErr.IsTimeout || strings.Contains(dnsErr.Err, "server misbehaving"):
			return OutcomeResolverDown
		}
		return OutcomeConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return OutcomeConnection
	}

	var certErr *tls.CertificateVerificationError
	var recErr tls.RecordHeaderError
	if errors.As(err, &certErr) || errors.As(err, &recErr) || errors.Is(err, http.ErrSchemeMismatch) {
		return OutcomeConnection
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return OutcomeConnection
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return OutcomeTimeout
	}
	return OutcomeOther
}
