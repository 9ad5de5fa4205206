package probe

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

var errNoARecord = errors.New("no A record")

// DNSResolver looks up A records through the OS resolver.
type DNSResolver struct {
	Resolver *net.Resolver
	Timeout  time.Duration
}

func NewDNSResolver(timeout time.Duration) *DNSResolver {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &DNSResolver{Resolver: &net.Resolver{}, Timeout: timeout}
}

func (d *DNSResolver) Resolve(ctx context.Context, host string) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" || strings.Contains(host, "://") {
		return "", &net.DNSError{Err: "invalid name", Name: host}
	}

	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	ips, err := d.Resolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return "", err
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return "", errNoARecord
}

// DNSClass gives a short label for a resolution error, for logs.
func DNSClass(err error) string {
	if err == nil {
		return "RESOLVES"
	}
	if errors.Is(err, errNoARecord) {
		return "NO_A_RECORD"
	}
	var de *net.DNSError
	if errors.As(err, &de) {
		switch {
		case de.IsNotFound:
			return "NXDOMAIN"
		case de.IsTemporary || de.Timeout():
			return "SERVFAIL_or_TIMEOUT"
		case de.Err == "invalid name":
			return "INVALID_NAME"
		}
	}
	return "SERVFAIL_or_TIMEOUT"
}
