package probe

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/hamed0406/opsboard/internal/domain"
)

// DNS resolution classes.
const (
	DNSResolves      = "RESOLVES"
	DNSNoARecord     = "NO_A_RECORD"
	DNSNXDomain      = "NXDOMAIN"
	DNSServFail      = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName   = "INVALID_NAME"
	defaultDNSBudget = 3 * time.Second
)

// dnsResolver is the subset of *net.Resolver the checker needs.
type dnsResolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
	LookupNS(ctx context.Context, name string) ([]*net.NS, error)
}

// DNSChecker resolves a host name. RESOLVES is OK, a name that only has NS
// records is WARNING, everything else is CRITICAL.
type DNSChecker struct {
	Host     string
	Resolver dnsResolver
	Timeout  time.Duration
}

func NewDNSChecker(target string) *DNSChecker {
	return &DNSChecker{Host: extractHost(target), Resolver: net.DefaultResolver, Timeout: defaultDNSBudget}
}

func (d *DNSChecker) Check(ctx context.Context) (Outcome, error) {
	start := time.Now()
	class, ips, nameservers, resolverErr := d.classify(ctx)
	out := Outcome{
		Message:   class,
		LatencyMS: ms(time.Since(start)),
		Details:   map[string]any{"host": d.Host, "class": class},
	}
	if len(ips) > 0 {
		addrs := make([]string, 0, len(ips))
		for _, ip := range ips {
			addrs = append(addrs, ip.String())
		}
		out.Details["ips"] = addrs
	}
	if len(nameservers) > 0 {
		out.Details["nameservers"] = nameservers
	}
	if resolverErr != "" {
		out.Details["resolver_error"] = resolverErr
	}

	switch class {
	case DNSResolves:
		out.Status = domain.StatusOK
	case DNSNoARecord:
		out.Status = domain.StatusWarning
	default:
		out.Status = domain.StatusCritical
	}
	return out, nil
}

func (d *DNSChecker) classify(ctx context.Context) (class string, ips []net.IP, nameservers []string, resolverErr string) {
	host := strings.TrimSpace(d.Host)
	if host == "" || strings.Contains(host, "://") || strings.ContainsAny(host, " /") {
		return DNSInvalidName, nil, nil, ""
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultDNSBudget
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ips, err := d.Resolver.LookupIP(ctx, "ip", host)
	if err == nil && len(ips) > 0 {
		return DNSResolves, ips, nil, ""
	}
	if err != nil {
		resolverErr = err.Error()
		var de *net.DNSError
		if errors.As(err, &de) {
			switch {
			case de.IsNotFound:
				class = DNSNXDomain
			case de.IsTemporary || de.Timeout():
				class = DNSServFail
			}
		}
	}

	// A delegated zone without address records is reachable but misconfigured.
	if ns, err := d.Resolver.LookupNS(ctx, host); err == nil && len(ns) > 0 {
		for _, n := range ns {
			nameservers = append(nameservers, strings.TrimSuffix(n.Host, "."))
		}
		return DNSNoARecord, nil, nameservers, resolverErr
	}

	if class == "" {
		class = DNSNXDomain
		if resolverErr != "" {
			class = DNSServFail
		}
	}
	return class, nil, nil, resolverErr
}

func extractHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
