// Package resolver implements the process-wide DNS resolver singleton
// (spec §4.1): initialized once from configuration, consumed by every
// connector that holds a Domain address. It is built on
// github.com/miekg/dns so upstream server selection, protocol (udp/tcp)
// and NXDOMAIN trust can be configured per spec §6, the same low-level
// client/Exchange idiom the corpus's own DNS-proxy examples use.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"

	"midori/internal/conf"
	"midori/internal/flog"
)

// ErrNameResolution is returned when no upstream returned a usable record.
var ErrNameResolution = errors.New("resolver: no record returned")

// Strategy selects which address family to prefer/require.
type Strategy int

const (
	V4Only Strategy = iota
	V6Only
	V4AndV6
	V4ThenV6
	V6ThenV4
)

func strategyFromMode(mode string) Strategy {
	switch mode {
	case conf.DNSModeV4Only:
		return V4Only
	case conf.DNSModeV6Only:
		return V6Only
	case conf.DNSModeV4ThenV6:
		return V4ThenV6
	case conf.DNSModeV6ThenV4:
		return V6ThenV4
	default:
		return V4AndV6
	}
}

// Server is one upstream DNS server.
type Server struct {
	Addr             string
	Net              string // "udp" or "tcp"
	TrustNXResponses bool
}

// Resolver is the process-wide singleton handle. It is safe for
// concurrent use: all state is either immutable after New or internally
// synchronized by the dns.Client, which requires no external locking.
type Resolver struct {
	strategy Strategy
	servers  []Server
	client   *dns.Client
}

var (
	singleton   *Resolver
	singletonMu sync.Mutex
)

// Init constructs the process-wide singleton. Each call builds a new
// Resolver and replaces the previous one — callers (the supervisor) must
// only call it during startup, before any connector resolves a Domain
// address.
func Init(mode string, servers []conf.DNSServer) *Resolver {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	r := &Resolver{
		strategy: strategyFromMode(mode),
		client:   &dns.Client{Timeout: 5 * time.Second},
	}
	for _, s := range servers {
		netw := "udp"
		if s.Protocol == "tcp" {
			netw = "tcp"
		}
		trust := true
		if s.TrustNXResponses != nil {
			trust = *s.TrustNXResponses
		}
		addr := s.Addr
		if _, _, err := net.SplitHostPort(addr); err != nil {
			addr = net.JoinHostPort(addr, "53")
		}
		r.servers = append(r.servers, Server{Addr: addr, Net: netw, TrustNXResponses: trust})
	}
	if len(r.servers) == 0 {
		r.servers = append(r.servers, Server{Addr: "1.1.1.1:53", Net: "udp", TrustNXResponses: true})
	}

	singleton = r
	return r
}

// Get returns the process-wide singleton. Panics if Init has not run yet,
// which would itself be a programming error in the supervisor's startup
// ordering rather than a runtime condition.
func Get() *Resolver {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	if singleton == nil {
		panic("resolver: Get called before Init")
	}
	return singleton
}

// Resolve returns the first address for name per the configured strategy.
// Every connect that holds a Domain address calls this per-call (spec
// §4.1): short-lived DNS changes propagate without restart.
func (r *Resolver) Resolve(ctx context.Context, name string) (net.IP, error) {
	switch r.strategy {
	case V4Only:
		return r.resolveOne(ctx, name, dns.TypeA)
	case V6Only:
		return r.resolveOne(ctx, name, dns.TypeAAAA)
	case V4ThenV6:
		if ip, err := r.resolveOne(ctx, name, dns.TypeA); err == nil {
			return ip, nil
		}
		return r.resolveOne(ctx, name, dns.TypeAAAA)
	case V6ThenV4:
		if ip, err := r.resolveOne(ctx, name, dns.TypeAAAA); err == nil {
			return ip, nil
		}
		return r.resolveOne(ctx, name, dns.TypeA)
	default: // V4AndV6: prefer A, fall back to AAAA
		if ip, err := r.resolveOne(ctx, name, dns.TypeA); err == nil {
			return ip, nil
		}
		return r.resolveOne(ctx, name, dns.TypeAAAA)
	}
}

// ResolveSync runs Resolve inside a dedicated blocking context, for use
// during configuration validation (spec §5 "Blocking policy") where no
// runtime task is suspended. All runtime paths must use Resolve instead.
func (r *Resolver) ResolveSync(name string) (net.IP, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.Resolve(ctx, name)
}

func (r *Resolver) resolveOne(ctx context.Context, name string, qtype uint16) (net.IP, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	var lastErr error
	for _, srv := range r.servers {
		client := *r.client
		client.Net = srv.Net

		resp, _, err := client.ExchangeContext(ctx, msg, srv.Addr)
		if err != nil {
			lastErr = err
			flog.Debugf("resolver: query %s via %s failed: %v", name, srv.Addr, err)
			continue
		}
		if resp.Rcode == dns.RcodeNameError {
			if srv.TrustNXResponses {
				return nil, fmt.Errorf("%w: %s NXDOMAIN from %s", ErrNameResolution, name, srv.Addr)
			}
			lastErr = fmt.Errorf("%s: NXDOMAIN from %s (untrusted)", name, srv.Addr)
			continue
		}
		for _, rr := range resp.Answer {
			switch rec := rr.(type) {
			case *dns.A:
				if qtype == dns.TypeA {
					return rec.A, nil
				}
			case *dns.AAAA:
				if qtype == dns.TypeAAAA {
					return rec.AAAA, nil
				}
			}
		}
		lastErr = fmt.Errorf("%w: %s returned no usable record from %s", ErrNameResolution, name, srv.Addr)
	}
	if lastErr == nil {
		lastErr = ErrNameResolution
	}
	return nil, lastErr
}
