package resolver

import (
	"testing"

	"midori/internal/conf"
)

func TestStrategyFromMode(t *testing.T) {
	cases := map[string]Strategy{
		conf.DNSModeV4Only:   V4Only,
		conf.DNSModeV6Only:   V6Only,
		conf.DNSModeV4AndV6:  V4AndV6,
		conf.DNSModeV4ThenV6: V4ThenV6,
		conf.DNSModeV6ThenV4: V6ThenV4,
		"":                   V4AndV6,
	}
	for mode, want := range cases {
		if got := strategyFromMode(mode); got != want {
			t.Errorf("strategyFromMode(%q) = %v, want %v", mode, got, want)
		}
	}
}

func TestInitDefaultsToPublicResolverWhenNoServersConfigured(t *testing.T) {
	r := Init(conf.DNSModeV4AndV6, nil)
	if len(r.servers) != 1 {
		t.Fatalf("expected one default server, got %d", len(r.servers))
	}
}

func TestInitNormalizesServerPort(t *testing.T) {
	r := Init(conf.DNSModeV4Only, []conf.DNSServer{{Addr: "9.9.9.9"}})
	if r.servers[0].Addr != "9.9.9.9:53" {
		t.Errorf("expected port 53 appended, got %s", r.servers[0].Addr)
	}
}
