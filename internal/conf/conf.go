// Package conf loads and validates Midori's JSON configuration: a DNS
// resolver mode plus a list of endpoints, each an independently
// configured listen/remote half-stack pair. It follows the teacher's
// per-field setDefaults()/validate() []error convention throughout.
package conf

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Conf is the top-level configuration document (spec §6).
type Conf struct {
	DNSMode    string      `json:"dns_mode"`
	DNSServers []DNSServer `json:"dns_servers"`
	Endpoints  []Endpoint  `json:"endpoints"`
}

// DNSServer is one upstream resolver the DNS singleton may query.
type DNSServer struct {
	Addr             string `json:"addr"`
	Protocol         string `json:"protocol,omitempty"`
	TrustNXResponses *bool  `json:"trust_nx_responses,omitempty"`
}

// Endpoint is one listen/remote half-configuration pair.
type Endpoint struct {
	Listen HalfConfig `json:"listen"`
	Remote HalfConfig `json:"remote"`
}

// Load reads, parses and validates a JSON configuration file. Any failure
// here is an InvalidConfig error (spec §7): the caller is expected to
// panic via flog.Fatalf, since configuration errors leave no safe
// partial-operation mode.
func Load(path string) (*Conf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("conf: reading %s: %w", path, err)
	}

	var raw rawConf
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("conf: parsing %s: %w", path, err)
	}

	c, err := raw.resolve()
	if err != nil {
		return nil, err
	}

	c.setDefaults()
	if errs := c.validate(); len(errs) > 0 {
		return nil, writeErr(errs)
	}
	return c, nil
}

// rawConf mirrors Conf but allows "listen"/"remote" to be either a bare
// string shorthand or a full HalfConfig object, per spec §6.
type rawConf struct {
	DNSMode    string        `json:"dns_mode"`
	DNSServers []DNSServer   `json:"dns_servers"`
	Endpoints  []rawEndpoint `json:"endpoints"`
}

type rawEndpoint struct {
	Listen json.RawMessage `json:"listen"`
	Remote json.RawMessage `json:"remote"`
}

func (r rawConf) resolve() (*Conf, error) {
	c := &Conf{DNSMode: r.DNSMode, DNSServers: r.DNSServers}
	for i, re := range r.Endpoints {
		listen, err := decodeHalf(re.Listen)
		if err != nil {
			return nil, fmt.Errorf("conf: endpoints[%d].listen: %w", i, err)
		}
		remote, err := decodeHalf(re.Remote)
		if err != nil {
			return nil, fmt.Errorf("conf: endpoints[%d].remote: %w", i, err)
		}
		c.Endpoints = append(c.Endpoints, Endpoint{Listen: listen, Remote: remote})
	}
	return c, nil
}

// decodeHalf implements the "string is shorthand for {addr, net: tcp,
// trans: {proto: plain}, tls: none}" rule.
func decodeHalf(raw json.RawMessage) (HalfConfig, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return HalfConfig{
			Addr:  asString,
			Net:   NetTCP,
			Trans: Trans{Proto: ProtoPlain},
			TLS:   TLS{Mode: TLSNone},
		}, nil
	}

	var h HalfConfig
	if err := json.Unmarshal(raw, &h); err != nil {
		return HalfConfig{}, err
	}
	return h, nil
}

func (c *Conf) setDefaults() {
	if c.DNSMode == "" {
		c.DNSMode = DNSModeV4AndV6
	}
	for i := range c.Endpoints {
		c.Endpoints[i].Listen.setDefaults()
		c.Endpoints[i].Remote.setDefaults()
	}
}

func (c *Conf) validate() []error {
	var errs []error

	validModes := []string{DNSModeV4Only, DNSModeV6Only, DNSModeV4AndV6, DNSModeV4ThenV6, DNSModeV6ThenV4}
	if !contains(validModes, c.DNSMode) {
		errs = append(errs, fmt.Errorf("dns_mode must be one of: %s", strings.Join(validModes, ", ")))
	}
	for i := range c.DNSServers {
		if c.DNSServers[i].Addr == "" {
			errs = append(errs, fmt.Errorf("dns_servers[%d]: addr is required", i))
		}
	}
	if len(c.Endpoints) == 0 {
		errs = append(errs, fmt.Errorf("at least one endpoint is required"))
	}
	for i, e := range c.Endpoints {
		if lerrs := e.Listen.validate(roleListen); len(lerrs) > 0 {
			for _, err := range lerrs {
				errs = append(errs, fmt.Errorf("endpoints[%d].listen: %w", i, err))
			}
		}
		if rerrs := e.Remote.validate(roleRemote); len(rerrs) > 0 {
			for _, err := range rerrs {
				errs = append(errs, fmt.Errorf("endpoints[%d].remote: %w", i, err))
			}
		}
	}
	return errs
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func writeErr(errs []error) error {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return fmt.Errorf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// DNS strategy names (spec §4.1).
const (
	DNSModeV4Only   = "v4_only"
	DNSModeV6Only   = "v6_only"
	DNSModeV4AndV6  = "v4_and_v6"
	DNSModeV4ThenV6 = "v4_then_v6"
	DNSModeV6ThenV4 = "v6_then_v4"
)

type halfRole int

const (
	roleListen halfRole = iota
	roleRemote
)
