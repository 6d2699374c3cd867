package conf

import (
	"fmt"
	"runtime"
	"slices"
)

// Network kinds (spec §3).
const (
	NetTCP = "tcp"
	NetUDP = "udp"
	NetUDS = "uds"
)

// Application transport protocols (spec §3).
const (
	ProtoPlain = "plain"
	ProtoWS    = "ws"
	ProtoH2    = "h2"
	ProtoQUIC  = "quic"
)

// TLS modes (spec §3).
const (
	TLSNone   = "none"
	TLSClient = "client"
	TLSServer = "server"
)

// HalfConfig is one side (listen or remote) of an endpoint: {addr, net,
// trans, tls}.
type HalfConfig struct {
	Addr  string `json:"addr"`
	Net   string `json:"net"`
	Trans Trans  `json:"trans"`
	TLS   TLS    `json:"tls"`
}

// Trans is the tagged application-transport configuration.
type Trans struct {
	Proto string `json:"proto"`

	// ws / h2
	Path string `json:"path,omitempty"`

	// h2
	ServerPush bool `json:"server_push,omitempty"`

	// h2 / quic: max concurrent logical streams sharing one underlying
	// connection. 0 means "use the layer's default".
	Mux int `json:"mux,omitempty"`
}

// TLS is the tagged TLS configuration: none, or a client/server config.
type TLS struct {
	Mode string `json:"mode"`

	// client
	SkipVerify      bool     `json:"skip_verify,omitempty"`
	EnableSNI       *bool    `json:"enable_sni,omitempty"`
	EnableEarlyData bool     `json:"enable_early_data,omitempty"`
	SNI             string   `json:"sni,omitempty"`
	ALPNs           []string `json:"alpns,omitempty"`
	Versions        []string `json:"versions,omitempty"`
	Roots           string   `json:"roots,omitempty"` // "native" | "mozilla" | a pem file path

	// server
	Cert string `json:"cert,omitempty"`
	Key  string `json:"key,omitempty"`
	OCSP string `json:"ocsp,omitempty"`
}

// UnmarshalJSON accepts either the bare string "none" or an object with a
// "mode" discriminator, per the HalfConfig.tls schema in spec §6.
func (t *TLS) UnmarshalJSON(data []byte) error {
	var asString string
	if err := unmarshalString(data, &asString); err == nil {
		t.Mode = asString
		return nil
	}
	type alias TLS
	var a alias
	if err := unmarshalStrict(data, &a); err != nil {
		return err
	}
	*t = TLS(a)
	return nil
}

func (h *HalfConfig) setDefaults() {
	if h.Net == "" {
		h.Net = NetTCP
	}
	if h.Trans.Proto == "" {
		h.Trans.Proto = ProtoPlain
	}
	if h.TLS.Mode == "" {
		h.TLS.Mode = TLSNone
	}
	if h.TLS.Mode == TLSClient && h.TLS.EnableSNI == nil {
		t := true
		h.TLS.EnableSNI = &t
	}
	if h.Trans.Proto == ProtoH2 && h.Trans.Mux == 0 {
		h.Trans.Mux = 1000
	}
	if h.Trans.Proto == ProtoQUIC {
		if h.Trans.Mux <= 0 || h.Trans.Mux > 100 {
			h.Trans.Mux = 100
		}
	}
}

// validate enforces the combination constraints of spec §3. role
// distinguishes listen vs remote because some constraints (e.g. "QUIC tls
// must match the half's direction") are direction-specific.
func (h *HalfConfig) validate(role halfRole) []error {
	var errs []error

	if !slices.Contains([]string{NetTCP, NetUDP, NetUDS}, h.Net) {
		errs = append(errs, fmt.Errorf("net must be one of tcp, udp, uds"))
	}
	if h.Net == NetUDS && runtime.GOOS == "windows" {
		errs = append(errs, fmt.Errorf("uds is not available on windows"))
	}
	if !slices.Contains([]string{ProtoPlain, ProtoWS, ProtoH2, ProtoQUIC}, h.Trans.Proto) {
		errs = append(errs, fmt.Errorf("trans.proto must be one of plain, ws, h2, quic"))
	}

	if h.Trans.Proto == ProtoQUIC && h.Net != NetUDP {
		errs = append(errs, fmt.Errorf("quic requires net=udp"))
	}
	if h.Net == NetUDS && h.Trans.Proto != ProtoPlain {
		errs = append(errs, fmt.Errorf("uds is only valid with trans=plain"))
	}
	if h.Net == NetUDP && h.Trans.Proto != ProtoQUIC {
		if h.Trans.Proto != ProtoPlain {
			errs = append(errs, fmt.Errorf("udp with a non-quic transport only supports trans=plain (no tls, no ws)"))
		}
		if h.TLS.Mode != TLSNone {
			errs = append(errs, fmt.Errorf("udp with a non-quic transport cannot be combined with tls"))
		}
	}
	if (h.Trans.Proto == ProtoWS || h.Trans.Proto == ProtoH2) && h.Trans.Path == "" {
		errs = append(errs, fmt.Errorf("%s requires a path", h.Trans.Proto))
	}

	switch h.TLS.Mode {
	case TLSNone, TLSClient, TLSServer:
	default:
		errs = append(errs, fmt.Errorf("tls mode must be none, client, or server"))
	}

	if h.Trans.Proto == ProtoQUIC {
		switch role {
		case roleListen:
			if h.TLS.Mode != TLSServer {
				errs = append(errs, fmt.Errorf("quic listen half requires tls=server"))
			}
		case roleRemote:
			if h.TLS.Mode != TLSClient {
				errs = append(errs, fmt.Errorf("quic remote half requires tls=client"))
			}
		}
	}

	if h.TLS.Mode == TLSServer {
		if h.Cert() == "" || h.Key() == "" {
			errs = append(errs, fmt.Errorf("tls server requires cert and key"))
		}
	}

	for _, v := range h.TLS.Versions {
		if v != "1.2" && v != "1.3" {
			errs = append(errs, fmt.Errorf("tls versions must be \"1.2\" or \"1.3\", got %q", v))
		}
	}

	return errs
}

// Cert/Key are small accessors so validate() reads naturally; they just
// forward to the TLS sub-struct.
func (h *HalfConfig) Cert() string { return h.TLS.Cert }
func (h *HalfConfig) Key() string  { return h.TLS.Key }
