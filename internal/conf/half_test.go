package conf

import "testing"

func TestHalfConfigSetDefaults(t *testing.T) {
	h := HalfConfig{Addr: "127.0.0.1:9001"}
	h.setDefaults()

	if h.Net != NetTCP {
		t.Errorf("expected Net=tcp, got %s", h.Net)
	}
	if h.Trans.Proto != ProtoPlain {
		t.Errorf("expected Proto=plain, got %s", h.Trans.Proto)
	}
	if h.TLS.Mode != TLSNone {
		t.Errorf("expected TLS.Mode=none, got %s", h.TLS.Mode)
	}
}

func TestHalfConfigQUICMuxClamp(t *testing.T) {
	h := HalfConfig{Addr: "1.2.3.4:443", Net: NetUDP, Trans: Trans{Proto: ProtoQUIC, Mux: 0}}
	h.setDefaults()
	if h.Trans.Mux != 100 {
		t.Errorf("expected mux clamp to 100 for 0, got %d", h.Trans.Mux)
	}

	h2 := HalfConfig{Addr: "1.2.3.4:443", Net: NetUDP, Trans: Trans{Proto: ProtoQUIC, Mux: 500}}
	h2.setDefaults()
	if h2.Trans.Mux != 100 {
		t.Errorf("expected mux clamp to 100 for 500, got %d", h2.Trans.Mux)
	}
}

func TestHalfConfigValidateQUICRequiresUDP(t *testing.T) {
	h := HalfConfig{Addr: "1.2.3.4:443", Net: NetTCP, Trans: Trans{Proto: ProtoQUIC}, TLS: TLS{Mode: TLSClient}}
	errs := h.validate(roleRemote)
	if len(errs) == 0 {
		t.Fatal("expected error when quic is paired with net=tcp")
	}
}

func TestHalfConfigValidateUDSRejectsNonPlain(t *testing.T) {
	h := HalfConfig{Addr: "/tmp/s.sock", Net: NetUDS, Trans: Trans{Proto: ProtoWS, Path: "/x"}}
	errs := h.validate(roleListen)
	if len(errs) == 0 {
		t.Fatal("expected error when uds is paired with a non-plain transport")
	}
}

func TestHalfConfigValidateUDPRejectsTLSAndWS(t *testing.T) {
	h := HalfConfig{Addr: "1.2.3.4:9001", Net: NetUDP, Trans: Trans{Proto: ProtoWS, Path: "/x"}, TLS: TLS{Mode: TLSClient}}
	errs := h.validate(roleRemote)
	if len(errs) < 2 {
		t.Fatalf("expected errors for both non-plain trans and non-none tls over udp, got %v", errs)
	}
}

func TestHalfConfigValidateTLSServerRequiresCertKey(t *testing.T) {
	h := HalfConfig{Addr: "1.2.3.4:443", Net: NetTCP, Trans: Trans{Proto: ProtoPlain}, TLS: TLS{Mode: TLSServer}}
	errs := h.validate(roleListen)
	if len(errs) == 0 {
		t.Fatal("expected error when tls server has no cert/key")
	}
}
