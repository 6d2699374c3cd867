package conf

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadShorthandEndpoint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "midori.json")
	doc := `{
		"dns_mode": "v4_and_v6",
		"endpoints": [
			{"listen": "127.0.0.1:13001", "remote": "127.0.0.1:9001"}
		]
	}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Endpoints) != 1 {
		t.Fatalf("expected 1 endpoint, got %d", len(c.Endpoints))
	}
	ep := c.Endpoints[0]
	if ep.Listen.Addr != "127.0.0.1:13001" || ep.Listen.Net != NetTCP || ep.Listen.Trans.Proto != ProtoPlain {
		t.Errorf("shorthand listen half decoded incorrectly: %+v", ep.Listen)
	}
}

func TestLoadRejectsEmptyEndpoints(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "midori.json")
	if err := os.WriteFile(path, []byte(`{"dns_mode":"v4_only","endpoints":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty endpoints")
	}
}

func TestLoadRejectsBadDNSMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "midori.json")
	doc := `{"dns_mode":"bogus","endpoints":[{"listen":"127.0.0.1:1","remote":"127.0.0.1:2"}]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid dns_mode")
	}
}

func TestLoadFullHalfConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "midori.json")
	doc := `{
		"dns_mode": "v4_then_v6",
		"endpoints": [
			{
				"listen": {"addr": "127.0.0.1:13002", "net": "tcp", "trans": {"proto": "ws", "path": "/r"}, "tls": {"mode": "server", "cert": "/tmp/c.pem", "key": "/tmp/k.pem"}},
				"remote": "127.0.0.1:9001"
			}
		]
	}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l := c.Endpoints[0].Listen
	if l.Trans.Proto != ProtoWS || l.Trans.Path != "/r" || l.TLS.Mode != TLSServer {
		t.Errorf("full half config decoded incorrectly: %+v", l)
	}
}
