package security

import (
	"testing"
	"time"
)

func TestOutboundGuard_ValidateURL_AllowsPublicHosts(t *testing.T) {
	g := NewOutboundGuard()

	cases := []string{
		"https://api.deepseek.com/v1",
		"https://api.openai.com/v1",
		"http://example.com/path",
		"https://8.8.8.8/endpoint",
	}

	for _, rawURL := range cases {
		t.Run(rawURL, func(t *testing.T) {
			if err := g.ValidateURL(rawURL); err != nil {
				t.Errorf("ValidateURL(%q) = %v, want nil", rawURL, err)
			}
		})
	}
}

func TestOutboundGuard_ValidateURL_BlocksDangerousURLs(t *testing.T) {
	g := NewOutboundGuard()

	cases := []struct {
		name   string
		rawURL string
	}{
		{"empty URL", ""},
		{"loopback IP", "https://127.0.0.1/admin"},
		{"localhost", "http://localhost:8080/"},
		{"private 10.x", "https://10.0.0.5/internal"},
		{"private 172.16.x", "https://172.16.1.1/"},
		{"private 192.168.x", "https://192.168.1.1/router"},
		{"cloud metadata IP", "http://169.254.169.254/latest/meta-data/"},
		{"current network", "http://0.0.0.0/"},
		{"IPv6 loopback", "http://[::1]/"},
		{"file scheme", "file:///etc/passwd"},
		{"ftp scheme", "ftp://example.com/"},
		{"no host", "https:///path-only"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := g.ValidateURL(tc.rawURL); err == nil {
				t.Errorf("ValidateURL(%q) = nil, want error", tc.rawURL)
			}
		})
	}
}

func TestOutboundGuard_ValidateURL_SchemeCaseInsensitive(t *testing.T) {
	g := NewOutboundGuard()

	if err := g.ValidateURL("HTTPS://api.deepseek.com/v1"); err != nil {
		t.Errorf("uppercase scheme should be accepted: %v", err)
	}
}

func TestOutboundGuard_NewSafeClient_ReturnsClient(t *testing.T) {
	g := NewOutboundGuard()

	client := g.NewSafeClient(30 * time.Second)
	if client == nil {
		t.Fatal("NewSafeClient() returned nil")
	}
	if client.Transport == nil {
		t.Error("safe client should have a guarded transport")
	}
}

func TestBlockedNetworks_ContainMetadataIP(t *testing.T) {
	// 169.254.169.254 はリンクローカル範囲に含まれている必要がある
	g := NewOutboundGuard()
	if err := g.ValidateURL("http://169.254.169.254/"); err == nil {
		t.Error("metadata IP must be blocked")
	}
}
