package utils

import "testing"

func TestGetApexDomain(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple domain with trailing dot", "example.com.", "example.com"},
		{"simple domain without trailing dot", "example.com", "example.com"},
		{"subdomain", "www.example.com.", "example.com"},
		{"deep subdomain", "api.service.example.com", "example.com"},
		{"uppercase subdomain", "WWW.Example.COM", "example.com"},
		{"co.uk domain", "example.co.uk", "example.co.uk"},
		{"subdomain of co.uk", "www.example.co.uk", "example.co.uk"},
		{"github.io user", "user.github.io", "user.github.io"},
		{"subdomain of github.io user", "subdomain.user.github.io", "user.github.io"},
		{"single label fallback", "localhost", "localhost"},
		{"bare public suffix fallback", "com.", "com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetApexDomain(tt.input)
			if got != tt.expected {
				t.Errorf("GetApexDomain(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
