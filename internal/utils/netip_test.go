package utils

import (
	"net/http/httptest"
	"testing"
)

func TestIPMatcher(t *testing.T) {
	m := NewIPMatcher([]string{"10.0.0.0/8", " 192.168.1.5 ", "not-an-ip", "fd00::/8"})

	tests := []struct {
		ip   string
		want bool
	}{
		{"10.20.30.40", true},
		{"192.168.1.5", true},
		{"::ffff:192.168.1.5", true},
		{"192.168.1.6", false},
		{"fd12::1", true},
		{"garbage", false},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := m.Allow(tt.ip); got != tt.want {
				t.Errorf("Allow(%q) = %v, want %v", tt.ip, got, tt.want)
			}
		})
	}

	if !NewIPMatcher([]string{"", "nope"}).IsEmpty() {
		t.Error("matcher with only invalid entries should be empty")
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")

	if got := ClientIP(req, false); got != "127.0.0.1" {
		t.Errorf("ClientIP(untrusted) = %q, want 127.0.0.1", got)
	}
	if got := ClientIP(req, true); got != "203.0.113.9" {
		t.Errorf("ClientIP(trusted) = %q, want 203.0.113.9", got)
	}

	req.Header.Set("CF-Connecting-IP", "198.51.100.7")
	if got := ClientIP(req, true); got != "198.51.100.7" {
		t.Errorf("ClientIP(cf) = %q, want 198.51.100.7", got)
	}
}
