package security

import (
	"errors"
	"testing"
)

func reasonOf(t *testing.T, err error) Reason {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	return verr.Reason
}

func TestValidateInvalidURL(t *testing.T) {
	tests := []string{
		"ftp://example.com/file",
		"file:///etc/passwd",
		"not a url",
		"https://",
		"//missing-scheme.example.com",
	}
	for _, raw := range tests {
		_, err := Validate(raw)
		if err == nil {
			t.Errorf("Validate(%q) succeeded, want error", raw)
			continue
		}
		if r := reasonOf(t, err); r != ReasonInvalidURL {
			t.Errorf("Validate(%q) reason = %v, want %v", raw, r, ReasonInvalidURL)
		}
	}
}

func TestValidateUnsafeDestination(t *testing.T) {
	tests := []string{
		"http://localhost/feed",
		"http://localhost:8080/feed",
		"http://0.0.0.0/x",
		"http://127.0.0.1/x",
		"https://10.0.0.5/internal",
		"https://192.168.1.10/admin",
		"http://169.254.169.254/latest/meta-data/",
		"http://[::1]/x",
	}
	for _, raw := range tests {
		_, err := Validate(raw)
		if err == nil {
			t.Errorf("Validate(%q) succeeded, want error", raw)
			continue
		}
		if r := reasonOf(t, err); r != ReasonUnsafeDestination {
			t.Errorf("Validate(%q) reason = %v, want %v", raw, r, ReasonUnsafeDestination)
		}
	}
}

func TestValidatePublicLiteral(t *testing.T) {
	addrs, err := Validate("https://93.184.216.34/audio.mp3")
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if len(addrs) != 1 || addrs[0].String() != "93.184.216.34" {
		t.Errorf("Validate addrs = %v", addrs)
	}
}

func TestValidateUnresolvableHost(t *testing.T) {
	_, err := Validate("https://this-host-does-not-exist.invalid/feed")
	if err == nil {
		t.Skip("resolver unexpectedly answered for .invalid")
	}
	if r := reasonOf(t, err); r != ReasonUnresolvableHost {
		t.Errorf("reason = %v, want %v", r, ReasonUnresolvableHost)
	}
}
