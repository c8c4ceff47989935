package sniff

import (
	"errors"
	"net/url"
	"testing"
)

// mp3Prefix is an ID3v2 header followed by frame-sync bytes.
var mp3Prefix = append([]byte("ID3\x04\x00\x00\x00\x00\x00\x00"), 0xFF, 0xFB, 0x90, 0x00)

func TestCheckAllowedAudio(t *testing.T) {
	if err := Check(-1, mp3Prefix, AudioTypes, 0); err != nil {
		t.Errorf("MP3 prefix rejected: %v", err)
	}
}

func TestCheckRejectedType(t *testing.T) {
	gif := []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00")
	err := Check(-1, gif, AudioTypes, 0)
	var terr *TypeError
	if !errors.As(err, &terr) {
		t.Fatalf("GIF prefix accepted against audio set, err = %v", err)
	}
	if terr.Detected != "image/gif" {
		t.Errorf("Detected = %q, want image/gif", terr.Detected)
	}
}

func TestCheckFeedTypes(t *testing.T) {
	xml := []byte(`<?xml version='1.0' encoding='UTF-8'?><rss version="2.0"><channel></channel></rss>`)
	if err := Check(-1, xml, FeedTypes, 0); err != nil {
		t.Errorf("XML prefix rejected against feed set: %v", err)
	}
	if err := Check(-1, []byte("GIF89a"), FeedTypes, 0); err == nil {
		t.Error("GIF prefix accepted against feed set")
	}
}

func TestCheckOversized(t *testing.T) {
	err := Check(301_000_000, mp3Prefix, AudioTypes, 300_000_000)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("oversized declared length not rejected, err = %v", err)
	}
	// Unknown length passes the size check.
	if err := Check(-1, mp3Prefix, AudioTypes, 300_000_000); err != nil {
		t.Errorf("unknown length rejected: %v", err)
	}
}

func TestExempt(t *testing.T) {
	tests := []struct {
		rawURL string
		want   bool
	}{
		{"https://traffic.megaphone.fm/ABC.mp3", true},
		{"https://traffic.megaphone.fm/ABC.m4a", false},
		{"https://evil.example.com/ABC.mp3", false},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.rawURL)
		if err != nil {
			t.Fatal(err)
		}
		if got := Exempt(u); got != tt.want {
			t.Errorf("Exempt(%s) = %v, want %v", tt.rawURL, got, tt.want)
		}
	}
}
