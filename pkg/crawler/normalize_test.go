package crawler

import (
	"net/url"
	"testing"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"basic", "https://Example.COM/Docs/", "https://example.com/Docs", false},
		{"root slash kept", "https://example.com/", "https://example.com/", false},
		{"no path", "https://example.com", "https://example.com/", false},
		{"fragment stripped", "https://example.com/a#section", "https://example.com/a", false},
		{"query preserved", "https://example.com/list?page=2", "https://example.com/list?page=2", false},
		{"ftp rejected", "ftp://example.com/file", "", true},
		{"mailto rejected", "mailto:x@example.com", "", true},
		{"pdf rejected", "https://example.com/manual.pdf", "", true},
		{"css rejected", "https://example.com/site.css", "", true},
		{"woff2 rejected", "https://example.com/font.woff2", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.raw, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeURL(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeURLIdempotent(t *testing.T) {
	inputs := []string{
		"https://Example.com/docs/guide/",
		"http://example.com/a?b=c#frag",
		"https://example.com",
	}
	for _, in := range inputs {
		once, err := NormalizeURL(in, nil)
		if err != nil {
			t.Fatalf("NormalizeURL(%q) error = %v", in, err)
		}
		twice, err := NormalizeURL(once, nil)
		if err != nil {
			t.Fatalf("NormalizeURL(%q) error = %v", once, err)
		}
		if once != twice {
			t.Errorf("not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestNormalizeURLRelative(t *testing.T) {
	base, _ := url.Parse("https://example.com/docs/guide")
	got, err := NormalizeURL("../api/reference", base)
	if err != nil {
		t.Fatalf("NormalizeURL() error = %v", err)
	}
	if got != "https://example.com/api/reference" {
		t.Errorf("NormalizeURL() = %q", got)
	}
}

func TestHostAllowed(t *testing.T) {
	allowed := []string{"example.com"}
	if !hostAllowed("example.com", allowed) {
		t.Error("exact host rejected")
	}
	if !hostAllowed("docs.example.com", allowed) {
		t.Error("subdomain rejected")
	}
	if hostAllowed("evil-example.com", allowed) {
		t.Error("lookalike host admitted")
	}
	if hostAllowed("example.com.evil.io", allowed) {
		t.Error("suffix-spoofed host admitted")
	}
}

func TestMatchPattern(t *testing.T) {
	if !matchPattern("", "https://example.com/x") {
		t.Error("empty pattern should match")
	}
	if !matchPattern("*", "https://example.com/x") {
		t.Error("star pattern should match")
	}
	if !matchPattern("/docs/", "https://example.com/docs/intro") {
		t.Error("substring pattern should match")
	}
	if matchPattern("/api/", "https://example.com/docs/intro") {
		t.Error("substring pattern should not match")
	}
	if !matchPattern("https://example.com/docs/*", "https://example.com/docs/intro") {
		t.Error("glob pattern should match")
	}
}
