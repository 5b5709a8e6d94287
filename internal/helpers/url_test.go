package helpers

import "testing"

func TestCanonicalURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"HTTPS://Example.COM/Path?b=2&a=1", "https://example.com/Path?a=1&b=2"},
		{"example.com/about", "https://example.com/about"},
		{"http://example.com:80/x", "http://example.com/x"},
		{"https://example.com:443/", "https://example.com/"},
		{"https://example.com/post?utm_source=tw&utm_medium=social&id=7", "https://example.com/post?id=7"},
		{"https://example.com/a#section", "https://example.com/a"},
		{"//cdn.example.com/asset", "https://cdn.example.com/asset"},
		{"https://example.com", "https://example.com/"},
	}
	for _, tc := range cases {
		got, err := CanonicalURL(tc.in)
		if err != nil {
			t.Fatalf("CanonicalURL(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("CanonicalURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCanonicalURLRejects(t *testing.T) {
	for _, in := range []string{"", "   "} {
		if _, err := CanonicalURL(in); err == nil {
			t.Fatalf("CanonicalURL(%q): expected error", in)
		}
	}
}

func TestCanonicalURLStableAcrossTrackingVariants(t *testing.T) {
	a, err := CanonicalURL("https://news.example.com/item?id=5&utm_campaign=x")
	if err != nil {
		t.Fatalf("CanonicalURL: %v", err)
	}
	b, err := CanonicalURL("https://News.Example.com/item?utm_source=rss&id=5")
	if err != nil {
		t.Fatalf("CanonicalURL: %v", err)
	}
	if a != b {
		t.Fatalf("expected identical canonical forms, got %q vs %q", a, b)
	}
}
