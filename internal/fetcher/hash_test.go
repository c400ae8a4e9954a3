package fetcher

import "testing"

func TestCacheKey_IsDeterministic(t *testing.T) {
	a := CacheKey("https://example.com/feed.xml")
	b := CacheKey("https://example.com/feed.xml")
	if a != b {
		t.Errorf("expected identical keys for the same URL, got %q and %q", a, b)
	}
}

func TestCacheKey_DiffersByURL(t *testing.T) {
	a := CacheKey("https://example.com/feed.xml")
	b := CacheKey("https://example.com/other.xml")
	if a == b {
		t.Errorf("expected distinct keys for distinct URLs, both were %q", a)
	}
}

func TestCacheKey_IsHexSHA256(t *testing.T) {
	key := CacheKey("https://example.com/feed.xml")
	if len(key) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(key))
	}
	for _, r := range key {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			t.Errorf("unexpected character %q in cache key", r)
		}
	}
}

func TestTextHash_IsDeterministic(t *testing.T) {
	a := TextHash("<rss>content</rss>")
	b := TextHash("<rss>content</rss>")
	if a != b {
		t.Errorf("expected identical hashes for the same content, got %q and %q", a, b)
	}
}

func TestTextHash_DiffersByContent(t *testing.T) {
	a := TextHash("<rss>alpha</rss>")
	b := TextHash("<rss>beta</rss>")
	if a == b {
		t.Errorf("expected distinct hashes for distinct content, both were %q", a)
	}
}

func TestTextHash_EmptyString(t *testing.T) {
	got := TextHash("")
	if len(got) != 64 {
		t.Errorf("expected a full hash for empty content, got %q", got)
	}
}
