package services

import (
	"html"
	"strings"
	"testing"
	"testing/quick"

	"pgregory.net/rapid"
)

func TestFormatting_EscapesHTML(t *testing.T) {
	property := func(text string) bool {
		escaped := html.EscapeString(text)
		return FormatBold(text) == "<b>"+escaped+"</b>" &&
			FormatItalic(text) == "<i>"+escaped+"</i>" &&
			FormatCode(text) == "<code>"+escaped+"</code>" &&
			strings.Contains(FormatLink(text, "https://example.com"), ">"+escaped+"</a>")
	}

	if err := quick.Check(property, &quick.Config{MaxCount: 100}); err != nil {
		t.Errorf("HTML escaping failed: %v", err)
	}
}

func TestFormatLink(t *testing.T) {
	tests := []struct {
		text     string
		url      string
		expected string
	}{
		{"Google", "https://google.com", "<a href=\"https://google.com\">Google</a>"},
		{"test & data", "https://example.com?a=1&b=2", "<a href=\"https://example.com?a=1&amp;b=2\">test &amp; data</a>"},
		{"<script>", "javascript:alert(1)", "<a href=\"javascript:alert(1)\">&lt;script&gt;</a>"},
	}

	for _, test := range tests {
		result := FormatLink(test.text, test.url)
		if result != test.expected {
			t.Errorf("FormatLink(%q, %q) = %q, want %q", test.text, test.url, result, test.expected)
		}
	}
}

func TestMaskAddress(t *testing.T) {
	address := "0x742d35Cc6634C0532925a3b8D4B29E3f5fCffd52"
	if got, want := MaskAddress(address), "0x742d35Cc...Cffd52"; got != want {
		t.Errorf("MaskAddress = %q, want %q", got, want)
	}
	if got := MaskAddress("0x1234"); got != "0x1234" {
		t.Errorf("short address must be returned unchanged, got %q", got)
	}
	if got := MaskAddress(""); got != "" {
		t.Errorf("empty address must stay empty, got %q", got)
	}
}

func TestMaskAddress_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		address := "0x" + rapid.StringMatching(`[0-9a-f]{40}`).Draw(rt, "hex")
		masked := MaskAddress(address)

		if !strings.HasPrefix(masked, address[:10]) || !strings.HasSuffix(masked, address[36:]) {
			rt.Fatalf("masked %q does not keep the ends of %q", masked, address)
		}
		if len(masked) != 19 {
			rt.Fatalf("expected 19 characters, got %d (%q)", len(masked), masked)
		}
	})
}

func TestFormatMention(t *testing.T) {
	tests := map[string]string{
		"support":    "@support",
		"@support":   "@support",
		"  @help_me": "@help_me",
		"":           "",
		"a<b":        "@a&lt;b",
	}
	for in, want := range tests {
		if got := FormatMention(in); got != want {
			t.Errorf("FormatMention(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSafeConcat(t *testing.T) {
	if got := SafeConcat("a", "<b>", "c"); got != "a<b>c" {
		t.Errorf("SafeConcat = %q", got)
	}
}
