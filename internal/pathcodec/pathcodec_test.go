package pathcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "/index.html", "/index.html"},
		{"space", "/my%20file.txt", "/my file.txt"},
		{"uppercase hex", "/%E4%BD%A0", "/\xe4\xbd\xa0"},
		{"lowercase hex", "/%e4%bd%a0", "/\xe4\xbd\xa0"},
		{"escaped percent", "/100%25", "/100%"},
		{"lone percent", "/100%", "/100%"},
		{"one digit", "/a%2", "/a%2"},
		{"non hex digits", "/a%zz", "/a%zz"},
		{"percent then escape", "%%41", "%A"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decode(tt.raw))
		})
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"unreserved", "a-Z_0.9~/", "a-Z_0.9~/"},
		{"space", "my file.txt", "my%20file.txt"},
		{"lowercase hex", "\xe4\xbd\xa0", "%e4%bd%a0"},
		{"percent", "100%", "100%25"},
		{"reserved", "a?b#c&d", "a%3fb%23c%26d"},
		{"nul byte", "\x00", "%00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Encode(tt.raw))
		})
	}
}

func TestDecodeNeverExpands(t *testing.T) {
	inputs := []string{"%", "%%", "%4", "%41%42", "abc", "%g0%0g", "/a/b%20c"}
	for _, in := range inputs {
		assert.LessOrEqual(t, len(Decode(in)), len(in), "input %q", in)
	}
}

func TestRoundTripAllBytes(t *testing.T) {
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	assert.Equal(t, string(all), Decode(Encode(string(all))))
}

func FuzzRoundTrip(f *testing.F) {
	f.Add("")
	f.Add("/index.html")
	f.Add("my file %41.txt")
	f.Add("\xff\x00%%zz")
	f.Add("你好/世界")

	f.Fuzz(func(t *testing.T, s string) {
		if got := Decode(Encode(s)); got != s {
			t.Fatalf("Decode(Encode(%q)) = %q", s, got)
		}
	})
}
