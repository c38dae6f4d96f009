package points

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeStripsDangerousInput(t *testing.T) {
	got := Sanitize(`<script>alert('x')</script>`)
	assert.NotContains(t, got, "<")
	assert.NotContains(t, got, ">")
	assert.NotContains(t, got, "'")

	assert.Equal(t, "alert(1)", Sanitize("JavaScript:alert(1)"))
	assert.NotContains(t, Sanitize(`img onerror=alert(1)`), "onerror=")
}

// 嵌套构造：单次剔除会重新拼出 javascript:，清洗必须收敛到不动点
func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		"javajavascript:script:alert(1)",
		"oonclick=nclick=alert(1)",
		"  Rua das Flores, 123  ",
		strings.Repeat("á", 300),
	}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "input %q", in)
	}
}

func TestSanitizeTruncatesTo200Runes(t *testing.T) {
	got := Sanitize(strings.Repeat("ã", 250))
	assert.Equal(t, 200, len([]rune(got)))
}

func TestSanitizeTrimsAfterTruncation(t *testing.T) {
	in := strings.Repeat("a", 199) + " b"
	got := Sanitize(in)
	assert.Equal(t, strings.Repeat("a", 199), got)
}

func TestFormatPhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"32999998888", "(32) 99999-8888"},
		{"3232221111", "(32) 3222-1111"},
		{"(32) 99999-8888", "(32) 99999-8888"},
		{"32 99999 8888", "(32) 99999-8888"},
		{"1234567", "1234567"},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FormatPhone(SanitizePhone(c.in)), "input %q", c.in)
	}
}

func TestIsValidPhone(t *testing.T) {
	assert.True(t, IsValidPhone("(32) 99999-8888"))
	assert.True(t, IsValidPhone("3232221111"))
	assert.False(t, IsValidPhone("123"))
	assert.False(t, IsValidPhone(""))
}

func TestCandidateSanitized(t *testing.T) {
	c := Candidate{
		Name:         "  Igreja <Matriz>  ",
		Address:      "Rua 'A', 10",
		ContactPhone: "32999998888",
	}
	s := c.Sanitized()
	require.Equal(t, "Igreja Matriz", s.Name)
	assert.Equal(t, "Rua A, 10", s.Address)
	assert.Equal(t, "(32) 99999-8888", s.ContactPhone)
	// 原值不受影响
	assert.Equal(t, "  Igreja <Matriz>  ", c.Name)
}
