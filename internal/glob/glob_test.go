package glob

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLiteral(t *testing.T) {
	assert.True(t, Match("hello", "hello"))
	assert.False(t, Match("hello", "Hello"))
	assert.False(t, Match("hello", "hell"))
}

func TestEmptyPattern(t *testing.T) {
	assert.True(t, Match("", ""))
	assert.False(t, Match("", "a"))
}

func TestQuestionMark(t *testing.T) {
	assert.True(t, Match("h?llo", "hello"))
	assert.True(t, Match("h?llo", "hallo"))
	assert.False(t, Match("h?llo", "hllo"))
}

func TestStar(t *testing.T) {
	assert.True(t, Match("*", ""))
	assert.True(t, Match("*", "anything"))
	assert.True(t, Match("h*llo", "hello"))
	assert.True(t, Match("h*llo", "hllo"))
	assert.True(t, Match("h*llo", "heeeeello"))
	assert.False(t, Match("h*llo", "hell"))
	assert.True(t, Match("*foo*bar*", "xxfooyybarzz"))
	assert.False(t, Match("*foo*bar*", "xxbaryyfoozz"))
}

func TestMultipleStars(t *testing.T) {
	assert.True(t, Match("**", "abc"))
	assert.True(t, Match("a**b", "ab"))
	assert.True(t, Match("a**b", "aXXb"))
}

func TestCharacterClass(t *testing.T) {
	assert.True(t, Match("h[ae]llo", "hello"))
	assert.True(t, Match("h[ae]llo", "hallo"))
	assert.False(t, Match("h[ae]llo", "hillo"))
}

func TestCharacterRange(t *testing.T) {
	assert.True(t, Match("[a-z]oo", "foo"))
	assert.False(t, Match("[a-z]oo", "Foo"))
	assert.True(t, Match("[0-9]x", "5x"))
}

func TestNegatedClass(t *testing.T) {
	assert.True(t, Match("h[^ae]llo", "hillo"))
	assert.False(t, Match("h[^ae]llo", "hallo"))
}

func TestPathologicalStarPattern(t *testing.T) {
	pattern := "a*a*a*a*a*a*a*a*a*a*b"
	s := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaac"
	assert.False(t, Match(pattern, s))
}

func TestKeyScanStylePatterns(t *testing.T) {
	assert.True(t, Match("user:*", "user:123"))
	assert.True(t, Match("user:[0-9]*", "user:123"))
	assert.False(t, Match("user:[0-9]*", "user:abc"))
}
