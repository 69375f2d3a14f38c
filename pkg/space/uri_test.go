package space

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResourceURINormalization(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"LowercasesSchemeAndHost", "HTTPS://Pod.Example/Docs/", "https://pod.example/Docs/"},
		{"StripsDefaultHTTPSPort", "https://pod.example:443/a", "https://pod.example/a"},
		{"StripsDefaultHTTPPort", "http://pod.example:80/a", "http://pod.example/a"},
		{"KeepsNonDefaultPort", "https://pod.example:8443/a", "https://pod.example:8443/a"},
		{"ResolvesDotSegments", "https://pod.example/a/./b/../c", "https://pod.example/a/c"},
		{"PreservesTrailingSlash", "https://pod.example/a/b/", "https://pod.example/a/b/"},
		{"AddsRootSlash", "https://pod.example", "https://pod.example/"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseResourceURI(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, ResourceURI(tc.want), got)
		})
	}
}

func TestParseResourceURIRejections(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"Relative", "/a/b"},
		{"SchemeOnly", "ftp://pod.example/a"},
		{"Query", "https://pod.example/a?b=1"},
		{"Fragment", "https://pod.example/a#frag"},
		{"EmptyHost", "https:///a"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseResourceURI(tc.raw)
			require.Error(t, err)
		})
	}
}

func TestMutexVariant(t *testing.T) {
	u := MustParseResourceURI("https://pod.example/a/b")
	v, ok := u.MutexVariant()
	require.True(t, ok)
	assert.Equal(t, ResourceURI("https://pod.example/a/b/"), v)

	back, ok := v.MutexVariant()
	require.True(t, ok)
	assert.Equal(t, u, back)

	_, ok = MustParseResourceURI("https://pod.example/").MutexVariant()
	assert.False(t, ok)
}

func TestSlashParent(t *testing.T) {
	u := MustParseResourceURI("https://pod.example/a/b/c")
	p, ok := u.SlashParent()
	require.True(t, ok)
	assert.Equal(t, ResourceURI("https://pod.example/a/b/"), p)

	c := MustParseResourceURI("https://pod.example/a/")
	p, ok = c.SlashParent()
	require.True(t, ok)
	assert.Equal(t, ResourceURI("https://pod.example/"), p)

	_, ok = MustParseResourceURI("https://pod.example/").SlashParent()
	assert.False(t, ok)
}

func TestLastSegment(t *testing.T) {
	assert.Equal(t, "c", MustParseResourceURI("https://pod.example/a/b/c").LastSegment())
	assert.Equal(t, "b", MustParseResourceURI("https://pod.example/a/b/").LastSegment())
	assert.Equal(t, "", MustParseResourceURI("https://pod.example/").LastSegment())
}
