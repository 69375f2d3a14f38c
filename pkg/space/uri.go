package space

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ============================================================================
// Resource URIs
// ============================================================================

// ResourceURI is an absolute, normalized URI identifying a resource in a
// storage space.
//
// Normalization is enforced at construction time by ParseResourceURI. Code
// elsewhere in the system compares ResourceURI values literally and relies
// on this guarantee: two ResourceURI values are the same resource if and
// only if they are equal strings.
//
// Normalization rules:
//   - Scheme and host are lowercased
//   - Default ports (http:80, https:443) are stripped
//   - Dot segments ("." and "..") are resolved
//   - Query strings and fragments are rejected
//   - A trailing slash is preserved: it distinguishes container URIs from
//     non-container URIs
type ResourceURI string

// ParseResourceURI parses and normalizes a raw URI string.
//
// Returns an error if the URI is not absolute, uses a scheme other than
// http/https, carries a query string or fragment, or has an empty host.
func ParseResourceURI(raw string) (ResourceURI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid resource uri %q: %w", raw, err)
	}

	if !u.IsAbs() {
		return "", fmt.Errorf("resource uri %q is not absolute", raw)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("resource uri %q has unsupported scheme %q", raw, u.Scheme)
	}

	if u.Host == "" {
		return "", fmt.Errorf("resource uri %q has empty host", raw)
	}

	if u.RawQuery != "" || u.ForceQuery {
		return "", fmt.Errorf("resource uri %q carries a query string", raw)
	}

	if u.Fragment != "" {
		return "", fmt.Errorf("resource uri %q carries a fragment", raw)
	}

	host := strings.ToLower(u.Host)
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}

	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}

	// Resolve dot segments while preserving the container-marking trailing
	// slash. path.Clean strips trailing slashes, so it is re-added.
	trailing := strings.HasSuffix(p, "/")
	p = path.Clean(p)
	if p == "/" {
		trailing = true
		p = ""
	}
	if trailing {
		p += "/"
	}

	return ResourceURI(scheme + "://" + host + p), nil
}

// MustParseResourceURI is like ParseResourceURI but panics on error.
// Intended for static URIs in tests and wiring code.
func MustParseResourceURI(raw string) ResourceURI {
	u, err := ParseResourceURI(raw)
	if err != nil {
		panic(err)
	}
	return u
}

// String returns the normalized URI string.
func (u ResourceURI) String() string {
	return string(u)
}

// IsContainerURI reports whether the URI names a container resource.
// Container URIs always end in a slash.
func (u ResourceURI) IsContainerURI() bool {
	return strings.HasSuffix(string(u), "/")
}

// Path returns the URI path component, including a leading slash.
func (u ResourceURI) Path() string {
	i := strings.Index(string(u), "://")
	if i < 0 {
		return ""
	}
	rest := string(u)[i+3:]
	j := strings.IndexByte(rest, '/')
	if j < 0 {
		return "/"
	}
	return rest[j:]
}

// MutexVariant returns the slash-toggled sibling of the URI: the container
// variant for a non-container URI and vice versa.
//
// Exactly one of a slash-variant pair may exist in a storage space at any
// time; the resolver uses this to detect conflicts. The second return is
// false when the URI has no mutex variant (a space root).
func (u ResourceURI) MutexVariant() (ResourceURI, bool) {
	if u.Path() == "/" {
		return "", false
	}
	if u.IsContainerURI() {
		return ResourceURI(strings.TrimSuffix(string(u), "/")), true
	}
	return u + "/", true
}

// SlashParent returns the nearest containing slash-path ancestor of the
// URI. The second return is false for a host-root URI.
func (u ResourceURI) SlashParent() (ResourceURI, bool) {
	p := u.Path()
	if p == "/" {
		return "", false
	}
	s := strings.TrimSuffix(string(u), "/")
	i := strings.LastIndexByte(s, '/')
	if i < 0 {
		return "", false
	}
	parent := ResourceURI(s[:i+1])
	if parent.Path() == "" {
		return "", false
	}
	return parent, true
}

// LastSegment returns the final path segment of the URI, without any
// trailing slash. Empty for a host-root URI.
func (u ResourceURI) LastSegment() string {
	p := strings.TrimSuffix(u.Path(), "/")
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return ""
	}
	return p[i+1:]
}
