package object

import (
	"strings"

	"github.com/podstore/podstore/pkg/space"
)

// rootRepKey is the reserved key holding the root container's
// representation. The root URI's relative path is empty, which is not a
// usable object key.
const rootRepKey = ".__root"

// repKey maps a resource URI to the key of its stored representation.
func (r *Repo) repKey(uri space.ResourceURI) string {
	if r.Space().IsRootURI(uri) {
		return rootRepKey
	}
	return strings.TrimPrefix(uri.Path(), r.Space().RootURI().Path())
}

// listPrefix maps a container URI to the listing prefix of its immediate
// children. The root container's prefix is empty.
func (r *Repo) listPrefix(uri space.ResourceURI) string {
	if r.Space().IsRootURI(uri) {
		return ""
	}
	return strings.TrimPrefix(uri.Path(), r.Space().RootURI().Path())
}

// uriOfKey maps an object key (or listing prefix entry) back to a
// resource URI.
func (r *Repo) uriOfKey(key string) space.ResourceURI {
	if key == rootRepKey {
		return r.Space().RootURI()
	}
	return r.Space().RootURI() + space.ResourceURI(key)
}

// isReservedKey reports whether a key is server-managed and must never
// surface in containment listings: the root representation key and
// auxiliary representation keys.
func isReservedKey(key string) bool {
	if key == rootRepKey {
		return true
	}
	return strings.Contains(key, space.AuxMarker)
}
