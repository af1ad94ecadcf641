package manifest

import (
	"net/url"
	"path"
	"strings"

	"github.com/starford/chasqui/internal/compiler"
	"github.com/starford/chasqui/internal/content"
)

// Routes turns identifiers into public routes.
type Routes struct {
	Prefix         string
	HomeIdentifier string
	ServeHome      bool
}

// Route returns the public route of id.
func (r Routes) Route(id string) string {
	prefix := r.Prefix
	if prefix == "" {
		prefix = "/"
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if r.ServeHome && id == r.HomeIdentifier {
		return prefix
	}
	return prefix + id
}

// Policy returns the link policy for the file current. The returned function
// only reads m, so m must not change while it is in use.
func Policy(m *Manifest, current string, routes Routes) compiler.LinkPolicy {
	return func(ref string) compiler.Resolution {
		key, fragment, ok := splitRef(ref)
		if !ok {
			return compiler.Resolution{}
		}
		for _, c := range candidates(key, current) {
			if id, found := m.lookup(c); found {
				return compiler.Resolution{
					Route:    routes.Route(id) + fragment,
					Target:   id,
					Key:      key,
					Internal: true,
					Resolved: true,
				}
			}
		}
		return compiler.Resolution{Target: key, Key: key, Internal: true}
	}
}

// Refers reports whether the link key written in from has a lookup candidate
// naming the file filename or the identifier id.
func Refers(target, from, filename, id string) bool {
	key, _, ok := splitRef(target)
	if !ok {
		return false
	}
	for _, c := range candidates(key, from) {
		if c == filename || c+content.Ext == filename || c == id {
			return true
		}
	}
	return false
}

func (m *Manifest) lookup(c string) (string, bool) {
	if id, ok := m.byFilename[c]; ok {
		return id, true
	}
	if id, ok := m.byFilename[c+content.Ext]; ok {
		return id, true
	}
	if _, ok := m.byID[c]; ok {
		return c, true
	}
	return "", false
}

// splitRef separates an internal reference into its unescaped path and
// fragment. ok is false for external URLs, protocol-relative URLs and pure
// in-page anchors.
func splitRef(ref string) (key, fragment string, ok bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "//") {
		return "", "", false
	}
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" {
		return "", "", false
	}
	if i := strings.IndexByte(ref, '#'); i >= 0 {
		ref, fragment = ref[:i], ref[i:]
	}
	if i := strings.IndexByte(ref, '?'); i >= 0 {
		ref = ref[:i]
	}
	if ref == "" {
		return "", "", false
	}
	if unescaped, err := url.PathUnescape(ref); err == nil {
		ref = unescaped
	}
	return ref, fragment, true
}

// candidates lists the root-relative paths key may denote when written in the
// file current, in lookup order.
func candidates(key, current string) []string {
	if strings.HasPrefix(key, "/") {
		if c := content.Clean(key); c != "" {
			return []string{c}
		}
		return nil
	}

	var out []string
	dir := path.Dir(current)
	rel := path.Join(dir, key)
	if rel != ".." && !strings.HasPrefix(rel, "../") && rel != "." {
		out = append(out, rel)
	}
	bare := !strings.HasPrefix(key, "./") && !strings.HasPrefix(key, "../")
	if bare && dir != "." {
		if c := content.Clean(key); c != "" && c != rel {
			out = append(out, c)
		}
	}
	return out
}
