package routepath

import "strings"

// Href is a raw href split into its parts.
type Href struct {
	// Pathname is everything before "?" or "#".
	Pathname string
	// SearchStr includes the leading "?" or is empty.
	SearchStr string
	// Hash excludes the leading "#".
	Hash string
}

// ParseHref splits href into pathname, search string and hash.
// Scheme and host of absolute URLs are not stripped; callers route
// external hrefs elsewhere (see IsExternal).
func ParseHref(href string) Href {
	var h Href
	rest := href
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		h.Hash = rest[i+1:]
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		h.SearchStr = rest[i:]
		if h.SearchStr == "?" {
			h.SearchStr = ""
		}
		rest = rest[:i]
	}
	h.Pathname = rest
	if h.Pathname == "" {
		h.Pathname = "/"
	}
	return h
}

// String reassembles the href.
func (h Href) String() string {
	s := h.Pathname + h.SearchStr
	if h.Hash != "" {
		s += "#" + h.Hash
	}
	return s
}
