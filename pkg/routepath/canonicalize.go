package routepath

import (
	"errors"
	"net/url"
	"strings"
)

// TrailingSlash controls how a trailing "/" on a pathname is treated.
type TrailingSlash string

const (
	// TrailingSlashNever strips trailing slashes (the default).
	TrailingSlashNever TrailingSlash = "never"
	// TrailingSlashAlways appends a trailing slash to every non-root path.
	TrailingSlashAlways TrailingSlash = "always"
	// TrailingSlashPreserve keeps whatever the input had.
	TrailingSlashPreserve TrailingSlash = "preserve"
)

// Valid reports whether t is a known policy. The empty value is valid and
// behaves like TrailingSlashNever.
func (t TrailingSlash) Valid() bool {
	switch t {
	case "", TrailingSlashNever, TrailingSlashAlways, TrailingSlashPreserve:
		return true
	}
	return false
}

// CanonicalizeResult contains the result of path canonicalization.
type CanonicalizeResult struct {
	// Path is the canonicalized path (without query string).
	Path string

	// Query is the query string (without leading "?").
	Query string

	// Changed indicates if the path was modified during canonicalization.
	Changed bool
}

// Path canonicalization errors.
var (
	ErrInvalidPath           = errors.New("invalid path")
	ErrBackslashInPath       = errors.New("path contains backslash")
	ErrNullByteInPath        = errors.New("path contains null byte")
	ErrInvalidPercentEscape  = errors.New("invalid percent escape sequence")
	ErrPathEscapesRoot       = errors.New("path escapes root via ..")
	ErrEncodedSlashInSegment = errors.New("encoded slash (%2F) in non-splat segment")
	ErrMissingParam          = errors.New("missing path param")
)

// CanonicalizePath normalizes a URL path before it is matched.
//
// The following transformations are applied:
//   - Collapse multiple slashes (/blog//post → /blog/post)
//   - Remove "." segments (/blog/./post → /blog/post)
//   - Resolve ".." segments (/blog/../other → /other)
//   - Apply the trailing slash policy (root "/" is never changed)
//
// Paths containing a backslash, a NUL byte, an invalid percent-escape or a
// ".." that would escape root are rejected.
//
// The input may include a query string, which is preserved but not canonicalized.
func CanonicalizePath(input string, ts TrailingSlash) (CanonicalizeResult, error) {
	if input == "" {
		return CanonicalizeResult{Path: "/", Changed: true}, nil
	}

	path, query, _ := strings.Cut(input, "?")

	if strings.Contains(path, "\\") {
		return CanonicalizeResult{}, ErrBackslashInPath
	}

	if strings.Contains(path, "\x00") || strings.Contains(strings.ToUpper(path), "%00") {
		return CanonicalizeResult{}, ErrNullByteInPath
	}

	if strings.Contains(path, "%") {
		if err := validatePercentEscapes(path); err != nil {
			return CanonicalizeResult{}, err
		}
	}

	original := path
	hadTrailing := len(path) > 1 && strings.HasSuffix(path, "/")

	var result []string
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(result) == 0 {
				return CanonicalizeResult{}, ErrPathEscapesRoot
			}
			result = result[:len(result)-1]
		default:
			result = append(result, seg)
		}
	}

	path = "/" + strings.Join(result, "/")
	if path != "/" {
		switch ts {
		case TrailingSlashAlways:
			path += "/"
		case TrailingSlashPreserve:
			if hadTrailing {
				path += "/"
			}
		}
	}

	return CanonicalizeResult{
		Path:    path,
		Query:   query,
		Changed: path != original,
	}, nil
}

// ApplyTrailingSlash adds or removes a trailing slash on an already clean path.
func ApplyTrailingSlash(path string, ts TrailingSlash) string {
	if path == "" || path == "/" {
		return "/"
	}
	switch ts {
	case TrailingSlashAlways:
		if !strings.HasSuffix(path, "/") {
			return path + "/"
		}
	case TrailingSlashPreserve:
	default:
		return TrimTrailingSlash(path)
	}
	return path
}

// TrimTrailingSlash removes a single trailing slash from a non-root path.
func TrimTrailingSlash(path string) string {
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		return path[:len(path)-1]
	}
	return path
}

// validatePercentEscapes checks that all percent-escapes are %XX hex pairs.
func validatePercentEscapes(path string) error {
	for i := 0; i < len(path); {
		if path[i] != '%' {
			i++
			continue
		}
		if i+2 >= len(path) || !isHexDigit(path[i+1]) || !isHexDigit(path[i+2]) {
			return ErrInvalidPercentEscape
		}
		i += 3
	}
	return nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// DecodeSegment decodes a single path segment.
// For non-splat params, if decoding produces "/" (i.e., %2F was present),
// this returns an error as it indicates a path smuggling attempt.
func DecodeSegment(segment string, isSplat bool) (string, error) {
	decoded, err := url.PathUnescape(segment)
	if err != nil {
		return "", ErrInvalidPercentEscape
	}
	if !isSplat && strings.Contains(decoded, "/") {
		return "", ErrEncodedSlashInSegment
	}
	return decoded, nil
}

// IsExternal reports whether href points outside the application
// (absolute or protocol-relative URL).
func IsExternal(href string) bool {
	return strings.HasPrefix(href, "http://") ||
		strings.HasPrefix(href, "https://") ||
		strings.HasPrefix(href, "//")
}
