package routepath

import (
	"fmt"
	"net/url"
	"strings"
)

// SplatParam is the param name a splat ("$") segment binds to.
const SplatParam = "_splat"

// SegmentKind classifies a route path segment.
type SegmentKind int

const (
	SegmentStatic SegmentKind = iota
	SegmentParam
	SegmentSplat
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentParam:
		return "param"
	case SegmentSplat:
		return "splat"
	default:
		return "static"
	}
}

// Segment is one "/"-separated part of a route path.
type Segment struct {
	Kind SegmentKind
	// Value is the literal text for static segments and the param name
	// for param and splat segments.
	Value string
}

// ParseSegment classifies a single route path segment.
//
//	"posts"   → static "posts"
//	"$postId" → param "postId"
//	"$"       → splat "_splat"
func ParseSegment(seg string) Segment {
	switch {
	case seg == "$":
		return Segment{Kind: SegmentSplat, Value: SplatParam}
	case strings.HasPrefix(seg, "$"):
		return Segment{Kind: SegmentParam, Value: seg[1:]}
	default:
		return Segment{Kind: SegmentStatic, Value: seg}
	}
}

// ParseSegments splits a route path into classified segments.
// Empty segments are dropped, so "/" yields no segments.
func ParseSegments(path string) []Segment {
	parts := SplitPath(path)
	segs := make([]Segment, 0, len(parts))
	for _, p := range parts {
		segs = append(segs, ParseSegment(p))
	}
	return segs
}

// SplitPath splits a path into its non-empty segments.
func SplitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Join joins path parts with single slashes. The result always starts
// with "/" and never ends with one unless it is the root.
func Join(parts ...string) string {
	var segs []string
	for _, p := range parts {
		segs = append(segs, SplitPath(p)...)
	}
	return "/" + strings.Join(segs, "/")
}

// Interpolate substitutes params into a route path. Param values are
// path-escaped; splat values keep their slashes. A missing param yields
// ErrMissingParam.
func Interpolate(path string, params map[string]string) (string, error) {
	segs := SplitPath(path)
	if len(segs) == 0 {
		if strings.HasPrefix(path, "/") {
			return "/", nil
		}
		return path, nil
	}

	out := make([]string, 0, len(segs))
	for _, raw := range segs {
		seg := ParseSegment(raw)
		switch seg.Kind {
		case SegmentStatic:
			out = append(out, raw)
		case SegmentParam:
			v, ok := params[seg.Value]
			if !ok {
				return "", fmt.Errorf("%w: %s", ErrMissingParam, seg.Value)
			}
			out = append(out, url.PathEscape(v))
		case SegmentSplat:
			v := params[SplatParam]
			if v == "" {
				continue
			}
			parts := strings.Split(v, "/")
			for i, p := range parts {
				parts[i] = url.PathEscape(p)
			}
			out = append(out, strings.Join(parts, "/"))
		}
	}

	result := strings.Join(out, "/")
	if strings.HasPrefix(path, "/") {
		result = "/" + result
	}
	if len(path) > 1 && strings.HasSuffix(path, "/") && !strings.HasSuffix(result, "/") {
		result += "/"
	}
	return result, nil
}

// Resolve resolves to against base. Absolute targets are returned cleaned;
// relative targets ("./x", "../y", "z") are applied segment by segment to
// base. ".." never climbs above root.
func Resolve(base, to string) string {
	if to == "" {
		return Join(base)
	}
	if strings.HasPrefix(to, "/") {
		return clean(SplitPath(to))
	}

	segs := SplitPath(base)
	for _, seg := range strings.Split(to, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(segs) > 0 {
				segs = segs[:len(segs)-1]
			}
		default:
			segs = append(segs, seg)
		}
	}
	return "/" + strings.Join(segs, "/")
}

func clean(segs []string) string {
	out := segs[:0]
	for _, s := range segs {
		switch s {
		case ".":
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, s)
		}
	}
	return "/" + strings.Join(out, "/")
}
