package service

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/target/repodoc/internal/domain/model"
)

const (
	locatorHost      = "github.com"
	refDelimiter     = "/-/"
	canonicalURLBase = "https://github.com/"
)

var locatorSegment = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ParseLocator turns the compound path of an ingress request into a canonical repository locator.
//
// The path is a repository URL with or without scheme, optionally followed by a reference token.
// An explicit refParam wins, then a "/-/" delimiter (".../owner/repo/-/TOKEN"). Otherwise the last
// segment is taken as a token when more than two segments follow the host and it does not end in ".git".
func ParseLocator(rawPath, refParam string) (model.Locator, error) {
	p, err := url.PathUnescape(strings.TrimSpace(rawPath))
	if err != nil {
		return model.Locator{}, fmt.Errorf("%w: %v", model.ErrInvalidLocator, err)
	}
	p = strings.TrimLeft(p, "/")

	ref := strings.TrimSpace(refParam)
	if idx := strings.Index(p, refDelimiter); idx >= 0 {
		delimited := strings.Trim(p[idx+len(refDelimiter):], "/")
		p = p[:idx]
		if ref == "" {
			ref = delimited
		}
		if ref == "" || strings.Contains(ref, "/") {
			return model.Locator{}, fmt.Errorf("%w: malformed reference after %q", model.ErrInvalidLocator, refDelimiter)
		}
	}

	rest, err := stripScheme(p)
	if err != nil {
		return model.Locator{}, err
	}

	segs := splitSegments(rest)
	if len(segs) == 0 || !isLocatorHost(segs[0]) {
		return model.Locator{}, fmt.Errorf("%w: host must be %s", model.ErrInvalidLocator, locatorHost)
	}
	segs = segs[1:]

	if ref == "" && len(segs) > 2 && !strings.HasSuffix(segs[len(segs)-1], ".git") {
		ref = segs[len(segs)-1]
		segs = segs[:len(segs)-1]
	}
	if ref != "" && !validReference(ref) {
		return model.Locator{}, fmt.Errorf("%w: reference must be at most %d characters without slashes, spaces or control characters",
			model.ErrInvalidLocator, maxReferenceLen)
	}
	if len(segs) != 2 {
		return model.Locator{}, fmt.Errorf("%w: expected owner/repo, got %q", model.ErrInvalidLocator, strings.Join(segs, "/"))
	}

	owner := segs[0]
	repo := strings.TrimSuffix(segs[1], ".git")
	if !locatorSegment.MatchString(owner) || !locatorSegment.MatchString(repo) {
		return model.Locator{}, fmt.Errorf("%w: invalid owner or repository name", model.ErrInvalidLocator)
	}

	return model.Locator{
		SourceURL:   canonicalURLBase + owner + "/" + repo + ".git",
		Owner:       owner,
		Repo:        repo,
		ReferenceID: ref,
	}, nil
}

// stripScheme removes an http(s) scheme, including the single-slash form some routers
// produce after cleaning "//" out of a path.
func stripScheme(p string) (string, error) {
	lower := strings.ToLower(p)
	for _, scheme := range []string{"https:", "http:"} {
		if strings.HasPrefix(lower, scheme) {
			return strings.TrimLeft(p[len(scheme):], "/"), nil
		}
	}
	if i := strings.Index(p, "://"); i >= 0 {
		return "", fmt.Errorf("%w: unsupported scheme %q", model.ErrInvalidLocator, p[:i])
	}
	return p, nil
}

func splitSegments(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isLocatorHost(h string) bool {
	h = strings.ToLower(h)
	return h == locatorHost || h == "www."+locatorHost
}
