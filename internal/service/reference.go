package service

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	jmespath "github.com/jmespath-community/go-jmespath"
)

const maxReferenceLen = 128

// ReferenceExpression extracts a reference token from a JSON webhook body using a
// JMESPath expression such as "pull_request.head.sha" or "client_payload.ticket".
// It is consulted only when the request path and query carry no token.
type ReferenceExpression struct {
	expr string
}

// NewReferenceExpression compiles expr. An empty expression yields nil, which extracts nothing.
func NewReferenceExpression(expr string) (*ReferenceExpression, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	if _, err := jmespath.Compile(expr); err != nil {
		return nil, fmt.Errorf("compile reference expression %q: %w", expr, err)
	}
	return &ReferenceExpression{expr: expr}, nil
}

// String returns the source expression.
func (e *ReferenceExpression) String() string {
	if e == nil {
		return ""
	}
	return e.expr
}

// Extract evaluates the expression against body. Bodies that are not JSON, results
// that are not strings or integers, and values that could not be a token yield "".
func (e *ReferenceExpression) Extract(body []byte) string {
	if e == nil || len(body) == 0 {
		return ""
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}
	v, err := jmespath.Search(e.expr, doc)
	if err != nil {
		return ""
	}

	var ref string
	switch t := v.(type) {
	case string:
		ref = strings.TrimSpace(t)
	case float64:
		if t != float64(int64(t)) {
			return ""
		}
		ref = strconv.FormatInt(int64(t), 10)
	default:
		return ""
	}
	if !validReference(ref) {
		return ""
	}
	return ref
}

// validReference reports whether ref can travel as a path segment and a header value:
// at most maxReferenceLen bytes, no slash, no whitespace and no control characters.
func validReference(ref string) bool {
	if ref == "" || len(ref) > maxReferenceLen {
		return false
	}
	return !strings.ContainsFunc(ref, func(r rune) bool {
		return r == '/' || unicode.IsSpace(r) || unicode.IsControl(r)
	})
}
