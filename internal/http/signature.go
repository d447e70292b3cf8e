package httpx

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // sha1 signatures are still sent by older webhook senders
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"net/http"
	"strings"
)

const (
	signatureHeaderSHA256 = "X-Hub-Signature-256"
	signatureHeaderSHA1   = "X-Hub-Signature"
)

// SignatureResult is the outcome of verifying a webhook signature.
type SignatureResult string

const (
	// SignatureDisabled means no secret is configured.
	SignatureDisabled SignatureResult = "disabled"
	// SignatureMissing means a secret is configured but the request carried no signature.
	SignatureMissing SignatureResult = "missing"
	// SignatureValid means the signature matched.
	SignatureValid SignatureResult = "valid"
	// SignatureInvalid means the signature was malformed or did not match.
	SignatureInvalid SignatureResult = "invalid"
)

// SignatureVerifier checks HMAC signatures over raw request bodies.
// A nil verifier reports SignatureDisabled.
type SignatureVerifier struct {
	secret []byte
}

// NewSignatureVerifier returns nil when secret is empty.
func NewSignatureVerifier(secret string) *SignatureVerifier {
	if secret == "" {
		return nil
	}
	return &SignatureVerifier{secret: []byte(secret)}
}

// Verify checks X-Hub-Signature-256 (sha256=<hex>) and falls back to X-Hub-Signature (sha1=<hex>).
func (v *SignatureVerifier) Verify(body []byte, h http.Header) SignatureResult {
	if v == nil {
		return SignatureDisabled
	}
	if sig := h.Get(signatureHeaderSHA256); sig != "" {
		return v.check(body, sig, "sha256=", sha256.New)
	}
	if sig := h.Get(signatureHeaderSHA1); sig != "" {
		return v.check(body, sig, "sha1=", sha1.New)
	}
	return SignatureMissing
}

func (v *SignatureVerifier) check(body []byte, header, prefix string, newHash func() hash.Hash) SignatureResult {
	if !strings.HasPrefix(header, prefix) {
		return SignatureInvalid
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return SignatureInvalid
	}
	mac := hmac.New(newHash, v.secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return SignatureInvalid
	}
	return SignatureValid
}
