package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader is the header Creem uses for the payload HMAC.
const SignatureHeader = "x-creem-signature"

const signaturePrefix = "sha256="

// SignatureVerifier checks HMAC-SHA256 signatures over raw webhook bodies.
type SignatureVerifier struct {
	Secret string
	// AllowUnsigned lets deliveries without any signature header through.
	// Meant for local testing against provider sandboxes only.
	AllowUnsigned bool
}

// Verify returns nil when body was signed with the configured secret.
func (v *SignatureVerifier) Verify(body []byte, signatureHeader string) error {
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return ErrWebhookSecretMissing
	}

	sig := strings.TrimSpace(signatureHeader)
	if sig == "" {
		if v.AllowUnsigned {
			return nil
		}
		return ErrSignatureMissing
	}
	sig = strings.TrimPrefix(sig, signaturePrefix)

	if !verifyHMAC(body, []byte(sig), []byte(secret)) {
		return ErrSignatureInvalid
	}
	return nil
}

// Sign returns the header value a provider would send for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(strings.TrimSpace(secret)))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// verifyHMAC compares lowercase hex digests, so the header must match the
// encoding exactly.
func verifyHMAC(payload, hexSig, secret []byte) bool {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), hexSig)
}
