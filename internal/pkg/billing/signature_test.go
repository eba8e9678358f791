package billing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"type":"payment.completed","customer_id":"u2","id":"pay_1","credits":20}`)
	secret := "whsec_test"
	v := &SignatureVerifier{Secret: secret}

	valid := Sign(body, secret)
	assert.NoError(t, v.Verify(body, valid))
	// Prefix is optional.
	assert.NoError(t, v.Verify(body, valid[len("sha256="):]))
	assert.NoError(t, v.Verify(body, "  "+valid+" "))

	assert.ErrorIs(t, v.Verify(body, "sha256=deadbeef"), ErrSignatureInvalid)
	assert.ErrorIs(t, v.Verify(body, "sha256=not-hex"), ErrSignatureInvalid)
	assert.ErrorIs(t, v.Verify(body, Sign(body, "other-secret")), ErrSignatureInvalid)
}

func TestVerifySignatureSingleByteMutation(t *testing.T) {
	body := []byte(`{"type":"payment.completed","id":"pay_1"}`)
	secret := "whsec_test"
	v := &SignatureVerifier{Secret: secret}
	sig := Sign(body, secret)

	for i := range body {
		mutated := append([]byte(nil), body...)
		mutated[i] ^= 0x01
		assert.ErrorIs(t, v.Verify(mutated, sig), ErrSignatureInvalid, "body byte %d", i)
	}

	for i := len("sha256="); i < len(sig); i++ {
		mutated := []byte(sig)
		if mutated[i] == '0' {
			mutated[i] = '1'
		} else {
			mutated[i] = '0'
		}
		assert.ErrorIs(t, v.Verify(body, string(mutated)), ErrSignatureInvalid, "signature byte %d", i)
	}

	flipped := 0
	for i := len("sha256="); i < len(sig); i++ {
		if sig[i] < 'a' || sig[i] > 'f' {
			continue
		}
		mutated := []byte(sig)
		mutated[i] = sig[i] - 'a' + 'A'
		assert.ErrorIs(t, v.Verify(body, string(mutated)), ErrSignatureInvalid, "case flip at %d", i)
		flipped++
	}
	require.NotZero(t, flipped)

	assert.NoError(t, v.Verify(body, sig))
	assert.NoError(t, v.Verify(body, strings.TrimPrefix(sig, "sha256=")))
}

func TestVerifySignatureSecretMissing(t *testing.T) {
	v := &SignatureVerifier{Secret: " ", AllowUnsigned: true}
	assert.ErrorIs(t, v.Verify([]byte(`{}`), ""), ErrWebhookSecretMissing)
	assert.ErrorIs(t, v.Verify([]byte(`{}`), Sign([]byte(`{}`), "x")), ErrWebhookSecretMissing)
}

func TestVerifySignatureMissingHeader(t *testing.T) {
	strict := &SignatureVerifier{Secret: "s"}
	assert.ErrorIs(t, strict.Verify([]byte(`{}`), ""), ErrSignatureMissing)

	lenient := &SignatureVerifier{Secret: "s", AllowUnsigned: true}
	assert.NoError(t, lenient.Verify([]byte(`{}`), ""))
	// A present but wrong signature is still rejected.
	assert.ErrorIs(t, lenient.Verify([]byte(`{}`), "sha256=00"), ErrSignatureInvalid)
}
