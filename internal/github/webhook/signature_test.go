package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerify(t *testing.T) {
	body := []byte(`{"zen":"Keep it logically awesome."}`)
	sig := Sign("s3cret", body)

	assert.NoError(t, Verify("s3cret", sig, body))
	assert.ErrorIs(t, Verify("other", sig, body), ErrSignatureInvalid)
	assert.ErrorIs(t, Verify("s3cret", sig, []byte(`{}`)), ErrSignatureInvalid)
	assert.ErrorIs(t, Verify("s3cret", "", body), ErrMissingSignature)
	assert.ErrorIs(t, Verify("s3cret", "sha1=abc", body), ErrMissingSignature)
	assert.ErrorIs(t, Verify("s3cret", "sha256=zz", body), ErrSignatureInvalid)
	assert.ErrorIs(t, Verify("", sig, body), ErrMissingSecret)
}
