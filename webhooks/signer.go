package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderEvent     = "X-Webhook-Event"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderSource    = "X-Webhook-Source"

	SignaturePrefix = "sha256="
)

// Sign returns the lowercase hex HMAC-SHA256 of payload keyed by secret.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader is the X-Webhook-Signature value for payload.
func SignatureHeader(secret string, payload []byte) string {
	return SignaturePrefix + Sign(secret, payload)
}

// Verify checks a received X-Webhook-Signature header against body. Receivers
// must pass the raw request bytes, not a re-encoded copy.
func Verify(secret string, body []byte, header string) error {
	if strings.TrimSpace(secret) == "" {
		return fmt.Errorf("webhooks: signature secret is required")
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return fmt.Errorf("webhooks: %s header is required", HeaderSignature)
	}
	signature := strings.TrimSpace(strings.TrimPrefix(header, SignaturePrefix))
	if signature == "" {
		return fmt.Errorf("webhooks: signature value is required")
	}
	decoded, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("webhooks: decode hex signature: %w", err)
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	if subtle.ConstantTimeCompare(decoded, mac.Sum(nil)) != 1 {
		return fmt.Errorf("webhooks: signature verification failed")
	}
	return nil
}
