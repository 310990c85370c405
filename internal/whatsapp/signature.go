package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader is the header Meta signs webhook deliveries with.
const SignatureHeader = "X-Hub-Signature-256"

// ErrBadSignature indicates the delivery signature did not match the app secret.
var ErrBadSignature = errors.New("whatsapp: webhook signature mismatch")

// VerifySignature checks the X-Hub-Signature-256 header value
// ("sha256=<hex>") against the HMAC-SHA256 of body keyed by appSecret.
func VerifySignature(appSecret string, body []byte, header string) error {
	if strings.TrimSpace(appSecret) == "" {
		return errors.New("whatsapp: app secret is required")
	}
	provided, ok := strings.CutPrefix(strings.TrimSpace(header), "sha256=")
	if !ok || provided == "" {
		return ErrBadSignature
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(provided))) {
		return ErrBadSignature
	}
	return nil
}
