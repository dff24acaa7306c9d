package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader carries the HMAC of the webhook body.
const SignatureHeader = "X-Hub-Signature-256"

var (
	// ErrVerificationFailed is returned when the subscribe handshake does not match.
	ErrVerificationFailed = errors.New("webhook verification failed")
	// ErrInvalidSignature is returned when the payload signature is missing or wrong.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// VerifyChallenge answers the GET handshake: it returns challenge when mode
// is "subscribe" and token equals the configured verify token.
func VerifyChallenge(mode, token, challenge, verifyToken string) (string, error) {
	if mode != "subscribe" || verifyToken == "" {
		return "", ErrVerificationFailed
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(verifyToken)) != 1 {
		return "", ErrVerificationFailed
	}
	return challenge, nil
}

// VerifySignature checks header ("sha256=<hex>") against the HMAC-SHA256 of
// body keyed with appSecret.
func VerifySignature(body []byte, header, appSecret string) error {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return ErrInvalidSignature
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(got, Sign(body, appSecret)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign computes the raw HMAC-SHA256 of body.
func Sign(body []byte, appSecret string) []byte {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return mac.Sum(nil)
}
