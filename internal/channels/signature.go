package channels

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
)

// VerifyHubSignatureSHA1 checks Meta's X-Hub-Signature header
// ("sha1=<hex>") against the raw body.
func VerifyHubSignatureSHA1(appSecret string, body []byte, header string) bool {
	expected := "sha1=" + hexHMAC(sha1.New, appSecret, body)
	return hmac.Equal([]byte(expected), []byte(header))
}

// VerifyHubSignatureSHA256 checks X-Hub-Signature-256 ("sha256=<hex>").
func VerifyHubSignatureSHA256(appSecret string, body []byte, header string) bool {
	expected := "sha256=" + hexHMAC(sha256.New, appSecret, body)
	return hmac.Equal([]byte(expected), []byte(header))
}

// VerifySlackSignature implements Slack's v0 signing scheme over
// "v0:<timestamp>:<body>".
func VerifySlackSignature(signingSecret string, timestamp string, body []byte, header string) bool {
	base := fmt.Sprintf("v0:%s:%s", timestamp, body)
	expected := "v0=" + hexHMAC(sha256.New, signingSecret, []byte(base))
	return hmac.Equal([]byte(expected), []byte(header))
}

// VerifyLineSignature checks LINE's base64-encoded HMAC-SHA256 signature.
func VerifyLineSignature(channelSecret string, body []byte, header string) bool {
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(header)))
}

// TokenHash is the stored form of a webhook integration token.
func TokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func hexHMAC(newHash func() hash.Hash, key string, body []byte) string {
	mac := hmac.New(newHash, []byte(key))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
