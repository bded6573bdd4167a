package booking

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

const (
	orderRefPrefix   = "ORD_LOC_"
	paymentRefPrefix = "PAY_LOC_"
)

func newOrderID() string {
	return orderRefPrefix + randomHex(10)
}

func newPaymentID() string {
	return paymentRefPrefix + randomHex(12)
}

func randomHex(n int) string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:n])
}

// sign returns the hex HMAC-SHA256 of "orderID|paymentID".
func sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature was produced for the pair.
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	expected := sign(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
