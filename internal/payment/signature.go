package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign считает HMAC-SHA256 от "<orderID>|<paymentID>" в hex, как это делает Razorpay
func Sign(secret, gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature сравнивает подпись за постоянное время
func VerifySignature(secret, gatewayOrderID, gatewayPaymentID, signature string) error {
	if secret == "" {
		return ErrNotConfigured
	}
	expected := Sign(secret, gatewayOrderID, gatewayPaymentID)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
