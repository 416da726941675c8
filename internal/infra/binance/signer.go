package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// signedQuery builds the query string Binance expects for SIGNED endpoints:
// params&timestamp=T&signature=S, where S signs everything before it.
func signedQuery(secret, params string, timestamp uint64) string {
	query := "timestamp=" + strconv.FormatUint(timestamp, 10)
	if params != "" {
		query = params + "&" + query
	}
	return query + "&signature=" + computeHmacSha256Hex(query, secret)
}

func computeHmacSha256Hex(message string, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}
