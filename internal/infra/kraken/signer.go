package kraken

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"strconv"
	"sync/atomic"
	"time"
)

// nonceSource yields strictly increasing millisecond nonces, even when called
// concurrently or several times within one millisecond.
type nonceSource struct {
	last atomic.Uint64
	now  func() time.Time
}

func (n *nonceSource) Next() uint64 {
	for {
		last := n.last.Load()
		next := uint64(n.now().UnixMilli())
		if next <= last {
			next = last + 1
		}
		if n.last.CompareAndSwap(last, next) {
			return next
		}
	}
}

// signPayload computes API-Sign:
// base64(HMAC-SHA512(base64decode(secret), path + SHA256(nonce + payload)))
func signPayload(secret, path string, nonce uint64, payload string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return "", err
	}

	sha := sha256.Sum256([]byte(strconv.FormatUint(nonce, 10) + payload))

	mac := hmac.New(sha512.New, key)
	mac.Write([]byte(path))
	mac.Write(sha[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// privatePayload is the form body of a private call: nonce=N[&params].
func privatePayload(nonce uint64, params string) string {
	payload := "nonce=" + strconv.FormatUint(nonce, 10)
	if params != "" {
		payload += "&" + params
	}
	return payload
}
