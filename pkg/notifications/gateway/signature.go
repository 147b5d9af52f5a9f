package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	HeaderSignature = "X-Gateway-Signature"
	HeaderTimestamp = "X-Gateway-Timestamp"
	HeaderID        = "X-Gateway-ID"
)

// Sign sets the signature headers on h for body.
func Sign(h http.Header, secret string, body []byte, at time.Time) {
	ts := at.Unix()
	h.Set(HeaderSignature, signature(secret, ts, body))
	h.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	h.Set(HeaderID, uuid.NewString())
}

// Verify checks the signature headers of a gateway request. Timestamps older
// than maxAge, or more than a minute in the future, are rejected.
func Verify(h http.Header, secret string, body []byte, maxAge time.Duration, now time.Time) error {
	sig := h.Get(HeaderSignature)
	if sig == "" {
		return fmt.Errorf("%w: missing signature", ErrInvalidSignature)
	}
	ts, err := strconv.ParseInt(h.Get(HeaderTimestamp), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid timestamp", ErrInvalidSignature)
	}

	age := now.Sub(time.Unix(ts, 0))
	if maxAge > 0 && age > maxAge {
		return fmt.Errorf("%w: timestamp too old", ErrInvalidSignature)
	}
	if age < -time.Minute {
		return fmt.Errorf("%w: timestamp in the future", ErrInvalidSignature)
	}

	if !hmac.Equal([]byte(signature(secret, ts, body)), []byte(sig)) {
		return fmt.Errorf("%w: signature mismatch", ErrInvalidSignature)
	}
	return nil
}

func signature(secret string, ts int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, body)
	return hex.EncodeToString(mac.Sum(nil))
}
