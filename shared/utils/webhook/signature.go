package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries "t=<unix seconds>,v1=<hex hmac>" on every inbound and outbound webhook
const SignatureHeader = "X-DeskTown-Signature"

// DefaultTolerance is the maximum clock skew accepted between signer and verifier
const DefaultTolerance = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrMalformedHeader  = errors.New("malformed signature header")
	ErrInvalidSignature = errors.New("signature mismatch")
	ErrExpiredTimestamp = errors.New("signature timestamp outside tolerance")
	ErrNoSecret         = errors.New("webhook secret not configured")
)

// Sign returns the header value for payload signed at ts
func Sign(secret []byte, payload []byte, ts time.Time) string {
	unix := ts.Unix()
	return fmt.Sprintf("t=%d,v1=%s", unix, compute(secret, unix, payload))
}

// Verify checks header against payload. now is injected so tests control the clock.
func Verify(secret []byte, payload []byte, header string, tolerance time.Duration, now time.Time) error {
	if len(secret) == 0 {
		return ErrNoSecret
	}
	if strings.TrimSpace(header) == "" {
		return ErrMissingSignature
	}

	ts, signatures, err := parseHeader(header)
	if err != nil {
		return err
	}

	skew := now.Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if tolerance > 0 && skew > tolerance {
		return ErrExpiredTimestamp
	}

	expected := []byte(compute(secret, ts, payload))
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), expected) {
			return nil
		}
	}
	return ErrInvalidSignature
}

func parseHeader(header string) (int64, []string, error) {
	var (
		ts         int64
		haveTS     bool
		signatures []string
	)

	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return 0, nil, ErrMalformedHeader
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, ErrMalformedHeader
			}
			ts = parsed
			haveTS = true
		case "v1":
			signatures = append(signatures, value)
		}
	}

	if !haveTS || len(signatures) == 0 {
		return 0, nil, ErrMalformedHeader
	}
	return ts, signatures, nil
}

func compute(secret []byte, ts int64, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
