package client

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// signatureTolerance bounds the age of a signed webhook payload to limit
// replay of captured deliveries.
const signatureTolerance = 5 * time.Minute

// VerifyWebhookSignature checks the processor's signature header
// ("t=<unix>,v1=<hmac>") against the raw payload. An event must pass this
// before any reconciliation runs.
func (c *stripeClientImpl) VerifyWebhookSignature(payload []byte, sigHeader string) error {
	return verifySignature(payload, sigHeader, c.webhookSecret, time.Now())
}

func verifySignature(payload []byte, sigHeader, secret string, now time.Time) error {
	if secret == "" {
		return fmt.Errorf("webhook secret not configured")
	}

	var timestamp int64
	var signatures []string
	for _, part := range strings.Split(sigHeader, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			ts, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("malformed signature timestamp: %w", err)
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, v)
		}
	}

	if timestamp == 0 || len(signatures) == 0 {
		return fmt.Errorf("malformed signature header")
	}
	if now.Sub(time.Unix(timestamp, 0)) > signatureTolerance {
		return fmt.Errorf("signature timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}

	return fmt.Errorf("no matching signature")
}
