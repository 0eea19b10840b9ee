// Package hmacsig verifies inbound webhook requests against the HMAC
// config of the target webhook. Two sender profiles exist: the default
// profile signs the raw request body, the Battlemetrics profile embeds an
// ISO-8601 timestamp in the signature header and signs
// "<timestamp>.<body>" with a clock-skew guard against replay.
package hmacsig

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"net/http"
	"net/textproto"
	"regexp"
	"time"
)

// Config mirrors the HMAC block of a webhook record plus the
// deployment-wide clock-skew tolerance.
type Config struct {
	Active       bool
	HashType     string
	SecretKey    string
	Header       string
	HeaderRegex  string
	Sender       string
	MaxDeviation time.Duration
}

// ValidationError carries the human-readable reason a request failed
// signature validation. Callers surface it as a 4xx or log and suppress
// it, per their policy.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// timestampPattern extracts the "t=<value>" token from a Battlemetrics
// style signature header.
var timestampPattern = regexp.MustCompile(`t=([\w\-:.+]+)(?:,|$)`)

// Validate checks the request headers and raw body against cfg at the
// given instant. It returns nil when validation passes or is disabled,
// and a *ValidationError describing the failure otherwise.
func Validate(headers http.Header, body []byte, cfg Config, now time.Time) error {
	if !cfg.Active {
		return nil
	}

	values, ok := headers[textproto.CanonicalMIMEHeaderKey(cfg.Header)]
	if !ok || len(values) == 0 {
		return invalid("HMAC header %q not found", cfg.Header)
	}
	headerValue := values[0]

	signatureRegex, err := regexp.Compile(cfg.HeaderRegex)
	if err != nil {
		return invalid("signature extraction pattern does not compile: %v", err)
	}
	loc := signatureRegex.FindStringIndex(headerValue)
	if loc == nil {
		return invalid("HMAC signature in header not found")
	}
	signature := headerValue[loc[0]:loc[1]]

	var payload []byte
	switch cfg.Sender {
	case "battlemetrics":
		timestamp, err := extractTimestamp(headerValue, now, cfg.MaxDeviation)
		if err != nil {
			return err
		}
		payload = append([]byte(timestamp+"."), body...)
	default:
		payload = body
	}

	expected, err := computeMAC(cfg.HashType, cfg.SecretKey, payload)
	if err != nil {
		return err
	}

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return invalid("request body, signature or secret key is corrupted, hmac does not match")
	}

	return nil
}

// extractTimestamp pulls the t= token out of the signature header,
// parses it and enforces the freshness window. The raw token text is
// returned because the MAC is computed over the text exactly as sent.
func extractTimestamp(headerValue string, now time.Time, maxDeviation time.Duration) (string, error) {
	match := timestampPattern.FindStringSubmatch(headerValue)
	if match == nil {
		return "", invalid("timestamp in HMAC header not found")
	}
	raw := match[1]

	timestamp, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		// A timestamp that parses without an offset is a distinct
		// failure: the window check is meaningless without a timezone.
		for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04:05.999999999"} {
			if _, naiveErr := time.Parse(layout, raw); naiveErr == nil {
				return "", invalid("timestamp in HMAC header must carry a timezone")
			}
		}
		return "", invalid("timestamp in HMAC header is not valid ISO-8601")
	}

	if deviation := now.Sub(timestamp); deviation >= maxDeviation || deviation <= -maxDeviation {
		return "", invalid("timestamp is too old or too far in the future")
	}

	return raw, nil
}

func computeMAC(hashType, secret string, payload []byte) (string, error) {
	var constructor func() hash.Hash
	switch hashType {
	case "md5":
		constructor = md5.New
	case "sha1":
		constructor = sha1.New
	case "sha256":
		constructor = sha256.New
	case "sha512":
		constructor = sha512.New
	default:
		return "", invalid("unsupported HMAC hash type %q", hashType)
	}

	mac := hmac.New(constructor, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)), nil
}
