package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// RFC 6238 parameters used throughout: 6-digit codes, 30-second steps,
// HMAC-SHA1. These match what Google Authenticator and friends assume when
// the otpauth URI carries no overrides.
const (
	Digits = 6
	Period = 30 * time.Second

	secretBytes = 20 // 160-bit secret per RFC 4226
)

var (
	encoding    = base32.StdEncoding.WithPadding(base32.NoPadding)
	secretRegex = regexp.MustCompile(`^[A-Z2-7]+=*$`)
	codeRegex   = regexp.MustCompile(`^\d{6}$`)
)

// GenerateSecret returns a new Base32-encoded 160-bit TOTP secret.
func GenerateSecret() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate totp secret: %w", err)
	}
	return encoding.EncodeToString(b), nil
}

// ProvisioningURI builds the otpauth:// URI encoded into the enrollment QR,
// following the Key Uri Format used by authenticator apps.
func ProvisioningURI(secret, accountName, issuer string) string {
	label := fmt.Sprintf("%s:%s", url.PathEscape(issuer), url.PathEscape(accountName))
	q := url.Values{}
	q.Set("secret", secret)
	q.Set("issuer", issuer)
	q.Set("algorithm", "SHA1")
	q.Set("digits", fmt.Sprintf("%d", Digits))
	q.Set("period", fmt.Sprintf("%d", int(Period.Seconds())))
	return fmt.Sprintf("otpauth://totp/%s?%s", label, q.Encode())
}

// CodeAt computes the 6-digit code for the time step containing t.
func CodeAt(secret string, t time.Time) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	counter := t.Unix() / int64(Period.Seconds())
	return fmt.Sprintf("%06d", hotp(key, counter)), nil
}

// Validate reports whether code is valid for the secret at time t, accepting
// codes from the steps within ±skew of the current one to absorb clock drift.
// A malformed code (wrong length, non-digits) is never valid.
func Validate(secret, code string, t time.Time, skew int) (bool, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return false, err
	}
	code = strings.TrimSpace(code)
	if !codeRegex.MatchString(code) {
		return false, nil
	}
	counter := t.Unix() / int64(Period.Seconds())
	for i := -skew; i <= skew; i++ {
		want := fmt.Sprintf("%06d", hotp(key, counter+int64(i)))
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return true, nil
		}
	}
	return false, nil
}

func decodeSecret(secret string) ([]byte, error) {
	secret = strings.TrimSpace(strings.ToUpper(secret))
	if !secretRegex.MatchString(secret) {
		return nil, fmt.Errorf("invalid totp secret")
	}
	key, err := encoding.DecodeString(strings.TrimRight(secret, "="))
	if err != nil {
		return nil, fmt.Errorf("decode totp secret: %w", err)
	}
	return key, nil
}

// hotp implements the RFC 4226 dynamic truncation over HMAC-SHA1.
func hotp(key []byte, counter int64) int {
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = byte(counter & 0xff)
		counter >>= 8
	}
	mac := hmac.New(sha1.New, key)
	mac.Write(buf)
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	code := (int(sum[offset]&0x7f) << 24) |
		(int(sum[offset+1]) << 16) |
		(int(sum[offset+2]) << 8) |
		int(sum[offset+3])
	return code % 1000000
}
