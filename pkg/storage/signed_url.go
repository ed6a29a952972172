package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ReportSigner issues short-lived tokens that let a browser fetch a sync run
// report without an operator bearer token.
type ReportSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewReportSigner constructs a signer with the provided secret and TTL.
func NewReportSigner(secret string, ttl time.Duration) *ReportSigner {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ReportSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Enabled reports whether a signing secret is configured.
func (s *ReportSigner) Enabled() bool {
	return s != nil && len(s.secret) > 0
}

// Generate returns a token of the form "<unix expiry>.<hex hmac>" bound to runID.
func (s *ReportSigner) Generate(runID string) (string, time.Time, error) {
	if runID == "" {
		return "", time.Time{}, fmt.Errorf("run id required")
	}
	if !s.Enabled() {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	return ts + "." + s.sign(runID, ts), expiresAt, nil
}

// Verify checks that token was issued for runID and has not expired.
func (s *ReportSigner) Verify(runID, token string) error {
	if !s.Enabled() {
		return fmt.Errorf("signing secret missing")
	}
	ts, signature, found := strings.Cut(token, ".")
	if !found {
		return fmt.Errorf("invalid token format")
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp")
	}
	if !hmac.Equal([]byte(s.sign(runID, ts)), []byte(signature)) {
		return fmt.Errorf("invalid token signature")
	}
	if s.now().After(time.Unix(expUnix, 0)) {
		return fmt.Errorf("token expired")
	}
	return nil
}

func (s *ReportSigner) sign(runID, ts string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(runID + "|" + ts))
	return hex.EncodeToString(mac.Sum(nil))
}
