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

// DownloadClaims identifies the file version a download token grants access to.
type DownloadClaims struct {
	NodeID    string
	Version   int
	ExpiresAt time.Time
}

// SignedURLSigner creates and validates signed content download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a token bound to a node id and content version.
func (s *SignedURLSigner) Generate(nodeID string, version int) (string, time.Time, error) {
	if nodeID == "" || version <= 0 {
		return "", time.Time{}, fmt.Errorf("node id and version required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl)
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	ver := strconv.Itoa(version)
	token := strings.Join([]string{nodeID, ver, exp, s.sign(nodeID, ver, exp)}, ".")
	return token, time.Unix(expiresAt.Unix(), 0), nil
}

// Parse validates a token and returns its claims.
func (s *SignedURLSigner) Parse(token string) (DownloadClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return DownloadClaims{}, fmt.Errorf("invalid token format")
	}
	nodeID, ver, exp, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(nodeID, ver, exp)), []byte(signature)) {
		return DownloadClaims{}, fmt.Errorf("invalid token signature")
	}
	version, err := strconv.Atoi(ver)
	if err != nil {
		return DownloadClaims{}, fmt.Errorf("invalid version")
	}
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return DownloadClaims{}, fmt.Errorf("invalid timestamp")
	}
	claims := DownloadClaims{NodeID: nodeID, Version: version, ExpiresAt: time.Unix(expUnix, 0)}
	if s.now().After(claims.ExpiresAt) {
		return DownloadClaims{}, fmt.Errorf("token expired")
	}
	return claims, nil
}

func (s *SignedURLSigner) sign(parts ...string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}
