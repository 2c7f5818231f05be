package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/noah-isme/drive-api/internal/models"
	appErrors "github.com/noah-isme/drive-api/pkg/errors"
)

// TokenConfig defines how access tokens are signed.
type TokenConfig struct {
	Secret string
	Issuer string
	Expiry time.Duration
}

// TokenService issues and validates HS256 access tokens carrying a principal.
type TokenService struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenService constructs a TokenService instance.
func NewTokenService(config TokenConfig) *TokenService {
	if config.Expiry <= 0 {
		config.Expiry = time.Hour
	}
	return &TokenService{config: config, now: time.Now}
}

// Issue signs an access token for principal.
func (s *TokenService) Issue(principal *models.Principal) (string, time.Time, error) {
	if principal == nil || principal.ID.IsZero() {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrInvalidArgument, "principal id required")
	}
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.config.Expiry)

	groups := make([]string, 0, len(principal.Groups))
	for _, g := range principal.Groups {
		groups = append(groups, g.Hex())
	}
	claims := &models.AccessClaims{
		Name:   principal.Name,
		Groups: groups,
		Admin:  principal.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   principal.ID.Hex(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate parses an access token and returns the principal it carries.
func (s *TokenService) Validate(tokenString string) (*models.Principal, error) {
	opts := []jwt.ParserOption{jwt.WithTimeFunc(s.now)}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.AccessClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	id, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token subject")
	}
	principal := &models.Principal{ID: id, Name: claims.Name, Admin: claims.Admin}
	for _, raw := range claims.Groups {
		group, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token group")
		}
		principal.Groups = append(principal.Groups, group)
	}
	return principal, nil
}
