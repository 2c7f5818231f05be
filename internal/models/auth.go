package models

import "github.com/golang-jwt/jwt/v5"

// AccessClaims is the JWT payload carrying a principal. The subject holds the
// principal id in hex form.
type AccessClaims struct {
	Name   string   `json:"name,omitempty"`
	Groups []string `json:"groups,omitempty"`
	Admin  bool     `json:"admin,omitempty"`
	jwt.RegisteredClaims
}
