package model

import "github.com/golang-jwt/jwt"

// UserClaims are the JWT claims issued to API callers. The issuer carries the user id.
type UserClaims struct {
	UserName string `json:"user_name"`
	jwt.StandardClaims
}
