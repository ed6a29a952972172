package models

import "github.com/golang-jwt/jwt/v5"

// OperatorClaims is the payload of the bearer token guarding mutating routes.
type OperatorClaims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}
