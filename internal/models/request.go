// Package models - API request types and input validation.
// This file defines the incoming API request structures.
//
// Validation Philosophy:
// - Fail fast with clear error messages for invalid input
// - Never normalize secrets: a password is compared exactly as sent
package models

import (
	"errors"
)

// ErrPasswordRequired is returned when a verify request carries no password.
var ErrPasswordRequired = errors.New("password is required")

// VerifyRequest is the body of POST /api/v1/auth/verify.
type VerifyRequest struct {
	Password string `json:"password"`
}

func (r *VerifyRequest) Validate() error {
	if r.Password == "" {
		return ErrPasswordRequired
	}
	return nil
}
