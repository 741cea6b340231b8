package models

import "time"

// One-time code sent to account email to prove the ownership
type VerificationCode struct {
	Identity  string    `json:"identity"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}
