// Package models contains domain entities and business domain types.
package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account provisioned from a verified Firebase identity.
// Credits are the only spendable balance; the DB enforces credits >= 0.
type User struct {
	ID                uuid.UUID `json:"id"`
	FirebaseUID       string    `json:"firebase_uid"`
	Email             string    `json:"email,omitempty"`
	Credits           int       `json:"credits"`
	FCMToken          *string   `json:"-"`
	PreferredLanguage string    `json:"preferred_language"`
	StripeCustomerID  *string   `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
}

// SupportedUILanguages are the values accepted by the preferred-language endpoint.
// Prompt localization additionally understands "es" via per-session language.
var SupportedUILanguages = []string{"pt", "en"}

// IsSupportedUILanguage reports whether lang can be stored as a user preference.
func IsSupportedUILanguage(lang string) bool {
	for _, l := range SupportedUILanguages {
		if l == lang {
			return true
		}
	}
	return false
}
