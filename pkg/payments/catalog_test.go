package payments

import (
	"testing"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stretchr/testify/assert"
)

func TestCreditsFromProduct(t *testing.T) {
	tests := []struct {
		name        string
		product     *stripe.Product
		wantCredits int
		wantOK      bool
	}{
		{
			name: "metadata wins",
			product: &stripe.Product{
				Name:     "Starter pack",
				Metadata: map[string]string{"credits": "50"},
			},
			wantCredits: 50,
			wantOK:      true,
		},
		{
			name: "metadata with surrounding whitespace",
			product: &stripe.Product{
				Name:     "Pack",
				Metadata: map[string]string{"credits": " 100 "},
			},
			wantCredits: 100,
			wantOK:      true,
		},
		{
			name: "fallback to integer in name",
			product: &stripe.Product{
				Name: "25 credits",
			},
			wantCredits: 25,
			wantOK:      true,
		},
		{
			name: "bad metadata falls back to name",
			product: &stripe.Product{
				Name:     "10 credits",
				Metadata: map[string]string{"credits": "plenty"},
			},
			wantCredits: 10,
			wantOK:      true,
		},
		{
			name: "no integer anywhere",
			product: &stripe.Product{
				Name: "Mystery bundle",
			},
			wantOK: false,
		},
		{
			name: "negative credits rejected",
			product: &stripe.Product{
				Name:     "Bundle",
				Metadata: map[string]string{"credits": "-5"},
			},
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			credits, ok := creditsFromProduct(tt.product)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantCredits, credits)
			}
		})
	}
}
