// Package payments integrates Stripe checkout and implements the
// webhook-driven reconciliation that turns completed payments into credit
// grants, exactly once per payment.
package payments

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/memora-app/memora/pkg/models"
)

// ListPackages reads the purchasable credit bundles from the Stripe product
// catalog. Only active products with a default price are offered.
func (s *Service) ListPackages(ctx context.Context) ([]models.CreditPackage, error) {
	params := &stripe.ProductListParams{
		Active: stripe.Bool(true),
	}
	params.Context = ctx
	params.AddExpand("data.default_price")

	var packages []models.CreditPackage
	iter := s.api.Products.List(params)
	for iter.Next() {
		product := iter.Product()
		if product.DefaultPrice == nil {
			continue
		}
		credits, ok := creditsFromProduct(product)
		if !ok {
			slog.Warn("Skipping Stripe product without resolvable credits",
				"product_id", product.ID, "name", product.Name)
			continue
		}
		packages = append(packages, models.CreditPackage{
			ID:          product.ID,
			Name:        product.Name,
			Credits:     credits,
			AmountCents: product.DefaultPrice.UnitAmount,
			Currency:    string(product.DefaultPrice.Currency),
			PriceID:     product.DefaultPrice.ID,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list Stripe products: %w", err)
	}
	return packages, nil
}

// GetPackage resolves a single package by product ID.
func (s *Service) GetPackage(ctx context.Context, packageID string) (*models.CreditPackage, error) {
	packages, err := s.ListPackages(ctx)
	if err != nil {
		return nil, err
	}
	for i := range packages {
		if packages[i].ID == packageID {
			return &packages[i], nil
		}
	}
	return nil, nil
}

// creditsFromProduct resolves the credit amount of a catalog product:
// the "credits" metadata entry wins, otherwise the first integer in the
// product name (e.g. "50 credits") is used.
func creditsFromProduct(product *stripe.Product) (int, bool) {
	if raw, ok := product.Metadata["credits"]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n > 0 {
			return n, true
		}
	}
	for _, field := range strings.Fields(product.Name) {
		if n, err := strconv.Atoi(field); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}
