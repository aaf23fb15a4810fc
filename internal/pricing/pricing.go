// Package pricing maps a product and a customer price tier to a unit price.
package pricing

import "github.com/fjod/go_pos/internal/domain"

// ResolvePrice never fails: a missing (zero) tier price falls back to the generic price.
func ResolvePrice(p domain.Product, tier domain.PriceType) float64 {
	if p.UseSamePrice {
		return fallback(p.RegularPrice, p.Price)
	}

	switch tier {
	case domain.PriceWholesaler:
		return fallback(p.WholesalerPrice, p.Price)
	case domain.PriceAgent:
		return fallback(p.AgentPrice, p.Price)
	case domain.PriceAgent1:
		return fallback(p.Agent1Price, p.Price)
	default:
		return fallback(p.RegularPrice, p.Price)
	}
}

func fallback(tierPrice, price float64) float64 {
	if tierPrice != 0 {
		return tierPrice
	}
	return price
}
