package catalog

import (
	"strings"

	"github.com/cartsmash/resolver/internal/domain"
)

// searchResponse is the catalog search wire format
type searchResponse struct {
	Products     []wireProduct `json:"products"`
	TotalResults int           `json:"total_results"`
}

type wireProduct struct {
	ID           string   `json:"id"`
	SKU          string   `json:"sku"`
	Name         string   `json:"name"`
	Brand        string   `json:"brand"`
	Size         string   `json:"size"`
	Price        *float64 `json:"price"`
	Availability string   `json:"availability"`
}

// MapSearchResponse converts the wire response into domain candidates.
// Products without a name or any identifier are dropped.
func MapSearchResponse(resp *searchResponse) *domain.SearchResult {
	result := &domain.SearchResult{
		Products:     make([]domain.CandidateProduct, 0, len(resp.Products)),
		TotalResults: resp.TotalResults,
	}

	for _, p := range resp.Products {
		name := strings.TrimSpace(p.Name)
		id := strings.TrimSpace(p.ID)
		sku := strings.TrimSpace(p.SKU)
		if name == "" || (id == "" && sku == "") {
			continue
		}
		if id == "" {
			id = sku
		}

		result.Products = append(result.Products, domain.CandidateProduct{
			ID:           id,
			SKU:          sku,
			Name:         name,
			Brand:        strings.TrimSpace(p.Brand),
			Size:         strings.TrimSpace(p.Size),
			Price:        p.Price,
			Availability: NormalizeAvailability(p.Availability),
		})
	}

	if result.TotalResults < len(result.Products) {
		result.TotalResults = len(result.Products)
	}

	return result
}

// NormalizeAvailability maps the catalog's stock strings onto domain availability
func NormalizeAvailability(s string) domain.Availability {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in_stock", "in stock", "instock", "available":
		return domain.AvailabilityInStock
	case "limited", "limited_stock", "low_stock", "low stock":
		return domain.AvailabilityLimitedStock
	default:
		return domain.AvailabilityUnknown
	}
}
