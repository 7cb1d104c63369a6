package catalog

import (
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
)

type CategoryDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type ShopDTO struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	URL   *string `json:"url,omitempty"`
	State bool    `json:"state"`
}

type ProductDTO struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

type ParameterValueDTO struct {
	Parameter string `json:"parameter"`
	Value     string `json:"value"`
}

// ProductInfoDTO is a shop listing with its product and parameters.
type ProductInfoDTO struct {
	ID         int64               `json:"id"`
	Model      string              `json:"model"`
	ExternalID int64               `json:"external_id"`
	Product    ProductDTO          `json:"product"`
	Shop       ShopDTO             `json:"shop"`
	Quantity   int                 `json:"quantity"`
	Price      int64               `json:"price"`
	PriceRRC   int64               `json:"price_rrc"`
	Parameters []ParameterValueDTO `json:"product_parameters"`
}

// ProductFilter narrows the public product listing.
type ProductFilter struct {
	ShopID     *int64
	CategoryID *int64
}

func categoryFromModel(c models.Category) CategoryDTO {
	return CategoryDTO{ID: c.ID, Name: c.Name}
}

func shopFromModel(s models.Shop) ShopDTO {
	return ShopDTO{ID: s.ID, Name: s.Name, URL: s.URL, State: s.State}
}

// ProductInfoFromModel maps a preloaded listing.
func ProductInfoFromModel(pi models.ProductInfo) ProductInfoDTO {
	dto := ProductInfoDTO{
		ID:         pi.ID,
		Model:      pi.Model,
		ExternalID: pi.ExternalID,
		Quantity:   pi.Quantity,
		Price:      pi.Price,
		PriceRRC:   pi.PriceRRC,
		Parameters: make([]ParameterValueDTO, 0, len(pi.ProductParameters)),
	}
	if pi.Product != nil {
		dto.Product.Name = pi.Product.Name
		if pi.Product.Category != nil {
			dto.Product.Category = pi.Product.Category.Name
		}
	}
	if pi.Shop != nil {
		dto.Shop = shopFromModel(*pi.Shop)
	}
	for _, pp := range pi.ProductParameters {
		name := ""
		if pp.Parameter != nil {
			name = pp.Parameter.Name
		}
		dto.Parameters = append(dto.Parameters, ParameterValueDTO{Parameter: name, Value: pp.Value})
	}
	return dto
}
