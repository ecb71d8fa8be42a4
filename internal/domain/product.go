package domain

// PriceInfo is one price entry on a captured product. PriceType 1 marks
// the sale price.
type PriceInfo struct {
	PriceType int    `json:"priceType"`
	Price     string `json:"price"`
}

// StockInfo carries the stock block of a captured product.
type StockInfo struct {
	StockQuantity int `json:"stockQuantity"`
}

// Product is one catalog item keyed by (spu id, store id). The same spu
// listed under two stores is two distinct records. Price stays a decimal
// string end to end.
type Product struct {
	SpuID         string `json:"spuId"`
	StoreID       string `json:"storeId"`
	Title         string `json:"title"`
	SubTitle      string `json:"subTitle"`
	ImageURL      string `json:"image"`
	Price         string `json:"price"`
	StockQuantity int    `json:"stockQuantity"`
	IsAvailable   bool   `json:"isAvailable"`
	IsImport      bool   `json:"isImport"`

	// CategoryID is the context category this listing was filtered by.
	// Empty when context inference is disabled.
	CategoryID string `json:"categoryId,omitempty"`
}

// Mapping associates a product spu with one category. The persisted set
// is the closure of the direct associations over category ancestors.
type Mapping struct {
	SpuID      string `json:"product_spu_id"`
	CategoryID string `json:"category_id"`
}

// HomeProduct is one product row on the storefront home page.
type HomeProduct struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int    `json:"price"`
	ImageURL    string `json:"image_url"`
	Stock       int    `json:"stock"`
}

// HomeCategory is a level-1 category with its newest products, as served
// by the home/data endpoint.
type HomeCategory struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	ImageURL *string       `json:"image_url"`
	Products []HomeProduct `json:"products"`
}
