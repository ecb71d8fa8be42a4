package extract

import (
	"encoding/json"
	"strings"

	"samstore/ingest/internal/domain"
	"samstore/ingest/internal/har"

	log "github.com/sirupsen/logrus"
)

const (
	groupingListPath = "/goods-portal/grouping/list"

	// salePriceType marks the canonical sale price among a product's
	// price entries.
	salePriceType = 1
)

// ProductResult is the deduplicated product set discovered in one
// capture, plus the count of entries dropped because their bodies failed
// to parse.
type ProductResult struct {
	Products []domain.Product
	Skipped  int
}

type listRequest struct {
	FrontCategoryIDs []string `json:"frontCategoryIds"`
}

type listResponse struct {
	Data struct {
		DataList []productPayload `json:"dataList"`
	} `json:"data"`
}

type productPayload struct {
	SpuID       string             `json:"spuId"`
	StoreID     string             `json:"storeId"`
	Title       string             `json:"title"`
	SubTitle    string             `json:"subTitle"`
	Image       string             `json:"image"`
	PriceInfo   []domain.PriceInfo `json:"priceInfo"`
	StockInfo   *domain.StockInfo  `json:"stockInfo"`
	IsAvailable bool               `json:"isAvailable"`
	IsImport    bool               `json:"isImport"`
}

// Products scans the product-listing entries of a capture. When
// inferCategory is set, each entry's products are associated with the
// first front category id of the request body; entries without one
// contribute nothing, since their products cannot be safely associated.
// The richer per-product membership is rebuilt later by ancestor
// propagation from that single context category. Products are
// deduplicated first-wins on (spu id, store id) across the whole scan,
// in capture order.
func Products(entries []har.Entry, inferCategory bool) ProductResult {
	var products []domain.Product
	seen := make(map[string]struct{})
	skipped := 0

	for _, entry := range entries {
		if !strings.Contains(entry.RequestURL, groupingListPath) || entry.ResponseBody == "" {
			continue
		}
		if inferCategory && entry.RequestBody == "" {
			log.Debugf("Skipping product listing without request body: %s", entry.RequestURL)
			continue
		}

		contextCategoryID := ""
		if inferCategory {
			var req listRequest
			if err := json.Unmarshal([]byte(entry.RequestBody), &req); err != nil {
				log.Warnf("Skipping product listing, bad request body: %v", err)
				skipped++
				continue
			}
			if len(req.FrontCategoryIDs) == 0 || req.FrontCategoryIDs[0] == "" {
				log.Debugf("Skipping product listing without front category context: %s", entry.RequestURL)
				continue
			}
			// Only the first id: the listing was filtered by it, and the
			// full membership comes back through ancestor expansion.
			contextCategoryID = req.FrontCategoryIDs[0]
		}

		var resp listResponse
		if err := json.Unmarshal([]byte(entry.ResponseBody), &resp); err != nil {
			log.Warnf("Skipping product listing, bad response body: %v", err)
			skipped++
			continue
		}

		for _, p := range resp.Data.DataList {
			if p.SpuID == "" {
				continue
			}
			key := p.SpuID + "-" + p.StoreID
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}

			product := domain.Product{
				SpuID:       p.SpuID,
				StoreID:     p.StoreID,
				Title:       p.Title,
				SubTitle:    p.SubTitle,
				ImageURL:    p.Image,
				Price:       salePrice(p.PriceInfo),
				IsAvailable: p.IsAvailable,
				IsImport:    p.IsImport,
				CategoryID:  contextCategoryID,
			}
			if p.StockInfo != nil {
				product.StockQuantity = p.StockInfo.StockQuantity
			}
			products = append(products, product)
		}
	}

	log.Debugf("Discovered %d products (%d entries skipped)", len(products), skipped)
	return ProductResult{Products: products, Skipped: skipped}
}

// salePrice returns the price entry designated as the sale price,
// defaulting to "0" when absent.
func salePrice(prices []domain.PriceInfo) string {
	for _, p := range prices {
		if p.PriceType == salePriceType && p.Price != "" {
			return p.Price
		}
	}
	return "0"
}
