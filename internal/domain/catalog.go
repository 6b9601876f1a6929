package domain

// ProductStatus 商品可见状态
type ProductStatus string

const (
	ProductDraft    ProductStatus = "Draft"
	ProductActive   ProductStatus = "Active"
	ProductArchived ProductStatus = "Archived"
)

// Variant 结账时使用的商品规格快照（只读，来自 catalog）
type Variant struct {
	VariantID     string        `db:"variant_id"`
	TenantID      string        `db:"tenant_id"`
	ProductID     string        `db:"product_id"`
	ProductTitle  string        `db:"product_title"`
	ProductStatus ProductStatus `db:"product_status"`
	Name          string        `db:"name"`
	SKU           string        `db:"sku"`
	PriceAmount   int64         `db:"price_amount"` // minor units
	Currency      string        `db:"currency"`
}
