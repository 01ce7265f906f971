package models

// CartLine is one product's presence in a session's cart. At most one line
// exists per (session_id, product_id); quantity is never stored as zero.
type CartLine struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"             json:"id"`
	SessionID     string `gorm:"index:idx_cart_session_product,unique" json:"-"`
	ProductID     int    `gorm:"index:idx_cart_session_product,unique" json:"product_id"`
	NameEN        string `json:"name_en"`
	NameAR        string `json:"name_ar"`
	DescriptionEN string `json:"description_en"`
	DescriptionAR string `json:"description_ar"`
	Price         string `gorm:"not null"                    json:"price"`
	Image         string `json:"image"`
	Quantity      uint   `gorm:"default:1;check:quantity>0"  json:"quantity"`
}

// Session holds the upstream credentials for one storefront session.
// IssuedAt is a unix timestamp; sessions older than auth.MaxAge are dead.
type Session struct {
	ID        uint   `gorm:"primaryKey"      json:"id"`
	SessionID string `gorm:"unique;not null" json:"-"`
	Token     string `gorm:"not null"        json:"-"`
	UserID    uint   `gorm:"index;not null"  json:"user_id"`
	IssuedAt  int64  `gorm:"not null"        json:"issued_at"`
}

// LastOrder is the summary shown on the success page after checkout.
type LastOrder struct {
	ID        uint    `gorm:"primaryKey"      json:"id"`
	SessionID string  `gorm:"unique;not null" json:"-"`
	OrderID   uint    `json:"order_id"`
	OrderCode string  `json:"order_code"`
	Total     string  `json:"total"`
	Status    string  `json:"status"`
	PlacedAt  int64   `json:"placed_at"`
}

// CouponMarker records a coupon applied to the session's cart, together with
// the final total the backend computed when it was applied.
type CouponMarker struct {
	ID         uint   `gorm:"primaryKey"      json:"id"`
	SessionID  string `gorm:"unique;not null" json:"-"`
	CouponID   uint   `json:"coupon_id"`
	Code       string `json:"code"`
	FinalTotal string `json:"final_total"`
}

// Preference is a small session-scoped key/value pair (last search query,
// selected category).
type Preference struct {
	ID        uint   `gorm:"primaryKey"                           json:"id"`
	SessionID string `gorm:"index:idx_pref_session_key,unique"    json:"-"`
	Key       string `gorm:"index:idx_pref_session_key,unique"    json:"key"`
	Value     string `json:"value"`
}
