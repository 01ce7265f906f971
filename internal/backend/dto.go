package backend

// Wire contracts for the upstream commerce API. Shapes are validated at this
// boundary; nothing downstream touches raw JSON.

type CartEntry struct {
	ProductID     int    `json:"product_id"`
	NameEN        string `json:"name_en"`
	NameAR        string `json:"name_ar"`
	DescriptionEN string `json:"description_en"`
	DescriptionAR string `json:"description_ar"`
	Price         string `json:"price"`
	Image         string `json:"image"`
	Quantity      uint   `json:"quantity"`
}

type cartResponse struct {
	Data []CartEntry `json:"data"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type cartRequest struct {
	CustomerID uint   `json:"customer_id"`
	Language   string `json:"language,omitempty"`
}

type cartUpdateRequest struct {
	CustomerID uint   `json:"customer_id"`
	ProductID  int    `json:"product_id"`
	Quantity   uint   `json:"quantity"`
	Language   string `json:"language,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Language string `json:"language"`
}

type LoginResult struct {
	Token string `json:"token"`
	User  struct {
		ID uint `json:"id"`
	} `json:"user"`
}

type registerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
	Language  string `json:"language"`
}

type CheckoutItem struct {
	ProductID int    `json:"product_id"`
	Price     string `json:"price"`
	Quantity  uint   `json:"quantity"`
}

type CheckoutRequest struct {
	CustomerID    uint           `json:"customer_id"`
	AddressID     uint           `json:"address_id"`
	Items         []CheckoutItem `json:"items"`
	IsGift        bool           `json:"is_gift,omitempty"`
	GiftFirstName string         `json:"gift_first_name,omitempty"`
	GiftLastName  string         `json:"gift_last_name,omitempty"`
	GiftPhone     string         `json:"gift_phone,omitempty"`
	CouponID      uint           `json:"coupon_id,omitempty"`
	Total         string         `json:"total"`
	DeliveryCost  string         `json:"delivery_cost"`
	OrderNumber   string         `json:"order_number"`
	PaymentMethod string         `json:"payment_method"`
	Language      string         `json:"language,omitempty"`
}

type CheckoutResult struct {
	OrderID   uint   `json:"order_id"`
	OrderCode string `json:"order_code"`
	Total     string `json:"total"`
	Status    string `json:"status"`
}

type checkoutResponse struct {
	Data CheckoutResult `json:"data"`
}

type couponRequest struct {
	CustomerID uint   `json:"customer_id"`
	Code       string `json:"code"`
	Total      string `json:"total"`
	Language   string `json:"language,omitempty"`
}

type CouponResult struct {
	CouponID   uint   `json:"coupon_id"`
	Code       string `json:"code"`
	FinalTotal string `json:"final_total"`
}

type couponResponse struct {
	Data CouponResult `json:"data"`
}

type Product struct {
	ID            int    `json:"id"`
	NameEN        string `json:"name_en"`
	NameAR        string `json:"name_ar"`
	DescriptionEN string `json:"description_en"`
	DescriptionAR string `json:"description_ar"`
	Price         string `json:"price"`
	Image         string `json:"image"`
	CategoryID    int    `json:"category_id"`
	InStock       bool   `json:"in_stock"`
}

type productsResponse struct {
	Data  []Product `json:"data"`
	Total int64     `json:"total"`
}

type productResponse struct {
	Data Product `json:"data"`
}

type Category struct {
	ID     int    `json:"id"`
	NameEN string `json:"name_en"`
	NameAR string `json:"name_ar"`
	Image  string `json:"image"`
}

type categoriesResponse struct {
	Data []Category `json:"data"`
}

type Service struct {
	ID            int    `json:"id"`
	NameEN        string `json:"name_en"`
	NameAR        string `json:"name_ar"`
	DescriptionEN string `json:"description_en"`
	DescriptionAR string `json:"description_ar"`
	Image         string `json:"image"`
}

type servicesResponse struct {
	Data []Service `json:"data"`
}

type ServiceRequest struct {
	ID        int    `json:"id"`
	ServiceID int    `json:"service_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type serviceRequestsResponse struct {
	Data []ServiceRequest `json:"data"`
}

type BlogPost struct {
	ID      int    `json:"id"`
	TitleEN string `json:"title_en"`
	TitleAR string `json:"title_ar"`
	BodyEN  string `json:"body_en"`
	BodyAR  string `json:"body_ar"`
	Image   string `json:"image"`
}

type blogResponse struct {
	Data []BlogPost `json:"data"`
}

type blogPostResponse struct {
	Data BlogPost `json:"data"`
}

type Address struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	CountryID   int    `json:"country_id"`
	City        string `json:"city"`
	AddressLine string `json:"address_line"`
	IsDefault   bool   `json:"is_default"`
}

type addressesResponse struct {
	Data []Address `json:"data"`
}

type addressResponse struct {
	Data Address `json:"data"`
}

type Order struct {
	ID        uint   `json:"id"`
	OrderCode string `json:"order_code"`
	Total     string `json:"total"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type ordersResponse struct {
	Data []Order `json:"data"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
