package api

import "time"

// Category is a catalog category.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Product is a catalog product.
type Product struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Price       float64          `json:"price"`
	Image       string           `json:"image,omitempty"`
	Images      []string         `json:"images,omitempty"`
	CategoryID  string           `json:"category_id"`
	Available   bool             `json:"available"`
	Variants    []ProductVariant `json:"variants,omitempty"`
}

// ProductVariant is a purchasable variation of a product.
type ProductVariant struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Catalog is the full public or admin catalog.
type Catalog struct {
	Categories []Category `json:"categories"`
	Products   []Product  `json:"products"`
}

// CartItem is one line in a cart.
type CartItem struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	Image       string  `json:"image,omitempty"`
}

// Cart is a user's cart.
type Cart struct {
	ID          string     `json:"id"`
	UserID      int64      `json:"user_id"`
	Items       []CartItem `json:"items"`
	TotalAmount float64    `json:"total_amount"`
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderNew        OrderStatus = "new"
	OrderProcessing OrderStatus = "processing"
	OrderAccepted   OrderStatus = "accepted"
	OrderShipped    OrderStatus = "shipped"
	OrderDone       OrderStatus = "done"
	OrderCanceled   OrderStatus = "canceled"
)

// Final reports whether the status permits no further address edits.
func (s OrderStatus) Final() bool {
	return s == OrderShipped || s == OrderDone || s == OrderCanceled
}

// Order is a placed order.
type Order struct {
	ID              string      `json:"id"`
	UserID          int64       `json:"user_id"`
	CustomerName    string      `json:"customer_name"`
	CustomerPhone   string      `json:"customer_phone"`
	DeliveryAddress string      `json:"delivery_address"`
	Comment         string      `json:"comment,omitempty"`
	Status          OrderStatus `json:"status"`
	Items           []CartItem  `json:"items"`
	TotalAmount     float64     `json:"total_amount"`
	CanEditAddress  bool        `json:"can_edit_address"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// StoreStatus is the global store open/closed flag. It is replaced wholesale
// on every push event or poll response, never partially mutated.
type StoreStatus struct {
	IsSleepMode  bool       `json:"is_sleep_mode"`
	SleepMessage string     `json:"sleep_message,omitempty"`
	SleepUntil   *time.Time `json:"sleep_until,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// BroadcastResult reports the outcome of an admin broadcast.
type BroadcastResult struct {
	Success     bool `json:"success"`
	SentCount   int  `json:"sent_count"`
	TotalCount  int  `json:"total_count"`
	FailedCount int  `json:"failed_count"`
}

// Request payloads.

// AddToCartRequest adds quantity of a product to the user's cart.
type AddToCartRequest struct {
	UserID    int64  `json:"user_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// UpdateCartItemRequest sets the quantity of an existing cart line.
type UpdateCartItemRequest struct {
	UserID   int64  `json:"user_id"`
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// RemoveCartItemRequest removes a cart line.
type RemoveCartItemRequest struct {
	UserID int64  `json:"user_id"`
	ItemID string `json:"item_id"`
}

// OrderForm is the checkout form. Receipt is the payment receipt file
// submitted alongside the text fields.
type OrderForm struct {
	Name    string
	Phone   string
	Address string
	Comment string
	Receipt FormFile
}

// UpdateAddressRequest changes an order's delivery address.
type UpdateAddressRequest struct {
	UserID  int64  `json:"user_id"`
	Address string `json:"address"`
}

// CategoryCreate creates a category.
type CategoryCreate struct {
	Name string `json:"name"`
}

// CategoryUpdate renames a category.
type CategoryUpdate struct {
	Name string `json:"name"`
}

// ProductCreate creates a product.
type ProductCreate struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Price       float64          `json:"price"`
	Image       string           `json:"image,omitempty"`
	Images      []string         `json:"images,omitempty"`
	CategoryID  string           `json:"category_id"`
	Available   bool             `json:"available"`
	Variants    []ProductVariant `json:"variants,omitempty"`
}

// ProductUpdate patches a product. Nil fields are left unchanged.
type ProductUpdate struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *float64         `json:"price,omitempty"`
	Image       *string          `json:"image,omitempty"`
	Images      []string         `json:"images,omitempty"`
	CategoryID  *string          `json:"category_id,omitempty"`
	Available   *bool            `json:"available,omitempty"`
	Variants    []ProductVariant `json:"variants,omitempty"`
}

// SleepRequest toggles the global store sleep mode.
type SleepRequest struct {
	Sleep   bool   `json:"sleep"`
	Message string `json:"message,omitempty"`
}

// BroadcastRequest sends a message to a user segment.
type BroadcastRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Segment string `json:"segment"`
	Link    string `json:"link,omitempty"`
}

// UpdateOrderStatusRequest changes an order's status (admin).
type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status"`
}
