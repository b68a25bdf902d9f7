package orders

import "github.com/shopspring/decimal"

type CreateOrderRequest struct {
	Customer      string          `json:"customer" validate:"required,max=200"`
	Phone         string          `json:"phone" validate:"required,phonedigits"`
	Origin        string          `json:"origin" validate:"max=80"`
	LeadID        string          `json:"lead_id"`
	Items         []LineItemInput `json:"items" validate:"required,min=1,dive"`
	Discount      decimal.Decimal `json:"discount"`
	Shipping      decimal.Decimal `json:"shipping"`
	Status        Status          `json:"status"`
	PaymentMethod string          `json:"payment_method" validate:"max=60"`
	Notes         string          `json:"notes"`
}

type LineItemInput struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name" validate:"required,max=200"`
	Quantity  int             `json:"quantity" validate:"gte=1"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type UpdateStatusRequest struct {
	Status        Status `json:"status" validate:"required"`
	PaymentMethod string `json:"payment_method" validate:"max=60"`
}
