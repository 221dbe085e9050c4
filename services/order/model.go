package order

import "time"

// Order is the job created from a closed basket. It is never modified afterwards.
type Order struct {
	UID               string     `gorm:"primaryKey" json:"id"`
	BasketUID         string     `json:"basket_id"`
	ContactUID        string     `json:"contact_id"`
	StateUID          string     `json:"state_id"`
	PaymentMethodUID  string     `json:"paymentmethod_id"`
	PaymentSessionID  string     `json:"payment_session_id"`
	PaymentStarted    *time.Time `json:"payment_started,omitempty"`
	PaymentReceived   *time.Time `json:"payment_received,omitempty"`
	PaymentID         string     `json:"payment_id"`
	DeliveryMethodUID string     `json:"deliverymethod_id"`
	Label             string     `json:"label"`
	Date              time.Time  `json:"date"`
	Discount          float64    `json:"discount"`
	Description       string     `json:"description" datastore:",noindex"`
	TotalPrice        float64    `json:"total_price"`
	CreatedBy         string     `json:"created_by"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Line is a snapshot of one basket position at the moment the order was created.
type Line struct {
	UID          string  `gorm:"primaryKey" json:"id"`
	OrderUID     string  `json:"order_id"`
	ArticleUID   string  `json:"article_id"`
	ArticleType  string  `json:"article_type"`
	RefUID       string  `json:"ref_id"`
	RefType      string  `json:"ref_type"`
	SortID       int     `json:"sort_id"`
	Amount       float64 `json:"amount"`
	Price        float64 `json:"price"`
	Discount     float64 `json:"discount"`
	DiscountType string  `json:"discount_type"`
	Description  string  `json:"description" datastore:",noindex"`
}

// LineSource is what a line is copied from.
type LineSource struct {
	ArticleUID  string
	ArticleType string
	RefUID      string
	RefType     string
	Amount      float64
	Price       float64
	Comment     string
}

const (
	LabelDateLayout     = "2006-01-02"
	DiscountTypePercent = "percent"
	ArticleTypeCustom   = "custom"
)
