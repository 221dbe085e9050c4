package basket

import (
	"time"

	"github.com/MarcGrol/basketbridge/services/catalog"
	"github.com/MarcGrol/basketbridge/services/contact"
	"github.com/MarcGrol/basketbridge/services/order"
)

const (
	defaultLabel   = "New Basket"
	defaultComment = "Created by WP Bridge"
	bridgeUser     = "wp-bridge"
)

// Basket is scoped to one storefront session. At most one basket per session is open (not archived).
type Basket struct {
	UID               string     `gorm:"primaryKey" json:"id"`
	ShopSessionID     string     `gorm:"index" json:"shop_session_id"`
	StateUID          string     `json:"state_id"`
	ContactUID        string     `json:"contact_id"`
	DeliveryMethodUID string     `json:"deliverymethod_id"`
	PaymentMethodUID  string     `json:"paymentmethod_id"`
	IsArchived        bool       `json:"is_archived"`
	PaymentGateway    string     `json:"payment_gateway"`
	PaymentID         string     `json:"payment_id"`
	PaymentSessionID  string     `json:"payment_session_id"`
	PaymentStarted    *time.Time `json:"payment_started,omitempty"`
	PaymentReceived   *time.Time `json:"payment_received,omitempty"`
	JobUID            string     `json:"job_id"`
	StepCount         int        `json:"step_count"`
	Comment           string     `json:"comment" datastore:",noindex"`
	Label             string     `json:"label"`
	CreatedBy         string     `json:"created_by"`
	CreatedAt         time.Time  `json:"created_at"`
	ModifiedBy        string     `json:"modified_by"`
	ModifiedAt        time.Time  `json:"modified_at"`
}

type Position struct {
	UID         string    `gorm:"primaryKey" json:"id"`
	BasketUID   string    `gorm:"index" json:"basket_id"`
	ArticleUID  string    `json:"article_id"`
	ArticleType string    `json:"article_type"`
	RefUID      string    `json:"ref_id"`
	RefType     string    `json:"ref_type"`
	Amount      float64   `json:"amount"`
	Price       float64   `json:"price"`
	Comment     string    `json:"comment"`
	SortID      int       `json:"sort_id"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedBy  string    `json:"modified_by"`
	ModifiedAt  time.Time `json:"modified_at"`
}

func (p Position) lineSource() order.LineSource {
	return order.LineSource{
		ArticleUID:  p.ArticleUID,
		ArticleType: p.ArticleType,
		RefUID:      p.RefUID,
		RefType:     p.RefType,
		Amount:      p.Amount,
		Price:       p.Price,
		Comment:     p.Comment,
	}
}

// Step is an entry in the append-only audit trail of a basket.
type Step struct {
	UID       string    `gorm:"primaryKey" json:"id"`
	BasketUID string    `gorm:"index" json:"basket_id"`
	Seq       int       `json:"seq"`
	StepKey   string    `json:"step_key"`
	Label     string    `json:"label"`
	Comment   string    `json:"comment" datastore:",noindex"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	StepAddItem            = "add_item"
	StepUpdateAmount       = "update_amount"
	StepCheckoutInit       = "checkout_init"
	StepCheckoutRepeat     = "checkout_repeat"
	StepCheckoutInitRepeat = "checkout_init_repeat"
	StepPaymentInit        = "payment_init"
	StepPaymentRepeat      = "payment_repeat"
	StepConfirmOrder       = "confirm_order"
	StepPaymentStart       = "payment_start"
	StepBasketClose        = "basket_close"
	StepItemRemove         = "item_remove"
	StepItemUpdate         = "item_update"
	StepStripeInit         = "stripe_init"
)

var stepLabels = map[string]string{
	StepAddItem:            "Item added",
	StepUpdateAmount:       "Item amount increased",
	StepCheckoutInit:       "Checkout started",
	StepCheckoutRepeat:     "Checkout started again",
	StepCheckoutInitRepeat: "Checkout started again without contact",
	StepPaymentInit:        "Payment selection started",
	StepPaymentRepeat:      "Payment selection repeated",
	StepConfirmOrder:       "Order confirmed",
	StepPaymentStart:       "Payment started",
	StepBasketClose:        "Basket closed",
	StepItemRemove:         "Item removed",
	StepItemUpdate:         "Item updated",
	StepStripeInit:         "Stripe payment started",
}

// Article types that carry a catalog price.
const (
	ArticleTypeArticle = "article"
	ArticleTypeVariant = "variant"
	ArticleTypeEvent   = "event"
)

// EnrichedPosition is a position with the catalog data needed to display it.
type EnrichedPosition struct {
	Position
	Label          string           `json:"label"`
	Article        *catalog.Article `json:"article,omitempty"`
	Variant        *catalog.Variant `json:"variant,omitempty"`
	Event          *catalog.Event   `json:"event,omitempty"`
	Image          string           `json:"image"`
	EffectivePrice float64          `json:"effective_price"`
}

type Totals struct {
	TotalAmount float64 `json:"total_amount"`
	TotalPrice  float64 `json:"total_price"`
}

const (
	stateSuccess = "success"
	stateError   = "error"
)

// Response is what every basket action answers with. Only the parts relevant to the action are filled.
type Response struct {
	State                 string               `json:"state"`
	Message               string               `json:"message"`
	Basket                *Basket              `json:"basket,omitempty"`
	Position              *Position            `json:"position,omitempty"`
	Items                 []EnrichedPosition   `json:"items,omitempty"`
	Positions             []EnrichedPosition   `json:"positions,omitempty"`
	DeliveryMethods       []catalog.Option     `json:"deliverymethods,omitempty"`
	Salutations           []catalog.Option     `json:"salutations,omitempty"`
	Contact               *contact.WithAddress `json:"contact,omitempty"`
	PaymentMethods        []catalog.Option     `json:"paymentmethods,omitempty"`
	PaymentMethodSelected *catalog.Option      `json:"paymentmethodselected,omitempty"`
	PaymentMethod         *catalog.Option      `json:"paymentmethod,omitempty"`
	DeliveryMethod        *catalog.Option      `json:"deliverymethod,omitempty"`
	Order                 *order.Order         `json:"order,omitempty"`
	OrderLines            []order.Line         `json:"order_lines,omitempty"`
	*Totals
}

func success(message string) Response {
	return Response{
		State:   stateSuccess,
		Message: message,
	}
}
