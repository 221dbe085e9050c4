package catalog

import "fmt"

// Entity forms a tag can be scoped to.
const (
	FormBasket  = "basket-single"
	FormJob     = "job-single"
	FormContact = "contact-single"
)

// Tag keys.
const (
	KeyState          = "state"
	KeyDeliveryMethod = "deliverymethod"
	KeyPaymentMethod  = "paymentmethod"
	KeySalutation     = "salutation"
)

// State values.
const (
	StateNew  = "new"
	StateDone = "done"
)

// Gateway keys of delivery and payment methods.
const (
	GatewayMail    = "mail"
	GatewayPickup  = "pickup"
	GatewayPrepay  = "prepay"
	GatewayInstore = "instore"
	GatewayStripe  = "stripe"
)

type Tag struct {
	UID string `gorm:"primaryKey"`
	Key string
}

// EntityTag is one enumerated value of a Tag within an entity form, like the
// delivery method "Mail" of a basket.
type EntityTag struct {
	UID        string `gorm:"primaryKey"`
	EntityForm string
	TagUID     string
	Value      string
	Icon       string
	Gateway    string
}

// Option is the display projection of an EntityTag.
type Option struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Icon    string `json:"icon"`
	Gateway string `json:"gateway,omitempty"`
}

// NoOption is shown when nothing has been selected yet.
var NoOption = Option{ID: "", Label: "-", Icon: ""}

func (t EntityTag) Option() Option {
	return Option{
		ID:      t.UID,
		Label:   t.Value,
		Icon:    t.Icon,
		Gateway: t.Gateway,
	}
}

type Article struct {
	UID           string `gorm:"primaryKey"`
	Label         string
	Description   string `datastore:",noindex"`
	Price         float64
	FeaturedImage string
}

type Variant struct {
	UID           string `gorm:"primaryKey"`
	ArticleUID    string
	Label         string
	Price         float64
	FeaturedImage string
}

type Event struct {
	UID           string `gorm:"primaryKey"`
	Label         string
	Excerpt       string `datastore:",noindex"`
	Description   string `datastore:",noindex"`
	FeaturedImage string
	// RootEventUID refers to the original when this event is a rerun.
	RootEventUID string
}

// ImagePath gives the public location of an uploaded image, empty when there is none.
func ImagePath(entity string, uid string, file string) string {
	if file == "" {
		return ""
	}
	return fmt.Sprintf("/data/%s/%s/%s", entity, uid, file)
}
