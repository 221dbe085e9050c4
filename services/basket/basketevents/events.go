package basketevents

const (
	TopicName        = "basket"
	basketCreateName = TopicName + ".created"
	basketClosedName = TopicName + ".closed"
)

type BasketCreated struct {
	BasketUID     string
	ShopSessionID string
}

func (e BasketCreated) GetEventTypeName() string {
	return basketCreateName
}

func (e BasketCreated) GetAggregateName() string {
	return e.BasketUID
}

// BasketClosed is published when a basket has been converted into an order.
type BasketClosed struct {
	BasketUID      string
	OrderUID       string
	PaymentGateway string
	TotalPrice     float64
}

func (e BasketClosed) GetEventTypeName() string {
	return basketClosedName
}

func (e BasketClosed) GetAggregateName() string {
	return e.BasketUID
}
