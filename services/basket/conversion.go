package basket

import (
	"context"
	"fmt"
	"time"

	"github.com/MarcGrol/basketbridge/lib/myerrors"
	"github.com/MarcGrol/basketbridge/lib/mylog"
	"github.com/MarcGrol/basketbridge/services/basket/basketevents"
	"github.com/MarcGrol/basketbridge/services/catalog"
	"github.com/MarcGrol/basketbridge/services/order"
)

const orderLabelPrefix = "Shop order from "

// closeBasketAndCreateOrder archives the basket and snapshots it into an order with lines.
// It must run inside the transaction of the closing step: any failure rolls back the archive.
func (s *service) closeBasketAndCreateOrder(c context.Context, basket *Basket, paymentReceived *time.Time) (order.Order, []order.Line, error) {
	doneStateUID, found, err := s.resolveState(c, catalog.FormBasket, catalog.StateDone)
	if err != nil {
		return order.Order{}, nil, err
	}
	if found {
		basket.StateUID = doneStateUID
	}
	basket.IsArchived = true

	jobStateUID, found, err := s.resolveState(c, catalog.FormJob, catalog.StateNew)
	if err != nil {
		return order.Order{}, nil, err
	}
	if !found {
		return order.Order{}, nil, catalogIncomplete("no state 'new' for orders")
	}

	deliveryGateway, err := s.gatewayOf(c, basket.DeliveryMethodUID)
	if err != nil {
		return order.Order{}, nil, err
	}

	positions, err := s.positions.listByBasket(c, basket.UID)
	if err != nil {
		return order.Order{}, nil, err
	}
	sources := make([]order.LineSource, 0, len(positions))
	for _, p := range positions {
		sources = append(sources, p.lineSource())
	}

	now := s.nower.Now()
	job := order.Order{
		UID:               s.uuider.Create(),
		BasketUID:         basket.UID,
		ContactUID:        basket.ContactUID,
		StateUID:          jobStateUID,
		PaymentMethodUID:  basket.PaymentMethodUID,
		PaymentSessionID:  basket.PaymentSessionID,
		PaymentStarted:    basket.PaymentStarted,
		PaymentReceived:   paymentReceived,
		PaymentID:         basket.PaymentID,
		DeliveryMethodUID: basket.DeliveryMethodUID,
		Label:             orderLabelPrefix + now.Format(order.LabelDateLayout),
		Date:              now,
		Discount:          0,
		Description:       fmt.Sprintf("Order from shop basket %s. Comment: %s", basket.UID, basket.Comment),
		CreatedBy:         bridgeUser,
		CreatedAt:         now,
	}

	lines, total := order.BuildLines(job.UID, sources, deliveryGateway, s.uuider)
	job.TotalPrice = total.InexactFloat64()

	err = s.orders.Create(c, job, lines)
	if err != nil {
		return order.Order{}, nil, myerrors.NewInternalError(fmt.Errorf("error creating order for basket %s: %w", basket.UID, err))
	}

	basket.JobUID = job.UID
	err = s.baskets.put(c, *basket)
	if err != nil {
		return order.Order{}, nil, err
	}

	err = s.publisher.Publish(c, basketevents.TopicName, basketevents.BasketClosed{
		BasketUID:      basket.UID,
		OrderUID:       job.UID,
		PaymentGateway: basket.PaymentGateway,
		TotalPrice:     job.TotalPrice,
	})
	if err != nil {
		return order.Order{}, nil, myerrors.NewInternalError(fmt.Errorf("error publishing closure of basket %s: %w", basket.UID, err))
	}

	s.logger.Log(c, basket.ShopSessionID, mylog.SeverityInfo, "Basket %s converted into order %s with %d lines (total %s)",
		basket.UID, job.UID, len(lines), total.StringFixed(2))

	return job, lines, nil
}

// gatewayOf returns the gateway key of a delivery or payment method, empty when not selected.
func (s *service) gatewayOf(c context.Context, entityTagUID string) (string, error) {
	tag, found, err := s.catalog.GetEntityTag(c, entityTagUID)
	if err != nil {
		return "", myerrors.NewInternalError(fmt.Errorf("error fetching entity tag %s: %w", entityTagUID, err))
	}
	if !found {
		return "", nil
	}
	return tag.Gateway, nil
}
