package basket

import (
	"context"
	"fmt"

	"github.com/MarcGrol/basketbridge/lib/myerrors"
	"github.com/MarcGrol/basketbridge/lib/mylog"
	"github.com/MarcGrol/basketbridge/lib/mymetrics"
	"github.com/MarcGrol/basketbridge/lib/mystore"
	"github.com/MarcGrol/basketbridge/lib/mytime"
	"github.com/MarcGrol/basketbridge/lib/myuuid"
)

type stepLog struct {
	logger  mylog.Logger
	store   mystore.Store[Step]
	baskets basketRepository
	metrics *mymetrics.BasketMetrics
	nower   mytime.Nower
	uuider  myuuid.UUIDer
}

// append records a step and touches the modification time of the basket, which is stored as well.
// The sequence comes from the counter on the basket: several steps of one transaction cannot be
// counted with a query.
func (l stepLog) append(c context.Context, basket *Basket, stepKey string, comment string) error {
	now := l.nower.Now()
	basket.StepCount++
	step := Step{
		UID:       l.uuider.Create(),
		BasketUID: basket.UID,
		Seq:       basket.StepCount,
		StepKey:   stepKey,
		Label:     stepLabels[stepKey],
		Comment:   comment,
		CreatedAt: now,
	}
	err := l.store.Put(c, step.UID, step)
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error storing step %s of basket %s: %w", stepKey, basket.UID, err))
	}

	basket.ModifiedAt = now
	basket.ModifiedBy = bridgeUser
	err = l.baskets.put(c, *basket)
	if err != nil {
		return err
	}

	l.logger.Log(c, basket.ShopSessionID, mylog.SeverityDebug, "Basket %s: step %d %s", basket.UID, step.Seq, stepKey)
	l.metrics.IncStep(stepKey)

	return nil
}

// list returns the steps of a basket in the order they were recorded.
func (l stepLog) list(c context.Context, basketUID string) ([]Step, error) {
	steps, err := l.store.Query(c, []mystore.Filter{{Field: "BasketUID", Compare: "=", Value: basketUID}}, "Seq")
	if err != nil {
		return nil, myerrors.NewInternalError(fmt.Errorf("error fetching steps of basket %s: %w", basketUID, err))
	}
	return steps, nil
}
