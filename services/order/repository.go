package order

import (
	"context"
	"fmt"

	"github.com/MarcGrol/basketbridge/lib/mystore"
)

// Repository stores orders and their lines.
type Repository struct {
	orderStore mystore.Store[Order]
	lineStore  mystore.Store[Line]
}

func NewRepository(c context.Context) (*Repository, func(), error) {
	orderStore, orderCleanup, err := mystore.New[Order](c)
	if err != nil {
		return nil, nil, err
	}
	lineStore, lineCleanup, err := mystore.New[Line](c)
	if err != nil {
		return nil, nil, err
	}
	return NewRepositoryWithStores(orderStore, lineStore), func() {
		orderCleanup()
		lineCleanup()
	}, nil
}

func NewRepositoryWithStores(orderStore mystore.Store[Order], lineStore mystore.Store[Line]) *Repository {
	return &Repository{
		orderStore: orderStore,
		lineStore:  lineStore,
	}
}

// Create stores the order and all of its lines. Callers run it inside a transaction.
func (r *Repository) Create(c context.Context, order Order, lines []Line) error {
	err := r.orderStore.Put(c, order.UID, order)
	if err != nil {
		return fmt.Errorf("error storing order %s: %w", order.UID, err)
	}
	for _, line := range lines {
		err = r.lineStore.Put(c, line.UID, line)
		if err != nil {
			return fmt.Errorf("error storing line %d of order %s: %w", line.SortID, order.UID, err)
		}
	}
	return nil
}

func (r *Repository) LinesOf(c context.Context, orderUID string) ([]Line, error) {
	lines, err := r.lineStore.Query(c, []mystore.Filter{{Field: "OrderUID", Compare: "=", Value: orderUID}}, "SortID")
	if err != nil {
		return nil, fmt.Errorf("error fetching lines of order %s: %w", orderUID, err)
	}
	return lines, nil
}

func (r *Repository) FindByBasket(c context.Context, basketUID string) ([]Order, error) {
	orders, err := r.orderStore.Query(c, []mystore.Filter{{Field: "BasketUID", Compare: "=", Value: basketUID}}, "CreatedAt")
	if err != nil {
		return nil, fmt.Errorf("error fetching orders of basket %s: %w", basketUID, err)
	}
	return orders, nil
}
