package basket

import (
	"context"
	"fmt"
	"sort"

	"github.com/MarcGrol/basketbridge/lib/myerrors"
	"github.com/MarcGrol/basketbridge/lib/mystore"
)

type positionRepository struct {
	store mystore.Store[Position]
}

// listByBasket returns the positions of a basket in insertion order.
func (r positionRepository) listByBasket(c context.Context, basketUID string) ([]Position, error) {
	positions, err := r.store.Query(c, []mystore.Filter{{Field: "BasketUID", Compare: "=", Value: basketUID}}, "SortID")
	if err != nil {
		return nil, myerrors.NewInternalError(fmt.Errorf("error fetching positions of basket %s: %w", basketUID, err))
	}
	return positions, nil
}

// findMergeable finds the first comment-less position with the same article and reference.
func (r positionRepository) findMergeable(c context.Context, basketUID string, articleUID string, refUID string, refType string) (Position, bool, error) {
	positions, err := r.listByBasket(c, basketUID)
	if err != nil {
		return Position{}, false, err
	}
	for _, p := range positions {
		if p.ArticleUID == articleUID && p.RefUID == refUID && p.RefType == refType && p.Comment == "" {
			// re-read within the transaction
			return r.get(c, p.UID)
		}
	}
	return Position{}, false, nil
}

func (r positionRepository) nextSortID(c context.Context, basketUID string) (int, error) {
	positions, err := r.listByBasket(c, basketUID)
	if err != nil {
		return 0, err
	}
	next := 0
	for _, p := range positions {
		if p.SortID >= next {
			next = p.SortID + 1
		}
	}
	return next, nil
}

func (r positionRepository) get(c context.Context, uid string) (Position, bool, error) {
	position, found, err := r.store.Get(c, uid)
	if err != nil {
		return Position{}, false, myerrors.NewInternalError(fmt.Errorf("error fetching position %s: %w", uid, err))
	}
	return position, found, nil
}

// getOwned returns the position only when it belongs to the given basket.
func (r positionRepository) getOwned(c context.Context, basketUID string, uid string) (Position, error) {
	position, found, err := r.get(c, uid)
	if err != nil {
		return Position{}, err
	}
	if !found || position.BasketUID != basketUID {
		return Position{}, ErrPositionNotFound
	}
	return position, nil
}

func (r positionRepository) put(c context.Context, position Position) error {
	err := r.store.Put(c, position.UID, position)
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error storing position %s: %w", position.UID, err))
	}
	return nil
}

func (r positionRepository) delete(c context.Context, uid string) error {
	err := r.store.Delete(c, uid)
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error deleting position %s: %w", uid, err))
	}
	return nil
}

// positionWrite is a position stored or deleted within the running transaction.
type positionWrite struct {
	position Position
	deleted  bool
}

// applyTo returns the listed positions as they are once the write is committed, ordered by SortID.
func (w positionWrite) applyTo(listed []Position) []Position {
	result := make([]Position, 0, len(listed)+1)
	for _, p := range listed {
		if p.UID != w.position.UID {
			result = append(result, p)
		}
	}
	if !w.deleted {
		result = append(result, w.position)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].SortID < result[j].SortID
	})
	return result
}
