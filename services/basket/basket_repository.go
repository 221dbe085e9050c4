package basket

import (
	"context"
	"fmt"

	"github.com/MarcGrol/basketbridge/lib/myerrors"
	"github.com/MarcGrol/basketbridge/lib/mystore"
)

type basketRepository struct {
	store mystore.Store[Basket]
}

// findOpen returns the non-archived basket of a session.
func (r basketRepository) findOpen(c context.Context, sessionID string) (Basket, bool, error) {
	baskets, err := r.store.Query(c, []mystore.Filter{
		{Field: "ShopSessionID", Compare: "=", Value: sessionID},
		{Field: "IsArchived", Compare: "=", Value: false},
	}, "CreatedAt")
	if err != nil {
		return Basket{}, false, myerrors.NewInternalError(fmt.Errorf("error searching basket of session %s: %w", sessionID, err))
	}

	if !mystore.InTransaction(c) {
		if len(baskets) == 0 {
			return Basket{}, false, nil
		}
		return baskets[0], true, nil
	}

	for _, candidate := range baskets {
		// re-read: queries run outside the transaction and do not lock what they return
		basket, found, err := r.get(c, candidate.UID)
		if err != nil {
			return Basket{}, false, err
		}
		if found && !basket.IsArchived && basket.ShopSessionID == sessionID {
			return basket, true, nil
		}
	}
	return Basket{}, false, nil
}

func (r basketRepository) get(c context.Context, uid string) (Basket, bool, error) {
	basket, found, err := r.store.Get(c, uid)
	if err != nil {
		return Basket{}, false, myerrors.NewInternalError(fmt.Errorf("error fetching basket %s: %w", uid, err))
	}
	return basket, found, nil
}

func (r basketRepository) put(c context.Context, basket Basket) error {
	err := r.store.Put(c, basket.UID, basket)
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error storing basket %s: %w", basket.UID, err))
	}
	return nil
}
