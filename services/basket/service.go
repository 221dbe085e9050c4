package basket

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarcGrol/basketbridge/lib/myerrors"
	"github.com/MarcGrol/basketbridge/lib/mylock"
	"github.com/MarcGrol/basketbridge/lib/mylog"
	"github.com/MarcGrol/basketbridge/lib/mymetrics"
	"github.com/MarcGrol/basketbridge/lib/mypublisher"
	"github.com/MarcGrol/basketbridge/lib/mystore"
	"github.com/MarcGrol/basketbridge/lib/mytime"
	"github.com/MarcGrol/basketbridge/lib/myuuid"
	"github.com/MarcGrol/basketbridge/services/catalog"
	"github.com/MarcGrol/basketbridge/services/contact"
	"github.com/MarcGrol/basketbridge/services/order"
)

type CatalogLookup interface {
	FindEntityTags(c context.Context, form string, tagKey string) ([]catalog.EntityTag, error)
	FindEntityTag(c context.Context, form string, tagKey string, value string) (catalog.EntityTag, bool, error)
	GetEntityTag(c context.Context, uid string) (catalog.EntityTag, bool, error)
}

type ProductReader interface {
	GetArticle(c context.Context, uid string) (catalog.Article, bool, error)
	GetVariant(c context.Context, uid string) (catalog.Variant, bool, error)
}

type EventReader interface {
	GetEvent(c context.Context, uid string) (catalog.Event, bool, error)
}

type ContactStore interface {
	Get(c context.Context, uid string) (contact.Contact, bool, error)
	GetWithAddress(c context.Context, uid string) (contact.WithAddress, bool, error)
	FindByEmail(c context.Context, email string) (contact.Contact, bool, error)
	Create(c context.Context, person contact.Contact, address contact.Address) (contact.Contact, contact.Address, error)
}

type OrderCreator interface {
	Create(c context.Context, order order.Order, lines []order.Line) error
}

// Dependencies of the basket service. Events is nil when the event plugin is not installed,
// Metrics may be nil.
type Dependencies struct {
	BasketStore   mystore.Store[Basket]
	PositionStore mystore.Store[Position]
	StepStore     mystore.Store[Step]
	Catalog       CatalogLookup
	Products      ProductReader
	Events        EventReader
	Contacts      ContactStore
	Orders        OrderCreator
	Locker        mylock.Locker
	Publisher     mypublisher.Publisher
	Metrics       *mymetrics.BasketMetrics
	Nower         mytime.Nower
	UUIDer        myuuid.UUIDer
}

type service struct {
	logger    mylog.Logger
	txStore   mystore.Store[Basket]
	baskets   basketRepository
	positions positionRepository
	steps     stepLog
	catalog   CatalogLookup
	products  ProductReader
	events    EventReader
	contacts  ContactStore
	orders    OrderCreator
	locker    mylock.Locker
	publisher mypublisher.Publisher
	metrics   *mymetrics.BasketMetrics
	nower     mytime.Nower
	uuider    myuuid.UUIDer
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(deps Dependencies, logger mylog.Logger) (*service, error) {
	if deps.BasketStore == nil || deps.PositionStore == nil || deps.StepStore == nil {
		return nil, fmt.Errorf("basket, position and step stores are required")
	}
	if deps.Catalog == nil || deps.Products == nil || deps.Contacts == nil || deps.Orders == nil {
		return nil, fmt.Errorf("catalog, products, contacts and orders are required")
	}
	if deps.Locker == nil {
		deps.Locker = mylock.NewInMemoryLocker()
	}
	if deps.Events == nil {
		logger.Log(context.Background(), "", mylog.SeverityInfo, "Event plugin not installed: positions are shown without event data")
	}

	baskets := basketRepository{store: deps.BasketStore}
	return &service{
		logger:    logger,
		txStore:   deps.BasketStore,
		baskets:   baskets,
		positions: positionRepository{store: deps.PositionStore},
		steps: stepLog{
			logger:  logger,
			store:   deps.StepStore,
			baskets: baskets,
			metrics: deps.Metrics,
			nower:   deps.Nower,
			uuider:  deps.UUIDer,
		},
		catalog:   deps.Catalog,
		products:  deps.Products,
		events:    deps.Events,
		contacts:  deps.Contacts,
		orders:    deps.Orders,
		locker:    deps.Locker,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		nower:     deps.Nower,
		uuider:    deps.UUIDer,
	}, nil
}

func lockKey(sessionID string) string {
	return "basket-session:" + sessionID
}

// mutate serialises all changes of one session and runs them in a single transaction.
// f may be retried by the store, so it must not leak state between attempts.
func (s *service) mutate(c context.Context, sessionID string, f func(c context.Context) error) error {
	err := mylock.WithLock(c, s.locker, lockKey(sessionID), func(c context.Context) error {
		return s.txStore.RunInTransaction(c, f)
	})
	if errors.Is(err, mylock.ErrNotAcquired) {
		return myerrors.NewConflictError(fmt.Errorf("session %s is busy: %w", sessionID, err))
	}
	return err
}

// requireOpenBasket is used by every path where a missing basket is an error.
func (s *service) requireOpenBasket(c context.Context, sessionID string) (Basket, error) {
	basket, found, err := s.baskets.findOpen(c, sessionID)
	if err != nil {
		return Basket{}, err
	}
	if !found {
		return Basket{}, ErrBasketNotFound
	}
	return basket, nil
}
