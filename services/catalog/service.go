package catalog

import (
	"context"

	"github.com/MarcGrol/basketbridge/lib/mylog"
	"github.com/MarcGrol/basketbridge/lib/mystore"
)

// Catalog gives read access to the tag catalog and the article/variant store.
type Catalog struct {
	logger         mylog.Logger
	tagStore       mystore.Store[Tag]
	entityTagStore mystore.Store[EntityTag]
	articleStore   mystore.Store[Article]
	variantStore   mystore.Store[Variant]
}

func New(c context.Context) (*Catalog, func(), error) {
	tagStore, tagCleanup, err := mystore.New[Tag](c)
	if err != nil {
		return nil, nil, err
	}
	entityTagStore, entityTagCleanup, err := mystore.New[EntityTag](c)
	if err != nil {
		return nil, nil, err
	}
	articleStore, articleCleanup, err := mystore.New[Article](c)
	if err != nil {
		return nil, nil, err
	}
	variantStore, variantCleanup, err := mystore.New[Variant](c)
	if err != nil {
		return nil, nil, err
	}

	return NewWithStores(tagStore, entityTagStore, articleStore, variantStore), func() {
		tagCleanup()
		entityTagCleanup()
		articleCleanup()
		variantCleanup()
	}, nil
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWithStores(tagStore mystore.Store[Tag], entityTagStore mystore.Store[EntityTag], articleStore mystore.Store[Article], variantStore mystore.Store[Variant]) *Catalog {
	return &Catalog{
		logger:         mylog.New("catalog"),
		tagStore:       tagStore,
		entityTagStore: entityTagStore,
		articleStore:   articleStore,
		variantStore:   variantStore,
	}
}

// Events is the optional event plugin store.
type Events struct {
	eventStore mystore.Store[Event]
}

func NewEvents(c context.Context) (*Events, func(), error) {
	eventStore, cleanup, err := mystore.New[Event](c)
	if err != nil {
		return nil, nil, err
	}
	return NewEventsWithStore(eventStore), cleanup, nil
}

func NewEventsWithStore(eventStore mystore.Store[Event]) *Events {
	return &Events{
		eventStore: eventStore,
	}
}
