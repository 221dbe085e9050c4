package catalog

import (
	"context"
	"fmt"
)

func (s *Catalog) GetArticle(c context.Context, uid string) (Article, bool, error) {
	article, found, err := s.articleStore.Get(c, uid)
	if err != nil {
		return Article{}, false, fmt.Errorf("error fetching article %s: %w", uid, err)
	}
	return article, found, nil
}

func (s *Catalog) GetVariant(c context.Context, uid string) (Variant, bool, error) {
	variant, found, err := s.variantStore.Get(c, uid)
	if err != nil {
		return Variant{}, false, fmt.Errorf("error fetching variant %s: %w", uid, err)
	}
	return variant, found, nil
}

func (s *Catalog) PutArticle(c context.Context, article Article) error {
	return s.articleStore.Put(c, article.UID, article)
}

func (s *Catalog) PutVariant(c context.Context, variant Variant) error {
	return s.variantStore.Put(c, variant.UID, variant)
}

func (e *Events) GetEvent(c context.Context, uid string) (Event, bool, error) {
	event, found, err := e.eventStore.Get(c, uid)
	if err != nil {
		return Event{}, false, fmt.Errorf("error fetching event %s: %w", uid, err)
	}
	return event, found, nil
}

func (e *Events) PutEvent(c context.Context, event Event) error {
	return e.eventStore.Put(c, event.UID, event)
}
