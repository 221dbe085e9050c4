package basket

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/MarcGrol/basketbridge/lib/mylog"
	"github.com/MarcGrol/basketbridge/services/catalog"
)

const refTypeEvent = "event"

// enrichPositions attaches catalog data to positions. Lookups are best effort: a failing or
// missing lookup leaves the enrichment out.
func (s *service) enrichPositions(c context.Context, sessionID string, positions []Position) ([]EnrichedPosition, Totals) {
	enriched := make([]EnrichedPosition, 0, len(positions))
	totalAmount := decimal.Zero
	totalPrice := decimal.Zero

	for _, p := range positions {
		ep := s.enrichPosition(c, sessionID, p)
		enriched = append(enriched, ep)

		amount := decimal.NewFromFloat(p.Amount)
		totalAmount = totalAmount.Add(amount)
		totalPrice = totalPrice.Add(amount.Mul(decimal.NewFromFloat(ep.EffectivePrice)))
	}

	return enriched, Totals{
		TotalAmount: totalAmount.InexactFloat64(),
		TotalPrice:  totalPrice.Round(2).InexactFloat64(),
	}
}

func (s *service) enrichPosition(c context.Context, sessionID string, p Position) EnrichedPosition {
	ep := EnrichedPosition{Position: p}
	catalogPrice := 0.0

	switch p.ArticleType {
	case ArticleTypeVariant:
		variant, found := s.variant(c, sessionID, p.ArticleUID)
		if !found {
			break
		}
		ep.Variant = &variant
		ep.Label = variant.Label
		ep.Image = catalog.ImagePath("variant", variant.UID, variant.FeaturedImage)
		catalogPrice = variant.Price

		article, found := s.article(c, sessionID, variant.ArticleUID)
		if !found {
			break
		}
		ep.Article = &article
		ep.Label = article.Label + " - " + variant.Label
		if ep.Image == "" {
			ep.Image = catalog.ImagePath("article", article.UID, article.FeaturedImage)
		}

	case ArticleTypeArticle, ArticleTypeEvent:
		article, found := s.article(c, sessionID, p.ArticleUID)
		if !found {
			break
		}
		ep.Article = &article
		ep.Label = article.Label
		ep.Image = catalog.ImagePath("article", article.UID, article.FeaturedImage)
		catalogPrice = article.Price
	}

	if p.RefType == refTypeEvent {
		if event, found := s.displayEvent(c, sessionID, p.RefUID); found {
			ep.Event = &event
			ep.Label = event.Label
			if event.FeaturedImage != "" {
				ep.Image = catalog.ImagePath("event", event.UID, event.FeaturedImage)
			}
		}
	}

	ep.EffectivePrice = catalogPrice
	if p.Price != 0 {
		ep.EffectivePrice = p.Price
	}

	return ep
}

// displayEvent resolves an event, or the event it is a rerun of.
func (s *service) displayEvent(c context.Context, sessionID string, uid string) (catalog.Event, bool) {
	if s.events == nil || uid == "" {
		return catalog.Event{}, false
	}
	event, found, err := s.events.GetEvent(c, uid)
	if err != nil {
		s.logger.Log(c, sessionID, mylog.SeverityDebug, "Error fetching event %s: %s", uid, err)
		return catalog.Event{}, false
	}
	if !found {
		return catalog.Event{}, false
	}
	if event.RootEventUID == "" {
		return event, true
	}

	root, found, err := s.events.GetEvent(c, event.RootEventUID)
	if err != nil {
		s.logger.Log(c, sessionID, mylog.SeverityDebug, "Error fetching root event %s: %s", event.RootEventUID, err)
		return event, true
	}
	if !found {
		return event, true
	}
	return root, true
}

func (s *service) article(c context.Context, sessionID string, uid string) (catalog.Article, bool) {
	article, found, err := s.products.GetArticle(c, uid)
	if err != nil {
		s.logger.Log(c, sessionID, mylog.SeverityDebug, "Error fetching article %s: %s", uid, err)
		return catalog.Article{}, false
	}
	return article, found
}

func (s *service) variant(c context.Context, sessionID string, uid string) (catalog.Variant, bool) {
	variant, found, err := s.products.GetVariant(c, uid)
	if err != nil {
		s.logger.Log(c, sessionID, mylog.SeverityDebug, "Error fetching variant %s: %s", uid, err)
		return catalog.Variant{}, false
	}
	return variant, found
}

// catalogPrice is the price a new position gets when no custom price was given.
func (s *service) catalogPrice(c context.Context, sessionID string, articleType string, articleUID string) float64 {
	switch articleType {
	case ArticleTypeVariant:
		if variant, found := s.variant(c, sessionID, articleUID); found {
			return variant.Price
		}
	case ArticleTypeArticle, ArticleTypeEvent:
		if article, found := s.article(c, sessionID, articleUID); found {
			return article.Price
		}
	}
	return 0
}

// loadEnrichedPositions lists and enriches the positions of a basket.
func (s *service) loadEnrichedPositions(c context.Context, basket Basket) ([]EnrichedPosition, Totals, error) {
	positions, err := s.positions.listByBasket(c, basket.UID)
	if err != nil {
		return nil, Totals{}, err
	}
	items, totals := s.enrichPositions(c, basket.ShopSessionID, positions)
	return items, totals, nil
}
