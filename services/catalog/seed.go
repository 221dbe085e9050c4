package catalog

import (
	"context"
	"fmt"

	"github.com/MarcGrol/basketbridge/lib/mylog"
)

var seedTags = []Tag{
	{UID: "tag-state", Key: KeyState},
	{UID: "tag-deliverymethod", Key: KeyDeliveryMethod},
	{UID: "tag-paymentmethod", Key: KeyPaymentMethod},
	{UID: "tag-salutation", Key: KeySalutation},
}

var seedEntityTags = []EntityTag{
	{UID: "basket-state-new", EntityForm: FormBasket, TagUID: "tag-state", Value: StateNew},
	{UID: "basket-state-done", EntityForm: FormBasket, TagUID: "tag-state", Value: StateDone},
	{UID: "job-state-new", EntityForm: FormJob, TagUID: "tag-state", Value: StateNew},
	{UID: "delivery-mail", EntityForm: FormBasket, TagUID: "tag-deliverymethod", Value: "Mail", Icon: "fas fa-envelope", Gateway: GatewayMail},
	{UID: "delivery-pickup", EntityForm: FormBasket, TagUID: "tag-deliverymethod", Value: "Pickup in store", Icon: "fas fa-store", Gateway: GatewayPickup},
	{UID: "payment-prepay", EntityForm: FormBasket, TagUID: "tag-paymentmethod", Value: "Prepayment", Icon: "fas fa-money-bill", Gateway: GatewayPrepay},
	{UID: "payment-instore", EntityForm: FormBasket, TagUID: "tag-paymentmethod", Value: "Pay in store", Icon: "fas fa-cash-register", Gateway: GatewayInstore},
	{UID: "payment-stripe", EntityForm: FormBasket, TagUID: "tag-paymentmethod", Value: "Credit card", Icon: "fab fa-cc-stripe", Gateway: GatewayStripe},
	{UID: "salutation-mr", EntityForm: FormContact, TagUID: "tag-salutation", Value: "Mr."},
	{UID: "salutation-ms", EntityForm: FormContact, TagUID: "tag-salutation", Value: "Ms."},
}

var seedArticles = []Article{
	{UID: "article-hockey-stick", Label: "Hockey stick", Price: 190, FeaturedImage: "hockey-stick.jpg"},
	{UID: "article-tennis-racket", Label: "Tennis racket", Price: 169, FeaturedImage: "tennis-racket.jpg"},
	{UID: "article-tennis-balls", Label: "Tennis balls", Price: 10, FeaturedImage: "tennis-balls.jpg"},
	{UID: "article-running-shoes", Label: "Running shoes", Price: 120, FeaturedImage: "running-shoes.jpg"},
	{UID: "article-running-socks", Label: "Running socks", Price: 10},
	{UID: "article-workshop", Label: "Workshop ticket", Price: 45},
}

var seedVariants = []Variant{
	{UID: "variant-running-shoes-42", ArticleUID: "article-running-shoes", Label: "Size 42", Price: 120, FeaturedImage: "running-shoes-42.jpg"},
	{UID: "variant-running-shoes-44", ArticleUID: "article-running-shoes", Label: "Size 44", Price: 125},
	{UID: "variant-tennis-balls-6", ArticleUID: "article-tennis-balls", Label: "Tube of 6", Price: 18},
}

var seedEvents = []Event{
	{UID: "event-tennis-clinic", Label: "Tennis clinic", Excerpt: "Two hours with a pro", FeaturedImage: "clinic.jpg"},
	{UID: "event-tennis-clinic-rerun", Label: "Tennis clinic (rerun)", RootEventUID: "event-tennis-clinic"},
}

// Seed fills an empty catalog with states, delivery/payment methods, salutations and a
// handful of demo articles, so the bridge can run locally without an admin backend.
// Entries that already exist are overwritten.
func Seed(c context.Context, catalog *Catalog, events *Events) error {
	logger := mylog.New("catalog")

	for _, tag := range seedTags {
		if err := catalog.PutTag(c, tag); err != nil {
			return fmt.Errorf("error seeding tag %s: %w", tag.UID, err)
		}
	}
	for _, et := range seedEntityTags {
		if err := catalog.PutEntityTag(c, et); err != nil {
			return fmt.Errorf("error seeding entity-tag %s: %w", et.UID, err)
		}
	}
	for _, article := range seedArticles {
		if err := catalog.PutArticle(c, article); err != nil {
			return fmt.Errorf("error seeding article %s: %w", article.UID, err)
		}
	}
	for _, variant := range seedVariants {
		if err := catalog.PutVariant(c, variant); err != nil {
			return fmt.Errorf("error seeding variant %s: %w", variant.UID, err)
		}
	}
	if events != nil {
		for _, event := range seedEvents {
			if err := events.PutEvent(c, event); err != nil {
				return fmt.Errorf("error seeding event %s: %w", event.UID, err)
			}
		}
	}

	logger.Log(c, "", mylog.SeverityInfo, "Seeded catalog with %d entity-tags and %d articles", len(seedEntityTags), len(seedArticles))

	return nil
}
