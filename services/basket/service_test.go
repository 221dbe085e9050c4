package basket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MarcGrol/basketbridge/lib/myerrors"
	"github.com/MarcGrol/basketbridge/lib/myevents"
	"github.com/MarcGrol/basketbridge/lib/mylock"
	"github.com/MarcGrol/basketbridge/lib/mylog"
	"github.com/MarcGrol/basketbridge/lib/mypublisher"
	"github.com/MarcGrol/basketbridge/lib/mystore"
	"github.com/MarcGrol/basketbridge/lib/mytime"
	"github.com/MarcGrol/basketbridge/lib/myuuid"
	"github.com/MarcGrol/basketbridge/services/basket/basketevents"
	"github.com/MarcGrol/basketbridge/services/catalog"
	"github.com/MarcGrol/basketbridge/services/contact"
	"github.com/MarcGrol/basketbridge/services/order"
)

type testContext struct {
	c           context.Context
	sut         *service
	catalog     *catalog.Catalog
	orders      *order.Repository
	basketStore mystore.Store[Basket]

	mu        sync.Mutex
	published []myevents.Event
}

func (tc *testContext) events() []myevents.Event {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return append([]myevents.Event{}, tc.published...)
}

func setup(t *testing.T, withEventPlugin bool) *testContext {
	return setupWithBuffer(t, withEventPlugin, nil)
}

// setupWithBuffer keeps the writes of a transaction in buffer until commit when buffer is not nil.
func setupWithBuffer(t *testing.T, withEventPlugin bool, buffer *writeBuffer) *testContext {
	c := context.TODO()
	ctrl := gomock.NewController(t)

	nower := mytime.NewMockNower(ctrl)
	nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()

	uuider := myuuid.NewMockUUIDer(ctrl)
	counter := 0
	uuider.EXPECT().Create().DoAndReturn(func() string {
		counter++
		return fmt.Sprintf("uid-%d", counter)
	}).AnyTimes()

	tagStore, _, _ := mystore.NewInMemoryStore[catalog.Tag](c)
	entityTagStore, _, _ := mystore.NewInMemoryStore[catalog.EntityTag](c)
	articleStore, _, _ := mystore.NewInMemoryStore[catalog.Article](c)
	variantStore, _, _ := mystore.NewInMemoryStore[catalog.Variant](c)
	eventStore, _, _ := mystore.NewInMemoryStore[catalog.Event](c)
	catalogService := catalog.NewWithStores(tagStore, entityTagStore, articleStore, variantStore)
	events := catalog.NewEventsWithStore(eventStore)
	require.NoError(t, catalog.Seed(c, catalogService, events))

	contactStore := newTestStore[contact.Contact](c, buffer)
	addressStore := newTestStore[contact.Address](c, buffer)
	orderStore := newTestStore[order.Order](c, buffer)
	lineStore := newTestStore[order.Line](c, buffer)
	basketStore := newTestStore[Basket](c, buffer)
	positionStore := newTestStore[Position](c, buffer)
	stepStore := newTestStore[Step](c, buffer)

	tc := &testContext{
		c:           c,
		catalog:     catalogService,
		orders:      order.NewRepositoryWithStores(orderStore, lineStore),
		basketStore: basketStore,
	}

	publisher := mypublisher.NewMockPublisher(ctrl)
	publisher.EXPECT().Publish(gomock.Any(), basketevents.TopicName, gomock.Any()).DoAndReturn(
		func(c context.Context, topic string, event myevents.Event) error {
			tc.mu.Lock()
			defer tc.mu.Unlock()
			tc.published = append(tc.published, event)
			return nil
		}).AnyTimes()

	deps := Dependencies{
		BasketStore:   basketStore,
		PositionStore: positionStore,
		StepStore:     stepStore,
		Catalog:       catalogService,
		Products:      catalogService,
		Contacts:      contact.NewWithStores(contactStore, addressStore, nower, uuider),
		Orders:        tc.orders,
		Locker:        mylock.NewInMemoryLocker(),
		Publisher:     publisher,
		Nower:         nower,
		UUIDer:        uuider,
	}
	if withEventPlugin {
		deps.Events = events
	}

	sut, err := newService(deps, mylog.New("basket"))
	require.NoError(t, err)
	tc.sut = sut

	return tc
}

func (tc *testContext) add(t *testing.T, sessionID string, articleUID string, articleType string, amount float64, comment string) Response {
	resp, err := tc.sut.addItem(tc.c, addItemCommand{
		SessionID:   sessionID,
		ArticleUID:  articleUID,
		ArticleType: articleType,
		Amount:      amount,
		Comment:     comment,
	})
	require.NoError(t, err)
	return resp
}

func (tc *testContext) stepKeys(t *testing.T, basketUID string) []string {
	steps, err := tc.sut.steps.list(tc.c, basketUID)
	require.NoError(t, err)
	keys := []string{}
	for _, s := range steps {
		keys = append(keys, s.StepKey)
	}
	return keys
}

func (tc *testContext) positionsOf(t *testing.T, basketUID string) []Position {
	positions, err := tc.sut.positions.listByBasket(tc.c, basketUID)
	require.NoError(t, err)
	return positions
}

func assertFailure(t *testing.T, err error, expected *Failure) {
	t.Helper()
	assert.Error(t, err)
	assert.True(t, errors.Is(err, expected), "expected %q, got %v", expected.Message, err)
	_, ok := AsFailure(err)
	assert.True(t, ok)
}

func TestAddItem(t *testing.T) {
	t.Run("same item without comment is merged", func(t *testing.T) {
		tc := setup(t, true)

		// when
		first := tc.add(t, "session-1", "article-tennis-balls", ArticleTypeArticle, 3, "")
		second := tc.add(t, "session-1", "article-tennis-balls", ArticleTypeArticle, 2, "")

		// then
		assert.Equal(t, "3 items added to basket", first.Message)
		assert.Equal(t, "2 items added to basket", second.Message)
		assert.Equal(t, first.Position.UID, second.Position.UID)

		positions := tc.positionsOf(t, first.Basket.UID)
		require.Len(t, positions, 1)
		assert.Equal(t, 5.0, positions[0].Amount)
		assert.Equal(t, 10.0, positions[0].Price)
		assert.Equal(t, []string{StepAddItem, StepUpdateAmount}, tc.stepKeys(t, first.Basket.UID))
	})

	t.Run("item with comment always gets its own position", func(t *testing.T) {
		tc := setup(t, true)
		first := tc.add(t, "session-1", "article-tennis-balls", ArticleTypeArticle, 1, "")

		// when
		tc.add(t, "session-1", "article-tennis-balls", ArticleTypeArticle, 1, "gift wrap")
		tc.add(t, "session-1", "article-tennis-balls", ArticleTypeArticle, 1, "gift wrap")

		// then
		positions := tc.positionsOf(t, first.Basket.UID)
		require.Len(t, positions, 3)
		for idx, p := range positions {
			assert.Equal(t, idx, p.SortID)
			assert.Equal(t, 1.0, p.Amount)
		}
		assert.Equal(t, []string{StepAddItem, StepAddItem, StepAddItem}, tc.stepKeys(t, first.Basket.UID))
	})

	t.Run("different reference is not merged", func(t *testing.T) {
		tc := setup(t, true)
		resp, err := tc.sut.addItem(tc.c, addItemCommand{SessionID: "s", ArticleUID: "article-workshop", ArticleType: ArticleTypeEvent, Amount: 1, RefUID: "event-tennis-clinic", RefType: "event"})
		require.NoError(t, err)

		_, err = tc.sut.addItem(tc.c, addItemCommand{SessionID: "s", ArticleUID: "article-workshop", ArticleType: ArticleTypeEvent, Amount: 1, RefUID: "event-tennis-clinic-rerun", RefType: "event"})
		require.NoError(t, err)

		assert.Len(t, tc.positionsOf(t, resp.Basket.UID), 2)
	})

	t.Run("price resolution", func(t *testing.T) {
		tc := setup(t, true)

		variant := tc.add(t, "s", "variant-tennis-balls-6", ArticleTypeVariant, 1, "")
		assert.Equal(t, 18.0, variant.Position.Price)

		event := tc.add(t, "s", "article-workshop", ArticleTypeEvent, 1, "")
		assert.Equal(t, 45.0, event.Position.Price)

		custom, err := tc.sut.addItem(tc.c, addItemCommand{SessionID: "s", ArticleUID: "article-hockey-stick", ArticleType: ArticleTypeArticle, Amount: 1, CustomPrice: 99.5})
		require.NoError(t, err)
		assert.Equal(t, 99.5, custom.Position.Price)

		unknown := tc.add(t, "s", "article-does-not-exist", ArticleTypeArticle, 1, "")
		assert.Equal(t, 0.0, unknown.Position.Price)

		other := tc.add(t, "s", "voucher-1", "voucher", 1, "")
		assert.Equal(t, 0.0, other.Position.Price)
	})

	t.Run("missing basket state fails without creating a basket", func(t *testing.T) {
		tc := setup(t, true)
		require.NoError(t, tc.catalog.DeleteEntityTag(tc.c, "basket-state-new"))

		_, err := tc.sut.addItem(tc.c, addItemCommand{SessionID: "s", ArticleUID: "article-tennis-balls", ArticleType: ArticleTypeArticle, Amount: 1})

		assertFailure(t, err, ErrCatalogIncomplete)
		baskets, err := tc.basketStore.List(tc.c)
		require.NoError(t, err)
		assert.Empty(t, baskets)
		assert.Empty(t, tc.events())
	})
}

type busyLocker struct{}

func (busyLocker) Lock(c context.Context, key string) (func(), error) {
	return nil, fmt.Errorf("%s: %w", key, mylock.ErrNotAcquired)
}

func TestBusySession(t *testing.T) {
	tc := setup(t, true)
	tc.sut.locker = busyLocker{}

	// when
	_, err := tc.sut.addItem(tc.c, addItemCommand{SessionID: "s", ArticleUID: "article-tennis-balls", ArticleType: ArticleTypeArticle, Amount: 1})

	// then
	assert.Error(t, err)
	assert.Equal(t, http.StatusConflict, myerrors.GetHTTPStatus(err))
	assert.ErrorIs(t, err, mylock.ErrNotAcquired)
	_, found, err := tc.sut.baskets.findOpen(tc.c, "s")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSessionBasket(t *testing.T) {
	t.Run("repeated adds use the same basket", func(t *testing.T) {
		tc := setup(t, true)

		first := tc.add(t, "session-1", "article-tennis-balls", ArticleTypeArticle, 1, "")
		second := tc.add(t, "session-1", "article-running-socks", ArticleTypeArticle, 1, "")
		other := tc.add(t, "session-2", "article-running-socks", ArticleTypeArticle, 1, "")

		assert.Equal(t, first.Basket.UID, second.Basket.UID)
		assert.NotEqual(t, first.Basket.UID, other.Basket.UID)
		assert.Equal(t, defaultLabel, first.Basket.Label)
		assert.Equal(t, defaultComment, first.Basket.Comment)
		assert.Equal(t, "basket-state-new", first.Basket.StateUID)
		assert.Equal(t, []myevents.Event{
			basketevents.BasketCreated{BasketUID: first.Basket.UID, ShopSessionID: "session-1"},
			basketevents.BasketCreated{BasketUID: other.Basket.UID, ShopSessionID: "session-2"},
		}, tc.events())
	})

	t.Run("concurrent first adds create one basket", func(t *testing.T) {
		tc := setup(t, true)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := tc.sut.addItem(tc.c, addItemCommand{SessionID: "busy", ArticleUID: "article-tennis-balls", ArticleType: ArticleTypeArticle, Amount: 1})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		baskets, err := tc.basketStore.List(tc.c)
		require.NoError(t, err)
		require.Len(t, baskets, 1)
		positions := tc.positionsOf(t, baskets[0].UID)
		require.Len(t, positions, 1)
		assert.Equal(t, 10.0, positions[0].Amount)
	})
}

func TestGetBasket(t *testing.T) {
	t.Run("no basket is an empty basket", func(t *testing.T) {
		tc := setup(t, true)

		resp, err := tc.sut.getBasket(tc.c, "unknown")

		assert.NoError(t, err)
		assert.Equal(t, stateSuccess, resp.State)
		assert.Equal(t, "Your Basket is empty", resp.Message)
		assert.Nil(t, resp.Basket)
	})

	t.Run("positions are enriched", func(t *testing.T) {
		tc := setup(t, true)
		tc.add(t, "s", "variant-running-shoes-42", ArticleTypeVariant, 1, "")
		_, err := tc.sut.addItem(tc.c, addItemCommand{SessionID: "s", ArticleUID: "article-workshop", ArticleType: ArticleTypeEvent, Amount: 1, RefUID: "event-tennis-clinic-rerun", RefType: "event"})
		require.NoError(t, err)
		_, err = tc.sut.addItem(tc.c, addItemCommand{SessionID: "s", ArticleUID: "article-tennis-balls", ArticleType: ArticleTypeArticle, Amount: 2, CustomPrice: 7.5})
		require.NoError(t, err)

		// when
		resp, err := tc.sut.getBasket(tc.c, "s")

		// then
		require.NoError(t, err)
		assert.Equal(t, "open basket found", resp.Message)
		require.Len(t, resp.Items, 3)

		shoes := resp.Items[0]
		assert.Equal(t, "Running shoes - Size 42", shoes.Label)
		assert.Equal(t, "/data/variant/variant-running-shoes-42/running-shoes-42.jpg", shoes.Image)
		assert.Equal(t, "article-running-shoes", shoes.Article.UID)
		assert.Equal(t, 120.0, shoes.EffectivePrice)

		workshop := resp.Items[1]
		require.NotNil(t, workshop.Event)
		assert.Equal(t, "event-tennis-clinic", workshop.Event.UID)
		assert.Equal(t, "Tennis clinic", workshop.Label)
		assert.Equal(t, "/data/event/event-tennis-clinic/clinic.jpg", workshop.Image)
		assert.Equal(t, 45.0, workshop.EffectivePrice)

		balls := resp.Items[2]
		assert.Equal(t, "Tennis balls", balls.Label)
		assert.Equal(t, "/data/article/article-tennis-balls/tennis-balls.jpg", balls.Image)
		assert.Equal(t, 7.5, balls.EffectivePrice)

		require.NotNil(t, resp.Totals)
		assert.Equal(t, 4.0, resp.TotalAmount)
		assert.Equal(t, 180.0, resp.TotalPrice)
	})

	t.Run("without event plugin events are skipped", func(t *testing.T) {
		tc := setup(t, false)
		_, err := tc.sut.addItem(tc.c, addItemCommand{SessionID: "s", ArticleUID: "article-workshop", ArticleType: ArticleTypeEvent, Amount: 1, RefUID: "event-tennis-clinic", RefType: "event"})
		require.NoError(t, err)

		resp, err := tc.sut.getBasket(tc.c, "s")

		require.NoError(t, err)
		require.Len(t, resp.Items, 1)
		assert.Nil(t, resp.Items[0].Event)
		assert.Equal(t, "Workshop ticket", resp.Items[0].Label)
	})
}

func TestCheckout(t *testing.T) {
	t.Run("without basket", func(t *testing.T) {
		tc := setup(t, true)

		_, err := tc.sut.checkout(tc.c, "unknown")

		assertFailure(t, err, ErrBasketNotFound)
	})

	t.Run("first time", func(t *testing.T) {
		tc := setup(t, true)
		added := tc.add(t, "s", "article-tennis-balls", ArticleTypeArticle, 1, "")

		resp, err := tc.sut.checkout(tc.c, "s")

		require.NoError(t, err)
		assert.Equal(t, "checkout started", resp.Message)
		assert.Len(t, resp.DeliveryMethods, 2)
		assert.Len(t, resp.Salutations, 2)
		assert.Nil(t, resp.Contact)
		assert.Equal(t, []string{StepAddItem, StepCheckoutInit}, tc.stepKeys(t, added.Basket.UID))
	})

	t.Run("again with contact", func(t *testing.T) {
		tc := setup(t, true)
		added := tc.add(t, "s", "article-tennis-balls", ArticleTypeArticle, 1, "")
		_, err := tc.sut.selectPayment(tc.c, selectPaymentCommand{SessionID: "s", Contact: &contactDetails{Email: "eva@example.com", FirstName: "Eva", City: "Utrecht"}})
		require.NoError(t, err)

		resp, err := tc.sut.checkout(tc.c, "s")

		require.NoError(t, err)
		assert.Equal(t, "checkout started again", resp.Message)
		require.NotNil(t, resp.Contact)
		assert.Equal(t, "eva@example.com", resp.Contact.Email)
		assert.Equal(t, "Utrecht", resp.Contact.Address.City)
		assert.Equal(t, []string{StepAddItem, StepPaymentInit, StepCheckoutRepeat}, tc.stepKeys(t, added.Basket.UID))
	})

	t.Run("contact that disappeared", func(t *testing.T) {
		tc := setup(t, true)
		added := tc.add(t, "s", "article-tennis-balls", ArticleTypeArticle, 1, "")
		basket := *added.Basket
		basket.ContactUID = "contact-gone"
		require.NoError(t, tc.basketStore.Put(tc.c, basket.UID, basket))

		resp, err := tc.sut.checkout(tc.c, "s")

		require.NoError(t, err)
		assert.Equal(t, "checkout started", resp.Message)
		assert.Nil(t, resp.Contact)
		assert.Equal(t, []string{StepAddItem, StepCheckoutInitRepeat}, tc.stepKeys(t, added.Basket.UID))
	})
}

func TestSelectPayment(t *testing.T) {
	t.Run("new contact and delivery method", func(t *testing.T) {
		tc := setup(t, true)
		added := tc.add(t, "s", "article-tennis-balls", ArticleTypeArticle, 1, "")

		resp, err := tc.sut.selectPayment(tc.c, selectPaymentCommand{
			SessionID:         "s",
			Contact:           &contactDetails{Email: "eva@example.com", FirstName: "Eva", LastName: "Smit", SalutationUID: "salutation-ms", Street: "Main street 1", Zip: "1234AB", City: "Utrecht"},
			DeliveryMethodUID: "delivery-mail",
			Comment:           "Please ring twice",
		})

		require.NoError(t, err)
		assert.Equal(t, "contact saved", resp.Message)
		require.NotNil(t, resp.Contact)
		assert.Equal(t, resp.Contact.UID, resp.Basket.ContactUID)
		assert.Equal(t, "Main street 1", resp.Contact.Address.Street)
		assert.Equal(t, "Mail", resp.DeliveryMethod.Label)
		assert.Equal(t, catalog.GatewayMail, resp.DeliveryMethod.Gateway)
		assert.Len(t, resp.PaymentMethods, 3)
		assert.Equal(t, catalog.NoOption, *resp.PaymentMethodSelected)

		stored, found, err := tc.basketStore.Get(tc.c, added.Basket.UID)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "delivery-mail", stored.DeliveryMethodUID)
		assert.Equal(t, "Please ring twice", stored.Comment)
		assert.Equal(t, []string{StepAddItem, StepPaymentInit}, tc.stepKeys(t, added.Basket.UID))
	})

	t.Run("known email reuses contact", func(t *testing.T) {
		tc := setup(t, true)
		tc.add(t, "s1", "article-tennis-balls", ArticleTypeArticle, 1, "")
		tc.add(t, "s2", "article-tennis-balls", ArticleTypeArticle, 1, "")

		first, err := tc.sut.selectPayment(tc.c, selectPaymentCommand{SessionID: "s1", Contact: &contactDetails{Email: "eva@example.com"}})
		require.NoError(t, err)
		second, err := tc.sut.selectPayment(tc.c, selectPaymentCommand{SessionID: "s2", Contact: &contactDetails{Email: "eva@example.com"}})
		require.NoError(t, err)

		assert.Equal(t, first.Basket.ContactUID, second.Basket.ContactUID)
	})

	t.Run("unknown delivery method changes nothing", func(t *testing.T) {
		tc := setup(t, true)
		added := tc.add(t, "s", "article-tennis-balls", ArticleTypeArticle, 1, "")

		_, err := tc.sut.selectPayment(tc.c, selectPaymentCommand{SessionID: "s", DeliveryMethodUID: "payment-stripe", Comment: "x"})

		assertFailure(t, err, ErrUnknownDeliveryMethod)
		stored, _, err := tc.basketStore.Get(tc.c, added.Basket.UID)
		require.NoError(t, err)
		assert.Equal(t, "", stored.DeliveryMethodUID)
		assert.Equal(t, defaultComment, stored.Comment)
	})

	t.Run("repeated after payment method was chosen", func(t *testing.T) {
		tc := setup(t, true)
		added := tc.add(t, "s", "article-tennis-balls", ArticleTypeArticle, 1, "")
		_, err := tc.sut.confirm(tc.c, "s", "payment-prepay")
		require.NoError(t, err)

		resp, err := tc.sut.selectPayment(tc.c, selectPaymentCommand{SessionID: "s"})

		require.NoError(t, err)
		assert.Equal(t, "payment-prepay", resp.PaymentMethodSelected.ID)
		assert.Equal(t, "Prepayment", resp.PaymentMethodSelected.Label)
		assert.Equal(t, []string{StepAddItem, StepConfirmOrder, StepPaymentRepeat}, tc.stepKeys(t, added.Basket.UID))
	})
}

func TestConfirm(t *testing.T) {
	t.Run("without basket", func(t *testing.T) {
		tc := setup(t, true)

		_, err := tc.sut.confirm(tc.c, "unknown", "payment-prepay")

		assertFailure(t, err, ErrBasketNotFound)
	})

	t.Run("unknown payment method", func(t *testing.T) {
		tc := setup(t, true)
		tc.add(t, "s", "article-tennis-balls", ArticleTypeArticle, 1, "")

		_, err := tc.sut.confirm(tc.c, "s", "delivery-mail")

		assertFailure(t, err, ErrUnknownPaymentMethod)
	})

	t.Run("order preview", func(t *testing.T) {
		tc := setup(t, true)
		added := tc.add(t, "s", "article-tennis-balls", ArticleTypeArticle, 2, "")
		_, err := tc.sut.selectPayment(tc.c, selectPaymentCommand{SessionID: "s", DeliveryMethodUID: "delivery-pickup"})
		require.NoError(t, err)

		resp, err := tc.sut.confirm(tc.c, "s", "payment-instore")

		require.NoError(t, err)
		assert.Equal(t, "paymentmethod saved", resp.Message)
		assert.Equal(t, "Pay in store", resp.PaymentMethod.Label)
		assert.Equal(t, "Pickup in store", resp.DeliveryMethod.Label)
		assert.Len(t, resp.Positions, 1)
		assert.Equal(t, 20.0, resp.TotalPrice)
		assert.Equal(t, "payment-instore", resp.Basket.PaymentMethodUID)

		steps, err := tc.sut.steps.list(tc.c, added.Basket.UID)
		require.NoError(t, err)
		last := steps[len(steps)-1]
		assert.Equal(t, StepConfirmOrder, last.StepKey)
		assert.Equal(t, "payment: Pay in store, delivery: Pickup in store, positions: 1", last.Comment)
	})
}

// funnel walks a session up to the point where payment can start.
func (tc *testContext) funnel(t *testing.T, sessionID string, deliveryMethodUID string, paymentMethodUID string) Basket {
	_, err := tc.sut.checkout(tc.c, sessionID)
	require.NoError(t, err)
	_, err = tc.sut.selectPayment(tc.c, selectPaymentCommand{
		SessionID:         sessionID,
		Contact:           &contactDetails{Email: "eva@example.com", FirstName: "Eva"},
		DeliveryMethodUID: deliveryMethodUID,
		Comment:           "Leave at the door",
	})
	require.NoError(t, err)
	resp, err := tc.sut.confirm(tc.c, sessionID, paymentMethodUID)
	require.NoError(t, err)
	return *resp.Basket
}

func TestInitPayment(t *testing.T) {
	t.Run("end to end with payment in store", func(t *testing.T) {
		tc := setup(t, true)

		tc.add(t, "s", "article-tennis-balls", ArticleTypeArticle, 2, "")
		got, err := tc.sut.getBasket(tc.c, "s")
		require.NoError(t, err)
		require.Len(t, got.Items, 1)
		assert.Equal(t, 2.0, got.TotalAmount)

		tc.add(t, "s", "article-tennis-balls", ArticleTypeArticle, 1, "")
		got, err = tc.sut.getBasket(tc.c, "s")
		require.NoError(t, err)
		require.Len(t, got.Items, 1)
		assert.Equal(t, 3.0, got.Items[0].Amount)

		checkout, err := tc.sut.checkout(tc.c, "s")
		require.NoError(t, err)
		assert.Equal(t, stateSuccess, checkout.State)

		_, err = tc.sut.selectPayment(tc.c, selectPaymentCommand{SessionID: "s", Contact: &contactDetails{Email: "eva@example.com"}, DeliveryMethodUID: "delivery-mail"})
		require.NoError(t, err)
		_, err = tc.sut.confirm(tc.c, "s", "payment-instore")
		require.NoError(t, err)

		// when
		resp, err := tc.sut.initPayment(tc.c, "s")

		// then
		require.NoError(t, err)
		assert.Equal(t, "order created", resp.Message)
		assert.True(t, resp.Basket.IsArchived)
		assert.Equal(t, "basket-state-done", resp.Basket.StateUID)
		require.NotNil(t, resp.Order)
		assert.Equal(t, resp.Order.UID, resp.Basket.JobUID)
		assert.Equal(t, "job-state-new", resp.Order.StateUID)
		assert.Equal(t, "Shop order from 2023-02-27", resp.Order.Label)
		assert.Equal(t, 32.5, resp.Order.TotalPrice)

		orders, err := tc.orders.FindByBasket(tc.c, resp.Basket.UID)
		require.NoError(t, err)
		require.Len(t, orders, 1)

		lines, err := tc.orders.LinesOf(tc.c, orders[0].UID)
		require.NoError(t, err)
		require.Len(t, lines, 2)
		assert.Equal(t, 3.0, lines[0].Amount)
		assert.Equal(t, 10.0, lines[0].Price)
		assert.Equal(t, 0, lines[0].SortID)
		assert.Equal(t, order.ArticleTypeCustom, lines[1].ArticleType)
		assert.Equal(t, 2.5, lines[1].Price)
		assert.Equal(t, 1, lines[1].SortID)

		assert.Equal(t, []string{
			StepAddItem, StepUpdateAmount, StepCheckoutInit, StepPaymentInit, StepConfirmOrder, StepPaymentStart, StepBasketClose,
		}, tc.stepKeys(t, resp.Basket.UID))

		_, found, err := tc.sut.baskets.findOpen(tc.c, "s")
		require.NoError(t, err)
		assert.False(t, found)

		events := tc.events()
		require.Len(t, events, 2)
		assert.Equal(t, basketevents.BasketClosed{
			BasketUID:      resp.Basket.UID,
			OrderUID:       resp.Order.UID,
			PaymentGateway: catalog.GatewayInstore,
			TotalPrice:     32.5,
		}, events[1])
	})

	t.Run("no surcharge above threshold", func(t *testing.T) {
		tc := setup(t, true)
		tc.add(t, "s", "article-hockey-stick", ArticleTypeArticle, 1, "")
		tc.funnel(t, "s", "delivery-mail", "payment-prepay")

		resp, err := tc.sut.initPayment(tc.c, "s")

		require.NoError(t, err)
		assert.Len(t, resp.OrderLines, 1)
		assert.Equal(t, 190.0, resp.Order.TotalPrice)
	})

	t.Run("no surcharge for pickup", func(t *testing.T) {
		tc := setup(t, true)
		tc.add(t, "s", "article-running-socks", ArticleTypeArticle, 5, "")
		tc.funnel(t, "s", "delivery-pickup", "payment-instore")

		resp, err := tc.sut.initPayment(tc.c, "s")

		require.NoError(t, err)
		assert.Len(t, resp.OrderLines, 1)
		assert.Equal(t, 50.0, resp.Order.TotalPrice)
	})

	t.Run("stripe only starts payment", func(t *testing.T) {
		tc := setup(t, true)
		tc.add(t, "s", "article-running-socks", ArticleTypeArticle, 1, "")
		basket := tc.funnel(t, "s", "delivery-pickup", "payment-stripe")

		resp, err := tc.sut.initPayment(tc.c, "s")

		require.NoError(t, err)
		assert.Equal(t, "payment started", resp.Message)
		assert.False(t, resp.Basket.IsArchived)
		assert.Nil(t, resp.Order)
		assert.Equal(t, catalog.GatewayStripe, resp.PaymentMethod.Gateway)
		orders, err := tc.orders.FindByBasket(tc.c, basket.UID)
		require.NoError(t, err)
		assert.Empty(t, orders)
	})

	t.Run("order lines are a snapshot", func(t *testing.T) {
		tc := setup(t, true)
		tc.add(t, "s", "article-tennis-balls", ArticleTypeArticle, 1, "")
		tc.funnel(t, "s", "delivery-pickup", "payment-instore")
		resp, err := tc.sut.initPayment(tc.c, "s")
		require.NoError(t, err)

		// when
		require.NoError(t, tc.catalog.PutArticle(tc.c, catalog.Article{UID: "article-tennis-balls", Label: "Tennis balls", Price: 12}))

		// then
		lines, err := tc.orders.LinesOf(tc.c, resp.Order.UID)
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Equal(t, 10.0, lines[0].Price)
	})

	t.Run("archived basket is never reused", func(t *testing.T) {
		tc := setup(t, true)
		first := tc.add(t, "s", "article-tennis-balls", ArticleTypeArticle, 1, "")
		tc.funnel(t, "s", "delivery-pickup", "payment-instore")
		_, err := tc.sut.initPayment(tc.c, "s")
		require.NoError(t, err)

		_, err = tc.sut.updatePosition(tc.c, "s", first.Position.UID, 4)
		assertFailure(t, err, ErrBasketNotFound)
		_, err = tc.sut.removePosition(tc.c, "s", first.Position.UID)
		assertFailure(t, err, ErrBasketNotFound)

		second := tc.add(t, "s", "article-tennis-balls", ArticleTypeArticle, 1, "")
		assert.NotEqual(t, first.Basket.UID, second.Basket.UID)
		assert.Len(t, tc.positionsOf(t, first.Basket.UID), 1)
	})

	t.Run("missing order state rolls back the conversion", func(t *testing.T) {
		tc := setup(t, true)
		added := tc.add(t, "s", "article-tennis-balls", ArticleTypeArticle, 1, "")
		tc.funnel(t, "s", "delivery-pickup", "payment-instore")
		require.NoError(t, tc.catalog.DeleteEntityTag(tc.c, "job-state-new"))
		stepsBefore := tc.stepKeys(t, added.Basket.UID)

		_, err := tc.sut.initPayment(tc.c, "s")

		assertFailure(t, err, ErrCatalogIncomplete)
		basket, found, err := tc.sut.baskets.findOpen(tc.c, "s")
		require.NoError(t, err)
		require.True(t, found)
		assert.False(t, basket.IsArchived)
		assert.Equal(t, "basket-state-new", basket.StateUID)
		assert.Equal(t, "", basket.JobUID)
		assert.Equal(t, stepsBefore, tc.stepKeys(t, added.Basket.UID))
		orders, err := tc.orders.FindByBasket(tc.c, added.Basket.UID)
		require.NoError(t, err)
		assert.Empty(t, orders)
	})
}

func TestPositions(t *testing.T) {
	t.Run("update and remove", func(t *testing.T) {
		tc := setup(t, true)
		balls := tc.add(t, "s", "article-tennis-balls", ArticleTypeArticle, 1, "")
		socks := tc.add(t, "s", "article-running-socks", ArticleTypeArticle, 1, "")

		updated, err := tc.sut.updatePosition(tc.c, "s", balls.Position.UID, 4)
		require.NoError(t, err)
		assert.Equal(t, "position updated", updated.Message)
		require.Len(t, updated.Positions, 2)
		assert.Equal(t, 4.0, updated.Positions[0].Amount)
		assert.Equal(t, 50.0, updated.TotalPrice)

		removed, err := tc.sut.removePosition(tc.c, "s", socks.Position.UID)
		require.NoError(t, err)
		assert.Equal(t, "position removed", removed.Message)
		require.Len(t, removed.Positions, 1)
		assert.Equal(t, balls.Position.UID, removed.Positions[0].UID)

		assert.Equal(t, []string{StepAddItem, StepAddItem, StepItemUpdate, StepItemRemove}, tc.stepKeys(t, balls.Basket.UID))
	})

	t.Run("position of another basket is not found", func(t *testing.T) {
		tc := setup(t, true)
		tc.add(t, "mine", "article-tennis-balls", ArticleTypeArticle, 1, "")
		theirs := tc.add(t, "theirs", "article-tennis-balls", ArticleTypeArticle, 1, "")

		_, err := tc.sut.removePosition(tc.c, "mine", theirs.Position.UID)
		assertFailure(t, err, ErrPositionNotFound)

		_, err = tc.sut.updatePosition(tc.c, "mine", theirs.Position.UID, 7)
		assertFailure(t, err, ErrPositionNotFound)

		positions := tc.positionsOf(t, theirs.Basket.UID)
		require.Len(t, positions, 1)
		assert.Equal(t, 1.0, positions[0].Amount)
	})

	t.Run("without basket", func(t *testing.T) {
		tc := setup(t, true)

		_, err := tc.sut.removePosition(tc.c, "unknown", "uid-1")

		assertFailure(t, err, ErrBasketNotFound)
	})
}

func TestStripe(t *testing.T) {
	start := func(t *testing.T) (*testContext, Basket) {
		tc := setup(t, true)
		tc.add(t, "s", "article-tennis-balls", ArticleTypeArticle, 1, "")
		tc.funnel(t, "s", "delivery-mail", "payment-stripe")

		resp, err := tc.sut.stripe(tc.c, stripeCommand{SessionID: "s", PaymentSessionID: "cs_test_123", PaymentID: "pi_1", State: paymentStateInit})
		require.NoError(t, err)
		assert.Equal(t, "payment session registered", resp.Message)
		return tc, *resp.Basket
	}

	t.Run("init records the payment session", func(t *testing.T) {
		tc, basket := start(t)

		assert.Equal(t, catalog.GatewayStripe, basket.PaymentGateway)
		assert.Equal(t, "cs_test_123", basket.PaymentSessionID)
		assert.Equal(t, "pi_1", basket.PaymentID)
		require.NotNil(t, basket.PaymentStarted)
		assert.Equal(t, mytime.ExampleTime, *basket.PaymentStarted)
		assert.Nil(t, basket.PaymentReceived)
		assert.Contains(t, tc.stepKeys(t, basket.UID), StepStripeInit)
	})

	t.Run("done with other session is rejected", func(t *testing.T) {
		tc, basket := start(t)
		stepsBefore := tc.stepKeys(t, basket.UID)

		_, err := tc.sut.stripe(tc.c, stripeCommand{SessionID: "s", PaymentSessionID: "cs_test_other", State: paymentStateDone})

		assertFailure(t, err, ErrPaymentSessionMismatch)
		stored, _, err := tc.basketStore.Get(tc.c, basket.UID)
		require.NoError(t, err)
		assert.Equal(t, basket, stored)
		assert.Equal(t, stepsBefore, tc.stepKeys(t, basket.UID))
	})

	t.Run("done with matching session creates one order", func(t *testing.T) {
		tc, basket := start(t)

		resp, err := tc.sut.stripe(tc.c, stripeCommand{SessionID: "s", PaymentSessionID: "cs_test_123", PaymentID: "pi_2", State: paymentStateDone})

		require.NoError(t, err)
		assert.Equal(t, "payment received", resp.Message)
		assert.True(t, resp.Basket.IsArchived)
		require.NotNil(t, resp.Basket.PaymentReceived)
		require.NotNil(t, resp.Order.PaymentReceived)
		assert.Equal(t, mytime.ExampleTime, *resp.Order.PaymentReceived)
		assert.Equal(t, "pi_2", resp.Order.PaymentID)
		assert.Equal(t, "cs_test_123", resp.Order.PaymentSessionID)

		// a repeated notification finds no open basket
		_, err = tc.sut.stripe(tc.c, stripeCommand{SessionID: "s", PaymentSessionID: "cs_test_123", State: paymentStateDone})
		assertFailure(t, err, ErrBasketNotFound)

		orders, err := tc.orders.FindByBasket(tc.c, basket.UID)
		require.NoError(t, err)
		assert.Len(t, orders, 1)
	})

	t.Run("done before init is rejected", func(t *testing.T) {
		tc := setup(t, true)
		tc.add(t, "s", "article-tennis-balls", ArticleTypeArticle, 1, "")

		_, err := tc.sut.stripe(tc.c, stripeCommand{SessionID: "s", PaymentSessionID: "", State: paymentStateDone})

		assertFailure(t, err, ErrPaymentSessionMismatch)
	})
}
