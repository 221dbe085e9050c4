package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MarcGrol/basketbridge/lib/myconfig"
	"github.com/MarcGrol/basketbridge/lib/mylock"
	"github.com/MarcGrol/basketbridge/lib/mylog"
	"github.com/MarcGrol/basketbridge/lib/mymetrics"
	"github.com/MarcGrol/basketbridge/lib/mypublisher"
	"github.com/MarcGrol/basketbridge/lib/mypubsub"
	"github.com/MarcGrol/basketbridge/lib/myqueue"
	"github.com/MarcGrol/basketbridge/lib/mystore"
	"github.com/MarcGrol/basketbridge/lib/mytime"
	"github.com/MarcGrol/basketbridge/lib/myuuid"
	"github.com/MarcGrol/basketbridge/services/basket"
	"github.com/MarcGrol/basketbridge/services/basket/basketevents"
	"github.com/MarcGrol/basketbridge/services/catalog"
	"github.com/MarcGrol/basketbridge/services/checkoutstripe"
	"github.com/MarcGrol/basketbridge/services/contact"
	"github.com/MarcGrol/basketbridge/services/order"
	"github.com/MarcGrol/basketbridge/services/warmup"
)

func main() {
	c := context.Background()

	cfg, err := myconfig.Load()
	if err != nil {
		log.Fatalf("Error loading config: %s", err)
	}
	mylog.SetLevel(cfg.LogLevel)

	router := mux.NewRouter()
	nower := mytime.RealNower{}
	uuider := myuuid.RealUUIDer{}

	publisher, publisherCleanup := createPublisher(c, router, cfg, nower)
	defer publisherCleanup()

	catalogService, catalogCleanup, err := catalog.New(c)
	if err != nil {
		log.Fatalf("Error creating catalog: %s", err)
	}
	defer catalogCleanup()

	var events basket.EventReader
	var eventCatalog *catalog.Events
	if cfg.EventsPlugin {
		eventService, eventCleanup, err := catalog.NewEvents(c)
		if err != nil {
			log.Fatalf("Error creating event catalog: %s", err)
		}
		defer eventCleanup()
		events = eventService
		eventCatalog = eventService
	}

	if cfg.SeedCatalog {
		err = catalog.Seed(c, catalogService, eventCatalog)
		if err != nil {
			log.Fatalf("Error seeding catalog: %s", err)
		}
	}

	contacts, contactCleanup, err := contact.New(c, nower, uuider)
	if err != nil {
		log.Fatalf("Error creating contact store: %s", err)
	}
	defer contactCleanup()

	orders, orderCleanup, err := order.NewRepository(c)
	if err != nil {
		log.Fatalf("Error creating order repository: %s", err)
	}
	defer orderCleanup()

	locker, lockerCleanup := createLocker(c, cfg)
	defer lockerCleanup()

	basketStore, basketStoreCleanup, err := mystore.New[basket.Basket](c)
	if err != nil {
		log.Fatalf("Error creating basket store: %s", err)
	}
	defer basketStoreCleanup()

	positionStore, positionStoreCleanup, err := mystore.New[basket.Position](c)
	if err != nil {
		log.Fatalf("Error creating position store: %s", err)
	}
	defer positionStoreCleanup()

	stepStore, stepStoreCleanup, err := mystore.New[basket.Step](c)
	if err != nil {
		log.Fatalf("Error creating step store: %s", err)
	}
	defer stepStoreCleanup()

	basketService, err := basket.NewWebService(basket.Dependencies{
		BasketStore:   basketStore,
		PositionStore: positionStore,
		StepStore:     stepStore,
		Catalog:       catalogService,
		Products:      catalogService,
		Events:        events,
		Contacts:      contacts,
		Orders:        orders,
		Locker:        locker,
		Publisher:     publisher,
		Metrics:       mymetrics.NewBasketMetrics(prometheus.DefaultRegisterer),
		Nower:         nower,
		UUIDer:        uuider,
	})
	if err != nil {
		log.Fatalf("Error creating basket service: %s", err)
	}
	err = basketService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering basket endpoints: %s", err)
	}

	if cfg.StripeWebhookKey != "" {
		stripeService, err := checkoutstripe.NewWebService(cfg.StripeWebhookKey, basketService)
		if err != nil {
			log.Fatalf("Error creating stripe webhook: %s", err)
		}
		err = stripeService.RegisterEndpoints(c, router)
		if err != nil {
			log.Fatalf("Error registering stripe webhook: %s", err)
		}
	} else {
		log.Printf("STRIPE_WEBHOOK_SECRET not set: stripe webhook disabled")
	}

	err = warmup.NewService(catalogService).RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering warmup endpoint: %s", err)
	}

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	startWebServerBlocking(router, cfg.Port)
}

func createPublisher(c context.Context, router *mux.Router, cfg myconfig.Config, nower mytime.Nower) (*mypublisher.TransactionalPublisher, func()) {
	pubsub, pubsubCleanup, err := mypubsub.New(c)
	if err != nil {
		log.Fatalf("Error creating pubsub: %s", err)
	}

	queue, queueCleanup, err := myqueue.New(c)
	if err != nil {
		log.Fatalf("Error creating queue: %s", err)
	}
	if !cfg.IsGoogleCloud() {
		myqueue.DispatchLocallyTo(router)
	}

	publisher, publisherCleanup, err := mypublisher.New(c, pubsub, queue, nower)
	if err != nil {
		log.Fatalf("Error creating publisher: %s", err)
	}
	err = publisher.CreateTopic(c, basketevents.TopicName)
	if err != nil {
		log.Fatalf("Error creating topic %s: %s", basketevents.TopicName, err)
	}
	err = publisher.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering publisher endpoints: %s", err)
	}

	return publisher, func() {
		publisherCleanup()
		queueCleanup()
		pubsubCleanup()
	}
}

func createLocker(c context.Context, cfg myconfig.Config) (mylock.Locker, func()) {
	if cfg.RedisAddress == "" {
		return mylock.NewInMemoryLocker(), func() {}
	}

	client := mylock.NewRedisClient(cfg.RedisAddress, cfg.RedisPassword)
	pingCtx, cancel := context.WithTimeout(c, 5*time.Second)
	defer cancel()
	err := client.Ping(pingCtx)
	if err != nil {
		log.Fatalf("Error connecting to redis at %s: %s", cfg.RedisAddress, err)
	}

	locker, err := mylock.NewRedisLocker(client, cfg.LockTTL)
	if err != nil {
		log.Fatalf("Error creating redis locker: %s", err)
	}
	return locker, func() {
		_ = client.Close()
	}
}

func startWebServerBlocking(router *mux.Router, port string) {
	log.Printf("Starting webserver on port %s (try http://localhost:%s/basket/get?shop_session_id=demo)", port, port)
	err := http.ListenAndServe(fmt.Sprintf(":%s", port), router)
	if err != nil {
		log.Fatalf("Error starting webserver on port %s: %s", port, err)
	}
}
