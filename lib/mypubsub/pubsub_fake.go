package mypubsub

import (
	"context"
	"os"
	"sync"

	"github.com/MarcGrol/basketbridge/lib/mylog"
)

// Message is a payload that was published on the fake.
type Message struct {
	Topic string
	Data  string
}

type FakePubSub struct {
	sync.Mutex
	logger        mylog.Logger
	topics        map[string]bool
	subscriptions map[string][]string
	published     []Message
}

func init() {
	if os.Getenv("GOOGLE_CLOUD_PROJECT") == "" {
		New = newFakePubSub
	}
}

func newFakePubSub(c context.Context) (PubSub, func(), error) {
	return NewFake(), func() {}, nil
}

func NewFake() *FakePubSub {
	return &FakePubSub{
		logger:        mylog.New("pubsub"),
		topics:        map[string]bool{},
		subscriptions: map[string][]string{},
	}
}

func (ps *FakePubSub) Subscribe(c context.Context, topic string, urlToPostTo string) error {
	ps.Lock()
	defer ps.Unlock()

	ps.topics[topic] = true
	ps.subscriptions[topic] = append(ps.subscriptions[topic], urlToPostTo)
	return nil
}

func (ps *FakePubSub) CreateTopic(c context.Context, topic string) error {
	ps.Lock()
	defer ps.Unlock()

	ps.topics[topic] = true
	return nil
}

func (ps *FakePubSub) Publish(c context.Context, topic string, data string) error {
	ps.Lock()
	defer ps.Unlock()

	ps.published = append(ps.published, Message{Topic: topic, Data: data})
	ps.logger.Log(c, topic, mylog.SeverityInfo, "Published message on topic %s (%d subscribers)", topic, len(ps.subscriptions[topic]))
	return nil
}

func (ps *FakePubSub) Published() []Message {
	ps.Lock()
	defer ps.Unlock()

	return append([]Message{}, ps.published...)
}
