package mystore

import (
	"context"
	"os"
)

type ctxTransactionKey struct{}

// Filter narrows a Query. Field is the Go struct field name, Compare one of
// "=", "!=", "<", "<=", ">", ">=".
type Filter struct {
	Field   string
	Compare string
	Value   any
}

//go:generate mockgen -source=api.go -package mystore -destination store_mock.go Store
type Store[T any] interface {
	RunInTransaction(c context.Context, f func(c context.Context) error) error
	Put(c context.Context, uid string, value T) error
	Get(c context.Context, uid string) (T, bool, error)
	Delete(c context.Context, uid string) error
	List(c context.Context) ([]T, error)
	// Query returns the matching entities ordered by orderByField. A leading "-" sorts descending,
	// an empty orderByField leaves the order to the backend.
	Query(c context.Context, filters []Filter, orderByField string) ([]T, error)
}

// New picks the backend from the environment: Cloud Datastore when GOOGLE_CLOUD_PROJECT is set,
// a SQL database via gorm when DATABASE_DSN is set, otherwise process memory.
func New[T any](c context.Context) (Store[T], func(), error) {
	if os.Getenv("GOOGLE_CLOUD_PROJECT") != "" {
		return newGcloudStore[T](c)
	}

	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		db, err := openDatabase(dsn)
		if err != nil {
			return nil, nil, err
		}
		return NewGormStore[T](c, db)
	}

	return NewInMemoryStore[T](c)
}

func InTransaction(c context.Context) bool {
	return c.Value(ctxTransactionKey{}) != nil
}
