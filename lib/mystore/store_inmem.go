package mystore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"
)

// All in-memory stores share one lock so a transaction can span several stores.
var inmemLock sync.Mutex

type inmemTransaction struct {
	undo []func()
}

type InMemoryStore[T any] struct {
	items map[string]T
}

func NewInMemoryStore[T any](c context.Context) (*InMemoryStore[T], func(), error) {
	return &InMemoryStore[T]{
		items: make(map[string]T),
	}, func() {}, nil
}

func (s *InMemoryStore[T]) RunInTransaction(c context.Context, f func(c context.Context) error) error {
	if _, nested := c.Value(ctxTransactionKey{}).(*inmemTransaction); nested {
		// joins the surrounding transaction
		return f(c)
	}

	// Start transaction
	inmemLock.Lock()
	defer inmemLock.Unlock()

	tx := &inmemTransaction{}
	err := f(context.WithValue(c, ctxTransactionKey{}, tx))
	if err != nil {
		// Rollback
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}

	// Commit
	return nil
}

func (s *InMemoryStore[T]) lock(c context.Context) (*inmemTransaction, func()) {
	tx, transactional := c.Value(ctxTransactionKey{}).(*inmemTransaction)
	if transactional {
		return tx, func() {}
	}
	inmemLock.Lock()
	return nil, inmemLock.Unlock
}

func (s *InMemoryStore[T]) remember(tx *inmemTransaction, uid string) {
	if tx == nil {
		return
	}
	previous, existed := s.items[uid]
	tx.undo = append(tx.undo, func() {
		if existed {
			s.items[uid] = previous
		} else {
			delete(s.items, uid)
		}
	})
}

func (s *InMemoryStore[T]) Put(c context.Context, uid string, value T) error {
	tx, unlock := s.lock(c)
	defer unlock()

	s.remember(tx, uid)
	s.items[uid] = value

	return nil
}

func (s *InMemoryStore[T]) Get(c context.Context, uid string) (T, bool, error) {
	_, unlock := s.lock(c)
	defer unlock()

	result, exists := s.items[uid]

	return result, exists, nil
}

func (s *InMemoryStore[T]) Delete(c context.Context, uid string) error {
	tx, unlock := s.lock(c)
	defer unlock()

	s.remember(tx, uid)
	delete(s.items, uid)

	return nil
}

func (s *InMemoryStore[T]) List(c context.Context) ([]T, error) {
	_, unlock := s.lock(c)
	defer unlock()

	return s.sortedValues(), nil
}

func (s *InMemoryStore[T]) sortedValues() []T {
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]T, 0, len(keys))
	for _, k := range keys {
		result = append(result, s.items[k])
	}
	return result
}

func (s *InMemoryStore[T]) Query(c context.Context, filters []Filter, orderByField string) ([]T, error) {
	_, unlock := s.lock(c)
	defer unlock()

	result := []T{}
	for _, item := range s.sortedValues() {
		match, err := matchesAll(item, filters)
		if err != nil {
			return nil, err
		}
		if match {
			result = append(result, item)
		}
	}

	if orderByField == "" {
		return result, nil
	}

	descending := strings.HasPrefix(orderByField, "-")
	fieldName := strings.TrimPrefix(orderByField, "-")

	var sortErr error
	sort.SliceStable(result, func(i, j int) bool {
		a, err := fieldOf(result[i], fieldName)
		if err != nil {
			sortErr = err
			return false
		}
		b, err := fieldOf(result[j], fieldName)
		if err != nil {
			sortErr = err
			return false
		}
		cmp, err := compareValues(a, b)
		if err != nil {
			sortErr = err
			return false
		}
		if descending {
			return cmp > 0
		}
		return cmp < 0
	})
	if sortErr != nil {
		return nil, sortErr
	}

	return result, nil
}

func matchesAll(item any, filters []Filter) (bool, error) {
	for _, f := range filters {
		v, err := fieldOf(item, f.Field)
		if err != nil {
			return false, err
		}
		cmp, err := compareValues(v, reflect.ValueOf(f.Value))
		if err != nil {
			return false, fmt.Errorf("filter on %s: %w", f.Field, err)
		}
		var ok bool
		switch f.Compare {
		case "=", "==":
			ok = cmp == 0
		case "!=":
			ok = cmp != 0
		case "<":
			ok = cmp < 0
		case "<=":
			ok = cmp <= 0
		case ">":
			ok = cmp > 0
		case ">=":
			ok = cmp >= 0
		default:
			return false, fmt.Errorf("unsupported comparison %q", f.Compare)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func fieldOf(item any, name string) (reflect.Value, error) {
	v := reflect.Indirect(reflect.ValueOf(item))
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("cannot query on %T: not a struct", item)
	}
	f := v.FieldByName(name)
	if !f.IsValid() {
		return reflect.Value{}, fmt.Errorf("type %T has no field %s", item, name)
	}
	return f, nil
}

var timeType = reflect.TypeOf(time.Time{})

func compareValues(a, b reflect.Value) (int, error) {
	if !a.IsValid() || !b.IsValid() {
		return 0, fmt.Errorf("cannot compare with nil")
	}
	if a.Type() == timeType && b.Type() == timeType {
		return a.Interface().(time.Time).Compare(b.Interface().(time.Time)), nil
	}

	switch a.Kind() {
	case reflect.String:
		if b.Kind() != reflect.String {
			break
		}
		return strings.Compare(a.String(), b.String()), nil
	case reflect.Bool:
		if b.Kind() != reflect.Bool {
			break
		}
		switch {
		case a.Bool() == b.Bool():
			return 0, nil
		case !a.Bool():
			return -1, nil
		default:
			return 1, nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		x, okA := asFloat(a)
		y, okB := asFloat(b)
		if !okA || !okB {
			break
		}
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		default:
			return 0, nil
		}
	}
	return 0, fmt.Errorf("cannot compare %s with %s", a.Type(), b.Type())
}

func asFloat(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	default:
		return 0, false
	}
}
