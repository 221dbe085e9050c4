package mystore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var (
	databaseOnce sync.Once
	database     *gorm.DB
	databaseErr  error
	schemaCache  sync.Map
)

func openDatabase(dsn string) (*gorm.DB, error) {
	databaseOnce.Do(func() {
		database, databaseErr = OpenDatabase(dsn)
	})
	return database, databaseErr
}

// OpenDatabase connects to postgres for "postgres://" style or key=value DSNs
// and treats anything else as a sqlite file name.
func OpenDatabase(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	return db, nil
}

type gormStore[T any] struct {
	db         *gorm.DB
	schema     *schema.Schema
	primaryKey string
}

// NewGormStore creates the table for T when missing. T needs a string field tagged `gorm:"primaryKey"`.
func NewGormStore[T any](c context.Context, db *gorm.DB) (*gormStore[T], func(), error) {
	err := db.WithContext(c).AutoMigrate(new(T))
	if err != nil {
		return nil, nil, fmt.Errorf("error migrating table for %s: %w", kindOf[T](), err)
	}

	parsed, err := schema.Parse(new(T), &schemaCache, db.NamingStrategy)
	if err != nil {
		return nil, nil, fmt.Errorf("error parsing schema of %s: %w", kindOf[T](), err)
	}
	if parsed.PrioritizedPrimaryField == nil {
		return nil, nil, fmt.Errorf("type %s has no primary key", kindOf[T]())
	}

	return &gormStore[T]{
		db:         db,
		schema:     parsed,
		primaryKey: parsed.PrioritizedPrimaryField.DBName,
	}, func() {}, nil
}

func (s *gormStore[T]) conn(c context.Context) *gorm.DB {
	if tx, ok := c.Value(ctxTransactionKey{}).(*gorm.DB); ok {
		return tx
	}
	return s.db.WithContext(c)
}

func (s *gormStore[T]) RunInTransaction(c context.Context, f func(c context.Context) error) error {
	if _, nested := c.Value(ctxTransactionKey{}).(*gorm.DB); nested {
		return f(c)
	}

	var opts []*sql.TxOptions
	if s.db.Dialector.Name() == "postgres" {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelSerializable})
	}

	var err error
	for i := 1; i <= maxTransactionAttempts; i++ {
		err = s.db.WithContext(c).Transaction(func(tx *gorm.DB) error {
			return f(context.WithValue(c, ctxTransactionKey{}, tx))
		}, opts...)
		if err != nil && isSerializationFailure(err) {
			log.Printf("Serialization failure, retrying (%d of %d): %s", i, maxTransactionAttempts, err)
			continue
		}
		return err
	}
	return err
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func (s *gormStore[T]) Put(c context.Context, uid string, value T) error {
	err := s.conn(c).Clauses(clause.OnConflict{UpdateAll: true}).Create(&value).Error
	if err != nil {
		return fmt.Errorf("error storing %s with uid %s: %w", s.schema.Name, uid, err)
	}
	return nil
}

func (s *gormStore[T]) Get(c context.Context, uid string) (T, bool, error) {
	var value T
	err := s.conn(c).Where(s.primaryKey+" = ?", uid).Take(&value).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return value, false, nil
		}
		return value, false, fmt.Errorf("error fetching %s with uid %s: %w", s.schema.Name, uid, err)
	}
	return value, true, nil
}

func (s *gormStore[T]) Delete(c context.Context, uid string) error {
	err := s.conn(c).Where(s.primaryKey+" = ?", uid).Delete(new(T)).Error
	if err != nil {
		return fmt.Errorf("error deleting %s with uid %s: %w", s.schema.Name, uid, err)
	}
	return nil
}

func (s *gormStore[T]) List(c context.Context) ([]T, error) {
	return s.Query(c, nil, "")
}

func (s *gormStore[T]) Query(c context.Context, filters []Filter, orderByField string) ([]T, error) {
	q := s.conn(c)
	for _, f := range filters {
		column, err := s.column(f.Field)
		if err != nil {
			return nil, err
		}
		compare := f.Compare
		if compare == "==" {
			compare = "="
		}
		switch compare {
		case "=", "!=", "<", "<=", ">", ">=":
		default:
			return nil, fmt.Errorf("unsupported comparison %q", f.Compare)
		}
		q = q.Where(fmt.Sprintf("%s %s ?", column, compare), f.Value)
	}

	if orderByField != "" {
		column, err := s.column(strings.TrimPrefix(orderByField, "-"))
		if err != nil {
			return nil, err
		}
		q = q.Order(clause.OrderByColumn{
			Column: clause.Column{Name: column},
			Desc:   strings.HasPrefix(orderByField, "-"),
		})
	} else {
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: s.primaryKey}})
	}

	result := []T{}
	err := q.Find(&result).Error
	if err != nil {
		return nil, fmt.Errorf("error querying %s: %w", s.schema.Name, err)
	}
	return result, nil
}

func (s *gormStore[T]) column(fieldName string) (string, error) {
	field := s.schema.LookUpField(fieldName)
	if field == nil || field.DBName == "" {
		return "", fmt.Errorf("type %s has no column for field %s", s.schema.Name, fieldName)
	}
	return field.DBName, nil
}
