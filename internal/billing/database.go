package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	billBucketName    = "bills"
	receiptBucketName = "receipts"
)

// ErrNotFound is wrapped by lookups that find nothing
var ErrNotFound = errors.New("not found")

// DB defines the interface for database operations
type DB interface {
	// SaveBill saves a bill to the database
	SaveBill(record *Record) error

	// GetBill retrieves a bill by ID
	GetBill(id string) (*Record, error)

	// ListBills returns all bills
	ListBills() ([]*Record, error)

	// DeleteBill removes a bill from the database
	DeleteBill(id string) error

	// SaveReceipt saves uploaded receipt metadata
	SaveReceipt(receipt *ReceiptFile) error

	// GetReceipt retrieves receipt metadata by key
	GetReceipt(key string) (*ReceiptFile, error)

	// DeleteReceipt removes receipt metadata
	DeleteReceipt(key string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{billBucketName, receiptBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// put marshals v under key in bucket
func (b *BoltDB) put(bucket, key string, v any) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", bucket, err)
		}
		return tx.Bucket([]byte(bucket)).Put([]byte(key), data)
	})
}

// get unmarshals the value under key into v
func (b *BoltDB) get(bucket, kind, key string, v any) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucket)).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s %w: %s", kind, ErrNotFound, key)
		}
		return json.Unmarshal(data, v)
	})
}

// SaveBill saves a bill to the database
func (b *BoltDB) SaveBill(record *Record) error {
	return b.put(billBucketName, record.ID, record)
}

// GetBill retrieves a bill by ID
func (b *BoltDB) GetBill(id string) (*Record, error) {
	var record Record
	if err := b.get(billBucketName, "bill", id, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListBills returns all bills in key order
func (b *BoltDB) ListBills() ([]*Record, error) {
	records := make([]*Record, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(billBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var record Record
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("unmarshaling bill: %w", err)
			}
			records = append(records, &record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteBill removes a bill from the database
func (b *BoltDB) DeleteBill(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(billBucketName)).Delete([]byte(id))
	})
}

// SaveReceipt saves uploaded receipt metadata
func (b *BoltDB) SaveReceipt(receipt *ReceiptFile) error {
	return b.put(receiptBucketName, receipt.Key, receipt)
}

// GetReceipt retrieves receipt metadata by key
func (b *BoltDB) GetReceipt(key string) (*ReceiptFile, error) {
	var receipt ReceiptFile
	if err := b.get(receiptBucketName, "receipt", key, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// DeleteReceipt removes receipt metadata
func (b *BoltDB) DeleteReceipt(key string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(receiptBucketName)).Delete([]byte(key))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
