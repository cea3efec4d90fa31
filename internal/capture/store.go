// Package capture keeps a bounded journal of received DHCP datagrams in
// BoltDB so they can be decoded again later.
package capture

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/dhcpy/dhcpy/internal/dhcp"
	"github.com/dhcpy/dhcpy/internal/fingerprint"
)

var bucketCaptures = []byte("captures")

// ErrNotFound is returned by Get for an unknown record ID.
var ErrNotFound = errors.New("capture record not found")

// Record is one captured datagram. Raw is base64 in JSON.
type Record struct {
	ID         uint64    `json:"id"`
	ReceivedAt time.Time `json:"received_at"`
	Src        string    `json:"src"`
	Interface  string    `json:"interface,omitempty"`
	XID        uint32    `json:"xid"`
	CHAddr     string    `json:"chaddr"`
	MsgType    string    `json:"msg_type"`
	Raw        []byte    `json:"raw"`

	// Fingerprint is the parameter request list hash from package fingerprint.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// NewRecord builds a record from a listener request.
func NewRecord(req *dhcp.Request, at time.Time) *Record {
	rec := &Record{
		ReceivedAt: at.UTC(),
		Interface:  req.Interface,
		Raw:        req.Raw,
	}
	if req.Src != nil {
		rec.Src = req.Src.String()
	}
	if m := req.Message; m != nil {
		rec.XID = m.XID
		rec.CHAddr = m.CHAddr
		mt, _ := m.MessageType()
		rec.MsgType = mt.String()
		rec.Fingerprint = fingerprint.FromMessage(m).Hash()
	}
	return rec
}

// Decode re-parses the captured bytes.
func (r *Record) Decode(d *dhcp.Decoder) (*dhcp.Message, error) {
	if d == nil {
		d = &dhcp.Decoder{}
	}
	return d.Decode(r.Raw)
}

// Store persists capture records in a single bucket keyed by a big-endian
// sequence number, so cursor order is arrival order.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the capture database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening capture database %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketCaptures); err != nil {
			return fmt.Errorf("creating bucket %s: %w", bucketCaptures, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing capture database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put assigns rec the next ID and stores it.
func (s *Store) Put(rec *Record) (uint64, error) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCaptures)

		id, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("generating capture ID: %w", err)
		}
		rec.ID = id

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshalling capture record: %w", err)
		}
		if err := b.Put(uint64Key(id), data); err != nil {
			return fmt.Errorf("storing capture record: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rec.ID, nil
}

// Get returns the record with the given ID.
func (s *Store) Get(id uint64) (*Record, error) {
	var rec Record
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCaptures).Get(uint64Key(id))
		if data == nil {
			return fmt.Errorf("capture %d: %w", id, ErrNotFound)
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("unmarshalling capture %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns up to limit records, newest first. limit <= 0 means all.
func (s *Store) List(limit int) ([]Record, error) {
	return s.scan(limit, func(*Record) bool { return true })
}

// ListByCHAddr is List restricted to one client hardware address. The
// comparison ignores case.
func (s *Store) ListByCHAddr(chaddr string, limit int) ([]Record, error) {
	return s.scan(limit, func(r *Record) bool { return strings.EqualFold(r.CHAddr, chaddr) })
}

func (s *Store) scan(limit int, match func(*Record) bool) ([]Record, error) {
	var results []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketCaptures).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(results) >= limit {
				break
			}
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshalling capture %d: %w", binary.BigEndian.Uint64(k), err)
			}
			if match(&rec) {
				results = append(results, rec)
			}
		}
		return nil
	})
	return results, err
}

// Count returns the number of stored records.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketCaptures).Stats().KeyN
		return nil
	})
	return n, err
}

// Prune deletes the oldest records until at most max remain and returns how
// many were removed.
func (s *Store) Prune(max int) (int, error) {
	if max < 0 {
		max = 0
	}
	var removed int
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCaptures)
		excess := b.Stats().KeyN - max
		if excess <= 0 {
			return nil
		}

		// Collect first: deleting under a live cursor skips keys.
		keys := make([][]byte, 0, excess)
		c := b.Cursor()
		for k, _ := c.First(); k != nil && len(keys) < excess; k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("deleting capture %d: %w", binary.BigEndian.Uint64(k), err)
			}
		}
		removed = len(keys)
		return nil
	})
	return removed, err
}

func uint64Key(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}
