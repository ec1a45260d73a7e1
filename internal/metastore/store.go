// Package metastore keeps a bbolt catalog of the mapping fingerprint each
// type was indexed with, so that a changed mapping is caught on open.
package metastore

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"time"

	"github.com/AvengeMedia/dankquery/internal/errdefs"
	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("mappings")

const FileName = "meta.db"

type Store struct {
	db *bolt.DB
}

type MappingMeta struct {
	Version     string
	Fingerprint string
	UpdatedAt   time.Time
}

// New opens the catalog next to indexPath.
func New(indexPath string) (*Store, error) {
	dbPath := filepath.Join(filepath.Dir(indexPath), FileName)
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Put(typeName string, meta MappingMeta) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.Put([]byte(typeName), encodeMeta(meta))
	})
}

func (s *Store) Get(typeName string) (MappingMeta, bool, error) {
	var meta MappingMeta
	var found bool

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		v := b.Get([]byte(typeName))
		if v != nil {
			meta = decodeMeta(v)
			found = true
		}
		return nil
	})

	return meta, found, err
}

// ForEach visits every catalog entry in type name order.
func (s *Store) ForEach(fn func(typeName string, meta MappingMeta) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.ForEach(func(k, v []byte) error {
			return fn(string(k), decodeMeta(v))
		})
	})
}

// Check compares fingerprint with the stored one. A type seen for the first
// time is recorded.
func (s *Store) Check(typeName, version, fingerprint string) error {
	prev, found, err := s.Get(typeName)
	if err != nil {
		return err
	}
	if !found {
		return s.Put(typeName, MappingMeta{Version: version, Fingerprint: fingerprint, UpdatedAt: time.Now()})
	}
	if prev.Fingerprint != fingerprint {
		return errdefs.Newf(errdefs.ErrTypeMappingDrift,
			"mapping of %s changed since it was indexed (version %s -> %s)", typeName, prev.Version, version)
	}
	return nil
}

func (s *Store) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketName); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketName)
		return err
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

// The value layout is the update time as little-endian UnixNano, then
// version and fingerprint separated by a zero byte.
func encodeMeta(m MappingMeta) []byte {
	buf := make([]byte, 8, 8+len(m.Version)+1+len(m.Fingerprint))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(m.UpdatedAt.UnixNano()))
	buf = append(buf, m.Version...)
	buf = append(buf, 0)
	buf = append(buf, m.Fingerprint...)
	return buf
}

func decodeMeta(b []byte) MappingMeta {
	if len(b) < 8 {
		return MappingMeta{}
	}
	meta := MappingMeta{
		UpdatedAt: time.Unix(0, int64(binary.LittleEndian.Uint64(b[0:8]))),
	}
	rest := b[8:]
	if i := bytes.IndexByte(rest, 0); i >= 0 {
		meta.Version = string(rest[:i])
		meta.Fingerprint = string(rest[i+1:])
	} else {
		meta.Fingerprint = string(rest)
	}
	return meta
}
