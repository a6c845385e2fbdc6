// Package badgerdb contains embedded BadgerDB implementations of repository interfaces.
//
// Keys are laid out so prefix scans return rows in a useful order:
//
//	user:{uuid}                         -> user record
//	user-email:{email}                  -> user uuid
//	msg:{id}                            -> message record
//	client:{uuid}                       -> message id
//	pair:{lo}:{hi}:{unixnano}:{id}      -> empty, conversation index
//
// Numeric segments are zero padded to 19 digits so lexicographic order matches numeric order.
package badgerdb

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

const sequenceBandwidth = 100

// Store owns the badger handle and the message id sequence.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Open opens (or creates) a database under path.
func Open(path string, log *zap.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(newLogger(log)).WithLoggingLevel(badger.WARNING)
	return open(opts)
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	seq, err := db.GetSequence([]byte("seq:messages"), sequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &Store{db: db, seq: seq}, nil
}

// Close releases the sequence lease and closes the database.
func (s *Store) Close() error {
	if err := s.seq.Release(); err != nil {
		_ = s.db.Close()
		return err
	}
	return s.db.Close()
}

// nextID returns a positive, increasing message id.
func (s *Store) nextID() (int64, error) {
	n, err := s.seq.Next()
	if err != nil {
		return 0, err
	}
	return int64(n) + 1, nil
}

// logger routes badger's internal logging into zap.
type logger struct{ s *zap.SugaredLogger }

func newLogger(l *zap.Logger) badger.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return logger{s: l.Named("badger").WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l logger) Errorf(f string, v ...interface{})   { l.s.Errorf(f, v...) }
func (l logger) Warningf(f string, v ...interface{}) { l.s.Warnf(f, v...) }
func (l logger) Infof(f string, v ...interface{})    { l.s.Infof(f, v...) }
func (l logger) Debugf(f string, v ...interface{})   { l.s.Debugf(f, v...) }
