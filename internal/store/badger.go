package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const badgerPrefix = "graph/"

// BadgerConfig holds configuration for the embedded store.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string
	// InMemory keeps everything in RAM; useful for tests.
	InMemory   bool
	SyncWrites bool
	// Logger receives badger's own log lines. Nil silences them.
	Logger *slog.Logger
	// GCInterval is how often the value log is garbage collected. Zero disables it.
	GCInterval time.Duration
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerStore keeps graphs in an embedded badger database.
type BadgerStore struct {
	db   *badger.DB
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// OpenBadger opens the database, creating its directory if needed.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("store: badger path is required for a persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("store: create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger.With("component", "badger")})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger database: %w", err)
	}
	s := &BadgerStore{db: db, stop: make(chan struct{})}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.wg.Add(1)
		go s.gcLoop(cfg.GCInterval)
	}
	return s, nil
}

func (s *BadgerStore) gcLoop(every time.Duration) {
	defer s.wg.Done()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			// RunValueLogGC rewrites at most one file per call.
			for s.db.RunValueLogGC(0.5) == nil {
			}
		case <-s.stop:
			return
		}
	}
}

func badgerKey(name string) []byte { return []byte(badgerPrefix + name) }

func (s *BadgerStore) Save(_ context.Context, name string, g GraphFile, tag string) (err error) {
	defer func() { observe("badger", "save", err) }()
	if err := ValidateName(name); err != nil {
		return err
	}
	data, err := encodeEntry(newEntry(name, g, tag))
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(name), data)
	})
}

func (s *BadgerStore) Load(_ context.Context, name string) (e *Entry, err error) {
	defer func() { observe("badger", "load", err) }()
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			e, err = decodeEntry(name, val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *BadgerStore) List(context.Context) (infos []EntryInfo, err error) {
	defer func() { observe("badger", "list", err) }()
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			name := string(item.Key()[len(badgerPrefix):])
			err := item.Value(func(val []byte) error {
				e, err := decodeEntry(name, val)
				if err != nil {
					return err
				}
				infos = append(infos, e.Info())
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortInfos(infos)
	return infos, nil
}

func (s *BadgerStore) Delete(_ context.Context, name string) (err error) {
	defer func() { observe("badger", "delete", err) }()
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(badgerKey(name)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return txn.Delete(badgerKey(name))
	})
}

// Close stops garbage collection and closes the database.
func (s *BadgerStore) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}
