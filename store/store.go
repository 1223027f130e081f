// Package store persists table snapshots in a SQLite database.
//
// Each collected table is stored as one row holding a snapshot of its
// sections. Saving a table replaces its row; DeleteSections prunes sections a
// collector reported as obsolete without waiting for the table to complete
// again.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/arloliu/dvbsi/compress"
	"github.com/arloliu/dvbsi/errs"
	"github.com/arloliu/dvbsi/format"
	"github.com/arloliu/dvbsi/internal/hash"
	"github.com/arloliu/dvbsi/internal/options"
	"github.com/arloliu/dvbsi/section"
	"github.com/arloliu/dvbsi/snapshot"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	name TEXT PRIMARY KEY,
	compression INTEGER NOT NULL,
	sections INTEGER NOT NULL,
	data BLOB NOT NULL,
	updatedAt INTEGER NOT NULL
);`

// TableInfo describes one stored snapshot.
type TableInfo struct {
	Name        string
	Compression format.CompressionType
	Sections    int
	Size        int
	UpdatedAt   time.Time
}

// Config holds store settings.
type Config struct {
	Compression format.CompressionType
	Logger      *zap.Logger
	Now         func() time.Time
}

// Option configures a Store.
type Option = options.Option[*Config]

// WithCompression selects the snapshot codec. Default: Zstd.
func WithCompression(ct format.CompressionType) Option {
	return options.New(func(c *Config) error {
		if _, err := compress.GetCodec(ct); err != nil {
			return err
		}
		c.Compression = ct

		return nil
	})
}

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return options.NoError(func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	})
}

// WithClock overrides the clock used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return options.NoError(func(c *Config) {
		if now != nil {
			c.Now = now
		}
	})
}

// Store provides snapshot persistence. It is safe for concurrent use as far
// as database/sql is.
type Store struct {
	db  *sql.DB
	cfg Config
}

// Open opens or creates the database at path and applies the schema.
// Use ":memory:" for a private in-memory database.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := Config{
		Compression: format.CompressionZstd,
		Logger:      zap.NewNop(),
		Now:         time.Now,
	}
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// an in-memory database exists per connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, cfg: cfg}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveTable replaces the snapshot stored under name.
func (s *Store) SaveTable(name string, sections []*section.Section) error {
	data, err := snapshot.Encode(sections, snapshot.WithCompression(s.cfg.Compression))
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	return s.put(name, len(sections), data)
}

func (s *Store) put(name string, count int, data []byte) error {
	hdr, err := snapshot.ParseHeader(data)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO snapshots (name, compression, sections, data, updatedAt)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			compression = excluded.compression,
			sections = excluded.sections,
			data = excluded.data,
			updatedAt = excluded.updatedAt`,
		name, int(hdr.Compression), count, data, s.cfg.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}

	s.cfg.Logger.Debug("snapshot saved",
		zap.String("table", name),
		zap.Int("sections", count),
		zap.Int("bytes", len(data)),
		zap.Stringer("compression", hdr.Compression))

	return nil
}

// LoadTable returns the sections stored under name, or ErrTableNotFound.
func (s *Store) LoadTable(name string) ([]*section.Section, error) {
	data, err := s.get(name)
	if err != nil {
		return nil, err
	}

	sections, err := snapshot.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}

	return sections, nil
}

func (s *Store) get(name string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM snapshots WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", name, errs.ErrTableNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}

	return data, nil
}

// DeleteSections removes the given sections from the snapshot stored under
// name. Sections are matched by content. It returns the number of sections
// removed; a table that was never saved is not an error.
func (s *Store) DeleteSections(name string, obsolete []*section.Section) (int, error) {
	if len(obsolete) == 0 {
		return 0, nil
	}

	stored, err := s.LoadTable(name)
	if errors.Is(err, errs.ErrTableNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	drop := make(map[uint64]struct{}, len(obsolete))
	for _, sec := range obsolete {
		drop[hash.Sum(sec.Raw())] = struct{}{}
	}

	kept := stored[:0]
	for _, sec := range stored {
		if _, ok := drop[hash.Sum(sec.Raw())]; !ok {
			kept = append(kept, sec)
		}
	}

	removed := len(stored) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	if err := s.SaveTable(name, kept); err != nil {
		return 0, err
	}

	return removed, nil
}

// DeleteTable removes the snapshot stored under name.
func (s *Store) DeleteTable(name string) error {
	if _, err := s.db.Exec(`DELETE FROM snapshots WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}

	return nil
}

// Tables lists the stored snapshots ordered by name.
func (s *Store) Tables() ([]TableInfo, error) {
	rows, err := s.db.Query(`
		SELECT name, compression, sections, length(data), updatedAt
		FROM snapshots
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []TableInfo
	for rows.Next() {
		var (
			info        TableInfo
			compression int
			updatedAt   int64
		)
		if err := rows.Scan(&info.Name, &compression, &info.Sections, &info.Size, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		info.Compression = format.CompressionType(compression)
		info.UpdatedAt = time.UnixMilli(updatedAt)
		tables = append(tables, info)
	}

	return tables, rows.Err()
}
