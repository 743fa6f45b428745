package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mediaguard/backend/internal/identity"
	"mediaguard/backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a participant, post or ledger meta row does not exist.
	ErrNotFound = errors.New("storage: record not found")

	// ErrDuplicate is returned when a participant or the meta row already exists.
	ErrDuplicate = errors.New("storage: duplicate record")
)

// ledgerLockKey is the postgres advisory lock every write transaction holds.
const ledgerLockKey int64 = 0x6d67_6c65_6467_6572

// Tx is the write view of the ledger inside one transaction.
type Tx interface {
	GetParticipant(addr identity.Identity) (*models.Participant, error)
	CreateParticipant(p *models.Participant) error
	SaveParticipant(p *models.Participant) error
	PostCount() (uint64, error)
	AppendPost(p *models.Post) error
}

// Storage persists participants, posts and the ledger meta row.
// Reads return copies; writes go through Transaction.
type Storage interface {
	Migrate(ctx context.Context) error
	Close() error

	// Transaction runs fn atomically: either every write in fn commits or none does.
	Transaction(ctx context.Context, fn func(tx Tx) error) error

	GetParticipant(ctx context.Context, addr identity.Identity) (*models.Participant, error)
	ListBlocked(ctx context.Context) ([]models.Participant, error)
	ListPendingUnblock(ctx context.Context) ([]models.Participant, error)

	GetPost(ctx context.Context, id uint64) (*models.Post, error)
	PostCount(ctx context.Context) (uint64, error)
	ListPostsByAuthor(ctx context.Context, author identity.Identity) ([]models.Post, error)
	RecentPosts(ctx context.Context, limit int) ([]models.Post, error)

	Stats(ctx context.Context) (models.LedgerStats, error)

	LoadMeta(ctx context.Context) (*models.LedgerMeta, error)
	SaveMeta(ctx context.Context, meta *models.LedgerMeta) error
}

// Service is the gorm-backed Storage.
type Service struct {
	DB *gorm.DB
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// Open connects to postgres or sqlite. Driver errors are translated so
// duplicate keys surface as gorm.ErrDuplicatedKey.
func Open(driver, dsn string, cfg *gorm.Config) (*gorm.DB, error) {
	if cfg == nil {
		cfg = &gorm.Config{}
	}
	cfg.TranslateError = true

	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(sqliteDSN(dsn))
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", driver)
	}
	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", driver, err)
	}
	return db, nil
}

// sqliteDSN makes every transaction begin immediate, taking the database
// write lock up front, and wait for a busy lock instead of failing.
func sqliteDSN(dsn string) string {
	var params []string
	if !strings.Contains(dsn, "_txlock=") {
		params = append(params, "_txlock=immediate")
	}
	if !strings.Contains(dsn, "_timeout=") {
		params = append(params, "_busy_timeout=10000")
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// Migrate creates or updates the ledger tables.
func (s *Service) Migrate(ctx context.Context) error {
	return s.DB.WithContext(ctx).AutoMigrate(
		&models.Participant{},
		&models.Post{},
		&models.LedgerMeta{},
	)
}

// Close closes the underlying connection pool.
func (s *Service) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction runs fn as the only writer across every process sharing the
// database. On postgres it holds a transaction-scoped advisory lock; sqlite
// transactions already own the write lock from BEGIN IMMEDIATE.
func (s *Service) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	return s.DB.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if db.Dialector.Name() == "postgres" {
			if err := db.Exec("SELECT pg_advisory_xact_lock(?)", ledgerLockKey).Error; err != nil {
				return fmt.Errorf("storage: lock ledger: %w", err)
			}
		}
		return fn(&gormTx{db: db})
	})
}

func (s *Service) GetParticipant(ctx context.Context, addr identity.Identity) (*models.Participant, error) {
	return getParticipant(s.DB.WithContext(ctx), addr)
}

// ListBlocked returns suspended participants, most recently blocked first.
func (s *Service) ListBlocked(ctx context.Context) ([]models.Participant, error) {
	var out []models.Participant
	err := s.DB.WithContext(ctx).
		Where("is_blocked = ?", true).
		Order("blocked_at desc").
		Find(&out).Error
	return out, err
}

// ListPendingUnblock returns participants waiting for review, oldest request first.
func (s *Service) ListPendingUnblock(ctx context.Context) ([]models.Participant, error) {
	var out []models.Participant
	err := s.DB.WithContext(ctx).
		Where("has_unblock_request = ?", true).
		Order("unblock_requested_at asc").
		Find(&out).Error
	return out, err
}

func (s *Service) GetPost(ctx context.Context, id uint64) (*models.Post, error) {
	var post models.Post
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *Service) PostCount(ctx context.Context) (uint64, error) {
	return postCount(s.DB.WithContext(ctx))
}

func (s *Service) ListPostsByAuthor(ctx context.Context, author identity.Identity) ([]models.Post, error) {
	var out []models.Post
	err := s.DB.WithContext(ctx).
		Where("author = ?", author.String()).
		Order("id asc").
		Find(&out).Error
	return out, err
}

// RecentPosts returns up to limit posts, newest first.
func (s *Service) RecentPosts(ctx context.Context, limit int) ([]models.Post, error) {
	var out []models.Post
	err := s.DB.WithContext(ctx).
		Order("id desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Stats aggregates the dashboard counters in one read.
func (s *Service) Stats(ctx context.Context) (models.LedgerStats, error) {
	var st models.LedgerStats
	db := s.DB.WithContext(ctx)

	if err := db.Model(&models.Participant{}).Count(&st.TotalParticipants).Error; err != nil {
		return st, err
	}
	posts, err := postCount(db)
	if err != nil {
		return st, err
	}
	st.TotalPosts = posts
	if err := db.Model(&models.Post{}).Where("is_blocked = ?", true).Count(&st.BlockedPosts).Error; err != nil {
		return st, err
	}
	if err := db.Model(&models.Participant{}).Where("is_blocked = ?", true).Count(&st.BlockedUsers).Error; err != nil {
		return st, err
	}
	if err := db.Model(&models.Participant{}).Where("has_unblock_request = ?", true).Count(&st.PendingUnblocks).Error; err != nil {
		return st, err
	}
	if err := db.Model(&models.Participant{}).Select("COALESCE(SUM(violation_count), 0)").Scan(&st.TotalViolations).Error; err != nil {
		return st, err
	}
	return st, nil
}

func (s *Service) LoadMeta(ctx context.Context) (*models.LedgerMeta, error) {
	var meta models.LedgerMeta
	err := s.DB.WithContext(ctx).First(&meta, models.LedgerMetaID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Service) SaveMeta(ctx context.Context, meta *models.LedgerMeta) error {
	meta.ID = models.LedgerMetaID
	return translate(s.DB.WithContext(ctx).Create(meta).Error)
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) GetParticipant(addr identity.Identity) (*models.Participant, error) {
	return getParticipant(t.db, addr)
}

func (t *gormTx) CreateParticipant(p *models.Participant) error {
	return translate(t.db.Create(p).Error)
}

func (t *gormTx) SaveParticipant(p *models.Participant) error {
	return t.db.Save(p).Error
}

func (t *gormTx) PostCount() (uint64, error) {
	return postCount(t.db)
}

func (t *gormTx) AppendPost(p *models.Post) error {
	return translate(t.db.Create(p).Error)
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func getParticipant(db *gorm.DB, addr identity.Identity) (*models.Participant, error) {
	var p models.Participant
	err := db.Where("address = ?", addr.String()).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func postCount(db *gorm.DB) (uint64, error) {
	var n int64
	if err := db.Model(&models.Post{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return uint64(n), nil
}
