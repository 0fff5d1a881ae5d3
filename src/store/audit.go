package store

import (
	"fmt"
	"os"
	"strings"
	"time"

	"lungscan-server-go/src/core/utils"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// AuditRecord is one row of the request audit log. Only operational
// metadata is stored; payloads and model outputs beyond the label never
// touch the database.
type AuditRecord struct {
	ID        uint   `gorm:"primaryKey"`
	RequestID string `gorm:"index"`
	Endpoint  string
	Status    int
	Label     string
	LatencyMS int64
	CreatedAt time.Time
}

// Auditor writes audit records through a buffered channel so request
// handlers never block on the database.
type Auditor struct {
	db      *gorm.DB
	logger  *utils.Logger
	records chan AuditRecord
	done    chan struct{}
}

// OpenDB connects to the database named by DATABASE_URL, detecting the
// driver from the DSN scheme. An empty DATABASE_URL yields (nil, "", nil):
// auditing is optional.
func OpenDB() (*gorm.DB, string, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, "", nil
	}

	var db *gorm.DB
	var err error
	var dbType string

	switch {
	case strings.HasPrefix(dsn, "mysql://"):
		dbType = "mysql"
		db, err = gorm.Open(mysql.Open(strings.TrimPrefix(dsn, "mysql://")), &gorm.Config{})
	case strings.HasPrefix(dsn, "postgres://"):
		dbType = "postgres"
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	case strings.HasPrefix(dsn, "sqlite://"):
		dbType = "sqlite"
		db, err = gorm.Open(sqlite.Open(strings.TrimPrefix(dsn, "sqlite://")), &gorm.Config{})
	default:
		return nil, "", fmt.Errorf("unsupported DSN format: %s", dsn)
	}

	if err != nil {
		return nil, "", fmt.Errorf("connect database: %w", err)
	}

	return db, dbType, nil
}

// NewAuditor migrates the audit table and starts the writer goroutine.
func NewAuditor(db *gorm.DB, logger *utils.Logger) (*Auditor, error) {
	if err := db.AutoMigrate(&AuditRecord{}); err != nil {
		return nil, fmt.Errorf("migrate audit table: %w", err)
	}

	a := &Auditor{
		db:      db,
		logger:  logger,
		records: make(chan AuditRecord, 256),
		done:    make(chan struct{}),
	}
	go a.drain()

	return a, nil
}

// Record queues one audit row. Drops the row when the buffer is full
// rather than stalling the request path.
func (a *Auditor) Record(record AuditRecord) {
	if a == nil {
		return
	}
	record.CreatedAt = time.Now()

	select {
	case a.records <- record:
	default:
		a.logger.Warn("audit buffer full, dropping record")
	}
}

func (a *Auditor) drain() {
	defer close(a.done)
	for record := range a.records {
		if err := a.db.Create(&record).Error; err != nil {
			a.logger.Warn(fmt.Sprintf("write audit record: %v", err))
		}
	}
}

// Close flushes pending records and stops the writer.
func (a *Auditor) Close() {
	if a == nil {
		return
	}
	close(a.records)
	<-a.done
}
