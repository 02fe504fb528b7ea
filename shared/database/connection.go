package database

import (
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"desktown-backend/shared/config"
	"desktown-backend/shared/database/models"
	"desktown-backend/shared/database/models/notification"
)

var DB *gorm.DB

// getLogLevel returns appropriate log level based on environment
func getLogLevel(cfg *config.Config) logger.LogLevel {
	if cfg.DBHost == "localhost" || cfg.DBHost == "127.0.0.1" || strings.Contains(cfg.DatabaseURL, "@localhost") {
		return logger.Warn
	}
	return logger.Error
}

// AllModels lists every table in dependency order
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Task{},
		&models.Ticket{},
		&models.TicketComment{},
		&models.Office{},
		&models.OfficeDepartment{},
		&models.OfficeMedia{},
		&models.OfficeMessage{},
		&models.OfficeComment{},
		&models.OfficeService{},
		&models.ServiceRating{},
		&models.ServiceOrder{},
		&models.WebhookEvent{},
		&models.Post{},
		&models.PostLike{},
		&models.PostComment{},
		&models.ChatThread{},
		&models.ChatParticipant{},
		&models.ChatMessage{},
		&models.Meeting{},
		&models.MeetingParticipant{},
		&models.VideoCall{},
		&models.Status{},
		&models.StatusView{},
		&models.InternalEmail{},
		&notification.Notification{},
		&notification.PushSubscription{},
		&notification.AuditLog{},
	}
}

// Open connects to PostgreSQL with the configured pool limits
func Open(cfg *config.Config) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(getLogLevel(cfg)),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// InitDatabase initializes the database connection and runs migrations
func InitDatabase() error {
	cfg := config.GetConfig()

	db, err := Open(cfg)
	if err != nil {
		return err
	}
	DB = db

	log.Printf("✅ Database connection established successfully (max open conns: %d)", cfg.DBMaxOpenConns)

	if err := Migrate(DB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// Migrate creates or updates every DeskTown table
func Migrate(db *gorm.DB) error {
	log.Println("🔄 Checking database schema...")

	// gen_random_uuid() is built in from PostgreSQL 13; older servers need pgcrypto
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS pgcrypto").Error; err != nil {
		log.Printf("⚠️  Could not ensure pgcrypto extension: %v", err)
	}

	migrator := db.Migrator()
	migratedCount := 0
	for _, model := range AllModels() {
		if !migrator.HasTable(model) {
			log.Printf("📦 Creating table: %T", model)
			migratedCount++
		}

		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	if migratedCount > 0 {
		log.Printf("✅ Database migrations completed (%d tables created)", migratedCount)
	} else {
		log.Println("✅ Database schema is up to date")
	}

	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// CloseDatabase closes the database connection
func CloseDatabase() error {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
