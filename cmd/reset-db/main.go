package main

import (
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"desktown-backend/shared/config"
	"desktown-backend/shared/database"
)

func main() {
	log.Println("🗑️ Starting database reset...")

	config.LoadConfig()
	cfg := config.GetConfig()

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatal("❌ Database connection failed:", err)
	}

	log.Println("🗑️ Dropping all tables...")

	// reverse order so dependents go first; CASCADE covers the rest
	models := database.AllModels()
	migrator := db.Migrator()
	for i := len(models) - 1; i >= 0; i-- {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(models[i]); err != nil {
			log.Printf("   ⚠️  Skipping %T: %v", models[i], err)
			continue
		}
		table := stmt.Schema.Table
		log.Printf("   Dropping table: %s", table)
		if !migrator.HasTable(table) {
			continue
		}
		if err := db.Exec("DROP TABLE IF EXISTS " + table + " CASCADE").Error; err != nil {
			log.Printf("   ❌ %s: %v", table, err)
		}
	}

	log.Println("✅ Database reset completed - all tables dropped!")
	log.Println("💡 Run 'go run ./cmd/seed' to recreate tables and seed data")
}
