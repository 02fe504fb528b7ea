package main

import (
	"log"

	"desktown-backend/shared/config"
	"desktown-backend/shared/database"
)

func main() {
	log.Println("🌱 Starting database seeding...")

	config.LoadConfig()

	// InitDatabase also runs migrations
	if err := database.InitDatabase(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.CloseDatabase()

	if err := database.SeedDatabase(); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}

	log.Println("✅ Database seeding completed successfully!")
}
