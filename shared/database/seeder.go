package database

import (
	"fmt"
	"log"

	"desktown-backend/shared/config"
	"desktown-backend/shared/database/models"
	utils "desktown-backend/shared/utils/auth"
)

const (
	demoOwnerEmail = "demo-office@desktown.app"
	demoOfficeSlug = "desktown-hq"
)

// SeedDatabase creates the super admin and a demo storefront. Running it twice is a no-op.
func SeedDatabase() error {
	log.Println("🌱 Checking database seed data...")

	if err := CreateSuperAdminFromConfig(); err != nil {
		return err
	}

	created, err := seedDemoOffice()
	if err != nil {
		return err
	}
	if created {
		log.Printf("✅ Demo office created: /offices/slug/%s", demoOfficeSlug)
	} else {
		log.Println("✅ Database seed data is up to date")
	}
	return nil
}

// CreateSuperAdminFromConfig creates super admin using config values
func CreateSuperAdminFromConfig() error {
	cfg := config.GetConfig()
	return CreateSuperAdmin(cfg.SuperAdminEmail, cfg.SuperAdminPassword, "Super", "Admin")
}

// CreateSuperAdmin creates the super_admin account unless the email is already taken
func CreateSuperAdmin(email, password, firstName, lastName string) error {
	var existingUser models.User
	if err := DB.Where("email = ?", email).First(&existingUser).Error; err == nil {
		log.Println("Super admin already exists")
		return nil
	}

	if err := utils.ValidatePassword(password); err != nil {
		return fmt.Errorf("super admin password: %w", err)
	}
	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return err
	}

	superAdmin := models.User{
		Email:     email,
		Username:  "superadmin",
		Password:  hashedPassword,
		FirstName: firstName,
		LastName:  lastName,
		Role:      models.RoleSuperAdmin,
		IsActive:  true,
	}
	if err := DB.Create(&superAdmin).Error; err != nil {
		return err
	}

	log.Printf("✅ Super admin created: %s", email)
	return nil
}

func seedDemoOffice() (bool, error) {
	var count int64
	if err := DB.Model(&models.Office{}).Where("slug = ?", demoOfficeSlug).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	owner, err := demoOwner()
	if err != nil {
		return false, err
	}

	office := models.Office{
		OwnerID:     owner.ID,
		Name:        "DeskTown HQ",
		Slug:        demoOfficeSlug,
		Description: "The demo storefront that ships with every DeskTown install.",
		Category:    "consulting",
		Address:     "1 Virtual Way",
		IsPublished: true,
	}
	if err := DB.Create(&office).Error; err != nil {
		return false, err
	}

	reception := models.OfficeDepartment{OfficeID: office.ID, Name: "Reception", SortOrder: 0}
	if err := DB.Create(&reception).Error; err != nil {
		return false, err
	}
	sections := []models.OfficeDepartment{
		{OfficeID: office.ID, Name: "Consulting", SortOrder: 1},
		{OfficeID: office.ID, ParentID: &reception.ID, Name: "Front desk", SortOrder: 0},
	}
	if err := DB.Create(&sections).Error; err != nil {
		return false, err
	}

	services := []struct {
		name     string
		price    int64
		duration int
	}{
		{"Intro call", 0, 15},
		{"Strategy session", 9900, 60},
	}
	for _, s := range services {
		token, err := utils.GenerateShareToken()
		if err != nil {
			return false, err
		}
		svc := models.OfficeService{
			OfficeID:        office.ID,
			Name:            s.name,
			PriceCents:      s.price,
			Currency:        config.GetConfig().DefaultCurrency,
			DurationMinutes: s.duration,
			ShareToken:      token,
			IsActive:        true,
		}
		if err := DB.Create(&svc).Error; err != nil {
			return false, err
		}
	}
	return true, nil
}

func demoOwner() (*models.User, error) {
	var owner models.User
	if err := DB.Where("email = ?", demoOwnerEmail).First(&owner).Error; err == nil {
		return &owner, nil
	}

	hashed, err := utils.HashPassword(config.GetConfig().SuperAdminPassword)
	if err != nil {
		return nil, err
	}
	owner = models.User{
		Email:     demoOwnerEmail,
		Username:  "demo-office",
		Password:  hashed,
		FirstName: "Demo",
		LastName:  "Owner",
		Role:      models.RoleOfficeRenter,
		IsActive:  true,
	}
	if err := DB.Create(&owner).Error; err != nil {
		return nil, err
	}
	return &owner, nil
}
