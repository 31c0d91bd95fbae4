package config

import (
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"toolhub/internal/adapters/persistence/models"
)

// SeedMasterData seeds initial categories and a few sample tools
func SeedMasterData(db *gorm.DB) error {
	if err := seedCategories(db); err != nil {
		return err
	}
	if err := seedTools(db); err != nil {
		return err
	}

	zap.L().Info("master data seeded")
	return nil
}

func seedCategories(db *gorm.DB) error {
	categories := []models.Category{
		{Code: "HAND", Name: "Hand Tools", Description: "Hammers, wrenches, screwdrivers", IsActive: true},
		{Code: "POWER", Name: "Power Tools", Description: "Drills, grinders, saws", IsActive: true},
		{Code: "MEASURE", Name: "Measuring", Description: "Tape measures, levels, multimeters", IsActive: true},
		{Code: "SAFETY", Name: "Safety Gear", Description: "Helmets, goggles, harnesses", IsActive: true},
	}

	for _, c := range categories {
		var existing models.Category
		err := db.Where("code = ?", c.Code).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Create(&c).Error; err != nil {
			return err
		}
		zap.L().Debug("created category", zap.String("code", c.Code))
	}
	return nil
}

func seedTools(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Tool{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	byCode := map[string]uint{}
	var cats []models.Category
	if err := db.Find(&cats).Error; err != nil {
		return err
	}
	for _, c := range cats {
		byCode[c.Code] = c.ID
	}

	samples := []struct {
		code, name, category, location string
		stock                          int
	}{
		{"TL-0001", "Claw Hammer", "HAND", "Rack A1", 5},
		{"TL-0002", "Cordless Drill", "POWER", "Rack B2", 3},
		{"TL-0003", "Laser Level", "MEASURE", "Cabinet C", 2},
		{"TL-0004", "Safety Helmet", "SAFETY", "Rack D1", 10},
	}

	for _, s := range samples {
		tool := models.Tool{
			Code:           s.code,
			Name:           s.name,
			Location:       s.location,
			Condition:      "good",
			StockTotal:     s.stock,
			StockAvailable: s.stock,
			IsActive:       true,
		}
		if id, ok := byCode[s.category]; ok {
			tool.CategoryID = &id
		}
		if err := db.Create(&tool).Error; err != nil {
			return err
		}
	}
	return nil
}
