package config

import (
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"toolhub/internal/adapters/persistence/models"
	"toolhub/internal/pkg/password"
)

// Seeder handles database seeding
type Seeder struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db, log: zap.L().Named("seeder")}
}

// Run executes all seeders. A failing step is logged and skipped.
func (s *Seeder) Run() error {
	s.log.Info("running database seeders")

	if err := s.seedUser("admin", "admin@toolhub.local", "Administrator", "ADMIN", "admin123456"); err != nil {
		s.log.Warn("admin seeder skipped", zap.Error(err))
	}
	if err := s.seedUser("staff", "staff@toolhub.local", "Warehouse Staff", "STAFF", "staff123456"); err != nil {
		s.log.Warn("staff seeder skipped", zap.Error(err))
	}
	if err := SeedMasterData(s.db); err != nil {
		s.log.Warn("master data seeder skipped", zap.Error(err))
	}

	s.log.Info("database seeding completed")
	return nil
}

// seedUser creates a development account once per role.
// In production, create accounts through the admin API.
func (s *Seeder) seedUser(username, email, fullName, role, plain string) error {
	var count int64
	if err := s.db.Model(&models.User{}).Where("role = ?", role).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := password.Hash(plain)
	if err != nil {
		return err
	}

	user := &models.User{
		Username: username,
		Email:    email,
		FullName: fullName,
		Password: hashed,
		Role:     role,
		IsActive: true,
	}
	if err := s.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return err
	}

	s.log.Info("user created", zap.String("username", username), zap.String("role", role))
	return nil
}
