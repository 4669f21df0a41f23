package db

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/config"
)

type (
	GormForkedModel struct {
		ID        uint64 `gorm:"primarykey"`
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	User struct {
		GormForkedModel
		Email    string `gorm:"unique;not null"`
		Password string `gorm:"not null"`
		Name     string `gorm:"not null"`
	}

	Company struct {
		ID   uint64 `gorm:"primarykey"`
		Name string `gorm:"unique;not null"`
	}

	EducationLevel struct {
		ID    uint64 `gorm:"primarykey"`
		Level string `gorm:"unique;not null"`
	}

	ExperienceLevel struct {
		ID    uint64 `gorm:"primarykey"`
		Level string `gorm:"unique;not null"`
	}

	Location struct {
		ID   uint64 `gorm:"primarykey"`
		Name string `gorm:"unique;not null"`
	}

	Sector struct {
		ID   uint64 `gorm:"primarykey"`
		Name string `gorm:"unique;not null"`
	}

	EmploymentType struct {
		ID   uint64 `gorm:"primarykey"`
		Name string `gorm:"unique;not null"`
	}

	Posting struct {
		GormForkedModel
		Title            string `gorm:"not null"`
		Link             string `gorm:"unique;not null"`
		LinkHash         string `gorm:"size:64;unique;not null"`
		Salary           *string
		Deadline         *string
		LastModified     *time.Time `gorm:"type:date"`
		Views            uint64     `gorm:"not null;default:0"`
		UserID           *uint64    `gorm:"index"`
		User             *User      `gorm:"constraint:OnDelete:SET NULL"`
		CompanyID        uint64     `gorm:"not null;index"`
		Company          Company
		EducationLevelID *uint64
		EducationLevel   *EducationLevel
		EmploymentTypeID *uint64
		EmploymentType   *EmploymentType
	}

	PostingExperienceLevel struct {
		PostingID         uint64          `gorm:"primaryKey"`
		ExperienceLevelID uint64          `gorm:"primaryKey"`
		Posting           Posting         `gorm:"constraint:OnDelete:CASCADE"`
		ExperienceLevel   ExperienceLevel `gorm:"constraint:OnDelete:CASCADE"`
	}

	PostingLocation struct {
		PostingID  uint64   `gorm:"primaryKey"`
		LocationID uint64   `gorm:"primaryKey"`
		Posting    Posting  `gorm:"constraint:OnDelete:CASCADE"`
		Location   Location `gorm:"constraint:OnDelete:CASCADE"`
	}

	PostingSector struct {
		PostingID uint64  `gorm:"primaryKey"`
		SectorID  uint64  `gorm:"primaryKey;index"`
		Posting   Posting `gorm:"constraint:OnDelete:CASCADE"`
		Sector    Sector  `gorm:"constraint:OnDelete:CASCADE"`
	}

	PostingEmploymentType struct {
		PostingID        uint64         `gorm:"primaryKey"`
		EmploymentTypeID uint64         `gorm:"primaryKey"`
		Posting          Posting        `gorm:"constraint:OnDelete:CASCADE"`
		EmploymentType   EmploymentType `gorm:"constraint:OnDelete:CASCADE"`
	}

	Bookmark struct {
		GormForkedModel
		UserID    uint64  `gorm:"not null;uniqueIndex:uidx_bookmark_user_posting"`
		User      User    `gorm:"constraint:OnDelete:CASCADE"`
		PostingID uint64  `gorm:"not null;uniqueIndex:uidx_bookmark_user_posting"`
		Posting   Posting `gorm:"constraint:OnDelete:CASCADE"`
	}

	Application struct {
		GormForkedModel
		UserID    uint64  `gorm:"not null;uniqueIndex:uidx_application_user_posting"`
		User      User    `gorm:"constraint:OnDelete:CASCADE"`
		PostingID uint64  `gorm:"not null;uniqueIndex:uidx_application_user_posting"`
		Posting   Posting `gorm:"constraint:OnDelete:CASCADE"`
		Status    string  `gorm:"not null;default:applying;check:status IN ('applying','cancelled','hired','rejected')"`
	}
)

// migration order matters: dimension tables before postings, postings before junctions
var models = []interface{}{
	&User{},
	&Company{},
	&EducationLevel{},
	&ExperienceLevel{},
	&Location{},
	&Sector{},
	&EmploymentType{},
	&Posting{},
	&PostingExperienceLevel{},
	&PostingLocation{},
	&PostingSector{},
	&PostingEmploymentType{},
	&Bookmark{},
	&Application{},
}

func NewGormClient(cfg *config.Config, l *zap.SugaredLogger) (*gorm.DB, error) {
	newLogger := logger.New(zap.NewStdLog(l.Desugar()), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		Colorful:                  false,
		IgnoreRecordNotFoundError: true,
	})

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 newLogger,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql db")
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	for _, m := range models {
		if err := db.AutoMigrate(m); err != nil {
			return errors.Wrapf(err, "migrate %T", m)
		}
	}
	return nil
}
