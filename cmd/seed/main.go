package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"piecework.app/piecework/config"
	database "piecework.app/piecework/core"
	"piecework.app/piecework/infrastructure/devops"
	"piecework.app/piecework/logging"
	"piecework.app/piecework/timesheet/core"
	"piecework.app/piecework/timesheet/model"
)

type demoUser struct {
	username string
	name     string
	role     model.Role
}

var demoUsers = []demoUser{
	{"root", "Root", model.RoleSuperAdmin},
	{"admin", "Plant Admin", model.RoleAdmin},
	{"chief", "Zhang Min", model.RoleSectionChief},
	{"supervisor", "Wang Wei", model.RoleSupervisor},
	{"worker", "Li Na", model.RoleEmployee},
}

type demoProcess struct {
	line, product, process, unit string
	category                     model.WorkCategory
	price                        string
}

var demoProcesses = []demoProcess{
	{"Line A", "Widget", "Cut", model.DefaultUnit, model.CategoryProduction, "1.50"},
	{"Line A", "Widget", "Polish", model.DefaultUnit, model.CategoryProduction, "0.80"},
	{"Line B", "Gadget", "Assemble", model.DefaultUnit, model.CategoryProduction, "3.20"},
	{"Line A", "Widget", "Cleaning", "h", model.CategoryNonProduction, ""},
}

// seed migrates the schema and adds a demo company. Existing rows are kept.
func main() {
	password := flag.String("password", "piecework123", "password for every demo user")
	migrateOnly := flag.Bool("migrate-only", false, "only migrate the schema")
	flag.Parse()

	cfg, err := config.Load(os.Getenv("PIECEWORK_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx := context.Background()
	dsn, err := devops.ResolveDSN(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("database settings", zap.Error(err))
	}
	dm, err := database.New(dsn, 2, database.ParseLogLevel(cfg.Database.LogLevel), logger.Named("db"))
	if err != nil {
		logger.Fatal("database unavailable", zap.Error(err))
	}
	defer dm.Close()

	if err := dm.Exec(ctx, func(db *gorm.DB) error {
		return db.AutoMigrate(model.All()...)
	}); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	logger.Info("schema migrated")
	if *migrateOnly {
		return
	}

	if err := dm.Transaction(ctx, func(tx *gorm.DB) error {
		return seed(tx, *password)
	}); err != nil {
		logger.Fatal("seed", zap.Error(err))
	}
	logger.Info("demo data ready", zap.Int("users", len(demoUsers)), zap.Int("processes", len(demoProcesses)))
}

func seed(tx *gorm.DB, password string) error {
	company := model.Company{Name: "Demo Factory"}
	err := tx.Where("name = ?", company.Name).First(&company).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		company = model.Company{ID: uuid.NewString(), Name: "Demo Factory", Active: true}
		err = tx.Create(&company).Error
	}
	if err != nil {
		return err
	}

	hash, err := core.HashPassword(password)
	if err != nil {
		return err
	}
	ids := map[model.Role]string{}
	for _, u := range demoUsers {
		user := model.User{
			ID:           uuid.NewString(),
			CompanyID:    company.ID,
			Username:     u.username,
			Name:         u.name,
			PasswordHash: hash,
			Role:         u.role,
			Active:       true,
		}
		if id, ok := ids[model.RoleSupervisor]; ok {
			user.SupervisorID = &id
		}
		if id, ok := ids[model.RoleSectionChief]; ok {
			user.SectionChiefID = &id
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&user).Error; err != nil {
			return err
		}
		if err := tx.Where("username = ?", u.username).First(&user).Error; err != nil {
			return err
		}
		ids[u.role] = user.ID
	}

	month := time.Now().Format("2006-01")
	for _, p := range demoProcesses {
		var existing int64
		if err := tx.Model(&model.Process{}).
			Where("company_id = ? AND production_line = ? AND product_name = ? AND process_name = ?", company.ID, p.line, p.product, p.process).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			continue
		}
		proc := model.Process{
			ID:             uuid.NewString(),
			CompanyID:      company.ID,
			ProductionLine: p.line,
			Category:       p.category,
			ProductName:    p.product,
			ProcessName:    p.process,
			Unit:           p.unit,
			EffectiveMonth: month,
			Active:         true,
		}
		if p.price != "" {
			proc.UnitPrice = decimal.NewNullDecimal(decimal.RequireFromString(p.price))
		}
		if err := tx.Create(&proc).Error; err != nil {
			return err
		}
	}
	return nil
}
