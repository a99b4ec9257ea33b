package main

import (
	"context"
	"flag"
	"os"

	"go.uber.org/zap"

	"clan-backend/internal/repositories"
	"clan-backend/pkg/config"
	"clan-backend/pkg/database/migrations"
	"clan-backend/pkg/database/postgresql"
	applogger "clan-backend/pkg/logger"
	"clan-backend/seeders"
)

func main() {
	runRoles := flag.Bool("roles", false, "Создать роли по умолчанию")
	runSuperuser := flag.Bool("superuser", false, "Создать суперпользователя из SUPERUSER_EMAIL / SUPERUSER_PASSWORD")
	runAll := flag.Bool("all", false, "Запустить все сидеры")
	migrate := flag.Bool("migrate", true, "Применить миграции перед наполнением")
	flag.Parse()

	cfg := config.New()
	logger := applogger.NewLogger(cfg.Log.Level, cfg.Log.File)
	defer func() { _ = logger.Sync() }()

	if !*runRoles && !*runSuperuser && !*runAll {
		logger.Warn("Не выбран ни один сидер. Примеры: -roles, -superuser, -all")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx := context.Background()
	dbPool, err := postgresql.ConnectDB(ctx, cfg.Postgres.DSN, logger)
	if err != nil {
		logger.Fatal("Не удалось подключиться к PostgreSQL", zap.Error(err))
	}
	defer dbPool.Close()

	if *migrate {
		if err := migrations.Up(dbPool, logger); err != nil {
			logger.Fatal("Ошибка миграций", zap.Error(err))
		}
	}

	txManager := repositories.NewTxManager(dbPool)
	seeder := seeders.New(
		repositories.NewUserRepository(dbPool, logger),
		repositories.NewAccessAdminRepository(dbPool, txManager, logger),
		logger.Named("seed"),
	)

	switch {
	case *runAll, *runRoles && *runSuperuser:
		err = seeder.SeedAll(ctx, cfg.Seed.SuperuserEmail, cfg.Seed.SuperuserPassword)
	case *runRoles:
		err = seeder.SeedRoles(ctx)
	default:
		err = seeder.SeedSuperuser(ctx, cfg.Seed.SuperuserEmail, cfg.Seed.SuperuserPassword)
	}
	if err != nil {
		logger.Fatal("Ошибка наполнения БД", zap.Error(err))
	}
	logger.Info("Наполнение БД завершено")
}
