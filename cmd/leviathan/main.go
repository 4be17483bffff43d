package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"leviathan/internal/bot"
	"leviathan/internal/config"
	"leviathan/internal/crash"
	"leviathan/internal/logger"
	"leviathan/internal/storage"
)

func main() {
	// 设置崩溃处理器，确保在任何 panic 时都能记录堆栈信息
	defer crash.RecoverWithStackAndExit("main")

	app := &cli.App{
		Name:  "leviathan",
		Usage: "moderation and automation bot for Discord and Telegram",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "configs/config.yaml",
				Usage:   "path to configuration file",
				EnvVars: []string{"LEVIATHAN_CONFIG"},
			},
		},
		Action: runBot,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "connect to the chat platform and run until interrupted",
				Action: runBot,
			},
			{
				Name:      "migrate",
				Usage:     "manage the database schema",
				ArgsUsage: "[migrate|status|reset]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "confirm destructive actions",
					},
				},
				Action: runMigrate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(cctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Setup(cfg); err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return cfg, nil
}

func runBot(cctx *cli.Context) error {
	cfg, err := loadConfig(cctx)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app, err := bot.Initialize(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize bot: %w", err)
	}
	return app.Run(ctx)
}

func runMigrate(cctx *cli.Context) error {
	cfg, err := loadConfig(cctx)
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := storage.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	action := cctx.Args().First()
	if action == "" {
		action = "migrate"
	}

	switch action {
	case "migrate":
		fmt.Println("Migrating database...")
		if err := storage.Migrate(db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		fmt.Println("Migration completed successfully")
	case "reset":
		if !cctx.Bool("yes") {
			return fmt.Errorf("reset deletes all data, pass --yes to confirm")
		}
		if err := storage.Reset(db); err != nil {
			return fmt.Errorf("reset failed: %w", err)
		}
		fmt.Println("Database reset completed successfully")
	case "status":
		return printStatus(context.Background(), db)
	default:
		return fmt.Errorf("unknown action: %s", action)
	}
	return nil
}
