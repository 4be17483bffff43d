package main

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"leviathan/internal/storage"
)

// printStatus checks the database status
func printStatus(ctx context.Context, db *gorm.DB) error {
	fmt.Println("Checking database status...")

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	fmt.Println("✅ Database connection is working")

	tables, err := storage.Status(db)
	if err != nil {
		return err
	}
	for _, t := range tables {
		if !t.Exists {
			fmt.Printf("❌ %s table does not exist\n", t.Table)
			continue
		}
		fmt.Printf("✅ %s table exists\n", t.Table)
		fmt.Printf("   - Contains %d records\n", t.Rows)
	}
	return nil
}
