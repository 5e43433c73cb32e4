package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// ConnectDB opens the pool for dsn and creates the work_log table when missing.
func ConnectDB(ctx context.Context, dsn string, maxConnection int, level LogLevel) (*DatabaseManager, *gorm.DB, error) {
	dm, err := New(ctx, dsn, maxConnection)
	if err != nil {
		return nil, nil, err
	}
	dm.LogLevel = level

	db, err := dm.GetDB()
	if err != nil {
		dm.Close()
		return nil, nil, err
	}
	if err := Migrate(db.WithContext(ctx)); err != nil {
		dm.Close()
		return nil, nil, err
	}
	return dm, db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&WorkLogEntity{}); err != nil {
		return fmt.Errorf("failed to migrate work_log: %w", err)
	}
	return nil
}
