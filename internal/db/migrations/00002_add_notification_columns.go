package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(UpNotificationColumns, DownNotificationColumns)
}

func UpNotificationColumns(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `ALTER TABLE orders
    ADD COLUMN notification_status VARCHAR(20) DEFAULT 'pending',
    ADD COLUMN notification_error VARCHAR(512);`)
	return err
}

func DownNotificationColumns(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `ALTER TABLE orders
    DROP COLUMN notification_error,
    DROP COLUMN notification_status;`)
	return err
}
