package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/aaronwang/pickup-auction/shared/models"
)

// ErrOrderNotFound is returned when no archived order has the given id.
var ErrOrderNotFound = errors.New("order not found")

// PostgresClient wraps the PostgreSQL database connection
type PostgresClient struct {
	db *sql.DB
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(ctx context.Context, connStr string) (*PostgresClient, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresClient{db: db}, nil
}

// InitSchema creates the necessary database tables
func (c *PostgresClient) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id VARCHAR(255) PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		current_price DECIMAL(10, 2) DEFAULT 0,
		highest_bidder_id VARCHAR(255),
		ends_at TIMESTAMPTZ,
		status VARCHAR(50) DEFAULT 'active',
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS bids (
		id VARCHAR(255) PRIMARY KEY,
		item_id VARCHAR(255) NOT NULL,
		user_id VARCHAR(255) NOT NULL,
		user_name VARCHAR(255) NOT NULL DEFAULT '',
		amount DECIMAL(10, 2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_bids_item_id ON bids(item_id);
	CREATE INDEX IF NOT EXISTS idx_bids_user_id ON bids(user_id);
	CREATE INDEX IF NOT EXISTS idx_bids_created_at ON bids(created_at);

	CREATE TABLE IF NOT EXISTS orders (
		id VARCHAR(255) PRIMARY KEY,
		item_id VARCHAR(255) NOT NULL,
		status VARCHAR(50) NOT NULL,
		winning_bid DECIMAL(10, 2) NOT NULL,
		buyers_premium DECIMAL(10, 2) NOT NULL,
		item_fee DECIMAL(10, 2) NOT NULL,
		total DECIMAL(10, 2) NOT NULL,
		pickup_code VARCHAR(16) NOT NULL UNIQUE,
		pickup_deadline TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		paid_at TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_orders_item_id ON orders(item_id);
	`

	_, err := c.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// ArchiveBid records a bid event: the item row is created if missing, then
// the bid is inserted and the item's price and end time updated in one
// transaction. Redelivered events are ignored.
func (c *PostgresClient) ArchiveBid(ctx context.Context, event models.BidEvent) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := ensureItem(ctx, tx, event.ItemID); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO bids (id, item_id, user_id, user_name, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, event.BidID, event.ItemID, event.UserID, event.UserName, event.Amount, event.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return tx.Commit()
	}

	// Bids arrive in order per item, but never let a late one lower the price
	_, err = tx.ExecContext(ctx, `
		UPDATE items
		SET current_price = $1,
		    highest_bidder_id = $2,
		    ends_at = $3,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $4 AND current_price <= $1
	`, event.Amount, event.UserID, event.EndsAt, event.ItemID)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bid: %w", err)
	}
	return nil
}

// ensureItem creates a placeholder item; the gateway owns the catalog
func ensureItem(ctx context.Context, tx *sql.Tx, itemID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO items (id, title)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, itemID, fmt.Sprintf("Item %s", itemID))
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

// ArchiveOrder upserts an order. A paid order is never moved back to pending,
// so events may be applied out of order.
func (c *PostgresClient) ArchiveOrder(ctx context.Context, order models.Order) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO orders (id, item_id, status, winning_bid, buyers_premium, item_fee,
		                    total, pickup_code, pickup_deadline, created_at, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE
		SET status = CASE WHEN orders.status = 'paid' THEN orders.status ELSE EXCLUDED.status END,
		    paid_at = COALESCE(orders.paid_at, EXCLUDED.paid_at)
	`,
		order.ID,
		order.ItemID,
		order.Status,
		order.WinningBid,
		order.BuyersPremium,
		order.ItemFee,
		order.Total,
		order.PickupCode,
		order.PickupDeadline,
		order.CreatedAt,
		order.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert order: %w", err)
	}
	return nil
}

// GetBidHistory retrieves the bid history for an item, newest first
func (c *PostgresClient) GetBidHistory(ctx context.Context, itemID string, limit int) ([]models.Bid, error) {
	query := `
		SELECT id, item_id, user_id, user_name, amount, created_at
		FROM bids
		WHERE item_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := c.db.QueryContext(ctx, query, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	bids := make([]models.Bid, 0)
	for rows.Next() {
		var bid models.Bid
		err := rows.Scan(
			&bid.ID,
			&bid.ItemID,
			&bid.UserID,
			&bid.UserName,
			&bid.Amount,
			&bid.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, bid)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bids: %w", err)
	}
	return bids, nil
}

// GetOrder retrieves an archived order
func (c *PostgresClient) GetOrder(ctx context.Context, orderID string) (models.Order, error) {
	var order models.Order
	var paidAt sql.NullTime

	err := c.db.QueryRowContext(ctx, `
		SELECT id, item_id, status, winning_bid, buyers_premium, item_fee,
		       total, pickup_code, pickup_deadline, created_at, paid_at
		FROM orders
		WHERE id = $1
	`, orderID).Scan(
		&order.ID,
		&order.ItemID,
		&order.Status,
		&order.WinningBid,
		&order.BuyersPremium,
		&order.ItemFee,
		&order.Total,
		&order.PickupCode,
		&order.PickupDeadline,
		&order.CreatedAt,
		&paidAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to get order: %w", err)
	}

	if paidAt.Valid {
		order.PaidAt = &paidAt.Time
	}
	return order, nil
}

// Ping checks the connection
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	return c.db.Close()
}
