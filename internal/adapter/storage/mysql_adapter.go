package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/canteen-engine/internal/core/domain"
	"github.com/rl1809/canteen-engine/internal/port"
)

const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		item_id       VARCHAR(64)    NOT NULL PRIMARY KEY,
		name          VARCHAR(255)   NOT NULL,
		category      VARCHAR(64)    NOT NULL DEFAULT '',
		price         DECIMAL(12,2)  NOT NULL,
		stock         INT UNSIGNED   NOT NULL,
		items_sold    INT UNSIGNED   NOT NULL DEFAULT 0,
		total_revenue DECIMAL(14,2)  NOT NULL DEFAULT 0,
		version       BIGINT         NOT NULL DEFAULT 1,
		updated_at    DATETIME(6)    NOT NULL,
		INDEX idx_items_stock (stock)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id           CHAR(36)      NOT NULL PRIMARY KEY,
		purchaser_id VARCHAR(128)  NOT NULL,
		line_items   JSON          NOT NULL,
		total_price  DECIMAL(14,2) NOT NULL,
		created_at   DATETIME(6)   NOT NULL,
		INDEX idx_orders_purchaser (purchaser_id, created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id         CHAR(36)      NOT NULL PRIMARY KEY,
		order_id   CHAR(36)      NOT NULL,
		amount     DECIMAL(14,2) NOT NULL,
		item_count INT           NOT NULL,
		created_at DATETIME(6)   NOT NULL,
		INDEX idx_sales_created (created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id            CHAR(36)     NOT NULL PRIMARY KEY,
		resource_id   VARCHAR(128) NOT NULL,
		resource_name VARCHAR(256) NOT NULL,
		time_slot     VARCHAR(64)  NOT NULL,
		user_id       VARCHAR(128) NOT NULL,
		user_name     VARCHAR(256) NOT NULL DEFAULT '',
		status        VARCHAR(32)  NOT NULL,
		booked_at     DATETIME(6)  NOT NULL,
		UNIQUE KEY uq_bookings_slot (resource_id, time_slot)
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id            CHAR(36)     NOT NULL PRIMARY KEY,
		title         VARCHAR(200) NOT NULL,
		content       TEXT         NOT NULL,
		channel       VARCHAR(64)  NOT NULL,
		author_id     VARCHAR(128) NOT NULL,
		author_name   VARCHAR(256) NOT NULL DEFAULT '',
		upvotes       INT          NOT NULL DEFAULT 0,
		comment_count INT          NOT NULL DEFAULT 0,
		version       BIGINT       NOT NULL DEFAULT 1,
		created_at    DATETIME(6)  NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id          CHAR(36)     NOT NULL PRIMARY KEY,
		post_id     CHAR(36)     NOT NULL,
		author_id   VARCHAR(128) NOT NULL,
		author_name VARCHAR(256) NOT NULL DEFAULT '',
		content     TEXT         NOT NULL,
		created_at  DATETIME(6)  NOT NULL,
		INDEX idx_comments_post (post_id, created_at)
	)`,
}

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// EnsureSchema creates the tables if they do not exist.
func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	for _, stmt := range mysqlSchema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) RunInTx(ctx context.Context, fn func(tx port.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	mtx := &mysqlTx{
		tx:           tx,
		itemVersions: make(map[string]int64),
		postVersions: make(map[string]int64),
	}
	defer func() { mtx.closed = true }()

	if err := fn(mtx); err != nil {
		return translateMySQLError(err)
	}

	if err := tx.Commit(); err != nil {
		return translateMySQLError(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// translateMySQLError maps lost races reported by the server to port.ErrConflict.
func translateMySQLError(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlErrDeadlock, mysqlErrLockWaitTimeout, mysqlErrDuplicateEntry:
			return fmt.Errorf("%w: %v", port.ErrConflict, err)
		}
	}
	return err
}

func (m *MySQLAdapter) PutItem(ctx context.Context, item domain.Item) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO items (item_id, name, category, price, stock, items_sold, total_revenue, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, NOW(6))
		ON DUPLICATE KEY UPDATE
			name = VALUES(name), category = VALUES(category), price = VALUES(price),
			stock = VALUES(stock), items_sold = VALUES(items_sold),
			total_revenue = VALUES(total_revenue), version = version + 1, updated_at = NOW(6)`,
		item.ID, item.Name, item.Category, item.Price, item.StockLevel, item.ItemsSold, item.TotalRevenue,
	)
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

const itemColumns = `item_id, name, category, price, stock, items_sold, total_revenue, version, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.Item, error) {
	var item domain.Item
	err := row.Scan(&item.ID, &item.Name, &item.Category, &item.Price, &item.StockLevel,
		&item.ItemsSold, &item.TotalRevenue, &item.Version, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (m *MySQLAdapter) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	item, err := scanItem(m.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE item_id = ?`, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}
	return item, nil
}

func (m *MySQLAdapter) ItemsByStock(ctx context.Context, limit int) ([]domain.Item, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items ORDER BY stock ASC, item_id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (m *MySQLAdapter) RecentSales(ctx context.Context, limit int) ([]domain.SaleEvent, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, order_id, amount, item_count, created_at
		FROM sales ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}
	defer rows.Close()

	var sales []domain.SaleEvent
	for rows.Next() {
		var s domain.SaleEvent
		if err := rows.Scan(&s.ID, &s.OrderID, &s.Amount, &s.ItemCount, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

func (m *MySQLAdapter) OrdersByPurchaser(ctx context.Context, purchaserID string, limit int) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, purchaser_id, line_items, total_price, created_at
		FROM orders WHERE purchaser_id = ? ORDER BY created_at DESC LIMIT ?`, purchaserID, limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var (
			o     domain.Order
			lines []byte
		)
		if err := rows.Scan(&o.ID, &o.PurchaserID, &lines, &o.TotalPrice, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if err := json.Unmarshal(lines, &o.Lines); err != nil {
			return nil, fmt.Errorf("decode order %s lines: %w", o.ID, err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (m *MySQLAdapter) CommentsForPost(ctx context.Context, postID string) ([]domain.Comment, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, post_id, author_id, author_name, content, created_at
		FROM comments WHERE post_id = ? ORDER BY created_at ASC`, postID)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.AuthorName, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// mysqlTx issues statements immediately inside the SQL transaction. Conditional
// updates keyed on the version observed at read time detect lost races.
type mysqlTx struct {
	tx     *sql.Tx
	closed bool

	itemVersions map[string]int64
	postVersions map[string]int64
}

func (t *mysqlTx) Inventory() port.InventoryAccessor { return (*mysqlInventory)(t) }
func (t *mysqlTx) Orders() port.OrderLedger          { return (*mysqlOrders)(t) }
func (t *mysqlTx) Sales() port.SalesLedger           { return (*mysqlSales)(t) }
func (t *mysqlTx) Bookings() port.BookingLedger      { return (*mysqlBookings)(t) }
func (t *mysqlTx) Forum() port.ForumAccessor         { return (*mysqlForum)(t) }

type (
	mysqlInventory mysqlTx
	mysqlOrders    mysqlTx
	mysqlSales     mysqlTx
	mysqlBookings  mysqlTx
	mysqlForum     mysqlTx
)

func (a *mysqlInventory) Get(ctx context.Context, itemID string) (*domain.Item, error) {
	t := (*mysqlTx)(a)
	if t.closed {
		return nil, port.ErrTxClosed
	}

	item, err := scanItem(t.tx.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE item_id = ?`, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}

	if _, seen := t.itemVersions[itemID]; !seen {
		t.itemVersions[itemID] = item.Version
	}
	return item, nil
}

func (a *mysqlInventory) ApplyDelta(ctx context.Context, itemID string, delta domain.ItemDelta) error {
	t := (*mysqlTx)(a)
	if t.closed {
		return port.ErrTxClosed
	}
	version, ok := t.itemVersions[itemID]
	if !ok {
		return fmt.Errorf("apply delta to %s: %w", itemID, port.ErrUnread)
	}

	result, err := t.tx.ExecContext(ctx, `
		UPDATE items
		SET stock = stock + ?, items_sold = items_sold + ?, total_revenue = total_revenue + ?,
			version = version + 1, updated_at = NOW(6)
		WHERE item_id = ? AND version = ?`,
		delta.Stock, delta.Sold, delta.Revenue, itemID, version,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if rows == 0 {
		return port.ErrConflict
	}

	t.itemVersions[itemID] = version + 1
	return nil
}

func (a *mysqlOrders) Append(ctx context.Context, order domain.Order) error {
	t := (*mysqlTx)(a)
	if t.closed {
		return port.ErrTxClosed
	}

	lines, err := json.Marshal(order.Lines)
	if err != nil {
		return fmt.Errorf("encode order lines: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO orders (id, purchaser_id, line_items, total_price, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		order.ID, order.PurchaserID, lines, order.TotalPrice, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (a *mysqlSales) Append(ctx context.Context, sale domain.SaleEvent) error {
	t := (*mysqlTx)(a)
	if t.closed {
		return port.ErrTxClosed
	}

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO sales (id, order_id, amount, item_count, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		sale.ID, sale.OrderID, sale.Amount, sale.ItemCount, sale.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

func (a *mysqlBookings) FindBySlot(ctx context.Context, resourceID, timeSlot string) (*domain.Booking, error) {
	t := (*mysqlTx)(a)
	if t.closed {
		return nil, port.ErrTxClosed
	}

	var b domain.Booking
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, resource_id, resource_name, time_slot, user_id, user_name, status, booked_at
		FROM bookings WHERE resource_id = ? AND time_slot = ?`, resourceID, timeSlot,
	).Scan(&b.ID, &b.ResourceID, &b.ResourceName, &b.TimeSlot, &b.UserID, &b.UserName, &b.Status, &b.BookedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query booking: %w", err)
	}
	return &b, nil
}

// Create relies on the unique (resource_id, time_slot) key: a concurrent
// winner surfaces as a duplicate-entry error, translated to port.ErrConflict.
func (a *mysqlBookings) Create(ctx context.Context, b domain.Booking) error {
	t := (*mysqlTx)(a)
	if t.closed {
		return port.ErrTxClosed
	}

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO bookings (id, resource_id, resource_name, time_slot, user_id, user_name, status, booked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.ResourceID, b.ResourceName, b.TimeSlot, b.UserID, b.UserName, b.Status, b.BookedAt,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (a *mysqlForum) GetPost(ctx context.Context, postID string) (*domain.Post, error) {
	t := (*mysqlTx)(a)
	if t.closed {
		return nil, port.ErrTxClosed
	}

	var p domain.Post
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, title, content, channel, author_id, author_name, upvotes, comment_count, version, created_at
		FROM posts WHERE id = ?`, postID,
	).Scan(&p.ID, &p.Title, &p.Content, &p.Channel, &p.AuthorID, &p.AuthorName,
		&p.Upvotes, &p.CommentCount, &p.Version, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query post: %w", err)
	}

	if _, seen := t.postVersions[postID]; !seen {
		t.postVersions[postID] = p.Version
	}
	return &p, nil
}

func (a *mysqlForum) CreatePost(ctx context.Context, p domain.Post) error {
	t := (*mysqlTx)(a)
	if t.closed {
		return port.ErrTxClosed
	}

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO posts (id, title, content, channel, author_id, author_name, upvotes, comment_count, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, 1, ?)`,
		p.ID, p.Title, p.Content, p.Channel, p.AuthorID, p.AuthorName, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (a *mysqlForum) ApplyPostDelta(ctx context.Context, postID string, delta domain.PostDelta) error {
	t := (*mysqlTx)(a)
	if t.closed {
		return port.ErrTxClosed
	}
	version, ok := t.postVersions[postID]
	if !ok {
		return fmt.Errorf("apply delta to post %s: %w", postID, port.ErrUnread)
	}

	result, err := t.tx.ExecContext(ctx, `
		UPDATE posts
		SET upvotes = upvotes + ?, comment_count = comment_count + ?, version = version + 1
		WHERE id = ? AND version = ?`,
		delta.Upvotes, delta.Comments, postID, version,
	)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if rows == 0 {
		return port.ErrConflict
	}

	t.postVersions[postID] = version + 1
	return nil
}

func (a *mysqlForum) AppendComment(ctx context.Context, c domain.Comment) error {
	t := (*mysqlTx)(a)
	if t.closed {
		return port.ErrTxClosed
	}

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO comments (id, post_id, author_id, author_name, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.PostID, c.AuthorID, c.AuthorName, c.Content, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

var (
	_ port.Store = (*MySQLAdapter)(nil)
	_ port.Tx    = (*mysqlTx)(nil)
)
