package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/canteen-engine/internal/core/domain"
	"github.com/rl1809/canteen-engine/internal/port"
)

const (
	itemKeyPrefix      = "item:"
	itemsByStockKey    = "items:by_stock"
	orderKeyPrefix     = "order:"
	purchaserOrdersKey = "orders:by_purchaser:"
	saleKeyPrefix      = "sale:"
	recentSalesKey     = "sales:recent"
	bookingKeyPrefix   = "booking:"
	postKeyPrefix      = "post:"
	commentsKeySuffix  = ":comments"
	redisTimeLayout    = time.RFC3339Nano
)

func itemKey(id string) string { return itemKeyPrefix + id }

func bookingKey(resourceID, timeSlot string) string {
	return bookingKeyPrefix + resourceID + ":" + timeSlot
}

func postKey(id string) string     { return postKeyPrefix + id }
func commentsKey(id string) string { return postKeyPrefix + id + commentsKeySuffix }

// RedisAdapter stores every collection in Redis. Transactions WATCH each key
// they read and queue their writes into a single MULTI/EXEC; a concurrent
// change to a watched key aborts EXEC and surfaces as port.ErrConflict.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) RunInTx(ctx context.Context, fn func(tx port.Tx) error) error {
	err := r.client.Watch(ctx, func(rtx *redis.Tx) error {
		t := &redisTx{
			rtx:   rtx,
			items: make(map[string]domain.Item),
			posts: make(map[string]domain.Post),
		}
		defer func() { t.closed = true }()

		if err := fn(t); err != nil {
			return err
		}
		if len(t.ops) == 0 {
			return nil
		}

		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, op := range t.ops {
				op(ctx, pipe)
			}
			return nil
		})
		return err
	})
	if errors.Is(err, redis.TxFailedErr) {
		return port.ErrConflict
	}
	return err
}

func (r *RedisAdapter) PutItem(ctx context.Context, item domain.Item) error {
	key := itemKey(item.ID)
	item.UpdatedAt = time.Now().UTC()
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, itemFields(item))
		pipe.HIncrBy(ctx, key, "version", 1)
		pipe.ZAdd(ctx, itemsByStockKey, redis.Z{Score: float64(item.StockLevel), Member: item.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

func itemFields(item domain.Item) map[string]any {
	return map[string]any{
		"name":       item.Name,
		"category":   item.Category,
		"price":      item.Price.String(),
		"stock":      item.StockLevel,
		"sold":       item.ItemsSold,
		"revenue":    item.TotalRevenue.String(),
		"updated_at": item.UpdatedAt.Format(redisTimeLayout),
	}
}

func parseItem(id string, h map[string]string) (*domain.Item, error) {
	if len(h) == 0 {
		return nil, port.ErrNotFound
	}

	item := domain.Item{ID: id, Name: h["name"], Category: h["category"]}
	var err error
	if item.Price, err = decimal.NewFromString(h["price"]); err != nil {
		return nil, fmt.Errorf("parse item %s price: %w", id, err)
	}
	if item.TotalRevenue, err = decimal.NewFromString(h["revenue"]); err != nil {
		return nil, fmt.Errorf("parse item %s revenue: %w", id, err)
	}
	if item.StockLevel, err = strconv.Atoi(h["stock"]); err != nil {
		return nil, fmt.Errorf("parse item %s stock: %w", id, err)
	}
	if item.ItemsSold, err = strconv.Atoi(h["sold"]); err != nil {
		return nil, fmt.Errorf("parse item %s sold: %w", id, err)
	}
	if item.Version, err = strconv.ParseInt(h["version"], 10, 64); err != nil {
		return nil, fmt.Errorf("parse item %s version: %w", id, err)
	}
	if ts := h["updated_at"]; ts != "" {
		if item.UpdatedAt, err = time.Parse(redisTimeLayout, ts); err != nil {
			return nil, fmt.Errorf("parse item %s updated_at: %w", id, err)
		}
	}
	return &item, nil
}

func (r *RedisAdapter) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	h, err := r.client.HGetAll(ctx, itemKey(itemID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return parseItem(itemID, h)
}

func (r *RedisAdapter) ItemsByStock(ctx context.Context, limit int) ([]domain.Item, error) {
	ids, err := r.client.ZRange(ctx, itemsByStockKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("range items: %w", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, itemKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}

	items := make([]domain.Item, 0, len(ids))
	for i, id := range ids {
		item, err := parseItem(id, cmds[i].Val())
		if errors.Is(err, port.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, nil
}

func (r *RedisAdapter) RecentSales(ctx context.Context, limit int) ([]domain.SaleEvent, error) {
	var sales []domain.SaleEvent
	err := r.loadJSONList(ctx, recentSalesKey, saleKeyPrefix, limit, func(raw []byte) error {
		var s domain.SaleEvent
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		sales = append(sales, s)
		return nil
	})
	return sales, err
}

func (r *RedisAdapter) OrdersByPurchaser(ctx context.Context, purchaserID string, limit int) ([]domain.Order, error) {
	var orders []domain.Order
	err := r.loadJSONList(ctx, purchaserOrdersKey+purchaserID, orderKeyPrefix, limit, func(raw []byte) error {
		var o domain.Order
		if err := json.Unmarshal(raw, &o); err != nil {
			return err
		}
		orders = append(orders, o)
		return nil
	})
	return orders, err
}

// loadJSONList resolves the ids stored in listKey to JSON documents under prefix.
func (r *RedisAdapter) loadJSONList(ctx context.Context, listKey, prefix string, limit int, decode func([]byte) error) error {
	ids, err := r.client.LRange(ctx, listKey, 0, int64(limit-1)).Result()
	if err != nil {
		return fmt.Errorf("range %s: %w", listKey, err)
	}
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = prefix + id
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("load %s: %w", listKey, err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if err := decode([]byte(s)); err != nil {
			return fmt.Errorf("decode %s: %w", keys[i], err)
		}
	}
	return nil
}

func (r *RedisAdapter) CommentsForPost(ctx context.Context, postID string) ([]domain.Comment, error) {
	raw, err := r.client.LRange(ctx, commentsKey(postID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("range comments: %w", err)
	}

	comments := make([]domain.Comment, 0, len(raw))
	for _, s := range raw {
		var c domain.Comment
		if err := json.Unmarshal([]byte(s), &c); err != nil {
			return nil, fmt.Errorf("decode comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, nil
}

type redisOp func(ctx context.Context, pipe redis.Pipeliner)

type redisTx struct {
	rtx    *redis.Tx
	closed bool
	ops    []redisOp

	items map[string]domain.Item
	posts map[string]domain.Post
}

func (t *redisTx) queue(op redisOp) { t.ops = append(t.ops, op) }

func (t *redisTx) Inventory() port.InventoryAccessor { return (*redisInventory)(t) }
func (t *redisTx) Orders() port.OrderLedger          { return (*redisOrders)(t) }
func (t *redisTx) Sales() port.SalesLedger           { return (*redisSales)(t) }
func (t *redisTx) Bookings() port.BookingLedger      { return (*redisBookings)(t) }
func (t *redisTx) Forum() port.ForumAccessor         { return (*redisForum)(t) }

type (
	redisInventory redisTx
	redisOrders    redisTx
	redisSales     redisTx
	redisBookings  redisTx
	redisForum     redisTx
)

func (a *redisInventory) Get(ctx context.Context, itemID string) (*domain.Item, error) {
	t := (*redisTx)(a)
	if t.closed {
		return nil, port.ErrTxClosed
	}
	if item, ok := t.items[itemID]; ok {
		return &item, nil
	}

	key := itemKey(itemID)
	if err := t.rtx.Watch(ctx, key).Err(); err != nil {
		return nil, fmt.Errorf("watch item: %w", err)
	}
	h, err := t.rtx.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	item, err := parseItem(itemID, h)
	if err != nil {
		return nil, err
	}

	t.items[itemID] = *item
	return item, nil
}

func (a *redisInventory) ApplyDelta(ctx context.Context, itemID string, delta domain.ItemDelta) error {
	t := (*redisTx)(a)
	if t.closed {
		return port.ErrTxClosed
	}
	cur, ok := t.items[itemID]
	if !ok {
		return fmt.Errorf("apply delta to %s: %w", itemID, port.ErrUnread)
	}

	next := cur.Apply(delta, time.Now().UTC())
	t.items[itemID] = next

	key := itemKey(itemID)
	fields := itemFields(next)
	fields["version"] = next.Version
	t.queue(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.HSet(ctx, key, fields)
		pipe.ZAdd(ctx, itemsByStockKey, redis.Z{Score: float64(next.StockLevel), Member: itemID})
	})
	return nil
}

func (a *redisOrders) Append(ctx context.Context, order domain.Order) error {
	t := (*redisTx)(a)
	if t.closed {
		return port.ErrTxClosed
	}

	raw, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}
	t.queue(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.Set(ctx, orderKeyPrefix+order.ID, raw, 0)
		pipe.LPush(ctx, purchaserOrdersKey+order.PurchaserID, order.ID)
	})
	return nil
}

func (a *redisSales) Append(ctx context.Context, sale domain.SaleEvent) error {
	t := (*redisTx)(a)
	if t.closed {
		return port.ErrTxClosed
	}

	raw, err := json.Marshal(sale)
	if err != nil {
		return fmt.Errorf("encode sale: %w", err)
	}
	t.queue(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.Set(ctx, saleKeyPrefix+sale.ID, raw, 0)
		pipe.LPush(ctx, recentSalesKey, sale.ID)
	})
	return nil
}

func (a *redisBookings) FindBySlot(ctx context.Context, resourceID, timeSlot string) (*domain.Booking, error) {
	t := (*redisTx)(a)
	if t.closed {
		return nil, port.ErrTxClosed
	}

	key := bookingKey(resourceID, timeSlot)
	if err := t.rtx.Watch(ctx, key).Err(); err != nil {
		return nil, fmt.Errorf("watch booking: %w", err)
	}
	raw, err := t.rtx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}

	var b domain.Booking
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode booking: %w", err)
	}
	return &b, nil
}

func (a *redisBookings) Create(ctx context.Context, b domain.Booking) error {
	t := (*redisTx)(a)
	if t.closed {
		return port.ErrTxClosed
	}

	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode booking: %w", err)
	}
	key := bookingKey(b.ResourceID, b.TimeSlot)
	t.queue(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.SetNX(ctx, key, raw, 0)
	})
	return nil
}

// redisPost is the stored form of a post; Version is hidden from the JSON API.
type redisPost struct {
	domain.Post
	StoredVersion int64 `json:"version"`
}

func (a *redisForum) GetPost(ctx context.Context, postID string) (*domain.Post, error) {
	t := (*redisTx)(a)
	if t.closed {
		return nil, port.ErrTxClosed
	}
	if p, ok := t.posts[postID]; ok {
		return &p, nil
	}

	key := postKey(postID)
	if err := t.rtx.Watch(ctx, key).Err(); err != nil {
		return nil, fmt.Errorf("watch post: %w", err)
	}
	raw, err := t.rtx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}

	var stored redisPost
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode post: %w", err)
	}
	p := stored.Post
	p.Version = stored.StoredVersion

	t.posts[postID] = p
	return &p, nil
}

func (a *redisForum) CreatePost(ctx context.Context, p domain.Post) error {
	t := (*redisTx)(a)
	if t.closed {
		return port.ErrTxClosed
	}
	return t.putPost(p, 1)
}

func (a *redisForum) ApplyPostDelta(ctx context.Context, postID string, delta domain.PostDelta) error {
	t := (*redisTx)(a)
	if t.closed {
		return port.ErrTxClosed
	}
	cur, ok := t.posts[postID]
	if !ok {
		return fmt.Errorf("apply delta to post %s: %w", postID, port.ErrUnread)
	}

	cur.Upvotes += delta.Upvotes
	cur.CommentCount += delta.Comments
	cur.Version++
	t.posts[postID] = cur
	return t.putPost(cur, cur.Version)
}

func (t *redisTx) putPost(p domain.Post, version int64) error {
	raw, err := json.Marshal(redisPost{Post: p, StoredVersion: version})
	if err != nil {
		return fmt.Errorf("encode post: %w", err)
	}
	key := postKey(p.ID)
	t.queue(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.Set(ctx, key, raw, 0)
	})
	return nil
}

func (a *redisForum) AppendComment(ctx context.Context, c domain.Comment) error {
	t := (*redisTx)(a)
	if t.closed {
		return port.ErrTxClosed
	}

	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode comment: %w", err)
	}
	key := commentsKey(c.PostID)
	t.queue(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.RPush(ctx, key, raw)
	})
	return nil
}

var (
	_ port.Store = (*RedisAdapter)(nil)
	_ port.Tx    = (*redisTx)(nil)
)
