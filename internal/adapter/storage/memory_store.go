package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rl1809/canteen-engine/internal/core/domain"
	"github.com/rl1809/canteen-engine/internal/port"
)

type slotKey struct {
	resourceID string
	timeSlot   string
}

// MemoryStore keeps every collection in process memory. Records carry a
// version and transactions validate their read set at commit, so concurrent
// callers observe the same optimistic-concurrency behaviour as the SQL and
// Redis stores.
type MemoryStore struct {
	mu       sync.RWMutex
	items    map[string]domain.Item
	orders   []domain.Order
	sales    []domain.SaleEvent
	bookings map[slotKey]domain.Booking
	posts    map[string]domain.Post
	comments map[string][]domain.Comment

	conflicts    atomic.Int32
	beforeCommit atomic.Pointer[func()]
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:    make(map[string]domain.Item),
		bookings: make(map[slotKey]domain.Booking),
		posts:    make(map[string]domain.Post),
		comments: make(map[string][]domain.Comment),
		now:      time.Now,
	}
}

// InjectConflicts makes the next n commits fail with port.ErrConflict.
func (m *MemoryStore) InjectConflicts(n int) {
	m.conflicts.Store(int32(n))
}

// SetBeforeCommit installs a hook that runs before every commit, outside the
// store lock. Tests use it to interleave a competing writer.
func (m *MemoryStore) SetBeforeCommit(fn func()) {
	if fn == nil {
		m.beforeCommit.Store(nil)
		return
	}
	m.beforeCommit.Store(&fn)
}

func (m *MemoryStore) PutItem(ctx context.Context, item domain.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.items[item.ID]; ok {
		item.Version = cur.Version + 1
	} else if item.Version == 0 {
		item.Version = 1
	}
	item.UpdatedAt = m.now()
	m.items[item.ID] = item
	return nil
}

func (m *MemoryStore) RunInTx(ctx context.Context, fn func(tx port.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := newMemoryTx(m)
	defer tx.close()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if hook := m.beforeCommit.Load(); hook != nil {
		(*hook)()
	}
	return m.commit(tx)
}

func (m *MemoryStore) commit(tx *memoryTx) error {
	for {
		n := m.conflicts.Load()
		if n <= 0 {
			break
		}
		if m.conflicts.CompareAndSwap(n, n-1) {
			return port.ErrConflict
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, version := range tx.itemReads {
		if cur, ok := m.items[id]; !ok || cur.Version != version {
			return port.ErrConflict
		}
	}
	for id, version := range tx.postReads {
		if cur, ok := m.posts[id]; !ok || cur.Version != version {
			return port.ErrConflict
		}
	}
	for key, existed := range tx.slotReads {
		if _, ok := m.bookings[key]; ok != existed {
			return port.ErrConflict
		}
	}
	for _, b := range tx.bookings {
		if _, ok := m.bookings[slotKey{b.ResourceID, b.TimeSlot}]; ok {
			return port.ErrConflict
		}
	}
	for _, p := range tx.newPosts {
		if _, ok := m.posts[p.ID]; ok {
			return fmt.Errorf("create post %s: already exists", p.ID)
		}
	}

	now := m.now()
	for _, id := range tx.itemOrder {
		m.items[id] = m.items[id].Apply(tx.itemDeltas[id], now)
	}
	for _, id := range tx.postOrder {
		p := m.posts[id]
		d := tx.postDeltas[id]
		p.Upvotes += d.Upvotes
		p.CommentCount += d.Comments
		p.Version++
		m.posts[id] = p
	}
	for _, p := range tx.newPosts {
		p.Version = 1
		m.posts[p.ID] = p
	}
	m.orders = append(m.orders, tx.orders...)
	m.sales = append(m.sales, tx.sales...)
	for _, b := range tx.bookings {
		m.bookings[slotKey{b.ResourceID, b.TimeSlot}] = b
	}
	for _, c := range tx.comments {
		m.comments[c.PostID] = append(m.comments[c.PostID], c)
	}
	return nil
}

func (m *MemoryStore) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[itemID]
	if !ok {
		return nil, port.ErrNotFound
	}
	return &item, nil
}

func (m *MemoryStore) ItemsByStock(ctx context.Context, limit int) ([]domain.Item, error) {
	m.mu.RLock()
	items := make([]domain.Item, 0, len(m.items))
	for _, item := range m.items {
		items = append(items, item)
	}
	m.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].StockLevel != items[j].StockLevel {
			return items[i].StockLevel < items[j].StockLevel
		}
		return items[i].ID < items[j].ID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *MemoryStore) RecentSales(ctx context.Context, limit int) ([]domain.SaleEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.SaleEvent, 0, limit)
	for i := len(m.sales) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.sales[i])
	}
	return out, nil
}

func (m *MemoryStore) OrdersByPurchaser(ctx context.Context, purchaserID string, limit int) ([]domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Order, 0, limit)
	for i := len(m.orders) - 1; i >= 0 && len(out) < limit; i-- {
		if m.orders[i].PurchaserID == purchaserID {
			out = append(out, m.orders[i])
		}
	}
	return out, nil
}

func (m *MemoryStore) CommentsForPost(ctx context.Context, postID string) ([]domain.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]domain.Comment(nil), m.comments[postID]...), nil
}

// OrderCount and SaleCount expose ledger sizes for assertions.
func (m *MemoryStore) OrderCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.orders)
}

func (m *MemoryStore) SaleCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sales)
}

// memoryTx buffers writes until commit. It implements port.Tx and every accessor.
type memoryTx struct {
	store  *MemoryStore
	closed bool

	itemCache  map[string]domain.Item
	itemReads  map[string]int64
	itemDeltas map[string]domain.ItemDelta
	itemOrder  []string

	postCache  map[string]domain.Post
	postReads  map[string]int64
	postDeltas map[string]domain.PostDelta
	postOrder  []string
	newPosts   []domain.Post

	slotReads map[slotKey]bool

	orders   []domain.Order
	sales    []domain.SaleEvent
	bookings []domain.Booking
	comments []domain.Comment
}

func newMemoryTx(store *MemoryStore) *memoryTx {
	return &memoryTx{
		store:      store,
		itemCache:  make(map[string]domain.Item),
		itemReads:  make(map[string]int64),
		itemDeltas: make(map[string]domain.ItemDelta),
		postCache:  make(map[string]domain.Post),
		postReads:  make(map[string]int64),
		postDeltas: make(map[string]domain.PostDelta),
		slotReads:  make(map[slotKey]bool),
	}
}

func (t *memoryTx) close() { t.closed = true }

func (t *memoryTx) Inventory() port.InventoryAccessor { return (*memoryInventory)(t) }
func (t *memoryTx) Orders() port.OrderLedger          { return (*memoryOrders)(t) }
func (t *memoryTx) Sales() port.SalesLedger           { return (*memorySales)(t) }
func (t *memoryTx) Bookings() port.BookingLedger      { return (*memoryBookings)(t) }
func (t *memoryTx) Forum() port.ForumAccessor         { return (*memoryForum)(t) }

type (
	memoryInventory memoryTx
	memoryOrders    memoryTx
	memorySales     memoryTx
	memoryBookings  memoryTx
	memoryForum     memoryTx
)

func (a *memoryInventory) Get(ctx context.Context, itemID string) (*domain.Item, error) {
	t := (*memoryTx)(a)
	if t.closed {
		return nil, port.ErrTxClosed
	}
	if item, ok := t.itemCache[itemID]; ok {
		return &item, nil
	}

	t.store.mu.RLock()
	item, ok := t.store.items[itemID]
	t.store.mu.RUnlock()
	if !ok {
		return nil, port.ErrNotFound
	}

	t.itemCache[itemID] = item
	t.itemReads[itemID] = item.Version
	return &item, nil
}

func (a *memoryInventory) ApplyDelta(ctx context.Context, itemID string, delta domain.ItemDelta) error {
	t := (*memoryTx)(a)
	if t.closed {
		return port.ErrTxClosed
	}
	if _, ok := t.itemReads[itemID]; !ok {
		return fmt.Errorf("apply delta to %s: %w", itemID, port.ErrUnread)
	}

	cur, ok := t.itemDeltas[itemID]
	if !ok {
		t.itemOrder = append(t.itemOrder, itemID)
	}
	t.itemDeltas[itemID] = domain.ItemDelta{
		Stock:   cur.Stock + delta.Stock,
		Sold:    cur.Sold + delta.Sold,
		Revenue: cur.Revenue.Add(delta.Revenue),
	}
	return nil
}

func (a *memoryOrders) Append(ctx context.Context, order domain.Order) error {
	t := (*memoryTx)(a)
	if t.closed {
		return port.ErrTxClosed
	}
	t.orders = append(t.orders, order)
	return nil
}

func (a *memorySales) Append(ctx context.Context, sale domain.SaleEvent) error {
	t := (*memoryTx)(a)
	if t.closed {
		return port.ErrTxClosed
	}
	t.sales = append(t.sales, sale)
	return nil
}

func (a *memoryBookings) FindBySlot(ctx context.Context, resourceID, timeSlot string) (*domain.Booking, error) {
	t := (*memoryTx)(a)
	if t.closed {
		return nil, port.ErrTxClosed
	}
	key := slotKey{resourceID, timeSlot}

	t.store.mu.RLock()
	b, ok := t.store.bookings[key]
	t.store.mu.RUnlock()

	if _, seen := t.slotReads[key]; !seen {
		t.slotReads[key] = ok
	}
	if !ok {
		return nil, port.ErrNotFound
	}
	return &b, nil
}

func (a *memoryBookings) Create(ctx context.Context, booking domain.Booking) error {
	t := (*memoryTx)(a)
	if t.closed {
		return port.ErrTxClosed
	}
	t.bookings = append(t.bookings, booking)
	return nil
}

func (a *memoryForum) GetPost(ctx context.Context, postID string) (*domain.Post, error) {
	t := (*memoryTx)(a)
	if t.closed {
		return nil, port.ErrTxClosed
	}
	if p, ok := t.postCache[postID]; ok {
		return &p, nil
	}

	t.store.mu.RLock()
	p, ok := t.store.posts[postID]
	t.store.mu.RUnlock()
	if !ok {
		return nil, port.ErrNotFound
	}

	t.postCache[postID] = p
	t.postReads[postID] = p.Version
	return &p, nil
}

func (a *memoryForum) CreatePost(ctx context.Context, post domain.Post) error {
	t := (*memoryTx)(a)
	if t.closed {
		return port.ErrTxClosed
	}
	t.newPosts = append(t.newPosts, post)
	return nil
}

func (a *memoryForum) ApplyPostDelta(ctx context.Context, postID string, delta domain.PostDelta) error {
	t := (*memoryTx)(a)
	if t.closed {
		return port.ErrTxClosed
	}
	if _, ok := t.postReads[postID]; !ok {
		return fmt.Errorf("apply delta to post %s: %w", postID, port.ErrUnread)
	}

	cur, ok := t.postDeltas[postID]
	if !ok {
		t.postOrder = append(t.postOrder, postID)
	}
	t.postDeltas[postID] = domain.PostDelta{
		Upvotes:  cur.Upvotes + delta.Upvotes,
		Comments: cur.Comments + delta.Comments,
	}
	return nil
}

func (a *memoryForum) AppendComment(ctx context.Context, comment domain.Comment) error {
	t := (*memoryTx)(a)
	if t.closed {
		return port.ErrTxClosed
	}
	t.comments = append(t.comments, comment)
	return nil
}

var (
	_ port.Store = (*MemoryStore)(nil)
	_ port.Tx    = (*memoryTx)(nil)
)
