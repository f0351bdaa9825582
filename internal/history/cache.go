package history

import (
	"errors"
	"sync"

	"trade_engine/internal/models"
)

var ErrUnknownPair = errors.New("unknown pair")

// ring — кольцевой буфер снапшотов фиксированной ёмкости.
// Старейший элемент выталкивается при переполнении.
type ring struct {
	mu    sync.Mutex
	buf   []models.MarketSnapshot
	head  int // индекс следующей записи
	count int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]models.MarketSnapshot, capacity)}
}

func (r *ring) push(s models.MarketSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.head] = s
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// tail возвращает последние n элементов в хронологическом порядке.
// Всегда свежий срез — читать можно сколько угодно раз.
func (r *ring) tail(n int) []models.MarketSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > r.count {
		n = r.count
	}
	out := make([]models.MarketSnapshot, 0, n)
	start := r.head - n
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < n; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

func (r *ring) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Cache — история цен по инструментам. Буфер на пару создаётся при первом
// снапшоте и живёт, пока пара отслеживается. Синхронизация пер-парная,
// межпарных блокировок нет.
type Cache struct {
	mu       sync.RWMutex
	capacity int
	pairs    map[string]*ring
}

func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 100
	}
	return &Cache{
		capacity: capacity,
		pairs:    make(map[string]*ring),
	}
}

// Record добавляет снапшот в буфер пары. O(1).
func (c *Cache) Record(pair string, s models.MarketSnapshot) {
	c.mu.RLock()
	r, ok := c.pairs[pair]
	c.mu.RUnlock()

	if !ok {
		c.mu.Lock()
		r, ok = c.pairs[pair]
		if !ok {
			r = newRing(c.capacity)
			c.pairs[pair] = r
		}
		c.mu.Unlock()
	}
	r.push(s)
}

// History возвращает последние window снапшотов пары (может быть меньше,
// если накоплено мало). ErrUnknownPair — если пара ни разу не записывалась.
func (c *Cache) History(pair string, window int) ([]models.MarketSnapshot, error) {
	c.mu.RLock()
	r, ok := c.pairs[pair]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownPair
	}
	return r.tail(window), nil
}

// Len — сколько снапшотов накоплено по паре (0 если пара неизвестна).
func (c *Cache) Len(pair string) int {
	c.mu.RLock()
	r, ok := c.pairs[pair]
	c.mu.RUnlock()
	if !ok {
		return 0
	}
	return r.len()
}
