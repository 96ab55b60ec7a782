package dashboard

import (
	"errors"
	"sync"
	"time"
)

// ErrStaleChart is returned when a segment load finished after a newer one
// was already applied.
var ErrStaleChart = errors.New("dashboard: stale chart discarded")

// Ticket orders segment loads on a board.
type Ticket uint64

// Board owns the single chart slot of one dashboard view.
type Board struct {
	mu      sync.Mutex
	issued  Ticket
	applied Ticket
	chart   *Chart
	touched time.Time
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{touched: time.Now()}
}

// Begin issues the ticket for a new segment load.
func (b *Board) Begin() Ticket {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.issued++
	b.touched = time.Now()
	return b.issued
}

// Commit attaches chart if ticket is not older than the applied one. The
// previous chart is released before the new one is attached. A stale chart
// is released and ErrStaleChart returned.
func (b *Board) Commit(ticket Ticket, chart *Chart) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ticket < b.applied {
		chart.Release()
		return ErrStaleChart
	}
	if b.chart != nil && b.chart != chart {
		b.chart.Release()
	}
	b.chart = chart
	b.applied = ticket
	b.touched = time.Now()
	return nil
}

// Replace attaches chart unconditionally under a fresh ticket.
func (b *Board) Replace(chart *Chart) {
	_ = b.Commit(b.Begin(), chart)
}

// Current returns the attached chart, or nil.
func (b *Board) Current() *Chart {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chart
}

// Release destroys the attached chart and empties the slot.
func (b *Board) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.chart != nil {
		b.chart.Release()
		b.chart = nil
	}
}

func (b *Board) idleSince() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.touched
}

// Boards keeps one Board per viewer key.
type Boards struct {
	mu     sync.Mutex
	boards map[string]*Board
	ttl    time.Duration
	now    func() time.Time
}

// NewBoards returns a registry that forgets boards idle for longer than ttl.
func NewBoards(ttl time.Duration) *Boards {
	return &Boards{boards: make(map[string]*Board), ttl: ttl, now: time.Now}
}

// Get returns the board for key, creating it on first use.
func (r *Boards) Get(key string) *Board {
	if key == "" {
		key = "anonymous"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()
	board, ok := r.boards[key]
	if !ok {
		board = NewBoard()
		r.boards[key] = board
	}
	return board
}

// Len reports the number of live boards.
func (r *Boards) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.boards)
}

func (r *Boards) pruneLocked() {
	if r.ttl <= 0 {
		return
	}
	cutoff := r.now().Add(-r.ttl)
	for key, board := range r.boards {
		if board.idleSince().Before(cutoff) {
			board.Release()
			delete(r.boards, key)
		}
	}
}
