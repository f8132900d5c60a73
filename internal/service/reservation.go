package service

import (
	"sync"

	"github.com/migratehq/flowgate/internal/errors"
	"github.com/migratehq/flowgate/internal/metrics"
)

// ReservationTable makes flow-creation admission atomic. A create
// operation acquires a ticket before delegating; the ticket is released
// on any failure path and confirmed once the flow's creation has been
// tracked in the tenant's counters. In-flight tickets count against both
// the concurrent and the daily ceiling, so two simultaneous creates can
// never both slip under either one.
//
// A weighted semaphore does not fit here: the ceilings are re-read from
// the quota store on every admission and may be changed at runtime
// through the admin gate, so admission compares reserved-plus-current
// against them instead of sizing a fixed-capacity semaphore. The
// critical section is a few integer comparisons, so one table lock
// serves all tenants, and entries are dropped at zero to keep the table
// sized by in-flight creates rather than tenant cardinality.
type ReservationTable struct {
	mu       sync.Mutex
	reserved map[string]int
	prom     *metrics.Metrics
}

// Ticket is a held admission reservation. Exactly one of Confirm or
// Release must be called; both are idempotent.
type Ticket struct {
	once     sync.Once
	tenantID string
	table    *ReservationTable
}

// NewReservationTable creates a new reservation table
func NewReservationTable(prom *metrics.Metrics) *ReservationTable {
	return &ReservationTable{
		reserved: make(map[string]int),
		prom:     prom,
	}
}

// Reserve acquires an admission slot for the tenant. current and today
// are the store-reconciled active and daily flow counts; the limits are
// the tenant's concurrent and daily ceilings. Fails with a
// quota-exceeded error when either ceiling would be breached by the
// counts plus in-flight reservations.
func (r *ReservationTable) Reserve(tenantID string, current, concurrentLimit, today, dailyLimit int) (*Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reserved := r.reserved[tenantID]
	if current+reserved >= concurrentLimit {
		return nil, errors.QuotaExceeded(tenantID, "concurrent_flows",
			float64(current+reserved), float64(concurrentLimit))
	}
	if today+reserved >= dailyLimit {
		return nil, errors.QuotaExceeded(tenantID, "daily_flows",
			float64(today+reserved), float64(dailyLimit))
	}

	r.reserved[tenantID] = reserved + 1
	if r.prom != nil {
		r.prom.ActiveReservations.WithLabelValues(tenantID).Set(float64(reserved + 1))
	}

	return &Ticket{tenantID: tenantID, table: r}, nil
}

// Reserved returns the number of slots currently held for a tenant
func (r *ReservationTable) Reserved(tenantID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reserved[tenantID]
}

func (r *ReservationTable) free(tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.reserved[tenantID]
	if n > 0 {
		n--
	}
	if n == 0 {
		delete(r.reserved, tenantID)
	} else {
		r.reserved[tenantID] = n
	}
	if r.prom != nil {
		r.prom.ActiveReservations.WithLabelValues(tenantID).Set(float64(n))
	}
}

// Confirm releases the slot after the created flow has been tracked in
// the tenant's counters; from that point the store-reconciled counts
// cover the flow.
func (tk *Ticket) Confirm() {
	tk.once.Do(func() {
		tk.table.free(tk.tenantID)
	})
}

// Release returns the slot without consuming quota, for failure paths
func (tk *Ticket) Release() {
	tk.once.Do(func() {
		tk.table.free(tk.tenantID)
	})
}
