package engine

import (
	"log/slog"
	"time"
)

// Billing sweeps active rentals for due payments and natural expiry. Sweeps
// are bounded: one pass over the request table, no blocking work while the
// engine lock is held.
type Billing struct {
	engine    *Engine
	log       *slog.Logger
	dayLength time.Duration
}

func newBilling(e *Engine, dayLength time.Duration, logger *slog.Logger) *Billing {
	return &Billing{engine: e, log: logger, dayLength: dayLength}
}

// ProcessDueCycle credits every active request whose rental period has
// elapsed since its last payment and returns the total credited. Requests
// whose full term has elapsed expire instead of billing again. Requests in
// any other state are never touched.
func (b *Billing) ProcessDueCycle(now time.Time) int64 {
	type credit struct {
		requestID string
		cents     int64
	}
	var credits []credit
	var expired []*CustomerRequest

	e := b.engine
	e.mu.Lock()
	for _, id := range e.reqOrder {
		req := e.requests[id]
		if req.State != StateActive {
			continue
		}
		if !req.ActivatedAt.IsZero() && now.Sub(req.ActivatedAt) >= req.leaseDuration(b.dayLength) {
			req.State = StateExpired
			expired = append(expired, req)
			continue
		}
		due := time.Duration(req.Period.Days()) * b.dayLength
		if now.Sub(req.LastPaymentAt) >= due {
			req.LastPaymentAt = now
			credits = append(credits, credit{requestID: req.ID, cents: req.PaymentCents})
		}
	}
	e.mu.Unlock()

	var total int64
	for _, cr := range credits {
		e.company.AddMoney(cr.cents)
		total += cr.cents
		b.log.Info("rent collected", "request_id", cr.requestID, "cents", cr.cents)
	}
	for _, req := range expired {
		// The lease ran its full term: a happy customer.
		e.company.RecordCompletedRequest(2)
		b.log.Info("lease expired", "request_id", req.ID, "vm_id", req.VMID)
	}
	return total
}
