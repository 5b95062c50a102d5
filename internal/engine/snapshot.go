package engine

import "time"

// Snapshot is the engine's full serializable state. Load/save of the bytes
// is the store's business; the engine only produces and consumes the
// structure.
type Snapshot struct {
	SavedAt  time.Time             `json:"saved_at"`
	Company  CompanyView           `json:"company"`
	Skills   map[SkillCategory]int `json:"skills"`
	Pool     poolSnapshot          `json:"pool"`
	Requests []*CustomerRequest    `json:"requests"`
	History  []EventOutcome        `json:"history"`
}

// Snapshot captures the current state of every subsystem.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	requests := make([]*CustomerRequest, 0, len(e.reqOrder))
	for _, id := range e.reqOrder {
		cp := *e.requests[id]
		requests = append(requests, &cp)
	}
	history := make([]EventOutcome, len(e.history))
	copy(history, e.history)
	e.mu.Unlock()

	return Snapshot{
		SavedAt:  e.now(),
		Company:  e.company.View(),
		Skills:   e.skills.snapshot(),
		Pool:     e.pool.snapshot(),
		Requests: requests,
		History:  history,
	}
}

// RestoreFrom rehydrates the engine from a snapshot. An empty snapshot is a
// valid cold start. Requests stuck mid-provisioning at save time come back
// as pending so they are retried rather than lost.
func (e *Engine) RestoreFrom(snap Snapshot) {
	e.company.restore(snap.Company)
	e.skills.restore(snap.Skills)
	e.pool.restore(snap.Pool)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = make(map[string]*CustomerRequest, len(snap.Requests))
	e.reqOrder = e.reqOrder[:0]
	for _, req := range snap.Requests {
		cp := *req
		if cp.State == StateAccepted {
			cp.State = StatePending
		}
		e.requests[cp.ID] = &cp
		e.reqOrder = append(e.reqOrder, cp.ID)
	}
	e.history = append(e.history[:0], snap.History...)
}
