package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Config are the engine's tunables. Zero values fall back to sane defaults
// so tests can construct engines tersely.
type Config struct {
	CompanyName         string
	StartingMoneyCents  int64
	StartingSkillPoints int

	// DayLength maps one simulated day onto wall time.
	DayLength        time.Duration
	BillingTickEvery time.Duration

	ProvisionWorkers  int
	ProvisionDelayMin time.Duration
	ProvisionDelayMax time.Duration

	EventMinDelay    time.Duration
	EventMaxDelay    time.Duration
	EventProbability float64

	GeneratorEnabled bool
	GeneratorEvery   time.Duration
}

func (c Config) withDefaults() Config {
	if c.CompanyName == "" {
		c.CompanyName = "Rackrent Hosting"
	}
	if c.StartingMoneyCents == 0 {
		c.StartingMoneyCents = 10_000 * CentsPerCredit
	}
	if c.StartingSkillPoints == 0 {
		c.StartingSkillPoints = 3
	}
	if c.DayLength <= 0 {
		c.DayLength = time.Minute
	}
	if c.BillingTickEvery <= 0 {
		c.BillingTickEvery = 5 * time.Second
	}
	if c.ProvisionWorkers <= 0 {
		c.ProvisionWorkers = 4
	}
	if c.ProvisionDelayMin <= 0 {
		c.ProvisionDelayMin = 5 * time.Second
	}
	if c.ProvisionDelayMax <= 0 {
		c.ProvisionDelayMax = 60 * time.Second
	}
	if c.EventMinDelay <= 0 {
		c.EventMinDelay = 30 * time.Second
	}
	if c.EventMaxDelay <= 0 {
		c.EventMaxDelay = 2 * time.Minute
	}
	if c.EventProbability <= 0 || c.EventProbability > 1 {
		c.EventProbability = 0.70
	}
	if c.GeneratorEvery <= 0 {
		c.GeneratorEvery = 20 * time.Second
	}
	return c
}

const eventHistoryLimit = 50

// Engine owns every subsystem of the simulation: the ledger, the rack, the
// skill state, provisioning, billing and events. Everything is injected at
// construction; there is no package-level state.
type Engine struct {
	cfg Config
	log *slog.Logger

	company *Company
	skills  *Skills
	pool    *Pool
	prov    *Provisioner
	billing *Billing
	events  *EventScheduler
	gen     *Generator

	mu       sync.Mutex
	requests map[string]*CustomerRequest
	reqOrder []string
	history  []EventOutcome
	onEvent  func(EventOutcome)

	now func() time.Time
}

func New(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	e := &Engine{
		cfg:      cfg,
		log:      logger,
		requests: make(map[string]*CustomerRequest),
		now:      time.Now,
	}
	e.company = NewCompany(cfg.CompanyName, cfg.StartingMoneyCents)
	e.company.AddSkillPoints(cfg.StartingSkillPoints)
	e.skills = NewSkills(e.company)
	e.pool = NewPool(e.skills.RackSlots)
	e.prov = newProvisioner(e, cfg.ProvisionWorkers, cfg.ProvisionDelayMin, cfg.ProvisionDelayMax, logger)
	e.billing = newBilling(e, cfg.DayLength, logger)
	e.events = newEventScheduler(e.company, cfg.EventMinDelay, cfg.EventMaxDelay, cfg.EventProbability, e.recordOutcome, logger)
	e.gen = newGenerator(e, cfg.GeneratorEvery, logger)
	return e
}

func (e *Engine) Company() *Company         { return e.company }
func (e *Engine) Skills() *Skills           { return e.skills }
func (e *Engine) Pool() *Pool               { return e.pool }
func (e *Engine) Provisioner() *Provisioner { return e.prov }
func (e *Engine) Billing() *Billing         { return e.billing }
func (e *Engine) Events() *EventScheduler   { return e.events }

// OnEvent registers the sink for fired event outcomes (on top of the
// engine's own history). Must be called before Run.
func (e *Engine) OnEvent(fn func(EventOutcome)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onEvent = fn
}

// Run drives the periodic machinery: billing sweeps, the event scheduler
// and (when enabled) the request generator. It blocks until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	e.events.Start(ctx)
	defer e.events.Stop()

	if e.cfg.GeneratorEnabled {
		go e.gen.run(ctx)
	}

	ticker := time.NewTicker(e.cfg.BillingTickEvery)
	defer ticker.Stop()
	e.log.Info("engine running",
		"day_length", e.cfg.DayLength.String(),
		"billing_every", e.cfg.BillingTickEvery.String(),
		"generator", e.cfg.GeneratorEnabled)
	for {
		select {
		case <-ctx.Done():
			e.log.Info("engine stopped")
			return
		case <-ticker.C:
			if credited := e.billing.ProcessDueCycle(e.now()); credited > 0 {
				e.log.Info("billing cycle complete", "credited_cents", credited)
			}
		}
	}
}

// SubmitRequest enqueues a pending request (the generator's entry point,
// also exposed over the API).
func (e *Engine) SubmitRequest(req *CustomerRequest) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests[req.ID] = req
	e.reqOrder = append(e.reqOrder, req.ID)
}

// AcceptRequest moves a pending request to accepted and kicks off
// asynchronous provisioning. provided overrides the allocated shape (nil
// allocates exactly what was asked for); serverID pins a host, otherwise
// the first server that fits wins. The returned channel completes with the
// provisioning result.
func (e *Engine) AcceptRequest(ctx context.Context, id string, provided *ResourceShape, serverID string) (<-chan ProvisionResult, error) {
	e.mu.Lock()
	req, ok := e.requests[id]
	if !ok {
		e.mu.Unlock()
		return nil, ErrRequestNotFound
	}
	if req.State != StatePending {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is %s", ErrBadTransition, id, req.State)
	}

	shape := req.Shape
	if provided != nil {
		shape = *provided
	}

	var host *Server
	var err error
	if serverID != "" {
		srv, found := e.pool.Server(serverID)
		if !found {
			e.mu.Unlock()
			return nil, ErrServerNotFound
		}
		if !srv.CanHost(shape) {
			e.mu.Unlock()
			return nil, ErrNoCapacity
		}
		host = srv
	} else {
		host, err = e.pool.FindHost(shape)
		if err != nil {
			e.mu.Unlock()
			return nil, err
		}
	}

	req.State = StateAccepted
	e.mu.Unlock()

	return e.prov.Provision(ctx, req, host, shape), nil
}

// RejectRequest archives a pending request. Terminal, no side effects.
func (e *Engine) RejectRequest(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	req, ok := e.requests[id]
	if !ok {
		return ErrRequestNotFound
	}
	if req.State != StatePending {
		return fmt.Errorf("%w: %s is %s", ErrBadTransition, id, req.State)
	}
	req.State = StateArchived
	return nil
}

// ArchiveRequest closes out an active or expired request, releasing its VM.
// Cutting a lease short counts against the company; archiving an expired
// lease is just bookkeeping.
func (e *Engine) ArchiveRequest(id string) error {
	e.mu.Lock()
	req, ok := e.requests[id]
	if !ok {
		e.mu.Unlock()
		return ErrRequestNotFound
	}

	var earlyTermination bool
	switch req.State {
	case StateActive:
		earlyTermination = true
	case StateExpired:
	default:
		e.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrBadTransition, id, req.State)
	}

	vmID := req.VMID
	req.State = StateArchived
	req.VMID = ""
	e.mu.Unlock()

	if vmID != "" {
		e.pool.Release(vmID)
	}
	if earlyTermination {
		e.company.RecordFailedRequest()
	}
	return nil
}

// completeProvision is the provisioner's success path: materialize the VM,
// claim the mapping and activate the request, all while the request is
// still in accepted state.
func (e *Engine) completeProvision(req *CustomerRequest, host *Server, provided ResourceShape) (*VM, error) {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	if req.State != StateAccepted {
		return nil, fmt.Errorf("%w: %s is %s", ErrBadTransition, req.ID, req.State)
	}
	vm := e.prov.newVM(host, "vm-"+req.ID[:8], provided, now)
	if err := e.pool.Install(req.ID, vm); err != nil {
		return nil, err
	}
	req.activate(vm.ID, now)
	return vm, nil
}

// failProvision returns an interrupted request to the queue so it can be
// retried.
func (e *Engine) failProvision(req *CustomerRequest) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if req.State == StateAccepted {
		req.State = StatePending
	}
}

// deactivateRequest expires the request that lost its VM.
func (e *Engine) deactivateRequest(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	req, ok := e.requests[id]
	if !ok {
		return
	}
	if req.State == StateActive {
		req.State = StateExpired
	}
	req.VMID = ""
}

// BuyServer racks a new server, paying its slot cost from the ledger.
func (e *Engine) BuyServer(name string, capacity ResourceShape) (*Server, error) {
	cost := serverCostCents(capacity)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool.ServerCount() >= e.skills.RackSlots() {
		return nil, ErrNoCapacity
	}
	if !e.company.SpendMoney(cost) {
		return nil, ErrInsufficientFunds
	}
	srv, err := e.pool.AddServer(name, capacity, cost)
	if err != nil {
		// Slot vanished between check and add; refund.
		e.company.AddMoney(cost)
		return nil, err
	}
	e.log.Info("server racked", "server_id", srv.ID, "name", name, "cost_cents", cost)
	return srv, nil
}

func serverCostCents(capacity ResourceShape) int64 {
	return int64(capacity.VCPU)*150*CentsPerCredit +
		int64(capacity.RAMGB)*100*CentsPerCredit +
		int64(capacity.DiskGB)*2*CentsPerCredit
}

// Request returns a copy of one request.
func (e *Engine) Request(id string) (CustomerRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	req, ok := e.requests[id]
	if !ok {
		return CustomerRequest{}, ErrRequestNotFound
	}
	return *req, nil
}

// ListRequests returns copies of all requests, optionally filtered by
// state, in arrival order.
func (e *Engine) ListRequests(state RequestState) []CustomerRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]CustomerRequest, 0, len(e.reqOrder))
	for _, id := range e.reqOrder {
		req := e.requests[id]
		if state != "" && req.State != state {
			continue
		}
		out = append(out, *req)
	}
	return out
}

// ListCapacity projects the rack for display.
func (e *Engine) ListCapacity() []ServerView {
	return e.pool.Views()
}

// UpgradeSkill buys the next level of a category.
func (e *Engine) UpgradeSkill(cat SkillCategory) bool {
	return e.skills.Upgrade(cat)
}

// EventHistory returns the most recent event outcomes, oldest first.
func (e *Engine) EventHistory() []EventOutcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]EventOutcome, len(e.history))
	copy(out, e.history)
	return out
}

func (e *Engine) recordOutcome(outcome EventOutcome) {
	e.mu.Lock()
	e.history = append(e.history, outcome)
	if len(e.history) > eventHistoryLimit {
		e.history = e.history[len(e.history)-eventHistoryLimit:]
	}
	sink := e.onEvent
	e.mu.Unlock()
	if sink != nil {
		sink(outcome)
	}
}
