package engine

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// EventKind tags catalog entries by how the player should feel about them.
type EventKind string

const (
	EventPositive EventKind = "positive"
	EventNegative EventKind = "negative"
	EventNeutral  EventKind = "neutral"
)

// Event is one catalog entry. Apply mutates the ledger and returns the
// human-readable outcome line shown to the player.
type Event struct {
	Name  string
	Kind  EventKind
	Apply func(*Company) string
}

// EventOutcome is what actually happened when an event fired.
type EventOutcome struct {
	Name        string    `json:"name"`
	Kind        EventKind `json:"kind"`
	Description string    `json:"description"`
	FiredAt     time.Time `json:"fired_at"`
}

// defaultEventCatalog perturbs the ledger the way the hosting business gets
// perturbed: outages, awards, surges and non-news.
var defaultEventCatalog = []Event{
	{
		Name: "power_outage",
		Kind: EventNegative,
		Apply: func(c *Company) string {
			c.ReduceRating(0.3)
			c.AdjustSatisfaction(-5)
			return "Datacenter power outage: customers noticed. Rating -0.3, satisfaction -5."
		},
	},
	{
		Name: "hardware_failure",
		Kind: EventNegative,
		Apply: func(c *Company) string {
			repair := int64(350) * CentsPerCredit
			if c.SpendMoney(repair) {
				return "A disk array died. Emergency replacement cost 350 credits."
			}
			c.ReduceRating(0.2)
			return "A disk array died and there was no budget to replace it. Rating -0.2."
		},
	},
	{
		Name: "ddos_attack",
		Kind: EventNegative,
		Apply: func(c *Company) string {
			c.AdjustSatisfaction(-8)
			return "DDoS attack against hosted sites. Satisfaction -8."
		},
	},
	{
		Name: "electricity_hike",
		Kind: EventNegative,
		Apply: func(c *Company) string {
			bill := int64(200) * CentsPerCredit
			if c.SpendMoney(bill) {
				return "Electricity prices spiked: 200 credits extra on the power bill."
			}
			return "Electricity prices spiked, but the provider deferred the bill."
		},
	},
	{
		Name: "viral_review",
		Kind: EventPositive,
		Apply: func(c *Company) string {
			c.AddMarketingPoints(10)
			c.AdjustSatisfaction(3)
			return "A viral review praised your uptime. Marketing +10, satisfaction +3."
		},
	},
	{
		Name: "industry_award",
		Kind: EventPositive,
		Apply: func(c *Company) string {
			c.ApplyRatingDelta(0.25)
			return "Hosting industry award won. Rating +0.25."
		},
	},
	{
		Name: "tax_refund",
		Kind: EventPositive,
		Apply: func(c *Company) string {
			refund := int64(500) * CentsPerCredit
			c.AddMoney(refund)
			return "Unexpected tax refund: +500 credits."
		},
	},
	{
		Name: "conference_invite",
		Kind: EventPositive,
		Apply: func(c *Company) string {
			c.AddSkillPoints(2)
			return "Your engineers spoke at a conference. Skill points +2."
		},
	},
	{
		Name: "market_chatter",
		Kind: EventNeutral,
		Apply: func(c *Company) string {
			return "Industry analysts argue about cloud pricing. Nothing changes."
		},
	},
	{
		Name: "competitor_outage",
		Kind: EventNeutral,
		Apply: func(c *Company) string {
			c.AddMarketingPoints(3)
			return "A competitor had a rough week. A few prospects looked your way: marketing +3."
		},
	},
}

// EventScheduler fires catalog events against the ledger on a randomized
// cadence so pacing never becomes predictable.
type EventScheduler struct {
	company *Company
	log     *slog.Logger

	minDelay    time.Duration
	maxDelay    time.Duration
	triggerProb float64
	catalog     []Event
	onOutcome   func(EventOutcome)

	mu     sync.Mutex
	rng    *rand.Rand
	cancel context.CancelFunc
	done   chan struct{}
}

func newEventScheduler(company *Company, minDelay, maxDelay time.Duration, triggerProb float64, onOutcome func(EventOutcome), logger *slog.Logger) *EventScheduler {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	if onOutcome == nil {
		onOutcome = func(EventOutcome) {}
	}
	return &EventScheduler{
		company:     company,
		log:         logger,
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		triggerProb: triggerProb,
		catalog:     defaultEventCatalog,
		onOutcome:   onOutcome,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start launches the tick loop. Calling Start on a running scheduler is a
// no-op.
func (s *EventScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx)
}

// Stop cancels the loop and waits for it to drain.
func (s *EventScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *EventScheduler) run(ctx context.Context) {
	defer close(s.done)
	timer := time.NewTimer(s.nextDelay())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if outcome, fired := s.tick(time.Now()); fired {
				s.log.Info("event fired",
					"event", outcome.Name, "kind", outcome.Kind, "outcome", outcome.Description)
				s.onOutcome(outcome)
			}
			timer.Reset(s.nextDelay())
		}
	}
}

// tick rolls the trigger probability and, on success, applies one uniformly
// chosen catalog entry.
func (s *EventScheduler) tick(now time.Time) (EventOutcome, bool) {
	s.mu.Lock()
	roll := s.rng.Float64()
	idx := s.rng.Intn(len(s.catalog))
	s.mu.Unlock()

	if roll >= s.triggerProb {
		return EventOutcome{}, false
	}
	ev := s.catalog[idx]
	desc := ev.Apply(s.company)
	return EventOutcome{
		Name:        ev.Name,
		Kind:        ev.Kind,
		Description: desc,
		FiredAt:     now,
	}, true
}

func (s *EventScheduler) nextDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxDelay <= s.minDelay {
		return s.minDelay
	}
	return s.minDelay + time.Duration(s.rng.Int63n(int64(s.maxDelay-s.minDelay)))
}
