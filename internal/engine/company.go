package engine

import (
	"math"
	"sync"
)

const (
	MaxRating       = 5.0
	MaxSatisfaction = 100
)

// MoneyObserver is told about every balance change. income reports the sign
// of the delta from the company's point of view.
type MoneyObserver func(deltaCents, newBalanceCents int64, income bool)

// RatingObserver is told when the rating actually changes value.
type RatingObserver func(rating float64)

// Company is the ledger every subsystem settles against: money, reputation,
// satisfaction and the two point currencies. All mutation is mutex-guarded;
// observers are invoked after the lock is released so they may call back in.
type Company struct {
	mu sync.Mutex

	name            string
	moneyCents      int64
	rating          float64
	satisfaction    int
	marketingPoints int
	skillPoints     int

	totalRevenueCents  int64
	totalExpensesCents int64
	completedRequests  int64
	failedRequests     int64

	moneyObservers  []MoneyObserver
	ratingObservers []RatingObserver
}

func NewCompany(name string, startingCents int64) *Company {
	return &Company{
		name:         name,
		moneyCents:   startingCents,
		rating:       0,
		satisfaction: 50,
	}
}

func (c *Company) OnMoneyChanged(fn MoneyObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.moneyObservers = append(c.moneyObservers, fn)
}

func (c *Company) OnRatingChanged(fn RatingObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ratingObservers = append(c.ratingObservers, fn)
}

// AddMoney credits the balance. Negative amounts are ignored.
func (c *Company) AddMoney(cents int64) {
	if cents <= 0 {
		return
	}
	c.mu.Lock()
	notify := c.setMoneyLocked(c.moneyCents + cents)
	c.mu.Unlock()
	notify()
}

// SpendMoney debits the balance, refusing to go negative. On insufficient
// funds it returns false and the balance is untouched.
func (c *Company) SpendMoney(cents int64) bool {
	if cents <= 0 {
		return cents == 0
	}
	c.mu.Lock()
	if c.moneyCents < cents {
		c.mu.Unlock()
		return false
	}
	notify := c.setMoneyLocked(c.moneyCents - cents)
	c.mu.Unlock()
	notify()
	return true
}

// setMoneyLocked applies the new balance, maintains the cumulative
// revenue/expense counters and returns the deferred observer dispatch.
func (c *Company) setMoneyLocked(newCents int64) func() {
	delta := newCents - c.moneyCents
	c.moneyCents = newCents
	income := delta >= 0
	if delta > 0 {
		c.totalRevenueCents += delta
	} else {
		c.totalExpensesCents += -delta
	}
	observers := make([]MoneyObserver, len(c.moneyObservers))
	copy(observers, c.moneyObservers)
	balance := c.moneyCents
	return func() {
		for _, fn := range observers {
			fn(delta, balance, income)
		}
	}
}

// RecordCompletedRequest bumps the completion counter, nudges satisfaction
// and recomputes the rating.
func (c *Company) RecordCompletedRequest(satisfactionDelta int) {
	c.mu.Lock()
	c.completedRequests++
	c.satisfaction = clampInt(c.satisfaction+satisfactionDelta, 0, MaxSatisfaction)
	notify := c.recomputeRatingLocked()
	c.mu.Unlock()
	notify()
}

func (c *Company) RecordFailedRequest() {
	c.mu.Lock()
	c.failedRequests++
	c.satisfaction = clampInt(c.satisfaction-3, 0, MaxSatisfaction)
	notify := c.recomputeRatingLocked()
	c.mu.Unlock()
	notify()
}

// AdjustSatisfaction moves satisfaction by delta within [0,100] and
// recomputes the rating.
func (c *Company) AdjustSatisfaction(delta int) {
	c.mu.Lock()
	c.satisfaction = clampInt(c.satisfaction+delta, 0, MaxSatisfaction)
	notify := c.recomputeRatingLocked()
	c.mu.Unlock()
	notify()
}

// ApplyRatingDelta shifts the current rating directly (provisioning quality,
// events) and clamps it into [0,5].
func (c *Company) ApplyRatingDelta(delta float64) {
	c.mu.Lock()
	notify := c.setRatingLocked(c.rating + delta)
	c.mu.Unlock()
	notify()
}

// ReduceRating lowers the rating by amount, floored at zero. Increases are
// not allowed through this path.
func (c *Company) ReduceRating(amount float64) {
	if amount <= 0 {
		return
	}
	c.mu.Lock()
	notify := c.setRatingLocked(c.rating - amount)
	c.mu.Unlock()
	notify()
}

// recomputeRatingLocked derives the rating from satisfaction, completion
// ratio and profit ratio. The two ratios are bounded into [0,1]; losses
// never push profitRatio below zero.
func (c *Company) recomputeRatingLocked() func() {
	satisfactionTerm := float64(c.satisfaction) / 33.33

	completionRatio := 0.0
	if total := c.completedRequests + c.failedRequests; total > 0 {
		completionRatio = float64(c.completedRequests) / float64(total)
	}

	profitRatio := 0.0
	if c.totalRevenueCents > 0 {
		profitRatio = float64(c.totalRevenueCents-c.totalExpensesCents) / float64(c.totalRevenueCents)
		profitRatio = math.Max(0, math.Min(1, profitRatio))
	}

	return c.setRatingLocked(satisfactionTerm + completionRatio + profitRatio)
}

func (c *Company) setRatingLocked(rating float64) func() {
	rating = math.Max(0, math.Min(MaxRating, rating))
	if rating == c.rating {
		return func() {}
	}
	c.rating = rating
	observers := make([]RatingObserver, len(c.ratingObservers))
	copy(observers, c.ratingObservers)
	return func() {
		for _, fn := range observers {
			fn(rating)
		}
	}
}

func (c *Company) AddMarketingPoints(points int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.marketingPoints += points
	if c.marketingPoints < 0 {
		c.marketingPoints = 0
	}
}

func (c *Company) AddSkillPoints(points int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skillPoints += points
	if c.skillPoints < 0 {
		c.skillPoints = 0
	}
}

// spendSkillPoints is the skill system's debit path; false when short.
func (c *Company) spendSkillPoints(points int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.skillPoints < points {
		return false
	}
	c.skillPoints -= points
	return true
}

func (c *Company) Name() string         { return c.name }
func (c *Company) MoneyCents() int64    { c.mu.Lock(); defer c.mu.Unlock(); return c.moneyCents }
func (c *Company) Rating() float64      { c.mu.Lock(); defer c.mu.Unlock(); return c.rating }
func (c *Company) Satisfaction() int    { c.mu.Lock(); defer c.mu.Unlock(); return c.satisfaction }
func (c *Company) MarketingPoints() int { c.mu.Lock(); defer c.mu.Unlock(); return c.marketingPoints }
func (c *Company) SkillPoints() int     { c.mu.Lock(); defer c.mu.Unlock(); return c.skillPoints }
func (c *Company) CompletedRequests() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completedRequests
}
func (c *Company) FailedRequests() int64 { c.mu.Lock(); defer c.mu.Unlock(); return c.failedRequests }

// CompanyView is the read-only ledger projection served over the API.
type CompanyView struct {
	Name               string  `json:"name"`
	MoneyCents         int64   `json:"money_cents"`
	Rating             float64 `json:"rating"`
	Satisfaction       int     `json:"satisfaction"`
	MarketingPoints    int     `json:"marketing_points"`
	SkillPoints        int     `json:"skill_points"`
	TotalRevenueCents  int64   `json:"total_revenue_cents"`
	TotalExpensesCents int64   `json:"total_expenses_cents"`
	CompletedRequests  int64   `json:"completed_requests"`
	FailedRequests     int64   `json:"failed_requests"`
}

func (c *Company) View() CompanyView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CompanyView{
		Name:               c.name,
		MoneyCents:         c.moneyCents,
		Rating:             c.rating,
		Satisfaction:       c.satisfaction,
		MarketingPoints:    c.marketingPoints,
		SkillPoints:        c.skillPoints,
		TotalRevenueCents:  c.totalRevenueCents,
		TotalExpensesCents: c.totalExpensesCents,
		CompletedRequests:  c.completedRequests,
		FailedRequests:     c.failedRequests,
	}
}

// restore rehydrates ledger state from a snapshot without firing observers.
func (c *Company) restore(v CompanyView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = v.Name
	c.moneyCents = v.MoneyCents
	c.rating = math.Max(0, math.Min(MaxRating, v.Rating))
	c.satisfaction = clampInt(v.Satisfaction, 0, MaxSatisfaction)
	c.marketingPoints = v.MarketingPoints
	c.skillPoints = v.SkillPoints
	c.totalRevenueCents = v.TotalRevenueCents
	c.totalExpensesCents = v.TotalExpensesCents
	c.completedRequests = v.CompletedRequests
	c.failedRequests = v.FailedRequests
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
