package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// productSpec is one sellable VM configuration. Tiers map to cost bands and
// are gated behind marketing levels.
type productSpec struct {
	Name           string
	Tier           int
	Shape          ResourceShape
	BasePriceCents int64
}

var productCatalog = []productSpec{
	{Name: "Sprout", Tier: 1, Shape: ResourceShape{VCPU: 1, RAMGB: 1, DiskGB: 20}, BasePriceCents: 5 * CentsPerCredit},
	{Name: "Sapling", Tier: 1, Shape: ResourceShape{VCPU: 1, RAMGB: 2, DiskGB: 40}, BasePriceCents: 8 * CentsPerCredit},
	{Name: "Birch", Tier: 2, Shape: ResourceShape{VCPU: 2, RAMGB: 4, DiskGB: 80}, BasePriceCents: 15 * CentsPerCredit},
	{Name: "Cedar", Tier: 2, Shape: ResourceShape{VCPU: 4, RAMGB: 8, DiskGB: 160}, BasePriceCents: 28 * CentsPerCredit},
	{Name: "Oak", Tier: 3, Shape: ResourceShape{VCPU: 8, RAMGB: 16, DiskGB: 320}, BasePriceCents: 52 * CentsPerCredit},
	{Name: "Redwood", Tier: 4, Shape: ResourceShape{VCPU: 16, RAMGB: 64, DiskGB: 640}, BasePriceCents: 110 * CentsPerCredit},
}

var customerFirst = []string{
	"Mira", "Jonas", "Priya", "Felix", "Aiko", "Lars", "Dana", "Otto", "Yara", "Sven",
	"Ines", "Marco", "Tess", "Ravi", "Nadia", "Piotr", "Lucia", "Bram", "Sofia", "Eren",
}

var customerCompanies = []string{
	"Webshop", "Studio", "Consulting", "Media", "Logistics", "Analytics",
	"Gamedev", "Fintech", "Agency", "Labs",
}

// Generator fabricates incoming customer requests, the stream the player
// triages. Which tiers show up depends on accumulated marketing points.
type Generator struct {
	engine *Engine
	log    *slog.Logger
	every  time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

func newGenerator(e *Engine, every time.Duration, logger *slog.Logger) *Generator {
	return &Generator{
		engine: e,
		log:    logger,
		every:  every,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (g *Generator) run(ctx context.Context) {
	ticker := time.NewTicker(g.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			req := g.nextRequest(time.Now())
			if req == nil {
				continue
			}
			g.engine.SubmitRequest(req)
			g.log.Info("request arrived",
				"request_id", req.ID, "customer", req.Customer,
				"tier", req.Tier.String(), "period", string(req.Period))
		}
	}
}

// nextRequest draws a product and customer within the current marketing
// reach. Returns nil when no product tier is unlocked yet (cannot happen
// with the default skill floor, but restored snapshots are not trusted).
func (g *Generator) nextRequest(now time.Time) *CustomerRequest {
	g.mu.Lock()
	defer g.mu.Unlock()

	var products []productSpec
	for _, p := range productCatalog {
		if g.engine.skills.ProductTierUnlocked(p.Tier) {
			products = append(products, p)
		}
	}
	if len(products) == 0 {
		return nil
	}
	product := products[g.rng.Intn(len(products))]

	marketing := g.engine.company.MarketingPoints()
	var tiers []CustomerTier
	for t := TierIndividual; t <= TierEnterprise; t++ {
		if marketing >= t.RequiredMarketingPoints() {
			tiers = append(tiers, t)
		}
	}
	tier := tiers[g.rng.Intn(len(tiers))]

	periods := []RentalPeriod{
		PeriodDaily, PeriodWeekly, PeriodWeekly, PeriodMonthly, PeriodMonthly,
		PeriodQuarterly, PeriodHalfYearly, PeriodYearly,
	}
	period := periods[g.rng.Intn(len(periods))]

	customer := fmt.Sprintf("%s %s",
		customerFirst[g.rng.Intn(len(customerFirst))],
		customerCompanies[g.rng.Intn(len(customerCompanies))])

	// Wealthier tiers haggle less.
	budget := product.BasePriceCents + int64(g.rng.Intn(int(product.BasePriceCents/2)+1))
	budget += int64(tier) * product.BasePriceCents / 10

	term := 1 + g.rng.Intn(6)
	return NewCustomerRequest(customer, tier, product.Shape, period, term, budget, now)
}
