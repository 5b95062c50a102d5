package engine

import (
	"math/rand"
	"testing"
)

func TestSpendMoneyNeverGoesNegative(t *testing.T) {
	c := NewCompany("test co", 100*CentsPerCredit)

	if ok := c.SpendMoney(101 * CentsPerCredit); ok {
		t.Fatalf("expected overdraft spend to fail")
	}
	if got := c.MoneyCents(); got != 100*CentsPerCredit {
		t.Fatalf("balance changed on failed spend: %d", got)
	}
	if ok := c.SpendMoney(100 * CentsPerCredit); !ok {
		t.Fatalf("expected exact spend to succeed")
	}
	if got := c.MoneyCents(); got != 0 {
		t.Fatalf("expected zero balance, got %d", got)
	}
	if ok := c.SpendMoney(1); ok {
		t.Fatalf("expected spend from zero to fail")
	}
}

func TestBalanceInvariantUnderRandomSequence(t *testing.T) {
	c := NewCompany("test co", 50*CentsPerCredit)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5000; i++ {
		amount := int64(rng.Intn(2000)) + 1
		if rng.Intn(2) == 0 {
			c.AddMoney(amount)
		} else {
			c.SpendMoney(amount)
		}
		if c.MoneyCents() < 0 {
			t.Fatalf("balance went negative at op %d: %d", i, c.MoneyCents())
		}
	}
}

func TestRatingAndSatisfactionBounds(t *testing.T) {
	c := NewCompany("test co", 0)
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 2000; i++ {
		switch rng.Intn(4) {
		case 0:
			c.RecordCompletedRequest(rng.Intn(21) - 10)
		case 1:
			c.RecordFailedRequest()
		case 2:
			c.ReduceRating(rng.Float64() * 2)
		case 3:
			c.ApplyRatingDelta(rng.Float64()*2 - 1)
		}
		if r := c.Rating(); r < 0 || r > MaxRating {
			t.Fatalf("rating out of range at op %d: %f", i, r)
		}
		if s := c.Satisfaction(); s < 0 || s > MaxSatisfaction {
			t.Fatalf("satisfaction out of range at op %d: %d", i, s)
		}
	}
}

func TestRatingFormula(t *testing.T) {
	c := NewCompany("test co", 0)
	c.restore(CompanyView{
		Name:         "test co",
		Satisfaction: 100,
	})
	// satisfaction 100 -> ~3.0, completion 1/1, no revenue -> profit 0.
	c.RecordCompletedRequest(0)
	want := 100.0/33.33 + 1 + 0
	if got := c.Rating(); got != want {
		t.Fatalf("rating = %f, want %f", got, want)
	}
}

func TestProfitRatioFlooredOnLosses(t *testing.T) {
	c := NewCompany("test co", 1000*CentsPerCredit)
	c.AddMoney(100 * CentsPerCredit)
	c.SpendMoney(900 * CentsPerCredit) // expenses exceed revenue
	c.AdjustSatisfaction(-100)
	c.RecordCompletedRequest(0)
	// profit term must contribute 0, not negative: rating = 0 + 1 + 0.
	if got := c.Rating(); got != 1 {
		t.Fatalf("rating = %f, want 1 (profit ratio floored)", got)
	}
}

func TestMoneyObserverSeesDeltaAndDirection(t *testing.T) {
	c := NewCompany("test co", 10*CentsPerCredit)
	var deltas []int64
	var incomes []bool
	c.OnMoneyChanged(func(delta, balance int64, income bool) {
		deltas = append(deltas, delta)
		incomes = append(incomes, income)
	})

	c.AddMoney(5 * CentsPerCredit)
	c.SpendMoney(3 * CentsPerCredit)

	if len(deltas) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(deltas))
	}
	if deltas[0] != 5*CentsPerCredit || !incomes[0] {
		t.Fatalf("credit notification wrong: delta=%d income=%v", deltas[0], incomes[0])
	}
	if deltas[1] != -3*CentsPerCredit || incomes[1] {
		t.Fatalf("debit notification wrong: delta=%d income=%v", deltas[1], incomes[1])
	}
}

func TestRatingObserverFiresOnlyOnChange(t *testing.T) {
	c := NewCompany("test co", 0)
	fired := 0
	c.OnRatingChanged(func(float64) { fired++ })

	c.ApplyRatingDelta(0.2)
	if fired != 1 {
		t.Fatalf("expected 1 notification, got %d", fired)
	}
	c.ApplyRatingDelta(0) // no-op delta
	if fired != 1 {
		t.Fatalf("no-op delta should not notify, got %d", fired)
	}
	c.ReduceRating(5) // to the floor
	c.ReduceRating(1) // already at the floor
	if fired != 2 {
		t.Fatalf("expected 2 notifications after floor, got %d", fired)
	}
}
