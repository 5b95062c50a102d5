package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRejectOnlyWorksOnPending(t *testing.T) {
	e := testEngine(t)
	req := submitTestRequest(e, TierIndividual, ResourceShape{VCPU: 1, RAMGB: 1, DiskGB: 10})

	if err := e.RejectRequest(req.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}
	cur, _ := e.Request(req.ID)
	if cur.State != StateArchived {
		t.Fatalf("state = %s, want archived", cur.State)
	}
	if err := e.RejectRequest(req.ID); !errors.Is(err, ErrBadTransition) {
		t.Fatalf("err = %v, want ErrBadTransition on double reject", err)
	}
	if err := e.RejectRequest("no-such-id"); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("err = %v, want ErrRequestNotFound", err)
	}
	// Rejection is free of consequences.
	if got := e.company.FailedRequests(); got != 0 {
		t.Fatalf("failed counter = %d after reject, want 0", got)
	}
}

func TestArchiveActiveCountsAsFailure(t *testing.T) {
	e := testEngine(t)
	rackTestServer(t, e)
	req := submitTestRequest(e, TierMediumBusiness, ResourceShape{VCPU: 2, RAMGB: 4, DiskGB: 80})
	results, err := e.AcceptRequest(context.Background(), req.ID, nil, "")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	res := <-results
	if res.Err != nil {
		t.Fatalf("provision: %v", res.Err)
	}

	if err := e.ArchiveRequest(req.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	cur, _ := e.Request(req.ID)
	if cur.State != StateArchived || cur.VMID != "" {
		t.Fatalf("state = %s vm = %q, want archived with no vm", cur.State, cur.VMID)
	}
	if got := e.company.FailedRequests(); got != 1 {
		t.Fatalf("cutting a lease short should count as a failure, counter = %d", got)
	}
	if _, ok := e.pool.VMForRequest(req.ID); ok {
		t.Fatalf("vm mapping survived archive")
	}
}

func TestArchiveExpiredIsPlainBookkeeping(t *testing.T) {
	e := testEngine(t)
	t0 := time.Now()
	req := NewCustomerRequest("Done Co", TierIndividual, ResourceShape{VCPU: 1, RAMGB: 1, DiskGB: 10}, PeriodDaily, 1, 5*CentsPerCredit, t0)
	req.activate("vm-gone", t0)
	req.State = StateExpired
	req.VMID = ""
	e.SubmitRequest(req)

	if err := e.ArchiveRequest(req.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if got := e.company.FailedRequests(); got != 0 {
		t.Fatalf("archiving an expired lease counted as failure")
	}
}

func TestArchiveRejectsPending(t *testing.T) {
	e := testEngine(t)
	req := submitTestRequest(e, TierIndividual, ResourceShape{VCPU: 1, RAMGB: 1, DiskGB: 10})
	if err := e.ArchiveRequest(req.ID); !errors.Is(err, ErrBadTransition) {
		t.Fatalf("err = %v, want ErrBadTransition", err)
	}
}

func TestAcceptValidatesStateAndHost(t *testing.T) {
	e := testEngine(t)
	rackTestServer(t, e)
	req := submitTestRequest(e, TierIndividual, ResourceShape{VCPU: 1, RAMGB: 1, DiskGB: 10})

	if _, err := e.AcceptRequest(context.Background(), "no-such-id", nil, ""); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("err = %v, want ErrRequestNotFound", err)
	}
	if _, err := e.AcceptRequest(context.Background(), req.ID, nil, "no-such-server"); !errors.Is(err, ErrServerNotFound) {
		t.Fatalf("err = %v, want ErrServerNotFound", err)
	}

	results, err := e.AcceptRequest(context.Background(), req.ID, nil, "")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := e.AcceptRequest(context.Background(), req.ID, nil, ""); !errors.Is(err, ErrBadTransition) {
		t.Fatalf("double accept err = %v, want ErrBadTransition", err)
	}
	<-results
}

func TestBuyServerChargesAndRefuses(t *testing.T) {
	capacity := ResourceShape{VCPU: 4, RAMGB: 8, DiskGB: 100}
	// 4*150 + 8*100 + 100*2 = 1600 credits.
	cost := serverCostCents(capacity)
	if cost != 1600*CentsPerCredit {
		t.Fatalf("cost = %d cents, want %d", cost, 1600*CentsPerCredit)
	}

	e := New(Config{StartingMoneyCents: cost}, nil)
	srv, err := e.BuyServer("rack-1", capacity)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if srv.SlotCostCents != cost {
		t.Fatalf("slot cost = %d, want %d", srv.SlotCostCents, cost)
	}
	if got := e.company.MoneyCents(); got != 0 {
		t.Fatalf("balance = %d after exact-cost purchase, want 0", got)
	}
	if _, err := e.BuyServer("rack-2", capacity); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
}

func TestBuyServerHonorsRackSlots(t *testing.T) {
	e := New(Config{StartingMoneyCents: 1_000_000 * CentsPerCredit}, nil)
	capacity := ResourceShape{VCPU: 1, RAMGB: 1, DiskGB: 1}
	// Rack level 1 means 6 slots.
	for i := 0; i < 6; i++ {
		if _, err := e.BuyServer("rack", capacity); err != nil {
			t.Fatalf("buy %d: %v", i, err)
		}
	}
	balance := e.company.MoneyCents()
	if _, err := e.BuyServer("rack", capacity); !errors.Is(err, ErrNoCapacity) {
		t.Fatalf("err = %v, want ErrNoCapacity with a full rack", err)
	}
	if got := e.company.MoneyCents(); got != balance {
		t.Fatalf("failed purchase moved the balance: %d -> %d", balance, got)
	}
}

func TestListRequestsFiltersByState(t *testing.T) {
	e := testEngine(t)
	a := submitTestRequest(e, TierIndividual, ResourceShape{VCPU: 1, RAMGB: 1, DiskGB: 10})
	b := submitTestRequest(e, TierIndividual, ResourceShape{VCPU: 1, RAMGB: 1, DiskGB: 10})
	if err := e.RejectRequest(b.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}

	all := e.ListRequests("")
	if len(all) != 2 {
		t.Fatalf("all = %d requests, want 2", len(all))
	}
	if all[0].ID != a.ID || all[1].ID != b.ID {
		t.Fatalf("listing not in arrival order")
	}
	pending := e.ListRequests(StatePending)
	if len(pending) != 1 || pending[0].ID != a.ID {
		t.Fatalf("pending filter wrong: %+v", pending)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	e := testEngine(t)
	rackTestServer(t, e)
	active := submitTestRequest(e, TierMediumBusiness, ResourceShape{VCPU: 2, RAMGB: 4, DiskGB: 80})
	results, err := e.AcceptRequest(context.Background(), active.ID, nil, "")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if res := <-results; res.Err != nil {
		t.Fatalf("provision: %v", res.Err)
	}
	pending := submitTestRequest(e, TierIndividual, ResourceShape{VCPU: 1, RAMGB: 1, DiskGB: 10})
	e.UpgradeSkill(SkillMarketing)
	e.recordOutcome(EventOutcome{Name: "tax_refund", Kind: EventPositive, FiredAt: time.Now()})

	restored := New(Config{}, nil)
	restored.RestoreFrom(e.Snapshot())

	if got, want := restored.company.MoneyCents(), e.company.MoneyCents(); got != want {
		t.Fatalf("money = %d, want %d", got, want)
	}
	if got := restored.skills.Level(SkillMarketing); got != 2 {
		t.Fatalf("marketing level = %d, want 2", got)
	}
	if got := restored.company.MarketingPoints(); got != e.company.MarketingPoints() {
		t.Fatalf("marketing points = %d, want %d", got, e.company.MarketingPoints())
	}
	gotActive, err := restored.Request(active.ID)
	if err != nil || gotActive.State != StateActive {
		t.Fatalf("active request = %+v err %v", gotActive, err)
	}
	if _, ok := restored.pool.VMForRequest(active.ID); !ok {
		t.Fatalf("vm assignment lost across the round trip")
	}
	gotPending, err := restored.Request(pending.ID)
	if err != nil || gotPending.State != StatePending {
		t.Fatalf("pending request = %+v err %v", gotPending, err)
	}
	if got := restored.EventHistory(); len(got) != 1 || got[0].Name != "tax_refund" {
		t.Fatalf("event history = %+v", got)
	}
}

func TestRestoreTurnsInFlightBackToPending(t *testing.T) {
	e := testEngine(t)
	req := submitTestRequest(e, TierIndividual, ResourceShape{VCPU: 1, RAMGB: 1, DiskGB: 10})

	snap := e.Snapshot()
	for i := range snap.Requests {
		if snap.Requests[i].ID == req.ID {
			snap.Requests[i].State = StateAccepted
		}
	}
	restored := New(Config{}, nil)
	restored.RestoreFrom(snap)
	cur, _ := restored.Request(req.ID)
	if cur.State != StatePending {
		t.Fatalf("state = %s, want pending (in-flight provisioning must retry)", cur.State)
	}
}

func TestEventHistoryIsBounded(t *testing.T) {
	e := testEngine(t)
	for i := 0; i < eventHistoryLimit+25; i++ {
		e.recordOutcome(EventOutcome{Name: "market_chatter", Kind: EventNeutral})
	}
	if got := len(e.EventHistory()); got != eventHistoryLimit {
		t.Fatalf("history length = %d, want %d", got, eventHistoryLimit)
	}
}

func TestServerOptimizationScore(t *testing.T) {
	srv := newServer("rack-1", ResourceShape{VCPU: 4, RAMGB: 8, DiskGB: 100}, 100)
	// debian/basic/weekly/ping: (80*20 + 40*35 + 50*25 + 40*20) / 100 = 50.
	if got := srv.OptimizationScore(); got != 50 {
		t.Fatalf("default score = %d, want 50", got)
	}
	srv.Config = ServerConfig{OS: "alpine", Security: "hardened", Backup: "continuous", Monitoring: "full"}
	// (90*20 + 95*35 + 100*25 + 95*20) / 100 = 95.
	if got := srv.OptimizationScore(); got != 95 {
		t.Fatalf("tuned score = %d, want 95", got)
	}
}
