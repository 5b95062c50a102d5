package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	return New(Config{
		StartingMoneyCents: 100_000 * CentsPerCredit,
		ProvisionDelayMin:  time.Millisecond,
		ProvisionDelayMax:  2 * time.Millisecond,
	}, nil)
}

func rackTestServer(t *testing.T, e *Engine) *Server {
	t.Helper()
	srv, err := e.BuyServer("rack-1", ResourceShape{VCPU: 32, RAMGB: 128, DiskGB: 2000})
	if err != nil {
		t.Fatalf("buy server: %v", err)
	}
	return srv
}

func submitTestRequest(e *Engine, tier CustomerTier, shape ResourceShape) *CustomerRequest {
	req := NewCustomerRequest("Mira Webshop", tier, shape, PeriodWeekly, 2, 10*CentsPerCredit, time.Now())
	e.SubmitRequest(req)
	return req
}

func TestRatingDeltaPerfectMatch(t *testing.T) {
	shape := ResourceShape{VCPU: 2, RAMGB: 4, DiskGB: 80}
	got := ratingDelta(shape, shape, TierMediumBusiness)
	if got != 0.20 {
		t.Fatalf("perfect match delta = %f, want 0.20", got)
	}
}

func TestRatingDeltaUnderProvisionedNeverPositive(t *testing.T) {
	required := ResourceShape{VCPU: 4, RAMGB: 8, DiskGB: 100}
	cases := []ResourceShape{
		{VCPU: 3, RAMGB: 8, DiskGB: 100},
		{VCPU: 4, RAMGB: 7, DiskGB: 100},
		{VCPU: 4, RAMGB: 8, DiskGB: 99},
		{VCPU: 1, RAMGB: 1, DiskGB: 1},
		{VCPU: 8, RAMGB: 16, DiskGB: 50}, // generous except disk
	}
	for _, provided := range cases {
		for tier := TierIndividual; tier <= TierEnterprise; tier++ {
			if d := ratingDelta(provided, required, tier); d > 0 {
				t.Fatalf("under-provisioned %+v tier %s gave positive delta %f", provided, tier, d)
			}
		}
	}
}

func TestRatingDeltaValues(t *testing.T) {
	required := ResourceShape{VCPU: 2, RAMGB: 4, DiskGB: 40}
	tests := []struct {
		name     string
		provided ResourceShape
		tier     CustomerTier
		want     float64
	}{
		{
			name:     "under on vcpu",
			provided: ResourceShape{VCPU: 1, RAMGB: 4, DiskGB: 40},
			tier:     TierMediumBusiness,
			want:     -0.10,
		},
		{
			name:     "over capped per axis",
			provided: ResourceShape{VCPU: 10, RAMGB: 20, DiskGB: 200},
			tier:     TierMediumBusiness,
			want:     0.10*2/2 + 0.05*4/2 + 0.02*10/2,
		},
		{
			name:     "slight over",
			provided: ResourceShape{VCPU: 3, RAMGB: 5, DiskGB: 41},
			tier:     TierMediumBusiness,
			want:     0.10*1/2 + 0.05*1/2 + 0.02*1/2,
		},
		{
			name:     "perfect match individual factor",
			provided: required,
			tier:     TierIndividual,
			want:     0.20 * 1.2,
		},
		{
			name:     "perfect match enterprise factor",
			provided: required,
			tier:     TierEnterprise,
			want:     0.20 * 0.8,
		},
		{
			name:     "heavy under clamped at -0.5",
			provided: ResourceShape{VCPU: 0, RAMGB: 0, DiskGB: 0},
			tier:     TierIndividual,
			want:     -0.5,
		},
	}
	for _, tc := range tests {
		got := ratingDelta(tc.provided, required, tc.tier)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%s: delta = %f, want %f", tc.name, got, tc.want)
		}
	}
}

func TestProvisionSuccessActivatesRequest(t *testing.T) {
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

	got, err := e.Request(req.ID)
	if err != nil {
		t.Fatalf("request lookup: %v", err)
	}
	if got.State != StateActive {
		t.Fatalf("state = %s, want active", got.State)
	}
	if got.VMID != res.VM.ID {
		t.Fatalf("request vm = %q, want %q", got.VMID, res.VM.ID)
	}
	// weekly at base 10 credits -> 65 credits.
	if got.PaymentCents != 6500 {
		t.Fatalf("payment = %d cents, want 6500", got.PaymentCents)
	}
	if vmID, ok := e.pool.VMForRequest(req.ID); !ok || vmID != res.VM.ID {
		t.Fatalf("assignment table missing or wrong: %q %v", vmID, ok)
	}

	// Perfect match on a medium business: +0.20 on a fresh rating.
	if r := e.company.Rating(); math.Abs(r-0.20) > 1e-9 {
		t.Fatalf("rating after perfect match = %f, want 0.20", r)
	}
}

func TestProvisionCancellationReturnsRequestToPending(t *testing.T) {
	e := New(Config{
		StartingMoneyCents: 100_000 * CentsPerCredit,
		ProvisionDelayMin:  time.Hour,
		ProvisionDelayMax:  time.Hour,
	}, nil)
	rackTestServer(t, e)
	req := submitTestRequest(e, TierIndividual, ResourceShape{VCPU: 1, RAMGB: 1, DiskGB: 20})

	ctx, cancel := context.WithCancel(context.Background())
	results, err := e.AcceptRequest(ctx, req.ID, nil, "")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	cancel()

	res := <-results
	if res.Err == nil {
		t.Fatalf("expected cancellation error")
	}
	if !errors.Is(res.Err, ErrProvisionCancelled) {
		t.Fatalf("err = %v, want ErrProvisionCancelled", res.Err)
	}

	got, _ := e.Request(req.ID)
	if got.State != StatePending {
		t.Fatalf("state after cancel = %s, want pending (retryable)", got.State)
	}
	if _, ok := e.pool.VMForRequest(req.ID); ok {
		t.Fatalf("dangling request->vm mapping after cancellation")
	}
	if len(e.ListCapacity()[0].VMs) != 0 {
		t.Fatalf("vm left attached to server after cancellation")
	}
}

func TestProvisionFailsWithoutCapacity(t *testing.T) {
	e := testEngine(t)
	req := submitTestRequest(e, TierIndividual, ResourceShape{VCPU: 2, RAMGB: 4, DiskGB: 80})

	if _, err := e.AcceptRequest(context.Background(), req.ID, nil, ""); !errors.Is(err, ErrNoCapacity) {
		t.Fatalf("err = %v, want ErrNoCapacity", err)
	}
	got, _ := e.Request(req.ID)
	if got.State != StatePending {
		t.Fatalf("state = %s, want pending", got.State)
	}
}

func TestTerminateWithoutMappingFails(t *testing.T) {
	e := testEngine(t)
	rackTestServer(t, e)
	if ok := e.Provisioner().Terminate("no-such-vm"); ok {
		t.Fatalf("terminate of unmapped vm should fail")
	}
}

func TestTerminateReleasesVMAndDeactivatesRequest(t *testing.T) {
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

	if ok := e.Provisioner().Terminate(res.VM.ID); !ok {
		t.Fatalf("terminate failed")
	}
	got, _ := e.Request(req.ID)
	if got.State != StateExpired {
		t.Fatalf("state = %s, want expired", got.State)
	}
	if _, ok := e.pool.VMForRequest(req.ID); ok {
		t.Fatalf("mapping survived termination")
	}
	if ok := e.Provisioner().Terminate(res.VM.ID); ok {
		t.Fatalf("second terminate should fail")
	}
}
