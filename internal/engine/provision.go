package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"
)

var ErrProvisionCancelled = errors.New("provisioning cancelled")

// ProvisionResult completes exactly once per Provision call: either a
// running VM or the error that stopped the deployment.
type ProvisionResult struct {
	VM  *VM
	Err error
}

// Provisioner deploys VMs for accepted requests. Concurrency is capped by a
// semaphore so a burst of accepts cannot spawn unbounded workers, and every
// in-flight deployment is cancellable through its context.
type Provisioner struct {
	engine *Engine
	log    *slog.Logger

	sem      chan struct{}
	delayMin time.Duration
	delayMax time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

func newProvisioner(e *Engine, workers int, delayMin, delayMax time.Duration, logger *slog.Logger) *Provisioner {
	if workers < 1 {
		workers = 1
	}
	if delayMax < delayMin {
		delayMax = delayMin
	}
	return &Provisioner{
		engine:   e,
		log:      logger,
		sem:      make(chan struct{}, workers),
		delayMin: delayMin,
		delayMax: delayMax,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Provision asynchronously deploys a VM with the provided shape on host and
// reports on the returned channel. The host must have been pre-checked for
// fit; the provisioner itself only simulates deployment latency and applies
// the quality policy. Cancellation returns the request to pending and
// leaves no request<->VM mapping behind.
func (p *Provisioner) Provision(ctx context.Context, req *CustomerRequest, host *Server, provided ResourceShape) <-chan ProvisionResult {
	out := make(chan ProvisionResult, 1)
	go func() {
		vm, err := p.deploy(ctx, req, host, provided)
		if err != nil {
			p.engine.failProvision(req)
			p.log.Warn("provisioning failed",
				"request_id", req.ID, "server_id", host.ID, "err", err)
			out <- ProvisionResult{Err: err}
			return
		}
		out <- ProvisionResult{VM: vm}
	}()
	return out
}

func (p *Provisioner) deploy(ctx context.Context, req *CustomerRequest, host *Server, provided ResourceShape) (*VM, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrProvisionCancelled, ctx.Err())
	}
	defer func() { <-p.sem }()

	timer := time.NewTimer(p.deployDelay())
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrProvisionCancelled, ctx.Err())
	}

	vm, err := p.engine.completeProvision(req, host, provided)
	if err != nil {
		return nil, err
	}

	delta := ratingDelta(provided, req.Shape, req.Tier)
	p.engine.company.ApplyRatingDelta(delta)
	p.log.Info("vm provisioned",
		"request_id", req.ID, "vm_id", vm.ID, "server_id", host.ID,
		"rating_delta", delta)
	return vm, nil
}

// Terminate releases vm's assignment, detaches it from its server and
// deactivates the request that held it. False when the VM has no tracked
// request.
func (p *Provisioner) Terminate(vmID string) bool {
	requestID, ok := p.engine.pool.Release(vmID)
	if !ok {
		return false
	}
	p.engine.deactivateRequest(requestID)
	p.log.Info("vm terminated", "vm_id", vmID, "request_id", requestID)
	return true
}

func (p *Provisioner) deployDelay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.delayMax <= p.delayMin {
		return p.delayMin
	}
	return p.delayMin + time.Duration(p.rng.Int63n(int64(p.delayMax-p.delayMin)))
}

func (p *Provisioner) newVM(host *Server, name string, shape ResourceShape, now time.Time) *VM {
	p.mu.Lock()
	defer p.mu.Unlock()
	return newVM(host.ID, name, shape, now, p.rng)
}

// ratingDelta scores provisioning quality. Under-provisioning on any axis
// is punished, an exact match earns a flat bonus and over-provisioning
// earns a smaller, capped bonus per axis. The customer tier scales the
// result, which is clamped into [-0.5, +0.5].
func ratingDelta(provided, required ResourceShape, tier CustomerTier) float64 {
	diff := provided.Sub(required)

	var delta float64
	switch {
	case diff.VCPU < 0 || diff.RAMGB < 0 || diff.DiskGB < 0:
		delta = -(0.10*math.Abs(math.Min(0, float64(diff.VCPU))) +
			0.05*math.Abs(math.Min(0, float64(diff.RAMGB))) +
			0.02*math.Abs(math.Min(0, float64(diff.DiskGB))))
	case diff.VCPU == 0 && diff.RAMGB == 0 && diff.DiskGB == 0:
		delta = 0.20
	default:
		delta = 0.10*math.Min(2, float64(diff.VCPU))/2 +
			0.05*math.Min(4, float64(diff.RAMGB))/2 +
			0.02*math.Min(10, float64(diff.DiskGB))/2
	}

	delta *= tier.RatingFactor()
	return math.Max(-0.5, math.Min(0.5, delta))
}
