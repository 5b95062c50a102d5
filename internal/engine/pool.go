package engine

import (
	"sync"
)

// Pool is the rack: every owned server, its VMs and the request<->VM
// assignment table. One mutex serializes claims so a VM can never belong to
// two requests at once — the first successful claim wins.
type Pool struct {
	mu       sync.Mutex
	servers  map[string]*Server
	order    []string // stable listing order
	byReq    map[string]string
	byVM     map[string]string
	maxSlots func() int
}

// NewPool builds an empty rack. maxSlots is consulted on every purchase so
// skill upgrades take effect without rewiring.
func NewPool(maxSlots func() int) *Pool {
	return &Pool{
		servers:  make(map[string]*Server),
		byReq:    make(map[string]string),
		byVM:     make(map[string]string),
		maxSlots: maxSlots,
	}
}

// AddServer racks a new server. Fails with ErrNoCapacity when all slots are
// taken.
func (p *Pool) AddServer(name string, capacity ResourceShape, slotCostCents int64) (*Server, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.servers) >= p.maxSlots() {
		return nil, ErrNoCapacity
	}
	srv := newServer(name, capacity, slotCostCents)
	p.servers[srv.ID] = srv
	p.order = append(p.order, srv.ID)
	return srv, nil
}

func (p *Pool) Server(id string) (*Server, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	srv, ok := p.servers[id]
	return srv, ok
}

// FindHost returns the first server that can host shape, or ErrNoCapacity.
// Callers use this as the pre-check the provisioner relies on.
func (p *Pool) FindHost(shape ResourceShape) (*Server, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range p.order {
		if p.servers[id].CanHost(shape) {
			return p.servers[id], nil
		}
	}
	return nil, ErrNoCapacity
}

// Install attaches a freshly provisioned VM to its server and claims the
// request<->VM mapping in one critical section. A second claim for either
// side loses with ErrVMAssigned.
func (p *Pool) Install(requestID string, vm *VM) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	srv, ok := p.servers[vm.ServerID]
	if !ok {
		return ErrServerNotFound
	}
	if _, taken := p.byVM[vm.ID]; taken {
		return ErrVMAssigned
	}
	if _, taken := p.byReq[requestID]; taken {
		return ErrVMAssigned
	}
	if !srv.CanHost(vm.Shape) {
		return ErrNoCapacity
	}
	srv.attach(vm)
	p.byVM[vm.ID] = requestID
	p.byReq[requestID] = vm.ID
	return nil
}

// Release detaches vmID from its server and clears the mapping, returning
// the request that held it. ok is false when the VM has no tracked request.
func (p *Pool) Release(vmID string) (requestID string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	requestID, ok = p.byVM[vmID]
	if !ok {
		return "", false
	}
	delete(p.byVM, vmID)
	delete(p.byReq, requestID)
	for _, srv := range p.servers {
		if vm := srv.detach(vmID); vm != nil {
			vm.Status = VMStopped
			break
		}
	}
	return requestID, true
}

// VMForRequest resolves the assignment table request side.
func (p *Pool) VMForRequest(requestID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	vmID, ok := p.byReq[requestID]
	return vmID, ok
}

func (p *Pool) ServerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.servers)
}

// Views returns a stable-ordered capacity projection.
func (p *Pool) Views() []ServerView {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ServerView, 0, len(p.order))
	for _, id := range p.order {
		srv := p.servers[id]
		vms := make([]VM, 0, len(srv.VMs))
		for _, vm := range srv.VMs {
			vms = append(vms, *vm)
		}
		out = append(out, ServerView{
			ID:                srv.ID,
			Name:              srv.Name,
			Capacity:          srv.Capacity,
			Free:              srv.Free(),
			SlotCostCents:     srv.SlotCostCents,
			OptimizationScore: srv.OptimizationScore(),
			VMs:               vms,
		})
	}
	return out
}

// snapshot and restore move the whole rack across the persistence boundary.

type poolSnapshot struct {
	Servers     []*Server         `json:"servers"`
	Assignments map[string]string `json:"assignments"` // request ID -> VM ID
}

func (p *Pool) snapshot() poolSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	servers := make([]*Server, 0, len(p.order))
	for _, id := range p.order {
		servers = append(servers, p.servers[id])
	}
	assignments := make(map[string]string, len(p.byReq))
	for req, vm := range p.byReq {
		assignments[req] = vm
	}
	return poolSnapshot{Servers: servers, Assignments: assignments}
}

func (p *Pool) restore(snap poolSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.servers = make(map[string]*Server, len(snap.Servers))
	p.order = p.order[:0]
	for _, srv := range snap.Servers {
		p.servers[srv.ID] = srv
		p.order = append(p.order, srv.ID)
	}
	p.byReq = make(map[string]string, len(snap.Assignments))
	p.byVM = make(map[string]string, len(snap.Assignments))
	for req, vm := range snap.Assignments {
		p.byReq[req] = vm
		p.byVM[vm] = req
	}
}
