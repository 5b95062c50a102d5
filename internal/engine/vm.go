package engine

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// VMStatus is the run state of a provisioned machine.
type VMStatus string

const (
	VMRunning     VMStatus = "running"
	VMStopped     VMStatus = "stopped"
	VMSuspended   VMStatus = "suspended"
	VMMaintenance VMStatus = "maintenance"
	VMError       VMStatus = "error"
)

// VM is a provisioned machine. It is owned by exactly one Server and
// referenced by at most one active request via the pool's assignment table.
type VM struct {
	ID        string        `json:"id"`
	Address   string        `json:"address"`
	Name      string        `json:"name"`
	Shape     ResourceShape `json:"shape"`
	Status    VMStatus      `json:"status"`
	ServerID  string        `json:"server_id"`
	CreatedAt time.Time     `json:"created_at"`
}

func newVM(serverID, name string, shape ResourceShape, now time.Time, rng *rand.Rand) *VM {
	return &VM{
		ID:        uuid.NewString(),
		Address:   fmt.Sprintf("10.%d.%d.%d", rng.Intn(250)+1, rng.Intn(254)+1, rng.Intn(254)+1),
		Name:      name,
		Shape:     shape,
		Status:    VMRunning,
		ServerID:  serverID,
		CreatedAt: now,
	}
}

// ServerConfig holds the player-chosen software setup of a server. Each
// choice contributes to the optimization score with its own weight.
type ServerConfig struct {
	OS         string `json:"os"`
	Security   string `json:"security"`
	Backup     string `json:"backup"`
	Monitoring string `json:"monitoring"`
}

// Score values per configured choice, 0-100.
var (
	osScores = map[string]int{
		"": 0, "debian": 80, "ubuntu": 75, "alpine": 90, "centos": 60, "windows": 50,
	}
	securityScores = map[string]int{
		"": 0, "basic": 40, "firewall": 70, "hardened": 95,
	}
	backupScores = map[string]int{
		"": 0, "weekly": 50, "daily": 80, "continuous": 100,
	}
	monitoringScores = map[string]int{
		"": 0, "ping": 40, "metrics": 75, "full": 95,
	}
)

// Server is one rack unit (VPS chassis): finite capacity, a slot cost and
// the VMs it hosts. Mutation goes through the owning Pool.
type Server struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Capacity      ResourceShape `json:"capacity"`
	SlotCostCents int64         `json:"slot_cost_cents"`
	Config        ServerConfig  `json:"config"`
	VMs           []*VM         `json:"vms"`
}

func newServer(name string, capacity ResourceShape, slotCostCents int64) *Server {
	return &Server{
		ID:            uuid.NewString(),
		Name:          name,
		Capacity:      capacity,
		SlotCostCents: slotCostCents,
		Config: ServerConfig{
			OS:         "debian",
			Security:   "basic",
			Backup:     "weekly",
			Monitoring: "ping",
		},
	}
}

// used sums the shapes of all hosted VMs.
func (s *Server) used() ResourceShape {
	var u ResourceShape
	for _, vm := range s.VMs {
		u.VCPU += vm.Shape.VCPU
		u.RAMGB += vm.Shape.RAMGB
		u.DiskGB += vm.Shape.DiskGB
	}
	return u
}

// Free reports the remaining capacity.
func (s *Server) Free() ResourceShape {
	return s.Capacity.Sub(s.used())
}

// CanHost reports whether shape still fits next to the hosted VMs.
func (s *Server) CanHost(shape ResourceShape) bool {
	return shape.Fits(s.Free())
}

// OptimizationScore is a weighted average of the configured choices on a
// 0-100 scale. Security weighs heaviest, monitoring least.
func (s *Server) OptimizationScore() int {
	const (
		wOS         = 20
		wSecurity   = 35
		wBackup     = 25
		wMonitoring = 20
	)
	total := osScores[s.Config.OS]*wOS +
		securityScores[s.Config.Security]*wSecurity +
		backupScores[s.Config.Backup]*wBackup +
		monitoringScores[s.Config.Monitoring]*wMonitoring
	return total / (wOS + wSecurity + wBackup + wMonitoring)
}

func (s *Server) attach(vm *VM) {
	s.VMs = append(s.VMs, vm)
}

func (s *Server) detach(vmID string) *VM {
	for i, vm := range s.VMs {
		if vm.ID == vmID {
			s.VMs = append(s.VMs[:i], s.VMs[i+1:]...)
			return vm
		}
	}
	return nil
}

// ServerView is the capacity projection served over the API.
type ServerView struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Capacity          ResourceShape `json:"capacity"`
	Free              ResourceShape `json:"free"`
	SlotCostCents     int64         `json:"slot_cost_cents"`
	OptimizationScore int           `json:"optimization_score"`
	VMs               []VM          `json:"vms"`
}
