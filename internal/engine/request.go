package engine

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

const CentsPerCredit = int64(100)

var (
	ErrRequestNotFound   = errors.New("request not found")
	ErrBadTransition     = errors.New("request is not in a state that allows this action")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoCapacity        = errors.New("no server can host the requested shape")
	ErrVMAssigned        = errors.New("vm is already assigned to a request")
	ErrServerNotFound    = errors.New("server not found")
)

// ResourceShape is a vCPU/RAM/disk triple, in cores, GB and GB.
type ResourceShape struct {
	VCPU   int `json:"vcpu"`
	RAMGB  int `json:"ram_gb"`
	DiskGB int `json:"disk_gb"`
}

func (s ResourceShape) Fits(within ResourceShape) bool {
	return s.VCPU <= within.VCPU && s.RAMGB <= within.RAMGB && s.DiskGB <= within.DiskGB
}

func (s ResourceShape) Sub(other ResourceShape) ResourceShape {
	return ResourceShape{
		VCPU:   s.VCPU - other.VCPU,
		RAMGB:  s.RAMGB - other.RAMGB,
		DiskGB: s.DiskGB - other.DiskGB,
	}
}

// RentalPeriod is the billing cadence of a request.
type RentalPeriod string

const (
	PeriodDaily      RentalPeriod = "daily"
	PeriodWeekly     RentalPeriod = "weekly"
	PeriodMonthly    RentalPeriod = "monthly"
	PeriodQuarterly  RentalPeriod = "quarterly"
	PeriodHalfYearly RentalPeriod = "halfyearly"
	PeriodYearly     RentalPeriod = "yearly"
)

type periodSpec struct {
	Days       int
	Multiplier float64
}

// Bulk discount grows sub-linearly with period length.
var periodTable = map[RentalPeriod]periodSpec{
	PeriodDaily:      {Days: 1, Multiplier: 1.0},
	PeriodWeekly:     {Days: 7, Multiplier: 6.5},
	PeriodMonthly:    {Days: 30, Multiplier: 25.0},
	PeriodQuarterly:  {Days: 90, Multiplier: 70.0},
	PeriodHalfYearly: {Days: 180, Multiplier: 130.0},
	PeriodYearly:     {Days: 365, Multiplier: 240.0},
}

func (p RentalPeriod) Valid() bool {
	_, ok := periodTable[p]
	return ok
}

func (p RentalPeriod) Days() int {
	return periodTable[p].Days
}

func (p RentalPeriod) Multiplier() float64 {
	return periodTable[p].Multiplier
}

// CustomerTier orders customers from individuals up to enterprises. Bigger
// customers pay more but judge provisioning quality more leniently.
type CustomerTier int

const (
	TierIndividual CustomerTier = iota
	TierSmallBusiness
	TierMediumBusiness
	TierLargeBusiness
	TierEnterprise
)

var tierNames = map[CustomerTier]string{
	TierIndividual:     "individual",
	TierSmallBusiness:  "small_business",
	TierMediumBusiness: "medium_business",
	TierLargeBusiness:  "large_business",
	TierEnterprise:     "enterprise",
}

func (t CustomerTier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseCustomerTier maps a wire name back to a tier.
func ParseCustomerTier(name string) (CustomerTier, bool) {
	for t, n := range tierNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

// RatingFactor scales provisioning rating deltas per tier.
func (t CustomerTier) RatingFactor() float64 {
	switch t {
	case TierIndividual:
		return 1.2
	case TierSmallBusiness:
		return 1.1
	case TierLargeBusiness:
		return 0.9
	case TierEnterprise:
		return 0.8
	default:
		return 1.0
	}
}

// RequiredMarketingPoints gates which tiers send requests at all.
func (t CustomerTier) RequiredMarketingPoints() int {
	switch t {
	case TierSmallBusiness:
		return 10
	case TierMediumBusiness:
		return 25
	case TierLargeBusiness:
		return 50
	case TierEnterprise:
		return 100
	default:
		return 0
	}
}

// RequestState is the lifecycle state of a customer request.
type RequestState string

const (
	StatePending  RequestState = "pending"
	StateAccepted RequestState = "accepted"
	StateActive   RequestState = "active"
	StateExpired  RequestState = "expired"
	StateArchived RequestState = "archived"
)

// CustomerRequest is one rental request moving through
// pending -> accepted -> active -> expired -> archived.
// Field access is serialized by the owning Engine.
type CustomerRequest struct {
	ID             string        `json:"id"`
	Customer       string        `json:"customer"`
	Tier           CustomerTier  `json:"tier"`
	Shape          ResourceShape `json:"shape"`
	Period         RentalPeriod  `json:"period"`
	TermPeriods    int           `json:"term_periods"`
	BasePriceCents int64         `json:"base_price_cents"`

	State         RequestState `json:"state"`
	PaymentCents  int64        `json:"payment_cents"`
	VMID          string       `json:"vm_id,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	ActivatedAt   time.Time    `json:"activated_at,omitzero"`
	LastPaymentAt time.Time    `json:"last_payment_at,omitzero"`
}

func NewCustomerRequest(customer string, tier CustomerTier, shape ResourceShape, period RentalPeriod, termPeriods int, basePriceCents int64, now time.Time) *CustomerRequest {
	if termPeriods < 1 {
		termPeriods = 1
	}
	return &CustomerRequest{
		ID:             uuid.NewString(),
		Customer:       customer,
		Tier:           tier,
		Shape:          shape,
		Period:         period,
		TermPeriods:    termPeriods,
		BasePriceCents: basePriceCents,
		State:          StatePending,
		CreatedAt:      now,
	}
}

// activate derives the immutable payment amount and stamps the billing clock.
func (r *CustomerRequest) activate(vmID string, now time.Time) {
	r.State = StateActive
	r.VMID = vmID
	r.PaymentCents = int64(math.Round(float64(r.BasePriceCents) * r.Period.Multiplier()))
	r.ActivatedAt = now
	r.LastPaymentAt = now
}

// leaseDuration is the full rental term in simulation time.
func (r *CustomerRequest) leaseDuration(dayLength time.Duration) time.Duration {
	return time.Duration(r.TermPeriods*r.Period.Days()) * dayLength
}
