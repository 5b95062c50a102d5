package engine

import "sync"

// SkillCategory names one upgrade track.
type SkillCategory string

const (
	SkillRack       SkillCategory = "rack"
	SkillNetwork    SkillCategory = "network"
	SkillEfficiency SkillCategory = "efficiency"
	SkillMarketing  SkillCategory = "marketing"
	SkillSecurity   SkillCategory = "security"
	SkillManagement SkillCategory = "management"
)

const (
	skillStartLevel = 1
	skillMaxLevel   = 4

	// Every marketing upgrade throws in bonus marketing points on top of
	// the multiplier bump.
	marketingUpgradeBonus = 5
)

// Multiplier step per level above 1, by category. Rack has no step; its
// payoff is extra slots.
var skillSteps = map[SkillCategory]float64{
	SkillNetwork:    0.20,
	SkillEfficiency: 0.15,
	SkillMarketing:  0.25,
	SkillSecurity:   0.50,
	SkillManagement: 0.20,
}

var AllSkillCategories = []SkillCategory{
	SkillRack, SkillNetwork, SkillEfficiency, SkillMarketing, SkillSecurity, SkillManagement,
}

func (c SkillCategory) Valid() bool {
	for _, cat := range AllSkillCategories {
		if c == cat {
			return true
		}
	}
	return false
}

// Skills is the per-session upgrade state. Points live on the Company;
// levels live here. Constructed per engine, never shared.
type Skills struct {
	mu      sync.Mutex
	levels  map[SkillCategory]int
	company *Company
}

func NewSkills(company *Company) *Skills {
	levels := make(map[SkillCategory]int, len(AllSkillCategories))
	for _, cat := range AllSkillCategories {
		levels[cat] = skillStartLevel
	}
	return &Skills{levels: levels, company: company}
}

func (s *Skills) Level(cat SkillCategory) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels[cat]
}

// UpgradeCost is the price of the next level: current level + 1 points.
func (s *Skills) UpgradeCost(cat SkillCategory) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels[cat] + 1
}

// Upgrade buys the next level of cat. It fails when the category is maxed
// or the company's skill point balance cannot cover the cost.
func (s *Skills) Upgrade(cat SkillCategory) bool {
	if !cat.Valid() {
		return false
	}
	s.mu.Lock()
	level := s.levels[cat]
	if level >= skillMaxLevel {
		s.mu.Unlock()
		return false
	}
	cost := level + 1
	if !s.company.spendSkillPoints(cost) {
		s.mu.Unlock()
		return false
	}
	s.levels[cat] = level + 1
	s.mu.Unlock()

	if cat == SkillMarketing {
		s.company.AddMarketingPoints(marketingUpgradeBonus)
	}
	return true
}

// RackSlots is how many servers fit in the rack at the current rack level.
func (s *Skills) RackSlots() int {
	return 4 + 2*s.Level(SkillRack)
}

// Multiplier exposes the 1 + level*step scaling consumed by other
// subsystems. Rack (and unknown categories) report 1.0.
func (s *Skills) Multiplier(cat SkillCategory) float64 {
	step, ok := skillSteps[cat]
	if !ok {
		return 1.0
	}
	return 1.0 + float64(s.Level(cat))*step
}

// ProductTierUnlocked gates product groups behind marketing levels 1-4.
func (s *Skills) ProductTierUnlocked(tier int) bool {
	if tier < 1 {
		return true
	}
	if tier > skillMaxLevel {
		return false
	}
	return s.Level(SkillMarketing) >= tier
}

// SkillView is one row of the skill projection.
type SkillView struct {
	Category   SkillCategory `json:"category"`
	Level      int           `json:"level"`
	MaxLevel   int           `json:"max_level"`
	NextCost   int           `json:"next_cost"`
	Multiplier float64       `json:"multiplier"`
}

func (s *Skills) Views() []SkillView {
	out := make([]SkillView, 0, len(AllSkillCategories))
	for _, cat := range AllSkillCategories {
		out = append(out, SkillView{
			Category:   cat,
			Level:      s.Level(cat),
			MaxLevel:   skillMaxLevel,
			NextCost:   s.UpgradeCost(cat),
			Multiplier: s.Multiplier(cat),
		})
	}
	return out
}

func (s *Skills) snapshot() map[SkillCategory]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[SkillCategory]int, len(s.levels))
	for cat, level := range s.levels {
		out[cat] = level
	}
	return out
}

func (s *Skills) restore(levels map[SkillCategory]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cat := range AllSkillCategories {
		level, ok := levels[cat]
		if !ok || level < skillStartLevel {
			level = skillStartLevel
		}
		if level > skillMaxLevel {
			level = skillMaxLevel
		}
		s.levels[cat] = level
	}
}
