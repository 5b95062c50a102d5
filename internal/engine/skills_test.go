package engine

import "testing"

func TestSkillUpgradeCostLadder(t *testing.T) {
	c := NewCompany("test co", 0)
	c.AddSkillPoints(9) // 2+3+4: exactly enough for levels 2, 3 and 4
	s := NewSkills(c)

	for want := 2; want <= 4; want++ {
		if cost := s.UpgradeCost(SkillNetwork); cost != want {
			t.Fatalf("cost to reach level %d = %d, want %d", want, cost, want)
		}
		if !s.Upgrade(SkillNetwork) {
			t.Fatalf("upgrade to level %d failed", want)
		}
		if got := s.Level(SkillNetwork); got != want {
			t.Fatalf("level = %d, want %d", got, want)
		}
	}
	if got := c.SkillPoints(); got != 0 {
		t.Fatalf("points left = %d, want 0", got)
	}
	c.AddSkillPoints(100)
	if s.Upgrade(SkillNetwork) {
		t.Fatalf("upgrade past max level succeeded")
	}
}

func TestSkillUpgradeFailsWithoutPoints(t *testing.T) {
	c := NewCompany("test co", 0)
	c.AddSkillPoints(1) // level 2 costs 2
	s := NewSkills(c)

	if s.Upgrade(SkillEfficiency) {
		t.Fatalf("upgrade succeeded with insufficient points")
	}
	if got := s.Level(SkillEfficiency); got != 1 {
		t.Fatalf("level = %d, want 1 after failed upgrade", got)
	}
	if got := c.SkillPoints(); got != 1 {
		t.Fatalf("points = %d, want 1 (failed upgrade must not spend)", got)
	}
}

func TestMarketingUpgradeGrantsBonusPoints(t *testing.T) {
	c := NewCompany("test co", 0)
	c.AddSkillPoints(2)
	s := NewSkills(c)

	if !s.Upgrade(SkillMarketing) {
		t.Fatalf("marketing upgrade failed")
	}
	if got := c.MarketingPoints(); got != 5 {
		t.Fatalf("marketing points = %d, want 5", got)
	}
}

func TestRackSlotsScaleWithLevel(t *testing.T) {
	c := NewCompany("test co", 0)
	c.AddSkillPoints(9)
	s := NewSkills(c)

	if got := s.RackSlots(); got != 6 {
		t.Fatalf("slots at level 1 = %d, want 6", got)
	}
	s.Upgrade(SkillRack)
	s.Upgrade(SkillRack)
	if got := s.RackSlots(); got != 10 {
		t.Fatalf("slots at level 3 = %d, want 10", got)
	}
}

func TestSkillMultipliers(t *testing.T) {
	c := NewCompany("test co", 0)
	c.AddSkillPoints(2)
	s := NewSkills(c)

	tests := []struct {
		cat  SkillCategory
		want float64
	}{
		{SkillNetwork, 1.20},
		{SkillEfficiency, 1.15},
		{SkillMarketing, 1.25},
		{SkillSecurity, 1.50},
		{SkillManagement, 1.20},
		{SkillRack, 1.0},
	}
	for _, tc := range tests {
		if got := s.Multiplier(tc.cat); got != tc.want {
			t.Fatalf("%s multiplier = %f, want %f", tc.cat, got, tc.want)
		}
	}

	s.Upgrade(SkillSecurity)
	if got := s.Multiplier(SkillSecurity); got != 2.0 {
		t.Fatalf("security multiplier at level 2 = %f, want 2.0", got)
	}
}

func TestProductTierGating(t *testing.T) {
	c := NewCompany("test co", 0)
	c.AddSkillPoints(2)
	s := NewSkills(c)

	if !s.ProductTierUnlocked(1) {
		t.Fatalf("tier 1 locked at marketing level 1")
	}
	if s.ProductTierUnlocked(2) {
		t.Fatalf("tier 2 unlocked at marketing level 1")
	}
	s.Upgrade(SkillMarketing)
	if !s.ProductTierUnlocked(2) {
		t.Fatalf("tier 2 locked at marketing level 2")
	}
	if s.ProductTierUnlocked(5) {
		t.Fatalf("tier beyond max unlocked")
	}
}
