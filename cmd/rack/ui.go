package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	cl "rackrent/internal/cli"
	"rackrent/internal/engine"

	"github.com/fatih/color"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func formatCents(cents int64) string {
	whole := cents / engine.CentsPerCredit
	frac := cents % engine.CentsPerCredit
	if frac < 0 {
		frac = -frac
	}
	return fmt.Sprintf("%d.%02d", whole, frac)
}

func renderCompany(v engine.CompanyView) {
	accent.Printf("%s\n", v.Name)
	neutral.Printf("  balance      %s credits\n", formatCents(v.MoneyCents))
	neutral.Printf("  rating       %.2f / 5\n", v.Rating)
	neutral.Printf("  satisfaction %d / 100\n", v.Satisfaction)
	neutral.Printf("  marketing    %d points\n", v.MarketingPoints)
	neutral.Printf("  skill points %d\n", v.SkillPoints)
	neutral.Printf("  revenue      %s credits\n", formatCents(v.TotalRevenueCents))
	neutral.Printf("  expenses     %s credits\n", formatCents(v.TotalExpensesCents))
	neutral.Printf("  requests     %d completed, %d failed\n", v.CompletedRequests, v.FailedRequests)
}

func renderRequests(requests []engine.CustomerRequest) {
	if len(requests) == 0 {
		neutral.Println("No requests.")
		return
	}
	accent.Printf("%-36s %-22s %-16s %-9s %-10s %s\n",
		"ID", "CUSTOMER", "TIER", "PERIOD", "STATE", "SHAPE")
	for _, r := range requests {
		line := fmt.Sprintf("%-36s %-22s %-16s %-9s %-10s %dc/%dg/%dg",
			r.ID, r.Customer, r.Tier.String(), r.Period, r.State,
			r.Shape.VCPU, r.Shape.RAMGB, r.Shape.DiskGB)
		switch r.State {
		case engine.StatePending:
			warn.Println(line)
		case engine.StateActive:
			success.Println(line)
		case engine.StateExpired, engine.StateArchived:
			neutral.Println(line)
		default:
			fmt.Println(line)
		}
	}
}

func renderRequestDetail(r engine.CustomerRequest) {
	accent.Printf("Request %s\n", r.ID)
	neutral.Printf("  customer  %s (%s)\n", r.Customer, r.Tier.String())
	neutral.Printf("  shape     %d vCPU, %d GB RAM, %d GB disk\n", r.Shape.VCPU, r.Shape.RAMGB, r.Shape.DiskGB)
	neutral.Printf("  period    %s x %d\n", r.Period, r.TermPeriods)
	neutral.Printf("  base      %s credits\n", formatCents(r.BasePriceCents))
	neutral.Printf("  state     %s\n", r.State)
	if r.PaymentCents > 0 {
		neutral.Printf("  payment   %s credits per period\n", formatCents(r.PaymentCents))
	}
	if r.VMID != "" {
		neutral.Printf("  vm        %s\n", r.VMID)
	}
}

func renderCapacity(servers []engine.ServerView) {
	if len(servers) == 0 {
		neutral.Println("The rack is empty. Buy a server with `rack capacity buy`.")
		return
	}
	for _, srv := range servers {
		accent.Printf("%s (%s)\n", srv.Name, srv.ID)
		neutral.Printf("  capacity %d vCPU, %d GB RAM, %d GB disk (score %d)\n",
			srv.Capacity.VCPU, srv.Capacity.RAMGB, srv.Capacity.DiskGB, srv.OptimizationScore)
		neutral.Printf("  free     %d vCPU, %d GB RAM, %d GB disk\n",
			srv.Free.VCPU, srv.Free.RAMGB, srv.Free.DiskGB)
		if len(srv.VMs) == 0 {
			neutral.Println("  no vms")
			continue
		}
		for _, vm := range srv.VMs {
			neutral.Printf("  vm %s %s %s %dc/%dg/%dg\n",
				vm.Name, vm.Address, vm.Status, vm.Shape.VCPU, vm.Shape.RAMGB, vm.Shape.DiskGB)
		}
	}
}

func renderSkills(p cl.SkillsPayload) {
	accent.Printf("Skill points available: %d\n", p.SkillPoints)
	for _, s := range p.Skills {
		next := fmt.Sprintf("next costs %d", s.NextCost)
		if s.Level >= s.MaxLevel {
			next = "maxed"
		}
		neutral.Printf("  %-12s level %d/%d  x%.2f  (%s)\n",
			s.Category, s.Level, s.MaxLevel, s.Multiplier, next)
	}
}

func renderEvents(events []engine.EventOutcome) {
	if len(events) == 0 {
		neutral.Println("Nothing has happened yet.")
		return
	}
	for _, ev := range events {
		line := fmt.Sprintf("[%s] %s", ev.FiredAt.Format("15:04:05"), ev.Description)
		switch ev.Kind {
		case engine.EventPositive:
			success.Println(line)
		case engine.EventNegative:
			danger.Println(line)
		default:
			neutral.Println(line)
		}
	}
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptChoice(label string, options []string, defaultValue string) (string, error) {
	normalized := make(map[string]struct{}, len(options))
	for _, opt := range options {
		normalized[strings.ToLower(strings.TrimSpace(opt))] = struct{}{}
	}
	for {
		fmt.Printf("%s (%s) [%s]: ", label, strings.Join(options, "/"), defaultValue)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" {
			text = strings.ToLower(strings.TrimSpace(defaultValue))
		}
		if _, ok := normalized[text]; ok {
			return text, nil
		}
		printWarn("Invalid option. Please pick one of the listed values.")
	}
}

func promptInt(label string, min int) (int, error) {
	v, err := promptInt64(label, int64(min))
	return int(v), err
}

func promptInt64(label string, min int64) (int64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			printWarn("Enter a whole number.")
			continue
		}
		if v < min {
			printWarn(fmt.Sprintf("Value must be >= %d", min))
			continue
		}
		return v, nil
	}
}

func promptShape() (engine.ResourceShape, error) {
	vcpu, err := promptInt("vCPUs", 1)
	if err != nil {
		return engine.ResourceShape{}, err
	}
	ram, err := promptInt("RAM (GB)", 1)
	if err != nil {
		return engine.ResourceShape{}, err
	}
	disk, err := promptInt("Disk (GB)", 1)
	if err != nil {
		return engine.ResourceShape{}, err
	}
	return engine.ResourceShape{VCPU: vcpu, RAMGB: ram, DiskGB: disk}, nil
}
