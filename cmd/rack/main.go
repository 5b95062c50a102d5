package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	cl "rackrent/internal/cli"
	"rackrent/internal/config"
	"rackrent/internal/engine"

	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "rack",
		Short:        "Rackrent hosting tycoon client",
		SilenceUsage: true,
	}

	root.AddCommand(
		newCompanyCmd(&apiBase),
		newRequestsCmd(&apiBase),
		newCapacityCmd(&apiBase),
		newSkillsCmd(&apiBase),
		newEventsCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func cmdContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func newCompanyCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "company",
		Short: "Show the company ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).Company(ctx)
			if err != nil {
				return err
			}
			renderCompany(out)
			return nil
		},
	}
}

func newRequestsCmd(apiBase *string) *cobra.Command {
	requests := &cobra.Command{
		Use:     "requests",
		Short:   "Customer request commands",
		Aliases: []string{"req"},
	}
	requests.AddCommand(newRequestsListCmd(apiBase))
	requests.AddCommand(newRequestsShowCmd(apiBase))
	requests.AddCommand(newRequestsSubmitCmd(apiBase))
	requests.AddCommand(newRequestsAcceptCmd(apiBase))
	requests.AddCommand(newRequestsRejectCmd(apiBase))
	requests.AddCommand(newRequestsArchiveCmd(apiBase))
	return requests
}

func newRequestsListCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list [state]",
		Short: "List requests, optionally by state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state := ""
			if len(args) > 0 {
				state = strings.ToLower(strings.TrimSpace(args[0]))
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).ListRequests(ctx, state)
			if err != nil {
				return err
			}
			renderRequests(out)
			return nil
		},
	}
}

func newRequestsShowCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).RequestDetail(ctx, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			renderRequestDetail(out)
			return nil
		},
	}
}

func newRequestsSubmitCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "submit",
		Short: "Submit a request by hand",
		RunE: func(cmd *cobra.Command, args []string) error {
			customer, err := promptRequired("Customer")
			if err != nil {
				return err
			}
			tier, err := promptChoice("Tier", []string{
				"individual", "small_business", "medium_business", "large_business", "enterprise",
			}, "individual")
			if err != nil {
				return err
			}
			shape, err := promptShape()
			if err != nil {
				return err
			}
			period, err := promptChoice("Period", []string{
				"daily", "weekly", "monthly", "quarterly", "halfyearly", "yearly",
			}, "weekly")
			if err != nil {
				return err
			}
			term, err := promptInt("Term (periods)", 1)
			if err != nil {
				return err
			}
			price, err := promptInt64("Base price (credits)", 1)
			if err != nil {
				return err
			}

			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).SubmitRequest(ctx, cl.SubmitRequestInput{
				Customer:         customer,
				Tier:             tier,
				Shape:            shape,
				Period:           period,
				TermPeriods:      term,
				BasePriceCredits: price,
			})
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Request %s submitted.", out.ID))
			return nil
		},
	}
}

func newRequestsAcceptCmd(apiBase *string) *cobra.Command {
	var serverID string
	var vcpu, ram, disk int
	cmd := &cobra.Command{
		Use:   "accept <id>",
		Short: "Accept a pending request and start provisioning",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var provided *engine.ResourceShape
			if vcpu > 0 || ram > 0 || disk > 0 {
				if vcpu <= 0 || ram <= 0 || disk <= 0 {
					return fmt.Errorf("set all of --vcpu, --ram and --disk or none")
				}
				provided = &engine.ResourceShape{VCPU: vcpu, RAMGB: ram, DiskGB: disk}
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			if err := newClient(apiBase).AcceptRequest(ctx, strings.TrimSpace(args[0]), provided, serverID); err != nil {
				return err
			}
			printSuccess("Request accepted; provisioning started.")
			return nil
		},
	}
	cmd.Flags().StringVar(&serverID, "server", "", "pin a specific server")
	cmd.Flags().IntVar(&vcpu, "vcpu", 0, "override provided vCPUs")
	cmd.Flags().IntVar(&ram, "ram", 0, "override provided RAM (GB)")
	cmd.Flags().IntVar(&disk, "disk", 0, "override provided disk (GB)")
	return cmd
}

func newRequestsRejectCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			if err := newClient(apiBase).RejectRequest(ctx, strings.TrimSpace(args[0])); err != nil {
				return err
			}
			printSuccess("Request rejected.")
			return nil
		},
	}
}

func newRequestsArchiveCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive an active or expired request (releases its VM)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			if err := newClient(apiBase).ArchiveRequest(ctx, strings.TrimSpace(args[0])); err != nil {
				return err
			}
			printSuccess("Request archived.")
			return nil
		},
	}
}

func newCapacityCmd(apiBase *string) *cobra.Command {
	capacity := &cobra.Command{
		Use:     "capacity",
		Short:   "Rack and server commands",
		Aliases: []string{"cap"},
	}
	capacity.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show servers, VMs and free capacity",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).Capacity(ctx)
			if err != nil {
				return err
			}
			renderCapacity(out)
			return nil
		},
	})
	capacity.AddCommand(newCapacityBuyCmd(apiBase))
	return capacity
}

func newCapacityBuyCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "buy [name]",
		Short: "Buy and rack a new server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			var err error
			if len(args) > 0 {
				name = strings.TrimSpace(args[0])
			} else {
				name, err = promptRequired("Server name")
				if err != nil {
					return err
				}
			}
			shape, err := promptShape()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			srv, err := newClient(apiBase).BuyServer(ctx, name, shape)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Server %s racked for %s credits.", srv.Name, formatCents(srv.SlotCostCents)))
			return nil
		},
	}
}

func newSkillsCmd(apiBase *string) *cobra.Command {
	skills := &cobra.Command{
		Use:   "skills",
		Short: "Skill tree commands",
	}
	skills.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show skill levels and upgrade costs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).Skills(ctx)
			if err != nil {
				return err
			}
			renderSkills(out)
			return nil
		},
	})
	skills.AddCommand(&cobra.Command{
		Use:   "upgrade <category>",
		Short: "Buy the next level of a skill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category := strings.ToLower(strings.TrimSpace(args[0]))
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			if err := newClient(apiBase).UpgradeSkill(ctx, category); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Upgraded %s.", category))
			return nil
		},
	})
	return skills
}

func newEventsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Show recent world events",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).Events(ctx)
			if err != nil {
				return err
			}
			renderEvents(out)
			return nil
		},
	}
}
