// Guard and audit commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/projguard/internal/guard"
	"github.com/fyrsmithlabs/projguard/internal/validate"
)

var (
	// guardProject is the asserted project identity
	guardProject string
	// guardOverride proceeds despite a mismatch or ambiguity
	guardOverride bool
	// auditLimit caps how many audit entries to show
	auditLimit int
)

func init() {
	rootCmd.AddCommand(guardCmd)
	rootCmd.AddCommand(auditCmd)

	guardCmd.Flags().StringVar(&guardProject, "project", "", "asserted project identity")
	guardCmd.Flags().BoolVar(&guardOverride, "override", false, "proceed despite mismatch or ambiguity (audited)")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 20, "maximum entries to show (0 for all)")
}

var guardCmd = &cobra.Command{
	Use:   "guard <operation> [-- command args...]",
	Short: "Run the identity safeguard before an operation",
	Long: `Guard validates project identity for <operation> and refuses when the
asserted identity conflicts with what detection finds. A command after
"--" runs only if the gate lets the operation proceed, so automation
can wrap arbitrary tools:

  projguard guard deploy --project alpha -- make push

Exits 0 when the operation proceeded, 2 when it was refused, and 1 on
other errors. Every invocation is audited, refusals included.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGuard,
}

func runGuard(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	operation := args[0]

	var wrapped []string
	if at := cmd.ArgsLenAtDash(); at >= 0 {
		if at != 1 {
			return fmt.Errorf("exactly one operation name must precede --")
		}
		wrapped = args[1:]
	} else if len(args) > 1 {
		return fmt.Errorf("unexpected arguments after operation (use -- to wrap a command)")
	}

	dctx, err := detectionContext("")
	if err != nil {
		return err
	}

	var opts []guard.Option
	if guardOverride {
		opts = append(opts, guard.WithOverride())
	}

	proceed := func(ctx context.Context) error {
		if len(wrapped) == 0 {
			return nil
		}
		child := exec.CommandContext(ctx, wrapped[0], wrapped[1:]...)
		child.Stdin = os.Stdin
		child.Stdout = os.Stdout
		child.Stderr = os.Stderr
		return child.Run()
	}

	res, err := a.gate.Run(cmd.Context(), operation, guardProject, dctx, proceed, opts...)

	// An ambiguous refusal at a terminal gets the resolution menu: the
	// user picks a candidate, confirms, and the gate re-runs with an
	// explicit, audited override. Declining keeps the refusal.
	var refusal *guard.RefusalError
	if errors.As(err, &refusal) && refusal.Classification == validate.Ambiguous && a.prompter != nil && !guardOverride {
		chosen, confirmed, rerr := a.flow.ResolveAndConfirm(cmd.Context(), operation, res.Candidates)
		if rerr != nil {
			return rerr
		}
		if confirmed {
			res, err = a.gate.Run(cmd.Context(), operation, chosen, dctx, proceed, guard.WithOverride())
		}
	}
	if err != nil {
		return err
	}

	fmt.Fprint(os.Stderr, renderGuardResult(res))
	return nil
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent safeguard decisions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		entries, err := a.log.List(auditLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("no audit entries")
			return nil
		}
		fmt.Print(renderAudit(entries))
		return nil
	},
}
