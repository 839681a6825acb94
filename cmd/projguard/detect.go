// Detection commands: detect (dry-run classification) and validate
// (classify an asserted identity).
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/projguard/internal/guard"
	"github.com/fyrsmithlabs/projguard/internal/validate"
)

var (
	// detectDir overrides the directory to detect from
	detectDir string
)

func init() {
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(validateCmd)

	detectCmd.Flags().StringVar(&detectDir, "dir", "", "directory to detect from (default: current directory)")
	validateCmd.Flags().StringVar(&detectDir, "dir", "", "directory to detect from (default: current directory)")
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect which project the current context belongs to",
	Long: `Detect ranks registered projects against the current working
directory, git remote, and any declared name, without mutating
anything. It is the dry-run form of validation.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		snap, err := a.store.Load()
		if err != nil {
			return err
		}

		dctx, err := detectionContext(detectDir)
		if err != nil {
			return err
		}

		candidates := a.detector.Detect(snap, dctx)
		classification := validate.Classify("", candidates, a.cfg.Validate)
		fmt.Print(renderDetection(dctx, candidates, classification))
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <asserted-name>",
	Short: "Validate an asserted project identity against this context",
	Long: `Validate classifies the relationship between the asserted identity
and what detection finds here: MATCH, MISMATCH, AMBIGUOUS,
LOW_CONFIDENCE, or UNKNOWN.

Exits 0 on MATCH (and on the advisory LOW_CONFIDENCE and UNKNOWN
outcomes), 2 on MISMATCH or AMBIGUOUS.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		asserted := args[0]

		snap, err := a.store.Load()
		if err != nil {
			return err
		}

		dctx, err := detectionContext(detectDir)
		if err != nil {
			return err
		}

		candidates := a.detector.Detect(snap, dctx)
		classification := validate.ClassifyAgainst(asserted, candidates, a.cfg.Validate, snap)
		fmt.Print(renderDetection(dctx, candidates, classification))

		switch classification {
		case validate.Ambiguous:
			// At a terminal, let the user resolve the tie; resolving
			// to the asserted identity clears the refusal.
			if a.prompter != nil {
				chosen, rerr := a.flow.ResolveAmbiguous(cmd.Context(), candidates)
				if rerr == nil {
					fmt.Printf("resolved to %s\n", chosen)
					if rec, gerr := snap.Get(chosen); gerr == nil && rec.Matches(asserted) {
						return nil
					}
				}
			}
			return &guard.RefusalError{
				Operation:      "validate",
				Asserted:       asserted,
				Classification: classification,
				Candidates:     candidates,
			}
		case validate.Mismatch:
			return &guard.RefusalError{
				Operation:      "validate",
				Asserted:       asserted,
				Classification: classification,
				Candidates:     candidates,
			}
		}
		return nil
	},
}
