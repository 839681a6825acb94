// Registry management commands: list, add, remove, switch, show.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/projguard/internal/detect"
	"github.com/fyrsmithlabs/projguard/internal/marker"
	"github.com/fyrsmithlabs/projguard/internal/registry"
	"github.com/fyrsmithlabs/projguard/internal/validate"
)

var (
	// addName overrides the canonical name derived from the path
	addName string
	// addAliases are extra names detection should recognize
	addAliases []string
	// addMarkers are expected structural markers
	addMarkers []string
	// addRemote overrides the discovered git remote
	addRemote string
	// addInit writes a .projguard.toml manifest at the project root
	addInit bool
)

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(switchCmd)
	rootCmd.AddCommand(showCmd)

	addCmd.Flags().StringVar(&addName, "name", "", "canonical name (default: directory basename)")
	addCmd.Flags().StringSliceVar(&addAliases, "alias", nil, "alias for this project (repeatable)")
	addCmd.Flags().StringSliceVar(&addMarkers, "marker", nil, "expected marker path relative to the root (repeatable)")
	addCmd.Flags().StringVar(&addRemote, "remote", "", "remote identifier (default: origin URL of the enclosing git repository)")
	addCmd.Flags().BoolVar(&addInit, "init", false, "write a .projguard.toml manifest at the project root")
}

// manifestFor finds the nearest .projguard.toml at or above dir.
func manifestFor(dir string) (*marker.Manifest, string, error) {
	return marker.Find(dir)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered projects",
	Args:  cobra.NoArgs,
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

		records := snap.List()
		if len(records) == 0 {
			fmt.Println("no projects registered")
			return nil
		}
		fmt.Print(renderProjectList(records, snap.ActiveProject()))
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Register a project",
	Long: `Register the project rooted at <path>.

The canonical name defaults to the directory basename; a
.projguard.toml manifest at the root, if present, supplies the name,
aliases, and expected markers unless flags override them.

Examples:
  projguard add .
  projguard add ~/src/alpha --name alpha --alias legacy-alpha
  projguard add . --init`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	root, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return fmt.Errorf("not a directory: %s", root)
	}

	name := addName
	aliases := addAliases
	markers := addMarkers

	manifest, err := marker.Load(root)
	if err != nil {
		return err
	}
	if manifest != nil {
		if name == "" {
			name = manifest.Name
		}
		if len(aliases) == 0 {
			aliases = manifest.Aliases
		}
		if len(markers) == 0 {
			markers = manifest.Markers
		}
	}
	if name == "" {
		name = filepath.Base(root)
	}

	remote := addRemote
	if remote == "" {
		if dctx, err := detect.FromEnvironment(root); err == nil {
			remote = dctx.RemoteIdentifier
		}
	}

	rec, err := registry.NewRecord(name, root)
	if err != nil {
		return err
	}
	rec.Aliases = aliases
	rec.ExpectedMarkers = markers
	rec.RemoteIdentifier = remote

	var warnings []string
	_, err = a.store.Mutate(func(snap *registry.Snapshot) error {
		if err := snap.Add(rec.Clone()); err != nil {
			return err
		}
		warnings = snap.Warnings()
		return nil
	})
	if err != nil {
		return err
	}

	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, warnStyle.Render("warning: "+w))
	}
	fmt.Printf("registered %s at %s\n", rec.CanonicalName, root)

	if addInit {
		m := &marker.Manifest{Name: rec.CanonicalName, Aliases: rec.Aliases, Markers: rec.ExpectedMarkers}
		if err := marker.Write(root, m); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", filepath.Join(root, marker.Filename))
	}
	return nil
}

var removeCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a registered project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		var clearedActive bool
		_, err = a.store.Mutate(func(snap *registry.Snapshot) error {
			cleared, err := snap.Remove(args[0])
			clearedActive = cleared
			return err
		})
		if err != nil {
			return err
		}

		fmt.Printf("removed %s\n", args[0])
		if clearedActive {
			fmt.Println("active project cleared")
		}
		return nil
	},
}

var switchCmd = &cobra.Command{
	Use:   "switch <name-or-alias>",
	Short: "Make a project the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		target := args[0]

		// When the current directory confidently belongs to a
		// different project, confirm before switching away from it.
		// Declining cancels; a cancelled or timed-out prompt does the
		// same.
		if a.prompter != nil {
			if detected, disagrees := switchDisagreement(a, target); disagrees {
				if !a.flow.ConfirmSwitch(cmd.Context(), target, detected) {
					return fmt.Errorf("switch to %q cancelled", target)
				}
			}
		}

		rec, err := a.flow.SwitchProject(cmd.Context(), target)
		if err != nil {
			return err
		}
		fmt.Printf("active project is now %s (%s)\n", rec.CanonicalName, rec.RootPath)
		return nil
	},
}

// switchDisagreement reports whether detection confidently places the
// current directory in a project other than target. Detection failures
// never block a switch.
func switchDisagreement(a *app, target string) (detected string, disagrees bool) {
	dctx, err := detectionContext("")
	if err != nil {
		return "", false
	}
	snap, err := a.store.Load()
	if err != nil {
		return "", false
	}

	candidates := a.detector.Detect(snap, dctx)
	if len(candidates) == 0 || candidates[0].Confidence < a.cfg.Validate.Confident {
		return "", false
	}

	detected = candidates[0].Name
	rec, err := snap.Get(detected)
	if err != nil {
		return "", false
	}
	return detected, !rec.Matches(target)
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active project and the detected context",
	Args:  cobra.NoArgs,
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

		dctx, err := detectionContext("")
		if err != nil {
			return err
		}
		candidates := a.detector.Detect(snap, dctx)
		classification := validate.Classify("", candidates, a.cfg.Validate)

		var active *registry.Record
		var missing []string
		if name := snap.ActiveProject(); name != "" {
			if rec, err := snap.Get(name); err == nil {
				active = rec
				missing = validate.Structure(rec)
			}
		}

		fmt.Print(renderShow(active, missing, dctx, candidates, classification))
		return nil
	},
}
