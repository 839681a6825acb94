// Terminal rendering for list, show, detect, guard, and audit output.
package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/projguard/internal/audit"
	"github.com/fyrsmithlabs/projguard/internal/detect"
	"github.com/fyrsmithlabs/projguard/internal/guard"
	"github.com/fyrsmithlabs/projguard/internal/registry"
	"github.com/fyrsmithlabs/projguard/internal/validate"
)

// Lipgloss styles
var (
	// Section title style - bold bright cyan
	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	// Label style - dim cyan
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	// Value style - bright white
	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	// Dim style - for secondary info
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	// Status styles
	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("46")).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

func classificationStyle(c validate.Classification) lipgloss.Style {
	switch c {
	case validate.Match:
		return okStyle
	case validate.LowConfidence, validate.Unknown:
		return warnStyle
	default:
		return errStyle
	}
}

func renderProjectList(records []*registry.Record, active string) string {
	var b strings.Builder
	for _, rec := range records {
		marker := "  "
		if strings.EqualFold(rec.CanonicalName, active) {
			marker = okStyle.Render("* ")
		}
		fmt.Fprintf(&b, "%s%s  %s", marker,
			valueStyle.Render(rec.CanonicalName),
			dimStyle.Render(rec.RootPath))
		if len(rec.Aliases) > 0 {
			fmt.Fprintf(&b, "  %s", dimStyle.Render("("+strings.Join(rec.Aliases, ", ")+")"))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func renderDetection(dctx detect.Context, candidates []detect.Candidate, classification validate.Classification) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("context:"), dctx.WorkingDir)
	if dctx.RemoteIdentifier != "" {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("remote:"), dctx.RemoteIdentifier)
	}
	if dctx.DeclaredName != "" {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("declared:"), dctx.DeclaredName)
	}

	if len(candidates) == 0 {
		fmt.Fprintf(&b, "%s\n", dimStyle.Render("no candidates"))
	}
	for i, c := range candidates {
		fmt.Fprintf(&b, "%2d. %s  %s\n", i+1,
			valueStyle.Render(c.Name),
			dimStyle.Render(fmt.Sprintf("%.2f", c.Confidence)))
		for _, sig := range c.Signals {
			fmt.Fprintf(&b, "      %s\n",
				dimStyle.Render(fmt.Sprintf("%s %.2f %s", sig.Kind, sig.Score, sig.Detail)))
		}
	}

	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("classification:"),
		classificationStyle(classification).Render(string(classification)))
	return b.String()
}

func renderShow(active *registry.Record, missingMarkers []string, dctx detect.Context, candidates []detect.Candidate, classification validate.Classification) string {
	var b strings.Builder

	b.WriteString(sectionStyle.Render("Active project") + "\n")
	if active == nil {
		b.WriteString(dimStyle.Render("none") + "\n")
	} else {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("name:"), valueStyle.Render(active.CanonicalName))
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("root:"), active.RootPath)
		if active.RemoteIdentifier != "" {
			fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("remote:"), active.RemoteIdentifier)
		}
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("last active:"),
			dimStyle.Render(active.LastActiveAt.Format(time.RFC3339)))
		if len(missingMarkers) > 0 {
			fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("health:"),
				warnStyle.Render("missing markers: "+strings.Join(missingMarkers, ", ")))
		} else if len(active.ExpectedMarkers) > 0 {
			fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("health:"), okStyle.Render("all markers present"))
		}
	}

	b.WriteString("\n" + sectionStyle.Render("Detected context") + "\n")
	b.WriteString(renderDetection(dctx, candidates, classification))
	return b.String()
}

func renderGuardResult(res *guard.Result) string {
	var b strings.Builder

	decision := string(res.Decision)
	switch res.Decision {
	case guard.DecisionProceed, guard.DecisionUnguarded:
		decision = okStyle.Render(decision)
	case guard.DecisionWarn, guard.DecisionOverride:
		decision = warnStyle.Render(decision)
	default:
		decision = errStyle.Render(decision)
	}

	fmt.Fprintf(&b, "%s %s", labelStyle.Render(res.Operation+":"), decision)
	if res.Classification != "" {
		fmt.Fprintf(&b, " %s", dimStyle.Render("("+string(res.Classification)+")"))
	}
	b.WriteByte('\n')
	return b.String()
}

func renderAudit(entries []audit.Entry) string {
	var b strings.Builder
	for _, e := range entries {
		line := fmt.Sprintf("%s  %-18s %-14s %s",
			dimStyle.Render(e.Timestamp.Format("2006-01-02 15:04:05")),
			e.Operation, e.Classification, e.Decision)
		if e.OverrideUsed {
			line += "  " + warnStyle.Render("override")
		}
		if e.AssertedProject != "" {
			line += "  " + dimStyle.Render("asserted="+e.AssertedProject)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
