package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/linkguardian/internal/config"
	"github.com/nao1215/linkguardian/internal/database"
	"github.com/nao1215/linkguardian/internal/model"
)

// Directions of a comparison.
const (
	directionWorsened  = "worsened"
	directionImproved  = "improved"
	directionUnchanged = "unchanged"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [target]",
		Short: "Show saved scans and what changed between them",
		Long: `History reads the scans stored with --save and shows:
- Links that broke since the previous scan
- Links that were fixed
- Links that appeared or disappeared

By default the latest two scans of the target are compared. The target is
the URL exactly as it was passed to the site or github command.

Examples:
  # Compare the latest two scans of a site
  linkguardian history https://example.com

  # List the saved scans of a site
  linkguardian history --list https://example.com

  # Compare the latest scan with a specific one
  linkguardian history --with-scan-id 3 https://example.com

  # List every target in the database
  linkguardian history --list-targets`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list", "l", false,
		"List the saved scans of the target")
	cmd.Flags().BoolP("list-targets", "L", false,
		"List every target in the database")
	cmd.Flags().Int64P("with-scan-id", "i", 0,
		"Compare the latest scan with the scan of this ID (see --list)")
	cmd.Flags().BoolP("json", "j", false,
		"Output the comparison in JSON format")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory holding the scan history database")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	listTargets, err := cmd.Flags().GetBool("list-targets")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	var target string
	if !listTargets {
		if len(args) == 0 {
			return errors.New("target is required (use --list-targets to see saved targets)")
		}
		target = args[0]
	}

	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if listTargets {
		return listSavedTargets(ctx, out, db)
	}

	list, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if list {
		return listScanHistory(ctx, out, db, target)
	}

	withScanID, err := cmd.Flags().GetInt64("with-scan-id")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	comparison, err := loadComparison(ctx, db, target, withScanID)
	if err != nil {
		return err
	}
	if jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(comparison)
	}
	outputComparisonText(out, comparison)
	return nil
}

func listSavedTargets(ctx context.Context, out io.Writer, db *database.HistoryDB) error {
	targets, err := db.ListTargets(ctx)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		fmt.Fprintln(out, "No saved scans found in the database.")
		fmt.Fprintln(out, "\nUse 'linkguardian site --save <url>' to save a scan.")
		return nil
	}

	fmt.Fprintf(out, "Saved targets (%d):\n\n", len(targets))
	for _, target := range targets {
		fmt.Fprintf(out, "  • %s\n", target)
	}
	fmt.Fprintln(out, "\nUse 'linkguardian history --list <target>' to see the scans of a target.")
	return nil
}

func listScanHistory(ctx context.Context, out io.Writer, db *database.HistoryDB, target string) error {
	metas, err := db.GetScanHistoryWithMetadata(ctx, target)
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		fmt.Fprintf(out, "No saved scans found for %s\n", target)
		return nil
	}

	fmt.Fprintf(out, "Scan history for %s (%d scans):\n\n", target, len(metas))
	fmt.Fprintf(out, "  %-6s  %-20s  %s\n", "ID", "Date", "Links")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 60))
	for _, meta := range metas {
		fmt.Fprintf(out, "  %-6d  %-20s  %s\n",
			meta.ID,
			meta.Timestamp.Local().Format("2006-01-02 15:04:05"),
			formatSummary(meta.Summary),
		)
	}
	fmt.Fprintln(out, "\nUse 'linkguardian history <target>' to compare the latest two scans.")
	return nil
}

// formatSummary renders counts as "3 checked, 1 broken".
func formatSummary(s model.Summary) string {
	if s.Total == 0 {
		return "no links"
	}
	return fmt.Sprintf("%d checked, %d broken", s.Total, s.Broken)
}

// loadComparison compares the latest scan of target with the previous one,
// or with the scan withScanID when it is set.
func loadComparison(ctx context.Context, db *database.HistoryDB, target string, withScanID int64) (*ComparisonResult, error) {
	reports, err := db.GetScanHistory(ctx, target)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("no saved scans found for %s", target)
	}

	current := reports[0]
	var previous *model.ScanReport
	if withScanID > 0 {
		previous, err = db.GetScanReportByID(ctx, withScanID)
		if err != nil {
			return nil, fmt.Errorf("failed to get scan with ID %d: %w", withScanID, err)
		}
		if previous == nil {
			return nil, fmt.Errorf("scan with ID %d not found", withScanID)
		}
		if previous.Target != target {
			return nil, fmt.Errorf("scan ID %d belongs to %s, not %s", withScanID, previous.Target, target)
		}
	} else {
		if len(reports) < 2 {
			return nil, fmt.Errorf("at least 2 scans are required for comparison (found %d)", len(reports))
		}
		previous = reports[1]
	}

	return compareReports(previous, current), nil
}

// ComparisonResult is the difference between two scans of one target.
type ComparisonResult struct {
	Target       string       `json:"target"`
	PreviousScan ScanMetadata `json:"previous_scan"`
	CurrentScan  ScanMetadata `json:"current_scan"`

	// NewlyBroken were OK (or absent) before and are not OK now.
	NewlyBroken []model.LinkCheckResult `json:"newly_broken,omitempty"`

	// Fixed were not OK before and are OK now.
	Fixed []model.LinkCheckResult `json:"fixed,omitempty"`

	// StillBroken counts links that are not OK in both scans.
	StillBroken int `json:"still_broken"`

	// Added and Removed are links present in only one of the scans.
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`

	// Direction is "improved", "worsened" or "unchanged".
	Direction string `json:"direction"`
}

// ScanMetadata summarizes one side of a comparison.
type ScanMetadata struct {
	ID          string    `json:"id"`
	DateScanned time.Time `json:"date_scanned"`
	Total       int       `json:"total"`
	OK          int       `json:"ok"`
	Broken      int       `json:"broken"`
}

func newScanMetadata(r *model.ScanReport) ScanMetadata {
	return ScanMetadata{
		ID:          r.ID,
		DateScanned: r.DateScanned,
		Total:       r.Summary.Total,
		OK:          r.Summary.OK,
		Broken:      r.Summary.Broken,
	}
}

// compareReports matches results by URL. Output lists are sorted by URL.
func compareReports(previous, current *model.ScanReport) *ComparisonResult {
	result := &ComparisonResult{
		Target:       current.Target,
		PreviousScan: newScanMetadata(previous),
		CurrentScan:  newScanMetadata(current),
	}

	before := make(map[string]model.LinkCheckResult, len(previous.Results))
	for _, r := range previous.Results {
		before[r.URL] = r
	}
	after := make(map[string]model.LinkCheckResult, len(current.Results))
	for _, r := range current.Results {
		after[r.URL] = r
	}

	for url, now := range after {
		was, existed := before[url]
		if !existed {
			result.Added = append(result.Added, url)
		}
		switch {
		case !now.IsOK() && (!existed || was.IsOK()):
			result.NewlyBroken = append(result.NewlyBroken, now)
		case !now.IsOK():
			result.StillBroken++
		case existed && !was.IsOK():
			result.Fixed = append(result.Fixed, now)
		}
	}
	for url := range before {
		if _, ok := after[url]; !ok {
			result.Removed = append(result.Removed, url)
		}
	}

	model.SortResults(result.NewlyBroken)
	model.SortResults(result.Fixed)
	sort.Strings(result.Added)
	sort.Strings(result.Removed)

	switch delta := current.Summary.Broken - previous.Summary.Broken; {
	case delta < 0:
		result.Direction = directionImproved
	case delta > 0:
		result.Direction = directionWorsened
	default:
		result.Direction = directionUnchanged
	}
	return result
}

func outputComparisonText(out io.Writer, result *ComparisonResult) {
	fmt.Fprintf(out, "Scan Comparison: %s\n", result.Target)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nStatus: %s\n", formatDirection(result.Direction))
	fmt.Fprintf(out, "\nPrevious scan: %s\n", result.PreviousScan.DateScanned.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Current scan:  %s\n", result.CurrentScan.DateScanned.Local().Format("2006-01-02 15:04:05"))

	fmt.Fprintln(out, "\nLinks:")
	fmt.Fprintf(out, "  %-10s  %-10s  %-10s  %-10s\n", "", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 45))
	fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", "OK",
		result.PreviousScan.OK, result.CurrentScan.OK,
		formatDelta(result.CurrentScan.OK-result.PreviousScan.OK))
	fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", "Broken",
		result.PreviousScan.Broken, result.CurrentScan.Broken,
		formatDelta(result.CurrentScan.Broken-result.PreviousScan.Broken))
	fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", "Total",
		result.PreviousScan.Total, result.CurrentScan.Total,
		formatDelta(result.CurrentScan.Total-result.PreviousScan.Total))

	if len(result.NewlyBroken) > 0 {
		fmt.Fprintf(out, "\nNewly Broken (%d):\n", len(result.NewlyBroken))
		for _, r := range result.NewlyBroken {
			fmt.Fprintf(out, "  [+] %s  %s\n", r.URL, r.Status)
		}
	}
	if len(result.Fixed) > 0 {
		fmt.Fprintf(out, "\nFixed (%d):\n", len(result.Fixed))
		for _, r := range result.Fixed {
			fmt.Fprintf(out, "  [-] %s\n", r.URL)
		}
	}
	if result.StillBroken > 0 {
		fmt.Fprintf(out, "\nStill broken: %d link(s)\n", result.StillBroken)
	}
	if len(result.Added) > 0 || len(result.Removed) > 0 {
		fmt.Fprintf(out, "\nLinks added: %d, removed: %d\n", len(result.Added), len(result.Removed))
	}
}

func formatDirection(direction string) string {
	switch direction {
	case directionImproved:
		return "IMPROVED (fewer broken links)"
	case directionWorsened:
		return "WORSENED (more broken links)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
