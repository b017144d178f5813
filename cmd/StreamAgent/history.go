package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/BTreeMap/StreamAgent/internal/config"
	"github.com/BTreeMap/StreamAgent/internal/history"
	"github.com/BTreeMap/StreamAgent/internal/models"
	"github.com/BTreeMap/StreamAgent/internal/store"
	"github.com/spf13/cobra"
)

const defaultHistoryLimit = 20

func newHistoryCmd(flags *Flags) *cobra.Command {
	var agentName string
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print stored cycles and their statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			characters, err := config.LoadCharacters(flags.characters)
			if err != nil {
				return err
			}
			st, err := store.Open(buildStoreOptions(flags)...)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			agentID := resolveAgentID(agentName, characters)
			records, err := st.ListCycles(cmd.Context(), agentID, limit)
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().StringVar(&agentName, "agent", "", "character name or agent id; empty shows every agent")
	cmd.Flags().IntVar(&limit, "limit", defaultHistoryLimit, "number of most recent cycles to show")
	return cmd
}

// resolveAgentID maps a character name onto its agent id. Unknown values
// are taken to be agent ids already.
func resolveAgentID(name string, characters []models.Character) string {
	if name == "" {
		return ""
	}
	for _, c := range characters {
		if strings.EqualFold(c.Name, name) || c.AgentID() == name {
			return c.AgentID()
		}
	}
	return name
}

func taskNames(outcomes []models.TaskOutcome) string {
	if len(outcomes) == 0 {
		return "-"
	}
	names := make([]string, len(outcomes))
	for i, o := range outcomes {
		names[i] = string(o.Name)
	}
	return strings.Join(names, ",")
}

func printHistory(w io.Writer, records []models.CycleRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No cycles recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CYCLE\tAGENT\tSTATUS\tSTARTED\tDURATION\tCOMPLETED\tFAILED")
	for _, c := range records {
		duration := "-"
		if c.DurationMs != nil {
			duration = fmt.Sprintf("%.2fs", float64(*c.DurationMs)/1000)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.AgentID, c.Status, c.StartTime.Format("2006-01-02 15:04:05"), duration,
			taskNames(c.Completed), taskNames(c.Failed))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	stats := history.Compute(records)
	fmt.Fprintf(w, "\nCycles: %d\nAverage cycle duration: %.2fs\n", stats.TotalCycles, stats.AverageCycleDurationMs/1000)

	names := make([]string, 0, len(stats.TaskSuccessRates))
	for name := range stats.TaskSuccessRates {
		names = append(names, string(name))
	}
	sort.Strings(names)
	fmt.Fprintln(w, "Task success rates:")
	for _, name := range names {
		r := stats.TaskSuccessRates[models.TaskName(name)]
		fmt.Fprintf(w, "  %s: %s (%d ok, %d failed)\n", name, r.Rate, r.Success, r.Failed)
	}
	fmt.Fprintln(w, "Most time consuming:")
	for _, t := range stats.MostTimeConsuming {
		fmt.Fprintf(w, "  %s: %.2fs total, %.2fs average over %d runs\n",
			t.TaskName, float64(t.TotalDurationMs)/1000, t.AverageDurationMs/1000, t.ExecutionCount)
	}
	return nil
}
