package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/HaoruiPeng/massive-mimo-slicing/sim/trace"
)

// readTrace loads outcome records from a CSV or SQLite trace, chosen by extension.
func readTrace(path string) ([]trace.OutcomeRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return trace.ReadCSV(path)
	case ".sqlite3", ".sqlite", ".db":
		records, _, err := trace.ReadSQLite(path)
		return records, err
	default:
		return nil, fmt.Errorf("unrecognized trace extension %q (want .csv or .sqlite3)", filepath.Ext(path))
	}
}

func printSummary(w io.Writer, path string, s *trace.TraceSummary) {
	fmt.Fprintf(w, "=== Trace Summary: %s ===\n", path)
	for _, name := range s.ClassNames() {
		cs := s.Classes[name]
		fmt.Fprintf(w, "--- %s ---\n", name)
		fmt.Fprintf(w, "Requests             : %d\n", cs.Total)
		fmt.Fprintf(w, "Satisfied            : %d\n", cs.Satisfied)
		fmt.Fprintf(w, "Lost                 : %d\n", cs.Lost)
		fmt.Fprintf(w, "Loss rate            : %.6f\n", cs.LossRate)
		fmt.Fprintf(w, "Wait mean            : %.4f ± %.4f (95%% CI)\n", cs.WaitMean, cs.WaitCI95)
		fmt.Fprintf(w, "Wait variance        : %.4f\n", cs.WaitVar)
		fmt.Fprintf(w, "Max wait             : %.4f\n", cs.MaxWait)
	}
}

func printCounters(w io.Writer, m *trace.MemorySink) {
	fmt.Fprintln(w, "=== Trace Counters ===")
	for _, name := range m.CounterNames() {
		fmt.Fprintf(w, "%-21s: %d\n", name, m.Counters[name])
	}
}

// summarizeCmd prints per-class statistics of a recorded outcome trace
var summarizeCmd = &cobra.Command{
	Use:   "summarize <trace.csv|trace.sqlite3>",
	Short: "Summarize a recorded outcome trace",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		records, err := readTrace(args[0])
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		printSummary(os.Stdout, args[0], trace.Summarize(records))
	},
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
}
