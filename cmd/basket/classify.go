package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/srg/basket/internal/proximity"
)

// classifyCmd represents the classify command
var classifyCmd = &cobra.Command{
	Use:   "classify [rssi...]",
	Short: "Classify RSSI readings into proximity bands",
	Long: `Print the proximity band of each RSSI reading and whether it counts as
in the basket. Readings come from the arguments or, when there are none,
one per line from standard input. Put -- before negative readings so they
are not taken for flags.`,
	Example: `  basket classify -- -90 -75 -55 -40
  echo -42 | basket classify`,
	RunE: runClassify,
}

func runClassify(cmd *cobra.Command, args []string) error {
	readings, err := parseReadings(args, cmd.InOrStdin())
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true
	return printClassification(cmd.OutOrStdout(), readings)
}

func parseReadings(args []string, in io.Reader) ([]int, error) {
	if len(args) == 0 {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				args = append(args, line)
			}
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("failed to read readings: %w", err)
		}
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: no readings given", ErrInvalidReading)
	}

	readings := make([]int, 0, len(args))
	for _, arg := range args {
		r, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidReading, arg)
		}
		readings = append(readings, r)
	}
	return readings, nil
}

func printClassification(out io.Writer, readings []int) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RSSI\tIN BASKET\tBAND")
	for _, r := range readings {
		band, goal := proximity.Classify(proximity.Reading(r))
		fmt.Fprintf(w, "%d\t%s\t%s\n", r, yesNo(goal), colorBand(band))
	}
	return w.Flush()
}
