package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/cuemby/forkful/pkg/scale"
	"github.com/spf13/cobra"
)

var scaleCmd = &cobra.Command{
	Use:   "scale [LINE...]",
	Short: "Scale ingredient lines",
	Long: `Scale ingredient lines locally without a server.

Lines are taken from the arguments, or from standard input when none are
given. The leading quantity of each line is multiplied and rendered as a
whole number, a common fraction or a short decimal.

Examples:
  forkful scale --factor 2 "1 1/2 cups flour" "3/4 tsp salt"
  forkful scale --servings 6 --base 4 < ingredients.txt`,
	RunE: runScale,
}

func init() {
	scaleCmd.Flags().Float64("factor", 0, "Scale factor")
	scaleCmd.Flags().Int("servings", 0, "Target number of servings")
	scaleCmd.Flags().Int("base", 0, "Servings the recipe is written for")

	rootCmd.AddCommand(scaleCmd)
}

func runScale(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	factor, _ := flags.GetFloat64("factor")
	servings, _ := flags.GetInt("servings")
	base, _ := flags.GetInt("base")

	switch {
	case flags.Changed("factor") && flags.Changed("servings"):
		return fmt.Errorf("use either --factor or --servings, not both")
	case flags.Changed("servings"):
		if servings <= 0 || base <= 0 {
			return fmt.Errorf("--servings and --base must both be positive")
		}
		factor = scale.ForServings(base, servings)
	case !flags.Changed("factor"):
		return fmt.Errorf("--factor or --servings is required")
	}

	lines := args
	if len(lines) == 0 {
		var err error
		if lines, err = readLines(cmd.InOrStdin()); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	for _, line := range scale.ScaleIngredients(lines, factor) {
		fmt.Fprintln(out, line)
	}
	return nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return lines, nil
}
