package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"coffee-machine-backend/internal/brew"
	"coffee-machine-backend/internal/parse"
)

type checkOptions struct {
	coffee   string
	count    int
	water    int
	cups     int
	beans    int
	power    bool
	supports []string
}

var errCheckFailed = errors.New("brew check failed")

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the brewing precondition checks against an in-memory machine",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		opts := checkOptions{}
		opts.coffee, _ = cmd.Flags().GetString("type")
		opts.count, _ = cmd.Flags().GetInt("count")
		opts.water, _ = cmd.Flags().GetInt("water")
		opts.cups, _ = cmd.Flags().GetInt("cups")
		opts.beans, _ = cmd.Flags().GetInt("beans")
		opts.power, _ = cmd.Flags().GetBool("power")
		opts.supports, _ = cmd.Flags().GetStringSlice("supports")

		err := runCheck(cmd.OutOrStdout(), opts)
		if errors.Is(err, errCheckFailed) {
			cmd.SilenceErrors = true
		}
		return err
	},
}

func init() {
	checkCmd.Flags().StringP("type", "t", string(brew.Espresso), "coffee type to brew")
	checkCmd.Flags().IntP("count", "n", 1, "number of cups")
	checkCmd.Flags().Int("water", 10, "water level in servings")
	checkCmd.Flags().Int("cups", 10, "number of cups available")
	checkCmd.Flags().Int("beans", 10, "bean level in servings")
	checkCmd.Flags().Bool("power", true, "whether the machine has power")
	checkCmd.Flags().StringSlice("supports", []string{string(brew.Espresso)}, "coffee types the machine can brew")
	rootCmd.AddCommand(checkCmd)
}

// runCheck brews opts against a fresh ledger and writes the outcome to out.
// It returns errCheckFailed when any unit was rejected.
func runCheck(out io.Writer, opts checkOptions) error {
	coffee, err := parse.CoffeeType(opts.coffee)
	if err != nil {
		return err
	}
	supported, err := parse.CoffeeTypes(opts.supports)
	if err != nil {
		return err
	}

	ledger := brew.NewLedger(opts.water, opts.cups, opts.beans, opts.power, supported...)
	completed, err := brew.Brew(brew.Request{Type: coffee, Count: opts.count}, ledger)

	fmt.Fprintf(out, "outcome:   %s\n", brew.Code(err))
	fmt.Fprintf(out, "completed: %d/%d\n", completed, opts.count)
	fmt.Fprintf(out, "remaining: water=%d cups=%d beans=%d\n", ledger.Water(), ledger.Cups(), ledger.Beans())
	if err != nil {
		fmt.Fprintf(out, "error:     %v\n", err)
		return errCheckFailed
	}
	return nil
}
