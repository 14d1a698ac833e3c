package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var cfgFile string
var verbose bool
var traceFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rotcurve",
	Short: "Bayesian fits of galactic rotation curves",
	Long: `rotcurve fits mass models of the Milky Way to rotation curve data.
Among other features:

  - Reading rotation curve and systematic error tables
  - A maximum likelihood search followed by an ensemble MCMC sampler
  - Saving the chains (optionally zstd compressed) for later summaries
`,
	SilenceUsage: true,
}

// startupParams carries what every command needs: where to write and
// whether to be chatty about it.
type startupParams struct {
	verbose   bool
	traceFile string

	out    *log.Logger
	trace  *log.Logger
	report io.Writer

	traceCloser io.Closer
}

func newStartupParams() (*startupParams, error) {
	sp := &startupParams{
		verbose:   verbose,
		traceFile: traceFile,
		out:       log.New(os.Stderr, "", log.LstdFlags),
		report:    os.Stdout,
	}

	if len(sp.traceFile) > 0 {
		f, err := os.Create(sp.traceFile)
		if err != nil {
			return nil, errors.Wrapf(err, "Could not create trace file %s", sp.traceFile)
		}
		sp.trace = log.New(f, "", log.Lmicroseconds)
		sp.traceCloser = f
	} else if sp.verbose {
		sp.trace = log.New(os.Stderr, "TRACE ", log.Lmicroseconds)
	} else {
		sp.trace = log.New(io.Discard, "", 0)
	}

	return sp, nil
}

// Close flushes the trace file if there is one
func (sp *startupParams) Close() error {
	if sp.traceCloser == nil {
		return nil
	}
	err := sp.traceCloser.Close()
	sp.traceCloser = nil
	return err
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "dotenv config file with ROTCURVE_* settings")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging (default is much more parsimonious)")
	rootCmd.PersistentFlags().StringVarP(&traceFile, "trace", "t", "", "Write per-step trace output to this file")

	rootCmd.AddCommand(fitCmd)
	rootCmd.AddCommand(summaryCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
