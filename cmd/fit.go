package cmd

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/CraigKelly/rotcurve/analysis"
	"github.com/CraigKelly/rotcurve/data"
	"github.com/CraigKelly/rotcurve/model"
	"github.com/CraigKelly/rotcurve/rand"
	"github.com/CraigKelly/rotcurve/sampler"
)

type fitParams struct {
	dataFile    string
	systFile    string
	walkers     int
	burnIn      int
	steps       int
	seed        int64
	workers     int
	outFile     string
	monitorAddr string
}

var fit fitParams

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit the Milky Way mass model to a rotation curve",
	Long: `fit reads a rotation curve and its systematics, finds the maximum
likelihood NFW halo (with fixed disk and bulge and a free R_sun), burns in an
ensemble of walkers around it and runs the production MCMC chain.`,
	RunE: func(c *cobra.Command, args []string) error {
		if err := applyConfig(c, cfgFile); err != nil {
			return err
		}
		if len(fit.dataFile) < 1 || len(fit.systFile) < 1 {
			return errors.New("Both --data and --systematics are required (flag or config file)")
		}

		sp, err := newStartupParams()
		if err != nil {
			return err
		}
		defer sp.Close()

		return runFit(sp, &fit)
	},
}

func init() {
	fitCmd.Flags().StringVarP(&fit.dataFile, "data", "d", "", "Rotation curve file (R, v, sigma-, sigma+)")
	fitCmd.Flags().StringVarP(&fit.systFile, "systematics", "s", "", "Relative systematic error file")
	fitCmd.Flags().IntVarP(&fit.walkers, "walkers", "w", 32, "Number of ensemble walkers (even, at least twice the variable count)")
	fitCmd.Flags().IntVarP(&fit.burnIn, "burnin", "b", 200, "Burn-in steps")
	fitCmd.Flags().IntVarP(&fit.steps, "steps", "n", 1000, "Production MCMC steps")
	fitCmd.Flags().Int64VarP(&fit.seed, "seed", "r", 0, "Random seed to use (0 seeds from the clock)")
	fitCmd.Flags().IntVarP(&fit.workers, "workers", "j", 0, "Likelihood workers (0 is one per CPU)")
	fitCmd.Flags().StringVarP(&fit.outFile, "out", "o", "", "Save the chains here (.json or .json.zst)")
	fitCmd.Flags().StringVarP(&fit.monitorAddr, "monitor", "m", "", "Serve progress with expvar at this address (e.g. :8000)")
}

// Free parameters of the default model
const (
	mvirName = "Mvir"
	cvirName = "cvir"
)

func milkyWayVariables() ([]*analysis.Variable, error) {
	mvir, err := analysis.NewVariable(mvirName, model.DefaultMvir, analysis.FlatPrior(0.1, 100.0))
	if err != nil {
		return nil, err
	}
	cvir, err := analysis.NewVariable(cvirName, model.DefaultCvir, analysis.FlatPrior(1.0, 50.0))
	if err != nil {
		return nil, err
	}
	return []*analysis.Variable{mvir, cvir}, nil
}

// milkyWayBuilder is an NFW halo plus the fixed Miyamoto-Nagai disk and
// Plummer bulge.
func milkyWayBuilder(vars analysis.Variables) (model.RotationCurve, error) {
	mvir, err := vars.Value(mvirName)
	if err != nil {
		return nil, err
	}
	cvir, err := vars.Value(cvirName)
	if err != nil {
		return nil, err
	}

	return model.NewGalaxy(
		model.NewNFW(mvir, cvir),
		model.NewMiyamotoNagai(),
		model.NewPlummer(),
	)
}

func runFit(sp *startupParams, fp *fitParams) error {
	sp.out.Printf("Reading rotation curve from %s (systematics %s)\n", fp.dataFile, fp.systFile)
	ds, err := data.LoadFiles(fp.dataFile, fp.systFile)
	if err != nil {
		return err
	}
	sp.out.Printf("Dataset has %d points from R=%.2f to R=%.2f\n", len(ds), ds[0].R, ds[len(ds)-1].R)

	seed := fp.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sp.out.Printf("Random seed %d\n", seed)
	gen, err := rand.NewGenerator(seed)
	if err != nil {
		return err
	}
	defer gen.Close()

	vars, err := milkyWayVariables()
	if err != nil {
		return err
	}

	var mon *monitor
	if len(fp.monitorAddr) > 0 {
		mon = newMonitor(fp.walkers, fp.burnIn, fp.steps)
		if err = mon.Start(fp.monitorAddr); err != nil {
			return err
		}
		defer mon.Stop()
	}

	progress := func(phase analysis.Phase, s sampler.Step) {
		if mon != nil {
			mon.Update(phase, s)
		}
		if s.DriftReady {
			sp.trace.Printf("%s %d/%d acc=%.3f lnp=%.4f drift=%.4f\n", phase, s.Index+1, s.Total, s.MeanAcceptance, s.MeanLnProb, s.Drift)
		} else {
			sp.trace.Printf("%s %d/%d acc=%.3f lnp=%.4f\n", phase, s.Index+1, s.Total, s.MeanAcceptance, s.MeanLnProb)
		}
	}

	an, err := analysis.New(vars, milkyWayBuilder, ds,
		analysis.WithGenerator(gen),
		analysis.WithWorkers(fp.workers),
		analysis.WithLogger(sp.out),
		analysis.WithProgress(progress),
	)
	if err != nil {
		return err
	}
	sp.out.Printf("Fitting %v with %d walkers: %d burn-in steps, %d MCMC steps\n",
		an.VariableNames(), fp.walkers, fp.burnIn, fp.steps)

	if err = an.MCMCAndBurnIn(fp.walkers, fp.burnIn, fp.steps); err != nil {
		return err
	}

	bundle, err := an.Result()
	if err != nil {
		return err
	}

	if len(fp.outFile) > 0 {
		if err = bundle.Save(fp.outFile); err != nil {
			return err
		}
		sp.out.Printf("Saved run %s to %s\n", bundle.RunID, fp.outFile)
	}

	sums, err := bundle.Summarize(0)
	if err != nil {
		return err
	}
	return writeSummary(sp.report, bundle, sums)
}
