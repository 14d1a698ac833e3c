package cmd

import (
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Config file keys and the flag each one fills
var configKeys = []struct {
	key  string
	flag string
}{
	{"ROTCURVE_DATA", "data"},
	{"ROTCURVE_SYSTEMATICS", "systematics"},
	{"ROTCURVE_WALKERS", "walkers"},
	{"ROTCURVE_BURNIN", "burnin"},
	{"ROTCURVE_STEPS", "steps"},
	{"ROTCURVE_SEED", "seed"},
	{"ROTCURVE_WORKERS", "workers"},
	{"ROTCURVE_OUT", "out"},
}

// applyConfig reads a dotenv file and sets every flag of c that the user
// did not give on the command line. Flags c does not have are ignored.
func applyConfig(c *cobra.Command, filename string) error {
	if len(filename) < 1 {
		return nil
	}

	env, err := godotenv.Read(filename)
	if err != nil {
		return errors.Wrapf(err, "Could not READ config file %s", filename)
	}

	flags := c.Flags()
	for _, ck := range configKeys {
		val, ok := env[ck.key]
		if !ok {
			continue
		}
		f := flags.Lookup(ck.flag)
		if f == nil || f.Changed {
			continue
		}
		if err := flags.Set(ck.flag, val); err != nil {
			return errors.Wrapf(err, "Invalid value %q for %s in %s", val, ck.key, filename)
		}
	}

	return nil
}
