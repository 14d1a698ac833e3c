package analysis

import (
	"io"
	"log"
	"os"

	"github.com/pkg/errors"
)

// Conditions returned (wrapped) by this package. Match them with errors.Is.
var (
	// ErrInvariant is a violated structural requirement: bad variable
	// list, negative position, a builder returning no model, etc.
	ErrInvariant = errors.New("invariant violation")

	// ErrPriorSignature is a prior function that can not be called with a
	// single float argument.
	ErrPriorSignature = errors.New("prior function signature mismatch")

	// ErrNoPrior is returned when a prior is evaluated for a variable
	// without one.
	ErrNoPrior = errors.New("no prior configured")

	// ErrUnknownVariable is a lookup of a name that is not in the
	// variables mapping.
	ErrUnknownVariable = errors.New("unknown variable")

	// ErrBuilderSignature is a model builder that fails when called with
	// the variables mapping.
	ErrBuilderSignature = errors.New("model builder signature mismatch")
)

// Logger receives usage diagnostics that are not errors (e.g. reading an
// unset position). Replace it with SetLogger.
var Logger = log.New(os.Stderr, "analysis: ", log.LstdFlags)

// SetLogger replaces the package diagnostic logger. A nil logger discards
// everything.
func SetLogger(l *log.Logger) {
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	Logger = l
}
