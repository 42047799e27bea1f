// Command vibranium is the package manager for the WACC language.
//
// Configuration is loaded from environment variables:
//   - WACC_HOME: WACC compiler installation (required)
//   - VIBRANIUM_API: install API of the WACCANDA server (optional,
//     defaults to http://localhost:3000/api/)
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/bogdansurdu/vibranium-waccanda/internal/cli"
	"github.com/bogdansurdu/vibranium-waccanda/internal/client"
	"github.com/bogdansurdu/vibranium-waccanda/internal/project"
)

// CLI exit codes.
const (
	ExitSuccess         = 0
	ExitGeneralError    = 1
	ExitInvalidArgs     = 2
	ExitPackageNotFound = 3
	ExitPackageMissing  = 4
	ExitNetworkError    = 5
	ExitRejected        = 6
	ExitNotInitialised  = 7
)

func main() {
	if os.Getenv("WACC_HOME") == "" {
		fmt.Fprintln(os.Stderr, "ERROR: $WACC_HOME environment variable not set! Is the WACC compiler installed correctly?")
		os.Exit(ExitGeneralError)
	}

	api := os.Getenv("VIBRANIUM_API")
	if api == "" {
		api = client.DefaultAPI
	}

	cmd := cli.NewCommand(cli.Config{API: api})
	if err := cmd.Execute(); err != nil {
		os.Exit(exitCodeFromError(err))
	}
}

// exitCodeFromError maps error types to exit codes.
func exitCodeFromError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, client.ErrPackageNotFound):
		return ExitPackageNotFound
	case errors.Is(err, client.ErrPackageMissing):
		return ExitPackageMissing
	case errors.Is(err, client.ErrNetwork):
		return ExitNetworkError
	case errors.Is(err, client.ErrRejected):
		return ExitRejected
	case errors.Is(err, project.ErrNotInitialised), errors.Is(err, project.ErrNoManifest):
		return ExitNotInitialised
	case errors.Is(err, project.ErrInvalidName):
		return ExitInvalidArgs
	default:
		return ExitGeneralError
	}
}
