package main

import "github.com/spf13/cobra"

type cliError struct {
	Code      int
	Err       error
	ShowUsage bool
	Cmd       *cobra.Command
}

func (e *cliError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

var (
	errExit0 = &cliError{Code: 0}

	// errFollowUp marks a verification run where some registrations are
	// pending or failed and need a human to look at them.
	errFollowUp = &cliError{Code: 3}
)

func usageErr(cmd *cobra.Command, err error) error {
	return &cliError{Code: 2, Err: err, ShowUsage: true, Cmd: cmd}
}

func runtimeErr(cmd *cobra.Command, err error) error {
	return &cliError{Code: 1, Err: err, Cmd: cmd}
}

// exactArgs is cobra.ExactArgs reported as a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageErr(cmd, err)
		}
		return nil
	}
}
