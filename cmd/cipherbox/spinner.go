package main

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

// startSpinner shows message with a spinner on stderr unless verbose or
// debug output is on. The returned progress func updates the percentage and
// cleanup stops the spinner and prints FinalMSG to stdout.
func (a *app) startSpinner(cmd *cobra.Command, message string) (*spinner.Spinner, func(float64), func()) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
	s.Suffix = " " + message
	if err := s.Color("cyan"); err != nil {
		a.log.Warnf("Failed to set spinner color: %v", err)
	}

	quiet := !a.verbose && !a.debug
	if quiet {
		s.Start()
	} else {
		a.log.Infof("%s", message)
	}

	lastPct := -1
	progress := func(f float64) {
		pct := int(f * 100)
		if pct == lastPct {
			return
		}
		lastPct = pct
		if quiet {
			s.Lock()
			s.Suffix = fmt.Sprintf(" %s %3d%%", message, pct)
			s.Unlock()
		} else {
			a.log.Debugf("%s %d%%", message, pct)
		}
	}

	cleanup := func() {
		final := s.FinalMSG
		s.FinalMSG = ""
		if quiet {
			s.Stop()
		}
		if final != "" {
			fmt.Fprintln(cmd.OutOrStdout(), final)
		}
	}
	return s, progress, cleanup
}
