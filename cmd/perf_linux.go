//go:build linux

package cmd

import (
	perf "github.com/hodgesds/perf-utils"
)

// countInstructions runs f under a hardware instruction counter. Hosts
// without perf events access run f uncounted.
func countInstructions(f func() error) (instructions uint64, counted bool, err error) {
	var ranF bool
	run := func() error {
		ranF = true
		return f()
	}
	pv, perr := perf.CPUInstructions(run)
	if !ranF {
		err = f()
		return
	}
	if perr != nil {
		err = perr
		return
	}
	return pv.Value, true, nil
}
