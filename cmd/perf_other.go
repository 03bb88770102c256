//go:build !linux

package cmd

func countInstructions(f func() error) (instructions uint64, counted bool, err error) {
	err = f()
	return
}
