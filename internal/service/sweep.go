package service

import (
	ps "github.com/mitchellh/go-ps"
)

// findBySignature returns the pids of all processes whose executable name
// matches the signature. Enumeration failures yield an empty slice; the
// sweep is best-effort.
func findBySignature(signature string) []int {
	procs, err := ps.Processes()
	if err != nil {
		return nil
	}
	var pids []int
	for _, p := range procs {
		if p.Executable() == signature {
			pids = append(pids, p.Pid())
		}
	}
	return pids
}
