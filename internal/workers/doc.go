// Package workers determines worker pool sizes in containerized
// environments.
//
// runtime.NumCPU() reports the host's CPU count even under cgroup limits;
// GOMAXPROCS (Go 1.19+) respects them. The helpers here size pools from
// GOMAXPROCS with a per-workload multiplier, capped by an explicit limit,
// and can be overridden with the INDEX_WORKERS environment variable.
package workers
