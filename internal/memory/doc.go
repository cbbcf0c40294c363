// Package memory provides memory limit configuration and backpressure for
// batch processing.
//
// ConfigureFromEnv sets GOMEMLIMIT from the container memory limit early in
// startup. Monitor watches heap usage against that limit and pauses batch
// loading when usage crosses the critical water mark; decoded image batches
// are the dominant allocation in this service.
package memory
