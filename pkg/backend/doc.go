// Package backend talks to the downstream model service. It defines the
// Generator contract, an HTTP implementation with connection pooling, and
// a fixed-size worker pool that bounds in-flight downstream calls.
package backend
