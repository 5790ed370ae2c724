// Package timeline defines the compacted/original time coordinate types
// and the invertible mapping between them.
package timeline
