// Package engine orchestrates a trimming pass over one recording:
// analysis, segment map construction, asset materialization and the
// transcription round trip with timestamp remapping. The engine holds no
// mutable per-pass state; concurrent passes for different recordings are
// safe.
package engine
