// Package vad implements energy-based voice activity detection: per-frame
// RMS analysis, statistical speech/silence classification and speech range
// construction.
package vad
