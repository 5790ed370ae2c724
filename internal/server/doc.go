// Package server implements the HTTP API: processing endpoints for
// analysis, trimming, compression and transcription, plus
// monitoring/management endpoints.
package server
