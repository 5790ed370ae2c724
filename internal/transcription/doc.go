// Package transcription implements the HTTP client for the remote
// transcription API. It uploads materialized audio assets as multipart
// form data with retry, exponential backoff and concurrency limiting, and
// returns word-level timestamps in the uploaded asset's own timeline.
package transcription
