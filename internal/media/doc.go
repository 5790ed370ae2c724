// Package media materializes audio assets from trimming decisions:
// compacted+time-scaled exports, speed-only exports, and low-bitrate
// upload compression. Produced assets are caller-owned temp files.
package media
