// Package audio handles decoding of source recordings into mono waveforms,
// PCM16 WAV encoding of produced assets, and sample-rate conversion used
// by the media pipeline.
package audio
