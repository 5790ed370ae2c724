package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/voxnote/trim-audio-service/internal/vad"
)

// Recording is a decoded source asset: a mono waveform with amplitudes in
// [-1, 1] plus the format it was decoded from.
type Recording struct {
	Samples    []float64
	SampleRate int
	Channels   int
	Duration   float64
}

// DecodeFile reads and decodes a WAV file from disk.
func DecodeFile(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file %s: %w", path, err)
	}
	defer f.Close()

	rec, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return rec, nil
}

// Decode decodes a WAV stream of any sample rate, channel count and
// integer bit depth into a mono recording. Multi-channel input is averaged
// sample-by-sample into mono.
func Decode(r io.ReadSeeker) (*Recording, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read PCM data: %w", err)
	}

	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("missing or invalid format chunk")
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count: %d", channels)
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		return nil, fmt.Errorf("unsupported bit depth: %d (16, 24 and 32 are supported)", bitDepth)
	}

	if len(buf.Data) == 0 {
		return nil, fmt.Errorf("no audio data found")
	}

	mono := vad.DownmixMono(toFloat(buf, bitDepth), channels)
	sampleRate := buf.Format.SampleRate

	return &Recording{
		Samples:    mono,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   float64(len(mono)) / float64(sampleRate),
	}, nil
}

// toFloat normalizes integer PCM samples to [-1, 1] floats.
func toFloat(buf *goaudio.IntBuffer, bitDepth int) []float64 {
	scale := float64(int64(1) << (bitDepth - 1))
	out := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		out[i] = float64(v) / scale
	}
	return out
}

// wavHeader is the 44-byte canonical PCM WAV header.
type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// EncodePCM16 encodes a mono waveform into 16-bit PCM WAV. Amplitudes are
// clipped to [-1, 1] before quantization.
func EncodePCM16(samples []float64, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	pcm := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		pcm[i] = int16(s * 32767)
	}

	dataSize := uint32(len(pcm) * 2)
	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)*2))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, pcm); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteWAVFile encodes a mono waveform and writes it to path.
func WriteWAVFile(path string, samples []float64, sampleRate int) error {
	data, err := EncodePCM16(samples, sampleRate)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
