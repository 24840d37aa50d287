package capture

import (
	"encoding/binary"
	"errors"
	"io"
)

const wavHeaderSize = 44

// WAVWriter streams PCM16 samples into a RIFF/WAVE container. The sizes
// in the header are patched on Close, so the destination must seek.
type WAVWriter struct {
	w          io.WriteSeeker
	sampleRate int
	channels   int
	dataBytes  uint32
	closed     bool
}

// NewWAVWriter writes a provisional header and returns the writer.
func NewWAVWriter(w io.WriteSeeker, sampleRate, channels int) (*WAVWriter, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, errors.New("capture: invalid wav format")
	}
	ww := &WAVWriter{w: w, sampleRate: sampleRate, channels: channels}
	if err := ww.writeHeader(); err != nil {
		return nil, err
	}
	return ww, nil
}

// WriteSamples appends little-endian PCM16 samples.
func (ww *WAVWriter) WriteSamples(samples []int16) error {
	if ww.closed {
		return io.ErrClosedPipe
	}
	if len(samples) == 0 {
		return nil
	}
	if err := binary.Write(ww.w, binary.LittleEndian, samples); err != nil {
		return err
	}
	ww.dataBytes += uint32(len(samples) * 2)
	return nil
}

// DataBytes returns the number of PCM bytes written.
func (ww *WAVWriter) DataBytes() uint32 { return ww.dataBytes }

// Close rewrites the header with the final sizes.
func (ww *WAVWriter) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	if _, err := ww.w.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := ww.writeHeader(); err != nil {
		return err
	}
	_, err := ww.w.Seek(0, io.SeekEnd)
	return err
}

func (ww *WAVWriter) writeHeader() error {
	blockAlign := uint16(ww.channels * 2)
	h := struct {
		RIFF          [4]byte
		ChunkSize     uint32
		WAVE          [4]byte
		Fmt           [4]byte
		FmtSize       uint32
		AudioFormat   uint16
		Channels      uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Data          [4]byte
		DataSize      uint32
	}{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + ww.dataBytes,
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1,
		Channels:      uint16(ww.channels),
		SampleRate:    uint32(ww.sampleRate),
		ByteRate:      uint32(ww.sampleRate) * uint32(blockAlign),
		BlockAlign:    blockAlign,
		BitsPerSample: 16,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      ww.dataBytes,
	}
	return binary.Write(ww.w, binary.LittleEndian, &h)
}
