package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/chriscow/speech-sdk-go/pkg/audio"
)

const headerSize = 44

// Writer writes WAV files
type Writer struct {
	dst          io.WriteSeeker
	closer       io.Closer
	format       audio.Format
	bytesWritten uint32
}

// Create creates the WAV file filename.
func Create(filename string, format audio.Format) (*Writer, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create WAV file: %w", err)
	}

	w, err := NewWriter(file, format)
	if err != nil {
		file.Close()
		return nil, err
	}
	w.closer = file
	return w, nil
}

// NewWriter writes a provisional header to dst. Sizes are patched on Close.
func NewWriter(dst io.WriteSeeker, format audio.Format) (*Writer, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	w := &Writer{dst: dst, format: format}
	if _, err := dst.Write(header(format, 0)); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	return w, nil
}

// Write appends raw PCM bytes.
func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	w.bytesWritten += uint32(n)
	return n, err
}

// WriteSineWave writes a sine wave of the specified frequency and duration
func (w *Writer) WriteSineWave(frequency float64, durationMs int) error {
	if w.format.BitsPerSample != 16 {
		return fmt.Errorf("sine generation needs 16-bit samples, got %d-bit", w.format.BitsPerSample)
	}
	samplesPerChannel := w.format.SampleRate * durationMs / 1000
	buf := make([]byte, 0, samplesPerChannel*w.format.BlockAlign())

	for i := 0; i < samplesPerChannel; i++ {
		t := float64(i) / float64(w.format.SampleRate)
		sample := int16(math.Sin(2*math.Pi*frequency*t) * 32767 * 0.5) // 50% amplitude
		for ch := 0; ch < w.format.Channels; ch++ {
			buf = binary.LittleEndian.AppendUint16(buf, uint16(sample))
		}
	}

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}
	return nil
}

// WriteSilence writes durationMs of zero samples.
func (w *Writer) WriteSilence(durationMs int) error {
	n := w.format.BlockAlign() * w.format.SampleRate * durationMs / 1000
	if _, err := w.Write(make([]byte, n)); err != nil {
		return fmt.Errorf("failed to write silence: %w", err)
	}
	return nil
}

// Close finalizes the WAV file by updating the header with correct sizes
func (w *Writer) Close() error {
	if w.dst == nil {
		return nil
	}

	if _, err := w.dst.Seek(4, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to chunk size: %w", err)
	}
	if err := binary.Write(w.dst, binary.LittleEndian, w.bytesWritten+headerSize-8); err != nil {
		return fmt.Errorf("failed to write chunk size: %w", err)
	}
	if _, err := w.dst.Seek(40, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to data size: %w", err)
	}
	if err := binary.Write(w.dst, binary.LittleEndian, w.bytesWritten); err != nil {
		return fmt.Errorf("failed to write data size: %w", err)
	}
	w.dst = nil

	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// Encode wraps pcm in a complete in-memory WAV file.
func Encode(format audio.Format, pcm []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(headerSize + len(pcm))
	buf.Write(header(format, uint32(len(pcm))))
	buf.Write(pcm)
	return buf.Bytes()
}

// header renders the canonical 44-byte PCM header.
func header(format audio.Format, dataSize uint32) []byte {
	h := make([]byte, 0, headerSize)
	h = append(h, "RIFF"...)
	h = binary.LittleEndian.AppendUint32(h, dataSize+headerSize-8)
	h = append(h, "WAVE"...)

	h = append(h, "fmt "...)
	h = binary.LittleEndian.AppendUint32(h, 16)
	h = binary.LittleEndian.AppendUint16(h, formatPCM)
	h = binary.LittleEndian.AppendUint16(h, uint16(format.Channels))
	h = binary.LittleEndian.AppendUint32(h, uint32(format.SampleRate))
	h = binary.LittleEndian.AppendUint32(h, uint32(format.AvgBytesPerSec()))
	h = binary.LittleEndian.AppendUint16(h, uint16(format.BlockAlign()))
	h = binary.LittleEndian.AppendUint16(h, uint16(format.BitsPerSample))

	h = append(h, "data"...)
	h = binary.LittleEndian.AppendUint32(h, dataSize)
	return h
}
