// Package wav reads and writes RIFF/WAVE PCM audio.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chriscow/speech-sdk-go/pkg/audio"
)

const (
	formatPCM        = 1
	formatExtensible = 0xFFFE
	unknownDataSize  = 0xFFFFFFFF
)

// ErrNotWave is returned for input that is not a RIFF/WAVE stream.
var ErrNotWave = errors.New("not a RIFF/WAVE stream")

// Header represents a WAV file header
type Header struct {
	ChunkSize     uint32
	SampleRate    uint32
	NumChannels   uint16
	BitsPerSample uint16
	DataSize      uint32
}

// Format converts the header to an audio.Format.
func (h Header) Format() audio.Format {
	return audio.Format{
		Channels:      int(h.NumChannels),
		SampleRate:    int(h.SampleRate),
		BitsPerSample: int(h.BitsPerSample),
	}
}

// Reader streams the PCM payload of a WAV file. It is positioned at the
// first sample after construction and can be rewound.
type Reader struct {
	src       io.ReadSeeker
	closer    io.Closer
	header    Header
	dataStart int64
	remaining int64 // -1 when the data size is unknown
}

// Open opens the WAV file at filename.
func Open(filename string) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}

	r, err := NewReader(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	r.closer = file
	return r, nil
}

// NewReader parses the header of src. Closing the reader does not close src.
func NewReader(src io.ReadSeeker) (*Reader, error) {
	r := &Reader{src: src}
	if err := r.readHeader(); err != nil {
		return nil, fmt.Errorf("failed to read WAV header: %w", err)
	}
	start, err := src.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("failed to locate WAV data: %w", err)
	}
	r.dataStart = start
	r.resetRemaining()
	return r, nil
}

// Header returns the WAV file header information
func (r *Reader) Header() Header {
	return r.header
}

// Format returns the PCM format of the payload.
func (r *Reader) Format() audio.Format {
	return r.header.Format()
}

// Duration returns the playback length, or 0 when the size is unknown.
func (r *Reader) Duration() time.Duration {
	if r.header.DataSize == unknownDataSize {
		return 0
	}
	return r.Format().DurationOf(int(r.header.DataSize))
}

// Read reads PCM bytes. It returns io.EOF at the end of the data chunk.
func (r *Reader) Read(p []byte) (int, error) {
	if r.remaining == 0 {
		return 0, io.EOF
	}
	if r.remaining > 0 && int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}

	n, err := io.ReadFull(r.src, p)
	if r.remaining > 0 {
		r.remaining -= int64(n)
	}
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF):
		r.remaining = 0
		return n, nil
	case errors.Is(err, io.EOF):
		r.remaining = 0
		return n, io.EOF
	case err != nil:
		return n, fmt.Errorf("failed to read audio data: %w", err)
	}
	return n, nil
}

// Rewind positions the reader at the first sample again.
func (r *Reader) Rewind() error {
	if _, err := r.src.Seek(r.dataStart, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind WAV data: %w", err)
	}
	r.resetRemaining()
	return nil
}

// Close closes the WAV file
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

func (r *Reader) resetRemaining() {
	if r.header.DataSize == unknownDataSize {
		r.remaining = -1
		return
	}
	r.remaining = int64(r.header.DataSize)
}

// readHeader reads and validates the WAV file header
func (r *Reader) readHeader() error {
	var riffHeader [12]byte
	if _, err := io.ReadFull(r.src, riffHeader[:]); err != nil {
		return fmt.Errorf("failed to read RIFF header: %w", err)
	}
	if string(riffHeader[0:4]) != "RIFF" || string(riffHeader[8:12]) != "WAVE" {
		return ErrNotWave
	}
	r.header.ChunkSize = binary.LittleEndian.Uint32(riffHeader[4:8])

	if err := r.readFmtChunk(); err != nil {
		return err
	}
	if err := r.readDataChunk(); err != nil {
		return err
	}
	return r.header.Format().Validate()
}

// nextChunk reads a chunk header.
func (r *Reader) nextChunk() (string, uint32, error) {
	var chunkHeader [8]byte
	if _, err := io.ReadFull(r.src, chunkHeader[:]); err != nil {
		return "", 0, fmt.Errorf("failed to read chunk header: %w", err)
	}
	return string(chunkHeader[0:4]), binary.LittleEndian.Uint32(chunkHeader[4:8]), nil
}

// skip moves past a chunk body, including the RIFF pad byte of odd sizes.
func (r *Reader) skip(size uint32) error {
	n := int64(size) + int64(size&1)
	if _, err := r.src.Seek(n, io.SeekCurrent); err != nil {
		return fmt.Errorf("failed to skip chunk: %w", err)
	}
	return nil
}

// readFmtChunk reads the format chunk
func (r *Reader) readFmtChunk() error {
	for {
		id, size, err := r.nextChunk()
		if err != nil {
			return err
		}
		if id != "fmt " {
			if err := r.skip(size); err != nil {
				return err
			}
			continue
		}

		if size < 16 {
			return fmt.Errorf("fmt chunk too small: %d bytes", size)
		}
		var fmtData [16]byte
		if _, err := io.ReadFull(r.src, fmtData[:]); err != nil {
			return fmt.Errorf("failed to read fmt data: %w", err)
		}

		tag := binary.LittleEndian.Uint16(fmtData[0:2])
		if tag != formatPCM && tag != formatExtensible {
			return fmt.Errorf("only PCM format is supported, got format %d", tag)
		}
		r.header.NumChannels = binary.LittleEndian.Uint16(fmtData[2:4])
		r.header.SampleRate = binary.LittleEndian.Uint32(fmtData[4:8])
		r.header.BitsPerSample = binary.LittleEndian.Uint16(fmtData[14:16])

		if size > 16 {
			return r.skip(size - 16)
		}
		return nil
	}
}

// readDataChunk positions the source at the start of audio data.
func (r *Reader) readDataChunk() error {
	for {
		id, size, err := r.nextChunk()
		if err != nil {
			return err
		}
		if id == "data" {
			r.header.DataSize = size
			return nil
		}
		if err := r.skip(size); err != nil {
			return err
		}
	}
}
