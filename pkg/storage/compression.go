package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"

	"github.com/vjranagit/thermotrack/pkg/types"
)

// Compressor handles compression of realized traces
type Compressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCompressor creates a new compressor
func NewCompressor(level int) (*Compressor, error) {
	encLevel := zstd.SpeedDefault
	switch level {
	case 1:
		encLevel = zstd.SpeedFastest
	case 2:
		encLevel = zstd.SpeedDefault
	case 3:
		encLevel = zstd.SpeedBetterCompression
	case 4:
		encLevel = zstd.SpeedBestCompression
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	return &Compressor{
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// CompressValues compresses float64 values using XOR encoding + zstd
func (c *Compressor) CompressValues(values []float64) ([]byte, error) {
	if len(values) == 0 {
		return nil, nil
	}

	buf := new(bytes.Buffer)
	if err := writeXOR(buf, values); err != nil {
		return nil, err
	}

	return c.encoder.EncodeAll(buf.Bytes(), make([]byte, 0, buf.Len())), nil
}

// DecompressValues decompresses count float64 values
func (c *Compressor) DecompressValues(data []byte, count int) ([]float64, error) {
	if len(data) == 0 || count == 0 {
		return nil, nil
	}

	decompressed, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompression failed: %w", err)
	}

	return readXOR(bytes.NewReader(decompressed), count)
}

// CompressSamples packs sample times followed by temperatures, each stream
// XOR encoded, into one zstd frame
func (c *Compressor) CompressSamples(samples []types.Sample) ([]byte, error) {
	if len(samples) == 0 {
		return nil, nil
	}

	times := make([]float64, len(samples))
	temps := make([]float64, len(samples))
	for i, s := range samples {
		times[i] = s.Time
		temps[i] = s.Temperature
	}

	buf := new(bytes.Buffer)
	if err := writeXOR(buf, times); err != nil {
		return nil, err
	}
	if err := writeXOR(buf, temps); err != nil {
		return nil, err
	}

	return c.encoder.EncodeAll(buf.Bytes(), make([]byte, 0, buf.Len())), nil
}

// DecompressSamples reverses CompressSamples
func (c *Compressor) DecompressSamples(data []byte, count int) ([]types.Sample, error) {
	if len(data) == 0 || count == 0 {
		return []types.Sample{}, nil
	}

	decompressed, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompression failed: %w", err)
	}

	r := bytes.NewReader(decompressed)
	times, err := readXOR(r, count)
	if err != nil {
		return nil, fmt.Errorf("failed to read times: %w", err)
	}
	temps, err := readXOR(r, count)
	if err != nil {
		return nil, fmt.Errorf("failed to read temperatures: %w", err)
	}

	samples := make([]types.Sample, count)
	for i := range samples {
		samples[i] = types.Sample{Time: times[i], Temperature: temps[i]}
	}
	return samples, nil
}

// Close closes the compressor resources
func (c *Compressor) Close() {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
}

// writeXOR writes the first value as-is and every later value XORed with
// its predecessor
func writeXOR(buf *bytes.Buffer, values []float64) error {
	prevBits := math.Float64bits(values[0])
	if err := binary.Write(buf, binary.LittleEndian, prevBits); err != nil {
		return err
	}

	for i := 1; i < len(values); i++ {
		currentBits := math.Float64bits(values[i])
		if err := binary.Write(buf, binary.LittleEndian, currentBits^prevBits); err != nil {
			return err
		}
		prevBits = currentBits
	}
	return nil
}

func readXOR(r *bytes.Reader, count int) ([]float64, error) {
	values := make([]float64, count)

	var prevBits uint64
	if err := binary.Read(r, binary.LittleEndian, &prevBits); err != nil {
		return nil, err
	}
	values[0] = math.Float64frombits(prevBits)

	for i := 1; i < count; i++ {
		var xorBits uint64
		if err := binary.Read(r, binary.LittleEndian, &xorBits); err != nil {
			return nil, err
		}
		prevBits ^= xorBits
		values[i] = math.Float64frombits(prevBits)
	}
	return values, nil
}
