package capture

// Chunk is one opaque slice of captured audio (16-bit LE PCM).
type Chunk []byte

// Source defines the interface for audio input implementations.
type Source interface {
	// Open acquires the input device and starts the hardware stream.
	// A permission or device failure surfaces here, before any capture.
	Open() error

	// Read blocks for the next buffer of PCM bytes. After Close it must
	// return an error so an in-flight read cannot stall a stop.
	Read() ([]byte, error)

	// Close stops the stream and releases the device.
	Close() error
}
