package provisioner

// Scratch buffer capacities.
const (
	PathBufferSize    = 128
	ContentBufferSize = 8192
)

// Buffer names the scratch buffer WriteBinary appends to.
type Buffer uint8

const (
	BufferFilename Buffer = iota
	BufferFile
)

// String returns the buffer name.
func (b Buffer) String() string {
	switch b {
	case BufferFilename:
		return "Filename"
	case BufferFile:
		return "File"
	default:
		return "unknown"
	}
}

var (
	tagFilename = [2]byte{0xE1, 0x01}
	tagFile     = [2]byte{0xE1, 0x02}
)

// TagFilename returns the Select payload that targets the Filename buffer.
func TagFilename() []byte {
	tag := tagFilename
	return tag[:]
}

// TagFile returns the Select payload that targets the File buffer.
func TagFile() []byte {
	tag := tagFile
	return tag[:]
}

// boundedBuffer is a byte buffer allocated once at a fixed capacity.
type boundedBuffer struct {
	data []byte
}

func newBoundedBuffer(capacity int) boundedBuffer {
	return boundedBuffer{data: make([]byte, 0, capacity)}
}

// append adds p, leaving the buffer untouched if p does not fit.
func (b *boundedBuffer) append(p []byte) bool {
	if len(b.data)+len(p) > cap(b.data) {
		return false
	}
	b.data = append(b.data, p...)
	return true
}

func (b *boundedBuffer) reset() {
	b.data = b.data[:0]
}

func (b *boundedBuffer) len() int {
	return len(b.data)
}

func (b *boundedBuffer) bytes() []byte {
	return b.data
}
