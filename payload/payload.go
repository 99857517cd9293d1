// Package payload generates the deterministic file body placed inside the
// disk image. The runtime re-derives the same bytes to verify what it read,
// so the generator must stay a pure function of the index.
package payload

// Size is the length of the demo payload in bytes.
const Size = 64

// CheckLen is how many leading bytes the verification worker inspects.
const CheckLen = 8

// Byte returns the payload byte at index i.
func Byte(i int) byte {
	return byte(i)*0x11 + 0x10
}

// Content returns the full payload body.
func Content() []byte {
	buf := make([]byte, Size)
	for i := range buf {
		buf[i] = Byte(i)
	}
	return buf
}
