package common

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// It is used to drop plaintext secrets (passwords read from a terminal) from
// memory once they have been hashed.
//
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
