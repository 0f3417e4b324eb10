//go:build windows

package hook

import "unsafe"

// readBytes copies n bytes starting at addr into a fresh slice. Used to
// feed the decoder and to capture a prologue before it is overwritten.
func readBytes(addr uintptr, n int) []byte {
	src := unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
	dst := make([]byte, n)
	copy(dst, src)
	return dst
}

// writeBytes copies b into memory starting at addr.
func writeBytes(addr uintptr, b []byte) {
	dst := unsafe.Slice((*byte)(unsafe.Pointer(addr)), len(b))
	copy(dst, b)
}
