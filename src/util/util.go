// Package util contains small generic helpers shared across the hooking
// engine: alignment arithmetic and fixed-width little-endian buffer
// accessors for block sizing and patch-literal encoding.
package util

import "unsafe"

// Int is satisfied by all built-in integer types.
type Int interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Min returns the smaller of a and b.
func Min[T Int](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max[T Int](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// Rounddown aligns v down to the nearest multiple of b.
func Rounddown[T Int](v, b T) T {
	return v - (v % b)
}

// Roundup aligns v up to the nearest multiple of b.
func Roundup[T Int](v, b T) T {
	return Rounddown(v+b-1, b)
}

// Readn reads n little-endian bytes from a starting at off and returns the
// value sign-extended into an int64. It panics if the requested region is
// out of bounds or the size is unsupported.
func Readn(a []uint8, n int, off int) int64 {
	if off < 0 || off+n > len(a) {
		panic("util.Readn: out of bounds")
	}
	p := unsafe.Pointer(&a[off])
	switch n {
	case 8:
		return *(*int64)(p)
	case 4:
		return int64(*(*int32)(p))
	case 2:
		return int64(*(*int16)(p))
	case 1:
		return int64(*(*int8)(p))
	default:
		panic("util.Readn: unsupported size")
	}
}

// Writen writes val using sz little-endian bytes into a starting at off. It
// panics if the destination is out of bounds or the size is unsupported.
func Writen(a []uint8, sz int, off int, val int64) {
	if off < 0 || off+sz > len(a) {
		panic("util.Writen: out of bounds")
	}
	p := unsafe.Pointer(&a[off])
	switch sz {
	case 8:
		*(*int64)(p) = val
	case 4:
		*(*int32)(p) = int32(val)
	case 2:
		*(*int16)(p) = int16(val)
	case 1:
		*(*int8)(p) = int8(val)
	default:
		panic("util.Writen: unsupported size")
	}
}
