// Package unsafehelpers collects the `unsafe` conversion helpers used by
// chtable's hashers so they are easy to audit in one place. The one other
// direct use of `unsafe` is shard.Addr in internal/shard. Every helper is
// documented with clear pre-/post-conditions.
//
// DISCLAIMER: these helpers deliberately break the Go memory-safety model
// for the sake of zero-allocation conversions. Use ONLY inside this
// repository; they are not part of the public API and may change without
// notice. Misuse will lead to subtle data races or garbage-collector
// corruption.
//
// All functions are go:linkname-free, cgo-free and pure Go.
//
// © 2025 chtable authors. MIT License.
package unsafehelpers

import "unsafe"

/* -------------------------------------------------------------------------
   1. Zero-copy string/[]byte conversions
   ------------------------------------------------------------------------- */

// BytesToString converts a mutable byte slice to an immutable string without
// allocating. The caller must guarantee that b will never be modified for
// the lifetime of the resulting string; otherwise the program exhibits
// undefined behaviour.
func BytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// StringToBytes re-interprets string data as a byte slice using
// unsafe.Pointer. The slice MUST remain read-only; writing to it mutates
// immutable string storage and is undefined behaviour.
func StringToBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	strHdr := (*[2]uintptr)(unsafe.Pointer(&s))
	return unsafe.Slice((*byte)(unsafe.Pointer(strHdr[0])), strHdr[1])
}

/* -------------------------------------------------------------------------
   2. Scalar-key byte view
   ------------------------------------------------------------------------- */

// ScalarBytes returns a []byte view over the in-memory representation of any
// fixed-size, non-pointer-containing value. Used by the default hasher to
// hash scalar key types (integers, fixed arrays) without reflection.
func ScalarBytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}

/* -------------------------------------------------------------------------
   3. Alignment helpers
   ------------------------------------------------------------------------- */

// AlignUp rounds x up to the nearest multiple of align (which must be a
// power of two).
func AlignUp(x, align uintptr) uintptr {
	return (x + align - 1) &^ (align - 1)
}

// IsPowerOfTwo returns true if x is a power of two (exactly one bit set).
func IsPowerOfTwo(x uintptr) bool {
	return x != 0 && (x&(x-1)) == 0
}

// NextPowerOfTwo returns the smallest power of two >= x (x must be > 0).
func NextPowerOfTwo(x uint64) uint64 {
	if x == 0 {
		return 1
	}
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	return x + 1
}
