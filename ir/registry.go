package ir

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// TypeDigest returns a 64-bit structural digest of a type. Two
// structurally identical types produce the same digest regardless of
// which arena entries they live in: handles are followed through the
// module's type arena rather than hashed as indices. Named struct
// member identity is part of the structure, so layout-compatible
// structs with different member names digest differently.
//
// The backend keys wrapped-helper registries on these digests, which
// keeps lookups over unbounded type shapes (nested arrays of structs)
// from building a key string per query.
func TypeDigest(module *Module, inner TypeInner) uint64 {
	d := xxhash.New()
	hashType(d, module, inner)
	return d.Sum64()
}

// ResolutionDigest is TypeDigest applied to a resolved expression type.
func ResolutionDigest(module *Module, res TypeResolution) uint64 {
	return TypeDigest(module, res.Inner(module))
}

func hashType(d *xxhash.Digest, module *Module, inner TypeInner) {
	switch t := inner.(type) {
	case ScalarType:
		hashBytes(d, 0x01, byte(t.Kind), t.Width)
	case VectorType:
		hashBytes(d, 0x02, byte(t.Size))
		hashType(d, module, t.Scalar)
	case MatrixType:
		hashBytes(d, 0x03, byte(t.Columns), byte(t.Rows))
		hashType(d, module, t.Scalar)
	case ArrayType:
		hashBytes(d, 0x04)
		hashArraySize(d, t.Size)
		hashUint32(d, t.Stride)
		hashHandle(d, module, t.Base)
	case StructType:
		hashBytes(d, 0x05)
		hashUint32(d, t.Span)
		hashUint32(d, uint32(len(t.Members)))
		for _, m := range t.Members {
			hashString(d, m.Name)
			hashUint32(d, m.Offset)
			hashHandle(d, module, m.Type)
		}
	case PointerType:
		hashBytes(d, 0x06, byte(t.Space))
		hashHandle(d, module, t.Base)
	case ValuePointerType:
		hashBytes(d, 0x07, byte(t.Space))
		if t.Size != nil {
			hashBytes(d, byte(*t.Size))
		} else {
			hashBytes(d, 0)
		}
		hashType(d, module, t.Scalar)
	case AtomicType:
		hashBytes(d, 0x08)
		hashType(d, module, t.Scalar)
	case SamplerType:
		hashBytes(d, 0x09, boolByte(t.Comparison))
	case ImageType:
		hashBytes(d, 0x0a, byte(t.Dim), boolByte(t.Arrayed), byte(t.Class), boolByte(t.Multisampled), byte(t.Access))
	case BindingArrayType:
		hashBytes(d, 0x0b)
		hashArraySize(d, t.Size)
		hashHandle(d, module, t.Base)
	case AccelerationStructureType:
		hashBytes(d, 0x0c)
	case RayQueryType:
		hashBytes(d, 0x0d)
	default:
		hashString(d, fmt.Sprintf("unknown:%T", inner))
	}
}

func hashHandle(d *xxhash.Digest, module *Module, h TypeHandle) {
	hashType(d, module, module.Types[h].Inner)
}

func hashArraySize(d *xxhash.Digest, size ArraySize) {
	if size.Constant != nil {
		hashBytes(d, 1)
		hashUint32(d, *size.Constant)
	} else {
		hashBytes(d, 0)
	}
}

func hashBytes(d *xxhash.Digest, bs ...byte) {
	_, _ = d.Write(bs)
}

func hashUint32(d *xxhash.Digest, v uint32) {
	hashBytes(d, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func hashString(d *xxhash.Digest, s string) {
	hashUint32(d, uint32(len(s)))
	_, _ = d.WriteString(s)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
