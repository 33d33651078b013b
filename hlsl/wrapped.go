// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/gogpu/hlslgen/ir"
)

// Names of helpers not parameterized by a type.
const (
	BufferLengthFunction          = "NagaBufferLength"
	CommittedIntersectionFunction = "GetCommittedIntersection"
	CandidateIntersectionFunction = "GetCandidateIntersection"
)

// wrappedKey identifies one generated helper function structurally, so
// that two expressions needing the same helper share one emission.
type wrappedKey struct {
	kind   wrappedKind
	digest uint64
	aux    uint64
}

type wrappedKind uint8

const (
	wrappedDiv wrappedKind = iota
	wrappedMod
	wrappedAbs
	wrappedNeg
	wrappedModf
	wrappedFrexp
	wrappedExtractBits
	wrappedInsertBits
	wrappedFloatToInt
	wrappedConstructor
	wrappedStorageLoader
	wrappedImageQuery
	wrappedBufferLength
	wrappedIntersection
	wrappedSetMatCol
	wrappedSetMatEl
	wrappedGetMatMember
)

// ensureWrapper marks a helper as emitted, returning false when it
// already was.
func (w *Writer) ensureWrapper(key wrappedKey, name string) bool {
	if _, ok := w.wrapped[key]; ok {
		return false
	}
	w.wrapped[key] = struct{}{}
	w.wrappedOrder = append(w.wrappedOrder, key)
	w.helperFunctions = append(w.helperFunctions, name)
	return true
}

// constructorName is the generated constructor for a struct or array
// type, used where HLSL has no literal syntax in expression position.
func (w *Writer) constructorName(handle ir.TypeHandle) string {
	return "Construct" + w.typeNames[handle]
}

// writeWrappedFunctions scans a function and emits every helper its
// body will call: guarded integer arithmetic, float-to-int conversion,
// composite constructors and storage loaders, image metadata queries,
// buffer length, ray intersection conversion, and dynamic column
// stores into decomposed matrices.
//
//nolint:gocyclo,cyclop // One trigger per expression kind
func (w *Writer) writeWrappedFunctions(fc *funcCtx) error {
	savedFC := w.fc
	w.fc = fc
	defer func() { w.fc = savedFC }()

	for idx := range fc.fn.Expressions {
		handle := ir.ExpressionHandle(idx)
		var err error
		switch kind := fc.fn.Expressions[handle].Kind.(type) {
		case ir.ExprUnary:
			if kind.Op == ir.UnaryNegate {
				err = w.wrapIntUnary(wrappedNeg, fc.info.ResolvedType(handle))
			}
		case ir.ExprBinary:
			err = w.wrapBinary(handle, kind)
		case ir.ExprMath:
			err = w.wrapMath(handle, kind)
		case ir.ExprAs:
			err = w.wrapConversion(kind)
		case ir.ExprCompose:
			err = w.wrapConstructor(kind.Type)
		case ir.ExprLoad:
			err = w.wrapStorageLoad(kind)
		case ir.ExprAccessIndex:
			w.wrapDecomposedRead(kind)
		case ir.ExprImageQuery:
			err = w.wrapImageQuery(kind)
		case ir.ExprArrayLength:
			err = w.wrapBufferLength(kind)
		case ir.ExprRayQueryGetIntersection:
			err = w.wrapIntersection(kind)
		}
		if err != nil {
			return err
		}
	}

	return w.wrapBlock(fc.fn.Body)
}

// wrapBlock walks the statement tree for stores that need the
// decomposed-matrix column helpers.
func (w *Writer) wrapBlock(block ir.Block) error {
	for i := range block {
		var err error
		switch kind := block[i].Kind.(type) {
		case ir.StmtBlock:
			err = w.wrapBlock(kind.Block)
		case ir.StmtIf:
			if err = w.wrapBlock(kind.Accept); err == nil {
				err = w.wrapBlock(kind.Reject)
			}
		case ir.StmtSwitch:
			for c := range kind.Cases {
				if err = w.wrapBlock(kind.Cases[c].Body); err != nil {
					break
				}
			}
		case ir.StmtLoop:
			if err = w.wrapBlock(kind.Body); err == nil {
				err = w.wrapBlock(kind.Continuing)
			}
		case ir.StmtStore:
			err = w.wrapDecomposedStore(kind.Pointer)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// wrapDecomposedStore emits the __set_col / __set_el helper when a
// store targets a dynamically indexed column of a decomposed matrix
// member. The chain walk mirrors writeDecomposedStore.
func (w *Writer) wrapDecomposedStore(pointer ir.ExpressionHandle) error {
	fn := w.fc.fn
	dynamic := []bool{}
	cursor := pointer
	for depth := 0; depth < 3; depth++ {
		switch access := fn.Expressions[cursor].Kind.(type) {
		case ir.ExprAccessIndex:
			if field, _, ok := w.decomposedTarget(access); ok {
				if len(dynamic) == 0 || !dynamic[0] {
					return nil
				}
				if len(dynamic) == 1 {
					w.emitSetMatrixColumn(field)
				} else {
					w.emitSetMatrixElement(field)
				}
				return nil
			}
			dynamic = append([]bool{false}, dynamic...)
			cursor = access.Base
		case ir.ExprAccess:
			dynamic = append([]bool{true}, dynamic...)
			cursor = access.Base
		default:
			return nil
		}
	}
	return nil
}

// intLiterals returns the literal spellings the guarded arithmetic
// helpers need for a scalar type.
func intLiterals(scalar ir.ScalarType) (zero, one, minVal, negOne string) {
	switch {
	case scalar.Kind == ir.ScalarSint && scalar.Width == 8:
		return "0L", "1L", "(-9223372036854775807L - 1L)", "-1L"
	case scalar.Kind == ir.ScalarUint && scalar.Width == 8:
		return "0uL", "1uL", "", ""
	case scalar.Kind == ir.ScalarUint:
		return "0u", "1u", "", ""
	default:
		return "0", "1", "int(-2147483647 - 1)", "-1"
	}
}

// valueTypeName renders a scalar or vector resolution for helper
// signatures.
func valueTypeName(inner ir.TypeInner) (string, ir.ScalarType, bool) {
	switch t := inner.(type) {
	case ir.ScalarType:
		return scalarTypeToHLSL(t), t, true
	case ir.VectorType:
		return vectorTypeToHLSL(t), t.Scalar, true
	default:
		return "", ir.ScalarType{}, false
	}
}

func (w *Writer) wrapBinary(handle ir.ExpressionHandle, kind ir.ExprBinary) error {
	res := w.fc.info.ResolvedType(handle)
	scalar, ok := resolutionScalar(w.module, res)
	if !ok || (scalar.Kind != ir.ScalarSint && scalar.Kind != ir.ScalarUint) {
		return nil
	}
	switch kind.Op {
	case ir.BinaryDivide:
		return w.wrapIntBinary(wrappedDiv, res)
	case ir.BinaryModulo:
		return w.wrapIntBinary(wrappedMod, res)
	default:
		return nil
	}
}

// wrapIntBinary emits naga_div or naga_mod for one operand type. The
// helpers pin the division edge cases DXC leaves undefined: a zero
// divisor, and the minimum signed value divided by minus one.
func (w *Writer) wrapIntBinary(kind wrappedKind, res ir.TypeResolution) error {
	typeName, scalar, ok := valueTypeName(res.Inner(w.module))
	if !ok {
		return nil
	}
	if scalar.Width == 8 {
		w.require(ShaderModel6_0, Feature64BitIntegers)
	}

	name := NagaDivFunction
	if kind == wrappedMod {
		name = NagaModFunction
	}
	key := wrappedKey{kind: kind, digest: ir.TypeDigest(w.module, res.Inner(w.module))}
	if !w.ensureWrapper(key, name) {
		return nil
	}

	zero, one, minVal, negOne := intLiterals(scalar)
	guard := fmt.Sprintf("(rhs == %s)", zero)
	if scalar.Kind == ir.ScalarSint {
		guard = fmt.Sprintf("(((lhs == %s) & (rhs == %s)) | (rhs == %s))", minVal, negOne, zero)
	}

	w.writeLine("%s %s(%s lhs, %s rhs)", typeName, name, typeName, typeName)
	w.writeLine("{")
	w.pushIndent()
	if kind == wrappedDiv {
		w.writeLine("return lhs / (%s ? %s : rhs);", guard, one)
	} else if scalar.Kind == ir.ScalarSint {
		w.writeLine("%s divisor = (%s ? %s : rhs);", typeName, guard, one)
		w.writeLine("return lhs - (lhs / divisor) * divisor;")
	} else {
		w.writeLine("return lhs %% (%s ? %s : rhs);", guard, one)
	}
	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
	return nil
}

// wrapIntUnary emits naga_neg or naga_abs for one operand type, with
// two's-complement wrapping on the minimum value.
func (w *Writer) wrapIntUnary(kind wrappedKind, res ir.TypeResolution) error {
	scalar, hasScalar := resolutionScalar(w.module, res)
	if !hasScalar || scalar.Kind != ir.ScalarSint {
		return nil
	}
	typeName, _, ok := valueTypeName(res.Inner(w.module))
	if !ok {
		return nil
	}
	if scalar.Width == 8 {
		w.require(ShaderModel6_0, Feature64BitIntegers)
	}

	name := NagaNegFunction
	if kind == wrappedAbs {
		name = NagaAbsFunction
	}
	key := wrappedKey{kind: kind, digest: ir.TypeDigest(w.module, res.Inner(w.module))}
	if !w.ensureWrapper(key, name) {
		return nil
	}

	negated := "asint(-asuint(val))"
	if scalar.Width == 8 {
		negated = "-val"
	}

	w.writeLine("%s %s(%s val)", typeName, name, typeName)
	w.writeLine("{")
	w.pushIndent()
	if kind == wrappedAbs {
		w.writeLine("return max(val, %s);", negated)
	} else {
		w.writeLine("return %s;", negated)
	}
	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
	return nil
}

func (w *Writer) wrapMath(handle ir.ExpressionHandle, kind ir.ExprMath) error {
	argRes := w.fc.info.ResolvedType(kind.Arg)
	switch kind.Fun {
	case ir.MathAbs:
		return w.wrapIntUnary(wrappedAbs, argRes)
	case ir.MathModf:
		return w.wrapModf(handle, argRes)
	case ir.MathFrexp:
		return w.wrapFrexp(handle, argRes)
	case ir.MathExtractBits:
		return w.wrapExtractBits(argRes)
	case ir.MathInsertBits:
		return w.wrapInsertBits(argRes)
	default:
		return nil
	}
}

// wrapModf emits the modf helper returning the module's result struct,
// since the HLSL intrinsic returns the whole part through an out
// parameter.
func (w *Writer) wrapModf(handle ir.ExpressionHandle, argRes ir.TypeResolution) error {
	res := w.fc.info.ResolvedType(handle)
	if res.Handle == nil {
		return NewError(ErrInvalidModule, "modf result type is not a module struct")
	}
	argType, _, ok := valueTypeName(argRes.Inner(w.module))
	if !ok {
		return nil
	}

	key := wrappedKey{kind: wrappedModf, digest: ir.ResolutionDigest(w.module, argRes)}
	if !w.ensureWrapper(key, NagaModfFunction) {
		return nil
	}

	structName := w.typeNames[*res.Handle]
	w.writeLine("%s %s(%s arg)", structName, NagaModfFunction, argType)
	w.writeLine("{")
	w.pushIndent()
	w.writeLine("%s other;", argType)
	w.writeLine("%s result;", structName)
	w.writeLine("result.%s = modf(arg, other);", w.structMemberName(*res.Handle, 0))
	w.writeLine("result.%s = other;", w.structMemberName(*res.Handle, 1))
	w.writeLine("return result;")
	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
	return nil
}

// wrapFrexp emits the frexp helper. HLSL frexp drops the sign of the
// mantissa and returns the exponent as a float out parameter; the
// helper restores both.
func (w *Writer) wrapFrexp(handle ir.ExpressionHandle, argRes ir.TypeResolution) error {
	res := w.fc.info.ResolvedType(handle)
	if res.Handle == nil {
		return NewError(ErrInvalidModule, "frexp result type is not a module struct")
	}
	argType, _, ok := valueTypeName(argRes.Inner(w.module))
	if !ok {
		return nil
	}

	key := wrappedKey{kind: wrappedFrexp, digest: ir.ResolutionDigest(w.module, argRes)}
	if !w.ensureWrapper(key, NagaFrexpFunction) {
		return nil
	}

	intType := "int"
	if vec, isVec := argRes.Inner(w.module).(ir.VectorType); isVec {
		intType = fmt.Sprintf("int%d", vec.Size)
	}

	structName := w.typeNames[*res.Handle]
	w.writeLine("%s %s(%s arg)", structName, NagaFrexpFunction, argType)
	w.writeLine("{")
	w.pushIndent()
	w.writeLine("%s other;", argType)
	w.writeLine("%s result;", structName)
	w.writeLine("result.%s = sign(arg) * frexp(arg, other);", w.structMemberName(*res.Handle, 0))
	w.writeLine("result.%s = %s(other);", w.structMemberName(*res.Handle, 1), intType)
	w.writeLine("return result;")
	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
	return nil
}

func (w *Writer) wrapExtractBits(argRes ir.TypeResolution) error {
	typeName, _, ok := valueTypeName(argRes.Inner(w.module))
	if !ok {
		return nil
	}
	key := wrappedKey{kind: wrappedExtractBits, digest: ir.ResolutionDigest(w.module, argRes)}
	if !w.ensureWrapper(key, NagaExtractBitsFunction) {
		return nil
	}

	w.writeLine("%s %s(%s e, uint offset, uint count)", typeName, NagaExtractBitsFunction, typeName)
	w.writeLine("{")
	w.pushIndent()
	w.writeLine("uint w = 32u;")
	w.writeLine("uint o = min(offset, w);")
	w.writeLine("uint c = min(count, w - o);")
	w.writeLine("return (c == 0u ? (%s)0 : (e << (w - c - o)) >> (w - c));", typeName)
	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
	return nil
}

func (w *Writer) wrapInsertBits(argRes ir.TypeResolution) error {
	typeName, scalar, ok := valueTypeName(argRes.Inner(w.module))
	if !ok {
		return nil
	}
	key := wrappedKey{kind: wrappedInsertBits, digest: ir.ResolutionDigest(w.module, argRes)}
	if !w.ensureWrapper(key, NagaInsertBitsFunction) {
		return nil
	}

	combine := "((e & ~mask) | ((newbits << o) & mask))"
	if scalar.Kind == ir.ScalarSint {
		combine = "asint((asuint(e) & ~mask) | ((asuint(newbits) << o) & mask))"
	}

	w.writeLine("%s %s(%s e, %s newbits, uint offset, uint count)",
		typeName, NagaInsertBitsFunction, typeName, typeName)
	w.writeLine("{")
	w.pushIndent()
	w.writeLine("uint w = 32u;")
	w.writeLine("uint o = min(offset, w);")
	w.writeLine("uint c = min(count, w - o);")
	w.writeLine("uint mask = ((4294967295u >> (32u - c)) << o);")
	w.writeLine("return (c == 0u ? e : %s);", combine)
	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
	return nil
}

// floatToIntClamp holds the clamp bounds for each conversion target:
// the widest values of the target type exactly representable as floats.
func floatToIntClamp(target ir.ScalarType) (lo, hi string) {
	switch {
	case target.Kind == ir.ScalarSint && target.Width == 4:
		return "-2147483600.0", "2147483500.0"
	case target.Kind == ir.ScalarUint && target.Width == 4:
		return "0.0", "4294967000.0"
	case target.Kind == ir.ScalarSint && target.Width == 8:
		return "-9223372036854775808.0", "9223371487098961920.0"
	default:
		return "0.0", "18446742974197923840.0"
	}
}

// wrapConversion emits the float-to-int conversion helper that clamps
// before casting, pinning behavior for out-of-range values and NaN.
func (w *Writer) wrapConversion(kind ir.ExprAs) error {
	if kind.Convert == nil {
		return nil
	}
	target := ir.ScalarType{Kind: kind.Kind, Width: *kind.Convert}
	helper, wanted := floatToIntHelper(target)
	if !wanted {
		return nil
	}
	srcRes := w.fc.info.ResolvedType(kind.Expr)
	srcScalar, hasSrc := resolutionScalar(w.module, srcRes)
	if !hasSrc || srcScalar.Kind != ir.ScalarFloat {
		return nil
	}
	srcType, _, ok := valueTypeName(srcRes.Inner(w.module))
	if !ok {
		return nil
	}
	if target.Width == 8 {
		w.require(ShaderModel6_0, Feature64BitIntegers)
	}

	key := wrappedKey{
		kind:   wrappedFloatToInt,
		digest: ir.ResolutionDigest(w.module, srcRes),
		aux:    uint64(target.Kind)<<8 | uint64(target.Width),
	}
	if !w.ensureWrapper(key, helper) {
		return nil
	}

	castType := scalarTypeToHLSL(target)
	if vec, isVec := srcRes.Inner(w.module).(ir.VectorType); isVec {
		castType = vectorTypeToHLSL(ir.VectorType{Size: vec.Size, Scalar: target})
	}
	lo, hi := floatToIntClamp(target)

	w.writeLine("%s %s(%s value)", castType, helper, srcType)
	w.writeLine("{")
	w.pushIndent()
	w.writeLine("return %s(clamp(value, %s, %s));", castType, lo, hi)
	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
	return nil
}

// wrapConstructor emits the constructor function for a struct or array
// type used in a compose expression.
func (w *Writer) wrapConstructor(handle ir.TypeHandle) error {
	inner := w.module.Types[handle].Inner
	switch inner.(type) {
	case ir.StructType, ir.ArrayType:
	default:
		return nil
	}

	key := wrappedKey{kind: wrappedConstructor, digest: ir.TypeDigest(w.module, inner)}
	name := w.constructorName(handle)
	if !w.ensureWrapper(key, name) {
		return nil
	}

	if st, isStruct := inner.(ir.StructType); isStruct {
		return w.writeStructConstructor(handle, st, name)
	}
	return w.writeArrayConstructor(handle, inner.(ir.ArrayType), name)
}

func (w *Writer) writeStructConstructor(handle ir.TypeHandle, st ir.StructType, name string) error {
	structName := w.typeNames[handle]
	layout := w.structLayouts[handle]

	params := make([]string, len(st.Members))
	for i := range st.Members {
		typeName, arraySuffix := w.getTypeNameWithArraySuffix(st.Members[i].Type)
		params[i] = fmt.Sprintf("%s arg%d%s", typeName, i, arraySuffix)
	}

	w.writeLine("%s %s(%s)", structName, name, strings.Join(params, ", "))
	w.writeLine("{")
	w.pushIndent()
	w.writeLine("%s ret = (%s)0;", structName, structName)
	for i := range st.Members {
		memberName := w.structMemberName(handle, uint32(i))
		if layout != nil && i < len(layout.fields) && layout.fields[i].mat2Cols > 0 {
			field := &layout.fields[i]
			for col := 0; col < field.mat2Cols; col++ {
				w.writeLine("ret.%s_%d = arg%d[%d];", field.name, col, i, col)
			}
			continue
		}
		w.writeLine("ret.%s = arg%d;", memberName, i)
	}
	w.writeLine("return ret;")
	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
	return nil
}

func (w *Writer) writeArrayConstructor(handle ir.TypeHandle, arr ir.ArrayType, name string) error {
	if arr.Size.Constant == nil {
		return NewError(ErrInvalidModule, "cannot construct a runtime-sized array")
	}
	n := *arr.Size.Constant

	typeName, arraySuffix := w.getTypeNameWithArraySuffix(handle)
	retType := name + "_ret"
	w.writeLine("typedef %s %s%s;", typeName, retType, arraySuffix)

	elemType, elemSuffix := w.getTypeNameWithArraySuffix(arr.Base)
	params := make([]string, n)
	args := make([]string, n)
	for i := uint32(0); i < n; i++ {
		params[i] = fmt.Sprintf("%s arg%d%s", elemType, i, elemSuffix)
		args[i] = fmt.Sprintf("arg%d", i)
	}

	w.writeLine("%s %s(%s)", retType, name, strings.Join(params, ", "))
	w.writeLine("{")
	w.pushIndent()
	w.writeLine("%s ret = { %s };", retType, strings.Join(args, ", "))
	w.writeLine("return ret;")
	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
	return nil
}

// wrapStorageLoad emits the loader function for a whole-composite load
// from a byte-address buffer.
func (w *Writer) wrapStorageLoad(kind ir.ExprLoad) error {
	ptr, ok := w.fc.info.ResolvedType(kind.Pointer).Inner(w.module).(ir.PointerType)
	if !ok || ptr.Space != ir.SpaceStorage {
		return nil
	}
	switch w.module.Types[ptr.Base].Inner.(type) {
	case ir.StructType, ir.ArrayType:
	default:
		return nil
	}
	globalHandle, rooted := ir.GlobalVariableRoot(w.fc.fn, kind.Pointer)
	if !rooted {
		return NewError(ErrInvalidModule, "storage load does not root at a global")
	}
	return w.emitStorageLoader(ptr.Base, &w.module.GlobalVariables[globalHandle])
}

// emitStorageLoader writes the NagaLoad function for a composite type,
// emitting loaders for nested composites first.
func (w *Writer) emitStorageLoader(handle ir.TypeHandle, global *ir.GlobalVariable) error {
	inner := w.module.Types[handle].Inner
	rw := uint64(0)
	if global.Access.Contains(ir.StorageStore) {
		rw = 1
	}
	key := wrappedKey{kind: wrappedStorageLoader, digest: ir.TypeDigest(w.module, inner), aux: rw}
	name := w.storageLoaderName(handle, global)
	if _, done := w.wrapped[key]; done {
		return nil
	}

	// Nested composites first, so their loaders are defined above.
	switch t := inner.(type) {
	case ir.StructType:
		for i := range t.Members {
			if err := w.emitNestedLoader(t.Members[i].Type, global); err != nil {
				return err
			}
		}
	case ir.ArrayType:
		if err := w.emitNestedLoader(t.Base, global); err != nil {
			return err
		}
	}

	if !w.ensureWrapper(key, name) {
		return nil
	}

	bufType := "ByteAddressBuffer"
	if rw == 1 {
		bufType = "RWByteAddressBuffer"
	}

	if st, isStruct := inner.(ir.StructType); isStruct {
		structName := w.typeNames[handle]
		layout := w.structLayouts[handle]
		w.writeLine("%s %s(%s buffer, uint offset)", structName, name, bufType)
		w.writeLine("{")
		w.pushIndent()
		w.writeLine("%s ret = (%s)0;", structName, structName)
		for i := range st.Members {
			member := &st.Members[i]
			if layout != nil && i < len(layout.fields) && layout.fields[i].mat2Cols > 0 {
				field := &layout.fields[i]
				colVec := ir.VectorType{Size: ir.Vec2, Scalar: field.mat2Scalar}
				stride := matrixColumnStride(ir.MatrixType{
					Columns: ir.VectorSize(field.mat2Cols), Rows: ir.Vec2, Scalar: field.mat2Scalar,
				})
				for col := 0; col < field.mat2Cols; col++ {
					addr := fmt.Sprintf("(offset + %du)", member.Offset+uint32(col)*stride)
					w.writeLine("ret.%s_%d = %s;", field.name, col, w.vectorBufferLoad("buffer", addr, colVec))
				}
				continue
			}
			addr := fmt.Sprintf("(offset + %du)", member.Offset)
			value, err := w.bufferLoadString("buffer", addr, member.Type, global)
			if err != nil {
				return err
			}
			w.writeLine("ret.%s = %s;", w.structMemberName(handle, uint32(i)), value)
		}
		w.writeLine("return ret;")
		w.popIndent()
		w.writeLine("}")
		w.writeLine("")
		return nil
	}

	arr := inner.(ir.ArrayType)
	if arr.Size.Constant == nil {
		return NewError(ErrInvalidModule, "cannot load a whole runtime-sized array")
	}
	typeName, arraySuffix := w.getTypeNameWithArraySuffix(handle)
	retType := name + "_ret"
	w.writeLine("typedef %s %s%s;", typeName, retType, arraySuffix)
	w.writeLine("%s %s(%s buffer, uint offset)", retType, name, bufType)
	w.writeLine("{")
	w.pushIndent()
	w.writeLine("%s ret = (%s)0;", retType, retType)
	stride := arrayStride(w.module, arr)
	for i := uint32(0); i < *arr.Size.Constant; i++ {
		addr := fmt.Sprintf("(offset + %du)", i*stride)
		value, err := w.bufferLoadString("buffer", addr, arr.Base, global)
		if err != nil {
			return err
		}
		w.writeLine("ret[%d] = %s;", i, value)
	}
	w.writeLine("return ret;")
	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
	return nil
}

func (w *Writer) emitNestedLoader(handle ir.TypeHandle, global *ir.GlobalVariable) error {
	switch w.module.Types[handle].Inner.(type) {
	case ir.StructType, ir.ArrayType:
		return w.emitStorageLoader(handle, global)
	default:
		return nil
	}
}

// bufferLoadString renders the load expression for a value of a type at
// a byte address.
func (w *Writer) bufferLoadString(bufName, addr string, handle ir.TypeHandle, global *ir.GlobalVariable) (string, error) {
	switch inner := w.module.Types[handle].Inner.(type) {
	case ir.ScalarType:
		return w.scalarBufferLoad(bufName, addr, inner), nil
	case ir.AtomicType:
		return w.scalarBufferLoad(bufName, addr, inner.Scalar), nil
	case ir.VectorType:
		return w.vectorBufferLoad(bufName, addr, inner), nil
	case ir.MatrixType:
		stride := matrixColumnStride(inner)
		cols := make([]string, inner.Columns)
		for col := range cols {
			colAddr := fmt.Sprintf("(%s + %du)", addr, uint32(col)*stride)
			cols[col] = w.vectorBufferLoad(bufName, colAddr,
				ir.VectorType{Size: inner.Rows, Scalar: inner.Scalar})
		}
		return fmt.Sprintf("%s(%s)", matrixTypeToHLSL(inner), strings.Join(cols, ", ")), nil
	case ir.StructType, ir.ArrayType:
		return fmt.Sprintf("%s(%s, %s)", w.storageLoaderName(handle, global), bufName, addr), nil
	default:
		return "", NewError(ErrUnsupportedType, fmt.Sprintf("storage load of %T", inner))
	}
}

// wrapImageQuery emits the GetDimensions helper for one image shape and
// query kind.
//
//nolint:gocyclo // The GetDimensions signature differs per shape
func (w *Writer) wrapImageQuery(kind ir.ExprImageQuery) error {
	img, err := w.imageOf(kind.Image)
	if err != nil {
		return err
	}
	name := imageQueryHelperName(img, kind.Query)
	key := wrappedKey{kind: wrappedImageQuery, digest: xxhash.Sum64String(name)}
	if !w.ensureWrapper(key, name) {
		return nil
	}

	mipQuery := false
	if size, isSize := kind.Query.(ir.ImageQuerySize); isSize && size.Level != nil {
		mipQuery = true
	}

	// GetDimensions slot layout: optional mip level in, then the
	// dimensions, the array element count, and samples or mip count.
	hasMipArg := img.Class != ir.ImageClassStorage && !img.Multisampled
	dims := dimCoordComponents(img.Dim)
	if img.Dim == ir.DimCube {
		dims = 2
	}
	arrayed := img.Arrayed && img.Dim != ir.Dim3D

	slots := dims
	if arrayed {
		slots++
	}
	if img.Multisampled || hasMipArg {
		slots++
	}

	comps := []string{"ret.x", "ret.y", "ret.z", "ret.w"}
	var args []string
	if hasMipArg {
		if mipQuery {
			args = append(args, "mip_level")
		} else {
			args = append(args, "0u")
		}
	}
	args = append(args, comps[:slots]...)

	arrayedIdx := 0
	if arrayed {
		arrayedIdx = 1
	}
	var retType, retExpr string
	switch kind.Query.(type) {
	case ir.ImageQuerySize:
		retType = "uint3"
		switch dims {
		case 1:
			retExpr = "uint3(ret.x, 0u, 0u)"
		case 2:
			retExpr = "uint3(ret.x, ret.y, 0u)"
		default:
			retExpr = "uint3(ret.x, ret.y, ret.z)"
		}
	case ir.ImageQueryNumLevels:
		retType = "uint"
		retExpr = comps[dims+arrayedIdx]
	case ir.ImageQueryNumLayers:
		retType = "uint"
		retExpr = comps[dims]
	case ir.ImageQueryNumSamples:
		retType = "uint"
		retExpr = comps[dims+arrayedIdx]
	}

	params := fmt.Sprintf("%s tex", w.imageTypeToHLSL(img))
	if mipQuery {
		params += ", uint mip_level"
	}

	w.writeLine("%s %s(%s)", retType, name, params)
	w.writeLine("{")
	w.pushIndent()
	w.writeLine("uint4 ret;")
	w.writeLine("tex.GetDimensions(%s);", strings.Join(args, ", "))
	w.writeLine("return %s;", retExpr)
	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
	return nil
}

// wrapBufferLength emits the buffer length helper for the RW-ness of
// the buffer the array length query targets.
func (w *Writer) wrapBufferLength(kind ir.ExprArrayLength) error {
	globalHandle, ok := ir.GlobalVariableRoot(w.fc.fn, kind.Array)
	if !ok {
		return NewError(ErrInvalidModule, "array length target does not root at a global")
	}
	global := &w.module.GlobalVariables[globalHandle]
	rw := uint64(0)
	bufType := "ByteAddressBuffer"
	if global.Access.Contains(ir.StorageStore) {
		rw = 1
		bufType = "RWByteAddressBuffer"
	}

	key := wrappedKey{kind: wrappedBufferLength, aux: rw}
	if !w.ensureWrapper(key, BufferLengthFunction) {
		return nil
	}

	w.writeLine("uint %s(%s buffer)", BufferLengthFunction, bufType)
	w.writeLine("{")
	w.pushIndent()
	w.writeLine("uint ret;")
	w.writeLine("buffer.GetDimensions(ret);")
	w.writeLine("return ret;")
	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
	return nil
}

// wrapIntersection emits the conversion from an HLSL ray query
// intersection into the module's intersection struct. Member order
// follows the front end's layout: kind, t, instance custom data,
// instance index, SBT record offset, geometry index, primitive index,
// barycentrics, front face, then the two transform matrices.
func (w *Writer) wrapIntersection(kind ir.ExprRayQueryGetIntersection) error {
	w.require(ShaderModel6_5, FeatureRayTracing)

	name := CandidateIntersectionFunction
	aux := uint64(0)
	if kind.Committed {
		name = CommittedIntersectionFunction
		aux = 1
	}
	key := wrappedKey{
		kind:   wrappedIntersection,
		digest: ir.TypeDigest(w.module, w.module.Types[kind.Type].Inner),
		aux:    aux,
	}
	if !w.ensureWrapper(key, name) {
		return nil
	}

	structName := w.typeNames[kind.Type]
	member := func(i uint32) string {
		return w.structMemberName(kind.Type, i)
	}

	w.writeLine("%s %s(RayQuery<RAY_FLAG_NONE> rq)", structName, name)
	w.writeLine("{")
	w.pushIndent()
	w.writeLine("%s ret = (%s)0;", structName, structName)
	if kind.Committed {
		w.writeLine("ret.%s = rq.CommittedStatus();", member(0))
		w.writeLine("if (rq.CommittedStatus() != COMMITTED_NOTHING) {")
		w.pushIndent()
		w.writeLine("ret.%s = rq.CommittedRayT();", member(1))
		w.writeLine("ret.%s = rq.CommittedInstanceID();", member(2))
		w.writeLine("ret.%s = rq.CommittedInstanceIndex();", member(3))
		w.writeLine("ret.%s = rq.CommittedInstanceContributionToHitGroupIndex();", member(4))
		w.writeLine("ret.%s = rq.CommittedGeometryIndex();", member(5))
		w.writeLine("ret.%s = rq.CommittedPrimitiveIndex();", member(6))
		w.writeLine("if (rq.CommittedStatus() == COMMITTED_TRIANGLE_HIT) {")
		w.pushIndent()
		w.writeLine("ret.%s = rq.CommittedTriangleBarycentrics();", member(7))
		w.writeLine("ret.%s = rq.CommittedTriangleFrontFace();", member(8))
		w.popIndent()
		w.writeLine("}")
		w.writeLine("ret.%s = rq.CommittedObjectToWorld4x3();", member(9))
		w.writeLine("ret.%s = rq.CommittedWorldToObject4x3();", member(10))
		w.popIndent()
		w.writeLine("}")
	} else {
		w.writeLine("if (rq.CandidateType() == CANDIDATE_NON_OPAQUE_TRIANGLE) {")
		w.pushIndent()
		w.writeLine("ret.%s = 1u;", member(0))
		w.writeLine("ret.%s = rq.CandidateTriangleRayT();", member(1))
		w.writeLine("ret.%s = rq.CandidateTriangleBarycentrics();", member(7))
		w.writeLine("ret.%s = rq.CandidateTriangleFrontFace();", member(8))
		w.popIndent()
		w.writeLine("} else {")
		w.pushIndent()
		w.writeLine("ret.%s = 3u;", member(0))
		w.popIndent()
		w.writeLine("}")
		w.writeLine("ret.%s = rq.CandidateInstanceID();", member(2))
		w.writeLine("ret.%s = rq.CandidateInstanceIndex();", member(3))
		w.writeLine("ret.%s = rq.CandidateInstanceContributionToHitGroupIndex();", member(4))
		w.writeLine("ret.%s = rq.CandidateGeometryIndex();", member(5))
		w.writeLine("ret.%s = rq.CandidatePrimitiveIndex();", member(6))
		w.writeLine("ret.%s = rq.CandidateObjectToWorld4x3();", member(9))
		w.writeLine("ret.%s = rq.CandidateWorldToObject4x3();", member(10))
	}
	w.writeLine("return ret;")
	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
	return nil
}

// wrapDecomposedRead emits the accessor for an access that reads a
// decomposed matCx2 struct member back as a matrix value.
func (w *Writer) wrapDecomposedRead(kind ir.ExprAccessIndex) {
	structHandle, ok := w.structHandleOf(w.fc.info.ResolvedType(kind.Base))
	if !ok {
		return
	}
	field, decomposed := w.decomposedField(structHandle, kind.Index)
	if !decomposed {
		return
	}
	w.emitGetMatMember(structHandle, field)
}

// matGetterName builds the accessor name rebuilding a decomposed
// matrix member of a struct.
func (w *Writer) matGetterName(structHandle ir.TypeHandle, field *structField) string {
	return fmt.Sprintf("GetMat%sOn%s", field.name, w.typeNames[structHandle])
}

// emitGetMatMember writes the accessor that reassembles a decomposed
// matCx2 member from its per-column fields.
func (w *Writer) emitGetMatMember(structHandle ir.TypeHandle, field *structField) {
	key := wrappedKey{
		kind:   wrappedGetMatMember,
		digest: ir.TypeDigest(w.module, w.module.Types[structHandle].Inner),
		aux:    xxhash.Sum64String(field.name),
	}
	name := w.matGetterName(structHandle, field)
	if !w.ensureWrapper(key, name) {
		return
	}

	matType := matrixTypeToHLSL(ir.MatrixType{
		Columns: ir.VectorSize(field.mat2Cols),
		Rows:    ir.Vec2,
		Scalar:  field.mat2Scalar,
	})
	cols := make([]string, field.mat2Cols)
	for i := range cols {
		cols[i] = fmt.Sprintf("obj.%s_%d", field.name, i)
	}

	w.writeLine("%s %s(%s obj)", matType, name, w.typeNames[structHandle])
	w.writeLine("{")
	w.pushIndent()
	w.writeLine("return %s(%s);", matType, strings.Join(cols, ", "))
	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
}

// emitSetMatrixColumn writes the helper assigning one dynamically
// indexed column of a decomposed matrix, passed as inout fields.
func (w *Writer) emitSetMatrixColumn(field *structField) {
	key := wrappedKey{
		kind:   wrappedSetMatCol,
		digest: uint64(field.mat2Cols),
		aux:    uint64(field.mat2Scalar.Kind)<<8 | uint64(field.mat2Scalar.Width),
	}
	name := fmt.Sprintf("%s%dx2", SetColOfMatrixPrefix, field.mat2Cols)
	if !w.ensureWrapper(key, name) {
		return
	}

	colType := vectorTypeToHLSL(ir.VectorType{Size: ir.Vec2, Scalar: field.mat2Scalar})
	params := make([]string, field.mat2Cols)
	for i := range params {
		params[i] = fmt.Sprintf("inout %s c%d", colType, i)
	}

	w.writeLine("void %s(%s, uint idx, %s value)", name, strings.Join(params, ", "), colType)
	w.writeLine("{")
	w.pushIndent()
	w.writeLine("switch(idx) {")
	for i := 0; i < field.mat2Cols; i++ {
		w.writeLine("case %d: { c%d = value; break; }", i, i)
	}
	w.writeLine("}")
	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
}

// emitSetMatrixElement writes the helper assigning one scalar element
// of a decomposed matrix through a dynamic column index.
func (w *Writer) emitSetMatrixElement(field *structField) {
	key := wrappedKey{
		kind:   wrappedSetMatEl,
		digest: uint64(field.mat2Cols),
		aux:    uint64(field.mat2Scalar.Kind)<<8 | uint64(field.mat2Scalar.Width),
	}
	name := fmt.Sprintf("%s%dx2", SetElOfMatrixPrefix, field.mat2Cols)
	if !w.ensureWrapper(key, name) {
		return
	}

	colType := vectorTypeToHLSL(ir.VectorType{Size: ir.Vec2, Scalar: field.mat2Scalar})
	params := make([]string, field.mat2Cols)
	for i := range params {
		params[i] = fmt.Sprintf("inout %s c%d", colType, i)
	}

	w.writeLine("void %s(%s, uint idx, uint vec_idx, %s value)",
		name, strings.Join(params, ", "), scalarTypeToHLSL(field.mat2Scalar))
	w.writeLine("{")
	w.pushIndent()
	w.writeLine("switch(idx) {")
	for i := 0; i < field.mat2Cols; i++ {
		w.writeLine("case %d: { c%d[vec_idx] = value; break; }", i, i)
	}
	w.writeLine("}")
	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
}
