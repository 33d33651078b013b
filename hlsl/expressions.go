// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"fmt"
	"math"
	"strings"

	"github.com/gogpu/hlslgen/ir"
)

// writeExpression writes an expression, using its baked name when the
// expression was materialized into a local.
func (w *Writer) writeExpression(handle ir.ExpressionHandle) error {
	if name, ok := w.namedExpressions[handle]; ok {
		w.write(name)
		return nil
	}
	return w.writeRawExpression(handle)
}

// writeRawExpression writes the full form of an expression, ignoring
// any baked name.
//
//nolint:gocyclo,cyclop // One case per expression kind
func (w *Writer) writeRawExpression(handle ir.ExpressionHandle) error {
	fn := w.fc.fn
	if int(handle) >= len(fn.Expressions) {
		return NewError(ErrInvalidModule, fmt.Sprintf("expression handle %d out of range", handle))
	}

	switch kind := fn.Expressions[handle].Kind.(type) {
	case ir.Literal:
		return w.writeLiteral(kind.Value)

	case ir.ExprConstant:
		if int(kind.Constant) >= len(w.module.Constants) {
			return NewError(ErrInvalidModule, fmt.Sprintf("constant handle %d out of range", kind.Constant))
		}
		w.write(w.names[nameKey{kind: nameKeyConstant, handle1: uint32(kind.Constant)}])
		return nil

	case ir.ExprZeroValue:
		w.writeZeroValue(kind.Type)
		return nil

	case ir.ExprCompose:
		return w.writeCompose(kind)

	case ir.ExprAccess:
		return w.writeAccessExpr(kind)

	case ir.ExprAccessIndex:
		return w.writeAccessIndex(kind)

	case ir.ExprSplat:
		scalar, _ := resolutionScalar(w.module, w.fc.info.ResolvedType(handle))
		w.write("(%s)(", vectorTypeToHLSL(ir.VectorType{Size: kind.Size, Scalar: scalar}))
		if err := w.writeExpression(kind.Value); err != nil {
			return err
		}
		w.write(")")
		return nil

	case ir.ExprSwizzle:
		if err := w.writeExpression(kind.Vector); err != nil {
			return err
		}
		w.write(".")
		for i := 0; i < int(kind.Size); i++ {
			w.write(swizzleLetter(kind.Pattern[i]))
		}
		return nil

	case ir.ExprFunctionArgument:
		if int(kind.Index) < len(w.fc.argNames) && w.fc.argNames[kind.Index] != "" {
			w.write(w.fc.argNames[kind.Index])
			return nil
		}
		w.write(w.names[nameKey{kind: nameKeyFunctionArgument, handle1: uint32(w.fc.handle), handle2: kind.Index}])
		return nil

	case ir.ExprGlobalVariable:
		name, err := w.globalName(kind.Variable)
		if err != nil {
			return err
		}
		w.write(name)
		return nil

	case ir.ExprLocalVariable:
		w.write(w.localNames[kind.Variable])
		return nil

	case ir.ExprLoad:
		return w.writeLoad(kind)

	case ir.ExprImageSample:
		return w.writeImageSample(kind)

	case ir.ExprImageLoad:
		return w.writeImageLoad(kind)

	case ir.ExprImageQuery:
		return w.writeImageQuery(kind)

	case ir.ExprUnary:
		return w.writeUnary(handle, kind)

	case ir.ExprBinary:
		return w.writeBinary(kind)

	case ir.ExprSelect:
		w.write("(")
		if err := w.writeExpression(kind.Condition); err != nil {
			return err
		}
		w.write(" ? ")
		if err := w.writeExpression(kind.Accept); err != nil {
			return err
		}
		w.write(" : ")
		if err := w.writeExpression(kind.Reject); err != nil {
			return err
		}
		w.write(")")
		return nil

	case ir.ExprDerivative:
		w.write("%s(", derivativeToHLSL(kind.Axis, kind.Control))
		if err := w.writeExpression(kind.Expr); err != nil {
			return err
		}
		w.write(")")
		return nil

	case ir.ExprRelational:
		return w.writeRelational(kind)

	case ir.ExprMath:
		return w.writeMath(kind)

	case ir.ExprAs:
		return w.writeAs(kind)

	case ir.ExprArrayLength:
		return w.writeArrayLength(kind)

	case ir.ExprCallResult, ir.ExprAtomicResult, ir.ExprWorkGroupUniformLoadResult,
		ir.ExprSubgroupBallotResult, ir.ExprSubgroupOperationResult,
		ir.ExprRayQueryProceedResult:
		// Result expressions are always baked by their statement.
		return NewError(ErrInternalError,
			fmt.Sprintf("result expression %d referenced before its statement", handle))

	case ir.ExprRayQueryGetIntersection:
		return w.writeRayQueryGetIntersection(kind)

	default:
		return NewError(ErrUnimplemented, fmt.Sprintf("expression kind %T", kind))
	}
}

// writeLiteral writes a literal value.
//
// Integer literals carry explicit suffixes or casts so DXC never
// reinterprets them, and the two minimum signed values are spelled as
// expressions because their absolute value overflows a literal.
func (w *Writer) writeLiteral(value ir.LiteralValue) error {
	switch v := value.(type) {
	case ir.LiteralF32:
		w.write(formatFloat32(float32(v)))
	case ir.LiteralF64:
		w.write("%sL", formatFloat64(float64(v)))
	case ir.LiteralU32:
		w.write("%du", uint32(v))
	case ir.LiteralI32:
		if int32(v) == math.MinInt32 {
			w.write("int(-2147483647 - 1)")
		} else {
			w.write("int(%d)", int32(v))
		}
	case ir.LiteralU64:
		w.require(ShaderModel6_0, Feature64BitIntegers)
		w.write("%duL", uint64(v))
	case ir.LiteralI64:
		w.require(ShaderModel6_0, Feature64BitIntegers)
		if int64(v) == math.MinInt64 {
			w.write("(-9223372036854775807L - 1L)")
		} else {
			w.write("%dL", int64(v))
		}
	case ir.LiteralBool:
		if v {
			w.write("true")
		} else {
			w.write("false")
		}
	case ir.LiteralAbstractInt, ir.LiteralAbstractFloat:
		return NewError(ErrInvalidModule, "abstract literal reached the backend")
	default:
		return NewError(ErrUnimplemented, fmt.Sprintf("literal %T", value))
	}
	return nil
}

// writeZeroValue writes the zero value of a type. The cast form covers
// every HLSL type, including structs and arrays.
func (w *Writer) writeZeroValue(handle ir.TypeHandle) {
	w.write("(%s)0", w.getTypeName(handle))
}

// writeCompose writes a composite construction. Vectors and matrices
// use native constructors; structs and arrays go through generated
// constructor functions since HLSL has no literal syntax for them in
// expression position.
func (w *Writer) writeCompose(kind ir.ExprCompose) error {
	var ctor string
	switch inner := w.module.Types[kind.Type].Inner.(type) {
	case ir.VectorType:
		ctor = vectorTypeToHLSL(inner)
	case ir.MatrixType:
		ctor = matrixTypeToHLSL(inner)
	case ir.ScalarType:
		ctor = scalarTypeToHLSL(inner)
	case ir.StructType, ir.ArrayType:
		ctor = w.constructorName(kind.Type)
	default:
		return NewError(ErrUnsupportedType, fmt.Sprintf("compose of %T", inner))
	}

	w.write("%s(", ctor)
	for i, component := range kind.Components {
		if i > 0 {
			w.write(", ")
		}
		if err := w.writeExpression(component); err != nil {
			return err
		}
	}
	w.write(")")
	return nil
}

// writeAccessExpr writes a dynamically indexed access. Known-length
// composites get their index clamped when restricted indexing is on.
func (w *Writer) writeAccessExpr(kind ir.ExprAccess) error {
	baseRes := w.fc.info.ResolvedType(kind.Base)
	if space, ok := baseRes.PointerSpace(w.module); ok && space == ir.SpaceStorage {
		return NewError(ErrInternalError, "storage pointer access emitted outside load/store")
	}

	if err := w.writeExpression(kind.Base); err != nil {
		return err
	}
	w.write("[")

	length, known := compositeLength(w.module, baseRes)
	if known && w.options.RestrictIndexing && length > 0 &&
		!w.indexProvablyInRange(kind.Index, length) {
		w.write("min(uint(")
		if err := w.writeExpression(kind.Index); err != nil {
			return err
		}
		w.write("), %du)", length-1)
	} else {
		if err := w.writeExpression(kind.Index); err != nil {
			return err
		}
	}
	w.write("]")
	return nil
}

// writeAccessIndex writes a constant-index access.
func (w *Writer) writeAccessIndex(kind ir.ExprAccessIndex) error {
	baseRes := w.fc.info.ResolvedType(kind.Base)
	if space, ok := baseRes.PointerSpace(w.module); ok && space == ir.SpaceStorage {
		return NewError(ErrInternalError, "storage pointer access emitted outside load/store")
	}

	if structHandle, ok := w.structHandleOf(baseRes); ok {
		if field, decomposed := w.decomposedField(structHandle, kind.Index); decomposed {
			return w.writeDecomposedMatrixRead(kind.Base, structHandle, field)
		}
		if err := w.writeExpression(kind.Base); err != nil {
			return err
		}
		w.write(".%s", w.structMemberName(structHandle, kind.Index))
		return nil
	}

	if err := w.writeExpression(kind.Base); err != nil {
		return err
	}
	w.write("[%d]", kind.Index)
	return nil
}

// writeDecomposedMatrixRead reads a decomposed matCx2 struct member
// back as a matrix value through its generated accessor.
func (w *Writer) writeDecomposedMatrixRead(base ir.ExpressionHandle, structHandle ir.TypeHandle, field *structField) error {
	w.write("%s(", w.matGetterName(structHandle, field))
	if err := w.writeExpression(base); err != nil {
		return err
	}
	w.write(")")
	return nil
}

// structHandleOf extracts the struct type handle a resolution refers
// to, through one level of pointer.
func (w *Writer) structHandleOf(res ir.TypeResolution) (ir.TypeHandle, bool) {
	if ptr, ok := res.Inner(w.module).(ir.PointerType); ok {
		if _, isStruct := w.module.Types[ptr.Base].Inner.(ir.StructType); isStruct {
			return ptr.Base, true
		}
		return 0, false
	}
	if res.Handle != nil {
		if _, isStruct := w.module.Types[*res.Handle].Inner.(ir.StructType); isStruct {
			return *res.Handle, true
		}
	}
	return 0, false
}

// decomposedField returns the layout entry of a struct member when the
// member was decomposed into matCx2 columns.
func (w *Writer) decomposedField(structHandle ir.TypeHandle, index uint32) (*structField, bool) {
	layout, ok := w.structLayouts[structHandle]
	if !ok || int(index) >= len(layout.fields) {
		return nil, false
	}
	field := &layout.fields[index]
	return field, field.mat2Cols > 0
}

// writeLoad writes a load through a pointer. Storage-space pointers
// turn into byte-address buffer loads; everything else dereferences in
// place since HLSL lvalues carry through access chains.
func (w *Writer) writeLoad(kind ir.ExprLoad) error {
	pointerRes := w.fc.info.ResolvedType(kind.Pointer)
	if space, ok := pointerRes.PointerSpace(w.module); ok && space == ir.SpaceStorage {
		return w.writeStorageLoad(kind.Pointer)
	}

	if access, ok := w.fc.fn.Expressions[kind.Pointer].Kind.(ir.ExprAccessIndex); ok {
		baseRes := w.fc.info.ResolvedType(access.Base)
		if structHandle, isStruct := w.structHandleOf(baseRes); isStruct {
			if field, decomposed := w.decomposedField(structHandle, access.Index); decomposed {
				return w.writeDecomposedMatrixRead(access.Base, structHandle, field)
			}
		}
	}

	return w.writeExpression(kind.Pointer)
}

// compositeLength returns the indexable length of a composite type, if
// statically known. Pointers report the length of their pointee.
func compositeLength(module *ir.Module, res ir.TypeResolution) (uint32, bool) {
	inner := res.Inner(module)
	if ptr, ok := inner.(ir.PointerType); ok {
		inner = module.Types[ptr.Base].Inner
	}
	switch t := inner.(type) {
	case ir.VectorType:
		return uint32(t.Size), true
	case ir.MatrixType:
		return uint32(t.Columns), true
	case ir.ArrayType:
		if t.Size.Constant != nil {
			return *t.Size.Constant, true
		}
		return 0, false
	case ir.ValuePointerType:
		if t.Size != nil {
			return uint32(*t.Size), true
		}
		return 0, false
	case ir.BindingArrayType:
		if t.Size.Constant != nil {
			return *t.Size.Constant, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func swizzleLetter(c ir.SwizzleComponent) string {
	switch c {
	case ir.SwizzleX:
		return "x"
	case ir.SwizzleY:
		return "y"
	case ir.SwizzleZ:
		return "z"
	default:
		return "w"
	}
}

func derivativeToHLSL(axis ir.DerivativeAxis, control ir.DerivativeControl) string {
	switch axis {
	case ir.DerivativeX:
		switch control {
		case ir.DerivativeCoarse:
			return "ddx_coarse"
		case ir.DerivativeFine:
			return "ddx_fine"
		default:
			return "ddx"
		}
	case ir.DerivativeY:
		switch control {
		case ir.DerivativeCoarse:
			return "ddy_coarse"
		case ir.DerivativeFine:
			return "ddy_fine"
		default:
			return "ddy"
		}
	default:
		return "fwidth"
	}
}

// writeUnary writes a unary operation. Negation of signed integers
// goes through a helper with explicit two's-complement wrapping.
func (w *Writer) writeUnary(handle ir.ExpressionHandle, kind ir.ExprUnary) error {
	res := w.fc.info.ResolvedType(handle)
	scalar, hasScalar := resolutionScalar(w.module, res)

	if kind.Op == ir.UnaryNegate && hasScalar && scalar.Kind == ir.ScalarSint {
		return w.writeHelperCall(NagaNegFunction, kind.Expr)
	}

	var op string
	switch kind.Op {
	case ir.UnaryNegate:
		op = "-"
	case ir.UnaryLogicalNot:
		op = "!"
	case ir.UnaryBitwiseNot:
		op = "~"
	}
	w.write("%s(", op)
	if err := w.writeExpression(kind.Expr); err != nil {
		return err
	}
	w.write(")")
	return nil
}

// writeBinary writes a binary operation.
//
// Signed 32-bit add/sub/mul round-trip through uint so overflow wraps
// instead of being undefined behavior in DXC. Integer division and
// remainder go through helpers guarding the divide-by-zero and
// overflow cases. Matrix products swap operands in mul() because the
// IR is column-major while HLSL mul() is row-major.
func (w *Writer) writeBinary(kind ir.ExprBinary) error {
	leftRes := w.fc.info.ResolvedType(kind.Left)
	rightRes := w.fc.info.ResolvedType(kind.Right)
	leftInner := leftRes.Inner(w.module)
	rightInner := rightRes.Inner(w.module)

	if kind.Op == ir.BinaryMultiply && isMatrixProduct(leftInner, rightInner) {
		w.write("mul(")
		if err := w.writeExpression(kind.Right); err != nil {
			return err
		}
		w.write(", ")
		if err := w.writeExpression(kind.Left); err != nil {
			return err
		}
		w.write(")")
		return nil
	}

	scalar, hasScalar := resolutionScalar(w.module, leftRes)
	isInt := hasScalar && (scalar.Kind == ir.ScalarSint || scalar.Kind == ir.ScalarUint)
	isSigned32 := hasScalar && scalar.Kind == ir.ScalarSint && scalar.Width == 4

	switch kind.Op {
	case ir.BinaryAdd, ir.BinarySubtract, ir.BinaryMultiply:
		if isSigned32 {
			return w.writeWrappingArithmetic(kind)
		}

	case ir.BinaryDivide:
		if isInt {
			return w.writeHelperCall(NagaDivFunction, kind.Left, kind.Right)
		}

	case ir.BinaryModulo:
		if isInt {
			return w.writeHelperCall(NagaModFunction, kind.Left, kind.Right)
		}
		if hasScalar && scalar.Kind == ir.ScalarFloat {
			// fmod keeps the dividend's sign, matching the source semantics.
			return w.writeHelperCall("fmod", kind.Left, kind.Right)
		}
	}

	w.write("(")
	if err := w.writeExpression(kind.Left); err != nil {
		return err
	}
	w.write(" %s ", binaryOperatorToHLSL(kind.Op))
	if err := w.writeExpression(kind.Right); err != nil {
		return err
	}
	w.write(")")
	return nil
}

// writeWrappingArithmetic writes signed 32-bit add/sub/mul as unsigned
// arithmetic reinterpreted back to int.
func (w *Writer) writeWrappingArithmetic(kind ir.ExprBinary) error {
	w.write("asint(asuint(")
	if err := w.writeExpression(kind.Left); err != nil {
		return err
	}
	w.write(") %s asuint(", binaryOperatorToHLSL(kind.Op))
	if err := w.writeExpression(kind.Right); err != nil {
		return err
	}
	w.write("))")
	return nil
}

func (w *Writer) writeHelperCall(name string, args ...ir.ExpressionHandle) error {
	w.write("%s(", name)
	for i, arg := range args {
		if i > 0 {
			w.write(", ")
		}
		if err := w.writeExpression(arg); err != nil {
			return err
		}
	}
	w.write(")")
	return nil
}

func isMatrixProduct(left, right ir.TypeInner) bool {
	_, leftMat := left.(ir.MatrixType)
	_, rightMat := right.(ir.MatrixType)
	_, leftVec := left.(ir.VectorType)
	_, rightVec := right.(ir.VectorType)
	return (leftMat && (rightMat || rightVec)) || (leftVec && rightMat)
}

func binaryOperatorToHLSL(op ir.BinaryOperator) string {
	switch op {
	case ir.BinaryAdd:
		return "+"
	case ir.BinarySubtract:
		return "-"
	case ir.BinaryMultiply:
		return "*"
	case ir.BinaryDivide:
		return "/"
	case ir.BinaryModulo:
		return "%"
	case ir.BinaryEqual:
		return "=="
	case ir.BinaryNotEqual:
		return "!="
	case ir.BinaryLess:
		return "<"
	case ir.BinaryLessEqual:
		return "<="
	case ir.BinaryGreater:
		return ">"
	case ir.BinaryGreaterEqual:
		return ">="
	case ir.BinaryAnd:
		return "&"
	case ir.BinaryExclusiveOr:
		return "^"
	case ir.BinaryInclusiveOr:
		return "|"
	case ir.BinaryLogicalAnd:
		return "&&"
	case ir.BinaryLogicalOr:
		return "||"
	case ir.BinaryShiftLeft:
		return "<<"
	case ir.BinaryShiftRight:
		return ">>"
	default:
		return "+"
	}
}

func (w *Writer) writeRelational(kind ir.ExprRelational) error {
	var fun string
	switch kind.Fun {
	case ir.RelationalAll:
		fun = "all"
	case ir.RelationalAny:
		fun = "any"
	case ir.RelationalIsNan:
		fun = "isnan"
	case ir.RelationalIsInf:
		fun = "isinf"
	}
	return w.writeHelperCall(fun, kind.Argument)
}

// writeMath writes a math intrinsic call.
//
//nolint:gocyclo,cyclop // One case per math function
func (w *Writer) writeMath(kind ir.ExprMath) error {
	argRes := w.fc.info.ResolvedType(kind.Arg)
	scalar, hasScalar := resolutionScalar(w.module, argRes)

	args := []ir.ExpressionHandle{kind.Arg}
	for _, opt := range []*ir.ExpressionHandle{kind.Arg1, kind.Arg2, kind.Arg3} {
		if opt != nil {
			args = append(args, *opt)
		}
	}

	switch kind.Fun {
	case ir.MathAbs:
		if hasScalar && scalar.Kind == ir.ScalarSint {
			return w.writeHelperCall(NagaAbsFunction, args...)
		}
		return w.writeHelperCall("abs", args...)

	case ir.MathModf:
		return w.writeHelperCall(NagaModfFunction, args...)
	case ir.MathFrexp:
		return w.writeHelperCall(NagaFrexpFunction, args...)
	case ir.MathExtractBits:
		return w.writeHelperCall(NagaExtractBitsFunction, args...)
	case ir.MathInsertBits:
		return w.writeHelperCall(NagaInsertBitsFunction, args...)

	case ir.MathDot4I8Packed:
		w.require(ShaderModel6_4, FeatureNone)
		return w.writePackedDot("dot4add_i8packed", args)
	case ir.MathDot4U8Packed:
		w.require(ShaderModel6_4, FeatureNone)
		return w.writePackedDot("dot4add_u8packed", args)

	case ir.MathQuantizeF16:
		return w.writeInlineMath(kind.Arg, "f16tof32(f32tof16(%s))")

	case ir.MathAsinh:
		return w.writeInlineMath(kind.Arg, "log(%[1]s + sqrt(%[1]s * %[1]s + 1.0))")
	case ir.MathAcosh:
		return w.writeInlineMath(kind.Arg, "log(%[1]s + sqrt(%[1]s * %[1]s - 1.0))")
	case ir.MathAtanh:
		return w.writeInlineMath(kind.Arg, "(0.5 * log((1.0 + %[1]s) / (1.0 - %[1]s)))")

	case ir.MathCountTrailingZeros:
		if hasScalar && scalar.Kind == ir.ScalarSint {
			return w.writeInlineMath(kind.Arg, "asint(min(32u, firstbitlow(asuint(%s))))")
		}
		return w.writeInlineMath(kind.Arg, "min(32u, firstbitlow(%s))")
	case ir.MathCountLeadingZeros:
		// firstbithigh is sign-aware for int: a negative argument
		// reports the highest zero bit, so clamp it out up front.
		if hasScalar && scalar.Kind == ir.ScalarSint {
			return w.writeInlineMath(kind.Arg, "(%[1]s < 0 ? 0 : 31 - asint(firstbithigh(%[1]s)))")
		}
		return w.writeInlineMath(kind.Arg, "(31u - firstbithigh(%s))")

	case ir.MathInverse, ir.MathOuter:
		return NewError(ErrUnimplemented, fmt.Sprintf("math function %d has no HLSL form", kind.Fun))

	case ir.MathPack4x8snorm:
		return w.writePackNorm(kind.Arg, 4, 8, true)
	case ir.MathPack4x8unorm:
		return w.writePackNorm(kind.Arg, 4, 8, false)
	case ir.MathPack2x16snorm:
		return w.writePackNorm(kind.Arg, 2, 16, true)
	case ir.MathPack2x16unorm:
		return w.writePackNorm(kind.Arg, 2, 16, false)
	case ir.MathPack2x16float:
		return w.writeInlineMath(kind.Arg, "(f32tof16(%[1]s.x) | (f32tof16(%[1]s.y) << 16))")
	case ir.MathPack4xI8:
		return w.writePackInt(kind.Arg, false)
	case ir.MathPack4xU8:
		return w.writePackInt(kind.Arg, false)
	case ir.MathPack4xI8Clamp:
		return w.writePackInt(kind.Arg, true)
	case ir.MathPack4xU8Clamp:
		return w.writePackInt(kind.Arg, true)

	case ir.MathUnpack4x8snorm:
		return w.writeInlineMath(kind.Arg,
			"clamp(float4(int4(%[1]s << 24, %[1]s << 16, %[1]s << 8, %[1]s) >> 24) / 127.0, -1.0, 1.0)")
	case ir.MathUnpack4x8unorm:
		return w.writeInlineMath(kind.Arg,
			"(float4(%[1]s & 0xFF, (%[1]s >> 8) & 0xFF, (%[1]s >> 16) & 0xFF, %[1]s >> 24) / 255.0)")
	case ir.MathUnpack2x16snorm:
		return w.writeInlineMath(kind.Arg,
			"clamp(float2(int2(%[1]s << 16, %[1]s) >> 16) / 32767.0, -1.0, 1.0)")
	case ir.MathUnpack2x16unorm:
		return w.writeInlineMath(kind.Arg,
			"(float2(%[1]s & 0xFFFF, %[1]s >> 16) / 65535.0)")
	case ir.MathUnpack2x16float:
		return w.writeInlineMath(kind.Arg, "float2(f16tof32(%[1]s), f16tof32(%[1]s >> 16))")
	case ir.MathUnpack4xI8:
		return w.writeInlineMath(kind.Arg, "(int4(%[1]s << 24, %[1]s << 16, %[1]s << 8, %[1]s) >> 24)")
	case ir.MathUnpack4xU8:
		return w.writeInlineMath(kind.Arg, "(uint4(%[1]s, %[1]s >> 8, %[1]s >> 16, %[1]s >> 24) & 0xFF)")
	}

	name, ok := mathFunctionToHLSL(kind.Fun)
	if !ok {
		return NewError(ErrUnimplemented, fmt.Sprintf("math function %d", kind.Fun))
	}
	return w.writeHelperCall(name, args...)
}

func (w *Writer) writeInlineMath(arg ir.ExpressionHandle, format string) error {
	argStr, err := w.expressionToString(arg)
	if err != nil {
		return err
	}
	w.write(format, argStr)
	return nil
}

func (w *Writer) writePackedDot(fun string, args []ir.ExpressionHandle) error {
	if len(args) < 2 {
		return NewError(ErrInvalidModule, "packed dot requires two arguments")
	}
	a, err := w.expressionToString(args[0])
	if err != nil {
		return err
	}
	b, err := w.expressionToString(args[1])
	if err != nil {
		return err
	}
	w.write("%s(%s, %s, 0)", fun, a, b)
	return nil
}

// writePackNorm writes a normalized-float packing expression.
func (w *Writer) writePackNorm(arg ir.ExpressionHandle, components, bits int, signed bool) error {
	argStr, err := w.expressionToString(arg)
	if err != nil {
		return err
	}
	var scale float64
	lo := "0.0"
	mask := uint32(1)<<bits - 1
	if signed {
		scale = float64(int64(1)<<(bits-1)) - 1
		lo = "-1.0"
	} else {
		scale = float64(int64(1)<<bits) - 1
	}

	parts := make([]string, components)
	for i := 0; i < components; i++ {
		component := fmt.Sprintf("%s.%s", argStr, "xyzw"[i:i+1])
		var packed string
		if signed {
			packed = fmt.Sprintf("(asuint(int(round(clamp(%s, %s, 1.0) * %.1f))) & 0x%X)", component, lo, scale, mask)
		} else {
			packed = fmt.Sprintf("(uint(round(clamp(%s, %s, 1.0) * %.1f)) & 0x%X)", component, lo, scale, mask)
		}
		if i > 0 {
			packed = fmt.Sprintf("(%s << %d)", packed, i*bits)
		}
		parts[i] = packed
	}
	w.write("(%s)", strings.Join(parts, " | "))
	return nil
}

// writePackInt writes a 4xint8 packing expression.
func (w *Writer) writePackInt(arg ir.ExpressionHandle, clamped bool) error {
	argStr, err := w.expressionToString(arg)
	if err != nil {
		return err
	}
	parts := make([]string, 4)
	for i := 0; i < 4; i++ {
		component := fmt.Sprintf("%s.%s", argStr, "xyzw"[i:i+1])
		if clamped {
			component = fmt.Sprintf("clamp(%s, -128, 127)", component)
		}
		packed := fmt.Sprintf("(asuint(%s) & 0xFF)", component)
		if i > 0 {
			packed = fmt.Sprintf("(%s << %d)", packed, i*8)
		}
		parts[i] = packed
	}
	w.write("(%s)", strings.Join(parts, " | "))
	return nil
}

// mathFunctionToHLSL maps directly translatable math functions to
// their HLSL intrinsic names.
func mathFunctionToHLSL(fun ir.MathFunction) (string, bool) {
	switch fun {
	case ir.MathMin:
		return "min", true
	case ir.MathMax:
		return "max", true
	case ir.MathClamp:
		return "clamp", true
	case ir.MathSaturate:
		return "saturate", true
	case ir.MathCos:
		return "cos", true
	case ir.MathCosh:
		return "cosh", true
	case ir.MathSin:
		return "sin", true
	case ir.MathSinh:
		return "sinh", true
	case ir.MathTan:
		return "tan", true
	case ir.MathTanh:
		return "tanh", true
	case ir.MathAcos:
		return "acos", true
	case ir.MathAsin:
		return "asin", true
	case ir.MathAtan:
		return "atan", true
	case ir.MathAtan2:
		return "atan2", true
	case ir.MathRadians:
		return "radians", true
	case ir.MathDegrees:
		return "degrees", true
	case ir.MathCeil:
		return "ceil", true
	case ir.MathFloor:
		return "floor", true
	case ir.MathRound:
		return "round", true
	case ir.MathFract:
		return "frac", true
	case ir.MathTrunc:
		return "trunc", true
	case ir.MathLdexp:
		return "ldexp", true
	case ir.MathExp:
		return "exp", true
	case ir.MathExp2:
		return "exp2", true
	case ir.MathLog:
		return "log", true
	case ir.MathLog2:
		return "log2", true
	case ir.MathPow:
		return "pow", true
	case ir.MathDot:
		return "dot", true
	case ir.MathCross:
		return "cross", true
	case ir.MathDistance:
		return "distance", true
	case ir.MathLength:
		return "length", true
	case ir.MathNormalize:
		return "normalize", true
	case ir.MathFaceForward:
		return "faceforward", true
	case ir.MathReflect:
		return "reflect", true
	case ir.MathRefract:
		return "refract", true
	case ir.MathSign:
		return "sign", true
	case ir.MathFma:
		return "mad", true
	case ir.MathMix:
		return "lerp", true
	case ir.MathStep:
		return "step", true
	case ir.MathSmoothStep:
		return "smoothstep", true
	case ir.MathSqrt:
		return "sqrt", true
	case ir.MathInverseSqrt:
		return "rsqrt", true
	case ir.MathTranspose:
		return "transpose", true
	case ir.MathDeterminant:
		return "determinant", true
	case ir.MathCountOneBits:
		return "countbits", true
	case ir.MathReverseBits:
		return "reversebits", true
	case ir.MathFirstTrailingBit:
		return "firstbitlow", true
	case ir.MathFirstLeadingBit:
		return "firstbithigh", true
	default:
		return "", false
	}
}

// writeAs writes a bitcast or conversion. Float-to-integer conversions
// go through helpers that pin the out-of-range and NaN behavior DXC
// otherwise leaves undefined.
func (w *Writer) writeAs(kind ir.ExprAs) error {
	srcRes := w.fc.info.ResolvedType(kind.Expr)
	srcScalar, hasSrc := resolutionScalar(w.module, srcRes)

	if kind.Convert == nil {
		return w.writeHelperCall(ScalarCast(kind.Kind), kind.Expr)
	}

	target := ir.ScalarType{Kind: kind.Kind, Width: *kind.Convert}
	if target.Width == 8 && (target.Kind == ir.ScalarSint || target.Kind == ir.ScalarUint) {
		w.require(ShaderModel6_0, Feature64BitIntegers)
	}

	if hasSrc && srcScalar.Kind == ir.ScalarFloat &&
		(target.Kind == ir.ScalarSint || target.Kind == ir.ScalarUint) {
		if helper, ok := floatToIntHelper(target); ok {
			return w.writeHelperCall(helper, kind.Expr)
		}
	}

	var castType string
	switch inner := srcRes.Inner(w.module).(type) {
	case ir.VectorType:
		castType = vectorTypeToHLSL(ir.VectorType{Size: inner.Size, Scalar: target})
	case ir.MatrixType:
		castType = matrixTypeToHLSL(ir.MatrixType{Columns: inner.Columns, Rows: inner.Rows, Scalar: target})
	default:
		castType = scalarTypeToHLSL(target)
	}

	w.write("(%s)(", castType)
	if err := w.writeExpression(kind.Expr); err != nil {
		return err
	}
	w.write(")")
	return nil
}

func floatToIntHelper(target ir.ScalarType) (string, bool) {
	switch {
	case target.Kind == ir.ScalarSint && target.Width == 4:
		return NagaF2I32Function, true
	case target.Kind == ir.ScalarUint && target.Width == 4:
		return NagaF2U32Function, true
	case target.Kind == ir.ScalarSint && target.Width == 8:
		return NagaF2I64Function, true
	case target.Kind == ir.ScalarUint && target.Width == 8:
		return NagaF2U64Function, true
	default:
		return "", false
	}
}

// writeArrayLength writes the length of a runtime-sized array living
// at the tail of a storage buffer.
func (w *Writer) writeArrayLength(kind ir.ExprArrayLength) error {
	globalHandle, ok := ir.GlobalVariableRoot(w.fc.fn, kind.Array)
	if !ok {
		return NewError(ErrInvalidModule, "array length target does not root at a global")
	}
	name, err := w.globalName(globalHandle)
	if err != nil {
		return err
	}

	offset, stride, err := w.arrayTailLayout(kind.Array)
	if err != nil {
		return err
	}

	if offset > 0 {
		w.write("((%s(%s) - %du) / %du)", BufferLengthFunction, name, offset, stride)
	} else {
		w.write("(%s(%s) / %du)", BufferLengthFunction, name, stride)
	}
	return nil
}

// arrayTailLayout walks an access chain down to a runtime array and
// returns the array's byte offset within its buffer and its element
// stride.
func (w *Writer) arrayTailLayout(handle ir.ExpressionHandle) (offset, stride uint32, err error) {
	fn := w.fc.fn
	var walk func(h ir.ExpressionHandle) (ir.TypeHandle, uint32, error)
	walk = func(h ir.ExpressionHandle) (ir.TypeHandle, uint32, error) {
		switch kind := fn.Expressions[h].Kind.(type) {
		case ir.ExprGlobalVariable:
			return w.module.GlobalVariables[kind.Variable].Type, 0, nil
		case ir.ExprAccessIndex:
			baseType, baseOffset, walkErr := walk(kind.Base)
			if walkErr != nil {
				return 0, 0, walkErr
			}
			st, isStruct := w.module.Types[baseType].Inner.(ir.StructType)
			if !isStruct || int(kind.Index) >= len(st.Members) {
				return 0, 0, NewError(ErrInvalidModule, "array length chain through non-struct")
			}
			member := st.Members[kind.Index]
			return member.Type, baseOffset + member.Offset, nil
		default:
			return 0, 0, NewError(ErrInvalidModule, "unsupported array length chain")
		}
	}

	tailType, tailOffset, err := walk(handle)
	if err != nil {
		return 0, 0, err
	}
	arr, isArray := w.module.Types[tailType].Inner.(ir.ArrayType)
	if !isArray || arr.Size.Constant != nil {
		return 0, 0, NewError(ErrInvalidModule, "array length target is not a runtime array")
	}
	stride = arr.Stride
	if stride == 0 {
		stride = getTypeSize(w.module, arr.Base)
	}
	return tailOffset, stride, nil
}

// writeRayQueryGetIntersection writes the conversion of an HLSL ray
// query intersection into the module's intersection struct.
func (w *Writer) writeRayQueryGetIntersection(kind ir.ExprRayQueryGetIntersection) error {
	w.require(ShaderModel6_5, FeatureRayTracing)
	helper := CommittedIntersectionFunction
	if !kind.Committed {
		helper = CandidateIntersectionFunction
	}
	return w.writeHelperCall(helper, kind.Query)
}

// resolutionScalar extracts the scalar component of a resolved type.
func resolutionScalar(module *ir.Module, res ir.TypeResolution) (ir.ScalarType, bool) {
	switch t := res.Inner(module).(type) {
	case ir.ScalarType:
		return t, true
	case ir.VectorType:
		return t.Scalar, true
	case ir.MatrixType:
		return t.Scalar, true
	case ir.AtomicType:
		return t.Scalar, true
	case ir.ValuePointerType:
		return t.Scalar, true
	default:
		return ir.ScalarType{}, false
	}
}

// writeConstExpression writes a constant expression from the module's
// global expression arena. Struct and array values use brace
// initializers since these appear in static-const initializer context.
func (w *Writer) writeConstExpression(handle ir.ExpressionHandle) error {
	if int(handle) >= len(w.module.GlobalExpressions) {
		return NewError(ErrInvalidModule, fmt.Sprintf("global expression %d out of range", handle))
	}

	switch kind := w.module.GlobalExpressions[handle].Kind.(type) {
	case ir.Literal:
		return w.writeLiteral(kind.Value)

	case ir.ExprConstant:
		w.write(w.names[nameKey{kind: nameKeyConstant, handle1: uint32(kind.Constant)}])
		return nil

	case ir.ExprZeroValue:
		w.writeZeroValue(kind.Type)
		return nil

	case ir.ExprCompose:
		switch inner := w.module.Types[kind.Type].Inner.(type) {
		case ir.VectorType:
			w.write("%s(", vectorTypeToHLSL(inner))
		case ir.MatrixType:
			w.write("%s(", matrixTypeToHLSL(inner))
		default:
			w.write("{ ")
			for i, component := range kind.Components {
				if i > 0 {
					w.write(", ")
				}
				if err := w.writeConstExpression(component); err != nil {
					return err
				}
			}
			w.write(" }")
			return nil
		}
		for i, component := range kind.Components {
			if i > 0 {
				w.write(", ")
			}
			if err := w.writeConstExpression(component); err != nil {
				return err
			}
		}
		w.write(")")
		return nil

	case ir.ExprSplat:
		saved := w.out
		w.out = strings.Builder{}
		err := w.writeConstExpression(kind.Value)
		valueStr := w.out.String()
		w.out = saved
		if err != nil {
			return err
		}
		w.write("(%s)", valueStr)
		return nil

	default:
		return NewError(ErrNonConstExpression,
			fmt.Sprintf("expression kind %T in constant context", kind))
	}
}
