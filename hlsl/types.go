// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"fmt"
	"math"
	"strings"

	"github.com/gogpu/hlslgen/ir"
)

// Type name constants.
const (
	hlslTypeFloat = "float"
	hlslTypeInt   = "int"
	hlslTypeUint  = "uint"
	hlslTypeBool  = "bool"
)

// structLayout records how a struct's members are emitted: the field
// name each member maps to and whether the member was decomposed into
// per-column float2 fields.
type structLayout struct {
	fields []structField
}

type structField struct {
	name string

	// mat2Cols is non-zero when the member is a matCx2 decomposed into
	// mat2Cols vector fields named name_0 .. name_{mat2Cols-1}.
	mat2Cols   int
	mat2Scalar ir.ScalarType
}

// writeTypes writes matrix typedefs and all struct type definitions.
// Non-struct types are written inline where needed.
func (w *Writer) writeTypes() error {
	for handle := range w.module.Types {
		typ := &w.module.Types[handle]
		st, ok := typ.Inner.(ir.StructType)
		if !ok {
			continue
		}
		if err := w.writeStructDefinition(ir.TypeHandle(handle), st); err != nil {
			return err
		}
	}
	return nil
}

// writeStructDefinition writes a struct type definition.
//
// Members are padded explicitly so the HLSL layout matches the IR
// offsets: each 4-byte gap becomes an int _padN_i field and trailing
// space up to Span becomes int _end_pad_i fields. Matrix members keep
// row_major storage; unbound two-row matrix members decompose into
// per-column vector fields since HLSL would otherwise stride their
// columns to 16 bytes in constant buffers.
func (w *Writer) writeStructDefinition(handle ir.TypeHandle, st ir.StructType) error {
	structName := w.typeNames[handle]
	layout := &structLayout{fields: make([]structField, len(st.Members))}
	w.structLayouts[handle] = layout

	w.writeLine("struct %s {", structName)
	w.pushIndent()

	offset := uint32(0)
	for memberIdx, member := range st.Members {
		for i := 0; offset+4 <= member.Offset; i++ {
			w.writeLine("int _pad%d_%d;", memberIdx, i)
			offset += 4
		}
		offset = member.Offset + w.typeSpan(member.Type)

		memberName := w.names[nameKey{kind: nameKeyStructMember, handle1: uint32(handle), handle2: uint32(memberIdx)}]
		layout.fields[memberIdx] = structField{name: memberName}

		if mat, ok := w.matCx2Member(member); ok {
			layout.fields[memberIdx].mat2Cols = int(mat.Columns)
			layout.fields[memberIdx].mat2Scalar = mat.Scalar
			colType := vectorTypeToHLSL(ir.VectorType{Size: ir.Vec2, Scalar: mat.Scalar})
			for col := 0; col < int(mat.Columns); col++ {
				w.writeLine("%s %s_%d;", colType, memberName, col)
			}
			continue
		}

		prefix := ""
		if isMatrixType(w.module, member.Type) {
			prefix = "row_major "
		}
		memberType, arraySuffix := w.getTypeNameWithArraySuffix(member.Type)
		w.writeLine("%s%s %s%s;", prefix, memberType, memberName, arraySuffix)
	}

	for i := 0; offset+4 <= st.Span; i++ {
		w.writeLine("int _end_pad_%d;", i)
		offset += 4
	}

	w.popIndent()
	w.writeLine("};")
	w.writeLine("")
	return nil
}

// matCx2Member reports whether a struct member is stored as decomposed
// matCx2 columns. Every unbound matrix member with two rows qualifies;
// interface members carry bindings and keep real matrix types.
func (w *Writer) matCx2Member(member ir.StructMember) (ir.MatrixType, bool) {
	if member.Binding != nil {
		return ir.MatrixType{}, false
	}
	mat, ok := w.module.Types[member.Type].Inner.(ir.MatrixType)
	if !ok || mat.Rows != ir.Vec2 {
		return ir.MatrixType{}, false
	}
	return mat, true
}

// structMemberName returns the emitted field name of a struct member.
func (w *Writer) structMemberName(handle ir.TypeHandle, memberIdx uint32) string {
	if name, ok := w.names[nameKey{kind: nameKeyStructMember, handle1: uint32(handle), handle2: memberIdx}]; ok {
		return name
	}
	return fmt.Sprintf("member_%d", memberIdx)
}

// typeSpan returns the byte size of a type per its IR layout.
func (w *Writer) typeSpan(handle ir.TypeHandle) uint32 {
	return getTypeSize(w.module, handle)
}

// getSemanticFromBinding returns the HLSL semantic for a binding.
func (w *Writer) getSemanticFromBinding(binding ir.Binding, stage ir.ShaderStage, output bool) string {
	switch b := binding.(type) {
	case ir.BuiltinBinding:
		return BuiltInToSemantic(b.Builtin)
	case ir.LocationBinding:
		if stage == ir.StageFragment && output {
			return fmt.Sprintf("SV_Target%d", b.Location)
		}
		return fmt.Sprintf("LOC%d", b.Location)
	default:
		return ""
	}
}

// getInterpolationModifier returns the HLSL interpolation modifier.
func (w *Writer) getInterpolationModifier(binding ir.Binding) string {
	loc, ok := binding.(ir.LocationBinding)
	if !ok || loc.Interpolation == nil {
		return ""
	}

	var modifiers []string
	if kindMod := InterpolationToHLSL(loc.Interpolation.Kind); kindMod != "" {
		modifiers = append(modifiers, kindMod)
	}
	if samplingMod := SamplingToHLSL(loc.Interpolation.Sampling); samplingMod != "" {
		modifiers = append(modifiers, samplingMod)
	}
	return strings.Join(modifiers, " ")
}

// getTypeName returns the HLSL type name for a type handle.
func (w *Writer) getTypeName(handle ir.TypeHandle) string {
	if int(handle) >= len(w.module.Types) {
		return fmt.Sprintf("unknown_type_%d", handle)
	}
	typ := &w.module.Types[handle]
	typeName, arraySuffix := w.typeToHLSLWithArraySuffix(typ)
	return typeName + arraySuffix
}

// getTypeNameWithArraySuffix returns the base type name and array suffix separately.
// HLSL arrays are written as `type name[size]`, not `type[size] name`.
func (w *Writer) getTypeNameWithArraySuffix(handle ir.TypeHandle) (typeName, arraySuffix string) {
	if int(handle) >= len(w.module.Types) {
		return fmt.Sprintf("unknown_type_%d", handle), ""
	}
	typ := &w.module.Types[handle]
	return w.typeToHLSLWithArraySuffix(typ)
}

// typeToHLSLWithArraySuffix converts an IR type to HLSL type name,
// returning the base type and array suffix separately.
func (w *Writer) typeToHLSLWithArraySuffix(typ *ir.Type) (typeName, arraySuffix string) {
	switch inner := typ.Inner.(type) {
	case ir.ScalarType:
		return scalarTypeToHLSL(inner), ""

	case ir.VectorType:
		return vectorTypeToHLSL(inner), ""

	case ir.MatrixType:
		return matrixTypeToHLSL(inner), ""

	case ir.ArrayType:
		baseName, baseSuffix := w.getTypeNameWithArraySuffix(inner.Base)
		if inner.Size.Constant != nil {
			return baseName, baseSuffix + fmt.Sprintf("[%d]", *inner.Size.Constant)
		}
		return baseName, baseSuffix + "[1]"

	case ir.StructType:
		for h := range w.module.Types {
			if &w.module.Types[h] == typ {
				return w.typeNames[ir.TypeHandle(h)], ""
			}
		}
		if typ.Name != "" {
			return Escape(typ.Name), ""
		}
		return "unknown_struct", ""

	case ir.PointerType:
		// HLSL has no pointer syntax; emitters carry pointers as the
		// pointee type plus inout qualifiers.
		return w.getTypeNameWithArraySuffix(inner.Base)

	case ir.ValuePointerType:
		if inner.Size != nil {
			return vectorTypeToHLSL(ir.VectorType{Size: *inner.Size, Scalar: inner.Scalar}), ""
		}
		return scalarTypeToHLSL(inner.Scalar), ""

	case ir.SamplerType:
		return samplerTypeToHLSL(inner.Comparison), ""

	case ir.ImageType:
		return w.imageTypeToHLSL(inner), ""

	case ir.AtomicType:
		return scalarTypeToHLSL(inner.Scalar), ""

	case ir.BindingArrayType:
		base, suffix := w.getTypeNameWithArraySuffix(inner.Base)
		if inner.Size.Constant != nil {
			return base, suffix + fmt.Sprintf("[%d]", *inner.Size.Constant)
		}
		return base, suffix + "[]"

	case ir.AccelerationStructureType:
		return "RaytracingAccelerationStructure", ""

	case ir.RayQueryType:
		return "RayQuery<RAY_FLAG_NONE>", ""

	default:
		return fmt.Sprintf("unknown_type_%T", inner), ""
	}
}

// typeInnerName renders an inline TypeInner that may not live in the
// module's arena, such as resolved value types.
func (w *Writer) typeInnerName(inner ir.TypeInner) string {
	switch t := inner.(type) {
	case ir.ScalarType:
		return scalarTypeToHLSL(t)
	case ir.VectorType:
		return vectorTypeToHLSL(t)
	case ir.MatrixType:
		return matrixTypeToHLSL(t)
	case ir.ValuePointerType:
		if t.Size != nil {
			return vectorTypeToHLSL(ir.VectorType{Size: *t.Size, Scalar: t.Scalar})
		}
		return scalarTypeToHLSL(t.Scalar)
	case ir.PointerType:
		return w.getTypeName(t.Base)
	case ir.AtomicType:
		return scalarTypeToHLSL(t.Scalar)
	default:
		// Handle-backed composites are resolved through the arena.
		for h := range w.module.Types {
			if typesStructurallyEqual(w.module.Types[h].Inner, inner) {
				return w.getTypeName(ir.TypeHandle(h))
			}
		}
		return fmt.Sprintf("unknown_type_%T", inner)
	}
}

// resolutionTypeName renders the HLSL type of a resolved expression,
// with the array suffix split off for declaration sites.
func (w *Writer) resolutionTypeName(res ir.TypeResolution) (typeName, arraySuffix string) {
	if res.Handle != nil {
		return w.getTypeNameWithArraySuffix(*res.Handle)
	}
	return w.typeInnerName(res.Value), ""
}

func typesStructurallyEqual(a, b ir.TypeInner) bool {
	switch at := a.(type) {
	case ir.ScalarType:
		bt, ok := b.(ir.ScalarType)
		return ok && at == bt
	case ir.VectorType:
		bt, ok := b.(ir.VectorType)
		return ok && at == bt
	case ir.MatrixType:
		bt, ok := b.(ir.MatrixType)
		return ok && at == bt
	default:
		return false
	}
}

// scalarTypeToHLSL returns the HLSL type name for a scalar type.
func scalarTypeToHLSL(s ir.ScalarType) string {
	switch s.Kind {
	case ir.ScalarBool:
		return hlslTypeBool

	case ir.ScalarSint:
		if s.Width == 8 {
			return "int64_t"
		}
		return hlslTypeInt

	case ir.ScalarUint:
		if s.Width == 8 {
			return "uint64_t"
		}
		return hlslTypeUint

	case ir.ScalarFloat:
		switch s.Width {
		case 2:
			return "half"
		case 8:
			return "double"
		default:
			return hlslTypeFloat
		}

	default:
		return hlslTypeInt
	}
}

// vectorTypeToHLSL returns the HLSL type name for a vector type.
// HLSL uses TypeN syntax (e.g., float4, int3).
func vectorTypeToHLSL(v ir.VectorType) string {
	size := v.Size
	if size < 2 || size > 4 {
		size = 4
	}
	return fmt.Sprintf("%s%d", scalarTypeToHLSL(v.Scalar), size)
}

// matrixTypeToHLSL returns the HLSL type name for a matrix type.
// The IR is column-major; with row_major storage HLSL's CxR reads as
// the IR's columns-by-rows.
func matrixTypeToHLSL(m ir.MatrixType) string {
	cols := m.Columns
	rows := m.Rows

	if cols < 2 || cols > 4 {
		cols = 4
	}
	if rows < 2 || rows > 4 {
		rows = 4
	}

	return fmt.Sprintf("%s%dx%d", scalarTypeToHLSL(m.Scalar), cols, rows)
}

// samplerTypeToHLSL returns the HLSL sampler type name.
func samplerTypeToHLSL(comparison bool) string {
	if comparison {
		return "SamplerComparisonState"
	}
	return "SamplerState"
}

// imageTypeToHLSL returns the HLSL texture type name.
func (w *Writer) imageTypeToHLSL(img ir.ImageType) string {
	var builder strings.Builder

	if img.Class == ir.ImageClassStorage && img.Access.Contains(ir.StorageStore) {
		builder.WriteString("RW")
	}

	builder.WriteString("Texture")

	switch img.Dim {
	case ir.Dim1D:
		builder.WriteString("1D")
	case ir.Dim2D:
		builder.WriteString("2D")
	case ir.Dim3D:
		builder.WriteString("3D")
	case ir.DimCube:
		builder.WriteString("Cube")
	default:
		builder.WriteString("2D")
	}

	if img.Multisampled {
		builder.WriteString("MS")
	}

	// 3D textures cannot be arrays.
	if img.Arrayed && img.Dim != ir.Dim3D {
		builder.WriteString("Array")
	}

	switch img.Class {
	case ir.ImageClassDepth:
		builder.WriteString("<float>")
	case ir.ImageClassSampled, ir.ImageClassStorage:
		builder.WriteString("<float4>")
	}

	return builder.String()
}

// writeConstants writes module-scope constant definitions. Initializers
// come from the module's constant expression arena.
func (w *Writer) writeConstants() error {
	if len(w.module.Constants) == 0 {
		return nil
	}

	for handle := range w.module.Constants {
		constant := &w.module.Constants[handle]
		name := w.names[nameKey{kind: nameKeyConstant, handle1: uint32(handle)}]
		typeName, arraySuffix := w.getTypeNameWithArraySuffix(constant.Type)

		w.writeIndent()
		w.write("static const %s %s%s = ", typeName, name, arraySuffix)
		if err := w.writeConstExpression(constant.Init); err != nil {
			return fmt.Errorf("constant %s: %w", name, err)
		}
		w.write(";\n")
	}
	w.writeLine("")
	return nil
}

// formatFloat32 formats a float32 for HLSL output. The decimal point
// is always present so the literal stays a float.
func formatFloat32(f float32) string {
	if math.IsInf(float64(f), 1) {
		return "1.#INF"
	}
	if math.IsInf(float64(f), -1) {
		return "-1.#INF"
	}
	if math.IsNaN(float64(f)) {
		return "0.0/0.0"
	}
	s := fmt.Sprintf("%g", f)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// formatFloat64 formats a float64 for HLSL output.
func formatFloat64(f float64) string {
	if math.IsInf(f, 1) {
		return "1.#INF"
	}
	if math.IsInf(f, -1) {
		return "-1.#INF"
	}
	if math.IsNaN(f) {
		return "0.0/0.0"
	}
	s := fmt.Sprintf("%g", f)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// isMatrixType checks if the type at handle is a matrix type.
func isMatrixType(module *ir.Module, handle ir.TypeHandle) bool {
	if int(handle) >= len(module.Types) {
		return false
	}
	_, ok := module.Types[handle].Inner.(ir.MatrixType)
	return ok
}

// isArrayType checks if the type at handle is an array type.
func isArrayType(module *ir.Module, handle ir.TypeHandle) bool {
	if int(handle) >= len(module.Types) {
		return false
	}
	_, ok := module.Types[handle].Inner.(ir.ArrayType)
	return ok
}

// isRuntimeArray checks if the type at handle is a runtime-sized array.
func isRuntimeArray(module *ir.Module, handle ir.TypeHandle) bool {
	if int(handle) >= len(module.Types) {
		return false
	}
	arr, ok := module.Types[handle].Inner.(ir.ArrayType)
	return ok && arr.Size.Constant == nil
}

// alignedOffset returns an offset aligned to the specified alignment.
func alignedOffset(offset, alignment uint32) uint32 {
	if alignment == 0 {
		return offset
	}
	return (offset + alignment - 1) &^ (alignment - 1)
}

// getTypeAlignment returns the alignment requirement in bytes for a type.
func getTypeAlignment(module *ir.Module, handle ir.TypeHandle) uint32 {
	if int(handle) >= len(module.Types) {
		return 4
	}

	switch inner := module.Types[handle].Inner.(type) {
	case ir.ScalarType:
		return uint32(inner.Width)
	case ir.VectorType:
		size := uint32(inner.Size) * uint32(inner.Scalar.Width)
		if size > 16 {
			return 16
		}
		return size
	case ir.MatrixType:
		return 16
	case ir.ArrayType:
		elemAlign := getTypeAlignment(module, inner.Base)
		if elemAlign < 16 {
			return 16
		}
		return elemAlign
	case ir.StructType:
		maxAlign := uint32(4)
		for i := range inner.Members {
			memberAlign := getTypeAlignment(module, inner.Members[i].Type)
			if memberAlign > maxAlign {
				maxAlign = memberAlign
			}
		}
		return maxAlign
	case ir.AtomicType:
		return uint32(inner.Scalar.Width)
	default:
		return 4
	}
}

// getTypeSize returns the size in bytes for a type.
func getTypeSize(module *ir.Module, handle ir.TypeHandle) uint32 {
	if int(handle) >= len(module.Types) {
		return 4
	}

	switch inner := module.Types[handle].Inner.(type) {
	case ir.ScalarType:
		return uint32(inner.Width)
	case ir.VectorType:
		return uint32(inner.Size) * uint32(inner.Scalar.Width)
	case ir.MatrixType:
		return uint32(inner.Columns) * uint32(inner.Rows) * uint32(inner.Scalar.Width)
	case ir.ArrayType:
		if inner.Size.Constant != nil {
			elemSize := getTypeSize(module, inner.Base)
			stride := inner.Stride
			if stride == 0 {
				stride = alignedOffset(elemSize, getTypeAlignment(module, inner.Base))
			}
			return stride * (*inner.Size.Constant)
		}
		return 0
	case ir.StructType:
		return inner.Span
	case ir.AtomicType:
		return uint32(inner.Scalar.Width)
	default:
		return 4
	}
}

// getScalarKind returns the scalar kind for a scalar, vector, matrix or
// atomic type.
func getScalarKind(module *ir.Module, handle ir.TypeHandle) (ir.ScalarKind, bool) {
	if int(handle) >= len(module.Types) {
		return 0, false
	}
	switch inner := module.Types[handle].Inner.(type) {
	case ir.ScalarType:
		return inner.Kind, true
	case ir.VectorType:
		return inner.Scalar.Kind, true
	case ir.MatrixType:
		return inner.Scalar.Kind, true
	case ir.AtomicType:
		return inner.Scalar.Kind, true
	default:
		return 0, false
	}
}
