// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"fmt"
	"strings"

	"github.com/gogpu/hlslgen/ir"
)

// storageChain is the flattened form of a pointer access chain into a
// storage buffer: the buffer global plus a byte offset split into its
// constant part and any dynamically indexed terms.
type storageChain struct {
	global     ir.GlobalVariableHandle
	pointee    ir.TypeHandle
	constPart  uint32
	dynParts   []string
	vectorComp *vectorComponent

	// columnVec is set when the chain points at one matrix column.
	columnVec *ir.VectorType
}

// vectorComponent marks a chain that bottoms out inside a vector or
// matrix column, where the pointee is a bare scalar with no arena
// entry.
type vectorComponent struct {
	scalar ir.ScalarType
}

// address renders the chain's byte offset expression.
func (c *storageChain) address() string {
	if len(c.dynParts) == 0 {
		return fmt.Sprintf("%du", c.constPart)
	}
	parts := make([]string, 0, len(c.dynParts)+1)
	parts = append(parts, c.dynParts...)
	if c.constPart > 0 {
		parts = append(parts, fmt.Sprintf("%du", c.constPart))
	}
	return "(" + strings.Join(parts, " + ") + ")"
}

// analyzeStorageChain walks a storage pointer expression down to its
// buffer global and accumulates the byte offset along the way.
//
//nolint:gocyclo // One case per composite layout rule
func (w *Writer) analyzeStorageChain(pointer ir.ExpressionHandle) (*storageChain, error) {
	fn := w.fc.fn

	switch kind := fn.Expressions[pointer].Kind.(type) {
	case ir.ExprGlobalVariable:
		chain := &storageChain{
			global:  kind.Variable,
			pointee: w.module.GlobalVariables[kind.Variable].Type,
		}
		if ref, ok := w.dynamicOffsetRefs[kind.Variable]; ok {
			chain.dynParts = append(chain.dynParts, ref)
		}
		return chain, nil

	case ir.ExprAccessIndex:
		chain, err := w.analyzeStorageChain(kind.Base)
		if err != nil {
			return nil, err
		}
		if chain.columnVec != nil {
			chain.constPart += kind.Index * uint32(chain.columnVec.Scalar.Width)
			chain.vectorComp = &vectorComponent{scalar: chain.columnVec.Scalar}
			chain.columnVec = nil
			return chain, nil
		}
		switch inner := w.module.Types[chain.pointee].Inner.(type) {
		case ir.StructType:
			if int(kind.Index) >= len(inner.Members) {
				return nil, NewError(ErrInvalidModule, "struct index out of range in storage chain")
			}
			member := inner.Members[kind.Index]
			chain.constPart += member.Offset
			chain.pointee = member.Type
		case ir.ArrayType:
			chain.constPart += kind.Index * arrayStride(w.module, inner)
			chain.pointee = inner.Base
		case ir.VectorType:
			chain.constPart += kind.Index * uint32(inner.Scalar.Width)
			chain.vectorComp = &vectorComponent{scalar: inner.Scalar}
		case ir.MatrixType:
			chain.constPart += kind.Index * matrixColumnStride(inner)
			chain.columnVec = &ir.VectorType{Size: inner.Rows, Scalar: inner.Scalar}
		case ir.AtomicType:
			// An atomic chain step keeps the same address.
		default:
			return nil, NewError(ErrInvalidModule,
				fmt.Sprintf("cannot index %T in storage chain", inner))
		}
		return chain, nil

	case ir.ExprAccess:
		chain, err := w.analyzeStorageChain(kind.Base)
		if err != nil {
			return nil, err
		}
		idxStr, err := w.expressionToString(kind.Index)
		if err != nil {
			return nil, err
		}
		if chain.columnVec != nil {
			length := uint32(chain.columnVec.Size)
			idxStr = w.clampedIndex(kind.Index, idxStr, &length)
			chain.dynParts = append(chain.dynParts,
				fmt.Sprintf("(%s * %du)", idxStr, uint32(chain.columnVec.Scalar.Width)))
			chain.vectorComp = &vectorComponent{scalar: chain.columnVec.Scalar}
			chain.columnVec = nil
			return chain, nil
		}
		switch inner := w.module.Types[chain.pointee].Inner.(type) {
		case ir.ArrayType:
			stride := arrayStride(w.module, inner)
			idxStr = w.clampedIndex(kind.Index, idxStr, inner.Size.Constant)
			chain.dynParts = append(chain.dynParts, fmt.Sprintf("(%s * %du)", idxStr, stride))
			chain.pointee = inner.Base
		case ir.VectorType:
			length := uint32(inner.Size)
			idxStr = w.clampedIndex(kind.Index, idxStr, &length)
			chain.dynParts = append(chain.dynParts,
				fmt.Sprintf("(%s * %du)", idxStr, uint32(inner.Scalar.Width)))
			chain.vectorComp = &vectorComponent{scalar: inner.Scalar}
		case ir.MatrixType:
			length := uint32(inner.Columns)
			idxStr = w.clampedIndex(kind.Index, idxStr, &length)
			chain.dynParts = append(chain.dynParts,
				fmt.Sprintf("(%s * %du)", idxStr, matrixColumnStride(inner)))
			chain.columnVec = &ir.VectorType{Size: inner.Rows, Scalar: inner.Scalar}
		default:
			return nil, NewError(ErrInvalidModule,
				fmt.Sprintf("cannot dynamically index %T in storage chain", inner))
		}
		return chain, nil

	default:
		return nil, NewError(ErrInvalidModule,
			fmt.Sprintf("unsupported storage chain expression %T", kind))
	}
}

// clampedIndex wraps a dynamic index in uint() and, under restricted
// indexing, clamps it to the composite's last element. Indexes that
// provably stay in range skip the clamp.
func (w *Writer) clampedIndex(index ir.ExpressionHandle, idxStr string, length *uint32) string {
	if w.options.RestrictIndexing && length != nil && *length > 0 &&
		!w.indexProvablyInRange(index, *length) {
		return fmt.Sprintf("min(uint(%s), %du)", idxStr, *length-1)
	}
	return fmt.Sprintf("uint(%s)", idxStr)
}

// indexProvablyInRange reports whether a dynamic index is a constant
// that cannot reach past the composite's length.
func (w *Writer) indexProvablyInRange(index ir.ExpressionHandle, length uint32) bool {
	kind := w.fc.fn.Expressions[index].Kind
	if c, ok := kind.(ir.ExprConstant); ok {
		if int(c.Constant) >= len(w.module.Constants) {
			return false
		}
		init := w.module.Constants[c.Constant].Init
		if int(init) >= len(w.module.GlobalExpressions) {
			return false
		}
		kind = w.module.GlobalExpressions[init].Kind
	}
	lit, ok := kind.(ir.Literal)
	if !ok {
		return false
	}
	switch v := lit.Value.(type) {
	case ir.LiteralU32:
		return uint32(v) < length
	case ir.LiteralI32:
		return v >= 0 && uint32(v) < length
	default:
		return false
	}
}

func arrayStride(module *ir.Module, arr ir.ArrayType) uint32 {
	if arr.Stride != 0 {
		return arr.Stride
	}
	size := getTypeSize(module, arr.Base)
	return alignedOffset(size, getTypeAlignment(module, arr.Base))
}

// matrixColumnStride returns the byte stride between matrix columns in
// a storage buffer.
func matrixColumnStride(mat ir.MatrixType) uint32 {
	size := uint32(mat.Rows) * uint32(mat.Scalar.Width)
	if size > 8 {
		return 16
	}
	return size
}

// writeStorageLoad writes a load from a byte-address buffer.
func (w *Writer) writeStorageLoad(pointer ir.ExpressionHandle) error {
	chain, err := w.analyzeStorageChain(pointer)
	if err != nil {
		return err
	}
	bufName, err := w.globalName(chain.global)
	if err != nil {
		return err
	}

	if chain.vectorComp != nil {
		w.write(w.scalarBufferLoad(bufName, chain.address(), chain.vectorComp.scalar))
		return nil
	}
	if chain.columnVec != nil {
		w.write(w.vectorBufferLoad(bufName, chain.address(), *chain.columnVec))
		return nil
	}
	return w.writeStorageLoadOfType(bufName, chain.address(), chain.pointee)
}

// writeStorageLoadOfType writes the load of a whole value of the given
// type at an address. Structs and arrays defer to generated loader
// functions.
func (w *Writer) writeStorageLoadOfType(bufName, addr string, handle ir.TypeHandle) error {
	switch inner := w.module.Types[handle].Inner.(type) {
	case ir.ScalarType:
		w.write(w.scalarBufferLoad(bufName, addr, inner))
	case ir.AtomicType:
		w.write(w.scalarBufferLoad(bufName, addr, inner.Scalar))
	case ir.VectorType:
		w.write(w.vectorBufferLoad(bufName, addr, inner))
	case ir.MatrixType:
		stride := matrixColumnStride(inner)
		w.write("%s(", matrixTypeToHLSL(inner))
		for col := 0; col < int(inner.Columns); col++ {
			if col > 0 {
				w.write(", ")
			}
			colAddr := fmt.Sprintf("(%s + %du)", addr, uint32(col)*stride)
			w.write(w.vectorBufferLoad(bufName, colAddr, ir.VectorType{Size: inner.Rows, Scalar: inner.Scalar}))
		}
		w.write(")")
	case ir.StructType, ir.ArrayType:
		global := w.storageGlobalByName(bufName)
		w.write("%s(%s, %s)", w.storageLoaderName(handle, global), bufName, addr)
	default:
		return NewError(ErrUnsupportedType, fmt.Sprintf("storage load of %T", inner))
	}
	return nil
}

// scalarBufferLoad renders a scalar load, reinterpreting the raw dword
// as the destination scalar kind.
func (w *Writer) scalarBufferLoad(bufName, addr string, scalar ir.ScalarType) string {
	if scalar.Width == 8 {
		w.require(ShaderModel6_6, Feature64BitIntegers)
		return fmt.Sprintf("%s.Load<%s>(%s)", bufName, scalarTypeToHLSL(scalar), addr)
	}
	switch scalar.Kind {
	case ir.ScalarFloat:
		return fmt.Sprintf("asfloat(%s.Load(%s))", bufName, addr)
	case ir.ScalarSint:
		return fmt.Sprintf("asint(%s.Load(%s))", bufName, addr)
	case ir.ScalarBool:
		return fmt.Sprintf("(%s.Load(%s) != 0u)", bufName, addr)
	default:
		return fmt.Sprintf("%s.Load(%s)", bufName, addr)
	}
}

// vectorBufferLoad renders a LoadN with the right reinterpretation.
func (w *Writer) vectorBufferLoad(bufName, addr string, vec ir.VectorType) string {
	if vec.Scalar.Width == 8 {
		w.require(ShaderModel6_6, Feature64BitIntegers)
		return fmt.Sprintf("%s.Load<%s>(%s)", bufName, vectorTypeToHLSL(vec), addr)
	}
	raw := fmt.Sprintf("%s.Load%d(%s)", bufName, vec.Size, addr)
	switch vec.Scalar.Kind {
	case ir.ScalarFloat:
		return fmt.Sprintf("asfloat(%s)", raw)
	case ir.ScalarSint:
		return fmt.Sprintf("asint(%s)", raw)
	default:
		return raw
	}
}

// writeStorageStore writes a store statement into a byte-address
// buffer. Composite values are materialized into a temporary and
// written field by field.
func (w *Writer) writeStorageStore(pointer, value ir.ExpressionHandle) error {
	chain, err := w.analyzeStorageChain(pointer)
	if err != nil {
		return err
	}
	bufName, err := w.globalName(chain.global)
	if err != nil {
		return err
	}
	valueStr, err := w.expressionToString(value)
	if err != nil {
		return err
	}

	if chain.vectorComp != nil {
		w.writeIndent()
		w.writeScalarBufferStore(bufName, chain.address(), valueStr, chain.vectorComp.scalar)
		w.write("\n")
		return nil
	}
	if chain.columnVec != nil {
		w.writeIndent()
		w.writeVectorBufferStore(bufName, chain.address(), valueStr, *chain.columnVec)
		w.write("\n")
		return nil
	}

	inner := w.module.Types[chain.pointee].Inner
	switch inner.(type) {
	case ir.ScalarType, ir.AtomicType, ir.VectorType:
		w.writeIndent()
		if err := w.writeStorageStoreOfType(bufName, chain.address(), valueStr, chain.pointee); err != nil {
			return err
		}
		w.write("\n")
		return nil
	}

	// Composite stores re-read the value per field, so bake it first.
	tmp := w.namer.call("_value")
	typeName, arraySuffix := w.getTypeNameWithArraySuffix(chain.pointee)
	w.writeLine("{")
	w.pushIndent()
	w.writeLine("%s %s%s = %s;", typeName, tmp, arraySuffix, valueStr)
	err = w.writeStorageStoreOfTypeLines(bufName, chain.address(), tmp, chain.pointee)
	w.popIndent()
	w.writeLine("}")
	return err
}

// writeStorageStoreOfType writes a single Store/StoreN call without
// trailing newline or indentation.
func (w *Writer) writeStorageStoreOfType(bufName, addr, valueStr string, handle ir.TypeHandle) error {
	switch inner := w.module.Types[handle].Inner.(type) {
	case ir.ScalarType:
		w.writeScalarBufferStore(bufName, addr, valueStr, inner)
	case ir.AtomicType:
		w.writeScalarBufferStore(bufName, addr, valueStr, inner.Scalar)
	case ir.VectorType:
		w.writeVectorBufferStore(bufName, addr, valueStr, inner)
	default:
		return NewError(ErrUnsupportedType, fmt.Sprintf("storage store of %T", inner))
	}
	return nil
}

// writeStorageStoreOfTypeLines recursively writes the stores for a
// value of any type, one line per leaf field.
func (w *Writer) writeStorageStoreOfTypeLines(bufName, addr, valueStr string, handle ir.TypeHandle) error {
	switch inner := w.module.Types[handle].Inner.(type) {
	case ir.ScalarType, ir.AtomicType, ir.VectorType:
		w.writeIndent()
		if err := w.writeStorageStoreOfType(bufName, addr, valueStr, handle); err != nil {
			return err
		}
		w.write("\n")

	case ir.MatrixType:
		stride := matrixColumnStride(inner)
		for col := 0; col < int(inner.Columns); col++ {
			colAddr := fmt.Sprintf("(%s + %du)", addr, uint32(col)*stride)
			w.writeIndent()
			w.writeVectorBufferStore(bufName, colAddr, fmt.Sprintf("%s[%d]", valueStr, col),
				ir.VectorType{Size: inner.Rows, Scalar: inner.Scalar})
			w.write("\n")
		}

	case ir.StructType:
		layout := w.structLayouts[handle]
		for i, member := range inner.Members {
			if layout != nil && i < len(layout.fields) && layout.fields[i].mat2Cols > 0 {
				field := &layout.fields[i]
				colVec := ir.VectorType{Size: ir.Vec2, Scalar: field.mat2Scalar}
				stride := matrixColumnStride(ir.MatrixType{
					Columns: ir.VectorSize(field.mat2Cols), Rows: ir.Vec2, Scalar: field.mat2Scalar,
				})
				for col := 0; col < field.mat2Cols; col++ {
					colAddr := fmt.Sprintf("(%s + %du)", addr, member.Offset+uint32(col)*stride)
					w.writeIndent()
					w.writeVectorBufferStore(bufName, colAddr,
						fmt.Sprintf("%s.%s_%d", valueStr, field.name, col), colVec)
					w.write("\n")
				}
				continue
			}
			memberAddr := fmt.Sprintf("(%s + %du)", addr, member.Offset)
			memberValue := fmt.Sprintf("%s.%s", valueStr, w.structMemberName(handle, uint32(i)))
			if err := w.writeStorageStoreOfTypeLines(bufName, memberAddr, memberValue, member.Type); err != nil {
				return err
			}
		}

	case ir.ArrayType:
		if inner.Size.Constant == nil {
			return NewError(ErrInvalidModule, "cannot store a whole runtime-sized array")
		}
		stride := arrayStride(w.module, inner)
		for i := uint32(0); i < *inner.Size.Constant; i++ {
			elemAddr := fmt.Sprintf("(%s + %du)", addr, i*stride)
			elemValue := fmt.Sprintf("%s[%d]", valueStr, i)
			if err := w.writeStorageStoreOfTypeLines(bufName, elemAddr, elemValue, inner.Base); err != nil {
				return err
			}
		}

	default:
		return NewError(ErrUnsupportedType, fmt.Sprintf("storage store of %T", inner))
	}
	return nil
}

func (w *Writer) writeScalarBufferStore(bufName, addr, valueStr string, scalar ir.ScalarType) {
	if scalar.Width == 8 {
		w.require(ShaderModel6_6, Feature64BitIntegers)
		w.write("%s.Store<%s>(%s, %s);", bufName, scalarTypeToHLSL(scalar), addr, valueStr)
		return
	}
	switch scalar.Kind {
	case ir.ScalarUint:
		w.write("%s.Store(%s, %s);", bufName, addr, valueStr)
	case ir.ScalarBool:
		w.write("%s.Store(%s, (%s ? 1u : 0u));", bufName, addr, valueStr)
	default:
		w.write("%s.Store(%s, asuint(%s));", bufName, addr, valueStr)
	}
}

func (w *Writer) writeVectorBufferStore(bufName, addr, valueStr string, vec ir.VectorType) {
	if vec.Scalar.Width == 8 {
		w.require(ShaderModel6_6, Feature64BitIntegers)
		w.write("%s.Store<%s>(%s, %s);", bufName, vectorTypeToHLSL(vec), addr, valueStr)
		return
	}
	if vec.Scalar.Kind == ir.ScalarUint {
		w.write("%s.Store%d(%s, %s);", bufName, vec.Size, addr, valueStr)
		return
	}
	w.write("%s.Store%d(%s, asuint(%s));", bufName, vec.Size, addr, valueStr)
}

// storageGlobalByName finds the storage global emitted under a name.
// Loader functions need the buffer's RW-ness for their parameter type.
func (w *Writer) storageGlobalByName(name string) *ir.GlobalVariable {
	for handle := range w.module.GlobalVariables {
		global := &w.module.GlobalVariables[handle]
		if global.Space != ir.SpaceStorage {
			continue
		}
		if w.names[nameKey{kind: nameKeyGlobalVariable, handle1: uint32(handle)}] == name {
			return global
		}
	}
	return nil
}

// storageLoaderName builds the deterministic name of the generated
// loader for a composite type in a storage buffer.
func (w *Writer) storageLoaderName(handle ir.TypeHandle, global *ir.GlobalVariable) string {
	suffix := ""
	if global != nil && global.Access.Contains(ir.StorageStore) {
		suffix = "RW"
	}
	return fmt.Sprintf("NagaLoad%s_%s", suffix, w.typeNames[handle])
}
