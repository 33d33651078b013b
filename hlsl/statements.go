// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"fmt"

	"github.com/gogpu/hlslgen/ir"
)

// writeBlock writes a sequence of statements.
func (w *Writer) writeBlock(block ir.Block) error {
	for i := range block {
		if err := w.writeStatement(block[i]); err != nil {
			return err
		}
	}
	return nil
}

// writeStatement writes a single statement.
//
//nolint:gocyclo,cyclop // One case per statement kind
func (w *Writer) writeStatement(stmt ir.Statement) error {
	switch kind := stmt.Kind.(type) {
	case ir.StmtEmit:
		return w.writeEmitStatement(kind.Range)

	case ir.StmtBlock:
		w.writeLine("{")
		w.pushIndent()
		err := w.writeBlock(kind.Block)
		w.popIndent()
		w.writeLine("}")
		return err

	case ir.StmtIf:
		condStr, err := w.expressionToString(kind.Condition)
		if err != nil {
			return err
		}
		w.writeLine("if (%s) {", condStr)
		w.pushIndent()
		if err := w.writeBlock(kind.Accept); err != nil {
			return err
		}
		w.popIndent()
		if len(kind.Reject) > 0 {
			w.writeLine("} else {")
			w.pushIndent()
			if err := w.writeBlock(kind.Reject); err != nil {
				return err
			}
			w.popIndent()
		}
		w.writeLine("}")
		return nil

	case ir.StmtSwitch:
		return w.writeSwitch(kind)

	case ir.StmtLoop:
		return w.writeLoop(kind)

	case ir.StmtBreak:
		w.writeLine("break;")
		return nil

	case ir.StmtContinue:
		return w.writeContinue()

	case ir.StmtReturn:
		return w.writeReturn(kind.Value)

	case ir.StmtKill:
		w.writeLine("discard;")
		return nil

	case ir.StmtBarrier:
		w.writeBarrier(kind.Flags, true)
		return nil

	case ir.StmtMemoryBarrier:
		w.writeBarrier(kind.Flags, false)
		return nil

	case ir.StmtStore:
		return w.writeStore(kind)

	case ir.StmtImageStore:
		return w.writeImageStore(kind)

	case ir.StmtAtomic:
		return w.writeAtomic(kind)

	case ir.StmtWorkGroupUniformLoad:
		return w.writeWorkGroupUniformLoad(kind)

	case ir.StmtCall:
		return w.writeCall(kind)

	case ir.StmtRayQuery:
		return w.writeRayQueryStatement(kind)

	case ir.StmtSubgroupBallot:
		return w.writeSubgroupBallot(kind)

	case ir.StmtSubgroupCollectiveOperation:
		return w.writeSubgroupCollective(kind)

	case ir.StmtSubgroupGather:
		return w.writeSubgroupGather(kind)

	default:
		return NewError(ErrUnimplemented, fmt.Sprintf("statement kind %T", kind))
	}
}

// writeEmitStatement materializes expressions that need a local:
// anything the front end named, and anything referenced more than once
// whose re-evaluation would duplicate work or side effects.
func (w *Writer) writeEmitStatement(r ir.Range) error {
	for handle := r.Start; handle < r.End; handle++ {
		userName, named := w.fc.fn.NamedExpressions[handle]

		if !named {
			if w.fc.info.RefCount(handle) <= 1 || !w.isBakeable(handle) {
				continue
			}
		} else if !w.isBakeable(handle) {
			continue
		}

		var name string
		if named {
			name = w.namer.call(userName)
		} else {
			name = fmt.Sprintf("_e%d", handle)
		}

		typeName, arraySuffix := w.resolutionTypeName(w.fc.info.ResolvedType(handle))
		w.writeIndent()
		w.write("%s %s%s = ", typeName, name, arraySuffix)
		if err := w.writeRawExpression(handle); err != nil {
			return err
		}
		w.write(";\n")
		w.nameExpression(handle, name)
	}
	return nil
}

// isBakeable reports whether an expression can live in a local.
// Pointer-typed expressions cannot; trivially re-emittable expressions
// are not worth a local.
func (w *Writer) isBakeable(handle ir.ExpressionHandle) bool {
	switch w.fc.info.ResolvedType(handle).Inner(w.module).(type) {
	case ir.PointerType, ir.ValuePointerType:
		return false
	}
	switch w.fc.fn.Expressions[handle].Kind.(type) {
	case ir.Literal, ir.ExprConstant, ir.ExprZeroValue,
		ir.ExprFunctionArgument, ir.ExprGlobalVariable, ir.ExprLocalVariable:
		return false
	}
	return true
}

// writeContinue writes a continue, forwarding it through a flag when
// the innermost enclosing construct is a switch. HLSL has no labeled
// continue, so the switch breaks and the loop re-dispatches.
func (w *Writer) writeContinue() error {
	if n := len(w.continueStack); n > 0 {
		if ctx := w.continueStack[n-1]; ctx != nil {
			ctx.used = true
			w.writeLine("%s = true;", ctx.variable)
			w.writeLine("break;")
			return nil
		}
	}
	w.writeLine("continue;")
	return nil
}

// writeReturn writes a return statement. Entry points route through
// the interface epilogue that gathers the output struct.
func (w *Writer) writeReturn(value *ir.ExpressionHandle) error {
	if w.fc.isEntryPoint && w.fc.fn.Result != nil {
		return w.writeEntryPointReturn(value)
	}
	if value == nil {
		w.writeLine("return;")
		return nil
	}
	valueStr, err := w.expressionToString(*value)
	if err != nil {
		return err
	}
	w.writeLine("return %s;", valueStr)
	return nil
}

// writeBarrier writes a barrier. Execution barriers synchronize the
// group; memory barriers only order accesses.
func (w *Writer) writeBarrier(flags ir.BarrierFlags, sync bool) {
	suffix := ""
	if sync {
		suffix = "WithGroupSync"
	}
	if flags&(ir.BarrierStorage|ir.BarrierTexture) != 0 {
		w.writeLine("DeviceMemoryBarrier%s();", suffix)
	}
	if flags&ir.BarrierWorkGroup != 0 {
		w.writeLine("GroupMemoryBarrier%s();", suffix)
	}
	if flags&ir.BarrierSubGroup != 0 && sync {
		// Wave execution is implicitly synchronized per lane group.
		w.require(ShaderModel6_0, FeatureWaveOps)
	}
	if flags == 0 && sync {
		w.writeLine("GroupMemoryBarrier%s();", suffix)
	}
}

// writeSwitch writes a switch statement.
//
// A switch whose cases are all empty fallthroughs into the final body
// collapses into a breakable do-block. Non-empty fallthrough inlines
// the following case bodies, rolling back baked names so duplicated
// code re-declares its temporaries. A switch inside a loop forwards
// continue through a flag checked after the switch.
func (w *Writer) writeSwitch(kind ir.StmtSwitch) error {
	var cc *continueCtx
	if len(w.continueStack) > 0 {
		cc = &continueCtx{variable: w.namer.call("should_continue")}
		w.writeLine("bool %s = false;", cc.variable)
	}
	w.continueStack = append(w.continueStack, cc)
	err := w.writeSwitchBody(kind)
	w.continueStack = w.continueStack[:len(w.continueStack)-1]
	if err != nil {
		return err
	}

	if cc != nil && cc.used {
		w.writeLine("if (%s) {", cc.variable)
		w.pushIndent()
		w.writeLine("continue;")
		w.popIndent()
		w.writeLine("}")
	}
	return nil
}

func (w *Writer) writeSwitchBody(kind ir.StmtSwitch) error {
	if collapsed := w.switchCollapsesToLastCase(kind.Cases); collapsed != nil {
		w.writeLine("do {")
		w.pushIndent()
		err := w.writeBlock(*collapsed)
		w.popIndent()
		w.writeLine("} while(false);")
		return err
	}

	selStr, err := w.expressionToString(kind.Selector)
	if err != nil {
		return err
	}
	selScalar, _ := resolutionScalar(w.module, w.fc.info.ResolvedType(kind.Selector))
	unsigned := selScalar.Kind == ir.ScalarUint

	w.writeLine("switch(%s) {", selStr)
	for i := range kind.Cases {
		c := &kind.Cases[i]
		w.writeIndent()
		w.write("%s: {\n", switchCaseLabel(c.Value, unsigned))
		w.pushIndent()

		checkpoint := w.namedCheckpoint()
		terminated := false
		if c.FallThrough {
			// Duplicate the bodies this case falls through into.
			for j := i; j < len(kind.Cases); j++ {
				if err := w.writeBlock(kind.Cases[j].Body); err != nil {
					return err
				}
				if !kind.Cases[j].FallThrough {
					terminated = blockEndsControlFlow(kind.Cases[j].Body)
					break
				}
			}
			w.rollbackNamed(checkpoint)
		} else {
			if err := w.writeBlock(c.Body); err != nil {
				return err
			}
			terminated = blockEndsControlFlow(c.Body)
		}

		if !terminated {
			w.writeLine("break;")
		}
		w.popIndent()
		w.writeLine("}")
	}
	w.writeLine("}")
	return nil
}

// switchCollapsesToLastCase reports whether every case is an empty
// fallthrough into a final non-fallthrough body, returning that body.
func (w *Writer) switchCollapsesToLastCase(cases []ir.SwitchCase) *ir.Block {
	if len(cases) == 0 {
		return nil
	}
	last := &cases[len(cases)-1]
	if last.FallThrough {
		return nil
	}
	for i := 0; i < len(cases)-1; i++ {
		if len(cases[i].Body) > 0 || !cases[i].FallThrough {
			return nil
		}
	}
	return &last.Body
}

func switchCaseLabel(value ir.SwitchValue, unsigned bool) string {
	switch v := value.(type) {
	case ir.SwitchValueI32:
		return fmt.Sprintf("case %d", int32(v))
	case ir.SwitchValueU32:
		if unsigned {
			return fmt.Sprintf("case %du", uint32(v))
		}
		return fmt.Sprintf("case %d", uint32(v))
	default:
		return "default"
	}
}

// blockEndsControlFlow reports whether a block's last statement already
// leaves the enclosing switch.
func blockEndsControlFlow(block ir.Block) bool {
	if len(block) == 0 {
		return false
	}
	switch block[len(block)-1].Kind.(type) {
	case ir.StmtBreak, ir.StmtReturn, ir.StmtKill, ir.StmtContinue:
		return true
	default:
		return false
	}
}

// writeLoop writes a loop.
//
// The continuing block replays at the top of each iteration behind a
// first-iteration gate, because HLSL has no do-continuing construct.
// Under forced bounding, a uint2 countdown caps the iteration count so
// structurally infinite loops terminate.
func (w *Writer) writeLoop(kind ir.StmtLoop) error {
	gate := ""
	if len(kind.Continuing) > 0 || kind.BreakIf != nil {
		gate = w.namer.call(LoopInitVarPrefix)
		w.writeLine("bool %s = true;", gate)
	}

	bound := ""
	if w.options.ForceLoopBounding {
		bound = w.namer.call(LoopBoundVarPrefix)
		w.writeLine("uint2 %s = uint2(4294967295u, 4294967295u);", bound)
	}

	w.writeLine("while(true) {")
	w.pushIndent()

	if bound != "" {
		w.writeLine("if (all(%s == uint2(0u, 0u))) { break; }", bound)
		w.writeLine("%s -= uint2(%s.y == 0u, 1u);", bound, bound)
	}

	if gate != "" {
		w.writeLine("if (!%s) {", gate)
		w.pushIndent()
		if err := w.writeBlock(kind.Continuing); err != nil {
			return err
		}
		if kind.BreakIf != nil {
			breakIfStr, err := w.expressionToString(*kind.BreakIf)
			if err != nil {
				return err
			}
			w.writeLine("if (%s) {", breakIfStr)
			w.pushIndent()
			w.writeLine("break;")
			w.popIndent()
			w.writeLine("}")
		}
		w.popIndent()
		w.writeLine("}")
		w.writeLine("%s = false;", gate)
	}

	w.continueStack = append(w.continueStack, nil)
	err := w.writeBlock(kind.Body)
	w.continueStack = w.continueStack[:len(w.continueStack)-1]

	w.popIndent()
	w.writeLine("}")
	return err
}

// writeStore writes a store through a pointer.
func (w *Writer) writeStore(kind ir.StmtStore) error {
	pointerRes := w.fc.info.ResolvedType(kind.Pointer)
	if space, ok := pointerRes.PointerSpace(w.module); ok && space == ir.SpaceStorage {
		return w.writeStorageStore(kind.Pointer, kind.Value)
	}

	if handled, err := w.writeDecomposedStore(kind.Pointer, kind.Value); handled || err != nil {
		return err
	}

	pointerStr, err := w.expressionToString(kind.Pointer)
	if err != nil {
		return err
	}
	valueStr, err := w.expressionToString(kind.Value)
	if err != nil {
		return err
	}
	w.writeLine("%s = %s;", pointerStr, valueStr)
	return nil
}

// writeDecomposedStore handles stores whose destination chain passes a
// matCx2 struct member that was decomposed into column fields.
//
//nolint:gocyclo // Each chain shape stores differently
func (w *Writer) writeDecomposedStore(pointer, value ir.ExpressionHandle) (bool, error) {
	fn := w.fc.fn

	// Whole-matrix store: pointer is the decomposed member itself.
	if access, ok := fn.Expressions[pointer].Kind.(ir.ExprAccessIndex); ok {
		if field, base, ok := w.decomposedTarget(access); ok {
			baseStr, err := w.expressionToString(base)
			if err != nil {
				return true, err
			}
			valueStr, err := w.expressionToString(value)
			if err != nil {
				return true, err
			}
			tmp := w.namer.call("_value")
			mat := ir.MatrixType{Columns: ir.VectorSize(field.mat2Cols), Rows: ir.Vec2, Scalar: field.mat2Scalar}
			w.writeLine("{")
			w.pushIndent()
			w.writeLine("%s %s = %s;", matrixTypeToHLSL(mat), tmp, valueStr)
			for col := 0; col < field.mat2Cols; col++ {
				w.writeLine("%s.%s_%d = %s[%d];", baseStr, field.name, col, tmp, col)
			}
			w.popIndent()
			w.writeLine("}")
			return true, nil
		}
	}

	// Column or element store: one or two indexing steps below the
	// decomposed member.
	steps := []indexStep{}
	cursor := pointer
	for depth := 0; depth < 3; depth++ {
		switch access := fn.Expressions[cursor].Kind.(type) {
		case ir.ExprAccessIndex:
			if field, base, ok := w.decomposedTarget(access); ok {
				return true, w.writeDecomposedIndexedStore(base, field, steps, value)
			}
			steps = append([]indexStep{{constant: &access.Index}}, steps...)
			cursor = access.Base
		case ir.ExprAccess:
			idx := access.Index
			steps = append([]indexStep{{dynamic: &idx}}, steps...)
			cursor = access.Base
		default:
			return false, nil
		}
	}
	return false, nil
}

type indexStep struct {
	constant *uint32
	dynamic  *ir.ExpressionHandle
}

// decomposedTarget resolves an AccessIndex to a decomposed struct
// member, returning its field layout and base expression.
func (w *Writer) decomposedTarget(access ir.ExprAccessIndex) (*structField, ir.ExpressionHandle, bool) {
	baseRes := w.fc.info.ResolvedType(access.Base)
	structHandle, ok := w.structHandleOf(baseRes)
	if !ok {
		return nil, 0, false
	}
	field, decomposed := w.decomposedField(structHandle, access.Index)
	if !decomposed {
		return nil, 0, false
	}
	return field, access.Base, true
}

// writeDecomposedIndexedStore writes a store into one column or one
// element of a decomposed matCx2 member.
func (w *Writer) writeDecomposedIndexedStore(base ir.ExpressionHandle, field *structField, steps []indexStep, value ir.ExpressionHandle) error {
	baseStr, err := w.expressionToString(base)
	if err != nil {
		return err
	}
	valueStr, err := w.expressionToString(value)
	if err != nil {
		return err
	}

	if len(steps) == 0 || len(steps) > 2 {
		return NewError(ErrInternalError, "unexpected decomposed store chain shape")
	}

	col := steps[0]
	if col.constant != nil {
		target := fmt.Sprintf("%s.%s_%d", baseStr, field.name, *col.constant)
		if len(steps) == 2 {
			rowStr, rowErr := w.indexStepString(steps[1])
			if rowErr != nil {
				return rowErr
			}
			w.writeLine("%s[%s] = %s;", target, rowStr, valueStr)
			return nil
		}
		w.writeLine("%s = %s;", target, valueStr)
		return nil
	}

	colStr, err := w.indexStepString(col)
	if err != nil {
		return err
	}
	columns := w.columnFieldList(baseStr, field)

	if len(steps) == 2 {
		rowStr, rowErr := w.indexStepString(steps[1])
		if rowErr != nil {
			return rowErr
		}
		w.writeLine("%s%dx2(%s, uint(%s), uint(%s), %s);",
			SetElOfMatrixPrefix, field.mat2Cols, columns, colStr, rowStr, valueStr)
		return nil
	}
	w.writeLine("%s%dx2(%s, uint(%s), %s);",
		SetColOfMatrixPrefix, field.mat2Cols, columns, colStr, valueStr)
	return nil
}

func (w *Writer) indexStepString(step indexStep) (string, error) {
	if step.constant != nil {
		return fmt.Sprintf("%d", *step.constant), nil
	}
	return w.expressionToString(*step.dynamic)
}

func (w *Writer) columnFieldList(baseStr string, field *structField) string {
	out := ""
	for col := 0; col < field.mat2Cols; col++ {
		if col > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s.%s_%d", baseStr, field.name, col)
	}
	return out
}

// writeImageStore writes a texel store to a storage image.
func (w *Writer) writeImageStore(kind ir.StmtImageStore) error {
	img, err := w.imageOf(kind.Image)
	if err != nil {
		return err
	}
	imageStr, err := w.expressionToString(kind.Image)
	if err != nil {
		return err
	}
	coordStr, err := w.expressionToString(kind.Coordinate)
	if err != nil {
		return err
	}
	if kind.ArrayIndex != nil {
		idxStr, idxErr := w.expressionToString(*kind.ArrayIndex)
		if idxErr != nil {
			return idxErr
		}
		coordStr = fmt.Sprintf("int%d(%s, %s)", dimCoordComponents(img.Dim)+1, coordStr, idxStr)
	}
	valueStr, err := w.expressionToString(kind.Value)
	if err != nil {
		return err
	}
	w.writeLine("%s[%s] = %s;", imageStr, coordStr, valueStr)
	return nil
}

// writeAtomic writes an atomic read-modify-write.
//
// Storage buffer atomics use the buffer's Interlocked methods with a
// byte address; workgroup atomics use the free functions. Subtraction
// maps to addition of the negated value since HLSL has no
// InterlockedSubtract.
func (w *Writer) writeAtomic(kind ir.StmtAtomic) error {
	scalar, _ := resolutionScalar(w.module, w.fc.info.ResolvedType(kind.Pointer))
	suffix64 := ""
	if scalar.Width == 8 {
		w.require(ShaderModel6_6, Feature64BitAtomics)
		suffix64 = "64"
	}

	valueStr, err := w.expressionToString(kind.Value)
	if err != nil {
		return err
	}
	if _, isSub := kind.Fun.(ir.AtomicSubtract); isSub {
		valueStr = fmt.Sprintf("-(%s)", valueStr)
	}

	var target string
	var storageBuf string
	pointerRes := w.fc.info.ResolvedType(kind.Pointer)
	if space, ok := pointerRes.PointerSpace(w.module); ok && space == ir.SpaceStorage {
		chain, chainErr := w.analyzeStorageChain(kind.Pointer)
		if chainErr != nil {
			return chainErr
		}
		bufName, nameErr := w.globalName(chain.global)
		if nameErr != nil {
			return nameErr
		}
		storageBuf = bufName
		target = chain.address()
	} else {
		target, err = w.expressionToString(kind.Pointer)
		if err != nil {
			return err
		}
	}

	fun := atomicFunctionName(kind.Fun) + suffix64
	call := func(args string) string {
		if storageBuf != "" {
			return fmt.Sprintf("%s.Interlocked%s(%s)", storageBuf, fun, args)
		}
		return fmt.Sprintf("Interlocked%s(%s)", fun, args)
	}

	if exchange, isExchange := kind.Fun.(ir.AtomicExchange); isExchange && exchange.Compare != nil {
		return w.writeCompareExchange(kind, call, target, valueStr, *exchange.Compare)
	}

	if kind.Result == nil {
		w.writeLine("%s;", call(fmt.Sprintf("%s, %s", target, valueStr)))
		return nil
	}

	resultName := fmt.Sprintf("_e%d", *kind.Result)
	typeName, _ := w.resolutionTypeName(w.fc.info.ResolvedType(*kind.Result))
	w.writeLine("%s %s;", typeName, resultName)
	w.writeLine("%s;", call(fmt.Sprintf("%s, %s, %s", target, valueStr, resultName)))
	w.nameExpression(*kind.Result, resultName)
	return nil
}

// writeCompareExchange writes a compare-exchange and fills the result
// struct's exchanged flag from the observed value.
func (w *Writer) writeCompareExchange(kind ir.StmtAtomic, call func(string) string, target, valueStr string, compare ir.ExpressionHandle) error {
	compareStr, err := w.expressionToString(compare)
	if err != nil {
		return err
	}
	if kind.Result == nil {
		w.writeLine("%s;", call(fmt.Sprintf("%s, %s, %s", target, compareStr, valueStr)))
		return nil
	}

	resultName := fmt.Sprintf("_e%d", *kind.Result)
	typeName, _ := w.resolutionTypeName(w.fc.info.ResolvedType(*kind.Result))
	w.writeLine("%s %s;", typeName, resultName)
	w.writeLine("%s;", call(fmt.Sprintf("%s, %s, %s, %s.old_value", target, compareStr, valueStr, resultName)))
	w.writeLine("%s.exchanged = (%s.old_value == %s);", resultName, resultName, compareStr)
	w.nameExpression(*kind.Result, resultName)
	return nil
}

func atomicFunctionName(fun ir.AtomicFunction) string {
	switch f := fun.(type) {
	case ir.AtomicAdd, ir.AtomicSubtract:
		return "Add"
	case ir.AtomicAnd:
		return "And"
	case ir.AtomicExclusiveOr:
		return "Xor"
	case ir.AtomicInclusiveOr:
		return "Or"
	case ir.AtomicMin:
		return "Min"
	case ir.AtomicMax:
		return "Max"
	case ir.AtomicExchange:
		if f.Compare != nil {
			return "CompareExchange"
		}
		return "Exchange"
	default:
		return "Exchange"
	}
}

// writeWorkGroupUniformLoad writes a uniform load bracketed by group
// barriers.
func (w *Writer) writeWorkGroupUniformLoad(kind ir.StmtWorkGroupUniformLoad) error {
	w.writeLine("GroupMemoryBarrierWithGroupSync();")

	resultName := fmt.Sprintf("_e%d", kind.Result)
	typeName, arraySuffix := w.resolutionTypeName(w.fc.info.ResolvedType(kind.Result))
	pointerStr, err := w.expressionToString(kind.Pointer)
	if err != nil {
		return err
	}
	w.writeLine("%s %s%s = %s;", typeName, resultName, arraySuffix, pointerStr)
	w.nameExpression(kind.Result, resultName)

	w.writeLine("GroupMemoryBarrierWithGroupSync();")
	return nil
}

// writeCall writes a function call statement.
func (w *Writer) writeCall(kind ir.StmtCall) error {
	fnName := w.names[nameKey{kind: nameKeyFunction, handle1: uint32(kind.Function)}]

	argStrs := make([]string, len(kind.Arguments))
	for i, arg := range kind.Arguments {
		argStr, err := w.expressionToString(arg)
		if err != nil {
			return err
		}
		argStrs[i] = argStr
	}
	argList := ""
	for i, argStr := range argStrs {
		if i > 0 {
			argList += ", "
		}
		argList += argStr
	}

	if kind.Result == nil {
		w.writeLine("%s(%s);", fnName, argList)
		return nil
	}

	resultName := fmt.Sprintf("_e%d", *kind.Result)
	typeName, arraySuffix := w.resolutionTypeName(w.fc.info.ResolvedType(*kind.Result))
	w.writeLine("%s %s%s = %s(%s);", typeName, resultName, arraySuffix, fnName, argList)
	w.nameExpression(*kind.Result, resultName)
	return nil
}

// writeRayQueryStatement writes an inline ray query operation.
func (w *Writer) writeRayQueryStatement(kind ir.StmtRayQuery) error {
	w.require(ShaderModel6_5, FeatureRayTracing)

	queryStr, err := w.expressionToString(kind.Query)
	if err != nil {
		return err
	}

	switch fun := kind.Fun.(type) {
	case ir.RayQueryInitialize:
		return w.writeRayQueryInitialize(queryStr, fun)

	case ir.RayQueryProceed:
		resultName := fmt.Sprintf("_e%d", fun.Result)
		w.writeLine("const bool %s = %s.Proceed();", resultName, queryStr)
		w.nameExpression(fun.Result, resultName)
		return nil

	case ir.RayQueryGenerateIntersection:
		hitStr, hitErr := w.expressionToString(fun.HitT)
		if hitErr != nil {
			return hitErr
		}
		w.writeLine("%s.CommitProceduralPrimitiveHit(%s);", queryStr, hitStr)
		return nil

	case ir.RayQueryConfirmIntersection:
		w.writeLine("%s.CommitNonOpaqueTriangleHit();", queryStr)
		return nil

	case ir.RayQueryTerminate:
		w.writeLine("%s.Abort();", queryStr)
		return nil

	default:
		return NewError(ErrUnimplemented, fmt.Sprintf("ray query function %T", fun))
	}
}

// writeRayQueryInitialize builds the RayDesc from the descriptor
// struct and starts the inline trace. The descriptor layout is
// flags, cull mask, tmin, tmax, origin, direction.
func (w *Writer) writeRayQueryInitialize(queryStr string, fun ir.RayQueryInitialize) error {
	accelStr, err := w.expressionToString(fun.AccelerationStructure)
	if err != nil {
		return err
	}
	descStr, err := w.expressionToString(fun.Descriptor)
	if err != nil {
		return err
	}

	descRes := w.fc.info.ResolvedType(fun.Descriptor)
	structHandle, ok := w.structHandleOf(descRes)
	if !ok {
		return NewError(ErrInvalidModule, "ray descriptor is not a struct")
	}
	member := func(i uint32) string {
		return fmt.Sprintf("%s.%s", descStr, w.structMemberName(structHandle, i))
	}

	tmp := w.namer.call("rayDesc")
	w.writeLine("RayDesc %s;", tmp)
	w.writeLine("%s.Origin = %s;", tmp, member(4))
	w.writeLine("%s.TMin = %s;", tmp, member(2))
	w.writeLine("%s.Direction = %s;", tmp, member(5))
	w.writeLine("%s.TMax = %s;", tmp, member(3))
	w.writeLine("%s.TraceRayInline(%s, %s, %s, %s);", queryStr, accelStr, member(0), member(1), tmp)
	return nil
}

// writeSubgroupBallot writes a wave ballot.
func (w *Writer) writeSubgroupBallot(kind ir.StmtSubgroupBallot) error {
	w.require(ShaderModel6_0, FeatureWaveOps)

	predStr := "true"
	if kind.Predicate != nil {
		var err error
		predStr, err = w.expressionToString(*kind.Predicate)
		if err != nil {
			return err
		}
	}
	resultName := fmt.Sprintf("_e%d", kind.Result)
	w.writeLine("const uint4 %s = WaveActiveBallot(%s);", resultName, predStr)
	w.nameExpression(kind.Result, resultName)
	return nil
}

// writeSubgroupCollective writes a wave reduction or scan.
func (w *Writer) writeSubgroupCollective(kind ir.StmtSubgroupCollectiveOperation) error {
	w.require(ShaderModel6_0, FeatureWaveOps)

	argStr, err := w.expressionToString(kind.Argument)
	if err != nil {
		return err
	}

	var expr string
	switch kind.CollectiveOp {
	case ir.CollectiveReduce:
		fun, ok := waveReduceFunction(kind.Op)
		if !ok {
			return NewError(ErrUnimplemented, fmt.Sprintf("wave reduction %d", kind.Op))
		}
		expr = fmt.Sprintf("%s(%s)", fun, argStr)
	case ir.CollectiveInclusiveScan:
		switch kind.Op {
		case ir.SubgroupOpAdd:
			expr = fmt.Sprintf("(WavePrefixSum(%s) + %s)", argStr, argStr)
		case ir.SubgroupOpMul:
			expr = fmt.Sprintf("(WavePrefixProduct(%s) * %s)", argStr, argStr)
		default:
			return NewError(ErrUnimplemented, fmt.Sprintf("inclusive wave scan %d", kind.Op))
		}
	case ir.CollectiveExclusiveScan:
		switch kind.Op {
		case ir.SubgroupOpAdd:
			expr = fmt.Sprintf("WavePrefixSum(%s)", argStr)
		case ir.SubgroupOpMul:
			expr = fmt.Sprintf("WavePrefixProduct(%s)", argStr)
		default:
			return NewError(ErrUnimplemented, fmt.Sprintf("exclusive wave scan %d", kind.Op))
		}
	}

	resultName := fmt.Sprintf("_e%d", kind.Result)
	typeName, _ := w.resolutionTypeName(w.fc.info.ResolvedType(kind.Result))
	w.writeLine("const %s %s = %s;", typeName, resultName, expr)
	w.nameExpression(kind.Result, resultName)
	return nil
}

func waveReduceFunction(op ir.SubgroupOperation) (string, bool) {
	switch op {
	case ir.SubgroupOpAll:
		return "WaveActiveAllTrue", true
	case ir.SubgroupOpAny:
		return "WaveActiveAnyTrue", true
	case ir.SubgroupOpAdd:
		return "WaveActiveSum", true
	case ir.SubgroupOpMul:
		return "WaveActiveProduct", true
	case ir.SubgroupOpMin:
		return "WaveActiveMin", true
	case ir.SubgroupOpMax:
		return "WaveActiveMax", true
	case ir.SubgroupOpAnd:
		return "WaveActiveBitAnd", true
	case ir.SubgroupOpOr:
		return "WaveActiveBitOr", true
	case ir.SubgroupOpXor:
		return "WaveActiveBitXor", true
	default:
		return "", false
	}
}

// writeSubgroupGather writes a wave lane read.
func (w *Writer) writeSubgroupGather(kind ir.StmtSubgroupGather) error {
	w.require(ShaderModel6_0, FeatureWaveOps)

	argStr, err := w.expressionToString(kind.Argument)
	if err != nil {
		return err
	}

	indexString := func(index ir.ExpressionHandle) (string, error) {
		return w.expressionToString(index)
	}

	var expr string
	switch mode := kind.Mode.(type) {
	case ir.GatherBroadcastFirst:
		expr = fmt.Sprintf("WaveReadLaneFirst(%s)", argStr)
	case ir.GatherBroadcast:
		idxStr, idxErr := indexString(mode.Index)
		if idxErr != nil {
			return idxErr
		}
		expr = fmt.Sprintf("WaveReadLaneAt(%s, %s)", argStr, idxStr)
	case ir.GatherShuffle:
		idxStr, idxErr := indexString(mode.Index)
		if idxErr != nil {
			return idxErr
		}
		expr = fmt.Sprintf("WaveReadLaneAt(%s, %s)", argStr, idxStr)
	case ir.GatherShuffleDown:
		idxStr, idxErr := indexString(mode.Index)
		if idxErr != nil {
			return idxErr
		}
		expr = fmt.Sprintf("WaveReadLaneAt(%s, WaveGetLaneIndex() + %s)", argStr, idxStr)
	case ir.GatherShuffleUp:
		idxStr, idxErr := indexString(mode.Index)
		if idxErr != nil {
			return idxErr
		}
		expr = fmt.Sprintf("WaveReadLaneAt(%s, WaveGetLaneIndex() - %s)", argStr, idxStr)
	case ir.GatherShuffleXor:
		idxStr, idxErr := indexString(mode.Index)
		if idxErr != nil {
			return idxErr
		}
		expr = fmt.Sprintf("WaveReadLaneAt(%s, WaveGetLaneIndex() ^ %s)", argStr, idxStr)
	case ir.GatherQuadBroadcast:
		idxStr, idxErr := indexString(mode.Index)
		if idxErr != nil {
			return idxErr
		}
		expr = fmt.Sprintf("QuadReadLaneAt(%s, %s)", argStr, idxStr)
	case ir.GatherQuadSwap:
		switch mode.Direction {
		case ir.QuadSwapX:
			expr = fmt.Sprintf("QuadReadAcrossX(%s)", argStr)
		case ir.QuadSwapY:
			expr = fmt.Sprintf("QuadReadAcrossY(%s)", argStr)
		default:
			expr = fmt.Sprintf("QuadReadAcrossDiagonal(%s)", argStr)
		}
	default:
		return NewError(ErrUnimplemented, fmt.Sprintf("gather mode %T", mode))
	}

	resultName := fmt.Sprintf("_e%d", kind.Result)
	typeName, _ := w.resolutionTypeName(w.fc.info.ResolvedType(kind.Result))
	w.writeLine("const %s %s = %s;", typeName, resultName, expr)
	w.nameExpression(kind.Result, resultName)
	return nil
}
