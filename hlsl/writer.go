// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gogpu/hlslgen/ir"
)

// nameKey identifies an IR entity for name lookup.
type nameKey struct {
	kind    nameKeyKind
	handle1 uint32
	handle2 uint32
}

type nameKeyKind uint8

const (
	nameKeyType nameKeyKind = iota
	nameKeyStructMember
	nameKeyConstant
	nameKeyGlobalVariable
	nameKeyFunction
	nameKeyFunctionArgument
	nameKeyEntryPoint
)

// funcCtx carries the per-function state the emitters consult: the
// function itself and its analysis. Entry points additionally carry
// their stage and module index.
type funcCtx struct {
	fn     *ir.Function
	handle ir.FunctionHandle
	info   *ir.FunctionInfo

	isEntryPoint bool
	stage        ir.ShaderStage
	epIndex      int

	// argNames holds the expression each function argument reads as:
	// the parameter name for plain functions, an input-struct member
	// access or prologue local for entry points.
	argNames []string
}

// continueCtx tracks a switch nested in a loop body. A continue inside
// the switch cannot reach the loop directly in HLSL, so it sets the
// forwarding flag and breaks; the loop re-dispatches after the switch.
type continueCtx struct {
	variable string
	used     bool
}

// Writer generates HLSL source code from IR.
type Writer struct {
	module     *ir.Module
	options    *Options
	fragmentEP *FragmentEntryPoint

	// Output buffer
	out strings.Builder

	// Current indentation level
	indent int

	// Name management
	names     map[nameKey]string
	namer     *namer
	typeNames map[ir.TypeHandle]string

	// Struct member layouts, including matCx2 decomposition and
	// explicit padding fields.
	structLayouts map[ir.TypeHandle]*structLayout

	// Wrapped helper registry: at most one emission per structural key.
	// wrappedOrder logs insertions so a failed entry point can roll its
	// helpers back along with its discarded output.
	wrapped         map[wrappedKey]struct{}
	wrappedOrder    []wrappedKey
	helperFunctions []string

	// Entry-point interface struct names, by entry point index.
	epInputStructs  map[int]string
	epOutputStructs map[int]string

	// Globals whose binding could not be resolved. Declarations are
	// skipped; any use fails with the recorded error so only the entry
	// points that touch them are dropped.
	missingBindings map[ir.GlobalVariableHandle]error

	// Per-global dynamic storage-buffer offset expressions, added to
	// every byte address computed against the global.
	dynamicOffsetRefs map[ir.GlobalVariableHandle]string

	// Function context (set during function writing)
	fc               *funcCtx
	epOutput         *epOutputLayout
	localNames       map[uint32]string
	namedExpressions map[ir.ExpressionHandle]string
	namedOrder       []ir.ExpressionHandle
	continueStack    []*continueCtx
	inLoopBody       bool

	// Output tracking
	entryPointNames     map[string]string
	registerBindings    map[string]string
	usedFeatures        FeatureFlags
	requiredShaderModel ShaderModel

	log *slog.Logger
}

// newWriter creates a new HLSL writer.
func newWriter(module *ir.Module, options *Options, fragmentEP *FragmentEntryPoint) *Writer {
	return &Writer{
		module:              module,
		options:             options,
		fragmentEP:          fragmentEP,
		names:               make(map[nameKey]string),
		namer:               newNamer(),
		typeNames:           make(map[ir.TypeHandle]string),
		structLayouts:       make(map[ir.TypeHandle]*structLayout),
		wrapped:             make(map[wrappedKey]struct{}),
		epInputStructs:      make(map[int]string),
		epOutputStructs:     make(map[int]string),
		missingBindings:     make(map[ir.GlobalVariableHandle]error),
		dynamicOffsetRefs:   make(map[ir.GlobalVariableHandle]string),
		namedExpressions:    make(map[ir.ExpressionHandle]string),
		entryPointNames:     make(map[string]string),
		registerBindings:    make(map[string]string),
		requiredShaderModel: options.ShaderModel,
		log:                 slog.Default(),
	}
}

// String returns the generated HLSL source code.
func (w *Writer) String() string {
	return w.out.String()
}

// writeModule generates HLSL code for the entire module and returns the
// reflection describing what was emitted.
//
// The pipeline is: names, special-constants block, matrix typedefs and
// struct definitions, module constants, global declarations, then each
// helper function and function in arena order, then each entry point.
// An entry point that fails with a binding error is dropped and its
// error recorded; any other error aborts the whole translation.
func (w *Writer) writeModule() (*ReflectionInfo, error) {
	if err := w.registerNames(); err != nil {
		return nil, err
	}

	if w.options.SpecialConstantsBinding != nil {
		w.writeSpecialConstantsBuffer()
	}

	if err := w.writeTypes(); err != nil {
		return nil, err
	}

	if err := w.writeConstants(); err != nil {
		return nil, err
	}

	if err := w.writeGlobalVariables(); err != nil {
		return nil, err
	}

	for handle := range w.module.Functions {
		if w.isEntryPointFunction(ir.FunctionHandle(handle)) {
			continue
		}
		if err := w.functionMissingBinding(ir.FunctionHandle(handle)); err != nil {
			w.log.Debug("skipping function with missing binding",
				"function", w.module.Functions[handle].Name, "err", err)
			continue
		}
		fc, err := w.makeFuncCtx(ir.FunctionHandle(handle))
		if err != nil {
			return nil, err
		}
		if err := w.writeWrappedFunctions(fc); err != nil {
			return nil, err
		}
		if err := w.writeFunction(fc); err != nil {
			return nil, err
		}
	}

	reflection := &ReflectionInfo{
		EntryPointNames:  w.entryPointNames,
		RegisterBindings: w.registerBindings,
	}

	for epIdx := range w.module.EntryPoints {
		ep := &w.module.EntryPoints[epIdx]
		err := w.writeEntryPointIsolated(epIdx, ep)
		if err != nil {
			var hlslErr *Error
			if errors.As(err, &hlslErr) && hlslErr.Kind == ErrMissingBinding {
				w.log.Debug("skipping entry point with missing binding",
					"entry_point", ep.Name, "err", err)
				reflection.EntryPoints = append(reflection.EntryPoints,
					EntryPointReflection{Name: ep.Name, Err: err})
				continue
			}
			return nil, fmt.Errorf("entry point %q: %w", ep.Name, err)
		}
		reflection.EntryPoints = append(reflection.EntryPoints,
			EntryPointReflection{Name: ep.Name, Err: nil})
	}

	reflection.UsedFeatures = w.usedFeatures
	reflection.RequiredShaderModel = w.requiredShaderModel
	reflection.HelperFunctions = w.helperFunctions
	return reflection, nil
}

// writeEntryPointIsolated emits one entry point into a scratch buffer
// so that a failure leaves the main output untouched.
func (w *Writer) writeEntryPointIsolated(epIdx int, ep *ir.EntryPoint) error {
	saved := w.out
	w.out = strings.Builder{}
	wrappedMark := len(w.wrappedOrder)
	helperMark := len(w.helperFunctions)

	err := func() error {
		if err := w.functionMissingBinding(ep.Function); err != nil {
			return err
		}
		fc, err := w.makeFuncCtx(ep.Function)
		if err != nil {
			return err
		}
		fc.isEntryPoint = true
		fc.stage = ep.Stage
		fc.epIndex = epIdx

		if err := w.writeWrappedFunctions(fc); err != nil {
			return err
		}
		return w.writeEntryPoint(fc, ep)
	}()

	emitted := w.out.String()
	w.out = saved
	if err != nil {
		for _, key := range w.wrappedOrder[wrappedMark:] {
			delete(w.wrapped, key)
		}
		w.wrappedOrder = w.wrappedOrder[:wrappedMark]
		w.helperFunctions = w.helperFunctions[:helperMark]
		return err
	}
	w.out.WriteString(emitted)
	return nil
}

// makeFuncCtx analyzes a function and builds its emission context.
func (w *Writer) makeFuncCtx(handle ir.FunctionHandle) (*funcCtx, error) {
	if int(handle) >= len(w.module.Functions) {
		return nil, NewError(ErrInvalidModule, fmt.Sprintf("function handle %d out of range", handle))
	}
	fn := &w.module.Functions[handle]
	info, err := ir.ComputeFunctionInfo(w.module, fn)
	if err != nil {
		return nil, NewError(ErrInvalidModule, err.Error())
	}
	return &funcCtx{fn: fn, handle: handle, info: info}, nil
}

// registerNames assigns unique names to all IR entities.
//
//nolint:gocognit // Name registration covers every IR entity kind
func (w *Writer) registerNames() error {
	// Register type names
	for handle, typ := range w.module.Types {
		var baseName string
		if typ.Name != "" {
			baseName = typ.Name
		} else {
			baseName = fmt.Sprintf("type_%d", handle)
		}
		name := w.namer.call(baseName)
		w.names[nameKey{kind: nameKeyType, handle1: uint32(handle)}] = name
		w.typeNames[ir.TypeHandle(handle)] = name

		if st, ok := typ.Inner.(ir.StructType); ok {
			for memberIdx, member := range st.Members {
				memberName := member.Name
				if memberName == "" {
					memberName = fmt.Sprintf("member_%d", memberIdx)
				}
				w.names[nameKey{kind: nameKeyStructMember, handle1: uint32(handle), handle2: uint32(memberIdx)}] = Escape(memberName)
			}
		}
	}

	// Register constant names
	for handle, constant := range w.module.Constants {
		var baseName string
		if constant.Name != "" {
			baseName = constant.Name
		} else {
			baseName = fmt.Sprintf("const_%d", handle)
		}
		w.names[nameKey{kind: nameKeyConstant, handle1: uint32(handle)}] = w.namer.call(baseName)
	}

	// Register global variable names
	for handle, global := range w.module.GlobalVariables {
		var baseName string
		if global.Name != "" {
			baseName = global.Name
		} else {
			baseName = fmt.Sprintf("global_%d", handle)
		}
		w.names[nameKey{kind: nameKeyGlobalVariable, handle1: uint32(handle)}] = w.namer.call(baseName)
	}

	// Register function names
	for handle := range w.module.Functions {
		fn := &w.module.Functions[handle]
		baseName := fn.Name
		if baseName == "" {
			baseName = fmt.Sprintf("function_%d", handle)
		}
		w.names[nameKey{kind: nameKeyFunction, handle1: uint32(handle)}] = w.namer.call(baseName)

		for argIdx, arg := range fn.Arguments {
			argName := arg.Name
			if argName == "" {
				argName = fmt.Sprintf("arg_%d", argIdx)
			}
			w.names[nameKey{kind: nameKeyFunctionArgument, handle1: uint32(handle), handle2: uint32(argIdx)}] = Escape(argName)
		}
	}

	// Entry points reuse their source names; the function name already
	// registered for the underlying function is shadowed.
	for epIdx, ep := range w.module.EntryPoints {
		name := w.namer.call(ep.Name)
		w.names[nameKey{kind: nameKeyEntryPoint, handle1: uint32(epIdx)}] = name
		w.entryPointNames[ep.Name] = name
	}

	return nil
}

// functionMissingBinding reports the unresolved-binding error of the
// first skipped global a function touches, directly or through any
// function it calls. Functions that trip it are dropped the same way
// the declarations of those globals were.
func (w *Writer) functionMissingBinding(handle ir.FunctionHandle) error {
	return w.missingBindingWalk(handle, make(map[ir.FunctionHandle]bool))
}

func (w *Writer) missingBindingWalk(handle ir.FunctionHandle, seen map[ir.FunctionHandle]bool) error {
	if seen[handle] || int(handle) >= len(w.module.Functions) {
		return nil
	}
	seen[handle] = true
	fn := &w.module.Functions[handle]

	for idx := range fn.Expressions {
		switch kind := fn.Expressions[idx].Kind.(type) {
		case ir.ExprGlobalVariable:
			if err, missing := w.missingBindings[kind.Variable]; missing {
				return err
			}
		case ir.ExprCallResult:
			if err := w.missingBindingWalk(kind.Function, seen); err != nil {
				return err
			}
		}
	}
	return w.missingBindingBlock(fn.Body, seen)
}

// missingBindingBlock walks a statement tree for calls to functions
// whose results are unused, which never appear as CallResult
// expressions.
func (w *Writer) missingBindingBlock(block ir.Block, seen map[ir.FunctionHandle]bool) error {
	for i := range block {
		var err error
		switch kind := block[i].Kind.(type) {
		case ir.StmtBlock:
			err = w.missingBindingBlock(kind.Block, seen)
		case ir.StmtIf:
			if err = w.missingBindingBlock(kind.Accept, seen); err == nil {
				err = w.missingBindingBlock(kind.Reject, seen)
			}
		case ir.StmtSwitch:
			for c := range kind.Cases {
				if err = w.missingBindingBlock(kind.Cases[c].Body, seen); err != nil {
					break
				}
			}
		case ir.StmtLoop:
			if err = w.missingBindingBlock(kind.Body, seen); err == nil {
				err = w.missingBindingBlock(kind.Continuing, seen)
			}
		case ir.StmtCall:
			err = w.missingBindingWalk(kind.Function, seen)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// isEntryPointFunction checks if a function is an entry point.
func (w *Writer) isEntryPointFunction(handle ir.FunctionHandle) bool {
	for _, ep := range w.module.EntryPoints {
		if ep.Function == handle {
			return true
		}
	}
	return false
}

// Output helpers

// write writes text to the output. If args are provided, uses fmt.Fprintf.
//
//nolint:goprintffuncname
func (w *Writer) write(format string, args ...any) {
	if len(args) == 0 {
		w.out.WriteString(format)
	} else {
		fmt.Fprintf(&w.out, format, args...)
	}
}

// writeLine writes a line with optional format args and a newline.
//
//nolint:goprintffuncname
func (w *Writer) writeLine(format string, args ...any) {
	w.writeIndent()
	if len(args) == 0 {
		w.out.WriteString(format)
	} else {
		fmt.Fprintf(&w.out, format, args...)
	}
	w.out.WriteByte('\n')
}

// writeIndent writes the current indentation.
func (w *Writer) writeIndent() {
	for i := 0; i < w.indent; i++ {
		w.out.WriteString("    ")
	}
}

// pushIndent increases indentation.
func (w *Writer) pushIndent() {
	w.indent++
}

// popIndent decreases indentation.
func (w *Writer) popIndent() {
	if w.indent > 0 {
		w.indent--
	}
}

// Named-expression bookkeeping. Baked expressions map to a local name;
// the switch fallthrough path duplicates case bodies and must roll the
// map back so duplicated code re-declares its temporaries.

// nameExpression records a baked name for an expression.
func (w *Writer) nameExpression(handle ir.ExpressionHandle, name string) {
	w.namedExpressions[handle] = name
	w.namedOrder = append(w.namedOrder, handle)
}

// namedCheckpoint returns the current depth of the named-expression
// log, for a later rollback.
func (w *Writer) namedCheckpoint() int {
	return len(w.namedOrder)
}

// rollbackNamed drops every name recorded after the checkpoint.
func (w *Writer) rollbackNamed(checkpoint int) {
	for _, handle := range w.namedOrder[checkpoint:] {
		delete(w.namedExpressions, handle)
	}
	w.namedOrder = w.namedOrder[:checkpoint]
}

// resetFunctionState clears per-function emission state.
func (w *Writer) resetFunctionState(fc *funcCtx) {
	w.fc = fc
	w.epOutput = nil
	w.localNames = make(map[uint32]string)
	w.namedExpressions = make(map[ir.ExpressionHandle]string)
	w.namedOrder = w.namedOrder[:0]
	w.continueStack = w.continueStack[:0]
	w.inLoopBody = false
}

// expressionToString renders an expression into a string without
// touching the main output stream.
func (w *Writer) expressionToString(handle ir.ExpressionHandle) (string, error) {
	oldOut := w.out
	w.out = strings.Builder{}

	err := w.writeExpression(handle)

	result := w.out.String()
	w.out = oldOut
	return result, err
}

// require records a feature and raises the minimum shader model when
// the feature demands a newer one.
func (w *Writer) require(sm ShaderModel, feature FeatureFlags) {
	w.usedFeatures |= feature
	if sm > w.requiredShaderModel {
		w.requiredShaderModel = sm
	}
}

