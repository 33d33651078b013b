package ir

import "fmt"

// GlobalUse describes how a function accesses a global variable.
type GlobalUse uint8

const (
	// GlobalUseRead marks a global whose value the function observes.
	GlobalUseRead GlobalUse = 1 << 0
	// GlobalUseWrite marks a global the function stores to, including
	// atomic updates and image stores.
	GlobalUseWrite GlobalUse = 1 << 1
)

// Contains reports whether all bits of other are set in u.
func (u GlobalUse) Contains(other GlobalUse) bool {
	return u&other == other
}

// FunctionInfo is the result of analyzing one function. The backend
// computes it once per function and entry point, then consults it
// while emitting: resolved types drive formatting decisions, reference
// counts drive the bake-or-inline policy, and global uses drive
// workgroup zero-initialization.
type FunctionInfo struct {
	// Types holds the resolved type of each expression, indexed by
	// expression handle.
	Types []TypeResolution

	// RefCounts holds, per expression, the number of times other
	// expressions or statements reference it.
	RefCounts []uint32

	// GlobalUses holds the access mask of each module global variable,
	// indexed by global variable handle.
	GlobalUses []GlobalUse
}

// ResolvedType returns the resolved type of an expression.
func (info *FunctionInfo) ResolvedType(handle ExpressionHandle) TypeResolution {
	return info.Types[handle]
}

// RefCount returns how many times an expression is referenced.
func (info *FunctionInfo) RefCount(handle ExpressionHandle) uint32 {
	return info.RefCounts[handle]
}

// ComputeFunctionInfo analyzes a function against its module: resolves
// every expression type, counts expression references from other
// expressions and from statements, and records which globals the
// function reads and writes.
func ComputeFunctionInfo(module *Module, fn *Function) (*FunctionInfo, error) {
	info := &FunctionInfo{
		Types:      make([]TypeResolution, len(fn.Expressions)),
		RefCounts:  make([]uint32, len(fn.Expressions)),
		GlobalUses: make([]GlobalUse, len(module.GlobalVariables)),
	}

	for i := range fn.Expressions {
		res, err := ResolveExpressionType(module, fn, ExpressionHandle(i))
		if err != nil {
			return nil, fmt.Errorf("resolving expression %d in %q: %w", i, fn.Name, err)
		}
		info.Types[i] = res

		kind := fn.Expressions[i].Kind
		forEachExprOperand(kind, func(op ExpressionHandle) {
			info.RefCounts[op]++
		})
		if g, ok := kind.(ExprGlobalVariable); ok {
			info.GlobalUses[g.Variable] |= GlobalUseRead
		}
	}

	info.countBlock(fn, fn.Body)
	return info, nil
}

func (info *FunctionInfo) countBlock(fn *Function, block Block) {
	for _, stmt := range block {
		info.countStatement(fn, stmt)
	}
}

//nolint:gocyclo,cyclop // One case per statement kind
func (info *FunctionInfo) countStatement(fn *Function, stmt Statement) {
	ref := func(h ExpressionHandle) { info.RefCounts[h]++ }
	refOpt := func(h *ExpressionHandle) {
		if h != nil {
			info.RefCounts[*h]++
		}
	}

	switch kind := stmt.Kind.(type) {
	case StmtEmit:
		// Emission makes expressions available; it is not a use.
	case StmtBlock:
		info.countBlock(fn, kind.Block)
	case StmtIf:
		ref(kind.Condition)
		info.countBlock(fn, kind.Accept)
		info.countBlock(fn, kind.Reject)
	case StmtSwitch:
		ref(kind.Selector)
		for _, c := range kind.Cases {
			info.countBlock(fn, c.Body)
		}
	case StmtLoop:
		info.countBlock(fn, kind.Body)
		info.countBlock(fn, kind.Continuing)
		refOpt(kind.BreakIf)
	case StmtReturn:
		refOpt(kind.Value)
	case StmtStore:
		ref(kind.Pointer)
		ref(kind.Value)
		info.markWrite(fn, kind.Pointer)
	case StmtImageStore:
		ref(kind.Image)
		ref(kind.Coordinate)
		refOpt(kind.ArrayIndex)
		ref(kind.Value)
		info.markWrite(fn, kind.Image)
	case StmtAtomic:
		ref(kind.Pointer)
		ref(kind.Value)
		refOpt(kind.Result)
		if cmp, ok := kind.Fun.(AtomicExchange); ok {
			refOpt(cmp.Compare)
		}
		info.markWrite(fn, kind.Pointer)
	case StmtWorkGroupUniformLoad:
		ref(kind.Pointer)
		ref(kind.Result)
	case StmtCall:
		for _, arg := range kind.Arguments {
			ref(arg)
		}
		refOpt(kind.Result)
	case StmtRayQuery:
		ref(kind.Query)
		switch fun := kind.Fun.(type) {
		case RayQueryInitialize:
			ref(fun.AccelerationStructure)
			ref(fun.Descriptor)
		case RayQueryProceed:
			ref(fun.Result)
		case RayQueryGenerateIntersection:
			ref(fun.HitT)
		}
	case StmtSubgroupBallot:
		refOpt(kind.Predicate)
		ref(kind.Result)
	case StmtSubgroupCollectiveOperation:
		ref(kind.Argument)
		ref(kind.Result)
	case StmtSubgroupGather:
		ref(kind.Argument)
		ref(kind.Result)
		switch mode := kind.Mode.(type) {
		case GatherBroadcast:
			ref(mode.Index)
		case GatherShuffle:
			ref(mode.Index)
		case GatherShuffleDown:
			ref(mode.Index)
		case GatherShuffleUp:
			ref(mode.Index)
		case GatherShuffleXor:
			ref(mode.Index)
		case GatherQuadBroadcast:
			ref(mode.Index)
		}
	}
}

// markWrite records a write against the global at the root of a
// pointer access chain, if the chain bottoms out at a global.
func (info *FunctionInfo) markWrite(fn *Function, pointer ExpressionHandle) {
	if g, ok := GlobalVariableRoot(fn, pointer); ok {
		info.GlobalUses[g] |= GlobalUseWrite
	}
}

// GlobalVariableRoot walks an access chain down to the global variable
// it starts from, if any. Chains through loads stop: a pointer loaded
// from memory no longer identifies a root variable.
func GlobalVariableRoot(fn *Function, handle ExpressionHandle) (GlobalVariableHandle, bool) {
	for {
		switch kind := fn.Expressions[handle].Kind.(type) {
		case ExprAccess:
			handle = kind.Base
		case ExprAccessIndex:
			handle = kind.Base
		case ExprGlobalVariable:
			return kind.Variable, true
		default:
			return 0, false
		}
	}
}

// forEachExprOperand invokes fn for every expression handle an
// expression kind references.
//
//nolint:gocyclo,cyclop // One case per expression kind
func forEachExprOperand(kind ExpressionKind, fn func(ExpressionHandle)) {
	opt := func(h *ExpressionHandle) {
		if h != nil {
			fn(*h)
		}
	}

	switch e := kind.(type) {
	case ExprCompose:
		for _, c := range e.Components {
			fn(c)
		}
	case ExprAccess:
		fn(e.Base)
		fn(e.Index)
	case ExprAccessIndex:
		fn(e.Base)
	case ExprSplat:
		fn(e.Value)
	case ExprSwizzle:
		fn(e.Vector)
	case ExprLoad:
		fn(e.Pointer)
	case ExprImageSample:
		fn(e.Image)
		fn(e.Sampler)
		fn(e.Coordinate)
		opt(e.ArrayIndex)
		opt(e.Offset)
		opt(e.DepthRef)
		switch level := e.Level.(type) {
		case SampleLevelExact:
			fn(level.Level)
		case SampleLevelBias:
			fn(level.Bias)
		case SampleLevelGradient:
			fn(level.X)
			fn(level.Y)
		}
	case ExprImageLoad:
		fn(e.Image)
		fn(e.Coordinate)
		opt(e.ArrayIndex)
		opt(e.Sample)
		opt(e.Level)
	case ExprImageQuery:
		fn(e.Image)
		if size, ok := e.Query.(ImageQuerySize); ok {
			opt(size.Level)
		}
	case ExprUnary:
		fn(e.Expr)
	case ExprBinary:
		fn(e.Left)
		fn(e.Right)
	case ExprSelect:
		fn(e.Condition)
		fn(e.Accept)
		fn(e.Reject)
	case ExprDerivative:
		fn(e.Expr)
	case ExprRelational:
		fn(e.Argument)
	case ExprMath:
		fn(e.Arg)
		opt(e.Arg1)
		opt(e.Arg2)
		opt(e.Arg3)
	case ExprAs:
		fn(e.Expr)
	case ExprArrayLength:
		fn(e.Array)
	case ExprRayQueryGetIntersection:
		fn(e.Query)
	}
}
