package ir

import "fmt"

// ResolveExpressionType resolves the type of an expression in a function.
// Returns a TypeResolution that either references a module type or contains
// an inline type.
//
// Variable references resolve to pointer types: a global in any space
// other than Handle, and every local, yields a pointer into its address
// space. Indexing through a pointer yields a pointer to the element;
// indexing into a vector component yields a ValuePointerType since
// component types have no arena entry. Load dereferences.
//
//nolint:gocyclo,cyclop,funlen // Type resolution requires handling all expression kinds
func ResolveExpressionType(module *Module, fn *Function, handle ExpressionHandle) (TypeResolution, error) {
	if int(handle) >= len(fn.Expressions) {
		return TypeResolution{}, fmt.Errorf("expression handle %d out of range (max %d)", handle, len(fn.Expressions))
	}

	expr := fn.Expressions[handle]

	switch kind := expr.Kind.(type) {
	case Literal:
		return resolveLiteralType(kind)
	case ExprConstant:
		if int(kind.Constant) >= len(module.Constants) {
			return TypeResolution{}, fmt.Errorf("constant %d out of range", kind.Constant)
		}
		h := module.Constants[kind.Constant].Type
		return TypeResolution{Handle: &h}, nil
	case ExprZeroValue:
		h := kind.Type
		return TypeResolution{Handle: &h}, nil
	case ExprCompose:
		h := kind.Type
		return TypeResolution{Handle: &h}, nil
	case ExprAccess:
		base, err := ResolveExpressionType(module, fn, kind.Base)
		if err != nil {
			return TypeResolution{}, fmt.Errorf("access base: %w", err)
		}
		return resolveIndex(module, base, nil)
	case ExprAccessIndex:
		base, err := ResolveExpressionType(module, fn, kind.Base)
		if err != nil {
			return TypeResolution{}, fmt.Errorf("access index base: %w", err)
		}
		idx := kind.Index
		return resolveIndex(module, base, &idx)
	case ExprSplat:
		return resolveSplatType(module, fn, kind)
	case ExprSwizzle:
		return resolveSwizzleType(module, fn, kind)
	case ExprFunctionArgument:
		if int(kind.Index) >= len(fn.Arguments) {
			return TypeResolution{}, fmt.Errorf("function argument index %d out of range", kind.Index)
		}
		h := fn.Arguments[kind.Index].Type
		return TypeResolution{Handle: &h}, nil
	case ExprGlobalVariable:
		if int(kind.Variable) >= len(module.GlobalVariables) {
			return TypeResolution{}, fmt.Errorf("global variable %d out of range", kind.Variable)
		}
		global := module.GlobalVariables[kind.Variable]
		if global.Space == SpaceHandle {
			h := global.Type
			return TypeResolution{Handle: &h}, nil
		}
		return TypeResolution{Value: PointerType{Base: global.Type, Space: global.Space}}, nil
	case ExprLocalVariable:
		if int(kind.Variable) >= len(fn.LocalVars) {
			return TypeResolution{}, fmt.Errorf("local variable %d out of range", kind.Variable)
		}
		return TypeResolution{Value: PointerType{Base: fn.LocalVars[kind.Variable].Type, Space: SpaceFunction}}, nil
	case ExprLoad:
		return resolveLoadType(module, fn, kind)
	case ExprImageSample:
		return resolveImageSampleType(module, fn, kind)
	case ExprImageLoad:
		return resolveImageLoadType(module, fn, kind)
	case ExprImageQuery:
		return resolveImageQueryType(kind)
	case ExprUnary:
		return ResolveExpressionType(module, fn, kind.Expr)
	case ExprBinary:
		return resolveBinaryType(module, fn, kind)
	case ExprSelect:
		return ResolveExpressionType(module, fn, kind.Accept)
	case ExprDerivative:
		return ResolveExpressionType(module, fn, kind.Expr)
	case ExprRelational:
		return resolveRelationalType(module, fn, kind)
	case ExprMath:
		return resolveMathType(module, fn, kind)
	case ExprAs:
		return resolveAsType(module, fn, kind)
	case ExprCallResult:
		if int(kind.Function) >= len(module.Functions) {
			return TypeResolution{}, fmt.Errorf("function %d out of range", kind.Function)
		}
		result := module.Functions[kind.Function].Result
		if result == nil {
			return TypeResolution{}, fmt.Errorf("function has no return type")
		}
		h := result.Type
		return TypeResolution{Handle: &h}, nil
	case ExprArrayLength:
		return TypeResolution{Value: ScalarType{Kind: ScalarUint, Width: 4}}, nil
	case ExprAtomicResult:
		h := kind.Type
		return TypeResolution{Handle: &h}, nil
	case ExprWorkGroupUniformLoadResult:
		h := kind.Type
		return TypeResolution{Handle: &h}, nil
	case ExprSubgroupBallotResult:
		return TypeResolution{Value: VectorType{
			Size:   Vec4,
			Scalar: ScalarType{Kind: ScalarUint, Width: 4},
		}}, nil
	case ExprSubgroupOperationResult:
		h := kind.Type
		return TypeResolution{Handle: &h}, nil
	case ExprRayQueryProceedResult:
		return TypeResolution{Value: ScalarType{Kind: ScalarBool, Width: 1}}, nil
	case ExprRayQueryGetIntersection:
		h := kind.Type
		return TypeResolution{Handle: &h}, nil
	default:
		return TypeResolution{}, fmt.Errorf("unsupported expression kind: %T", kind)
	}
}

func resolveLiteralType(lit Literal) (TypeResolution, error) {
	switch v := lit.Value.(type) {
	case LiteralF64:
		return TypeResolution{Value: ScalarType{Kind: ScalarFloat, Width: 8}}, nil
	case LiteralF32:
		return TypeResolution{Value: ScalarType{Kind: ScalarFloat, Width: 4}}, nil
	case LiteralU32:
		return TypeResolution{Value: ScalarType{Kind: ScalarUint, Width: 4}}, nil
	case LiteralI32:
		return TypeResolution{Value: ScalarType{Kind: ScalarSint, Width: 4}}, nil
	case LiteralU64:
		return TypeResolution{Value: ScalarType{Kind: ScalarUint, Width: 8}}, nil
	case LiteralI64:
		return TypeResolution{Value: ScalarType{Kind: ScalarSint, Width: 8}}, nil
	case LiteralBool:
		return TypeResolution{Value: ScalarType{Kind: ScalarBool, Width: 1}}, nil
	case LiteralAbstractInt:
		return TypeResolution{Value: ScalarType{Kind: ScalarSint, Width: 4}}, nil
	case LiteralAbstractFloat:
		return TypeResolution{Value: ScalarType{Kind: ScalarFloat, Width: 4}}, nil
	default:
		return TypeResolution{}, fmt.Errorf("unknown literal type: %T", v)
	}
}

// resolveIndex resolves the element type produced by indexing base.
// index is the static index for access-index forms, nil for computed
// access. Indexing through a pointer yields a pointer to the element.
func resolveIndex(module *Module, base TypeResolution, index *uint32) (TypeResolution, error) {
	inner := base.Inner(module)

	if ptr, ok := inner.(PointerType); ok {
		if int(ptr.Base) >= len(module.Types) {
			return TypeResolution{}, fmt.Errorf("pointer base type %d out of range", ptr.Base)
		}
		switch t := module.Types[ptr.Base].Inner.(type) {
		case ArrayType:
			return TypeResolution{Value: PointerType{Base: t.Base, Space: ptr.Space}}, nil
		case VectorType:
			return TypeResolution{Value: ValuePointerType{Scalar: t.Scalar, Space: ptr.Space}}, nil
		case MatrixType:
			rows := t.Rows
			return TypeResolution{Value: ValuePointerType{Size: &rows, Scalar: t.Scalar, Space: ptr.Space}}, nil
		case StructType:
			if index == nil {
				return TypeResolution{}, fmt.Errorf("struct access requires a static index")
			}
			if int(*index) >= len(t.Members) {
				return TypeResolution{}, fmt.Errorf("struct member index %d out of range", *index)
			}
			return TypeResolution{Value: PointerType{Base: t.Members[*index].Type, Space: ptr.Space}}, nil
		case AtomicType:
			return TypeResolution{Value: ValuePointerType{Scalar: t.Scalar, Space: ptr.Space}}, nil
		default:
			return TypeResolution{}, fmt.Errorf("cannot index pointer to %T", t)
		}
	}

	if vp, ok := inner.(ValuePointerType); ok {
		if vp.Size == nil {
			return TypeResolution{}, fmt.Errorf("cannot index pointer to scalar")
		}
		return TypeResolution{Value: ValuePointerType{Scalar: vp.Scalar, Space: vp.Space}}, nil
	}

	switch t := inner.(type) {
	case ArrayType:
		h := t.Base
		return TypeResolution{Handle: &h}, nil
	case BindingArrayType:
		h := t.Base
		return TypeResolution{Handle: &h}, nil
	case VectorType:
		return TypeResolution{Value: t.Scalar}, nil
	case MatrixType:
		return TypeResolution{Value: VectorType{Size: t.Rows, Scalar: t.Scalar}}, nil
	case StructType:
		if index == nil {
			return TypeResolution{}, fmt.Errorf("struct access requires a static index")
		}
		if int(*index) >= len(t.Members) {
			return TypeResolution{}, fmt.Errorf("struct member index %d out of range", *index)
		}
		h := t.Members[*index].Type
		return TypeResolution{Handle: &h}, nil
	default:
		return TypeResolution{}, fmt.Errorf("cannot index into type %T", t)
	}
}

func resolveSplatType(module *Module, fn *Function, expr ExprSplat) (TypeResolution, error) {
	valueType, err := ResolveExpressionType(module, fn, expr.Value)
	if err != nil {
		return TypeResolution{}, fmt.Errorf("splat value: %w", err)
	}

	scalar, ok := valueType.Inner(module).(ScalarType)
	if !ok {
		return TypeResolution{}, fmt.Errorf("splat value must be scalar, got %T", valueType.Inner(module))
	}

	return TypeResolution{Value: VectorType{Size: expr.Size, Scalar: scalar}}, nil
}

func resolveSwizzleType(module *Module, fn *Function, expr ExprSwizzle) (TypeResolution, error) {
	vectorType, err := ResolveExpressionType(module, fn, expr.Vector)
	if err != nil {
		return TypeResolution{}, fmt.Errorf("swizzle vector: %w", err)
	}

	vec, ok := vectorType.Inner(module).(VectorType)
	if !ok {
		return TypeResolution{}, fmt.Errorf("swizzle base must be vector, got %T", vectorType.Inner(module))
	}

	return TypeResolution{Value: VectorType{Size: expr.Size, Scalar: vec.Scalar}}, nil
}

func resolveLoadType(module *Module, fn *Function, expr ExprLoad) (TypeResolution, error) {
	pointerType, err := ResolveExpressionType(module, fn, expr.Pointer)
	if err != nil {
		return TypeResolution{}, fmt.Errorf("load pointer: %w", err)
	}

	switch t := pointerType.Inner(module).(type) {
	case PointerType:
		// Loading through a pointer to an atomic produces the scalar.
		if atomic, ok := module.Types[t.Base].Inner.(AtomicType); ok {
			return TypeResolution{Value: atomic.Scalar}, nil
		}
		h := t.Base
		return TypeResolution{Handle: &h}, nil
	case ValuePointerType:
		if t.Size != nil {
			return TypeResolution{Value: VectorType{Size: *t.Size, Scalar: t.Scalar}}, nil
		}
		return TypeResolution{Value: t.Scalar}, nil
	default:
		return TypeResolution{}, fmt.Errorf("load requires pointer type, got %T", t)
	}
}

func resolveImageSampleType(module *Module, fn *Function, expr ExprImageSample) (TypeResolution, error) {
	imageType, err := ResolveExpressionType(module, fn, expr.Image)
	if err != nil {
		return TypeResolution{}, fmt.Errorf("image sample image: %w", err)
	}

	inner := imageType.Inner(module)
	if ba, ok := inner.(BindingArrayType); ok {
		inner = module.Types[ba.Base].Inner
	}
	img, ok := inner.(ImageType)
	if !ok {
		return TypeResolution{}, fmt.Errorf("image sample requires image type, got %T", inner)
	}

	if img.Class == ImageClassDepth && expr.DepthRef == nil && expr.Gather == nil {
		return TypeResolution{Value: ScalarType{Kind: ScalarFloat, Width: 4}}, nil
	}
	if expr.DepthRef != nil && expr.Gather == nil {
		return TypeResolution{Value: ScalarType{Kind: ScalarFloat, Width: 4}}, nil
	}

	return TypeResolution{Value: VectorType{
		Size:   Vec4,
		Scalar: ScalarType{Kind: ScalarFloat, Width: 4},
	}}, nil
}

func resolveImageLoadType(module *Module, fn *Function, expr ExprImageLoad) (TypeResolution, error) {
	imageType, err := ResolveExpressionType(module, fn, expr.Image)
	if err != nil {
		return TypeResolution{}, fmt.Errorf("image load image: %w", err)
	}

	img, ok := imageType.Inner(module).(ImageType)
	if !ok {
		return TypeResolution{}, fmt.Errorf("image load requires image type, got %T", imageType.Inner(module))
	}

	scalar := ScalarType{Kind: ScalarFloat, Width: 4}
	if img.Class == ImageClassDepth {
		return TypeResolution{Value: scalar}, nil
	}

	return TypeResolution{Value: VectorType{Size: Vec4, Scalar: scalar}}, nil
}

func resolveImageQueryType(expr ExprImageQuery) (TypeResolution, error) {
	switch expr.Query.(type) {
	case ImageQuerySize:
		// Size returns u32 for 1D, vec2<u32> for 2D, vec3<u32> for 3D/Cube.
		// Dimensionality is recovered by the backend from the image type;
		// vec3<u32> is the widest shape.
		return TypeResolution{Value: VectorType{
			Size:   Vec3,
			Scalar: ScalarType{Kind: ScalarUint, Width: 4},
		}}, nil
	case ImageQueryNumLevels, ImageQueryNumLayers, ImageQueryNumSamples:
		return TypeResolution{Value: ScalarType{Kind: ScalarUint, Width: 4}}, nil
	default:
		return TypeResolution{}, fmt.Errorf("unknown image query type: %T", expr.Query)
	}
}

func resolveBinaryType(module *Module, fn *Function, expr ExprBinary) (TypeResolution, error) {
	leftType, err := ResolveExpressionType(module, fn, expr.Left)
	if err != nil {
		return TypeResolution{}, fmt.Errorf("binary left: %w", err)
	}

	switch expr.Op {
	case BinaryEqual, BinaryNotEqual, BinaryLess, BinaryLessEqual, BinaryGreater, BinaryGreaterEqual:
		if vec, ok := leftType.Inner(module).(VectorType); ok {
			return TypeResolution{Value: VectorType{
				Size:   vec.Size,
				Scalar: ScalarType{Kind: ScalarBool, Width: 1},
			}}, nil
		}
		return TypeResolution{Value: ScalarType{Kind: ScalarBool, Width: 1}}, nil

	case BinaryLogicalAnd, BinaryLogicalOr:
		return leftType, nil

	case BinaryMultiply:
		rightType, rightErr := ResolveExpressionType(module, fn, expr.Right)
		if rightErr != nil {
			return TypeResolution{}, fmt.Errorf("binary right: %w", rightErr)
		}
		return resolveMulResultType(module, leftType, rightType), nil

	default:
		// Arithmetic and bitwise operators: if one side is scalar and the
		// other is vector, the result is vector (the scalar broadcasts).
		rightType, rightErr := ResolveExpressionType(module, fn, expr.Right)
		if rightErr == nil {
			_, leftIsScalar := leftType.Inner(module).(ScalarType)
			_, rightIsVec := rightType.Inner(module).(VectorType)
			if leftIsScalar && rightIsVec {
				return rightType, nil
			}
		}
		return leftType, nil
	}
}

// resolveMulResultType determines the result type of a multiplication.
// scalar*vec→vec, scalar*mat→mat, mat*vec→vec(rows), vec*mat→vec(cols),
// mat*mat→mat(right cols x left rows).
func resolveMulResultType(module *Module, left, right TypeResolution) TypeResolution {
	leftInner := left.Inner(module)
	rightInner := right.Inner(module)

	_, leftIsScalar := leftInner.(ScalarType)
	_, rightIsScalar := rightInner.(ScalarType)
	_, leftIsVec := leftInner.(VectorType)
	_, rightIsVec := rightInner.(VectorType)
	leftMat, leftIsMat := leftInner.(MatrixType)
	rightMat, rightIsMat := rightInner.(MatrixType)

	switch {
	case leftIsScalar && rightIsVec:
		return right
	case leftIsScalar && rightIsMat:
		return right
	case leftIsVec && rightIsScalar:
		return left
	case leftIsMat && rightIsScalar:
		return left
	case leftIsMat && rightIsVec:
		return TypeResolution{Value: VectorType{Size: leftMat.Rows, Scalar: leftMat.Scalar}}
	case leftIsVec && rightIsMat:
		return TypeResolution{Value: VectorType{Size: rightMat.Columns, Scalar: rightMat.Scalar}}
	case leftIsMat && rightIsMat:
		return TypeResolution{Value: MatrixType{
			Columns: rightMat.Columns,
			Rows:    leftMat.Rows,
			Scalar:  leftMat.Scalar,
		}}
	default:
		return left
	}
}

func resolveRelationalType(module *Module, fn *Function, expr ExprRelational) (TypeResolution, error) {
	argType, err := ResolveExpressionType(module, fn, expr.Argument)
	if err != nil {
		return TypeResolution{}, fmt.Errorf("relational argument: %w", err)
	}

	if vec, ok := argType.Inner(module).(VectorType); ok {
		switch expr.Fun {
		case RelationalIsNan, RelationalIsInf:
			return TypeResolution{Value: VectorType{
				Size:   vec.Size,
				Scalar: ScalarType{Kind: ScalarBool, Width: 1},
			}}, nil
		}
	}

	return TypeResolution{Value: ScalarType{Kind: ScalarBool, Width: 1}}, nil
}

func resolveMathType(module *Module, fn *Function, expr ExprMath) (TypeResolution, error) {
	argType, err := ResolveExpressionType(module, fn, expr.Arg)
	if err != nil {
		return TypeResolution{}, fmt.Errorf("math argument: %w", err)
	}

	switch expr.Fun {
	case MathDot:
		if vec, ok := argType.Inner(module).(VectorType); ok {
			return TypeResolution{Value: vec.Scalar}, nil
		}
		return argType, nil

	case MathDot4I8Packed:
		return TypeResolution{Value: ScalarType{Kind: ScalarSint, Width: 4}}, nil
	case MathDot4U8Packed:
		return TypeResolution{Value: ScalarType{Kind: ScalarUint, Width: 4}}, nil

	case MathLength, MathDistance:
		if vec, ok := argType.Inner(module).(VectorType); ok {
			return TypeResolution{Value: vec.Scalar}, nil
		}
		return argType, nil

	case MathTranspose:
		if mat, ok := argType.Inner(module).(MatrixType); ok {
			return TypeResolution{Value: MatrixType{Columns: mat.Rows, Rows: mat.Columns, Scalar: mat.Scalar}}, nil
		}
		return argType, nil

	case MathDeterminant:
		if mat, ok := argType.Inner(module).(MatrixType); ok {
			return TypeResolution{Value: mat.Scalar}, nil
		}
		return argType, nil

	case MathPack4x8snorm, MathPack4x8unorm, MathPack2x16snorm, MathPack2x16unorm,
		MathPack2x16float, MathPack4xI8, MathPack4xU8, MathPack4xI8Clamp, MathPack4xU8Clamp:
		return TypeResolution{Value: ScalarType{Kind: ScalarUint, Width: 4}}, nil

	case MathUnpack2x16snorm, MathUnpack2x16unorm, MathUnpack2x16float:
		return TypeResolution{Value: VectorType{
			Size:   Vec2,
			Scalar: ScalarType{Kind: ScalarFloat, Width: 4},
		}}, nil
	case MathUnpack4x8snorm, MathUnpack4x8unorm:
		return TypeResolution{Value: VectorType{
			Size:   Vec4,
			Scalar: ScalarType{Kind: ScalarFloat, Width: 4},
		}}, nil
	case MathUnpack4xI8:
		return TypeResolution{Value: VectorType{
			Size:   Vec4,
			Scalar: ScalarType{Kind: ScalarSint, Width: 4},
		}}, nil
	case MathUnpack4xU8:
		return TypeResolution{Value: VectorType{
			Size:   Vec4,
			Scalar: ScalarType{Kind: ScalarUint, Width: 4},
		}}, nil

	default:
		// Most math functions preserve the argument type.
		return argType, nil
	}
}

func resolveAsType(module *Module, fn *Function, expr ExprAs) (TypeResolution, error) {
	exprType, err := ResolveExpressionType(module, fn, expr.Expr)
	if err != nil {
		return TypeResolution{}, fmt.Errorf("as expr: %w", err)
	}

	inner := exprType.Inner(module)

	width := uint8(4)
	if expr.Convert != nil {
		width = *expr.Convert
	} else if sc, ok := scalarOf(inner); ok {
		width = sc.Width
	}
	targetScalar := ScalarType{Kind: expr.Kind, Width: width}

	switch t := inner.(type) {
	case VectorType:
		return TypeResolution{Value: VectorType{Size: t.Size, Scalar: targetScalar}}, nil
	case MatrixType:
		return TypeResolution{Value: MatrixType{Columns: t.Columns, Rows: t.Rows, Scalar: targetScalar}}, nil
	default:
		return TypeResolution{Value: targetScalar}, nil
	}
}

// scalarOf returns the scalar component of a scalar, vector, matrix or
// atomic type.
func scalarOf(inner TypeInner) (ScalarType, bool) {
	switch t := inner.(type) {
	case ScalarType:
		return t, true
	case VectorType:
		return t.Scalar, true
	case MatrixType:
		return t.Scalar, true
	case AtomicType:
		return t.Scalar, true
	case ValuePointerType:
		return t.Scalar, true
	default:
		return ScalarType{}, false
	}
}
