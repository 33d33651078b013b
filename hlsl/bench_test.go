// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"runtime"
	"testing"

	"github.com/gogpu/hlslgen/ir"
)

// benchSmallModule builds a minimal vertex shader: a single entry point
// returning a constant clip-space position.
func benchSmallModule() *ir.Module {
	return &ir.Module{
		Types: []ir.Type{
			{Inner: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}},
			{Inner: ir.ScalarType{Kind: ir.ScalarUint, Width: 4}},
			{Inner: ir.VectorType{Size: ir.Vec4, Scalar: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}}},
		},
		Functions: []ir.Function{
			{
				Name: "vs_main",
				Arguments: []ir.FunctionArgument{
					{
						Name:    "idx",
						Type:    1,
						Binding: bindingPtr(ir.BuiltinBinding{Builtin: ir.BuiltinVertexIndex}),
					},
				},
				Result: &ir.FunctionResult{
					Type:    2,
					Binding: bindingPtr(ir.BuiltinBinding{Builtin: ir.BuiltinPosition}),
				},
				Expressions: []ir.Expression{
					{Kind: ir.Literal{Value: ir.LiteralF32(0)}},
					{Kind: ir.Literal{Value: ir.LiteralF32(1)}},
					{Kind: ir.ExprCompose{Type: 2, Components: []ir.ExpressionHandle{0, 0, 0, 1}}},
				},
				Body: ir.Block{
					{Kind: ir.StmtEmit{Range: ir.Range{Start: 2, End: 3}}},
					{Kind: ir.StmtReturn{Value: exprPtr(2)}},
				},
			},
		},
		EntryPoints: []ir.EntryPoint{
			{Name: "vs_main", Stage: ir.StageVertex, Function: 0},
		},
	}
}

// benchMediumModule builds a vertex/fragment pair that passes a struct
// with a builtin position and one user location between stages.
func benchMediumModule() *ir.Module {
	return &ir.Module{
		Types: []ir.Type{
			{Inner: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}},
			{Inner: ir.ScalarType{Kind: ir.ScalarUint, Width: 4}},
			{Inner: ir.VectorType{Size: ir.Vec4, Scalar: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}}},
			{
				Name: "VertexOutput",
				Inner: ir.StructType{
					Members: []ir.StructMember{
						{
							Name:    "position",
							Type:    2,
							Binding: bindingPtr(ir.BuiltinBinding{Builtin: ir.BuiltinPosition}),
							Offset:  0,
						},
						{
							Name:    "color",
							Type:    2,
							Binding: bindingPtr(ir.LocationBinding{Location: 0}),
							Offset:  16,
						},
					},
					Span: 32,
				},
			},
		},
		Functions: []ir.Function{
			{
				Name: "vs_main",
				Arguments: []ir.FunctionArgument{
					{
						Name:    "idx",
						Type:    1,
						Binding: bindingPtr(ir.BuiltinBinding{Builtin: ir.BuiltinVertexIndex}),
					},
				},
				Result: &ir.FunctionResult{Type: 3},
				Expressions: []ir.Expression{
					{Kind: ir.Literal{Value: ir.LiteralF32(0)}},
					{Kind: ir.Literal{Value: ir.LiteralF32(1)}},
					{Kind: ir.ExprCompose{Type: 2, Components: []ir.ExpressionHandle{0, 0, 0, 1}}},
					{Kind: ir.ExprCompose{Type: 2, Components: []ir.ExpressionHandle{1, 0, 0, 1}}},
					{Kind: ir.ExprCompose{Type: 3, Components: []ir.ExpressionHandle{2, 3}}},
				},
				Body: ir.Block{
					{Kind: ir.StmtEmit{Range: ir.Range{Start: 2, End: 5}}},
					{Kind: ir.StmtReturn{Value: exprPtr(4)}},
				},
			},
			{
				Name: "fs_main",
				Arguments: []ir.FunctionArgument{
					{
						Name:    "color",
						Type:    2,
						Binding: bindingPtr(ir.LocationBinding{Location: 0}),
					},
				},
				Result: &ir.FunctionResult{
					Type:    2,
					Binding: bindingPtr(ir.LocationBinding{Location: 0}),
				},
				Expressions: []ir.Expression{
					{Kind: ir.ExprFunctionArgument{Index: 0}},
				},
				Body: ir.Block{
					{Kind: ir.StmtReturn{Value: exprPtr(0)}},
				},
			},
		},
		EntryPoints: []ir.EntryPoint{
			{Name: "vs_main", Stage: ir.StageVertex, Function: 0},
			{Name: "fs_main", Stage: ir.StageFragment, Function: 1},
		},
	}
}

// benchLargeModule builds a lit vertex/fragment pair with a uniform
// camera matrix and a handful of math intrinsics in the fragment stage.
func benchLargeModule() *ir.Module {
	f32 := ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}
	return &ir.Module{
		Types: []ir.Type{
			{Inner: f32},
			{Inner: ir.VectorType{Size: ir.Vec2, Scalar: f32}},
			{Inner: ir.VectorType{Size: ir.Vec3, Scalar: f32}},
			{Inner: ir.VectorType{Size: ir.Vec4, Scalar: f32}},
			{Inner: ir.MatrixType{Columns: ir.Vec4, Rows: ir.Vec4, Scalar: f32}},
			{
				Name: "Camera",
				Inner: ir.StructType{
					Members: []ir.StructMember{
						{Name: "view_proj", Type: 4, Offset: 0},
					},
					Span: 64,
				},
			},
			{
				Name: "VertexOutput",
				Inner: ir.StructType{
					Members: []ir.StructMember{
						{
							Name:    "position",
							Type:    3,
							Binding: bindingPtr(ir.BuiltinBinding{Builtin: ir.BuiltinPosition}),
							Offset:  0,
						},
						{
							Name:    "world_pos",
							Type:    2,
							Binding: bindingPtr(ir.LocationBinding{Location: 0}),
							Offset:  16,
						},
						{
							Name:    "normal",
							Type:    2,
							Binding: bindingPtr(ir.LocationBinding{Location: 1}),
							Offset:  32,
						},
						{
							Name:    "uv",
							Type:    1,
							Binding: bindingPtr(ir.LocationBinding{Location: 2}),
							Offset:  48,
						},
					},
					Span: 56,
				},
			},
		},
		GlobalVariables: []ir.GlobalVariable{
			{
				Name:    "camera",
				Space:   ir.SpaceUniform,
				Type:    5,
				Binding: &ir.ResourceBinding{Group: 0, Binding: 0},
			},
		},
		Functions: []ir.Function{
			{
				Name: "vs_main",
				Arguments: []ir.FunctionArgument{
					{Name: "pos", Type: 2, Binding: bindingPtr(ir.LocationBinding{Location: 0})},
					{Name: "normal", Type: 2, Binding: bindingPtr(ir.LocationBinding{Location: 1})},
					{Name: "uv", Type: 1, Binding: bindingPtr(ir.LocationBinding{Location: 2})},
				},
				Result: &ir.FunctionResult{Type: 6},
				Expressions: []ir.Expression{
					{Kind: ir.ExprFunctionArgument{Index: 0}},
					{Kind: ir.ExprFunctionArgument{Index: 1}},
					{Kind: ir.ExprFunctionArgument{Index: 2}},
					{Kind: ir.ExprGlobalVariable{Variable: 0}},
					{Kind: ir.ExprAccessIndex{Base: 3, Index: 0}},
					{Kind: ir.ExprLoad{Pointer: 4}},
					{Kind: ir.ExprAccessIndex{Base: 0, Index: 0}},
					{Kind: ir.ExprAccessIndex{Base: 0, Index: 1}},
					{Kind: ir.ExprAccessIndex{Base: 0, Index: 2}},
					{Kind: ir.Literal{Value: ir.LiteralF32(1)}},
					{Kind: ir.ExprCompose{Type: 3, Components: []ir.ExpressionHandle{6, 7, 8, 9}}},
					{Kind: ir.ExprBinary{Op: ir.BinaryMultiply, Left: 5, Right: 10}},
					{Kind: ir.ExprCompose{Type: 6, Components: []ir.ExpressionHandle{11, 0, 1, 2}}},
				},
				Body: ir.Block{
					{Kind: ir.StmtEmit{Range: ir.Range{Start: 5, End: 13}}},
					{Kind: ir.StmtReturn{Value: exprPtr(12)}},
				},
			},
			{
				Name: "fs_main",
				Arguments: []ir.FunctionArgument{
					{Name: "in", Type: 6},
				},
				Result: &ir.FunctionResult{
					Type:    3,
					Binding: bindingPtr(ir.LocationBinding{Location: 0}),
				},
				Expressions: []ir.Expression{
					{Kind: ir.ExprFunctionArgument{Index: 0}},
					{Kind: ir.ExprAccessIndex{Base: 0, Index: 2}},
					{Kind: ir.ExprMath{Fun: ir.MathNormalize, Arg: 1}},
					{Kind: ir.Literal{Value: ir.LiteralF32(10)}},
					{Kind: ir.ExprCompose{Type: 2, Components: []ir.ExpressionHandle{3, 3, 3}}},
					{Kind: ir.ExprAccessIndex{Base: 0, Index: 1}},
					{Kind: ir.ExprBinary{Op: ir.BinarySubtract, Left: 4, Right: 5}},
					{Kind: ir.ExprMath{Fun: ir.MathNormalize, Arg: 6}},
					{Kind: ir.ExprMath{Fun: ir.MathDot, Arg: 2, Arg1: exprPtr(7)}},
					{Kind: ir.Literal{Value: ir.LiteralF32(0)}},
					{Kind: ir.ExprMath{Fun: ir.MathMax, Arg: 8, Arg1: exprPtr(9)}},
					{Kind: ir.Literal{Value: ir.LiteralF32(32)}},
					{Kind: ir.ExprMath{Fun: ir.MathPow, Arg: 10, Arg1: exprPtr(11)}},
					{Kind: ir.Literal{Value: ir.LiteralF32(1)}},
					{Kind: ir.ExprCompose{Type: 3, Components: []ir.ExpressionHandle{12, 12, 12, 13}}},
				},
				Body: ir.Block{
					{Kind: ir.StmtEmit{Range: ir.Range{Start: 1, End: 15}}},
					{Kind: ir.StmtReturn{Value: exprPtr(14)}},
				},
			},
		},
		EntryPoints: []ir.EntryPoint{
			{Name: "vs_main", Stage: ir.StageVertex, Function: 0},
			{Name: "fs_main", Stage: ir.StageFragment, Function: 1},
		},
	}
}

func exprPtr(h ir.ExpressionHandle) *ir.ExpressionHandle {
	return &h
}

// BenchmarkHLSLEmit benchmarks HLSL code generation (IR to string)
// for modules of different complexity.
func BenchmarkHLSLEmit(b *testing.B) {
	cases := []struct {
		name   string
		module *ir.Module
	}{
		{"small", benchSmallModule()},
		{"medium", benchMediumModule()},
		{"large", benchLargeModule()},
	}

	for _, bc := range cases {
		b.Run(bc.name, func(b *testing.B) {
			opts := DefaultOptions()

			b.ReportAllocs()
			b.ResetTimer()

			var result string
			for i := 0; i < b.N; i++ {
				var err error
				result, _, err = Compile(bc.module, opts, nil)
				if err != nil {
					b.Fatalf("hlsl emit failed: %v", err)
				}
			}
			runtime.KeepAlive(result)
		})
	}
}

// BenchmarkHLSLShaderModels benchmarks HLSL generation across different
// shader model targets for the same module.
func BenchmarkHLSLShaderModels(b *testing.B) {
	module := benchMediumModule()

	models := []struct {
		name  string
		model ShaderModel
	}{
		{"SM_5_0", ShaderModel5_0},
		{"SM_5_1", ShaderModel5_1},
		{"SM_6_0", ShaderModel6_0},
	}

	for _, sm := range models {
		b.Run(sm.name, func(b *testing.B) {
			opts := DefaultOptions()
			opts.ShaderModel = sm.model

			b.ReportAllocs()
			b.ResetTimer()

			var result string
			for i := 0; i < b.N; i++ {
				var err error
				result, _, err = Compile(module, opts, nil)
				if err != nil {
					b.Fatalf("hlsl %s emit failed: %v", sm.name, err)
				}
			}
			runtime.KeepAlive(result)
		})
	}
}
