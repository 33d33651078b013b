// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"strings"
	"testing"

	"github.com/gogpu/hlslgen/ir"
)

func TestWriter_Indentation(t *testing.T) {
	w := newWriter(&ir.Module{}, DefaultOptions(), nil)

	if w.indent != 0 {
		t.Errorf("initial indent = %d, want 0", w.indent)
	}

	w.pushIndent()
	if w.indent != 1 {
		t.Errorf("after pushIndent, indent = %d, want 1", w.indent)
	}

	w.pushIndent()
	if w.indent != 2 {
		t.Errorf("after second pushIndent, indent = %d, want 2", w.indent)
	}

	w.popIndent()
	if w.indent != 1 {
		t.Errorf("after popIndent, indent = %d, want 1", w.indent)
	}

	w.popIndent()
	if w.indent != 0 {
		t.Errorf("after second popIndent, indent = %d, want 0", w.indent)
	}

	// Pop below zero should stay at 0
	w.popIndent()
	if w.indent != 0 {
		t.Errorf("popIndent below zero should stay at 0, got %d", w.indent)
	}
}

func TestWriter_WriteLine(t *testing.T) {
	w := newWriter(&ir.Module{}, DefaultOptions(), nil)

	w.writeLine("test line")
	w.writeLine("second line")

	lines := strings.Split(w.String(), "\n")

	if len(lines) < 2 {
		t.Fatalf("expected at least 2 lines, got %d", len(lines))
	}

	if lines[0] != "test line" {
		t.Errorf("first line = %q, want \"test line\"", lines[0])
	}
	if lines[1] != "second line" {
		t.Errorf("second line = %q, want \"second line\"", lines[1])
	}
}

func TestWriter_WriteLineWithFormat(t *testing.T) {
	w := newWriter(&ir.Module{}, DefaultOptions(), nil)

	w.writeLine("value = %d", 42)
	w.writeLine("name = %s", "test")

	output := w.String()

	if !strings.Contains(output, "value = 42") {
		t.Error("expected output to contain \"value = 42\"")
	}
	if !strings.Contains(output, "name = test") {
		t.Error("expected output to contain \"name = test\"")
	}
}

func TestWriter_IndentedOutput(t *testing.T) {
	w := newWriter(&ir.Module{}, DefaultOptions(), nil)

	w.writeLine("level 0")
	w.pushIndent()
	w.writeLine("level 1")
	w.pushIndent()
	w.writeLine("level 2")
	w.popIndent()
	w.writeLine("back to 1")
	w.popIndent()
	w.writeLine("back to 0")

	lines := strings.Split(w.String(), "\n")

	// 4 spaces per level
	expectations := []struct {
		lineNum int
		want    string
	}{
		{0, "level 0"},
		{1, "    level 1"},
		{2, "        level 2"},
		{3, "    back to 1"},
		{4, "back to 0"},
	}

	for _, exp := range expectations {
		if exp.lineNum >= len(lines) {
			t.Errorf("line %d not found", exp.lineNum)
			continue
		}
		if lines[exp.lineNum] != exp.want {
			t.Errorf("line %d = %q, want %q", exp.lineNum, lines[exp.lineNum], exp.want)
		}
	}
}

func TestWriter_RegisterNames_Collisions(t *testing.T) {
	module := &ir.Module{
		Types: []ir.Type{
			{Inner: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}},
		},
		GlobalVariables: []ir.GlobalVariable{
			{Name: "data", Space: ir.SpacePrivate, Type: 0},
			{Name: "data", Space: ir.SpacePrivate, Type: 0},
			{Name: "", Space: ir.SpacePrivate, Type: 0},
		},
	}

	w := newWriter(module, DefaultOptions(), nil)
	if err := w.registerNames(); err != nil {
		t.Fatalf("registerNames() error = %v", err)
	}

	first := w.names[nameKey{kind: nameKeyGlobalVariable, handle1: 0}]
	second := w.names[nameKey{kind: nameKeyGlobalVariable, handle1: 1}]
	unnamed := w.names[nameKey{kind: nameKeyGlobalVariable, handle1: 2}]

	if first == second {
		t.Errorf("colliding globals got the same name %q", first)
	}
	if unnamed == "" {
		t.Error("unnamed global got no generated name")
	}
}

func TestWriter_WriteModule_StructTypes(t *testing.T) {
	module := &ir.Module{
		Types: []ir.Type{
			{Inner: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}},
			{
				Name: "VertexInput",
				Inner: ir.StructType{
					Members: []ir.StructMember{
						{Name: "position", Type: 0, Offset: 0},
						{Name: "normal", Type: 0, Offset: 4},
					},
					Span: 8,
				},
			},
		},
	}

	w := newWriter(module, DefaultOptions(), nil)
	if _, err := w.writeModule(); err != nil {
		t.Fatalf("writeModule() error = %v", err)
	}

	output := w.String()

	if !strings.Contains(output, "struct VertexInput {") {
		t.Error("expected struct definition")
	}
	if !strings.Contains(output, "float position;") {
		t.Error("expected position member")
	}
	if !strings.Contains(output, "float normal;") {
		t.Error("expected normal member")
	}
}

func TestWriter_WriteConstants(t *testing.T) {
	module := &ir.Module{
		Types: []ir.Type{
			{Inner: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}},
			{Inner: ir.ScalarType{Kind: ir.ScalarSint, Width: 4}},
		},
		GlobalExpressions: []ir.Expression{
			{Kind: ir.Literal{Value: ir.LiteralF32(3.5)}},
			{Kind: ir.Literal{Value: ir.LiteralI32(8)}},
		},
		Constants: []ir.Constant{
			{Name: "PI_ISH", Type: 0, Init: 0},
			{Name: "MAX_LIGHTS", Type: 1, Init: 1},
		},
	}

	w := newWriter(module, DefaultOptions(), nil)
	if _, err := w.writeModule(); err != nil {
		t.Fatalf("writeModule() error = %v", err)
	}

	output := w.String()

	if !strings.Contains(output, "static const float PI_ISH = 3.5;") {
		t.Errorf("expected PI_ISH declaration, got:\n%s", output)
	}
	if !strings.Contains(output, "static const int MAX_LIGHTS = int(8);") {
		t.Errorf("expected MAX_LIGHTS declaration, got:\n%s", output)
	}
}

func TestWriter_Literals(t *testing.T) {
	tests := []struct {
		name  string
		value ir.LiteralValue
		want  string
	}{
		{"bool true", ir.LiteralBool(true), "true"},
		{"bool false", ir.LiteralBool(false), "false"},
		{"int positive", ir.LiteralI32(42), "int(42)"},
		{"int negative", ir.LiteralI32(-1), "int(-1)"},
		{"int min", ir.LiteralI32(-2147483648), "int(-2147483647 - 1)"},
		{"uint", ir.LiteralU32(100), "100u"},
		{"float", ir.LiteralF32(0.5), "0.5"},
		{"float whole", ir.LiteralF32(2), "2.0"},
		{"i64", ir.LiteralI64(7), "7L"},
		{"i64 min", ir.LiteralI64(-9223372036854775808), "(-9223372036854775807L - 1L)"},
		{"u64", ir.LiteralU64(7), "7uL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWriter(&ir.Module{}, DefaultOptions(), nil)
			if err := w.writeLiteral(tt.value); err != nil {
				t.Fatalf("writeLiteral() error = %v", err)
			}
			if got := w.String(); got != tt.want {
				t.Errorf("writeLiteral(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestWriter_Require(t *testing.T) {
	w := newWriter(&ir.Module{}, DefaultOptions(), nil)

	if w.requiredShaderModel != ShaderModel5_1 {
		t.Fatalf("initial required model = %v", w.requiredShaderModel)
	}

	w.require(ShaderModel6_0, FeatureWaveOps)
	if w.requiredShaderModel != ShaderModel6_0 {
		t.Errorf("required model = %v, want ShaderModel6_0", w.requiredShaderModel)
	}
	if !w.usedFeatures.Has(FeatureWaveOps) {
		t.Error("expected FeatureWaveOps to be recorded")
	}

	// A lower requirement never downgrades.
	w.require(ShaderModel5_1, FeatureNone)
	if w.requiredShaderModel != ShaderModel6_0 {
		t.Errorf("required model downgraded to %v", w.requiredShaderModel)
	}
}

func TestWriter_EntryPointIsolation(t *testing.T) {
	// Three entry points; the middle one reads a storage buffer with no
	// binding entry. With FakeMissingBindings off, it must be skipped
	// while the other two still compile.
	module := &ir.Module{
		Types: []ir.Type{
			{Inner: ir.ScalarType{Kind: ir.ScalarUint, Width: 4}},
			{
				Name: "Data",
				Inner: ir.StructType{
					Members: []ir.StructMember{{Name: "value", Type: 0, Offset: 0}},
					Span:    4,
				},
			},
		},
		GlobalVariables: []ir.GlobalVariable{
			{
				Name:    "data",
				Space:   ir.SpaceStorage,
				Access:  ir.StorageLoad,
				Type:    1,
				Binding: &ir.ResourceBinding{Group: 0, Binding: 7},
			},
		},
		Functions: []ir.Function{
			{Name: "empty_a"},
			{
				Name: "uses_buffer",
				Expressions: []ir.Expression{
					{Kind: ir.ExprGlobalVariable{Variable: 0}},
					{Kind: ir.ExprAccessIndex{Base: 0, Index: 0}},
					{Kind: ir.ExprLoad{Pointer: 1}},
				},
				Body: ir.Block{
					{Kind: ir.StmtEmit{Range: ir.Range{Start: 2, End: 3}}},
				},
			},
			{Name: "empty_b"},
		},
		EntryPoints: []ir.EntryPoint{
			{Name: "first", Stage: ir.StageCompute, Function: 0, Workgroup: [3]uint32{1, 1, 1}},
			{Name: "second", Stage: ir.StageCompute, Function: 1, Workgroup: [3]uint32{1, 1, 1}},
			{Name: "third", Stage: ir.StageCompute, Function: 2, Workgroup: [3]uint32{1, 1, 1}},
		},
	}

	opts := DefaultOptions()
	opts.FakeMissingBindings = false

	code, info, err := Compile(module, opts, nil)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if len(info.EntryPoints) != 3 {
		t.Fatalf("EntryPoints = %d entries, want 3", len(info.EntryPoints))
	}
	if info.EntryPoints[0].Err != nil {
		t.Errorf("first entry point failed: %v", info.EntryPoints[0].Err)
	}
	if info.EntryPoints[1].Err == nil {
		t.Error("second entry point should have failed with a missing binding")
	}
	if info.EntryPoints[2].Err != nil {
		t.Errorf("third entry point failed: %v", info.EntryPoints[2].Err)
	}

	if !strings.Contains(code, "first(") {
		t.Error("expected first entry point in output")
	}
	if strings.Contains(code, "uses_buffer") || strings.Contains(code, "second(") {
		t.Errorf("skipped entry point leaked into output:\n%s", code)
	}
	if !strings.Contains(code, "third(") {
		t.Error("expected third entry point in output")
	}
}

func TestWriter_SkipsFunctionWithMissingBinding(t *testing.T) {
	// A helper reads a storage buffer whose binding cannot be resolved,
	// and a second helper calls the first. Both must be dropped with the
	// buffer declaration; the unrelated entry point still compiles.
	module := &ir.Module{
		Types: []ir.Type{
			{Inner: ir.ScalarType{Kind: ir.ScalarUint, Width: 4}},
			{
				Name: "Data",
				Inner: ir.StructType{
					Members: []ir.StructMember{{Name: "value", Type: 0, Offset: 0}},
					Span:    4,
				},
			},
		},
		GlobalVariables: []ir.GlobalVariable{
			{
				Name:    "data",
				Space:   ir.SpaceStorage,
				Access:  ir.StorageLoad,
				Type:    1,
				Binding: &ir.ResourceBinding{Group: 0, Binding: 7},
			},
		},
		Functions: []ir.Function{
			{
				Name: "read_value",
				Expressions: []ir.Expression{
					{Kind: ir.ExprGlobalVariable{Variable: 0}},
					{Kind: ir.ExprAccessIndex{Base: 0, Index: 0}},
					{Kind: ir.ExprLoad{Pointer: 1}},
				},
				Body: ir.Block{
					{Kind: ir.StmtEmit{Range: ir.Range{Start: 2, End: 3}}},
				},
			},
			{
				Name: "read_indirect",
				Body: ir.Block{
					{Kind: ir.StmtCall{Function: 0}},
				},
			},
			{Name: "empty"},
		},
		EntryPoints: []ir.EntryPoint{
			{Name: "main", Stage: ir.StageCompute, Function: 2, Workgroup: [3]uint32{1, 1, 1}},
		},
	}

	opts := DefaultOptions()
	opts.FakeMissingBindings = false

	code, info, err := Compile(module, opts, nil)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if len(info.EntryPoints) != 1 || info.EntryPoints[0].Err != nil {
		t.Fatalf("EntryPoints = %+v, want one clean entry", info.EntryPoints)
	}
	if strings.Contains(code, "read_value") {
		t.Errorf("function using unbound buffer leaked into output:\n%s", code)
	}
	if strings.Contains(code, "read_indirect") {
		t.Errorf("caller of skipped function leaked into output:\n%s", code)
	}
	if !strings.Contains(code, "main(") {
		t.Error("expected entry point in output")
	}
}
