// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gogpu/hlslgen/ir"
)

// writeFunction writes a plain (non-entry-point) function definition.
//
// Pointer-typed arguments become inout parameters; array returns go
// through a typedef because HLSL cannot name an array type in a return
// position.
func (w *Writer) writeFunction(fc *funcCtx) error {
	w.resetFunctionState(fc)
	fn := fc.fn
	fnName := w.names[nameKey{kind: nameKeyFunction, handle1: uint32(fc.handle)}]

	returnType := "void"
	if fn.Result != nil {
		retName, retSuffix := w.getTypeNameWithArraySuffix(fn.Result.Type)
		if retSuffix != "" {
			typedefName := fmt.Sprintf("ret_%s", fnName)
			w.writeLine("typedef %s %s%s;", retName, typedefName, retSuffix)
			returnType = typedefName
		} else {
			returnType = retName
		}
	}

	fc.argNames = make([]string, len(fn.Arguments))
	params := make([]string, len(fn.Arguments))
	for i := range fn.Arguments {
		arg := &fn.Arguments[i]
		argName := w.names[nameKey{kind: nameKeyFunctionArgument, handle1: uint32(fc.handle), handle2: uint32(i)}]
		fc.argNames[i] = argName

		prefix := ""
		if _, isPtr := w.module.Types[arg.Type].Inner.(ir.PointerType); isPtr {
			prefix = "inout "
		}
		typeName, arraySuffix := w.getTypeNameWithArraySuffix(arg.Type)
		params[i] = fmt.Sprintf("%s%s %s%s", prefix, typeName, argName, arraySuffix)
	}

	w.writeLine("%s %s(%s)", returnType, fnName, strings.Join(params, ", "))
	w.writeLine("{")
	w.pushIndent()

	if err := w.writeLocalVariables(fn); err != nil {
		return err
	}
	if err := w.writeBlock(fn.Body); err != nil {
		return err
	}

	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
	return nil
}

// writeLocalVariables declares the function's local variables.
func (w *Writer) writeLocalVariables(fn *ir.Function) error {
	for i := range fn.LocalVars {
		local := &fn.LocalVars[i]
		baseName := local.Name
		if baseName == "" {
			baseName = fmt.Sprintf("local_%d", i)
		}
		name := w.namer.call(baseName)
		w.localNames[uint32(i)] = name

		typeName, arraySuffix := w.getTypeNameWithArraySuffix(local.Type)
		if local.Init != nil {
			initStr, err := w.expressionToString(*local.Init)
			if err != nil {
				return err
			}
			w.writeLine("%s %s%s = %s;", typeName, name, arraySuffix, initStr)
		} else {
			w.writeLine("%s %s%s = (%s)0;", typeName, name, arraySuffix, w.getTypeName(local.Type))
		}
	}
	return nil
}

// epInterfaceMember is one field of an entry point's flattened
// input or output interface.
type epInterfaceMember struct {
	typeName    string
	arraySuffix string
	name        string
	semantic    string
	modifier    string

	location *uint32
	builtin  *ir.BuiltinValue

	// Flattening origin: which argument, and which member within it
	// when the argument is a bare struct (-1 for direct arguments).
	argIndex    int
	memberIndex int
}

// epOutputLayout records how a vertex or fragment return statement
// reassembles the output struct.
type epOutputLayout struct {
	structName string
	varName    string
	resultType ir.TypeHandle
	// members maps output struct fields to source accessors on the
	// returned value ("" for a whole-value output).
	members []epOutputMember
}

type epOutputMember struct {
	dst string
	src string
}

// writeEntryPoint writes an entry point wrapper: the interface structs,
// stage attributes, the prologue that rebuilds the function arguments
// from the input interface, and the body itself.
//
//nolint:gocyclo,cyclop // Entry point assembly spans every stage variant
func (w *Writer) writeEntryPoint(fc *funcCtx, ep *ir.EntryPoint) error {
	w.resetFunctionState(fc)
	fn := fc.fn
	epName := w.names[nameKey{kind: nameKeyEntryPoint, handle1: uint32(fc.epIndex)}]

	inputs := w.collectEntryPointInputs(fc)

	var inputStructName, inputVarName string
	if fc.stage != ir.StageCompute && len(inputs) > 0 {
		inputStructName = w.namer.call(epName + "Input")
		inputVarName = w.namer.call(epName + "_input")
		w.epInputStructs[fc.epIndex] = inputStructName
		w.writeInterfaceStruct(inputStructName, inputs)
	}

	returnType, returnSemantic, err := w.prepareEntryPointOutput(fc, ep, epName)
	if err != nil {
		return err
	}

	if fc.stage == ir.StageCompute {
		w.writeLine("[numthreads(%d, %d, %d)]", ep.Workgroup[0], ep.Workgroup[1], ep.Workgroup[2])
	}

	groupThreadID, params := w.entryPointParams(fc, inputs, inputStructName, inputVarName)
	w.writeIndent()
	w.write("%s %s(%s)", returnType, epName, strings.Join(params, ", "))
	if returnSemantic != "" {
		w.write(" : %s", returnSemantic)
	}
	w.write("\n")
	w.writeLine("{")
	w.pushIndent()

	if fc.stage == ir.StageCompute {
		w.writeWorkgroupInit(fc, groupThreadID)
	}
	if err := w.writeEntryPointPrologue(fc, inputs, inputVarName); err != nil {
		return err
	}
	if err := w.writeLocalVariables(fn); err != nil {
		return err
	}
	if err := w.writeBlock(fn.Body); err != nil {
		return err
	}

	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
	return nil
}

// collectEntryPointInputs flattens the entry point arguments into
// interface members. A struct argument without its own binding
// contributes one member per field. Subgroup builtins have no HLSL
// semantic and are excluded; the prologue derives them from wave
// intrinsics.
func (w *Writer) collectEntryPointInputs(fc *funcCtx) []epInterfaceMember {
	var members []epInterfaceMember
	used := map[string]int{}

	add := func(typ ir.TypeHandle, binding ir.Binding, name string, argIdx, memberIdx int) {
		if bb, ok := binding.(ir.BuiltinBinding); ok && bb.Builtin.IsSubgroup() {
			return
		}
		if name == "" {
			name = fmt.Sprintf("input_%d", len(members))
		}
		name = Escape(name)
		if n := used[name]; n > 0 {
			used[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n)
		} else {
			used[name] = 1
		}

		typeName, arraySuffix := w.getTypeNameWithArraySuffix(typ)
		m := epInterfaceMember{
			typeName:    typeName,
			arraySuffix: arraySuffix,
			name:        name,
			semantic:    w.getSemanticFromBinding(binding, fc.stage, false),
			modifier:    w.getInterpolationModifier(binding),
			argIndex:    argIdx,
			memberIndex: memberIdx,
		}
		switch b := binding.(type) {
		case ir.LocationBinding:
			loc := b.Location
			m.location = &loc
		case ir.BuiltinBinding:
			builtin := b.Builtin
			m.builtin = &builtin
			if builtin == ir.BuiltinPosition && b.Invariant {
				m.modifier = "precise"
			}
		}
		members = append(members, m)
	}

	for argIdx := range fc.fn.Arguments {
		arg := &fc.fn.Arguments[argIdx]
		if arg.Binding != nil {
			add(arg.Type, *arg.Binding, arg.Name, argIdx, -1)
			continue
		}
		if st, ok := w.module.Types[arg.Type].Inner.(ir.StructType); ok {
			for memberIdx := range st.Members {
				member := &st.Members[memberIdx]
				var binding ir.Binding
				if member.Binding != nil {
					binding = *member.Binding
				}
				add(member.Type, binding, member.Name, argIdx, memberIdx)
			}
		}
	}

	sortInterfaceMembers(members)
	return members
}

// sortInterfaceMembers orders interface fields: locations ascending,
// then builtins, then anything else. A stable interface order keeps
// vertex outputs and fragment inputs layout-compatible.
func sortInterfaceMembers(members []epInterfaceMember) {
	rank := func(m *epInterfaceMember) int {
		switch {
		case m.location != nil:
			return 0
		case m.builtin != nil:
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(members, func(a, b int) bool {
		ra, rb := rank(&members[a]), rank(&members[b])
		if ra != rb {
			return ra < rb
		}
		if members[a].location != nil && members[b].location != nil {
			return *members[a].location < *members[b].location
		}
		return false
	})
}

// writeInterfaceStruct writes a stage interface struct definition.
func (w *Writer) writeInterfaceStruct(name string, members []epInterfaceMember) {
	w.writeLine("struct %s {", name)
	w.pushIndent()
	for i := range members {
		m := &members[i]
		w.writeIndent()
		if m.modifier != "" {
			w.write("%s ", m.modifier)
		}
		w.write("%s %s%s", m.typeName, m.name, m.arraySuffix)
		if m.semantic != "" {
			w.write(" : %s", m.semantic)
		}
		w.write(";\n")
	}
	w.popIndent()
	w.writeLine("};")
	w.writeLine("")
}

// entryPointParams builds the parameter list. Compute entry points take
// their builtins as individual parameters; render stages take the input
// struct. Returns the name bound to SV_GroupThreadID when workgroup
// zero-initialization needs one.
func (w *Writer) entryPointParams(fc *funcCtx, inputs []epInterfaceMember, inputStructName, inputVarName string) (groupThreadID string, params []string) {
	if fc.stage != ir.StageCompute {
		if inputStructName != "" {
			params = append(params, fmt.Sprintf("%s %s", inputStructName, inputVarName))
		}
		return "", params
	}

	for i := range inputs {
		m := &inputs[i]
		param := fmt.Sprintf("%s %s%s", m.typeName, m.name, m.arraySuffix)
		if m.semantic != "" {
			param += " : " + m.semantic
		}
		params = append(params, param)
		if m.builtin != nil && *m.builtin == ir.BuiltinLocalInvocationID && m.memberIndex < 0 {
			groupThreadID = m.name
		}
	}

	if groupThreadID == "" && w.needsWorkgroupInit(fc) {
		groupThreadID = w.namer.call("__local_invocation_id")
		params = append(params, fmt.Sprintf("uint3 %s : SV_GroupThreadID", groupThreadID))
	}
	return groupThreadID, params
}

// needsWorkgroupInit reports whether the entry point must zero its
// groupshared memory on startup.
func (w *Writer) needsWorkgroupInit(fc *funcCtx) bool {
	if !w.options.ZeroInitializeWorkgroupMemory {
		return false
	}
	for handle, global := range w.module.GlobalVariables {
		if global.Space == ir.SpaceWorkGroup && fc.info.GlobalUses[handle] != 0 {
			return true
		}
	}
	return false
}

// writeWorkgroupInit zeroes groupshared variables from the first thread
// of the group, then synchronizes.
func (w *Writer) writeWorkgroupInit(fc *funcCtx, groupThreadID string) {
	if groupThreadID == "" || !w.needsWorkgroupInit(fc) {
		return
	}
	w.writeLine("if (all(%s == uint3(0u, 0u, 0u))) {", groupThreadID)
	w.pushIndent()
	for handle, global := range w.module.GlobalVariables {
		if global.Space != ir.SpaceWorkGroup || fc.info.GlobalUses[handle] == 0 {
			continue
		}
		name, err := w.globalName(ir.GlobalVariableHandle(handle))
		if err != nil {
			continue
		}
		w.writeLine("%s = (%s)0;", name, w.getTypeName(global.Type))
	}
	w.popIndent()
	w.writeLine("}")
	w.writeLine("GroupMemoryBarrierWithGroupSync();")
}

// writeEntryPointPrologue binds each function argument to an expression
// reading the input interface: a struct member access for simple
// arguments, a rebuilt struct local for struct arguments, and derived
// locals for subgroup builtins and index offsetting.
//
//nolint:gocognit // One rebinding rule per argument shape
func (w *Writer) writeEntryPointPrologue(fc *funcCtx, inputs []epInterfaceMember, inputVarName string) error {
	fc.argNames = make([]string, len(fc.fn.Arguments))

	// Struct arguments get rebuilt from their flattened fields.
	type structRebuild struct {
		fields []string
	}
	rebuilds := map[int]*structRebuild{}
	for argIdx := range fc.fn.Arguments {
		arg := &fc.fn.Arguments[argIdx]
		if arg.Binding != nil {
			continue
		}
		if st, ok := w.module.Types[arg.Type].Inner.(ir.StructType); ok {
			rebuilds[argIdx] = &structRebuild{fields: make([]string, len(st.Members))}
		}
	}

	for i := range inputs {
		m := &inputs[i]
		accessor := m.name
		if inputVarName != "" {
			accessor = fmt.Sprintf("%s.%s", inputVarName, m.name)
		}

		if m.builtin != nil && w.options.SpecialConstantsBinding != nil {
			switch *m.builtin {
			case ir.BuiltinVertexIndex:
				local := w.namer.call(m.name + "_offset")
				w.writeLine("uint %s = %s + uint(%s.first_vertex);", local, accessor, SpecialConstantsVarName)
				accessor = local
			case ir.BuiltinInstanceIndex:
				local := w.namer.call(m.name + "_offset")
				w.writeLine("uint %s = %s + uint(%s.first_instance);", local, accessor, SpecialConstantsVarName)
				accessor = local
			}
		}

		if m.memberIndex < 0 {
			fc.argNames[m.argIndex] = accessor
		} else if rb := rebuilds[m.argIndex]; rb != nil {
			rb.fields[m.memberIndex] = accessor
		}
	}

	for argIdx := range fc.fn.Arguments {
		rb := rebuilds[argIdx]
		if rb == nil {
			continue
		}
		arg := &fc.fn.Arguments[argIdx]
		st := w.module.Types[arg.Type].Inner.(ir.StructType)
		for memberIdx := range st.Members {
			if rb.fields[memberIdx] != "" {
				continue
			}
			member := &st.Members[memberIdx]
			if member.Binding != nil {
				if bb, ok := (*member.Binding).(ir.BuiltinBinding); ok && bb.Builtin.IsSubgroup() {
					rb.fields[memberIdx] = subgroupBuiltinInit(bb.Builtin)
					continue
				}
			}
			rb.fields[memberIdx] = fmt.Sprintf("(%s)0", w.getTypeName(member.Type))
		}

		baseName := arg.Name
		if baseName == "" {
			baseName = fmt.Sprintf("arg_%d", argIdx)
		}
		local := w.namer.call(baseName)
		w.writeLine("%s %s = { %s };", w.getTypeName(arg.Type), local, strings.Join(rb.fields, ", "))
		fc.argNames[argIdx] = local
	}

	return w.writeSubgroupArgInit(fc)
}

// writeSubgroupArgInit initializes arguments bound to subgroup builtins
// from wave intrinsics. They carry no HLSL semantic, so they never
// appear in the input interface.
func (w *Writer) writeSubgroupArgInit(fc *funcCtx) error {
	for argIdx := range fc.fn.Arguments {
		arg := &fc.fn.Arguments[argIdx]
		if arg.Binding == nil {
			continue
		}
		bb, ok := (*arg.Binding).(ir.BuiltinBinding)
		if !ok || !bb.Builtin.IsSubgroup() {
			continue
		}
		w.require(ShaderModel6_0, FeatureWaveOps)

		baseName := arg.Name
		if baseName == "" {
			baseName = fmt.Sprintf("arg_%d", argIdx)
		}
		local := w.namer.call(baseName)
		w.writeLine("const uint %s = %s;", local, subgroupBuiltinInit(bb.Builtin))
		fc.argNames[argIdx] = local
	}
	return nil
}

func subgroupBuiltinInit(builtin ir.BuiltinValue) string {
	if builtin == ir.BuiltinSubgroupSize {
		return "WaveGetLaneCount()"
	}
	return "WaveGetLaneIndex()"
}

// prepareEntryPointOutput determines the return type and semantic and,
// for struct results, writes the output struct and records how return
// statements reassemble it.
func (w *Writer) prepareEntryPointOutput(fc *funcCtx, ep *ir.EntryPoint, epName string) (returnType, returnSemantic string, err error) {
	fn := fc.fn
	if fn.Result == nil {
		return "void", "", nil
	}

	if fn.Result.Binding != nil {
		w.epOutput = &epOutputLayout{resultType: fn.Result.Type}
		return w.getTypeName(fn.Result.Type),
			w.getSemanticFromBinding(*fn.Result.Binding, fc.stage, true), nil
	}

	st, ok := w.module.Types[fn.Result.Type].Inner.(ir.StructType)
	if !ok {
		return "", "", NewError(ErrInvalidModule, "entry point result must be bound or a struct")
	}

	structName := w.namer.call(epName + "Output")
	w.epOutputStructs[fc.epIndex] = structName
	layout := &epOutputLayout{
		structName: structName,
		varName:    w.namer.call(epName + "_output"),
		resultType: fn.Result.Type,
	}

	var members []epInterfaceMember
	for memberIdx := range st.Members {
		member := &st.Members[memberIdx]
		var binding ir.Binding
		if member.Binding != nil {
			binding = *member.Binding
		}

		if loc, isLoc := binding.(ir.LocationBinding); isLoc &&
			fc.stage == ir.StageVertex && w.fragmentEP != nil &&
			!w.fragmentEP.consumesLocation(loc.Location) {
			continue
		}

		typeName, arraySuffix := w.getTypeNameWithArraySuffix(member.Type)
		name := Escape(member.Name)
		if name == "" {
			name = fmt.Sprintf("member_%d", memberIdx)
		}
		m := epInterfaceMember{
			typeName:    typeName,
			arraySuffix: arraySuffix,
			name:        name,
			semantic:    w.getSemanticFromBinding(binding, fc.stage, true),
			modifier:    w.getInterpolationModifier(binding),
			memberIndex: memberIdx,
		}
		switch b := binding.(type) {
		case ir.LocationBinding:
			l := b.Location
			m.location = &l
		case ir.BuiltinBinding:
			builtin := b.Builtin
			m.builtin = &builtin
			if builtin == ir.BuiltinPosition && b.Invariant {
				m.modifier = "precise"
			}
		}
		members = append(members, m)
	}
	sortInterfaceMembers(members)

	w.writeInterfaceStruct(structName, members)
	for i := range members {
		layout.members = append(layout.members, epOutputMember{
			dst: members[i].name,
			src: w.structMemberName(fn.Result.Type, uint32(members[i].memberIndex)),
		})
	}
	w.epOutput = layout
	return structName, "", nil
}

// writeEntryPointReturn writes an entry point return, reassembling the
// output struct in interface order when the result is a struct.
func (w *Writer) writeEntryPointReturn(value *ir.ExpressionHandle) error {
	if value == nil || w.epOutput == nil {
		w.writeLine("return;")
		return nil
	}
	valueStr, err := w.expressionToString(*value)
	if err != nil {
		return err
	}
	if w.epOutput.structName == "" {
		w.writeLine("return %s;", valueStr)
		return nil
	}

	tmp := w.namer.call("_result")
	w.writeLine("const %s %s = %s;", w.getTypeName(w.epOutput.resultType), tmp, valueStr)
	w.writeLine("%s %s = (%s)0;", w.epOutput.structName, w.epOutput.varName, w.epOutput.structName)
	for _, member := range w.epOutput.members {
		w.writeLine("%s.%s = %s.%s;", w.epOutput.varName, member.dst, tmp, member.src)
	}
	w.writeLine("return %s;", w.epOutput.varName)
	return nil
}
