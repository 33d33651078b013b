// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"fmt"
	"sort"

	"github.com/gogpu/hlslgen/ir"
)

// writeSpecialConstantsBuffer emits the constant buffer that carries
// the base-vertex / base-instance offsets and the workgroup-count
// fallback for indirect dispatch.
func (w *Writer) writeSpecialConstantsBuffer() {
	target := w.options.SpecialConstantsBinding

	w.writeLine("struct %s {", SpecialConstantsStructName)
	w.pushIndent()
	w.writeLine("int first_vertex;")
	w.writeLine("int first_instance;")
	w.writeLine("uint other;")
	w.popIndent()
	w.writeLine("};")
	w.writeLine("ConstantBuffer<%s> %s: register(b%d, space%d);",
		SpecialConstantsStructName, SpecialConstantsVarName, target.Register, target.Space)
	w.writeLine("")
}

// registerTypeForGlobal returns the register class a global binds to.
func (w *Writer) registerTypeForGlobal(global *ir.GlobalVariable) RegisterType {
	switch global.Space {
	case ir.SpaceUniform, ir.SpacePushConstant:
		return RegisterTypeB
	case ir.SpaceStorage:
		if global.Access.Contains(ir.StorageStore) {
			return RegisterTypeU
		}
		return RegisterTypeT
	case ir.SpaceHandle:
		switch inner := w.handleInner(global.Type).(type) {
		case ir.SamplerType:
			return RegisterTypeS
		case ir.ImageType:
			if inner.Class == ir.ImageClassStorage && inner.Access.Contains(ir.StorageStore) {
				return RegisterTypeU
			}
			return RegisterTypeT
		default:
			return RegisterTypeT
		}
	default:
		return RegisterTypeT
	}
}

// handleInner unwraps binding arrays down to the bound resource type.
func (w *Writer) handleInner(handle ir.TypeHandle) ir.TypeInner {
	inner := w.module.Types[handle].Inner
	if ba, ok := inner.(ir.BindingArrayType); ok {
		return w.module.Types[ba.Base].Inner
	}
	return inner
}

// resolveBindTarget looks up the register target of a bound global.
// An absent mapping is either faked from the source binding or reported
// as ErrMissingBinding, depending on options.
func (w *Writer) resolveBindTarget(global *ir.GlobalVariable) (BindTarget, error) {
	if global.Binding == nil {
		return BindTarget{}, NewError(ErrMissingBinding,
			fmt.Sprintf("global %q has no resource binding", global.Name))
	}

	key := ResourceBinding{Group: global.Binding.Group, Binding: global.Binding.Binding}
	if target, ok := w.options.BindingMap[key]; ok {
		return target, nil
	}
	if w.options.FakeMissingBindings {
		return BindTarget{
			Space:    uint8(global.Binding.Group),
			Register: global.Binding.Binding,
		}, nil
	}
	return BindTarget{}, NewError(ErrMissingBinding,
		fmt.Sprintf("no binding mapped for group %d binding %d (global %q)",
			global.Binding.Group, global.Binding.Binding, global.Name))
}

// registerAnnotation renders a register clause and records it in the
// reflection map under the global's emitted name.
func (w *Writer) registerAnnotation(name string, rt RegisterType, target BindTarget) string {
	binding := fmt.Sprintf("register(%s%d, space%d)", rt, target.Register, target.Space)
	w.registerBindings[name] = binding
	return binding
}

// writeGlobalVariables emits every module-scope variable declaration.
//
// Globals whose binding cannot be resolved are skipped here and their
// error remembered; entry points that never touch them still compile.
func (w *Writer) writeGlobalVariables() error {
	w.writeDynamicOffsetsBuffers()
	w.writeSamplerHeaps()

	wrote := false
	for handle := range w.module.GlobalVariables {
		global := &w.module.GlobalVariables[handle]
		name := w.names[nameKey{kind: nameKeyGlobalVariable, handle1: uint32(handle)}]

		switch global.Space {
		case ir.SpacePrivate:
			w.writePrivateGlobal(global, name)
		case ir.SpaceWorkGroup:
			typeName, arraySuffix := w.getTypeNameWithArraySuffix(global.Type)
			w.writeLine("groupshared %s %s%s;", typeName, name, arraySuffix)
		case ir.SpaceUniform, ir.SpacePushConstant, ir.SpaceStorage, ir.SpaceHandle:
			if err := w.writeBoundGlobal(ir.GlobalVariableHandle(handle), global, name); err != nil {
				return err
			}
		}
		wrote = true
	}
	if wrote {
		w.writeLine("")
	}
	return nil
}

// writePrivateGlobal writes a private-space global as a static with its
// initializer, or zero-initialized when it has none.
func (w *Writer) writePrivateGlobal(global *ir.GlobalVariable, name string) {
	typeName, arraySuffix := w.getTypeNameWithArraySuffix(global.Type)
	w.writeIndent()
	w.write("static %s %s%s = ", typeName, name, arraySuffix)
	if global.Init != nil {
		if err := w.writeConstExpression(*global.Init); err != nil {
			w.write("(%s)0", typeName)
		}
	} else {
		w.writeZeroValue(global.Type)
	}
	w.write(";\n")
}

// writeBoundGlobal writes a register-bound global declaration.
func (w *Writer) writeBoundGlobal(handle ir.GlobalVariableHandle, global *ir.GlobalVariable, name string) error {
	target, err := w.resolveBindTarget(global)
	if err != nil {
		if global.Space == ir.SpacePushConstant && w.options.PushConstantsTarget != nil {
			target = *w.options.PushConstantsTarget
		} else {
			w.missingBindings[handle] = err
			w.log.Debug("skipping global with missing binding", "global", global.Name, "err", err)
			return nil
		}
	}

	rt := w.registerTypeForGlobal(global)
	binding := w.registerAnnotation(name, rt, target)

	switch global.Space {
	case ir.SpaceUniform, ir.SpacePushConstant:
		typeName, arraySuffix := w.getTypeNameWithArraySuffix(global.Type)
		w.writeLine("cbuffer %s: %s {", w.namer.callWithPrefix("cb_", name), binding)
		w.pushIndent()
		w.writeLine("%s %s%s;", typeName, name, arraySuffix)
		w.popIndent()
		w.writeLine("}")

	case ir.SpaceStorage:
		prefix := ""
		if global.Access.Contains(ir.StorageStore) {
			prefix = "RW"
		}
		w.writeLine("%sByteAddressBuffer %s: %s;", prefix, name, binding)

	case ir.SpaceHandle:
		w.writeHandleGlobal(global, name, binding, target)
	}
	return nil
}

// writeHandleGlobal writes a texture, sampler, acceleration structure
// or binding-array declaration.
func (w *Writer) writeHandleGlobal(global *ir.GlobalVariable, name, binding string, target BindTarget) {
	inner := w.module.Types[global.Type].Inner

	if ba, ok := inner.(ir.BindingArrayType); ok {
		baseName := w.getTypeName(ba.Base)
		switch {
		case ba.Size.Constant != nil:
			w.writeLine("%s %s[%d]: %s;", baseName, name, *ba.Size.Constant, binding)
		case target.BindingArraySize != nil:
			w.writeLine("%s %s[%d]: %s;", baseName, name, *target.BindingArraySize, binding)
		default:
			w.writeLine("%s %s[]: %s;", baseName, name, binding)
		}
		return
	}

	if sampler, ok := inner.(ir.SamplerType); ok && w.useSamplerHeap() {
		w.writeHeapSampler(global, name, sampler.Comparison)
		return
	}

	w.writeLine("%s %s: %s;", w.getTypeName(global.Type), name, binding)
}

// useSamplerHeap reports whether samplers come from the SM 6.6 dynamic
// sampler heaps instead of direct register bindings.
func (w *Writer) useSamplerHeap() bool {
	return len(w.options.SamplerBufferBindingMap) > 0
}

// writeSamplerHeaps declares the two sampler heaps and the per-group
// sampler index buffers.
func (w *Writer) writeSamplerHeaps() {
	if !w.useSamplerHeap() {
		return
	}
	w.require(ShaderModel6_6, FeatureNone)

	standard := w.options.SamplerHeapTargets.StandardSamplers
	comparison := w.options.SamplerHeapTargets.ComparisonSamplers
	w.writeLine("SamplerState %s[2048]: register(s%d, space%d);",
		SamplerHeapVar, standard.Register, standard.Space)
	w.writeLine("SamplerComparisonState %s[2048]: register(s%d, space%d);",
		ComparisonSamplerHeapVar, comparison.Register, comparison.Space)

	groups := make([]uint32, 0, len(w.options.SamplerBufferBindingMap))
	for group := range w.options.SamplerBufferBindingMap {
		groups = append(groups, group)
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a] < groups[b] })
	for _, group := range groups {
		target := w.options.SamplerBufferBindingMap[group]
		name := fmt.Sprintf("nagaGroup%dSamplerIndexArray", group)
		w.writeLine("StructuredBuffer<uint> %s: %s;",
			name, w.registerAnnotation(name, RegisterTypeT, target))
	}
	w.writeLine("")
}

// writeHeapSampler declares one sampler as an indexed load from the
// heap via its group's index buffer.
func (w *Writer) writeHeapSampler(global *ir.GlobalVariable, name string, comparison bool) {
	heap := SamplerHeapVar
	samplerType := "SamplerState"
	if comparison {
		heap = ComparisonSamplerHeapVar
		samplerType = "SamplerComparisonState"
	}
	group := uint32(0)
	index := uint32(0)
	if global.Binding != nil {
		group = global.Binding.Group
		index = global.Binding.Binding
	}
	w.writeLine("static const %s %s = %s[nagaGroup%dSamplerIndexArray[%d]];",
		samplerType, name, heap, group, index)
}

// writeDynamicOffsetsBuffers declares the per-group constant buffers
// that deliver dynamic storage-buffer offsets, and assigns each
// dynamic-offset storage global its slot expression.
func (w *Writer) writeDynamicOffsetsBuffers() {
	if len(w.options.DynamicStorageBufferOffsetsTargets) == 0 {
		return
	}

	groups := make([]uint32, 0, len(w.options.DynamicStorageBufferOffsetsTargets))
	for group := range w.options.DynamicStorageBufferOffsetsTargets {
		groups = append(groups, group)
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a] < groups[b] })

	for _, group := range groups {
		target := w.options.DynamicStorageBufferOffsetsTargets[group]
		bufName := fmt.Sprintf("%s%d", DynamicBufferOffsetsPrefix, group)
		w.writeLine("cbuffer %s: register(b%d, space%d) {", bufName, target.Register, target.Space)
		w.pushIndent()
		w.writeLine("uint %s_data[%d];", bufName, target.Size)
		w.popIndent()
		w.writeLine("}")

		// Slot order follows ascending binding number within the group.
		type slot struct {
			handle  ir.GlobalVariableHandle
			binding uint32
		}
		var slots []slot
		for handle := range w.module.GlobalVariables {
			global := &w.module.GlobalVariables[handle]
			if global.Space != ir.SpaceStorage || global.Binding == nil || global.Binding.Group != group {
				continue
			}
			slots = append(slots, slot{ir.GlobalVariableHandle(handle), global.Binding.Binding})
		}
		sort.Slice(slots, func(a, b int) bool { return slots[a].binding < slots[b].binding })
		for i, s := range slots {
			if uint32(i) >= target.Size {
				break
			}
			w.dynamicOffsetRefs[s.handle] = fmt.Sprintf("%s_data[%d]", bufName, i)
		}
	}
	w.writeLine("")
}

// globalName returns the emitted name of a global, or an error when
// the global's binding was unresolvable.
func (w *Writer) globalName(handle ir.GlobalVariableHandle) (string, error) {
	if err, missing := w.missingBindings[handle]; missing {
		return "", err
	}
	return w.names[nameKey{kind: nameKeyGlobalVariable, handle1: uint32(handle)}], nil
}
