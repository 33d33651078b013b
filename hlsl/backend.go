// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"fmt"
	"sort"

	"github.com/gogpu/hlslgen/ir"
)

// Options configures HLSL code generation.
type Options struct {
	// ShaderModel specifies the target shader model.
	// Defaults to ShaderModel5_1 for maximum compatibility.
	ShaderModel ShaderModel

	// BindingMap maps source resource bindings to HLSL register targets.
	// If a binding is not found in the map and FakeMissingBindings is false,
	// the affected entry point fails with ErrMissingBinding.
	BindingMap map[ResourceBinding]BindTarget

	// PushConstantsTarget is the register target for the push-constant
	// block, when the module declares one.
	PushConstantsTarget *BindTarget

	// SpecialConstantsBinding, when set, emits a constant buffer holding
	// first-vertex / first-instance offsets and the workgroup-count
	// fallback, and redirects reads of the corresponding builtins
	// through it.
	SpecialConstantsBinding *BindTarget

	// SamplerHeapTargets specifies binding targets for the sampler heaps
	// and the per-group sampler index buffers.
	SamplerHeapTargets SamplerHeapBindTargets

	// SamplerBufferBindingMap maps bind groups to the register targets of
	// their sampler index buffers.
	SamplerBufferBindingMap map[uint32]BindTarget

	// DynamicStorageBufferOffsetsTargets maps bind groups to the register
	// targets of their dynamic-offset constant buffers.
	DynamicStorageBufferOffsetsTargets map[uint32]OffsetsBindTarget

	// FakeMissingBindings generates automatic bindings for resources
	// not found in BindingMap. Useful for testing or simple shaders.
	FakeMissingBindings bool

	// ZeroInitializeWorkgroupMemory emits code to zero-initialize
	// groupshared variables at the start of compute shaders.
	// Required for portability as HLSL doesn't guarantee zero initialization.
	ZeroInitializeWorkgroupMemory bool

	// RestrictIndexing clamps dynamic indices into known-length
	// composites instead of letting them read out of bounds.
	RestrictIndexing bool

	// ForceLoopBounding wraps every loop in a finite iteration budget so
	// that structurally infinite loops cannot hang the GPU.
	ForceLoopBounding bool
}

// OffsetsBindTarget locates a dynamic-offsets constant buffer: the
// register it binds to and how many offsets it carries.
type OffsetsBindTarget struct {
	Space    uint8
	Register uint32
	Size     uint32
}

// DefaultOptions returns sensible default options for HLSL generation.
// Uses Shader Model 5.1 with safe defaults enabled.
func DefaultOptions() *Options {
	return &Options{
		ShaderModel:                   ShaderModel5_1,
		BindingMap:                    make(map[ResourceBinding]BindTarget),
		FakeMissingBindings:           true,
		ZeroInitializeWorkgroupMemory: true,
		RestrictIndexing:              true,
		ForceLoopBounding:             true,
	}
}

// FragmentEntryPoint describes the input interface of a fragment entry
// point. Passing one to Compile lets vertex entry points drop outputs
// the fragment stage never reads.
type FragmentEntryPoint struct {
	inputLocations []uint32
}

// NewFragmentEntryPoint collects the location bindings consumed by the
// named fragment entry point.
func NewFragmentEntryPoint(module *ir.Module, name string) (*FragmentEntryPoint, error) {
	for i := range module.EntryPoints {
		ep := &module.EntryPoints[i]
		if ep.Stage != ir.StageFragment || ep.Name != name {
			continue
		}
		fn := &module.Functions[ep.Function]
		var locations []uint32
		for _, arg := range fn.Arguments {
			collectInputLocations(module, arg.Type, arg.Binding, &locations)
		}
		sort.Slice(locations, func(a, b int) bool { return locations[a] < locations[b] })
		return &FragmentEntryPoint{inputLocations: locations}, nil
	}
	return nil, NewError(ErrEntryPointNotFound, fmt.Sprintf("fragment entry point %q not found", name))
}

func collectInputLocations(module *ir.Module, typ ir.TypeHandle, binding *ir.Binding, out *[]uint32) {
	if binding != nil {
		if loc, ok := (*binding).(ir.LocationBinding); ok {
			*out = append(*out, loc.Location)
		}
		return
	}
	if st, ok := module.Types[typ].Inner.(ir.StructType); ok {
		for _, member := range st.Members {
			collectInputLocations(module, member.Type, member.Binding, out)
		}
	}
}

// consumesLocation reports whether the fragment stage reads the given
// vertex output location.
func (f *FragmentEntryPoint) consumesLocation(location uint32) bool {
	i := sort.Search(len(f.inputLocations), func(i int) bool {
		return f.inputLocations[i] >= location
	})
	return i < len(f.inputLocations) && f.inputLocations[i] == location
}

// FeatureFlags indicates which HLSL features are used by the generated code.
type FeatureFlags uint32

const (
	// FeatureNone indicates no special features are used.
	FeatureNone FeatureFlags = 0

	// FeatureWaveOps indicates wave intrinsics are used (SM 6.0+).
	FeatureWaveOps FeatureFlags = 1 << iota

	// FeatureRayTracing indicates DXR features are used (SM 6.3+).
	FeatureRayTracing

	// Feature64BitIntegers indicates 64-bit integer types are used.
	Feature64BitIntegers

	// Feature64BitAtomics indicates 64-bit atomic operations are used (SM 6.6+).
	Feature64BitAtomics

	// FeatureFloat16 indicates native float16 types are used (SM 6.2+).
	FeatureFloat16
)

// Has returns true if the flags contain the specified feature.
func (f FeatureFlags) Has(feature FeatureFlags) bool {
	return f&feature != 0
}

// String returns a human-readable list of enabled features.
func (f FeatureFlags) String() string {
	if f == FeatureNone {
		return "none"
	}

	var features []string
	if f.Has(FeatureWaveOps) {
		features = append(features, "WaveOps")
	}
	if f.Has(FeatureRayTracing) {
		features = append(features, "RayTracing")
	}
	if f.Has(Feature64BitIntegers) {
		features = append(features, "64BitIntegers")
	}
	if f.Has(Feature64BitAtomics) {
		features = append(features, "64BitAtomics")
	}
	if f.Has(FeatureFloat16) {
		features = append(features, "Float16")
	}

	if len(features) == 0 {
		return "none"
	}

	result := features[0]
	for i := 1; i < len(features); i++ {
		result += ", " + features[i]
	}
	return result
}

// EntryPointReflection records the translation outcome of one entry
// point. Err is nil when the entry point was emitted; a non-nil Err
// (typically a missing binding) means the entry point was skipped while
// the rest of the module still compiled.
type EntryPointReflection struct {
	Name string
	Err  error
}

// ReflectionInfo contains metadata about the HLSL translation.
type ReflectionInfo struct {
	// EntryPoints records the per-entry-point outcome, one entry per
	// module entry point in module order.
	EntryPoints []EntryPointReflection

	// EntryPointNames maps original entry point names to generated HLSL names.
	EntryPointNames map[string]string

	// UsedFeatures indicates which shader features are used.
	UsedFeatures FeatureFlags

	// RequiredShaderModel is the minimum shader model needed for this shader.
	// May be higher than the requested model if features require it.
	RequiredShaderModel ShaderModel

	// RegisterBindings maps resource names to their HLSL register bindings.
	// Format: "resourceName" -> "register(t0, space0)"
	RegisterBindings map[string]string

	// HelperFunctions lists any helper functions that were generated.
	HelperFunctions []string
}

// Compile generates HLSL source code from an IR module.
// Returns the HLSL source, reflection info, or an error.
//
// fragmentEP may be nil; when set it trims vertex outputs to the
// locations that fragment stage consumes.
func Compile(module *ir.Module, options *Options, fragmentEP *FragmentEntryPoint) (string, *ReflectionInfo, error) {
	if module == nil {
		return "", nil, NewError(ErrInternalError, "module is nil")
	}

	if options == nil {
		options = DefaultOptions()
	}

	w := newWriter(module, options, fragmentEP)

	reflection, err := w.writeModule()
	if err != nil {
		return "", nil, fmt.Errorf("hlsl: %w", err)
	}

	return w.String(), reflection, nil
}
