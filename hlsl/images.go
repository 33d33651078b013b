// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"fmt"
	"strings"

	"github.com/gogpu/hlslgen/ir"
)

// imageOf returns the image type of an image-valued expression.
func (w *Writer) imageOf(handle ir.ExpressionHandle) (ir.ImageType, error) {
	inner := w.fc.info.ResolvedType(handle).Inner(w.module)
	if ba, ok := inner.(ir.BindingArrayType); ok {
		inner = w.module.Types[ba.Base].Inner
	}
	img, ok := inner.(ir.ImageType)
	if !ok {
		return ir.ImageType{}, NewError(ErrInvalidModule,
			fmt.Sprintf("expected image type, got %T", inner))
	}
	return img, nil
}

// dimCoordComponents returns the number of coordinate components for
// an image dimension.
func dimCoordComponents(dim ir.ImageDimension) int {
	switch dim {
	case ir.Dim1D:
		return 1
	case ir.Dim2D:
		return 2
	default:
		return 3
	}
}

// writeImageSample writes a texture sampling expression.
//
//nolint:gocyclo // Method and argument shape vary per sampling mode
func (w *Writer) writeImageSample(kind ir.ExprImageSample) error {
	img, err := w.imageOf(kind.Image)
	if err != nil {
		return err
	}

	imageStr, err := w.expressionToString(kind.Image)
	if err != nil {
		return err
	}
	samplerStr, err := w.expressionToString(kind.Sampler)
	if err != nil {
		return err
	}
	coordStr, err := w.expressionToString(kind.Coordinate)
	if err != nil {
		return err
	}

	if kind.ClampToEdge {
		coordStr = fmt.Sprintf("saturate(%s)", coordStr)
	}
	if kind.ArrayIndex != nil {
		idxStr, idxErr := w.expressionToString(*kind.ArrayIndex)
		if idxErr != nil {
			return idxErr
		}
		n := dimCoordComponents(img.Dim) + 1
		coordStr = fmt.Sprintf("float%d(%s, float(%s))", n, coordStr, idxStr)
	}

	var method string
	args := []string{samplerStr, coordStr}

	switch {
	case kind.Gather != nil:
		if kind.DepthRef != nil {
			refStr, refErr := w.expressionToString(*kind.DepthRef)
			if refErr != nil {
				return refErr
			}
			method = "GatherCmp"
			args = append(args, refStr)
		} else {
			method = "Gather" + gatherComponentName(*kind.Gather)
		}

	case kind.DepthRef != nil:
		refStr, refErr := w.expressionToString(*kind.DepthRef)
		if refErr != nil {
			return refErr
		}
		if _, zero := kind.Level.(ir.SampleLevelZero); zero {
			method = "SampleCmpLevelZero"
		} else {
			method = "SampleCmp"
		}
		args = append(args, refStr)

	default:
		switch level := kind.Level.(type) {
		case ir.SampleLevelAuto:
			method = "Sample"
		case ir.SampleLevelZero:
			method = "SampleLevel"
			args = append(args, "0.0")
		case ir.SampleLevelExact:
			levelStr, levelErr := w.expressionToString(level.Level)
			if levelErr != nil {
				return levelErr
			}
			method = "SampleLevel"
			args = append(args, levelStr)
		case ir.SampleLevelBias:
			biasStr, biasErr := w.expressionToString(level.Bias)
			if biasErr != nil {
				return biasErr
			}
			method = "SampleBias"
			args = append(args, biasStr)
		case ir.SampleLevelGradient:
			xStr, xErr := w.expressionToString(level.X)
			if xErr != nil {
				return xErr
			}
			yStr, yErr := w.expressionToString(level.Y)
			if yErr != nil {
				return yErr
			}
			method = "SampleGrad"
			args = append(args, xStr, yStr)
		default:
			method = "Sample"
		}
	}

	if kind.Offset != nil {
		offsetStr, offsetErr := w.expressionToString(*kind.Offset)
		if offsetErr != nil {
			return offsetErr
		}
		args = append(args, offsetStr)
	}

	w.write("%s.%s(%s)", imageStr, method, strings.Join(args, ", "))
	return nil
}

func gatherComponentName(c ir.SwizzleComponent) string {
	switch c {
	case ir.SwizzleX:
		return "Red"
	case ir.SwizzleY:
		return "Green"
	case ir.SwizzleZ:
		return "Blue"
	default:
		return "Alpha"
	}
}

// writeImageLoad writes a texel fetch. Storage images use subscript
// syntax; sampled images use Load with the mip level folded into the
// coordinate vector.
func (w *Writer) writeImageLoad(kind ir.ExprImageLoad) error {
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

	components := dimCoordComponents(img.Dim)
	if kind.ArrayIndex != nil {
		idxStr, idxErr := w.expressionToString(*kind.ArrayIndex)
		if idxErr != nil {
			return idxErr
		}
		components++
		coordStr = fmt.Sprintf("int%d(%s, %s)", components, coordStr, idxStr)
	}

	if img.Class == ir.ImageClassStorage {
		w.write("%s[%s]", imageStr, coordStr)
		return nil
	}

	if img.Multisampled {
		sampleStr := "0"
		if kind.Sample != nil {
			sampleStr, err = w.expressionToString(*kind.Sample)
			if err != nil {
				return err
			}
		}
		w.write("%s.Load(%s, %s)", imageStr, coordStr, sampleStr)
		return nil
	}

	levelStr := "0"
	if kind.Level != nil {
		levelStr, err = w.expressionToString(*kind.Level)
		if err != nil {
			return err
		}
	}
	w.write("%s.Load(int%d(%s, %s))", imageStr, components+1, coordStr, levelStr)
	return nil
}

// writeImageQuery writes an image metadata query as a call to a
// generated helper, since GetDimensions only returns through out
// parameters.
func (w *Writer) writeImageQuery(kind ir.ExprImageQuery) error {
	img, err := w.imageOf(kind.Image)
	if err != nil {
		return err
	}

	helper := imageQueryHelperName(img, kind.Query)
	imageStr, err := w.expressionToString(kind.Image)
	if err != nil {
		return err
	}

	if size, ok := kind.Query.(ir.ImageQuerySize); ok && size.Level != nil {
		levelStr, levelErr := w.expressionToString(*size.Level)
		if levelErr != nil {
			return levelErr
		}
		w.write("%s(%s, %s)", helper, imageStr, levelStr)
		return nil
	}
	w.write("%s(%s)", helper, imageStr)
	return nil
}

// imageQueryHelperName builds the deterministic name of the helper a
// query compiles to. The image shape is part of the name because the
// helper's parameter type differs per shape.
func imageQueryHelperName(img ir.ImageType, query ir.ImageQuery) string {
	var kind string
	switch q := query.(type) {
	case ir.ImageQuerySize:
		kind = "Dimensions"
		if q.Level != nil {
			kind = "MipDimensions"
		}
	case ir.ImageQueryNumLevels:
		kind = "NumLevels"
	case ir.ImageQueryNumLayers:
		kind = "NumLayers"
	case ir.ImageQueryNumSamples:
		kind = "NumSamples"
	}
	return "Naga" + kind + imageShapeSuffix(img)
}

// imageShapeSuffix renders the shape-distinguishing part of helper and
// wrapper names for an image type.
func imageShapeSuffix(img ir.ImageType) string {
	var b strings.Builder
	switch img.Class {
	case ir.ImageClassDepth:
		b.WriteString("Depth")
	case ir.ImageClassStorage:
		if img.Access.Contains(ir.StorageStore) {
			b.WriteString("RW")
		}
	}
	switch img.Dim {
	case ir.Dim1D:
		b.WriteString("1D")
	case ir.Dim2D:
		b.WriteString("2D")
	case ir.Dim3D:
		b.WriteString("3D")
	case ir.DimCube:
		b.WriteString("Cube")
	}
	if img.Multisampled {
		b.WriteString("MS")
	}
	if img.Arrayed && img.Dim != ir.Dim3D {
		b.WriteString("Array")
	}
	return b.String()
}
