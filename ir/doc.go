// Package ir defines the shader intermediate representation consumed
// by the HLSL backend.
//
// The IR is a platform-neutral module graph: arenas of types,
// constants, module-scope expressions, global variables, functions and
// entry points, each entry addressed by a dense-index handle. Handles
// are plain indices into their arena; an expression arena forms a DAG
// in which the same handle may be referenced any number of times.
//
// Modules handed to the backend are assumed to be fully validated; the
// backend borrows them read-only and never re-validates. The package
// therefore defines only the data model and the read-only analyses the
// backend consumes:
//
//   - ResolveExpressionType resolves a single expression to a
//     TypeResolution. Variable references resolve to pointer types so
//     callers can inspect address spaces.
//   - ComputeFunctionInfo walks a function once and produces a
//     FunctionInfo: per-expression resolved types, reference counts,
//     and per-global usage, which drives emission decisions downstream.
package ir
