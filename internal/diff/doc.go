// Package diff validates raw unified diffs and slices them into chunks that
// fit a model's input budget.
//
// [Normalize] is the entry point. It rejects empty input with
// [*EmptyDiffError], flags diffs without hunks or content lines as
// metadata-only, parses each file section (path, rename source, change kind,
// hunk count) and, when the diff exceeds the budget, packs file sections into
// chunks, splitting an oversized file at its hunk headers. Chunk boundaries
// always fall at the start of a line, and the chunk texts concatenate back to
// the original diff byte for byte.
package diff
