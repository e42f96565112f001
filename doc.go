// Package jsonrel provides:
//
// - An order-preserving tree Value for JSON documents (objects keep declaration order)
// - A normalization engine that folds a Value into flat, named Relations
// - An Accumulator that collects rows per relation and finalizes a deterministic header order
// - Streaming decoding via Source/JSONDriver with duplicate-key/depth/size enforcement
// - A stable error model via Issues (JSON Pointer, code, message)
//
// Design policy:
// - Keep only public APIs in the root package; put token plumbing under internal/.
// - Place parser drivers under source/, writers under sink/, and the CLI under cmd/jsonrel.
// - The core performs no I/O and never logs.
//
// Typical usage:
//
//	root, err := jsonrel.Decode(ctx, jsonrel.JSONBytes(data))
//	rels, err := jsonrel.Normalize(root, jsonrel.DefaultPolicy())
//
//	res, err := jsonrel.NormalizeFrom(ctx, jsonrel.JSONReader(r), policy)
//	for _, iss := range res.Issues { ... } // column collisions when OnColumnCollision is Warn
package jsonrel
