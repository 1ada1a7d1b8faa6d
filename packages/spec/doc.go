// Package spec describes single HTTP exchanges and executes them.
//
// A RequestSpec is an immutable value built with a Builder:
//
//	res, err := exec.Spec().
//		Post("/users").
//		WithHeader("Authorization", "Bearer ${token}").
//		WithFixture("User:admin", map[string]any{"name": "ann"}).
//		ExpectStatus(201).
//		Stores("userId", "id").
//		Execute(ctx)
//
// Executor.Execute runs one spec through these stages:
//  1. interpolate path, query, headers and body against the store
//  2. expand fixture descriptors in the body and in expected values
//  3. send through the transport
//  4. evaluate every expectation
//  5. on success, write captures to the store
//
// Resolution errors abort before the transport is called.
package spec
