// Package store holds the values captured from responses during one suite run.
//
// A Store is created explicitly for every suite and handed to the executor and
// to every chain of that suite. Values live until the suite run ends; later
// writes overwrite earlier ones. Reading a key that was never written fails
// with an UnknownVariableError.
package store
