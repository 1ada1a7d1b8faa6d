// Package interpolate substitutes stored values into placeholder strings.
//
// Placeholders:
//   - ${key}          value stored under key
//   - $S{key}         same as ${key}
//   - ${$NAME}        process environment variable NAME
//   - ${fn(a, b)}     builtin function call
//   - ${key|filter}   filters: urlencode, pathescape, json
//
// A placeholder may appear anywhere inside a string. \${ produces a literal
// "${". Strings are parsed once into a token sequence and the sequence is
// evaluated against the store on every execution.
package interpolate
