// Package builtin provides the functions callable from placeholders.
//
// Available functions:
//   - uuid(): random UUID v4
//   - now(): current UTC time, RFC 3339
//   - timestamp(), timestampMs(): Unix time in seconds / milliseconds
//   - date(layout): current UTC date, Go layout (default 2006-01-02)
//   - random(min, max): random integer in range
//   - randomString(length): random alphanumeric string
//   - randomEmail(): random address
//   - base64(value), urlEncode(value), sha256(value)
//
// Functions are invoked as ${uuid()} or ${randomString(12)}.
package builtin
