// Package env loads the outside values a suite run starts from.
//
// It provides functionality for:
//   - Loading dotenv files for ${$NAME} lookups
//   - Seeding store variables from HITCHAIN_VAR_* process variables
//   - Merging variable layers in precedence order
package env
