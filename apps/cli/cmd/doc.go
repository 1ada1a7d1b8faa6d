// Package cmd implements the hitchain CLI commands using Cobra.
//
// Available commands:
//   - run: Execute suite files against a target API
//   - validate: Check suite files without executing them
//   - list: Display the setup specs, chains and specs defined in files
//   - mock: Serve the built-in stateful demo API
//   - version: Show hitchain version information
package cmd
