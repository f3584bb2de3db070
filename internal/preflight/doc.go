// Package preflight provides readiness checks for the directories, the sheets
// store and the credentials wbwatch depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup. Any failed check that is not
//     advisory stops the process before the first poll cycle.
//   - The CLI "wbwatch status" command prints every result.
package preflight
