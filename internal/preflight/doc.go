// Package preflight provides readiness checks for the external tools and
// filesystem paths the pipeline depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and refuses to serve when a required
//     check fails, so jobs never claim work a broken host cannot finish.
//   - The CLI "demostudio status" command uses individual check functions to
//     display host health.
package preflight
