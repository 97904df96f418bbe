// Package preflight provides readiness checks for the collaborators and
// filesystem paths a dubbing run depends on.
//
// These checks run in two contexts:
//   - "dubline check" calls RunAll and CheckSystemDeps and prints every result.
//   - "dubline run" calls RunAll before touching the work directory. A failed
//     check aborts the run before any provider quota is spent.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight
