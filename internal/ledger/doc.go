// Package ledger records run history in SQLite.
//
// Each engine run inserts a row when it starts and updates it when it
// finishes, along with one row per degraded chunk. The ledger is an operator
// aid for `dubline runs`; the checkpoint stays authoritative for resume.
package ledger
