// Package errlog provides best-effort, deduplicating error capture.
//
// Every component of the membership service reports operational failures
// here. Reporting never fails the caller: a broken store degrades to a line
// on the process's own diagnostic stream. Identical errors (same function
// name and message) occurring within the dedupe window are coalesced into a
// single entry with an occurrence counter, keeping noisy failure loops from
// flooding the log collection.
package errlog
