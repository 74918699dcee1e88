// Package review runs the briefing pipeline for one diff.
//
// A diff that fits the chunk budget is briefed with a single request. A
// larger diff is split by [diff.Normalize]; every chunk is briefed
// concurrently with bounded parallelism, the partial briefings are merged in
// chunk order, and a final summary pass (or a local join, see [MergeLocal])
// produces one overall summary and one risk assessment.
//
// Each answer is validated against the briefing schema. A rejected answer
// gets exactly one repair request; a second rejection fails the run with
// [UnrecoverableSchemaError]. Nothing is fabricated to fill a gap.
package review
