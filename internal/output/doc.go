// Package output renders validated briefings.
//
// Two formats are supported:
//   - markdown: the PR comment body (default)
//   - json: the briefing itself, for other tools
//
// Use [GetWriter] to obtain a [Writer] for a given format string. [FitComment]
// keeps a rendered body under the comment size ceiling of the hosting service.
package output
