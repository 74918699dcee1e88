// Package prompt builds the model requests for a briefing run: the full
// briefing of a small diff, the partial briefing of one chunk, the summary
// pass that joins chunks, and the repair follow-up for a rejected answer.
package prompt
