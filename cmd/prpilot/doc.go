// PR-Pilot turns a pull request diff into a reviewer briefing using a
// generative language model.
//
// The briefing has three parts: an overall summary, a file-by-file
// breakdown, and a risk assessment. It is rendered as markdown suitable for a
// single pull request comment, or as JSON.
//
// Usage:
//
//	prpilot brief --diff-file change.diff          # brief a diff file
//	git diff main... | prpilot brief --diff-file - # brief a diff from stdin
//	prpilot brief --base main                      # brief the current branch
//	prpilot brief --unstaged --context-lines 10    # brief uncommitted edits
//	prpilot brief --pr owner/repo#7 --post         # brief a PR and comment on it
//	prpilot config init                            # write a sample config
//	prpilot models list                            # list providers
//
// Exit codes: 0 success, 2 usage, 3 authentication, 4 runtime or model
// failure, 5 unusable model answer, 6 empty diff.
package main
