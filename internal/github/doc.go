// Package github is the pull request source and comment sink. It fetches a
// pull request's unified diff and posts the rendered briefing back as an
// issue comment, using go-github over a token-authenticated transport.
//
// Reads are retried on 5xx and 429 answers. Comment writes are sent once,
// and a comment that already carries the briefing marker is edited instead
// of a new one being added.
package github
