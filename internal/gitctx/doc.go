// Package gitctx produces diffs from a local git repository so a briefing can
// be generated before a pull request exists.
//
// [BranchDiff] mirrors what a pull request from head into base shows (a
// three-dot range against the merge base). [Staged] and [Unstaged] cover the
// index and the working tree. File sections can be dropped by glob before the
// diff reaches the normalizer.
package gitctx
