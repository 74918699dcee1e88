// Package briefing defines the structured briefing a model must produce for a
// pull request, and turns raw model answers into validated values.
//
// The schema is carried as typed data: [ChangeKind] and [RiskLevel] are
// closed string enums, and [SchemaText] is the literal schema embedded in
// every prompt. [Decode] strips transport noise from an answer with [Clean],
// parses the first JSON object it finds (falling back to a local syntactic
// repair), then checks field presence, primitive types and enum membership.
// Failures are reported as [*MalformedResponseError] or
// [*SchemaViolationError], the latter naming the offending field path.
// Unknown fields are ignored.
package briefing
