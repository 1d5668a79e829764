// Package session multiplexes request/reply exchanges over a single ordered,
// bidirectional connection.
//
// A Session owns one Transport for its lifetime. Outbound operations are
// serialized on a per-session executor goroutine in call order:
//   - Send is fire-and-forget
//   - SendWithReply completes a callback exactly once with the decoded reply or an error
//   - Call suspends the caller until the reply arrives or its context ends
//
// Inbound messages are handed to the current Handler as a *ReceivedMessage.
// Two-way messages are answered with ReceivedMessage.Reply; the handler's
// return value is only inspected for one-way messages, where a non-nil value
// is reported as misuse.
//
// Misuse and failures that have no caller to return to are reported to a
// Diagnostics sink instead of panicking.
package session
