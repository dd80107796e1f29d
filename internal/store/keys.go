package store

import "strings"

// Keys derives the deterministic keyspace described by the claim
// subsystem's design: a project/queue pair owns a claims set and a
// claimed counter, each claim owns a message list and a hash record,
// and each queue owns an ordered message list plus a posting sequence.
//
// Field names on the claim hash (t, e, id) are kept short for
// wire-compatibility with the layout the subsystem was ported from.
type Keys struct{}

const sep = "."

func scope(parts ...string) string {
	return strings.Join(parts, sep)
}

// ClaimsSet is the set of live claim IDs for a queue.
func (Keys) ClaimsSet(project, queue string) string {
	return scope(project, queue, "claims")
}

// ClaimedCounter is the contention witness watched by Create and the
// counter consulted by queue stats.
func (Keys) ClaimedCounter(project, queue string) string {
	return scope(project, queue, "claimed")
}

// Claim is the hash record for a single claim: fields id, t (ttl), e (expires).
func (Keys) Claim(claimID string) string {
	return claimID
}

// ClaimMessages is the ordered list of message IDs belonging to a claim.
func (Keys) ClaimMessages(claimID string) string {
	return scope(claimID, "messages")
}

// Message is the hash record for a single message.
func (Keys) Message(messageID string) string {
	return scope("msg", messageID)
}

// QueueMessages is the ordered list of message IDs posted to a queue,
// in insertion order; it is the source of the stable order the message
// view iterates over.
func (Keys) QueueMessages(project, queue string) string {
	return scope(project, queue, "messages")
}

// QueueSeq names a per-queue posting-sequence counter. Nothing reads or
// writes it: message IDs are UUIDs (ids.NewMessageID) and posting order
// comes from the QueueMessages list.
func (Keys) QueueSeq(project, queue string) string {
	return scope(project, queue, "seq")
}
