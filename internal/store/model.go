package store

import "strconv"

// Message is the storage-shaped record for a queue message. Only the
// claim-relevant fields are modeled; body is kept opaque.
type Message struct {
	ID           string
	Body         string
	TTL          int64
	Expires      int64
	ClaimID      string
	ClaimExpires int64
	PostedAt     int64
}

// Active reports whether the message is visible to a new claim at now:
// its TTL has not elapsed, and it is either unclaimed or its current
// claim has lapsed.
func (m Message) Active(now int64) bool {
	if now >= m.Expires {
		return false
	}
	return m.ClaimID == "" || now >= m.ClaimExpires
}

// ToFields renders the message as a Redis hash.
func (m Message) ToFields() map[string]string {
	return map[string]string{
		"id":            m.ID,
		"body":          m.Body,
		"ttl":           strconv.FormatInt(m.TTL, 10),
		"expires":       strconv.FormatInt(m.Expires, 10),
		"claim_id":      m.ClaimID,
		"claim_expires": strconv.FormatInt(m.ClaimExpires, 10),
		"posted_at":     strconv.FormatInt(m.PostedAt, 10),
	}
}

// MessageFromFields parses a message previously written by ToFields.
// It returns ok=false for an empty/missing hash, which callers use to
// detect messages independently deleted out from under them.
func MessageFromFields(fields map[string]string) (m Message, ok bool) {
	if len(fields) == 0 {
		return Message{}, false
	}
	m.ID = fields["id"]
	m.Body = fields["body"]
	m.TTL = parseInt(fields["ttl"])
	m.Expires = parseInt(fields["expires"])
	m.ClaimID = fields["claim_id"]
	m.ClaimExpires = parseInt(fields["claim_expires"])
	m.PostedAt = parseInt(fields["posted_at"])
	return m, true
}

// Claim is the storage-shaped claim record. Field names on the wire
// (id, t, e) mirror the hash layout in the keyspace table.
type Claim struct {
	ID      string
	TTL     int64
	Expires int64
}

// ToFields renders the claim as a Redis hash using the short field
// names (t, e) the keyspace preserves for backward reading.
func (c Claim) ToFields() map[string]string {
	return map[string]string{
		"id": c.ID,
		"t":  strconv.FormatInt(c.TTL, 10),
		"e":  strconv.FormatInt(c.Expires, 10),
	}
}

// ClaimFromFields parses a claim record; ok is false when the hash is
// empty, meaning the claim was never created or has been deleted.
func ClaimFromFields(fields map[string]string) (c Claim, ok bool) {
	if len(fields) == 0 {
		return Claim{}, false
	}
	c.ID = fields["id"]
	c.TTL = parseInt(fields["t"])
	c.Expires = parseInt(fields["e"])
	return c, true
}

func parseInt(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
