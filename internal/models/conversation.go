package models

// ConversationKey is the unordered participant pair naming a two-party
// conversation. Local is the participant on this side of the session.
type ConversationKey struct {
	Local string
	Peer  string
}

// Valid reports whether the key can back a subscription. A missing peer
// must not subscribe: a degenerate filter would match unrelated records.
func (k ConversationKey) Valid() bool {
	return k.Local != "" && k.Peer != "" && k.Local != k.Peer
}

// Matches reports whether {sender, recipient} equals the key as an
// unordered pair.
func (k ConversationKey) Matches(sender, recipient string) bool {
	return (sender == k.Local && recipient == k.Peer) ||
		(sender == k.Peer && recipient == k.Local)
}
