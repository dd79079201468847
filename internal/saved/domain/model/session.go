package model

// Session is the explicit session token threaded through every store and
// serializer call. The serializer compares session account ids rather than
// reading ambient global state, which removes cross-account write races by
// construction.
type Session struct {
	AccountID string
	Token     string
}

// Valid reports whether the session identifies an account.
func (s Session) Valid() bool {
	return s.AccountID != ""
}

// SameAccount reports whether two sessions belong to the same account.
func (s Session) SameAccount(other Session) bool {
	return s.AccountID == other.AccountID
}
