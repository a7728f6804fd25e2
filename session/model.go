package session

// Session is a browser session record. A Session returned by [Store.Load]
// for an unknown or absent id has IsNew true.
type Session struct {
	ID        string
	CSRFToken string
	CreatedAt int64

	isNew bool
}

// IsNew reports whether the session was minted by this Load rather than read
// from the store. A new session cannot have a CSRF token the client knows.
func (s *Session) IsNew() bool {
	return s.isNew
}
