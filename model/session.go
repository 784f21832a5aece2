package model

// Session is the per-request view of the session cookie.
// A zero Session is an anonymous visitor.
type Session struct {
	UserID   uint
	Username string
	Token    string
}

// Authenticated reports whether the request belongs to a logged in user
func (s Session) Authenticated() bool {
	return s.UserID != 0 && s.Username != "" && s.Token != ""
}
