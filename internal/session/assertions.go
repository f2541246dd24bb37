package session

var (
	_ Cache = (*Memory)(nil)
	_ Cache = (*Redis)(nil)
)
