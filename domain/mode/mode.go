package mode

type Mode int

const (
	Unknown Mode = iota
	// Client mode used to start client
	Client
	// Server mode used to start server
	Server
)
