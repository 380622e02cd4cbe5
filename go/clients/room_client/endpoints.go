package room_client

const (
	// REST endpoints
	RoomsEndpoint = "/room"
	RoomEndpoint  = "/room/%s"

	// WebSocket endpoint, username goes in the query string
	SocketEndpoint = "/ws/%s"
	UsernameParam  = "username"

	ContentTypeHeader = "Content-Type"
	ContentTypeJSON   = "application/json"
)
