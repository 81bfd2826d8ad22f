package network

const (
	MsgTypeHeartbeat = 1

	MsgTypeJoinRoom  = 101
	MsgTypeLeaveRoom = 102

	MsgTypeChat = 201

	MsgTypeGameMessage   = 301
	MsgTypeCreditsUpdate = 302
	MsgTypeError         = 303
)
