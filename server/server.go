package server

import (
	"net/http"
	"net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wfunc/gamebot/broadcast"
	"github.com/wfunc/gamebot/config"
	"github.com/wfunc/gamebot/game"
	"github.com/wfunc/gamebot/jobs"
	"github.com/wfunc/gamebot/logger"
	"github.com/wfunc/gamebot/network"
	"github.com/wfunc/gamebot/persistence"
	"github.com/wfunc/gamebot/room"
	"github.com/wfunc/gamebot/services"
	gamebot_rpc "github.com/wfunc/gamebot/rpc"
)

// JoinRoomReq 进房请求，带上聊天平台的用户身份
type JoinRoomReq struct {
	RoomID   string `json:"room_id"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// ChatReq 房间聊天，以 ! 开头的文本按机器人指令处理
type ChatReq struct {
	Text string `json:"text"`
}

type GameServer struct {
	addr        string
	upgrader    websocket.Upgrader
	rooms       *room.Manager
	broadcaster *broadcast.RoomBroadcaster
	engine      *game.Engine
	players     *services.PlayerService
	minEntry    int64
	rpcServer   *gamebot_rpc.Server
	shutdown    chan struct{}
}

func NewGameServer(cfg *config.Config, db persistence.Database, engine *game.Engine,
	rooms *room.Manager, broadcaster *broadcast.RoomBroadcaster, sweep *jobs.CommissionSweep) *GameServer {
	s := &GameServer{
		addr:        cfg.Server.HTTPAddress,
		rooms:       rooms,
		broadcaster: broadcaster,
		engine:      engine,
		players:     services.NewPlayerService(db),
		minEntry:    cfg.Game.MinEntry,
		shutdown:    make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	// 初始化RPC服务器
	rpcServer, err := gamebot_rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	// 注册RPC服务
	adminService := gamebot_rpc.NewAdminService(s.players, engine, sweep, db)
	rpc.Register(adminService)

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()

	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Game server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdown)
	s.rpcServer.Stop()
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	client := room.NewClient(uuid.New().String(), wsConn)
	s.rooms.Register(client)

	logger.Log.Infof("New connection from %s, client ID: %s", wsConn.RemoteAddr(), client.ID)

	defer func() {
		logger.Log.Infof("Connection closed from %s, client ID: %s", wsConn.RemoteAddr(), client.ID)
		s.rooms.Unregister(client.ID)
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdown:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(client, packet)
		}
	}
}

func (s *GameServer) handlePacket(client *room.Client, packet *network.Packet) {
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		client.LastActive = time.Now()
	case network.MsgTypeJoinRoom:
		s.handleJoinRoom(client, packet)
	case network.MsgTypeLeaveRoom:
		s.rooms.Leave(client)
	case network.MsgTypeChat:
		s.handleChat(client, packet)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

func (s *GameServer) handleJoinRoom(client *room.Client, packet *network.Packet) {
	var req JoinRoomReq
	if err := packet.Decode(&req); err != nil {
		logger.Log.Warnf("Bad join payload from client %s: %v", client.ID, err)
		return
	}
	if req.RoomID == "" || req.UserID == 0 {
		s.replyError(client, "room_id and user_id are required")
		return
	}

	client.Bind(req.UserID, req.Username)
	s.rooms.Join(client, req.RoomID)
	logger.Log.Infof("User %d (%s) joined room %s", req.UserID, req.Username, req.RoomID)

	client.SendJSON(network.MsgTypeJoinRoom, map[string]string{"room_id": req.RoomID})
}

func (s *GameServer) handleChat(client *room.Client, packet *network.Packet) {
	if client.RoomID == "" {
		s.replyError(client, "join a room first")
		return
	}

	var req ChatReq
	if err := packet.Decode(&req); err != nil {
		return
	}

	if handled := s.dispatchCommand(client, req.Text); handled {
		return
	}

	_, username := client.Identity()
	s.broadcaster.ChatMessage(client.RoomID, username, req.Text)
}

// replyError 只回给发送者，不进房间
func (s *GameServer) replyError(client *room.Client, text string) {
	client.SendJSON(network.MsgTypeError, map[string]string{"text": text})
}
