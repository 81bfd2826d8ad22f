package rpc

import (
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/gamebot/game"
	"github.com/wfunc/gamebot/jobs"
	"github.com/wfunc/gamebot/logger"
	"github.com/wfunc/gamebot/models"
	"github.com/wfunc/gamebot/persistence"
	"github.com/wfunc/gamebot/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService exposes operator methods over net/rpc. Every method
// follows the net/rpc signature: exported args, pointer reply, error
// return.
type AdminService struct {
	players *services.PlayerService
	engine  *game.Engine
	sweep   *jobs.CommissionSweep
	db      persistence.Database
}

func NewAdminService(ps *services.PlayerService, engine *game.Engine, sweep *jobs.CommissionSweep, db persistence.Database) *AdminService {
	return &AdminService{
		players: ps,
		engine:  engine,
		sweep:   sweep,
		db:      db,
	}
}

type GetPlayerArgs struct {
	UserID int64
}

type GetPlayerReply struct {
	Profile *services.PlayerProfile
}

// GetPlayerWithStats returns a player's balance and win/loss record.
func (as *AdminService) GetPlayerWithStats(args *GetPlayerArgs, reply *GetPlayerReply) error {
	profile, err := as.players.GetPlayerWithStats(args.UserID)
	if err != nil {
		return err
	}
	reply.Profile = profile
	return nil
}

type LeaderboardArgs struct {
	Limit int
}

type LeaderboardReply struct {
	Entries []*models.LeaderboardEntry
}

// GetLeaderboard returns the top winners.
func (as *AdminService) GetLeaderboard(args *LeaderboardArgs, reply *LeaderboardReply) error {
	entries, err := as.players.Leaderboard(args.Limit)
	if err != nil {
		return err
	}
	reply.Entries = entries
	return nil
}

type CreateTagArgs struct {
	MerchantID     int64
	MerchantUserID int64
	TaggedUserID   int64
	TaggedUsername string
	Amount         int64
	TTLDays        int
}

type CreateTagReply struct {
	TagID uint
}

// CreateMerchantTag grants a user merchant-tagged credits.
func (as *AdminService) CreateMerchantTag(args *CreateTagArgs, reply *CreateTagReply) error {
	ttl := args.TTLDays
	if ttl <= 0 {
		ttl = 30
	}
	now := time.Now()
	tag := &models.MerchantTag{
		MerchantID:     args.MerchantID,
		MerchantUserID: args.MerchantUserID,
		TaggedUserID:   args.TaggedUserID,
		TaggedUsername: args.TaggedUsername,
		Amount:         args.Amount,
		Remaining:      args.Amount,
		Status:         "active",
		TaggedAt:       now,
		ExpiredAt:      now.AddDate(0, 0, ttl),
	}
	if err := as.db.EnsureUser(args.TaggedUserID, args.TaggedUsername); err != nil {
		return err
	}
	if err := as.db.CreateMerchantTag(tag); err != nil {
		return err
	}
	reply.TagID = tag.ID
	return nil
}

type RoomArgs struct {
	Variant     string
	RoomID      string
	AdminUserID int64
}

type RoomReply struct {
	OK bool
}

// StopGame cancels a room's running game with refunds.
func (as *AdminService) StopGame(args *RoomArgs, reply *RoomReply) error {
	if err := as.engine.StopGame(models.Variant(args.Variant), args.RoomID, args.AdminUserID); err != nil {
		return err
	}
	reply.OK = true
	return nil
}

// ResetRoom force-clears a stuck game in a room.
func (as *AdminService) ResetRoom(args *RoomArgs, reply *RoomReply) error {
	if err := as.engine.ResetRoom(models.Variant(args.Variant), args.RoomID, args.AdminUserID); err != nil {
		return err
	}
	reply.OK = true
	return nil
}

type RoomLockArgs struct {
	RoomID      string
	AdminUserID int64
	Locked      bool
}

// SetRoomLock locks or unlocks game starts in a room.
func (as *AdminService) SetRoomLock(args *RoomLockArgs, reply *RoomReply) error {
	if err := as.engine.SetRoomLock(args.RoomID, args.AdminUserID, args.Locked); err != nil {
		return err
	}
	reply.OK = true
	return nil
}

type SweepArgs struct{}

// RunCommissionSweep triggers a commission payout pass immediately.
func (as *AdminService) RunCommissionSweep(args *SweepArgs, reply *RoomReply) error {
	as.sweep.RunOnce(time.Now())
	reply.OK = true
	return nil
}
