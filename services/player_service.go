// services/player_service.go
package services

import (
	"github.com/wfunc/gamebot/models"
	"github.com/wfunc/gamebot/persistence"
)

type PlayerService struct {
	db persistence.Database
}

func NewPlayerService(db persistence.Database) *PlayerService {
	return &PlayerService{db: db}
}

// PlayerProfile 玩家余额和战绩
type PlayerProfile struct {
	UserID  int64               `json:"user_id"`
	Credits int64               `json:"credits"`
	Stats   *models.PlayerStats `json:"stats"`
}

// GetPlayerWithStats 获取玩家余额和统计
func (s *PlayerService) GetPlayerWithStats(userID int64) (*PlayerProfile, error) {
	credits, err := s.db.GetCredits(userID)
	if err != nil {
		return nil, err
	}

	stats, err := s.db.GetPlayerStats(userID)
	if err != nil {
		return nil, err
	}

	return &PlayerProfile{
		UserID:  userID,
		Credits: credits,
		Stats:   stats,
	}, nil
}

// Leaderboard 按赢取总额排序的排行榜
func (s *PlayerService) Leaderboard(limit int) ([]*models.LeaderboardEntry, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	return s.db.GetLeaderboard(limit)
}
