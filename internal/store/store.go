package store

import (
	"context"
	"errors"

	"github.com/yacciiyao/yoo-growth-buddy/internal/domain"
)

// ErrNotFound 目标记录不存在。
var ErrNotFound = errors.New("record not found")

// Store 持久层统一抽象，Postgres 实现用于线上，
// 内存实现用于测试和本地调试。
type Store interface {
	// 家长 / 儿童 / 设备
	FindParentByEmail(ctx context.Context, email string) (*domain.Parent, error)
	CreateParent(ctx context.Context, p *domain.Parent) error
	CreateChild(ctx context.Context, c *domain.Child) error
	FindChildByID(ctx context.Context, id int64) (*domain.Child, error)
	UpdateChild(ctx context.Context, c *domain.Child) error
	FindDeviceBySN(ctx context.Context, sn string) (*domain.Device, error)
	FindDeviceByChildID(ctx context.Context, childID int64) (*domain.Device, error)
	UpsertDevice(ctx context.Context, d *domain.Device) error
	TouchDeviceLastSeen(ctx context.Context, deviceSN string, at int64) error

	// 会话 / 轮次
	CreateSession(ctx context.Context, s *domain.ChatSession) error
	GetSession(ctx context.Context, id int64) (*domain.ChatSession, error)
	ListSessionsByChild(ctx context.Context, childID int64) ([]domain.ChatSession, error)
	EndSession(ctx context.Context, sessionID int64, title string, endedAt int64) error
	NextTurnSeq(ctx context.Context, sessionID int64) (int, error)
	SaveTurn(ctx context.Context, t *domain.Turn) error
	ListTurns(ctx context.Context, sessionID int64) ([]domain.Turn, error)
	CountTurns(ctx context.Context, sessionID int64) (int, error)
	SessionHasRisk(ctx context.Context, sessionID int64) (bool, error)

	Close()
}
