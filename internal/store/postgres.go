package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/yacciiyao/yoo-growth-buddy/internal/domain"
	"github.com/yacciiyao/yoo-growth-buddy/internal/observability"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore 基于 pgx 连接池的持久层实现。
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore 建立连接池并跑完迁移。
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrate(databaseURL); err != nil {
		pool.Close()
		return nil, err
	}

	log := observability.ComponentLogger("store")
	log.Info().Msg("数据库连接与迁移完成")
	return &PostgresStore{pool: pool}, nil
}

func migrate(databaseURL string) error {
	cfg, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse database url: %w", err)
	}
	db := stdlib.OpenDB(*cfg)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func now() int64 { return time.Now().Unix() }

func (s *PostgresStore) FindParentByEmail(ctx context.Context, email string) (*domain.Parent, error) {
	var p domain.Parent
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, created_at, updated_at FROM parents WHERE email = $1`,
		email,
	).Scan(&p.ID, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) CreateParent(ctx context.Context, p *domain.Parent) error {
	p.CreatedAt = now()
	return s.pool.QueryRow(ctx,
		`INSERT INTO parents (email, created_at) VALUES ($1, $2) RETURNING id`,
		p.Email, p.CreatedAt,
	).Scan(&p.ID)
}

func (s *PostgresStore) CreateChild(ctx context.Context, c *domain.Child) error {
	c.CreatedAt = now()
	return s.pool.QueryRow(ctx,
		`INSERT INTO children (parent_id, name, age, gender, interests, forbidden_topics, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		c.ParentID, c.Name, c.Age, c.Gender, c.Interests, c.ForbiddenTopics, c.CreatedAt,
	).Scan(&c.ID)
}

func (s *PostgresStore) FindChildByID(ctx context.Context, id int64) (*domain.Child, error) {
	var c domain.Child
	err := s.pool.QueryRow(ctx,
		`SELECT id, parent_id, name, age, gender, interests, forbidden_topics, created_at, updated_at
		 FROM children WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.ParentID, &c.Name, &c.Age, &c.Gender, &c.Interests, &c.ForbiddenTopics, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) UpdateChild(ctx context.Context, c *domain.Child) error {
	c.UpdatedAt = now()
	tag, err := s.pool.Exec(ctx,
		`UPDATE children SET name = $1, age = $2, gender = $3, interests = $4, forbidden_topics = $5, updated_at = $6
		 WHERE id = $7`,
		c.Name, c.Age, c.Gender, c.Interests, c.ForbiddenTopics, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindDeviceBySN(ctx context.Context, sn string) (*domain.Device, error) {
	return s.findDevice(ctx, `device_sn = $1`, sn)
}

func (s *PostgresStore) FindDeviceByChildID(ctx context.Context, childID int64) (*domain.Device, error) {
	return s.findDevice(ctx, `bound_child_id = $1`, childID)
}

func (s *PostgresStore) findDevice(ctx context.Context, where string, arg any) (*domain.Device, error) {
	var d domain.Device
	err := s.pool.QueryRow(ctx,
		`SELECT id, device_sn, bound_child_id, toy_name, toy_age, toy_gender, toy_persona, created_at, updated_at, last_seen_at
		 FROM devices WHERE `+where,
		arg,
	).Scan(&d.ID, &d.DeviceSN, &d.BoundChildID, &d.ToyName, &d.ToyAge, &d.ToyGender, &d.ToyPersona,
		&d.CreatedAt, &d.UpdatedAt, &d.LastSeenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *PostgresStore) UpsertDevice(ctx context.Context, d *domain.Device) error {
	if d.CreatedAt == 0 {
		d.CreatedAt = now()
	}
	d.UpdatedAt = now()
	return s.pool.QueryRow(ctx,
		`INSERT INTO devices (device_sn, bound_child_id, toy_name, toy_age, toy_gender, toy_persona, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (device_sn) DO UPDATE SET
		   bound_child_id = EXCLUDED.bound_child_id,
		   toy_name = EXCLUDED.toy_name,
		   toy_age = EXCLUDED.toy_age,
		   toy_gender = EXCLUDED.toy_gender,
		   toy_persona = EXCLUDED.toy_persona,
		   updated_at = EXCLUDED.updated_at
		 RETURNING id`,
		d.DeviceSN, d.BoundChildID, d.ToyName, d.ToyAge, d.ToyGender, d.ToyPersona, d.CreatedAt, d.UpdatedAt,
	).Scan(&d.ID)
}

func (s *PostgresStore) TouchDeviceLastSeen(ctx context.Context, deviceSN string, at int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE devices SET last_seen_at = $1 WHERE device_sn = $2`,
		at, deviceSN,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, sess *domain.ChatSession) error {
	sess.StartedAt = now()
	return s.pool.QueryRow(ctx,
		`INSERT INTO chat_sessions (child_id, title, started_at) VALUES ($1, $2, $3) RETURNING id`,
		sess.ChildID, sess.Title, sess.StartedAt,
	).Scan(&sess.ID)
}

func (s *PostgresStore) GetSession(ctx context.Context, id int64) (*domain.ChatSession, error) {
	var sess domain.ChatSession
	err := s.pool.QueryRow(ctx,
		`SELECT id, child_id, title, started_at, ended_at FROM chat_sessions WHERE id = $1`,
		id,
	).Scan(&sess.ID, &sess.ChildID, &sess.Title, &sess.StartedAt, &sess.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *PostgresStore) ListSessionsByChild(ctx context.Context, childID int64) ([]domain.ChatSession, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, child_id, title, started_at, ended_at FROM chat_sessions
		 WHERE child_id = $1 ORDER BY started_at DESC, id DESC`,
		childID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.ChatSession
	for rows.Next() {
		var sess domain.ChatSession
		if err := rows.Scan(&sess.ID, &sess.ChildID, &sess.Title, &sess.StartedAt, &sess.EndedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *PostgresStore) EndSession(ctx context.Context, sessionID int64, title string, endedAt int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE chat_sessions SET title = $1, ended_at = $2 WHERE id = $3`,
		title, endedAt, sessionID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) NextTurnSeq(ctx context.Context, sessionID int64) (int, error) {
	var seq int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE session_id = $1`,
		sessionID,
	).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *PostgresStore) SaveTurn(ctx context.Context, t *domain.Turn) error {
	t.CreatedAt = now()
	return s.pool.QueryRow(ctx,
		`INSERT INTO turns (session_id, device_id, seq, user_text, reply_text, user_audio_key, reply_audio_key,
		                    created_at, risk_flag, risk_source, risk_reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		t.SessionID, t.DeviceID, t.Seq, t.UserText, t.ReplyText, t.UserAudioKey, t.ReplyAudioKey,
		t.CreatedAt, t.RiskFlag, t.RiskSource, t.RiskReason,
	).Scan(&t.ID)
}

func (s *PostgresStore) ListTurns(ctx context.Context, sessionID int64) ([]domain.Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, device_id, seq, user_text, reply_text, user_audio_key, reply_audio_key,
		        created_at, risk_flag, risk_source, risk_reason
		 FROM turns WHERE session_id = $1 ORDER BY seq ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var t domain.Turn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.DeviceID, &t.Seq, &t.UserText, &t.ReplyText,
			&t.UserAudioKey, &t.ReplyAudioKey, &t.CreatedAt, &t.RiskFlag, &t.RiskSource, &t.RiskReason); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (s *PostgresStore) CountTurns(ctx context.Context, sessionID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM turns WHERE session_id = $1`,
		sessionID,
	).Scan(&n)
	return n, err
}

func (s *PostgresStore) SessionHasRisk(ctx context.Context, sessionID int64) (bool, error) {
	var has bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM turns WHERE session_id = $1 AND risk_flag)`,
		sessionID,
	).Scan(&has)
	return has, err
}
