package voice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/yacciiyao/yoo-growth-buddy/internal/audio"
	"github.com/yacciiyao/yoo-growth-buddy/internal/dialogue"
	"github.com/yacciiyao/yoo-growth-buddy/internal/domain"
	"github.com/yacciiyao/yoo-growth-buddy/internal/llm"
	"github.com/yacciiyao/yoo-growth-buddy/internal/observability"
	"github.com/yacciiyao/yoo-growth-buddy/internal/safety"
	"github.com/yacciiyao/yoo-growth-buddy/internal/storage"
	"github.com/yacciiyao/yoo-growth-buddy/internal/store"
)

// 识别不到内容时的兜底文案，照常走后续流程。
const emptyAsrPlaceholder = "（未识别到有效语音内容）"

// Recognizer 语音识别抽象。
type Recognizer interface {
	Recognize(ctx context.Context, pcm []byte) (string, error)
}

// Synthesizer 语音合成抽象。
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// TurnResult 一轮对话的完整产出。
type TurnResult struct {
	ChildID       int64
	SessionID     int64
	TurnID        int64
	Seq           int
	UserText      string
	ReplyText     string
	UserAudioKey  string
	ReplyAudioKey string
	ReplyWAV      []byte
	RiskFlag      bool
	RiskSource    string
}

// Service 语音对话核心编排：
// 设备定位 → 会话解析 → ASR → 安全检查 → 上下文组装 →
// LLM → 回复收敛 → TTS → 落盘。任一硬失败整轮失败，
// 不留半截数据。
type Service struct {
	store       store.Store
	blobs       storage.BlobStore
	recognizer  Recognizer
	synthesizer Synthesizer
	gate        *safety.Gate
	builder     *dialogue.Builder
	selector    *llm.Selector
	log         zerolog.Logger
}

// NewService 创建语音对话服务。
func NewService(
	st store.Store,
	blobs storage.BlobStore,
	recognizer Recognizer,
	synthesizer Synthesizer,
	gate *safety.Gate,
	builder *dialogue.Builder,
	selector *llm.Selector,
) *Service {
	return &Service{
		store:       st,
		blobs:       blobs,
		recognizer:  recognizer,
		synthesizer: synthesizer,
		gate:        gate,
		builder:     builder,
		selector:    selector,
		log:         observability.ComponentLogger("voice"),
	}
}

// HandleTurn 处理一轮语音对话。sessionID 传 0 表示开新会话。
func (s *Service) HandleTurn(ctx context.Context, deviceSN string, wavBytes []byte, sessionID int64) (*TurnResult, error) {
	start := time.Now()
	result, err := s.handleTurn(ctx, deviceSN, wavBytes, sessionID)
	observability.RecordTurn(err == nil, time.Since(start))
	return result, err
}

func (s *Service) handleTurn(ctx context.Context, deviceSN string, wavBytes []byte, sessionID int64) (*TurnResult, error) {
	// 1. 设备和孩子
	device, child, err := s.loadDeviceAndChild(ctx, deviceSN)
	if err != nil {
		observability.RecordTurnFailure("load_device")
		return nil, err
	}

	// 2. 会话
	session, err := s.resolveSession(ctx, child, sessionID)
	if err != nil {
		observability.RecordTurnFailure("resolve_session")
		return nil, err
	}

	// 3. 本轮 seq
	seq, err := s.store.NextTurnSeq(ctx, session.ID)
	if err != nil {
		observability.RecordTurnFailure("assign_seq")
		return nil, err
	}

	log := s.log.With().
		Int64("child_id", child.ID).
		Int64("session_id", session.ID).
		Int("seq", seq).
		Logger()

	// 4. 音频格式校验 + 取 PCM
	pcm, err := audio.ExtractPCM(wavBytes)
	if err != nil {
		observability.RecordTurnFailure("audio_decode")
		log.Error().Err(err).Msg("音频格式错误")
		return nil, err
	}

	// 5. ASR
	userText, err := s.recognizer.Recognize(ctx, pcm)
	if err != nil {
		observability.RecordTurnFailure("asr")
		log.Error().Err(err).Msg("语音识别失败")
		return nil, err
	}
	userText = strings.TrimSpace(userText)
	if userText == "" {
		userText = emptyAsrPlaceholder
	}

	// 6. 输入侧检查：命中只打标记，本轮照常进行
	forbidden := domain.SplitList(child.ForbiddenTopics)
	inputViolation := s.gate.CheckInput(userText, forbidden)
	if inputViolation != nil {
		log.Warn().Str("reason", inputViolation.Reason).Msg("儿童输入命中安全检查")
	}

	// 7. 上下文 + 历史
	cc := buildChildContext(child, device)
	history, err := s.store.ListTurns(ctx, session.ID)
	if err != nil {
		observability.RecordTurnFailure("build_context")
		return nil, err
	}
	messages := s.builder.Build(cc, history, userText)

	// 8. LLM
	provider, opts, err := s.selector.Select()
	if err != nil {
		observability.RecordTurnFailure("llm")
		return nil, err
	}
	log.Info().Str("provider", provider.Name()).Msg("调用大模型")

	replyRaw, err := provider.Chat(ctx, messages, opts)
	if err != nil {
		observability.RecordTurnFailure("llm")
		log.Error().Err(err).Msg("大模型调用失败")
		return nil, err
	}

	// 9. 回复收敛：出来的文本保证可播
	replyText, outputViolation := s.gate.SanitizeReply(cc.ToyName, replyRaw, forbidden)
	if outputViolation != nil {
		log.Warn().Str("reason", outputViolation.Reason).Msg("模型回复被收敛替换")
	}

	// 10. TTS：失败整轮失败，不写任何数据
	replyPCM, err := s.synthesizer.Synthesize(ctx, replyText)
	if err != nil {
		observability.RecordTurnFailure("tts")
		log.Error().Err(err).Msg("语音合成失败")
		return nil, err
	}
	replyWAV := audio.PackPCM(replyPCM)

	// 11. 落盘：先音频后记录，走到这里才开始写
	turn := &domain.Turn{
		SessionID:     session.ID,
		DeviceID:      device.ID,
		Seq:           seq,
		UserText:      userText,
		ReplyText:     replyText,
		UserAudioKey:  storage.UserAudioKey(child.ID, session.ID, seq),
		ReplyAudioKey: storage.ReplyAudioKey(child.ID, session.ID, seq),
	}
	foldRisk(turn, inputViolation, outputViolation)

	if err := s.persistTurn(ctx, turn, wavBytes, replyWAV); err != nil {
		observability.RecordTurnFailure("persist")
		log.Error().Err(err).Msg("落盘失败")
		return nil, err
	}

	log.Info().Int64("turn_id", turn.ID).Bool("risk", turn.RiskFlag).Msg("完成一轮对话")

	return &TurnResult{
		ChildID:       child.ID,
		SessionID:     session.ID,
		TurnID:        turn.ID,
		Seq:           seq,
		UserText:      userText,
		ReplyText:     replyText,
		UserAudioKey:  turn.UserAudioKey,
		ReplyAudioKey: turn.ReplyAudioKey,
		ReplyWAV:      replyWAV,
		RiskFlag:      turn.RiskFlag,
		RiskSource:    turn.RiskSource,
	}, nil
}

// EndSession 结束会话并自动命名。重复调用不改变已有结果。
func (s *Service) EndSession(ctx context.Context, sessionID int64) (*domain.ChatSession, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	changed := false
	if session.EndedAt == 0 {
		session.EndedAt = time.Now().Unix()
		changed = true
	}
	if session.Title == "" {
		title, err := s.generateSessionTitle(ctx, session)
		if err != nil {
			return nil, err
		}
		session.Title = title
		changed = true
	}

	if changed {
		if err := s.store.EndSession(ctx, session.ID, session.Title, session.EndedAt); err != nil {
			return nil, err
		}
		s.log.Info().Int64("session_id", session.ID).Str("title", session.Title).Msg("会话已结束并命名")
	}
	return session, nil
}

// generateSessionTitle 用首轮文本生成标题，太长就截断；
// 一轮都没有就用日期兜底。
func (s *Service) generateSessionTitle(ctx context.Context, session *domain.ChatSession) (string, error) {
	turns, err := s.store.ListTurns(ctx, session.ID)
	if err != nil {
		return "", err
	}

	if len(turns) > 0 {
		base := turns[0].UserText
		if base == "" {
			base = turns[0].ReplyText
		}
		base = strings.TrimSpace(strings.ReplaceAll(base, "\n", " "))
		if base != "" {
			runes := []rune(base)
			if len(runes) > 20 {
				return string(runes[:20]) + "...", nil
			}
			return base, nil
		}
	}

	ts := session.StartedAt
	if ts == 0 {
		ts = time.Now().Unix()
	}
	return time.Unix(ts, 0).Format("2006-01-02") + " 和小yo的聊天", nil
}

func (s *Service) loadDeviceAndChild(ctx context.Context, deviceSN string) (*domain.Device, *domain.Child, error) {
	device, err := s.store.FindDeviceBySN(ctx, deviceSN)
	if err != nil {
		return nil, nil, fmt.Errorf("device not found: sn=%s: %w", deviceSN, err)
	}
	if device.BoundChildID == 0 {
		return nil, nil, fmt.Errorf("device not bound to child: sn=%s: %w", deviceSN, store.ErrNotFound)
	}
	child, err := s.store.FindChildByID(ctx, device.BoundChildID)
	if err != nil {
		return nil, nil, fmt.Errorf("child not found: id=%d: %w", device.BoundChildID, err)
	}
	return device, child, nil
}

func (s *Service) resolveSession(ctx context.Context, child *domain.Child, sessionID int64) (*domain.ChatSession, error) {
	if sessionID != 0 {
		session, err := s.store.GetSession(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("invalid session_id %d: %w", sessionID, err)
		}
		if session.ChildID != child.ID {
			return nil, fmt.Errorf("session %d does not belong to child %d", sessionID, child.ID)
		}
		return session, nil
	}

	session := &domain.ChatSession{ChildID: child.ID}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// persistTurn 先写两段音频再写轮次记录，任何一步失败都算整轮失败。
func (s *Service) persistTurn(ctx context.Context, turn *domain.Turn, userWAV, replyWAV []byte) error {
	if err := s.blobs.Put(ctx, turn.UserAudioKey, userWAV, "audio/wav"); err != nil {
		return fmt.Errorf("failed to save user audio: %w", err)
	}
	observability.RecordBlobBytes("user", len(userWAV))

	if err := s.blobs.Put(ctx, turn.ReplyAudioKey, replyWAV, "audio/wav"); err != nil {
		return fmt.Errorf("failed to save reply audio: %w", err)
	}
	observability.RecordBlobBytes("reply", len(replyWAV))

	return s.store.SaveTurn(ctx, turn)
}

func buildChildContext(child *domain.Child, device *domain.Device) domain.ChildContext {
	return domain.ChildContext{
		ChildID:         child.ID,
		Age:             child.Age,
		Gender:          child.Gender,
		Interests:       domain.SplitList(child.Interests),
		ForbiddenTopics: domain.SplitList(child.ForbiddenTopics),
		ToyName:         device.ToyName,
		ToyPersona:      device.ToyPersona,
	}
}

func foldRisk(turn *domain.Turn, input, output *safety.Violation) {
	var reasons []string
	switch {
	case input != nil && output != nil:
		turn.RiskSource = domain.RiskSourceBoth
		reasons = []string{input.Reason, output.Reason}
	case input != nil:
		turn.RiskSource = domain.RiskSourceInput
		reasons = []string{input.Reason}
	case output != nil:
		turn.RiskSource = domain.RiskSourceOutput
		reasons = []string{output.Reason}
	default:
		return
	}
	turn.RiskFlag = true
	turn.RiskReason = strings.Join(reasons, "; ")
}
