package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/yacciiyao/yoo-growth-buddy/internal/audio"
	"github.com/yacciiyao/yoo-growth-buddy/internal/config"
	"github.com/yacciiyao/yoo-growth-buddy/internal/observability"
)

const defaultTtsEndpoint = "wss://%s/v2/tts"

// TtsClient 语音合成客户端。文本一次性投递，流式收回 PCM 音频。
type TtsClient struct {
	creds      Credentials
	endpoint   string
	dialer     *websocket.Dialer
	voice      string
	speed      int
	volume     int
	maxRetries int
	backoff    time.Duration
	silencePad float64
	timeout    time.Duration
	log        zerolog.Logger
}

// NewTtsClient 创建 TTS 客户端。
func NewTtsClient(cfg *config.Config) *TtsClient {
	return &TtsClient{
		creds: Credentials{
			AppID:     cfg.XfyunAppID,
			APIKey:    cfg.XfyunAPIKey,
			APISecret: cfg.XfyunAPISecret,
		},
		endpoint:   fmt.Sprintf(defaultTtsEndpoint, cfg.XfyunHost),
		dialer:     newDialer(),
		voice:      cfg.TTSVoice,
		speed:      cfg.TTSSpeed,
		volume:     cfg.TTSVolume,
		maxRetries: cfg.TTSMaxRetries,
		backoff:    cfg.RetryBackoff(),
		silencePad: cfg.TTSSilencePad,
		timeout:    cfg.ExchangeTimeout(),
		log:        observability.ComponentLogger("tts"),
	}
}

// Synthesize 合成一段文本，返回 16kHz/16bit/单声道 PCM。
// 引擎偶发失败较常见，整体按翻倍退避重试；成功后在尾部补一段
// 静音，避免设备端播放被截尾。
func (c *TtsClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("tts text is empty")
	}

	start := time.Now()
	defer func() { observability.ObserveTTS(time.Since(start)) }()

	backoff := c.backoff
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		pcm, err := c.synthesizeOnce(ctx, text)
		if err == nil {
			return append(pcm, audio.Silence(c.silencePad)...), nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == c.maxRetries {
			break
		}

		c.log.Warn().Err(err).Int("attempt", attempt).Msg("合成失败，准备重试")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return nil, fmt.Errorf("tts synthesis failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *TtsClient) synthesizeOnce(ctx context.Context, text string) ([]byte, error) {
	wsURL, err := c.creds.SignedURL(c.endpoint, time.Now())
	if err != nil {
		return nil, err
	}

	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to TTS engine: %w", err)
	}

	var buf bytes.Buffer

	err = runExchange(ctx, conn, c.timeout,
		func(ctx context.Context) error { return c.sendText(conn, text) },
		func(ctx context.Context) error { return c.receiveAudio(ctx, conn, &buf) },
	)
	if err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("tts engine returned no audio")
	}
	return buf.Bytes(), nil
}

// sendText 投递唯一一帧合成请求，文本整体带上即标记终态。
func (c *TtsClient) sendText(conn *websocket.Conn, text string) error {
	frame := ttsFrame{
		Common: commonParams{AppID: c.creds.AppID},
		Business: ttsBusiness{
			Aue:    "raw",
			Auf:    "audio/L16;rate=16000",
			Vcn:    c.voice,
			Tte:    "utf8",
			Speed:  c.speed,
			Volume: c.volume,
		},
		Data: ttsData{
			Status: statusLastFrame,
			Text:   base64.StdEncoding.EncodeToString([]byte(text)),
		},
	}
	if err := conn.WriteJSON(&frame); err != nil {
		return fmt.Errorf("failed to send TTS request: %w", err)
	}
	return nil
}

// receiveAudio 累积音频分片，直到引擎标记终态（status == 2）。
func (c *TtsClient) receiveAudio(ctx context.Context, conn *websocket.Conn, buf *bytes.Buffer) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read TTS response: %w", err)
		}

		var resp ttsResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return fmt.Errorf("failed to decode TTS response: %w", err)
		}

		if resp.Code != 0 {
			return &EngineError{Code: resp.Code, Sid: resp.Sid, Message: resp.Message}
		}

		if resp.Data.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(resp.Data.Audio)
			if err != nil {
				return fmt.Errorf("failed to decode TTS audio chunk: %w", err)
			}
			buf.Write(chunk)
		}

		if resp.Data.Status == statusLastFrame {
			return nil
		}
	}
}
