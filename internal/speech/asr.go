package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yacciiyao/yoo-growth-buddy/internal/config"
	"github.com/yacciiyao/yoo-growth-buddy/internal/observability"
)

const defaultAsrEndpoint = "wss://%s/v2/iat"

// AsrClient 流式语音识别客户端。
// 一次识别占用一条 WebSocket 连接，按帧投递 PCM，
// 等待引擎的终态结果后返回完整文本。
type AsrClient struct {
	creds         Credentials
	endpoint      string
	dialer        *websocket.Dialer
	frameSize     int
	frameInterval time.Duration
	vadEOS        int
	timeout       time.Duration
}

// NewAsrClient 创建 ASR 客户端。
func NewAsrClient(cfg *config.Config) *AsrClient {
	return &AsrClient{
		creds: Credentials{
			AppID:     cfg.XfyunAppID,
			APIKey:    cfg.XfyunAPIKey,
			APISecret: cfg.XfyunAPISecret,
		},
		endpoint:      fmt.Sprintf(defaultAsrEndpoint, cfg.XfyunHost),
		dialer:        newDialer(),
		frameSize:     cfg.AsrFrameSize,
		frameInterval: cfg.FrameInterval(),
		vadEOS:        cfg.AsrVadEOS,
		timeout:       cfg.ExchangeTimeout(),
	}
}

// Recognize 识别一段 16kHz/16bit/单声道 PCM，返回识别文本。
// 识别不到内容时返回空串（不算错误），由上层决定兜底文案。
func (c *AsrClient) Recognize(ctx context.Context, pcm []byte) (string, error) {
	if len(pcm) == 0 {
		return "", fmt.Errorf("no audio data to recognize")
	}

	wsURL, err := c.creds.SignedURL(c.endpoint, time.Now())
	if err != nil {
		return "", err
	}

	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to connect to ASR engine: %w", err)
	}

	start := time.Now()
	var builder strings.Builder

	err = runExchange(ctx, conn, c.timeout,
		func(ctx context.Context) error { return c.sendAudio(ctx, conn, pcm) },
		func(ctx context.Context) error { return c.receiveResults(ctx, conn, &builder) },
	)
	observability.ObserveASR(time.Since(start))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(builder.String()), nil
}

// sendAudio 按帧投递音频。首帧携带业务参数，帧间保持固定间隔
// 模拟实时采集，最后补一个空的终止帧。
func (c *AsrClient) sendAudio(ctx context.Context, conn *websocket.Conn, pcm []byte) error {
	for i := 0; i < len(pcm); i += c.frameSize {
		end := i + c.frameSize
		if end > len(pcm) {
			end = len(pcm)
		}

		frame := asrFrame{
			Data: asrData{
				Status:   statusContinueFrame,
				Format:   "audio/L16;rate=16000",
				Audio:    base64.StdEncoding.EncodeToString(pcm[i:end]),
				Encoding: "raw",
			},
		}
		if i == 0 {
			frame.Common = &commonParams{AppID: c.creds.AppID}
			frame.Business = &asrBusiness{
				Domain:   "iat",
				Language: "zh_cn",
				Accent:   "mandarin",
				Vinfo:    1,
				VadEOS:   c.vadEOS,
			}
			frame.Data.Status = statusFirstFrame
		}

		if err := conn.WriteJSON(&frame); err != nil {
			return fmt.Errorf("failed to send audio frame: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.frameInterval):
		}
	}

	last := asrFrame{
		Data: asrData{
			Status:   statusLastFrame,
			Format:   "audio/L16;rate=16000",
			Audio:    "",
			Encoding: "raw",
		},
	}
	if err := conn.WriteJSON(&last); err != nil {
		return fmt.Errorf("failed to send last frame: %w", err)
	}
	return nil
}

// receiveResults 累积识别片段，直到引擎标记终态（data.status == 2）。
func (c *AsrClient) receiveResults(ctx context.Context, conn *websocket.Conn, builder *strings.Builder) error {
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
			return fmt.Errorf("failed to read ASR response: %w", err)
		}

		var resp asrResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return fmt.Errorf("failed to decode ASR response: %w", err)
		}

		if resp.Code != 0 {
			return &EngineError{Code: resp.Code, Sid: resp.Sid, Message: resp.Message}
		}

		for _, ws := range resp.Data.Result.Ws {
			for _, cw := range ws.Cw {
				builder.WriteString(cw.W)
			}
		}

		if resp.Data.Status == statusLastFrame {
			return nil
		}
	}
}
