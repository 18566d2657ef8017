package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/yacciiyao/yoo-growth-buddy/internal/audio"
	"github.com/yacciiyao/yoo-growth-buddy/internal/config"
	"github.com/yacciiyao/yoo-growth-buddy/internal/observability"
	"github.com/yacciiyao/yoo-growth-buddy/internal/speech"
	"github.com/yacciiyao/yoo-growth-buddy/internal/store"
	"github.com/yacciiyao/yoo-growth-buddy/internal/voice"
)

const (
	requestTopicFilter = "toy/+/voice/request"
	turnTimeout        = 2 * time.Minute
)

// MqttVoiceGateway 设备语音通道：
// 订阅 toy/{device_sn}/voice/request，payload 是 16k/16bit/单声道 WAV，
// 跑完一轮对话后把回复 WAV 发布到 toy/{device_sn}/voice/reply。
type MqttVoiceGateway struct {
	client  mqtt.Client
	service *voice.Service
	store   store.Store
	log     zerolog.Logger

	// 整条流水线串行处理，一个时刻只跑一轮对话
	mu sync.Mutex
}

// NewMqttVoiceGateway 创建网关，不立即连接。
func NewMqttVoiceGateway(cfg *config.Config, service *voice.Service, st store.Store) *MqttVoiceGateway {
	g := &MqttVoiceGateway{
		service: service,
		store:   st,
		log:     observability.ComponentLogger("gateway"),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBrokerURL).
		SetClientID(cfg.MQTTClientIDPrefix + "voice").
		SetCleanSession(true).
		SetKeepAlive(60 * time.Second).
		SetAutoReconnect(true).
		SetOnConnectHandler(g.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			g.log.Warn().Err(err).Msg("MQTT 连接断开，等待自动重连")
		})
	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}

	g.client = mqtt.NewClient(opts)
	return g
}

// Start 连接 broker，订阅在连接回调里完成（重连后自动恢复）。
func (g *MqttVoiceGateway) Start() error {
	g.log.Info().Msg("连接 MQTT broker ...")
	if token := g.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return nil
}

// Stop 断开连接，等待在途消息发完。
func (g *MqttVoiceGateway) Stop() {
	g.client.Disconnect(250)
	g.log.Info().Msg("MQTT 网关已停止")
}

func (g *MqttVoiceGateway) onConnect(client mqtt.Client) {
	g.log.Info().Str("topic", requestTopicFilter).Msg("MQTT 已连接，订阅请求主题")
	if token := client.Subscribe(requestTopicFilter, 1, g.onMessage); token.Wait() && token.Error() != nil {
		g.log.Error().Err(token.Error()).Msg("订阅失败")
	}
}

func (g *MqttVoiceGateway) onMessage(client mqtt.Client, msg mqtt.Message) {
	observability.RecordMQTTMessage("request")

	deviceSN, ok := parseRequestTopic(msg.Topic())
	if !ok {
		g.log.Warn().Str("topic", msg.Topic()).Msg("忽略非预期主题的消息")
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()

	log := g.log.With().
		Str("device_sn", deviceSN).
		Str("turn_cid", observability.NewCorrelationID()).
		Logger()
	log.Info().Int("bytes", len(msg.Payload())).Msg("收到语音请求")

	g.touchDevice(ctx, deviceSN)

	result, err := g.service.HandleTurn(ctx, deviceSN, msg.Payload(), 0)
	if err != nil {
		g.logTurnError(log, err)
		return
	}

	replyTopic := fmt.Sprintf("toy/%s/voice/reply", deviceSN)
	if token := client.Publish(replyTopic, 1, false, result.ReplyWAV); token.Wait() && token.Error() != nil {
		log.Error().Err(token.Error()).Str("topic", replyTopic).Msg("发布回复失败")
		return
	}
	observability.RecordMQTTMessage("reply")

	log.Info().
		Str("topic", replyTopic).
		Int("bytes", len(result.ReplyWAV)).
		Int64("session_id", result.SessionID).
		Int64("turn_id", result.TurnID).
		Msg("已发布语音回复")
}

// touchDevice 更新设备最近在线时间，失败只记日志不影响本轮。
// 未注册的设备留给后续流程按 not found 处理。
func (g *MqttVoiceGateway) touchDevice(ctx context.Context, deviceSN string) {
	err := g.store.TouchDeviceLastSeen(ctx, deviceSN, time.Now().Unix())
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		g.log.Warn().Err(err).Str("device_sn", deviceSN).Msg("更新设备在线时间失败")
	}
}

func (g *MqttVoiceGateway) logTurnError(log zerolog.Logger, err error) {
	var formatErr *audio.FormatError
	var engineErr *speech.EngineError
	switch {
	case errors.As(err, &formatErr):
		log.Error().Err(err).Msg("处理失败：音频格式错误")
	case errors.As(err, &engineErr):
		log.Error().Err(err).Int("code", engineErr.Code).Msg("处理失败：语音引擎错误")
	case errors.Is(err, speech.ErrTimeout):
		log.Error().Err(err).Msg("处理失败：语音交换超时")
	case errors.Is(err, store.ErrNotFound):
		log.Error().Err(err).Msg("处理失败：设备或孩子不存在")
	default:
		log.Error().Err(err).Msg("处理失败")
	}
}

// parseRequestTopic 解析 toy/{device_sn}/voice/request，返回设备 SN。
func parseRequestTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "toy" || parts[2] != "voice" || parts[3] != "request" {
		return "", false
	}
	if parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
