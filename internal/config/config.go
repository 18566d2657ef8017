package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config 聚合整个服务的配置项，从 .env / 环境变量读取。
type Config struct {
	// HTTP 服务
	Port string `envconfig:"PORT" default:"8080"`

	// 讯飞语音引擎（ASR/TTS 共用一套凭证）
	XfyunAppID     string `envconfig:"XFYUN_APPID" required:"true"`
	XfyunAPIKey    string `envconfig:"XFYUN_APIKEY" required:"true"`
	XfyunAPISecret string `envconfig:"XFYUN_APISECRET" required:"true"`
	XfyunHost      string `envconfig:"XFYUN_HOST" default:"ws-api.xfyun.cn"`

	// 语音交换参数
	SpeechTimeout    int     `envconfig:"SPEECH_TIMEOUT" default:"30"`        // 单次交换超时（秒）
	AsrFrameSize     int     `envconfig:"ASR_FRAME_SIZE" default:"8000"`      // 每帧 PCM 字节数
	AsrFrameInterval int     `envconfig:"ASR_FRAME_INTERVAL_MS" default:"40"` // 帧间隔（毫秒），引擎要求近实时投递
	AsrVadEOS        int     `envconfig:"ASR_VAD_EOS" default:"10000"`
	TTSVoice         string  `envconfig:"TTS_VOICE" default:"xiaoyan"`
	TTSSpeed         int     `envconfig:"TTS_SPEED" default:"50"`
	TTSVolume        int     `envconfig:"TTS_VOLUME" default:"50"`
	TTSMaxRetries    int     `envconfig:"TTS_MAX_RETRIES" default:"3"`
	TTSRetryBackoff  int     `envconfig:"TTS_RETRY_BACKOFF_MS" default:"500"` // 首次重试等待（毫秒），之后翻倍
	TTSSilencePad    float64 `envconfig:"TTS_SILENCE_PAD_SECONDS" default:"1.0"`

	// MQTT 设备通道
	MQTTBrokerURL      string `envconfig:"MQTT_BROKER_URL" default:"tcp://127.0.0.1:1883"`
	MQTTUsername       string `envconfig:"MQTT_USERNAME" default:""`
	MQTTPassword       string `envconfig:"MQTT_PASSWORD" default:""`
	MQTTClientIDPrefix string `envconfig:"MQTT_CLIENT_ID_PREFIX" default:"yoo-gw-"`

	// 数据库
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// S3 对象存储（音频文件）
	S3Endpoint  string `envconfig:"S3_ENDPOINT" default:"s3.amazonaws.com"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Bucket    string `envconfig:"S3_BUCKET" required:"true"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY" default:""`
	S3SecretKey string `envconfig:"S3_SECRET_KEY" default:""`
	S3BaseURL   string `envconfig:"S3_BASE_URL" default:""`
	S3UseSSL    bool   `envconfig:"S3_USE_SSL" default:"true"`

	// 大模型
	LLMDefaultProvider string  `envconfig:"LLM_DEFAULT_PROVIDER" default:"ark"`
	ArkAPIKey          string  `envconfig:"ARK_API_KEY" default:""`
	ArkModel           string  `envconfig:"ARK_MODEL" default:""`
	ArkBaseURL         string  `envconfig:"ARK_BASE_URL" default:"https://ark.cn-beijing.volces.com/api/v3"`
	ArkRegion          string  `envconfig:"ARK_REGION" default:"cn-beijing"`
	LLMMaxTokens       int     `envconfig:"LLM_MAX_TOKENS" default:"256"`
	LLMTemperature     float64 `envconfig:"LLM_TEMPERATURE" default:"0.8"`

	// 对话与安全
	MaxHistoryTurns int `envconfig:"MAX_HISTORY_TURNS" default:"6"`
	MaxInputLength  int `envconfig:"SAFETY_MAX_INPUT_LENGTH" default:"200"`
	MaxOutputLength int `envconfig:"SAFETY_MAX_OUTPUT_LENGTH" default:"400"`

	// 可观测性
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// Load 先尝试加载 .env（不存在时忽略），再从环境变量解析配置。
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv 直接从环境变量解析，容器部署时使用。
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if strings.TrimSpace(cfg.XfyunAppID) == "" || strings.TrimSpace(cfg.XfyunAPIKey) == "" || strings.TrimSpace(cfg.XfyunAPISecret) == "" {
		return nil, fmt.Errorf("讯飞配置未完整设置，请检查 XFYUN_APPID/XFYUN_APIKEY/XFYUN_APISECRET")
	}

	return &cfg, nil
}

// ExchangeTimeout 单次语音交换的超时时长。
func (c *Config) ExchangeTimeout() time.Duration {
	return time.Duration(c.SpeechTimeout) * time.Second
}

// FrameInterval ASR 帧间投递间隔。
func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.AsrFrameInterval) * time.Millisecond
}

// RetryBackoff TTS 首次重试前的等待时长。
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.TTSRetryBackoff) * time.Millisecond
}
