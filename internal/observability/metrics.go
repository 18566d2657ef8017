package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_turns_total",
		Help: "Total number of voice turns processed",
	}, []string{"status"}) // success / error

	turnFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_turn_failures_total",
		Help: "Voice turn failures by pipeline stage",
	}, []string{"stage"})

	turnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_turn_duration_seconds",
		Help:    "End-to-end duration of one voice turn",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	})

	asrLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_asr_latency_seconds",
		Help:    "ASR exchange latency",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	ttsLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_tts_latency_seconds",
		Help:    "TTS exchange latency (including retries)",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	llmLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_llm_latency_seconds",
		Help:    "LLM chat completion latency",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20},
	})

	safetyViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_safety_violations_total",
		Help: "Safety gate violations by source",
	}, []string{"source"}) // input / output

	mqttMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_mqtt_messages_total",
		Help: "MQTT messages by direction",
	}, []string{"direction"}) // request / reply

	blobBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_blob_bytes_total",
		Help: "Bytes written to blob storage",
	}, []string{"role"}) // user / reply
)

// RecordTurn 记录一轮对话的结果与耗时。
func RecordTurn(success bool, elapsed time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	turnsTotal.WithLabelValues(status).Inc()
	turnDuration.Observe(elapsed.Seconds())
}

// RecordTurnFailure 记录失败发生的阶段。
func RecordTurnFailure(stage string) {
	turnFailures.WithLabelValues(stage).Inc()
}

// ObserveASR 记录一次 ASR 交换耗时。
func ObserveASR(elapsed time.Duration) { asrLatency.Observe(elapsed.Seconds()) }

// ObserveTTS 记录一次 TTS 合成耗时（含重试）。
func ObserveTTS(elapsed time.Duration) { ttsLatency.Observe(elapsed.Seconds()) }

// ObserveLLM 记录一次大模型调用耗时。
func ObserveLLM(elapsed time.Duration) { llmLatency.Observe(elapsed.Seconds()) }

// RecordSafetyViolation 记录安全检查命中。
func RecordSafetyViolation(source string) {
	safetyViolations.WithLabelValues(source).Inc()
}

// RecordMQTTMessage 记录设备通道消息。
func RecordMQTTMessage(direction string) {
	mqttMessages.WithLabelValues(direction).Inc()
}

// RecordBlobBytes 记录写入对象存储的字节数。
func RecordBlobBytes(role string, n int) {
	blobBytes.WithLabelValues(role).Add(float64(n))
}
