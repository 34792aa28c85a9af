package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hearth_active_sessions",
		Help: "Currently connected device sessions",
	})

	AudioChunksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_audio_chunks_received_total",
		Help: "Inbound audio chunks routed by the gateway",
	}, []string{"device_id"})

	PipelineLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hearth_pipeline_latency_seconds",
		Help:    "End-to-end latency from utterance receipt to response send",
		Buckets: []float64{0.1, 0.2, 0.5, 0.8, 1.0, 1.5, 2.0, 3.0, 5.0},
	})

	VADLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hearth_vad_latency_seconds",
		Help:    "Per-chunk voice activity detection latency",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.2},
	})

	UtterancesEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hearth_vad_utterances_emitted_total",
		Help: "Utterances emitted by the VAD segmenter",
	})

	ASRLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hearth_asr_latency_seconds",
		Help:    "Transcription latency per utterance",
		Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.0, 2.0, 5.0},
	})

	ASRConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hearth_asr_confidence",
		Help:    "Mean transcript confidence per utterance",
		Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	})

	LLMLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hearth_llm_latency_seconds",
		Help:    "LLM generation latency per request",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	}, []string{"model", "backend"})

	LLMTokensUsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_llm_tokens_used_total",
		Help: "Completion tokens consumed",
	}, []string{"model"})

	LLMFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_llm_fallbacks_total",
		Help: "Static fallback responses served",
	}, []string{"reason"})

	TTSLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hearth_tts_latency_seconds",
		Help:    "Synthesis latency per sentence",
		Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.0, 2.0},
	})

	BusErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_bus_errors_total",
		Help: "Stream bus errors by stage",
	}, []string{"stage"})
)
