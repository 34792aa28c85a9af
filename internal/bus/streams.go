package bus

// Stream names used by the pipeline. Every inter-stage hop is one of these
// append-only logs.
const (
	StreamAudioInbound  = "hearth:audio:inbound"
	StreamAudioSegments = "hearth:audio:segments"
	StreamTranscripts   = "hearth:text:transcripts"
	StreamLLMRequests   = "hearth:llm:requests"
	StreamLLMResponses  = "hearth:llm:responses"
	StreamTTSRequests   = "hearth:tts:requests"
	StreamAudioOutbound = "hearth:audio:outbound"
	StreamEvents        = "hearth:events:caregiver"
)

// Consumer group names, one per stage.
const (
	GroupVAD                   = "vad"
	GroupASR                   = "asr"
	GroupOrchestrator          = "orchestrator"
	GroupOrchestratorResponses = "orchestrator-responses"
	GroupLLM                   = "llm"
	GroupTTS                   = "tts"
	GroupGateway               = "gateway"
)
