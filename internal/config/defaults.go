package config

const (
	defaultDataDir  = "~/.local/share/sceneid"
	defaultLogDir   = "~/.local/share/sceneid/logs"
	defaultAPIBind  = "127.0.0.1:7519"
	defaultLogLevel = "info"
	defaultLogFmt   = "console"

	defaultMetadataBaseURL  = "https://api.themoviedb.org/3"
	defaultMetadataLanguage = "en-US"
	defaultArtifactTTLHours = 168

	defaultLLMBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel          = "google/gemini-3-flash-preview"
	defaultLLMTimeoutSeconds = 60

	defaultInstantAccept    = 0.92
	defaultTrustConfidence  = 0.40
	defaultActorFallback    = 0.30
	defaultActorFallbackCap = 0.70
	defaultGuessCap         = 0.35

	defaultWeightDialogueText  = 2.0
	defaultWeightDialogueEmbed = 1.0
	defaultWeightVisual        = 1.0
	defaultWeightOnScreenText  = 0.9
	defaultWeightActorIdentity = 0.8

	defaultRequestDeadlineSeconds   = 180
	defaultCapabilityTimeoutSeconds = 45
	defaultDialogueResultLimit      = 20

	defaultMaxConcurrent         = 3
	defaultMaxQueueSize          = 50
	defaultQueueTimeoutSeconds   = 120
	defaultMaxRequestTimeSeconds = 300
	defaultStaleSweepSeconds     = 30
	defaultProcessingHistory     = 50
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Metadata: Metadata{
			BaseURL:          defaultMetadataBaseURL,
			Language:         defaultMetadataLanguage,
			ArtifactTTLHours: defaultArtifactTTLHours,
		},
		Transcriber: Capability{
			Enabled:        true,
			TimeoutSeconds: defaultCapabilityTimeoutSeconds,
		},
		Vision: Capability{
			Enabled:        true,
			TimeoutSeconds: defaultCapabilityTimeoutSeconds,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Title:          "sceneid recognizer",
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Recognition: Recognition{
			InstantAcceptConfidence:      defaultInstantAccept,
			TrustConfidence:              defaultTrustConfidence,
			ActorFallbackConfidence:      defaultActorFallback,
			ActorFallbackCap:             defaultActorFallbackCap,
			GenerativeGuessConfidenceCap: defaultGuessCap,
			WeightDialogueText:           defaultWeightDialogueText,
			WeightDialogueEmbed:          defaultWeightDialogueEmbed,
			WeightVisual:                 defaultWeightVisual,
			WeightOnScreenText:           defaultWeightOnScreenText,
			WeightActorIdentity:          defaultWeightActorIdentity,
			RequestDeadlineSeconds:       defaultRequestDeadlineSeconds,
			CapabilityTimeoutSeconds:     defaultCapabilityTimeoutSeconds,
			DialogueSearchResultLimit:    defaultDialogueResultLimit,
		},
		Governor: Governor{
			MaxConcurrent:            defaultMaxConcurrent,
			MaxQueueSize:             defaultMaxQueueSize,
			QueueTimeoutSeconds:      defaultQueueTimeoutSeconds,
			MaxRequestTimeSeconds:    defaultMaxRequestTimeSeconds,
			StaleSweepSeconds:        defaultStaleSweepSeconds,
			ProcessingHistoryEntries: defaultProcessingHistory,
		},
		RateLimits: RateLimits{
			Transcription: RateLimit{WindowSeconds: 60, MaxCalls: 30},
			Vision:        RateLimit{WindowSeconds: 60, MaxCalls: 60},
			ActorID:       RateLimit{WindowSeconds: 60, MaxCalls: 30},
			Generative:    RateLimit{WindowSeconds: 60, MaxCalls: 20},
			Metadata:      RateLimit{WindowSeconds: 10, MaxCalls: 35},
		},
		Logging: Logging{
			Format: defaultLogFmt,
			Level:  defaultLogLevel,
		},
	}
}
