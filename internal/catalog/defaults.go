package catalog

// DefaultGeneration returns the built-in chat model table used when the
// configuration does not declare generation backends.
func DefaultGeneration() []Descriptor {
	return []Descriptor{
		{
			ID:            "gemma2:2b",
			DisplayName:   "Gemma 2 2B",
			Tags:          []string{"quick chat", "basic practice", "vocabulary"},
			SpeedRating:   5,
			QualityRating: 3,
			Footprint:     Footprint{Size: "1.6GB", RAM: "~2-3GB"},
			Params: map[string]any{
				ParamContextWindow: 8192,
				ParamTemperature:   0.7,
				ParamSystemPrompt:  "You are a friendly English tutor. Keep responses SHORT (1-2 sentences max). Focus on natural conversation. Correct mistakes gently.",
			},
		},
		{
			ID:            "llama3.2:3b",
			DisplayName:   "Llama 3.2 3B",
			Tags:          []string{"dynamic conversation", "explanations", "role-play"},
			SpeedRating:   4,
			QualityRating: 4,
			Footprint:     Footprint{Size: "2.0GB", RAM: "~3-4GB"},
			Params: map[string]any{
				ParamContextWindow: 131072,
				ParamTemperature:   0.8,
				ParamSystemPrompt:  "You are an engaging English conversation partner. Be natural, ask follow-up questions, and create dynamic conversations. Keep responses conversational (2-3 sentences). Gently correct errors.",
			},
		},
		{
			ID:            "qwen2.5:3b",
			DisplayName:   "Qwen 2.5 3B",
			Tags:          []string{"structured teaching", "grammar", "detailed explanations"},
			SpeedRating:   4,
			QualityRating: 4,
			Footprint:     Footprint{Size: "1.9GB", RAM: "~3-4GB"},
			Params: map[string]any{
				ParamContextWindow: 32768,
				ParamTemperature:   0.6,
				ParamSystemPrompt:  "You are a professional English teacher. Provide clear explanations and examples. Keep responses focused and educational (2-4 sentences). Always explain corrections.",
			},
		},
		{
			ID:            "qwen2.5:7b",
			DisplayName:   "Qwen 2.5 7B",
			Tags:          []string{"advanced teaching", "business english", "exam preparation"},
			SpeedRating:   3,
			QualityRating: 5,
			Footprint:     Footprint{Size: "4.4GB", RAM: "~6-8GB"},
			Params: map[string]any{
				ParamContextWindow: 32768,
				ParamTemperature:   0.7,
				ParamSystemPrompt:  "You are an expert English instructor specializing in advanced learning. Provide detailed feedback and sophisticated language examples. Tailor difficulty to student level.",
			},
		},
		{
			ID:            "qwen2.5-extended",
			DisplayName:   "Qwen 2.5 Extended",
			Tags:          []string{"long conversations", "extended context", "memorization"},
			SpeedRating:   3,
			QualityRating: 5,
			Footprint:     Footprint{Size: "4.7GB", RAM: "~6-8GB"},
			Params: map[string]any{
				ParamContextWindow: 8192,
				ParamTemperature:   0.8,
				ParamSystemPrompt:  "You are an advanced English conversation partner with excellent memory. Maintain context from earlier in our conversation. Provide natural, flowing dialogue.",
			},
		},
		{
			ID:            "qwen2.5-ultra-extended",
			DisplayName:   "Qwen 2.5 Ultra Extended",
			Tags:          []string{"very long conversations", "maximum context", "extended sessions"},
			SpeedRating:   2,
			QualityRating: 5,
			Footprint:     Footprint{Size: "4.7GB", RAM: "~6-8GB"},
			Params: map[string]any{
				ParamContextWindow: 32768,
				ParamTemperature:   0.8,
				ParamSystemPrompt:  "You are a premium English tutor with exceptional memory and context awareness. Remember details from throughout our entire conversation. Provide sophisticated, contextual responses.",
			},
		},
		{
			ID:            "llama3.1:8b",
			DisplayName:   "Llama 3.1 8B",
			Tags:          []string{"premium conversations", "deep analysis", "maximum quality"},
			SpeedRating:   2,
			QualityRating: 5,
			Footprint:     Footprint{Size: "4.9GB", RAM: "~7-9GB"},
			Params: map[string]any{
				ParamContextWindow: 131072,
				ParamTemperature:   0.9,
				ParamSystemPrompt:  "You are a world-class English conversation partner and tutor. Provide the highest quality dialogue with perfect grammar awareness and cultural context.",
			},
		},
	}
}

// DefaultSpeech returns the built-in speech engine table.
func DefaultSpeech() []Descriptor {
	kokoro := func(id, name, voice, lang string) Descriptor {
		return Descriptor{
			ID:            id,
			DisplayName:   name,
			Tags:          []string{"neural", lang},
			SpeedRating:   3,
			QualityRating: 5,
			Footprint:     Footprint{Size: "330MB", RAM: "~1-2GB"},
			Params: map[string]any{
				ParamVoice:    voice,
				ParamLanguage: lang,
			},
		}
	}

	return []Descriptor{
		{
			ID:            "system",
			DisplayName:   "System TTS (espeak-ng)",
			Tags:          []string{"system voices", "cross-platform", "lightweight"},
			SpeedRating:   5,
			QualityRating: 2,
			Footprint:     Footprint{Size: "5MB", RAM: "~50MB"},
			Params: map[string]any{
				ParamVoice: "en-us",
				"rate":     180,
			},
		},
		kokoro("kokoro_en_us_male", "Kokoro Neural TTS (American English Male)", "am_michael", "en-US"),
		kokoro("kokoro_en_us_female_heart", "Kokoro Neural TTS (American English Female - Heart)", "af_heart", "en-US"),
		kokoro("kokoro_en_us_female_bella", "Kokoro Neural TTS (American English Female - Bella)", "af_bella", "en-US"),
		kokoro("kokoro_en_gb_male", "Kokoro Neural TTS (British English Male)", "bm_lewis", "en-GB"),
		kokoro("kokoro_en_gb_female", "Kokoro Neural TTS (British English Female)", "bf_emma", "en-GB"),
		kokoro("kokoro_pt_br", "Kokoro Neural TTS (Portuguese Brazilian)", "pf_dora", "pt-BR"),
		{
			ID:            "cloud",
			DisplayName:   "Cloud TTS",
			Tags:          []string{"cloud", "neural", "multilingual"},
			SpeedRating:   3,
			QualityRating: 4,
			Footprint:     Footprint{Size: "n/a", RAM: "n/a"},
			Params: map[string]any{
				ParamVoice: "alloy",
			},
		},
	}
}

// DefaultLanguages maps a language hint to the preferred speech engine.
func DefaultLanguages() map[string]string {
	return map[string]string{
		"en-US": "kokoro_en_us_male",
		"en-GB": "kokoro_en_gb_female",
		"pt-BR": "kokoro_pt_br",
		"ja":    "kokoro_ja",
	}
}
