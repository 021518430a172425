package main

import (
	"net/http"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tobyh/chatpad/internal/config"
	"github.com/tobyh/chatpad/internal/proxy"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()

	// Without a key the proxy still serves, rejecting each completion with
	// a descriptive error, so a misconfiguration is visible in the chat.
	var llm llms.Model
	if cfg.OpenAIKey != "" {
		opts := []openai.Option{
			openai.WithToken(cfg.OpenAIKey),
			openai.WithModel(cfg.Model),
		}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		client, err := openai.New(opts...)
		if err != nil {
			logger.Fatal("failed to initialize OpenAI client", zap.Error(err))
		}
		llm = client
	} else {
		logger.Warn("OPENAI_API_KEY is not set; completions will fail until it is configured")
	}

	handler := proxy.New(llm, logger)
	http.HandleFunc("/chat-completion", handler.ChatCompletion)

	logger.Info("starting completion proxy", zap.String("addr", cfg.ProxyAddr), zap.String("model", cfg.Model))
	if err := http.ListenAndServe(cfg.ProxyAddr, nil); err != nil {
		logger.Fatal("failed to start proxy", zap.Error(err))
	}
}
