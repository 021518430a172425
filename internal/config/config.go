package config

import "os"

// Config holds settings for both the chat server and the completion proxy.
type Config struct {
	// Chat server
	Addr     string
	DBPath   string
	ProxyURL string

	// Completion proxy
	ProxyAddr     string
	OpenAIKey     string
	OpenAIBaseURL string
	Model         string
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		Addr:     getEnv("CHATPAD_ADDR", ":8100"),
		DBPath:   getEnv("CHATPAD_DB", "chatpad.db"),
		ProxyURL: getEnv("CHATPAD_PROXY_URL", "http://localhost:8101/chat-completion"),

		ProxyAddr:     getEnv("CHATPAD_PROXY_ADDR", ":8101"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		Model:         getEnv("CHATPAD_MODEL", "gpt-4o-mini"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
