package main

import (
	"net/http"

	"github.com/tobyh/chatpad/internal/api"
	"github.com/tobyh/chatpad/internal/chat"
	"github.com/tobyh/chatpad/internal/completion"
	"github.com/tobyh/chatpad/internal/config"
	"github.com/tobyh/chatpad/internal/db"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize database",
			zap.Error(err),
			zap.String("dbPath", cfg.DBPath))
	}
	defer database.Close()

	completer := completion.NewClient(cfg.ProxyURL)

	ctrl := chat.NewController(database, completer, &chat.LogNotifier{Logger: logger}, logger)
	if err := ctrl.LoadConversations(); err != nil {
		// The store is reachable (db.New succeeded), so keep serving; the
		// client retries the load on its next request.
		logger.Warn("initial conversation load failed", zap.Error(err))
	}

	handler := api.NewHandler(ctrl, logger)

	http.HandleFunc("/api/message", handler.HandleMessage)
	http.HandleFunc("/api/conversations", handler.Conversations)
	http.HandleFunc("/api/conversations/select", handler.SelectConversation)
	http.HandleFunc("/api/conversations/delete", handler.DeleteConversation)
	http.HandleFunc("/api/messages", handler.GetMessages)

	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	logger.Info("starting chat server", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, nil); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
