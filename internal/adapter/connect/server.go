package connect

import (
	"log/slog"
	"net/http"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"rag-chat/internal/adapter/connect/chat"
	"rag-chat/internal/usecase"
)

// SetupConnectHandlers registers all Connect-RPC handlers on the given mux
func SetupConnectHandlers(mux *http.ServeMux, chatUsecase usecase.ChatUsecase, logger *slog.Logger) {
	chatHandler := chat.NewHandler(chatUsecase, logger)
	path, handler := chat.NewChatServiceHandler(chatHandler)
	mux.Handle(path, handler)
	logger.Info("Registered Connect-RPC ChatService", slog.String("path", path))
}

// CreateConnectServer creates an HTTP handler serving Connect-RPC over h2c.
func CreateConnectServer(chatUsecase usecase.ChatUsecase, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/connect/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy","service":"connect-rpc"}`))
	})

	SetupConnectHandlers(mux, chatUsecase, logger)

	// Support HTTP/2 without TLS (h2c) for Connect-RPC streaming
	return h2c.NewHandler(mux, &http2.Server{})
}
