package chat

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"rag-chat/internal/domain"
	"rag-chat/internal/infra/logger"
	"rag-chat/internal/usecase"
)

// ChatProcedure is the full RPC path of the streaming chat method.
const ChatProcedure = "/ragchat.v1.ChatService/Chat"

const requestIDHeader = "X-Request-Id"

// ChatRequest is the request message of ChatService.Chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is one streamed event. Kind is "text", "citations" or "error".
// Citations is set on citations events only and is then always an object,
// possibly empty.
type ChatResponse struct {
	Kind      string              `json:"kind"`
	Text      string              `json:"text,omitempty"`
	Citations *domain.CitationMap `json:"citations,omitempty"`
}

// Handler serves ChatService over Connect.
type Handler struct {
	chat   usecase.ChatUsecase
	logger *slog.Logger
}

func NewHandler(chat usecase.ChatUsecase, logger *slog.Logger) *Handler {
	return &Handler{chat: chat, logger: logger}
}

// NewChatServiceHandler returns the path and handler to mount on a mux.
func NewChatServiceHandler(h *Handler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)
	return ChatProcedure, connect.NewServerStreamHandler(ChatProcedure, h.Chat, opts...)
}

// Chat streams the answer events for one message.
func (h *Handler) Chat(
	ctx context.Context,
	req *connect.Request[ChatRequest],
	stream *connect.ServerStream[ChatResponse],
) error {
	message := req.Msg.Message
	if strings.TrimSpace(message) == "" {
		return connect.NewError(connect.CodeInvalidArgument, domain.ErrEmptyQuery)
	}

	if id := req.Header().Get(requestIDHeader); id != "" {
		ctx = logger.WithRequestID(ctx, id)
	}

	events, err := h.chat.Chat(ctx, message)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyQuery) {
			return connect.NewError(connect.CodeInvalidArgument, err)
		}
		h.logger.ErrorContext(ctx, "chat_start_failed", slog.String("error", err.Error()))
		return connect.NewError(connect.CodeInternal, errors.New(usecase.InternalErrorMessage))
	}

	for event := range events {
		if err := stream.Send(convertChatEvent(event)); err != nil {
			h.logger.InfoContext(ctx, "chat_stream_send_failed", slog.String("error", err.Error()))
			return connect.NewError(connect.CodeCanceled, err)
		}
	}
	return nil
}

func convertChatEvent(event usecase.ChatEvent) *ChatResponse {
	resp := &ChatResponse{Kind: string(event.Kind)}
	switch event.Kind {
	case usecase.ChatEventCitations:
		citations := event.Citations
		if citations == nil {
			citations = domain.CitationMap{}
		}
		resp.Citations = &citations
	default:
		resp.Text = strings.ToValidUTF8(event.Text, "")
	}
	return resp
}
