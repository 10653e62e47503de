package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"pairchat/internal/model"
	"pairchat/internal/utils/log"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type (
	// Conversations is the conversation store as seen by the HTTP layer.
	Conversations interface {
		OpenOrCreate(ctx context.Context, self, other model.PartyID) (model.ThreadID, error)
		Append(ctx context.Context, id model.ThreadID, sender model.PartyID, content string) (*model.Message, error)
		Read(ctx context.Context, id model.ThreadID, requester model.PartyID, limit, offset int) (*model.Page, error)
		MarkRead(ctx context.Context, id model.ThreadID, reader model.PartyID) (int, error)
		EditMessage(ctx context.Context, id model.ThreadID, editor model.PartyID, messageID, content string) (*model.Message, error)
		DeleteMessage(ctx context.Context, id model.ThreadID, requester model.PartyID, messageID string) error
	}

	// Queue holds events for parties that are offline.
	Queue interface {
		RPush(ctx context.Context, key string, value ...any) error
		LRange(ctx context.Context, key string) ([]string, error)
		Del(ctx context.Context, key string) error
	}

	HttpServer struct {
		addr  string
		store Conversations
		hub   *Hub
	}
)

func NewHttpServer(addr string, store Conversations, hub *Hub) *HttpServer {
	return &HttpServer{
		addr:  addr,
		store: store,
		hub:   hub,
	}
}

func (s *HttpServer) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(loggingMiddleware)

	api := r.NewRoute().Subrouter()
	api.Use(PartyMiddleware)
	api.HandleFunc("/ws", s.hub.HandleInitWS()).Methods(http.MethodGet)
	api.HandleFunc("/threads", s.OpenThread()).Methods(http.MethodPost)
	api.HandleFunc("/threads/{id}/messages", s.ReadMessages()).Methods(http.MethodGet)
	api.HandleFunc("/threads/{id}/messages", s.SendMessage()).Methods(http.MethodPost)
	api.HandleFunc("/threads/{id}/read", s.MarkRead()).Methods(http.MethodPost)
	api.HandleFunc("/threads/{id}/messages/{mid}", s.EditMessage()).Methods(http.MethodPatch)
	api.HandleFunc("/threads/{id}/messages/{mid}", s.DeleteMessage()).Methods(http.MethodDelete)
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *HttpServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.hub.closeAll()
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
