package dispatch

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/waflow/server/internal/handoff"
	"github.com/waflow/server/internal/ingest"
	"github.com/waflow/server/internal/rag"
	logx "github.com/waflow/server/pkg/logger"
)

// WebhookConfig carries the Meta webhook credentials.
type WebhookConfig struct {
	VerifyToken string `envconfig:"WHATSAPP_VERIFY_TOKEN" required:"true"`
	AppSecret   string `envconfig:"WHATSAPP_APP_SECRET" required:"true"`
}

// SourceIndexer maintains the indexed knowledge sources of a flow.
type SourceIndexer interface {
	Upsert(ctx context.Context, scope rag.Scope, text string) error
	Delete(ctx context.Context, scope rag.Scope) error
}

// Server exposes the WhatsApp webhook, the agent console endpoints, the
// knowledge source endpoints and the metrics endpoint.
type Server struct {
	dispatcher  *Dispatcher
	arbiter     *handoff.Arbiter
	indexer     SourceIndexer
	verifyToken string
	appSecret   string
}

func NewServer(dispatcher *Dispatcher, arbiter *handoff.Arbiter, indexer SourceIndexer, cfg WebhookConfig) *Server {
	return &Server{
		dispatcher:  dispatcher,
		arbiter:     arbiter,
		indexer:     indexer,
		verifyToken: cfg.VerifyToken,
		appSecret:   cfg.AppSecret,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/webhook", s.verifyWebhook).Methods(http.MethodGet)
	r.HandleFunc("/webhook", s.receiveWebhook).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{bot_id}/{conversation_id}/claim", s.claimConversation).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{bot_id}/{conversation_id}/release", s.releaseConversation).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{bot_id}/{conversation_id}", s.conversationStatus).Methods(http.MethodGet)
	r.HandleFunc("/flows/{flow_id}/sources", s.uploadSource).Methods(http.MethodPost)
	r.HandleFunc("/flows/{flow_id}/sources/{file_id}", s.deleteSource).Methods(http.MethodDelete)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

// verifyWebhook answers Meta's subscription handshake.
func (s *Server) verifyWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == s.verifyToken {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(q.Get("hub.challenge")))
		return
	}
	http.Error(w, "verification failed", http.StatusForbidden)
}

// webhookPayload mirrors the Cloud API delivery shape, reduced to the
// fields the dispatcher consumes.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Metadata struct {
					PhoneNumberID string `json:"phone_number_id"`
				} `json:"metadata"`
				Messages []struct {
					From string `json:"from"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// receiveWebhook authenticates and processes a delivery. Per-message
// failures are logged but the endpoint still returns 200 so Meta does not
// retry the whole batch.
func (s *Server) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read failed", http.StatusBadRequest)
		return
	}

	if !s.validSignature(body, r.Header.Get("X-Hub-Signature-256")) {
		logx.Warn().Msg("webhook signature mismatch")
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	for _, ev := range extractEvents(payload) {
		if err := s.dispatcher.HandleInbound(r.Context(), ev); err != nil {
			logx.Error().Err(err).
				Str("from", ev.From).
				Str("phone_number_id", ev.PhoneNumberID).
				Msg("failed to handle inbound message")
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) validSignature(body []byte, header string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.appSecret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(sig), []byte(want))
}

// extractEvents flattens a delivery into text message events. Non-text
// messages are ignored.
func extractEvents(payload webhookPayload) []InboundEvent {
	var events []InboundEvent
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			phoneNumberID := change.Value.Metadata.PhoneNumberID
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text.Body == "" {
					continue
				}
				events = append(events, InboundEvent{
					From:          msg.From,
					PhoneNumberID: phoneNumberID,
					Text:          msg.Text.Body,
				})
			}
		}
	}
	return events
}

func (s *Server) claimConversation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.arbiter.Claim(r.Context(), vars["bot_id"], vars["conversation_id"]); err != nil {
		logx.Error().Err(err).Msg("failed to claim conversation")
		http.Error(w, "claim failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]bool{"handoff_active": true})
}

func (s *Server) releaseConversation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.arbiter.Release(r.Context(), vars["bot_id"], vars["conversation_id"]); err != nil {
		logx.Error().Err(err).Msg("failed to release conversation")
		http.Error(w, "release failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]bool{"handoff_active": false})
}

func (s *Server) conversationStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	active, err := s.arbiter.Active(r.Context(), vars["bot_id"], vars["conversation_id"])
	if err != nil {
		logx.Error().Err(err).Msg("failed to read conversation status")
		http.Error(w, "status lookup failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]bool{"handoff_active": active})
}

// uploadSource indexes an uploaded knowledge file for a flow. PDF uploads
// are extracted to text first; anything else is indexed as plain text.
func (s *Server) uploadSource(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(20 << 20); err != nil {
		http.Error(w, "malformed upload", http.StatusBadRequest)
		return
	}

	scope := rag.Scope{
		UserID: r.FormValue("user_id"),
		BotID:  r.FormValue("bot_id"),
		FlowID: mux.Vars(r)["flow_id"],
		FileID: r.FormValue("file_id"),
	}
	if scope.UserID == "" || scope.BotID == "" || scope.FileID == "" {
		http.Error(w, "user_id, bot_id and file_id are required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "read failed", http.StatusBadRequest)
		return
	}

	text := string(raw)
	if strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		text, err = ingest.ExtractPDF(bytes.NewReader(raw), int64(len(raw)))
		if err != nil {
			logx.Warn().Err(err).Str("file_id", scope.FileID).Msg("pdf extraction failed")
			http.Error(w, "unreadable pdf", http.StatusBadRequest)
			return
		}
	}

	if err := s.indexer.Upsert(r.Context(), scope, text); err != nil {
		http.Error(w, "indexing failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]string{"file_id": scope.FileID, "status": "indexed"})
}

// deleteSource removes an indexed file from a flow's knowledge base.
func (s *Server) deleteSource(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	scope := rag.Scope{
		UserID: r.URL.Query().Get("user_id"),
		BotID:  r.URL.Query().Get("bot_id"),
		FlowID: vars["flow_id"],
		FileID: vars["file_id"],
	}
	if scope.UserID == "" || scope.BotID == "" {
		http.Error(w, "user_id and bot_id are required", http.StatusBadRequest)
		return
	}

	if err := s.indexer.Delete(r.Context(), scope); err != nil {
		http.Error(w, "delete failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]string{"file_id": scope.FileID, "status": "deleted"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
