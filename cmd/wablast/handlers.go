package main

import (
	"encoding/json"
	"net/http"

	"wablast/internal/constants"
	apperrors "wablast/internal/errors"
	"wablast/internal/models"
	"wablast/internal/validation"
	"wablast/pkg/messaging"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
)

type errorResponse struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.WithError(err).Error("Failed to encode response")
		}
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	s.writeJSON(w, httpStatusFor(code), errorResponse{
		Code:    code,
		Message: clientMessage(err, code),
	})
}

// clientMessage picks the message exposed to API callers. Client-caused
// errors carry their own message; server-side failures stay opaque.
func clientMessage(err error, code apperrors.ErrorCode) string {
	switch code {
	case apperrors.ErrCodeDatabase, apperrors.ErrCodeInternal, apperrors.ErrCodeInvalidConfig:
		return apperrors.GetUserMessage(err)
	}
	if appErr, ok := err.(*apperrors.AppError); ok {
		if appErr.UserMessage != "" {
			return appErr.UserMessage
		}
		return appErr.Message
	}
	return apperrors.GetUserMessage(err)
}

func httpStatusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeMissingFields, apperrors.ErrCodeInvalidInput, apperrors.ErrCodeNoValidRecipients:
		return http.StatusBadRequest
	case apperrors.ErrCodeSessionNotReady:
		return http.StatusConflict
	case apperrors.ErrCodeSessionNotFound, apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeRateLimit:
		return http.StatusTooManyRequests
	case apperrors.ErrCodeMessagingAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":          "ok",
			"active_sessions": len(s.registry.ActiveTenants()),
		})
	}
}

type tenantRequest struct {
	TenantID string `json:"tenantId"`
}

func (s *Server) handleSessionInit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tenantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidInput, "malformed request body"))
			return
		}
		if req.TenantID == "" {
			s.writeError(w, apperrors.New(apperrors.ErrCodeMissingFields, "tenantId is required"))
			return
		}

		status, err := s.registry.InitOrGet(r.Context(), req.TenantID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, status)
	}
}

func (s *Server) handleSessionStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := mux.Vars(r)["tenantId"]

		status, err := s.registry.Status(tenantID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, status)
	}
}

// handleSessionQR renders the pending challenge as a PNG so a browser can
// display it for scanning.
func (s *Server) handleSessionQR() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := mux.Vars(r)["tenantId"]

		challenge, err := s.registry.PendingChallenge(tenantID)
		if err != nil {
			s.writeError(w, err)
			return
		}

		png, err := qrcode.Encode(challenge, qrcode.Medium, constants.DefaultQRCodeSizePx)
		if err != nil {
			s.writeError(w, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to render challenge"))
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		if _, err := w.Write(png); err != nil {
			s.logger.WithError(err).Debug("Failed to write QR response")
		}
	}
}

func (s *Server) handleSessionLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tenantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidInput, "malformed request body"))
			return
		}
		if req.TenantID == "" {
			s.writeError(w, apperrors.New(apperrors.ErrCodeMissingFields, "tenantId is required"))
			return
		}

		if err := s.registry.Logout(r.Context(), req.TenantID); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
	}
}

func (s *Server) handleCampaignSubmit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.CampaignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidInput, "malformed request body"))
			return
		}

		campaign, err := s.dispatcher.Submit(r.Context(), &req)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusAccepted, campaign)
	}
}

func (s *Server) handleCampaignList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := r.URL.Query().Get("tenantId")
		if err := validation.ValidateTenantID(tenantID); err != nil {
			s.writeError(w, err)
			return
		}

		summaries, err := s.dispatcher.ListCampaigns(r.Context(), tenantID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, summaries)
	}
}

func (s *Server) handleCampaignGet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaign, err := s.dispatcher.GetCampaign(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, campaign)
	}
}

func (s *Server) handleCampaignLogs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logs, err := s.dispatcher.GetCampaignLogs(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, logs)
	}
}

type groupCreateRequest struct {
	TenantID string `json:"tenantId"`
	Name     string `json:"name"`
}

func (s *Server) handleGroupCreate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req groupCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidInput, "malformed request body"))
			return
		}

		group, err := s.contacts.CreateGroup(r.Context(), req.TenantID, req.Name)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, group)
	}
}

func (s *Server) handleGroupList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := r.URL.Query().Get("tenantId")
		if err := validation.ValidateTenantID(tenantID); err != nil {
			s.writeError(w, err)
			return
		}

		groups, err := s.contacts.ListGroups(r.Context(), tenantID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, groups)
	}
}

// handleGroupImport accepts either a multipart upload under "file" or a raw
// CSV body.
func (s *Server) handleGroupImport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID := mux.Vars(r)["id"]

		reader := r.Body
		if file, _, err := r.FormFile("file"); err == nil {
			defer file.Close()
			reader = file
		}

		result, err := s.contacts.ImportCSV(r.Context(), groupID, reader)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleBotPause() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := mux.Vars(r)["tenantId"]
		s.responder.Pause(tenantID)
		s.logger.WithField("tenant_id", tenantID).Info("Responder paused")
		s.writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
	}
}

func (s *Server) handleBotResume() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := mux.Vars(r)["tenantId"]
		s.responder.Resume(tenantID)
		s.logger.WithField("tenant_id", tenantID).Info("Responder resumed")
		s.writeJSON(w, http.StatusOK, map[string]bool{"paused": false})
	}
}

func (s *Server) handleBotState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]bool{
			"paused": s.responder.Paused(mux.Vars(r)["tenantId"]),
		})
	}
}

func (s *Server) handleConversation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)

		entries, err := s.responder.Conversation(r.Context(), vars["tenantId"], vars["contactId"])
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, entries)
	}
}

func (s *Server) handleEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.hub.ServeWS(w, r, mux.Vars(r)["tenantId"])
	}
}

// handleGatewayWebhook verifies the HMAC signature and routes the event to
// the registered handler. The gateway gets a 200 even for unknown events so
// it does not retry forever.
func (s *Server) handleGatewayWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := verifySignature(r, s.cfg.Server.WebhookSecret, "X-Webhook-Signature")
		if err != nil {
			s.logger.WithError(err).Warn("Webhook signature verification failed")
			s.writeJSON(w, http.StatusUnauthorized, errorResponse{
				Code:    apperrors.ErrCodeInvalidInput,
				Message: "signature verification failed",
			})
			return
		}

		event, err := messaging.ParseWebhookEvent(body)
		if err != nil {
			s.writeError(w, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "malformed webhook event"))
			return
		}

		if err := s.webhook.Handle(r.Context(), event); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"tenant_id": event.TenantID,
				"event":     event.Event,
			}).Warn("Webhook event handling failed")
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
	}
}
