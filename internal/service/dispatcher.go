package service

import (
	"context"
	"math"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"wablast/internal/broadcast"
	"wablast/internal/constants"
	apperrors "wablast/internal/errors"
	"wablast/internal/models"
	"wablast/internal/security"
	"wablast/internal/validation"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CampaignStore persists campaigns and their append-only send logs.
type CampaignStore interface {
	CreateCampaign(ctx context.Context, c *models.Campaign) error
	AppendCampaignLog(ctx context.Context, entry *models.CampaignLogEntry) error
	CompleteCampaign(ctx context.Context, campaignID string) error
	GetCampaign(ctx context.Context, campaignID string) (*models.Campaign, error)
	ListCampaigns(ctx context.Context, tenantID string) ([]models.CampaignSummary, error)
	GetCampaignLogs(ctx context.Context, campaignID string) ([]models.CampaignLogEntry, error)
}

// RecipientSource resolves a contact group to its ordered phone numbers.
type RecipientSource interface {
	Recipients(ctx context.Context, tenantID, groupID string) ([]string, error)
}

// SessionGateway is the slice of the session registry the dispatcher needs.
type SessionGateway interface {
	IsReady(tenantID string) bool
	Touch(tenantID string)
	Send(ctx context.Context, tenantID, recipient, body, mediaPath string) error
}

// CampaignDispatcher runs bulk sends. Submit validates and records the
// campaign synchronously, then a background goroutine works through the
// recipients one at a time with a randomized delay before each send.
//
// A failed recipient never stops the campaign; every recipient gets exactly
// one log entry, so a completed campaign always has one entry per recipient.
type CampaignDispatcher struct {
	sessions    SessionGateway
	store       CampaignStore
	recipients  RecipientSource
	broadcaster broadcast.Broadcaster
	logger      *logrus.Logger

	minDelay      time.Duration
	delaySpread   time.Duration
	maxRecipients int
	attachmentDir string

	// delayFn picks the pause before each send; tests override it.
	delayFn func(min, max time.Duration) time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// DispatcherOptions carries the dispatcher tunables. Zero values fall back
// to defaults.
type DispatcherOptions struct {
	MinDelay      time.Duration
	DelaySpread   time.Duration
	MaxRecipients int
	AttachmentDir string
}

func NewCampaignDispatcher(sessions SessionGateway, store CampaignStore, recipients RecipientSource, broadcaster broadcast.Broadcaster, logger *logrus.Logger, opts DispatcherOptions) *CampaignDispatcher {
	if opts.MinDelay <= 0 {
		opts.MinDelay = time.Duration(constants.DefaultMinSendDelaySec) * time.Second
	}
	if opts.DelaySpread <= 0 {
		opts.DelaySpread = time.Duration(constants.DefaultDelaySpreadSec) * time.Second
	}
	if opts.MaxRecipients <= 0 {
		opts.MaxRecipients = constants.DefaultMaxRecipients
	}
	if opts.AttachmentDir == "" {
		opts.AttachmentDir = constants.DefaultAttachmentDir
	}
	return &CampaignDispatcher{
		sessions:      sessions,
		store:         store,
		recipients:    recipients,
		broadcaster:   broadcaster,
		logger:        logger,
		minDelay:      opts.MinDelay,
		delaySpread:   opts.DelaySpread,
		maxRecipients: opts.MaxRecipients,
		attachmentDir: opts.AttachmentDir,
		delayFn:       randomDelay,
		stopCh:        make(chan struct{}),
	}
}

func randomDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)+1))
}

// Submit validates the request, records the campaign and kicks off the
// background send loop. It returns as soon as the campaign row exists.
func (d *CampaignDispatcher) Submit(ctx context.Context, req *models.CampaignRequest) (*models.Campaign, error) {
	if req.TenantID == "" || req.Name == "" || req.GroupID == "" || req.Message == "" {
		return nil, apperrors.New(apperrors.ErrCodeMissingFields, "tenantId, name, groupId and message are required")
	}
	if err := validation.ValidateTenantID(req.TenantID); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "invalid tenant ID")
	}
	if err := validation.ValidateCampaignName(req.Name); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "invalid campaign name")
	}
	if err := validation.ValidateMessageBody(req.Message); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "invalid message body")
	}
	if req.AttachmentPath != "" {
		if err := security.ValidateFilePathWithBase(req.AttachmentPath, d.attachmentDir); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "invalid attachment path")
		}
	}

	if !d.sessions.IsReady(req.TenantID) {
		return nil, apperrors.New(apperrors.ErrCodeSessionNotReady, "session is not ready").
			WithContext("tenant_id", req.TenantID)
	}

	candidates, err := d.recipients.Recipients(ctx, req.TenantID, req.GroupID)
	if err != nil {
		return nil, err
	}

	recipients := make([]string, 0, len(candidates))
	for _, phone := range candidates {
		if err := validation.ValidatePhoneNumber(phone); err != nil {
			d.logger.WithFields(logrus.Fields{
				LogFieldTenantID: req.TenantID,
				LogFieldGroupID:  req.GroupID,
			}).Debug("Skipping invalid recipient")
			continue
		}
		recipients = append(recipients, phone)
	}
	if len(recipients) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeNoValidRecipients, "group has no valid recipients").
			WithContext("group_id", req.GroupID)
	}
	if len(recipients) > d.maxRecipients {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "group exceeds maximum recipients").
			WithContext("count", len(recipients)).
			WithContext("max", d.maxRecipients)
	}

	minDelay, maxDelay := d.resolveDelays(req.MinDelaySec, req.MaxDelaySec)

	now := time.Now()
	campaign := &models.Campaign{
		ID:              uuid.NewString(),
		TenantID:        req.TenantID,
		Name:            req.Name,
		GroupID:         req.GroupID,
		Message:         req.Message,
		TotalRecipients: len(recipients),
		Status:          models.CampaignStatusRunning,
		StartedAt:       now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.AttachmentPath != "" {
		// Attachments resolve inside the configured media directory only.
		path := filepath.Join(d.attachmentDir, req.AttachmentPath)
		campaign.AttachmentPath = &path
	}

	if err := d.store.CreateCampaign(ctx, campaign); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabase, "failed to record campaign")
	}

	d.logger.WithFields(logrus.Fields{
		LogFieldTenantID:   campaign.TenantID,
		LogFieldCampaignID: campaign.ID,
		LogFieldCount:      campaign.TotalRecipients,
	}).Info("Campaign accepted")

	d.wg.Add(1)
	go d.run(campaign, recipients, minDelay, maxDelay)

	return campaign, nil
}

// resolveDelays applies defaults: the minimum is at least one second, and an
// unset or inverted maximum becomes min plus the configured spread.
func (d *CampaignDispatcher) resolveDelays(minSec, maxSec int) (time.Duration, time.Duration) {
	min := time.Duration(minSec) * time.Second
	if min < d.minDelay {
		min = d.minDelay
	}
	max := time.Duration(maxSec) * time.Second
	if max < min {
		max = min + d.delaySpread
	}
	return min, max
}

func (d *CampaignDispatcher) run(campaign *models.Campaign, recipients []string, minDelay, maxDelay time.Duration) {
	defer d.wg.Done()

	ctx := context.Background()
	total := len(recipients)
	aborted := ""

	for i, recipient := range recipients {
		if aborted == "" && !d.sessions.IsReady(campaign.TenantID) {
			aborted = "session lost"
		}
		if aborted == "" && !d.pause(minDelay, maxDelay) {
			aborted = "dispatcher stopped"
		}

		var outcome models.SendOutcome
		var errDetail *string
		if aborted != "" {
			// Remaining recipients fail immediately; no delay, one log
			// entry each, so the completed length invariant still holds.
			outcome = models.SendOutcomeFailed
			reason := aborted
			errDetail = &reason
		} else {
			d.sessions.Touch(campaign.TenantID)
			err := d.sessions.Send(ctx, campaign.TenantID, recipient, campaign.Message, attachmentOf(campaign))
			if err != nil {
				outcome = models.SendOutcomeFailed
				detail := err.Error()
				errDetail = &detail
				d.logger.WithError(err).WithFields(logrus.Fields{
					LogFieldCampaignID: campaign.ID,
					LogFieldPosition:   i + 1,
				}).Warn("Campaign send failed")
			} else {
				outcome = models.SendOutcomeSuccess
			}
		}

		entry := &models.CampaignLogEntry{
			CampaignID:  campaign.ID,
			Position:    i + 1,
			Recipient:   recipient,
			Outcome:     outcome,
			ErrorDetail: errDetail,
			CreatedAt:   time.Now(),
		}
		if err := d.store.AppendCampaignLog(ctx, entry); err != nil {
			d.logger.WithError(err).WithFields(logrus.Fields{
				LogFieldCampaignID: campaign.ID,
				LogFieldPosition:   i + 1,
			}).Error("Failed to append campaign log")
		}

		processed := i + 1
		progress := models.SendProgressEvent{
			CampaignID:      campaign.ID,
			Recipient:       recipient,
			Outcome:         outcome,
			Processed:       processed,
			Total:           total,
			PercentComplete: percentComplete(processed, total),
		}
		if errDetail != nil {
			progress.Error = *errDetail
		}
		d.broadcaster.Publish(campaign.TenantID, models.EventSendProgress, progress)
	}

	if err := d.store.CompleteCampaign(ctx, campaign.ID); err != nil {
		d.logger.WithError(err).WithField(LogFieldCampaignID, campaign.ID).Error("Failed to mark campaign completed")
	}

	d.logger.WithFields(logrus.Fields{
		LogFieldTenantID:   campaign.TenantID,
		LogFieldCampaignID: campaign.ID,
		LogFieldCount:      total,
	}).Info("Campaign completed")
}

// pause sleeps a random duration in [min, max]. It returns false when the
// dispatcher is stopping.
func (d *CampaignDispatcher) pause(min, max time.Duration) bool {
	select {
	case <-d.stopCh:
		return false
	default:
	}

	timer := time.NewTimer(d.delayFn(min, max))
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-d.stopCh:
		return false
	}
}

func percentComplete(processed, total int) int {
	return int(math.Round(100 * float64(processed) / float64(total)))
}

func attachmentOf(c *models.Campaign) string {
	if c.AttachmentPath != nil {
		return *c.AttachmentPath
	}
	return ""
}

// GetCampaign returns a campaign by ID.
func (d *CampaignDispatcher) GetCampaign(ctx context.Context, campaignID string) (*models.Campaign, error) {
	campaign, err := d.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabase, "failed to load campaign")
	}
	if campaign == nil {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "campaign not found").
			WithContext("campaign_id", campaignID)
	}
	return campaign, nil
}

// ListCampaigns returns a tenant's campaigns with aggregated outcome counts.
func (d *CampaignDispatcher) ListCampaigns(ctx context.Context, tenantID string) ([]models.CampaignSummary, error) {
	summaries, err := d.store.ListCampaigns(ctx, tenantID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabase, "failed to list campaigns")
	}
	return summaries, nil
}

// GetCampaignLogs returns the per-recipient log in position order.
func (d *CampaignDispatcher) GetCampaignLogs(ctx context.Context, campaignID string) ([]models.CampaignLogEntry, error) {
	if _, err := d.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	logs, err := d.store.GetCampaignLogs(ctx, campaignID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabase, "failed to load campaign logs")
	}
	return logs, nil
}

// Stop signals running campaigns to wind down. Remaining recipients are
// logged as failed so campaigns still complete with full logs.
func (d *CampaignDispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
}

// Wait blocks until all campaign goroutines have finished.
func (d *CampaignDispatcher) Wait() {
	d.wg.Wait()
}
