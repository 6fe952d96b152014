package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	dealdomain "dealsync-backend/internal/deal/domain"
	"dealsync-backend/internal/deal/repository"
	emaildomain "dealsync-backend/internal/email/domain"
)

const (
	urgencyHighDays   = 3
	urgencyMediumDays = 14
)

// DealRef identifies the deal a reconciliation wrote, and whether the row was
// freshly created.
type DealRef struct {
	DealID  string
	Created bool
}

// Reconciler turns one extraction result into a create-or-update of a deal
// plus a full regeneration of its email-sourced reminder set.
type Reconciler interface {
	// Reconcile upserts the deal for (userID, message thread) from the
	// extraction. A nil ref with nil error means the extraction was not a
	// deal and nothing was written.
	Reconcile(ctx context.Context, extraction *dealdomain.Extraction, meta *dealdomain.CallMetadata, msg *emaildomain.Message, userID string) (*DealRef, error)
}

type reconciler struct {
	deals       repository.DealRepository
	reminders   repository.ReminderRepository
	syncLog     repository.SyncLogRepository
	extractions repository.DealExtractionRepository
	now         func() time.Time
}

// NewReconciler creates a new Reconciler backed by the given repositories.
func NewReconciler(deals repository.DealRepository, reminders repository.ReminderRepository, syncLog repository.SyncLogRepository, extractions repository.DealExtractionRepository) Reconciler {
	return &reconciler{
		deals:       deals,
		reminders:   reminders,
		syncLog:     syncLog,
		extractions: extractions,
		now:         time.Now,
	}
}

func (r *reconciler) Reconcile(ctx context.Context, extraction *dealdomain.Extraction, meta *dealdomain.CallMetadata, msg *emaildomain.Message, userID string) (*DealRef, error) {
	if !extraction.IsDeal {
		// Non-deals write nothing at all: no deal, no reminders, no log entry.
		return nil, nil
	}

	now := r.now()
	payload := r.buildPayload(extraction, msg, userID, now)

	var deal *dealdomain.Deal
	created := false
	if msg.ThreadID != "" {
		existing, err := r.deals.FindByUserAndThread(ctx, userID, msg.ThreadID)
		if err != nil {
			return nil, fmt.Errorf("failed to query existing deal: %w", err)
		}
		deal = existing
	}

	if deal == nil {
		deal = payload
		if err := r.deals.Create(ctx, deal); err != nil {
			return nil, fmt.Errorf("failed to insert deal: %w", err)
		}
		created = true
	} else {
		applyPayload(deal, payload)
		if err := r.deals.Update(ctx, deal); err != nil {
			return nil, fmt.Errorf("failed to update deal: %w", err)
		}
	}

	// The deal write is committed at this point. A reminder regeneration
	// failure leaves the deal in place and is logged, not surfaced.
	if err := r.regenerateReminders(ctx, deal, extraction, userID); err != nil {
		log.Printf("[Reconcile] Failed to regenerate reminders for deal %s: %v", deal.ID, err)
	}

	entry := &dealdomain.SyncLogEntry{
		UserID:             userID,
		DealID:             deal.ID,
		EmailThreadID:      deal.EmailThreadID,
		Action:             dealdomain.SyncActionCreated,
		DeliverableSummary: deal.DeliverableSummary,
	}
	if !created {
		entry.Action = dealdomain.SyncActionUpdated
	}
	if err := r.syncLog.Append(ctx, entry); err != nil {
		log.Printf("[Reconcile] Failed to append sync log for deal %s: %v", deal.ID, err)
	}

	r.appendExtractionAudit(ctx, deal, extraction, meta, userID)

	return &DealRef{DealID: deal.ID, Created: created}, nil
}

// buildPayload derives the full deal row from the extraction, recomputing
// next deadline and urgency from scratch.
func (r *reconciler) buildPayload(extraction *dealdomain.Extraction, msg *emaildomain.Message, userID string, now time.Time) *dealdomain.Deal {
	draftDeadline := parseTimestamp(extraction.DraftDeadline)
	goLiveEnd := parseTimestamp(extraction.GoLiveEnd)
	expectedPayment := parseTimestamp(extraction.ExpectedPaymentDate)
	invoiceSent := parseTimestamp(extraction.InvoiceSentDate)

	candidates := []*time.Time{goLiveEnd, expectedPayment}
	for _, kd := range extraction.KeyDates {
		candidates = append(candidates, parseTimestamp(kd.StartDate), parseTimestamp(kd.EndDate))
	}
	nextDeadline := pickNextDeadline(now, candidates)

	title := msg.Subject
	if extraction.CampaignName != nil && *extraction.CampaignName != "" {
		title = *extraction.CampaignName
	}
	if title == "" {
		title = "New campaign"
	}

	brand := ""
	if extraction.Brand != nil {
		brand = *extraction.Brand
	}
	if brand == "" {
		brand = parseDisplayName(msg.From)
	}
	if brand == "" {
		brand = "Unknown"
	}

	var threadID *string
	if msg.ThreadID != "" {
		id := msg.ThreadID
		threadID = &id
	}

	return &dealdomain.Deal{
		UserID:              userID,
		EmailThreadID:       threadID,
		Title:               title,
		BrandName:           brand,
		DeliverableSummary:  buildDeliverableSummary(extraction),
		DraftDeadline:       draftDeadline,
		LiveDeadline:        goLiveEnd,
		NextDeadline:        nextDeadline,
		UrgencyLevel:        computeUrgencyLevel(now, nextDeadline),
		GoLiveWindow:        buildGoLiveWindow(extraction.GoLiveStart, extraction.GoLiveEnd),
		Exclusivity:         extraction.Exclusivity,
		UsageRights:         extraction.UsageRights,
		PaymentAmount:       extraction.Payment,
		PaymentStatus:       normalizePaymentStatus(extraction.PaymentStatus),
		PaymentTerms:        extraction.PaymentTerms,
		InvoiceSentDate:     invoiceSent,
		ExpectedPaymentDate: expectedPayment,
		CreatedFrom:         dealdomain.ReminderSourceEmail,
	}
}

// applyPayload copies the derived fields onto an existing row, preserving its
// identity and creation metadata.
func applyPayload(deal, payload *dealdomain.Deal) {
	deal.Title = payload.Title
	deal.BrandName = payload.BrandName
	deal.DeliverableSummary = payload.DeliverableSummary
	deal.DraftDeadline = payload.DraftDeadline
	deal.LiveDeadline = payload.LiveDeadline
	deal.NextDeadline = payload.NextDeadline
	deal.UrgencyLevel = payload.UrgencyLevel
	deal.GoLiveWindow = payload.GoLiveWindow
	deal.Exclusivity = payload.Exclusivity
	deal.UsageRights = payload.UsageRights
	deal.PaymentAmount = payload.PaymentAmount
	deal.PaymentStatus = payload.PaymentStatus
	deal.PaymentTerms = payload.PaymentTerms
	deal.InvoiceSentDate = payload.InvoiceSentDate
	deal.ExpectedPaymentDate = payload.ExpectedPaymentDate
}

// regenerateReminders deletes every email-sourced reminder for the deal and
// rebuilds the set from the extraction, preserving array order. The set is
// never partially merged.
func (r *reconciler) regenerateReminders(ctx context.Context, deal *dealdomain.Deal, extraction *dealdomain.Extraction, userID string) error {
	if err := r.reminders.DeleteByDealAndSource(ctx, deal.ID, dealdomain.ReminderSourceEmail); err != nil {
		return fmt.Errorf("failed to clear reminders: %w", err)
	}

	var reminders []dealdomain.Reminder
	index := 0
	add := func(t dealdomain.ReminderType, text string, dueAt *time.Time) {
		reminders = append(reminders, dealdomain.Reminder{
			DealID:     deal.ID,
			UserID:     userID,
			Source:     dealdomain.ReminderSourceEmail,
			Type:       t,
			Text:       text,
			DueAt:      dueAt,
			OrderIndex: index,
		})
		index++
	}

	for _, action := range extraction.RequiredActions {
		add(dealdomain.ReminderDo, actionText(action), nil)
	}
	for _, avoid := range extraction.MustAvoids {
		add(dealdomain.ReminderDont, actionText(avoid), nil)
	}
	for _, d := range extraction.Deliverables {
		add(dealdomain.ReminderDeliverable, deliverableText(d), parseTimestamp(d.DueDate))
	}

	if err := r.reminders.CreateBatch(ctx, reminders); err != nil {
		return fmt.Errorf("failed to insert reminders: %w", err)
	}
	return nil
}

func (r *reconciler) appendExtractionAudit(ctx context.Context, deal *dealdomain.Deal, extraction *dealdomain.Extraction, meta *dealdomain.CallMetadata, userID string) {
	if meta == nil {
		return
	}
	raw, err := json.Marshal(extraction)
	if err != nil {
		log.Printf("[Reconcile] Failed to marshal extraction for deal %s: %v", deal.ID, err)
		return
	}
	audit := &dealdomain.DealExtraction{
		DealID:           deal.ID,
		UserID:           userID,
		EmailThreadID:    deal.EmailThreadID,
		Payload:          string(raw),
		Model:            meta.Model,
		LatencyMs:        meta.Latency.Milliseconds(),
		RetryCount:       meta.RetryCount,
		PromptTokens:     meta.PromptTokens,
		CompletionTokens: meta.CompletionTokens,
	}
	if err := r.extractions.Append(ctx, audit); err != nil {
		log.Printf("[Reconcile] Failed to store extraction audit for deal %s: %v", deal.ID, err)
	}
}

// actionText joins an action's name and description into one reminder line.
func actionText(action dealdomain.Action) string {
	if action.Description != nil && *action.Description != "" {
		return action.Name + ": " + *action.Description
	}
	return action.Name
}

// deliverableText builds a reminder line like "2x INSTAGRAM REEL (due 2026-03-02)".
func deliverableText(d dealdomain.Deliverable) string {
	var b strings.Builder
	if d.Quantity != nil && *d.Quantity > 0 {
		fmt.Fprintf(&b, "%dx ", *d.Quantity)
	}
	label := ""
	if d.Platform != nil && *d.Platform != "" {
		label = *d.Platform
	}
	if d.Type != nil && *d.Type != "" {
		if label != "" {
			label += " "
		}
		label += *d.Type
	}
	if label == "" {
		label = "Deliverable"
	}
	b.WriteString(label)
	if due := parseTimestamp(d.DueDate); due != nil {
		fmt.Fprintf(&b, " (due %s)", due.Format("2006-01-02"))
	}
	return b.String()
}

// parseTimestamp normalizes a model-supplied date string, tolerating both
// full timestamps and date-only values. Unparseable values become nil.
func parseTimestamp(value *string) *time.Time {
	if value == nil || *value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, *value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// pickNextDeadline returns the earliest candidate at or after now; if none
// are in the future, the earliest overall; nil when nothing parsed.
func pickNextDeadline(now time.Time, candidates []*time.Time) *time.Time {
	var parsed []time.Time
	for _, c := range candidates {
		if c != nil {
			parsed = append(parsed, *c)
		}
	}
	if len(parsed) == 0 {
		return nil
	}
	sort.Slice(parsed, func(i, j int) bool { return parsed[i].Before(parsed[j]) })
	for _, t := range parsed {
		if !t.Before(now) {
			u := t
			return &u
		}
	}
	earliest := parsed[0]
	return &earliest
}

// computeUrgencyLevel recomputes urgency fully from the next deadline; it is
// never incrementally adjusted.
func computeUrgencyLevel(now time.Time, nextDeadline *time.Time) dealdomain.UrgencyLevel {
	if nextDeadline == nil {
		return dealdomain.UrgencyLow
	}
	days := nextDeadline.Sub(now).Hours() / 24
	if days <= urgencyHighDays {
		return dealdomain.UrgencyHigh
	}
	if days <= urgencyMediumDays {
		return dealdomain.UrgencyMedium
	}
	return dealdomain.UrgencyLow
}

// normalizePaymentStatus maps free-form wording into the app's enum values.
func normalizePaymentStatus(status *string) dealdomain.PaymentStatus {
	if status == nil {
		return dealdomain.PaymentPending
	}
	normalized := strings.ToLower(strings.TrimSpace(*status))
	switch {
	case normalized == "":
		return dealdomain.PaymentPending
	case strings.Contains(normalized, "paid"):
		return dealdomain.PaymentPaid
	case strings.Contains(normalized, "late"), strings.Contains(normalized, "overdue"):
		return dealdomain.PaymentLate
	default:
		return dealdomain.PaymentPending
	}
}

// buildDeliverableSummary prefers the extraction's notes, then the first few
// required actions, then a generic marker.
func buildDeliverableSummary(extraction *dealdomain.Extraction) string {
	if extraction.Notes != nil && *extraction.Notes != "" {
		return *extraction.Notes
	}
	var names []string
	for _, action := range extraction.RequiredActions {
		if action.Name == "" {
			continue
		}
		names = append(names, action.Name)
		if len(names) == 3 {
			break
		}
	}
	if len(names) > 0 {
		return "Required actions: " + strings.Join(names, ", ")
	}
	return "Imported from email"
}

// buildGoLiveWindow renders the go-live window as a display string.
func buildGoLiveWindow(start, end *string) *string {
	var s string
	switch {
	case start != nil && *start != "" && end != nil && *end != "":
		s = *start + " - " + *end
	case start != nil && *start != "":
		s = "Starts " + *start
	case end != nil && *end != "":
		s = "Ends " + *end
	default:
		return nil
	}
	return &s
}

// parseDisplayName pulls a readable name out of a From header.
func parseDisplayName(from string) string {
	if idx := strings.Index(from, "<"); idx > 0 {
		name := strings.TrimSpace(strings.ReplaceAll(from[:idx], `"`, ""))
		if name != "" {
			return name
		}
	}
	email := strings.Trim(strings.TrimSpace(from), "<>")
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
