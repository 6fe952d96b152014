package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	dealdomain "dealsync-backend/internal/deal/domain"
	emaildomain "dealsync-backend/internal/email/domain"
)

// --- Mock repositories ---

type mockDealRepo struct {
	deals   map[string]*dealdomain.Deal // keyed by userID+"/"+threadID
	nextID  int
	creates int
	updates int
}

func newMockDealRepo() *mockDealRepo {
	return &mockDealRepo{deals: make(map[string]*dealdomain.Deal), nextID: 1}
}

func (m *mockDealRepo) key(userID string, threadID *string) string {
	if threadID == nil {
		return userID + "/"
	}
	return userID + "/" + *threadID
}

func (m *mockDealRepo) FindByUserAndThread(_ context.Context, userID, threadID string) (*dealdomain.Deal, error) {
	deal, ok := m.deals[userID+"/"+threadID]
	if !ok {
		return nil, nil
	}
	copied := *deal
	return &copied, nil
}

func (m *mockDealRepo) Create(_ context.Context, deal *dealdomain.Deal) error {
	deal.ID = string(rune('A' + m.nextID))
	m.nextID++
	m.creates++
	copied := *deal
	m.deals[m.key(deal.UserID, deal.EmailThreadID)+deal.ID] = &copied
	if deal.EmailThreadID != nil {
		m.deals[deal.UserID+"/"+*deal.EmailThreadID] = &copied
	}
	return nil
}

func (m *mockDealRepo) Update(_ context.Context, deal *dealdomain.Deal) error {
	m.updates++
	copied := *deal
	if deal.EmailThreadID != nil {
		m.deals[deal.UserID+"/"+*deal.EmailThreadID] = &copied
	}
	return nil
}

type mockReminderRepo struct {
	byDeal     map[string][]dealdomain.Reminder
	failCreate bool
}

func newMockReminderRepo() *mockReminderRepo {
	return &mockReminderRepo{byDeal: make(map[string][]dealdomain.Reminder)}
}

func (m *mockReminderRepo) DeleteByDealAndSource(_ context.Context, dealID, source string) error {
	var kept []dealdomain.Reminder
	for _, r := range m.byDeal[dealID] {
		if r.Source != source {
			kept = append(kept, r)
		}
	}
	m.byDeal[dealID] = kept
	return nil
}

func (m *mockReminderRepo) CreateBatch(_ context.Context, reminders []dealdomain.Reminder) error {
	if m.failCreate {
		return errors.New("insert failed")
	}
	if len(reminders) == 0 {
		return nil
	}
	dealID := reminders[0].DealID
	m.byDeal[dealID] = append(m.byDeal[dealID], reminders...)
	return nil
}

func (m *mockReminderRepo) CountByDealAndSource(_ context.Context, dealID, source string) (int64, error) {
	var count int64
	for _, r := range m.byDeal[dealID] {
		if r.Source == source {
			count++
		}
	}
	return count, nil
}

type mockSyncLogRepo struct {
	entries []dealdomain.SyncLogEntry
}

func (m *mockSyncLogRepo) Append(_ context.Context, entry *dealdomain.SyncLogEntry) error {
	m.entries = append(m.entries, *entry)
	return nil
}

type mockExtractionRepo struct {
	entries []dealdomain.DealExtraction
}

func (m *mockExtractionRepo) Append(_ context.Context, extraction *dealdomain.DealExtraction) error {
	m.entries = append(m.entries, *extraction)
	return nil
}

// --- Helpers ---

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestReconciler(deals *mockDealRepo, reminders *mockReminderRepo, syncLog *mockSyncLogRepo, extractions *mockExtractionRepo) *reconciler {
	return &reconciler{
		deals:       deals,
		reminders:   reminders,
		syncLog:     syncLog,
		extractions: extractions,
		now:         func() time.Time { return testNow },
	}
}

func campaignExtraction() *dealdomain.Extraction {
	return &dealdomain.Extraction{
		IsDeal:       true,
		CampaignName: strPtr("Spring Launch"),
		Brand:        strPtr("Acme"),
		GoLiveEnd:    strPtr(testNow.Add(10 * 24 * time.Hour).Format(time.RFC3339)),
		Deliverables: []dealdomain.Deliverable{
			{Platform: strPtr("INSTAGRAM"), Type: strPtr("REEL"), Quantity: intPtr(2), DueDate: strPtr("2026-03-05")},
		},
		RequiredActions: []dealdomain.Action{
			{Name: "Send draft", Description: strPtr("share preview link")},
		},
		MustAvoids: []dealdomain.Action{
			{Name: "No competitor mentions"},
		},
	}
}

func campaignMessage() *emaildomain.Message {
	return &emaildomain.Message{
		ID:       "msg-1",
		ThreadID: "thread-1",
		Subject:  "Spring collab",
		From:     `"Acme Partnerships" <partners@acme.com>`,
		BodyText: "hello",
	}
}

// --- Tests ---

func TestReconcileCreatesDealWithReminders(t *testing.T) {
	deals := newMockDealRepo()
	reminders := newMockReminderRepo()
	syncLog := &mockSyncLogRepo{}
	extractions := &mockExtractionRepo{}
	r := newTestReconciler(deals, reminders, syncLog, extractions)

	ref, err := r.Reconcile(context.Background(), campaignExtraction(), &dealdomain.CallMetadata{Model: "gpt-4o-mini"}, campaignMessage(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref == nil || !ref.Created {
		t.Fatalf("expected a freshly created deal, got %+v", ref)
	}
	if deals.creates != 1 {
		t.Errorf("expected 1 create, got %d", deals.creates)
	}

	set := reminders.byDeal[ref.DealID]
	if len(set) != 3 {
		t.Fatalf("expected 3 reminders, got %d", len(set))
	}
	// Order: required actions, must-avoids, deliverables; indexes preserved.
	wantTypes := []dealdomain.ReminderType{dealdomain.ReminderDo, dealdomain.ReminderDont, dealdomain.ReminderDeliverable}
	for i, rem := range set {
		if rem.Type != wantTypes[i] {
			t.Errorf("reminder %d: type = %s, want %s", i, rem.Type, wantTypes[i])
		}
		if rem.OrderIndex != i {
			t.Errorf("reminder %d: order index = %d", i, rem.OrderIndex)
		}
	}
	if set[2].Text != "2x INSTAGRAM REEL (due 2026-03-05)" {
		t.Errorf("deliverable text = %q", set[2].Text)
	}
	if set[2].DueAt == nil {
		t.Error("deliverable reminder lost its due date")
	}

	if len(syncLog.entries) != 1 || syncLog.entries[0].Action != dealdomain.SyncActionCreated {
		t.Errorf("sync log = %+v", syncLog.entries)
	}
	if len(extractions.entries) != 1 {
		t.Errorf("expected 1 extraction audit row, got %d", len(extractions.entries))
	}
}

func TestReconcileIsIdempotentPerThread(t *testing.T) {
	deals := newMockDealRepo()
	reminders := newMockReminderRepo()
	syncLog := &mockSyncLogRepo{}
	r := newTestReconciler(deals, reminders, syncLog, &mockExtractionRepo{})

	first, err := r.Reconcile(context.Background(), campaignExtraction(), nil, campaignMessage(), "user-1")
	if err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	count1, _ := reminders.CountByDealAndSource(context.Background(), first.DealID, dealdomain.ReminderSourceEmail)

	second, err := r.Reconcile(context.Background(), campaignExtraction(), nil, campaignMessage(), "user-1")
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if second.Created {
		t.Error("second reconcile must update, not create")
	}
	if second.DealID != first.DealID {
		t.Errorf("deal id changed across reconciles: %s vs %s", first.DealID, second.DealID)
	}
	if deals.creates != 1 || deals.updates != 1 {
		t.Errorf("creates=%d updates=%d, want 1 and 1", deals.creates, deals.updates)
	}

	count2, _ := reminders.CountByDealAndSource(context.Background(), first.DealID, dealdomain.ReminderSourceEmail)
	if count2 != count1 {
		t.Errorf("reminder count changed from %d to %d; regeneration must not duplicate", count1, count2)
	}
	if syncLog.entries[1].Action != dealdomain.SyncActionUpdated {
		t.Errorf("second sync log action = %s", syncLog.entries[1].Action)
	}
}

func TestReconcileSuppressesNonDeals(t *testing.T) {
	deals := newMockDealRepo()
	reminders := newMockReminderRepo()
	syncLog := &mockSyncLogRepo{}
	extractions := &mockExtractionRepo{}
	r := newTestReconciler(deals, reminders, syncLog, extractions)

	extraction := campaignExtraction()
	extraction.IsDeal = false

	ref, err := r.Reconcile(context.Background(), extraction, &dealdomain.CallMetadata{}, campaignMessage(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref != nil {
		t.Fatalf("expected nil ref for non-deal, got %+v", ref)
	}
	if deals.creates != 0 || deals.updates != 0 || len(syncLog.entries) != 0 || len(extractions.entries) != 0 {
		t.Error("non-deal extraction must write nothing")
	}
}

func TestReconcileWithoutThreadAlwaysCreates(t *testing.T) {
	deals := newMockDealRepo()
	r := newTestReconciler(deals, newMockReminderRepo(), &mockSyncLogRepo{}, &mockExtractionRepo{})

	msg := campaignMessage()
	msg.ThreadID = ""

	for i := 0; i < 2; i++ {
		ref, err := r.Reconcile(context.Background(), campaignExtraction(), nil, msg, "user-1")
		if err != nil {
			t.Fatalf("reconcile %d: %v", i, err)
		}
		if !ref.Created {
			t.Errorf("reconcile %d: expected create without thread id", i)
		}
	}
	if deals.creates != 2 {
		t.Errorf("expected 2 creates, got %d", deals.creates)
	}
}

func TestReconcileReminderFailureDoesNotSurface(t *testing.T) {
	deals := newMockDealRepo()
	reminders := newMockReminderRepo()
	reminders.failCreate = true
	syncLog := &mockSyncLogRepo{}
	r := newTestReconciler(deals, reminders, syncLog, &mockExtractionRepo{})

	ref, err := r.Reconcile(context.Background(), campaignExtraction(), nil, campaignMessage(), "user-1")
	if err != nil {
		t.Fatalf("reminder failure must not surface: %v", err)
	}
	if ref == nil || deals.creates != 1 {
		t.Fatal("deal write must stay committed despite reminder failure")
	}
	if len(syncLog.entries) != 1 {
		t.Errorf("sync log entries = %d", len(syncLog.entries))
	}
}

func TestComputeUrgencyLevel(t *testing.T) {
	cases := []struct {
		name string
		next *time.Time
		want dealdomain.UrgencyLevel
	}{
		{"two days out", timePtr(testNow.Add(2 * 24 * time.Hour)), dealdomain.UrgencyHigh},
		{"ten days out", timePtr(testNow.Add(10 * 24 * time.Hour)), dealdomain.UrgencyMedium},
		{"thirty days out", timePtr(testNow.Add(30 * 24 * time.Hour)), dealdomain.UrgencyLow},
		{"no deadline", nil, dealdomain.UrgencyLow},
	}
	for _, tc := range cases {
		if got := computeUrgencyLevel(testNow, tc.next); got != tc.want {
			t.Errorf("%s: urgency = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestPickNextDeadline(t *testing.T) {
	past := testNow.Add(-48 * time.Hour)
	older := testNow.Add(-96 * time.Hour)
	soon := testNow.Add(24 * time.Hour)
	later := testNow.Add(72 * time.Hour)

	got := pickNextDeadline(testNow, []*time.Time{&later, &past, &soon})
	if got == nil || !got.Equal(soon) {
		t.Errorf("expected earliest future %v, got %v", soon, got)
	}

	got = pickNextDeadline(testNow, []*time.Time{&past, &older})
	if got == nil || !got.Equal(older) {
		t.Errorf("expected earliest overall %v, got %v", older, got)
	}

	if got = pickNextDeadline(testNow, []*time.Time{nil, nil}); got != nil {
		t.Errorf("expected nil for no parseable dates, got %v", got)
	}
}

func TestUrgencyFromUnparseableDates(t *testing.T) {
	extraction := campaignExtraction()
	extraction.GoLiveEnd = strPtr("next week sometime")
	extraction.Deliverables = nil
	extraction.KeyDates = nil

	deals := newMockDealRepo()
	r := newTestReconciler(deals, newMockReminderRepo(), &mockSyncLogRepo{}, &mockExtractionRepo{})
	ref, err := r.Reconcile(context.Background(), extraction, nil, campaignMessage(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	deal := deals.deals["user-1/thread-1"]
	_ = ref
	if deal.NextDeadline != nil {
		t.Errorf("expected nil next deadline, got %v", deal.NextDeadline)
	}
	if deal.UrgencyLevel != dealdomain.UrgencyLow {
		t.Errorf("urgency = %s, want LOW", deal.UrgencyLevel)
	}
}

func TestGoLiveStartFeedsWindowNotDeadline(t *testing.T) {
	start := testNow.Add(2 * 24 * time.Hour)
	end := testNow.Add(20 * 24 * time.Hour)

	extraction := campaignExtraction()
	extraction.GoLiveStart = strPtr(start.Format(time.RFC3339))
	extraction.GoLiveEnd = strPtr(end.Format(time.RFC3339))
	extraction.Deliverables = nil
	extraction.KeyDates = nil

	deals := newMockDealRepo()
	r := newTestReconciler(deals, newMockReminderRepo(), &mockSyncLogRepo{}, &mockExtractionRepo{})
	if _, err := r.Reconcile(context.Background(), extraction, nil, campaignMessage(), "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deal := deals.deals["user-1/thread-1"]
	// The window start is display-only; the deadline comes from the end date.
	if deal.NextDeadline == nil || !deal.NextDeadline.Equal(end) {
		t.Errorf("next deadline = %v, want go-live end %v", deal.NextDeadline, end)
	}
	if deal.UrgencyLevel != dealdomain.UrgencyLow {
		t.Errorf("urgency = %s, want LOW for a deadline 20 days out", deal.UrgencyLevel)
	}
	if deal.GoLiveWindow == nil || *deal.GoLiveWindow != *extraction.GoLiveStart+" - "+*extraction.GoLiveEnd {
		t.Errorf("go-live window = %v", deal.GoLiveWindow)
	}
}

func TestParseDisplayName(t *testing.T) {
	cases := []struct {
		from string
		want string
	}{
		{`"Acme Partnerships" <partners@acme.com>`, "Acme Partnerships"},
		{"partners@acme.com", "partners"},
		{"Jordan <j@x.io>", "Jordan"},
	}
	for _, tc := range cases {
		if got := parseDisplayName(tc.from); got != tc.want {
			t.Errorf("parseDisplayName(%q) = %q, want %q", tc.from, got, tc.want)
		}
	}
}

func TestNormalizePaymentStatus(t *testing.T) {
	cases := []struct {
		in   *string
		want dealdomain.PaymentStatus
	}{
		{nil, dealdomain.PaymentPending},
		{strPtr("Paid in full"), dealdomain.PaymentPaid},
		{strPtr("overdue"), dealdomain.PaymentLate},
		{strPtr("net 30"), dealdomain.PaymentPending},
	}
	for _, tc := range cases {
		if got := normalizePaymentStatus(tc.in); got != tc.want {
			t.Errorf("normalizePaymentStatus(%v) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func timePtr(t time.Time) *time.Time { return &t }
