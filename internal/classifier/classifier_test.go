package classifier

import (
	"testing"

	emaildomain "dealsync-backend/internal/email/domain"
)

func TestClassifyCampaignEmail(t *testing.T) {
	msg := &emaildomain.Message{
		Subject:  "Paid partnership: spring campaign",
		From:     "partners@acme.com",
		BodyText: "We'd love to collab on two Instagram reels. Budget is $1500. Usage rights for 90 days.",
	}
	c := Classify(msg)
	if !c.IsCampaign {
		t.Errorf("expected campaign, got %+v", c)
	}
}

func TestClassifyStrongKeywordWithLowScore(t *testing.T) {
	msg := &emaildomain.Message{
		Subject:  "Sponsorship question",
		From:     "someone@example.com",
		BodyText: "quick note",
	}
	c := Classify(msg)
	if !c.IsCampaign {
		t.Errorf("a strong keyword with positive score should admit: %+v", c)
	}
}

func TestClassifyNewsletter(t *testing.T) {
	msg := &emaildomain.Message{
		Subject:  "Weekly newsletter",
		From:     "no-reply@news.example.com",
		BodyText: "Click unsubscribe to stop receiving this newsletter.",
	}
	c := Classify(msg)
	if c.IsCampaign {
		t.Errorf("expected non-campaign, got %+v", c)
	}
}

func TestClassifyPlainPersonalEmail(t *testing.T) {
	msg := &emaildomain.Message{
		Subject:  "Lunch tomorrow?",
		From:     "friend@example.com",
		BodyText: "Are we still on for noon?",
	}
	c := Classify(msg)
	if c.IsCampaign {
		t.Errorf("expected non-campaign, got %+v", c)
	}
	if c.Reason == "" {
		t.Error("classification must always carry a reason")
	}
}

func TestGateAdmit(t *testing.T) {
	gate := NewGate()
	campaign := &emaildomain.Message{
		ID:       "m1",
		Subject:  "Brand deal for your channel",
		From:     "brand@acme.com",
		BodyText: "Paid collaboration, $2000 for one YouTube integration with exclusivity.",
	}
	if !gate.Admit(campaign) {
		t.Error("expected campaign email to be admitted")
	}
	personal := &emaildomain.Message{
		ID:       "m2",
		Subject:  "hey",
		From:     "pal@example.com",
		BodyText: "call me",
	}
	if gate.Admit(personal) {
		t.Error("expected personal email to be rejected")
	}
}
