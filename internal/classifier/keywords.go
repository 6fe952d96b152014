package classifier

// Keyword lists are matched against lower-cased subject + body text.

// strongCampaignKeywords almost always indicate sponsorship outreach.
var strongCampaignKeywords = []string{
	"brand deal",
	"sponsorship",
	"sponsored post",
	"paid partnership",
	"paid collaboration",
	"influencer campaign",
	"usage rights",
	"exclusivity",
}

// campaignKeywords are weaker signals that show up in campaign briefs.
var campaignKeywords = []string{
	"collab",
	"collaboration",
	"campaign",
	"partnership",
	"deliverable",
	"deliverables",
	"brief",
	"go live",
	"go-live",
	"draft",
	"rate",
	"content creator",
	"instagram",
	"tiktok",
	"youtube",
	"reel",
	"promo code",
	"affiliate",
}

// negativeKeywords mark newsletters and transactional mail.
var negativeKeywords = []string{
	"unsubscribe",
	"newsletter",
	"order confirmation",
	"your receipt",
	"password reset",
	"verify your email",
	"shipping update",
	"invoice attached",
}
