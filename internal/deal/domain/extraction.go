package domain

import "time"

// Extraction is the structured payload returned by the inference call for a
// campaign email. Date fields are kept as the model's raw ISO strings; the
// reconciler normalizes them, tolerating values that fail to parse.
type Extraction struct {
	IsDeal              bool          `json:"isDeal"`
	Reason              *string       `json:"reason"`
	CampaignName        *string       `json:"campaignName"`
	Brand               *string       `json:"brand"`
	DraftRequired       *string       `json:"draftRequired"`
	DraftDeadline       *string       `json:"draftDeadline"`
	Exclusivity         *string       `json:"exclusivity"`
	UsageRights         *string       `json:"usageRights"`
	GoLiveStart         *string       `json:"goLiveStart"`
	GoLiveEnd           *string       `json:"goLiveEnd"`
	Payment             *float64      `json:"payment"`
	PaymentStatus       *string       `json:"paymentStatus"`
	PaymentTerms        *string       `json:"paymentTerms"`
	InvoiceSentDate     *string       `json:"invoiceSentDate"`
	ExpectedPaymentDate *string       `json:"expectedPaymentDate"`
	Deliverables        []Deliverable `json:"deliverables"`
	KeyDates            []KeyDate     `json:"keyDates"`
	RequiredActions     []Action      `json:"requiredActions"`
	MustAvoids          []Action      `json:"mustAvoids"`
	Notes               *string       `json:"notes"`
}

// Deliverable is one piece of sponsored content the deal requires.
type Deliverable struct {
	Platform     *string `json:"platform"`
	Type         *string `json:"deliverableType"`
	Quantity     *int    `json:"quantity"`
	DueDate      *string `json:"dueDate"`
	Requirements *string `json:"requirements"`
}

// KeyDate is a named date or date range mentioned in the email.
type KeyDate struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	StartDate   *string `json:"startDate"`
	EndDate     *string `json:"endDate"`
}

// Action is a required step or a thing to avoid, in the email's own order.
type Action struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// CallMetadata describes one inference call, for the audit trail.
type CallMetadata struct {
	Model            string
	Latency          time.Duration
	RetryCount       int
	PromptTokens     int
	CompletionTokens int
}
