package claim

import "time"

// Kind classifies a test case by expected remote behavior.
type Kind string

const (
	// KindPositive marks a test case the remote API is expected to accept.
	KindPositive Kind = "positive"
	// KindNegative marks a test case the remote API is expected to reject.
	KindNegative Kind = "negative"
)

// UsageMode selects the submission mode of the generated claim.
type UsageMode string

const (
	UseClaim            UsageMode = "claim"
	UsePreauthorization UsageMode = "preauthorization"
	UsePreauthClaim     UsageMode = "preauth-claim"
	UseRelated          UsageMode = "related"
)

// SubType distinguishes inpatient from outpatient claims.
type SubType string

const (
	SubTypeInpatient  SubType = "inpatient"
	SubTypeOutpatient SubType = "outpatient"
)

// Money is an amount in a single currency.
type Money struct {
	Value    float64 `yaml:"value" json:"value"`
	Currency string  `yaml:"currency,omitempty" json:"currency,omitempty"`
}

// Period is a date range. A zero time means the boundary is unset.
type Period struct {
	Start time.Time `yaml:"start,omitempty" json:"start,omitempty"`
	End   time.Time `yaml:"end,omitempty" json:"end,omitempty"`
}

// BillablePeriod is the claim-level billing window plus creation date.
type BillablePeriod struct {
	Start   time.Time `yaml:"start,omitempty" json:"start,omitempty"`
	End     time.Time `yaml:"end,omitempty" json:"end,omitempty"`
	Created time.Time `yaml:"created,omitempty" json:"created,omitempty"`
}

// LineItem is one billable intervention on a test case.
type LineItem struct {
	Sequence      int     `yaml:"sequence" json:"sequence"`
	Code          string  `yaml:"code" json:"code"`
	Display       string  `yaml:"display,omitempty" json:"display,omitempty"`
	Quantity      float64 `yaml:"quantity" json:"quantity"`
	UnitPrice     Money   `yaml:"unit_price" json:"unitPrice"`
	ServicePeriod Period  `yaml:"service_period,omitempty" json:"servicePeriod,omitempty"`
}

// TestCase is a declarative description of one claim scenario. Test cases
// are authored externally and are read-only to the runner.
type TestCase struct {
	Title          string         `yaml:"title" json:"title"`
	Kind           Kind           `yaml:"kind" json:"kind"`
	Patient        string         `yaml:"patient" json:"patient"`
	Provider       string         `yaml:"provider" json:"provider"`
	Practitioner   string         `yaml:"practitioner,omitempty" json:"practitioner,omitempty"`
	LineItems      []LineItem     `yaml:"line_items" json:"lineItems"`
	BillablePeriod BillablePeriod `yaml:"billable_period" json:"billablePeriod"`
	UsageMode      UsageMode      `yaml:"usage_mode" json:"usageMode"`
	SubType        SubType        `yaml:"claim_sub_type" json:"claimSubType"`
	RelatedClaimID string         `yaml:"related_claim_id,omitempty" json:"relatedClaimId,omitempty"`

	// DeclaredTotal, when set, overrides the calculated claim total on the
	// submitted payload. The calculated value is still carried alongside so
	// a caller can offer to discard the override.
	DeclaredTotal *float64 `yaml:"declared_total,omitempty" json:"declaredTotal,omitempty"`

	// BundleOnly payloads omit run-time patient/provider identifiers; the
	// remote side resolves them from the bundle itself.
	BundleOnly bool `yaml:"bundle_only,omitempty" json:"bundleOnly,omitempty"`
}

// SubmittedItem is a line item in wire shape. All dates are formatted
// strings so the payload is stable regardless of source time zones.
type SubmittedItem struct {
	Sequence      int        `json:"sequence"`
	Code          string     `json:"code"`
	Display       string     `json:"display,omitempty"`
	Quantity      float64    `json:"quantity"`
	UnitPrice     Money      `json:"unitPrice"`
	ServicePeriod WirePeriod `json:"servicePeriod"`
	Net           Money      `json:"net"`
}

// WirePeriod is a date range in wire shape. Unset boundaries serialize as
// empty strings rather than being omitted, to keep the wire shape stable.
type WirePeriod struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// WireBillablePeriod is the claim billing window in wire shape.
type WireBillablePeriod struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Created string `json:"created"`
}

// SubmissionPayload is the canonical request body for the remote claims API.
type SubmissionPayload struct {
	Title            string             `json:"title"`
	Test             Kind               `json:"test"`
	Use              UsageMode          `json:"use"`
	ClaimSubType     SubType            `json:"claimSubType"`
	Patient          string             `json:"patient"`
	Provider         string             `json:"provider"`
	Practitioner     string             `json:"practitioner,omitempty"`
	ProductOrService []SubmittedItem    `json:"productOrService"`
	BillablePeriod   WireBillablePeriod `json:"billablePeriod"`
	Total            float64            `json:"total"`
	RelatedClaimID   string             `json:"relatedClaimId,omitempty"`

	// CalculatedTotal is the sum of line item net amounts. It equals Total
	// unless the test case declared a manual override.
	CalculatedTotal float64 `json:"-"`
	// TotalOverridden is true when Total comes from DeclaredTotal.
	TotalOverridden bool `json:"-"`
}
