package claim

import (
	"fmt"
	"math"
	"time"
)

// DateFormat is the wire representation for all dates.
const DateFormat = "2006-01-02"

// PerDiemFunc reports whether an intervention code is billed per service
// day rather than flat.
type PerDiemFunc func(code string) bool

// InvalidTestCaseError indicates a test case that can never produce a
// submittable payload. It aborts a run before any network activity.
type InvalidTestCaseError struct {
	Title  string
	Reason string
}

func (e *InvalidTestCaseError) Error() string {
	return fmt.Sprintf("invalid test case %q: %s", e.Title, e.Reason)
}

// Builder materializes submission payloads from test cases. It is
// deterministic and side-effect-free: building the same test case twice
// yields identical payloads.
type Builder struct {
	perDiem PerDiemFunc
}

// NewBuilder creates a payload builder. perDiem classifies intervention
// codes; a nil classifier treats every code as flat-priced.
func NewBuilder(perDiem PerDiemFunc) *Builder {
	if perDiem == nil {
		perDiem = func(string) bool { return false }
	}

	return &Builder{perDiem: perDiem}
}

// Build turns a test case into the canonical submission payload.
func (b *Builder) Build(tc *TestCase) (*SubmissionPayload, error) {
	if len(tc.LineItems) == 0 {
		return nil, &InvalidTestCaseError{Title: tc.Title, Reason: "no line items"}
	}

	// All usage modes require patient and provider identifiers, except
	// bundle-only payloads where the remote side resolves them itself.
	if !tc.BundleOnly {
		if tc.Patient == "" {
			return nil, &InvalidTestCaseError{Title: tc.Title, Reason: "missing patient"}
		}

		if tc.Provider == "" {
			return nil, &InvalidTestCaseError{Title: tc.Title, Reason: "missing provider"}
		}
	}

	items := make([]SubmittedItem, 0, len(tc.LineItems))

	var calculated float64

	for _, li := range tc.LineItems {
		net := b.netAmount(&li)
		calculated += net.Value

		items = append(items, SubmittedItem{
			Sequence:  li.Sequence,
			Code:      li.Code,
			Display:   li.Display,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
			ServicePeriod: WirePeriod{
				Start: FormatDate(li.ServicePeriod.Start),
				End:   FormatDate(li.ServicePeriod.End),
			},
			Net: net,
		})
	}

	payload := &SubmissionPayload{
		Title:            tc.Title,
		Test:             tc.Kind,
		Use:              tc.UsageMode,
		ClaimSubType:     tc.SubType,
		Patient:          tc.Patient,
		Provider:         tc.Provider,
		Practitioner:     tc.Practitioner,
		ProductOrService: items,
		BillablePeriod: WireBillablePeriod{
			Start:   FormatDate(tc.BillablePeriod.Start),
			End:     FormatDate(tc.BillablePeriod.End),
			Created: FormatDate(tc.BillablePeriod.Created),
		},
		Total:           calculated,
		RelatedClaimID:  tc.RelatedClaimID,
		CalculatedTotal: calculated,
	}

	if tc.DeclaredTotal != nil {
		payload.Total = *tc.DeclaredTotal
		payload.TotalOverridden = true
	}

	return payload, nil
}

// netAmount prices a single line item. Per-diem codes are multiplied by
// the billable day count of the service period; everything else is flat.
func (b *Builder) netAmount(li *LineItem) Money {
	net := li.UnitPrice
	if b.perDiem(li.Code) {
		net.Value = li.UnitPrice.Value * float64(BillableDays(li.ServicePeriod))
	}

	return net
}

// BillableDays is the per-diem day count for a service period: the span
// between its endpoints in whole days, rounded up, never less than one.
// A zero-length or unset period still bills a single day so the net
// amount cannot collapse to zero.
func BillableDays(p Period) int {
	if p.Start.IsZero() || p.End.IsZero() {
		return 1
	}

	days := int(math.Ceil(p.End.Sub(p.Start).Hours() / 24))
	if days < 1 {
		return 1
	}

	return days
}

// FormatDate renders a date in wire form. Zero times render as the empty
// string; the field is kept rather than omitted.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.Format(DateFormat)
}
