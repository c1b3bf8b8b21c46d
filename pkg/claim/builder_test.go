package claim

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func perDiemCodes(codes ...string) PerDiemFunc {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}

	return func(code string) bool {
		_, ok := set[code]
		return ok
	}
}

func validCase() *TestCase {
	return &TestCase{
		Title:    "Valid Facility & Tariff",
		Kind:     KindPositive,
		Patient:  "patient-001",
		Provider: "provider-001",
		LineItems: []LineItem{
			{
				Sequence:  1,
				Code:      "SHA-08-005",
				Display:   "General ward per diem",
				Quantity:  1,
				UnitPrice: Money{Value: 10000, Currency: "KES"},
				ServicePeriod: Period{
					Start: date(2025, time.July, 8),
					End:   date(2025, time.July, 10),
				},
			},
		},
		BillablePeriod: BillablePeriod{
			Start:   date(2025, time.July, 8),
			End:     date(2025, time.July, 10),
			Created: date(2025, time.July, 10),
		},
		UsageMode: UseClaim,
		SubType:   SubTypeInpatient,
	}
}

func TestBillableDays(t *testing.T) {
	tests := []struct {
		name     string
		period   Period
		expected int
	}{
		{
			name:     "two day span",
			period:   Period{Start: date(2025, time.July, 8), End: date(2025, time.July, 10)},
			expected: 2,
		},
		{
			name:     "zero length period bills one day",
			period:   Period{Start: date(2025, time.July, 8), End: date(2025, time.July, 8)},
			expected: 1,
		},
		{
			name:     "single day span",
			period:   Period{Start: date(2025, time.July, 8), End: date(2025, time.July, 9)},
			expected: 1,
		},
		{
			name: "partial day rounds up",
			period: Period{
				Start: date(2025, time.July, 8),
				End:   time.Date(2025, time.July, 10, 6, 0, 0, 0, time.UTC),
			},
			expected: 3,
		},
		{
			name:     "unset period bills one day",
			period:   Period{},
			expected: 1,
		},
		{
			name:     "inverted period still bills one day",
			period:   Period{Start: date(2025, time.July, 10), End: date(2025, time.July, 8)},
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BillableDays(tt.period))
		})
	}
}

func TestBuildPerDiemNetAmount(t *testing.T) {
	b := NewBuilder(perDiemCodes("SHA-08-005"))

	payload, err := b.Build(validCase())
	require.NoError(t, err)
	require.Len(t, payload.ProductOrService, 1)

	// 10000 x 2 billable days.
	assert.Equal(t, float64(20000), payload.ProductOrService[0].Net.Value)
	assert.Equal(t, "KES", payload.ProductOrService[0].Net.Currency)
	assert.Equal(t, float64(20000), payload.Total)
	assert.Equal(t, float64(20000), payload.CalculatedTotal)
	assert.False(t, payload.TotalOverridden)
}

func TestBuildFlatNetAmount(t *testing.T) {
	b := NewBuilder(perDiemCodes("SHA-08-005"))

	tc := validCase()
	tc.LineItems[0].Code = "SHA-01-001"

	payload, err := b.Build(tc)
	require.NoError(t, err)
	assert.Equal(t, float64(10000), payload.ProductOrService[0].Net.Value)
	assert.Equal(t, float64(10000), payload.Total)
}

func TestBuildTotalOverride(t *testing.T) {
	b := NewBuilder(perDiemCodes("SHA-08-005"))

	declared := float64(5000)
	tc := validCase()
	tc.DeclaredTotal = &declared

	payload, err := b.Build(tc)
	require.NoError(t, err)

	assert.Equal(t, float64(5000), payload.Total)
	assert.Equal(t, float64(20000), payload.CalculatedTotal)
	assert.True(t, payload.TotalOverridden)
}

func TestBuildDateFormatting(t *testing.T) {
	b := NewBuilder(nil)

	tc := validCase()
	tc.BillablePeriod.Created = time.Time{}
	tc.LineItems[0].ServicePeriod.End = time.Time{}

	payload, err := b.Build(tc)
	require.NoError(t, err)

	assert.Equal(t, "2025-07-08", payload.BillablePeriod.Start)
	assert.Equal(t, "2025-07-10", payload.BillablePeriod.End)
	// Unset dates serialize as empty strings, not omitted fields.
	assert.Equal(t, "", payload.BillablePeriod.Created)
	assert.Equal(t, "", payload.ProductOrService[0].ServicePeriod.End)

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"created":""`)
}

func TestBuildInvalidTestCase(t *testing.T) {
	b := NewBuilder(nil)

	tests := []struct {
		name   string
		mutate func(*TestCase)
		reason string
	}{
		{
			name:   "empty line items",
			mutate: func(tc *TestCase) { tc.LineItems = nil },
			reason: "no line items",
		},
		{
			name:   "missing patient",
			mutate: func(tc *TestCase) { tc.Patient = "" },
			reason: "missing patient",
		},
		{
			name:   "missing provider",
			mutate: func(tc *TestCase) { tc.Provider = "" },
			reason: "missing provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := validCase()
			tt.mutate(tc)

			_, err := b.Build(tc)
			require.Error(t, err)

			var invalid *InvalidTestCaseError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tc.Title, invalid.Title)
			assert.Equal(t, tt.reason, invalid.Reason)
		})
	}
}

func TestBuildBundleOnlySkipsIdentifierChecks(t *testing.T) {
	b := NewBuilder(nil)

	tc := validCase()
	tc.Patient = ""
	tc.Provider = ""
	tc.BundleOnly = true

	payload, err := b.Build(tc)
	require.NoError(t, err)
	assert.Empty(t, payload.Patient)
	assert.Empty(t, payload.Provider)
}

func TestBuildIsDeterministic(t *testing.T) {
	b := NewBuilder(perDiemCodes("SHA-08-005"))
	tc := validCase()

	first, err := b.Build(tc)
	require.NoError(t, err)

	second, err := b.Build(tc)
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)

	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)

	assert.Equal(t, string(firstJSON), string(secondJSON))
}
