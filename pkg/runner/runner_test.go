package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/careops/claimrunner/pkg/claim"
	"github.com/careops/claimrunner/pkg/results"
	"github.com/careops/claimrunner/pkg/submit"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient records submission order and serves scripted responses.
type fakeClient struct {
	mu     sync.Mutex
	events *[]string

	// failTitles submit with a transport error.
	failTitles map[string]bool
	// rejectTitles submit successfully but are rejected by validation.
	rejectTitles map[string]bool

	cancelAfter int // cancel this context after N submissions (0 = never)
	cancel      context.CancelFunc
	calls       int
}

func (f *fakeClient) Submit(
	_ context.Context,
	payload *claim.SubmissionPayload,
) (*submit.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	*f.events = append(*f.events, "submit:"+payload.Title)

	if f.cancelAfter > 0 && f.calls >= f.cancelAfter && f.cancel != nil {
		f.cancel()
	}

	if f.failTitles[payload.Title] {
		return nil, errors.New("network timeout")
	}

	if f.rejectTitles[payload.Title] {
		return &submit.SubmitResult{
			Success: false,
			Message: "validation failed",
			ValidationErrors: []submit.ValidationError{
				{Path: "total", Message: "total mismatch"},
			},
			Raw: `{"success":false}`,
		}, nil
	}

	return &submit.SubmitResult{
		Success: true,
		ClaimID: "claim-" + payload.Title,
		Message: "accepted",
		Raw:     `{"success":true}`,
	}, nil
}

// slowClient simulates a remote API whose responses take longer than the
// pacing interval, recording when each submission starts and completes.
type slowClient struct {
	delay time.Duration

	mu     sync.Mutex
	starts []time.Time
	ends   []time.Time
}

func (c *slowClient) Submit(
	_ context.Context,
	payload *claim.SubmissionPayload,
) (*submit.SubmitResult, error) {
	c.mu.Lock()
	c.starts = append(c.starts, time.Now())
	c.mu.Unlock()

	time.Sleep(c.delay)

	c.mu.Lock()
	c.ends = append(c.ends, time.Now())
	c.mu.Unlock()

	return &submit.SubmitResult{
		Success: true,
		ClaimID: "claim-" + payload.Title,
		Raw:     `{"success":true}`,
	}, nil
}

// recordingPacer appends an event per wait instead of sleeping.
type recordingPacer struct {
	mu     sync.Mutex
	events *[]string
	waits  int
}

func (p *recordingPacer) Wait(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.waits++
	*p.events = append(*p.events, "pace")

	return nil
}

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return log
}

func testCase(title string) claim.TestCase {
	return claim.TestCase{
		Title:    title,
		Kind:     claim.KindPositive,
		Patient:  "patient-001",
		Provider: "provider-001",
		LineItems: []claim.LineItem{
			{Sequence: 1, Code: "SHA-01-001", Quantity: 1,
				UnitPrice: claim.Money{Value: 1000, Currency: "KES"}},
		},
		UsageMode: claim.UseClaim,
		SubType:   claim.SubTypeOutpatient,
	}
}

func testGroups() []Group {
	return []Group{
		{Name: "positive", TestCases: []claim.TestCase{
			testCase("Case A"), testCase("Case B"),
		}},
		{Name: "negative", TestCases: []claim.TestCase{
			testCase("Case C"),
		}},
	}
}

func newTestRunner(client submit.Client) (Runner, *results.Aggregator) {
	agg := results.NewAggregator(testLogger(), nil)
	r := NewRunner(testLogger(), claim.NewBuilder(nil), client, agg)

	return r, agg
}

func TestRunYieldsOneOutcomePerCaseInOrder(t *testing.T) {
	var events []string

	client := &fakeClient{events: &events}
	pacer := &recordingPacer{events: &events}
	r, agg := newTestRunner(client)

	summary, err := r.Run(context.Background(), testGroups(),
		&Options{Pacer: pacer})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Passed)
	assert.Equal(t, 0, summary.Failed)

	snap := agg.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "Case A", snap[0].SourceTitle)
	assert.Equal(t, "Case B", snap[1].SourceTitle)
	assert.Equal(t, "Case C", snap[2].SourceTitle)
	assert.Equal(t, "positive", snap[0].Group)
	assert.Equal(t, "negative", snap[2].Group)
	assert.Equal(t, results.StatusPassed, snap[0].Status)
	assert.Equal(t, "claim-Case A", snap[0].ClaimID)
}

func TestRunPacesBetweenItemsButNotAfterLast(t *testing.T) {
	var events []string

	client := &fakeClient{events: &events}
	pacer := &recordingPacer{events: &events}
	r, _ := newTestRunner(client)

	_, err := r.Run(context.Background(), testGroups(), &Options{Pacer: pacer})
	require.NoError(t, err)

	// The pacing delay elapses between the completion of item i and the
	// submission of item i+1, for every adjacent pair except the last.
	assert.Equal(t, []string{
		"submit:Case A", "pace",
		"submit:Case B", "pace",
		"submit:Case C",
	}, events)
	assert.Equal(t, 2, pacer.waits)
}

func TestRunContinuesAfterTransportFailure(t *testing.T) {
	var events []string

	client := &fakeClient{
		events:     &events,
		failTitles: map[string]bool{"Case A": true},
	}
	pacer := &recordingPacer{events: &events}
	r, agg := newTestRunner(client)

	summary, err := r.Run(context.Background(), testGroups(), &Options{Pacer: pacer})
	require.NoError(t, err)

	// A transport failure on one item never aborts the batch.
	assert.Equal(t, 3, client.calls)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Passed)

	snap := agg.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, results.StatusFailed, snap[0].Status)
	assert.Equal(t, "network timeout", snap[0].Details.Error)
	assert.Empty(t, snap[0].Details.Response)
	assert.Equal(t, results.StatusPassed, snap[1].Status)
}

func TestRunRecordsValidationRejection(t *testing.T) {
	var events []string

	client := &fakeClient{
		events:       &events,
		rejectTitles: map[string]bool{"Case B": true},
	}
	r, agg := newTestRunner(client)

	_, err := r.Run(context.Background(), testGroups(),
		&Options{Pacer: &recordingPacer{events: &events}})
	require.NoError(t, err)

	snap := agg.Snapshot()
	rejected := snap[1]
	assert.Equal(t, results.StatusFailed, rejected.Status)
	assert.Equal(t, "validation failed", rejected.Message)
	require.Len(t, rejected.Details.ValidationErrors, 1)
	assert.Equal(t, "total", rejected.Details.ValidationErrors[0].Path)
	assert.NotEmpty(t, rejected.Details.Response)
	assert.Empty(t, rejected.Details.Error)
}

func TestRunTitleSelectionPreservesGroupOrder(t *testing.T) {
	var events []string

	client := &fakeClient{events: &events}
	r, agg := newTestRunner(client)

	// Selection order does not override source order.
	_, err := r.Run(context.Background(), testGroups(), &Options{
		Titles: []string{"Case C", "Case A"},
		Pacer:  &recordingPacer{events: &events},
	})
	require.NoError(t, err)

	snap := agg.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "Case A", snap[0].SourceTitle)
	assert.Equal(t, "Case C", snap[1].SourceTitle)
}

func TestRunUnknownTitleAbortsBeforeAnySubmission(t *testing.T) {
	var events []string

	client := &fakeClient{events: &events}
	r, agg := newTestRunner(client)

	_, err := r.Run(context.Background(), testGroups(), &Options{
		Titles: []string{"Case A", "No Such Case"},
	})
	require.Error(t, err)

	var notFound *TestCaseNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "No Such Case", notFound.Title)

	assert.Zero(t, client.calls)
	assert.Zero(t, agg.Len())
}

func TestRunInvalidTestCaseAbortsBeforeAnySubmission(t *testing.T) {
	var events []string

	client := &fakeClient{events: &events}
	r, agg := newTestRunner(client)

	groups := testGroups()
	groups[1].TestCases[0].LineItems = nil

	_, err := r.Run(context.Background(), groups, nil)
	require.Error(t, err)

	var invalid *claim.InvalidTestCaseError
	require.ErrorAs(t, err, &invalid)

	// Even though the invalid case is last, nothing was submitted.
	assert.Zero(t, client.calls)
	assert.Zero(t, agg.Len())
}

func TestRunCancellationStopsBetweenItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var events []string

	client := &fakeClient{
		events:      &events,
		cancelAfter: 1,
		cancel:      cancel,
	}
	r, agg := newTestRunner(client)

	summary, err := r.Run(ctx, testGroups(),
		&Options{Pacer: &recordingPacer{events: &events}})
	require.NoError(t, err)

	// The in-flight item completed and was recorded; nothing further ran.
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, 1, agg.Len())
	assert.Len(t, summary.Outcomes, 1)
}

func TestRunStatusClearedAfterRun(t *testing.T) {
	var events []string

	client := &fakeClient{events: &events}
	r, _ := newTestRunner(client)

	_, err := r.Run(context.Background(), testGroups(),
		&Options{Pacer: &recordingPacer{events: &events}})
	require.NoError(t, err)

	status := r.Status()
	assert.False(t, status.Running)
	assert.Empty(t, status.Group)
}

func TestRunPacingDelayNotShortenedBySlowSubmissions(t *testing.T) {
	const pacing = 60 * time.Millisecond

	// Each submission takes longer than the pacing interval itself. The
	// delay between the completion of one item and the start of the next
	// must still be the full interval; it never adapts to how long the
	// remote took to respond.
	client := &slowClient{delay: 90 * time.Millisecond}
	r, _ := newTestRunner(client)

	groups := []Group{{Name: "positive", TestCases: []claim.TestCase{
		testCase("Case A"), testCase("Case B"), testCase("Case C"),
	}}}

	_, err := r.Run(context.Background(), groups, &Options{Pacing: pacing})
	require.NoError(t, err)

	require.Len(t, client.starts, 3)
	require.Len(t, client.ends, 3)

	for i := 1; i < len(client.starts); i++ {
		gap := client.starts[i].Sub(client.ends[i-1])
		assert.GreaterOrEqual(t, gap, pacing,
			"gap between completion of item %d and submission of item %d", i-1, i)
	}
}

func TestFixedPacerEnforcesInterval(t *testing.T) {
	pacer := NewFixedPacer(20 * time.Millisecond)

	start := time.Now()
	require.NoError(t, pacer.Wait(context.Background()))

	// Every wait observes the full interval, the first one included.
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestFixedPacerHonorsCancellation(t *testing.T) {
	pacer := NewFixedPacer(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, pacer.Wait(ctx))
}

func TestSamplerIsDeterministic(t *testing.T) {
	group := Group{Name: "positive"}
	for i := 0; i < 20; i++ {
		group.TestCases = append(group.TestCases, testCase(fmt.Sprintf("Case %02d", i)))
	}

	first := NewSampler(42).Sample(group, 5)
	second := NewSampler(42).Sample(group, 5)
	other := NewSampler(7).Sample(group, 5)

	require.Len(t, first, 5)
	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)

	// Sampled titles keep their source order.
	prev := ""
	for _, title := range first {
		assert.Greater(t, title, prev)
		prev = title
	}
}

func TestSamplerReturnsAllWhenSampleExceedsGroup(t *testing.T) {
	group := Group{Name: "positive", TestCases: []claim.TestCase{
		testCase("Case A"), testCase("Case B"),
	}}

	titles := NewSampler(1).Sample(group, 10)
	assert.Equal(t, []string{"Case A", "Case B"}, titles)
}
