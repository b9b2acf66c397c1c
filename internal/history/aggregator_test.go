package history

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/kalambet/narrativelens/internal/analysis"
)

type brokenStore struct{}

func (brokenStore) Load(context.Context) ([]analysis.Record, error) {
	return nil, unavailable("reading history", errors.New("permission denied"))
}

func (brokenStore) Append(context.Context, []analysis.Record) (int, error) {
	return 0, unavailable("writing history", errors.New("permission denied"))
}

func (brokenStore) Close() error { return nil }

func TestMerge_AppendsInOrderAndSkipsErrors(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(NewFileStore(t.TempDir()))

	if _, err := agg.Merge(ctx, []analysis.Record{rec("Left", ""), rec("Right", "")}); err != nil {
		t.Fatalf("first Merge: %v", err)
	}

	incoming := []analysis.Record{
		rec("Center", "2024-01-02"),
		{Error: "Failed to parse response", Details: "unexpected end of JSON input"},
		rec("Right", "2024-01-03T08:00:00+02:00"),
	}
	res, err := agg.Merge(ctx, incoming)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if want := (MergeResult{Appended: 2, Skipped: 1, Total: 4}); res != want {
		t.Errorf("Merge = %+v, want %+v", res, want)
	}

	recs, err := agg.Records(ctx)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("got %d records, want 4", len(recs))
	}
	if recs[2].Bias != "Center" || recs[2].Published != "2024-01-02T00:00:00Z" {
		t.Errorf("recs[2] = %+v", recs[2])
	}
	if recs[3].Published != "2024-01-03T06:00:00Z" {
		t.Errorf("recs[3].Published = %q, want UTC form", recs[3].Published)
	}
	for i, r := range recs {
		if r.ID == "" {
			t.Errorf("recs[%d] has no id", i)
		}
	}
}

// The store grows by exactly the records that were kept: error records are
// reported as skipped and never reach it.
func TestMerge_TotalCountsOnlyAppendedRecords(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			agg := NewAggregator(s)

			const m = 3
			if _, err := agg.Merge(ctx, batch(m, "old")); err != nil {
				t.Fatalf("seeding: %v", err)
			}

			incoming := append(batch(2, "new"),
				analysis.Record{Error: "Model call failed", Details: "timeout"},
				analysis.Record{Error: "Failed to parse response", Details: "eof"},
			)
			incoming = append(incoming, batch(1, "late")...)

			res, err := agg.Merge(ctx, incoming)
			if err != nil {
				t.Fatalf("Merge: %v", err)
			}
			if res.Appended != 3 || res.Skipped != 2 {
				t.Errorf("Merge = %+v, want 3 appended and 2 skipped", res)
			}
			if res.Appended+res.Skipped != len(incoming) {
				t.Errorf("appended %d + skipped %d != batch size %d", res.Appended, res.Skipped, len(incoming))
			}
			if res.Total != m+res.Appended {
				t.Errorf("Total = %d, want m + Appended = %d", res.Total, m+res.Appended)
			}

			recs, err := agg.Records(ctx)
			if err != nil {
				t.Fatalf("Records: %v", err)
			}
			want := []string{"old-0", "old-1", "old-2", "new-0", "new-1", "late-0"}
			if got := ids(recs); !reflect.DeepEqual(got, want) {
				t.Errorf("ids = %q, want %q", got, want)
			}
		})
	}
}

func TestMerge_KeepsExistingID(t *testing.T) {
	agg := NewAggregator(NewFileStore(t.TempDir()))
	r := rec("Left", "")
	r.ID = "keep-me"

	if _, err := agg.Merge(context.Background(), []analysis.Record{r}); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	recs, err := agg.Records(context.Background())
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if recs[0].ID != "keep-me" {
		t.Errorf("id = %q, want keep-me", recs[0].ID)
	}
}

func TestMerge_OnlyErrorsLeavesStoreUntouched(t *testing.T) {
	agg := NewAggregator(NewFileStore(t.TempDir()))

	res, err := agg.Merge(context.Background(), []analysis.Record{{Error: "Failed to parse response"}})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if want := (MergeResult{Skipped: 1}); res != want {
		t.Errorf("Merge = %+v, want %+v", res, want)
	}
}

func TestMerge_UnparseableTimestampKept(t *testing.T) {
	agg := NewAggregator(NewFileStore(t.TempDir()))
	if _, err := agg.Merge(context.Background(), []analysis.Record{rec("Left", "last Tuesday")}); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	recs, err := agg.Records(context.Background())
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if recs[0].Published != "last Tuesday" {
		t.Errorf("published = %q, want it kept verbatim", recs[0].Published)
	}
}

func TestMerge_StoreUnavailableSurfaces(t *testing.T) {
	agg := NewAggregator(brokenStore{})

	if _, err := agg.Merge(context.Background(), []analysis.Record{rec("Left", "")}); !errors.Is(err, analysis.ErrStoreUnavailable) {
		t.Errorf("Merge err = %v, want ErrStoreUnavailable", err)
	}
	if _, err := agg.Trend(context.Background()); !errors.Is(err, analysis.ErrStoreUnavailable) {
		t.Errorf("Trend err = %v, want ErrStoreUnavailable", err)
	}
}

func TestTrend(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(NewFileStore(t.TempDir()))
	_, err := agg.Merge(ctx, []analysis.Record{
		rec("Right", "2024-02-01"),
		rec("Left", "2024-01-01"),
		rec("Unknown", "2024-01-15"),
		rec("Center", ""),
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	points, err := agg.Trend(ctx)
	if err != nil {
		t.Fatalf("Trend: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2", len(points))
	}
	if points[0].Date != "2024-01-01T00:00:00Z" || points[0].BiasScore != -1 || points[1].BiasScore != 1 {
		t.Errorf("points = %+v", points)
	}
}

func TestSeries(t *testing.T) {
	long := strings.Repeat("é", 150)
	recs := []analysis.Record{
		rec("Right", "2024-03-01T00:00:00Z"),
		rec("left", "2024-01-01T00:00:00Z"),
		rec("Center", ""),
		rec("Far-left", "2024-02-01T00:00:00Z"),
		{Error: "Failed to parse response", Published: "2024-01-05T00:00:00Z"},
		{Bias: "Center", Omissions: long, Published: "2024-02-01T00:00:00Z"},
	}

	points := Series(recs)
	if len(points) != 3 {
		t.Fatalf("got %d points, want 3", len(points))
	}

	if p := points[0]; p.Date != "2024-01-01T00:00:00Z" || p.BiasScore != -1 || p.BiasLabel != "Left" {
		t.Errorf("points[0] = %+v", p)
	}
	if p := points[1]; p.BiasScore != 0 || len([]rune(p.Snippet)) != SnippetLength {
		t.Errorf("points[1] score %d, snippet length %d; want 0, %d", p.BiasScore, len([]rune(p.Snippet)), SnippetLength)
	}
	if p := points[2]; p.BiasScore != 1 || p.Snippet != "None found" {
		t.Errorf("points[2] = %+v", p)
	}
}

func TestSeries_CanonicalLabels(t *testing.T) {
	points := Series([]analysis.Record{
		rec("LEFT", "2024-01-02T00:00:00Z"),
		rec(" right ", "2024-01-01T00:00:00Z"),
		rec("cEnTeR", "2024-01-03T00:00:00Z"),
	})

	want := []TrendPoint{
		{Date: "2024-01-01T00:00:00Z", BiasScore: 1, BiasLabel: "Right", Snippet: "None found"},
		{Date: "2024-01-02T00:00:00Z", BiasScore: -1, BiasLabel: "Left", Snippet: "None found"},
		{Date: "2024-01-03T00:00:00Z", BiasScore: 0, BiasLabel: "Center", Snippet: "None found"},
	}
	if !reflect.DeepEqual(points, want) {
		t.Errorf("Series = %+v, want %+v", points, want)
	}
}

func TestSeries_StableForEqualDates(t *testing.T) {
	a := rec("Left", "2024-01-01T00:00:00Z")
	a.Omissions = "first"
	b := rec("Right", "2024-01-01T00:00:00Z")
	b.Omissions = "second"

	points := Series([]analysis.Record{a, b})
	if points[0].Snippet != "first" || points[1].Snippet != "second" {
		t.Errorf("equal dates reordered: %+v", points)
	}
}

func TestSeries_Empty(t *testing.T) {
	if points := Series(nil); len(points) != 0 {
		t.Errorf("Series(nil) = %+v, want empty", points)
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"", "", true},
		{"2024-05-06T07:08:09Z", "2024-05-06T07:08:09Z", true},
		{"2024-05-06T07:08:09.123Z", "2024-05-06T07:08:09Z", true},
		{"2024-05-06T09:08:09+02:00", "2024-05-06T07:08:09Z", true},
		{"2024-05-06T07:08:09", "2024-05-06T07:08:09Z", true},
		{"2024-05-06 07:08:09", "2024-05-06T07:08:09Z", true},
		{"2024-05-06", "2024-05-06T00:00:00Z", true},
		{"May 6, 2024", "May 6, 2024", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeTimestamp(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizeTimestamp(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
