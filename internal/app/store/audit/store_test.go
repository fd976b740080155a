package audit

import (
	"testing"
	"time"

	"github.com/dalemusser/stratanotify/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// seedHistory logs a small edit history spread over the last few hours and
// returns the operator id used on the operator-attributed events.
func seedHistory(t *testing.T, s *Store) primitive.ObjectID {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ada := primitive.NewObjectID()
	base := time.Now().UTC().Add(-5 * time.Hour)
	events := []Event{
		{Category: CategoryAuth, EventType: EventOperatorSignedIn, ActorID: &ada, ActorName: "Ada"},
		{Category: CategoryEditor, EventType: EventSessionOpened, TriggerType: "user_created", ActorID: &ada},
		{Category: CategoryTemplate, EventType: EventTemplateSaved, TriggerType: "user_created", ActorID: &ada,
			Details: map[string]string{"links": "2"}},
		{Category: CategoryTemplate, EventType: EventTemplateDeactivated, TriggerType: "user_created"},
		{Category: CategoryTemplate, EventType: EventTemplateSaved, TriggerType: "password_reset"},
	}
	for i, e := range events {
		e.Success = true
		e.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := s.Log(ctx, e); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}
	return ada
}

func TestStore_Log_FillsIDAndTime(t *testing.T) {
	s := New(testutil.SetupTestDB(t))
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := s.Log(ctx, Event{Category: CategoryEditor, EventType: EventSessionsPruned}); err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	got, err := s.Query(ctx, QueryFilter{})
	if err != nil || len(got) != 1 {
		t.Fatalf("Query() = %d events, err %v", len(got), err)
	}
	if got[0].ID.IsZero() || got[0].CreatedAt.IsZero() {
		t.Errorf("Log() should set id and created_at, got %+v", got[0])
	}
}

func TestStore_Query(t *testing.T) {
	s := New(testutil.SetupTestDB(t))
	ada := seedHistory(t, s)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	since := time.Now().UTC().Add(-150 * time.Minute)
	until := time.Now().UTC().Add(-210 * time.Minute)

	tests := []struct {
		name   string
		filter QueryFilter
		want   int
	}{
		{"everything", QueryFilter{}, 5},
		{"by trigger", QueryFilter{TriggerType: "user_created"}, 3},
		{"by actor", QueryFilter{ActorID: &ada}, 3},
		{"by category", QueryFilter{Category: CategoryTemplate}, 3},
		{"by event type", QueryFilter{EventType: EventTemplateSaved}, 2},
		{"trigger and type", QueryFilter{TriggerType: "user_created", EventType: EventTemplateSaved}, 1},
		{"since", QueryFilter{StartTime: &since}, 2},
		{"until", QueryFilter{EndTime: &until}, 2},
		{"limit", QueryFilter{Limit: 2}, 2},
		{"offset past the end", QueryFilter{Offset: 4}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Query() = %d events, want %d", len(got), tt.want)
			}
			if tt.filter.Limit > 0 || tt.filter.Offset > 0 {
				return
			}
			// Count ignores paging, so it only matches unpaged queries.
			n, err := s.CountByFilter(ctx, tt.filter)
			if err != nil {
				t.Fatalf("CountByFilter() error = %v", err)
			}
			if n != int64(tt.want) {
				t.Errorf("CountByFilter() = %d, want %d", n, tt.want)
			}
		})
	}
}

func TestStore_GetByTrigger(t *testing.T) {
	s := New(testutil.SetupTestDB(t))
	seedHistory(t, s)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	got, err := s.GetByTrigger(ctx, "user_created", 2)
	if err != nil {
		t.Fatalf("GetByTrigger() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetByTrigger() = %d events, want 2", len(got))
	}
	if got[0].EventType != EventTemplateDeactivated || got[1].EventType != EventTemplateSaved {
		t.Errorf("want newest first, got %s then %s", got[0].EventType, got[1].EventType)
	}
	if got[1].Details["links"] != "2" {
		t.Errorf("Details = %v", got[1].Details)
	}
}

func TestStore_DeleteOlderThan(t *testing.T) {
	s := New(testutil.SetupTestDB(t))
	seedHistory(t, s)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	n, err := s.DeleteOlderThan(ctx, time.Now().UTC().Add(-150*time.Minute))
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if n != 3 {
		t.Errorf("deleted %d events, want 3", n)
	}
	left, _ := s.CountByFilter(ctx, QueryFilter{})
	if left != 2 {
		t.Errorf("%d events left, want 2", left)
	}
}
