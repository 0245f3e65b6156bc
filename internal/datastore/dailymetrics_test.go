package datastore

import "testing"

func TestDailyMetricKeyTreatsNilProjectAsDistinctValue(t *testing.T) {
	a := "proj-a"
	facilityWide := dailyMetricKey("2026-08-01", nil)
	perProject := dailyMetricKey("2026-08-01", &a)

	if facilityWide == perProject {
		t.Fatalf("facility-wide and per-project keys must differ, got %q for both", facilityWide)
	}

	other := "proj-b"
	if dailyMetricKey("2026-08-01", &a) == dailyMetricKey("2026-08-01", &other) {
		t.Fatal("distinct projects must not collide")
	}
	if dailyMetricKey("2026-08-02", nil) == facilityWide {
		t.Fatal("distinct dates must not collide")
	}
}
