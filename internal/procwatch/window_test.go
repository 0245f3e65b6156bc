package procwatch

import "testing"

func TestWindowDebouncesIdleToActive(t *testing.T) {
	w := NewWindow(40, 0.15)

	// 40 samples, 5 true (density 12.5%) -> should settle windowed-idle,
	// i.e. no instance:active transition once the window fills. The true
	// samples are the newest five, so the next push evicts a false one.
	for i := 0; i < 40; i++ {
		active := i >= 35
		res := w.Tick([]RawSample{{PID: 1, Slug: "proj", RawActive: active}})
		if i == 0 {
			if len(res.Transitions) != 1 || res.Transitions[0].Kind != InstanceCreated {
				t.Fatalf("expected only instance:created on an inactive first sample, got %+v", res.Transitions)
			}
		}
	}

	r := w.pids[1]
	if r.windowedActive(0.15) {
		t.Fatalf("expected windowed-idle at density 12.5%%, density=%v", r.density())
	}

	// One additional true sample pushes density to 6/40 = 15% -> active.
	res := w.Tick([]RawSample{{PID: 1, Slug: "proj", RawActive: true}})
	if len(res.Transitions) != 1 || res.Transitions[0].Kind != InstanceActive {
		t.Fatalf("expected a single instance:active transition, got %+v", res.Transitions)
	}
}

func TestWindowEmitsCreatedAndClosed(t *testing.T) {
	w := NewWindow(40, 0.15)

	res := w.Tick([]RawSample{{PID: 7, Slug: "a", RawActive: false}})
	if len(res.Transitions) != 1 || res.Transitions[0].Kind != InstanceCreated {
		t.Fatalf("expected only instance:created for an inactive first sample, got %+v", res.Transitions)
	}

	res = w.Tick(nil)
	if len(res.Transitions) != 1 || res.Transitions[0].Kind != InstanceClosed {
		t.Fatalf("expected instance:closed when PID vanishes, got %+v", res.Transitions)
	}
}

func TestWindowNoEventsProducesZeroResult(t *testing.T) {
	w := NewWindow(40, 0.15)
	w.Tick([]RawSample{{PID: 1, Slug: "a", RawActive: false}})

	res := w.Tick([]RawSample{{PID: 1, Slug: "a", RawActive: false}})
	if len(res.Transitions) != 0 {
		t.Fatalf("expected no transitions on a steady-state tick, got %+v", res.Transitions)
	}
	if res.Facility.AgentCount != 0 {
		t.Fatalf("expected zero-value TickResult, got %+v", res)
	}
}

func TestFacilitySummaryReflectsActivePIDs(t *testing.T) {
	w := NewWindow(2, 0.5)

	w.Tick([]RawSample{
		{PID: 1, Slug: "a", RawActive: true},
		{PID: 2, Slug: "b", RawActive: false},
	})
	// The second tick emits no transitions, so its TickResult is the zero
	// value; read the rollup through FacilityState instead.
	w.Tick([]RawSample{
		{PID: 1, Slug: "a", RawActive: true},
		{PID: 2, Slug: "b", RawActive: false},
	})
	facility := w.FacilityState()

	if facility.AgentCount != 2 {
		t.Fatalf("expected 2 known agents, got %d", facility.AgentCount)
	}
	if facility.ActiveCount != 1 {
		t.Fatalf("expected 1 active agent, got %d", facility.ActiveCount)
	}
}
