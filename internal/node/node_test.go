package node

import (
	"context"
	"sync"
	"testing"

	"github.com/sebas/distgrid/internal/capability"
)

type stubClient struct {
	fail bool
}

func (c *stubClient) CreateSession(ctx context.Context, uri string, stereotype capability.Stereotype, requested capability.Capabilities) (SessionCreation, error) {
	if c.fail {
		return SessionCreation{}, ErrNoCapacity
	}
	return SessionCreation{SessionID: "s1", URI: uri, Capabilities: requested}, nil
}

func (c *stubClient) Probe(ctx context.Context, uri string) error {
	if c.fail {
		return ErrNoCapacity
	}
	return nil
}

func chromeStereotype(slots int) capability.Stereotype {
	return capability.Stereotype{Capabilities: capability.Capabilities{"browserName": "chrome"}, SlotCount: slots}
}

func TestHasCapacity(t *testing.T) {
	h := New("n1", "http://n1", []capability.Stereotype{chromeStereotype(1)}, &stubClient{})
	if !h.HasCapacity(capability.Capabilities{"browserName": "chrome"}) {
		t.Fatal("expected capacity for chrome")
	}
	if h.HasCapacity(capability.Capabilities{"browserName": "edge"}) {
		t.Fatal("expected no capacity for edge")
	}
}

func TestReserveDecrementsCapacity(t *testing.T) {
	h := New("n1", "http://n1", []capability.Stereotype{chromeStereotype(1)}, &stubClient{})

	finalize, err := h.Reserve(capability.Capabilities{"browserName": "chrome"})
	if err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if h.HasCapacity(capability.Capabilities{"browserName": "chrome"}) {
		t.Fatal("expected capacity exhausted after reserve")
	}

	if _, err := finalize(context.Background()); err != nil {
		t.Fatalf("finalize() error = %v", err)
	}
}

func TestReserveReleasesOnFinalizeFailure(t *testing.T) {
	h := New("n1", "http://n1", []capability.Stereotype{chromeStereotype(1)}, &stubClient{fail: true})

	finalize, err := h.Reserve(capability.Capabilities{"browserName": "chrome"})
	if err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if _, err := finalize(context.Background()); err == nil {
		t.Fatal("expected finalize to fail")
	}

	if !h.HasCapacity(capability.Capabilities{"browserName": "chrome"}) {
		t.Fatal("expected slot released after finalize failure")
	}
}

func TestReserveFailsWhenNotUp(t *testing.T) {
	h := New("n1", "http://n1", []capability.Stereotype{chromeStereotype(1)}, &stubClient{})
	h.Update(Draining, 0, nil)

	if _, err := h.Reserve(capability.Capabilities{"browserName": "chrome"}); err != ErrNotUp {
		t.Fatalf("Reserve() error = %v, want ErrNotUp", err)
	}
}

func TestConcurrentReservationsNeverExceedCapacity(t *testing.T) {
	const slots = 5
	h := New("n1", "http://n1", []capability.Stereotype{chromeStereotype(slots)}, &stubClient{})

	var wg sync.WaitGroup
	successes := make(chan struct{}, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.Reserve(capability.Capabilities{"browserName": "chrome"}); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	count := 0
	for range successes {
		count++
	}
	if count != slots {
		t.Fatalf("expected exactly %d successful reservations, got %d", slots, count)
	}
}

func TestRunHealthCheckTransitionsToDownAfterThreshold(t *testing.T) {
	h := New("n1", "http://n1", []capability.Stereotype{chromeStereotype(1)}, &stubClient{fail: true})

	for i := 0; i < unhealthyThreshold; i++ {
		h.RunHealthCheck(context.Background())
	}

	if h.Status() != Down {
		t.Fatalf("Status() = %v, want Down after %d consecutive failures", h.Status(), unhealthyThreshold)
	}
}

func TestRunHealthCheckRecoversToUp(t *testing.T) {
	client := &stubClient{fail: true}
	h := New("n1", "http://n1", []capability.Stereotype{chromeStereotype(1)}, client)

	for i := 0; i < unhealthyThreshold; i++ {
		h.RunHealthCheck(context.Background())
	}
	if h.Status() != Down {
		t.Fatal("expected Down before recovery")
	}

	client.fail = false
	h.RunHealthCheck(context.Background())
	if h.Status() != Up {
		t.Fatalf("Status() = %v, want Up after a successful probe", h.Status())
	}
}
