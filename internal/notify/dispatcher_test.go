package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloudesk/internal/models"
)

type stubNotifier struct {
	kind   models.ActionKind
	detail string
	err    error
	delay  time.Duration
}

func (s *stubNotifier) Kind() models.ActionKind { return s.kind }

func (s *stubNotifier) Send(ctx context.Context, alert Alert) (string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.detail, s.err
}

func TestDispatchRecordsAllChannels(t *testing.T) {
	d := NewDispatcher([]Notifier{
		&stubNotifier{kind: models.ActionFeishu, detail: "HTTP 200"},
		&stubNotifier{kind: models.ActionEmail, err: errors.New("smtp refused")},
		&stubNotifier{kind: models.ActionApifox, detail: "dry run", err: ErrSkipped},
	}, time.Second, nil)

	ledger := NewLedger()
	d.Dispatch(context.Background(), Alert{CaseID: "C001"}, ledger)

	outcomes := ledger.Outcomes()
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}

	// Initiation order, not completion order.
	if outcomes[0].Kind != models.ActionFeishu || outcomes[1].Kind != models.ActionEmail || outcomes[2].Kind != models.ActionApifox {
		t.Errorf("unexpected order: %v %v %v", outcomes[0].Kind, outcomes[1].Kind, outcomes[2].Kind)
	}
	if outcomes[0].Status != models.ActionSent {
		t.Errorf("feishu: expected sent, got %s", outcomes[0].Status)
	}
	if outcomes[1].Status != models.ActionFailed || outcomes[1].Detail != "smtp refused" {
		t.Errorf("email: expected failed, got %+v", outcomes[1])
	}
	if outcomes[2].Status != models.ActionSkipped {
		t.Errorf("apifox: expected skipped, got %s", outcomes[2].Status)
	}
}

func TestDispatchPreservesInitiationOrderDespiteCompletionRace(t *testing.T) {
	d := NewDispatcher([]Notifier{
		&stubNotifier{kind: models.ActionFeishu, detail: "slow", delay: 80 * time.Millisecond},
		&stubNotifier{kind: models.ActionEmail, detail: "fast"},
	}, time.Second, nil)

	ledger := NewLedger()
	d.Dispatch(context.Background(), Alert{CaseID: "C001"}, ledger)

	outcomes := ledger.Outcomes()
	if outcomes[0].Kind != models.ActionFeishu || outcomes[1].Kind != models.ActionEmail {
		t.Errorf("ledger must keep initiation order: %v, %v", outcomes[0].Kind, outcomes[1].Kind)
	}
}

func TestDispatchFailureDoesNotAbortOthers(t *testing.T) {
	d := NewDispatcher([]Notifier{
		&stubNotifier{kind: models.ActionFeishu, err: errors.New("webhook down")},
		&stubNotifier{kind: models.ActionEmail, detail: "delivered"},
	}, time.Second, nil)

	ledger := NewLedger()
	d.Dispatch(context.Background(), Alert{CaseID: "C001"}, ledger)

	m := ledger.ActionMap()
	if m["feishu"] != "failed: webhook down" {
		t.Errorf("unexpected feishu outcome %q", m["feishu"])
	}
	if m["email"] != "sent: delivered" {
		t.Errorf("unexpected email outcome %q", m["email"])
	}
}

func TestDispatchTimeoutRecordsPendingAsFailed(t *testing.T) {
	d := NewDispatcher([]Notifier{
		&stubNotifier{kind: models.ActionFeishu, delay: time.Second},
	}, 5*time.Second, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	ledger := NewLedger()
	d.Dispatch(ctx, Alert{CaseID: "C001"}, ledger)

	outcomes := ledger.Outcomes()
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}
	if outcomes[0].Status != models.ActionFailed {
		t.Errorf("pending channel at timeout must be failed, got %s", outcomes[0].Status)
	}
}

func TestLedgerActionMap(t *testing.T) {
	l := NewLedger()
	l.Record(models.ActionFeishu, models.ActionSent, "HTTP 200")
	l.Record(models.ActionEmail, models.ActionFailed, "timeout")
	l.Record(models.ActionApifox, models.ActionSent, "")

	m := l.ActionMap()
	if m["feishu"] != "sent: HTTP 200" {
		t.Errorf("unexpected feishu %q", m["feishu"])
	}
	if m["email"] != "failed: timeout" {
		t.Errorf("unexpected email %q", m["email"])
	}
	if m["apifox"] != "sent" {
		t.Errorf("empty detail should render the bare status, got %q", m["apifox"])
	}
}
