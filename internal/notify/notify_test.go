package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subject, f.data = subject, data
	return f.err
}

func TestNATSNotifier_Notify(t *testing.T) {
	pub := &fakePublisher{}
	n := &NATSNotifier{pub: pub, subject: DefaultSubject}

	ev := Event{ChatID: "C1", UserID: "U1", Text: "كلمة ممنوع", Term: "ممنوع", Ts: 1704099600}
	if err := n.Notify(context.Background(), ev); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if pub.subject != DefaultSubject {
		t.Errorf("subject = %q", pub.subject)
	}
	var got Event
	if err := json.Unmarshal(pub.data, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got != ev {
		t.Errorf("payload = %+v, want %+v", got, ev)
	}
}

func TestNATSNotifier_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("connection closed")}
	n := &NATSNotifier{pub: pub, subject: "s"}
	if err := n.Notify(context.Background(), Event{}); err == nil {
		t.Error("Notify returned nil on publish failure")
	}
}

func TestNop(t *testing.T) {
	var n Notifier = Nop{}
	if err := n.Notify(context.Background(), Event{Text: "x"}); err != nil {
		t.Errorf("Nop.Notify: %v", err)
	}
}
