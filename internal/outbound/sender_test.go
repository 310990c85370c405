package outbound

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubError struct {
	retryable bool
}

func (e *stubError) Error() string   { return "channel rejected send" }
func (e *stubError) Retryable() bool { return e.retryable }

type stubClient struct {
	textCalls  int
	audioCalls int
	imageCalls int
	errs       []error
}

func (c *stubClient) next() error {
	idx := c.textCalls + c.audioCalls + c.imageCalls - 1
	if idx < len(c.errs) {
		return c.errs[idx]
	}
	return nil
}

func (c *stubClient) SendText(_ context.Context, _, _ string) error {
	c.textCalls++
	return c.next()
}

func (c *stubClient) SendAudio(_ context.Context, _, _ string) error {
	c.audioCalls++
	return c.next()
}

func (c *stubClient) SendImage(_ context.Context, _, _, _ string) error {
	c.imageCalls++
	return c.next()
}

func newTestSender(client ChannelClient) *Sender {
	return NewSender(nil, client, SenderOptions{
		MessagesPerSecond: 1000,
		Burst:             100,
		MaxAttempts:       3,
		BaseBackoff:       time.Millisecond,
	})
}

func textReply() Reply {
	return Reply{ConversationID: "15550001111", Kind: KindText, Content: "Hi there!"}
}

func TestSendSucceedsFirstAttempt(t *testing.T) {
	t.Parallel()
	client := &stubClient{}
	sender := newTestSender(client)

	if err := sender.Send(context.Background(), textReply()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if client.textCalls != 1 {
		t.Fatalf("want 1 attempt got %d", client.textCalls)
	}
}

func TestSendRetriesTransientFailure(t *testing.T) {
	t.Parallel()
	client := &stubClient{errs: []error{
		&stubError{retryable: true},
		&stubError{retryable: true},
		nil,
	}}
	sender := newTestSender(client)

	if err := sender.Send(context.Background(), textReply()); err != nil {
		t.Fatalf("send after retries: %v", err)
	}
	if client.textCalls != 3 {
		t.Fatalf("want 3 attempts got %d", client.textCalls)
	}
}

func TestSendDoesNotRetryTerminalFailure(t *testing.T) {
	t.Parallel()
	terminal := &stubError{retryable: false}
	client := &stubClient{errs: []error{terminal, nil}}
	sender := newTestSender(client)

	err := sender.Send(context.Background(), textReply())
	if !errors.Is(err, terminal) {
		t.Fatalf("want terminal error surfaced, got %v", err)
	}
	if client.textCalls != 1 {
		t.Fatalf("terminal failure retried: %d attempts", client.textCalls)
	}
}

func TestSendGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()
	client := &stubClient{errs: []error{
		&stubError{retryable: true},
		&stubError{retryable: true},
		&stubError{retryable: true},
	}}
	sender := newTestSender(client)

	err := sender.Send(context.Background(), textReply())
	if err == nil {
		t.Fatal("want error after exhausting attempts")
	}
	if client.textCalls != 3 {
		t.Fatalf("want 3 attempts got %d", client.textCalls)
	}
}

func TestSendDispatchesByKind(t *testing.T) {
	t.Parallel()
	client := &stubClient{}
	sender := newTestSender(client)
	ctx := context.Background()

	if err := sender.Send(ctx, Reply{ConversationID: "c", Kind: KindAudio, Content: "https://m/a.ogg"}); err != nil {
		t.Fatalf("audio: %v", err)
	}
	if err := sender.Send(ctx, Reply{ConversationID: "c", Kind: KindImage, Content: "https://m/i.png", Caption: "cap"}); err != nil {
		t.Fatalf("image: %v", err)
	}
	if client.audioCalls != 1 || client.imageCalls != 1 {
		t.Fatalf("dispatch mismatch: %+v", client)
	}
}

func TestSendValidation(t *testing.T) {
	t.Parallel()
	sender := newTestSender(&stubClient{})
	ctx := context.Background()

	if err := sender.Send(ctx, Reply{Kind: KindText, Content: "hi"}); err == nil {
		t.Fatal("want error for missing conversation id")
	}
	if err := sender.Send(ctx, Reply{ConversationID: "c", Kind: KindText}); err == nil {
		t.Fatal("want error for empty content")
	}
	if err := sender.Send(ctx, Reply{ConversationID: "c", Kind: ReplyKind("video"), Content: "x"}); err == nil {
		t.Fatal("want error for unknown kind")
	}
}
