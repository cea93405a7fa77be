package transport

import "context"

// MockTransport is a mock implementation of the Transport interface for
// testing. Uses function fields to allow tests to inject custom behavior.
type MockTransport struct {
	CreateThreadFunc func(ctx context.Context, title string) (int64, error)
	CopyToThreadFunc func(ctx context.Context, threadID int64, header string, content Content) (MessageRef, error)
	CopyToUserFunc   func(ctx context.Context, userID int64, content Content) (MessageRef, error)
	SetReactionFunc  func(ctx context.Context, ref MessageRef, sentiment Sentiment) error
	NotifyFunc       func(ctx context.Context, userID int64, text string) error
}

var _ Transport = (*MockTransport)(nil)

func (m *MockTransport) CreateThread(ctx context.Context, title string) (int64, error) {
	if m.CreateThreadFunc != nil {
		return m.CreateThreadFunc(ctx, title)
	}
	return 1, nil
}

func (m *MockTransport) CopyToThread(ctx context.Context, threadID int64, header string, content Content) (MessageRef, error) {
	if m.CopyToThreadFunc != nil {
		return m.CopyToThreadFunc(ctx, threadID, header, content)
	}
	return MessageRef{}, nil
}

func (m *MockTransport) CopyToUser(ctx context.Context, userID int64, content Content) (MessageRef, error) {
	if m.CopyToUserFunc != nil {
		return m.CopyToUserFunc(ctx, userID, content)
	}
	return MessageRef{}, nil
}

func (m *MockTransport) SetReaction(ctx context.Context, ref MessageRef, sentiment Sentiment) error {
	if m.SetReactionFunc != nil {
		return m.SetReactionFunc(ctx, ref, sentiment)
	}
	return nil
}

func (m *MockTransport) Notify(ctx context.Context, userID int64, text string) error {
	if m.NotifyFunc != nil {
		return m.NotifyFunc(ctx, userID, text)
	}
	return nil
}
