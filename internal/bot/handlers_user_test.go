package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"ticketline/internal/config"
	"ticketline/internal/models"
	"ticketline/internal/transport"
)

func TestAnnounceReviewPostsCard(t *testing.T) {
	var gotThread int64
	var gotContent transport.Content
	calls := 0
	tr := &transport.MockTransport{
		CopyToThreadFunc: func(ctx context.Context, threadID int64, header string, content transport.Content) (transport.MessageRef, error) {
			calls++
			gotThread = threadID
			gotContent = content
			return transport.MessageRef{}, nil
		},
	}
	b := &Bot{
		cfg: &config.Config{ReviewsThreadID: 77},
		tr:  tr,
		ctx: context.Background(),
	}

	b.announceReview(&models.Review{ID: 12, Alias: "max", Rating: 5, Comment: "fast and helpful"})

	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(77), gotThread)
	assert.Equal(t, transport.KindText, gotContent.Kind)
	assert.Contains(t, gotContent.Text, "New review #12")
	assert.Contains(t, gotContent.Text, "max ⭐⭐⭐⭐⭐")
	assert.Contains(t, gotContent.Text, "fast and helpful")
	assert.Contains(t, gotContent.Text, "/delreview 12")
}

func TestAnnounceReviewSkippedWhenNoThreadConfigured(t *testing.T) {
	calls := 0
	tr := &transport.MockTransport{
		CopyToThreadFunc: func(ctx context.Context, threadID int64, header string, content transport.Content) (transport.MessageRef, error) {
			calls++
			return transport.MessageRef{}, nil
		},
	}
	b := &Bot{
		cfg: &config.Config{},
		tr:  tr,
		ctx: context.Background(),
	}

	b.announceReview(&models.Review{ID: 3, Alias: "max", Rating: 4})

	assert.Equal(t, 0, calls)
}

func TestReviewCardOmitsEmptyComment(t *testing.T) {
	card := reviewCard(&models.Review{ID: 9, Alias: "ann", Rating: 3})
	assert.Contains(t, card, "New review #9")
	assert.Contains(t, card, "ann ⭐⭐⭐")
	assert.NotContains(t, card, "\n\n\n")
	assert.Contains(t, card, "/delreview 9")
}
