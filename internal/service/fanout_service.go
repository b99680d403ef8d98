package service

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/domain"
	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/eventbroker"
	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/notifier"
	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/repository"
	pkglog "github.com/OmerEfron/friendlinesv2.0-sub002/pkg/log"
)

// pushConcurrency bounds how many dispatch batches are in flight at once.
const pushConcurrency = 4

// pushBodyLimit truncates post content used as the notification body.
const pushBodyLimit = 120

// fanoutService implements FanoutService.
type fanoutService struct {
	friends repository.FriendshipRepository
	groups  repository.GroupRepository
	posts   repository.PostRepository
	tokens  repository.DeviceTokenRepository
	push    notifier.PushDelivery
}

// NewFanoutService creates a new FanoutService instance.
func NewFanoutService(
	friends repository.FriendshipRepository,
	groups repository.GroupRepository,
	posts repository.PostRepository,
	tokens repository.DeviceTokenRepository,
	push notifier.PushDelivery,
) FanoutService {
	return &fanoutService{
		friends: friends,
		groups:  groups,
		posts:   posts,
		tokens:  tokens,
		push:    push,
	}
}

// ResolveRecipients derives the deduplicated set of users to notify about
// a post. The author is never included, even when they belong to a
// targeted group.
func (s *fanoutService) ResolveRecipients(ctx context.Context, post *domain.Post) ([]string, error) {
	var candidates []string
	var err error

	switch post.Audience.Kind {
	case domain.AudienceSingleFriend:
		candidates = []string{post.Audience.TargetID}

	case domain.AudienceGroups:
		candidates, err = s.groups.ListMemberIDs(ctx, post.Audience.GroupIDs)

	default:
		// Public, all-friends, and legacy kinds all notify the author's
		// friends; a public post is not broadcast to strangers.
		candidates, err = s.friends.ListFriendIDs(ctx, post.AuthorID)
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(candidates))
	recipients := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if id == "" || id == post.AuthorID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		recipients = append(recipients, id)
	}
	return recipients, nil
}

// Notify resolves recipients, looks up their device tokens, and hands
// capped batches to the push pipeline. Individual batch failures are
// logged and do not stop the remaining batches.
func (s *fanoutService) Notify(ctx context.Context, post *domain.Post) error {
	l := pkglog.Ctx(ctx)

	if s.push == nil {
		return nil
	}

	recipients, err := s.ResolveRecipients(ctx, post)
	if err != nil {
		return fmt.Errorf("resolve recipients: %w", err)
	}
	if len(recipients) == 0 {
		return nil
	}

	tokens, err := s.tokens.GetTokens(ctx, recipients)
	if err != nil {
		return fmt.Errorf("lookup device tokens: %w", err)
	}
	if len(tokens) == 0 {
		l.Debug().Str(pkglog.FieldPostID, post.ID).Msg("no device tokens for recipients")
		return nil
	}

	title := "New post"
	body := truncateBody(post.Content)
	data := map[string]string{
		"post_id":   post.ID,
		"author_id": post.AuthorID,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pushConcurrency)

	for start := 0; start < len(tokens); start += notifier.MaxTokensPerSend {
		end := start + notifier.MaxTokensPerSend
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[start:end]

		g.Go(func() error {
			if err := s.push.Send(gctx, batch, title, body, data); err != nil {
				// Log and keep going; other batches should still be attempted.
				l.Error().Err(err).
					Str(pkglog.FieldPostID, post.ID).
					Int("batch_size", len(batch)).
					Msg("push dispatch batch failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	l.Info().
		Str(pkglog.FieldPostID, post.ID).
		Int("recipients", len(recipients)).
		Int("tokens", len(tokens)).
		Msg("fan-out complete")
	return nil
}

// truncateBody caps the notification body, backing off to a rune boundary
// so a multi-byte character is never split.
func truncateBody(s string) string {
	if len(s) <= pushBodyLimit {
		return s
	}
	cut := pushBodyLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// HandlePostCreated loads the post referenced by the event and runs the
// fan-out. Implements consumer.PostEventHandler.
func (s *fanoutService) HandlePostCreated(ctx context.Context, event *eventbroker.PostCreatedEvent) error {
	post, err := s.posts.FindByID(ctx, event.PostID)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			// Deleted between publish and consume; nothing to notify.
			return nil
		}
		return fmt.Errorf("load post for fan-out: %w", err)
	}
	return s.Notify(ctx, post)
}

// Ensure interface is satisfied at compile time.
var _ FanoutService = (*fanoutService)(nil)
