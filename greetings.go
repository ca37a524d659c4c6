package guestbook

import (
	"context"
	"fmt"
)

// Greetings returns the newest greetings of a guestbook, at most one page.
// An empty name selects the default guestbook.
func (s *Service) Greetings(ctx context.Context, guestbook string) ([]Greeting, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list greetings: %w", err)
	}

	name := s.GuestbookName(guestbook)

	greetings, err := s.repo.ListGreetings(ctx, name, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("list greetings %s: %w", name, err)
	}

	return greetings, nil
}

// Sign stores a greeting in a guestbook. author may be nil for anonymous
// posts. content is stored verbatim, empty included.
func (s *Service) Sign(ctx context.Context, guestbook string, author *User, content string) (Greeting, error) {
	if err := ctx.Err(); err != nil {
		return Greeting{}, fmt.Errorf("sign guestbook: %w", err)
	}

	name := s.GuestbookName(guestbook)

	g := Greeting{
		Key:       NewGreetingKey(name),
		Guestbook: name,
		Author:    author,
		Content:   content,
		Date:      s.clock(),
	}

	if err := s.repo.CreateGreeting(ctx, g); err != nil {
		return Greeting{}, fmt.Errorf("sign guestbook %s: %w", name, err)
	}

	return g, nil
}
