package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/ports"
)

// Mask replaces every redacted match.
const Mask = "***"

type piiMiddleware struct {
	next     ports.ProgressStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks matches of the patterns in the
// free-text answers of a snapshot before it is stored. MultipleChoice answers keep
// working after a reload because each local answer also records its resolved successor.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.ProgressStore) ports.ProgressStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, snap *domain.ProgressSnapshot) error {
	masked := snap.Clone()
	for id, ans := range masked.CompletedAnswers {
		ans.Answer = m.mask(ans.Answer)
		for i, u := range ans.SelectedUsers {
			ans.SelectedUsers[i] = m.mask(u)
		}
		masked.CompletedAnswers[id] = ans
	}
	return m.next.Save(ctx, masked)
}

func (m *piiMiddleware) Load(ctx context.Context, workflow, incident string) (*domain.ProgressSnapshot, error) {
	return m.next.Load(ctx, workflow, incident)
}

func (m *piiMiddleware) Delete(ctx context.Context, workflow, incident string) error {
	return m.next.Delete(ctx, workflow, incident)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *piiMiddleware) mask(s string) string {
	for _, p := range m.patterns {
		s = p.ReplaceAllString(s, Mask)
	}
	return s
}
