package resource

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Sternrassler/wellness-sync/pkg/api"
	"github.com/Sternrassler/wellness-sync/pkg/models"
)

// QuestionFilter selects forum questions.
type QuestionFilter struct {
	Search   string
	Category string
}

// Values implements Valuer.
func (f QuestionFilter) Values() url.Values {
	v := url.Values{}
	if f.Search != "" {
		v.Set("search", f.Search)
	}
	if f.Category != "" {
		v.Set("category", f.Category)
	}
	return v
}

// Forum is the forum question list.
type Forum struct {
	*Resource[QuestionFilter, []models.Question]

	api *api.API
}

// NewForum creates the forum resource.
func NewForum(a *api.API, opts Options) (*Forum, error) {
	ttl := opts.ttl(DefaultListTTL)
	r, err := New(Config[QuestionFilter, []models.Question]{
		Name: "forum_questions",
		Fetch: func(ctx context.Context, f QuestionFilter) ([]models.Question, error) {
			return a.Questions(ctx, api.QuestionQuery{Search: f.Search, Category: f.Category})
		},
		Store:  newStore[[]models.Question](opts, "forum", ttl),
		TTL:    ttl,
		Scope:  opts.Scope,
		Clock:  opts.Clock,
		Logger: opts.Logger,
	}, QuestionFilter{})
	if err != nil {
		return nil, err
	}
	return &Forum{Resource: r, api: a}, nil
}

// Search filters the list by text.
func (f *Forum) Search(ctx context.Context, text string) State[[]models.Question] {
	filter := f.Params()
	filter.Search = strings.TrimSpace(text)
	return f.SetParams(ctx, filter)
}

// Ask posts a question and refreshes the list.
func (f *Forum) Ask(ctx context.Context, in models.QuestionInput) (*models.Question, error) {
	if err := validateQuestion(in); err != nil {
		return nil, err
	}
	var q *models.Question
	err := f.Mutate(ctx, func(ctx context.Context) error {
		var err error
		q, err = f.api.AskQuestion(ctx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// UpdateQuestion edits a question and refreshes the list.
func (f *Forum) UpdateQuestion(ctx context.Context, id string, in models.QuestionInput) (*models.Question, error) {
	if err := validateQuestion(in); err != nil {
		return nil, err
	}
	var q *models.Question
	err := f.Mutate(ctx, func(ctx context.Context) error {
		var err error
		q, err = f.api.UpdateQuestion(ctx, id, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// DeleteQuestion removes a question and refreshes the list.
func (f *Forum) DeleteQuestion(ctx context.Context, id string) error {
	return f.Mutate(ctx, func(ctx context.Context) error {
		return f.api.DeleteQuestion(ctx, id)
	})
}

// Answer replies to a question and refreshes the list (answer counts change).
func (f *Forum) Answer(ctx context.Context, questionID, body string) (*models.Answer, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("answer body is required")
	}
	var ans *models.Answer
	err := f.Mutate(ctx, func(ctx context.Context) error {
		var err error
		ans, err = f.api.PostAnswer(ctx, questionID, models.AnswerInput{Body: body})
		return err
	})
	if err != nil {
		return nil, err
	}
	return ans, nil
}

// Answers lists the answers to a question.
func (f *Forum) Answers(ctx context.Context, questionID string) ([]models.Answer, error) {
	return f.api.Answers(ctx, questionID)
}

func validateQuestion(in models.QuestionInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("question title is required")
	}
	if strings.TrimSpace(in.Body) == "" {
		return fmt.Errorf("question body is required")
	}
	return nil
}
