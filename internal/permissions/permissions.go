// Package permissions decides whether the caller's plan allows a quota-gated
// action.
package permissions

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/garnizeh/prep/internal/auth"
)

// Feature is a plan entitlement name as issued by the identity provider.
type Feature string

const (
	UnlimitedResumeAnalysis Feature = "unlimited_resume_analysis"
	UnlimitedInterviews     Feature = "unlimited_interviews"
	UnlimitedQuestions      Feature = "unlimited_questions"
	OneInterview            Feature = "1_interview"
	FiveQuestions           Feature = "5_questions"
)

const (
	QuestionLimit  = 5
	InterviewLimit = 1
)

// Entitlements reports whether principal holds feature.
type Entitlements interface {
	Has(ctx context.Context, p auth.Principal, f Feature) (bool, error)
}

// ClaimEntitlements reads features from the identity token claims.
type ClaimEntitlements struct{}

func (ClaimEntitlements) Has(_ context.Context, p auth.Principal, f Feature) (bool, error) {
	return p.Has(string(f)), nil
}

// Counters report resource usage per user.
type Counters interface {
	CountQuestionsByUser(ctx context.Context, userID string) (int64, error)
	CountCompletedInterviewsByUser(ctx context.Context, userID string) (int64, error)
}

// Rule grants an action when the caller holds Unlimited, or holds Limited and
// Count is strictly below Threshold. Empty features are never held.
type Rule struct {
	Unlimited Feature
	Limited   Feature
	Threshold int64
	Count     func(ctx context.Context, userID string) (int64, error)
}

var errAllowed = errors.New("allowed")

// Evaluate runs both branches of rule concurrently and returns as soon as
// either allows the action. Anonymous callers are denied. An error from a
// branch is returned only when the other branch did not allow the action.
func Evaluate(ctx context.Context, ent Entitlements, rule Rule) (bool, error) {
	p, ok := auth.FromContext(ctx)
	if !ok {
		return false, nil
	}
	if ent == nil {
		ent = ClaimEntitlements{}
	}

	g, gctx := errgroup.WithContext(ctx)
	var unlimitedErr, limitedErr error

	if rule.Unlimited != "" {
		g.Go(func() error {
			has, err := ent.Has(gctx, p, rule.Unlimited)
			if err != nil {
				unlimitedErr = err
				return nil
			}
			if has {
				return errAllowed
			}
			return nil
		})
	}

	if rule.Limited != "" && rule.Count != nil {
		g.Go(func() error {
			has, err := ent.Has(gctx, p, rule.Limited)
			if err != nil {
				limitedErr = err
				return nil
			}
			if !has {
				return nil
			}
			n, err := rule.Count(gctx, p.UserID)
			if err != nil {
				limitedErr = err
				return nil
			}
			if n < rule.Threshold {
				return errAllowed
			}
			return nil
		})
	}

	if err := g.Wait(); errors.Is(err, errAllowed) {
		return true, nil
	}
	return false, errors.Join(unlimitedErr, limitedErr)
}

type Evaluator struct {
	ent      Entitlements
	counters Counters
}

func New(ent Entitlements, counters Counters) *Evaluator {
	if ent == nil {
		ent = ClaimEntitlements{}
	}
	return &Evaluator{ent: ent, counters: counters}
}

func (e *Evaluator) CanCreateQuestion(ctx context.Context) (bool, error) {
	return Evaluate(ctx, e.ent, Rule{
		Unlimited: UnlimitedQuestions,
		Limited:   FiveQuestions,
		Threshold: QuestionLimit,
		Count:     e.counters.CountQuestionsByUser,
	})
}

// CanCreateInterview counts only interviews that reached the voice provider.
func (e *Evaluator) CanCreateInterview(ctx context.Context) (bool, error) {
	return Evaluate(ctx, e.ent, Rule{
		Unlimited: UnlimitedInterviews,
		Limited:   OneInterview,
		Threshold: InterviewLimit,
		Count:     e.counters.CountCompletedInterviewsByUser,
	})
}

func (e *Evaluator) CanRunResumeAnalysis(ctx context.Context) (bool, error) {
	return Evaluate(ctx, e.ent, Rule{Unlimited: UnlimitedResumeAnalysis})
}

// Summary is the caller's entitlement snapshot served by /v1/me.
type Summary struct {
	CreateQuestion    bool `json:"createQuestion"`
	CreateInterview   bool `json:"createInterview"`
	RunResumeAnalysis bool `json:"runResumeAnalysis"`
}

func (e *Evaluator) Summary(ctx context.Context) (Summary, error) {
	var s Summary
	var err error
	if s.CreateQuestion, err = e.CanCreateQuestion(ctx); err != nil {
		return Summary{}, err
	}
	if s.CreateInterview, err = e.CanCreateInterview(ctx); err != nil {
		return Summary{}, err
	}
	if s.RunResumeAnalysis, err = e.CanRunResumeAnalysis(ctx); err != nil {
		return Summary{}, err
	}
	return s, nil
}
