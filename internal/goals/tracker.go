// Package goals tracks financial goals: add, toggle, delete and the
// active/completed board.
package goals

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pathakanu/billcal/internal/model"
	"github.com/pathakanu/billcal/internal/session"
	"github.com/shopspring/decimal"
)

// ErrGoalRequired blocks adding a goal without text.
var ErrGoalRequired = errors.New("goal text is required")

// Store is the subset of the record store the tracker uses.
type Store interface {
	Create(ctx context.Context, goal *model.Goal) error
	Get(ctx context.Context, userID, id string) (model.Goal, error)
	List(ctx context.Context, userID string) ([]model.Goal, error)
	SetStatus(ctx context.Context, userID, id string, status model.GoalStatus) error
	Delete(ctx context.Context, userID, id string) error
}

// NewGoal describes a goal to add.
type NewGoal struct {
	Text         string              `json:"goal"`
	TargetAmount decimal.NullDecimal `json:"target_amount"`
	TargetDate   string              `json:"target_date"`
	Priority     int                 `json:"priority"`
}

// Board partitions goals for display. Both lists are ordered by priority
// descending, then creation time descending.
type Board struct {
	Active    []model.Goal `json:"active"`
	Completed []model.Goal `json:"completed"`
}

// Tracker manages the goals of a user.
type Tracker struct {
	store Store
}

// NewTracker returns a Tracker over store.
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store}
}

// AddGoal creates an active goal. A zero priority defaults to low.
func (t *Tracker) AddGoal(ctx context.Context, sess session.Session, in NewGoal) (Board, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return Board{}, ErrGoalRequired
	}
	if in.Priority == 0 {
		in.Priority = model.PriorityLow
	}
	if in.Priority < model.PriorityLow || in.Priority > model.PriorityHigh {
		return Board{}, model.ErrInvalidPriority
	}

	goal := &model.Goal{
		UserID:       sess.UserID,
		Goal:         text,
		TargetAmount: in.TargetAmount,
		Priority:     in.Priority,
		Status:       model.GoalActive,
	}
	if strings.TrimSpace(in.TargetDate) != "" {
		day, err := session.ParseDay(in.TargetDate, sess.Location)
		if err != nil {
			return Board{}, err
		}
		date := day.Format(session.DayLayout)
		goal.TargetDate = &date
	}
	if err := t.store.Create(ctx, goal); err != nil {
		return Board{}, fmt.Errorf("add goal: %w", err)
	}
	return t.List(ctx, sess)
}

// ToggleStatus flips a goal between active and completed. A paused goal is
// resumed as active.
func (t *Tracker) ToggleStatus(ctx context.Context, sess session.Session, goalID string) (Board, error) {
	goal, err := t.store.Get(ctx, sess.UserID, goalID)
	if err != nil {
		return Board{}, fmt.Errorf("toggle goal: %w", err)
	}
	next := model.GoalCompleted
	if goal.Status != model.GoalActive {
		next = model.GoalActive
	}
	if err := t.store.SetStatus(ctx, sess.UserID, goalID, next); err != nil {
		return Board{}, fmt.Errorf("toggle goal: %w", err)
	}
	return t.List(ctx, sess)
}

// DeleteGoal removes a goal permanently.
func (t *Tracker) DeleteGoal(ctx context.Context, sess session.Session, goalID string) (Board, error) {
	if err := t.store.Delete(ctx, sess.UserID, goalID); err != nil {
		return Board{}, fmt.Errorf("delete goal: %w", err)
	}
	return t.List(ctx, sess)
}

// List returns the user's goals split into active and completed.
func (t *Tracker) List(ctx context.Context, sess session.Session) (Board, error) {
	goals, err := t.store.List(ctx, sess.UserID)
	if err != nil {
		return Board{}, fmt.Errorf("list goals: %w", err)
	}
	return Partition(goals), nil
}

// Partition splits goals, already in display order, by status. Paused goals
// appear in neither list.
func Partition(goals []model.Goal) Board {
	board := Board{Active: []model.Goal{}, Completed: []model.Goal{}}
	for _, g := range goals {
		switch g.Status {
		case model.GoalActive:
			board.Active = append(board.Active, g)
		case model.GoalCompleted:
			board.Completed = append(board.Completed, g)
		}
	}
	return board
}
