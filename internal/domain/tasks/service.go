package tasks

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agenda/agenda/internal/platform/docstore"
	"github.com/agenda/agenda/pkg/caldate"
)

var validCategories = map[string]bool{
	CategoryReport: true, CategoryAppointment: true, CategoryContact: true,
	CategoryAdministrative: true, CategoryPersonal: true, CategoryOther: true,
}

var validPriorities = map[string]bool{
	PriorityHigh: true, PriorityMedium: true, PriorityLow: true,
}

type Service struct {
	tasks docstore.Repository[Task]
	clock caldate.Clock
}

func NewService(repo docstore.Repository[Task], clock caldate.Clock) *Service {
	return &Service{tasks: repo, clock: clock}
}

// normalize applies the form defaults and validates the result.
func normalize(t *Task) error {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if t.Category == "" {
		t.Category = CategoryOther
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if !validCategories[t.Category] {
		return fmt.Errorf("invalid category: %s", t.Category)
	}
	if !validPriorities[t.Priority] {
		return fmt.Errorf("invalid priority: %s", t.Priority)
	}
	return nil
}

func (s *Service) CreateTask(ctx context.Context, t *Task) error {
	if err := normalize(t); err != nil {
		return err
	}
	now := s.clock.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Completed = false
	t.CompletedAt = nil
	return s.tasks.Create(ctx, t)
}

func (s *Service) GetTask(ctx context.Context, id string) (*Task, error) {
	return s.tasks.Get(ctx, id)
}

// UpdateTask rewrites the form fields. Completion is only changed through
// ToggleComplete.
func (s *Service) UpdateTask(ctx context.Context, t *Task) error {
	if err := normalize(t); err != nil {
		return err
	}
	patch := map[string]any{
		"title":       t.Title,
		"description": t.Description,
		"category":    t.Category,
		"priority":    t.Priority,
		"dueDate":     t.DueDate,
		"updatedAt":   s.clock.Now().UTC(),
	}
	if err := s.tasks.Update(ctx, t.ID, patch); err != nil {
		return err
	}
	stored, err := s.tasks.Get(ctx, t.ID)
	if err != nil {
		return err
	}
	*t = *stored
	return nil
}

// ToggleComplete marks a task done (stamping completedAt) or reopens it.
func (s *Service) ToggleComplete(ctx context.Context, id string, completed bool) (*Task, error) {
	now := s.clock.Now().UTC()
	patch := map[string]any{
		"completed":   completed,
		"completedAt": nil,
		"updatedAt":   now,
	}
	if completed {
		patch["completedAt"] = now
	}
	if err := s.tasks.Update(ctx, id, patch); err != nil {
		return nil, err
	}
	return s.tasks.Get(ctx, id)
}

func (s *Service) DeleteTask(ctx context.Context, id string) error {
	return s.tasks.Delete(ctx, id)
}

// ListTasks returns open tasks first, then by priority, then newest first.
func (s *Service) ListTasks(ctx context.Context, f Filter) ([]*Task, error) {
	var filters []docstore.Filter
	if f.Category != "" && f.Category != "all" {
		filters = append(filters, docstore.Where("category", f.Category))
	}
	if f.Priority != "" && f.Priority != "all" {
		filters = append(filters, docstore.Where("priority", f.Priority))
	}
	switch f.Status {
	case "", "all":
	case "completed":
		filters = append(filters, docstore.Where("completed", "true"))
	case "pending":
		filters = append(filters, docstore.Where("completed", "false"))
	default:
		return nil, fmt.Errorf("invalid status filter: %s", f.Status)
	}

	items, err := s.tasks.List(ctx, filters...)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Completed != b.Completed {
			return !a.Completed
		}
		if ra, rb := priorityRank[a.Priority], priorityRank[b.Priority]; ra != rb {
			return ra < rb
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return items, nil
}

// Overdue lists urgent open tasks due on or before day.
func (s *Service) Overdue(ctx context.Context, day caldate.Date) ([]*Task, error) {
	items, err := s.ListTasks(ctx, Filter{Priority: PriorityHigh, Status: "pending"})
	if err != nil {
		return nil, err
	}
	var out []*Task
	for _, t := range items {
		if !t.DueDate.IsZero() && !t.DueDate.After(day) {
			out = append(out, t)
		}
	}
	return out, nil
}
