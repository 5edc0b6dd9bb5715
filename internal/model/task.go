package model

import (
	"time"

	"github.com/google/uuid"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Rank нужен для сортировки: high > medium > low
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

type Task struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Completed   bool       `json:"completed"`
	Priority    Priority   `json:"priority"`
	Tags        []string   `json:"tags"`
	DueDate     string     `json:"dueDate,omitempty"`
	Memo        string     `json:"memo,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func (t Task) HasTag(name string) bool {
	for _, tag := range t.Tags {
		if tag == name {
			return true
		}
	}
	return false
}

type TaskInput struct {
	Title    string   `json:"title"`
	Priority Priority `json:"priority,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	DueDate  string   `json:"dueDate,omitempty"`
	Memo     string   `json:"memo,omitempty"`
}

// TaskPatch — частичное обновление: nil-поля не трогаем
type TaskPatch struct {
	Title     *string   `json:"title,omitempty"`
	Completed *bool     `json:"completed,omitempty"`
	Priority  *Priority `json:"priority,omitempty"`
	Tags      *[]string `json:"tags,omitempty"`
	DueDate   *string   `json:"dueDate,omitempty"`
	Memo      *string   `json:"memo,omitempty"`
}

type TaskFilter struct {
	Completed *bool
	Priority  *Priority
	Tag       *string
	Search    *string
	DueDate   *string
	SortBy    string
	SortDesc  bool
}
