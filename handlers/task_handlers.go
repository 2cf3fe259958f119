package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"example.com/taskboard/domain"
	"example.com/taskboard/eventbus"
	"example.com/taskboard/repository"
	"example.com/taskboard/utils"
)

// Command structs
type CreateTaskCommand struct {
	TaskID      string  `json:"task_id"`
	Title       string  `json:"title" validate:"required,max=200"`
	Description *string `json:"description"`
	ActorID     string  `json:"actor_id" validate:"required,actor_id"`
}

type UpdateTaskCommand struct {
	TaskID      string  `json:"task_id" validate:"required"`
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description"`
	ActorID     string  `json:"actor_id" validate:"required,actor_id"`
}

type CompleteTaskCommand struct {
	TaskID  string `json:"task_id" validate:"required"`
	ActorID string `json:"actor_id" validate:"required,actor_id"`
}

type ReopenTaskCommand struct {
	TaskID  string `json:"task_id" validate:"required"`
	ActorID string `json:"actor_id" validate:"required,actor_id"`
}

type DeleteTaskCommand struct {
	TaskID  string  `json:"task_id" validate:"required"`
	ActorID string  `json:"actor_id" validate:"required,actor_id"`
	Reason  *string `json:"reason"`
}

// TaskHandler handles all task commands. Business-rule violations from the
// aggregate surface unmodified; concurrency conflicts propagate for the
// caller to resolve by reload-and-retry.
type TaskHandler struct {
	repo *repository.TaskRepository
	bus  *eventbus.Bus
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(repo *repository.TaskRepository, bus *eventbus.Bus) *TaskHandler {
	return &TaskHandler{repo: repo, bus: bus}
}

// HandleCreateTask creates a new task
func (h *TaskHandler) HandleCreateTask(ctx context.Context, cmd CreateTaskCommand) (*domain.TaskState, error) {
	if err := utils.ValidateStruct(cmd); err != nil {
		return nil, err
	}

	taskID := cmd.TaskID
	if taskID == "" {
		taskID = uuid.New().String()
	}

	log.Info().Str("aggregateID", taskID).Msg("Handling CreateTask command")

	existing, err := h.repo.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrAlreadyExists
	}

	task := domain.NewTask(taskID)
	if err := task.Create(cmd.Title, cmd.ActorID, cmd.Description); err != nil {
		return nil, err
	}

	return h.commit(ctx, task)
}

// HandleUpdateTask updates a task's title and/or description
func (h *TaskHandler) HandleUpdateTask(ctx context.Context, cmd UpdateTaskCommand) (*domain.TaskState, error) {
	if err := utils.ValidateStruct(cmd); err != nil {
		return nil, err
	}

	log.Info().Str("aggregateID", cmd.TaskID).Msg("Handling UpdateTask command")

	task, err := h.load(ctx, cmd.TaskID)
	if err != nil {
		return nil, err
	}

	updates := domain.TaskUpdates{Title: cmd.Title, Description: cmd.Description}
	if err := task.Update(updates, cmd.ActorID); err != nil {
		return nil, err
	}

	return h.commit(ctx, task)
}

// HandleCompleteTask marks a task done
func (h *TaskHandler) HandleCompleteTask(ctx context.Context, cmd CompleteTaskCommand) (*domain.TaskState, error) {
	if err := utils.ValidateStruct(cmd); err != nil {
		return nil, err
	}

	log.Info().Str("aggregateID", cmd.TaskID).Msg("Handling CompleteTask command")

	task, err := h.load(ctx, cmd.TaskID)
	if err != nil {
		return nil, err
	}

	if err := task.Complete(cmd.ActorID); err != nil {
		return nil, err
	}

	return h.commit(ctx, task)
}

// HandleReopenTask returns a completed task to todo
func (h *TaskHandler) HandleReopenTask(ctx context.Context, cmd ReopenTaskCommand) (*domain.TaskState, error) {
	if err := utils.ValidateStruct(cmd); err != nil {
		return nil, err
	}

	log.Info().Str("aggregateID", cmd.TaskID).Msg("Handling ReopenTask command")

	task, err := h.load(ctx, cmd.TaskID)
	if err != nil {
		return nil, err
	}

	if err := task.Reopen(cmd.ActorID); err != nil {
		return nil, err
	}

	return h.commit(ctx, task)
}

// HandleDeleteTask terminally deletes a task
func (h *TaskHandler) HandleDeleteTask(ctx context.Context, cmd DeleteTaskCommand) (*domain.TaskState, error) {
	if err := utils.ValidateStruct(cmd); err != nil {
		return nil, err
	}

	log.Info().Str("aggregateID", cmd.TaskID).Msg("Handling DeleteTask command")

	task, err := h.load(ctx, cmd.TaskID)
	if err != nil {
		return nil, err
	}

	if err := task.Delete(cmd.ActorID, cmd.Reason); err != nil {
		return nil, err
	}

	return h.commit(ctx, task)
}

func (h *TaskHandler) load(ctx context.Context, id string) (*domain.Task, error) {
	task, err := h.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	if task == nil {
		return nil, domain.ErrNotFound
	}
	return task, nil
}

// commit persists the staged batch, then publishes the committed events in
// the order produced. Publishing happens only after the append succeeds, so
// subscribers never see an event that lost its concurrency race.
func (h *TaskHandler) commit(ctx context.Context, task *domain.Task) (*domain.TaskState, error) {
	events := task.UncommittedEvents()

	if err := h.repo.Save(ctx, task); err != nil {
		return nil, err
	}

	for _, event := range events {
		h.bus.Publish(ctx, event)
	}

	return task.State(), nil
}
