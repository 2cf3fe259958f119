package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/rs/zerolog/log"

	"example.com/taskboard/handlers"
)

// EventType definitions
const (
	CreateTask   = "CreateTask"
	UpdateTask   = "UpdateTask"
	CompleteTask = "CompleteTask"
	ReopenTask   = "ReopenTask"
	DeleteTask   = "DeleteTask"
)

// AzureBusMessage is the common message structure
type AzureBusMessage struct {
	EventType string          `json:"eventType"`
	Data      json.RawMessage `json:"data"`
}

type MessageProcessor interface {
	ProcessMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error
}

type Processor struct {
	taskHandler *handlers.TaskHandler
}

func NewProcessor(taskHandler *handlers.TaskHandler) *Processor {
	return &Processor{taskHandler: taskHandler}
}

func (p *Processor) ProcessMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error {
	var msg AzureBusMessage
	if err := json.Unmarshal(message.Body, &msg); err != nil {
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	log.Info().Str("eventType", msg.EventType).Msg("Processing message")

	switch msg.EventType {
	case CreateTask:
		var cmd handlers.CreateTaskCommand
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			return err
		}
		_, err := p.taskHandler.HandleCreateTask(ctx, cmd)
		return err

	case UpdateTask:
		var cmd handlers.UpdateTaskCommand
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			return err
		}
		_, err := p.taskHandler.HandleUpdateTask(ctx, cmd)
		return err

	case CompleteTask:
		var cmd handlers.CompleteTaskCommand
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			return err
		}
		_, err := p.taskHandler.HandleCompleteTask(ctx, cmd)
		return err

	case ReopenTask:
		var cmd handlers.ReopenTaskCommand
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			return err
		}
		_, err := p.taskHandler.HandleReopenTask(ctx, cmd)
		return err

	case DeleteTask:
		var cmd handlers.DeleteTaskCommand
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			return err
		}
		_, err := p.taskHandler.HandleDeleteTask(ctx, cmd)
		return err

	default:
		return fmt.Errorf("unsupported event type: %s", msg.EventType)
	}
}
