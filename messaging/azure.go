package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/rs/zerolog/log"

	"example.com/taskboard/config"
	"example.com/taskboard/domain"
	"example.com/taskboard/utils"
)

const receiveBatchSize = 10

type AzureClient struct {
	client *azservicebus.Client
}

func NewAzureClient(cfg config.Config) (*AzureClient, error) {
	client, err := azservicebus.NewClientFromConnectionString(cfg.AzureQueueConnStr, nil)
	if err != nil {
		return nil, err
	}

	return &AzureClient{client: client}, nil
}

// StartConsumers accepts queue sessions as they become available and hands
// each one to its own goroutine. Sessions keep commands for the same task in
// order, which keeps optimistic-concurrency retries rare.
func (a *AzureClient) StartConsumers(queueName string, processor MessageProcessor) error {
	log.Info().Msgf("Starting consumers for queue %s", queueName)

	// Loop continuously to handle reconnections
	for {
		sessionReceiver, err := a.client.AcceptNextSessionForQueue(context.TODO(), queueName, nil)
		if err != nil {
			var sbErr *azservicebus.Error
			if errors.As(err, &sbErr) && sbErr.Code == azservicebus.CodeTimeout {
				log.Info().Msg("No session available, waiting...")
				time.Sleep(2 * time.Second)
				continue
			}
			return err
		}

		log.Info().Msgf("Session '%s' received", sessionReceiver.SessionID())

		go a.handleSession(sessionReceiver, processor)
	}
}

func (a *AzureClient) handleSession(receiver *azservicebus.SessionReceiver, processor MessageProcessor) {
	defer func() {
		log.Info().Msgf("Closing session '%s'", receiver.SessionID())
		if err := receiver.Close(context.TODO()); err != nil {
			log.Error().Err(err).Msgf("Error closing session '%s'", receiver.SessionID())
		}
	}()

	for {
		messages, err := receiver.ReceiveMessages(context.TODO(), receiveBatchSize, nil)
		if err != nil {
			log.Error().Err(err).Msgf("Error receiving messages from session '%s'", receiver.SessionID())
			return
		}

		if len(messages) == 0 {
			// No more messages in this session
			return
		}

		log.Info().Msgf("Received %d messages from session '%s'", len(messages), receiver.SessionID())

		for _, message := range messages {
			a.settle(receiver, message, processor.ProcessMessage(context.Background(), message))
		}
	}
}

// settle completes, abandons or dead-letters the message depending on how
// processing failed. Commands that can never succeed must not cycle through
// redelivery forever.
func (a *AzureClient) settle(receiver *azservicebus.SessionReceiver, message *azservicebus.ReceivedMessage, procErr error) {
	ctx := context.Background()

	if procErr == nil {
		if err := receiver.CompleteMessage(ctx, message, nil); err != nil {
			log.Error().Err(err).Msgf("(CompleteMessage) err: %v", err)
		}
		return
	}

	log.Error().Err(procErr).Msgf("Error processing message '%s'", message.MessageID)

	if isPoison(procErr) {
		reason := "CommandRejected"
		description := procErr.Error()
		err := receiver.DeadLetterMessage(ctx, message, &azservicebus.DeadLetterOptions{
			Reason:           &reason,
			ErrorDescription: &description,
		})
		if err != nil {
			log.Error().Err(err).Msgf("(DeadLetterMessage) err: %v", err)
		}
		return
	}

	// Transient failure, return the message to the queue
	if err := receiver.AbandonMessage(ctx, message, nil); err != nil {
		log.Error().Err(err).Msgf("(AbandonMessage) err: %v", err)
	}
}

// isPoison reports whether the command failed a rule that redelivery cannot
// fix. Concurrency conflicts and store outages stay retryable.
func isPoison(err error) bool {
	switch {
	case utils.IsValidationError(err):
		return true
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrAlreadyCompleted),
		errors.Is(err, domain.ErrNotCompleted):
		return true
	}
	return false
}
