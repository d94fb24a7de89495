package operations

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mkstore/procurement_backend/config"
	"github.com/mkstore/procurement_backend/models"
)

func operationsTopicName() string {
	if v := strings.TrimSpace(os.Getenv("OPERATIONS_TOPIC")); v != "" {
		return v
	}
	return "order-operations"
}

// PublishOperationRun publishes one queued run to the operations topic.
func PublishOperationRun(ctx context.Context, runId uint, correlationId string) error {
	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topicName := operationsTopicName()
	topic := client.Topic(topicName)
	if config.CreateTopicOnPublish() {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
	}

	payload := OperationPubSubPayload{
		RunId:         runId,
		CorrelationId: correlationId,
	}
	data, _ := json.Marshal(payload)
	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	_, err = res.Get(ctx)
	return err
}

// PubSubPushHandler drives a reconciliation run from a push subscription.
// Cloud Scheduler publishes an empty payload on the nightly cron; a run row
// is created on the fly for those. Responses are always 204: push retries are
// decided by the run row, not the HTTP status.
func PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !config.OperationsPushEndpointEnabled() {
			c.Status(204)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		var payload OperationPubSubPayload
		if len(envelope.Message.Data) > 0 {
			if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
				c.Status(204)
				return
			}
		}

		if payload.RunId == 0 {
			run, err := createScheduledRun(c.Request.Context())
			if err != nil {
				config.LogError(config.GetLogger(), "pubsub.go", "PubSubPushHandler", "Creating scheduled run", nil, err)
				c.Status(204)
				return
			}
			payload.RunId = run.ID
			payload.CorrelationId = run.CorrelationId
		}

		if err := processOperationRun(c.Request.Context(), payload); err != nil {
			config.LogError(config.GetLogger(), "pubsub.go", "PubSubPushHandler", "Processing run", payload, err)
		}
		c.Status(204)
	}
}

func createScheduledRun(ctx context.Context) (*models.OperationRun, error) {
	db := config.GetDB()
	if db == nil {
		return nil, errors.New("database not initialized")
	}
	run := models.OperationRun{
		CorrelationId: uuid.NewString(),
		Status:        models.RunStatusQueued,
		TriggeredBy:   models.RunTriggeredSchedule,
	}
	if err := db.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}
