package config

import (
	"os"
	"strings"
)

// OperationsPushEndpointEnabled gates the pub/sub push endpoint. Disable it on
// deployments where runs are driven by the CLI only.
//
// Set via env:
// - ENABLE_OPERATIONS_PUBSUB_PUSH_ENDPOINT=false
func OperationsPushEndpointEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("ENABLE_OPERATIONS_PUBSUB_PUSH_ENDPOINT")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// CreateTopicOnPublish lets a fresh environment create the operations topic on
// first publish instead of requiring it to be provisioned up front.
//
// Set via env:
// - OPERATIONS_CREATE_TOPIC=true
func CreateTopicOnPublish() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("OPERATIONS_CREATE_TOPIC")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
