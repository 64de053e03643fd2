package idle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
)

// Terminator stops the compute instance the service runs on.
type Terminator interface {
	Terminate(ctx context.Context) error
}

// DefaultMetadataURL is the task metadata endpoint available to Fargate tasks
// that predate the v4 endpoint.
const DefaultMetadataURL = "http://169.254.170.2/v2/metadata"

// ECSAPI is the subset of the ECS client used by ECSTerminator.
type ECSAPI interface {
	StopTask(ctx context.Context, params *ecs.StopTaskInput, optFns ...func(*ecs.Options)) (*ecs.StopTaskOutput, error)
}

// ECSTerminator stops the ECS task this process runs in.
type ECSTerminator struct {
	api         ECSAPI
	cluster     string
	metadataURL string
	client      *http.Client
	reason      string
}

// NewECSTerminator loads the default AWS configuration. The task is located
// through ECS_CONTAINER_METADATA_URI_V4 when set, else DefaultMetadataURL.
func NewECSTerminator(ctx context.Context, region, cluster string) (*ECSTerminator, error) {
	if cluster == "" {
		return nil, fmt.Errorf("ecs cluster is required")
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewECSTerminatorWithAPI(ecs.NewFromConfig(cfg), cluster, MetadataURLFromEnv()), nil
}

// NewECSTerminatorWithAPI creates a terminator over an existing client.
func NewECSTerminatorWithAPI(api ECSAPI, cluster, metadataURL string) *ECSTerminator {
	if metadataURL == "" {
		metadataURL = DefaultMetadataURL
	}
	return &ECSTerminator{
		api:         api,
		cluster:     cluster,
		metadataURL: metadataURL,
		client:      &http.Client{Timeout: 5 * time.Second},
		reason:      "idle timeout",
	}
}

// MetadataURLFromEnv returns the task metadata URL for the running container.
func MetadataURLFromEnv() string {
	if v4 := strings.TrimRight(os.Getenv("ECS_CONTAINER_METADATA_URI_V4"), "/"); v4 != "" {
		return v4 + "/task"
	}
	return DefaultMetadataURL
}

// TaskARN reads the running task's ARN from the metadata endpoint.
func (t *ECSTerminator) TaskARN(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.metadataURL, nil)
	if err != nil {
		return "", fmt.Errorf("task metadata request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("task metadata: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("task metadata: HTTP %d", resp.StatusCode)
	}
	var meta struct {
		TaskARN string `json:"TaskARN"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&meta); err != nil {
		return "", fmt.Errorf("decode task metadata: %w", err)
	}
	if meta.TaskARN == "" {
		return "", fmt.Errorf("task metadata has no TaskARN")
	}
	return meta.TaskARN, nil
}

// Terminate stops the current task.
func (t *ECSTerminator) Terminate(ctx context.Context) error {
	arn, err := t.TaskARN(ctx)
	if err != nil {
		return err
	}
	_, err = t.api.StopTask(ctx, &ecs.StopTaskInput{
		Cluster: aws.String(t.cluster),
		Task:    aws.String(arn),
		Reason:  aws.String(t.reason),
	})
	if err != nil {
		return fmt.Errorf("ecs stop task cluster=%s task=%s: %w", t.cluster, arn, err)
	}
	return nil
}

// CancelTerminator ends the process's serve context, for runs outside ECS.
type CancelTerminator struct {
	cancel context.CancelFunc
}

// NewCancelTerminator wraps the cancel function of the serve context.
func NewCancelTerminator(cancel context.CancelFunc) *CancelTerminator {
	return &CancelTerminator{cancel: cancel}
}

func (c *CancelTerminator) Terminate(context.Context) error {
	c.cancel()
	return nil
}
