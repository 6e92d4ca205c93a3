package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-payments/pkg/config"
	"github.com/angelmondragon/storefront-payments/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopic           = errors.New("pubsub payment topic is required")
	errClosed            = errors.New("pubsub client not initialized")
)

// Client publishes payment and refund events to a single topic.
type Client struct {
	client *pubsub.Client
	topic  string

	once sync.Once
	pub  *pubsub.Publisher
}

// NewClient connects and refuses to start when the payment topic is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	topic := topicName(project, cfg.PaymentTopic)
	if topic == "" {
		return nil, errNoTopic
	}

	var opts []option.ClientOption
	if gcp.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	}
	raw, err := pubsub.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	c := &Client{client: raw, topic: topic}
	if err := c.Ping(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", topic), "pubsub connected")
	}
	return c, nil
}

// PaymentPublisher returns the shared publisher for the payment topic. The
// same handle is returned on every call so batching works across callers.
func (c *Client) PaymentPublisher() *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	c.once.Do(func() {
		p := c.client.Publisher(c.topic)
		p.PublishSettings.DelayThreshold = 20 * time.Millisecond
		p.PublishSettings.CountThreshold = 100
		c.pub = p
	})
	return c.pub
}

// Ping checks that the topic exists and is visible to these credentials.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errClosed
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.topic})
	switch status.Code(err) {
	case codes.OK:
		return nil
	case codes.NotFound:
		return fmt.Errorf("topic %s does not exist", c.topic)
	default:
		return fmt.Errorf("get topic %s: %w", c.topic, err)
	}
}

// Close flushes pending publishes before closing the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.pub != nil {
		c.pub.Stop()
	}
	return c.client.Close()
}

// topicName accepts a bare topic id or a full projects/<p>/topics/<t> name.
func topicName(project, topic string) string {
	topic = strings.TrimSpace(topic)
	switch {
	case topic == "":
		return ""
	case strings.HasPrefix(topic, "projects/") && strings.Contains(topic, "/topics/"):
		return topic
	case project == "":
		return ""
	}
	return "projects/" + project + "/topics/" + topic
}
