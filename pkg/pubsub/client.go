// Package pubsub wraps the Pub/Sub v2 client with the topic and subscription
// names from config.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// Role decides which resources Ping checks.
type Role int

const (
	// RolePublisher checks the outbound topics.
	RolePublisher Role = iota
	// RoleConsumer checks the subscriptions and refuses to start without them.
	RoleConsumer
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoSubscriptions   = errors.New("pubsub subscription name is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	role      Role

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, role Role, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}

	ps, err := pubsub.NewClient(ctx, project, clientOptions(gcp, cfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: ps, projectID: project, cfg: cfg, role: role, publishers: map[string]*pubsub.Publisher{}}

	if role == RoleConsumer {
		if err := c.checkSubscriptions(ctx); err != nil {
			_ = ps.Close()
			return nil, err
		}
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project":  project,
			"emulator": cfg.EmulatorHost != "",
		}), "pubsub client initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig, cfg config.PubSubConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(cfg.EmulatorHost) != "":
		return []option.ClientOption{
			option.WithEndpoint(strings.TrimSpace(cfg.EmulatorHost)),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		}
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(strings.TrimSpace(gcp.CredentialsJSON)))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(strings.TrimSpace(gcp.ApplicationCredentials))}
	}
	return nil
}

func subscriptionNames(cfg config.PubSubConfig) []string {
	var names []string
	if n := strings.TrimSpace(cfg.NotificationSubscription); n != "" {
		names = append(names, n)
	}
	return names
}

func (c *Client) checkSubscriptions(ctx context.Context) error {
	names := subscriptionNames(c.cfg)
	if len(names) == 0 {
		return errNoSubscriptions
	}
	for _, name := range names {
		_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{
			Subscription: c.resourceName("subscriptions", name),
		})
		if err := describe("subscription", name, err); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) checkTopics(ctx context.Context) error {
	for _, name := range []string{c.cfg.NotificationTopic, c.cfg.CatalogTopic} {
		full := c.resourceName("topics", name)
		if full == "" {
			continue
		}
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
		if err := describe("topic", name, err); err != nil {
			return err
		}
	}
	return nil
}

func describe(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, name)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, name, err)
	}
}

// Subscription accepts a bare ID or a full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	full := c.resourceName("subscriptions", name)
	if full == "" {
		return nil
	}
	return c.client.Subscriber(full)
}

func (c *Client) NotificationSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.NotificationSubscription)
}

// Publisher returns a shared handle per topic; Close flushes them.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := c.resourceName("topics", name)
	if full == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[full]; ok {
		return p
	}
	p := c.client.Publisher(full)
	c.publishers[full] = p
	return p
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	if c.role == RoleConsumer {
		return c.checkSubscriptions(ctx)
	}
	return c.checkTopics(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for full, p := range c.publishers {
		p.Stop()
		delete(c.publishers, full)
	}
	c.mu.Unlock()
	return c.client.Close()
}

// resourceName expands a bare ID to projects/<project>/<kind>/<id>.
func (c *Client) resourceName(kind, name string) string {
	n := strings.TrimSpace(name)
	if c == nil || n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+kind+"/") {
		return n
	}
	return fmt.Sprintf("projects/%s/%s/%s", c.projectID, kind, n)
}
