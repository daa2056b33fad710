package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/shopcore-backend/pkg/config"
)

func TestConfiguredNamesSkipBlank(t *testing.T) {
	cfg := config.PubSubConfig{
		OrdersTopic:             "shopcore-orders",
		PaymentsTopic:           " ",
		FulfillmentTopic:        "shopcore-fulfillment",
		FulfillmentSubscription: " fulfillment-mailer ",
	}
	assert.Equal(t, []string{"shopcore-orders", "shopcore-fulfillment"}, topicNames(cfg))
	assert.Equal(t, []string{"fulfillment-mailer"}, subscriptionNames(cfg))
}

func TestResourceName(t *testing.T) {
	c := &Client{projectID: "shop-prod"}

	assert.Equal(t, "projects/shop-prod/topics/shopcore-orders", c.resourceName(kindTopic, "shopcore-orders"))
	assert.Equal(t, "projects/shop-prod/subscriptions/mailer", c.resourceName(kindSubscription, " mailer "))
	assert.Equal(t, "projects/other/subscriptions/sub", c.resourceName(kindSubscription, "projects/other/subscriptions/sub"))
	// a topic path is not a subscription path
	assert.Equal(t, "projects/shop-prod/subscriptions/projects/other/topics/t",
		c.resourceName(kindSubscription, "projects/other/topics/t"))
	assert.Empty(t, c.resourceName(kindTopic, "  "))
	assert.Empty(t, (&Client{}).resourceName(kindTopic, "orders"))
}

func TestLookupError(t *testing.T) {
	assert.NoError(t, lookupError(kindTopic, "orders", nil))

	missing := lookupError(kindTopic, "orders", status.Error(codes.NotFound, "gone"))
	assert.EqualError(t, missing, `pubsub topics "orders" does not exist`)

	denied := status.Error(codes.PermissionDenied, "nope")
	err := lookupError(kindSubscription, "mailer", denied)
	assert.True(t, errors.Is(err, denied))
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("shopcore-orders"))
	assert.Nil(t, c.OrderedPublisher("shopcore-orders"))
	assert.Nil(t, c.FulfillmentSubscription())
	assert.ErrorIs(t, c.Ping(context.Background()), errNotInitialized)
	assert.NoError(t, c.Close())
}
