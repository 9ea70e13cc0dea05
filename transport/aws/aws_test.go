package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-aws/sns"
	"github.com/ThreeDotsLabs/watermill-aws/sqs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/socketbus/internal/runtime/config"
	"github.com/drblury/socketbus/transport"
)

type stubPublisher struct{ closed bool }

func (s *stubPublisher) Publish(string, ...*message.Message) error { return nil }
func (s *stubPublisher) Close() error                              { s.closed = true; return nil }

type stubSubscriber struct{}

func (stubSubscriber) Subscribe(context.Context, string) (<-chan *message.Message, error) {
	return nil, nil
}
func (stubSubscriber) Close() error { return nil }

type fixture struct {
	pub     *stubPublisher
	pubCfg  sns.PublisherConfig
	subCfg  sns.SubscriberConfig
	sqsCfg  sqs.SubscriberConfig
	account string
	region  string
	loadErr error
	subErr  error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{pub: &stubPublisher{}}

	origLoader, origResolver, origPub, origSub := DefaultConfigLoader, TopicResolverFactory, PublisherFactory, SubscriberFactory
	t.Cleanup(func() {
		DefaultConfigLoader, TopicResolverFactory, PublisherFactory, SubscriberFactory = origLoader, origResolver, origPub, origSub
	})

	DefaultConfigLoader = func(_ context.Context, _ ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		if f.loadErr != nil {
			return aws.Config{}, f.loadErr
		}
		return aws.Config{Region: "eu-west-1"}, nil
	}
	TopicResolverFactory = func(accountID, region string) (*sns.GenerateArnTopicResolver, error) {
		f.account, f.region = accountID, region
		return sns.NewGenerateArnTopicResolver(accountID, region)
	}
	PublisherFactory = func(cfg sns.PublisherConfig, _ watermill.LoggerAdapter) (message.Publisher, error) {
		f.pubCfg = cfg
		return f.pub, nil
	}
	SubscriberFactory = func(cfg sns.SubscriberConfig, sqsCfg sqs.SubscriberConfig, _ watermill.LoggerAdapter) (message.Subscriber, error) {
		f.subCfg, f.sqsCfg = cfg, sqsCfg
		if f.subErr != nil {
			return nil, f.subErr
		}
		return stubSubscriber{}, nil
	}
	return f
}

func TestRegistered(t *testing.T) {
	caps, ok := transport.DefaultRegistry.Capabilities(TransportName)
	require.True(t, ok)
	assert.Equal(t, int64(256<<10), caps.MaxMessageSize)
}

func TestBuild(t *testing.T) {
	f := newFixture(t)

	cfg := &config.Config{AWSRegion: "us-east-1", AWSAccountID: "123456789012"}
	tr, err := Build(context.Background(), cfg, watermill.NopLogger{})
	require.NoError(t, err)
	assert.Same(t, f.pub, tr.Publisher)

	assert.Equal(t, "123456789012", f.account)
	assert.Equal(t, "us-east-1", f.region)
	assert.Equal(t, "us-east-1", f.pubCfg.AWSConfig.Region)
	assert.Empty(t, f.pubCfg.OptFns)
	assert.Empty(t, f.sqsCfg.OptFns)

	arn, err := f.pubCfg.TopicResolver.ResolveTopic(context.Background(), "socketbus.messages")
	require.NoError(t, err)
	assert.Equal(t, sns.TopicArn("arn:aws:sns:us-east-1:123456789012:socketbus-messages"), arn)

	queue, err := f.subCfg.GenerateSqsQueueName(context.Background(), arn)
	require.NoError(t, err)
	assert.Equal(t, "socketbus-messages", queue)
}

func TestBuildWithLocalStackEndpoint(t *testing.T) {
	f := newFixture(t)

	cfg := &config.Config{AWSRegion: "us-east-1", AWSEndpoint: "http://localhost:4566"}
	_, err := Build(context.Background(), cfg, watermill.NopLogger{})
	require.NoError(t, err)

	assert.Equal(t, localstackAccountID, f.account)
	assert.Len(t, f.pubCfg.OptFns, 1)
	assert.Len(t, f.subCfg.OptFns, 1)
	assert.Len(t, f.sqsCfg.OptFns, 1)
}

func TestBuildRejectsRelativeEndpoint(t *testing.T) {
	newFixture(t)

	_, err := Build(context.Background(), &config.Config{AWSEndpoint: "localhost:4566/x"}, watermill.NopLogger{})
	assert.Error(t, err)
}

func TestBuildLoaderError(t *testing.T) {
	f := newFixture(t)
	f.loadErr = errors.New("no credentials")

	_, err := Build(context.Background(), &config.Config{AWSRegion: "us-east-1"}, watermill.NopLogger{})
	assert.ErrorIs(t, err, f.loadErr)
}

func TestBuildSubscriberErrorClosesPublisher(t *testing.T) {
	f := newFixture(t)
	f.subErr = errors.New("sqs unavailable")

	_, err := Build(context.Background(), &config.Config{AWSRegion: "us-east-1", AWSAccountID: "123456789012"}, watermill.NopLogger{})
	assert.ErrorIs(t, err, f.subErr)
	assert.True(t, f.pub.closed)
}

func TestResolveAccountAndRegion(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.Config
		wantAccount string
		wantRegion  string
	}{
		{"configured", config.Config{AWSAccountID: "123456789012", AWSRegion: "us-east-1"}, "123456789012", "us-east-1"},
		{"fallback region", config.Config{AWSAccountID: "123456789012"}, "123456789012", "eu-west-1"},
		{"quoted account", config.Config{AWSAccountID: `"123456789012"`}, "123456789012", "eu-west-1"},
		{"localstack empty account", config.Config{AWSEndpoint: "http://localhost:4566"}, localstackAccountID, "eu-west-1"},
		{"localstack invalid account", config.Config{AWSEndpoint: "http://localhost:4566", AWSAccountID: "42"}, localstackAccountID, "eu-west-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account, region := resolveAccountAndRegion(&tt.cfg, watermill.NopLogger{}, "eu-west-1")
			assert.Equal(t, tt.wantAccount, account)
			assert.Equal(t, tt.wantRegion, region)
		})
	}
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "socketbus-messages", SanitizeName("socketbus.messages"))
	assert.Equal(t, "a_b-c--d", SanitizeName("a_b-c/:d"))
}
