//go:build integration

package s3

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/marmos91/umsd/pkg/storage/backend"
	"github.com/marmos91/umsd/pkg/storage/backend/backendtest"
)

var (
	localstackOnce     sync.Once
	localstackEndpoint string
	localstackErr      error
	bucketSeq          atomic.Int32
)

// startLocalstack returns the endpoint of a shared Localstack container, or
// LOCALSTACK_ENDPOINT when set. Ryuk reaps the container on exit.
func startLocalstack(t *testing.T) string {
	t.Helper()

	localstackOnce.Do(func() {
		if ep := os.Getenv("LOCALSTACK_ENDPOINT"); ep != "" {
			localstackEndpoint = ep
			return
		}

		ctx := context.Background()
		c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "localstack/localstack:3.0",
				ExposedPorts: []string{"4566/tcp"},
				Env: map[string]string{
					"SERVICES":       "s3",
					"DEFAULT_REGION": "us-east-1",
				},
				WaitingFor: wait.ForHTTP("/_localstack/health").
					WithPort("4566/tcp").
					WithStartupTimeout(60 * time.Second),
			},
			Started: true,
		})
		if err != nil {
			localstackErr = err
			return
		}

		host, err := c.Host(ctx)
		if err != nil {
			localstackErr = err
			return
		}
		port, err := c.MappedPort(ctx, "4566")
		if err != nil {
			localstackErr = err
			return
		}
		localstackEndpoint = fmt.Sprintf("http://%s:%s", host, port.Port())
	})

	if localstackErr != nil {
		t.Skipf("localstack unavailable: %v", localstackErr)
	}
	return localstackEndpoint
}

func newClient(t *testing.T, endpoint string) *s3.Client {
	t.Helper()

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	require.NoError(t, err)

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
}

func newBucket(t *testing.T, client *s3.Client) string {
	t.Helper()

	name := fmt.Sprintf("umsd-test-%d-%d", time.Now().UnixNano(), bucketSeq.Add(1))
	_, err := client.CreateBucket(context.Background(), &s3.CreateBucketInput{Bucket: aws.String(name)})
	require.NoError(t, err)
	return name
}

func TestS3Conformance(t *testing.T) {
	endpoint := startLocalstack(t)
	client := newClient(t, endpoint)

	backendtest.RunConformanceSuite(t, func(t *testing.T) backend.Backend {
		b, err := New(client, Config{
			Bucket:      newBucket(t, client),
			KeyPrefix:   "units/0/",
			SectorSize:  backendtest.Geometry.SectorSize,
			SectorCount: backendtest.Geometry.SectorCount,
			ChunkSize:   backendtest.ChunkSize,
		}, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = b.Close() })
		return b
	})
}

func TestS3NewFromConfig(t *testing.T) {
	endpoint := startLocalstack(t)
	bucket := newBucket(t, newClient(t, endpoint))

	b, err := NewFromConfig(context.Background(), Config{
		Bucket:          bucket,
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		ForcePathStyle:  true,
		SectorCount:     16,
		ChunkSize:       4096,
	}, nil)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.HealthCheck(context.Background()))

	data := make([]byte, 512)
	copy(data, "WBFS")
	require.NoError(t, b.WriteAt(context.Background(), data, 9))

	got := make([]byte, 512)
	require.NoError(t, b.ReadAt(context.Background(), got, 9))
	assert.Equal(t, data, got)
}

func TestS3HealthCheckMissingBucket(t *testing.T) {
	endpoint := startLocalstack(t)

	b, err := New(newClient(t, endpoint), Config{Bucket: "does-not-exist", SectorCount: 8}, nil)
	require.NoError(t, err)
	defer b.Close()

	assert.Error(t, b.HealthCheck(context.Background()))
}
