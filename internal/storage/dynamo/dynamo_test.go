package dynamo

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aquaguard/aquaguard/internal/storage"
	"github.com/aquaguard/aquaguard/internal/storage/storagetest"
)

func TestDynamoStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "amazon/dynamodb-local:2.5.2",
			Cmd:          []string{"-jar", "DynamoDBLocal.jar", "-inMemory"},
			ExposedPorts: []string{"8000/tcp"},
			WaitingFor:   wait.ForListeningPort("8000/tcp"),
		},
		Started: true,
	})
	t.Cleanup(func() {
		if container != nil {
			require.NoError(t, container.Terminate(context.Background()))
		}
	})
	require.NoError(t, err)

	endpoint, err := container.PortEndpoint(ctx, "8000/tcp", "http")
	require.NoError(t, err)

	storagetest.Run(t, func(t *testing.T) storage.Store {
		// Each subtest gets its own set of tables.
		prefix := fmt.Sprintf("t%s_", strings.ReplaceAll(uuid.New().String(), "-", "")[:12])
		store, err := New(ctx, Config{
			Region:       "us-east-1",
			Endpoint:     endpoint,
			TablePrefix:  prefix,
			CreateTables: true,
		})
		require.NoError(t, err)
		return store
	})
}
