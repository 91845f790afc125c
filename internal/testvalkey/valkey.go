// Package testvalkey starts a throwaway Valkey container for integration tests.
package testvalkey

import (
	"context"
	"testing"

	"github.com/pitabwire/util"
	"github.com/testcontainers/testcontainers-go"
	tcValKey "github.com/testcontainers/testcontainers-go/modules/valkey"

	"github.com/pitabwire/polyglot/data"
)

const ValKeyImage = "docker.io/valkey/valkey:latest"

// Start runs a Valkey container and returns its redis:// connection string.
// The test is skipped when no container provider is available; the container
// is terminated when the test finishes.
func Start(t *testing.T) data.DSN {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := t.Context()
	valkeyContainer, err := tcValKey.Run(ctx, ValKeyImage)
	if err != nil {
		t.Fatalf("failed to start valkey container: %v", err)
	}

	t.Cleanup(func() {
		if termErr := testcontainers.TerminateContainer(valkeyContainer); termErr != nil {
			util.Log(context.Background()).WithError(termErr).Error("Failed to terminate valkey container")
		}
	})

	conn, err := valkeyContainer.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get connection string for valkey container: %v", err)
	}

	return data.DSN(conn)
}
