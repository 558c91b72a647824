package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwright/gridwright/pkg/auditstore"
	"github.com/gridwright/gridwright/pkg/workspace"
)

func TestSignalHealthChecker(t *testing.T) {
	checker := signalHealthChecker{}

	t.Run("always returns nil", func(t *testing.T) {
		err := checker.CheckHealth(context.Background())
		assert.NoError(t, err)
	})
}

func TestWorkspaceHealthChecker(t *testing.T) {
	t.Run("returns error when workspace not initialized", func(t *testing.T) {
		checker := workspaceHealthChecker{}

		err := checker.CheckHealth(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "workspace not initialized")
	})

	t.Run("healthy with live workspace", func(t *testing.T) {
		ws := workspace.New()
		defer ws.Close()

		checker := workspaceHealthChecker{ws: ws}
		assert.NoError(t, checker.CheckHealth(context.Background()))
	})
}

func TestAuditHealthChecker(t *testing.T) {
	t.Run("returns error when store not initialized", func(t *testing.T) {
		checker := auditHealthChecker{}

		err := checker.CheckHealth(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "audit store not initialized")
	})

	t.Run("healthy with open store", func(t *testing.T) {
		ctx := context.Background()
		store, err := auditstore.Open(ctx, auditstore.Config{Path: ":memory:"})
		require.NoError(t, err)
		defer store.Close()

		checker := auditHealthChecker{store: store}
		assert.NoError(t, checker.CheckHealth(ctx))
	})
}
