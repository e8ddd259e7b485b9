package stages

import (
	"github.com/azure-way/aidocwriter/internal/agents"
	"github.com/azure-way/aidocwriter/internal/config"
	"github.com/azure-way/aidocwriter/internal/logger"
	"github.com/azure-way/aidocwriter/internal/messaging"
	"github.com/azure-way/aidocwriter/internal/status"
	"github.com/azure-way/aidocwriter/internal/store"
)

// newTestDeps builds a Deps wired entirely to in-memory fakes, the same
// doubles every stage-processor test in this package uses instead of a
// real database, blob store, or model provider.
func newTestDeps() *Deps {
	return &Deps{
		Log:      logger.NewNop(),
		Store:    store.NewMemStore(),
		Status:   status.NewMemTable(),
		Messages: &messaging.RecordingFacade{},
		Agents:   agents.NewFakeClient(),
		Cfg:      config.Load(),
	}
}
