package stages

import (
	"github.com/azure-way/aidocwriter/internal/agents"
	"github.com/azure-way/aidocwriter/internal/config"
	"github.com/azure-way/aidocwriter/internal/logger"
	"github.com/azure-way/aidocwriter/internal/messaging"
	"github.com/azure-way/aidocwriter/internal/status"
	"github.com/azure-way/aidocwriter/internal/store"
)

// Deps bundles every shared dependency a stage processor needs. Handlers
// embed *Deps rather than redeclaring the same five fields thirteen times.
type Deps struct {
	Log      *logger.Logger
	Store    store.ObjectStore
	Status   status.Table
	Messages messaging.Facade
	Agents   agents.Client
	Cfg      config.Config
}
