package di

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/somesha/apps/api/echo"
	"github.com/trezcool/somesha/core"
	cachesvc "github.com/trezcool/somesha/services/cache"
	emailsvc "github.com/trezcool/somesha/services/email"
	eventsvc "github.com/trezcool/somesha/services/events"
)

func TestNew(t *testing.T) {
	t.Setenv("ENV", "TEST")

	c := New()
	err := c.Invoke(func(
		conf *core.Config,
		db *sqlx.DB,
		mailSvc core.EmailService,
		events core.EventPublisher,
		cache core.Cache,
		server *echoapi.Server,
	) {
		assert.Equal(t, core.StorageMemory, conf.Database.Storage)
		assert.Nil(t, db, "no database in memory mode")
		assert.IsType(t, &emailsvc.ConsoleService{}, mailSvc)
		assert.IsType(t, &eventsvc.LogPublisher{}, events)
		assert.IsType(t, &cachesvc.MemoryCache{}, cache)
		assert.NotNil(t, server)
	})
	require.NoError(t, err)
}
