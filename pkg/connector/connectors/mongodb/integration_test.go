package mongodb

import (
	"os"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/opgate/pkg/config"
	"github.com/ajitpratap0/opgate/pkg/testutil"
)

// Runs against a live server, e.g. OPGATE_TEST_MONGODB_URL=mongodb://localhost:27017.
// Set OPGATE_TEST_MONGODB_REPLICA_SET=1 when the server supports change streams.
func TestIntegration_Conformance(t *testing.T) {
	url := testutil.IntegrationEnv(t, "OPGATE_TEST_MONGODB_URL")

	cfg := config.NewBaseConfig("mongo-conformance", Name)
	cfg.Connection.URL = url
	cfg.Connection.Database = "opgate_test"
	cfg.Connection.Tables["users"] = "conformance"
	cfg.Pool.Enabled = true
	cfg.Pool.MaxObjects = 2

	suite.Run(t, &testutil.ConnectorSuite{
		Config:      cfg,
		ObjectClass: "users",
		Subscribes:  os.Getenv("OPGATE_TEST_MONGODB_REPLICA_SET") != "",
	})
}
