package gcs

import (
	"fmt"
	"net/http"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"

	"github.com/ajitpratap0/opgate/pkg/config"
	"github.com/ajitpratap0/opgate/pkg/errors"
)

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil, "ok"))

	err := classify(fmt.Errorf("read: %w", storage.ErrObjectNotExist), "failed to read object")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	assert.ErrorIs(t, err, storage.ErrObjectNotExist)

	err = classify(&googleapi.Error{Code: http.StatusPreconditionFailed}, "failed to write object")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))

	err = classify(&googleapi.Error{Code: http.StatusForbidden}, "bucket is not reachable")
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))
}

func TestClientOptions(t *testing.T) {
	assert.Empty(t, clientOptions(&config.ConnectionConfig{}))

	opts := clientOptions(&config.ConnectionConfig{
		CredentialsFile: "/etc/sa.json",
		Endpoint:        "http://localhost:4443/storage/v1/",
		Properties:      map[string]string{"anonymous": "true"},
	})
	assert.Len(t, opts, 3)
}
