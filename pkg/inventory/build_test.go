package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetplan/fleetplan/pkg/engine"
)

func testCatalog(t *testing.T) *engine.Catalog {
	t.Helper()
	c, err := engine.NewCatalog([]engine.ServiceDefinition{
		{Name: "moray", Sharded: true},
		{Name: "webapi"},
	})
	require.NoError(t, err)
	return c
}

func TestBuildActualState(t *testing.T) {
	records := []Record{
		{Instance: "inst-2", Node: "cn1", Service: "webapi", Image: "imgA"},
		{Instance: "inst-1", Node: "cn2", Service: "webapi", Image: "imgA"},
		{Instance: "inst-3", Node: "cn1", Service: "moray", Shard: "1", Image: "imgB"},
	}

	actual, err := Build(testCatalog(t), records)
	require.NoError(t, err)

	assert.Equal(t, 2, actual.Global["webapi"].Count(engine.ConfigKey{Image: "imgA"}))
	assert.Equal(t, 1, actual.ByNode["cn1"]["webapi"].Count(engine.ConfigKey{Image: "imgA"}))
	assert.Equal(t, 1, actual.ByNode["cn2"]["webapi"].Count(engine.ConfigKey{Image: "imgA"}))
	assert.Equal(t, 1, actual.Global["moray"].Count(engine.ConfigKey{Shard: "1", Image: "imgB"}))

	// Sorted by service, key fields, then instance id.
	require.Len(t, actual.Instances, 3)
	assert.Equal(t, "inst-3", actual.Instances[0].ID)
	assert.Equal(t, "inst-1", actual.Instances[1].ID)
	assert.Equal(t, "inst-2", actual.Instances[2].ID)
}

func TestBuildRejectsUnknownService(t *testing.T) {
	_, err := Build(testCatalog(t), []Record{
		{Instance: "inst-1", Node: "cn1", Service: "nope", Image: "imgA"},
	})
	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))
}

func TestBuildEnforcesShardShape(t *testing.T) {
	_, err := Build(testCatalog(t), []Record{
		{Instance: "inst-1", Node: "cn1", Service: "moray", Image: "imgA"},
	})
	require.Error(t, err)

	_, err = Build(testCatalog(t), []Record{
		{Instance: "inst-1", Node: "cn1", Service: "webapi", Shard: "1", Image: "imgA"},
	})
	require.Error(t, err)
}

func TestParseInventory(t *testing.T) {
	doc := []byte(`
instances:
  - instance: inst-1
    node: cn1
    service: webapi
    image: imgA
  - instance: inst-2
    node: cn1
    service: moray
    shard: "1"
    image: imgB
`)
	records, err := Parse(doc)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "1", records[1].Shard)
}

func TestParseRejectsMissingFields(t *testing.T) {
	doc := []byte(`
instances:
  - instance: inst-1
    node: cn1
`)
	_, err := Parse(doc)
	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))
}

func TestParseRejectsDuplicateInstances(t *testing.T) {
	doc := []byte(`
instances:
  - instance: inst-1
    node: cn1
    service: webapi
    image: imgA
  - instance: inst-1
    node: cn2
    service: webapi
    image: imgA
`)
	_, err := Parse(doc)
	require.Error(t, err)
}
