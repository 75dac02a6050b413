package scriptstate

import (
	"errors"
	"testing"

	"listing-aggregator-service/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><head><script>
var x = 1;
QuidditaEnvironment.serverListData = {"Ads":[{"Id":"5425","Title":"Stan {lux} \"centar\"","Note":"it's }"}],"TotalCount":41};
QuidditaEnvironment.other = {};
</script></head></html>`

func TestExtractBalancesBracesInsideStrings(t *testing.T) {
	raw, err := Extract([]byte(page), "QuidditaEnvironment.serverListData")
	require.NoError(t, err)
	assert.Equal(t, `{"Ads":[{"Id":"5425","Title":"Stan {lux} \"centar\"","Note":"it's }"}],"TotalCount":41}`, string(raw))
}

func TestDecode(t *testing.T) {
	var state struct {
		Ads []struct {
			ID    string `json:"Id"`
			Title string
		}
		TotalCount int
	}
	require.NoError(t, Decode([]byte(page), "QuidditaEnvironment.serverListData", &state))

	require.Len(t, state.Ads, 1)
	assert.Equal(t, "5425", state.Ads[0].ID)
	assert.Equal(t, `Stan {lux} "centar"`, state.Ads[0].Title)
	assert.Equal(t, 41, state.TotalCount)
}

func TestExtractMissingMarker(t *testing.T) {
	_, err := Extract([]byte("<html></html>"), "QuidditaEnvironment.serverListData")
	assert.True(t, errors.Is(err, ErrMarkerNotFound))
}

func TestExtractUnbalancedIsShapeError(t *testing.T) {
	_, err := Extract([]byte(`state = {"a": {"b": 1}`), "state")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSourceShape))
	assert.False(t, errors.Is(err, ErrMarkerNotFound))
}

func TestExtractRequiresObjectAfterMarker(t *testing.T) {
	_, err := Extract([]byte(`state = null;`), "state")
	assert.True(t, errors.Is(err, domain.ErrSourceShape))
	assert.True(t, errors.Is(err, ErrNullLiteral))

	_, err = Extract([]byte(`state = [1, 2];`), "state")
	assert.True(t, errors.Is(err, domain.ErrSourceShape))
	assert.False(t, errors.Is(err, ErrNullLiteral))
}

func TestDecodeInvalidJSONIsShapeError(t *testing.T) {
	var v map[string]any
	err := Decode([]byte(`state = {foo: 'bar'};`), "state", &v)
	assert.True(t, errors.Is(err, domain.ErrSourceShape))
}
