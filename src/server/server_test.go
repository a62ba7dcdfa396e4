package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/mappichat/rasterh3/src/project_types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	h3 "github.com/uber/h3-go/v3"
)

const rasterJson = `{
	"shape": [3, 3],
	"values": [1, 1, 2, 1, null, 2, 0, 0, 2],
	"transform": [8.0, 0.01, 0.0, 49.0, 0.0, -0.01],
	"nodata": 0
}`

func post(t *testing.T, d Deps, path string, body string, header map[string]string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := NewApp(d).Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, b
}

func TestHealth(t *testing.T) {
	resp, err := NewApp(Deps{}).Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestConvert(t *testing.T) {
	d := Deps{Options: project_types.DefaultOptions()}
	code, body := post(t, d, "/convert", `{"raster": `+rasterJson+`, "resolution": 9, "compact": false}`, nil)
	require.Equal(t, 200, code, string(body))

	out := convertResponse{}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 9, out.Resolution)
	assert.NotContains(t, out.Values, "0")
	assert.Contains(t, out.Values, "NaN")
	require.NotEmpty(t, out.Values["2"])
	for _, cells := range out.Values {
		for _, cell := range cells {
			assert.Equal(t, 9, h3.Resolution(h3.FromString(cell)))
		}
	}
}

func TestConvertGeoJson(t *testing.T) {
	d := Deps{Options: project_types.DefaultOptions()}
	code, body := post(t, d, "/convert", `{"raster": `+rasterJson+`, "resolution": 8, "format": "geojson"}`, nil)
	require.Equal(t, 200, code, string(body))

	fc := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(body, &fc))
	assert.Equal(t, "FeatureCollection", fc["type"])
	assert.NotEmpty(t, fc["features"])
}

func TestConvertRejectsInvalidInput(t *testing.T) {
	d := Deps{Options: project_types.DefaultOptions()}

	code, _ := post(t, d, "/convert", `{"raster": `+rasterJson+`, "resolution": 16}`, nil)
	assert.Equal(t, 400, code)

	code, _ = post(t, d, "/convert", `{"resolution": 5}`, nil)
	assert.Equal(t, 400, code)

	code, _ = post(t, d, "/convert", `not json`, nil)
	assert.Equal(t, 400, code)

	singular := strings.Replace(rasterJson, `[8.0, 0.01, 0.0, 49.0, 0.0, -0.01]`, `[8.0, 0.01, 0.01, 49.0, 0.01, 0.01]`, 1)
	code, body := post(t, d, "/convert", `{"raster": `+singular+`, "resolution": 5}`, nil)
	assert.Equal(t, 422, code, string(body))
}

func TestResolution(t *testing.T) {
	code, body := post(t, Deps{}, "/resolution", `{"raster": `+rasterJson+`, "search_mode": "smaller-than-pixel"}`, nil)
	require.Equal(t, 200, code, string(body))
	out := struct {
		Resolution int    `json:"resolution"`
		SearchMode string `json:"search_mode"`
	}{}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "smaller-than-pixel", out.SearchMode)
	assert.True(t, out.Resolution >= 7 && out.Resolution <= 9)
}

func TestCellsWithoutDatabase(t *testing.T) {
	resp, err := NewApp(Deps{}).Test(httptest.NewRequest(http.MethodGet, "/cells/landuse/1", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestBearerToken(t *testing.T) {
	secret := []byte("rasterh3")
	d := Deps{
		Keyfunc: func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		},
	}
	body := `{"raster": ` + rasterJson + `}`

	code, _ := post(t, d, "/resolution", body, nil)
	assert.Equal(t, 401, code)

	code, _ = post(t, d, "/resolution", body, map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, 401, code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(secret)
	require.NoError(t, err)
	code, _ = post(t, d, "/resolution", body, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, 200, code)

	// the health check stays public
	resp, err := NewApp(d).Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}
