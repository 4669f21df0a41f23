//go:build functional

package test_functional

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type (
	tokens struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}

	application struct {
		ID     uint64 `json:"id"`
		Status string `json:"status"`
	}

	posting struct {
		ID        uint64   `json:"id"`
		Title     string   `json:"title"`
		Company   string   `json:"company"`
		Views     uint64   `json:"views"`
		Locations []string `json:"locations"`
	}
)

func register(t *testing.T, ctx context.Context, email string) tokens {
	t.Helper()

	resp, err := request(ctx, "").
		SetBody(map[string]string{"email": email, "password": "111111111111", "name": "Tester"}).
		Post(endpoint("/auth/register"))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode(), resp.String())

	resp, err = request(ctx, "").
		SetBody(map[string]string{"email": email, "password": "111111111111"}).
		Post(endpoint("/auth/login"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode(), resp.String())

	got := tokens{}
	require.NoError(t, json.Unmarshal(envelopeOf(resp).Data, &got))
	return got
}

func TestRegister(t *testing.T) {
	t.Run("successful register", func(t *testing.T) {
		defer FlushDB()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		got := register(t, ctx, "test@gmail.com")
		assert.NotEmpty(t, got.AccessToken)
		assert.NotEmpty(t, got.RefreshToken)

		var hash string
		err := DBConn.QueryRow(ctx, "SELECT password FROM users WHERE email=$1", "test@gmail.com").Scan(&hash)
		require.NoError(t, err)
		assert.NotEqual(t, "111111111111", hash)

		resp, err := request(ctx, "").
			SetBody(map[string]string{"email": "test@gmail.com", "password": "111111111111", "name": "Again"}).
			Post(endpoint("/auth/register"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusConflict, resp.StatusCode())
		assert.Equal(t, "CONFLICT", envelopeOf(resp).Error.Code)
	})

	t.Run("bad body", func(t *testing.T) {
		defer FlushDB()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		resp, err := request(ctx, "").
			SetBody(`{"something": "???"}`).
			Post(endpoint("/auth/register"))
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
		assert.False(t, envelopeOf(resp).Success)
	})
}

func TestPostingFlow(t *testing.T) {
	defer FlushDB()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*20)
	defer cancel()

	owner := register(t, ctx, "owner@example.com")
	seeker := register(t, ctx, "seeker@example.com")

	resp, err := request(ctx, owner.AccessToken).
		SetBody(map[string]interface{}{
			"company":          "Acme",
			"title":            "Backend Engineer",
			"link":             "https://jobs.example/1",
			"locations":        []string{"서울", "부산"},
			"experienceLevels": []string{"신입"},
			"sectors":          []string{"IT"},
			"salary":           "연봉 4,000만원",
		}).
		Post(endpoint("/jobs"))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode(), resp.String())

	created := posting{}
	require.NoError(t, json.Unmarshal(envelopeOf(resp).Data, &created))
	assert.ElementsMatch(t, []string{"서울", "부산"}, created.Locations)

	resp, err = request(ctx, owner.AccessToken).
		SetBody(map[string]interface{}{
			"company": "Acme",
			"title":   "Backend  Engineer",
			"link":    "https://jobs.example/1",
		}).
		Post(endpoint("/jobs"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode())

	resp, err = request(ctx, "").
		SetQueryParam("keyword", "backend").
		Get(endpoint("/jobs"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode(), resp.String())
	list := envelopeOf(resp)
	require.NotNil(t, list.Pagination)
	assert.Equal(t, int64(1), list.Pagination.TotalItems)

	resp, err = request(ctx, "").Get(endpoint("/jobs/" + jsonID(created.ID)))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	detail := posting{}
	require.NoError(t, json.Unmarshal(envelopeOf(resp).Data, &detail))
	assert.Equal(t, uint64(1), detail.Views)

	resp, err = request(ctx, seeker.AccessToken).
		SetBody(map[string]uint64{"postingId": created.ID}).
		Post(endpoint("/bookmarks"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	assert.JSONEq(t, `{"postingId": `+jsonID(created.ID)+`, "bookmarked": true}`, string(envelopeOf(resp).Data))

	resp, err = request(ctx, seeker.AccessToken).
		SetBody(map[string]uint64{"postingId": created.ID}).
		Post(endpoint("/bookmarks"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	assert.JSONEq(t, `{"postingId": `+jsonID(created.ID)+`, "bookmarked": false}`, string(envelopeOf(resp).Data))

	var bookmarks int
	err = DBConn.QueryRow(ctx, "SELECT COUNT(*) FROM bookmarks WHERE posting_id = $1", created.ID).Scan(&bookmarks)
	require.NoError(t, err)
	assert.Zero(t, bookmarks)

	resp, err = request(ctx, seeker.AccessToken).
		SetBody(map[string]uint64{"postingId": created.ID}).
		Post(endpoint("/applications"))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode(), resp.String())
	applied := application{}
	require.NoError(t, json.Unmarshal(envelopeOf(resp).Data, &applied))
	assert.Equal(t, "applying", applied.Status)

	resp, err = request(ctx, seeker.AccessToken).
		SetBody(map[string]uint64{"postingId": created.ID}).
		Post(endpoint("/applications"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode())

	resp, err = request(ctx, seeker.AccessToken).Delete(endpoint("/applications/" + jsonID(applied.ID)))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode(), resp.String())
	cancelled := application{}
	require.NoError(t, json.Unmarshal(envelopeOf(resp).Data, &cancelled))
	assert.Equal(t, "cancelled", cancelled.Status)

	resp, err = request(ctx, seeker.AccessToken).
		SetBody(map[string]uint64{"postingId": created.ID}).
		Post(endpoint("/applications"))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode(), resp.String())
	reapplied := application{}
	require.NoError(t, json.Unmarshal(envelopeOf(resp).Data, &reapplied))
	assert.Equal(t, applied.ID, reapplied.ID)
	assert.Equal(t, "applying", reapplied.Status)

	var applications int
	err = DBConn.QueryRow(ctx, "SELECT COUNT(*) FROM applications WHERE posting_id = $1", created.ID).Scan(&applications)
	require.NoError(t, err)
	assert.Equal(t, 1, applications)

	resp, err = request(ctx, "").Get(endpoint("/recommendations/pay"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode(), resp.String())

	resp, err = request(ctx, seeker.AccessToken).Delete(endpoint("/jobs/" + jsonID(created.ID)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())

	resp, err = request(ctx, owner.AccessToken).Delete(endpoint("/jobs/" + jsonID(created.ID)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
}

func jsonID(id uint64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
