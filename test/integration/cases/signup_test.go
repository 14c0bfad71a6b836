//go:build integration

package cases

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	itinfra "github.com/baechuer/meeting-machine/test/integration/infra"
)

type signupBody struct {
	Success bool `json:"success"`
	User    struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	GHLIntegration struct {
		Enabled        bool    `json:"enabled"`
		ContactCreated bool    `json:"contactCreated"`
		Error          *string `json:"error"`
	} `json:"ghlIntegration"`
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func doSignup(d *Deps, email string) (*http.Response, signupBody, error) {
	raw, err := json.Marshal(map[string]string{
		"email":     email,
		"password":  "Secret123",
		"firstName": "A",
		"lastName":  "B",
	})
	if err != nil {
		return nil, signupBody{}, err
	}

	res, err := http.Post(d.API.URL+"/api/auth/signup", "application/json", bytes.NewReader(raw))
	if err != nil {
		return nil, signupBody{}, err
	}
	defer res.Body.Close()

	var body signupBody
	err = json.NewDecoder(res.Body).Decode(&body)
	return res, body, err
}

func postSignup(t *testing.T, d *Deps, email string) (*http.Response, signupBody) {
	t.Helper()
	res, body, err := doSignup(d, email)
	require.NoError(t, err)
	return res, body
}

func Test_Signup_CreatesUser_SyncsCRM_SetsCookie(t *testing.T) {
	d := MustNewDeps(t, itinfra.LoadEnv(), 100)
	defer d.Close(t)

	res, body := postSignup(t, d, "a@x.com")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, body.Success)
	assert.Equal(t, "a@x.com", body.User.Email)
	assert.True(t, body.GHLIntegration.Enabled)
	assert.True(t, body.GHLIntegration.ContactCreated)
	assert.Nil(t, body.GHLIntegration.Error)

	var cookie *http.Cookie
	for _, c := range res.Cookies() {
		if c.Name == "auth-token" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	n, err := itinfra.CountUsers(context.Background(), d.DB, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	contacts := d.GHL.Contacts()
	require.Len(t, contacts, 1)
	assert.Equal(t, "a@x.com", contacts[0]["email"])
	assert.Equal(t, "loc-it", contacts[0]["locationId"])
}

func Test_Signup_Duplicate_Returns400(t *testing.T) {
	d := MustNewDeps(t, itinfra.LoadEnv(), 100)
	defer d.Close(t)

	res, _ := postSignup(t, d, "a@x.com")
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, body := postSignup(t, d, "a@x.com")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "user_already_exists", body.Error.Code)

	n, err := itinfra.CountUsers(context.Background(), d.DB, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func Test_Signup_InvalidEmail_NoRow(t *testing.T) {
	d := MustNewDeps(t, itinfra.LoadEnv(), 100)
	defer d.Close(t)

	res, body := postSignup(t, d, "not-an-email")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "validation_failed", body.Error.Code)

	n, err := itinfra.CountUsers(context.Background(), d.DB, "not-an-email")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, d.GHL.Contacts())
}

func Test_Signup_CRMRejects_StillSucceeds(t *testing.T) {
	d := MustNewDeps(t, itinfra.LoadEnv(), 100)
	defer d.Close(t)
	d.GHL.reject.Store(true)

	res, body := postSignup(t, d, "crm-down@x.com")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, body.GHLIntegration.Enabled)
	assert.False(t, body.GHLIntegration.ContactCreated)
	require.NotNil(t, body.GHLIntegration.Error)
	assert.Contains(t, *body.GHLIntegration.Error, "Invalid API Key")
}

func Test_Signup_ConcurrentSameEmail_OneWins(t *testing.T) {
	d := MustNewDeps(t, itinfra.LoadEnv(), 100)
	defer d.Close(t)

	const n = 8
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, _, err := doSignup(d, "race@x.com")
			if err != nil {
				t.Errorf("signup %d: %v", i, err)
				return
			}
			codes[i] = res.StatusCode
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, c := range codes {
		switch c {
		case http.StatusOK:
			ok++
		case http.StatusBadRequest:
			dup++
		}
	}
	assert.Equal(t, 1, ok, "codes=%v", codes)
	assert.Equal(t, n-1, dup, "codes=%v", codes)
}

func Test_Signup_RateLimitedByRedis(t *testing.T) {
	d := MustNewDeps(t, itinfra.LoadEnv(), 2)
	defer d.Close(t)

	res, _ := postSignup(t, d, "r1@x.com")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	res, _ = postSignup(t, d, "r2@x.com")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, body := postSignup(t, d, "r3@x.com")
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
	assert.Equal(t, "rate_limited", body.Error.Code)
	assert.NotEmpty(t, res.Header.Get("Retry-After"))
}

func Test_Signup_PublishesUserSignedUp(t *testing.T) {
	d := MustNewDeps(t, itinfra.LoadEnv(), 100)
	defer d.Close(t)

	msgs, closeQueue, err := itinfra.TempQueue(d.AMQP, testExchange, "user.#")
	require.NoError(t, err)
	defer closeQueue()

	res, body := postSignup(t, d, "event@x.com")
	require.Equal(t, http.StatusOK, res.StatusCode)

	select {
	case m := <-msgs:
		var evt map[string]any
		require.NoError(t, json.Unmarshal(m.Body, &evt))
		assert.Equal(t, "user.signed_up", m.RoutingKey)
		assert.Equal(t, body.User.ID, evt["user_id"])
		assert.Equal(t, "event@x.com", evt["email"])
		assert.Equal(t, "synced", evt["crm_status"])
	case <-time.After(3 * time.Second):
		t.Fatalf("timeout waiting for user.signed_up")
	}
}
